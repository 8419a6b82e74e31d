package sources

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/sabarim/komoditas/internal/frame"
	"github.com/sabarim/komoditas/internal/logger"
)

// CurrencyPrefix marks every column contributed by the exchange-rate source.
const CurrencyPrefix = "CE_"

// PairFromFile returns the part of a file name before the first '=',
// e.g. "USDIDR" for "USDIDR=X.csv".
func PairFromFile(name string) string {
	return strings.SplitN(name, "=", 2)[0]
}

// LoadCurrency reads the per-pair quote files of dir and aggregates them
// into one row per day of [start, end]: CE_Close, CE_High, CE_Low, CE_Open.
func LoadCurrency(dir string, start, end time.Time) (*frame.Frame, error) {
	log := logger.GetLogger().WithComponent("sources.currency")

	files, err := csvFiles(dir)
	if err != nil {
		return nil, err
	}

	var groups []*frame.Frame
	for _, name := range files {
		path := filepath.Join(dir, name)
		raw, err := frame.ReadFile(path)
		if err != nil {
			return nil, err
		}
		raw = flattenYahooHeader(raw)
		if err := requireColumns(raw, path, DateColumn, "Open", "High", "Low", "Close"); err != nil {
			return nil, err
		}
		raw = raw.Drop("Volume", "Adj Close")
		filled, err := fillGroup(raw, start, end)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		filled.SetConst("desc", frame.Str(PairFromFile(name)))
		groups = append(groups, filled)
	}

	joined := frame.Concat(groups...)
	ensureColumns(joined, "Close", "High", "Low", "Open")
	agg, err := frame.GroupBy(joined, []string{DateColumn}, []frame.Agg{
		{Column: "Close", Func: frame.Mean},
		{Column: "High", Func: frame.Max},
		{Column: "Low", Func: frame.Min},
		{Column: "Open", Func: frame.Mean},
		{Column: "desc", Func: frame.JoinUnique},
	})
	if err != nil {
		return nil, fmt.Errorf("aggregate currency exchange: %w", err)
	}

	out := agg.Drop("desc").Prefix(CurrencyPrefix, DateColumn)
	log.WithFields(logger.Fields{"files": len(files), "rows": out.Len()}).Info("currency exchange data ready")
	return out, nil
}

// flattenYahooHeader folds the three-row header newer yfinance versions
// write ("Price,Close,...", "Ticker,...", "Date,,,") into a plain one.
func flattenYahooHeader(f *frame.Frame) *frame.Frame {
	names := f.Names()
	if len(names) == 0 || names[0] != "Price" {
		return f
	}
	skip := 0
	for ; skip < f.Len(); skip++ {
		first := f.Row(skip)[0]
		if !first.Valid || (first.Value != "Ticker" && first.Value != DateColumn) {
			break
		}
	}
	rows := make([]int, 0, f.Len()-skip)
	for r := skip; r < f.Len(); r++ {
		rows = append(rows, r)
	}
	return f.Subset(rows).Rename(func(col string) string {
		if col == "Price" {
			return DateColumn
		}
		return col
	})
}
