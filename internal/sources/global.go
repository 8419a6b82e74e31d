package sources

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sabarim/komoditas/internal/frame"
	"github.com/sabarim/komoditas/internal/logger"
)

const (
	// GlobalPrefix marks every column contributed by the futures source.
	GlobalPrefix = "Global"

	futuresFileMarker = "Futures Historical Data"
)

var globalNumericColumns = []string{"Price", "Open", "High", "Low"}

// CommodityFromFuturesFile derives the commodity label from an
// Investing.com export name such as "Gold Futures Historical Data.csv".
func CommodityFromFuturesFile(name string) string {
	if idx := strings.Index(name, futuresFileMarker); idx >= 0 {
		return strings.TrimSpace(name[:idx])
	}
	return strings.TrimSpace(strings.TrimSuffix(name, filepath.Ext(name)))
}

// LoadGlobalCommodity reads every futures export in dir and aggregates them
// into one row per day of [start, end] with Global-prefixed columns:
// mean open, max high, min low, summed volume, mean change and mean price.
func LoadGlobalCommodity(dir string, start, end time.Time) (*frame.Frame, error) {
	log := logger.GetLogger().WithComponent("sources.global")

	files, err := csvFiles(dir)
	if err != nil {
		return nil, err
	}

	var groups []*frame.Frame
	for _, name := range files {
		path := filepath.Join(dir, name)
		raw, err := frame.ReadFileWith(path, frame.ReadOptions{LazyQuotes: true})
		if err != nil {
			return nil, err
		}
		if err := requireColumns(raw, path, DateColumn, "Price", "Open", "High", "Low", "Vol.", "Change %"); err != nil {
			return nil, err
		}
		filled, err := fillGroup(raw, start, end)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		filled.SetConst("Commodity", frame.Str(CommodityFromFuturesFile(name)))
		groups = append(groups, filled)
		log.WithFields(logger.Fields{"file": name, "rows": raw.Len()}).Debug("loaded futures file")
	}

	joined := frame.Concat(groups...)
	ensureColumns(joined, "Price", "Open", "High", "Low", "Vol.", "Change %")
	if err := convertFuturesNumbers(joined); err != nil {
		return nil, err
	}

	agg, err := frame.GroupBy(joined, []string{DateColumn}, []frame.Agg{
		{Column: "Open", Func: frame.Mean},
		{Column: "High", Func: frame.Max},
		{Column: "Low", Func: frame.Min},
		{Column: "Vol.", Func: frame.Sum},
		{Column: "Change %", Func: frame.Mean},
		{Column: "Price", Func: frame.Mean},
		{Column: "Commodity", Func: frame.JoinUnique},
	})
	if err != nil {
		return nil, fmt.Errorf("aggregate global commodity: %w", err)
	}

	out := agg.Prefix(GlobalPrefix, DateColumn).Drop(GlobalPrefix + "Commodity")
	log.WithFields(logger.Fields{"files": len(files), "rows": out.Len()}).Info("global commodity data ready")
	return out, nil
}

func convertFuturesNumbers(f *frame.Frame) error {
	if err := f.Transform("Vol.", coerce(ParseVolume)); err != nil {
		return err
	}
	if err := f.Transform("Change %", coerce(ParsePercent)); err != nil {
		return err
	}
	for _, col := range globalNumericColumns {
		if err := f.Transform(col, coerce(ParsePrice)); err != nil {
			return err
		}
	}
	return nil
}

// coerce turns a parser into a cell transform that maps unparseable
// values to missing cells.
func coerce(parse func(string) (float64, error)) func(frame.Cell) (frame.Cell, error) {
	return func(c frame.Cell) (frame.Cell, error) {
		if !c.Valid {
			return c, nil
		}
		v, err := parse(c.Value)
		if err != nil {
			return frame.Null(), nil
		}
		return frame.Num(v), nil
	}
}

// ParsePrice parses numbers like "2,345.60".
func ParsePrice(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", ""), 64)
}

// ParsePercent parses values like "-1.25%".
func ParsePercent(s string) (float64, error) {
	return ParsePrice(strings.TrimSuffix(strings.TrimSpace(s), "%"))
}

// ParseVolume parses volumes with an optional K, M or B suffix.
func ParseVolume(s string) (float64, error) {
	s = strings.TrimSpace(s)
	mult := 1.0
	switch {
	case strings.HasSuffix(s, "K"):
		mult = 1e3
	case strings.HasSuffix(s, "M"):
		mult = 1e6
	case strings.HasSuffix(s, "B"):
		mult = 1e9
	}
	if mult != 1 {
		s = s[:len(s)-1]
	}
	v, err := ParsePrice(s)
	if err != nil {
		return 0, err
	}
	return v * mult, nil
}
