package sources

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sabarim/komoditas/internal/frame"
	"github.com/sabarim/komoditas/internal/logger"
)

// TrendColumn holds the search-trend index in every output.
const TrendColumn = "GTPrice"

// lessThanOne is what Google Trends writes for interest below 1.
const lessThanOne = "<1"

// LoadGoogleTrends reads dir/<commodity>/<province>.csv trend files and
// returns the mean trend index per date and commodity: Date, Commodity,
// GTPrice. Multi-word commodities are reduced to their first word.
func LoadGoogleTrends(dir string, start, end time.Time) (*frame.Frame, error) {
	log := logger.GetLogger().WithComponent("sources.trends")

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	var groups []*frame.Frame
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		commodity := strings.ToLower(e.Name())
		commodityDir := filepath.Join(dir, e.Name())
		files, err := csvFiles(commodityDir)
		if err != nil {
			return nil, err
		}
		for _, name := range files {
			path := filepath.Join(commodityDir, name)
			g, err := loadTrendFile(path, start, end)
			if err != nil {
				return nil, err
			}
			province := strings.ToLower(strings.SplitN(name, ".", 2)[0])
			g.SetConst("Commodity", frame.Str(commodity))
			g.SetConst("Province", frame.Str(province))
			groups = append(groups, g)
		}
	}
	if len(groups) == 0 {
		return nil, fmt.Errorf("no trend files under %s", dir)
	}

	joined := frame.Concat(groups...)
	avg, err := frame.GroupBy(joined, []string{DateColumn, "Commodity"}, []frame.Agg{
		{Column: TrendColumn, Func: frame.Mean},
	})
	if err != nil {
		return nil, fmt.Errorf("aggregate google trends: %w", err)
	}
	if err := avg.Transform("Commodity", func(c frame.Cell) (frame.Cell, error) {
		if fields := strings.Fields(c.Value); c.Valid && len(fields) > 1 {
			return frame.Str(fields[0]), nil
		}
		return c, nil
	}); err != nil {
		return nil, err
	}

	log.WithFields(logger.Fields{"files": len(groups), "rows": avg.Len()}).Info("google trend data ready")
	return avg, nil
}

func loadTrendFile(path string, start, end time.Time) (*frame.Frame, error) {
	raw, err := frame.ReadFileWith(path, frame.ReadOptions{
		SkipPreamble: func(record []string) bool { return len(record) < 2 },
	})
	if err != nil {
		return nil, err
	}
	names := raw.Names()
	if len(names) < 2 {
		return nil, fmt.Errorf("%s: expected a date and a value column", path)
	}
	// Google's own exports label the date column "Day" or "Week".
	raw = raw.Rename(func(col string) string {
		if col == names[0] {
			return DateColumn
		}
		return col
	})
	valueCol := names[1]

	if err := raw.Transform(valueCol, func(c frame.Cell) (frame.Cell, error) {
		if c.Valid && c.Value == lessThanOne {
			return frame.Str("0.5"), nil
		}
		return c, nil
	}); err != nil {
		return nil, err
	}
	if err := raw.Derive(TrendColumn, valueCol, func(c frame.Cell) frame.Cell { return c }); err != nil {
		return nil, err
	}

	replaced := frame.ReplaceZerosWithMean(raw)
	filled, err := fillGroup(replaced, start, end)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return filled.Drop(valueCol), nil
}
