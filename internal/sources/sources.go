// Package sources loads each raw input category into a cleaned frame
// reindexed onto a continuous daily calendar.
//
// Every loader fills dates per file (one commodity, currency pair or
// province) before the files are concatenated, so values never leak from
// one entity into another's gaps.
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

// DateColumn is the key column every source is indexed by.
const DateColumn = "Date"

// csvFiles lists the CSV files of dir in name order.
func csvFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		files = append(files, e.Name())
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no CSV files in %s", dir)
	}
	return files, nil
}

// fillGroup cleans one source file and reindexes it onto [start, end].
func fillGroup(f *frame.Frame, start, end time.Time) (*frame.Frame, error) {
	cleaned := frame.Clean(f)
	return frame.FillDates(cleaned, DateColumn, start, end)
}

func requireColumns(f *frame.Frame, path string, names ...string) error {
	for _, name := range names {
		if _, err := f.Col(name); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return nil
}

// ensureColumns adds the named columns as missing cells when cleaning
// dropped them from every file.
func ensureColumns(f *frame.Frame, names ...string) {
	for _, name := range names {
		if !f.Has(name) {
			f.SetConst(name, frame.Null())
		}
	}
}

// NormalizeCommodity reduces a commodity label to its lower-cased first
// word, the key trend data and retail prices are joined on.
func NormalizeCommodity(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(fields[0])
}

// NormalizeDir rewrites every CSV file of dir with canonical quoting and
// returns how many files were rewritten.
func NormalizeDir(dir string) (int, error) {
	log := logger.GetLogger().WithComponent("sources")

	files, err := csvFiles(dir)
	if err != nil {
		return 0, err
	}
	for _, name := range files {
		path := filepath.Join(dir, name)
		f, err := frame.ReadFileWith(path, frame.ReadOptions{LazyQuotes: true})
		if err != nil {
			return 0, err
		}
		if err := frame.WriteFile(path, f); err != nil {
			return 0, fmt.Errorf("failed to rewrite %s: %w", path, err)
		}
		log.WithFields(logger.Fields{"file": path, "rows": f.Len()}).Debug("normalized CSV")
	}
	return len(files), nil
}
