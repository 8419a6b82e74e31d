package frame

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// missingMarkers are the literal values read as missing cells.
var missingMarkers = map[string]struct{}{
	"":        {},
	"NA":      {},
	"N/A":     {},
	"n/a":     {},
	"#N/A":    {},
	"NaN":     {},
	"nan":     {},
	"-NaN":    {},
	"null":    {},
	"NULL":    {},
	"None":    {},
	"<NA>":    {},
	"#N/A NA": {},
}

// ReadOptions controls how a CSV file is turned into a frame.
type ReadOptions struct {
	// SkipPreamble is called for every record before the header is found;
	// records it returns true for are discarded.
	SkipPreamble func(record []string) bool
	// LazyQuotes relaxes quote handling for hand-exported files.
	LazyQuotes bool
}

// ReadFile loads a CSV file whose first row is the header.
func ReadFile(path string) (*Frame, error) {
	return ReadFileWith(path, ReadOptions{})
}

// ReadFileWith loads a CSV file using opts.
func ReadFileWith(path string, opts ReadOptions) (*Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	f, err := ReadWith(file, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return f, nil
}

// Read loads CSV data whose first row is the header.
func Read(r io.Reader) (*Frame, error) {
	return ReadWith(r, ReadOptions{})
}

// ReadWith loads CSV data using opts.
func ReadWith(r io.Reader, opts ReadOptions) (*Frame, error) {
	reader := csv.NewReader(bufio.NewReader(r))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = opts.LazyQuotes

	var header []string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			return nil, fmt.Errorf("no header row")
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV header: %w", err)
		}
		if opts.SkipPreamble != nil && opts.SkipPreamble(record) {
			continue
		}
		header = record
		break
	}

	records := [][]string{make([]string, len(header))}
	for i, h := range header {
		h = strings.TrimPrefix(h, "\ufeff")
		records[0][i] = strings.TrimSpace(h)
	}

	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record: %w", err)
		}
		line++
		if len(record) > len(header) {
			return nil, fmt.Errorf("record %d has %d fields, header has %d", line, len(record), len(header))
		}
		row := make([]string, len(header))
		for i := range row {
			row[i] = naValue
			if i < len(record) {
				if c := parseCell(record[i]); c.Valid {
					row[i] = c.Value
				}
			}
		}
		records = append(records, row)
	}

	if len(records) == 1 {
		return New(records[0]...), nil
	}
	df := dataframe.LoadRecords(records,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Err != nil {
		return nil, fmt.Errorf("failed to load CSV records: %w", df.Err)
	}
	return &Frame{df: df}, nil
}

func parseCell(raw string) Cell {
	v := strings.TrimSpace(raw)
	if _, ok := missingMarkers[v]; ok {
		return Null()
	}
	return Str(v)
}

// Write encodes the frame as CSV with a header row. Missing cells are
// empty, where gota's own writer would print NaN.
func Write(w io.Writer, f *Frame) error {
	writer := csv.NewWriter(w)
	columns := f.Names()
	if err := writer.Write(columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	record := make([]string, len(columns))
	for r := 0; r < f.Len(); r++ {
		for i, c := range f.Row(r) {
			if c.Valid {
				record[i] = c.Value
			} else {
				record[i] = ""
			}
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write data: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteFile writes the frame to path, creating parent directories.
func WriteFile(path string, f *Frame) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := Write(file, f); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
