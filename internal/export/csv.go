package export

import (
	"context"
	"path/filepath"

	"github.com/sabarim/komoditas/internal/frame"
)

// CSVSink writes <dir>/<name>.csv without an index column.
type CSVSink struct {
	dir string
}

func NewCSVSink(dir string) *CSVSink {
	return &CSVSink{dir: dir}
}

func (s *CSVSink) Name() string { return "csv" }

func (s *CSVSink) Write(_ context.Context, ds Dataset) ([]string, error) {
	path := filepath.Join(s.dir, ds.Name+".csv")
	if err := frame.WriteFile(path, ds.Frame); err != nil {
		return nil, err
	}
	return []string{path}, nil
}
