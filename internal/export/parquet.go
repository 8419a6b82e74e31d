package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/sabarim/komoditas/internal/frame"
	"github.com/sabarim/komoditas/internal/logger"
)

// ParquetSink writes <dir>/<name>.parquet. Numeric columns become optional
// DOUBLE fields and everything else optional UTF8 strings.
type ParquetSink struct {
	dir string
	log *logger.Entry
}

func NewParquetSink(dir string) *ParquetSink {
	return &ParquetSink{dir: dir, log: logger.GetLogger().WithComponent("export.parquet")}
}

func (s *ParquetSink) Name() string { return "parquet" }

func (s *ParquetSink) Write(_ context.Context, ds Dataset) ([]string, error) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create parquet directory: %w", err)
	}
	path := filepath.Join(s.dir, ds.Name+".parquet")
	if err := writeFrame(path, ds.Frame); err != nil {
		return nil, err
	}
	s.log.WithFields(logger.Fields{"path": path, "rows": ds.Frame.Len()}).Debug("wrote parquet file")
	return []string{path}, nil
}

func writeFrame(path string, f *frame.Frame) error {
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("failed to create parquet file: %w", err)
	}
	defer fw.Close()

	columns := f.Names()
	numeric := make([]bool, len(columns))
	names := ColumnNames(columns)
	schema := make([]string, len(columns))
	for i, name := range names {
		numeric[i] = f.IsNumeric(i)
		if numeric[i] {
			schema[i] = fmt.Sprintf("name=%s, type=DOUBLE, repetitiontype=OPTIONAL", name)
		} else {
			schema[i] = fmt.Sprintf("name=%s, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY, repetitiontype=OPTIONAL", name)
		}
	}

	pw, err := writer.NewCSVWriter(schema, fw, 4)
	if err != nil {
		return fmt.Errorf("failed to create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_GZIP
	pw.RowGroupSize = 128 * 1024 * 1024
	pw.PageSize = 8 * 1024

	for r := 0; r < f.Len(); r++ {
		row := f.Row(r)
		rec := make([]interface{}, len(row))
		for i, c := range row {
			switch {
			case !c.Valid:
				rec[i] = nil
			case numeric[i]:
				v, _ := c.Float()
				rec[i] = v
			default:
				rec[i] = c.Value
			}
		}
		if err := pw.Write(rec); err != nil {
			return fmt.Errorf("failed to write parquet row %d: %w", r, err)
		}
	}

	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	return nil
}

// ColumnNames turns dataset headers into lower-case identifiers usable as
// parquet fields and SQL columns, e.g. "GlobalChange %" becomes
// "globalchange_pct". Collisions get a numeric suffix.
func ColumnNames(columns []string) []string {
	out := make([]string, len(columns))
	seen := make(map[string]int, len(columns))
	for i, col := range columns {
		name := identifier(col)
		if n := seen[name]; n > 0 {
			seen[name] = n + 1
			name = fmt.Sprintf("%s_%d", name, n+1)
		} else {
			seen[name] = 1
		}
		out[i] = name
	}
	return out
}

func identifier(s string) string {
	s = strings.ReplaceAll(s, "%", " pct")
	var b strings.Builder
	underscore := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			underscore = false
			continue
		}
		if !underscore && b.Len() > 0 {
			b.WriteByte('_')
			underscore = true
		}
	}
	name := strings.TrimSuffix(b.String(), "_")
	if name == "" {
		return "col"
	}
	if unicode.IsDigit(rune(name[0])) {
		name = "c_" + name
	}
	return name
}
