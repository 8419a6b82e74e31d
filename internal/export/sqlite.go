package export

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteSink replaces one table per dataset in a single database file.
type SQLiteSink struct {
	db   *sql.DB
	path string
}

func NewSQLiteSink(path string) (*SQLiteSink, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("sqlite: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: %w", err)
	}
	return &SQLiteSink{db: db, path: path}, nil
}

func (s *SQLiteSink) Name() string { return "sqlite" }

func (s *SQLiteSink) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Write drops and recreates the dataset's table, then inserts every row in
// one transaction. Missing cells are stored as NULL.
func (s *SQLiteSink) Write(ctx context.Context, ds Dataset) (written []string, err error) {
	f := ds.Frame
	table := quoteIdent(identifier(ds.Name))
	columns := f.Names()
	names := ColumnNames(columns)

	numeric := make([]bool, len(columns))
	defs := make([]string, len(columns))
	for i, name := range names {
		numeric[i] = f.IsNumeric(i)
		kind := "TEXT"
		if numeric[i] {
			kind = "REAL"
		}
		defs[i] = quoteIdent(name) + " " + kind
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DROP TABLE IF EXISTS `+table); err != nil {
		return nil, fmt.Errorf("sqlite: drop %s: %w", table, err)
	}
	if _, err = tx.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE %s (%s)`, table, strings.Join(defs, ", "))); err != nil {
		return nil, fmt.Errorf("sqlite: create %s: %w", table, err)
	}

	quoted := make([]string, len(names))
	for i, name := range names {
		quoted[i] = quoteIdent(name)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", ")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`,
		table, strings.Join(quoted, ", "), placeholders))
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	args := make([]any, len(names))
	for r := 0; r < f.Len(); r++ {
		for i, c := range f.Row(r) {
			switch {
			case !c.Valid:
				args[i] = nil
			case numeric[i]:
				v, _ := c.Float()
				args[i] = v
			default:
				args[i] = c.Value
			}
		}
		if _, err = stmt.ExecContext(ctx, args...); err != nil {
			return nil, fmt.Errorf("sqlite: insert row %d into %s: %w", r, table, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return []string{s.path}, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
