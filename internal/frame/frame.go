// Package frame provides the ordered, nullable tabular structure every
// source loader and the dataset builder work on. It wraps a gota DataFrame
// whose columns are all string series; missing cells are NA elements.
package frame

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// ErrColumnNotFound is returned when an operation names a column the frame does not have.
var ErrColumnNotFound = errors.New("column not found")

// naValue is how gota spells a missing string element.
const naValue = "NaN"

// Cell is a single nullable value. Values are kept in their textual form and
// parsed on demand.
type Cell struct {
	Value string
	Valid bool
}

// Str returns a present cell holding s.
func Str(s string) Cell {
	return Cell{Value: s, Valid: true}
}

// Num returns a present cell holding the shortest representation of v.
func Num(v float64) Cell {
	return Cell{Value: FormatFloat(v), Valid: true}
}

// Null returns a missing cell.
func Null() Cell {
	return Cell{}
}

// Float parses the cell as a number.
func (c Cell) Float() (float64, bool) {
	if !c.Valid {
		return 0, false
	}
	v, err := ParseFloat(c.Value)
	if err != nil {
		return 0, false
	}
	return v, true
}

func cellOf(e series.Element) Cell {
	if e.IsNA() {
		return Null()
	}
	return Str(e.String())
}

// Frame is an ordered sequence of rows over named columns.
type Frame struct {
	df dataframe.DataFrame
}

// New creates an empty frame with the given columns.
func New(columns ...string) *Frame {
	return fromColumns(columns, make([][]Cell, len(columns)))
}

// FromRows builds a frame from row-major cells. Short rows are padded with
// missing cells.
func FromRows(columns []string, rows [][]Cell) *Frame {
	cols := make([][]Cell, len(columns))
	for c := range cols {
		cols[c] = make([]Cell, len(rows))
		for r, row := range rows {
			if c < len(row) {
				cols[c][r] = row[c]
			}
		}
	}
	return fromColumns(columns, cols)
}

func fromColumns(names []string, cols [][]Cell) *Frame {
	ss := make([]series.Series, len(names))
	for i, name := range names {
		ss[i] = stringSeries(name, cols[i])
	}
	return wrap(ss)
}

func wrap(cols []series.Series) *Frame {
	if len(cols) == 0 {
		return &Frame{}
	}
	return &Frame{df: dataframe.New(cols...)}
}

func stringSeries(name string, values []Cell) series.Series {
	raw := make([]string, len(values))
	for i, c := range values {
		if c.Valid {
			raw[i] = c.Value
		} else {
			raw[i] = naValue
		}
	}
	return series.New(raw, series.String, name)
}

func cells(s series.Series) []Cell {
	out := make([]Cell, s.Len())
	for i := range out {
		out[i] = cellOf(s.Elem(i))
	}
	return out
}

// DataFrame returns the underlying gota DataFrame.
func (f *Frame) DataFrame() dataframe.DataFrame {
	return f.df
}

// Names returns the column names in order.
func (f *Frame) Names() []string {
	if f.df.Ncol() == 0 {
		return nil
	}
	return f.df.Names()
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	if f.df.Ncol() == 0 {
		return 0
	}
	return f.df.Nrow()
}

// Index returns the position of a column, or -1.
func (f *Frame) Index(name string) int {
	for i, col := range f.Names() {
		if col == name {
			return i
		}
	}
	return -1
}

// Has reports whether the frame has the named column.
func (f *Frame) Has(name string) bool {
	return f.Index(name) >= 0
}

// Col returns the position of a column or an ErrColumnNotFound error.
func (f *Frame) Col(name string) (int, error) {
	idx := f.Index(name)
	if idx < 0 {
		return -1, fmt.Errorf("%w: %q", ErrColumnNotFound, name)
	}
	return idx, nil
}

// Column returns every cell of the named column.
func (f *Frame) Column(name string) ([]Cell, error) {
	if _, err := f.Col(name); err != nil {
		return nil, err
	}
	return cells(f.df.Col(name)), nil
}

// Row returns the cells of row i.
func (f *Frame) Row(i int) []Cell {
	row := make([]Cell, f.df.Ncol())
	for c := range row {
		row[c] = cellOf(f.df.Elem(i, c))
	}
	return row
}

// Cell returns the cell at row i of the named column.
func (f *Frame) Cell(i int, name string) (Cell, error) {
	idx, err := f.Col(name)
	if err != nil {
		return Cell{}, err
	}
	return cellOf(f.df.Elem(i, idx)), nil
}

// Float returns the numeric value of the named column in row i.
func (f *Frame) Float(i int, name string) (float64, bool) {
	c, err := f.Cell(i, name)
	if err != nil {
		return 0, false
	}
	return c.Float()
}

// Copy returns a deep copy of the frame.
func (f *Frame) Copy() *Frame {
	if f.df.Ncol() == 0 {
		return &Frame{}
	}
	return &Frame{df: f.df.Copy()}
}

// Subset returns the given rows, in order. Indexes may repeat.
func (f *Frame) Subset(rows []int) *Frame {
	if f.df.Ncol() == 0 {
		return &Frame{}
	}
	if len(rows) == 0 {
		return New(f.Names()...)
	}
	return &Frame{df: f.df.Subset(rows)}
}

// put replaces or appends a column.
func (f *Frame) put(name string, values []Cell) {
	s := stringSeries(name, values)
	if f.df.Ncol() == 0 {
		f.df = dataframe.New(s)
		return
	}
	f.df = f.df.Mutate(s)
}

// SetConst assigns the same value to every row of the named column, adding
// the column when it does not exist yet.
func (f *Frame) SetConst(name string, c Cell) {
	values := make([]Cell, f.Len())
	for i := range values {
		values[i] = c
	}
	f.put(name, values)
}

// Derive assigns the named column from the cells of another column.
func (f *Frame) Derive(name, from string, fn func(Cell) Cell) error {
	src, err := f.Column(from)
	if err != nil {
		return err
	}
	for i, c := range src {
		src[i] = fn(c)
	}
	f.put(name, src)
	return nil
}

// Transform rewrites every cell of the named column in place.
func (f *Frame) Transform(name string, fn func(Cell) (Cell, error)) error {
	values, err := f.Column(name)
	if err != nil {
		return err
	}
	for i, c := range values {
		out, err := fn(c)
		if err != nil {
			return fmt.Errorf("column %q row %d: %w", name, i, err)
		}
		values[i] = out
	}
	f.put(name, values)
	return nil
}

// Drop returns a frame without the named columns. Unknown names are ignored.
func (f *Frame) Drop(names ...string) *Frame {
	drop := make(map[string]struct{}, len(names))
	for _, n := range names {
		drop[n] = struct{}{}
	}
	keep := make([]string, 0, f.df.Ncol())
	for _, col := range f.Names() {
		if _, ok := drop[col]; !ok {
			keep = append(keep, col)
		}
	}
	out, _ := f.Select(keep...)
	return out
}

// Select returns a frame holding only the named columns, in the given order.
func (f *Frame) Select(names ...string) (*Frame, error) {
	for _, name := range names {
		if _, err := f.Col(name); err != nil {
			return nil, err
		}
	}
	if len(names) == 0 {
		return &Frame{}, nil
	}
	df := f.df.Select(names)
	if df.Err != nil {
		return nil, df.Err
	}
	return &Frame{df: df}, nil
}

// Rename returns a frame whose columns are renamed by fn.
func (f *Frame) Rename(fn func(string) string) *Frame {
	out := f.Copy()
	for _, col := range out.Names() {
		if renamed := fn(col); renamed != col {
			out.df = out.df.Rename(renamed, col)
		}
	}
	return out
}

// Prefix renames every column except the ones in keep by prepending prefix.
func (f *Frame) Prefix(prefix string, keep ...string) *Frame {
	skip := make(map[string]struct{}, len(keep))
	for _, k := range keep {
		skip[k] = struct{}{}
	}
	return f.Rename(func(col string) string {
		if _, ok := skip[col]; ok {
			return col
		}
		return prefix + col
	})
}

// Concat stacks frames vertically. The result carries the union of all
// columns in order of first appearance; cells a frame lacks are missing.
func Concat(frames ...*Frame) *Frame {
	var columns []string
	seen := make(map[string]bool)
	for _, f := range frames {
		if f == nil {
			continue
		}
		for _, col := range f.Names() {
			if !seen[col] {
				seen[col] = true
				columns = append(columns, col)
			}
		}
	}
	if len(columns) == 0 {
		return &Frame{}
	}

	var out dataframe.DataFrame
	first := true
	for _, f := range frames {
		if f == nil || f.df.Ncol() == 0 {
			continue
		}
		aligned := f.Copy()
		for _, col := range columns {
			if !aligned.Has(col) {
				aligned.put(col, make([]Cell, aligned.Len()))
			}
		}
		df := aligned.df.Select(columns)
		if first {
			out, first = df, false
			continue
		}
		out = out.RBind(df)
	}
	return &Frame{df: out}
}

// IsNumeric reports whether every present cell of a column parses as a
// number and at least one cell is present.
func (f *Frame) IsNumeric(idx int) bool {
	seen := false
	for r := 0; r < f.Len(); r++ {
		e := f.df.Elem(r, idx)
		if e.IsNA() {
			continue
		}
		if _, err := ParseFloat(e.String()); err != nil {
			return false
		}
		seen = true
	}
	return seen
}

// ParseFloat parses a plain decimal number, tolerating surrounding spaces.
func ParseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// FormatFloat formats v with the fewest digits that round-trip.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
