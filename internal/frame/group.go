package frame

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// AggFunc names how the cells of a group are combined.
type AggFunc int

const (
	Mean AggFunc = iota
	Max
	Min
	Sum
	JoinUnique
)

func (a AggFunc) String() string {
	switch a {
	case Mean:
		return "mean"
	case Max:
		return "max"
	case Min:
		return "min"
	case Sum:
		return "sum"
	case JoinUnique:
		return "join_unique"
	default:
		return fmt.Sprintf("agg(%d)", int(a))
	}
}

// Agg aggregates one column of a group.
type Agg struct {
	Column string
	Func   AggFunc
}

// rowColumn carries source row positions through gota's grouping.
const rowColumn = "__row"

// GroupBy collapses rows sharing the same key cells into one row per key,
// sorted ascending by key. Output columns are the keys followed by the
// aggregated columns in the order given. Rows with a missing key cell
// belong to no group. Aggregations skip missing cells; a group with no
// present values yields a missing cell, except Sum which yields zero.
// JoinUnique joins the distinct labels of a group with ", " in order of
// first appearance.
func GroupBy(f *Frame, keys []string, aggs []Agg) (*Frame, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("group by needs at least one key")
	}
	keyCols := make([][]Cell, len(keys))
	for i, k := range keys {
		col, err := f.Column(k)
		if err != nil {
			return nil, err
		}
		keyCols[i] = col
	}
	aggCols := make([][]Cell, len(aggs))
	for i, a := range aggs {
		col, err := f.Column(a.Column)
		if err != nil {
			return nil, err
		}
		aggCols[i] = col
	}

	groups, err := partition(f, keys, keyCols)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return lessCells(keyCells(keyCols, groups[i][0]), keyCells(keyCols, groups[j][0]))
	})

	columns := append([]string(nil), keys...)
	for _, a := range aggs {
		columns = append(columns, a.Column)
	}
	rows := make([][]Cell, 0, len(groups))
	for _, g := range groups {
		row := keyCells(keyCols, g[0])
		for i, a := range aggs {
			c, err := aggregate(aggCols[i], g, a.Func)
			if err != nil {
				return nil, fmt.Errorf("aggregate %s of %q: %w", a.Func, a.Column, err)
			}
			row = append(row, c)
		}
		rows = append(rows, row)
	}
	return FromRows(columns, rows), nil
}

// partition splits the row positions of f by key using gota's GroupBy.
// gota joins key cells with "_" to name a group, so every gota group is
// split again on the exact key cells.
func partition(f *Frame, keys []string, keyCols [][]Cell) ([][]int, error) {
	var valid []int
	for r := 0; r < f.Len(); r++ {
		ok := true
		for _, col := range keyCols {
			if !col[r].Valid {
				ok = false
				break
			}
		}
		if ok {
			valid = append(valid, r)
		}
	}
	if len(valid) == 0 {
		return nil, nil
	}

	cols := make([]series.Series, 0, len(keys)+1)
	for i, k := range keys {
		picked := make([]Cell, len(valid))
		for j, r := range valid {
			picked[j] = keyCols[i][r]
		}
		cols = append(cols, stringSeries(k, picked))
	}
	cols = append(cols, series.New(valid, series.Int, rowColumn))

	grouped := dataframe.New(cols...).GroupBy(keys...)
	if grouped.Err != nil {
		return nil, fmt.Errorf("group by %v: %w", keys, grouped.Err)
	}

	var out [][]int
	for _, g := range grouped.GetGroups() {
		rows, err := g.Col(rowColumn).Int()
		if err != nil {
			return nil, fmt.Errorf("group by %v: %w", keys, err)
		}
		sort.Ints(rows)
		exact := make(map[string]int)
		for _, r := range rows {
			k := rowKey(keyCells(keyCols, r))
			pos, ok := exact[k]
			if !ok {
				pos = len(out)
				exact[k] = pos
				out = append(out, nil)
			}
			out[pos] = append(out[pos], r)
		}
	}
	return out, nil
}

func aggregate(col []Cell, rows []int, fn AggFunc) (Cell, error) {
	if fn == JoinUnique {
		return joinUnique(col, rows), nil
	}

	values := make([]float64, 0, len(rows))
	for _, r := range rows {
		c := col[r]
		if !c.Valid {
			continue
		}
		v, err := ParseFloat(c.Value)
		if err != nil {
			return Null(), fmt.Errorf("non-numeric value %q", c.Value)
		}
		values = append(values, v)
	}

	if fn == Sum {
		if len(values) == 0 {
			return Num(0), nil
		}
		return Num(series.Floats(values).Sum()), nil
	}
	if len(values) == 0 {
		return Null(), nil
	}
	s := series.Floats(values)
	switch fn {
	case Mean:
		return Num(s.Mean()), nil
	case Max:
		return Num(s.Max()), nil
	case Min:
		return Num(s.Min()), nil
	}
	return Null(), fmt.Errorf("unsupported aggregation %s", fn)
}

func joinUnique(col []Cell, rows []int) Cell {
	seen := make(map[string]struct{})
	var labels []string
	for _, r := range rows {
		c := col[r]
		if !c.Valid {
			continue
		}
		if _, ok := seen[c.Value]; ok {
			continue
		}
		seen[c.Value] = struct{}{}
		labels = append(labels, c.Value)
	}
	if len(labels) == 0 {
		return Null()
	}
	return Str(strings.Join(labels, ", "))
}

// lessCells orders missing cells first, then by value.
func lessCells(a, b []Cell) bool {
	for i := range a {
		if a[i].Valid != b[i].Valid {
			return !a[i].Valid
		}
		if a[i].Value != b[i].Value {
			return a[i].Value < b[i].Value
		}
	}
	return false
}
