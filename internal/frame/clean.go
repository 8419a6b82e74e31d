package frame

import (
	"strings"

	"github.com/go-gota/gota/series"
)

// Clean drops rows holding any missing cell, then exact duplicate rows
// (keeping the first), then any column that still holds a missing cell.
func Clean(f *Frame) *Frame {
	var keep []int
	seen := make(map[string]struct{}, f.Len())
	for r := 0; r < f.Len(); r++ {
		row := f.Row(r)
		if hasMissing(row) {
			continue
		}
		key := rowKey(row)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		keep = append(keep, r)
	}
	out := f.Subset(keep)

	var drop []string
	for _, col := range out.Names() {
		if hasMissing(cells(out.df.Col(col))) {
			drop = append(drop, col)
		}
	}
	if len(drop) > 0 {
		out = out.Drop(drop...)
	}
	return out
}

func hasMissing(row []Cell) bool {
	for _, c := range row {
		if !c.Valid {
			return true
		}
	}
	return false
}

func rowKey(row []Cell) string {
	var b strings.Builder
	for _, c := range row {
		if c.Valid {
			b.WriteByte('v')
			b.WriteString(c.Value)
		} else {
			b.WriteByte('n')
		}
		b.WriteByte(0x1f)
	}
	return b.String()
}

// ReplaceZerosWithMean replaces, in every numeric column, each zero with the
// mean of that column's non-zero values. In a column without any non-zero
// value the zeros become missing.
func ReplaceZerosWithMean(f *Frame) *Frame {
	out := f.Copy()
	for idx, name := range out.Names() {
		if !out.IsNumeric(idx) {
			continue
		}
		values := cells(out.df.Col(name))
		var nonZero []float64
		for _, c := range values {
			if v, ok := c.Float(); ok && v != 0 {
				nonZero = append(nonZero, v)
			}
		}
		fill := Null()
		if len(nonZero) > 0 {
			fill = Num(series.Floats(nonZero).Mean())
		}
		for i, c := range values {
			if v, ok := c.Float(); ok && v == 0 {
				values[i] = fill
			}
		}
		out.put(name, values)
	}
	return out
}
