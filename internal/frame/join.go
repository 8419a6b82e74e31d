package frame

import "fmt"

// LeftJoin keeps every row of left, in order, and attaches the columns of
// the first right row whose key cells equal the left key cells. Unmatched
// rows get missing cells. Right key columns named like their left
// counterpart are not repeated; other clashing names get _x and _y
// suffixes. The result always has exactly left.Len() rows.
//
// gota's own LeftJoin repeats a left row for every matching right row and
// needs both sides to share key names, so the right side is indexed here
// and gathered with Subset before a CBind.
func LeftJoin(left, right *Frame, leftOn, rightOn []string) (*Frame, error) {
	if len(leftOn) != len(rightOn) || len(leftOn) == 0 {
		return nil, fmt.Errorf("join needs matching key lists, got %d and %d", len(leftOn), len(rightOn))
	}
	leftKeys := make([][]Cell, len(leftOn))
	for i, k := range leftOn {
		col, err := left.Column(k)
		if err != nil {
			return nil, fmt.Errorf("left: %w", err)
		}
		leftKeys[i] = col
	}
	rightKeys := make([][]Cell, len(rightOn))
	shared := make(map[string]bool, len(rightOn))
	for i, k := range rightOn {
		col, err := right.Column(k)
		if err != nil {
			return nil, fmt.Errorf("right: %w", err)
		}
		rightKeys[i] = col
		if leftOn[i] == k {
			shared[k] = true
		}
	}

	var rightCols []string
	for _, c := range right.Names() {
		if !shared[c] {
			rightCols = append(rightCols, c)
		}
	}
	leftNames := make(map[string]bool)
	for _, c := range left.Names() {
		leftNames[c] = true
	}
	rightNames := make(map[string]bool, len(rightCols))
	for _, c := range rightCols {
		rightNames[c] = true
	}

	index := make(map[string]int, right.Len())
	for r := 0; r < right.Len(); r++ {
		k := rowKey(keyCells(rightKeys, r))
		if _, ok := index[k]; !ok {
			index[k] = r
		}
	}

	// row right.Len() of the padded right side is all missing
	picks := make([]int, left.Len())
	for r := range picks {
		pos, ok := index[rowKey(keyCells(leftKeys, r))]
		if !ok {
			pos = right.Len()
		}
		picks[r] = pos
	}

	lhs := left.Rename(func(c string) string {
		if rightNames[c] && !isKey(c, leftOn) {
			return c + "_x"
		}
		return c
	})
	if len(rightCols) == 0 {
		return lhs, nil
	}
	rhs, err := right.Select(rightCols...)
	if err != nil {
		return nil, err
	}
	rhs = Concat(rhs, FromRows(rightCols, [][]Cell{nil})).Subset(picks).Rename(func(c string) string {
		if leftNames[c] {
			return c + "_y"
		}
		return c
	})
	if left.Len() == 0 {
		return New(append(lhs.Names(), rhs.Names()...)...), nil
	}
	df := lhs.df.CBind(rhs.df)
	if df.Err != nil {
		return nil, df.Err
	}
	return &Frame{df: df}, nil
}

func keyCells(cols [][]Cell, r int) []Cell {
	kc := make([]Cell, len(cols))
	for i, col := range cols {
		kc[i] = col[r]
	}
	return kc
}

func isKey(name string, keys []string) bool {
	for _, k := range keys {
		if k == name {
			return true
		}
	}
	return false
}

// Melt reshapes f from wide to long form: every column outside idVars
// becomes a (varName, valueName) pair. Rows are emitted column by column,
// so all rows of the first value column come first.
func Melt(f *Frame, idVars []string, varName, valueName string) (*Frame, error) {
	ids := make([][]Cell, len(idVars))
	for i, name := range idVars {
		col, err := f.Column(name)
		if err != nil {
			return nil, err
		}
		ids[i] = col
	}

	n := f.Len()
	var valueCols []string
	for _, name := range f.Names() {
		if !isKey(name, idVars) {
			valueCols = append(valueCols, name)
		}
	}

	total := n * len(valueCols)
	cols := make([][]Cell, len(idVars)+2)
	for i := range cols {
		cols[i] = make([]Cell, 0, total)
	}
	for _, name := range valueCols {
		values := cells(f.df.Col(name))
		for i, id := range ids {
			cols[i] = append(cols[i], id...)
		}
		for r := 0; r < n; r++ {
			cols[len(idVars)] = append(cols[len(idVars)], Str(name))
		}
		cols[len(idVars)+1] = append(cols[len(idVars)+1], values...)
	}

	columns := append(append([]string(nil), idVars...), varName, valueName)
	return fromColumns(columns, cols), nil
}
