package frame

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustRead(t *testing.T, data string) *Frame {
	t.Helper()
	f, err := Read(strings.NewReader(data))
	require.NoError(t, err)
	return f
}

func column(t *testing.T, f *Frame, name string) []string {
	t.Helper()
	cells, err := f.Column(name)
	require.NoError(t, err)
	out := make([]string, len(cells))
	for i, c := range cells {
		if c.Valid {
			out[i] = c.Value
		} else {
			out[i] = "<nil>"
		}
	}
	return out
}

func records(f *Frame) [][]string {
	out := [][]string{f.Names()}
	for r := 0; r < f.Len(); r++ {
		var rec []string
		for _, c := range f.Row(r) {
			rec = append(rec, fmt.Sprintf("%v/%s", c.Valid, c.Value))
		}
		out = append(out, rec)
	}
	return out
}

func day(s string) time.Time {
	t, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestReadMissingMarkers(t *testing.T) {
	f := mustRead(t, "\ufeffDate, a ,b\n2024-01-01,1,NaN\n2024-01-02,,2\n2024-01-03,3\n")

	assert.Equal(t, []string{"Date", "a", "b"}, f.Names())
	assert.Equal(t, []string{"1", "<nil>", "3"}, column(t, f, "a"))
	assert.Equal(t, []string{"<nil>", "2", "<nil>"}, column(t, f, "b"))
}

func TestReadSkipsPreamble(t *testing.T) {
	data := "Category: All categories\n\nDay,beras: (Indonesia)\n2024-10-01,40\n"
	f, err := ReadWith(strings.NewReader(data), ReadOptions{
		SkipPreamble: func(record []string) bool { return len(record) == 1 },
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Day", "beras: (Indonesia)"}, f.Names())
	assert.Equal(t, 1, f.Len())
}

func TestWriteRoundTrip(t *testing.T) {
	f := FromRows([]string{"Date", "GlobalChange %"}, [][]Cell{
		{Str("2024-01-01"), Num(1.5)},
		{Str("2024-01-02")},
	})

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, f))
	assert.Equal(t, "Date,GlobalChange %\n2024-01-01,1.5\n2024-01-02,\n", buf.String())
}

func TestFillDatesForwardFill(t *testing.T) {
	f := mustRead(t, "Date,price\n2024-01-01,10\n2024-01-03,30\n")

	out, err := FillDates(f, "Date", day("2024-01-01"), day("2024-01-03"))
	require.NoError(t, err)

	assert.Equal(t, []string{"2024-01-01", "2024-01-02", "2024-01-03"}, column(t, out, "Date"))
	assert.Equal(t, []string{"10", "10", "30"}, column(t, out, "price"))
}

func TestFillDatesBackwardFillsLeadingGap(t *testing.T) {
	f := mustRead(t, "Date,price\n01/03/2024,30\n01/05/2024,50\n")

	out, err := FillDates(f, "Date", day("2024-01-01"), day("2024-01-06"))
	require.NoError(t, err)

	assert.Equal(t, []string{"30", "30", "30", "30", "50", "50"}, column(t, out, "price"))
}

func TestFillDatesOneRowPerDay(t *testing.T) {
	f := mustRead(t, "Date,v\n2023-12-30,1\n2024-02-10,2\n2024-02-10,3\n2024-03-31,4\n")
	start, end := day("2024-01-01"), day("2024-03-31")

	out, err := FillDates(f, "Date", start, end)
	require.NoError(t, err)

	dates := column(t, out, "Date")
	require.Len(t, dates, len(DateRange(start, end)))
	seen := map[string]bool{}
	for i, d := range dates {
		assert.False(t, seen[d], "duplicate date %s", d)
		seen[d] = true
		assert.Equal(t, FormatDate(start.AddDate(0, 0, i)), d)
	}
	values := column(t, out, "v")
	assert.Equal(t, "2", values[0], "rows before the range are dropped, not carried in")
	assert.Equal(t, "4", values[len(values)-1])
	idx := 40 // 2024-02-10
	assert.Equal(t, "2", values[idx], "first row wins on repeated dates")
}

func TestFillDatesMissingColumn(t *testing.T) {
	f := mustRead(t, "day,v\n2024-01-01,1\n")
	_, err := FillDates(f, "Date", day("2024-01-01"), day("2024-01-02"))
	assert.ErrorIs(t, err, ErrColumnNotFound)
}

func TestReplaceZerosWithMean(t *testing.T) {
	f := mustRead(t, "Date,trend,label\n2024-01-01,0,a\n2024-01-02,0,b\n2024-01-03,4,c\n2024-01-04,6,d\n")

	out := ReplaceZerosWithMean(f)

	assert.Equal(t, []string{"5", "5", "4", "6"}, column(t, out, "trend"))
	assert.Equal(t, []string{"a", "b", "c", "d"}, column(t, out, "label"))
	assert.Equal(t, []string{"0", "0", "4", "6"}, column(t, f, "trend"), "input must not be modified")
}

func TestReplaceZerosAllZeroColumnBecomesMissing(t *testing.T) {
	f := mustRead(t, "Date,trend\n2024-01-01,0\n2024-01-02,0\n")

	out := ReplaceZerosWithMean(f)

	assert.Equal(t, []string{"<nil>", "<nil>"}, column(t, out, "trend"))
	assert.Equal(t, 0, Clean(out).Len())
}

func TestCleanDropsRowsThenDuplicates(t *testing.T) {
	f := mustRead(t, "Date,a,b\n2024-01-01,1,2\n2024-01-01,1,2\n2024-01-02,,3\n2024-01-03,4,5\n")

	out := Clean(f)

	assert.Equal(t, []string{"Date", "a", "b"}, out.Names())
	assert.Equal(t, []string{"2024-01-01", "2024-01-03"}, column(t, out, "Date"))
}

func TestCleanIsIdempotent(t *testing.T) {
	f := mustRead(t, "Date,a,b\n2024-01-01,1,\n2024-01-01,1,2\n2024-01-01,1,2\n2024-01-02,0,3\n,4,5\n")

	once := Clean(f)
	twice := Clean(once)

	assert.Equal(t, records(once), records(twice))
}

func TestGroupByDate(t *testing.T) {
	f := mustRead(t, "Date,Open,High,Low,Vol.,Commodity\n"+
		"2024-01-02,10,12,9,100,Gold\n"+
		"2024-01-01,20,25,18,50,Gold\n"+
		"2024-01-02,30,31,2,250,Silver\n"+
		"2024-01-02,20,40,5,,Gold\n")

	out, err := GroupBy(f, []string{"Date"}, []Agg{
		{Column: "Open", Func: Mean},
		{Column: "High", Func: Max},
		{Column: "Low", Func: Min},
		{Column: "Vol.", Func: Sum},
		{Column: "Commodity", Func: JoinUnique},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"2024-01-01", "2024-01-02"}, column(t, out, "Date"))
	assert.Equal(t, []string{"20", "20"}, column(t, out, "Open"))
	assert.Equal(t, []string{"25", "40"}, column(t, out, "High"))
	assert.Equal(t, []string{"18", "2"}, column(t, out, "Low"))
	assert.Equal(t, []string{"50", "350"}, column(t, out, "Vol."))
	assert.Equal(t, []string{"Gold", "Gold, Silver"}, column(t, out, "Commodity"))
}

func TestGroupBySplitsKeysExactly(t *testing.T) {
	f := mustRead(t, "a,b,v,w\n"+
		"x_y,z,1,1\n"+
		"x,y_z,2,2\n"+
		"x_y,z,3,3\n"+
		",z,100,100\n")

	out, err := GroupBy(f, []string{"a", "b"}, []Agg{{Column: "v", Func: Mean}, {Column: "w", Func: Sum}})
	require.NoError(t, err)

	assert.Equal(t, []string{"x", "x_y"}, column(t, out, "a"))
	assert.Equal(t, []string{"y_z", "z"}, column(t, out, "b"))
	assert.Equal(t, [][]string{
		{"a", "b", "v", "w"},
		{"true/x", "true/y_z", "true/2", "true/2"},
		{"true/x_y", "true/z", "true/2", "true/4"},
	}, records(out))
}

func TestGroupByEmptyGroupValues(t *testing.T) {
	f := mustRead(t, "Date,v\n2024-01-01,\n")

	out, err := GroupBy(f, []string{"Date"}, []Agg{{Column: "v", Func: Mean}})
	require.NoError(t, err)
	assert.Equal(t, []string{"<nil>"}, column(t, out, "v"))

	out, err = GroupBy(f, []string{"Date"}, []Agg{{Column: "v", Func: Sum}})
	require.NoError(t, err)
	assert.Equal(t, []string{"0"}, column(t, out, "v"))
}

func TestGroupByRejectsNonNumeric(t *testing.T) {
	f := mustRead(t, "Date,Open\n2024-01-01,abc\n")
	_, err := GroupBy(f, []string{"Date"}, []Agg{{Column: "Open", Func: Mean}})
	assert.Error(t, err)
}

func TestLeftJoinPreservesRowCount(t *testing.T) {
	left := mustRead(t, "Date,commodity\n2024-01-01,beras\n2024-01-01,gula\n2024-01-02,beras\n2024-01-05,gula\n")
	right := mustRead(t, "Date,GlobalPrice\n2024-01-01,1\n2024-01-02,2\n2024-01-02,99\n2024-01-03,3\n")

	out, err := LeftJoin(left, right, []string{"Date"}, []string{"Date"})
	require.NoError(t, err)

	assert.Equal(t, left.Len(), out.Len())
	assert.Equal(t, []string{"Date", "commodity", "GlobalPrice"}, out.Names())
	assert.Equal(t, []string{"1", "1", "2", "<nil>"}, column(t, out, "GlobalPrice"))
}

func TestLeftJoinDistinctKeyNames(t *testing.T) {
	left := mustRead(t, "Date,norm,price\n2024-01-01,bawang,1\n")
	right := mustRead(t, "Date,Norm,GTPrice,price\n2024-01-01,bawang,7,2\n")

	out, err := LeftJoin(left, right, []string{"Date", "norm"}, []string{"Date", "Norm"})
	require.NoError(t, err)

	assert.Equal(t, []string{"Date", "norm", "price_x", "Norm", "GTPrice", "price_y"}, out.Names())
	assert.Equal(t, []string{"7"}, column(t, out, "GTPrice"))
}

func TestMelt(t *testing.T) {
	f := mustRead(t, "Date,commodity,Aceh,Bali\n2024-01-01,beras,1,2\n2024-01-02,beras,3,4\n")

	out, err := Melt(f, []string{"Date", "commodity"}, "province", "price")
	require.NoError(t, err)

	assert.Equal(t, []string{"Date", "commodity", "province", "price"}, out.Names())
	assert.Equal(t, []string{"Aceh", "Aceh", "Bali", "Bali"}, column(t, out, "province"))
	assert.Equal(t, []string{"1", "3", "2", "4"}, column(t, out, "price"))
}

func TestConcatUnionsColumns(t *testing.T) {
	a := mustRead(t, "Date,x\n2024-01-01,1\n")
	b := mustRead(t, "Date,y\n2024-01-02,2\n")

	out := Concat(a, nil, b)

	assert.Equal(t, []string{"Date", "x", "y"}, out.Names())
	assert.Equal(t, []string{"1", "<nil>"}, column(t, out, "x"))
	assert.Equal(t, []string{"<nil>", "2"}, column(t, out, "y"))
}

func TestConcatNoFrames(t *testing.T) {
	out := Concat(nil, New())
	assert.Empty(t, out.Names())
	assert.Equal(t, 0, out.Len())
}

func TestLeftJoinEmptyLeft(t *testing.T) {
	left := New("Date", "commodity")
	right := mustRead(t, "Date,GlobalPrice\n2024-01-01,1\n")

	out, err := LeftJoin(left, right, []string{"Date"}, []string{"Date"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Date", "commodity", "GlobalPrice"}, out.Names())
	assert.Equal(t, 0, out.Len())
}

func TestTransformAndDerive(t *testing.T) {
	f := mustRead(t, "Date,Commodity\n01/02/2024,Bawang Merah\n")

	require.NoError(t, f.NormalizeDates("Date"))
	require.NoError(t, f.Derive("norm", "Commodity", func(c Cell) Cell { return Str(strings.ToLower(c.Value)) }))
	f.SetConst("source", Str("retail"))

	assert.Equal(t, []string{"Date", "Commodity", "norm", "source"}, f.Names())
	assert.Equal(t, []Cell{Str("2024-01-02"), Str("Bawang Merah"), Str("bawang merah"), Str("retail")}, f.Row(0))
	assert.Equal(t, 1, f.DataFrame().Nrow())

	err := f.Transform("Commodity", func(Cell) (Cell, error) { return Null(), fmt.Errorf("bad") })
	assert.ErrorContains(t, err, `column "Commodity" row 0`)
	assert.ErrorIs(t, f.Derive("x", "missing", func(c Cell) Cell { return c }), ErrColumnNotFound)
}

func TestPrefixKeepsDate(t *testing.T) {
	f := New("Date", "Open", "Close")
	out := f.Prefix("CE_", "Date")
	assert.Equal(t, []string{"Date", "CE_Open", "CE_Close"}, out.Names())
}

func TestParseDateLayouts(t *testing.T) {
	for _, s := range []string{"2024-10-01", "10/01/2024", "Oct 01, 2024", "2024-10-01 00:00:00+07:00"} {
		d, err := ParseDate(s)
		require.NoError(t, err, s)
		assert.Equal(t, "2024-10-01", FormatDate(d), s)
	}
	_, err := ParseDate("yesterday")
	assert.Error(t, err)
}
