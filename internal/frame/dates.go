package frame

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the canonical date format written to every output.
const DateLayout = "2006-01-02"

var dateLayouts = []string{
	DateLayout,
	"01/02/2006",
	"Jan 02, 2006",
	"2006/01/02",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05-07:00",
	time.RFC3339,
}

// ParseDate parses the date part of s in any of the known layouts and
// returns it as midnight UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// FormatDate formats t in DateLayout.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// DateRange returns every calendar day from start to end inclusive.
func DateRange(start, end time.Time) []time.Time {
	start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	end = time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// NormalizeDates rewrites the date column into DateLayout.
func (f *Frame) NormalizeDates(dateCol string) error {
	return f.Transform(dateCol, func(c Cell) (Cell, error) {
		if !c.Valid {
			return c, nil
		}
		t, err := ParseDate(c.Value)
		if err != nil {
			return c, err
		}
		return Str(FormatDate(t)), nil
	})
}

// FillDates reindexes f onto every day of [start, end]. Input rows outside
// the range are dropped and, for repeated dates, the first row wins. Gaps are
// filled per column with the nearest earlier value and, for a leading gap,
// with the nearest later value.
func FillDates(f *Frame, dateCol string, start, end time.Time) (*Frame, error) {
	dates, err := f.Column(dateCol)
	if err != nil {
		return nil, err
	}

	byDate := make(map[string]int, len(dates))
	for i, c := range dates {
		if !c.Valid {
			continue
		}
		t, err := ParseDate(c.Value)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		key := FormatDate(t)
		if _, ok := byDate[key]; !ok {
			byDate[key] = i
		}
	}

	days := DateRange(start, end)
	names := f.Names()
	cols := make([][]Cell, len(names))
	for c, name := range names {
		col := make([]Cell, len(days))
		if name == dateCol {
			for i, day := range days {
				col[i] = Str(FormatDate(day))
			}
			cols[c] = col
			continue
		}
		src := cells(f.df.Col(name))
		for i, day := range days {
			if r, ok := byDate[FormatDate(day)]; ok {
				col[i] = src[r]
			}
		}
		fillForward(col)
		fillBackward(col)
		cols[c] = col
	}
	return fromColumns(names, cols), nil
}

func fillForward(col []Cell) {
	var last Cell
	for i, c := range col {
		if c.Valid {
			last = c
		} else if last.Valid {
			col[i] = last
		}
	}
}

func fillBackward(col []Cell) {
	var next Cell
	for i := len(col) - 1; i >= 0; i-- {
		if col[i].Valid {
			next = col[i]
		} else if next.Valid {
			col[i] = next
		}
	}
}
