package futures

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
)

// WriteInvesting writes daily candles (oldest first) the way Investing.com
// exports them: newest row first, MM/DD/YYYY dates, thousands separators,
// abbreviated volume and the close-to-close change.
func WriteInvesting(path string, daily []Candle) error {
	rows := make([]investingRow, len(daily))
	for i, c := range daily {
		change := 0.0
		if i > 0 && daily[i-1].Close != 0 {
			change = (c.Close - daily[i-1].Close) / daily[i-1].Close * 100
		}
		// newest first
		rows[len(daily)-1-i] = investingRow{
			Date:   c.Timestamp.Format("01/02/2006"),
			Price:  FormatPrice(c.Close),
			Open:   FormatPrice(c.Open),
			High:   FormatPrice(c.High),
			Low:    FormatPrice(c.Low),
			Volume: FormatVolume(c.Volume),
			Change: fmt.Sprintf("%.2f%%", change),
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := gocsv.MarshalFile(&rows, file); err != nil {
		file.Close()
		return fmt.Errorf("failed to write candles: %w", err)
	}
	return file.Close()
}

// FormatPrice renders v with two decimals and comma thousands separators.
func FormatPrice(v float64) string {
	s := strconv.FormatFloat(math.Abs(v), 'f', 2, 64)
	whole, frac := s[:len(s)-3], s[len(s)-3:]

	var b strings.Builder
	if v < 0 {
		b.WriteByte('-')
	}
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteString(frac)
	return b.String()
}

// FormatVolume abbreviates v with a K, M or B suffix; zero is "-".
func FormatVolume(v int64) string {
	f := float64(v)
	switch {
	case v == 0:
		return "-"
	case f >= 1e9:
		return fmt.Sprintf("%.2fB", f/1e9)
	case f >= 1e6:
		return fmt.Sprintf("%.2fM", f/1e6)
	case f >= 1e3:
		return fmt.Sprintf("%.2fK", f/1e3)
	default:
		return strconv.FormatInt(v, 10)
	}
}
