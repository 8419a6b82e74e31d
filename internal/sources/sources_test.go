package sources

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sabarim/komoditas/internal/frame"
)

func writeFixture(t *testing.T, dir, name, data string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))
}

func values(t *testing.T, f *frame.Frame, name string) []string {
	t.Helper()
	cells, err := f.Column(name)
	require.NoError(t, err)
	out := make([]string, len(cells))
	for i, c := range cells {
		if c.Valid {
			out[i] = c.Value
		}
	}
	return out
}

func jan(d int) time.Time {
	return time.Date(2024, time.January, d, 0, 0, 0, 0, time.UTC)
}

func TestLoadGlobalCommodity(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "Gold Futures Historical Data.csv",
		"\"Date\",\"Price\",\"Open\",\"High\",\"Low\",\"Vol.\",\"Change %\"\n"+
			"\"01/03/2024\",\"2,050.00\",\"2,040.00\",\"2,060.00\",\"2,030.00\",\"1.5K\",\"0.50%\"\n"+
			"\"01/01/2024\",\"2,000.00\",\"1,990.00\",\"2,010.00\",\"1,980.00\",\"1.0K\",\"-0.50%\"\n")
	writeFixture(t, dir, "Silver Futures Historical Data.csv",
		"Date,Price,Open,High,Low,Vol.,Change %\n"+
			"01/01/2024,24.00,23.00,25.00,22.00,500,1.50%\n")

	f, err := LoadGlobalCommodity(dir, jan(1), jan(3))
	require.NoError(t, err)

	assert.Equal(t, []string{"Date", "GlobalOpen", "GlobalHigh", "GlobalLow", "GlobalVol.", "GlobalChange %", "GlobalPrice"}, f.Names())
	assert.Equal(t, []string{"2024-01-01", "2024-01-02", "2024-01-03"}, values(t, f, "Date"))
	assert.Equal(t, []string{"1006.5", "1006.5", "1031.5"}, values(t, f, "GlobalOpen"))
	assert.Equal(t, []string{"2010", "2010", "2060"}, values(t, f, "GlobalHigh"))
	assert.Equal(t, []string{"22", "22", "22"}, values(t, f, "GlobalLow"))
	assert.Equal(t, []string{"1500", "1500", "2000"}, values(t, f, "GlobalVol."))
	assert.Equal(t, []string{"0.5", "0.5", "1"}, values(t, f, "GlobalChange %"))
	assert.Equal(t, []string{"1012", "1012", "1037"}, values(t, f, "GlobalPrice"))
}

func TestLoadGlobalCommodityMissingColumn(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "Gold Futures Historical Data.csv", "Date,Price\n01/01/2024,1\n")

	_, err := LoadGlobalCommodity(dir, jan(1), jan(3))
	assert.ErrorIs(t, err, frame.ErrColumnNotFound)
}

func TestLoadGlobalCommodityEmptyDir(t *testing.T) {
	_, err := LoadGlobalCommodity(t.TempDir(), jan(1), jan(3))
	assert.Error(t, err)
}

func TestLoadRetailPrices(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "Beras.csv", "Date,Aceh,Bali\n2024-01-01,10,20\n2024-01-03,30,40\n")
	writeFixture(t, dir, "Gula.csv", "Date,Aceh\n2024-01-02,5\n")

	f, err := LoadRetailPrices(dir, jan(1), jan(3))
	require.NoError(t, err)

	assert.Equal(t, []string{"Date", "commodity", "province", "price"}, f.Names())
	require.Equal(t, 12, f.Len())
	assert.Equal(t, []string{"beras", "beras", "beras", "gula", "gula", "gula"}, values(t, f, "commodity")[:6])
	assert.Equal(t, []string{"10", "10", "30", "5", "5", "5"}, values(t, f, "price")[:6])
	assert.Equal(t, []string{"20", "20", "40", "", "", ""}, values(t, f, "price")[6:])
	for _, p := range values(t, f, "province")[6:] {
		assert.Equal(t, "Bali", p)
	}
}

func TestLoadCurrency(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "USDIDR=X.csv",
		"Price,Adj Close,Close,High,Low,Open,Volume\n"+
			"Ticker,USDIDR=X,USDIDR=X,USDIDR=X,USDIDR=X,USDIDR=X,USDIDR=X\n"+
			"Date,,,,,,\n"+
			"2024-01-01,15000,15000,15100,14900,14950,0\n"+
			"2024-01-02,15010,15010,15200,14950,15000,0\n")
	writeFixture(t, dir, "EURIDR=X.csv",
		"Date,Open,High,Low,Close,Adj Close,Volume\n"+
			"2024-01-01,17000,17100,16900,17050,17050,0\n")

	f, err := LoadCurrency(dir, jan(1), jan(2))
	require.NoError(t, err)

	assert.Equal(t, []string{"Date", "CE_Close", "CE_High", "CE_Low", "CE_Open"}, f.Names())
	assert.Equal(t, []string{"16025", "16030"}, values(t, f, "CE_Close"))
	assert.Equal(t, []string{"17100", "17100"}, values(t, f, "CE_High"))
	assert.Equal(t, []string{"14900", "14950"}, values(t, f, "CE_Low"))
	assert.Equal(t, []string{"15975", "16000"}, values(t, f, "CE_Open"))
}

func TestLoadGoogleTrends(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "beras/aceh.csv",
		"Category: All categories\n\nDay,beras: (Aceh)\n2024-01-01,0\n2024-01-02,<1\n2024-01-03,4\n")
	writeFixture(t, dir, "beras/bali.csv", "Day,beras: (Bali)\n2024-01-01,6\n2024-01-03,8\n")
	writeFixture(t, dir, "cabai merah/aceh.csv", "Date,cabai merah\n2024-01-02,10\n")

	f, err := LoadGoogleTrends(dir, jan(1), jan(3))
	require.NoError(t, err)

	assert.Equal(t, []string{"Date", "Commodity", "GTPrice"}, f.Names())
	assert.Equal(t, []string{"2024-01-01", "2024-01-01", "2024-01-02", "2024-01-02", "2024-01-03", "2024-01-03"}, values(t, f, "Date"))
	assert.Equal(t, []string{"beras", "cabai", "beras", "cabai", "beras", "cabai"}, values(t, f, "Commodity"))
	assert.Equal(t, []string{"4.125", "10", "3.25", "10", "6", "10"}, values(t, f, "GTPrice"))
}

func TestLoadGoogleTrendsAllZeroProvince(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "beras/aceh.csv", "Day,beras: (Aceh)\n2024-01-01,0\n2024-01-02,0\n2024-01-03,0\n")
	writeFixture(t, dir, "beras/bali.csv", "Day,beras: (Bali)\n2024-01-01,6\n2024-01-02,6\n2024-01-03,8\n")

	f, err := LoadGoogleTrends(dir, jan(1), jan(3))
	require.NoError(t, err)

	assert.Equal(t, []string{"2024-01-01", "2024-01-02", "2024-01-03"}, values(t, f, "Date"))
	assert.Equal(t, []string{"6", "6", "8"}, values(t, f, "GTPrice"))
}

func TestNormalizeDir(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "Gold Futures Historical Data.csv", "Date,Price\n\"01/01/2024\",\"2,000.5\"\n")
	writeFixture(t, dir, "notes.txt", "ignored")

	n, err := NormalizeDir(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	data, err := os.ReadFile(filepath.Join(dir, "Gold Futures Historical Data.csv"))
	require.NoError(t, err)
	assert.Equal(t, "Date,Price\n01/01/2024,\"2,000.5\"\n", string(data))
}

func TestNameHelpers(t *testing.T) {
	assert.Equal(t, "Crude Oil WTI", CommodityFromFuturesFile("Crude Oil WTI Futures Historical Data.csv"))
	assert.Equal(t, "GOLD", CommodityFromFuturesFile("GOLD.csv"))
	assert.Equal(t, "USDIDR", PairFromFile("USDIDR=X.csv"))
	assert.Equal(t, "bawang merah", CommodityFromRetailFile("Bawang Merah.csv"))
	assert.Equal(t, "cabai", NormalizeCommodity("  Cabai Rawit "))
	assert.Equal(t, "", NormalizeCommodity(" "))
}

func TestParseNumbers(t *testing.T) {
	v, err := ParseVolume("1.5K")
	require.NoError(t, err)
	assert.Equal(t, 1500.0, v)

	v, err = ParseVolume("2M")
	require.NoError(t, err)
	assert.Equal(t, 2e6, v)

	v, err = ParsePercent("-1.25%")
	require.NoError(t, err)
	assert.Equal(t, -1.25, v)

	v, err = ParsePrice("2,345.50")
	require.NoError(t, err)
	assert.Equal(t, 2345.5, v)

	_, err = ParseVolume("-")
	assert.Error(t, err)
}
