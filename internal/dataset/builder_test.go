package dataset

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sabarim/komoditas/internal/config"
	"github.com/sabarim/komoditas/internal/frame"
)

func writeFixture(t *testing.T, root, name, data string) {
	t.Helper()
	path := filepath.Join(root, name)
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

func testConfig(t *testing.T) config.Config {
	t.Helper()
	root := t.TempDir()
	additional := t.TempDir()

	writeFixture(t, root, "Global Commodity Price/Gold Futures Historical Data.csv",
		"Date,Price,Open,High,Low,Vol.,Change %\n"+
			"01/03/2024,\"2,050.00\",\"2,040.00\",\"2,060.00\",\"2,030.00\",1.5K,0.50%\n"+
			"01/01/2024,\"2,000.00\",\"1,990.00\",\"2,010.00\",\"1,980.00\",1.0K,-0.50%\n")
	writeFixture(t, root, "Harga Bahan Pangan/train/Beras.csv",
		"Date,Aceh,Bali\n2024-01-01,12000,12500\n2024-01-03,12100,12600\n")
	writeFixture(t, root, "Harga Bahan Pangan/train/Cabai Rawit.csv",
		"Date,Aceh,Bali\n2024-01-02,50000,52000\n")
	writeFixture(t, root, "Mata Uang/USDIDR=X.csv",
		"Date,Open,High,Low,Close,Adj Close,Volume\n"+
			"2024-01-01,15500,15600,15400,15550,15550,0\n")
	writeFixture(t, root, "Google Trend/beras/aceh.csv", "Date,beras\n2024-01-01,40\n2024-01-03,50\n")
	writeFixture(t, root, "Google Trend/cabai merah/aceh.csv", "Date,cabai merah\n2024-01-01,10\n")
	writeFixture(t, root, "Google Trend/cabai rawit/aceh.csv", "Date,cabai rawit\n2024-01-01,20\n")

	writeFixture(t, root, "Harga Bahan Pangan/test/Beras.csv", "Date,Aceh\n2024-10-01,\n")
	writeFixture(t, additional, "GlobalCommodity/Gold Futures Historical Data.csv",
		"\"Date\",\"Price\",\"Open\",\"High\",\"Low\",\"Vol.\",\"Change %\"\n"+
			"\"10/01/2024\",\"2,650.00\",\"2,640.00\",\"2,660.00\",\"2,630.00\",\"2.0K\",\"0.10%\"\n")
	writeFixture(t, additional, "CurrencyExchange/USDIDR=X.csv",
		"Date,Open,High,Low,Close,Adj Close,Volume\n2024-10-01,15200,15300,15100,15250,15250,0\n")

	return config.Config{
		Dataset: config.DatasetConfig{
			Root:                   root,
			GlobalCommodityDir:     "Global Commodity Price",
			GoogleTrendDir:         "Google Trend",
			RetailTrainDir:         "Harga Bahan Pangan/train",
			RetailTestDir:          "Harga Bahan Pangan/test",
			CurrencyDir:            "Mata Uang",
			AdditionalRoot:         additional,
			TestGlobalCommodityDir: "GlobalCommodity",
			TestCurrencyDir:        "CurrencyExchange",
			OutputDir:              root,
		},
		Calendar: config.CalendarConfig{
			TrainStart: "2024-01-01",
			TrainEnd:   "2024-01-03",
			TestStart:  "2024-10-01",
			TestEnd:    "2024-10-02",
		},
	}
}

var joinedColumns = []string{
	"Date", "commodity", "province", "price",
	"GlobalOpen", "GlobalHigh", "GlobalLow", "GlobalVol.", "GlobalChange %", "GlobalPrice",
	"CE_Close", "CE_High", "CE_Low", "CE_Open",
}

func TestTrainingPreservesRetailRows(t *testing.T) {
	ds, err := NewBuilder(testConfig(t)).Training(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, TrainingName, ds.Name)
	assert.Equal(t, joinedColumns, ds.Frame.Names())
	// two commodities, three days, two provinces
	require.Equal(t, 12, ds.Frame.Len())
	assert.Equal(t, []string{"12000", "12000", "12100"}, values(t, ds.Frame, "price")[:3])
	assert.Equal(t, []string{"2000", "2000", "2050"}, values(t, ds.Frame, "GlobalPrice")[:3])
	for _, v := range values(t, ds.Frame, "CE_Close") {
		assert.Equal(t, "15550", v)
	}
}

func TestMixedTrainingJoinsTrends(t *testing.T) {
	ds, err := NewBuilder(testConfig(t)).Training(context.Background(), true)
	require.NoError(t, err)

	assert.Equal(t, MixedTrainingName, ds.Name)
	assert.Equal(t, append(append([]string(nil), joinedColumns...), "GTPrice"), ds.Frame.Names())
	require.Equal(t, 12, ds.Frame.Len())

	commodities := values(t, ds.Frame, "commodity")
	trend := values(t, ds.Frame, "GTPrice")
	for i, c := range commodities {
		switch c {
		case "beras":
			assert.Contains(t, []string{"40", "50"}, trend[i])
		case "cabai rawit":
			// cabai merah and cabai rawit share the key "cabai"
			assert.Equal(t, "15", trend[i])
		default:
			t.Fatalf("unexpected commodity %q", c)
		}
	}
}

func TestTestingDropsPrice(t *testing.T) {
	cfg := testConfig(t)
	ds, err := NewBuilder(cfg).Testing(context.Background())
	require.NoError(t, err)

	assert.Equal(t, TestingName, ds.Name)
	assert.False(t, ds.Frame.Has("price"))
	require.Equal(t, 2, ds.Frame.Len())
	assert.Equal(t, []string{"2024-10-01", "2024-10-02"}, values(t, ds.Frame, "Date"))
	assert.Equal(t, []string{"2650", "2650"}, values(t, ds.Frame, "GlobalPrice"))
	assert.Equal(t, []string{"15250", "15250"}, values(t, ds.Frame, "CE_Close"))

	data, err := os.ReadFile(filepath.Join(cfg.Dataset.TestGlobalCommodityPath(), "Gold Futures Historical Data.csv"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "Date,Price,Open,High,Low,Vol.,Change %\n"))
}

func TestTrainingCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewBuilder(testConfig(t)).Training(ctx, false)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestJoinTrendsNeedsCommodity(t *testing.T) {
	base := frame.New("Date", "commodity")
	_, err := JoinTrends(base, frame.New("Date", "GTPrice"))
	assert.ErrorIs(t, err, frame.ErrColumnNotFound)
}
