package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "2022-01-01", cfg.Calendar.TrainStart)
	assert.Equal(t, "2024-09-30", cfg.Calendar.TrainEnd)
	assert.Equal(t, []string{"MYRUSD=X", "SGDUSD=X", "THBUSD=X", "USDIDR=X"}, cfg.Currency.Pairs)
	assert.Len(t, cfg.Trends.Keywords, 15)
	assert.Equal(t, 25, cfg.Trends.MinDelaySeconds)
	assert.Equal(t, 75, cfg.Trends.MaxDelaySeconds)
	assert.Equal(t, 420, cfg.Trends.TZOffset)
	assert.Equal(t, cfg.Dataset.Root, cfg.Dataset.OutputDir)
	assert.Equal(t, filepath.Join(cfg.Dataset.Root, "Harga Bahan Pangan", "train"), cfg.Dataset.RetailTrainPath())
	assert.Equal(t, filepath.Join(cfg.Dataset.AdditionalRoot, "CurrencyExchange"), cfg.Currency.OutputDir)
	assert.Equal(t, "https://api.kite.trade/instruments/MCX", cfg.Futures.InstrumentsURL)
}

func TestLoadConfigKeepsZeroTZOffset(t *testing.T) {
	path := writeConfig(t, `
trends:
  tz_offset: 0
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Trends.TZOffset)

	path = writeConfig(t, `
trends:
  tz_offset: -60
`)
	cfg, err = LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, -60, cfg.Trends.TZOffset)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
dataset:
  root: /data/arkavidia
  currency_dir: /elsewhere/fx
calendar:
  train_start: "2023-01-01"
trends:
  keywords: [beras, gula]
  regions:
    - name: Jawa Barat
      geo: ID-JB
  min_delay_seconds: 1
  max_delay_seconds: 2
futures:
  underlyings:
    - symbol: GOLD
      name: Gold
`)
	t.Setenv("KOMODITAS_TRAIN_END", "2023-06-30")
	t.Setenv("KOMODITAS_CURRENCY_PAIRS", "USDIDR=X,SGDUSD=X")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "2023-01-01", cfg.Calendar.TrainStart)
	assert.Equal(t, "2023-06-30", cfg.Calendar.TrainEnd)
	assert.Equal(t, []string{"USDIDR=X", "SGDUSD=X"}, cfg.Currency.Pairs)
	assert.Equal(t, []string{"beras", "gula"}, cfg.Trends.Keywords)
	assert.Equal(t, []Region{{Name: "Jawa Barat", Geo: "ID-JB"}}, cfg.Trends.Regions)
	assert.Equal(t, "/elsewhere/fx", cfg.Dataset.CurrencyPath())
	assert.Equal(t, filepath.Join("/data/arkavidia", "Global Commodity Price"), cfg.Dataset.GlobalCommodityPath())
	assert.Len(t, cfg.Futures.Underlyings, 1)
}

func TestLoadConfigRejectsInvertedRange(t *testing.T) {
	path := writeConfig(t, `
calendar:
  test_start: "2024-12-31"
  test_end: "2024-10-01"
`)
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestParseRange(t *testing.T) {
	start, end, err := ParseRange("2024-10-01", "2024-12-31")
	require.NoError(t, err)
	assert.Equal(t, 91, int(end.Sub(start).Hours()/24)+1)

	_, _, err = ParseRange("2024/10/01", "2024-12-31")
	assert.Error(t, err)
}

func TestValidateS3NeedsBucket(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	cfg.Export.S3.Enabled = true
	assert.Error(t, cfg.Validate())
}
