package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/sabarim/komoditas/internal/logger"
)

const dateLayout = "2006-01-02"

// Config defines the application configuration structure
type Config struct {
	Dataset  DatasetConfig  `mapstructure:"dataset"`
	Calendar CalendarConfig `mapstructure:"calendar"`
	Currency CurrencyConfig `mapstructure:"currency"`
	Trends   TrendsConfig   `mapstructure:"trends"`
	Futures  FuturesConfig  `mapstructure:"futures"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Export   ExportConfig   `mapstructure:"export"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// DatasetConfig locates the competition inputs and where outputs go.
// Relative sub-directories resolve against Root or AdditionalRoot.
type DatasetConfig struct {
	Root                   string `mapstructure:"root"`
	GlobalCommodityDir     string `mapstructure:"global_commodity_dir"`
	GoogleTrendDir         string `mapstructure:"google_trend_dir"`
	RetailTrainDir         string `mapstructure:"retail_train_dir"`
	RetailTestDir          string `mapstructure:"retail_test_dir"`
	CurrencyDir            string `mapstructure:"currency_dir"`
	AdditionalRoot         string `mapstructure:"additional_root"`
	TestGlobalCommodityDir string `mapstructure:"test_global_commodity_dir"`
	TestCurrencyDir        string `mapstructure:"test_currency_dir"`
	OutputDir              string `mapstructure:"output_dir"`
}

// CalendarConfig holds the continuous date ranges every source is reindexed onto.
type CalendarConfig struct {
	TrainStart string `mapstructure:"train_start"`
	TrainEnd   string `mapstructure:"train_end"`
	TestStart  string `mapstructure:"test_start"`
	TestEnd    string `mapstructure:"test_end"`
}

// CurrencyConfig configures the exchange-rate fetcher
type CurrencyConfig struct {
	Pairs             []string `mapstructure:"pairs"`
	BaseURL           string   `mapstructure:"base_url"`
	Start             string   `mapstructure:"start"`
	End               string   `mapstructure:"end"`
	OutputDir         string   `mapstructure:"output_dir"`
	RequestsPerSecond float64  `mapstructure:"requests_per_second"`
	MaxRetries        int      `mapstructure:"max_retries"`
	TimeoutSeconds    int      `mapstructure:"timeout_seconds"`
	UserAgent         string   `mapstructure:"user_agent"`
}

// Region is a named Google Trends geo.
type Region struct {
	Name string `mapstructure:"name"`
	Geo  string `mapstructure:"geo"`
}

// TrendsConfig configures the search-trend fetcher
type TrendsConfig struct {
	Keywords        []string `mapstructure:"keywords"`
	Regions         []Region `mapstructure:"regions"`
	Language        string   `mapstructure:"language"`
	TZOffset        int      `mapstructure:"tz_offset"`
	Start           string   `mapstructure:"start"`
	End             string   `mapstructure:"end"`
	OutputDir       string   `mapstructure:"output_dir"`
	BaseURL         string   `mapstructure:"base_url"`
	MinDelaySeconds int      `mapstructure:"min_delay_seconds"`
	MaxDelaySeconds int      `mapstructure:"max_delay_seconds"`
	MaxAttempts     int      `mapstructure:"max_attempts"`
	TimeoutSeconds  int      `mapstructure:"timeout_seconds"`
}

// Underlying maps a broker futures symbol to the commodity name used in file names.
type Underlying struct {
	Symbol string `mapstructure:"symbol"`
	Name   string `mapstructure:"name"`
}

// FuturesConfig configures the commodity futures downloader
type FuturesConfig struct {
	Exchange        string       `mapstructure:"exchange"`
	Underlyings     []Underlying `mapstructure:"underlyings"`
	InstrumentsURL  string       `mapstructure:"instruments_url"`
	InstrumentsPath string       `mapstructure:"instruments_path"`
	Interval        string       `mapstructure:"interval"`
	Start           string       `mapstructure:"start"`
	End             string       `mapstructure:"end"`
	OutputDir       string       `mapstructure:"output_dir"`
	RequestDelay    int          `mapstructure:"request_delay"`
	MaxRetries      int          `mapstructure:"max_retries"`
}

// AuthConfig defines broker authentication configuration
type AuthConfig struct {
	AuthServiceURL    string `mapstructure:"auth_service_url"`
	AuthServiceAPIKey string `mapstructure:"auth_service_api_key"`
	BrokerName        string `mapstructure:"broker_name"`
	ApiKey            string `mapstructure:"api_key"`
	ApiSecret         string `mapstructure:"api_secret"`
	SessionToken      string `mapstructure:"session_token"`
}

// S3Config configures the optional upload of written files
type S3Config struct {
	Enabled         bool   `mapstructure:"enabled"`
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	PathStyle       bool   `mapstructure:"path_style"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// ExportConfig selects the extra sinks each dataset is written to
type ExportConfig struct {
	ParquetEnabled bool     `mapstructure:"parquet_enabled"`
	ParquetDir     string   `mapstructure:"parquet_dir"`
	SQLitePath     string   `mapstructure:"sqlite_path"`
	ManifestPath   string   `mapstructure:"manifest_path"`
	S3             S3Config `mapstructure:"s3"`
}

// LoggingConfig configures the logger
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
	MaxAge int    `mapstructure:"max_age"`
}

var envBindings = map[string]string{
	"dataset.root":            "KOMODITAS_DATASET_ROOT",
	"dataset.additional_root": "KOMODITAS_ADDITIONAL_ROOT",
	"dataset.output_dir":      "KOMODITAS_OUTPUT_DIR",

	"calendar.train_start": "KOMODITAS_TRAIN_START",
	"calendar.train_end":   "KOMODITAS_TRAIN_END",
	"calendar.test_start":  "KOMODITAS_TEST_START",
	"calendar.test_end":    "KOMODITAS_TEST_END",

	"currency.pairs":      "KOMODITAS_CURRENCY_PAIRS",
	"currency.base_url":   "KOMODITAS_CURRENCY_BASE_URL",
	"currency.output_dir": "KOMODITAS_CURRENCY_OUTPUT_DIR",

	"trends.keywords":          "KOMODITAS_TRENDS_KEYWORDS",
	"trends.base_url":          "KOMODITAS_TRENDS_BASE_URL",
	"trends.output_dir":        "KOMODITAS_TRENDS_OUTPUT_DIR",
	"trends.min_delay_seconds": "KOMODITAS_TRENDS_MIN_DELAY",
	"trends.max_delay_seconds": "KOMODITAS_TRENDS_MAX_DELAY",
	"trends.max_attempts":      "KOMODITAS_TRENDS_MAX_ATTEMPTS",

	"futures.exchange":         "KOMODITAS_FUTURES_EXCHANGE",
	"futures.instruments_url":  "KOMODITAS_INSTRUMENTS_URL",
	"futures.instruments_path": "KOMODITAS_INSTRUMENTS_PATH",
	"futures.output_dir":       "KOMODITAS_FUTURES_OUTPUT_DIR",
	"futures.request_delay":    "KOMODITAS_REQUEST_DELAY",
	"futures.max_retries":      "KOMODITAS_MAX_RETRIES",

	"auth.auth_service_url":     "KOMODITAS_AUTH_SERVICE_URL",
	"auth.auth_service_api_key": "KOMODITAS_AUTH_SERVICE_KEY",
	"auth.broker_name":          "KOMODITAS_BROKER_NAME",
	"auth.api_key":              "KOMODITAS_API_KEY",
	"auth.api_secret":           "KOMODITAS_API_SECRET",
	"auth.session_token":        "KOMODITAS_SESSION_TOKEN",

	"export.parquet_enabled":      "KOMODITAS_PARQUET_ENABLED",
	"export.parquet_dir":          "KOMODITAS_PARQUET_DIR",
	"export.sqlite_path":          "KOMODITAS_SQLITE_PATH",
	"export.manifest_path":        "KOMODITAS_MANIFEST_PATH",
	"export.s3.enabled":           "KOMODITAS_S3_ENABLED",
	"export.s3.bucket":            "KOMODITAS_S3_BUCKET",
	"export.s3.prefix":            "KOMODITAS_S3_PREFIX",
	"export.s3.region":            "KOMODITAS_S3_REGION",
	"export.s3.endpoint":          "KOMODITAS_S3_ENDPOINT",
	"export.s3.access_key_id":     "AWS_ACCESS_KEY_ID",
	"export.s3.secret_access_key": "AWS_SECRET_ACCESS_KEY",

	"logging.level":  "KOMODITAS_LOG_LEVEL",
	"logging.format": "KOMODITAS_LOG_FORMAT",
	"logging.output": "KOMODITAS_LOG_OUTPUT",
}

// LoadConfig loads configuration from file and overrides with environment variables
func LoadConfig(path string) (Config, error) {
	log := logger.GetLogger().WithComponent("config")

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("KOMODITAS")
	// 0 (UTC) is a valid offset
	v.SetDefault("trends.tz_offset", 420)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return Config{}, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		log.WithFields(logger.Fields{"path": path}).WithError(err).
			Warn("config file not readable, falling back to environment variables")
	} else {
		log.WithFields(logger.Fields{"path": v.ConfigFileUsed()}).Debug("loaded config file")
	}

	// Environment variables take precedence over the file.
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("error unmarshaling config: %w", err)
	}

	applyDefaults(&config)

	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

// applyDefaults sets default values for any config values not set from file or environment
func applyDefaults(config *Config) {
	d := &config.Dataset
	if d.Root == "" {
		d.Root = "../comodity-price-prediction-penyisihan-arkavidia-9"
	}
	if d.GlobalCommodityDir == "" {
		d.GlobalCommodityDir = "Global Commodity Price"
	}
	if d.GoogleTrendDir == "" {
		d.GoogleTrendDir = "Google Trend"
	}
	if d.RetailTrainDir == "" {
		d.RetailTrainDir = filepath.Join("Harga Bahan Pangan", "train")
	}
	if d.RetailTestDir == "" {
		d.RetailTestDir = filepath.Join("Harga Bahan Pangan", "test")
	}
	if d.CurrencyDir == "" {
		d.CurrencyDir = "Mata Uang"
	}
	if d.AdditionalRoot == "" {
		d.AdditionalRoot = "../AdditionalDataset"
	}
	if d.TestGlobalCommodityDir == "" {
		d.TestGlobalCommodityDir = "GlobalCommodity"
	}
	if d.TestCurrencyDir == "" {
		d.TestCurrencyDir = "CurrencyExchange"
	}
	if d.OutputDir == "" {
		d.OutputDir = d.Root
	}

	c := &config.Calendar
	if c.TrainStart == "" {
		c.TrainStart = "2022-01-01"
	}
	if c.TrainEnd == "" {
		c.TrainEnd = "2024-09-30"
	}
	if c.TestStart == "" {
		c.TestStart = "2024-10-01"
	}
	if c.TestEnd == "" {
		c.TestEnd = "2024-12-31"
	}

	cur := &config.Currency
	if len(cur.Pairs) == 0 {
		cur.Pairs = []string{"MYRUSD=X", "SGDUSD=X", "THBUSD=X", "USDIDR=X"}
	}
	if cur.BaseURL == "" {
		cur.BaseURL = "https://query1.finance.yahoo.com/v8/finance/chart/"
	}
	if cur.Start == "" {
		cur.Start = c.TestStart
	}
	if cur.End == "" {
		cur.End = c.TestEnd
	}
	if cur.OutputDir == "" {
		cur.OutputDir = d.TestCurrencyPath()
	}
	if cur.RequestsPerSecond <= 0 {
		cur.RequestsPerSecond = 1
	}
	if cur.MaxRetries == 0 {
		cur.MaxRetries = 3
	}
	if cur.TimeoutSeconds == 0 {
		cur.TimeoutSeconds = 20
	}
	if cur.UserAgent == "" {
		cur.UserAgent = "Mozilla/5.0 (compatible; komoditas/0.1)"
	}

	tr := &config.Trends
	if len(tr.Keywords) == 0 {
		tr.Keywords = []string{
			"bawang", "bawang merah", "bawang putih", "beras", "cabai",
			"cabai merah", "cabai rawit", "daging", "daging ayam", "daging sapi",
			"gula", "minyak goreng", "telur ayam", "tepung", "tepung terigu",
		}
	}
	if len(tr.Regions) == 0 {
		tr.Regions = []Region{{Name: "Indonesia", Geo: "ID"}}
	}
	if tr.Language == "" {
		tr.Language = "id"
	}
	if tr.Start == "" {
		tr.Start = c.TestStart
	}
	if tr.End == "" {
		tr.End = c.TestEnd
	}
	if tr.OutputDir == "" {
		tr.OutputDir = filepath.Join(d.AdditionalRoot, "GoogleTrend")
	}
	if tr.BaseURL == "" {
		tr.BaseURL = "https://trends.google.com"
	}
	if tr.MinDelaySeconds == 0 && tr.MaxDelaySeconds == 0 {
		tr.MinDelaySeconds = 25
		tr.MaxDelaySeconds = 75
	}
	if tr.MaxAttempts == 0 {
		tr.MaxAttempts = 5
	}
	if tr.TimeoutSeconds == 0 {
		tr.TimeoutSeconds = 30
	}

	fu := &config.Futures
	if fu.Exchange == "" {
		fu.Exchange = "MCX"
	}
	if len(fu.Underlyings) == 0 {
		fu.Underlyings = []Underlying{
			{Symbol: "GOLD", Name: "Gold"},
			{Symbol: "SILVER", Name: "Silver"},
			{Symbol: "CRUDEOIL", Name: "Crude Oil WTI"},
			{Symbol: "NATURALGAS", Name: "Natural Gas"},
			{Symbol: "COPPER", Name: "Copper"},
		}
	}
	if fu.InstrumentsURL == "" {
		fu.InstrumentsURL = "https://api.kite.trade/instruments/" + fu.Exchange
	}
	if fu.InstrumentsPath == "" {
		fu.InstrumentsPath = "./instruments.csv"
	}
	if fu.Interval == "" {
		fu.Interval = "day"
	}
	if fu.Start == "" {
		fu.Start = c.TestStart
	}
	if fu.End == "" {
		fu.End = c.TestEnd
	}
	if fu.OutputDir == "" {
		fu.OutputDir = d.TestGlobalCommodityPath()
	}
	if fu.RequestDelay == 0 {
		fu.RequestDelay = 500
	}
	if fu.MaxRetries == 0 {
		fu.MaxRetries = 3
	}

	if config.Auth.BrokerName == "" {
		config.Auth.BrokerName = "zerodha"
	}

	ex := &config.Export
	if ex.ParquetDir == "" {
		ex.ParquetDir = filepath.Join(d.OutputDir, "parquet")
	}
	if ex.ManifestPath == "" {
		ex.ManifestPath = filepath.Join(d.OutputDir, "manifest.yaml")
	}
	if ex.S3.Region == "" {
		ex.S3.Region = "ap-southeast-3"
	}
	if ex.S3.Prefix == "" {
		ex.S3.Prefix = "datasets"
	}

	l := &config.Logging
	if l.Level == "" {
		l.Level = "info"
	}
	if l.Format == "" {
		l.Format = "text"
	}
	if l.Output == "" {
		l.Output = "stdout"
	}
}

// Validate checks that every date range parses and is ordered.
func (c Config) Validate() error {
	ranges := []struct {
		name       string
		start, end string
	}{
		{"calendar.train", c.Calendar.TrainStart, c.Calendar.TrainEnd},
		{"calendar.test", c.Calendar.TestStart, c.Calendar.TestEnd},
		{"currency", c.Currency.Start, c.Currency.End},
		{"trends", c.Trends.Start, c.Trends.End},
		{"futures", c.Futures.Start, c.Futures.End},
	}
	for _, r := range ranges {
		if _, _, err := ParseRange(r.start, r.end); err != nil {
			return fmt.Errorf("%s: %w", r.name, err)
		}
	}
	if c.Trends.MinDelaySeconds < 0 || c.Trends.MaxDelaySeconds < c.Trends.MinDelaySeconds {
		return fmt.Errorf("trends: invalid delay range %d..%d seconds", c.Trends.MinDelaySeconds, c.Trends.MaxDelaySeconds)
	}
	if c.Trends.MaxAttempts < 1 {
		return errors.New("trends: max_attempts must be at least 1")
	}
	if c.Export.S3.Enabled && c.Export.S3.Bucket == "" {
		return errors.New("export.s3: bucket is required when enabled")
	}
	return nil
}

// ParseRange parses an inclusive YYYY-MM-DD date range.
func ParseRange(start, end string) (time.Time, time.Time, error) {
	s, err := time.Parse(dateLayout, start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start date %q: %w", start, err)
	}
	e, err := time.Parse(dateLayout, end)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end date %q: %w", end, err)
	}
	if e.Before(s) {
		return time.Time{}, time.Time{}, fmt.Errorf("end %s is before start %s", end, start)
	}
	return s, e, nil
}

// TrainRange returns the training calendar.
func (c CalendarConfig) TrainRange() (time.Time, time.Time, error) {
	return ParseRange(c.TrainStart, c.TrainEnd)
}

// TestRange returns the test calendar.
func (c CalendarConfig) TestRange() (time.Time, time.Time, error) {
	return ParseRange(c.TestStart, c.TestEnd)
}

func resolve(base, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

func (d DatasetConfig) GlobalCommodityPath() string { return resolve(d.Root, d.GlobalCommodityDir) }
func (d DatasetConfig) GoogleTrendPath() string     { return resolve(d.Root, d.GoogleTrendDir) }
func (d DatasetConfig) RetailTrainPath() string     { return resolve(d.Root, d.RetailTrainDir) }
func (d DatasetConfig) RetailTestPath() string      { return resolve(d.Root, d.RetailTestDir) }
func (d DatasetConfig) CurrencyPath() string        { return resolve(d.Root, d.CurrencyDir) }

func (d DatasetConfig) TestGlobalCommodityPath() string {
	return resolve(d.AdditionalRoot, d.TestGlobalCommodityDir)
}

func (d DatasetConfig) TestCurrencyPath() string {
	return resolve(d.AdditionalRoot, d.TestCurrencyDir)
}
