package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/sabarim/komoditas/internal/auth"
	"github.com/sabarim/komoditas/internal/config"
	"github.com/sabarim/komoditas/internal/currency"
	"github.com/sabarim/komoditas/internal/dataset"
	"github.com/sabarim/komoditas/internal/export"
	"github.com/sabarim/komoditas/internal/futures"
	"github.com/sabarim/komoditas/internal/instruments"
	"github.com/sabarim/komoditas/internal/logger"
	"github.com/sabarim/komoditas/internal/sources"
	"github.com/sabarim/komoditas/internal/trends"
)

var (
	configFile string
	verbose    bool

	// fetch overrides
	fromDate     string
	toDate       string
	outputDir    string
	maxRetries   int
	requestDelay int
	interval     string

	// auth overrides
	authServiceURL string
	authServiceKey string
	brokerName     string
	apiKey         string
	apiSecret      string
	sessionToken   string

	// build overrides
	mixed          bool
	datasetRoot    string
	datasetOutput  string
	parquetEnabled bool
	sqlitePath     string

	cfg config.Config
)

var version_string = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:     "komoditas",
		Short:   "Assemble commodity price datasets",
		Long:    `Fetches currency, search-trend and futures history and joins them with retail food prices into training and test tables.`,
		Version: version_string,

		SilenceUsage:      true,
		PersistentPreRunE: setup,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "config.yaml", "Path to config file")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable verbose logging")

	rootCmd.AddCommand(fetchCommand(), normalizeCommand(), buildCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads .env and the config file, then configures logging.
func setup(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	loaded, err := config.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}
	cfg = loaded

	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	if err := logger.GetLogger().Configure(level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		return fmt.Errorf("failed to configure logging: %w", err)
	}
	logger.GetLogger().WithComponent("main").WithFields(logger.Fields{
		"command": cmd.CommandPath(),
		"config":  configFile,
		"run_id":  logger.GetLogger().RunID(),
	}).Debug("configuration loaded")
	return nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigchan := make(chan os.Signal, 1)
	signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigchan:
			logger.GetLogger().WithComponent("main").WithFields(logger.Fields{"signal": sig.String()}).
				Warn("received signal, initiating shutdown")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigchan)
	}()
	return ctx, cancel
}

func fetchCommand() *cobra.Command {
	fetchCmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download raw source data",
	}

	addRangeFlags := func(c *cobra.Command) {
		c.Flags().StringVar(&fromDate, "from", "", "Start date (YYYY-MM-DD)")
		c.Flags().StringVar(&toDate, "to", "", "End date (YYYY-MM-DD)")
		c.Flags().StringVar(&outputDir, "output-dir", "", "Output directory for CSV files")
	}

	currencyCmd := &cobra.Command{
		Use:   "currency",
		Short: "Download daily exchange rates from Yahoo Finance",
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := &cfg.Currency
			overrideRange(&cc.Start, &cc.End, &cc.OutputDir)
			if maxRetries > 0 {
				cc.MaxRetries = maxRetries
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()
			files, err := currency.NewFetcher(*cc).Run(ctx)
			if err != nil {
				return err
			}
			logger.GetLogger().WithComponent("main").WithFields(logger.Fields{"files": len(files), "dir": cc.OutputDir}).Info("currency fetch completed")
			return nil
		},
	}
	addRangeFlags(currencyCmd)
	currencyCmd.Flags().IntVar(&maxRetries, "max-retries", 0, "Maximum number of retries for failed requests")

	trendsCmd := &cobra.Command{
		Use:   "trends",
		Short: "Download daily Google Trends interest",
		RunE: func(cmd *cobra.Command, args []string) error {
			tc := &cfg.Trends
			overrideRange(&tc.Start, &tc.End, &tc.OutputDir)
			if err := cfg.Validate(); err != nil {
				return err
			}

			fetcher, err := trends.NewFetcher(*tc)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()
			res, err := fetcher.Run(ctx)
			if err != nil {
				return err
			}
			logger.GetLogger().WithComponent("main").WithFields(logger.Fields{
				"series":  len(res.Series),
				"skipped": len(res.Skipped),
				"files":   len(res.Files),
			}).Info("trends fetch completed")
			return nil
		},
	}
	addRangeFlags(trendsCmd)

	futuresCmd := &cobra.Command{
		Use:   "futures",
		Short: "Download continuous commodity futures history from Kite",
		RunE:  runFutures,
	}
	addRangeFlags(futuresCmd)
	futuresCmd.Flags().StringVar(&interval, "interval", "", "Time interval (minute, hour, day)")
	futuresCmd.Flags().IntVar(&requestDelay, "request-delay", 0, "Delay between requests in milliseconds")
	futuresCmd.Flags().IntVar(&maxRetries, "max-retries", 0, "Maximum number of retries for failed requests")
	futuresCmd.Flags().StringVar(&authServiceURL, "auth-service-url", "", "URL of the auth service")
	futuresCmd.Flags().StringVar(&authServiceKey, "auth-service-key", "", "API key for the auth service")
	futuresCmd.Flags().StringVar(&brokerName, "broker", "", "Broker name (default is zerodha)")
	futuresCmd.Flags().StringVar(&apiKey, "api-key", "", "Broker API key (if not using auth service)")
	futuresCmd.Flags().StringVar(&apiSecret, "api-secret", "", "Broker API secret (if not using auth service)")
	futuresCmd.Flags().StringVar(&sessionToken, "session-token", "", "Broker session token (if not using auth service)")

	fetchCmd.AddCommand(currencyCmd, trendsCmd, futuresCmd)
	return fetchCmd
}

func overrideRange(start, end, dir *string) {
	if fromDate != "" {
		*start = fromDate
	}
	if toDate != "" {
		*end = toDate
	}
	if outputDir != "" {
		*dir = outputDir
	}
}

func runFutures(cmd *cobra.Command, args []string) error {
	log := logger.GetLogger().WithComponent("main")

	fc := &cfg.Futures
	overrideRange(&fc.Start, &fc.End, &fc.OutputDir)
	if interval != "" {
		fc.Interval = interval
	}
	if requestDelay > 0 {
		fc.RequestDelay = requestDelay
	}
	if maxRetries > 0 {
		fc.MaxRetries = maxRetries
	}

	ac := &cfg.Auth
	if authServiceURL != "" {
		ac.AuthServiceURL = authServiceURL
	}
	if authServiceKey != "" {
		ac.AuthServiceAPIKey = authServiceKey
	}
	if brokerName != "" {
		ac.BrokerName = brokerName
	}
	if apiKey != "" {
		ac.ApiKey = apiKey
	}
	if apiSecret != "" {
		ac.ApiSecret = apiSecret
	}
	if sessionToken != "" {
		ac.SessionToken = sessionToken
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	kiteClient, err := auth.NewAuthManager(*ac).GetClient(ctx)
	if err != nil {
		return fmt.Errorf("failed to get authenticated client: %w", err)
	}

	instrumentManager := instruments.NewInstrumentManager(*fc)
	if err := instrumentManager.DownloadInstruments(ctx); err != nil {
		return fmt.Errorf("failed to download instruments: %w", err)
	}

	// Continuous data is requested through the contract that is live today.
	now := time.Now()
	var targets []futures.Target
	for _, u := range fc.Underlyings {
		contract, err := instrumentManager.FrontMonth(u.Symbol, now)
		if err != nil {
			log.WithFields(logger.Fields{"underlying": u.Symbol}).WithError(err).Warn("no live contract, skipping")
			continue
		}
		targets = append(targets, futures.Target{Underlying: u, Instrument: contract})
	}
	if len(targets) == 0 {
		return errors.New("no valid futures contracts found for the configured underlyings")
	}
	log.WithFields(logger.Fields{"targets": len(targets)}).Info("found futures contracts to download")

	files, err := futures.NewDownloader(*fc, kiteClient).Download(ctx, targets)
	if err != nil {
		return err
	}
	log.WithFields(logger.Fields{"files": len(files), "dir": fc.OutputDir}).Info("futures fetch completed")
	return nil
}

func normalizeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "normalize <dir>",
		Short: "Rewrite every CSV in a directory with canonical quoting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := sources.NormalizeDir(args[0])
			if err != nil {
				return err
			}
			logger.GetLogger().WithComponent("main").WithFields(logger.Fields{"dir": args[0], "files": n}).Info("normalized CSV files")
			return nil
		},
	}
}

func buildCommand() *cobra.Command {
	buildCmd := &cobra.Command{
		Use:   "build",
		Short: "Assemble and export datasets",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := setup(cmd, args); err != nil {
				return err
			}
			d := &cfg.Dataset
			if datasetRoot != "" {
				// outputs follow the root unless placed elsewhere
				if d.OutputDir == d.Root && datasetOutput == "" {
					datasetOutput = datasetRoot
				}
				d.Root = datasetRoot
			}
			if datasetOutput != "" {
				d.OutputDir = datasetOutput
				cfg.Export.ParquetDir = filepath.Join(datasetOutput, "parquet")
				cfg.Export.ManifestPath = filepath.Join(datasetOutput, "manifest.yaml")
			}
			if parquetEnabled {
				cfg.Export.ParquetEnabled = true
			}
			if sqlitePath != "" {
				cfg.Export.SQLitePath = sqlitePath
			}
			return nil
		},
	}
	buildCmd.PersistentFlags().StringVar(&datasetRoot, "root", "", "Competition dataset root directory")
	buildCmd.PersistentFlags().StringVar(&datasetOutput, "output-dir", "", "Output directory for datasets")
	buildCmd.PersistentFlags().BoolVar(&parquetEnabled, "parquet", false, "Also write Parquet copies")
	buildCmd.PersistentFlags().StringVar(&sqlitePath, "sqlite", "", "Also write datasets to this SQLite database")

	trainCmd := &cobra.Command{
		Use:   "train",
		Short: "Assemble the training dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(func(ctx context.Context, b *dataset.Builder) ([]export.Dataset, error) {
				ds, err := b.Training(ctx, mixed)
				return []export.Dataset{ds}, err
			})
		},
	}
	trainCmd.Flags().BoolVar(&mixed, "mixed", false, "Join Google Trends interest as GTPrice")

	testCmd := &cobra.Command{
		Use:   "test",
		Short: "Assemble the testing dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(func(ctx context.Context, b *dataset.Builder) ([]export.Dataset, error) {
				ds, err := b.Testing(ctx)
				return []export.Dataset{ds}, err
			})
		},
	}

	allCmd := &cobra.Command{
		Use:   "all",
		Short: "Assemble training, testing and mixed training datasets",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(func(ctx context.Context, b *dataset.Builder) ([]export.Dataset, error) {
				training, err := b.Training(ctx, false)
				if err != nil {
					return nil, err
				}
				testing, err := b.Testing(ctx)
				if err != nil {
					return nil, err
				}
				mixedTraining, err := b.Training(ctx, true)
				if err != nil {
					return nil, err
				}
				return []export.Dataset{training, testing, mixedTraining}, nil
			})
		},
	}

	buildCmd.AddCommand(trainCmd, testCmd, allCmd)
	return buildCmd
}

// runBuild assembles every dataset before anything is written.
func runBuild(assemble func(context.Context, *dataset.Builder) ([]export.Dataset, error)) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	datasets, err := assemble(ctx, dataset.NewBuilder(cfg))
	if err != nil {
		return err
	}

	exporter, err := export.NewExporter(ctx, cfg)
	if err != nil {
		return err
	}
	defer exporter.Close()

	manifest, err := exporter.Export(ctx, datasets...)
	if err != nil {
		return err
	}
	logger.GetLogger().WithComponent("main").WithFields(logger.Fields{
		"datasets": len(manifest.Datasets),
		"run_id":   manifest.RunID,
	}).Info("datasets exported")
	return nil
}
