package currency

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/sabarim/komoditas/internal/config"
	"github.com/sabarim/komoditas/internal/logger"
)

// Fetcher downloads every configured pair into <output_dir>/<pair>.csv.
type Fetcher struct {
	client *Client
	cfg    config.CurrencyConfig
	log    *logger.Entry
}

func NewFetcher(cfg config.CurrencyConfig) *Fetcher {
	return &Fetcher{
		client: NewClient(cfg),
		cfg:    cfg,
		log:    logger.GetLogger().WithComponent("currency"),
	}
}

// Run fetches each pair over the configured range. The end date is
// exclusive. A failing pair is logged and skipped; Run itself only fails on
// bad configuration, an unwritable output directory or cancellation.
// It returns the files written.
func (f *Fetcher) Run(ctx context.Context) ([]string, error) {
	from, to, err := config.ParseRange(f.cfg.Start, f.cfg.End)
	if err != nil {
		return nil, fmt.Errorf("currency range: %w", err)
	}
	if err := os.MkdirAll(f.cfg.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var written []string
	for _, pair := range f.cfg.Pairs {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		quotes, err := f.client.History(ctx, pair, from, to)
		if err != nil {
			if ctx.Err() != nil {
				return written, ctx.Err()
			}
			entry := f.log.WithFields(logger.Fields{"pair": pair}).WithError(err)
			if errors.Is(err, ErrNoData) {
				entry.Warn("no quotes for pair, skipping")
			} else {
				entry.Error("failed to fetch pair, skipping")
			}
			continue
		}

		path := filepath.Join(f.cfg.OutputDir, pair+".csv")
		if err := writeQuotes(path, quotes); err != nil {
			f.log.WithFields(logger.Fields{"pair": pair, "path": path}).WithError(err).Error("failed to save quotes")
			continue
		}
		written = append(written, path)
		f.log.WithFields(logger.Fields{
			"pair":  pair,
			"rows":  len(quotes),
			"path":  path,
			"range": from.Format("2006-01-02") + ".." + to.Add(-24*time.Hour).Format("2006-01-02"),
		}).Info("saved currency quotes")
	}
	return written, nil
}

func writeQuotes(path string, quotes []Quote) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := gocsv.MarshalFile(&quotes, file); err != nil {
		file.Close()
		return fmt.Errorf("failed to write quotes: %w", err)
	}
	return file.Close()
}
