package futures

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	kiteconnect "github.com/zerodha/gokiteconnect/v4"

	"github.com/sabarim/komoditas/internal/config"
	"github.com/sabarim/komoditas/internal/logger"
)

// HistoricalClient is the part of the Kite client the downloader needs.
type HistoricalClient interface {
	GetHistoricalData(instrumentToken int, interval string, fromDate time.Time, toDate time.Time, continuous bool, OI bool) ([]kiteconnect.HistoricalData, error)
}

// maximum days Kite serves per request for each interval
var chunkDays = map[string]int{
	"minute":   60,
	"60minute": 400,
	"day":      2000,
}

// Downloader fetches continuous futures candles and writes one
// Investing.com-layout CSV per underlying.
type Downloader struct {
	client HistoricalClient
	cfg    config.FuturesConfig
	log    *logger.Entry

	sleep func(ctx context.Context, d time.Duration) error
}

func NewDownloader(cfg config.FuturesConfig, client HistoricalClient) *Downloader {
	return &Downloader{
		client: client,
		cfg:    cfg,
		log:    logger.GetLogger().WithComponent("futures"),
		sleep:  sleepContext,
	}
}

// KiteInterval maps the configured interval onto the Kite interval name.
func KiteInterval(interval string) (string, error) {
	switch interval {
	case "minute":
		return "minute", nil
	case "hour":
		return "60minute", nil
	case "day":
		return "day", nil
	default:
		return "", fmt.Errorf("invalid interval: %s", interval)
	}
}

// Download writes <output_dir>/<name> Futures Historical Data.csv for every
// target. A target that fails is logged and skipped. It returns the files
// written.
func (d *Downloader) Download(ctx context.Context, targets []Target) ([]string, error) {
	from, to, err := config.ParseRange(d.cfg.Start, d.cfg.End)
	if err != nil {
		return nil, fmt.Errorf("futures range: %w", err)
	}
	// end of the last day
	to = to.Add(24*time.Hour - time.Second)

	interval, err := KiteInterval(d.cfg.Interval)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(d.cfg.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var written []string
	for i, target := range targets {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		if i > 0 {
			if err := d.sleep(ctx, d.requestDelay()); err != nil {
				return written, err
			}
		}

		fields := logger.Fields{
			"underlying":    target.Underlying.Symbol,
			"tradingsymbol": target.Instrument.TradingSymbol,
			"instrument":    target.Instrument.InstrumentToken,
			"interval":      interval,
		}
		d.log.WithFields(fields).Info("downloading futures candles")

		candles, err := d.downloadWithRetry(ctx, target.Instrument.InstrumentToken, from, to, interval)
		if err != nil {
			if ctx.Err() != nil {
				return written, ctx.Err()
			}
			d.log.WithFields(fields).WithError(err).Error("failed to download candles, skipping")
			continue
		}
		daily := Daily(candles)
		if len(daily) == 0 {
			d.log.WithFields(fields).Warn("no candles in range, skipping")
			continue
		}

		path := filepath.Join(d.cfg.OutputDir, FileName(target.Underlying))
		if err := WriteInvesting(path, daily); err != nil {
			d.log.WithFields(fields).WithError(err).Error("failed to save candles")
			continue
		}
		written = append(written, path)
		d.log.WithFields(fields).WithFields(logger.Fields{"days": len(daily), "path": path}).Info("saved futures history")
	}
	return written, nil
}

// FileName is the Investing.com export name for an underlying.
func FileName(u config.Underlying) string {
	name := u.Name
	if name == "" {
		name = u.Symbol
	}
	return name + " Futures Historical Data.csv"
}

func (d *Downloader) requestDelay() time.Duration {
	return time.Duration(d.cfg.RequestDelay) * time.Millisecond
}

// downloadWithRetry splits [from, to] into chunks Kite accepts for interval.
func (d *Downloader) downloadWithRetry(ctx context.Context, token int64, from, to time.Time, interval string) ([]Candle, error) {
	limit := time.Duration(chunkDays[interval]) * 24 * time.Hour
	if to.Sub(from) <= limit {
		return d.downloadChunk(ctx, token, from, to, interval)
	}

	d.log.WithFields(logger.Fields{"days": int(to.Sub(from).Hours() / 24), "limit": chunkDays[interval]}).Debug("range exceeds request limit, chunking")

	var all []Candle
	for current := from; !current.After(to); {
		end := current.Add(limit)
		if end.After(to) {
			end = to
		}
		chunk, err := d.downloadChunk(ctx, token, current, end, interval)
		if err != nil {
			return nil, fmt.Errorf("error downloading chunk from %s to %s: %w",
				current.Format("2006-01-02"), end.Format("2006-01-02"), err)
		}
		all = append(all, chunk...)

		current = end.Add(time.Second)
		if !current.After(to) {
			if err := d.sleep(ctx, d.requestDelay()); err != nil {
				return nil, err
			}
		}
	}
	return all, nil
}

// downloadChunk fetches one range with retries, halving the range when Kite
// rejects it as too large.
func (d *Downloader) downloadChunk(ctx context.Context, token int64, from, to time.Time, interval string) ([]Candle, error) {
	attempts := d.cfg.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := d.client.GetHistoricalData(int(token), interval, from, to, true, false)
		if err == nil {
			candles := make([]Candle, 0, len(data))
			for _, bar := range data {
				candles = append(candles, Candle{
					Timestamp: bar.Date.Time,
					Open:      bar.Open,
					High:      bar.High,
					Low:       bar.Low,
					Close:     bar.Close,
					Volume:    int64(bar.Volume),
				})
			}
			return candles, nil
		}
		lastErr = err

		d.log.WithFields(logger.Fields{
			"attempt": i + 1,
			"from":    from.Format("2006-01-02"),
			"to":      to.Format("2006-01-02"),
		}).WithError(err).Warn("candle request failed")

		if rangeTooLarge(err) {
			if to.Sub(from) <= 5*24*time.Hour {
				return nil, fmt.Errorf("even a small date range failed: %w", err)
			}
			mid := from.Add(to.Sub(from) / 2)
			first, err := d.downloadChunk(ctx, token, from, mid, interval)
			if err != nil {
				return nil, err
			}
			if err := d.sleep(ctx, d.requestDelay()); err != nil {
				return nil, err
			}
			second, err := d.downloadChunk(ctx, token, mid.Add(time.Second), to, interval)
			if err != nil {
				return nil, err
			}
			return append(first, second...), nil
		}

		if i < attempts-1 {
			if err := d.sleep(ctx, 2*d.requestDelay()); err != nil {
				return nil, err
			}
		}
	}
	return nil, fmt.Errorf("failed to download chunk after %d attempts: %w", attempts, lastErr)
}

func rangeTooLarge(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "interval exceeds max limit") || strings.Contains(msg, "too many candles")
}

// Daily collapses intraday candles into one bar per calendar day in the
// candles' own time zone, sorted by date.
func Daily(candles []Candle) []Candle {
	byDay := make(map[string]*Candle)
	var days []string
	sorted := append([]Candle(nil), candles...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })

	for _, c := range sorted {
		key := c.Timestamp.Format("2006-01-02")
		bar, ok := byDay[key]
		if !ok {
			day := time.Date(c.Timestamp.Year(), c.Timestamp.Month(), c.Timestamp.Day(), 0, 0, 0, 0, time.UTC)
			byDay[key] = &Candle{Timestamp: day, Open: c.Open, High: c.High, Low: c.Low, Close: c.Close, Volume: c.Volume}
			days = append(days, key)
			continue
		}
		if c.High > bar.High {
			bar.High = c.High
		}
		if c.Low < bar.Low {
			bar.Low = c.Low
		}
		bar.Close = c.Close
		bar.Volume += c.Volume
	}

	out := make([]Candle, 0, len(days))
	for _, key := range days {
		out = append(out, *byDay[key])
	}
	return out
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
