package trends

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sabarim/komoditas/internal/config"
	"github.com/sabarim/komoditas/internal/frame"
	"github.com/sabarim/komoditas/internal/logger"
)

type job struct {
	keyword  string
	region   config.Region
	attempts int
}

// Series is the fetched interest of one keyword in one region.
type Series struct {
	Keyword string
	Region  config.Region
	Points  []Point
}

// Result summarizes a fetch run.
type Result struct {
	Series  []Series
	Skipped []string
	Files   []string
}

// Fetcher walks every keyword and region through a retry queue. A failed
// request goes to the back of the queue until it has failed MaxAttempts
// times, then it is skipped.
type Fetcher struct {
	client interest
	cfg    config.TrendsConfig
	log    *logger.Entry

	sleep func(ctx context.Context, d time.Duration) error
	delay func() time.Duration
}

type interest interface {
	Interest(ctx context.Context, keyword, geo, timeframe string) ([]Point, error)
}

func NewFetcher(cfg config.TrendsConfig) (*Fetcher, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return newFetcher(client, cfg), nil
}

func newFetcher(client interest, cfg config.TrendsConfig) *Fetcher {
	minDelay := time.Duration(cfg.MinDelaySeconds) * time.Second
	maxDelay := time.Duration(cfg.MaxDelaySeconds) * time.Second
	return &Fetcher{
		client: client,
		cfg:    cfg,
		log:    logger.GetLogger().WithComponent("trends"),
		sleep:  sleepContext,
		delay: func() time.Duration {
			if maxDelay <= minDelay {
				return minDelay
			}
			return minDelay + time.Duration(rand.Int63n(int64(maxDelay-minDelay)))
		},
	}
}

// Run fetches everything, then writes <output_dir>/<keyword>/<region>.csv
// per series and one wide file per region.
func (f *Fetcher) Run(ctx context.Context) (Result, error) {
	var res Result
	if _, _, err := config.ParseRange(f.cfg.Start, f.cfg.End); err != nil {
		return res, fmt.Errorf("trends range: %w", err)
	}
	timeframe := f.cfg.Start + " " + f.cfg.End

	maxAttempts := f.cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var queue []*job
	for _, kw := range f.cfg.Keywords {
		for _, region := range f.cfg.Regions {
			queue = append(queue, &job{keyword: kw, region: region})
		}
	}

	first := true
	for len(queue) > 0 {
		j := queue[0]
		queue = queue[1:]

		if !first {
			if err := f.sleep(ctx, f.delay()); err != nil {
				return res, err
			}
		}
		first = false

		j.attempts++
		log := f.log.WithFields(logger.Fields{"keyword": j.keyword, "region": j.region.Name, "attempt": j.attempts})
		points, err := f.client.Interest(ctx, j.keyword, j.region.Geo, timeframe)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			if errors.Is(err, ErrNoData) {
				log.Warn("no trend data, skipping")
				res.Skipped = append(res.Skipped, j.keyword+"/"+j.region.Name)
				continue
			}
			if j.attempts < maxAttempts {
				log.WithError(err).Warn("trend request failed, re-queued")
				queue = append(queue, j)
				continue
			}
			log.WithError(err).Error("trend request failed too often, skipping")
			res.Skipped = append(res.Skipped, j.keyword+"/"+j.region.Name)
			continue
		}

		log.WithFields(logger.Fields{"points": len(points)}).Info("fetched trend data")
		res.Series = append(res.Series, Series{Keyword: j.keyword, Region: j.region, Points: points})
	}

	files, err := f.write(res.Series)
	res.Files = files
	return res, err
}

func (f *Fetcher) write(series []Series) ([]string, error) {
	var files []string
	byRegion := make(map[string][]Series)
	var regions []string
	for _, s := range series {
		path := filepath.Join(f.cfg.OutputDir, s.Keyword, strings.ToLower(s.Region.Name)+".csv")
		if err := frame.WriteFile(path, seriesFrame(s)); err != nil {
			return files, err
		}
		files = append(files, path)

		if _, ok := byRegion[s.Region.Name]; !ok {
			regions = append(regions, s.Region.Name)
		}
		byRegion[s.Region.Name] = append(byRegion[s.Region.Name], s)
	}

	for _, region := range regions {
		name := "google_trends.csv"
		if len(f.cfg.Regions) > 1 {
			name = "google_trends_" + strings.ToLower(region) + ".csv"
		}
		path := filepath.Join(f.cfg.OutputDir, name)
		if err := frame.WriteFile(path, Wide(byRegion[region])); err != nil {
			return files, err
		}
		files = append(files, path)
		f.log.WithFields(logger.Fields{"path": path, "keywords": len(byRegion[region])}).Info("saved wide trend file")
	}
	return files, nil
}

func seriesFrame(s Series) *frame.Frame {
	rows := make([][]frame.Cell, len(s.Points))
	for i, p := range s.Points {
		rows[i] = []frame.Cell{frame.Str(frame.FormatDate(p.Date)), frame.Str(strconv.Itoa(p.Value))}
	}
	return frame.FromRows([]string{"Date", s.Keyword}, rows)
}

// Wide lays several series out as Date plus one column per keyword, over
// the union of their dates.
func Wide(series []Series) *frame.Frame {
	columns := []string{"Date"}
	values := make(map[string][]frame.Cell)
	for i, s := range series {
		columns = append(columns, s.Keyword)
		for _, p := range s.Points {
			key := frame.FormatDate(p.Date)
			row, ok := values[key]
			if !ok {
				row = make([]frame.Cell, len(series))
				values[key] = row
			}
			row[i] = frame.Str(strconv.Itoa(p.Value))
		}
	}

	dates := make([]string, 0, len(values))
	for d := range values {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	rows := make([][]frame.Cell, len(dates))
	for i, d := range dates {
		rows[i] = append([]frame.Cell{frame.Str(d)}, values[d]...)
	}
	return frame.FromRows(columns, rows)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
