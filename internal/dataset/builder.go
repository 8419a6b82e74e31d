// Package dataset assembles the model-ready tables from the loaded sources.
package dataset

import (
	"context"
	"fmt"
	"time"

	"github.com/sabarim/komoditas/internal/config"
	"github.com/sabarim/komoditas/internal/export"
	"github.com/sabarim/komoditas/internal/frame"
	"github.com/sabarim/komoditas/internal/logger"
	"github.com/sabarim/komoditas/internal/sources"
)

// Output dataset names.
const (
	TrainingName      = "training_dataset"
	TestingName       = "testing_dataset"
	MixedTrainingName = "mixed_training_dataset"
)

const (
	retailNormColumn = "commodity_norm"
	trendNormColumn  = "Commodity_norm"
)

// Builder joins the sources configured in cfg.Dataset.
type Builder struct {
	cfg config.Config
	log *logger.Entry
}

func NewBuilder(cfg config.Config) *Builder {
	return &Builder{
		cfg: cfg,
		log: logger.GetLogger().WithComponent("dataset"),
	}
}

// Training assembles the training table over the train calendar. With mixed
// set the Google Trends index is joined as GTPrice.
func (b *Builder) Training(ctx context.Context, mixed bool) (export.Dataset, error) {
	start, end, err := b.cfg.Calendar.TrainRange()
	if err != nil {
		return export.Dataset{}, err
	}
	d := b.cfg.Dataset

	base, err := b.join(ctx, d.RetailTrainPath(), d.GlobalCommodityPath(), d.CurrencyPath(), start, end)
	if err != nil {
		return export.Dataset{}, err
	}

	name := TrainingName
	if mixed {
		if err := ctx.Err(); err != nil {
			return export.Dataset{}, err
		}
		trends, err := sources.LoadGoogleTrends(d.GoogleTrendPath(), start, end)
		if err != nil {
			return export.Dataset{}, fmt.Errorf("load google trends: %w", err)
		}
		if base, err = JoinTrends(base, trends); err != nil {
			return export.Dataset{}, err
		}
		name = MixedTrainingName
	}

	b.log.WithFields(logger.Fields{"dataset": name, "rows": base.Len(), "columns": len(base.Names())}).Info("dataset assembled")
	return export.Dataset{Name: name, Frame: base}, nil
}

// Testing assembles the test table over the test calendar. Futures and
// currency come from the additional dataset, and the price column is dropped.
func (b *Builder) Testing(ctx context.Context) (export.Dataset, error) {
	start, end, err := b.cfg.Calendar.TestRange()
	if err != nil {
		return export.Dataset{}, err
	}
	d := b.cfg.Dataset

	if _, err := sources.NormalizeDir(d.TestGlobalCommodityPath()); err != nil {
		return export.Dataset{}, fmt.Errorf("normalize test futures: %w", err)
	}

	base, err := b.join(ctx, d.RetailTestPath(), d.TestGlobalCommodityPath(), d.TestCurrencyPath(), start, end)
	if err != nil {
		return export.Dataset{}, err
	}
	base = base.Drop(sources.PriceColumn)

	b.log.WithFields(logger.Fields{"dataset": TestingName, "rows": base.Len(), "columns": len(base.Names())}).Info("dataset assembled")
	return export.Dataset{Name: TestingName, Frame: base}, nil
}

// join loads the three date-keyed sources and left-joins futures and
// currency onto the melted retail table.
func (b *Builder) join(ctx context.Context, retailDir, globalDir, currencyDir string, start, end time.Time) (*frame.Frame, error) {
	retail, err := sources.LoadRetailPrices(retailDir, start, end)
	if err != nil {
		return nil, fmt.Errorf("load retail prices: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	global, err := sources.LoadGlobalCommodity(globalDir, start, end)
	if err != nil {
		return nil, fmt.Errorf("load global commodity: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	currency, err := sources.LoadCurrency(currencyDir, start, end)
	if err != nil {
		return nil, fmt.Errorf("load currency exchange: %w", err)
	}

	return JoinSources(retail, global, currency)
}

// JoinSources left-joins the global and currency aggregates onto the retail
// base on Date. The result has exactly one row per retail row.
func JoinSources(retail, global, currency *frame.Frame) (*frame.Frame, error) {
	key := []string{sources.DateColumn}
	withGlobal, err := frame.LeftJoin(retail, global, key, key)
	if err != nil {
		return nil, fmt.Errorf("join global commodity: %w", err)
	}
	out, err := frame.LeftJoin(withGlobal, currency, key, key)
	if err != nil {
		return nil, fmt.Errorf("join currency exchange: %w", err)
	}
	return out, nil
}

// JoinTrends attaches GTPrice on (Date, first word of commodity). Trend rows
// sharing a normalized key are averaged first so the join stays one-to-one.
func JoinTrends(base, trends *frame.Frame) (*frame.Frame, error) {
	left := base.Copy()
	if err := left.Derive(retailNormColumn, sources.CommodityColumn, normalized); err != nil {
		return nil, err
	}

	right := trends.Copy()
	if err := right.Derive(trendNormColumn, "Commodity", normalized); err != nil {
		return nil, err
	}
	right, err := frame.GroupBy(right, []string{sources.DateColumn, trendNormColumn}, []frame.Agg{
		{Column: sources.TrendColumn, Func: frame.Mean},
	})
	if err != nil {
		return nil, fmt.Errorf("aggregate google trends: %w", err)
	}

	out, err := frame.LeftJoin(left,
		right,
		[]string{sources.DateColumn, retailNormColumn},
		[]string{sources.DateColumn, trendNormColumn},
	)
	if err != nil {
		return nil, fmt.Errorf("join google trends: %w", err)
	}
	return out.Drop(retailNormColumn, trendNormColumn), nil
}

func normalized(c frame.Cell) frame.Cell {
	if !c.Valid {
		return c
	}
	return frame.Str(sources.NormalizeCommodity(c.Value))
}
