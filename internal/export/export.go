// Package export persists assembled datasets: a CSV per dataset always,
// plus optional parquet, SQLite and S3 copies and a YAML manifest.
package export

import (
	"context"
	"fmt"
	"time"

	"github.com/sabarim/komoditas/internal/config"
	"github.com/sabarim/komoditas/internal/frame"
	"github.com/sabarim/komoditas/internal/logger"
)

// Dataset is a named output table.
type Dataset struct {
	Name  string
	Frame *frame.Frame
}

// Sink persists a dataset and returns the paths it wrote.
type Sink interface {
	Name() string
	Write(ctx context.Context, ds Dataset) ([]string, error)
}

// Exporter writes datasets to every configured sink.
type Exporter struct {
	sinks        []Sink
	uploader     *Uploader
	manifestPath string
	closers      []func() error
	log          *logger.Entry
}

// NewExporter wires the sinks selected in cfg.Export. The CSV sink is
// always present.
func NewExporter(ctx context.Context, cfg config.Config) (*Exporter, error) {
	e := &Exporter{
		sinks:        []Sink{NewCSVSink(cfg.Dataset.OutputDir)},
		manifestPath: cfg.Export.ManifestPath,
		log:          logger.GetLogger().WithComponent("export"),
	}

	if cfg.Export.ParquetEnabled {
		e.sinks = append(e.sinks, NewParquetSink(cfg.Export.ParquetDir))
	}

	if cfg.Export.SQLitePath != "" {
		store, err := NewSQLiteSink(cfg.Export.SQLitePath)
		if err != nil {
			return nil, err
		}
		e.sinks = append(e.sinks, store)
		e.closers = append(e.closers, store.Close)
	}

	if cfg.Export.S3.Enabled {
		uploader, err := NewUploader(ctx, cfg.Export.S3, logger.GetLogger().RunID())
		if err != nil {
			e.Close()
			return nil, err
		}
		e.uploader = uploader
	}

	return e, nil
}

// NewExporterWith builds an exporter from explicit parts. A nil uploader
// disables uploads and an empty manifestPath skips the manifest.
func NewExporterWith(sinks []Sink, uploader *Uploader, manifestPath string) *Exporter {
	return &Exporter{
		sinks:        sinks,
		uploader:     uploader,
		manifestPath: manifestPath,
		log:          logger.GetLogger().WithComponent("export"),
	}
}

// Export writes every dataset to every sink, uploads the written files when
// S3 is enabled and finally records the run in the manifest.
func (e *Exporter) Export(ctx context.Context, datasets ...Dataset) (Manifest, error) {
	manifest := Manifest{
		RunID:       logger.GetLogger().RunID(),
		GeneratedAt: time.Now().UTC(),
	}

	for _, ds := range datasets {
		if ds.Frame == nil {
			return manifest, fmt.Errorf("dataset %s has no data", ds.Name)
		}
		entry := DatasetEntry{
			Name:    ds.Name,
			Rows:    ds.Frame.Len(),
			Columns: append([]string(nil), ds.Frame.Names()...),
		}

		for _, sink := range e.sinks {
			if err := ctx.Err(); err != nil {
				return manifest, err
			}
			files, err := sink.Write(ctx, ds)
			if err != nil {
				return manifest, fmt.Errorf("%s sink: %w", sink.Name(), err)
			}
			entry.Files = append(entry.Files, files...)
			for _, f := range files {
				e.log.LogDataFlow(ds.Name, f, ds.Frame.Len())
			}
		}

		manifest.Datasets = append(manifest.Datasets, entry)
	}

	if e.uploader != nil {
		// A file shared by several datasets, like the SQLite database, is
		// uploaded once.
		keys := make(map[string]string)
		for i := range manifest.Datasets {
			entry := &manifest.Datasets[i]
			for _, f := range entry.Files {
				key, ok := keys[f]
				if !ok {
					var err error
					if key, err = e.uploader.Upload(ctx, f); err != nil {
						return manifest, err
					}
					keys[f] = key
				}
				entry.Uploaded = append(entry.Uploaded, key)
			}
		}
	}

	if e.manifestPath == "" {
		return manifest, nil
	}
	if err := WriteManifest(e.manifestPath, manifest); err != nil {
		return manifest, err
	}
	if e.uploader != nil {
		if _, err := e.uploader.Upload(ctx, e.manifestPath); err != nil {
			return manifest, err
		}
	}
	e.log.WithFields(logger.Fields{"path": e.manifestPath, "datasets": len(manifest.Datasets)}).Info("manifest written")
	return manifest, nil
}

// Close releases sinks holding open resources.
func (e *Exporter) Close() error {
	var first error
	for _, c := range e.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	e.closers = nil
	return first
}
