// This file wires one pipeline run end-to-end. It keeps the CLI layer thin:
// it depends only on the source/sink interfaces and the variant drivers, and
// never imports database drivers directly.
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"musicdw/internal/config"
	"musicdw/internal/conform"
	"musicdw/internal/lake"
	"musicdw/internal/metrics"
	"musicdw/internal/schema"
	"musicdw/internal/schema/ddl"
	"musicdw/internal/source"
	s3source "musicdw/internal/source/s3"
	"musicdw/internal/storage"
	"musicdw/internal/warehouse"
	"musicdw/pkg/records"
)

// Function variables used to introduce test seams.
// In production these point to real implementations; tests can override them.
var (
	newRepositoryFn = func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return storage.New(ctx, cfg)
	}

	newS3ReaderFn = func(bucket, prefix, region string) (*s3source.Reader, error) {
		return s3source.NewReader(bucket, prefix, region)
	}

	newS3SinkFn = func(bucket, prefix, region string) (lake.Sink, error) {
		return lake.NewS3Sink(bucket, prefix, region)
	}
)

// run executes one full pipeline pass for the given config: build the two
// source readers, then hand off to the variant selected by storage.kind.
func run(ctx context.Context, p config.Pipeline) error {
	catalog, events, err := newSources(p)
	if err != nil {
		return err
	}

	switch p.Storage.Kind {
	case "postgres", "sqlite":
		err = runWarehouse(ctx, p, catalog, events)
	case "lake":
		err = runLake(ctx, p, catalog, events)
	default:
		err = fmt.Errorf("unsupported storage.kind=%s", p.Storage.Kind)
	}

	logSourceStats(p.Job, "catalog", catalog)
	logSourceStats(p.Job, "events", events)
	return err
}

// newSources builds the catalog and event readers from the source config.
// The two record families live under separate roots (or prefixes), so each
// gets its own reader.
func newSources(p config.Pipeline) (source.CatalogReader, source.EventReader, error) {
	switch p.Source.Kind {
	case "file":
		return source.NewDir(p.Source.File.SongData), source.NewDir(p.Source.File.LogData), nil

	case "s3":
		s3 := p.Source.S3
		catalog, err := newS3ReaderFn(s3.Bucket, s3.SongPrefix, s3.Region)
		if err != nil {
			return nil, nil, fmt.Errorf("source: s3 catalog reader: %w", err)
		}
		events, err := newS3ReaderFn(s3.Bucket, s3.LogPrefix, s3.Region)
		if err != nil {
			return nil, nil, fmt.Errorf("source: s3 event reader: %w", err)
		}
		return catalog, events, nil

	default:
		return nil, nil, fmt.Errorf("unsupported source.kind=%s", p.Source.Kind)
	}
}

// runWarehouse executes the staged variant: copy raw records into staging
// tables, then promote them into the star schema with set-based SQL.
func runWarehouse(ctx context.Context, p config.Pipeline, catalog source.CatalogReader, events source.EventReader) error {
	repo, err := newRepositoryFn(ctx, storage.Config{
		Kind: p.Storage.Kind,
		DSN:  p.Storage.DB.DSN,
	})
	if err != nil {
		return fmt.Errorf("init repo: %w", err)
	}
	defer repo.Close()

	w := &warehouse.Warehouse{
		Repo:      repo,
		Dialect:   ddl.Dialect(p.Storage.Kind),
		BatchSize: p.Runtime.BatchSize,
		Buffer:    p.Runtime.ChannelBuffer,
	}

	if p.Storage.DB.DropFirst {
		if err := w.DropSchema(ctx); err != nil {
			return err
		}
	}

	start := time.Now()
	err = w.Run(ctx, catalog, events)
	metrics.RecordPhase(p.Job, "warehouse", err, time.Since(start))
	return err
}

// runLake executes the in-memory variant: drain both readers into the
// conformance engine, then export the row-sets as partitioned parquet.
func runLake(ctx context.Context, p config.Pipeline, catalog source.CatalogReader, events source.EventReader) error {
	eng, err := conform.New(conform.Options{
		NodeID:  p.Runtime.NodeID,
		Workers: p.Runtime.Workers,
	})
	if err != nil {
		return err
	}

	buffer := p.Runtime.ChannelBuffer
	if buffer <= 0 {
		buffer = 1024
	}
	catCh := make(chan records.Record, buffer)
	evtCh := make(chan records.Record, buffer)

	var (
		sets  *conform.RowSets
		stats *conform.Stats
	)

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(catCh)
		return catalog.ReadCatalog(gctx, catCh)
	})
	g.Go(func() error {
		defer close(evtCh)
		return events.ReadEvents(gctx, evtCh)
	})
	g.Go(func() error {
		var err error
		sets, stats, err = eng.Run(gctx, catCh, evtCh)
		return err
	})
	err = g.Wait()
	metrics.RecordPhase(p.Job, "conform", err, time.Since(start))
	if err != nil {
		return err
	}
	logConformStats(p.Job, stats)

	sink, err := newSink(p.Storage.Lake)
	if err != nil {
		return err
	}

	start = time.Now()
	err = lake.Export(ctx, sink, sets)
	metrics.RecordPhase(p.Job, "export", err, time.Since(start))
	if err != nil {
		return err
	}

	for _, t := range []struct {
		table string
		rows  int
	}{
		{schema.Songs, len(sets.Songs)},
		{schema.Artists, len(sets.Artists)},
		{schema.Users, len(sets.Users)},
		{schema.TimeTable, len(sets.Time)},
		{schema.Songplays, len(sets.Plays)},
	} {
		metrics.RecordTableRows(p.Job, t.table, int64(t.rows))
	}
	return nil
}

// newSink builds the parquet destination from the lake config.
func newSink(cfg config.LakeConfig) (lake.Sink, error) {
	switch cfg.Kind {
	case "file":
		return lake.NewDirSink(cfg.Path)
	case "s3":
		return newS3SinkFn(cfg.Bucket, cfg.Prefix, cfg.Region)
	default:
		return nil, fmt.Errorf("unsupported storage.lake.kind=%s", cfg.Kind)
	}
}

// logConformStats prints the end-of-run conformance summary and forwards the
// counters to the metrics backend.
func logConformStats(job string, s *conform.Stats) {
	malformed := s.MalformedCatalog.Load() + s.MalformedEvents.Load()
	log.Printf(
		"summary: catalog=%d events=%d plays=%d malformed=%d unmatched=%d resolved=%d",
		s.CatalogRecords.Load(),
		s.EventRecords.Load(),
		s.PlayEvents.Load(),
		malformed,
		s.UnmatchedEvents.Load(),
		s.ResolvedPlays.Load(),
	)

	metrics.RecordRow(job, "catalog_records", s.CatalogRecords.Load())
	metrics.RecordRow(job, "event_records", s.EventRecords.Load())
	metrics.RecordRow(job, "play_events", s.PlayEvents.Load())
	metrics.RecordRow(job, "malformed", malformed)
	metrics.RecordRow(job, "unmatched", s.UnmatchedEvents.Load())
	metrics.RecordRow(job, "resolved_plays", s.ResolvedPlays.Load())
}

// logSourceStats prints per-reader file and record counts when the reader
// exposes them.
func logSourceStats(job, name string, rd any) {
	s, ok := rd.(interface{ Stats() *source.Stats })
	if !ok {
		return
	}
	files, recs, bad := s.Stats().Snapshot()
	log.Printf("source: %s files=%d records=%d bad_records=%d", name, files, recs, bad)
	metrics.RecordRow(job, name+"_bad_records", bad)
}
