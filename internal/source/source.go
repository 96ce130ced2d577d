// Package source streams raw catalog and event records into the pipeline.
//
// Two record families exist in the Sparkify layout:
//
//   - catalog files: one JSON object per file describing a song and its artist
//     (song_data/A/B/C/TRABCEI128F424C983.json).
//   - event logs: newline-delimited JSON, one listening event per line
//     (log_data/2018/11/2018-11-01-events.json).
//
// Readers write decoded records into a caller-owned channel and return when
// the tree is exhausted or the context is cancelled. I/O failures (unreadable
// file, list error) abort the read; individual undecodable lines are dropped,
// counted, and reported through the reader's warning hook.
package source

import (
	"context"
	"sync/atomic"

	"musicdw/pkg/records"
)

// CatalogReader streams song-metadata records.
type CatalogReader interface {
	ReadCatalog(ctx context.Context, out chan<- records.Record) error
}

// EventReader streams usage-log records.
type EventReader interface {
	ReadEvents(ctx context.Context, out chan<- records.Record) error
}

// Stats counts what a reader saw. Counters are cumulative across calls.
type Stats struct {
	Files      atomic.Int64
	Records    atomic.Int64
	BadRecords atomic.Int64
}

// Snapshot returns the current counter values as plain integers.
func (s *Stats) Snapshot() (files, recs, bad int64) {
	return s.Files.Load(), s.Records.Load(), s.BadRecords.Load()
}
