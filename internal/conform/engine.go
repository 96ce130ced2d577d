// Package conform is the conformance engine: it turns the two raw record
// streams (song catalog and usage log) into the five typed row-sets of the
// star schema, resolving the event-to-catalog join and deduplicating
// dimension candidates.
//
// Execution model: extraction and filtering are data-parallel across worker
// goroutines (partitions of the input); deduplication, join resolution, and
// surrogate-key assignment happen in a single global merge phase, since
// uniqueness and monotonic ordering are global properties.
//
// Failure semantics are fail-soft at the record level: malformed records are
// dropped with a logged warning and a counter bump, never aborting the run.
// Empty inputs yield empty row-sets.
package conform

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync/atomic"

	"github.com/bwmarrin/snowflake"
	"golang.org/x/sync/errgroup"

	"musicdw/internal/schema"
	"musicdw/pkg/records"
)

// warnLimit caps per-category warning lines; the totals land in Stats.
const warnLimit = 3

// Stats holds cross-goroutine counters for one engine run. All fields are
// updated atomically.
type Stats struct {
	CatalogRecords   atomic.Int64 // catalog records read
	EventRecords     atomic.Int64 // event records read
	PlayEvents       atomic.Int64 // events surviving the page filter
	MalformedCatalog atomic.Int64 // catalog rows dropped for bad/missing fields
	MalformedEvents  atomic.Int64 // play events dropped for bad/missing fields
	UnmatchedEvents  atomic.Int64 // play events with no catalog match
	ResolvedPlays    atomic.Int64 // fact rows emitted
}

// RowSets is the conformed output: the four dimensions plus the fact rows.
type RowSets struct {
	Songs   []schema.Song
	Artists []schema.Artist
	Users   []schema.User
	Time    []schema.TimeBucket
	Plays   []schema.SongPlay
}

// Options configures an Engine.
type Options struct {
	// NodeID seeds the snowflake generator (0..1023). Distinct pipeline
	// instances writing to the same output should use distinct node IDs.
	NodeID int64

	// Workers is the extraction fan-out width. Values < 1 default to 4.
	Workers int
}

// Engine conforms raw record streams into star-schema row-sets.
type Engine struct {
	node    *snowflake.Node
	workers int
}

// New constructs an Engine.
func New(opts Options) (*Engine, error) {
	node, err := snowflake.NewNode(opts.NodeID)
	if err != nil {
		return nil, fmt.Errorf("conform: snowflake node: %w", err)
	}
	w := opts.Workers
	if w < 1 {
		w = 4
	}
	return &Engine{node: node, workers: w}, nil
}

// IsPlayEvent reports whether the event records a song play. This is the only
// row-level predicate in the pipeline.
func IsPlayEvent(rec records.Record) bool {
	page, ok := rec.Str("page")
	return ok && page == schema.PageNextSong
}

// FilterPlayEvents retains only song-play events, preserving input order.
func FilterPlayEvents(recs []records.Record) []records.Record {
	out := make([]records.Record, 0, len(recs))
	for _, r := range recs {
		if IsPlayEvent(r) {
			out = append(out, r)
		}
	}
	return out
}

// seqRec tags a record with its arrival sequence so the merge phase can
// restore a stable order after the parallel partition phase.
type seqRec struct {
	seq int64
	rec records.Record
}

// Run drains both input channels and returns the conformed row-sets. It
// returns an error only on context cancellation; record-level problems are
// absorbed into Stats.
func (e *Engine) Run(ctx context.Context, catalog, events <-chan records.Record) (*RowSets, *Stats, error) {
	stats := &Stats{}

	var (
		catSeq, evtSeq atomic.Int64
		catParts       = make([][]seqRec, e.workers)
		evtParts       = make([][]seqRec, e.workers)
	)
	g, gctx := errgroup.WithContext(ctx)

	// Partition phase: workers drain the shared channels independently.
	// Catalog records pass through untouched; events are filtered down to
	// song plays here so the merge phase only sees relevant rows.
	for i := 0; i < e.workers; i++ {
		i := i
		g.Go(func() error {
			cat, evt := catalog, events
			for cat != nil || evt != nil {
				select {
				case <-gctx.Done():
					return gctx.Err()
				case rec, ok := <-cat:
					if !ok {
						cat = nil
						continue
					}
					stats.CatalogRecords.Add(1)
					catParts[i] = append(catParts[i], seqRec{seq: catSeq.Add(1), rec: rec})
				case rec, ok := <-evt:
					if !ok {
						evt = nil
						continue
					}
					stats.EventRecords.Add(1)
					if !IsPlayEvent(rec) {
						continue
					}
					stats.PlayEvents.Add(1)
					evtParts[i] = append(evtParts[i], seqRec{seq: evtSeq.Add(1), rec: rec})
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, stats, err
	}

	catalogRecs := mergeParts(catParts)
	playRecs := mergeParts(evtParts)

	out := &RowSets{}
	out.Songs = e.conformSongs(catalogRecs, stats)
	out.Artists = e.conformArtists(catalogRecs, stats)
	out.Users = e.conformUsers(playRecs, stats)
	out.Plays, out.Time = e.resolvePlays(playRecs, out.Songs, out.Artists, stats)
	return out, stats, nil
}

// mergeParts flattens worker partitions back into arrival order.
func mergeParts(parts [][]seqRec) []records.Record {
	var n int
	for _, p := range parts {
		n += len(p)
	}
	all := make([]seqRec, 0, n)
	for _, p := range parts {
		all = append(all, p...)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].seq < all[j].seq })
	out := make([]records.Record, len(all))
	for i, sr := range all {
		out[i] = sr.rec
	}
	return out
}

func (e *Engine) conformSongs(recs []records.Record, stats *Stats) []schema.Song {
	rows := ExtractDimension(recs, SongDimension)
	out := make([]schema.Song, 0, len(rows))
	var warned int64
	for _, r := range rows {
		id, _ := r.Str("song_id")
		title, okTitle := r.Str("title")
		artistID, okArtist := r.Str("artist_id")
		dur, okDur := r.Float("duration")
		if !okTitle || !okArtist || !okDur || dur <= 0 {
			stats.MalformedCatalog.Add(1)
			warned = warnf(warned, "conform: dropping catalog song %q: missing title/artist_id or bad duration", id)
			continue
		}
		year, _ := r.Int64("year") // 0 = unknown
		out = append(out, schema.Song{SongID: id, Title: title, ArtistID: artistID, Year: year, Duration: dur})
	}
	return out
}

func (e *Engine) conformArtists(recs []records.Record, stats *Stats) []schema.Artist {
	rows := ExtractDimension(recs, ArtistDimension)
	out := make([]schema.Artist, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))
	var warned int64
	for _, r := range rows {
		id, _ := r.Str("artist_id")
		name, ok := r.Str("name")
		if !ok {
			stats.MalformedCatalog.Add(1)
			warned = warnf(warned, "conform: dropping catalog artist %q: missing name", id)
			continue
		}
		// The catalog repeats artists across songs with occasionally
		// divergent location data; the insert-or-ignore policy keeps the
		// first, so collapse to first-seen here as well.
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		a := schema.Artist{ArtistID: id, Name: name}
		if loc, ok := r.Str("location"); ok {
			a.Location = &loc
		}
		if lat, ok := r.Float("latitude"); ok {
			a.Latitude = &lat
		}
		if lon, ok := r.Float("longitude"); ok {
			a.Longitude = &lon
		}
		out = append(out, a)
	}
	return out
}

func (e *Engine) conformUsers(recs []records.Record, stats *Stats) []schema.User {
	// Level resolution is by event timestamp, matching the warehouse
	// promotion's MAX(ts) rule. Arrival sequence is not a substitute: the
	// partition workers race on channel receives, so adjacent events can
	// swap places in the merged order.
	ordered := make([]records.Record, len(recs))
	copy(ordered, recs)
	sort.SliceStable(ordered, func(i, j int) bool {
		ti, _ := ordered[i].Int64("ts")
		tj, _ := ordered[j].Int64("ts")
		return ti < tj
	})

	rows := ExtractDimension(ordered, UserDimension)
	out := make([]schema.User, 0, len(rows))
	var warned int64
	for _, r := range rows {
		id, ok := r.Int64("user_id")
		if !ok {
			stats.MalformedEvents.Add(1)
			warned = warnf(warned, "conform: dropping user row: non-numeric user_id %v", r["user_id"])
			continue
		}
		u := schema.User{UserID: id}
		u.FirstName, _ = r.Str("first_name")
		u.LastName, _ = r.Str("last_name")
		u.Level, _ = r.Str("level")
		if g, ok := r.Str("gender"); ok {
			u.Gender = &g
		}
		out = append(out, u)
	}
	return out
}

// resolvePlays joins filtered events against the catalog, assigns surrogate
// keys in resolution order, and derives the deduplicated time dimension.
func (e *Engine) resolvePlays(recs []records.Record, songs []schema.Song, artists []schema.Artist, stats *Stats) ([]schema.SongPlay, []schema.TimeBucket) {
	ix := NewCatalogIndex(songs, artists)

	plays := make([]schema.SongPlay, 0, len(recs))
	buckets := make(map[int64]schema.TimeBucket)
	var warned int64

	for _, rec := range recs {
		ts, okTS := rec.Int64("ts")
		userID, okUser := rec.Int64("userId")
		sessionID, okSess := rec.Int64("sessionId")
		if !okTS || !okUser || !okSess {
			stats.MalformedEvents.Add(1)
			warned = warnf(warned, "conform: dropping play event: bad ts/userId/sessionId (ts=%v userId=%v)", rec["ts"], rec["userId"])
			continue
		}

		title, okTitle := rec.Str("song")
		artist, okArtist := rec.Str("artist")
		if !okTitle || !okArtist {
			// No join key; expected for some log rows, not an error.
			stats.UnmatchedEvents.Add(1)
			continue
		}

		var length *float64
		if l, ok := rec.Float("length"); ok {
			length = &l
		}

		matches := ix.Resolve(title, artist, length)
		if len(matches) == 0 {
			stats.UnmatchedEvents.Add(1)
			continue
		}

		level, _ := rec.Str("level")
		var location, userAgent *string
		if v, ok := rec.Str("location"); ok {
			location = &v
		}
		if v, ok := rec.Str("userAgent"); ok {
			userAgent = &v
		}

		bucket := DeriveTimeBucket(ts)
		if _, ok := buckets[bucket.StartTime]; !ok {
			buckets[bucket.StartTime] = bucket
		}

		for _, m := range matches {
			plays = append(plays, schema.SongPlay{
				SongplayID: e.node.Generate().Int64(),
				StartTime:  bucket.StartTime,
				UserID:     userID,
				Level:      level,
				SongID:     m.SongID,
				ArtistID:   m.ArtistID,
				SessionID:  sessionID,
				Location:   location,
				UserAgent:  userAgent,
			})
			stats.ResolvedPlays.Add(1)
		}
	}

	times := make([]schema.TimeBucket, 0, len(buckets))
	for _, b := range buckets {
		times = append(times, b)
	}
	sort.Slice(times, func(i, j int) bool { return times[i].StartTime < times[j].StartTime })
	return plays, times
}

// warnf logs up to warnLimit messages per call site, returning the updated
// count. Total drops stay visible through Stats.
func warnf(n int64, format string, args ...any) int64 {
	if n < warnLimit {
		log.Printf(format, args...)
	} else if n == warnLimit {
		log.Printf("conform: further warnings of this kind suppressed")
	}
	return n + 1
}
