package conform

import (
	"context"
	"strconv"
	"testing"

	"musicdw/internal/schema"
	"musicdw/internal/upsert"
	"musicdw/pkg/records"
)

// feed returns a closed-when-drained channel carrying recs.
func feed(recs []records.Record) <-chan records.Record {
	ch := make(chan records.Record, len(recs)+1)
	for _, r := range recs {
		ch <- r
	}
	close(ch)
	return ch
}

func newEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(Options{NodeID: 1, Workers: 2})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func fixYouCatalog() []records.Record {
	return []records.Record{
		{
			"song_id":     "S1",
			"title":       "Fix You",
			"artist_id":   "A1",
			"artist_name": "Coldplay",
			"duration":    293.5,
			"year":        2005.0,
		},
	}
}

func fixYouEvent() records.Record {
	return records.Record{
		"song":      "Fix You",
		"artist":    "Coldplay",
		"userId":    7.0,
		"firstName": "Ada",
		"lastName":  "Lovelace",
		"gender":    "F",
		"level":     "paid",
		"sessionId": 583.0,
		"ts":        1541121934796.0,
		"page":      "NextSong",
	}
}

func TestRun_ResolvesPlayAgainstCatalog(t *testing.T) {
	t.Parallel()

	e := newEngine(t)
	out, stats, err := e.Run(context.Background(), feed(fixYouCatalog()), feed([]records.Record{fixYouEvent()}))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got, want := len(out.Plays), 1; got != want {
		t.Fatalf("plays = %d, want %d", got, want)
	}
	p := out.Plays[0]
	if p.SongID != "S1" || p.ArtistID != "A1" {
		t.Fatalf("play keys = %s/%s, want S1/A1", p.SongID, p.ArtistID)
	}
	if got, want := p.UserID, int64(7); got != want {
		t.Fatalf("user_id = %d, want %d", got, want)
	}
	if got, want := p.StartTime, int64(1541121934); got != want {
		t.Fatalf("start_time = %d, want %d", got, want)
	}
	if p.SongplayID == 0 {
		t.Fatalf("songplay_id not assigned")
	}

	if got, want := len(out.Time), 1; got != want {
		t.Fatalf("time rows = %d, want %d", got, want)
	}
	if got, want := out.Time[0].StartTime, int64(1541121934); got != want {
		t.Fatalf("time start_time = %d, want %d", got, want)
	}

	if got, want := len(out.Songs), 1; got != want {
		t.Fatalf("songs = %d, want %d", got, want)
	}
	if got, want := len(out.Artists), 1; got != want {
		t.Fatalf("artists = %d, want %d", got, want)
	}
	if got, want := len(out.Users), 1; got != want {
		t.Fatalf("users = %d, want %d", got, want)
	}
	if got, want := stats.ResolvedPlays.Load(), int64(1); got != want {
		t.Fatalf("resolved = %d, want %d", got, want)
	}
}

func TestRun_NonPlayEventFilteredBeforeJoin(t *testing.T) {
	t.Parallel()

	ev := fixYouEvent()
	ev["page"] = "Home"

	e := newEngine(t)
	out, stats, err := e.Run(context.Background(), feed(fixYouCatalog()), feed([]records.Record{ev}))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := len(out.Plays); got != 0 {
		t.Fatalf("plays = %d, want 0", got)
	}
	if got := len(out.Users); got != 0 {
		t.Fatalf("users = %d, want 0 (dimension extraction follows the filter)", got)
	}
	if got := stats.PlayEvents.Load(); got != 0 {
		t.Fatalf("play events = %d, want 0", got)
	}
}

func TestRun_NoCatalogMatchIsNotAnError(t *testing.T) {
	t.Parallel()

	ev := fixYouEvent()
	ev["song"] = "Yellow"

	e := newEngine(t)
	out, stats, err := e.Run(context.Background(), feed(fixYouCatalog()), feed([]records.Record{ev}))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := len(out.Plays); got != 0 {
		t.Fatalf("plays = %d, want 0", got)
	}
	if got, want := stats.UnmatchedEvents.Load(), int64(1); got != want {
		t.Fatalf("unmatched = %d, want %d", got, want)
	}
	// The user dimension still sees the event.
	if got, want := len(out.Users), 1; got != want {
		t.Fatalf("users = %d, want %d", got, want)
	}
}

func TestRun_MalformedEventDroppedRunContinues(t *testing.T) {
	t.Parallel()

	bad := fixYouEvent()
	bad["ts"] = "not-a-timestamp"

	e := newEngine(t)
	out, stats, err := e.Run(context.Background(), feed(fixYouCatalog()), feed([]records.Record{bad, fixYouEvent()}))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got, want := len(out.Plays), 1; got != want {
		t.Fatalf("plays = %d, want %d", got, want)
	}
	if got, want := stats.MalformedEvents.Load(), int64(1); got != want {
		t.Fatalf("malformed = %d, want %d", got, want)
	}
}

func TestRun_EmptyInputsYieldEmptyRowSets(t *testing.T) {
	t.Parallel()

	e := newEngine(t)
	out, _, err := e.Run(context.Background(), feed(nil), feed(nil))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out.Songs)+len(out.Artists)+len(out.Users)+len(out.Time)+len(out.Plays) != 0 {
		t.Fatalf("expected all row-sets empty, got %+v", out)
	}
}

func TestRun_SurrogateKeysUniqueAndIncreasing(t *testing.T) {
	t.Parallel()

	events := make([]records.Record, 0, 50)
	for i := 0; i < 50; i++ {
		ev := fixYouEvent()
		ev["ts"] = 1541121934796.0 + float64(i*60000)
		events = append(events, ev)
	}

	e := newEngine(t)
	out, _, err := e.Run(context.Background(), feed(fixYouCatalog()), feed(events))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got, want := len(out.Plays), 50; got != want {
		t.Fatalf("plays = %d, want %d", got, want)
	}
	seen := make(map[int64]struct{}, len(out.Plays))
	prev := int64(-1)
	for i, p := range out.Plays {
		if _, dup := seen[p.SongplayID]; dup {
			t.Fatalf("duplicate songplay_id %d at %d", p.SongplayID, i)
		}
		seen[p.SongplayID] = struct{}{}
		if p.SongplayID <= prev {
			t.Fatalf("songplay_id not increasing at %d: %d <= %d", i, p.SongplayID, prev)
		}
		prev = p.SongplayID
	}
}

func TestRun_DuplicateCatalogTitlesEmitOnePlayPerMatch(t *testing.T) {
	t.Parallel()

	catalog := fixYouCatalog()
	dup := records.Record{
		"song_id":     "S2",
		"title":       "Fix You",
		"artist_id":   "A1",
		"artist_name": "Coldplay",
		"duration":    293.9,
	}
	catalog = append(catalog, dup)

	e := newEngine(t)
	out, _, err := e.Run(context.Background(), feed(catalog), feed([]records.Record{fixYouEvent()}))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got, want := len(out.Plays), 2; got != want {
		t.Fatalf("plays = %d, want %d (one per catalog match)", got, want)
	}
	// Both fact rows reference resolvable catalog songs.
	ids := map[string]bool{}
	for _, s := range out.Songs {
		ids[s.SongID] = true
	}
	for _, p := range out.Plays {
		if !ids[p.SongID] {
			t.Fatalf("orphan fact row: song_id %q not in songs", p.SongID)
		}
	}
}

func TestRun_ParallelPartitionsMatchSingleWorker(t *testing.T) {
	t.Parallel()

	catalog := fixYouCatalog()
	events := make([]records.Record, 0, 40)
	for i := 0; i < 40; i++ {
		ev := fixYouEvent()
		ev["ts"] = 1541121934796.0 + float64(i*1000)
		events = append(events, ev)
	}

	run := func(workers int) *RowSets {
		e, err := New(Options{NodeID: 2, Workers: workers})
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		out, _, err := e.Run(context.Background(), feed(catalog), feed(events))
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		return out
	}

	one := run(1)
	eight := run(8)

	if got, want := len(eight.Plays), len(one.Plays); got != want {
		t.Fatalf("plays: %d workers=8 vs %d workers=1", got, want)
	}
	if got, want := len(eight.Time), len(one.Time); got != want {
		t.Fatalf("time rows: %d vs %d", got, want)
	}
	if got, want := len(eight.Users), len(one.Users); got != want {
		t.Fatalf("users: %d vs %d", got, want)
	}
}

// Level must follow event time, not delivery order: the paid play of every
// user here carries the later timestamp but is fed to the engine first, and
// the wide fan-out shuffles arrival order further.
func TestRun_UserLevelFollowsTimestampAcrossWorkers(t *testing.T) {
	t.Parallel()

	const nUsers = 400
	events := make([]records.Record, 0, 2*nUsers)
	for i := 0; i < nUsers; i++ {
		paid := fixYouEvent()
		paid["userId"] = float64(i)
		paid["ts"] = 2000000.0 + float64(i)
		paid["level"] = "paid"
		events = append(events, paid)

		free := fixYouEvent()
		free["userId"] = float64(i)
		free["ts"] = 1000000.0 + float64(i)
		free["level"] = "free"
		events = append(events, free)
	}

	e, err := New(Options{NodeID: 3, Workers: 8})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	out, _, err := e.Run(context.Background(), feed(fixYouCatalog()), feed(events))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Collapse to one row per user the way the lake export does.
	users := upsert.Apply(upsert.ForTable(schema.Users), out.Users,
		func(u schema.User) string { return strconv.FormatInt(u.UserID, 10) },
		func(dst *schema.User, src schema.User) { dst.Level = src.Level },
	)
	if got, want := len(users), nUsers; got != want {
		t.Fatalf("users = %d, want %d", got, want)
	}
	for _, u := range users {
		if got, want := u.Level, "paid"; got != want {
			t.Errorf("user %d level = %q, want %q", u.UserID, got, want)
		}
	}
}

func TestDeriveTimeBucket_PureAndUTC(t *testing.T) {
	t.Parallel()

	const ts = int64(1541121934796) // 2018-11-02 01:25:34 UTC, a Friday
	a := DeriveTimeBucket(ts)
	b := DeriveTimeBucket(ts)
	if a != b {
		t.Fatalf("derivation not pure: %+v vs %+v", a, b)
	}

	want := schema.TimeBucket{
		StartTime: 1541121934,
		Hour:      1,
		Day:       2,
		Week:      44,
		Month:     11,
		Year:      2018,
		Weekday:   "Fri",
	}
	if a != want {
		t.Fatalf("bucket = %+v, want %+v", a, want)
	}
}
