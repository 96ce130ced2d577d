package upsert

import (
	"strconv"
	"testing"

	"musicdw/internal/schema"
)

func TestForTable(t *testing.T) {
	t.Parallel()

	if p := ForTable(schema.Users); p.Kind != UpdateField || p.Column != "level" {
		t.Fatalf("users policy = %v", p)
	}
	for _, tbl := range []string{schema.Songs, schema.Artists, schema.TimeTable, schema.Songplays} {
		if p := ForTable(tbl); p.Kind != Ignore {
			t.Fatalf("%s policy = %v, want ignore", tbl, p)
		}
	}
}

func TestInsertSQL(t *testing.T) {
	t.Parallel()

	sql, err := Policy{Kind: Ignore}.InsertSQL([]string{"song_id"})
	if err != nil {
		t.Fatalf("ignore: %v", err)
	}
	if got, want := sql, `ON CONFLICT ("song_id") DO NOTHING`; got != want {
		t.Fatalf("ignore sql = %s, want %s", got, want)
	}

	sql, err = Policy{Kind: UpdateField, Column: "level"}.InsertSQL([]string{"user_id"})
	if err != nil {
		t.Fatalf("update-field: %v", err)
	}
	if got, want := sql, `ON CONFLICT ("user_id") DO UPDATE SET "level" = EXCLUDED."level"`; got != want {
		t.Fatalf("update sql = %s, want %s", got, want)
	}

	sql, err = Policy{Kind: Ignore}.InsertSQL([]string{"start_time", "user_id"})
	if err != nil {
		t.Fatalf("composite: %v", err)
	}
	if got, want := sql, `ON CONFLICT ("start_time", "user_id") DO NOTHING`; got != want {
		t.Fatalf("composite sql = %s, want %s", got, want)
	}

	if _, err := (Policy{Kind: Ignore}).InsertSQL(nil); err == nil {
		t.Fatalf("empty key columns should error")
	}
	if _, err := (Policy{Kind: UpdateField}).InsertSQL([]string{"k"}); err == nil {
		t.Fatalf("update-field without column should error")
	}
	if _, err := (Policy{Kind: Replace}).InsertSQL([]string{"k"}); err == nil {
		t.Fatalf("replace has no SQL form")
	}
}

func TestApply_UpdateFieldLastSeenWins(t *testing.T) {
	t.Parallel()

	rows := []schema.User{
		{UserID: 7, FirstName: "Ada", Level: "free"},
		{UserID: 8, FirstName: "Bob", Level: "free"},
		{UserID: 7, FirstName: "Ada", Level: "paid"},
	}

	got := Apply(ForTable(schema.Users), rows,
		func(u schema.User) string { return strconv.FormatInt(u.UserID, 10) },
		func(dst *schema.User, src schema.User) { dst.Level = src.Level },
	)

	if len(got) != 2 {
		t.Fatalf("rows = %d, want 2", len(got))
	}
	if got[0].UserID != 7 || got[0].Level != "paid" {
		t.Fatalf("user 7 = %+v, want level paid", got[0])
	}
	if got[0].FirstName != "Ada" {
		t.Fatalf("non-updated field changed: %+v", got[0])
	}
}

func TestApply_IgnoreKeepsFirst(t *testing.T) {
	t.Parallel()

	rows := []schema.Song{
		{SongID: "S1", Title: "first"},
		{SongID: "S1", Title: "second"},
	}
	got := Apply(ForTable(schema.Songs), rows, func(s schema.Song) string { return s.SongID }, nil)
	if len(got) != 1 || got[0].Title != "first" {
		t.Fatalf("got %+v, want first row kept", got)
	}
}

func TestApply_ReplaceKeepsLast(t *testing.T) {
	t.Parallel()

	rows := []schema.Song{
		{SongID: "S1", Title: "first"},
		{SongID: "S1", Title: "second"},
	}
	got := Apply(Policy{Kind: Replace}, rows, func(s schema.Song) string { return s.SongID }, nil)
	if len(got) != 1 || got[0].Title != "second" {
		t.Fatalf("got %+v, want last row kept", got)
	}
}

func TestApply_Idempotent(t *testing.T) {
	t.Parallel()

	rows := []schema.User{
		{UserID: 1, Level: "free"},
		{UserID: 1, Level: "paid"},
		{UserID: 2, Level: "free"},
	}
	key := func(u schema.User) string { return strconv.FormatInt(u.UserID, 10) }
	merge := func(dst *schema.User, src schema.User) { dst.Level = src.Level }

	once := Apply(ForTable(schema.Users), rows, key, merge)
	twice := Apply(ForTable(schema.Users), once, key, merge)

	if len(once) != len(twice) {
		t.Fatalf("second application changed row count: %d vs %d", len(once), len(twice))
	}
	for i := range once {
		if once[i] != twice[i] {
			t.Fatalf("second application changed row %d: %+v vs %+v", i, once[i], twice[i])
		}
	}
}
