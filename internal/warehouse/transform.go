package warehouse

import (
	"fmt"
	"strings"

	"musicdw/internal/conform"
	"musicdw/internal/schema"
	"musicdw/internal/schema/ddl"
	"musicdw/internal/upsert"
)

// Statement is one promotion step: an INSERT...SELECT from staging into a
// final table, with the table's conflict policy appended.
type Statement struct {
	Table string
	SQL   string
}

// PromotionStatements renders the staged-to-final transform for the dialect,
// dimensions first, fact last.
//
// Join semantics mirror the in-memory engine where SQL allows: title and
// artist name matched case- and whitespace-insensitively, duration within
// DurationTolerance when the event carries a length. Accent folding is an
// in-memory-engine refinement the SQL path does not attempt.
func PromotionStatements(d ddl.Dialect) ([]Statement, error) {
	time, err := timeInsert(d)
	if err != nil {
		return nil, err
	}

	stmts := []Statement{
		{Table: schema.Songs, SQL: songsInsert()},
		{Table: schema.Artists, SQL: artistsInsert()},
		{Table: schema.Users, SQL: usersInsert()},
		{Table: schema.TimeTable, SQL: time},
		{Table: schema.Songplays, SQL: songplaysInsert()},
	}
	return stmts, nil
}

func conflict(table string, keyCols []string) string {
	clause, err := upsert.ForTable(table).InsertSQL(keyCols)
	if err != nil {
		// Policies for the five final tables always render; a failure here is
		// a programming error in the catalog.
		panic(fmt.Sprintf("warehouse: conflict clause for %s: %v", table, err))
	}
	return clause
}

func songsInsert() string {
	return fmt.Sprintf(`INSERT INTO "songs" ("song_id", "title", "artist_id", "year", "duration")
SELECT DISTINCT "song_id", "title", "artist_id", "year", "duration"
FROM "staging_songs"
WHERE "song_id" IS NOT NULL
  AND "title" IS NOT NULL
  AND "artist_id" IS NOT NULL
  AND "duration" > 0
%s`, conflict(schema.Songs, schema.SongsDef.PrimaryKey()))
}

func artistsInsert() string {
	return fmt.Sprintf(`INSERT INTO "artists" ("artist_id", "name", "location", "latitude", "longitude")
SELECT DISTINCT "artist_id", "artist_name", "artist_location", "artist_latitude", "artist_longitude"
FROM "staging_songs"
WHERE "artist_id" IS NOT NULL
  AND "artist_name" IS NOT NULL
%s`, conflict(schema.Artists, schema.ArtistsDef.PrimaryKey()))
}

// usersInsert promotes one row per user, reading level off the user's most
// recent play event so reruns land on last-seen-wins.
func usersInsert() string {
	return fmt.Sprintf(`INSERT INTO "users" ("user_id", "first_name", "last_name", "gender", "level")
SELECT DISTINCT "user_id", "first_name", "last_name", "gender", "level"
FROM "staging_events" se
WHERE "user_id" IS NOT NULL
  AND "page" = '%s'
  AND "ts" = (SELECT MAX("ts") FROM "staging_events"
              WHERE "user_id" = se."user_id" AND "page" = '%s')
%s`, schema.PageNextSong, schema.PageNextSong, conflict(schema.Users, schema.UsersDef.PrimaryKey()))
}

// timeInsert derives the calendar dimension from the raw epoch-millis ts.
// Date arithmetic has no shared dialect, so each backend gets its own
// rendering; both produce UTC fields and an ISO week number.
func timeInsert(d ddl.Dialect) (string, error) {
	var selects string
	switch d {
	case ddl.Postgres:
		selects = `  "ts"/1000,
  EXTRACT(HOUR FROM to_timestamp("ts"/1000) AT TIME ZONE 'UTC')::BIGINT,
  EXTRACT(DAY FROM to_timestamp("ts"/1000) AT TIME ZONE 'UTC')::BIGINT,
  EXTRACT(WEEK FROM to_timestamp("ts"/1000) AT TIME ZONE 'UTC')::BIGINT,
  EXTRACT(MONTH FROM to_timestamp("ts"/1000) AT TIME ZONE 'UTC')::BIGINT,
  EXTRACT(YEAR FROM to_timestamp("ts"/1000) AT TIME ZONE 'UTC')::BIGINT,
  TRIM(to_char(to_timestamp("ts"/1000) AT TIME ZONE 'UTC', 'Dy'))`
	case ddl.SQLite:
		selects = `  "ts"/1000,
  CAST(strftime('%H', "ts"/1000, 'unixepoch') AS INTEGER),
  CAST(strftime('%d', "ts"/1000, 'unixepoch') AS INTEGER),
  CAST(strftime('%V', "ts"/1000, 'unixepoch') AS INTEGER),
  CAST(strftime('%m', "ts"/1000, 'unixepoch') AS INTEGER),
  CAST(strftime('%Y', "ts"/1000, 'unixepoch') AS INTEGER),
  CASE strftime('%w', "ts"/1000, 'unixepoch')
    WHEN '0' THEN 'Sun' WHEN '1' THEN 'Mon' WHEN '2' THEN 'Tue'
    WHEN '3' THEN 'Wed' WHEN '4' THEN 'Thu' WHEN '5' THEN 'Fri'
    ELSE 'Sat' END`
	default:
		return "", fmt.Errorf("warehouse: no time transform for dialect %v", d)
	}

	return fmt.Sprintf(`INSERT INTO "time" ("start_time", "hour", "day", "week", "month", "year", "weekday")
SELECT DISTINCT
%s
FROM "staging_events"
WHERE "page" = '%s' AND "ts" IS NOT NULL
%s`, selects, schema.PageNextSong, conflict(schema.TimeTable, schema.TimeDef.PrimaryKey())), nil
}

// songplaysInsert joins play events against the staged catalog. The identity
// column is omitted from the insert list; the natural-key conflict clause
// keeps reruns from duplicating facts.
func songplaysInsert() string {
	cols := schema.SongplaysDef.InsertColumns()
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = `"` + c + `"`
	}

	return fmt.Sprintf(`INSERT INTO "songplays" (%s)
SELECT se."ts"/1000, se."user_id", se."level", ss."song_id", ss."artist_id", se."session_id", se."location", se."user_agent"
FROM "staging_events" se
JOIN "staging_songs" ss
  ON LOWER(TRIM(se."song")) = LOWER(TRIM(ss."title"))
 AND LOWER(TRIM(se."artist")) = LOWER(TRIM(ss."artist_name"))
 AND (se."length" IS NULL OR ABS(se."length" - ss."duration") <= %g)
WHERE se."page" = '%s'
  AND se."ts" IS NOT NULL
  AND se."user_id" IS NOT NULL
  AND se."session_id" IS NOT NULL
  AND ss."song_id" IS NOT NULL
  AND ss."artist_id" IS NOT NULL
%s`, strings.Join(quoted, ", "), conform.DurationTolerance, schema.PageNextSong, conflict(schema.Songplays, schema.SongplayNaturalKey))
}
