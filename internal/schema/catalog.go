// Package schema is the catalog of the song-play star schema: the two staging
// tables the warehouse variant loads raw records into, the four dimension
// tables, and the fact table. It is pure data; DDL rendering lives in
// schema/ddl and conflict policies in internal/upsert.
package schema

import "musicdw/internal/schema/ddl"

// Table names.
const (
	StagingEvents = "staging_events"
	StagingSongs  = "staging_songs"
	Songplays     = "songplays"
	Users         = "users"
	Songs         = "songs"
	Artists       = "artists"
	TimeTable     = "time"
)

// PageNextSong is the event page value identifying a song-play action. All
// other event types are discarded before dimension extraction.
const PageNextSong = "NextSong"

// StagingEventsDef mirrors the raw usage-log record verbatim. Column names are
// snake_cased; EventFieldMap maps the raw JSON keys onto them. Everything is
// nullable: staging is unvalidated by design.
var StagingEventsDef = ddl.TableDef{
	Name: StagingEvents,
	Columns: []ddl.ColumnDef{
		{Name: "artist", SQLType: "TEXT", Nullable: true},
		{Name: "auth", SQLType: "TEXT", Nullable: true},
		{Name: "first_name", SQLType: "TEXT", Nullable: true},
		{Name: "gender", SQLType: "TEXT", Nullable: true},
		{Name: "item_in_session", SQLType: "BIGINT", Nullable: true},
		{Name: "last_name", SQLType: "TEXT", Nullable: true},
		{Name: "length", SQLType: "DOUBLE PRECISION", Nullable: true},
		{Name: "level", SQLType: "TEXT", Nullable: true},
		{Name: "location", SQLType: "TEXT", Nullable: true},
		{Name: "method", SQLType: "TEXT", Nullable: true},
		{Name: "page", SQLType: "TEXT", Nullable: true},
		{Name: "registration", SQLType: "DOUBLE PRECISION", Nullable: true},
		{Name: "session_id", SQLType: "BIGINT", Nullable: true},
		{Name: "song", SQLType: "TEXT", Nullable: true},
		{Name: "status", SQLType: "BIGINT", Nullable: true},
		{Name: "ts", SQLType: "BIGINT", Nullable: true},
		{Name: "user_agent", SQLType: "TEXT", Nullable: true},
		{Name: "user_id", SQLType: "BIGINT", Nullable: true},
	},
}

// EventFieldMap maps raw usage-log JSON keys to staging_events columns.
var EventFieldMap = map[string]string{
	"artist":        "artist",
	"auth":          "auth",
	"firstName":     "first_name",
	"gender":        "gender",
	"itemInSession": "item_in_session",
	"lastName":      "last_name",
	"length":        "length",
	"level":         "level",
	"location":      "location",
	"method":        "method",
	"page":          "page",
	"registration":  "registration",
	"sessionId":     "session_id",
	"song":          "song",
	"status":        "status",
	"ts":            "ts",
	"userAgent":     "user_agent",
	"userId":        "user_id",
}

// StagingSongsDef mirrors the raw song-catalog record verbatim.
var StagingSongsDef = ddl.TableDef{
	Name: StagingSongs,
	Columns: []ddl.ColumnDef{
		{Name: "num_songs", SQLType: "BIGINT", Nullable: true},
		{Name: "artist_id", SQLType: "TEXT", Nullable: true},
		{Name: "artist_latitude", SQLType: "DOUBLE PRECISION", Nullable: true},
		{Name: "artist_longitude", SQLType: "DOUBLE PRECISION", Nullable: true},
		{Name: "artist_location", SQLType: "TEXT", Nullable: true},
		{Name: "artist_name", SQLType: "TEXT", Nullable: true},
		{Name: "song_id", SQLType: "TEXT", Nullable: true},
		{Name: "title", SQLType: "TEXT", Nullable: true},
		{Name: "duration", SQLType: "DOUBLE PRECISION", Nullable: true},
		{Name: "year", SQLType: "BIGINT", Nullable: true},
	},
}

// SongFieldMap maps raw song-catalog JSON keys to staging_songs columns.
var SongFieldMap = map[string]string{
	"num_songs":        "num_songs",
	"artist_id":        "artist_id",
	"artist_latitude":  "artist_latitude",
	"artist_longitude": "artist_longitude",
	"artist_location":  "artist_location",
	"artist_name":      "artist_name",
	"song_id":          "song_id",
	"title":            "title",
	"duration":         "duration",
	"year":             "year",
}

// SongplaysDef is the fact table. songplay_id is a database identity in the
// warehouse variant; the lake variant assigns snowflake IDs instead. The
// unique constraint over the natural key is what makes staged promotion
// idempotent across reruns.
var SongplaysDef = ddl.TableDef{
	Name: Songplays,
	Columns: []ddl.ColumnDef{
		{Name: "songplay_id", Identity: true},
		{Name: "start_time", SQLType: "BIGINT"},
		{Name: "user_id", SQLType: "BIGINT"},
		{Name: "level", SQLType: "TEXT", Nullable: true},
		{Name: "song_id", SQLType: "TEXT"},
		{Name: "artist_id", SQLType: "TEXT"},
		{Name: "session_id", SQLType: "BIGINT"},
		{Name: "location", SQLType: "TEXT", Nullable: true},
		{Name: "user_agent", SQLType: "TEXT", Nullable: true},
	},
	Uniques: [][]string{{"start_time", "user_id", "session_id", "song_id"}},
}

// SongplayNaturalKey is the conflict target used when promoting staged events
// into the fact table.
var SongplayNaturalKey = []string{"start_time", "user_id", "session_id", "song_id"}

// UsersDef is the user dimension. level is the only mutable column.
var UsersDef = ddl.TableDef{
	Name: Users,
	Columns: []ddl.ColumnDef{
		{Name: "user_id", SQLType: "BIGINT", PrimaryKey: true},
		{Name: "first_name", SQLType: "TEXT", Nullable: true},
		{Name: "last_name", SQLType: "TEXT", Nullable: true},
		{Name: "gender", SQLType: "TEXT", Nullable: true},
		{Name: "level", SQLType: "TEXT", Nullable: true},
	},
}

// SongsDef is the song dimension; immutable once inserted.
var SongsDef = ddl.TableDef{
	Name: Songs,
	Columns: []ddl.ColumnDef{
		{Name: "song_id", SQLType: "TEXT", PrimaryKey: true},
		{Name: "title", SQLType: "TEXT"},
		{Name: "artist_id", SQLType: "TEXT"},
		{Name: "year", SQLType: "BIGINT", Nullable: true},
		{Name: "duration", SQLType: "DOUBLE PRECISION"},
	},
}

// ArtistsDef is the artist dimension; immutable once inserted.
var ArtistsDef = ddl.TableDef{
	Name: Artists,
	Columns: []ddl.ColumnDef{
		{Name: "artist_id", SQLType: "TEXT", PrimaryKey: true},
		{Name: "name", SQLType: "TEXT"},
		{Name: "location", SQLType: "TEXT", Nullable: true},
		{Name: "latitude", SQLType: "DOUBLE PRECISION", Nullable: true},
		{Name: "longitude", SQLType: "DOUBLE PRECISION", Nullable: true},
	},
}

// TimeDef is the calendar dimension; every column is a pure function of
// start_time (UTC).
var TimeDef = ddl.TableDef{
	Name: TimeTable,
	Columns: []ddl.ColumnDef{
		{Name: "start_time", SQLType: "BIGINT", PrimaryKey: true},
		{Name: "hour", SQLType: "BIGINT"},
		{Name: "day", SQLType: "BIGINT"},
		{Name: "week", SQLType: "BIGINT"},
		{Name: "month", SQLType: "BIGINT"},
		{Name: "year", SQLType: "BIGINT"},
		{Name: "weekday", SQLType: "TEXT"},
	},
}

// StagingTables lists the tables loaded verbatim from raw records.
var StagingTables = []ddl.TableDef{StagingEventsDef, StagingSongsDef}

// FinalTables lists the star-schema tables in dependency-friendly order:
// dimensions before the fact table.
var FinalTables = []ddl.TableDef{SongsDef, ArtistsDef, UsersDef, TimeDef, SongplaysDef}

// AllTables lists every table the warehouse variant manages.
var AllTables = append(append([]ddl.TableDef{}, StagingTables...), FinalTables...)
