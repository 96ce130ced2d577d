package schema

// Typed row-sets produced by the conformance engine. Field order mirrors the
// table definitions in catalog.go; optional columns are pointers so a missing
// value survives the trip to the sink as NULL.

// Song is one song dimension row.
type Song struct {
	SongID   string  `db:"song_id"`
	Title    string  `db:"title"`
	ArtistID string  `db:"artist_id"`
	Year     int64   `db:"year"` // 0 = unknown
	Duration float64 `db:"duration"`
}

// Artist is one artist dimension row.
type Artist struct {
	ArtistID  string   `db:"artist_id"`
	Name      string   `db:"name"`
	Location  *string  `db:"location"`
	Latitude  *float64 `db:"latitude"`
	Longitude *float64 `db:"longitude"`
}

// User is one user dimension row. Level is the only column the upsert policy
// ever rewrites.
type User struct {
	UserID    int64   `db:"user_id"`
	FirstName string  `db:"first_name"`
	LastName  string  `db:"last_name"`
	Gender    *string `db:"gender"`
	Level     string  `db:"level"`
}

// TimeBucket is one calendar dimension row, derived from an epoch-seconds
// start time under UTC.
type TimeBucket struct {
	StartTime int64  `db:"start_time"`
	Hour      int64  `db:"hour"`
	Day       int64  `db:"day"`
	Week      int64  `db:"week"`
	Month     int64  `db:"month"`
	Year      int64  `db:"year"`
	Weekday   string `db:"weekday"` // short day name: "Mon".."Sun"
}

// SongPlay is one fact row. SongplayID is assigned by the pipeline in the lake
// variant and by the database identity in the warehouse variant.
type SongPlay struct {
	SongplayID int64   `db:"songplay_id"`
	StartTime  int64   `db:"start_time"` // epoch seconds
	UserID     int64   `db:"user_id"`
	Level      string  `db:"level"`
	SongID     string  `db:"song_id"`
	ArtistID   string  `db:"artist_id"`
	SessionID  int64   `db:"session_id"`
	Location   *string `db:"location"`
	UserAgent  *string `db:"user_agent"`
}
