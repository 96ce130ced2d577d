package lake

import (
	"fmt"
	"time"

	"musicdw/internal/schema"
)

// Parquet row shapes, one per output table. Tag names match the relational
// column names so the two variants stay queryable with the same SQL.

type songRow struct {
	SongID   string  `parquet:"name=song_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Title    string  `parquet:"name=title, type=BYTE_ARRAY, convertedtype=UTF8"`
	ArtistID string  `parquet:"name=artist_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Year     int32   `parquet:"name=year, type=INT32"`
	Duration float64 `parquet:"name=duration, type=DOUBLE"`
}

type artistRow struct {
	ArtistID  string   `parquet:"name=artist_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Name      string   `parquet:"name=name, type=BYTE_ARRAY, convertedtype=UTF8"`
	Location  *string  `parquet:"name=location, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	Latitude  *float64 `parquet:"name=latitude, type=DOUBLE, repetitiontype=OPTIONAL"`
	Longitude *float64 `parquet:"name=longitude, type=DOUBLE, repetitiontype=OPTIONAL"`
}

type userRow struct {
	UserID    int64   `parquet:"name=user_id, type=INT64"`
	FirstName string  `parquet:"name=first_name, type=BYTE_ARRAY, convertedtype=UTF8"`
	LastName  string  `parquet:"name=last_name, type=BYTE_ARRAY, convertedtype=UTF8"`
	Gender    *string `parquet:"name=gender, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	Level     string  `parquet:"name=level, type=BYTE_ARRAY, convertedtype=UTF8"`
}

type timeRow struct {
	StartTime int64  `parquet:"name=start_time, type=INT64"`
	Hour      int32  `parquet:"name=hour, type=INT32"`
	Day       int32  `parquet:"name=day, type=INT32"`
	Week      int32  `parquet:"name=week, type=INT32"`
	Month     int32  `parquet:"name=month, type=INT32"`
	Year      int32  `parquet:"name=year, type=INT32"`
	Weekday   string `parquet:"name=weekday, type=BYTE_ARRAY, convertedtype=UTF8"`
}

type playRow struct {
	SongplayID int64   `parquet:"name=songplay_id, type=INT64"`
	StartTime  int64   `parquet:"name=start_time, type=INT64"`
	UserID     int64   `parquet:"name=user_id, type=INT64"`
	Level      string  `parquet:"name=level, type=BYTE_ARRAY, convertedtype=UTF8"`
	SongID     string  `parquet:"name=song_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	ArtistID   string  `parquet:"name=artist_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	SessionID  int64   `parquet:"name=session_id, type=INT64"`
	Location   *string `parquet:"name=location, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	UserAgent  *string `parquet:"name=user_agent, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
}

func toSongRow(s schema.Song) songRow {
	return songRow{SongID: s.SongID, Title: s.Title, ArtistID: s.ArtistID, Year: int32(s.Year), Duration: s.Duration}
}

func toArtistRow(a schema.Artist) artistRow {
	return artistRow{ArtistID: a.ArtistID, Name: a.Name, Location: a.Location, Latitude: a.Latitude, Longitude: a.Longitude}
}

func toUserRow(u schema.User) userRow {
	return userRow{UserID: u.UserID, FirstName: u.FirstName, LastName: u.LastName, Gender: u.Gender, Level: u.Level}
}

func toTimeRow(t schema.TimeBucket) timeRow {
	return timeRow{
		StartTime: t.StartTime,
		Hour:      int32(t.Hour),
		Day:       int32(t.Day),
		Week:      int32(t.Week),
		Month:     int32(t.Month),
		Year:      int32(t.Year),
		Weekday:   t.Weekday,
	}
}

func toPlayRow(p schema.SongPlay) playRow {
	return playRow{
		SongplayID: p.SongplayID,
		StartTime:  p.StartTime,
		UserID:     p.UserID,
		Level:      p.Level,
		SongID:     p.SongID,
		ArtistID:   p.ArtistID,
		SessionID:  p.SessionID,
		Location:   p.Location,
		UserAgent:  p.UserAgent,
	}
}

// Partition key functions. The returned string is a relative directory in
// Hive layout ("year=2005/artist_id=AR...") or "" for unpartitioned tables.

func songPartition(r songRow) string {
	return fmt.Sprintf("year=%d/artist_id=%s", r.Year, r.ArtistID)
}

func timePartition(r timeRow) string {
	return fmt.Sprintf("year=%d/month=%d", r.Year, r.Month)
}

// playPartition derives the calendar partition from the fact's start time,
// keeping fact partitioning aligned with the time dimension.
func playPartition(r playRow) string {
	t := time.Unix(r.StartTime, 0).UTC()
	return fmt.Sprintf("year=%d/month=%d", t.Year(), int(t.Month()))
}

func noPartition[T any](T) string { return "" }
