package conform

import (
	"math"

	"musicdw/internal/schema"
)

// DurationTolerance is the maximum absolute difference, in seconds, between a
// catalog song's duration and an event's play length for the duration check to
// accept a match. The check only applies when the event carries a length.
const DurationTolerance = 1.0

// Match identifies a catalog song/artist pair an event resolved to.
type Match struct {
	SongID   string
	ArtistID string
}

type catalogEntry struct {
	songID   string
	artistID string
	duration float64
}

// CatalogIndex resolves play events against the song catalog. Keys are the
// normalized (title, artist name) pair; a key may hold several entries when a
// catalog carries duplicate titles by the same artist.
type CatalogIndex struct {
	byKey map[string][]catalogEntry
}

// NewCatalogIndex builds the lookup index. Songs whose artist_id has no
// catalog artist are skipped: without an artist name they can never satisfy
// the join, and skipping them also upholds the no-orphan-facts invariant.
func NewCatalogIndex(songs []schema.Song, artists []schema.Artist) *CatalogIndex {
	names := make(map[string]string, len(artists))
	for _, a := range artists {
		names[a.ArtistID] = a.Name
	}

	ix := &CatalogIndex{byKey: make(map[string][]catalogEntry, len(songs))}
	for _, s := range songs {
		name, ok := names[s.ArtistID]
		if !ok {
			continue
		}
		k := joinKey(s.Title, name)
		ix.byKey[k] = append(ix.byKey[k], catalogEntry{
			songID:   s.SongID,
			artistID: s.ArtistID,
			duration: s.Duration,
		})
	}
	return ix
}

// Len returns the number of distinct (title, artist) keys in the index.
func (ix *CatalogIndex) Len() int { return len(ix.byKey) }

// Resolve returns every catalog entry matching the event's song title and
// artist name. When the event carries a play length, entries whose duration
// differs by more than DurationTolerance are rejected. A nil or empty result
// means the event produces no fact row; multiple results each produce one.
func (ix *CatalogIndex) Resolve(title, artist string, length *float64) []Match {
	entries := ix.byKey[joinKey(title, artist)]
	if len(entries) == 0 {
		return nil
	}
	out := make([]Match, 0, len(entries))
	for _, e := range entries {
		if length != nil && math.Abs(e.duration-*length) > DurationTolerance {
			continue
		}
		out = append(out, Match{SongID: e.songID, ArtistID: e.artistID})
	}
	return out
}
