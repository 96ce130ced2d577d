package conform

import (
	"fmt"

	"github.com/zeebo/xxh3"

	"musicdw/pkg/records"
)

// FieldSpec maps one source field onto a canonical output field.
type FieldSpec struct {
	// From is the key in the raw record (e.g. "userId").
	From string
	// To is the canonical column name (e.g. "user_id").
	To string
	// Key marks a natural-key field: records missing it are dropped rather
	// than emitted with a NULL key.
	Key bool
}

// DimensionSpec is the projection applied to a record stream to produce one
// dimension's candidate rows.
type DimensionSpec struct {
	Name   string
	Fields []FieldSpec
}

// Projections for the three record-derived dimensions. The time dimension is
// computed, not projected (see DeriveTimeBucket).
var (
	UserDimension = DimensionSpec{
		Name: "users",
		Fields: []FieldSpec{
			{From: "userId", To: "user_id", Key: true},
			{From: "firstName", To: "first_name"},
			{From: "lastName", To: "last_name"},
			{From: "gender", To: "gender"},
			{From: "level", To: "level"},
		},
	}

	SongDimension = DimensionSpec{
		Name: "songs",
		Fields: []FieldSpec{
			{From: "song_id", To: "song_id", Key: true},
			{From: "title", To: "title"},
			{From: "artist_id", To: "artist_id"},
			{From: "year", To: "year"},
			{From: "duration", To: "duration"},
		},
	}

	ArtistDimension = DimensionSpec{
		Name: "artists",
		Fields: []FieldSpec{
			{From: "artist_id", To: "artist_id", Key: true},
			{From: "artist_name", To: "name"},
			{From: "artist_location", To: "location"},
			{From: "artist_latitude", To: "latitude"},
			{From: "artist_longitude", To: "longitude"},
		},
	}
)

// ExtractDimension projects spec.Fields out of each record under canonical
// names and drops exact-duplicate rows (full-tuple equality). Records missing
// a Key field are dropped; missing optional fields become nil. Output order
// follows first appearance in the input.
func ExtractDimension(recs []records.Record, spec DimensionSpec) []records.Record {
	out := make([]records.Record, 0, len(recs))
	seen := make(map[uint64]struct{}, len(recs))

	for _, rec := range recs {
		row := make(records.Record, len(spec.Fields))
		keep := true
		for _, f := range spec.Fields {
			v, ok := rec[f.From]
			if f.Key && (!ok || v == nil || v == "") {
				keep = false
				break
			}
			if !ok {
				v = nil
			}
			row[f.To] = v
		}
		if !keep {
			continue
		}

		// 64-bit full-tuple hash; collision odds are negligible at catalog
		// scale and a collision only costs a dropped duplicate candidate.
		h := tupleHash(row, spec.Fields)
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, row)
	}
	return out
}

// tupleHash hashes the projected tuple in field order. Values are rendered
// with a type prefix so 1 (number) and "1" (string) do not collide.
func tupleHash(row records.Record, fields []FieldSpec) uint64 {
	h := xxh3.New()
	for _, f := range fields {
		v := row[f.To]
		switch t := v.(type) {
		case nil:
			h.WriteString("n\x1f")
		case string:
			h.WriteString("s" + t + "\x1f")
		case bool:
			h.WriteString(fmt.Sprintf("b%v\x1f", t))
		default:
			h.WriteString(fmt.Sprintf("f%v\x1f", t))
		}
	}
	return h.Sum64()
}
