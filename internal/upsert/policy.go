// Package upsert defines the per-entity conflict policies of the star schema
// and applies them uniformly across backing stores: as ON CONFLICT clauses for
// the relational sinks, and as an in-memory keyed reduction for the file sink,
// where whole-table overwrite replaces row-level merging.
package upsert

import (
	"fmt"
	"strings"

	"musicdw/internal/schema"
)

// Kind enumerates what happens when an inserted row collides with an existing
// row on its natural key.
type Kind int

const (
	// Ignore keeps the existing row untouched.
	Ignore Kind = iota
	// UpdateField overwrites a single column from the incoming row and leaves
	// the rest as first-seen.
	UpdateField
	// Replace overwrites the whole row with the incoming one.
	Replace
)

// Policy is one entity's conflict rule.
type Policy struct {
	Kind Kind
	// Column is the overwritten column for UpdateField; empty otherwise.
	Column string
}

func (p Policy) String() string {
	switch p.Kind {
	case Ignore:
		return "ignore"
	case UpdateField:
		return "update-field(" + p.Column + ")"
	case Replace:
		return "replace"
	default:
		return fmt.Sprintf("unknown(%d)", int(p.Kind))
	}
}

// ForTable returns the conflict policy bound to a final table. Unknown tables
// default to Ignore, the safest choice for immutable dimensions.
func ForTable(table string) Policy {
	switch table {
	case schema.Users:
		// level is the only mutable user attribute; last seen wins.
		return Policy{Kind: UpdateField, Column: "level"}
	case schema.Songs, schema.Artists, schema.TimeTable, schema.Songplays:
		return Policy{Kind: Ignore}
	default:
		return Policy{Kind: Ignore}
	}
}

// InsertSQL renders the conflict clause appended to an INSERT targeting the
// given key columns. The ON CONFLICT dialect is shared by Postgres and SQLite.
func (p Policy) InsertSQL(keyCols []string) (string, error) {
	if len(keyCols) == 0 {
		return "", fmt.Errorf("upsert: conflict clause requires key columns")
	}
	quoted := make([]string, len(keyCols))
	for i, c := range keyCols {
		quoted[i] = `"` + c + `"`
	}
	target := strings.Join(quoted, ", ")

	switch p.Kind {
	case Ignore:
		return fmt.Sprintf("ON CONFLICT (%s) DO NOTHING", target), nil
	case UpdateField:
		if p.Column == "" {
			return "", fmt.Errorf("upsert: update-field policy missing column")
		}
		return fmt.Sprintf("ON CONFLICT (%s) DO UPDATE SET %q = EXCLUDED.%q", target, p.Column, p.Column), nil
	case Replace:
		return "", fmt.Errorf("upsert: replace is applied in memory, not as SQL")
	default:
		return "", fmt.Errorf("upsert: unknown policy kind %d", int(p.Kind))
	}
}

// Apply reduces rows in memory under the policy, keyed by key(row). Ignore
// keeps the first row per key, Replace the last, UpdateField keeps the first
// but carries the mutable column forward from the last via merge. Output
// preserves first-appearance order, which keeps reruns deterministic.
//
// merge copies the policy's mutable column from src onto dst; it is only
// called for UpdateField and may be nil otherwise.
func Apply[T any](p Policy, rows []T, key func(T) string, merge func(dst *T, src T)) []T {
	if len(rows) == 0 {
		return rows
	}

	idx := make(map[string]int, len(rows))
	out := make([]T, 0, len(rows))

	for _, r := range rows {
		k := key(r)
		at, seen := idx[k]
		if !seen {
			idx[k] = len(out)
			out = append(out, r)
			continue
		}
		switch p.Kind {
		case Ignore:
			// keep existing
		case Replace:
			out[at] = r
		case UpdateField:
			if merge != nil {
				merge(&out[at], r)
			}
		}
	}
	return out
}
