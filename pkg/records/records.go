// Package records defines the loosely-typed record representation exchanged
// between readers, the conformance engine, and the staging loaders.
//
// A Record is a bag of key/value pairs as decoded from raw JSON input. Field
// presence is never guaranteed; accessors return an ok flag and perform the
// lenient numeric conversions that JSON decoding makes necessary (all JSON
// numbers arrive as float64, some sources quote integers as strings).
package records

import (
	"strconv"
	"strings"
)

// Record is one raw input row keyed by source field names, e.g. "userId",
// "artist_name". Values are whatever encoding/json produced: string, float64,
// bool, or nil.
type Record map[string]any

// Str returns the field as a trimmed string. Missing, nil, or empty fields
// return ("", false).
func (r Record) Str(key string) (string, bool) {
	v, ok := r[key]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	return s, true
}

// Int64 returns the field as an int64. JSON float64 values are accepted when
// integral; quoted integers ("42") are parsed. Anything else returns (0, false).
func (r Record) Int64(key string) (int64, bool) {
	v, ok := r[key]
	if !ok || v == nil {
		return 0, false
	}
	switch t := v.(type) {
	case float64:
		if t != float64(int64(t)) {
			return 0, false
		}
		return int64(t), true
	case int64:
		return t, true
	case int:
		return int64(t), true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false
		}
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}

// Float returns the field as a float64, accepting quoted numbers.
func (r Record) Float(key string) (float64, bool) {
	v, ok := r[key]
	if !ok || v == nil {
		return 0, false
	}
	switch t := v.(type) {
	case float64:
		return t, true
	case int64:
		return float64(t), true
	case int:
		return float64(t), true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Has reports whether the field is present and non-nil.
func (r Record) Has(key string) bool {
	v, ok := r[key]
	return ok && v != nil
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
