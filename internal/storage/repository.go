// Package storage contains storage-agnostic contracts and utilities for the
// warehouse sinks: the Repository interface, a factory registry keyed by
// storage kind, and a generic batched loader.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Repository is the narrow sink interface the pipeline writes through. A
// repository manages one database holding all staging and final tables.
type Repository interface {
	// CopyFrom bulk-inserts rows (aligned to the columns order) into table
	// using the backend's most efficient primitive, returning the number of
	// rows inserted.
	CopyFrom(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)

	// Exec runs a single SQL statement (DDL, or set-based transform/insert).
	Exec(ctx context.Context, sql string) error

	// Close releases the underlying connections.
	Close()
}

// Config selects and configures a backend.
type Config struct {
	// Kind is a registered backend name, e.g. "postgres" or "sqlite".
	Kind string
	// DSN is the backend-specific connection string.
	DSN string
}

// Factory constructs a Repository for a Config.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	regMu     sync.RWMutex
	factories = map[string]Factory{}
)

// Register installs (or replaces) the factory for a storage kind. It is
// typically called from backend packages' init functions.
func Register(kind string, f Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	factories[kind] = f
}

// New opens a Repository of the configured kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	regMu.RLock()
	f, ok := factories[cfg.Kind]
	regMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("storage: unsupported kind %q (registered: %v)", cfg.Kind, ListKinds())
	}
	return f(ctx, cfg)
}

// ListKinds returns the registered backend names, sorted.
func ListKinds() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
