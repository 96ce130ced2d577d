// Package all wires all built-in storage backends into the storage factory.
//
// This package exists purely for side effects: importing it (even as a blank
// import) causes the init functions of each concrete storage backend to run,
// which in turn register their factories with the storage package.
//
// In other words, importing this package makes the following storage kinds
// available at runtime:
//
//   - "postgres" (musicdw/internal/storage/postgres)
//   - "sqlite"   (musicdw/internal/storage/sqlite)
//
// Typical usage (in cmd/etl/main.go or a similar wiring layer):
//
//	import (
//	    _ "musicdw/internal/storage/all" // enable all built-in backends
//
//	    "musicdw/internal/storage"
//	)
//
//	repo, err := storage.New(ctx, storage.Config{
//	    Kind: spec.Storage.Kind,
//	    DSN:  spec.Storage.DSN,
//	})
//
// This pattern keeps backend-specific wiring in a single, small package and
// allows the rest of the application (warehouse runner, CLI) to depend only
// on the storage abstraction rather than individual backends.
package all

import (
	_ "musicdw/internal/storage/postgres"
	_ "musicdw/internal/storage/sqlite"
)
