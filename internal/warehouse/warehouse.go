// Package warehouse runs the staged variant of the pipeline: raw records are
// copied verbatim into staging tables, then a declarative SQL transform
// promotes them into the star schema with per-entity conflict policies.
//
// Promotion order is dimensions first, fact last, so the fact table's foreign
// keys always land on existing dimension rows. Each statement is its own
// commit boundary; a failure aborts the run but leaves previously promoted
// tables standing.
package warehouse

import (
	"context"
	"fmt"
	"log"

	"golang.org/x/sync/errgroup"

	"musicdw/internal/schema"
	"musicdw/internal/schema/ddl"
	"musicdw/internal/source"
	"musicdw/internal/storage"
	"musicdw/pkg/records"
)

// DefaultBatchSize is the staging copy batch size when the config leaves it
// unset.
const DefaultBatchSize = 5000

// Warehouse binds a repository to a SQL dialect and drives the staged
// variant against it.
type Warehouse struct {
	Repo      storage.Repository
	Dialect   ddl.Dialect
	BatchSize int

	// Buffer is the record channel capacity between reader and loader.
	Buffer int
}

func (w *Warehouse) batchSize() int {
	if w.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return w.BatchSize
}

func (w *Warehouse) buffer() int {
	if w.Buffer <= 0 {
		return 1024
	}
	return w.Buffer
}

// EnsureSchema creates every staging and final table if it does not exist.
func (w *Warehouse) EnsureSchema(ctx context.Context) error {
	for _, t := range schema.AllTables {
		stmt, err := ddl.BuildCreateTableSQL(w.Dialect, t)
		if err != nil {
			return fmt.Errorf("warehouse: render create %s: %w", t.Name, err)
		}
		if err := w.Repo.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("warehouse: create %s: %w", t.Name, err)
		}
	}
	return nil
}

// DropSchema drops every managed table. Fact before dimensions so no order
// issue arises if foreign keys are ever added.
func (w *Warehouse) DropSchema(ctx context.Context) error {
	for i := len(schema.AllTables) - 1; i >= 0; i-- {
		t := schema.AllTables[i]
		if err := w.Repo.Exec(ctx, ddl.BuildDropTableSQL(t)); err != nil {
			return fmt.Errorf("warehouse: drop %s: %w", t.Name, err)
		}
	}
	return nil
}

// ResetStaging empties both staging tables. Staging holds exactly one run's
// raw records; final tables carry state across runs.
func (w *Warehouse) ResetStaging(ctx context.Context) error {
	for _, t := range schema.StagingTables {
		if err := w.Repo.Exec(ctx, fmt.Sprintf(`DELETE FROM %q`, t.Name)); err != nil {
			return fmt.Errorf("warehouse: reset %s: %w", t.Name, err)
		}
	}
	return nil
}

// StageCatalog streams song-catalog records into staging_songs.
func (w *Warehouse) StageCatalog(ctx context.Context, rd source.CatalogReader) (int64, error) {
	return w.stage(ctx, schema.StagingSongsDef, schema.SongFieldMap, rd.ReadCatalog)
}

// StageEvents streams usage-log records into staging_events.
func (w *Warehouse) StageEvents(ctx context.Context, rd source.EventReader) (int64, error) {
	return w.stage(ctx, schema.StagingEventsDef, schema.EventFieldMap, rd.ReadEvents)
}

// stage wires a reader to the batched loader: records are projected onto the
// staging column order and bulk-copied through the repository.
func (w *Warehouse) stage(
	ctx context.Context,
	table ddl.TableDef,
	fieldMap map[string]string,
	read func(ctx context.Context, out chan<- records.Record) error,
) (int64, error) {
	cols := table.InsertColumns()
	proj := newProjection(table, fieldMap)

	recs := make(chan records.Record, w.buffer())
	rows := make(chan []any, w.buffer())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(recs)
		return read(gctx, recs)
	})
	g.Go(func() error {
		defer close(rows)
		for rec := range recs {
			select {
			case rows <- proj.row(rec):
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	var loaded int64
	g.Go(func() error {
		n, err := storage.LoadBatches(gctx, table.Name, cols, rows, w.batchSize(), func(ctx context.Context, columns []string, batch [][]any) (int64, error) {
			return w.Repo.CopyFrom(ctx, table.Name, columns, batch)
		})
		loaded = n
		return err
	})

	if err := g.Wait(); err != nil {
		return loaded, err
	}
	return loaded, nil
}

// Promote runs the staged-to-final transform, dimensions first.
func (w *Warehouse) Promote(ctx context.Context) error {
	stmts, err := PromotionStatements(w.Dialect)
	if err != nil {
		return err
	}
	for _, s := range stmts {
		if err := w.Repo.Exec(ctx, s.SQL); err != nil {
			return fmt.Errorf("warehouse: promote %s: %w", s.Table, err)
		}
		log.Printf("warehouse: promoted table=%s", s.Table)
	}
	return nil
}

// Run executes one full warehouse pass: ensure tables, reset staging, stage
// both record families, promote.
func (w *Warehouse) Run(ctx context.Context, catalog source.CatalogReader, events source.EventReader) error {
	if err := w.EnsureSchema(ctx); err != nil {
		return err
	}
	if err := w.ResetStaging(ctx); err != nil {
		return err
	}

	nSongs, err := w.StageCatalog(ctx, catalog)
	if err != nil {
		return fmt.Errorf("warehouse: stage catalog: %w", err)
	}
	nEvents, err := w.StageEvents(ctx, events)
	if err != nil {
		return fmt.Errorf("warehouse: stage events: %w", err)
	}
	log.Printf("warehouse: staged songs=%d events=%d", nSongs, nEvents)

	return w.Promote(ctx)
}

// projection maps a raw record onto a staging table's column order. Columns
// with no incoming field, or fields absent from a given record, become NULL.
// Values are coerced to the column's SQL type: raw JSON carries integral
// fields as float64 (and userId as a possibly-empty string), neither of which
// a BIGINT column accepts directly.
type projection struct {
	cols  []string
	keys  []string // raw JSON key per column, "" when unmapped
	types []string // SQLType per column
}

func newProjection(table ddl.TableDef, fieldMap map[string]string) *projection {
	byCol := make(map[string]string, len(fieldMap))
	for raw, col := range fieldMap {
		byCol[col] = raw
	}

	insert := make([]ddl.ColumnDef, 0, len(table.Columns))
	for _, c := range table.Columns {
		if !c.Identity {
			insert = append(insert, c)
		}
	}

	p := &projection{
		cols:  make([]string, len(insert)),
		keys:  make([]string, len(insert)),
		types: make([]string, len(insert)),
	}
	for i, c := range insert {
		p.cols[i] = c.Name
		p.keys[i] = byCol[c.Name]
		p.types[i] = c.SQLType
	}
	return p
}

func (p *projection) row(rec records.Record) []any {
	row := make([]any, len(p.cols))
	for i, key := range p.keys {
		if key == "" || !rec.Has(key) {
			continue
		}
		switch p.types[i] {
		case "BIGINT":
			if n, ok := rec.Int64(key); ok {
				row[i] = n
			}
		case "DOUBLE PRECISION":
			if f, ok := rec.Float(key); ok {
				row[i] = f
			}
		default:
			if s, ok := rec.Str(key); ok {
				row[i] = s
			} else {
				row[i] = rec[key]
			}
		}
	}
	return row
}
