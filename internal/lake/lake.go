// Package lake writes conformed row-sets as partitioned parquet files, the
// file-variant counterpart of the relational warehouse. Each run overwrites a
// table's whole output prefix, so reruns converge on the same state without
// row-level merging.
//
// Layout (Hive partition naming, snappy-compressed parquet):
//
//	songs/year=2005/artist_id=AR.../part-00000.parquet
//	artists/part-00000.parquet
//	users/part-00000.parquet
//	time/year=2018/month=11/part-00000.parquet
//	songplays/year=2018/month=11/part-00000.parquet
package lake

import (
	"context"
	"fmt"
	"log"
	"os"
	"path"
	"path/filepath"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
	"golang.org/x/sync/errgroup"

	"musicdw/internal/conform"
	"musicdw/internal/schema"
	"musicdw/internal/upsert"
)

// Sink stores finished parquet files. Remove clears a table prefix before the
// rewrite; Put stores the local file at the given slash-separated key.
type Sink interface {
	Remove(ctx context.Context, prefix string) error
	Put(ctx context.Context, key, localPath string) error
}

// Export writes all five tables of a conformed row-set to the sink, one
// goroutine per table. Users are collapsed to one row per user_id first,
// carrying the latest level, which is the file-sink rendering of the users
// conflict policy.
func Export(ctx context.Context, sink Sink, sets *conform.RowSets) error {
	users := upsert.Apply(upsert.ForTable(schema.Users), sets.Users,
		func(u schema.User) string { return fmt.Sprintf("%d", u.UserID) },
		func(dst *schema.User, src schema.User) { dst.Level = src.Level },
	)

	tmp, err := os.MkdirTemp("", "musicdw-lake-*")
	if err != nil {
		return fmt.Errorf("lake: temp dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return writeTable(gctx, sink, tmp, schema.Songs, convert(sets.Songs, toSongRow), songPartition)
	})
	g.Go(func() error {
		return writeTable(gctx, sink, tmp, schema.Artists, convert(sets.Artists, toArtistRow), noPartition[artistRow])
	})
	g.Go(func() error {
		return writeTable(gctx, sink, tmp, schema.Users, convert(users, toUserRow), noPartition[userRow])
	})
	g.Go(func() error {
		return writeTable(gctx, sink, tmp, schema.TimeTable, convert(sets.Time, toTimeRow), timePartition)
	})
	g.Go(func() error {
		return writeTable(gctx, sink, tmp, schema.Songplays, convert(sets.Plays, toPlayRow), playPartition)
	})
	return g.Wait()
}

func convert[S, R any](in []S, f func(S) R) []R {
	out := make([]R, len(in))
	for i, s := range in {
		out[i] = f(s)
	}
	return out
}

// writeTable overwrites one table: clears its prefix, groups rows by
// partition, writes one parquet file per partition, and uploads each.
func writeTable[R any](ctx context.Context, sink Sink, tmp, table string, rows []R, partition func(R) string) error {
	if err := sink.Remove(ctx, table); err != nil {
		return fmt.Errorf("lake: clear %s: %w", table, err)
	}

	// Group by partition, preserving first-appearance order so output file
	// sets are stable across reruns.
	var order []string
	groups := make(map[string][]R)
	for _, r := range rows {
		p := partition(r)
		if _, ok := groups[p]; !ok {
			order = append(order, p)
		}
		groups[p] = append(groups[p], r)
	}

	for i, p := range order {
		localPath := filepath.Join(tmp, fmt.Sprintf("%s-%05d.parquet", table, i))
		if err := writeParquet(localPath, groups[p]); err != nil {
			return fmt.Errorf("lake: write %s partition %q: %w", table, p, err)
		}
		key := path.Join(table, p, "part-00000.parquet")
		if err := sink.Put(ctx, key, localPath); err != nil {
			return fmt.Errorf("lake: store %s: %w", key, err)
		}
		os.Remove(localPath)
	}

	log.Printf("lake: table=%s rows=%d partitions=%d", table, len(rows), len(order))
	return nil
}

func writeParquet[R any](path string, rows []R) error {
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("create file writer: %w", err)
	}

	pw, err := writer.NewParquetWriter(fw, new(R), 2)
	if err != nil {
		fw.Close()
		return fmt.Errorf("create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, r := range rows {
		if err := pw.Write(r); err != nil {
			pw.WriteStop()
			fw.Close()
			return fmt.Errorf("write row: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		fw.Close()
		return fmt.Errorf("finalize: %w", err)
	}
	return fw.Close()
}
