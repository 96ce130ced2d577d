package source

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"musicdw/pkg/records"
)

// warnLimit caps per-reader bad-record log lines so a corrupt file cannot
// flood the log. The counter keeps the full tally.
const warnLimit = 3

// Dir reads a Sparkify-layout JSON tree from the local filesystem. One Dir
// covers one root (the song-data tree or the log-data tree); construct one
// per family.
type Dir struct {
	Root string

	stats Stats
	warns int
}

// NewDir returns a Dir rooted at root.
func NewDir(root string) *Dir { return &Dir{Root: root} }

// Stats exposes the reader's counters.
func (d *Dir) Stats() *Stats { return &d.stats }

// ReadCatalog walks the tree and decodes every *.json file as a single song
// record, sending each into out. An unreadable file or walk error aborts; an
// undecodable file is dropped and counted.
func (d *Dir) ReadCatalog(ctx context.Context, out chan<- records.Record) error {
	return d.walk(ctx, func(path string) error {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("source: open %s: %w", path, err)
		}
		defer f.Close()

		d.stats.Files.Add(1)
		rec, err := DecodeObject(f)
		if err != nil {
			d.stats.BadRecords.Add(1)
			d.warnf("source: skip %s: %v", path, err)
			return nil
		}
		return d.send(ctx, out, rec)
	})
}

// ReadEvents walks the tree and decodes every *.json file as NDJSON, sending
// each decoded line into out. Bad lines are dropped and counted; the file
// keeps streaming.
func (d *Dir) ReadEvents(ctx context.Context, out chan<- records.Record) error {
	return d.walk(ctx, func(path string) error {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("source: open %s: %w", path, err)
		}
		defer f.Close()

		d.stats.Files.Add(1)
		err = DecodeLines(f, func(rec records.Record) error {
			return d.send(ctx, out, rec)
		}, func(line int, derr error) {
			d.stats.BadRecords.Add(1)
			d.warnf("source: skip %s:%d: %v", path, line, derr)
		})
		if err != nil && ctx.Err() == nil {
			return fmt.Errorf("source: read %s: %w", path, err)
		}
		return err
	})
}

func (d *Dir) walk(ctx context.Context, visit func(path string) error) error {
	return filepath.WalkDir(d.Root, func(path string, ent fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("source: walk %s: %w", d.Root, err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if ent.IsDir() || !strings.HasSuffix(ent.Name(), ".json") {
			return nil
		}
		return visit(path)
	})
}

func (d *Dir) send(ctx context.Context, out chan<- records.Record, rec records.Record) error {
	select {
	case out <- rec:
		d.stats.Records.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dir) warnf(format string, args ...any) {
	d.warns++
	if d.warns <= warnLimit {
		log.Printf(format, args...)
	} else if d.warns == warnLimit+1 {
		log.Printf("source: further warnings suppressed")
	}
}
