package lake

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// DirSink stores parquet files under a local root directory.
type DirSink struct {
	Root string
}

// NewDirSink returns a DirSink rooted at root, creating it if needed.
func NewDirSink(root string) (*DirSink, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("lake: create output root %s: %w", root, err)
	}
	return &DirSink{Root: root}, nil
}

// Remove deletes the table prefix and everything under it.
func (d *DirSink) Remove(ctx context.Context, prefix string) error {
	return os.RemoveAll(filepath.Join(d.Root, filepath.FromSlash(prefix)))
}

// Put copies the local file into root/key, creating partition directories.
func (d *DirSink) Put(ctx context.Context, key, localPath string) error {
	dst := filepath.Join(d.Root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	src, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
