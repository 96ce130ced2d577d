// Package config defines the canonical, JSON-serializable configuration model
// for the pipeline. It is intentionally small, explicit, and dependency-free
// so that pipeline files can be loaded from disk and passed through the
// program without additional glue code.
//
// Example (warehouse variant):
//
//	{
//	  "job":    "sparkify-nightly",
//	  "source": { "kind": "file", "file": { "song_data": "data/song_data", "log_data": "data/log_data" } },
//	  "storage": { "kind": "postgres", "db": { "dsn": "postgresql://..." } }
//	}
//
// Example (lake variant):
//
//	{
//	  "job":    "sparkify-lake",
//	  "source": { "kind": "s3", "s3": { "bucket": "udacity-dend", "region": "us-west-2",
//	              "song_prefix": "song_data/", "log_prefix": "log_data/" } },
//	  "storage": { "kind": "lake", "lake": { "kind": "file", "path": "out/" } }
//	}
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Pipeline is the top-level object decoded from a pipeline file.
type Pipeline struct {
	// Job names the run for logging and metrics labeling.
	Job string `json:"job"`

	// Source describes where raw song-catalog and usage-log records come from.
	Source Source `json:"source"`

	// Storage selects the destination: a relational warehouse or a parquet
	// lake.
	Storage Storage       `json:"storage"`
	Runtime RuntimeConfig `json:"runtime"`
}

// RuntimeConfig controls concurrency, batching, and channel buffer sizes.
// Zero values select defaults.
type RuntimeConfig struct {
	// Workers is the conformance fan-out width (lake variant).
	Workers       int `json:"workers"`
	BatchSize     int `json:"batch_size"`
	ChannelBuffer int `json:"channel_buffer"`

	// NodeID seeds surrogate-key generation (0..1023). Give concurrent
	// pipelines distinct IDs.
	NodeID int64 `json:"node_id"`
}

// Source identifies where raw records are read from.
type Source struct {
	// Kind selects the source implementation: "file" or "s3".
	Kind string `json:"kind"`

	File SourceFile `json:"file"`
	S3   SourceS3   `json:"s3"`
}

// SourceFile holds configuration for the "file" source kind: the two local
// directory trees of the Sparkify layout.
type SourceFile struct {
	SongData string `json:"song_data"`
	LogData  string `json:"log_data"`
}

// SourceS3 holds configuration for the "s3" source kind.
type SourceS3 struct {
	Bucket     string `json:"bucket"`
	Region     string `json:"region"`
	SongPrefix string `json:"song_prefix"`
	LogPrefix  string `json:"log_prefix"`
}

// Storage selects the sink used to persist the star schema.
type Storage struct {
	// Kind selects the storage implementation: "postgres", "sqlite", or
	// "lake".
	Kind string `json:"kind"`

	DB   DBConfig   `json:"db"`
	Lake LakeConfig `json:"lake"`
}

// DBConfig configures the relational sinks.
type DBConfig struct {
	// DSN is the connection string: pgx/pgxpool format for postgres, a file
	// path for sqlite.
	DSN string `json:"dsn"`

	// DropFirst drops every managed table before recreating it, resetting
	// warehouse state instead of merging into it.
	DropFirst bool `json:"drop_first"`
}

// LakeConfig configures the parquet sink.
type LakeConfig struct {
	// Kind selects the lake destination: "file" or "s3".
	Kind string `json:"kind"`

	// Path is the local output root for the "file" kind.
	Path string `json:"path"`

	// Bucket/Prefix/Region locate the output for the "s3" kind.
	Bucket string `json:"bucket"`
	Prefix string `json:"prefix"`
	Region string `json:"region"`
}

// Load decodes a pipeline file. Unknown fields are rejected so typos surface
// at startup instead of silently selecting defaults.
func Load(path string) (Pipeline, error) {
	var p Pipeline
	f, err := os.Open(path)
	if err != nil {
		return p, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return p, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return p, nil
}
