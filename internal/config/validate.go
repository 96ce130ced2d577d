// This file adds a lightweight linter/validator for Pipeline values. It
// performs static checks over a decoded Pipeline and returns a list of issues
// (errors and warnings) that callers can surface in a CLI or tests.
package config

import (
	"fmt"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a configuration warning that should be surfaced
	// to users but may not necessarily block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation/lint finding for a Pipeline.
//
// Path is a dotted path into the config (e.g. "storage.kind",
// "source.s3.bucket"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue carries error severity.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ValidatePipeline performs static validation / linting of a Pipeline.
//
// It does not mutate the pipeline. Instead it returns a slice of Issue values.
// Callers may decide whether to treat warnings as fatal or not.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue

	if strings.TrimSpace(p.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "job",
			Message:  "job is empty; runs will be hard to tell apart in logs and metrics",
		})
	}
	issues = append(issues, validateSource(p.Source)...)
	issues = append(issues, validateStorage(p.Storage)...)
	issues = append(issues, validateRuntime(p.Runtime)...)

	return issues
}

func validateSource(s Source) []Issue {
	var issues []Issue

	if strings.TrimSpace(s.Kind) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.kind",
			Message:  "source.kind must not be empty",
		})
		return issues
	}

	switch s.Kind {
	case "file":
		if strings.TrimSpace(s.File.SongData) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "source.file.song_data",
				Message:  "file source requires a non-empty song_data directory",
			})
		}
		if strings.TrimSpace(s.File.LogData) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "source.file.log_data",
				Message:  "file source requires a non-empty log_data directory",
			})
		}
	case "s3":
		if strings.TrimSpace(s.S3.Bucket) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "source.s3.bucket",
				Message:  "s3 source requires a non-empty bucket",
			})
		}
		if strings.TrimSpace(s.S3.Region) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "source.s3.region",
				Message:  "s3 source requires a non-empty region",
			})
		}
		if strings.TrimSpace(s.S3.SongPrefix) == "" || strings.TrimSpace(s.S3.LogPrefix) == "" {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "source.s3",
				Message:  "empty song_prefix/log_prefix scans the whole bucket; set both to constrain the read",
			})
		}
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.kind",
			Message:  fmt.Sprintf("unknown source kind %q; expected \"file\" or \"s3\"", s.Kind),
		})
	}

	return issues
}

func validateStorage(s Storage) []Issue {
	var issues []Issue

	if strings.TrimSpace(s.Kind) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.kind",
			Message:  "storage.kind must not be empty",
		})
		return issues
	}

	switch s.Kind {
	case "postgres", "sqlite":
		if strings.TrimSpace(s.DB.DSN) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "storage.db.dsn",
				Message:  "relational storage requires a non-empty dsn",
			})
		}
	case "lake":
		issues = append(issues, validateLake(s.Lake)...)
	default:
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "storage.kind",
			Message:  fmt.Sprintf("unknown storage kind %q; ensure a matching backend is registered", s.Kind),
		})
	}

	return issues
}

func validateLake(l LakeConfig) []Issue {
	var issues []Issue

	switch l.Kind {
	case "file":
		if strings.TrimSpace(l.Path) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "storage.lake.path",
				Message:  "file lake requires a non-empty output path",
			})
		}
	case "s3":
		if strings.TrimSpace(l.Bucket) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "storage.lake.bucket",
				Message:  "s3 lake requires a non-empty bucket",
			})
		}
		if strings.TrimSpace(l.Region) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "storage.lake.region",
				Message:  "s3 lake requires a non-empty region",
			})
		}
	case "":
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.lake.kind",
			Message:  "lake storage requires lake.kind (\"file\" or \"s3\")",
		})
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.lake.kind",
			Message:  fmt.Sprintf("unknown lake kind %q; expected \"file\" or \"s3\"", l.Kind),
		})
	}

	return issues
}

// validateRuntime validates RuntimeConfig for obvious misconfigurations
// (negative values, out-of-range node IDs, etc.).
func validateRuntime(r RuntimeConfig) []Issue {
	var issues []Issue

	if r.Workers < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.workers",
			Message:  "workers must not be negative",
		})
	}
	if r.BatchSize < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.batch_size",
			Message:  "batch_size must not be negative",
		})
	}
	if r.ChannelBuffer < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.channel_buffer",
			Message:  "channel_buffer must not be negative",
		})
	}
	if r.NodeID < 0 || r.NodeID > 1023 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.node_id",
			Message:  fmt.Sprintf("node_id=%d; must be in 0..1023", r.NodeID),
		})
	}

	return issues
}
