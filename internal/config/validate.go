package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"

	"jsonetl/internal/storage"
)

// IssueSeverity grades a configuration finding.
type IssueSeverity string

const (
	SeverityError   IssueSeverity = "error"
	SeverityWarning IssueSeverity = "warning"
)

// Issue is one finding. Path is the dotted config key, e.g. "storage.kind".
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Validate checks c without modifying it. Storage kinds are checked against
// the registered backends when any are registered.
func Validate(c Config) []Issue {
	var issues []Issue
	add := func(sev IssueSeverity, path, format string, args ...any) {
		issues = append(issues, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if len(c.Sources) == 0 {
		add(SeverityWarning, "sources", "no source folders configured; pass them as arguments")
	}
	if strings.TrimSpace(c.Job) == "" {
		add(SeverityWarning, "job", "job is empty; metrics will be labeled %q", "jsonetl")
	}

	kind := strings.TrimSpace(c.Storage.Kind)
	switch kinds := storage.Kinds(); {
	case kind == "":
		add(SeverityError, "storage.kind", "storage kind must not be empty")
	case len(kinds) > 0 && !slices.Contains(kinds, kind):
		add(SeverityError, "storage.kind", "unsupported storage kind %q (registered: %s)", kind, strings.Join(kinds, ", "))
	}
	if strings.TrimSpace(c.Storage.DSN) == "" {
		if kind == "sqlite" {
			add(SeverityWarning, "storage.dsn", "empty dsn opens an in-memory database; loaded data is discarded on exit")
		} else if kind != "" {
			add(SeverityError, "storage.dsn", "dsn is required for storage kind %q", kind)
		}
	}

	if c.Scan.MaxDepth < 1 {
		add(SeverityError, "scan.max_depth", "must be >= 1, got %d", c.Scan.MaxDepth)
	}
	if c.Scan.Separator == "" {
		add(SeverityError, "scan.separator", "must not be empty")
	}
	if c.Scan.YieldEvery < 0 {
		add(SeverityError, "scan.yield_every", "must be >= 0, got %d", c.Scan.YieldEvery)
	}
	if c.Scan.FileProgressEvery < 0 {
		add(SeverityError, "scan.file_progress_every", "must be >= 0, got %d", c.Scan.FileProgressEvery)
	}

	switch {
	case c.Load.BatchSize <= 0:
		add(SeverityError, "load.batch_size", "must be > 0, got %d", c.Load.BatchSize)
	case c.Load.BatchSize > 100_000:
		add(SeverityWarning, "load.batch_size", "%d records per transaction may exhaust store limits", c.Load.BatchSize)
	}

	switch c.Metrics.Backend {
	case "", "none":
	case "datadog":
		if c.Metrics.FlushEvery > 0 && c.Metrics.FlushEvery < time.Second {
			add(SeverityWarning, "metrics.flush_every", "%s is very frequent for Datadog submission", c.Metrics.FlushEvery)
		}
	default:
		add(SeverityError, "metrics.backend", "unknown metrics backend %q (want none or datadog)", c.Metrics.Backend)
	}

	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		add(SeverityError, "log.level", "%v", err)
	}
	switch c.Log.Format {
	case "", "console", "json":
	default:
		add(SeverityError, "log.format", "unknown log format %q (want console or json)", c.Log.Format)
	}

	return issues
}
