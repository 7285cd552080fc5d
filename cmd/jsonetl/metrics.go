package main

import (
	"context"
	"os"

	"go.uber.org/zap"

	"jsonetl/internal/config"
	"jsonetl/internal/metrics"
	"jsonetl/internal/metrics/datadog"
)

// setupMetrics installs the configured backend and returns its shutdown
// function. Initialization failures leave metrics disabled.
func setupMetrics(ctx context.Context, cfg config.Config, log *zap.Logger) func() {
	switch cfg.Metrics.Backend {
	case "datadog":
		// METRICS_TAGS adds deployment tags on top of the configured ones.
		tags := append(append([]string(nil), cfg.Metrics.Tags...), datadog.ParseTagsCSV(os.Getenv("METRICS_TAGS"))...)
		b, err := datadog.NewBackend(ctx, datadog.Options{
			JobName:    cfg.Job,
			Tags:       tags,
			FlushEvery: cfg.Metrics.FlushEvery,
		})
		if err != nil {
			log.Warn("metrics: datadog init failed; using nop", zap.Error(err))
			return func() {}
		}
		log.Info("metrics enabled",
			zap.String("backend", "datadog"),
			zap.String("job", cfg.Job),
			zap.Strings("tags", tags))
		metrics.SetBackend(b)
		return func() {
			if err := b.Close(); err != nil {
				log.Warn("metrics: datadog close/flush", zap.Error(err))
			}
			metrics.Reset()
		}

	case "", "none":
		log.Debug("metrics disabled")
	default:
		log.Warn("metrics: unknown backend; disabled", zap.String("backend", cfg.Metrics.Backend))
	}
	return func() {}
}
