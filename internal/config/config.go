// Package config loads jsonetl settings from a YAML file, JSONETL_*
// environment variables and command-line flags through viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"jsonetl/internal/dyntable"
	"jsonetl/internal/transformer"
)

// EnvPrefix prefixes environment overrides, e.g. JSONETL_STORAGE_DSN.
const EnvPrefix = "JSONETL"

// Config is the full set of settings.
type Config struct {
	// Sources are the folders (or files) to scan.
	Sources []string `mapstructure:"sources"`
	// Target identifies the destination table before sanitization.
	Target  string     `mapstructure:"target"`
	Job     string     `mapstructure:"job"`
	Storage Storage    `mapstructure:"storage"`
	Scan    Scan       `mapstructure:"scan"`
	Load    LoadConfig `mapstructure:"load"`
	Metrics Metrics    `mapstructure:"metrics"`
	Log     Log        `mapstructure:"log"`
}

type Storage struct {
	Kind string `mapstructure:"kind"`
	DSN  string `mapstructure:"dsn"`
}

type Scan struct {
	MaxDepth          int      `mapstructure:"max_depth"`
	Separator         string   `mapstructure:"separator"`
	YieldEvery        int      `mapstructure:"yield_every"`
	FileProgressEvery int      `mapstructure:"file_progress_every"`
	SkipDirs          []string `mapstructure:"skip_dirs"`
}

type LoadConfig struct {
	BatchSize int `mapstructure:"batch_size"`
}

type Metrics struct {
	// Backend is "none" or "datadog".
	Backend    string        `mapstructure:"backend"`
	Tags       []string      `mapstructure:"tags"`
	FlushEvery time.Duration `mapstructure:"flush_every"`
}

type Log struct {
	Level string `mapstructure:"level"`
	// Format is "console" or "json".
	Format string `mapstructure:"format"`
}

// SetDefaults registers every key with its default so environment overrides
// apply to all of them.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("sources", []string{})
	v.SetDefault("target", "")
	v.SetDefault("job", "jsonetl")
	v.SetDefault("storage.kind", "sqlite")
	v.SetDefault("storage.dsn", "jsonetl.db")
	v.SetDefault("scan.max_depth", transformer.DefaultMaxDepth)
	v.SetDefault("scan.separator", transformer.DefaultSeparator)
	v.SetDefault("scan.yield_every", 1000)
	v.SetDefault("scan.file_progress_every", 10)
	v.SetDefault("scan.skip_dirs", []string{})
	v.SetDefault("load.batch_size", dyntable.DefaultBatchSize)
	v.SetDefault("metrics.backend", "none")
	v.SetDefault("metrics.tags", []string{})
	v.SetDefault("metrics.flush_every", time.Minute)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// BindEnv enables JSONETL_* overrides, with "." in keys mapped to "_".
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load decodes v into a Config.
func Load(v *viper.Viper) (Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	// Comma-separated env values arrive as one element.
	c.Sources = splitList(c.Sources)
	c.Metrics.Tags = splitList(c.Metrics.Tags)
	c.Scan.SkipDirs = splitList(c.Scan.SkipDirs)
	return c, nil
}

func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// NewLogger builds the process logger from c.
func (c Log) NewLogger() (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}
	var zc zap.Config
	if c.Format == "json" {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
		zc.DisableStacktrace = true
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}
