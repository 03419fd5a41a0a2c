package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. file (YAML) if SHOTLOG_CONFIG is set
//  3. env (prefix SHOTLOG_)
func Load(ctx context.Context) (*Config, error) {
	base := New(ctx)

	k := koanf.New(".")

	if path := os.Getenv("SHOTLOG_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: SHOTLOG_ADDR, SHOTLOG_BATCH_SIZE, ...
	// Map env keys like SHOTLOG_BATCH_SIZE -> batch_size (flat keys),
	// preserving underscores to match koanf tags on the struct.
	envProvider := env.Provider("SHOTLOG_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "shotlog_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.FastScanRate <= 0 || c.DetailScanRate <= 0:
		return fmt.Errorf("%w: scan rates must be positive", ErrInvalidConfig)
	case c.DetailScanRate < c.FastScanRate:
		return fmt.Errorf("%w: detail_scan_rate must be >= fast_scan_rate", ErrInvalidConfig)
	case c.BallConfidenceThreshold < 0 || c.BallConfidenceThreshold > 1:
		return fmt.Errorf("%w: ball_confidence_threshold must be in [0,1]", ErrInvalidConfig)
	case c.TrajectoryHistorySeconds <= 0:
		return fmt.Errorf("%w: trajectory_history_seconds must be positive", ErrInvalidConfig)
	case c.ShotMinimumDuration <= 0 || c.ShotMaximumDuration <= c.ShotMinimumDuration:
		return fmt.Errorf("%w: shot duration bounds must satisfy 0 < min < max", ErrInvalidConfig)
	case c.GoalAreaThreshold < 0 || c.GoalAreaThreshold > 1:
		return fmt.Errorf("%w: goal_area_threshold must be in [0,1]", ErrInvalidConfig)
	case c.BatchSize <= 0:
		return fmt.Errorf("%w: batch_size must be positive", ErrInvalidConfig)
	}
	return nil
}
