// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(...) to build a Config with defaults.
// - All loading functions accept context.Context as the first parameter.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"context"
	"runtime"
)

// Config contains process configuration. Analysis fields map one-to-one to
// the tunable parameters of the detection pipeline; all are independently
// overridable through file or environment.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory analysis job queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of analysis workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets the size of the job deduplication cache.
	DedupeSize int `koanf:"dedupe_size"`

	// FrameRate is the source video frame rate in frames per second.
	FrameRate float64 `koanf:"frame_rate"`

	// AnalysisFrameRate is the nominal sampling rate in frames per second.
	AnalysisFrameRate float64 `koanf:"analysis_frame_rate"`

	// FastScanRate is the sampling rate of the coarse full-clip pass.
	FastScanRate float64 `koanf:"fast_scan_rate"`

	// DetailScanRate is the sampling rate inside candidate windows.
	DetailScanRate float64 `koanf:"detail_scan_rate"`

	// BallConfidenceThreshold is the minimum detector score for a
	// detection to count as a ball observation.
	BallConfidenceThreshold float64 `koanf:"ball_confidence_threshold"`

	// TrajectoryHistorySeconds bounds the tracker's position window.
	TrajectoryHistorySeconds float64 `koanf:"trajectory_history_seconds"`

	// ShotMinimumDuration and ShotMaximumDuration bound a shot's time span
	// in seconds.
	ShotMinimumDuration float64 `koanf:"shot_minimum_duration"`
	ShotMaximumDuration float64 `koanf:"shot_maximum_duration"`

	// GoalAreaThreshold is the maximum normalized y for a made-shot endpoint.
	GoalAreaThreshold float64 `koanf:"goal_area_threshold"`

	// ParabolicThreshold gates downstream consumers on fit quality. It does
	// not affect the fit itself.
	ParabolicThreshold float64 `koanf:"parabolic_threshold"`

	// BatchSize is the number of detector calls issued concurrently within
	// one scan batch. This is the device-capability input.
	BatchSize int `koanf:"batch_size"`

	// BatchTimeoutMS bounds a single batch of detector calls.
	BatchTimeoutMS int `koanf:"batch_timeout_ms"`
}

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention; it is reserved for future use.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:                 "info",
		Addr:                     ":9080",
		QueueSize:                1024,
		WorkerCount:              runtime.NumCPU(),
		DedupeSize:               50_000,
		FrameRate:                30,
		AnalysisFrameRate:        8,
		FastScanRate:             4,
		DetailScanRate:           12,
		BallConfidenceThreshold:  0.35,
		TrajectoryHistorySeconds: 2.5,
		ShotMinimumDuration:      0.4,
		ShotMaximumDuration:      4.5,
		GoalAreaThreshold:        0.7,
		ParabolicThreshold:       0.75,
		BatchSize:                4,
		BatchTimeoutMS:           5_000,
	}
}
