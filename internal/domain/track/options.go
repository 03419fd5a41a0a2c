package track

import (
	"github.com/hooplab/shotlog/internal/domain/model"
	"github.com/hooplab/shotlog/pkg/logger"
)

// Default gating parameters, in seconds and court-normalized units.
const (
	defaultHistoryWindow    = 2.5
	defaultMinDuration      = 0.4
	defaultMaxDuration      = 4.5
	defaultMaxTimeGap       = 0.5
	defaultMaxPointDistance = 0.2
	defaultMinLaunchSpeed   = 0.1
	defaultStaleAfter       = 1.0
	defaultGoalAnchorX      = 0.5
	defaultGoalAnchorY      = 0.1
)

// Option applies a configuration option to the Tracker.
type Option func(*Tracker)

// WithHistoryWindow sets the sliding position-history window in seconds.
func WithHistoryWindow(seconds float64) Option {
	return func(t *Tracker) {
		if seconds > 0 {
			t.historyWindow = seconds
		}
	}
}

// WithDurationBounds sets the minimum and maximum shot duration in seconds.
func WithDurationBounds(minSeconds, maxSeconds float64) Option {
	return func(t *Tracker) {
		if minSeconds > 0 && maxSeconds > minSeconds {
			t.minDuration = minSeconds
			t.maxDuration = maxSeconds
		}
	}
}

// WithMaxTimeGap sets the continuation time gate in seconds.
func WithMaxTimeGap(seconds float64) Option {
	return func(t *Tracker) {
		if seconds > 0 {
			t.maxTimeGap = seconds
		}
	}
}

// WithMaxPointDistance sets the continuation distance gate in normalized units.
func WithMaxPointDistance(distance float64) Option {
	return func(t *Tracker) {
		if distance > 0 {
			t.maxPointDistance = distance
		}
	}
}

// WithMinLaunchSpeed sets the minimum upward speed that opens a candidate.
func WithMinLaunchSpeed(speed float64) Option {
	return func(t *Tracker) {
		if speed > 0 {
			t.minLaunchSpeed = speed
		}
	}
}

// WithStaleAfter sets how long an open shot may go without a continuation
// before it is closed or discarded.
func WithStaleAfter(seconds float64) Option {
	return func(t *Tracker) {
		if seconds > 0 {
			t.staleAfter = seconds
		}
	}
}

// WithGoalAnchor sets the goal-area anchor used for heading checks.
func WithGoalAnchor(anchor model.Vec2) Option {
	return func(t *Tracker) {
		t.goalAnchor = anchor
	}
}

// WithFinalizer sets the outcome classifier invoked on finalization.
func WithFinalizer(f Finalizer) Option {
	return func(t *Tracker) {
		if f != nil {
			t.finalizer = f
		}
	}
}

// WithLogger sets a custom logger for the tracker.
func WithLogger(l logger.Logger) Option {
	return func(t *Tracker) {
		if l != nil {
			t.logger = l
		}
	}
}
