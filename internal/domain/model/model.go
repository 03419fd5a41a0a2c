// Package model contains domain models passed between layers.
package model

import (
	"math"
	"time"
)

// Outcome classifies a finished shot attempt.
type Outcome string

// Possible shot outcomes.
const (
	OutcomeMade    Outcome = "made"
	OutcomeMissed  Outcome = "missed"
	OutcomeUnknown Outcome = "unknown"
)

// Vec2 is a 2D vector in court-normalized units.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Dot returns the dot product with o.
func (v Vec2) Dot(o Vec2) float64 {
	return v.X*o.X + v.Y*o.Y
}

// Norm returns the Euclidean length.
func (v Vec2) Norm() float64 {
	return math.Hypot(v.X, v.Y)
}

// BallPosition is one court-normalized ball observation. X and Y are in
// [0,1] with Y growing downward; Timestamp is seconds from clip start.
// Immutable once created.
type BallPosition struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Timestamp  float64 `json:"timestamp"`
	Confidence float64 `json:"confidence"`
	FrameIndex int     `json:"frame_index"`
}

// Valid reports whether all fields are finite and in range.
func (p BallPosition) Valid() bool {
	for _, f := range []float64{p.X, p.Y, p.Timestamp, p.Confidence} {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return p.X >= 0 && p.X <= 1 && p.Y >= 0 && p.Y <= 1 &&
		p.Timestamp >= 0 && p.Confidence >= 0 && p.Confidence <= 1
}

// DistanceTo returns the normalized planar distance to o.
func (p BallPosition) DistanceTo(o BallPosition) float64 {
	return math.Hypot(p.X-o.X, p.Y-o.Y)
}

// TrajectoryPoint augments a position with finite-difference kinematics.
// Velocity is nil for the first point of a history window and Acceleration
// is nil for the first two; consumers must check.
type TrajectoryPoint struct {
	Position     BallPosition `json:"position"`
	Velocity     *Vec2        `json:"velocity,omitempty"`
	Acceleration *Vec2        `json:"acceleration,omitempty"`
}

// ShotEvent is a temporally bounded sequence of trajectory points
// interpreted as one shooting attempt. Mutated only while the tracker holds
// it as active; immutable once completed.
type ShotEvent struct {
	ID         string            `json:"id"`
	StartTime  float64           `json:"start_time"`
	EndTime    float64           `json:"end_time"`
	Trajectory []TrajectoryPoint `json:"trajectory"`
	Outcome    Outcome           `json:"outcome"`
	Confidence float64           `json:"confidence"`
	// Peak is the position with the minimum y (highest on court) seen so far.
	Peak *BallPosition `json:"peak,omitempty"`
	// GoalDirection reports whether the latest velocity points toward the
	// goal area; TowardGoalEver latches it across the shot's lifetime.
	GoalDirection  bool `json:"goal_direction"`
	TowardGoalEver bool `json:"toward_goal_ever"`
	// FrameCount is the number of sampled frames that contributed a point.
	FrameCount int `json:"frame_count"`
}

// Duration returns the shot's time span in seconds.
func (s *ShotEvent) Duration() float64 {
	return s.EndTime - s.StartTime
}

// LastPoint returns the most recent trajectory point, or nil when empty.
func (s *ShotEvent) LastPoint() *TrajectoryPoint {
	if len(s.Trajectory) == 0 {
		return nil
	}
	return &s.Trajectory[len(s.Trajectory)-1]
}

// Detection is one raw detector output for a frame. Box is [x, y, w, h]
// in source-pixel units.
type Detection struct {
	Label string     `json:"label"`
	Score float64    `json:"score"`
	Box   [4]float64 `json:"box"`
}

// AnalysisFrame is the ephemeral per-frame record flowing through a scan.
type AnalysisFrame struct {
	Timestamp  float64
	FrameIndex int
	Detections []Detection
	Ball       *BallPosition
}

// AnalysisResult is the final product of one analysis run.
type AnalysisResult struct {
	Shots             []ShotEvent       `json:"shots"`
	TotalFrames       int               `json:"total_frames"`
	ProcessedFrames   int               `json:"processed_frames"`
	ProcessingTime    float64           `json:"processing_time_seconds"`
	AverageConfidence float64           `json:"average_confidence"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

// Summary aggregates outcomes the way the scoreboard reports them.
type Summary struct {
	Attempts     int     `json:"total_attempts"`
	Makes        int     `json:"makes"`
	Misses       int     `json:"misses"`
	FieldGoalPct float64 `json:"fg_percentage"`
}

// Summarize derives a Summary from the result's shots. Everything that is
// not a make counts as a miss, mirroring the export vocabulary.
func (r *AnalysisResult) Summarize() Summary {
	s := Summary{Attempts: len(r.Shots)}
	for i := range r.Shots {
		if r.Shots[i].Outcome == OutcomeMade {
			s.Makes++
		}
	}
	s.Misses = s.Attempts - s.Makes
	if s.Attempts > 0 {
		s.FieldGoalPct = float64(s.Makes) / float64(s.Attempts) * 100
	}
	return s
}

// Job is an analysis request queued for asynchronous processing.
type Job struct {
	ID          string    // unique id for idempotency
	ClipID      string    // identifies the clip at the frame source
	Duration    float64   // clip duration in seconds, 0 = ask the source
	SubmittedAt time.Time // receipt time
}
