// Package track maintains ball-position history and runs the shot state
// machine that groups observations into shot events.
package track

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/hooplab/shotlog/internal/domain/model"
	"github.com/hooplab/shotlog/pkg/logger"
	"github.com/hooplab/shotlog/pkg/metrics"
)

// shotState is the lifecycle state of a tracked shot.
// Transitions: candidate -> active -> completed; candidates and actives that
// go stale below the minimum duration are discarded.
type shotState int

const (
	stateCandidate shotState = iota
	stateActive
	stateCompleted
)

func (s shotState) String() string {
	switch s {
	case stateCandidate:
		return "candidate"
	case stateActive:
		return "active"
	case stateCompleted:
		return "completed"
	}
	return "unknown"
}

// trackedShot pairs a shot event with its explicit lifecycle state.
type trackedShot struct {
	shot       *model.ShotEvent
	state      shotState
	lastUpdate float64 // timestamp of the most recent continuation
}

// Finalizer computes a finished shot's outcome and rescales its confidence.
// The classify package provides the production implementation.
type Finalizer interface {
	Finalize(ctx context.Context, shot *model.ShotEvent)
}

// Span is a closed time interval covered by a shot.
type Span struct {
	Start float64
	End   float64
}

// Tracker ingests ball positions, derives finite-difference kinematics and
// drives the candidate/active/completed shot state machine. Ingestion is
// order-independent: positions are insert-sorted by timestamp, so batched
// observations may arrive in any order.
type Tracker struct {
	mu sync.Mutex

	history   []model.BallPosition // sorted by timestamp
	shots     []*trackedShot       // candidates and actives, in creation order
	completed []model.ShotEvent

	historyWindow    float64
	minDuration      float64
	maxDuration      float64
	maxTimeGap       float64
	maxPointDistance float64
	minLaunchSpeed   float64
	staleAfter       float64
	goalAnchor       model.Vec2

	finalizer Finalizer
	logger    logger.Logger
}

// New creates a Tracker with default gating parameters.
func New(opts ...Option) *Tracker {
	t := &Tracker{
		historyWindow:    defaultHistoryWindow,
		minDuration:      defaultMinDuration,
		maxDuration:      defaultMaxDuration,
		maxTimeGap:       defaultMaxTimeGap,
		maxPointDistance: defaultMaxPointDistance,
		minLaunchSpeed:   defaultMinLaunchSpeed,
		staleAfter:       defaultStaleAfter,
		goalAnchor:       model.Vec2{X: defaultGoalAnchorX, Y: defaultGoalAnchorY},
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.logger == nil {
		t.logger = logger.Get().Named("tracker")
	}
	return t
}

// Observe ingests one ball position. Malformed positions are rejected with a
// validation error; duplicate timestamps are skipped so re-scanned frames
// cannot violate the one-point-per-timestamp invariant.
func (t *Tracker) Observe(ctx context.Context, pos model.BallPosition) error {
	if !pos.Valid() {
		return fmt.Errorf("%w: non-finite or out-of-range fields at t=%v", ErrInvalidPosition, pos.Timestamp)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	idx := sort.Search(len(t.history), func(i int) bool {
		return t.history[i].Timestamp >= pos.Timestamp
	})
	if idx < len(t.history) && t.history[idx].Timestamp == pos.Timestamp {
		t.logger.Debug(ctx, "skipping duplicate observation", logger.Float64("t", pos.Timestamp))
		return nil
	}

	t.history = append(t.history, model.BallPosition{})
	copy(t.history[idx+1:], t.history[idx:])
	t.history[idx] = pos
	t.evictOld()

	// Recompute the insertion index after eviction.
	idx = sort.Search(len(t.history), func(i int) bool {
		return t.history[i].Timestamp >= pos.Timestamp
	})
	if idx >= len(t.history) || t.history[idx].Timestamp != pos.Timestamp {
		// Position fell outside the retained window.
		return nil
	}

	point := t.derivePoint(idx)
	t.step(ctx, point)
	t.finalizePass(ctx, t.latestTimestamp())
	return nil
}

// evictOld drops positions older than the sliding window.
func (t *Tracker) evictOld() {
	if len(t.history) == 0 {
		return
	}
	cutoff := t.history[len(t.history)-1].Timestamp - t.historyWindow
	first := sort.Search(len(t.history), func(i int) bool {
		return t.history[i].Timestamp >= cutoff
	})
	if first > 0 {
		t.history = append(t.history[:0], t.history[first:]...)
	}
}

// derivePoint computes finite-difference kinematics for the position at idx
// using its predecessors. Velocity needs one neighbor, acceleration two;
// both stay nil at the window boundary.
func (t *Tracker) derivePoint(idx int) model.TrajectoryPoint {
	point := model.TrajectoryPoint{Position: t.history[idx]}
	if idx < 1 {
		return point
	}
	p0, p1 := t.history[idx-1], t.history[idx]
	dt := p1.Timestamp - p0.Timestamp
	if dt <= 0 {
		return point
	}
	v := model.Vec2{X: (p1.X - p0.X) / dt, Y: (p1.Y - p0.Y) / dt}
	point.Velocity = &v

	if idx < 2 {
		return point
	}
	pm := t.history[idx-2]
	dtPrev := p0.Timestamp - pm.Timestamp
	if dtPrev <= 0 {
		return point
	}
	vPrev := model.Vec2{X: (p0.X - pm.X) / dtPrev, Y: (p0.Y - pm.Y) / dtPrev}
	a := model.Vec2{X: (v.X - vPrev.X) / dt, Y: (v.Y - vPrev.Y) / dt}
	point.Acceleration = &a
	return point
}

// step routes a derived point into the state machine: continuation of the
// best-matching open shot, or creation of a new candidate on launch motion.
func (t *Tracker) step(ctx context.Context, point model.TrajectoryPoint) {
	if ts := t.match(point.Position); ts != nil {
		t.continueShot(ctx, ts, point)
		return
	}
	if t.isLaunch(point) {
		t.createCandidate(ctx, point)
	}
}

// match finds the most recently touched open shot with a trajectory point
// inside the time-gap and distance gates. Gating runs against the point
// nearest in time, not the newest one, so a fine re-scan of a range the
// coarse pass already covered merges into the existing shot instead of
// opening a duplicate. At most one open shot may claim a new point.
func (t *Tracker) match(pos model.BallPosition) *trackedShot {
	var best *trackedShot
	for _, ts := range t.shots {
		near := nearestPoint(ts.shot, pos.Timestamp)
		if near == nil {
			continue
		}
		dt := pos.Timestamp - near.Position.Timestamp
		if dt < 0 {
			dt = -dt
		}
		if dt > t.maxTimeGap || pos.DistanceTo(near.Position) > t.maxPointDistance {
			continue
		}
		if best == nil || ts.lastUpdate > best.lastUpdate {
			best = ts
		}
	}
	return best
}

// nearestPoint returns the trajectory point whose timestamp is closest to
// ts, or nil for an empty trajectory.
func nearestPoint(shot *model.ShotEvent, ts float64) *model.TrajectoryPoint {
	n := len(shot.Trajectory)
	if n == 0 {
		return nil
	}
	i := sort.Search(n, func(j int) bool {
		return shot.Trajectory[j].Position.Timestamp >= ts
	})
	if i == n {
		return &shot.Trajectory[n-1]
	}
	if i == 0 {
		return &shot.Trajectory[0]
	}
	if ts-shot.Trajectory[i-1].Position.Timestamp <= shot.Trajectory[i].Position.Timestamp-ts {
		return &shot.Trajectory[i-1]
	}
	return &shot.Trajectory[i]
}

// isLaunch reports whether a point looks like the start of a shot: moving
// upward (y decreasing) faster than the minimum launch speed.
func (t *Tracker) isLaunch(point model.TrajectoryPoint) bool {
	v := point.Velocity
	return v != nil && v.Y < 0 && v.Norm() >= t.minLaunchSpeed
}

// createCandidate opens a new shot event around a launch point.
func (t *Tracker) createCandidate(ctx context.Context, point model.TrajectoryPoint) {
	pos := point.Position
	shot := &model.ShotEvent{
		ID:         uuid.NewString(),
		StartTime:  pos.Timestamp,
		EndTime:    pos.Timestamp,
		Trajectory: []model.TrajectoryPoint{point},
		Outcome:    model.OutcomeUnknown,
		Confidence: pos.Confidence,
		Peak:       &pos,
	}
	t.updateGoalDirection(shot, point)
	t.shots = append(t.shots, &trackedShot{
		shot:       shot,
		state:      stateCandidate,
		lastUpdate: pos.Timestamp,
	})
	t.logger.Debug(ctx, "shot candidate opened",
		logger.String("shot", shot.ID),
		logger.Float64("t", pos.Timestamp),
	)
}

// continueShot appends a point to an open shot, keeping the trajectory
// time-ordered even when observations arrive out of order.
func (t *Tracker) continueShot(ctx context.Context, ts *trackedShot, point model.TrajectoryPoint) {
	shot := ts.shot
	pos := point.Position

	i := sort.Search(len(shot.Trajectory), func(j int) bool {
		return shot.Trajectory[j].Position.Timestamp >= pos.Timestamp
	})
	if i < len(shot.Trajectory) && shot.Trajectory[i].Position.Timestamp == pos.Timestamp {
		return
	}
	shot.Trajectory = append(shot.Trajectory, model.TrajectoryPoint{})
	copy(shot.Trajectory[i+1:], shot.Trajectory[i:])
	shot.Trajectory[i] = point

	if pos.Timestamp < shot.StartTime {
		shot.StartTime = pos.Timestamp
	}
	if pos.Timestamp > shot.EndTime {
		shot.EndTime = pos.Timestamp
	}
	shot.Confidence = (shot.Confidence + pos.Confidence) / 2
	if shot.Peak == nil || pos.Y < shot.Peak.Y {
		p := pos
		shot.Peak = &p
	}
	t.updateGoalDirection(shot, point)

	ts.lastUpdate = pos.Timestamp
	if ts.state == stateCandidate {
		ts.state = stateActive
		t.logger.Debug(ctx, "shot candidate promoted",
			logger.String("shot", shot.ID),
			logger.String("state", ts.state.String()),
		)
	}
}

// updateGoalDirection recomputes the heading flag from the point's velocity:
// positive dot product with the vector toward the goal-area anchor means the
// ball is heading toward the hoop.
func (t *Tracker) updateGoalDirection(shot *model.ShotEvent, point model.TrajectoryPoint) {
	if point.Velocity == nil {
		return
	}
	toGoal := model.Vec2{
		X: t.goalAnchor.X - point.Position.X,
		Y: t.goalAnchor.Y - point.Position.Y,
	}
	shot.GoalDirection = point.Velocity.Dot(toGoal) > 0
	if shot.GoalDirection {
		shot.TowardGoalEver = true
	}
}

// finalizePass closes or discards open shots relative to the newest
// observation time. A shot finalizes once it reached the minimum duration
// and either hit the maximum duration or went stale; sub-minimum stale
// shots are transient noise and are dropped.
func (t *Tracker) finalizePass(ctx context.Context, now float64) {
	kept := t.shots[:0]
	for _, ts := range t.shots {
		dur := ts.shot.Duration()
		stale := now-ts.lastUpdate > t.staleAfter
		switch {
		case dur >= t.minDuration && (dur >= t.maxDuration || stale):
			t.complete(ctx, ts)
		case stale && dur < t.minDuration:
			metrics.RecordShotDiscarded()
			t.logger.Debug(ctx, "discarding transient shot",
				logger.String("shot", ts.shot.ID),
				logger.Float64("duration", dur),
			)
		default:
			kept = append(kept, ts)
		}
	}
	t.shots = kept
}

// complete finalizes one shot: outcome plus quality-scaled confidence, then
// the move into the immutable completed set.
func (t *Tracker) complete(ctx context.Context, ts *trackedShot) {
	ts.state = stateCompleted
	ts.shot.FrameCount = len(ts.shot.Trajectory)
	if t.finalizer != nil {
		t.finalizer.Finalize(ctx, ts.shot)
	}
	t.completed = append(t.completed, cloneShot(ts.shot))
	metrics.RecordShotDetected()
	metrics.RecordShotOutcome(string(ts.shot.Outcome))
	t.logger.Info(ctx, "shot completed",
		logger.String("shot", ts.shot.ID),
		logger.String("outcome", string(ts.shot.Outcome)),
		logger.Float64("confidence", ts.shot.Confidence),
		logger.Int("points", len(ts.shot.Trajectory)),
	)
}

// Finish ends the input stream: remaining open shots that reached the
// minimum duration are finalized, the rest are discarded.
func (t *Tracker) Finish(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, ts := range t.shots {
		if ts.shot.Duration() >= t.minDuration {
			t.complete(ctx, ts)
		} else {
			metrics.RecordShotDiscarded()
		}
	}
	t.shots = nil
}

// latestTimestamp returns the newest history timestamp, or 0 when empty.
// Caller must hold the lock.
func (t *Tracker) latestTimestamp() float64 {
	if len(t.history) == 0 {
		return 0
	}
	return t.history[len(t.history)-1].Timestamp
}

// Spans returns the time spans of all open and completed shots, for
// candidate-window selection.
func (t *Tracker) Spans() []Span {
	t.mu.Lock()
	defer t.mu.Unlock()

	spans := make([]Span, 0, len(t.shots)+len(t.completed))
	for _, ts := range t.shots {
		spans = append(spans, Span{Start: ts.shot.StartTime, End: ts.shot.EndTime})
	}
	for i := range t.completed {
		spans = append(spans, Span{Start: t.completed[i].StartTime, End: t.completed[i].EndTime})
	}
	return spans
}

// CompletedShots returns deep copies of the completed set, ordered by start
// time. The tracker's own copies are never handed out, so downstream
// refinement cannot mutate completed shots.
func (t *Tracker) CompletedShots() []model.ShotEvent {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]model.ShotEvent, len(t.completed))
	for i := range t.completed {
		out[i] = cloneShot(&t.completed[i])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime < out[j].StartTime })
	return out
}

// OpenShotCount returns the number of candidate plus active shots.
func (t *Tracker) OpenShotCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.shots)
}

// HistoryLen returns the number of retained positions.
func (t *Tracker) HistoryLen() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.history)
}

// cloneShot deep-copies a shot event.
func cloneShot(s *model.ShotEvent) model.ShotEvent {
	out := *s
	out.Trajectory = make([]model.TrajectoryPoint, len(s.Trajectory))
	copy(out.Trajectory, s.Trajectory)
	if s.Peak != nil {
		p := *s.Peak
		out.Peak = &p
	}
	return out
}
