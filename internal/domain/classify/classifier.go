// Package classify determines shot outcomes and scores trajectory quality.
//
// Outcome is a small rule over the shot's final trajectory point; quality is
// the goodness of fit (R-squared) of a quadratic model of vertical motion,
// solved in closed form from the least-squares normal equations.
package classify

import (
	"context"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/hooplab/shotlog/internal/domain/model"
)

// Default classification parameters.
const (
	defaultGoalXMin          = 0.3
	defaultGoalXMax          = 0.7
	defaultGoalAreaThreshold = 0.7

	// minFitPoints is the smallest trajectory a parabola can be fit to.
	minFitPoints = 3
	// minQualityPoints is the trajectory length below which the fit is
	// considered too thin and a neutral factor applies.
	minQualityPoints = 5
	// neutralQuality substitutes for R-squared on short trajectories.
	neutralQuality = 0.5
	// confidenceFloor keeps finalized confidence away from zero.
	confidenceFloor = 0.1
)

// ParabolaFit holds the coefficients of y = A*t^2 + B*t + C and the fit's
// coefficient of determination, clamped to [0,1].
type ParabolaFit struct {
	A, B, C float64
	R2      float64
}

// Classifier applies the outcome rule and quality scaling to finished shots.
type Classifier struct {
	goalXMin          float64
	goalXMax          float64
	goalAreaThreshold float64
}

// Option applies a configuration option to the Classifier.
type Option func(*Classifier)

// WithGoalXRange sets the normalized x-range of the goal area.
func WithGoalXRange(minX, maxX float64) Option {
	return func(c *Classifier) {
		if minX >= 0 && maxX > minX && maxX <= 1 {
			c.goalXMin = minX
			c.goalXMax = maxX
		}
	}
}

// WithGoalAreaThreshold sets the maximum normalized y of the goal area.
func WithGoalAreaThreshold(threshold float64) Option {
	return func(c *Classifier) {
		if threshold > 0 && threshold <= 1 {
			c.goalAreaThreshold = threshold
		}
	}
}

// New creates a Classifier with default goal geometry.
func New(opts ...Option) *Classifier {
	c := &Classifier{
		goalXMin:          defaultGoalXMin,
		goalXMax:          defaultGoalXMax,
		goalAreaThreshold: defaultGoalAreaThreshold,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Finalize computes the shot's outcome and rescales its confidence by
// parabolic quality. Implements the tracker's Finalizer contract.
func (c *Classifier) Finalize(_ context.Context, shot *model.ShotEvent) {
	shot.Outcome = c.Outcome(shot)
	factor := neutralQuality
	if len(shot.Trajectory) >= minQualityPoints {
		factor = FitParabola(shot.Trajectory).R2
	}
	shot.Confidence = clamp(shot.Confidence*factor, confidenceFloor, 1)
}

// Outcome applies the outcome rule to the shot's last trajectory point:
// heading away from the goal means a miss; inside the goal area and
// descending means a make; having headed toward the goal at some point but
// not scoring means a miss; anything else stays unknown.
func (c *Classifier) Outcome(shot *model.ShotEvent) model.Outcome {
	last := shot.LastPoint()
	if last == nil {
		return model.OutcomeUnknown
	}
	if !shot.GoalDirection {
		return model.OutcomeMissed
	}
	pos := last.Position
	descending := last.Velocity != nil && last.Velocity.Y > 0
	if pos.X >= c.goalXMin && pos.X <= c.goalXMax && pos.Y <= c.goalAreaThreshold && descending {
		return model.OutcomeMade
	}
	if shot.TowardGoalEver {
		return model.OutcomeMissed
	}
	return model.OutcomeUnknown
}

// FitParabola fits y = a*t^2 + b*t + c to the trajectory's (timestamp, y)
// samples via the closed-form normal equations. With fewer than three
// points, or a singular system, the fit is degenerate: coefficients are
// zero and R2 carries the neutral quality factor.
func FitParabola(trajectory []model.TrajectoryPoint) ParabolaFit {
	n := len(trajectory)
	if n < minFitPoints {
		return ParabolaFit{R2: neutralQuality}
	}

	// Shift timestamps to the trajectory start for numerical stability.
	t0 := trajectory[0].Position.Timestamp
	var s1, s2, s3, s4, sy, sty, st2y float64
	ys := make([]float64, n)
	for i := range trajectory {
		t := trajectory[i].Position.Timestamp - t0
		y := trajectory[i].Position.Y
		ys[i] = y
		t2 := t * t
		s1 += t
		s2 += t2
		s3 += t2 * t
		s4 += t2 * t2
		sy += y
		sty += t * y
		st2y += t2 * y
	}

	normal := mat.NewDense(3, 3, []float64{
		s4, s3, s2,
		s3, s2, s1,
		s2, s1, float64(n),
	})
	rhs := mat.NewVecDense(3, []float64{st2y, sty, sy})

	var coeffs mat.VecDense
	if err := coeffs.SolveVec(normal, rhs); err != nil {
		return ParabolaFit{R2: neutralQuality}
	}
	fit := ParabolaFit{
		A: coeffs.AtVec(0),
		B: coeffs.AtVec(1),
		C: coeffs.AtVec(2),
	}

	mean := stat.Mean(ys, nil)
	var ssRes, ssTot float64
	for i := range trajectory {
		t := trajectory[i].Position.Timestamp - t0
		predicted := fit.A*t*t + fit.B*t + fit.C
		ssRes += (ys[i] - predicted) * (ys[i] - predicted)
		ssTot += (ys[i] - mean) * (ys[i] - mean)
	}
	if ssTot < 1e-12 {
		// Degenerate denominator: flat trajectory carries no fit signal.
		fit.R2 = 0
		return fit
	}
	fit.R2 = clamp(1-ssRes/ssTot, 0, 1)
	return fit
}

// Quality returns the confidence factor for a trajectory: R-squared for
// adequately sampled shots, the neutral factor for short ones.
func (c *Classifier) Quality(trajectory []model.TrajectoryPoint) float64 {
	if len(trajectory) < minQualityPoints {
		return neutralQuality
	}
	return FitParabola(trajectory).R2
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
