package classify_test

import (
	"context"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/hooplab/shotlog/internal/domain/classify"
	"github.com/hooplab/shotlog/internal/domain/model"
)

func points(samples [][2]float64) []model.TrajectoryPoint {
	out := make([]model.TrajectoryPoint, 0, len(samples))
	for _, s := range samples {
		out = append(out, model.TrajectoryPoint{
			Position: model.BallPosition{Timestamp: s[0], Y: s[1], X: 0.5, Confidence: 0.8},
		})
	}
	return out
}

func TestFitParabola(t *testing.T) {
	Convey("Given trajectory samples", t, func() {
		Convey("When they lie on an exact parabola", func() {
			// y = 2t^2 - 3t + 1
			samples := [][2]float64{}
			for _, ts := range []float64{0, 0.25, 0.5, 0.75, 1.0} {
				samples = append(samples, [2]float64{ts, 2*ts*ts - 3*ts + 1})
			}
			fit := classify.FitParabola(points(samples))

			Convey("Then coefficients are recovered and R2 is 1", func() {
				So(fit.A, ShouldAlmostEqual, 2, 1e-9)
				So(fit.B, ShouldAlmostEqual, -3, 1e-9)
				So(fit.C, ShouldAlmostEqual, 1, 1e-9)
				So(fit.R2, ShouldAlmostEqual, 1, 1e-9)
			})
		})

		Convey("When the arc is noisy but roughly parabolic", func() {
			samples := [][2]float64{
				{0, 0.8}, {0.1, 0.6}, {0.2, 0.5}, {0.3, 0.6}, {0.4, 0.8},
			}
			fit := classify.FitParabola(points(samples))

			Convey("Then the fit opens upward with a high R2", func() {
				So(fit.A, ShouldBeGreaterThan, 0)
				So(fit.R2, ShouldBeGreaterThan, 0.9)
				So(fit.R2, ShouldBeLessThanOrEqualTo, 1)
			})
		})

		Convey("When fewer than three points exist", func() {
			fit := classify.FitParabola(points([][2]float64{{0, 0.5}, {0.1, 0.4}}))

			Convey("Then the fit is degenerate with neutral quality", func() {
				So(fit.A, ShouldEqual, 0)
				So(fit.R2, ShouldEqual, 0.5)
			})
		})

		Convey("When the trajectory is flat", func() {
			samples := [][2]float64{{0, 0.5}, {0.1, 0.5}, {0.2, 0.5}, {0.3, 0.5}, {0.4, 0.5}}
			fit := classify.FitParabola(points(samples))

			Convey("Then the degenerate denominator yields zero quality", func() {
				So(fit.R2, ShouldEqual, 0)
			})
		})
	})
}

func TestOutcome(t *testing.T) {
	Convey("Given a classifier with default goal geometry", t, func() {
		c := classify.New()
		descending := &model.Vec2{X: 0.1, Y: 0.3}
		ascending := &model.Vec2{X: 0.1, Y: -0.3}

		Convey("When the trajectory is empty", func() {
			shot := &model.ShotEvent{}

			Convey("Then the outcome is unknown", func() {
				So(c.Outcome(shot), ShouldEqual, model.OutcomeUnknown)
			})
		})

		Convey("When the shot no longer heads toward the goal", func() {
			shot := &model.ShotEvent{
				GoalDirection:  false,
				TowardGoalEver: true,
				Trajectory: []model.TrajectoryPoint{
					{Position: model.BallPosition{X: 0.9, Y: 0.8}, Velocity: descending},
				},
			}

			Convey("Then it is missed", func() {
				So(c.Outcome(shot), ShouldEqual, model.OutcomeMissed)
			})
		})

		Convey("When the ball descends inside the goal area while heading in", func() {
			shot := &model.ShotEvent{
				GoalDirection:  true,
				TowardGoalEver: true,
				Trajectory: []model.TrajectoryPoint{
					{Position: model.BallPosition{X: 0.45, Y: 0.5}, Velocity: descending},
				},
			}

			Convey("Then it is made", func() {
				So(c.Outcome(shot), ShouldEqual, model.OutcomeMade)
			})
		})

		Convey("When the ball is in the goal area but still rising", func() {
			shot := &model.ShotEvent{
				GoalDirection:  true,
				TowardGoalEver: true,
				Trajectory: []model.TrajectoryPoint{
					{Position: model.BallPosition{X: 0.45, Y: 0.5}, Velocity: ascending},
				},
			}

			Convey("Then it falls back to missed via the latch", func() {
				So(c.Outcome(shot), ShouldEqual, model.OutcomeMissed)
			})
		})

		Convey("When the ball is outside the goal x-range", func() {
			shot := &model.ShotEvent{
				GoalDirection:  true,
				TowardGoalEver: true,
				Trajectory: []model.TrajectoryPoint{
					{Position: model.BallPosition{X: 0.85, Y: 0.5}, Velocity: descending},
				},
			}

			Convey("Then it is missed", func() {
				So(c.Outcome(shot), ShouldEqual, model.OutcomeMissed)
			})
		})

		Convey("When the shot heads in but never headed toward the goal before", func() {
			shot := &model.ShotEvent{
				GoalDirection:  true,
				TowardGoalEver: false,
				Trajectory: []model.TrajectoryPoint{
					{Position: model.BallPosition{X: 0.45, Y: 0.9}, Velocity: descending},
				},
			}

			Convey("Then the outcome stays unknown", func() {
				So(c.Outcome(shot), ShouldEqual, model.OutcomeUnknown)
			})
		})
	})

	Convey("Given a classifier with a custom goal area", t, func() {
		c := classify.New(
			classify.WithGoalXRange(0.1, 0.3),
			classify.WithGoalAreaThreshold(0.4),
		)
		descending := &model.Vec2{X: 0, Y: 0.2}

		Convey("When the ball descends inside the custom area", func() {
			shot := &model.ShotEvent{
				GoalDirection: true,
				Trajectory: []model.TrajectoryPoint{
					{Position: model.BallPosition{X: 0.2, Y: 0.35}, Velocity: descending},
				},
			}

			Convey("Then it is made", func() {
				So(c.Outcome(shot), ShouldEqual, model.OutcomeMade)
			})
		})
	})
}

func TestFinalize(t *testing.T) {
	Convey("Given a classifier finalizing a shot", t, func() {
		c := classify.New()
		ctx := context.Background()

		Convey("When a well-sampled arc ends heading away from the goal", func() {
			shot := &model.ShotEvent{
				Confidence:     0.8,
				TowardGoalEver: true,
				Trajectory: points([][2]float64{
					{0, 0.8}, {0.1, 0.6}, {0.2, 0.5}, {0.3, 0.6}, {0.4, 0.8},
				}),
			}
			c.Finalize(ctx, shot)

			Convey("Then the outcome is missed", func() {
				So(shot.Outcome, ShouldEqual, model.OutcomeMissed)
			})

			Convey("Then confidence is scaled by the parabolic quality", func() {
				So(shot.Confidence, ShouldBeGreaterThan, 0.7)
				So(shot.Confidence, ShouldBeLessThan, 0.8)
			})
		})

		Convey("When the trajectory is too short for a quality estimate", func() {
			shot := &model.ShotEvent{
				Confidence: 0.8,
				Trajectory: points([][2]float64{{0, 0.8}, {0.1, 0.6}, {0.2, 0.5}}),
			}
			c.Finalize(ctx, shot)

			Convey("Then the neutral factor halves the confidence", func() {
				So(shot.Confidence, ShouldAlmostEqual, 0.4, 1e-12)
			})
		})

		Convey("When quality would push confidence below the floor", func() {
			shot := &model.ShotEvent{
				Confidence: 0.8,
				Trajectory: points([][2]float64{
					{0, 0.5}, {0.1, 0.5}, {0.2, 0.5}, {0.3, 0.5}, {0.4, 0.5},
				}),
			}
			c.Finalize(ctx, shot)

			Convey("Then the floor holds", func() {
				So(shot.Confidence, ShouldEqual, 0.1)
			})
		})
	})
}
