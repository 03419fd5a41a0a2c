package model_test

import (
	"math"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/hooplab/shotlog/internal/domain/model"
)

func TestVec2(t *testing.T) {
	Convey("Given two vectors", t, func() {
		a := model.Vec2{X: 3, Y: 4}
		b := model.Vec2{X: -1, Y: 2}

		Convey("Then Dot computes the scalar product", func() {
			So(a.Dot(b), ShouldEqual, 3*-1+4*2)
		})

		Convey("Then Norm computes the Euclidean length", func() {
			So(a.Norm(), ShouldEqual, 5)
			So(model.Vec2{}.Norm(), ShouldEqual, 0)
		})
	})
}

func TestBallPosition(t *testing.T) {
	Convey("Given ball positions", t, func() {
		Convey("When fields are in range", func() {
			p := model.BallPosition{X: 0.4, Y: 0.6, Timestamp: 1.2, Confidence: 0.8}

			Convey("Then the position is valid", func() {
				So(p.Valid(), ShouldBeTrue)
			})
		})

		Convey("When a coordinate is out of range", func() {
			p := model.BallPosition{X: 1.4, Y: 0.6, Timestamp: 1.2, Confidence: 0.8}

			Convey("Then the position is invalid", func() {
				So(p.Valid(), ShouldBeFalse)
			})
		})

		Convey("When a field is not finite", func() {
			p := model.BallPosition{X: math.NaN(), Y: 0.6, Timestamp: 1.2, Confidence: 0.8}
			q := model.BallPosition{X: 0.4, Y: 0.6, Timestamp: math.Inf(1), Confidence: 0.8}

			Convey("Then the position is invalid", func() {
				So(p.Valid(), ShouldBeFalse)
				So(q.Valid(), ShouldBeFalse)
			})
		})

		Convey("When measuring distance between two positions", func() {
			p := model.BallPosition{X: 0.1, Y: 0.2}
			q := model.BallPosition{X: 0.4, Y: 0.6}

			Convey("Then DistanceTo returns the Euclidean distance", func() {
				So(p.DistanceTo(q), ShouldAlmostEqual, 0.5, 1e-12)
				So(q.DistanceTo(p), ShouldAlmostEqual, 0.5, 1e-12)
			})
		})
	})
}

func TestShotEvent(t *testing.T) {
	Convey("Given a shot event", t, func() {
		shot := model.ShotEvent{
			StartTime: 2.0,
			EndTime:   3.5,
			Trajectory: []model.TrajectoryPoint{
				{Position: model.BallPosition{X: 0.2, Y: 0.7, Timestamp: 2.0}},
				{Position: model.BallPosition{X: 0.3, Y: 0.5, Timestamp: 2.5}},
				{Position: model.BallPosition{X: 0.4, Y: 0.4, Timestamp: 3.5}},
			},
		}

		Convey("Then Duration spans start to end", func() {
			So(shot.Duration(), ShouldAlmostEqual, 1.5, 1e-12)
		})

		Convey("Then LastPoint returns the final trajectory point", func() {
			last := shot.LastPoint()
			So(last, ShouldNotBeNil)
			So(last.Position.Timestamp, ShouldEqual, 3.5)
		})

		Convey("When the trajectory is empty", func() {
			empty := model.ShotEvent{}

			Convey("Then LastPoint returns nil", func() {
				So(empty.LastPoint(), ShouldBeNil)
			})
		})
	})
}

func TestSummarize(t *testing.T) {
	Convey("Given an analysis result", t, func() {
		Convey("When it holds makes, misses and unknowns", func() {
			result := model.AnalysisResult{
				Shots: []model.ShotEvent{
					{Outcome: model.OutcomeMade},
					{Outcome: model.OutcomeMissed},
					{Outcome: model.OutcomeUnknown},
					{Outcome: model.OutcomeMade},
				},
			}
			summary := result.Summarize()

			Convey("Then everything that is not a make counts as a miss", func() {
				So(summary.Attempts, ShouldEqual, 4)
				So(summary.Makes, ShouldEqual, 2)
				So(summary.Misses, ShouldEqual, 2)
				So(summary.FieldGoalPct, ShouldAlmostEqual, 50.0, 1e-12)
			})
		})

		Convey("When it holds no shots", func() {
			summary := (&model.AnalysisResult{}).Summarize()

			Convey("Then the percentage stays zero", func() {
				So(summary.Attempts, ShouldEqual, 0)
				So(summary.FieldGoalPct, ShouldEqual, 0)
			})
		})
	})
}
