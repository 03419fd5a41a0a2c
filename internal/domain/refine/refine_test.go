package refine_test

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/hooplab/shotlog/internal/domain/model"
	"github.com/hooplab/shotlog/internal/domain/refine"
)

func steadyTrajectory(n int, step float64) []model.TrajectoryPoint {
	out := make([]model.TrajectoryPoint, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, model.TrajectoryPoint{
			Position: model.BallPosition{
				X:          0.1 + float64(i)*step,
				Y:          0.5,
				Timestamp:  float64(i) * 0.1,
				Confidence: 0.8,
			},
		})
	}
	return out
}

func TestRemoveVelocityOutliers(t *testing.T) {
	Convey("Given a trajectory", t, func() {
		Convey("When all speeds are uniform", func() {
			trajectory := steadyTrajectory(6, 0.05)
			out := refine.RemoveVelocityOutliers(trajectory)

			Convey("Then nothing is dropped", func() {
				So(out, ShouldHaveLength, 6)
			})
		})

		Convey("When one point jumps far off the arc", func() {
			trajectory := steadyTrajectory(9, 0.01)
			trajectory[4].Position.X = 0.9
			trajectory[4].Position.Y = 0.1
			out := refine.RemoveVelocityOutliers(trajectory)

			Convey("Then the outlier is dropped", func() {
				So(len(out), ShouldBeLessThan, 9)
				for _, p := range out {
					So(p.Position.X, ShouldNotEqual, 0.9)
				}
			})

			Convey("Then the launch point is always kept", func() {
				So(out[0].Position.Timestamp, ShouldEqual, 0)
			})
		})

		Convey("When the trajectory is too short to judge", func() {
			trajectory := steadyTrajectory(2, 0.3)
			out := refine.RemoveVelocityOutliers(trajectory)

			Convey("Then it is returned unchanged", func() {
				So(out, ShouldHaveLength, 2)
			})
		})

		Convey("When all points are identical", func() {
			trajectory := steadyTrajectory(4, 0)
			out := refine.RemoveVelocityOutliers(trajectory)

			Convey("Then the zero mean speed disables filtering", func() {
				So(out, ShouldHaveLength, 4)
			})
		})
	})
}

func TestSmoothPositions(t *testing.T) {
	Convey("Given a trajectory with a positional kink", t, func() {
		trajectory := steadyTrajectory(5, 0.05)
		trajectory[2].Position.Y = 0.8
		rawFirst := trajectory[0].Position
		rawLast := trajectory[4].Position

		refine.SmoothPositions(trajectory)

		Convey("Then interior points average across their neighborhood", func() {
			So(trajectory[2].Position.Y, ShouldAlmostEqual, (0.5+0.8+0.5)/3, 1e-12)
		})

		Convey("Then endpoints keep their raw positions", func() {
			So(trajectory[0].Position.X, ShouldEqual, rawFirst.X)
			So(trajectory[0].Position.Y, ShouldEqual, rawFirst.Y)
			So(trajectory[4].Position.X, ShouldEqual, rawLast.X)
			So(trajectory[4].Position.Y, ShouldEqual, rawLast.Y)
		})

		Convey("Then timestamps and confidences are untouched", func() {
			for i, p := range trajectory {
				So(p.Position.Timestamp, ShouldEqual, float64(i)*0.1)
				So(p.Position.Confidence, ShouldEqual, 0.8)
			}
		})
	})

	Convey("Given a trajectory shorter than the smoothing window", t, func() {
		trajectory := steadyTrajectory(2, 0.05)
		before := trajectory[1].Position

		refine.SmoothPositions(trajectory)

		Convey("Then it is left as is", func() {
			So(trajectory[1].Position, ShouldResemble, before)
		})
	})
}

func TestBlendedConfidence(t *testing.T) {
	Convey("Given shots of varying quality", t, func() {
		Convey("When the shot is well sampled and long enough", func() {
			shot := &model.ShotEvent{
				StartTime:  0,
				EndTime:    1.2,
				Trajectory: steadyTrajectory(6, 0.05),
			}
			conf := refine.BlendedConfidence(shot)

			Convey("Then all three terms saturate around their weights", func() {
				// 0.4*1 + 0.4*0.8 + 0.2*1
				So(conf, ShouldAlmostEqual, 0.92, 1e-12)
			})
		})

		Convey("When the shot is short and thin", func() {
			shot := &model.ShotEvent{
				StartTime:  0,
				EndTime:    0.2,
				Trajectory: steadyTrajectory(2, 0.05),
			}
			conf := refine.BlendedConfidence(shot)

			Convey("Then the blend shrinks but stays in range", func() {
				// 0.4*(2/5) + 0.4*0.8 + 0.2*0.2
				So(conf, ShouldAlmostEqual, 0.52, 1e-12)
				So(conf, ShouldBeBetweenOrEqual, 0, 1)
			})
		})

		Convey("When the trajectory is empty", func() {
			shot := &model.ShotEvent{}

			Convey("Then confidence is zero", func() {
				So(refine.BlendedConfidence(shot), ShouldEqual, 0)
			})
		})
	})
}

func TestShot(t *testing.T) {
	Convey("Given a finished shot with an outlier", t, func() {
		shot := &model.ShotEvent{
			StartTime:  0,
			EndTime:    0.5,
			Confidence: 0.3,
			Trajectory: steadyTrajectory(6, 0.01),
		}
		shot.Trajectory[4].Position.X = 0.95
		shot.Trajectory[4].Position.Y = 0.05

		refine.Shot(shot)

		Convey("Then the trajectory never grows", func() {
			So(len(shot.Trajectory), ShouldBeLessThanOrEqualTo, 6)
		})

		Convey("Then confidence is recomputed within [0,1]", func() {
			So(shot.Confidence, ShouldBeBetweenOrEqual, 0, 1)
		})

		Convey("Then timestamps remain strictly increasing", func() {
			for i := 1; i < len(shot.Trajectory); i++ {
				So(shot.Trajectory[i].Position.Timestamp,
					ShouldBeGreaterThan, shot.Trajectory[i-1].Position.Timestamp)
			}
		})
	})
}
