// Package refine post-processes finished shot trajectories: velocity-outlier
// removal, positional smoothing and a blended confidence recomputation.
package refine

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/hooplab/shotlog/internal/domain/model"
)

// Refinement parameters.
const (
	// outlierSpeedFactor drops points moving faster than this multiple of
	// the shot's mean speed.
	outlierSpeedFactor = 3.0
	// smoothingRadius is the half-width of the centered moving average.
	smoothingRadius = 1
	// adequateLength is the trajectory length considered fully adequate.
	adequateLength = 5

	lengthWeight     = 0.4
	confidenceWeight = 0.4
	durationWeight   = 0.2
)

// Shot refines one shot event in place: outliers out, positions smoothed,
// confidence recomputed. Timestamps are never touched.
func Shot(shot *model.ShotEvent) {
	shot.Trajectory = RemoveVelocityOutliers(shot.Trajectory)
	SmoothPositions(shot.Trajectory)
	shot.Confidence = BlendedConfidence(shot)
}

// RemoveVelocityOutliers drops points whose instantaneous speed between
// consecutive samples exceeds three times the trajectory's mean speed. The
// first point is always kept so the shot never loses its launch.
func RemoveVelocityOutliers(trajectory []model.TrajectoryPoint) []model.TrajectoryPoint {
	if len(trajectory) < 3 {
		return trajectory
	}

	speeds := make([]float64, 0, len(trajectory)-1)
	for i := 1; i < len(trajectory); i++ {
		speeds = append(speeds, speedBetween(trajectory[i-1], trajectory[i]))
	}
	meanSpeed := stat.Mean(speeds, nil)
	if meanSpeed <= 0 {
		return trajectory
	}
	limit := outlierSpeedFactor * meanSpeed

	out := trajectory[:1]
	for i := 1; i < len(trajectory); i++ {
		if speedBetween(out[len(out)-1], trajectory[i]) > limit {
			continue
		}
		out = append(out, trajectory[i])
	}
	return out
}

// SmoothPositions applies a centered 3-point moving average to x and y in
// place. Timestamps, velocities and confidences stay untouched; endpoints
// have no full neighborhood and keep their raw positions.
func SmoothPositions(trajectory []model.TrajectoryPoint) {
	n := len(trajectory)
	if n < 2*smoothingRadius+1 {
		return
	}

	smoothed := make([]model.Vec2, n)
	for i := range trajectory {
		smoothed[i] = model.Vec2{X: trajectory[i].Position.X, Y: trajectory[i].Position.Y}
	}
	for i := smoothingRadius; i < n-smoothingRadius; i++ {
		var sx, sy float64
		for j := i - smoothingRadius; j <= i+smoothingRadius; j++ {
			sx += trajectory[j].Position.X
			sy += trajectory[j].Position.Y
		}
		w := float64(2*smoothingRadius + 1)
		smoothed[i] = model.Vec2{X: sx / w, Y: sy / w}
	}
	for i := range trajectory {
		trajectory[i].Position.X = smoothed[i].X
		trajectory[i].Position.Y = smoothed[i].Y
	}
}

// BlendedConfidence recomputes a shot's confidence as a weighted blend of
// trajectory-length adequacy, mean position confidence and duration quality.
// The result is always within [0,1].
func BlendedConfidence(shot *model.ShotEvent) float64 {
	n := len(shot.Trajectory)
	if n == 0 {
		return 0
	}

	lengthAdequacy := math.Min(1, float64(n)/adequateLength)

	confidences := make([]float64, n)
	for i := range shot.Trajectory {
		confidences[i] = shot.Trajectory[i].Position.Confidence
	}
	meanConfidence := stat.Mean(confidences, nil)

	durationQuality := math.Min(1, shot.Duration())

	blended := lengthWeight*lengthAdequacy +
		confidenceWeight*meanConfidence +
		durationWeight*durationQuality
	return math.Min(1, math.Max(0, blended))
}

func speedBetween(a, b model.TrajectoryPoint) float64 {
	dt := b.Position.Timestamp - a.Position.Timestamp
	if dt <= 0 {
		return 0
	}
	return a.Position.DistanceTo(b.Position) / dt
}
