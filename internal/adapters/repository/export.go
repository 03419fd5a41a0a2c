package repository

import (
	"github.com/hooplab/shotlog/internal/domain/model"
)

// Export result vocabulary. Everything that is not a make exports as a miss.
const (
	ResultSuccess = "success"
	ResultMiss    = "miss"
)

// TrajectorySample is one exported trajectory point.
type TrajectorySample struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	T float64 `json:"t"`
}

// ShotRecord is the documented export shape for one shot attempt. Position
// is the shot's peak, falling back to the last trajectory point.
type ShotRecord struct {
	Timestamp  float64            `json:"timestamp"`
	Result     string             `json:"result"`
	Confidence float64            `json:"confidence"`
	Position   model.Vec2         `json:"position"`
	Trajectory []TrajectorySample `json:"trajectory"`
}

// Export converts an analysis result's shots to the persistence shape.
// Exporting is a pure read; repeated exports of the same result are
// identical.
func Export(result *model.AnalysisResult) []ShotRecord {
	records := make([]ShotRecord, 0, len(result.Shots))
	for i := range result.Shots {
		records = append(records, exportShot(&result.Shots[i]))
	}
	return records
}

func exportShot(shot *model.ShotEvent) ShotRecord {
	rec := ShotRecord{
		Timestamp:  shot.StartTime,
		Result:     ResultMiss,
		Confidence: shot.Confidence,
		Trajectory: make([]TrajectorySample, 0, len(shot.Trajectory)),
	}
	if shot.Outcome == model.OutcomeMade {
		rec.Result = ResultSuccess
	}
	switch {
	case shot.Peak != nil:
		rec.Position = model.Vec2{X: shot.Peak.X, Y: shot.Peak.Y}
	case len(shot.Trajectory) > 0:
		last := shot.Trajectory[len(shot.Trajectory)-1].Position
		rec.Position = model.Vec2{X: last.X, Y: last.Y}
	}
	for j := range shot.Trajectory {
		p := shot.Trajectory[j].Position
		rec.Trajectory = append(rec.Trajectory, TrajectorySample{X: p.X, Y: p.Y, T: p.Timestamp})
	}
	return rec
}
