package testclips

import (
	"context"
	"fmt"
	"math"

	"github.com/hooplab/shotlog/internal/adapters/repository"
	"github.com/hooplab/shotlog/pkg/logger"
)

// Verification tolerances.
const (
	// startTolerance is how far a detected shot's start may drift from the
	// scripted launch, in seconds. The coarse scan quantizes launch times.
	startTolerance = 0.6
)

// verifyResults compares detected shots against each clip's ground truth.
// Count or outcome mismatches are logged and tallied; only structural
// failures (failed jobs, unknown clips) abort the run.
func verifyResults(ctx context.Context, library *Library, records []repository.Record, stats *Stats, verbose bool) error {
	log := logger.Get().Named("verify")

	for _, record := range records {
		clip, ok := library.Clip(record.ClipID)
		if !ok {
			return fmt.Errorf("record references unknown clip %q", record.ClipID)
		}
		if record.Status == repository.StatusFailed {
			log.Warn(ctx, "analysis failed",
				logger.String("clip", clip.ID),
				logger.String("error", record.Error),
			)
			continue
		}
		if record.Result == nil {
			return fmt.Errorf("done record for clip %q has no result", clip.ID)
		}

		shots := repository.Export(record.Result)
		stats.ShotsDetected += len(shots)
		if len(shots) != len(clip.Shots) {
			log.Warn(ctx, "shot count mismatch",
				logger.String("clip", clip.ID),
				logger.Int("expected", len(clip.Shots)),
				logger.Int("detected", len(shots)),
			)
		}
		stats.OutcomeErrors += matchOutcomes(ctx, log, clip, shots, verbose)
	}
	return nil
}

// matchOutcomes pairs detected shots with scripted profiles by start time
// and counts outcome disagreements.
func matchOutcomes(ctx context.Context, log logger.Logger, clip *Clip, shots []repository.ShotRecord, verbose bool) int {
	mismatches := 0
	for _, shot := range shots {
		profile, ok := profileNear(clip, shot.Timestamp)
		if !ok {
			mismatches++
			log.Warn(ctx, "detected shot matches no scripted launch",
				logger.String("clip", clip.ID),
				logger.Float64("t", shot.Timestamp),
			)
			continue
		}
		want := repository.ResultMiss
		if profile.Make {
			want = repository.ResultSuccess
		}
		if shot.Result != want {
			mismatches++
			log.Warn(ctx, "outcome mismatch",
				logger.String("clip", clip.ID),
				logger.Float64("launch", profile.Start),
				logger.String("want", want),
				logger.String("got", shot.Result),
			)
			continue
		}
		if verbose {
			log.Info(ctx, "shot verified",
				logger.String("clip", clip.ID),
				logger.Float64("launch", profile.Start),
				logger.String("result", shot.Result),
				logger.Float64("confidence", shot.Confidence),
			)
		}
	}
	return mismatches
}

// profileNear finds the scripted profile whose launch is closest to ts.
func profileNear(clip *Clip, ts float64) (ShotProfile, bool) {
	best := ShotProfile{}
	bestDist := math.Inf(1)
	for _, p := range clip.Shots {
		d := math.Abs(p.Start - ts)
		if d < bestDist {
			best = p
			bestDist = d
		}
	}
	return best, bestDist <= startTolerance
}
