package testclips

import (
	"context"
	"fmt"
	"time"

	"github.com/hooplab/shotlog/internal/adapters/repository"
	"github.com/hooplab/shotlog/internal/app"
	"github.com/hooplab/shotlog/internal/config"
	"github.com/hooplab/shotlog/internal/domain/model"
	"github.com/hooplab/shotlog/pkg/logger"
)

// Runner timing constants.
const (
	pollInterval = 100 * time.Millisecond
	clipFPS      = 30.0
	shotSpacing  = 4.0 // seconds between consecutive launches
	clipLeadIn   = 1.0 // seconds before the first launch
	clipTrailer  = 2.0 // seconds of empty court after the last landing
)

// RunConfig holds configuration for a scripted end-to-end run.
type RunConfig struct {
	NumClips     int
	ShotsPerClip int
	Workers      int
	Noisy        bool
	Timeout      time.Duration
	Verbose      bool
}

// Stats aggregates the outcome of a scripted run.
type Stats struct {
	ClipsGenerated int
	JobsSubmitted  int
	JobsDuplicate  int
	JobsRejected   int
	JobsCompleted  int
	JobsFailed     int
	ShotsExpected  int
	ShotsDetected  int
	OutcomeErrors  int
	StartTime      time.Time
	Duration       time.Duration
}

// Run generates scripted clips, pushes them through an in-process analysis
// service, and verifies the detected shots against the ground truth.
func Run(ctx context.Context, runCfg *RunConfig) error {
	stats := &Stats{StartTime: time.Now()}
	log := logger.Get().Named("testclips")

	log.Info(ctx, "starting scripted clip run",
		logger.Int("clips", runCfg.NumClips),
		logger.Int("shotsPerClip", runCfg.ShotsPerClip),
		logger.Int("workers", runCfg.Workers),
		logger.Bool("noisy", runCfg.Noisy),
	)

	// Step 1: Generate clips
	library, clips := generateClips(runCfg, stats)

	// Step 2: Start an in-process service over the scripted sources
	cfg := *config.New(ctx)
	service := app.New(
		app.WithAnalysisConfig(cfg),
		app.WithWorkerCount(runCfg.Workers),
		app.WithOpener(library),
		app.WithDetectorLoader(Loader()),
		app.WithLogger(log.Named("service")),
	)
	if err := service.Start(ctx); err != nil {
		return fmt.Errorf("service start failed: %w", err)
	}
	defer service.Stop()

	// Step 3: Submit one job per clip
	jobIDs, err := submitClips(ctx, service, clips, stats)
	if err != nil {
		return fmt.Errorf("clip submission failed: %w", err)
	}

	// Step 4: Wait for results
	records, err := awaitResults(ctx, service, jobIDs, stats)
	if err != nil {
		return fmt.Errorf("result collection failed: %w", err)
	}

	// Step 5: Verify against ground truth
	if err := verifyResults(ctx, library, records, stats, runCfg.Verbose); err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}

	stats.Duration = time.Since(stats.StartTime)
	displayFinalStats(ctx, log, stats)
	return nil
}

// generateClips builds the scripted library. Clip shots alternate between
// makes and misses so both outcome paths are exercised.
func generateClips(runCfg *RunConfig, stats *Stats) (*Library, []*Clip) {
	library := NewLibrary()
	clips := make([]*Clip, 0, runCfg.NumClips)
	for i := 0; i < runCfg.NumClips; i++ {
		shots := make([]ShotProfile, 0, runCfg.ShotsPerClip)
		for j := 0; j < runCfg.ShotsPerClip; j++ {
			shots = append(shots, ShotProfile{
				Start: clipLeadIn + float64(j)*shotSpacing,
				Make:  (i+j)%2 == 0,
			})
		}
		duration := clipLeadIn + float64(runCfg.ShotsPerClip-1)*shotSpacing + shotAirTime + clipTrailer
		clip := NewClip(fmt.Sprintf("clip-%03d", i), duration, clipFPS, shots, runCfg.Noisy)
		library.Add(clip)
		clips = append(clips, clip)
		stats.ShotsExpected += len(shots)
	}
	stats.ClipsGenerated = len(clips)
	return library, clips
}

// submitClips submits one analysis job per clip.
func submitClips(ctx context.Context, service *app.Service, clips []*Clip, stats *Stats) ([]string, error) {
	jobIDs := make([]string, 0, len(clips))
	for _, clip := range clips {
		job := model.Job{
			ID:          "job-" + clip.ID,
			ClipID:      clip.ID,
			Duration:    clip.Duration,
			SubmittedAt: time.Now(),
		}
		accepted, duplicate, err := service.Submit(ctx, job)
		if err != nil {
			return nil, fmt.Errorf("submit %s: %w", job.ID, err)
		}
		stats.JobsSubmitted++
		switch {
		case duplicate:
			stats.JobsDuplicate++
		case !accepted:
			stats.JobsRejected++
		default:
			jobIDs = append(jobIDs, job.ID)
		}
	}
	return jobIDs, nil
}

// awaitResults polls the service until every job leaves the pending state.
func awaitResults(ctx context.Context, service *app.Service, jobIDs []string, stats *Stats) ([]repository.Record, error) {
	records := make([]repository.Record, 0, len(jobIDs))
	for _, id := range jobIDs {
		record, err := awaitResult(ctx, service, id)
		if err != nil {
			return nil, err
		}
		switch record.Status {
		case repository.StatusDone:
			stats.JobsCompleted++
		case repository.StatusFailed:
			stats.JobsFailed++
		}
		records = append(records, record)
	}
	return records, nil
}

func awaitResult(ctx context.Context, service *app.Service, jobID string) (repository.Record, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		record, err := service.Result(ctx, jobID)
		if err != nil {
			return repository.Record{}, fmt.Errorf("fetch %s: %w", jobID, err)
		}
		if record.Status != repository.StatusPending {
			return record, nil
		}
		select {
		case <-ctx.Done():
			return repository.Record{}, fmt.Errorf("timed out waiting for %s: %w", jobID, ctx.Err())
		case <-ticker.C:
		}
	}
}

// displayFinalStats logs the run summary.
func displayFinalStats(ctx context.Context, log logger.Logger, stats *Stats) {
	log.Info(ctx, "scripted run finished",
		logger.Int("clipsGenerated", stats.ClipsGenerated),
		logger.Int("jobsSubmitted", stats.JobsSubmitted),
		logger.Int("jobsCompleted", stats.JobsCompleted),
		logger.Int("jobsFailed", stats.JobsFailed),
		logger.Int("shotsExpected", stats.ShotsExpected),
		logger.Int("shotsDetected", stats.ShotsDetected),
		logger.Int("outcomeErrors", stats.OutcomeErrors),
		logger.Duration("duration", stats.Duration),
	)
}
