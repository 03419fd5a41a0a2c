package app

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hooplab/shotlog/internal/adapters/video"
	"github.com/hooplab/shotlog/internal/config"
	"github.com/hooplab/shotlog/internal/domain/classify"
	"github.com/hooplab/shotlog/internal/domain/detect"
	"github.com/hooplab/shotlog/internal/domain/model"
	"github.com/hooplab/shotlog/internal/domain/refine"
	"github.com/hooplab/shotlog/internal/domain/track"
	"github.com/hooplab/shotlog/pkg/logger"
	"github.com/hooplab/shotlog/pkg/metrics"
)

// Scan window parameters, in seconds.
const (
	windowPadding  = 0.8
	windowMergeGap = 0.5
)

// Progress stage boundaries as fractions of the whole run.
const (
	fastScanEnd   = 0.35
	detailScanEnd = 0.8
)

// Progress stage names.
const (
	stageFastScan = "Fast scan"
	stageDetail   = "Detailed analysis"
	stageOptimize = "Trajectory optimization"
)

// Progress is one monotonic progress report.
type Progress struct {
	Stage    string
	Fraction float64
}

// ProgressFunc receives progress reports during a run.
type ProgressFunc func(Progress)

// Tuner adjusts the analysis configuration for device capabilities. It must
// be a pure function; the orchestrator holds no global tuning state.
type Tuner func(config.Config) config.Config

// window is a half-open candidate time range selected for detailed analysis.
type window struct {
	start float64
	end   float64
}

// Analyzer orchestrates one clip's analysis: a coarse full-clip scan to
// locate candidate windows, a fine scan inside the merged windows, then
// trajectory refinement. Only the Analyzer knows about scan scheduling and
// concurrency; trajectory state lives in the shared tracker.
type Analyzer struct {
	detector  detect.Source
	source    video.Source
	extractor *detect.Extractor
	tracker   *track.Tracker
	cfg       config.Config
	progress  ProgressFunc
	logger    logger.Logger
	running   atomic.Bool
}

// AnalyzerOption applies a configuration option to the Analyzer.
type AnalyzerOption func(*Analyzer)

// WithProgress sets the progress callback.
func WithProgress(fn ProgressFunc) AnalyzerOption {
	return func(a *Analyzer) {
		if fn != nil {
			a.progress = fn
		}
	}
}

// WithTuner applies a device-capability tuner to the configuration.
func WithTuner(tuner Tuner) AnalyzerOption {
	return func(a *Analyzer) {
		if tuner != nil {
			a.cfg = tuner(a.cfg)
		}
	}
}

// WithAnalyzerLogger sets a custom logger for the analyzer.
func WithAnalyzerLogger(l logger.Logger) AnalyzerOption {
	return func(a *Analyzer) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewAnalyzer wires an analyzer for one clip. The detector must already be
// loaded; the extractor, tracker and classifier are built from cfg.
func NewAnalyzer(detector detect.Source, source video.Source, cfg config.Config, opts ...AnalyzerOption) *Analyzer {
	a := &Analyzer{
		detector: detector,
		source:   source,
		cfg:      cfg,
		progress: func(Progress) {},
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = logger.Get().Named("analyzer")
	}

	a.extractor = detect.NewExtractor(
		detect.WithConfidenceThreshold(a.cfg.BallConfidenceThreshold),
	)
	a.tracker = a.newTracker()
	return a
}

func (a *Analyzer) newTracker() *track.Tracker {
	return track.New(
		track.WithHistoryWindow(a.cfg.TrajectoryHistorySeconds),
		track.WithDurationBounds(a.cfg.ShotMinimumDuration, a.cfg.ShotMaximumDuration),
		track.WithFinalizer(classify.New(
			classify.WithGoalAreaThreshold(a.cfg.GoalAreaThreshold),
		)),
		track.WithLogger(a.logger.Named("tracker")),
	)
}

// Run executes the full three-stage pipeline over the clip. A second Run on
// the same Analyzer while one is in flight fails immediately with
// ErrAnalysisInProgress and has no side effects. The returned result may be
// incomplete when individual frames failed, but Run itself fails only before
// any frame is processed.
func (a *Analyzer) Run(ctx context.Context) (model.AnalysisResult, error) {
	if !a.running.CompareAndSwap(false, true) {
		return model.AnalysisResult{}, ErrAnalysisInProgress
	}
	defer a.running.Store(false)

	start := time.Now()
	metrics.RecordAnalysisStarted()
	duration := a.source.Duration()

	fastStamps := sampleRange(0, duration, a.cfg.FastScanRate)
	processed, err := a.scanStage(ctx, stageFastScan, fastStamps, 0, fastScanEnd)
	if err != nil {
		metrics.RecordAnalysisFailed()
		return model.AnalysisResult{}, err
	}
	total := len(fastStamps)

	windows := mergeWindows(a.tracker.Spans(), duration)
	a.logger.Info(ctx, "fast scan complete",
		logger.Int("sampled", total),
		logger.Int("windows", len(windows)),
		logger.Int("open_shots", a.tracker.OpenShotCount()),
	)

	var detailStamps []float64
	for _, w := range windows {
		detailStamps = append(detailStamps, sampleRange(w.start, w.end, a.cfg.DetailScanRate)...)
	}

	// The coarse trajectories exist only to select windows. The fine pass
	// rebuilds trajectory state from scratch so its denser sampling is
	// authoritative: a shot the coarse pass already closed would otherwise
	// be immutable by the time its window is re-scanned.
	a.tracker = a.newTracker()
	detailProcessed, err := a.scanStage(ctx, stageDetail, detailStamps, fastScanEnd, detailScanEnd)
	if err != nil {
		metrics.RecordAnalysisFailed()
		return model.AnalysisResult{}, err
	}
	processed += detailProcessed
	total += len(detailStamps)

	a.report(stageOptimize, detailScanEnd)
	a.tracker.Finish(ctx)
	shots := a.tracker.CompletedShots()
	for i := range shots {
		refine.Shot(&shots[i])
	}
	a.report(stageOptimize, 1)

	elapsed := time.Since(start)
	result := model.AnalysisResult{
		Shots:             shots,
		TotalFrames:       total,
		ProcessedFrames:   processed,
		ProcessingTime:    elapsed.Seconds(),
		AverageConfidence: averageConfidence(shots),
		Metadata: map[string]string{
			"clip_duration":  strconv.FormatFloat(duration, 'f', 3, 64),
			"detail_windows": strconv.Itoa(len(windows)),
		},
	}
	metrics.RecordAnalysisCompleted()
	metrics.RecordAnalysisDuration(elapsed.Seconds())
	a.logger.Info(ctx, "analysis complete",
		logger.Int("shots", len(shots)),
		logger.Int("frames", processed),
		logger.Duration("elapsed", elapsed),
	)
	return result, nil
}

// observation is one frame's outcome inside a batch.
type observation struct {
	ts   float64
	ball *model.BallPosition
	err  error
}

// scanStage runs one scan pass: frames grouped into bounded batches, all
// detector calls of a batch issued concurrently, then a barrier before the
// tracker sees any of the batch's observations in timestamp order. Across
// batches processing is strictly sequential, so tracker state is only ever
// mutated between batches.
func (a *Analyzer) scanStage(ctx context.Context, stage string, stamps []float64, fracStart, fracEnd float64) (int, error) {
	a.report(stage, fracStart)
	if len(stamps) == 0 {
		a.report(stage, fracEnd)
		return 0, nil
	}

	batchSize := a.cfg.BatchSize
	processed := 0
	for offset := 0; offset < len(stamps); offset += batchSize {
		if err := ctx.Err(); err != nil {
			return processed, fmt.Errorf("%s cancelled: %w", stage, err)
		}

		batch := stamps[offset:min(offset+batchSize, len(stamps))]
		results := a.runBatch(ctx, batch)

		// Batch members may resolve out of submission order; sort before
		// ingestion so trajectories stay time-ordered.
		sort.Slice(results, func(i, j int) bool {
			return results[i].ts < results[j].ts
		})
		for _, res := range results {
			processed++
			metrics.RecordFrameProcessed()
			if res.err != nil {
				a.logger.Warn(ctx, "frame skipped", logger.Error(res.err))
				continue
			}
			if res.ball == nil {
				continue
			}
			metrics.RecordBallObservation()
			if err := a.tracker.Observe(ctx, *res.ball); err != nil {
				a.logger.Warn(ctx, "observation rejected", logger.Error(err))
			}
		}

		frac := fracStart + (fracEnd-fracStart)*float64(offset+len(batch))/float64(len(stamps))
		a.report(stage, frac)
	}
	return processed, nil
}

// runBatch issues one batch of seek+detect calls concurrently and waits for
// the whole batch to settle.
func (a *Analyzer) runBatch(ctx context.Context, stamps []float64) []observation {
	batchCtx := ctx
	if a.cfg.BatchTimeoutMS > 0 {
		var cancel context.CancelFunc
		batchCtx, cancel = context.WithTimeout(ctx, time.Duration(a.cfg.BatchTimeoutMS)*time.Millisecond)
		defer cancel()
	}

	results := make([]observation, len(stamps))
	var wg sync.WaitGroup
	for i, ts := range stamps {
		wg.Add(1)
		go func(i int, ts float64) {
			defer wg.Done()
			results[i] = a.processFrame(batchCtx, ts)
		}(i, ts)
	}
	wg.Wait()
	return results
}

// processFrame runs one frame through seek, detect and extraction. Failures
// here are recoverable: the frame is skipped and the run continues.
func (a *Analyzer) processFrame(ctx context.Context, ts float64) observation {
	frame, err := a.source.FrameAt(ctx, ts)
	if err != nil {
		return observation{ts: ts, err: fmt.Errorf("frame at %.3fs: %w", ts, err)}
	}

	metrics.RecordDetectorCall()
	detectStart := time.Now()
	detections, err := a.detector.Detect(ctx, frame)
	metrics.RecordDetectorLatency(float64(time.Since(detectStart).Milliseconds()))
	if err != nil {
		metrics.RecordDetectorError()
		return observation{ts: ts, err: fmt.Errorf("%w at %.3fs: %w", detect.ErrDetect, ts, err)}
	}

	frameIndex := int(ts*a.cfg.FrameRate + 0.5)
	return observation{
		ts:   ts,
		ball: a.extractor.Extract(detections, ts, frameIndex, frame.Width, frame.Height),
	}
}

func (a *Analyzer) report(stage string, fraction float64) {
	a.progress(Progress{Stage: stage, Fraction: fraction})
}

// sampleRange returns timestamps covering [start, end] at rate samples per
// second.
func sampleRange(start, end, rate float64) []float64 {
	if end <= start || rate <= 0 {
		return nil
	}
	step := 1 / rate
	stamps := make([]float64, 0, int((end-start)/step)+1)
	for ts := start; ts <= end; ts += step {
		stamps = append(stamps, ts)
	}
	return stamps
}

// mergeWindows pads each shot span and merges overlapping or near windows
// into a minimal covering set of disjoint ranges, clamped to the clip.
func mergeWindows(spans []track.Span, clipDuration float64) []window {
	if len(spans) == 0 {
		return nil
	}

	padded := make([]window, 0, len(spans))
	for _, s := range spans {
		w := window{start: s.Start - windowPadding, end: s.End + windowPadding}
		if w.start < 0 {
			w.start = 0
		}
		if w.end > clipDuration {
			w.end = clipDuration
		}
		if w.end > w.start {
			padded = append(padded, w)
		}
	}
	if len(padded) == 0 {
		return nil
	}
	sort.Slice(padded, func(i, j int) bool { return padded[i].start < padded[j].start })

	merged := padded[:1]
	for _, w := range padded[1:] {
		last := &merged[len(merged)-1]
		if w.start-last.end < windowMergeGap {
			if w.end > last.end {
				last.end = w.end
			}
			continue
		}
		merged = append(merged, w)
	}
	return merged
}

func averageConfidence(shots []model.ShotEvent) float64 {
	if len(shots) == 0 {
		return 0
	}
	var sum float64
	for i := range shots {
		sum += shots[i].Confidence
	}
	return sum / float64(len(shots))
}
