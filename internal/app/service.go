// Package app provides the core business service that implements the
// dependencies required by the HTTP API, and the analysis orchestrator.
package app

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/hooplab/shotlog/internal/adapters/mq/queue"
	workerpool "github.com/hooplab/shotlog/internal/adapters/mq/worker"
	"github.com/hooplab/shotlog/internal/adapters/repository"
	"github.com/hooplab/shotlog/internal/adapters/video"
	"github.com/hooplab/shotlog/internal/config"
	"github.com/hooplab/shotlog/internal/domain/dedupe"
	"github.com/hooplab/shotlog/internal/domain/detect"
	"github.com/hooplab/shotlog/internal/domain/model"
	"github.com/hooplab/shotlog/pkg/logger"
	"github.com/hooplab/shotlog/pkg/metrics"
)

// Service implements the API dependencies for the shot analysis system:
// job intake with idempotency, an analysis worker pool and the result store.
type Service struct {
	mu sync.RWMutex

	// Core components
	store    repository.Store
	deduper  dedupe.Deduper
	jobQueue queue.Queue
	pool     *workerpool.Pool

	// External collaborators
	loader   detect.Loader
	opener   video.Opener
	detector detect.Source

	// Configuration
	cfg         config.Config
	workerCount int
	queueSize   int
	dedupeSize  int
	tuner       Tuner

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of analysis workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum size of the job queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the deduplication cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithAnalysisConfig sets the pipeline configuration.
func WithAnalysisConfig(cfg config.Config) Option {
	return func(s *Service) {
		s.cfg = cfg
	}
}

// WithServiceTuner sets the device-capability tuner applied to every run.
func WithServiceTuner(tuner Tuner) Option {
	return func(s *Service) {
		s.tuner = tuner
	}
}

// WithDetectorLoader sets the detector initializer. Required.
func WithDetectorLoader(loader detect.Loader) Option {
	return func(s *Service) {
		s.loader = loader
	}
}

// WithOpener sets the frame source opener. Required.
func WithOpener(opener video.Opener) Option {
	return func(s *Service) {
		s.opener = opener
	}
}

// WithStore overrides the default in-memory result store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		cfg:         *config.New(context.Background()),
		workerCount: runtime.NumCPU(),
		queueSize:   1024,
		dedupeSize:  50_000,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes and starts the service components. Detector load
// failure is fatal: the service comes up fully or not at all.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.loader == nil {
		return ErrNoDetectorLoader
	}
	if s.opener == nil {
		return ErrNoOpener
	}

	detector, err := s.loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", detect.ErrDetectorLoad, err)
	}
	s.detector = detector

	if s.store == nil {
		s.store = repository.NewMemStore()
	}
	s.deduper = dedupe.NewInMemoryDeduper(
		dedupe.WithMaxSize(s.dedupeSize),
	)
	s.jobQueue = queue.NewInMemoryQueue(
		queue.WithCapacity(s.queueSize),
	)

	s.pool = workerpool.NewPool(s.workerCount, s.jobQueue, s.newRunner, s.store)
	s.pool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "analysis service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("batchSize", s.cfg.BatchSize),
	)
	return nil
}

// newRunner builds the per-job analyzer: open the clip, wire the shared
// detector around it. Implements worker.RunnerFactory.
func (s *Service) newRunner(ctx context.Context, job model.Job) (workerpool.Runner, error) {
	source, err := s.opener.Open(ctx, job.ClipID)
	if err != nil {
		return nil, fmt.Errorf("%w: clip %s: %w", video.ErrOpenSource, job.ClipID, err)
	}
	analyzer := NewAnalyzer(s.detector, source, s.cfg,
		WithTuner(s.tuner),
		WithAnalyzerLogger(s.logger.Named("analyzer")),
	)
	return &clipRunner{analyzer: analyzer, source: source}, nil
}

// clipRunner closes the frame source once its run finishes.
type clipRunner struct {
	analyzer *Analyzer
	source   video.Source
}

func (r *clipRunner) Run(ctx context.Context) (model.AnalysisResult, error) {
	defer r.source.Close()
	return r.analyzer.Run(ctx)
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping analysis service...")

	if s.jobQueue != nil {
		_ = s.jobQueue.Close()
	}
	if s.pool != nil {
		s.pool.Stop()
	}
	if s.detector != nil {
		_ = s.detector.Close()
	}

	s.started = false
	s.logger.Info(ctx, "analysis service stopped")
}

// Submit registers a job for asynchronous analysis. Returns duplicate=true
// when the job id was already seen; accepted=false signals backpressure.
func (s *Service) Submit(ctx context.Context, job model.Job) (accepted, duplicate bool, err error) {
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()
	if !started {
		return false, false, ErrNotStarted
	}

	if s.deduper.SeenAndRecord(ctx, job.ID) {
		metrics.RecordJobDuplicate()
		return true, true, nil
	}

	if err := s.store.Create(ctx, job.ID, job.ClipID); err != nil {
		s.deduper.Unrecord(ctx, job.ID)
		return false, false, err
	}

	if !s.jobQueue.Enqueue(ctx, job) {
		// Roll back so the caller can retry once pressure eases.
		s.deduper.Unrecord(ctx, job.ID)
		_ = s.store.Delete(ctx, job.ID)
		return false, false, nil
	}

	s.logger.Debug(ctx, "job accepted",
		logger.String("job", job.ID),
		logger.String("clip", job.ClipID),
	)
	return true, false, nil
}

// Result fetches the stored record for a job.
func (s *Service) Result(ctx context.Context, jobID string) (repository.Record, error) {
	return s.store.Get(ctx, jobID)
}

// Recent returns up to n records, newest first.
func (s *Service) Recent(ctx context.Context, n int) ([]repository.Record, error) {
	return s.store.Recent(ctx, n)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
	}
	if s.started {
		queueLen := s.jobQueue.Len(ctx)
		stats["queueLength"] = queueLen
		stats["storedResults"] = s.store.Count(ctx)
		metrics.UpdateQueueSize(queueLen)
	}
	return stats
}
