// Package worker defines worker contracts for asynchronous clip analysis.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/hooplab/shotlog/internal/domain/model"
	"github.com/hooplab/shotlog/pkg/logger"
	"github.com/hooplab/shotlog/pkg/metrics"
)

// Default worker configuration constants.
const (
	workerShutdownTimeout = 5 * time.Second
	poolShutdownTimeout   = 30 * time.Second
)

// Job is what workers read off the queue.
type Job = model.Job

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Job
}

// Runner executes one clip analysis end to end.
type Runner interface {
	Run(ctx context.Context) (model.AnalysisResult, error)
}

// RunnerFactory builds a Runner for a job: it opens the clip and wires an
// analyzer around the shared detector. Provided by the service layer.
type RunnerFactory func(ctx context.Context, job Job) (Runner, error)

// Recorder receives job outcomes.
type Recorder interface {
	Complete(ctx context.Context, jobID string, result model.AnalysisResult) error
	Fail(ctx context.Context, jobID string, reason string) error
}

// Worker processes analysis jobs using the provided collaborators.
type Worker struct {
	queue    Queue
	factory  RunnerFactory
	recorder Recorder
	name     string

	shutdown chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	logger logger.Logger
}

// Option applies a configuration option to the Worker.
type Option func(*Worker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *Worker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *Worker) {
		if l != nil {
			w.logger = l
		}
	}
}

// NewWorker creates a worker with configuration options.
func NewWorker(queue Queue, factory RunnerFactory, recorder Recorder, opts ...Option) *Worker {
	w := &Worker{
		queue:    queue,
		factory:  factory,
		recorder: recorder,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named(w.name)
	}
	return w
}

// Run starts the worker loop until ctx is canceled or the queue closes.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)

	jobChan := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobChan:
			if !ok {
				return
			}
			if err := w.processJob(ctx, job); err != nil {
				w.logger.Error(ctx, "job failed",
					logger.String("job", job.ID),
					logger.Error(err),
				)
			}
		}
	}
}

// Shutdown gracefully stops the worker, finishing the in-flight job.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.signalStop()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// processJob runs a single analysis job and records its outcome. A run
// failure is recorded against the job but never stops the worker.
func (w *Worker) processJob(ctx context.Context, job Job) error {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerLatency(float64(time.Since(start).Milliseconds()))
	}()

	w.logger.Info(ctx, "processing job",
		logger.String("job", job.ID),
		logger.String("clip", job.ClipID),
	)

	runner, err := w.factory(ctx, job)
	if err != nil {
		metrics.RecordWorkerError()
		w.recordFailure(ctx, job, err)
		return fmt.Errorf("prepare job %s: %w", job.ID, err)
	}

	result, err := runner.Run(ctx)
	if err != nil {
		metrics.RecordWorkerError()
		w.recordFailure(ctx, job, err)
		return fmt.Errorf("run job %s: %w", job.ID, err)
	}

	if err := w.recorder.Complete(ctx, job.ID, result); err != nil {
		metrics.RecordWorkerError()
		return fmt.Errorf("record job %s: %w", job.ID, err)
	}
	return nil
}

// signalStop closes the shutdown channel exactly once.
func (w *Worker) signalStop() {
	w.stopOnce.Do(func() { close(w.shutdown) })
}

func (w *Worker) recordFailure(ctx context.Context, job Job, cause error) {
	if err := w.recorder.Fail(ctx, job.ID, cause.Error()); err != nil {
		w.logger.Error(ctx, "recording failure failed",
			logger.String("job", job.ID),
			logger.Error(err),
		)
	}
}

// Pool manages multiple workers.
type Pool struct {
	workers []*Worker

	shutdown chan struct{}

	logger logger.Logger
}

// NewPool creates a worker pool. A non-positive count defaults to the
// number of CPUs.
func NewPool(workerCount int, queue Queue, factory RunnerFactory, recorder Recorder) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	pool := &Pool{
		workers:  make([]*Worker, workerCount),
		shutdown: make(chan struct{}),
		logger:   logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		pool.workers[i] = NewWorker(
			queue,
			factory,
			recorder,
			WithName("worker-"+strconv.Itoa(i)),
		)
	}

	metrics.UpdateWorkerCount(workerCount)
	return pool
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, worker := range p.workers {
		go worker.Run(ctx)
	}
}

// Stop gracefully stops all workers.
func (p *Pool) Stop() {
	close(p.shutdown)

	for _, worker := range p.workers {
		worker.signalStop()
	}
	for _, worker := range p.workers {
		select {
		case <-worker.done:
		case <-time.After(workerShutdownTimeout):
		}
	}
}

// Shutdown gracefully shuts down the entire worker pool.
func (p *Pool) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, worker := range p.workers {
		if err := worker.Shutdown(shutdownCtx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	return nil
}
