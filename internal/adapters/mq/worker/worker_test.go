package worker_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/hooplab/shotlog/internal/adapters/mq/queue"
	"github.com/hooplab/shotlog/internal/adapters/mq/worker"
	"github.com/hooplab/shotlog/internal/domain/model"
	"github.com/hooplab/shotlog/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// stubRunner returns a fixed result or error.
type stubRunner struct {
	result model.AnalysisResult
	err    error
}

func (r *stubRunner) Run(_ context.Context) (model.AnalysisResult, error) {
	return r.result, r.err
}

// recordingStore captures Complete and Fail calls.
type recordingStore struct {
	mu        sync.Mutex
	completed map[string]model.AnalysisResult
	failed    map[string]string
	done      chan string
}

func newRecordingStore() *recordingStore {
	return &recordingStore{
		completed: make(map[string]model.AnalysisResult),
		failed:    make(map[string]string),
		done:      make(chan string, 16),
	}
}

func (s *recordingStore) Complete(_ context.Context, jobID string, result model.AnalysisResult) error {
	s.mu.Lock()
	s.completed[jobID] = result
	s.mu.Unlock()
	s.done <- jobID
	return nil
}

func (s *recordingStore) Fail(_ context.Context, jobID string, reason string) error {
	s.mu.Lock()
	s.failed[jobID] = reason
	s.mu.Unlock()
	s.done <- jobID
	return nil
}

func (s *recordingStore) await(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-s.done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for job outcomes")
		}
	}
}

func okFactory(result model.AnalysisResult) worker.RunnerFactory {
	return func(_ context.Context, _ worker.Job) (worker.Runner, error) {
		return &stubRunner{result: result}, nil
	}
}

func TestWorker(t *testing.T) {
	Convey("Given a worker over an in-memory queue", t, func() {
		ctx := context.Background()
		q := queue.NewInMemoryQueue(queue.WithCapacity(8))
		store := newRecordingStore()

		Convey("When the runner succeeds", func() {
			result := model.AnalysisResult{TotalFrames: 42}
			w := worker.NewWorker(q, okFactory(result), store, worker.WithName("test-worker"))
			go w.Run(ctx)

			So(q.Enqueue(ctx, worker.Job{ID: "job-1", ClipID: "clip-1"}), ShouldBeTrue)
			store.await(t, 1)

			Convey("Then the result is recorded as complete", func() {
				store.mu.Lock()
				defer store.mu.Unlock()
				So(store.completed["job-1"].TotalFrames, ShouldEqual, 42)
				So(store.failed, ShouldBeEmpty)
			})

			So(w.Shutdown(ctx), ShouldBeNil)
		})

		Convey("When the runner fails", func() {
			factory := func(_ context.Context, _ worker.Job) (worker.Runner, error) {
				return &stubRunner{err: errors.New("decode error")}, nil
			}
			w := worker.NewWorker(q, factory, store)
			go w.Run(ctx)

			So(q.Enqueue(ctx, worker.Job{ID: "job-2", ClipID: "clip-2"}), ShouldBeTrue)
			store.await(t, 1)

			Convey("Then the failure is recorded with its reason", func() {
				store.mu.Lock()
				defer store.mu.Unlock()
				So(store.failed["job-2"], ShouldContainSubstring, "decode error")
				So(store.completed, ShouldBeEmpty)
			})

			So(w.Shutdown(ctx), ShouldBeNil)
		})

		Convey("When the factory cannot prepare the job", func() {
			factory := func(_ context.Context, _ worker.Job) (worker.Runner, error) {
				return nil, errors.New("unknown clip")
			}
			w := worker.NewWorker(q, factory, store)
			go w.Run(ctx)

			So(q.Enqueue(ctx, worker.Job{ID: "job-3", ClipID: "missing"}), ShouldBeTrue)
			store.await(t, 1)

			Convey("Then the job fails without killing the worker", func() {
				store.mu.Lock()
				So(store.failed["job-3"], ShouldContainSubstring, "unknown clip")
				store.mu.Unlock()

				// The worker keeps consuming afterwards.
				So(q.Enqueue(ctx, worker.Job{ID: "job-4"}), ShouldBeTrue)
				store.await(t, 1)
				store.mu.Lock()
				defer store.mu.Unlock()
				So(store.failed["job-4"], ShouldContainSubstring, "unknown clip")
			})

			So(w.Shutdown(ctx), ShouldBeNil)
		})
	})
}

func TestPool(t *testing.T) {
	Convey("Given a pool of workers", t, func() {
		ctx := context.Background()
		q := queue.NewInMemoryQueue(queue.WithCapacity(32))
		store := newRecordingStore()
		pool := worker.NewPool(4, q, okFactory(model.AnalysisResult{}), store)
		pool.Start(ctx)

		Convey("When many jobs are enqueued", func() {
			for i := 0; i < 10; i++ {
				So(q.Enqueue(ctx, worker.Job{ID: "job-" + string(rune('a'+i))}), ShouldBeTrue)
			}
			store.await(t, 10)

			Convey("Then every job is completed exactly once", func() {
				store.mu.Lock()
				defer store.mu.Unlock()
				So(store.completed, ShouldHaveLength, 10)
			})

			pool.Stop()
		})

		Convey("When the pool shuts down gracefully", func() {
			err := pool.Shutdown(ctx)

			Convey("Then shutdown returns cleanly", func() {
				So(err, ShouldBeNil)
			})
		})
	})
}
