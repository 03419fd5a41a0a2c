package queue_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/hooplab/shotlog/internal/adapters/mq/queue"
)

func TestInMemoryQueue(t *testing.T) {
	Convey("Given a new InMemoryQueue", t, func() {
		ctx := context.Background()

		Convey("When creating a queue with default options", func() {
			q := queue.NewInMemoryQueue()

			Convey("Then it starts empty and open", func() {
				So(q, ShouldNotBeNil)
				So(q.Len(ctx), ShouldEqual, 0)
				So(q.IsClosed(), ShouldBeFalse)
			})
		})

		Convey("When enqueueing within capacity", func() {
			q := queue.NewInMemoryQueue(queue.WithCapacity(4))

			ok := q.Enqueue(ctx, queue.Job{ID: "job-1", ClipID: "clip-1"})

			Convey("Then the job is accepted", func() {
				So(ok, ShouldBeTrue)
				So(q.Len(ctx), ShouldEqual, 1)
			})
		})

		Convey("When the queue is full", func() {
			q := queue.NewInMemoryQueue(queue.WithCapacity(2))
			So(q.Enqueue(ctx, queue.Job{ID: "job-1"}), ShouldBeTrue)
			So(q.Enqueue(ctx, queue.Job{ID: "job-2"}), ShouldBeTrue)

			ok := q.Enqueue(ctx, queue.Job{ID: "job-3"})

			Convey("Then enqueue reports backpressure without blocking", func() {
				So(ok, ShouldBeFalse)
				So(q.Len(ctx), ShouldEqual, 2)
			})
		})

		Convey("When dequeuing jobs", func() {
			q := queue.NewInMemoryQueue(queue.WithCapacity(8))
			for i := 0; i < 3; i++ {
				So(q.Enqueue(ctx, queue.Job{ID: fmt.Sprintf("job-%d", i)}), ShouldBeTrue)
			}

			out := q.Dequeue(ctx)
			received := make([]string, 0, 3)
			for i := 0; i < 3; i++ {
				select {
				case job := <-out:
					received = append(received, job.ID)
				case <-time.After(time.Second):
					t.Fatal("timed out waiting for job")
				}
			}

			Convey("Then jobs arrive in FIFO order", func() {
				So(received, ShouldResemble, []string{"job-0", "job-1", "job-2"})
			})
		})

		Convey("When the queue is closed", func() {
			q := queue.NewInMemoryQueue(queue.WithCapacity(2))
			So(q.Close(), ShouldBeNil)

			Convey("Then enqueue is refused", func() {
				So(q.IsClosed(), ShouldBeTrue)
				So(q.Enqueue(ctx, queue.Job{ID: "late"}), ShouldBeFalse)
			})

			Convey("Then the dequeue channel drains and closes", func() {
				out := q.Dequeue(ctx)
				select {
				case _, open := <-out:
					So(open, ShouldBeFalse)
				case <-time.After(time.Second):
					t.Fatal("dequeue channel did not close")
				}
			})

			Convey("Then closing again is a no-op", func() {
				So(q.Close(), ShouldBeNil)
			})
		})
	})
}
