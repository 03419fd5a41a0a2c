package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/hooplab/shotlog/internal/domain/dedupe"
)

func TestInMemoryDeduper(t *testing.T) {
	Convey("Given a new InMemoryDeduper", t, func() {
		ctx := context.Background()

		Convey("When creating a deduper with default options", func() {
			d := dedupe.NewInMemoryDeduper()

			Convey("Then it starts empty", func() {
				So(d, ShouldNotBeNil)
				So(d.Size(), ShouldEqual, 0)
			})
		})

		Convey("When recording job ids", func() {
			d := dedupe.NewInMemoryDeduper()

			Convey("And the id is new", func() {
				seen := d.SeenAndRecord(ctx, "job-1")

				Convey("Then it is recorded as unseen", func() {
					So(seen, ShouldBeFalse)
					So(d.Size(), ShouldEqual, 1)
				})
			})

			Convey("And the id was already seen", func() {
				d.SeenAndRecord(ctx, "job-1")
				seen := d.SeenAndRecord(ctx, "job-1")

				Convey("Then the duplicate is reported", func() {
					So(seen, ShouldBeTrue)
					So(d.Size(), ShouldEqual, 1)
				})
			})
		})

		Convey("When unrecording an id", func() {
			d := dedupe.NewInMemoryDeduper()
			d.SeenAndRecord(ctx, "job-1")
			d.Unrecord(ctx, "job-1")

			Convey("Then the id can be recorded again", func() {
				So(d.Size(), ShouldEqual, 0)
				So(d.SeenAndRecord(ctx, "job-1"), ShouldBeFalse)
			})
		})

		Convey("When the cache is bounded", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))
			for i := 0; i < 5; i++ {
				d.SeenAndRecord(ctx, fmt.Sprintf("job-%d", i))
			}

			Convey("Then the oldest ids are evicted", func() {
				So(d.Size(), ShouldEqual, 3)
				So(d.SeenAndRecord(ctx, "job-0"), ShouldBeFalse)
				So(d.SeenAndRecord(ctx, "job-4"), ShouldBeTrue)
			})
		})

		Convey("When eviction meets unrecorded entries", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))
			d.SeenAndRecord(ctx, "job-0")
			d.SeenAndRecord(ctx, "job-1")
			d.Unrecord(ctx, "job-0")
			d.SeenAndRecord(ctx, "job-2")
			d.SeenAndRecord(ctx, "job-3")
			// Cache is now full with job-1..job-3; job-0's ring entry is dead.
			d.SeenAndRecord(ctx, "job-4")

			Convey("Then the dead entry is skipped and the oldest live one goes", func() {
				So(d.Size(), ShouldEqual, 3)
				So(d.SeenAndRecord(ctx, "job-1"), ShouldBeFalse)
			})
		})

		Convey("When recording concurrently", func() {
			d := dedupe.NewInMemoryDeduper()
			var wg sync.WaitGroup
			for i := 0; i < 10; i++ {
				wg.Add(1)
				go func(n int) {
					defer wg.Done()
					for j := 0; j < 100; j++ {
						d.SeenAndRecord(ctx, fmt.Sprintf("job-%d-%d", n, j))
					}
				}(i)
			}
			wg.Wait()

			Convey("Then every id is recorded exactly once", func() {
				So(d.Size(), ShouldEqual, 1000)
			})
		})
	})
}
