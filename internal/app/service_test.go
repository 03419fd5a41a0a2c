package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/hooplab/shotlog/internal/adapters/repository"
	"github.com/hooplab/shotlog/internal/app"
	"github.com/hooplab/shotlog/internal/domain/model"
	"github.com/hooplab/shotlog/internal/testclips"
)

// awaitDone polls until the job leaves the pending state.
func awaitDone(ctx context.Context, svc *app.Service, jobID string) repository.Record {
	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		rec, err := svc.Result(ctx, jobID)
		So(err, ShouldBeNil)
		if rec.Status != repository.StatusPending {
			return rec
		}
		time.Sleep(20 * time.Millisecond)
	}
	So("job never finished", ShouldBeEmpty)
	return repository.Record{}
}

func submitJob(ctx context.Context, svc *app.Service, jobID, clipID string) {
	accepted, duplicate, err := svc.Submit(ctx, model.Job{
		ID: jobID, ClipID: clipID, SubmittedAt: time.Now(),
	})
	So(err, ShouldBeNil)
	So(accepted, ShouldBeTrue)
	So(duplicate, ShouldBeFalse)
}

func TestServiceLifecycle(t *testing.T) {
	Convey("Given a service without a detector loader", t, func() {
		svc := app.New(app.WithOpener(testclips.NewLibrary()))

		Convey("When it starts", func() {
			err := svc.Start(context.Background())

			Convey("Then startup is refused", func() {
				So(errors.Is(err, app.ErrNoDetectorLoader), ShouldBeTrue)
			})
		})
	})

	Convey("Given a service without a frame opener", t, func() {
		svc := app.New(app.WithDetectorLoader(testclips.Loader()))

		Convey("When it starts", func() {
			err := svc.Start(context.Background())

			Convey("Then startup is refused", func() {
				So(errors.Is(err, app.ErrNoOpener), ShouldBeTrue)
			})
		})
	})

	Convey("Given a service that never started", t, func() {
		svc := app.New(
			app.WithOpener(testclips.NewLibrary()),
			app.WithDetectorLoader(testclips.Loader()),
		)

		Convey("When a job is submitted", func() {
			_, _, err := svc.Submit(context.Background(), model.Job{ID: "j", ClipID: "c"})

			Convey("Then submission is refused", func() {
				So(errors.Is(err, app.ErrNotStarted), ShouldBeTrue)
			})
		})
	})
}

func TestServiceEndToEnd(t *testing.T) {
	Convey("Given a started service backed by scripted clips", t, func() {
		ctx := context.Background()
		library := testclips.NewLibrary()
		library.Add(testclips.NewClip("clip-make", 5.0, clipFPS, []testclips.ShotProfile{
			{Start: 1.0, Make: true},
		}, false))
		library.Add(testclips.NewClip("clip-miss", 5.0, clipFPS, []testclips.ShotProfile{
			{Start: 1.0, Make: false},
		}, false))

		svc := app.New(
			app.WithOpener(library),
			app.WithDetectorLoader(testclips.Loader()),
			app.WithWorkerCount(2),
		)
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When a make and a miss clip are analyzed", func() {
			submitJob(ctx, svc, "job-make", "clip-make")
			submitJob(ctx, svc, "job-miss", "clip-miss")

			makeRec := awaitDone(ctx, svc, "job-make")
			missRec := awaitDone(ctx, svc, "job-miss")

			Convey("Then both complete with the scripted outcomes", func() {
				So(makeRec.Status, ShouldEqual, repository.StatusDone)
				So(makeRec.Result, ShouldNotBeNil)
				So(makeRec.Result.Shots, ShouldHaveLength, 1)
				So(makeRec.Result.Shots[0].Outcome, ShouldEqual, model.OutcomeMade)

				So(missRec.Status, ShouldEqual, repository.StatusDone)
				So(missRec.Result, ShouldNotBeNil)
				So(missRec.Result.Shots, ShouldHaveLength, 1)
				So(missRec.Result.Shots[0].Outcome, ShouldEqual, model.OutcomeMissed)
			})

			Convey("Then the records show up in recent history", func() {
				recent, err := svc.Recent(ctx, 10)
				So(err, ShouldBeNil)
				So(len(recent), ShouldEqual, 2)
			})

			Convey("And when the same job id is submitted again", func() {
				accepted, duplicate, err := svc.Submit(ctx, model.Job{ID: "job-make", ClipID: "clip-make"})

				Convey("Then it is reported as a duplicate", func() {
					So(err, ShouldBeNil)
					So(accepted, ShouldBeTrue)
					So(duplicate, ShouldBeTrue)
				})
			})
		})

		Convey("When a job references an unknown clip", func() {
			submitJob(ctx, svc, "job-ghost", "no-such-clip")
			rec := awaitDone(ctx, svc, "job-ghost")

			Convey("Then the job fails with the open error", func() {
				So(rec.Status, ShouldEqual, repository.StatusFailed)
				So(rec.Error, ShouldContainSubstring, "no-such-clip")
			})
		})

		Convey("When stats are collected", func() {
			stats := svc.GetStats()

			Convey("Then the snapshot reflects the running service", func() {
				So(stats["started"], ShouldEqual, true)
				So(stats["workerCount"], ShouldEqual, 2)
				So(stats, ShouldContainKey, "queueLength")
			})
		})
	})
}
