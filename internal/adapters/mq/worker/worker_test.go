package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/kudos/internal/adapters/mq/queue"
	worker "github.com/okian/kudos/internal/adapters/mq/worker"
	model "github.com/okian/kudos/internal/domain/model"
	logging "github.com/okian/kudos/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logging.Init()
}

type recordingRunner struct {
	mu   sync.Mutex
	ran  []string
	fail map[string]error
}

func newRecordingRunner() *recordingRunner {
	return &recordingRunner{fail: map[string]error{}}
}

func (r *recordingRunner) RunJob(_ context.Context, j model.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ran = append(r.ran, j.ID)
	return r.fail[j.ID]
}

func (r *recordingRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ran)
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a worker on a queue", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(8))
		runner := newRecordingRunner()
		w := worker.NewInMemoryWorker(q, runner, worker.WithName("worker-test"))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When jobs are queued", func() {
			_ = q.Enqueue(ctx, model.Job{ID: "a", Kind: model.JobOverdueTasks})
			_ = q.Enqueue(ctx, model.Job{ID: "b", Kind: model.JobScoreSnapshots})

			convey.Convey("Then the worker runs them in order", func() {
				convey.So(waitFor(func() bool { return runner.count() == 2 }), convey.ShouldBeTrue)
				convey.So(runner.ran, convey.ShouldResemble, []string{"a", "b"})
			})
		})

		convey.Convey("When a job fails", func() {
			runner.fail["bad"] = errors.New("boom")
			_ = q.Enqueue(ctx, model.Job{ID: "bad", Kind: model.JobEventStatus})
			_ = q.Enqueue(ctx, model.Job{ID: "good", Kind: model.JobEventStatus})

			convey.Convey("Then the worker keeps going", func() {
				convey.So(waitFor(func() bool { return runner.count() == 2 }), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When shutting down", func() {
			err := w.Shutdown(context.Background())

			convey.Convey("Then it stops", func() {
				convey.So(err, convey.ShouldBeNil)
				<-w.Done()
				convey.So(w.Shutdown(context.Background()), convey.ShouldBeNil)
			})
		})
	})

	convey.Convey("Given a worker whose context is cancelled", t, func() {
		q := queue.NewInMemoryQueue()
		w := worker.NewInMemoryWorker(q, newRecordingRunner())
		ctx, cancel := context.WithCancel(context.Background())
		go w.Run(ctx)
		cancel()

		convey.So(waitFor(func() bool {
			select {
			case <-w.Done():
				return true
			default:
				return false
			}
		}), convey.ShouldBeTrue)
	})
}

func TestPool(t *testing.T) {
	convey.Convey("Given a pool of workers", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(64))
		runner := newRecordingRunner()
		pool := worker.NewPool(4, q, runner)
		convey.So(pool.Size(), convey.ShouldEqual, 4)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		pool.Start(ctx)

		for i := 0; i < 20; i++ {
			convey.So(q.Enqueue(ctx, model.Job{ID: fmt.Sprintf("run-%d", i), Kind: model.JobTaskReminders}), convey.ShouldBeNil)
		}

		convey.Convey("Then every job runs once", func() {
			convey.So(waitFor(func() bool { return runner.count() == 20 }), convey.ShouldBeTrue)
		})

		convey.Convey("Then shutdown closes the queue", func() {
			convey.So(waitFor(func() bool { return runner.count() == 20 }), convey.ShouldBeTrue)
			convey.So(pool.Shutdown(context.Background()), convey.ShouldBeNil)
			convey.So(q.IsClosed(), convey.ShouldBeTrue)
		})
	})

	convey.Convey("Given a non-positive worker count", t, func() {
		pool := worker.NewPool(0, queue.NewInMemoryQueue(), newRecordingRunner())
		convey.So(pool.Size(), convey.ShouldEqual, 1)
	})
}
