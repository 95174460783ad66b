package task_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/kudos/internal/domain/model"
	"github.com/okian/kudos/internal/domain/task"
	. "github.com/smartystreets/goconvey/convey"
)

func newTask(status model.TaskStatus, due time.Time) model.Task {
	return model.Task{
		ID:            "t1",
		Status:        status,
		DueDate:       &due,
		BasePoints:    50,
		PenaltyPoints: -10,
	}
}

func TestParseStatus(t *testing.T) {
	Convey("Given raw status values", t, func() {
		st, err := task.ParseStatus("In_Progress")
		So(err, ShouldBeNil)
		So(st, ShouldEqual, model.TaskInProgress)

		_, err = task.ParseStatus("done")
		So(errors.Is(err, task.ErrInvalidStatus), ShouldBeTrue)

		Convey("Users may only set in_progress and completed", func() {
			_, err := task.ParseUserStatus("completed")
			So(err, ShouldBeNil)
			_, err = task.ParseUserStatus("overdue")
			So(errors.Is(err, task.ErrInvalidTransition), ShouldBeTrue)
			_, err = task.ParseUserStatus("reminder")
			So(errors.Is(err, task.ErrInvalidTransition), ShouldBeTrue)
		})
	})
}

func TestApply(t *testing.T) {
	now := time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-48 * time.Hour)
	future := now.Add(48 * time.Hour)

	Convey("Given a past due task completed directly", t, func() {
		tk := newTask(model.TaskPending, past)
		tr, err := task.Apply(tk, model.TaskCompleted, now)
		So(err, ShouldBeNil)
		tr.ApplyTo(&tk)

		Convey("Then it is awarded and never penalized", func() {
			So(tr.Effect, ShouldEqual, task.EffectAward)
			So(tk.PointsAwarded, ShouldEqual, 50)
			So(tk.PenaltyApplied, ShouldBeFalse)
			So(*tk.CompletedAt, ShouldEqual, now)
		})
	})

	Convey("Given a pending task left past due", t, func() {
		tk := newTask(model.TaskPending, past)
		tr, err := task.Apply(tk, model.TaskOverdue, now)
		So(err, ShouldBeNil)
		tr.ApplyTo(&tk)

		Convey("Then it flips to overdue with the penalty", func() {
			So(tr.Effect, ShouldEqual, task.EffectPenalize)
			So(tk.Status, ShouldEqual, model.TaskOverdue)
			So(tk.PointsAwarded, ShouldEqual, -10)
			So(tk.PenaltyApplied, ShouldBeTrue)
		})

		Convey("And completing it later adds the award on top", func() {
			tr, err := task.Apply(tk, model.TaskCompleted, now)
			So(err, ShouldBeNil)
			tr.ApplyTo(&tk)
			So(tr.Effect, ShouldEqual, task.EffectAward)
			So(tk.PointsAwarded, ShouldEqual, 40)
		})

		Convey("And a second trip through overdue charges nothing", func() {
			tr, err := task.Apply(tk, model.TaskInProgress, now)
			So(err, ShouldBeNil)
			tr.ApplyTo(&tk)
			tr, err = task.Apply(tk, model.TaskOverdue, now)
			So(err, ShouldBeNil)
			So(tr.Effect, ShouldEqual, task.EffectNone)
			So(tr.Delta, ShouldEqual, 0)
		})
	})

	Convey("Given the overdue guard", t, func() {
		Convey("A task not yet due cannot become overdue", func() {
			_, err := task.Apply(newTask(model.TaskPending, future), model.TaskOverdue, now)
			So(errors.Is(err, task.ErrInvalidTransition), ShouldBeTrue)
		})

		Convey("A task without due date cannot become overdue", func() {
			tk := newTask(model.TaskPending, past)
			tk.DueDate = nil
			_, err := task.Apply(tk, model.TaskOverdue, now)
			So(errors.Is(err, task.ErrInvalidTransition), ShouldBeTrue)
		})

		Convey("A completed task cannot become overdue", func() {
			_, err := task.Apply(newTask(model.TaskCompleted, past), model.TaskOverdue, now)
			So(errors.Is(err, task.ErrInvalidTransition), ShouldBeTrue)
		})
	})

	Convey("Given a completed task being reopened", t, func() {
		tk := newTask(model.TaskCompleted, future)
		tk.PointsAwarded = 50
		at := now
		tk.CompletedAt = &at

		tr, err := task.Apply(tk, model.TaskPending, now)
		So(err, ShouldBeNil)
		tr.ApplyTo(&tk)

		So(tr.Effect, ShouldEqual, task.EffectRetractAward)
		So(tk.PointsAwarded, ShouldEqual, 0)
		So(tk.CompletedAt, ShouldBeNil)
	})

	Convey("Given a no-op save", t, func() {
		tr, err := task.Apply(newTask(model.TaskInProgress, future), model.TaskInProgress, now)
		So(err, ShouldBeNil)
		So(tr.Changed(), ShouldBeFalse)
		So(tr.Effect, ShouldEqual, task.EffectNone)
	})

	Convey("Given a malformed target", t, func() {
		_, err := task.Apply(newTask(model.TaskPending, future), "archived", now)
		So(errors.Is(err, task.ErrInvalidStatus), ShouldBeTrue)
	})
}

func TestInitial(t *testing.T) {
	now := time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC)

	Convey("Given new tasks", t, func() {
		Convey("A past due pending task starts overdue", func() {
			tr, err := task.Initial(newTask("", now.Add(-time.Hour)), now)
			So(err, ShouldBeNil)
			So(tr.To, ShouldEqual, model.TaskOverdue)
			So(tr.Effect, ShouldEqual, task.EffectPenalize)
			So(tr.Delta, ShouldEqual, -10)
		})

		Convey("A task created completed is awarded", func() {
			tr, err := task.Initial(newTask(model.TaskCompleted, now.Add(-time.Hour)), now)
			So(err, ShouldBeNil)
			So(tr.To, ShouldEqual, model.TaskCompleted)
			So(tr.Effect, ShouldEqual, task.EffectAward)
			So(tr.Delta, ShouldEqual, 50)
		})

		Convey("A future task starts pending with nothing to record", func() {
			tr, err := task.Initial(newTask("", now.Add(time.Hour)), now)
			So(err, ShouldBeNil)
			So(tr.To, ShouldEqual, model.TaskPending)
			So(tr.Effect, ShouldEqual, task.EffectNone)
		})

		Convey("Positive penalties are rejected", func() {
			tk := newTask("", now.Add(time.Hour))
			tk.PenaltyPoints = 5
			_, err := task.Initial(tk, now)
			So(errors.Is(err, task.ErrInvalidPoints), ShouldBeTrue)
		})

		Convey("System statuses cannot be set at creation", func() {
			_, err := task.Initial(newTask(model.TaskReminder, now.Add(time.Hour)), now)
			So(errors.Is(err, task.ErrInvalidTransition), ShouldBeTrue)
		})
	})
}
