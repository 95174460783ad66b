package loadtest

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/okian/kudos/internal/adapters/http/api"
	"github.com/okian/kudos/internal/adapters/repository"
	service "github.com/okian/kudos/internal/app"
	"github.com/okian/kudos/internal/domain/ledger"
	"github.com/okian/kudos/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func newService(t *testing.T) *httptest.Server {
	t.Helper()
	ctx := context.Background()

	store, err := repository.NewMemory(ctx)
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}
	svc := service.New(store, service.WithWorkerCount(1), service.WithQueueSize(8))
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	mux := http.NewServeMux()
	api.NewServer(svc).Register(ctx, mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		_ = svc.Stop(ctx)
		_ = store.Close()
	})
	return srv
}

func testConfig(url string) *Config {
	return &Config{
		BaseURL:       url,
		Profiles:      8,
		Events:        6,
		TasksPerEvent: 3,
		Workers:       4,
		Timeout:       5 * time.Second,
		Seed:          42,
		TopN:          5,
	}
}

func TestGenerate(t *testing.T) {
	Convey("Given a seeded configuration", t, func() {
		cfg := testConfig("")
		today := time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)

		Convey("Then the same seed yields the same workload", func() {
			a, err := Generate(cfg, today)
			So(err, ShouldBeNil)
			b, err := Generate(cfg, today)
			So(err, ShouldBeNil)
			So(a, ShouldResemble, b)
		})

		Convey("Then every event has distinct members and valid tasks", func() {
			p, err := Generate(cfg, today)
			So(err, ShouldBeNil)
			So(p.Names, ShouldHaveLength, 8)
			So(p.Events, ShouldHaveLength, 6)
			for _, e := range p.Events {
				seen := map[int]bool{e.Organizer: true}
				for _, a := range e.Attendees {
					So(seen[a], ShouldBeFalse)
					seen[a] = true
				}
				So(e.Tasks, ShouldHaveLength, 3)
				for _, task := range e.Tasks {
					So(task.Assignees, ShouldNotBeEmpty)
					So(task.BasePoints, ShouldBeBetweenOrEqual, minBasePoints, maxBasePoints)
					if task.CostRelated() {
						So(task.Expenses.IsPositive(), ShouldBeTrue)
						So(seen[task.Payer], ShouldBeTrue)
					}
				}
			}
		})

		Convey("Then too few profiles is rejected", func() {
			cfg.Profiles = 2
			_, err := Generate(cfg, today)
			So(err, ShouldNotBeNil)
		})
	})
}

func TestCheckLeaderboard(t *testing.T) {
	Convey("Given a leaderboard", t, func() {
		var found []string
		mismatch := func(format string, args ...any) { found = append(found, format) }

		Convey("When ranks follow competition ranking", func() {
			lb := leaderboardResponse{Boards: map[string][]Standing{"total": {
				{ProfileID: "a", Score: 40, CurrentRank: 1},
				{ProfileID: "b", Score: 40, CurrentRank: 1},
				{ProfileID: "c", Score: 10, CurrentRank: 3},
			}}}
			checkLeaderboard(lb, []string{"a", "b", "c"}, mismatch)
			So(found, ShouldBeEmpty)
		})

		Convey("When a board is unsorted and a profile is missing", func() {
			lb := leaderboardResponse{Boards: map[string][]Standing{"total": {
				{ProfileID: "a", Score: 10, CurrentRank: 1},
				{ProfileID: "b", Score: 40, CurrentRank: 2},
			}}}
			checkLeaderboard(lb, []string{"a", "b", "c"}, mismatch)
			So(found, ShouldHaveLength, 2)
		})
	})
}

func TestCheckProfile(t *testing.T) {
	Convey("Given a profile whose total disagrees with its categories", t, func() {
		var found []string
		mismatch := func(format string, args ...any) { found = append(found, format) }
		p := profileResponse{ID: "a", Scores: ledger.Scores{Task: 10, Role: 5, Total: 20}}

		checkProfile(p, 10, mismatch)
		So(found, ShouldHaveLength, 1)

		Convey("And a task score that differs from the plan", func() {
			found = nil
			checkProfile(p, 30, mismatch)
			So(found, ShouldHaveLength, 2)
		})
	})
}

func TestRun(t *testing.T) {
	Convey("Given a running service", t, func() {
		srv := newService(t)
		cfg := testConfig(srv.URL)

		Convey("When a load run completes", func() {
			report, err := Run(context.Background(), cfg)
			So(err, ShouldBeNil)

			Convey("Then every profile is verified without mismatches", func() {
				So(report.Mismatches, ShouldBeEmpty)
				So(report.Passed(), ShouldBeTrue)
				So(report.Stats.ProfilesCreated.Load(), ShouldEqual, int64(8))
				So(report.Stats.ProfilesVerified.Load(), ShouldEqual, int64(8))
				So(report.Stats.TasksCompleted.Load(), ShouldEqual, int64(18))
				So(report.Stats.Failed.Load(), ShouldEqual, int64(0))
				So(report.Top, ShouldHaveLength, 5)
			})

			Convey("Then the report renders", func() {
				var buf bytes.Buffer
				So(report.Render(&buf), ShouldBeNil)
				So(buf.String(), ShouldContainSubstring, "PASS")
				So(buf.String(), ShouldContainSubstring, "profiles verified")
			})
		})

		Convey("When the service is unreachable", func() {
			srv.Close()
			_, err := Run(context.Background(), cfg)
			So(err, ShouldNotBeNil)
		})
	})
}
