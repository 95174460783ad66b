package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/okian/kudos/internal/adapters/http/api"
	"github.com/okian/kudos/internal/adapters/repository"
	service "github.com/okian/kudos/internal/app"
	"github.com/okian/kudos/internal/domain/model"
	"github.com/okian/kudos/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

var fixedNow = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, start bool) *httptest.Server {
	t.Helper()
	ctx := context.Background()
	clock := func() time.Time { return fixedNow }

	store, err := repository.NewMemory(ctx, repository.WithClock(clock))
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}
	svc := service.New(store, service.WithClock(clock), service.WithWorkerCount(1), service.WithQueueSize(4))
	if start {
		if err := svc.Start(ctx); err != nil {
			t.Fatalf("Start: %v", err)
		}
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

func do(srv *httptest.Server, method, path, body string) (int, []byte) {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, srv.URL+path, rd)
	So(err, ShouldBeNil)
	req.Header.Set("Content-Type", "application/json")
	resp, err := srv.Client().Do(req)
	So(err, ShouldBeNil)
	defer func() { _ = resp.Body.Close() }()
	out, err := io.ReadAll(resp.Body)
	So(err, ShouldBeNil)
	return resp.StatusCode, out
}

func decodeAs[T any](b []byte) T {
	var v T
	So(json.NewDecoder(bytes.NewReader(b)).Decode(&v), ShouldBeNil)
	return v
}

func createProfile(srv *httptest.Server, name string) model.Profile {
	status, body := do(srv, http.MethodPost, "/profiles", `{"name":"`+name+`"}`)
	So(status, ShouldEqual, http.StatusCreated)
	return decodeAs[model.Profile](body)
}

func TestHealthAndStats(t *testing.T) {
	Convey("Given a running API", t, func() {
		srv := newTestServer(t, true)

		Convey("When /healthz is requested", func() {
			status, body := do(srv, http.MethodGet, "/healthz", "")

			Convey("Then Prometheus metrics are served", func() {
				So(status, ShouldEqual, http.StatusOK)
				So(string(body), ShouldContainSubstring, "kudos_ledger_")
			})
		})

		Convey("When /stats is requested", func() {
			status, body := do(srv, http.MethodGet, "/stats", "")

			Convey("Then the service stats are returned", func() {
				So(status, ShouldEqual, http.StatusOK)
				stats := decodeAs[map[string]any](body)
				So(stats["started"], ShouldEqual, true)
				So(stats["workerCount"], ShouldEqual, float64(1))
			})
		})

		Convey("When a route is requested with the wrong method", func() {
			status, _ := do(srv, http.MethodDelete, "/stats", "")
			So(status, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestProfilesAPI(t *testing.T) {
	Convey("Given a running API", t, func() {
		srv := newTestServer(t, false)

		Convey("When a profile is created and read back", func() {
			p := createProfile(srv, "ada")
			status, body := do(srv, http.MethodGet, "/profiles/"+p.ID, "")

			Convey("Then it has zero scores", func() {
				So(status, ShouldEqual, http.StatusOK)
				got := decodeAs[model.Profile](body)
				So(got.Name, ShouldEqual, "ada")
				So(got.Scores.Total, ShouldEqual, 0)
			})
		})

		Convey("When the profile does not exist", func() {
			status, body := do(srv, http.MethodGet, "/profiles/missing", "")
			So(status, ShouldEqual, http.StatusNotFound)
			So(decodeAs[map[string]string](body)["code"], ShouldEqual, "not_found")
		})

		Convey("When the body is invalid", func() {
			status, _ := do(srv, http.MethodPost, "/profiles", `{"name":`)
			So(status, ShouldEqual, http.StatusBadRequest)

			status, _ = do(srv, http.MethodPost, "/profiles", `{"nickname":"ada"}`)
			So(status, ShouldEqual, http.StatusBadRequest)

			status, _ = do(srv, http.MethodPost, "/profiles", `{"name":" "}`)
			So(status, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the history category is unknown", func() {
			p := createProfile(srv, "ada")
			status, _ := do(srv, http.MethodGet, "/profiles/"+p.ID+"/history?category=karma", "")
			So(status, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the leaderboard is requested", func() {
			createProfile(srv, "ada")
			status, body := do(srv, http.MethodGet, "/leaderboard", "")

			Convey("Then five boards and five charts are returned", func() {
				So(status, ShouldEqual, http.StatusOK)
				lb := decodeAs[service.Leaderboard](body)
				So(lb.Boards, ShouldHaveLength, 5)
				So(lb.Charts, ShouldHaveLength, 5)
			})
		})
	})
}

func TestBillingAPI(t *testing.T) {
	Convey("Given an event with two paid cost-bearing tasks", t, func() {
		srv := newTestServer(t, false)
		a, b, x := createProfile(srv, "A"), createProfile(srv, "B"), createProfile(srv, "X")

		status, body := do(srv, http.MethodPost, "/events", `{"title":"Farewell","date":"2026-05-20","start_time":"18:00"}`)
		So(status, ShouldEqual, http.StatusCreated)
		ev := decodeAs[model.Event](body)

		mkTask := func(title, amount string) model.Task {
			status, body := do(srv, http.MethodPost, "/tasks",
				`{"event_id":"`+ev.ID+`","title":"`+title+`","cost_related":true,"budget":"100"}`)
			So(status, ShouldEqual, http.StatusCreated)
			tk := decodeAs[model.Task](body)
			status, _ = do(srv, http.MethodPost, "/tasks/"+tk.ID+"/expenses", `{"amount":"`+amount+`"}`)
			So(status, ShouldEqual, http.StatusOK)
			return tk
		}
		cake, venue := mkTask("Cake", "90"), mkTask("Venue", "60")
		bill := `{"payers":{"` + cake.ID + `":"` + a.ID + `","` + venue.ID + `":"` + x.ID + `"},"honorees":["` + a.ID + `","` + b.ID + `"]}`

		Convey("When the clearing preview is requested", func() {
			status, body := do(srv, http.MethodPost, "/events/"+ev.ID+"/clearing", bill)

			Convey("Then the transfers are returned", func() {
				So(status, ShouldEqual, http.StatusOK)
				plan := decodeAs[struct {
					Transfers []struct {
						From   string `json:"from"`
						To     string `json:"to"`
						Amount string `json:"amount"`
					} `json:"transfers"`
				}](body)
				So(plan.Transfers, ShouldHaveLength, 2)
				So(plan.Transfers[0].From, ShouldEqual, b.ID)
				So(plan.Transfers[0].To, ShouldEqual, x.ID)
				So(plan.Transfers[0].Amount, ShouldEqual, "60")
			})
		})

		Convey("When the event is billed", func() {
			status, body := do(srv, http.MethodPost, "/events/"+ev.ID+"/bill", bill)
			So(status, ShouldEqual, http.StatusCreated)
			res := decodeAs[service.Bill](body)

			Convey("Then three transactions exist", func() {
				So(res.Transactions, ShouldHaveLength, 3)
				status, body := do(srv, http.MethodGet, "/events/"+ev.ID+"/transactions", "")
				So(status, ShouldEqual, http.StatusOK)
				So(decodeAs[[]model.Transaction](body), ShouldHaveLength, 3)
			})

			Convey("Then billing again conflicts", func() {
				status, _ := do(srv, http.MethodPost, "/events/"+ev.ID+"/bill", bill)
				So(status, ShouldEqual, http.StatusConflict)
			})

			Convey("Then confirming a transfer awards the debtor", func() {
				status, _ := do(srv, http.MethodPost, "/transactions/"+res.Transactions[0].ID+"/confirm", "")
				So(status, ShouldEqual, http.StatusOK)

				_, body := do(srv, http.MethodGet, "/profiles/"+b.ID, "")
				So(decodeAs[model.Profile](body).Scores.Payment, ShouldEqual, 30)
			})
		})

		Convey("When participants are added and listed", func() {
			status, _ := do(srv, http.MethodPost, "/events/"+ev.ID+"/participants", `{"profile_id":"`+a.ID+`","role":"organizer"}`)
			So(status, ShouldEqual, http.StatusCreated)
			status, _ = do(srv, http.MethodPost, "/events/"+ev.ID+"/participants", `{"profile_id":"`+b.ID+`","role":"attendee"}`)
			So(status, ShouldEqual, http.StatusCreated)

			status, body := do(srv, http.MethodGet, "/events/"+ev.ID+"/participants?role=organizer", "")
			So(status, ShouldEqual, http.StatusOK)
			ps := decodeAs[[]model.Participant](body)
			So(ps, ShouldHaveLength, 1)
			So(ps[0].ProfileID, ShouldEqual, a.ID)

			status, body = do(srv, http.MethodGet, "/events/"+ev.ID+"/participants", "")
			So(status, ShouldEqual, http.StatusOK)
			So(decodeAs[[]model.Participant](body), ShouldHaveLength, 2)

			status, _ = do(srv, http.MethodGet, "/events/"+ev.ID+"/participants?role=captain", "")
			So(status, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When a payer is missing", func() {
			status, _ := do(srv, http.MethodPost, "/events/"+ev.ID+"/bill",
				`{"payers":{"`+cake.ID+`":"`+a.ID+`"},"honorees":["`+a.ID+`"]}`)
			So(status, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestTasksAPI(t *testing.T) {
	Convey("Given a task", t, func() {
		srv := newTestServer(t, false)
		ada := createProfile(srv, "ada")
		_, body := do(srv, http.MethodPost, "/events", `{"title":"Party"}`)
		ev := decodeAs[model.Event](body)

		status, body := do(srv, http.MethodPost, "/tasks",
			`{"event_id":"`+ev.ID+`","title":"Balloons","base_points":50,"penalty_points":-10,"assignees":["`+ada.ID+`"],"due_date":"2026-06-01T12:00:00Z"}`)
		So(status, ShouldEqual, http.StatusCreated)
		tk := decodeAs[model.Task](body)

		Convey("When it is completed", func() {
			status, body := do(srv, http.MethodPost, "/tasks/"+tk.ID+"/status", `{"status":"completed"}`)
			So(status, ShouldEqual, http.StatusOK)
			So(decodeAs[model.Task](body).PointsAwarded, ShouldEqual, 50)

			Convey("Then it can be reopened", func() {
				status, body := do(srv, http.MethodPost, "/tasks/"+tk.ID+"/reopen", "")
				So(status, ShouldEqual, http.StatusOK)
				So(decodeAs[model.Task](body).Status, ShouldEqual, model.TaskPending)
			})
		})

		Convey("When a system status is requested", func() {
			status, _ := do(srv, http.MethodPost, "/tasks/"+tk.ID+"/status", `{"status":"overdue"}`)
			So(status, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the due date is malformed", func() {
			status, _ := do(srv, http.MethodPost, "/tasks", `{"event_id":"`+ev.ID+`","title":"x","due_date":"tomorrow"}`)
			So(status, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestGiftsAPI(t *testing.T) {
	Convey("Given a gift search with one proposal", t, func() {
		srv := newTestServer(t, false)
		ada, bob := createProfile(srv, "ada"), createProfile(srv, "bob")

		status, body := do(srv, http.MethodPost, "/gift-searches", `{"title":"Gift","created_by":"`+ada.ID+`"}`)
		So(status, ShouldEqual, http.StatusCreated)
		search := decodeAs[model.GiftSearch](body)
		status, body = do(srv, http.MethodPost, "/gift-searches/"+search.ID+"/proposals", `{"proposed_by":"`+ada.ID+`","title":"Book"}`)
		So(status, ShouldEqual, http.StatusCreated)
		prop := decodeAs[model.GiftProposal](body)

		Convey("When bob votes and the search is finalized", func() {
			status, _ := do(srv, http.MethodPost, "/proposals/"+prop.ID+"/votes", `{"voter_id":"`+bob.ID+`"}`)
			So(status, ShouldEqual, http.StatusOK)
			status, body := do(srv, http.MethodPost, "/gift-searches/"+search.ID+"/finalize", "")

			Convey("Then the proposal wins and voting closes", func() {
				So(status, ShouldEqual, http.StatusOK)
				So(decodeAs[model.GiftProposal](body).ID, ShouldEqual, prop.ID)

				status, _ := do(srv, http.MethodDelete, "/proposals/"+prop.ID+"/votes/"+bob.ID, "")
				So(status, ShouldEqual, http.StatusConflict)
			})
		})

		Convey("When a vote that was never cast is withdrawn", func() {
			status, _ := do(srv, http.MethodDelete, "/proposals/"+prop.ID+"/votes/"+bob.ID, "")
			So(status, ShouldEqual, http.StatusNotFound)
		})

		Convey("When a search is opened with a deadline", func() {
			status, body := do(srv, http.MethodPost, "/gift-searches", `{"title":"Party","created_by":"`+ada.ID+`","deadline":"2026-06-01"}`)
			So(status, ShouldEqual, http.StatusCreated)
			dated := decodeAs[model.GiftSearch](body)
			So(dated.Deadline, ShouldNotBeNil)
			So(dated.Deadline.Format(time.DateOnly), ShouldEqual, "2026-06-01")

			status, _ = do(srv, http.MethodPost, "/gift-searches", `{"title":"Party","created_by":"`+ada.ID+`","deadline":"next week"}`)
			So(status, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestJobsAPI(t *testing.T) {
	Convey("Given a running API", t, func() {
		srv := newTestServer(t, true)

		Convey("When the same job run is posted twice", func() {
			status, body := do(srv, http.MethodPost, "/jobs", `{"job_id":"nightly-1","kind":"score_snapshots"}`)
			So(status, ShouldEqual, http.StatusAccepted)
			So(decodeAs[map[string]any](body)["duplicate"], ShouldEqual, false)

			status, body = do(srv, http.MethodPost, "/jobs", `{"job_id":"nightly-1","kind":"score_snapshots"}`)

			Convey("Then the second is acknowledged as a duplicate", func() {
				So(status, ShouldEqual, http.StatusOK)
				So(decodeAs[map[string]any](body)["duplicate"], ShouldEqual, true)
			})
		})

		Convey("When the kind is unknown", func() {
			status, _ := do(srv, http.MethodPost, "/jobs", `{"job_id":"x","kind":"vacuum"}`)
			So(status, ShouldEqual, http.StatusBadRequest)
		})
	})

	Convey("Given an API whose workers are not started", t, func() {
		srv := newTestServer(t, false)
		status, _ := do(srv, http.MethodPost, "/jobs", `{"kind":"event_status"}`)
		So(status, ShouldEqual, http.StatusServiceUnavailable)
	})
}
