package loadtest

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/shopspring/decimal"
)

// Workload shape constants.
const (
	minAttendees     = 2
	maxAttendees     = 6
	minBasePoints    = 5
	maxBasePoints    = 40
	costTaskOneIn    = 2
	maxBudgetCents   = 20_000
	expenseSpreadPct = 30
	eventDaysAhead   = 30
)

var firstNames = []string{ //nolint:gochecknoglobals // name pool
	"Ada", "Grace", "Linus", "Ken", "Barbara", "Edsger", "Frances", "Donald",
	"Margaret", "Rob", "Radia", "Dennis", "Hedy", "Niklaus", "Sophie", "Alan",
}

// Plan is the generated workload. Profiles are referred to by index.
type Plan struct {
	Names  []string
	Events []EventPlan
}

// EventPlan is one event run end to end.
type EventPlan struct {
	Title     string
	Date      string
	Organizer int
	Attendees []int
	Tasks     []TaskPlan
}

// TaskPlan is one task of an event. A zero Budget means the task bears no
// cost.
type TaskPlan struct {
	Title      string
	BasePoints int64
	Assignees  []int
	Budget     decimal.Decimal
	Expenses   decimal.Decimal
	Payer      int
}

// Generate builds a reproducible workload from cfg.Seed.
func Generate(cfg *Config, today time.Time) (*Plan, error) {
	if cfg.Profiles < minAttendees+1 {
		return nil, fmt.Errorf("need at least %d profiles, got %d", minAttendees+1, cfg.Profiles)
	}
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)) //nolint:gosec // workload, not secrets

	p := &Plan{Names: make([]string, cfg.Profiles)}
	for i := range p.Names {
		p.Names[i] = fmt.Sprintf("%s %d", firstNames[i%len(firstNames)], i)
	}

	p.Events = make([]EventPlan, cfg.Events)
	for i := range p.Events {
		p.Events[i] = generateEvent(rng, cfg, i, today)
	}
	return p, nil
}

func generateEvent(rng *rand.Rand, cfg *Config, index int, today time.Time) EventPlan {
	size := minAttendees + rng.IntN(maxAttendees-minAttendees+1)
	if size > cfg.Profiles-1 {
		size = cfg.Profiles - 1
	}
	members := rng.Perm(cfg.Profiles)[:size+1]

	e := EventPlan{
		Title:     fmt.Sprintf("event %d", index),
		Date:      today.AddDate(0, 0, rng.IntN(eventDaysAhead)).Format(time.DateOnly),
		Organizer: members[0],
		Attendees: members[1:],
		Tasks:     make([]TaskPlan, cfg.TasksPerEvent),
	}
	for j := range e.Tasks {
		e.Tasks[j] = generateTask(rng, members, index, j)
	}
	return e
}

func generateTask(rng *rand.Rand, members []int, event, index int) TaskPlan {
	n := 1 + rng.IntN(len(members))
	picked := rng.Perm(len(members))[:n]
	assignees := make([]int, n)
	for i, k := range picked {
		assignees[i] = members[k]
	}

	t := TaskPlan{
		Title:      fmt.Sprintf("event %d task %d", event, index),
		BasePoints: int64(minBasePoints + rng.IntN(maxBasePoints-minBasePoints+1)),
		Assignees:  assignees,
	}
	if rng.IntN(costTaskOneIn) == 0 {
		budget := decimal.New(int64(1+rng.IntN(maxBudgetCents)), -2)
		spread := decimal.New(int64(100-expenseSpreadPct+rng.IntN(2*expenseSpreadPct+1)), -2)
		t.Budget = budget
		t.Expenses = budget.Mul(spread).Round(2)
		t.Payer = members[rng.IntN(len(members))]
	}
	return t
}

// CostRelated reports whether the task bears an expense.
func (t TaskPlan) CostRelated() bool { return t.Budget.IsPositive() }

// ExpectedTaskPoints is the task score every profile should hold once every
// task of the plan is completed on time.
func (p *Plan) ExpectedTaskPoints() []int64 {
	out := make([]int64, len(p.Names))
	for _, e := range p.Events {
		for _, t := range e.Tasks {
			for _, a := range t.Assignees {
				out[a] += t.BasePoints
			}
		}
	}
	return out
}
