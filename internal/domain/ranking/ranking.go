// Package ranking builds leaderboards and chart series from profile scores.
// Everything here is a pure function of its inputs.
package ranking

import (
	"fmt"
	"sort"
	"time"

	"github.com/okian/kudos/internal/domain/ledger"
	"github.com/okian/kudos/internal/domain/model"
)

// Metric selects the score a board is ranked on.
type Metric string

// MetricTotal ranks on the grand total. The other metrics are the ledger
// categories.
const MetricTotal Metric = "total"

// Metrics lists the five boards in display order.
var Metrics = []Metric{ //nolint:gochecknoglobals // fixed board order
	MetricTotal,
	Metric(ledger.CategoryRole),
	Metric(ledger.CategoryTask),
	Metric(ledger.CategoryGift),
	Metric(ledger.CategoryPayment),
}

// ParseMetric validates s as a board metric.
func ParseMetric(s string) (Metric, error) {
	for _, m := range Metrics {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMetric, s)
}

func (m Metric) of(s ledger.Scores) int64 {
	if m == MetricTotal {
		return s.Total
	}
	return s.Get(ledger.Category(m))
}

// Arrow is the direction of a score since the past snapshot.
type Arrow string

const (
	ArrowUp    Arrow = "up"
	ArrowDown  Arrow = "down"
	ArrowRight Arrow = "right"
)

// Standing is one row of a board.
type Standing struct {
	ProfileID    string `json:"profile_id"`
	Name         string `json:"name"`
	Score        int64  `json:"score"`
	PastScore    int64  `json:"past_score"`
	CurrentRank  int    `json:"current_rank"`
	PreviousRank int    `json:"previous_rank"`
	RankChange   int    `json:"rank_change"`
	Arrow        Arrow  `json:"arrow"`
}

// Rank builds the board for metric over the active profiles. Equal scores
// share a rank (standard competition ranking) and are listed by name, then id.
func Rank(profiles []model.Profile, metric Metric) []Standing {
	active := make([]model.Profile, 0, len(profiles))
	for _, p := range profiles {
		if !p.Inactive {
			active = append(active, p)
		}
	}

	past := tiedRanks(active, func(p model.Profile) int64 { return metric.of(p.Past) })
	current := tiedRanks(active, func(p model.Profile) int64 { return metric.of(p.Scores) })

	out := make([]Standing, 0, len(active))
	for _, p := range active {
		cur, prev := metric.of(p.Scores), metric.of(p.Past)
		rank := current[p.ID]
		prevRank, ok := past[p.ID]
		if !ok {
			prevRank = rank
		}
		out = append(out, Standing{
			ProfileID:    p.ID,
			Name:         p.Name,
			Score:        cur,
			PastScore:    prev,
			CurrentRank:  rank,
			PreviousRank: prevRank,
			RankChange:   prevRank - rank,
			Arrow:        arrow(cur, prev),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CurrentRank != out[j].CurrentRank {
			return out[i].CurrentRank < out[j].CurrentRank
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ProfileID < out[j].ProfileID
	})
	return out
}

// tiedRanks assigns rank = index+1 at every strictly lower score.
func tiedRanks(profiles []model.Profile, score func(model.Profile) int64) map[string]int {
	sorted := make([]model.Profile, len(profiles))
	copy(sorted, profiles)
	sort.SliceStable(sorted, func(i, j int) bool {
		si, sj := score(sorted[i]), score(sorted[j])
		if si != sj {
			return si > sj
		}
		if sorted[i].Name != sorted[j].Name {
			return sorted[i].Name < sorted[j].Name
		}
		return sorted[i].ID < sorted[j].ID
	})

	ranks := make(map[string]int, len(sorted))
	rank := 0
	for i, p := range sorted {
		if i == 0 || score(p) < score(sorted[i-1]) {
			rank = i + 1
		}
		ranks[p.ID] = rank
	}
	return ranks
}

func arrow(current, past int64) Arrow {
	switch {
	case current > past:
		return ArrowUp
	case current < past:
		return ArrowDown
	}
	return ArrowRight
}

// Chart is the chart-ready time series of one metric.
type Chart struct {
	Labels   []string  `json:"labels"`
	Datasets []Dataset `json:"datasets"`
}

// Dataset is one profile's series. Dates without a snapshot are nil.
type Dataset struct {
	Label string   `json:"label"`
	Data  []*int64 `json:"data"`
}

// Series builds the chart of metric from snapshots taken in year. names maps
// profile ids to display labels; unknown ids fall back to the id.
func Series(snapshots []model.Snapshot, names map[string]string, metric Metric, year int) Chart {
	dates := map[string]struct{}{}
	byProfile := map[string]map[string]int64{}
	for _, s := range snapshots {
		if s.Date.Year() != year {
			continue
		}
		label := s.Date.Format(time.DateOnly)
		dates[label] = struct{}{}
		if byProfile[s.ProfileID] == nil {
			byProfile[s.ProfileID] = map[string]int64{}
		}
		byProfile[s.ProfileID][label] = metric.of(s.Scores)
	}

	chart := Chart{Labels: make([]string, 0, len(dates)), Datasets: make([]Dataset, 0, len(byProfile))}
	for d := range dates {
		chart.Labels = append(chart.Labels, d)
	}
	sort.Strings(chart.Labels)

	ids := make([]string, 0, len(byProfile))
	for id := range byProfile {
		ids = append(ids, id)
	}
	label := func(id string) string {
		if n, ok := names[id]; ok && n != "" {
			return n
		}
		return id
	}
	sort.Slice(ids, func(i, j int) bool {
		li, lj := label(ids[i]), label(ids[j])
		if li != lj {
			return li < lj
		}
		return ids[i] < ids[j]
	})

	for _, id := range ids {
		values := byProfile[id]
		data := make([]*int64, len(chart.Labels))
		for i, d := range chart.Labels {
			if v, ok := values[d]; ok {
				data[i] = &v
			}
		}
		chart.Datasets = append(chart.Datasets, Dataset{Label: label(id), Data: data})
	}
	return chart
}
