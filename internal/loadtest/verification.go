package loadtest

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/okian/kudos/pkg/logger"
)

// verify reads back every profile, which makes the service audit it against
// the ledger, and checks the leaderboard ordering.
func verify(ctx context.Context, cfg *Config, log logger.Logger, c *client, plan *Plan, ids []string, report *Report) error {
	log.Info(ctx, "verifying profiles", logger.Int("count", len(ids)))

	expected := plan.ExpectedTaskPoints()
	var mu sync.Mutex
	mismatch := func(format string, args ...any) {
		mu.Lock()
		report.Mismatches = append(report.Mismatches, fmt.Sprintf(format, args...))
		mu.Unlock()
	}

	if err := fanOut(ctx, cfg, log, "verify", len(ids), func(ctx context.Context, i int) error {
		var p profileResponse
		if err := c.do(ctx, http.MethodGet, "/profiles/"+ids[i], nil, &p); err != nil {
			return err
		}
		report.Stats.ProfilesVerified.Add(1)
		checkProfile(p, expected[i], mismatch)
		return nil
	}); err != nil {
		return err
	}

	var lb leaderboardResponse
	if err := c.do(ctx, http.MethodGet, "/leaderboard", nil, &lb); err != nil {
		return err
	}
	checkLeaderboard(lb, ids, mismatch)

	report.Top = lb.Boards["total"]
	if len(report.Top) > cfg.TopN {
		report.Top = report.Top[:cfg.TopN]
	}

	if len(report.Mismatches) == 0 {
		log.Info(ctx, "verification passed")
	} else {
		log.Warn(ctx, "verification found mismatches", logger.Int("count", len(report.Mismatches)))
	}
	return nil
}

// checkProfile compares one profile against the points the run earned it.
func checkProfile(p profileResponse, wantTask int64, mismatch func(string, ...any)) {
	s := p.Scores
	if sum := s.Task + s.Role + s.Gift + s.Payment; sum != s.Total {
		mismatch("profile %s: total %d is not the sum of its categories %d", p.ID, s.Total, sum)
	}
	if s.Task != wantTask {
		mismatch("profile %s: task score %d, want %d", p.ID, s.Task, wantTask)
	}
	if s.Role < 0 || s.Payment < 0 {
		mismatch("profile %s: negative role or payment score %+v", p.ID, s)
	}
}

// checkLeaderboard checks that every board is sorted, ranks use standard
// competition ranking, and every profile of the run is on the total board.
func checkLeaderboard(lb leaderboardResponse, ids []string, mismatch func(string, ...any)) {
	for metric, board := range lb.Boards {
		for i, row := range board {
			switch {
			case i == 0 && row.CurrentRank != 1:
				mismatch("board %s: first row ranked %d", metric, row.CurrentRank)
			case i > 0 && row.Score > board[i-1].Score:
				mismatch("board %s: row %d outscores row %d", metric, i, i-1)
			case i > 0 && row.Score == board[i-1].Score && row.CurrentRank != board[i-1].CurrentRank:
				mismatch("board %s: tied rows %d and %d ranked apart", metric, i-1, i)
			case i > 0 && row.Score < board[i-1].Score && row.CurrentRank != i+1:
				mismatch("board %s: row %d ranked %d, want %d", metric, i, row.CurrentRank, i+1)
			}
		}
	}

	onBoard := make(map[string]bool, len(lb.Boards["total"]))
	for _, row := range lb.Boards["total"] {
		onBoard[row.ProfileID] = true
	}
	for _, id := range ids {
		if !onBoard[id] {
			mismatch("profile %s missing from the total board", id)
		}
	}
}
