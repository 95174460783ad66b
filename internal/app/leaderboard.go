package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/okian/kudos/internal/adapters/repository"
	"github.com/okian/kudos/internal/domain/ledger"
	"github.com/okian/kudos/internal/domain/model"
	"github.com/okian/kudos/internal/domain/ranking"
)

// CreateProfile registers a participant with zero scores.
func (s *Service) CreateProfile(ctx context.Context, name string) (model.Profile, error) {
	if strings.TrimSpace(name) == "" {
		return model.Profile{}, fmt.Errorf("%w: name is required", ErrValidation)
	}
	var out model.Profile
	err := s.store.WithTx(ctx, func(tx *repository.Tx) error {
		var err error
		out, err = tx.CreateProfile(ctx, model.Profile{Name: strings.TrimSpace(name)})
		return err
	})
	return out, err
}

// SetProfileInactive takes a profile off (or back onto) the leaderboard.
func (s *Service) SetProfileInactive(ctx context.Context, id string, inactive bool) (model.Profile, error) {
	var out model.Profile
	err := s.store.WithTx(ctx, func(tx *repository.Tx) error {
		if err := tx.SetProfileInactive(ctx, id, inactive); err != nil {
			return err
		}
		var err error
		out, err = tx.GetProfile(ctx, id)
		return err
	})
	return out, err
}

// GetProfile loads a profile and audits its cached scores against the
// ledger.
func (s *Service) GetProfile(ctx context.Context, id string) (model.Profile, error) {
	var out model.Profile
	err := s.store.WithTx(ctx, func(tx *repository.Tx) error {
		var err error
		if out, err = tx.GetProfile(ctx, id); err != nil {
			return err
		}
		return tx.Audit(ctx, id)
	})
	return out, err
}

// ProfileHistory lists a profile's ledger entries, optionally for one
// category.
func (s *Service) ProfileHistory(ctx context.Context, id, category string) ([]ledger.Entry, error) {
	var c ledger.Category
	if category != "" {
		var err error
		if c, err = ledger.ParseCategory(category); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
	}
	var out []ledger.Entry
	err := s.store.WithTx(ctx, func(tx *repository.Tx) error {
		if _, err := tx.GetProfile(ctx, id); err != nil {
			return err
		}
		var err error
		out, err = tx.Entries(ctx, id, c)
		return err
	})
	return out, err
}

// Leaderboard is the five boards and five charts, keyed by metric.
type Leaderboard struct {
	Boards map[ranking.Metric][]ranking.Standing `json:"boards"`
	Charts map[ranking.Metric]ranking.Chart      `json:"charts"`
}

// GetLeaderboard ranks the active profiles on every metric and charts their
// snapshots of the current calendar year.
func (s *Service) GetLeaderboard(ctx context.Context) (Leaderboard, error) {
	now := s.now().UTC()

	var (
		profiles  []model.Profile
		snapshots []model.Snapshot
	)
	err := s.store.WithTx(ctx, func(tx *repository.Tx) error {
		var err error
		if profiles, err = tx.ListProfiles(ctx, false); err != nil {
			return err
		}
		if len(profiles) == 0 {
			return nil
		}
		ids := make([]string, len(profiles))
		for i, p := range profiles {
			ids[i] = p.ID
		}
		from := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
		to := time.Date(now.Year(), time.December, 31, 0, 0, 0, 0, time.UTC)
		snapshots, err = tx.ListSnapshots(ctx, from, to, ids...)
		return err
	})
	if err != nil {
		return Leaderboard{}, err
	}

	names := make(map[string]string, len(profiles))
	for _, p := range profiles {
		names[p.ID] = p.Name
	}
	lb := Leaderboard{
		Boards: make(map[ranking.Metric][]ranking.Standing, len(ranking.Metrics)),
		Charts: make(map[ranking.Metric]ranking.Chart, len(ranking.Metrics)),
	}
	for _, m := range ranking.Metrics {
		lb.Boards[m] = ranking.Rank(profiles, m)
		lb.Charts[m] = ranking.Series(snapshots, names, m, now.Year())
	}
	return lb, nil
}
