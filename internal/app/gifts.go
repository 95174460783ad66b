package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/okian/kudos/internal/adapters/repository"
	"github.com/okian/kudos/internal/domain/ledger"
	"github.com/okian/kudos/internal/domain/model"
	"github.com/okian/kudos/internal/domain/scoring"
	"github.com/okian/kudos/pkg/logger"
	"github.com/okian/kudos/pkg/metrics"
	"github.com/shopspring/decimal"
)

// CreateGiftSearch opens a gift search. deadline is optional; the gift
// search results job finalizes a search the day after it.
func (s *Service) CreateGiftSearch(ctx context.Context, title, createdBy string, deadline *time.Time) (model.GiftSearch, error) {
	if strings.TrimSpace(title) == "" {
		return model.GiftSearch{}, fmt.Errorf("%w: title is required", ErrValidation)
	}
	var out model.GiftSearch
	err := s.store.WithTx(ctx, func(tx *repository.Tx) error {
		if _, err := tx.GetProfile(ctx, createdBy); err != nil {
			return err
		}
		var err error
		out, err = tx.CreateGiftSearch(ctx, model.GiftSearch{
			Title: strings.TrimSpace(title), CreatedBy: createdBy, Deadline: deadline,
		})
		return err
	})
	return out, err
}

// GiftSearchView is a search with its proposals, earliest first.
type GiftSearchView struct {
	model.GiftSearch
	Proposals []model.GiftProposal `json:"proposals"`
}

// GetGiftSearch loads a search with its proposals and vote counts.
func (s *Service) GetGiftSearch(ctx context.Context, id string) (GiftSearchView, error) {
	var out GiftSearchView
	err := s.store.WithTx(ctx, func(tx *repository.Tx) error {
		search, err := tx.GetGiftSearch(ctx, id)
		if err != nil {
			return err
		}
		proposals, err := tx.ListProposals(ctx, id)
		if err != nil {
			return err
		}
		out = GiftSearchView{GiftSearch: search, Proposals: proposals}
		return nil
	})
	return out, err
}

// AddProposal adds a gift idea to an open search and credits its author.
func (s *Service) AddProposal(ctx context.Context, searchID, proposedBy, title string) (model.GiftProposal, error) {
	if strings.TrimSpace(title) == "" {
		return model.GiftProposal{}, fmt.Errorf("%w: title is required", ErrValidation)
	}
	rules := s.Rules()

	var out model.GiftProposal
	err := s.store.WithTx(ctx, func(tx *repository.Tx) error {
		if _, err := openSearch(ctx, tx, searchID); err != nil {
			return err
		}
		if _, err := tx.GetProfile(ctx, proposedBy); err != nil {
			return err
		}
		p, err := tx.CreateProposal(ctx, model.GiftProposal{
			SearchID: searchID, ProposedBy: proposedBy, Title: strings.TrimSpace(title),
		})
		if err != nil {
			return err
		}
		if _, err := tx.RecordOrUpdate(ctx, ledger.Record{
			Category:  ledger.CategoryGift,
			SourceID:  p.ID,
			ProfileID: proposedBy,
			Kind:      ledger.KindProposal,
			Points:    rules.GiftPoints(scoring.GiftProposer),
			Note:      p.Title,
		}); err != nil {
			return err
		}
		out = p
		return nil
	})
	return out, err
}

// Vote records a vote on a proposal of an open search and credits the
// voter. Voting twice changes nothing.
func (s *Service) Vote(ctx context.Context, proposalID, voterID string) (model.GiftProposal, error) {
	rules := s.Rules()

	var out model.GiftProposal
	err := s.store.WithTx(ctx, func(tx *repository.Tx) error {
		p, err := tx.GetProposal(ctx, proposalID)
		if err != nil {
			return err
		}
		if _, err := openSearch(ctx, tx, p.SearchID); err != nil {
			return err
		}
		if _, err := tx.GetProfile(ctx, voterID); err != nil {
			return err
		}
		if _, err := tx.AddVote(ctx, proposalID, voterID); err != nil {
			return err
		}
		if _, err := tx.RecordOrUpdate(ctx, ledger.Record{
			Category:  ledger.CategoryGift,
			SourceID:  proposalID,
			ProfileID: voterID,
			Kind:      ledger.KindVote,
			Points:    rules.GiftPoints(scoring.GiftVoter),
			Note:      p.Title,
		}); err != nil {
			return err
		}
		out, err = tx.GetProposal(ctx, proposalID)
		return err
	})
	return out, err
}

// WithdrawVote removes a vote from a proposal of an open search and
// retracts the voter's credit.
func (s *Service) WithdrawVote(ctx context.Context, proposalID, voterID string) (model.GiftProposal, error) {
	var out model.GiftProposal
	err := s.store.WithTx(ctx, func(tx *repository.Tx) error {
		p, err := tx.GetProposal(ctx, proposalID)
		if err != nil {
			return err
		}
		if _, err := openSearch(ctx, tx, p.SearchID); err != nil {
			return err
		}
		removed, err := tx.DeleteVote(ctx, proposalID, voterID)
		if err != nil {
			return err
		}
		if !removed {
			return fmt.Errorf("vote of %s on %s: %w", voterID, proposalID, repository.ErrNotFound)
		}
		if _, err := tx.Retract(ctx, ledger.Key{
			Category: ledger.CategoryGift, SourceID: proposalID, Kind: ledger.KindVote, ProfileID: voterID,
		}); err != nil {
			return err
		}
		out, err = tx.GetProposal(ctx, proposalID)
		return err
	})
	return out, err
}

// FinalizeGiftSearch closes a search and credits the author of the proposal
// with the most votes. Ties go to the earliest created proposal.
func (s *Service) FinalizeGiftSearch(ctx context.Context, searchID string) (model.GiftProposal, error) {
	rules := s.Rules()

	var winner model.GiftProposal
	err := s.store.WithTx(ctx, func(tx *repository.Tx) error {
		if _, err := openSearch(ctx, tx, searchID); err != nil {
			return err
		}
		proposals, err := tx.ListProposals(ctx, searchID)
		if err != nil {
			return err
		}
		if len(proposals) == 0 {
			return fmt.Errorf("%w: gift search %s has no proposals", ErrInvalidState, searchID)
		}
		winner, err = finalizeSearch(ctx, tx, rules, searchID, proposals)
		return err
	})
	if err != nil {
		return model.GiftProposal{}, err
	}
	s.logger.Info(ctx, "gift search finalized",
		logger.String("search_id", searchID),
		logger.String("winner", winner.ID),
		logger.Int("votes", winner.Votes),
	)
	return winner, nil
}

// FinalizeDueGiftSearches finalizes every open search whose deadline day is
// before the day of now. A search without proposals is closed without a
// winner. Each search commits on its own.
func (s *Service) FinalizeDueGiftSearches(ctx context.Context, now time.Time) (int, error) {
	rules := s.Rules()

	var due []model.GiftSearch
	if err := s.store.WithTx(ctx, func(tx *repository.Tx) error {
		var err error
		due, err = tx.ListDueGiftSearches(ctx, model.DateOf(now))
		return err
	}); err != nil {
		return 0, err
	}

	var (
		n    int
		errs []error
	)
	for _, search := range due {
		var (
			winner model.GiftProposal
			closed bool
		)
		err := s.store.WithTx(ctx, func(tx *repository.Tx) error {
			if _, err := openSearch(ctx, tx, search.ID); err != nil {
				if errors.Is(err, ErrInvalidState) {
					return nil
				}
				return err
			}
			proposals, err := tx.ListProposals(ctx, search.ID)
			if err != nil {
				return err
			}
			closed = true
			if len(proposals) == 0 {
				return tx.SetGiftSearchFinalized(ctx, search.ID, true)
			}
			winner, err = finalizeSearch(ctx, tx, rules, search.ID, proposals)
			return err
		})
		if err != nil {
			metrics.RecordErrorByComponent("jobs", string(model.JobGiftSearchResults))
			s.logger.Error(ctx, "gift search finalization failed",
				logger.String("search_id", search.ID),
				logger.Error(err),
			)
			errs = append(errs, err)
			continue
		}
		if !closed {
			continue
		}
		s.logger.Debug(ctx, "gift search closed at deadline",
			logger.String("search_id", search.ID),
			logger.String("winner", winner.ID),
		)
		n++
	}
	return n, errors.Join(errs...)
}

// finalizeSearch credits the winner among proposals and marks the search
// finalized.
func finalizeSearch(ctx context.Context, tx *repository.Tx, rules *scoring.Rules, searchID string, proposals []model.GiftProposal) (model.GiftProposal, error) {
	winner := pickWinner(proposals)
	if _, err := tx.RecordOrUpdate(ctx, ledger.Record{
		Category:  ledger.CategoryGift,
		SourceID:  searchID,
		ProfileID: winner.ProposedBy,
		Kind:      ledger.KindWinner,
		Points:    rules.GiftPoints(scoring.GiftWinner),
		Note:      winner.Title,
	}); err != nil {
		return model.GiftProposal{}, err
	}
	return winner, tx.SetGiftSearchFinalized(ctx, searchID, true)
}

// UnfinalizeGiftSearch reopens a finalized search and retracts the winner
// credit.
func (s *Service) UnfinalizeGiftSearch(ctx context.Context, searchID string) error {
	return s.store.WithTx(ctx, func(tx *repository.Tx) error {
		search, err := tx.GetGiftSearch(ctx, searchID)
		if err != nil {
			return err
		}
		if !search.Finalized {
			return fmt.Errorf("%w: gift search %s is not finalized", ErrInvalidState, searchID)
		}
		if _, err := tx.Retract(ctx, ledger.Key{
			Category: ledger.CategoryGift, SourceID: searchID, Kind: ledger.KindWinner,
		}); err != nil {
			return err
		}
		return tx.SetGiftSearchFinalized(ctx, searchID, false)
	})
}

// pickWinner returns the proposal with the most votes. proposals are ordered
// earliest first, so a strict comparison keeps the earliest of a tie.
func pickWinner(proposals []model.GiftProposal) model.GiftProposal {
	best := proposals[0]
	for _, p := range proposals[1:] {
		if p.Votes > best.Votes {
			best = p
		}
	}
	return best
}

func openSearch(ctx context.Context, tx *repository.Tx, id string) (model.GiftSearch, error) {
	search, err := tx.GetGiftSearch(ctx, id)
	if err != nil {
		return model.GiftSearch{}, err
	}
	if search.Finalized {
		return model.GiftSearch{}, fmt.Errorf("%w: gift search %s is finalized", ErrInvalidState, id)
	}
	return search, nil
}

// Pledge is one contributor's share of a gift contribution.
type Pledge struct {
	ContributorID string          `json:"contributor_id"`
	Value         decimal.Decimal `json:"value"`
}

// NewContribution is the input of CreateContribution.
type NewContribution struct {
	Title     string
	ManagerID string
	Deadline  *time.Time
	Pledges   []Pledge
}

// ContributionView is a pool with its pledges.
type ContributionView struct {
	model.GiftContribution
	Contributions []model.Contribution `json:"contributions"`
}

// CreateContribution opens a gift contribution pool.
func (s *Service) CreateContribution(ctx context.Context, in NewContribution) (ContributionView, error) {
	if strings.TrimSpace(in.Title) == "" {
		return ContributionView{}, fmt.Errorf("%w: title is required", ErrValidation)
	}
	var out ContributionView
	err := s.store.WithTx(ctx, func(tx *repository.Tx) error {
		if _, err := tx.GetProfile(ctx, in.ManagerID); err != nil {
			return err
		}
		pool, err := tx.CreateGiftContribution(ctx, model.GiftContribution{
			Title: strings.TrimSpace(in.Title), ManagerID: in.ManagerID, Deadline: in.Deadline,
		})
		if err != nil {
			return err
		}
		out.GiftContribution = pool
		for _, p := range in.Pledges {
			c, err := addPledge(ctx, tx, pool.ID, p)
			if err != nil {
				return err
			}
			out.Contributions = append(out.Contributions, c)
		}
		return nil
	})
	return out, err
}

// AddPledge adds a contributor to an open pool.
func (s *Service) AddPledge(ctx context.Context, contributionID string, p Pledge) (model.Contribution, error) {
	var out model.Contribution
	err := s.store.WithTx(ctx, func(tx *repository.Tx) error {
		pool, err := tx.GetGiftContribution(ctx, contributionID)
		if err != nil {
			return err
		}
		if pool.Status != model.ContributionOpen {
			return fmt.Errorf("%w: contribution %s is %s", ErrInvalidState, contributionID, pool.Status)
		}
		out, err = addPledge(ctx, tx, contributionID, p)
		return err
	})
	return out, err
}

func addPledge(ctx context.Context, tx *repository.Tx, contributionID string, p Pledge) (model.Contribution, error) {
	if !p.Value.IsPositive() || !wholeCents(p.Value) {
		return model.Contribution{}, fmt.Errorf("%w: pledge %s must be a positive amount in cents", ErrValidation, p.Value)
	}
	if _, err := tx.GetProfile(ctx, p.ContributorID); err != nil {
		return model.Contribution{}, err
	}
	return tx.AddContribution(ctx, model.Contribution{
		ContributionID: contributionID, ContributorID: p.ContributorID, Value: p.Value,
	})
}

// SetContributionStatus moves a pool between open, closed and canceled.
// Closing bills every contributor; canceling drops the pledges and their
// transactions; reopening drops the transactions.
func (s *Service) SetContributionStatus(ctx context.Context, id, status string) (ContributionView, error) {
	target, err := parseContributionStatus(status)
	if err != nil {
		return ContributionView{}, err
	}
	rules := s.Rules()
	now := s.now()

	var out ContributionView
	err = s.store.WithTx(ctx, func(tx *repository.Tx) error {
		if err := s.setContributionStatus(ctx, tx, rules, id, target, now); err != nil {
			return err
		}
		var err error
		out, err = contributionView(ctx, tx, id)
		return err
	})
	return out, err
}

// GetContribution loads a pool with its pledges.
func (s *Service) GetContribution(ctx context.Context, id string) (ContributionView, error) {
	var out ContributionView
	err := s.store.WithTx(ctx, func(tx *repository.Tx) error {
		var err error
		out, err = contributionView(ctx, tx, id)
		return err
	})
	return out, err
}

func contributionView(ctx context.Context, tx *repository.Tx, id string) (ContributionView, error) {
	pool, err := tx.GetGiftContribution(ctx, id)
	if err != nil {
		return ContributionView{}, err
	}
	pledges, err := tx.ListContributions(ctx, id)
	if err != nil {
		return ContributionView{}, err
	}
	return ContributionView{GiftContribution: pool, Contributions: pledges}, nil
}

func (s *Service) setContributionStatus(ctx context.Context, tx *repository.Tx, rules *scoring.Rules, id string, target model.ContributionStatus, now time.Time) error {
	pool, err := tx.GetGiftContribution(ctx, id)
	if err != nil {
		return err
	}
	if pool.Status == target {
		return nil
	}

	// Whatever the target, transactions billed by an earlier close go.
	existing, err := tx.ListTransactions(ctx, repository.TransactionFilter{ContributionID: id})
	if err != nil {
		return err
	}
	for _, tr := range existing {
		if err := s.deleteTransaction(ctx, tx, tr.ID); err != nil {
			return err
		}
	}

	switch target {
	case model.ContributionClosed:
		pledges, err := tx.ListContributions(ctx, id)
		if err != nil {
			return err
		}
		for _, c := range pledges {
			status := model.TransactionBilled
			if c.ContributorID == pool.ManagerID {
				status = model.TransactionConfirmed
			}
			tr, err := tx.CreateTransaction(ctx, model.Transaction{
				FromID:         c.ContributorID,
				ToID:           pool.ManagerID,
				Amount:         c.Value,
				Category:       model.TransactionGift,
				Status:         status,
				ContributionID: id,
			})
			if err != nil {
				return err
			}
			if err := s.applyPaymentRules(ctx, tx, rules, tr, "", now); err != nil {
				return err
			}
		}
	case model.ContributionCanceled:
		if _, err := tx.DeleteContributions(ctx, id); err != nil {
			return err
		}
	case model.ContributionOpen:
	}

	return tx.SetGiftContributionStatus(ctx, id, target)
}

func parseContributionStatus(s string) (model.ContributionStatus, error) {
	switch st := model.ContributionStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case model.ContributionOpen, model.ContributionClosed, model.ContributionCanceled:
		return st, nil
	}
	return "", fmt.Errorf("%w: contribution status %q", ErrValidation, s)
}
