package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/okian/kudos/internal/adapters/repository"
	"github.com/okian/kudos/internal/domain/ledger"
	"github.com/okian/kudos/internal/domain/model"
	"github.com/okian/kudos/internal/domain/settlement"
	"github.com/okian/kudos/pkg/logger"
	"github.com/okian/kudos/pkg/metrics"
)

// NewEvent is the input of CreateEvent.
type NewEvent struct {
	Title     string
	Date      *time.Time
	StartTime string
	Location  string
}

// CreateEvent stores a planned event.
func (s *Service) CreateEvent(ctx context.Context, in NewEvent) (model.Event, error) {
	if strings.TrimSpace(in.Title) == "" {
		return model.Event{}, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if in.StartTime != "" {
		if _, err := time.Parse("15:04", in.StartTime); err != nil {
			return model.Event{}, fmt.Errorf("%w: start time %q is not HH:MM", ErrValidation, in.StartTime)
		}
	}
	e := model.Event{
		Title:     strings.TrimSpace(in.Title),
		Status:    model.EventPlanned,
		StartTime: in.StartTime,
		Location:  strings.TrimSpace(in.Location),
	}
	if in.Date != nil {
		d := model.DateOf(*in.Date)
		e.Date = &d
	}

	var out model.Event
	err := s.store.WithTx(ctx, func(tx *repository.Tx) error {
		var err error
		out, err = tx.CreateEvent(ctx, e)
		return err
	})
	return out, err
}

// GetEvent loads one event.
func (s *Service) GetEvent(ctx context.Context, id string) (model.Event, error) {
	var out model.Event
	err := s.store.WithTx(ctx, func(tx *repository.Tx) error {
		var err error
		out, err = tx.GetEvent(ctx, id)
		return err
	})
	return out, err
}

// CancelEvent cancels an event that has not been billed.
func (s *Service) CancelEvent(ctx context.Context, id string) (model.Event, error) {
	var out model.Event
	err := s.store.WithTx(ctx, func(tx *repository.Tx) error {
		e, err := tx.GetEvent(ctx, id)
		if err != nil {
			return err
		}
		switch e.Status {
		case model.EventBilled, model.EventPaid:
			return fmt.Errorf("%w: event %s is %s", ErrInvalidState, id, e.Status)
		case model.EventCanceled:
			out = e
			return nil
		}
		if err := tx.SetEventStatus(ctx, id, model.EventCanceled); err != nil {
			return err
		}
		e.Status = model.EventCanceled
		out = e
		return nil
	})
	return out, err
}

// AddParticipant links a profile to an event in a role and awards the role
// points configured right now.
func (s *Service) AddParticipant(ctx context.Context, eventID, profileID, role string) (model.Participant, error) {
	r, err := model.ParseRole(role)
	if err != nil {
		return model.Participant{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	rules := s.Rules()

	var out model.Participant
	err = s.store.WithTx(ctx, func(tx *repository.Tx) error {
		if _, err := tx.GetEvent(ctx, eventID); err != nil {
			return err
		}
		if _, err := tx.GetProfile(ctx, profileID); err != nil {
			return err
		}
		p, err := tx.CreateParticipant(ctx, model.Participant{EventID: eventID, ProfileID: profileID, Role: r})
		if err != nil {
			return err
		}
		if _, err := tx.RecordOrUpdate(ctx, ledger.Record{
			Category:  ledger.CategoryRole,
			SourceID:  p.ID,
			ProfileID: profileID,
			Kind:      ledger.KindAward,
			Points:    rules.RolePoints(r),
			Note:      string(r),
		}); err != nil {
			return err
		}
		out = p
		return nil
	})
	return out, err
}

// ListParticipants returns the participants of an event, optionally only
// those in role.
func (s *Service) ListParticipants(ctx context.Context, eventID, role string) ([]model.Participant, error) {
	var roles []model.Role
	if role != "" {
		r, err := model.ParseRole(role)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		roles = append(roles, r)
	}
	var out []model.Participant
	err := s.store.WithTx(ctx, func(tx *repository.Tx) error {
		if _, err := tx.GetEvent(ctx, eventID); err != nil {
			return err
		}
		var err error
		out, err = tx.ListParticipants(ctx, eventID, roles...)
		return err
	})
	return out, err
}

// RemoveParticipant deletes a participation and retracts its role award.
func (s *Service) RemoveParticipant(ctx context.Context, participantID string) error {
	return s.store.WithTx(ctx, func(tx *repository.Tx) error {
		if _, err := tx.GetParticipant(ctx, participantID); err != nil {
			return err
		}
		if _, err := tx.Retract(ctx, ledger.Key{
			Category: ledger.CategoryRole, SourceID: participantID, Kind: ledger.KindAward,
		}); err != nil {
			return err
		}
		return tx.DeleteParticipant(ctx, participantID)
	})
}

// BillRequest names who paid each cost-bearing task and who shares the cost.
type BillRequest struct {
	Payers   map[string]string `json:"payers"`
	Honorees []string          `json:"honorees"`
}

// Bill is the outcome of BillEvent.
type Bill struct {
	Plan         settlement.Plan     `json:"plan"`
	Transactions []model.Transaction `json:"transactions"`
}

// PreviewSettlement computes the settlement of an event without writing
// anything.
func (s *Service) PreviewSettlement(ctx context.Context, eventID string, req BillRequest) (settlement.Plan, error) {
	var plan settlement.Plan
	err := s.store.WithTx(ctx, func(tx *repository.Tx) error {
		var err error
		plan, err = s.planSettlement(ctx, tx, eventID, req)
		return err
	})
	return plan, err
}

// BillEvent settles an event: one billed transaction per merged transfer,
// one confirmed self transaction per beneficiary who paid something, and the
// event marked billed, all in one transaction.
func (s *Service) BillEvent(ctx context.Context, eventID string, req BillRequest) (Bill, error) {
	rules := s.Rules()
	now := s.now()

	var bill Bill
	err := s.store.WithTx(ctx, func(tx *repository.Tx) error {
		e, err := tx.GetEvent(ctx, eventID)
		if err != nil {
			return err
		}
		switch e.Status {
		case model.EventBilled, model.EventPaid, model.EventCanceled:
			return fmt.Errorf("%w: event %s is %s", ErrInvalidState, eventID, e.Status)
		}

		plan, err := s.planSettlement(ctx, tx, eventID, req)
		if err != nil {
			return err
		}
		if err := plan.Verify(); err != nil {
			return err
		}

		for _, t := range plan.Transfers {
			tr, err := tx.CreateTransaction(ctx, model.Transaction{
				FromID:   t.FromID,
				ToID:     t.ToID,
				Amount:   t.Amount,
				Category: model.TransactionEvent,
				Status:   model.TransactionBilled,
				EventID:  eventID,
			})
			if err != nil {
				return err
			}
			bill.Transactions = append(bill.Transactions, tr)
		}
		for _, t := range plan.SelfSettlements {
			tr, err := tx.CreateTransaction(ctx, model.Transaction{
				FromID:   t.FromID,
				ToID:     t.ToID,
				Amount:   t.Amount,
				Category: model.TransactionEvent,
				Status:   model.TransactionConfirmed,
				EventID:  eventID,
			})
			if err != nil {
				return err
			}
			if err := s.applyPaymentRules(ctx, tx, rules, tr, "", now); err != nil {
				return err
			}
			bill.Transactions = append(bill.Transactions, tr)
		}

		if err := tx.SetEventStatus(ctx, eventID, model.EventBilled); err != nil {
			return err
		}
		bill.Plan = plan
		return nil
	})
	if err != nil {
		return Bill{}, err
	}

	metrics.RecordSettlementBilled(len(bill.Plan.Transfers))
	s.logger.Info(ctx, "event billed",
		logger.String("event_id", eventID),
		logger.String("total", bill.Plan.Total.StringFixed(2)),
		logger.Int("transfers", len(bill.Plan.Transfers)),
		logger.Int("self_settlements", len(bill.Plan.SelfSettlements)),
	)
	return bill, nil
}

// planSettlement gathers the cost-bearing tasks of the event and runs the
// settlement engine on them.
func (s *Service) planSettlement(ctx context.Context, tx *repository.Tx, eventID string, req BillRequest) (settlement.Plan, error) {
	if _, err := tx.GetEvent(ctx, eventID); err != nil {
		return settlement.Plan{}, err
	}
	tasks, err := tx.ListTasks(ctx, repository.TaskFilter{EventID: eventID, CostRelated: true})
	if err != nil {
		return settlement.Plan{}, err
	}

	known := make(map[string]bool, len(tasks))
	in := settlement.Input{Beneficiaries: req.Honorees}
	for _, t := range tasks {
		known[t.ID] = true
		in.Expenses = append(in.Expenses, settlement.Expense{
			TaskID:  t.ID,
			PayerID: req.Payers[t.ID],
			Amount:  t.ActualExpenses,
		})
	}
	for taskID := range req.Payers {
		if !known[taskID] {
			return settlement.Plan{}, fmt.Errorf("%w: task %s is not a cost-bearing task of event %s",
				ErrValidation, taskID, eventID)
		}
	}

	checked := map[string]bool{}
	for _, id := range append(append([]string{}, req.Honorees...), payerIDs(in.Expenses)...) {
		if id == "" || checked[id] {
			continue
		}
		checked[id] = true
		if _, err := tx.GetProfile(ctx, id); err != nil {
			return settlement.Plan{}, err
		}
	}

	return settlement.Compute(in)
}

func payerIDs(expenses []settlement.Expense) []string {
	out := make([]string, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, e.PayerID)
	}
	return out
}
