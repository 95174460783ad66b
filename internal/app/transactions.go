package service

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/kudos/internal/adapters/repository"
	"github.com/okian/kudos/internal/domain/ledger"
	"github.com/okian/kudos/internal/domain/model"
	"github.com/okian/kudos/internal/domain/scoring"
	"github.com/okian/kudos/pkg/logger"
)

// GetTransaction loads one transaction.
func (s *Service) GetTransaction(ctx context.Context, id string) (model.Transaction, error) {
	var out model.Transaction
	err := s.store.WithTx(ctx, func(tx *repository.Tx) error {
		var err error
		out, err = tx.GetTransaction(ctx, id)
		return err
	})
	return out, err
}

// ListTransactions returns the transactions of an event or contribution pool.
func (s *Service) ListTransactions(ctx context.Context, f repository.TransactionFilter) ([]model.Transaction, error) {
	var out []model.Transaction
	err := s.store.WithTx(ctx, func(tx *repository.Tx) error {
		var err error
		out, err = tx.ListTransactions(ctx, f)
		return err
	})
	return out, err
}

// MarkPaid records that the debtor paid. Paying a billed transaction at or
// past the overdue threshold charges the irreversible late penalty.
func (s *Service) MarkPaid(ctx context.Context, id string) (model.Transaction, error) {
	return s.setTransactionStatus(ctx, id, model.TransactionPaid,
		model.TransactionBilled, model.TransactionConfirmed)
}

// ConfirmTransaction records that the creditor received the money, which
// awards the payment points.
func (s *Service) ConfirmTransaction(ctx context.Context, id string) (model.Transaction, error) {
	return s.setTransactionStatus(ctx, id, model.TransactionConfirmed,
		model.TransactionBilled, model.TransactionPaid)
}

// DeleteTransaction removes a transaction and its payment award. A late
// payment penalty stays.
func (s *Service) DeleteTransaction(ctx context.Context, id string) error {
	return s.store.WithTx(ctx, func(tx *repository.Tx) error {
		if _, err := tx.GetTransaction(ctx, id); err != nil {
			return err
		}
		return s.deleteTransaction(ctx, tx, id)
	})
}

func (s *Service) deleteTransaction(ctx context.Context, tx *repository.Tx, id string) error {
	if _, err := tx.Retract(ctx, ledger.Key{
		Category: ledger.CategoryPayment, SourceID: id, Kind: ledger.KindAward,
	}); err != nil {
		return err
	}
	return tx.DeleteTransaction(ctx, id)
}

func (s *Service) setTransactionStatus(ctx context.Context, id string, target model.TransactionStatus, from ...model.TransactionStatus) (model.Transaction, error) {
	rules := s.Rules()
	now := s.now()

	var out model.Transaction
	err := s.store.WithTx(ctx, func(tx *repository.Tx) error {
		tr, err := tx.GetTransaction(ctx, id)
		if err != nil {
			return err
		}
		if tr.Status == target {
			out = tr
			return nil
		}
		if !statusIn(tr.Status, from) {
			return fmt.Errorf("%w: transaction %s is %s", ErrInvalidState, id, tr.Status)
		}

		prev := tr.Status
		if err := tx.SetTransactionStatus(ctx, id, target); err != nil {
			return err
		}
		if tr, err = tx.GetTransaction(ctx, id); err != nil {
			return err
		}
		if err := s.applyPaymentRules(ctx, tx, rules, tr, prev, now); err != nil {
			return err
		}
		out = tr
		return nil
	})
	return out, err
}

// applyPaymentRules keeps the payment ledger in line with a transaction that
// just entered its current status from prev ("" for a new transaction).
// Confirmed holds the award; any other status drops it. Billed straight to
// paid at or past the threshold adds the penalty.
func (s *Service) applyPaymentRules(ctx context.Context, tx *repository.Tx, rules *scoring.Rules, tr model.Transaction, prev model.TransactionStatus, now time.Time) error {
	if tr.Status == model.TransactionConfirmed {
		if _, err := tx.RecordOrUpdate(ctx, ledger.Record{
			Category:  ledger.CategoryPayment,
			SourceID:  tr.ID,
			ProfileID: tr.FromID,
			Kind:      ledger.KindAward,
			Points:    rules.PaymentPoints(tr.Amount),
			Amount:    tr.Amount,
			Note:      string(tr.Category),
		}); err != nil {
			return err
		}
	} else if _, err := tx.Retract(ctx, ledger.Key{
		Category: ledger.CategoryPayment, SourceID: tr.ID, Kind: ledger.KindAward,
	}); err != nil {
		return err
	}

	if prev == model.TransactionBilled && tr.Status == model.TransactionPaid {
		days, late := rules.PaymentOverdue(tr.CreatedAt, now)
		if late {
			if _, err := tx.RecordOrUpdate(ctx, ledger.Record{
				Category:  ledger.CategoryPayment,
				SourceID:  tr.ID,
				ProfileID: tr.FromID,
				Kind:      ledger.KindPenalty,
				Points:    rules.PaymentPenalty(),
				Amount:    tr.Amount,
				Note:      fmt.Sprintf("paid %d days late", days),
			}); err != nil {
				return err
			}
			s.logger.Info(ctx, "late payment penalized",
				logger.String("transaction_id", tr.ID),
				logger.String("profile_id", tr.FromID),
				logger.Int("days", days),
			)
		}
	}
	return nil
}

func statusIn(s model.TransactionStatus, set []model.TransactionStatus) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
