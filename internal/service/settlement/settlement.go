// Package settlement turns a deposit in review into its final ledger effect.
//
// Approve credits the depositor and clears the requester's earmark: the money already
// left to the requester off-platform. Reject credits nobody new: the depositor's expected
// deposit is dropped and the requester gets the earmarked amount back.
//
// Rows are locked in the same order everywhere: deposit, withdraw request, accounts.
package settlement

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/peercash/internal/apperrors"
	"github.com/nkiryanov/peercash/internal/events"
	"github.com/nkiryanov/peercash/internal/logger"
	"github.com/nkiryanov/peercash/internal/metrics"
	"github.com/nkiryanov/peercash/internal/models"
	"github.com/nkiryanov/peercash/internal/repository"
)

type SettlementService struct {
	storage   repository.Storage
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    logger.Logger
	now       func() time.Time
}

func NewService(storage repository.Storage, p events.Publisher, m *metrics.Metrics, l logger.Logger) *SettlementService {
	return &SettlementService{
		storage:   storage,
		publisher: p,
		metrics:   m,
		logger:    l,
		now:       time.Now,
	}
}

func (s *SettlementService) Approve(ctx context.Context, admin models.Principal, depositID uuid.UUID) (models.DepositTransaction, error) {
	return s.settle(ctx, admin, depositID, func(d *models.DepositTransaction, w *models.WithdrawRequest, ledger map[uuid.UUID]models.Account, at time.Time) error {
		return approve(d, w, ledger, admin.ID, at)
	})
}

func (s *SettlementService) Reject(ctx context.Context, admin models.Principal, depositID uuid.UUID, reason string) (models.DepositTransaction, error) {
	return s.settle(ctx, admin, depositID, func(d *models.DepositTransaction, w *models.WithdrawRequest, ledger map[uuid.UUID]models.Account, at time.Time) error {
		return reject(d, w, ledger, admin.ID, reason, at)
	})
}

// Apply the outcome to the locked deposit, its withdraw request (nil if none is in review) and accounts
type outcome func(d *models.DepositTransaction, w *models.WithdrawRequest, ledger map[uuid.UUID]models.Account, at time.Time) error

func (s *SettlementService) settle(ctx context.Context, admin models.Principal, depositID uuid.UUID, apply outcome) (models.DepositTransaction, error) {
	var (
		d       models.DepositTransaction
		matched *models.WithdrawRequest
	)
	if !admin.IsAdmin() {
		return d, apperrors.ErrForbidden
	}
	now := s.now()

	err := s.storage.InTx(ctx, func(st repository.Storage) error {
		var err error
		d, err = st.Deposit().GetDeposit(ctx, depositID, true)
		if err != nil {
			return err
		}
		if d.Status != models.DepositInReview {
			return apperrors.ErrDepositAlreadyProcessed
		}

		accountIDs := []uuid.UUID{d.DepositorID}
		if d.MatchedWithdrawID != nil {
			w, err := st.Withdraw().GetWithdraw(ctx, *d.MatchedWithdrawID, true)
			if err != nil {
				return err
			}
			if w.Status() == models.WithdrawInReview {
				matched = &w
				accountIDs = append(accountIDs, w.RequesterID)
			}
		}

		ledger, err := st.Account().LockAccounts(ctx, accountIDs...)
		if err != nil {
			return err
		}

		if err := apply(&d, matched, ledger, now); err != nil {
			return err
		}

		for _, id := range accountIDs {
			if _, err := st.Account().UpdateLedger(ctx, ledger[id]); err != nil {
				return err
			}
		}
		if matched != nil {
			if _, err := st.Withdraw().UpdateWithdrawState(ctx, *matched); err != nil {
				return err
			}
		}

		d, err = st.Deposit().UpdateDepositStatus(ctx, d)
		return err
	})
	if err != nil {
		return d, err
	}

	s.afterCommit(ctx, d, matched)
	return d, nil
}

func (s *SettlementService) afterCommit(ctx context.Context, d models.DepositTransaction, matched *models.WithdrawRequest) {
	e := events.Event{
		DepositID:  &d.ID,
		AccountID:  d.DepositorID,
		Amount:     d.Amount,
		Reason:     d.RejectionReason,
		OccurredAt: d.UpdatedAt,
	}
	if matched != nil {
		e.WithdrawID = &matched.ID
	}

	switch d.Status {
	case models.DepositApproved:
		e.Type = events.DepositApproved
		s.metrics.Settlements.WithLabelValues(metrics.OutcomeApproved).Inc()
	case models.DepositRejected:
		e.Type = events.DepositRejected
		s.metrics.Settlements.WithLabelValues(metrics.OutcomeRejected).Inc()
		if matched != nil {
			s.metrics.ReleasedReservations.WithLabelValues(metrics.ReleaseRejected).Inc()
		}
	}

	s.logger.Info("Deposit settled", "deposit_id", d.ID, "status", d.Status, "admin_id", d.ApprovedBy)
	events.PublishOrLog(ctx, s.publisher, s.logger, e)
}

func approve(d *models.DepositTransaction, w *models.WithdrawRequest, ledger map[uuid.UUID]models.Account, admin uuid.UUID, at time.Time) error {
	if err := d.Approve(admin, at); err != nil {
		return err
	}

	depositor := ledger[d.DepositorID]
	depositor.SettleDeposit(d.Amount)
	ledger[d.DepositorID] = depositor

	if w != nil {
		state, err := w.State.Approve()
		if err != nil {
			return err
		}
		w.State = state
		w.UpdatedAt = at

		requester := ledger[w.RequesterID]
		requester.SettleWithdrawal(w.Amount)
		ledger[w.RequesterID] = requester
	}
	return nil
}

func reject(d *models.DepositTransaction, w *models.WithdrawRequest, ledger map[uuid.UUID]models.Account, admin uuid.UUID, reason string, at time.Time) error {
	if err := d.Reject(admin, reason, at); err != nil {
		return err
	}

	depositor := ledger[d.DepositorID]
	depositor.DropDeposit(d.Amount)
	ledger[d.DepositorID] = depositor

	if w != nil {
		w.State, _ = w.State.Release()
		w.UpdatedAt = at

		requester := ledger[w.RequesterID]
		requester.RefundWithdrawal(w.Amount)
		ledger[w.RequesterID] = requester
	}
	return nil
}
