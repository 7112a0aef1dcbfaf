package withdraw

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/peercash/internal/apperrors"
	"github.com/nkiryanov/peercash/internal/logger"
	"github.com/nkiryanov/peercash/internal/metrics"
	"github.com/nkiryanov/peercash/internal/models"
	"github.com/nkiryanov/peercash/internal/repository"
	"github.com/nkiryanov/peercash/internal/service/ledger"
)

type SubmitRequest struct {
	Amount         decimal.Decimal
	Denomination   models.Denomination
	Platform       models.Platform
	WithdrawNumber string
}

type WithdrawService struct {
	storage repository.Storage
	metrics *metrics.Metrics
	logger  logger.Logger
	now     func() time.Time
}

func NewService(storage repository.Storage, m *metrics.Metrics, l logger.Logger) *WithdrawService {
	return &WithdrawService{
		storage: storage,
		metrics: m,
		logger:  l,
		now:     time.Now,
	}
}

// Submit a withdraw request. Nothing is debited until the request is reserved.
func (s *WithdrawService) Submit(ctx context.Context, p models.Principal, req SubmitRequest) (models.WithdrawRequest, error) {
	var w models.WithdrawRequest

	if _, err := models.ParseDenomination(string(req.Denomination)); err != nil {
		return w, err
	}
	if _, err := models.ParsePlatform(string(req.Platform)); err != nil {
		return w, err
	}
	if !req.Amount.Equal(req.Denomination.Value()) {
		return w, fmt.Errorf("%w: %s for %s", apperrors.ErrInvalidAmount, req.Amount, req.Denomination)
	}

	now := s.now()
	account, err := s.storage.Account().GetAccount(ctx, p.ID, false)
	if err != nil {
		return w, err
	}
	if account.IsBanned(now) {
		return w, apperrors.ErrAccountBanned
	}
	if err := account.CheckWithdrawable(req.Amount); err != nil {
		return w, err
	}

	w, err = s.storage.Withdraw().CreateWithdraw(ctx, models.WithdrawRequest{
		ID:             uuid.New(),
		RequesterID:    p.ID,
		Amount:         req.Amount,
		Denomination:   req.Denomination,
		Platform:       req.Platform,
		WithdrawNumber: req.WithdrawNumber,
		State:          models.PendingState(),
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		return w, err
	}

	s.logger.Info("Withdraw request submitted", "withdraw_id", w.ID, "requester_id", p.ID, "amount", w.Amount)
	return w, nil
}

// Reserve the request for the claimant and earmark its amount on both accounts.
// The request row stays locked until commit so only one of concurrent claimants wins.
func (s *WithdrawService) Reserve(ctx context.Context, p models.Principal, withdrawID uuid.UUID) (models.WithdrawRequest, error) {
	var w models.WithdrawRequest
	now := s.now()

	claimant, err := s.storage.Account().GetAccount(ctx, p.ID, false)
	if err != nil {
		return w, err
	}
	if claimant.IsBanned(now) {
		return w, apperrors.ErrAccountBanned
	}

	err = s.storage.InTx(ctx, func(st repository.Storage) error {
		var err error
		w, err = st.Withdraw().GetWithdraw(ctx, withdrawID, true)
		if err != nil {
			return err
		}
		if w.RequesterID == p.ID {
			return apperrors.ErrWithdrawOwnRequest
		}

		state, err := w.State.Reserve(p.ID, now)
		if err != nil {
			return err
		}

		if err := ledger.Earmark(ctx, st, w, p.ID); err != nil {
			return err
		}

		w.State = state
		w.UpdatedAt = now
		w, err = st.Withdraw().UpdateWithdrawState(ctx, w)
		return err
	})
	if err != nil {
		return w, err
	}

	s.metrics.Reservations.Inc()
	s.logger.Info("Withdraw request reserved", "withdraw_id", w.ID, "claimant_id", p.ID)
	return w, nil
}

// Cancel a pending request. Only the requester may cancel it.
func (s *WithdrawService) Cancel(ctx context.Context, p models.Principal, withdrawID uuid.UUID) (models.WithdrawRequest, error) {
	var w models.WithdrawRequest

	err := s.storage.InTx(ctx, func(st repository.Storage) error {
		var err error
		w, err = st.Withdraw().GetWithdraw(ctx, withdrawID, true)
		if err != nil {
			return err
		}
		if w.RequesterID != p.ID {
			return apperrors.ErrForbidden
		}

		w.State, err = w.State.Cancel()
		if err != nil {
			return err
		}

		w.UpdatedAt = s.now()
		w, err = st.Withdraw().UpdateWithdrawState(ctx, w)
		return err
	})
	if err != nil {
		return w, err
	}

	s.logger.Info("Withdraw request cancelled", "withdraw_id", w.ID)
	return w, nil
}

// Get request visible to its requester, its claimant or an admin
func (s *WithdrawService) Get(ctx context.Context, p models.Principal, withdrawID uuid.UUID) (models.WithdrawRequest, error) {
	w, err := s.storage.Withdraw().GetWithdraw(ctx, withdrawID, false)
	if err != nil {
		return w, err
	}

	claimant, _ := w.State.ReservedBy()
	if !p.IsAdmin() && w.RequesterID != p.ID && claimant != p.ID {
		return models.WithdrawRequest{}, apperrors.ErrWithdrawNotFound
	}
	return w, nil
}

func (s *WithdrawService) ListUser(ctx context.Context, p models.Principal) ([]models.WithdrawRequest, error) {
	return s.storage.Withdraw().ListWithdraws(ctx, repository.ListWithdrawsOpts{RequesterID: &p.ID})
}

func (s *WithdrawService) ListAll(ctx context.Context, p models.Principal) ([]models.WithdrawRequest, error) {
	if !p.IsAdmin() {
		return nil, apperrors.ErrForbidden
	}
	return s.storage.Withdraw().ListWithdraws(ctx, repository.ListWithdrawsOpts{})
}
