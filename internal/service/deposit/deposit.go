package deposit

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
	"github.com/nkiryanov/peercash/internal/service/ledger"
)

const DefaultReservationTTL = 15 * time.Minute

type DepositService struct {
	storage   repository.Storage
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    logger.Logger

	reservationTTL time.Duration
	now            func() time.Time
}

func NewService(storage repository.Storage, reservationTTL time.Duration, p events.Publisher, m *metrics.Metrics, l logger.Logger) *DepositService {
	if reservationTTL <= 0 {
		reservationTTL = DefaultReservationTTL
	}

	return &DepositService{
		storage:        storage,
		publisher:      p,
		metrics:        m,
		logger:         l,
		reservationTTL: reservationTTL,
		now:            time.Now,
	}
}

// Confirm that the claimant paid the requester off-platform.
//
// The request must be reserved by the claimant. If the reservation has expired
// it is released (and the earmark returned) before ErrReservationExpired is returned,
// so the request is claimable again right away.
func (s *DepositService) Confirm(ctx context.Context, p models.Principal, screenshotURL string, withdrawID uuid.UUID) (models.DepositTransaction, error) {
	var (
		d       models.DepositTransaction
		w       models.WithdrawRequest
		expired bool
	)
	now := s.now()

	account, err := s.storage.Account().GetAccount(ctx, p.ID, false)
	if err != nil {
		return d, err
	}
	if account.IsBanned(now) {
		return d, apperrors.ErrAccountBanned
	}

	err = s.storage.InTx(ctx, func(st repository.Storage) error {
		var err error
		w, err = st.Withdraw().GetWithdraw(ctx, withdrawID, true)
		if err != nil {
			return err
		}

		if claimant, ok := w.State.ReservedBy(); !ok || claimant != p.ID || w.Status() != models.WithdrawReserved {
			return apperrors.ErrWithdrawNotReservedByUser
		}

		// Commit the release, the caller gets the error after the transaction
		w, expired, err = ledger.ExpireReservation(ctx, st, w, now, s.reservationTTL)
		if err != nil || expired {
			return err
		}

		d, err = st.Deposit().CreateDeposit(ctx, models.NewMatchedDeposit(p.ID, w, screenshotURL, now))
		if err != nil {
			return err
		}

		w.State, err = w.State.StartReview(p.ID, d.ID)
		if err != nil {
			return err
		}
		w.UpdatedAt = now
		_, err = st.Withdraw().UpdateWithdrawState(ctx, w)
		return err
	})
	if err != nil {
		return d, err
	}

	if expired {
		s.metrics.ReleasedReservations.WithLabelValues(metrics.ReleaseExpired).Inc()
		s.logger.Info("Reservation expired on confirm", "withdraw_id", w.ID, "claimant_id", p.ID)
		events.PublishOrLog(ctx, s.publisher, s.logger, events.Event{
			Type:       events.ReservationReleased,
			WithdrawID: &w.ID,
			AccountID:  w.RequesterID,
			Amount:     w.Amount,
			Reason:     metrics.ReleaseExpired,
			OccurredAt: now,
		})
		return d, apperrors.ErrReservationExpired
	}

	s.metrics.ConfirmedDeposits.Inc()
	s.logger.Info("Deposit confirmed", "deposit_id", d.ID, "withdraw_id", w.ID, "depositor_id", p.ID)
	return d, nil
}

// Get deposit visible to its depositor or an admin
func (s *DepositService) Get(ctx context.Context, p models.Principal, depositID uuid.UUID) (models.DepositTransaction, error) {
	d, err := s.storage.Deposit().GetDeposit(ctx, depositID, false)
	if err != nil {
		return d, err
	}
	if !p.IsAdmin() && d.DepositorID != p.ID {
		return models.DepositTransaction{}, apperrors.ErrDepositNotFound
	}
	return d, nil
}

// List deposits of the principal, optionally filtered by status
func (s *DepositService) ListUser(ctx context.Context, p models.Principal, status *models.DepositStatus) ([]models.DepositTransaction, error) {
	opts := repository.ListDepositsOpts{DepositorID: &p.ID}
	if status != nil {
		opts.Statuses = []models.DepositStatus{*status}
	}
	return s.storage.Deposit().ListDeposits(ctx, opts)
}

func (s *DepositService) ListInReview(ctx context.Context, p models.Principal) ([]models.DepositTransaction, error) {
	if !p.IsAdmin() {
		return nil, apperrors.ErrForbidden
	}
	return s.storage.Deposit().ListDeposits(ctx, repository.ListDepositsOpts{
		Statuses: []models.DepositStatus{models.DepositInReview},
	})
}
