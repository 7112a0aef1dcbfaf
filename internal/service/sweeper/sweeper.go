package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/nkiryanov/peercash/internal/events"
	"github.com/nkiryanov/peercash/internal/logger"
	"github.com/nkiryanov/peercash/internal/metrics"
	"github.com/nkiryanov/peercash/internal/models"
	"github.com/nkiryanov/peercash/internal/repository"
	"github.com/nkiryanov/peercash/internal/service/ledger"
)

const (
	DefaultReservationTTL = 15 * time.Minute
	DefaultOverdueAfter   = 24 * time.Hour

	defaultBatchSize = 100
)

type Sweeper struct {
	storage   repository.Storage
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    logger.Logger

	reservationTTL time.Duration
	overdueAfter   time.Duration
	batchSize      int
	now            func() time.Time
}

func New(storage repository.Storage, reservationTTL, overdueAfter time.Duration, p events.Publisher, m *metrics.Metrics, l logger.Logger) *Sweeper {
	if reservationTTL <= 0 {
		reservationTTL = DefaultReservationTTL
	}
	if overdueAfter <= 0 {
		overdueAfter = DefaultOverdueAfter
	}

	return &Sweeper{
		storage:        storage,
		publisher:      p,
		metrics:        m,
		logger:         l.With("component", "sweeper"),
		reservationTTL: reservationTTL,
		overdueAfter:   overdueAfter,
		batchSize:      defaultBatchSize,
		now:            time.Now,
	}
}

// Release reservations nobody confirmed in time and return their earmarks.
// Every request is released in its own transaction and rechecked under the row lock,
// so racing with an inline expiry on confirm or another sweep is harmless.
// Candidates are taken oldest reservation first, batch after batch, until a short batch.
// Returns the number of released reservations.
func (s *Sweeper) ReleaseExpired(ctx context.Context) (int, error) {
	now := s.now()
	cutoff := now.Add(-s.reservationTTL)

	released := 0
	for {
		candidates, err := s.storage.Withdraw().ListWithdraws(ctx, repository.ListWithdrawsOpts{
			Statuses:       []models.WithdrawStatus{models.WithdrawReserved},
			ReservedBefore: &cutoff,
			Limit:          s.batchSize,
		})
		if err != nil {
			return released, fmt.Errorf("list expired reservations: %w", err)
		}

		count, failed := s.releaseBatch(ctx, candidates, now)
		released += count

		// Failed requests stay reserved and would be listed again
		if len(candidates) < s.batchSize || failed > 0 || ctx.Err() != nil {
			break
		}
	}

	if released > 0 {
		s.logger.Info("Expired reservations released", "count", released)
	}
	return released, nil
}

func (s *Sweeper) releaseBatch(ctx context.Context, candidates []models.WithdrawRequest, now time.Time) (released, failed int) {
	for _, c := range candidates {
		var (
			w  models.WithdrawRequest
			ok bool
		)
		err := s.storage.InTx(ctx, func(st repository.Storage) error {
			locked, err := st.Withdraw().GetWithdraw(ctx, c.ID, true)
			if err != nil {
				return err
			}
			w, ok, err = ledger.ExpireReservation(ctx, st, locked, now, s.reservationTTL)
			return err
		})
		if err != nil {
			failed++
			s.logger.Error("Failed to release reservation", "withdraw_id", c.ID, "error", err)
			continue
		}
		if !ok {
			continue
		}

		released++
		s.metrics.ReleasedReservations.WithLabelValues(metrics.ReleaseSwept).Inc()
		s.logger.Info("Reservation released", "withdraw_id", w.ID, "requester_id", w.RequesterID)
		events.PublishOrLog(ctx, s.publisher, s.logger, events.Event{
			Type:       events.ReservationReleased,
			WithdrawID: &w.ID,
			AccountID:  w.RequesterID,
			Amount:     w.Amount,
			Reason:     metrics.ReleaseSwept,
			OccurredAt: now,
		})
	}
	return released, failed
}

// Emit a reminder for each deposit waiting for an admin longer than overdueAfter.
// Read only: nothing changes state. Returns the number of reminders.
func (s *Sweeper) NotifyPendingDeposits(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.overdueAfter)

	overdue, err := s.storage.Deposit().ListDeposits(ctx, repository.ListDepositsOpts{
		Statuses:      []models.DepositStatus{models.DepositInReview},
		CreatedBefore: &cutoff,
	})
	if err != nil {
		return 0, fmt.Errorf("list overdue deposits: %w", err)
	}

	for _, d := range overdue {
		s.logger.Warn("Deposit is waiting for review", "deposit_id", d.ID, "depositor_id", d.DepositorID, "created_at", d.CreatedAt)
		s.metrics.OverdueReviews.Inc()
		events.PublishOrLog(ctx, s.publisher, s.logger, events.Event{
			Type:       events.DepositReviewDue,
			DepositID:  &d.ID,
			WithdrawID: d.MatchedWithdrawID,
			AccountID:  d.DepositorID,
			Amount:     d.Amount,
			OccurredAt: s.now(),
		})
	}

	return len(overdue), nil
}
