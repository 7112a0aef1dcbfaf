package sweeper

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/peercash/internal/apperrors"
	"github.com/nkiryanov/peercash/internal/events"
	"github.com/nkiryanov/peercash/internal/logger"
	"github.com/nkiryanov/peercash/internal/metrics"
	"github.com/nkiryanov/peercash/internal/models"
	"github.com/nkiryanov/peercash/internal/repository"
	"github.com/nkiryanov/peercash/internal/repository/postgres"
	"github.com/nkiryanov/peercash/internal/service/deposit"
	"github.com/nkiryanov/peercash/internal/service/withdraw"
	tu "github.com/nkiryanov/peercash/internal/testutil"
)

func user(id uuid.UUID) models.Principal {
	return models.Principal{ID: id, Role: models.RoleUser}
}

type flow struct {
	withdraws *withdraw.WithdrawService
	deposits  *deposit.DepositService
}

func newFlow(st repository.Storage) flow {
	l := logger.NewNoOpLogger()
	return flow{
		withdraws: withdraw.NewService(st, metrics.NewNop(), l),
		deposits:  deposit.NewService(st, DefaultReservationTTL, events.NewLogPublisher(l), metrics.NewNop(), l),
	}
}

// Requester with 50 submits 20, claimant reserves it
func (f flow) reserve(t *testing.T, st repository.Storage) (models.Account, models.Account, models.WithdrawRequest) {
	t.Helper()

	requester := tu.CreateAccount(t, st, 50)
	claimant := tu.CreateAccount(t, st, 0)

	w, err := f.withdraws.Submit(t.Context(), user(requester.ID), withdraw.SubmitRequest{
		Amount:         decimal.NewFromInt(20),
		Denomination:   models.Amount20,
		Platform:       models.PlatformBankTransfer,
		WithdrawNumber: "KE00 1234 5678",
	})
	require.NoError(t, err)
	w, err = f.withdraws.Reserve(t.Context(), user(claimant.ID), w.ID)
	require.NoError(t, err)

	return requester, claimant, w
}

func TestSweeper(t *testing.T) {
	t.Parallel()

	pg := tu.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	// Sweeper runs the given duration after now
	inTx := func(t *testing.T, after time.Duration, fn func(s *Sweeper, storage repository.Storage)) {
		tu.InTx(pg.Pool, t, func(tx pgx.Tx) {
			storage := postgres.NewStorage(tx)
			s := New(storage, DefaultReservationTTL, DefaultOverdueAfter, events.NewLogPublisher(logger.NewNoOpLogger()), metrics.NewNop(), logger.NewNoOpLogger())
			s.now = func() time.Time { return time.Now().Add(after) }
			fn(s, storage)
		})
	}

	t.Run("ReleaseExpired", func(t *testing.T) {
		t.Run("expired reservation released", func(t *testing.T) {
			inTx(t, 16*time.Minute, func(s *Sweeper, st repository.Storage) {
				requester, claimant, w := newFlow(st).reserve(t, st)

				count, err := s.ReleaseExpired(t.Context())

				require.NoError(t, err)
				require.Equal(t, 1, count)
				got := tu.GetWithdraw(t, st, w.ID)
				require.Equal(t, models.WithdrawPending, got.Status())
				require.False(t, got.State.Reserved())
				tu.RequireLedger(t, tu.GetAccount(t, st, requester.ID), 50, 50, 0, 0)
				tu.RequireLedger(t, tu.GetAccount(t, st, claimant.ID), 0, 0, 0, 0)
				require.InDelta(t, 1, testutil.ToFloat64(s.metrics.ReleasedReservations.WithLabelValues(metrics.ReleaseSwept)), 0)
			})
		})

		t.Run("second run is no-op", func(t *testing.T) {
			inTx(t, 16*time.Minute, func(s *Sweeper, st repository.Storage) {
				requester, _, _ := newFlow(st).reserve(t, st)
				_, err := s.ReleaseExpired(t.Context())
				require.NoError(t, err)

				count, err := s.ReleaseExpired(t.Context())

				require.NoError(t, err)
				require.Zero(t, count)
				tu.RequireLedger(t, tu.GetAccount(t, st, requester.ID), 50, 50, 0, 0)
			})
		})

		t.Run("confirm after sweep fail", func(t *testing.T) {
			inTx(t, 16*time.Minute, func(s *Sweeper, st repository.Storage) {
				f := newFlow(st)
				_, claimant, w := f.reserve(t, st)
				_, err := s.ReleaseExpired(t.Context())
				require.NoError(t, err)

				_, err = f.deposits.Confirm(t.Context(), user(claimant.ID), "url", w.ID)

				require.ErrorIs(t, err, apperrors.ErrWithdrawNotReservedByUser)
			})
		})

		t.Run("releases every batch", func(t *testing.T) {
			inTx(t, 16*time.Minute, func(s *Sweeper, st repository.Storage) {
				s.batchSize = 2
				f := newFlow(st)
				requesters := make([]models.Account, 0, 5)
				for range 5 {
					requester, _, _ := f.reserve(t, st)
					requesters = append(requesters, requester)
				}

				count, err := s.ReleaseExpired(t.Context())

				require.NoError(t, err)
				require.Equal(t, 5, count)
				for _, r := range requesters {
					tu.RequireLedger(t, tu.GetAccount(t, st, r.ID), 50, 50, 0, 0)
				}
			})
		})

		t.Run("fresh reservation kept", func(t *testing.T) {
			inTx(t, 5*time.Minute, func(s *Sweeper, st repository.Storage) {
				_, _, w := newFlow(st).reserve(t, st)

				count, err := s.ReleaseExpired(t.Context())

				require.NoError(t, err)
				require.Zero(t, count)
				require.Equal(t, models.WithdrawReserved, tu.GetWithdraw(t, st, w.ID).Status())
			})
		})

		t.Run("reservation in review kept", func(t *testing.T) {
			inTx(t, time.Hour, func(s *Sweeper, st repository.Storage) {
				f := newFlow(st)
				_, claimant, w := f.reserve(t, st)
				_, err := f.deposits.Confirm(t.Context(), user(claimant.ID), "url", w.ID)
				require.NoError(t, err)

				count, err := s.ReleaseExpired(t.Context())

				require.NoError(t, err)
				require.Zero(t, count, "confirmed reservation waits for admin, not for the sweeper")
				require.Equal(t, models.WithdrawInReview, tu.GetWithdraw(t, st, w.ID).Status())
			})
		})
	})

	t.Run("NotifyPendingDeposits", func(t *testing.T) {
		t.Run("overdue deposit reported", func(t *testing.T) {
			inTx(t, 25*time.Hour, func(s *Sweeper, st repository.Storage) {
				f := newFlow(st)
				_, claimant, w := f.reserve(t, st)
				d, err := f.deposits.Confirm(t.Context(), user(claimant.ID), "url", w.ID)
				require.NoError(t, err)

				count, err := s.NotifyPendingDeposits(t.Context())

				require.NoError(t, err)
				require.Equal(t, 1, count)
				require.InDelta(t, 1, testutil.ToFloat64(s.metrics.OverdueReviews), 0)

				got, err := st.Deposit().GetDeposit(t.Context(), d.ID, false)
				require.NoError(t, err)
				require.Equal(t, models.DepositInReview, got.Status, "reminder never changes state")
			})
		})

		t.Run("fresh deposit not reported", func(t *testing.T) {
			inTx(t, time.Hour, func(s *Sweeper, st repository.Storage) {
				f := newFlow(st)
				_, claimant, w := f.reserve(t, st)
				_, err := f.deposits.Confirm(t.Context(), user(claimant.ID), "url", w.ID)
				require.NoError(t, err)

				count, err := s.NotifyPendingDeposits(t.Context())

				require.NoError(t, err)
				require.Zero(t, count)
			})
		})
	})
}
