package deposit

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/peercash/internal/apperrors"
	"github.com/nkiryanov/peercash/internal/events"
	"github.com/nkiryanov/peercash/internal/logger"
	"github.com/nkiryanov/peercash/internal/metrics"
	"github.com/nkiryanov/peercash/internal/models"
	"github.com/nkiryanov/peercash/internal/repository"
	"github.com/nkiryanov/peercash/internal/repository/postgres"
	"github.com/nkiryanov/peercash/internal/service/withdraw"
	"github.com/nkiryanov/peercash/internal/testutil"
)

func user(id uuid.UUID) models.Principal {
	return models.Principal{ID: id, Role: models.RoleUser}
}

// Requester with 50, claimant with nothing and a request of 20 reserved by claimant
func reservedWithdraw(t *testing.T, st repository.Storage) (models.Account, models.Account, models.WithdrawRequest) {
	t.Helper()

	requester := testutil.CreateAccount(t, st, 50)
	claimant := testutil.CreateAccount(t, st, 0)

	ws := withdraw.NewService(st, metrics.NewNop(), logger.NewNoOpLogger())
	w, err := ws.Submit(t.Context(), user(requester.ID), withdraw.SubmitRequest{
		Amount:         decimal.NewFromInt(20),
		Denomination:   models.Amount20,
		Platform:       models.PlatformMTNMoMo,
		WithdrawNumber: "+233200000004",
	})
	require.NoError(t, err)

	w, err = ws.Reserve(t.Context(), user(claimant.ID), w.ID)
	require.NoError(t, err)

	return requester, claimant, w
}

func TestDeposit(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	newService := func(st repository.Storage) *DepositService {
		l := logger.NewNoOpLogger()
		return NewService(st, DefaultReservationTTL, events.NewLogPublisher(l), metrics.NewNop(), l)
	}

	// Helper function to create DepositService within transaction
	inTx := func(t *testing.T, fn func(s *DepositService, storage repository.Storage)) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			storage := postgres.NewStorage(tx)
			fn(newService(storage), storage)
		})
	}

	t.Run("Confirm", func(t *testing.T) {
		t.Run("confirm ok", func(t *testing.T) {
			inTx(t, func(s *DepositService, st repository.Storage) {
				requester, claimant, w := reservedWithdraw(t, st)

				d, err := s.Confirm(t.Context(), user(claimant.ID), "https://img.example/proof.png", w.ID)

				require.NoError(t, err)
				require.Equal(t, models.DepositInReview, d.Status, "matched deposit is born in review")
				require.Equal(t, claimant.ID, d.DepositorID)
				require.True(t, d.Amount.Equal(w.Amount), "amount copied from request")
				require.Equal(t, w.Denomination, d.Denomination)
				require.Equal(t, w.Platform, d.Platform)
				require.Equal(t, "https://img.example/proof.png", d.ScreenshotURL)
				require.NotNil(t, d.MatchedWithdrawID)
				require.Equal(t, w.ID, *d.MatchedWithdrawID)

				got := testutil.GetWithdraw(t, st, w.ID)
				require.Equal(t, models.WithdrawInReview, got.Status())
				depositID, ok := got.State.DepositID()
				require.True(t, ok)
				require.Equal(t, d.ID, depositID)

				// No money moves on confirm
				testutil.RequireLedger(t, testutil.GetAccount(t, st, requester.ID), 30, 30, 0, 20)
				testutil.RequireLedger(t, testutil.GetAccount(t, st, claimant.ID), 0, 0, 20, 0)
			})
		})

		t.Run("not reserved by user fail", func(t *testing.T) {
			inTx(t, func(s *DepositService, st repository.Storage) {
				_, _, w := reservedWithdraw(t, st)
				stranger := testutil.CreateAccount(t, st, 0)

				_, err := s.Confirm(t.Context(), user(stranger.ID), "url", w.ID)

				require.ErrorIs(t, err, apperrors.ErrWithdrawNotReservedByUser)
			})
		})

		t.Run("confirm twice fail", func(t *testing.T) {
			inTx(t, func(s *DepositService, st repository.Storage) {
				_, claimant, w := reservedWithdraw(t, st)
				_, err := s.Confirm(t.Context(), user(claimant.ID), "url", w.ID)
				require.NoError(t, err)

				_, err = s.Confirm(t.Context(), user(claimant.ID), "url", w.ID)

				require.ErrorIs(t, err, apperrors.ErrWithdrawNotReservedByUser, "request in review can't be confirmed again")
			})
		})

		t.Run("withdraw not found fail", func(t *testing.T) {
			inTx(t, func(s *DepositService, st repository.Storage) {
				claimant := testutil.CreateAccount(t, st, 0)

				_, err := s.Confirm(t.Context(), user(claimant.ID), "url", uuid.New())

				require.ErrorIs(t, err, apperrors.ErrWithdrawNotFound)
			})
		})

		t.Run("banned claimant fail", func(t *testing.T) {
			testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
				st := postgres.NewStorage(tx)
				s := newService(st)
				_, claimant, w := reservedWithdraw(t, st)

				// Ban is managed outside of this service
				_, err := tx.Exec(t.Context(), `UPDATE accounts SET banned = true WHERE id = $1`, claimant.ID)
				require.NoError(t, err)

				_, err = s.Confirm(t.Context(), user(claimant.ID), "url", w.ID)

				require.ErrorIs(t, err, apperrors.ErrAccountBanned)
			})
		})

		t.Run("expired reservation released", func(t *testing.T) {
			inTx(t, func(s *DepositService, st repository.Storage) {
				requester, claimant, w := reservedWithdraw(t, st)
				s.now = func() time.Time { return time.Now().Add(16 * time.Minute) }

				_, err := s.Confirm(t.Context(), user(claimant.ID), "url", w.ID)

				require.ErrorIs(t, err, apperrors.ErrReservationExpired)

				got := testutil.GetWithdraw(t, st, w.ID)
				require.Equal(t, models.WithdrawPending, got.Status(), "expired request should be claimable again")
				require.False(t, got.State.Reserved())
				testutil.RequireLedger(t, testutil.GetAccount(t, st, requester.ID), 50, 50, 0, 0)
				testutil.RequireLedger(t, testutil.GetAccount(t, st, claimant.ID), 0, 0, 0, 0)

				deposits, err := s.ListUser(t.Context(), user(claimant.ID), nil)
				require.NoError(t, err)
				require.Empty(t, deposits, "no deposit is created for expired reservation")
			})
		})
	})

	t.Run("Confirm concurrently", func(t *testing.T) {
		// Runs against the pool, every call commits its own transaction
		storage := postgres.NewStorage(pg.Pool)
		s := newService(storage)
		_, claimant, w := reservedWithdraw(t, storage)

		const attempts = 5
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			confirmed int
			denied    int
		)
		for range attempts {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.Confirm(t.Context(), user(claimant.ID), "url", w.ID)

				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					confirmed++
				case errors.Is(err, apperrors.ErrWithdrawNotReservedByUser):
					denied++
				}
			}()
		}
		wg.Wait()

		require.Equal(t, 1, confirmed, "only one deposit may be created per reservation")
		require.Equal(t, attempts-1, denied)

		deposits, err := s.ListUser(t.Context(), user(claimant.ID), nil)
		require.NoError(t, err)
		require.Len(t, deposits, 1)
	})

	t.Run("Get and list", func(t *testing.T) {
		inTx(t, func(s *DepositService, st repository.Storage) {
			_, claimant, w := reservedWithdraw(t, st)
			stranger := testutil.CreateAccount(t, st, 0)
			admin := models.Principal{ID: uuid.New(), Role: models.RoleAdmin}
			d, err := s.Confirm(t.Context(), user(claimant.ID), "url", w.ID)
			require.NoError(t, err)

			_, err = s.Get(t.Context(), user(claimant.ID), d.ID)
			require.NoError(t, err)
			_, err = s.Get(t.Context(), admin, d.ID)
			require.NoError(t, err)
			_, err = s.Get(t.Context(), user(stranger.ID), d.ID)
			require.ErrorIs(t, err, apperrors.ErrDepositNotFound)

			inReview := models.DepositInReview
			own, err := s.ListUser(t.Context(), user(claimant.ID), &inReview)
			require.NoError(t, err)
			require.Len(t, own, 1)

			approved := models.DepositApproved
			own, err = s.ListUser(t.Context(), user(claimant.ID), &approved)
			require.NoError(t, err)
			require.Empty(t, own)

			_, err = s.ListInReview(t.Context(), user(claimant.ID))
			require.ErrorIs(t, err, apperrors.ErrForbidden)

			all, err := s.ListInReview(t.Context(), admin)
			require.NoError(t, err)
			require.NotEmpty(t, all)
		})
	})
}
