package postgres

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/peercash/internal/apperrors"
	"github.com/nkiryanov/peercash/internal/models"
	"github.com/nkiryanov/peercash/internal/repository"
	"github.com/nkiryanov/peercash/internal/testutil"
)

func newTestWithdraw(requester uuid.UUID, createdAt time.Time) models.WithdrawRequest {
	return models.WithdrawRequest{
		ID:             uuid.New(),
		RequesterID:    requester,
		Amount:         decimal.NewFromInt(50),
		Denomination:   models.Amount50,
		Platform:       models.PlatformMPesa,
		WithdrawNumber: "+254700000001",
		State:          models.PendingState(),
		CreatedAt:      createdAt,
		UpdatedAt:      createdAt,
	}
}

func TestWithdraws(t *testing.T) {
	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	inTx := func(t *testing.T, outerTx DBTX, fn func(pgx.Tx, repository.Storage)) {
		testutil.InTx(outerTx, t, func(innerTx pgx.Tx) {
			fn(innerTx, NewStorage(innerTx))
		})
	}

	now := time.Now().UTC().Truncate(time.Microsecond)

	t.Run("CreateWithdraw", func(t *testing.T) {
		inTx(t, pg.Pool, func(tx pgx.Tx, storage repository.Storage) {
			requester, err := storage.Account().CreateAccount(t.Context(), models.Account{})
			require.NoError(t, err)

			t.Run("create ok", func(t *testing.T) {
				inTx(t, tx, func(_ pgx.Tx, storage repository.Storage) {
					w, err := storage.Withdraw().CreateWithdraw(t.Context(), newTestWithdraw(requester.ID, now))

					require.NoError(t, err)
					require.Equal(t, requester.ID, w.RequesterID)
					require.Equal(t, models.WithdrawPending, w.Status())
					require.Equal(t, models.Amount50, w.Denomination)
					require.Equal(t, models.PlatformMPesa, w.Platform)
					require.True(t, w.Amount.Equal(decimal.NewFromInt(50)))
					require.False(t, w.State.Reserved())
					require.True(t, now.Equal(w.CreatedAt))
				})
			})

			t.Run("requester not exists", func(t *testing.T) {
				inTx(t, tx, func(_ pgx.Tx, storage repository.Storage) {
					_, err := storage.Withdraw().CreateWithdraw(t.Context(), newTestWithdraw(uuid.New(), now))

					require.ErrorIs(t, err, apperrors.ErrAccountNotFound)
				})
			})
		})
	})

	t.Run("GetWithdraw not found", func(t *testing.T) {
		inTx(t, pg.Pool, func(_ pgx.Tx, storage repository.Storage) {
			_, err := storage.Withdraw().GetWithdraw(t.Context(), uuid.New(), true)

			require.ErrorIs(t, err, apperrors.ErrWithdrawNotFound)
		})
	})

	t.Run("UpdateWithdrawState", func(t *testing.T) {
		inTx(t, pg.Pool, func(tx pgx.Tx, storage repository.Storage) {
			requester, err := storage.Account().CreateAccount(t.Context(), models.Account{})
			require.NoError(t, err)
			claimant, err := storage.Account().CreateAccount(t.Context(), models.Account{})
			require.NoError(t, err)
			w, err := storage.Withdraw().CreateWithdraw(t.Context(), newTestWithdraw(requester.ID, now))
			require.NoError(t, err)

			t.Run("reserve", func(t *testing.T) {
				inTx(t, tx, func(_ pgx.Tx, storage repository.Storage) {
					reserved := w
					state, err := w.State.Reserve(claimant.ID, now)
					require.NoError(t, err)
					reserved.State = state

					_, err = storage.Withdraw().UpdateWithdrawState(t.Context(), reserved)
					require.NoError(t, err)

					got, err := storage.Withdraw().GetWithdraw(t.Context(), w.ID, false)
					require.NoError(t, err)
					require.Equal(t, models.WithdrawReserved, got.Status())
					by, ok := got.State.ReservedBy()
					require.True(t, ok)
					require.Equal(t, claimant.ID, by)
					at, _ := got.State.ReservedAt()
					require.True(t, now.Equal(at))
				})
			})

			t.Run("release", func(t *testing.T) {
				inTx(t, tx, func(_ pgx.Tx, storage repository.Storage) {
					reserved := w
					state, err := w.State.Reserve(claimant.ID, now)
					require.NoError(t, err)
					reserved.State = state
					_, err = storage.Withdraw().UpdateWithdrawState(t.Context(), reserved)
					require.NoError(t, err)

					reserved.State, _ = reserved.State.Release()
					got, err := storage.Withdraw().UpdateWithdrawState(t.Context(), reserved)

					require.NoError(t, err)
					require.Equal(t, models.WithdrawPending, got.Status())
					_, ok := got.State.ReservedBy()
					require.False(t, ok, "released request should not keep the claimant")
				})
			})
		})
	})

	t.Run("ListWithdraws", func(t *testing.T) {
		inTx(t, pg.Pool, func(_ pgx.Tx, storage repository.Storage) {
			requester, err := storage.Account().CreateAccount(t.Context(), models.Account{})
			require.NoError(t, err)
			claimant, err := storage.Account().CreateAccount(t.Context(), models.Account{})
			require.NoError(t, err)

			older, err := storage.Withdraw().CreateWithdraw(t.Context(), newTestWithdraw(requester.ID, now.Add(-time.Hour)))
			require.NoError(t, err)
			newer, err := storage.Withdraw().CreateWithdraw(t.Context(), newTestWithdraw(requester.ID, now))
			require.NoError(t, err)

			older.State, err = older.State.Reserve(claimant.ID, now.Add(-30*time.Minute))
			require.NoError(t, err)
			_, err = storage.Withdraw().UpdateWithdrawState(t.Context(), older)
			require.NoError(t, err)

			all, err := storage.Withdraw().ListWithdraws(t.Context(), repository.ListWithdrawsOpts{RequesterID: &requester.ID})
			require.NoError(t, err)
			require.Len(t, all, 2)
			require.Equal(t, newer.ID, all[0].ID, "newest first")

			cutoff := now.Add(-15 * time.Minute)
			stale, err := storage.Withdraw().ListWithdraws(t.Context(), repository.ListWithdrawsOpts{
				RequesterID:    &requester.ID,
				Statuses:       []models.WithdrawStatus{models.WithdrawReserved},
				ReservedBefore: &cutoff,
			})
			require.NoError(t, err)
			require.Len(t, stale, 1)
			require.Equal(t, older.ID, stale[0].ID)

			limited, err := storage.Withdraw().ListWithdraws(t.Context(), repository.ListWithdrawsOpts{RequesterID: &requester.ID, Limit: 1})
			require.NoError(t, err)
			require.Len(t, limited, 1)
		})
	})

	t.Run("ListWithdraws oldest reservation first", func(t *testing.T) {
		inTx(t, pg.Pool, func(_ pgx.Tx, storage repository.Storage) {
			requester, err := storage.Account().CreateAccount(t.Context(), models.Account{})
			require.NoError(t, err)
			claimant, err := storage.Account().CreateAccount(t.Context(), models.Account{})
			require.NoError(t, err)

			// Created first but reserved last
			first, err := storage.Withdraw().CreateWithdraw(t.Context(), newTestWithdraw(requester.ID, now.Add(-2*time.Hour)))
			require.NoError(t, err)
			second, err := storage.Withdraw().CreateWithdraw(t.Context(), newTestWithdraw(requester.ID, now.Add(-time.Hour)))
			require.NoError(t, err)
			for w, at := range map[*models.WithdrawRequest]time.Time{&first: now.Add(-20 * time.Minute), &second: now.Add(-50 * time.Minute)} {
				w.State, err = w.State.Reserve(claimant.ID, at)
				require.NoError(t, err)
				_, err = storage.Withdraw().UpdateWithdrawState(t.Context(), *w)
				require.NoError(t, err)
			}

			cutoff := now.Add(-15 * time.Minute)
			stale, err := storage.Withdraw().ListWithdraws(t.Context(), repository.ListWithdrawsOpts{
				RequesterID:    &requester.ID,
				Statuses:       []models.WithdrawStatus{models.WithdrawReserved},
				ReservedBefore: &cutoff,
				Limit:          1,
			})

			require.NoError(t, err)
			require.Len(t, stale, 1)
			require.Equal(t, second.ID, stale[0].ID, "longest held reservation goes first")
		})
	})
}
