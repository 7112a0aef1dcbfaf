package testutil

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/peercash/internal/models"
	"github.com/nkiryanov/peercash/internal/repository"
)

// Create account whose whole balance is withdrawable
func CreateAccount(t *testing.T, storage repository.Storage, balance int64) models.Account {
	t.Helper()

	account, err := storage.Account().CreateAccount(t.Context(), models.Account{
		Balance:             decimal.NewFromInt(balance),
		WithdrawableBalance: decimal.NewFromInt(balance),
	})
	require.NoError(t, err, "creating test account should not fail")
	return account
}

func GetAccount(t *testing.T, storage repository.Storage, id uuid.UUID) models.Account {
	t.Helper()

	account, err := storage.Account().GetAccount(t.Context(), id, false)
	require.NoError(t, err)
	return account
}

// Create pending withdraw request of 20 paid out via MPESA
func CreateWithdraw(t *testing.T, storage repository.Storage, requester uuid.UUID, createdAt time.Time) models.WithdrawRequest {
	t.Helper()

	w, err := storage.Withdraw().CreateWithdraw(t.Context(), models.WithdrawRequest{
		ID:             uuid.New(),
		RequesterID:    requester,
		Amount:         models.Amount20.Value(),
		Denomination:   models.Amount20,
		Platform:       models.PlatformMPesa,
		WithdrawNumber: "+254700000002",
		State:          models.PendingState(),
		CreatedAt:      createdAt,
		UpdatedAt:      createdAt,
	})
	require.NoError(t, err, "creating test withdraw should not fail")
	return w
}

func GetWithdraw(t *testing.T, storage repository.Storage, id uuid.UUID) models.WithdrawRequest {
	t.Helper()

	w, err := storage.Withdraw().GetWithdraw(t.Context(), id, false)
	require.NoError(t, err)
	return w
}

// Require ledger fields of the account to be equal to the given values
func RequireLedger(t *testing.T, a models.Account, balance, withdrawable, pendingDeposits, pendingWithdrawals int64) {
	t.Helper()

	require.Truef(t, a.Balance.Equal(decimal.NewFromInt(balance)), "balance: want %d, got %s", balance, a.Balance)
	require.Truef(t, a.WithdrawableBalance.Equal(decimal.NewFromInt(withdrawable)), "withdrawable: want %d, got %s", withdrawable, a.WithdrawableBalance)
	require.Truef(t, a.PendingDeposits.Equal(decimal.NewFromInt(pendingDeposits)), "pending deposits: want %d, got %s", pendingDeposits, a.PendingDeposits)
	require.Truef(t, a.PendingWithdrawals.Equal(decimal.NewFromInt(pendingWithdrawals)), "pending withdrawals: want %d, got %s", pendingWithdrawals, a.PendingWithdrawals)
}
