package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/peercash/internal/models"
)

// Storage gives access to all repositories bound to the same connection or transaction
type Storage interface {
	Account() AccountRepo
	Withdraw() WithdrawRepo
	Deposit() DepositRepo

	// Run fn in a transaction. Commit if fn returns nil, rollback otherwise.
	// Nested calls use savepoints.
	InTx(ctx context.Context, fn func(Storage) error) error
}

type AccountRepo interface {
	CreateAccount(ctx context.Context, account models.Account) (models.Account, error)

	// Get account by id
	// If forUpdate is true the row stays locked until the transaction ends
	// Must return apperrors.ErrAccountNotFound if there is no such account
	GetAccount(ctx context.Context, id uuid.UUID, forUpdate bool) (models.Account, error)

	// Lock several accounts at once, always in the same (id) order
	// Must return apperrors.ErrAccountNotFound if any of accounts is missing
	LockAccounts(ctx context.Context, ids ...uuid.UUID) (map[uuid.UUID]models.Account, error)

	// Persist the four ledger fields of the account
	UpdateLedger(ctx context.Context, account models.Account) (models.Account, error)
}

type ListWithdrawsOpts struct {
	RequesterID    *uuid.UUID
	Statuses       []models.WithdrawStatus
	ReservedBefore *time.Time // reservations placed before the moment, oldest reservation first
	Limit          int        // zero means no limit
}

type WithdrawRepo interface {
	// Must return apperrors.ErrAccountNotFound if requester does not exist
	CreateWithdraw(ctx context.Context, w models.WithdrawRequest) (models.WithdrawRequest, error)

	// Must return apperrors.ErrWithdrawNotFound if there is no such request
	GetWithdraw(ctx context.Context, id uuid.UUID, forUpdate bool) (models.WithdrawRequest, error)

	// Persist the state of the request (status and reservation columns)
	UpdateWithdrawState(ctx context.Context, w models.WithdrawRequest) (models.WithdrawRequest, error)

	// Newest first
	ListWithdraws(ctx context.Context, opts ListWithdrawsOpts) ([]models.WithdrawRequest, error)
}

type ListDepositsOpts struct {
	DepositorID   *uuid.UUID
	Statuses      []models.DepositStatus
	CreatedBefore *time.Time
	Limit         int // zero means no limit
}

type DepositRepo interface {
	CreateDeposit(ctx context.Context, d models.DepositTransaction) (models.DepositTransaction, error)

	// Must return apperrors.ErrDepositNotFound if there is no such deposit
	GetDeposit(ctx context.Context, id uuid.UUID, forUpdate bool) (models.DepositTransaction, error)

	// Persist status, approver and rejection reason
	UpdateDepositStatus(ctx context.Context, d models.DepositTransaction) (models.DepositTransaction, error)

	// Newest first
	ListDeposits(ctx context.Context, opts ListDepositsOpts) ([]models.DepositTransaction, error)
}
