package postgres

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nkiryanov/peercash/internal/apperrors"
	"github.com/nkiryanov/peercash/internal/models"
)

type AccountRepo struct {
	DB DBTX
}

const accountColumns = `id, balance, withdrawable_balance, pending_deposits, pending_withdrawals, banned, banned_until, created_at, updated_at`

func (r *AccountRepo) CreateAccount(ctx context.Context, a models.Account) (models.Account, error) {
	const createAccount = `-- name: CreateAccount
	INSERT INTO accounts (id, balance, withdrawable_balance, pending_deposits, pending_withdrawals, banned, banned_until)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING ` + accountColumns

	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}

	rows, _ := r.DB.Query(ctx, createAccount,
		a.ID, a.Balance, a.WithdrawableBalance, a.PendingDeposits, a.PendingWithdrawals, a.Banned, a.BannedUntil,
	)
	account, err := pgx.CollectOneRow(rows, rowToAccount)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return account, fmt.Errorf("account already exists: %w", err)
		}
		return account, fmt.Errorf("db error: %w", err)
	}

	return account, nil
}

func (r *AccountRepo) GetAccount(ctx context.Context, id uuid.UUID, forUpdate bool) (models.Account, error) {
	getAccount := `-- name: GetAccount
	SELECT ` + accountColumns + ` FROM accounts
	WHERE id = $1`
	if forUpdate {
		getAccount += ` FOR UPDATE`
	}

	rows, _ := r.DB.Query(ctx, getAccount, id)
	account, err := pgx.CollectOneRow(rows, rowToAccount)

	switch {
	case err == nil:
		return account, nil
	case errors.Is(err, pgx.ErrNoRows):
		return account, apperrors.ErrAccountNotFound
	default:
		return account, fmt.Errorf("db error: %w", err)
	}
}

// Rows are locked in id order so two settlements touching the same pair of accounts
// can't deadlock on each other
func (r *AccountRepo) LockAccounts(ctx context.Context, ids ...uuid.UUID) (map[uuid.UUID]models.Account, error) {
	const lockAccounts = `-- name: LockAccounts
	SELECT ` + accountColumns + ` FROM accounts
	WHERE id = ANY($1::uuid[])
	ORDER BY id
	FOR UPDATE`

	unique := slices.Clone(ids)
	slices.SortFunc(unique, func(a, b uuid.UUID) int { return slices.Compare(a[:], b[:]) })
	unique = slices.Compact(unique)

	params := make([]string, 0, len(unique))
	for _, id := range unique {
		params = append(params, id.String())
	}

	rows, _ := r.DB.Query(ctx, lockAccounts, params)
	accounts, err := pgx.CollectRows(rows, rowToAccount)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	if len(accounts) != len(unique) {
		return nil, apperrors.ErrAccountNotFound
	}

	locked := make(map[uuid.UUID]models.Account, len(accounts))
	for _, a := range accounts {
		locked[a.ID] = a
	}
	return locked, nil
}

func (r *AccountRepo) UpdateLedger(ctx context.Context, a models.Account) (models.Account, error) {
	const updateLedger = `-- name: UpdateLedger
	UPDATE accounts
	SET balance = $2, withdrawable_balance = $3, pending_deposits = $4, pending_withdrawals = $5, updated_at = now()
	WHERE id = $1
	RETURNING ` + accountColumns

	rows, _ := r.DB.Query(ctx, updateLedger, a.ID, a.Balance, a.WithdrawableBalance, a.PendingDeposits, a.PendingWithdrawals)
	account, err := pgx.CollectOneRow(rows, rowToAccount)

	switch {
	case err == nil:
		return account, nil
	case errors.Is(err, pgx.ErrNoRows):
		return account, apperrors.ErrAccountNotFound
	default:
		return account, fmt.Errorf("db error: %w", err)
	}
}

func rowToAccount(row pgx.CollectableRow) (models.Account, error) {
	var a models.Account
	err := row.Scan(
		&a.ID, &a.Balance, &a.WithdrawableBalance, &a.PendingDeposits, &a.PendingWithdrawals,
		&a.Banned, &a.BannedUntil, &a.CreatedAt, &a.UpdatedAt,
	)
	return a, err
}
