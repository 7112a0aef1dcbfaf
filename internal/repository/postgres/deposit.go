package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nkiryanov/peercash/internal/apperrors"
	"github.com/nkiryanov/peercash/internal/models"
	"github.com/nkiryanov/peercash/internal/repository"
)

type DepositRepo struct {
	DB DBTX
}

const depositColumns = `id, depositor_id, amount, denomination, platform, screenshot_url, status, matched_withdraw_id, approved_by, rejection_reason, created_at, updated_at`

func (r *DepositRepo) CreateDeposit(ctx context.Context, d models.DepositTransaction) (models.DepositTransaction, error) {
	const createDeposit = `-- name: CreateDeposit
	INSERT INTO deposit_transactions (id, depositor_id, amount, denomination, platform, screenshot_url, status, matched_withdraw_id, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
	RETURNING ` + depositColumns

	rows, _ := r.DB.Query(ctx, createDeposit,
		d.ID, d.DepositorID, d.Amount, d.Denomination, d.Platform, d.ScreenshotURL, d.Status, d.MatchedWithdrawID, d.CreatedAt,
	)
	created, err := pgx.CollectOneRow(rows, rowToDeposit)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			switch pgErr.ConstraintName {
			case "deposit_transactions_matched_withdraw_id_fkey":
				return created, apperrors.ErrWithdrawNotFound
			default:
				return created, apperrors.ErrAccountNotFound
			}
		}
		return created, fmt.Errorf("db error: %w", err)
	}

	return created, nil
}

func (r *DepositRepo) GetDeposit(ctx context.Context, id uuid.UUID, forUpdate bool) (models.DepositTransaction, error) {
	getDeposit := `-- name: GetDeposit
	SELECT ` + depositColumns + ` FROM deposit_transactions
	WHERE id = $1`
	if forUpdate {
		getDeposit += ` FOR UPDATE`
	}

	rows, _ := r.DB.Query(ctx, getDeposit, id)
	d, err := pgx.CollectOneRow(rows, rowToDeposit)

	switch {
	case err == nil:
		return d, nil
	case errors.Is(err, pgx.ErrNoRows):
		return d, apperrors.ErrDepositNotFound
	default:
		return d, fmt.Errorf("db error: %w", err)
	}
}

func (r *DepositRepo) UpdateDepositStatus(ctx context.Context, d models.DepositTransaction) (models.DepositTransaction, error) {
	const updateStatus = `-- name: UpdateDepositStatus
	UPDATE deposit_transactions
	SET status = $2, approved_by = $3, rejection_reason = $4, updated_at = $5
	WHERE id = $1
	RETURNING ` + depositColumns

	rows, _ := r.DB.Query(ctx, updateStatus, d.ID, d.Status, d.ApprovedBy, d.RejectionReason, d.UpdatedAt)
	updated, err := pgx.CollectOneRow(rows, rowToDeposit)

	switch {
	case err == nil:
		return updated, nil
	case errors.Is(err, pgx.ErrNoRows):
		return updated, apperrors.ErrDepositNotFound
	default:
		return updated, fmt.Errorf("db error: %w", err)
	}
}

func (r *DepositRepo) ListDeposits(ctx context.Context, opts repository.ListDepositsOpts) ([]models.DepositTransaction, error) {
	const listDeposits = `-- name: ListDeposits
	SELECT ` + depositColumns + ` FROM deposit_transactions
	WHERE ($1::uuid IS NULL OR depositor_id = $1)
		AND ($2::text[] IS NULL OR status = ANY($2))
		AND ($3::timestamptz IS NULL OR created_at < $3)
	ORDER BY created_at DESC
	LIMIT NULLIF($4, 0)`

	rows, _ := r.DB.Query(ctx, listDeposits, opts.DepositorID, asStrings(opts.Statuses), opts.CreatedBefore, opts.Limit)
	deposits, err := pgx.CollectRows(rows, rowToDeposit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return deposits, nil
}

func rowToDeposit(row pgx.CollectableRow) (models.DepositTransaction, error) {
	var d models.DepositTransaction
	err := row.Scan(
		&d.ID, &d.DepositorID, &d.Amount, &d.Denomination, &d.Platform, &d.ScreenshotURL, &d.Status,
		&d.MatchedWithdrawID, &d.ApprovedBy, &d.RejectionReason, &d.CreatedAt, &d.UpdatedAt,
	)
	return d, err
}
