package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nkiryanov/peercash/internal/apperrors"
	"github.com/nkiryanov/peercash/internal/models"
	"github.com/nkiryanov/peercash/internal/repository"
)

type WithdrawRepo struct {
	DB DBTX
}

const withdrawColumns = `id, requester_id, amount, denomination, platform, withdraw_number, status, reserved_by, reserved_at, deposit_id, created_at, updated_at`

func (r *WithdrawRepo) CreateWithdraw(ctx context.Context, w models.WithdrawRequest) (models.WithdrawRequest, error) {
	const createWithdraw = `-- name: CreateWithdraw
	INSERT INTO withdraw_requests (id, requester_id, amount, denomination, platform, withdraw_number, status, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
	RETURNING ` + withdrawColumns

	rows, _ := r.DB.Query(ctx, createWithdraw,
		w.ID, w.RequesterID, w.Amount, w.Denomination, w.Platform, w.WithdrawNumber, w.Status(), w.CreatedAt,
	)
	created, err := pgx.CollectOneRow(rows, rowToWithdraw)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return created, apperrors.ErrAccountNotFound
		}
		return created, fmt.Errorf("db error: %w", err)
	}

	return created, nil
}

func (r *WithdrawRepo) GetWithdraw(ctx context.Context, id uuid.UUID, forUpdate bool) (models.WithdrawRequest, error) {
	getWithdraw := `-- name: GetWithdraw
	SELECT ` + withdrawColumns + ` FROM withdraw_requests
	WHERE id = $1`
	if forUpdate {
		getWithdraw += ` FOR UPDATE`
	}

	rows, _ := r.DB.Query(ctx, getWithdraw, id)
	w, err := pgx.CollectOneRow(rows, rowToWithdraw)

	switch {
	case err == nil:
		return w, nil
	case errors.Is(err, pgx.ErrNoRows):
		return w, apperrors.ErrWithdrawNotFound
	default:
		return w, fmt.Errorf("db error: %w", err)
	}
}

func (r *WithdrawRepo) UpdateWithdrawState(ctx context.Context, w models.WithdrawRequest) (models.WithdrawRequest, error) {
	const updateState = `-- name: UpdateWithdrawState
	UPDATE withdraw_requests
	SET status = $2, reserved = $3, reserved_by = $4, reserved_at = $5, deposit_id = $6, updated_at = $7
	WHERE id = $1
	RETURNING ` + withdrawColumns

	var (
		reservedBy *uuid.UUID
		reservedAt *time.Time
		depositID  *uuid.UUID
	)
	if by, ok := w.State.ReservedBy(); ok {
		reservedBy = &by
	}
	if at, ok := w.State.ReservedAt(); ok {
		reservedAt = &at
	}
	if id, ok := w.State.DepositID(); ok {
		depositID = &id
	}

	rows, _ := r.DB.Query(ctx, updateState, w.ID, w.Status(), w.State.Reserved(), reservedBy, reservedAt, depositID, w.UpdatedAt)
	updated, err := pgx.CollectOneRow(rows, rowToWithdraw)

	switch {
	case err == nil:
		return updated, nil
	case errors.Is(err, pgx.ErrNoRows):
		return updated, apperrors.ErrWithdrawNotFound
	default:
		return updated, fmt.Errorf("db error: %w", err)
	}
}

func (r *WithdrawRepo) ListWithdraws(ctx context.Context, opts repository.ListWithdrawsOpts) ([]models.WithdrawRequest, error) {
	const listWithdraws = `-- name: ListWithdraws
	SELECT ` + withdrawColumns + ` FROM withdraw_requests
	WHERE ($1::uuid IS NULL OR requester_id = $1)
		AND ($2::text[] IS NULL OR status = ANY($2))
		AND ($3::timestamptz IS NULL OR reserved_at < $3)
	ORDER BY CASE WHEN $3::timestamptz IS NOT NULL THEN reserved_at END ASC, created_at DESC
	LIMIT NULLIF($4, 0)`

	rows, _ := r.DB.Query(ctx, listWithdraws, opts.RequesterID, asStrings(opts.Statuses), opts.ReservedBefore, opts.Limit)
	withdraws, err := pgx.CollectRows(rows, rowToWithdraw)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return withdraws, nil
}

func rowToWithdraw(row pgx.CollectableRow) (models.WithdrawRequest, error) {
	var (
		w          models.WithdrawRequest
		status     string
		reservedBy *uuid.UUID
		reservedAt *time.Time
		depositID  *uuid.UUID
	)

	err := row.Scan(
		&w.ID, &w.RequesterID, &w.Amount, &w.Denomination, &w.Platform, &w.WithdrawNumber,
		&status, &reservedBy, &reservedAt, &depositID, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		return w, err
	}

	w.State, err = models.RestoreWithdrawState(models.WithdrawStatus(status), reservedBy, reservedAt, depositID)
	return w, err
}
