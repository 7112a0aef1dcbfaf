package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/peercash/internal/apperrors"
)

type DepositStatus string

const (
	DepositPending  DepositStatus = "PENDING"
	DepositInReview DepositStatus = "IN_REVIEW"
	DepositApproved DepositStatus = "APPROVED"
	DepositRejected DepositStatus = "REJECTED"
)

type DepositTransaction struct {
	ID                uuid.UUID
	DepositorID       uuid.UUID
	Amount            decimal.Decimal
	Denomination      Denomination
	Platform          Platform
	ScreenshotURL     string
	Status            DepositStatus
	MatchedWithdrawID *uuid.UUID // nil if the deposit does not fulfill a withdraw request
	ApprovedBy        *uuid.UUID // admin who approved or rejected
	RejectionReason   string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Deposit created to fulfill a reserved withdraw request.
// Amount, denomination and platform are copied from the request as is.
func NewMatchedDeposit(depositor uuid.UUID, w WithdrawRequest, screenshotURL string, now time.Time) DepositTransaction {
	withdrawID := w.ID
	return DepositTransaction{
		ID:                uuid.New(),
		DepositorID:       depositor,
		Amount:            w.Amount,
		Denomination:      w.Denomination,
		Platform:          w.Platform,
		ScreenshotURL:     screenshotURL,
		Status:            DepositInReview,
		MatchedWithdrawID: &withdrawID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func (d *DepositTransaction) Approve(admin uuid.UUID, at time.Time) error {
	if d.Status != DepositInReview {
		return apperrors.ErrDepositAlreadyProcessed
	}
	d.Status = DepositApproved
	d.ApprovedBy = &admin
	d.UpdatedAt = at
	return nil
}

func (d *DepositTransaction) Reject(admin uuid.UUID, reason string, at time.Time) error {
	if d.Status != DepositInReview {
		return apperrors.ErrDepositAlreadyProcessed
	}
	d.Status = DepositRejected
	d.ApprovedBy = &admin
	d.RejectionReason = reason
	d.UpdatedAt = at
	return nil
}
