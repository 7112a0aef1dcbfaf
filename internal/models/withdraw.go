package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/peercash/internal/apperrors"
)

type WithdrawStatus string

const (
	WithdrawPending   WithdrawStatus = "PENDING"
	WithdrawReserved  WithdrawStatus = "RESERVED"
	WithdrawInReview  WithdrawStatus = "IN_REVIEW"
	WithdrawApproved  WithdrawStatus = "APPROVED"
	WithdrawRejected  WithdrawStatus = "REJECTED"
	WithdrawCancelled WithdrawStatus = "CANCELLED"
)

// WithdrawState is the reservation state machine of a withdraw request.
//
//	Pending -> Reserved{by, since} -> InReview{by, since, depositID} -> Approved
//	   ^            |                        |
//	   +------------+------ Release ---------+
//	Pending -> Cancelled
//
// Fields are unexported so the transitions below are the only way to change it,
// which rules out combinations like "reserved while pending".
type WithdrawState struct {
	status    WithdrawStatus
	by        uuid.UUID
	since     time.Time
	depositID uuid.UUID
}

func PendingState() WithdrawState {
	return WithdrawState{status: WithdrawPending}
}

// Rebuild state from stored columns, failing on inconsistent combinations
func RestoreWithdrawState(status WithdrawStatus, reservedBy *uuid.UUID, reservedAt *time.Time, depositID *uuid.UUID) (WithdrawState, error) {
	s := WithdrawState{status: status}
	holdsReservation := status == WithdrawReserved || status == WithdrawInReview

	switch {
	case holdsReservation && (reservedBy == nil || reservedAt == nil):
		return s, fmt.Errorf("withdraw state %s without reservation", status)
	case !holdsReservation && (reservedBy != nil || reservedAt != nil):
		return s, fmt.Errorf("withdraw state %s with reservation", status)
	case status == WithdrawInReview && depositID == nil:
		return s, fmt.Errorf("withdraw state %s without deposit", status)
	}

	switch status {
	case WithdrawPending, WithdrawApproved, WithdrawRejected, WithdrawCancelled:
	case WithdrawReserved:
		s.by, s.since = *reservedBy, *reservedAt
	case WithdrawInReview:
		s.by, s.since, s.depositID = *reservedBy, *reservedAt, *depositID
	default:
		return s, fmt.Errorf("unknown withdraw status %q", status)
	}

	return s, nil
}

func (s WithdrawState) Status() WithdrawStatus { return s.status }

// Reserved reports whether a claimant holds the request (reserved or in review)
func (s WithdrawState) Reserved() bool {
	return s.status == WithdrawReserved || s.status == WithdrawInReview
}

func (s WithdrawState) ReservedBy() (uuid.UUID, bool) {
	return s.by, s.Reserved()
}

func (s WithdrawState) ReservedAt() (time.Time, bool) {
	return s.since, s.Reserved()
}

func (s WithdrawState) DepositID() (uuid.UUID, bool) {
	return s.depositID, s.status == WithdrawInReview
}

// Expired reports whether an unconfirmed reservation outlived its window
func (s WithdrawState) Expired(now time.Time, ttl time.Duration) bool {
	return s.status == WithdrawReserved && now.After(s.since.Add(ttl))
}

func (s WithdrawState) Reserve(by uuid.UUID, at time.Time) (WithdrawState, error) {
	if s.status != WithdrawPending {
		return s, apperrors.ErrWithdrawNotAvailable
	}
	return WithdrawState{status: WithdrawReserved, by: by, since: at}, nil
}

func (s WithdrawState) StartReview(by uuid.UUID, depositID uuid.UUID) (WithdrawState, error) {
	if s.status != WithdrawReserved || s.by != by {
		return s, apperrors.ErrWithdrawNotReservedByUser
	}
	return WithdrawState{status: WithdrawInReview, by: s.by, since: s.since, depositID: depositID}, nil
}

func (s WithdrawState) Approve() (WithdrawState, error) {
	if s.status != WithdrawInReview {
		return s, fmt.Errorf("can't approve withdraw in state %s", s.status)
	}
	return WithdrawState{status: WithdrawApproved}, nil
}

// Release clears the reservation and makes the request claimable again.
// Returns false and the state unchanged if there was nothing to release.
func (s WithdrawState) Release() (WithdrawState, bool) {
	if !s.Reserved() {
		return s, false
	}
	return PendingState(), true
}

func (s WithdrawState) Cancel() (WithdrawState, error) {
	if s.status != WithdrawPending {
		return s, apperrors.ErrWithdrawNotCancellable
	}
	return WithdrawState{status: WithdrawCancelled}, nil
}

type WithdrawRequest struct {
	ID             uuid.UUID
	RequesterID    uuid.UUID
	Amount         decimal.Decimal
	Denomination   Denomination
	Platform       Platform
	WithdrawNumber string
	State          WithdrawState
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (w WithdrawRequest) Status() WithdrawStatus {
	return w.State.Status()
}
