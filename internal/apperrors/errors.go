package apperrors

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrAccountBanned   = errors.New("account is banned")
	ErrForbidden       = errors.New("operation is not allowed for this principal")

	ErrBalanceInsufficient = errors.New("insufficient balance")

	ErrInvalidDenomination = errors.New("denomination is invalid")
	ErrInvalidPlatform     = errors.New("platform is invalid")
	ErrInvalidAmount       = errors.New("amount does not match denomination")

	ErrWithdrawNotFound          = errors.New("withdraw request not found")
	ErrWithdrawNotAvailable      = errors.New("withdraw request is not available for reservation")
	ErrWithdrawOwnRequest        = errors.New("withdraw request belongs to the claimant")
	ErrWithdrawNotCancellable    = errors.New("withdraw request can not be cancelled")
	ErrWithdrawNotReservedByUser = errors.New("withdraw request is not reserved by user")
	ErrReservationExpired        = errors.New("reservation expired")

	ErrDepositNotFound         = errors.New("deposit not found")
	ErrDepositAlreadyProcessed = errors.New("deposit already processed")
)

// InsufficientBalanceError reports how much was required and how much the account has.
// Matches ErrBalanceInsufficient with errors.Is.
type InsufficientBalanceError struct {
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("%s: required %s, available %s", ErrBalanceInsufficient, e.Required, e.Available)
}

func (e *InsufficientBalanceError) Is(target error) bool {
	return target == ErrBalanceInsufficient
}

func NewInsufficientBalance(required, available decimal.Decimal) error {
	return &InsufficientBalanceError{Required: required, Available: available}
}
