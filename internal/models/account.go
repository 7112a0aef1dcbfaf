package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/peercash/internal/apperrors"
)

// Account holds the ledger fields of a user.
// None of the monetary fields ever goes below zero: decrements are either guarded or clamped.
type Account struct {
	ID                  uuid.UUID
	Balance             decimal.Decimal
	WithdrawableBalance decimal.Decimal
	PendingDeposits     decimal.Decimal
	PendingWithdrawals  decimal.Decimal
	Banned              bool
	BannedUntil         *time.Time // nil if there is no temporary ban
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func (a *Account) IsBanned(now time.Time) bool {
	return a.Banned || (a.BannedUntil != nil && now.Before(*a.BannedUntil))
}

// Amount that may leave the account. Withdrawable balance is capped by the balance itself
func (a *Account) Available() decimal.Decimal {
	return decimal.Min(a.Balance, a.WithdrawableBalance)
}

// Fail with InsufficientBalanceError if available funds less than amount
func (a *Account) CheckWithdrawable(amount decimal.Decimal) error {
	if available := a.Available(); available.LessThan(amount) {
		return apperrors.NewInsufficientBalance(amount, available)
	}
	return nil
}

// Move amount from spendable funds to pending withdrawals while a claim is open
func (a *Account) EarmarkWithdrawal(amount decimal.Decimal) error {
	if err := a.CheckWithdrawable(amount); err != nil {
		return err
	}

	// Both pools hold at least amount here, so the refund restores them exactly
	a.Balance = a.Balance.Sub(amount)
	a.WithdrawableBalance = a.WithdrawableBalance.Sub(amount)
	a.PendingWithdrawals = a.PendingWithdrawals.Add(amount)
	return nil
}

// Money has left the platform off-platform: only the bookkeeping is cleared
func (a *Account) SettleWithdrawal(amount decimal.Decimal) {
	a.PendingWithdrawals = subClamped(a.PendingWithdrawals, amount)
}

// Payment never arrived: earmarked funds return to spendable and withdrawable pools
func (a *Account) RefundWithdrawal(amount decimal.Decimal) {
	a.PendingWithdrawals = subClamped(a.PendingWithdrawals, amount)
	a.Balance = a.Balance.Add(amount)
	a.WithdrawableBalance = a.WithdrawableBalance.Add(amount)
}

func (a *Account) ExpectDeposit(amount decimal.Decimal) {
	a.PendingDeposits = a.PendingDeposits.Add(amount)
}

func (a *Account) SettleDeposit(amount decimal.Decimal) {
	a.Balance = a.Balance.Add(amount)
	a.PendingDeposits = subClamped(a.PendingDeposits, amount)
}

func (a *Account) DropDeposit(amount decimal.Decimal) {
	a.PendingDeposits = subClamped(a.PendingDeposits, amount)
}

func subClamped(v, amount decimal.Decimal) decimal.Decimal {
	return decimal.Max(decimal.Zero, v.Sub(amount))
}
