// Package ledger applies the money side of the reservation lifecycle.
//
// Every function here must run inside a transaction that already holds
// the row lock of the withdraw request it touches. Accounts are locked
// through AccountRepo.LockAccounts so their order is always the same.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/peercash/internal/models"
	"github.com/nkiryanov/peercash/internal/repository"
)

// Earmark the amount of w while claimant holds it:
// requester moves it from balance to pending withdrawals, claimant expects it as a deposit.
func Earmark(ctx context.Context, st repository.Storage, w models.WithdrawRequest, claimant uuid.UUID) error {
	accounts, err := st.Account().LockAccounts(ctx, w.RequesterID, claimant)
	if err != nil {
		return err
	}

	requester, claimer := accounts[w.RequesterID], accounts[claimant]
	if err := requester.EarmarkWithdrawal(w.Amount); err != nil {
		return err
	}
	claimer.ExpectDeposit(w.Amount)

	return updateLedgers(ctx, st, requester, claimer)
}

// Return the earmark of a reserved request: requester is refunded, claimant no longer expects the deposit.
func ReturnEarmark(ctx context.Context, st repository.Storage, w models.WithdrawRequest) error {
	claimant, ok := w.State.ReservedBy()
	if !ok {
		return fmt.Errorf("withdraw %s holds no reservation", w.ID)
	}

	accounts, err := st.Account().LockAccounts(ctx, w.RequesterID, claimant)
	if err != nil {
		return err
	}

	requester, claimer := accounts[w.RequesterID], accounts[claimant]
	requester.RefundWithdrawal(w.Amount)
	claimer.DropDeposit(w.Amount)

	return updateLedgers(ctx, st, requester, claimer)
}

// Release the reservation of w if it has expired at now.
// Returns false without touching anything if it is not expired, so racing callers are safe.
func ExpireReservation(ctx context.Context, st repository.Storage, w models.WithdrawRequest, now time.Time, ttl time.Duration) (models.WithdrawRequest, bool, error) {
	if !w.State.Expired(now, ttl) {
		return w, false, nil
	}

	if err := ReturnEarmark(ctx, st, w); err != nil {
		return w, false, err
	}

	w.State, _ = w.State.Release()
	w.UpdatedAt = now

	released, err := st.Withdraw().UpdateWithdrawState(ctx, w)
	if err != nil {
		return w, false, err
	}
	return released, true, nil
}

func updateLedgers(ctx context.Context, st repository.Storage, accounts ...models.Account) error {
	for _, a := range accounts {
		if _, err := st.Account().UpdateLedger(ctx, a); err != nil {
			return err
		}
	}
	return nil
}
