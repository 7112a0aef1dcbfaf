package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/peercash/internal/logger"
)

// Routing keys of the events exchange
const (
	DepositApproved     = "deposit.approved"
	DepositRejected     = "deposit.rejected"
	ReservationReleased = "reservation.released"
	DepositReviewDue    = "deposit.review_overdue"
)

// Event is published after the change it describes is committed
type Event struct {
	Type       string          `json:"type"`
	DepositID  *uuid.UUID      `json:"deposit_id,omitempty"`
	WithdrawID *uuid.UUID      `json:"withdraw_id,omitempty"`
	AccountID  uuid.UUID       `json:"account_id"`
	Amount     decimal.Decimal `json:"amount"`
	Reason     string          `json:"reason,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close()
}

// LogPublisher only logs events. Used when no broker is configured or the broker is unreachable at startup.
type LogPublisher struct {
	logger logger.Logger
}

func NewLogPublisher(l logger.Logger) *LogPublisher {
	return &LogPublisher{logger: l.With("component", "events", "mode", "fallback")}
}

func (p *LogPublisher) Publish(_ context.Context, e Event) error {
	p.logger.Info("Event publish skipped", "type", e.Type, "account_id", e.AccountID, "amount", e.Amount)
	return nil
}

func (p *LogPublisher) Close() {}

// Publish and log the failure. Events never roll back the operation they describe.
func PublishOrLog(ctx context.Context, p Publisher, l logger.Logger, e Event) {
	if err := p.Publish(ctx, e); err != nil {
		l.Error("Failed to publish event", "type", e.Type, "error", err)
	}
}
