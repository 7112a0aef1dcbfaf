package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/peercash/internal/handlers/render"
	"github.com/nkiryanov/peercash/internal/logger"
	"github.com/nkiryanov/peercash/internal/models"
	"github.com/nkiryanov/peercash/internal/service/withdraw"
)

type withdrawResponse struct {
	ID             uuid.UUID             `json:"id"`
	RequesterID    uuid.UUID             `json:"requester_id"`
	Amount         decimal.Decimal       `json:"amount"`
	Denomination   models.Denomination   `json:"denomination"`
	Platform       models.Platform       `json:"platform"`
	WithdrawNumber string                `json:"withdraw_number"`
	Status         models.WithdrawStatus `json:"status"`
	Reserved       bool                  `json:"reserved"`
	ReservedBy     *uuid.UUID            `json:"reserved_by,omitempty"`
	ReservedAt     *time.Time            `json:"reserved_at,omitempty"`
	DepositID      *uuid.UUID            `json:"deposit_id,omitempty"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

func newWithdrawResponse(w models.WithdrawRequest) withdrawResponse {
	res := withdrawResponse{
		ID:             w.ID,
		RequesterID:    w.RequesterID,
		Amount:         w.Amount,
		Denomination:   w.Denomination,
		Platform:       w.Platform,
		WithdrawNumber: w.WithdrawNumber,
		Status:         w.Status(),
		Reserved:       w.State.Reserved(),
		CreatedAt:      w.CreatedAt,
		UpdatedAt:      w.UpdatedAt,
	}
	if by, ok := w.State.ReservedBy(); ok {
		res.ReservedBy = &by
	}
	if at, ok := w.State.ReservedAt(); ok {
		res.ReservedAt = &at
	}
	if id, ok := w.State.DepositID(); ok {
		res.DepositID = &id
	}
	return res
}

func newWithdrawList(ws []models.WithdrawRequest) []withdrawResponse {
	res := make([]withdrawResponse, 0, len(ws))
	for _, w := range ws {
		res = append(res, newWithdrawResponse(w))
	}
	return res
}

func handleSubmitWithdraw(s withdrawService, l logger.Logger) http.Handler {
	type request struct {
		Amount         decimal.Decimal `json:"amount"`
		Denomination   string          `json:"denomination" validate:"required,denomination"`
		Platform       string          `json:"platform" validate:"required,platform"`
		WithdrawNumber string          `json:"withdraw_number" validate:"required,max=64"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := principalFrom(w, r)
		if !ok {
			return
		}

		req, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		created, err := s.Submit(r.Context(), p, withdraw.SubmitRequest{
			Amount:         req.Amount,
			Denomination:   models.Denomination(req.Denomination),
			Platform:       models.Platform(req.Platform),
			WithdrawNumber: req.WithdrawNumber,
		})
		if err != nil {
			serviceError(w, l, "Failed to submit withdraw request", err)
			return
		}

		render.JSONWithStatus(w, newWithdrawResponse(created), http.StatusCreated)
	})
}

func handleListUserWithdraws(s withdrawService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := principalFrom(w, r)
		if !ok {
			return
		}

		ws, err := s.ListUser(r.Context(), p)
		if err != nil {
			serviceError(w, l, "Failed to list withdraw requests", err)
			return
		}

		render.JSON(w, newWithdrawList(ws))
	})
}

func handleListAllWithdraws(s withdrawService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := principalFrom(w, r)
		if !ok {
			return
		}

		ws, err := s.ListAll(r.Context(), p)
		if err != nil {
			serviceError(w, l, "Failed to list withdraw requests", err)
			return
		}

		render.JSON(w, newWithdrawList(ws))
	})
}

func handleGetWithdraw(s withdrawService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := principalFrom(w, r)
		if !ok {
			return
		}
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		found, err := s.Get(r.Context(), p, id)
		if err != nil {
			serviceError(w, l, "Failed to get withdraw request", err)
			return
		}

		render.JSON(w, newWithdrawResponse(found))
	})
}

func handleReserveWithdraw(s withdrawService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := principalFrom(w, r)
		if !ok {
			return
		}
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		reserved, err := s.Reserve(r.Context(), p, id)
		if err != nil {
			serviceError(w, l, "Failed to reserve withdraw request", err)
			return
		}

		render.JSON(w, newWithdrawResponse(reserved))
	})
}

func handleCancelWithdraw(s withdrawService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := principalFrom(w, r)
		if !ok {
			return
		}
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		cancelled, err := s.Cancel(r.Context(), p, id)
		if err != nil {
			serviceError(w, l, "Failed to cancel withdraw request", err)
			return
		}

		render.JSON(w, newWithdrawResponse(cancelled))
	})
}
