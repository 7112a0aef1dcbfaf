package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/peercash/internal/handlers/render"
	"github.com/nkiryanov/peercash/internal/logger"
	"github.com/nkiryanov/peercash/internal/models"
)

type depositResponse struct {
	ID                uuid.UUID            `json:"id"`
	DepositorID       uuid.UUID            `json:"depositor_id"`
	Amount            decimal.Decimal      `json:"amount"`
	Denomination      models.Denomination  `json:"denomination"`
	Platform          models.Platform      `json:"platform"`
	ScreenshotURL     string               `json:"screenshot_url"`
	Status            models.DepositStatus `json:"status"`
	MatchedWithdrawID *uuid.UUID           `json:"matched_withdraw_id,omitempty"`
	ApprovedBy        *uuid.UUID           `json:"approved_by,omitempty"`
	RejectionReason   string               `json:"rejection_reason,omitempty"`
	CreatedAt         time.Time            `json:"created_at"`
	UpdatedAt         time.Time            `json:"updated_at"`
}

func newDepositResponse(d models.DepositTransaction) depositResponse {
	return depositResponse{
		ID:                d.ID,
		DepositorID:       d.DepositorID,
		Amount:            d.Amount,
		Denomination:      d.Denomination,
		Platform:          d.Platform,
		ScreenshotURL:     d.ScreenshotURL,
		Status:            d.Status,
		MatchedWithdrawID: d.MatchedWithdrawID,
		ApprovedBy:        d.ApprovedBy,
		RejectionReason:   d.RejectionReason,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
}

func newDepositList(ds []models.DepositTransaction) []depositResponse {
	res := make([]depositResponse, 0, len(ds))
	for _, d := range ds {
		res = append(res, newDepositResponse(d))
	}
	return res
}

func parseDepositStatus(s string) (models.DepositStatus, bool) {
	switch status := models.DepositStatus(s); status {
	case models.DepositPending, models.DepositInReview, models.DepositApproved, models.DepositRejected:
		return status, true
	default:
		return "", false
	}
}

func handleConfirmDeposit(s depositService, l logger.Logger) http.Handler {
	type request struct {
		ScreenshotURL string `json:"screenshot_url" validate:"required,url,max=2048"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := principalFrom(w, r)
		if !ok {
			return
		}
		withdrawID, ok := pathID(w, r)
		if !ok {
			return
		}

		req, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		d, err := s.Confirm(r.Context(), p, req.ScreenshotURL, withdrawID)
		if err != nil {
			serviceError(w, l, "Failed to confirm deposit", err)
			return
		}

		render.JSONWithStatus(w, newDepositResponse(d), http.StatusCreated)
	})
}

func handleListUserDeposits(s depositService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := principalFrom(w, r)
		if !ok {
			return
		}

		var status *models.DepositStatus
		if raw := r.URL.Query().Get("status"); raw != "" {
			parsed, ok := parseDepositStatus(raw)
			if !ok {
				render.ServiceError(w, "Unknown deposit status", http.StatusBadRequest)
				return
			}
			status = &parsed
		}

		ds, err := s.ListUser(r.Context(), p, status)
		if err != nil {
			serviceError(w, l, "Failed to list deposits", err)
			return
		}

		render.JSON(w, newDepositList(ds))
	})
}

func handleGetDeposit(s depositService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := principalFrom(w, r)
		if !ok {
			return
		}
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		d, err := s.Get(r.Context(), p, id)
		if err != nil {
			serviceError(w, l, "Failed to get deposit", err)
			return
		}

		render.JSON(w, newDepositResponse(d))
	})
}
