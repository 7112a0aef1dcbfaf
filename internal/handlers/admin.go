package handlers

import (
	"net/http"

	"github.com/nkiryanov/peercash/internal/handlers/render"
	"github.com/nkiryanov/peercash/internal/logger"
)

func handleListInReview(s depositService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := principalFrom(w, r)
		if !ok {
			return
		}

		ds, err := s.ListInReview(r.Context(), p)
		if err != nil {
			serviceError(w, l, "Failed to list deposits in review", err)
			return
		}

		render.JSON(w, newDepositList(ds))
	})
}

func handleApproveDeposit(s settlementService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		admin, ok := principalFrom(w, r)
		if !ok {
			return
		}
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		d, err := s.Approve(r.Context(), admin, id)
		if err != nil {
			serviceError(w, l, "Failed to approve deposit", err)
			return
		}

		render.JSON(w, newDepositResponse(d))
	})
}

func handleRejectDeposit(s settlementService, l logger.Logger) http.Handler {
	type request struct {
		Reason string `json:"reason" validate:"max=512"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		admin, ok := principalFrom(w, r)
		if !ok {
			return
		}
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		// Reason is optional, so an empty body is fine
		req, err := render.BindOptional[request](w, r)
		if err != nil {
			return
		}

		d, err := s.Reject(r.Context(), admin, id, req.Reason)
		if err != nil {
			serviceError(w, l, "Failed to reject deposit", err)
			return
		}

		render.JSON(w, newDepositResponse(d))
	})
}
