package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/nkiryanov/peercash/internal/handlers/render"
	"github.com/nkiryanov/peercash/internal/handlers/userctx"
	"github.com/nkiryanov/peercash/internal/logger"
	"github.com/nkiryanov/peercash/internal/models"
)

// Principal put by auth middleware. Missing principal means the route is not wrapped with auth
func principalFrom(w http.ResponseWriter, r *http.Request) (models.Principal, bool) {
	p, ok := userctx.FromContext(r.Context())
	if !ok {
		render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
	}
	return p, ok
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		render.ServiceError(w, "Invalid id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

// Render application error or log and hide the unexpected one
func serviceError(w http.ResponseWriter, l logger.Logger, msg string, err error) {
	if render.AppError(w, err) {
		return
	}
	l.Error(msg, "error", err)
	render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
}
