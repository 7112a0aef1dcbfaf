package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/nkiryanov/peercash/internal/handlers/render"
	"github.com/nkiryanov/peercash/internal/handlers/userctx"
	"github.com/nkiryanov/peercash/internal/models"
)

const bearerPrefix = "Bearer "

type principalResolver interface {
	ParseAccess(ctx context.Context, access string) (models.Principal, error)
}

// Resolve principal from 'Authorization: Bearer <token>' header and put it to request context
func AuthMiddleware(resolver principalResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, bearerPrefix) {
				render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			p, err := resolver.ParseAccess(r.Context(), strings.TrimPrefix(header, bearerPrefix))
			if err != nil {
				render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(userctx.New(r.Context(), p)))
		})
	}
}

// Let through only admins. Has to be placed after AuthMiddleware
func AdminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		if !p.IsAdmin() {
			render.ServiceError(w, "Admin role required", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}
