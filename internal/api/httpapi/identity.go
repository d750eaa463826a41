package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/BearBump/MarketShip/internal/models"
)

// Identity headers are set by the auth gateway in front of market-api.
const (
	headerUserID   = "X-User-ID"
	headerUserRole = "X-User-Role"
)

type actorKey struct{}

func identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a := models.Actor{
			UserID: strings.TrimSpace(r.Header.Get(headerUserID)),
			Role:   strings.ToLower(strings.TrimSpace(r.Header.Get(headerUserRole))),
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey{}, a)))
	})
}

func actorFrom(ctx context.Context) models.Actor {
	a, _ := ctx.Value(actorKey{}).(models.Actor)
	return a
}

func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if actorFrom(r.Context()).UserID == "" {
			writeErrorMessage(w, http.StatusUnauthorized, "missing "+headerUserID)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !actorFrom(r.Context()).IsAdmin() {
			writeErrorMessage(w, http.StatusForbidden, "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
