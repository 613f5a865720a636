package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/tundeajayi/storefront-backend/api/responses"
	pkgerrors "github.com/tundeajayi/storefront-backend/pkg/errors"
	"github.com/tundeajayi/storefront-backend/pkg/logger"
)

const (
	userIDHeader     = "X-User-Id"
	adminTokenHeader = "X-Admin-Token"
)

// RequireUser validates the caller identity header and seeds the request
// context with the user id. Identity is asserted upstream; this service only
// needs a stable caller id for ownership checks.
func RequireUser(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get(userIDHeader))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			userID, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id"))
				return
			}

			ctx := WithUserID(r.Context(), userID)
			if logg != nil {
				ctx = logg.WithUserID(ctx, userID.String())
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin compares the admin token header against the configured
// secret. An empty configured secret disables the admin surface entirely.
func RequireAdmin(adminToken string, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if adminToken == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "administration disabled"))
				return
			}

			provided := strings.TrimSpace(r.Header.Get(adminTokenHeader))
			if provided == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			if subtle.ConstantTimeCompare([]byte(provided), []byte(adminToken)) != 1 {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "access denied"))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAdmin(r.Context())))
		})
	}
}
