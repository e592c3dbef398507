package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/showtixhq/showtix-backend/api/responses"
	pkgauth "github.com/showtixhq/showtix-backend/pkg/auth"
	"github.com/showtixhq/showtix-backend/pkg/config"
	pkgerrors "github.com/showtixhq/showtix-backend/pkg/errors"
	"github.com/showtixhq/showtix-backend/pkg/logger"
)

// Auth validates a bearer token and seeds the request context with the
// caller identity. Tokens without a user or tenant are rejected outright so
// downstream services never see a partial identity.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgauth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			identity := claims.Identity()
			if identity.UserID == uuid.Nil || identity.TenantID == uuid.Nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "incomplete token claims"))
				return
			}

			ctx := WithIdentity(r.Context(), identity)
			if logg != nil {
				ctx = logg.WithFields(ctx, map[string]any{
					"user_id":    identity.UserID.String(),
					"tenant_id":  identity.TenantID.String(),
					"actor_role": identity.Role,
				})
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin gates routes reserved for venue staff. It assumes Auth ran
// earlier in the chain.
func RequireAdmin(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}
			if !identity.IsAdmin() {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
