package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"equilens/internal/jwtauth"
	id "equilens/pkg/domain"
	dErrors "equilens/pkg/domain-errors"
	"equilens/pkg/platform/httputil"
	"equilens/pkg/requestcontext"
)

// TokenValidator defines the interface for validating access tokens.
type TokenValidator interface {
	ValidateToken(tokenString string) (*jwtauth.Claims, error)
}

// RequireAuth rejects requests without a valid bearer token and injects the
// token's tenant and user into the request context.
func RequireAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing or invalid Authorization header"))
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"request_id", requestID,
					"error", err,
				)
				httputil.WriteError(w, err)
				return
			}

			tenantID, err := id.ParseTenantID(claims.TenantID)
			if err != nil {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "token carries an invalid tenant"))
				return
			}
			ctx = requestcontext.WithTenantID(ctx, tenantID)

			// UserID is optional: machine tokens identify only a tenant.
			if claims.UserID != "" {
				if userID, err := id.ParseUserID(claims.UserID); err == nil {
					ctx = requestcontext.WithUserID(ctx, userID)
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
