package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"steward/internal/platform/token"
)

// TokenValidator defines the interface for validating bearer tokens.
type TokenValidator interface {
	ValidateToken(tokenString string) (*token.Claims, error)
}

type contextKeySubject struct{}

// ContextKeySubject is exported for use in handlers.
var ContextKeySubject = contextKeySubject{}

// GetSubject retrieves the authenticated subject from the context.
func GetSubject(ctx context.Context) string {
	sub, ok := ctx.Value(ContextKeySubject).(string)
	if !ok {
		return ""
	}
	return sub
}

// RequireAdmin guards mutating endpoints: a valid bearer token with the admin
// role is required, everything else gets 401/403 without reaching the handler.
func RequireAdmin(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok {
				logger.WarnContext(ctx, "admin access without bearer token",
					"request_id", GetRequestID(ctx),
					"path", r.URL.Path,
				)
				writeAuthError(w, http.StatusUnauthorized, "bearer token required")
				return
			}

			claims, err := validator.ValidateToken(raw)
			if err != nil {
				logger.WarnContext(ctx, "admin access with invalid token",
					"request_id", GetRequestID(ctx),
					"error", err,
				)
				writeAuthError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			if claims.Role != token.RoleAdmin {
				logger.WarnContext(ctx, "admin access denied",
					"request_id", GetRequestID(ctx),
					"subject", claims.Subject,
					"role", claims.Role,
				)
				writeAuthError(w, http.StatusForbidden, "admin role required")
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, ContextKeySubject, claims.Subject)))
		})
	}
}

func writeAuthError(w http.ResponseWriter, status int, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	code := "unauthorized"
	if status == http.StatusForbidden {
		code = "forbidden"
	}
	_, _ = w.Write([]byte(`{"error":"` + code + `","error_description":"` + description + `"}`))
}
