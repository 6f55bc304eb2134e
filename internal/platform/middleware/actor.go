package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	id "qsync/pkg/domain"
	"qsync/pkg/requestcontext"
)

// ActorClaims is what the token validator hands back.
type ActorClaims struct {
	UserID string
	Unit   string
}

// TokenValidator validates bearer tokens.
type TokenValidator interface {
	ValidateToken(tokenString string) (*ActorClaims, error)
}

// ResolveActor sets the acting user from an optional bearer token. Requests
// without a token act as the system user; a token that fails validation is
// rejected with 401.
func ResolveActor(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || validator == nil {
				next.ServeHTTP(w, r.WithContext(requestcontext.WithActor(ctx, id.SystemUser, "")))
				return
			}

			claims, err := validator.ValidateToken(strings.TrimSpace(token))
			if err != nil {
				requestID := GetRequestID(ctx)
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				if _, err := w.Write([]byte(`{"error":"invalid or expired token","code":"unauthorized"}`)); err != nil {
					logger.ErrorContext(ctx, "failed to write unauthorized response",
						"error", err,
						"request_id", requestID,
					)
				}
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithActor(ctx, id.UserID(claims.UserID), claims.Unit)))
		})
	}
}
