package middleware

import (
	"context"
	"log/slog"
	"net/http"

	id "nidapi/pkg/domain"
	dErrors "nidapi/pkg/domain-errors"
	"nidapi/pkg/platform/httputil"
	"nidapi/pkg/requestcontext"
)

// HeaderAPIKey carries the caller's plaintext API key.
const HeaderAPIKey = "X-API-Key"

// APIKeyValidator defines the interface for resolving an API key to its owner.
type APIKeyValidator interface {
	ValidateKey(ctx context.Context, rawKey string) (*KeyClaims, error)
}

// KeyClaims is what the middleware needs to know about an authenticated key.
type KeyClaims struct {
	PrincipalID id.PrincipalID
	APIKeyID    id.APIKeyID
}

// RequireAPIKey rejects requests without a valid X-API-Key with 403 in the
// default error shape. On success the principal and key IDs are stored in
// the request context.
func RequireAPIKey(validator APIKeyValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			claims, err := validator.ValidateKey(ctx, r.Header.Get(HeaderAPIKey))
			if err != nil {
				logger.WarnContext(ctx, "forbidden - api key rejected",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
					"client_ip", requestcontext.ClientIP(ctx),
				)
				if !dErrors.HasCode(err, dErrors.CodeForbidden) {
					// store outages still surface as 403 so callers cannot
					// distinguish a bad key from an unavailable backend
					err = dErrors.Wrap(err, dErrors.CodeForbidden, "Invalid or inactive API key")
				}
				httputil.WriteError(w, err)
				return
			}

			ctx = requestcontext.WithPrincipalID(ctx, claims.PrincipalID)
			ctx = requestcontext.WithAPIKeyID(ctx, claims.APIKeyID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
