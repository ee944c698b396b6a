package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

type contextKey struct{}

// ActorFromContext returns the authenticated key id, or zero when the
// request went through an unauthenticated route.
func ActorFromContext(ctx context.Context) int64 {
	if key, ok := ctx.Value(contextKey{}).(APIKey); ok {
		return key.ID
	}
	return 0
}

// KeyFromContext returns the full authenticated key record.
func KeyFromContext(ctx context.Context) (APIKey, bool) {
	key, ok := ctx.Value(contextKey{}).(APIKey)
	return key, ok
}

// Middleware authenticates requests with an API key taken from the
// X-API-Key header or an Authorization bearer token.
func Middleware(service *Service, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get("X-API-Key")
			if token == "" {
				token = bearerToken(r.Header.Get("Authorization"))
			}
			if token == "" {
				httpx.RespondError(w, shared.ErrInvalidCredentials)
				return
			}
			key, err := service.Verify(r.Context(), token)
			if err != nil {
				logger.Warn("api key rejected", slog.String("remote", r.RemoteAddr))
				httpx.RespondError(w, shared.ErrInvalidCredentials)
				return
			}
			ctx := context.WithValue(r.Context(), contextKey{}, key)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return header[len(prefix):]
	}
	return ""
}
