package middleware

import (
	"context"
	"net/http"
)

const (
	// ClientIPContextKey is the context key for the resolved client IP.
	ClientIPContextKey contextKey = "client_ip"
)

// WithClientIP resolves the caller's IP once, proxy headers included, and
// stores it in the context for the request logger and rate limiter. The
// proxy headers are spoofable, so the deployment must not allow traffic to
// bypass the edge.
func WithClientIP() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), ClientIPContextKey, GetClientIP(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetClientIPFromContext retrieves the resolved client IP, or "" when
// WithClientIP is not in the chain.
func GetClientIPFromContext(ctx context.Context) string {
	if ip, ok := ctx.Value(ClientIPContextKey).(string); ok {
		return ip
	}
	return ""
}
