package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

const (
	// RequestIDHeader carries the correlation id. An inbound value, usually
	// stamped by the edge proxy, is kept; otherwise one is minted here.
	RequestIDHeader = "X-Request-ID"

	// RequestIDContextKey is the context key for the request id.
	RequestIDContextKey contextKey = "request_id"
)

// RequestID tags every request with a correlation id and echoes it in the
// response headers, so a failed checkout can be matched to its log lines.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		w.Header().Set(RequestIDHeader, requestID)

		ctx := context.WithValue(r.Context(), RequestIDContextKey, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID retrieves the request id from the context.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDContextKey).(string); ok {
		return id
	}
	return ""
}
