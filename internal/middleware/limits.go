package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// Body size limits. Checkout payloads are small JSON documents; the default
// exists for anything mounted outside the API group.
const (
	KB = 1024
	MB = 1024 * KB

	// DefaultMaxBodySize caps request bodies when no limit is given.
	DefaultMaxBodySize = 10 * MB

	// SmallMaxBodySize fits every checkout API payload with room to spare.
	SmallMaxBodySize = 1 * MB
)

// MaxBodySize rejects request bodies over the given limit with a 413,
// defaulting to DefaultMaxBodySize. Bodies with an unknown length are
// capped by a MaxBytesReader at the same limit.
func MaxBodySize(maxBytes ...int64) func(http.Handler) http.Handler {
	limit := int64(DefaultMaxBodySize)
	if len(maxBytes) > 0 {
		limit = maxBytes[0]
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil && r.ContentLength > limit {
				http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}

// DefaultTimeout bounds a single request. Order creation's slowest path is
// one provider round trip plus the order transaction, well inside this.
const DefaultTimeout = 30 * time.Second

// Timeout cancels the request context after the given duration, defaulting
// to DefaultTimeout, and answers 503 when the handler has not started
// writing yet.
func Timeout(timeout ...time.Duration) func(http.Handler) http.Handler {
	duration := DefaultTimeout
	if len(timeout) > 0 {
		duration = timeout[0]
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), duration)
			defer cancel()

			done := make(chan struct{})
			tw := &timeoutWriter{
				ResponseWriter: w,
				done:           done,
			}

			go func() {
				defer close(done)
				next.ServeHTTP(tw, r.WithContext(ctx))
			}()

			select {
			case <-done:
			case <-ctx.Done():
				tw.mu.Lock()
				defer tw.mu.Unlock()

				if !tw.wroteHeader {
					w.WriteHeader(http.StatusServiceUnavailable)
					w.Write([]byte("Request timeout"))
				}
				// A response already in flight arrives truncated; nothing
				// more can be done for it.
			}
		})
	}
}

// timeoutWriter tracks whether the handler got a header out before the
// deadline, and drops writes that race past it.
type timeoutWriter struct {
	http.ResponseWriter
	mu          sync.Mutex
	wroteHeader bool
	done        chan struct{}
}

func (tw *timeoutWriter) WriteHeader(code int) {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if tw.wroteHeader {
		return
	}

	select {
	case <-tw.done:
		return
	default:
		tw.wroteHeader = true
		tw.ResponseWriter.WriteHeader(code)
	}
}

func (tw *timeoutWriter) Write(b []byte) (int, error) {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	select {
	case <-tw.done:
		return 0, context.DeadlineExceeded
	default:
		if !tw.wroteHeader {
			tw.wroteHeader = true
			tw.ResponseWriter.WriteHeader(http.StatusOK)
		}
		return tw.ResponseWriter.Write(b)
	}
}
