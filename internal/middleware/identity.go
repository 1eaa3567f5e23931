package middleware

import (
	"context"
	"net/http"

	"github.com/arverne/softsell/internal/domain"
)

type contextKey string

const (
	// UserIDHeader identifies an authenticated account. Set by the edge
	// after session validation; never trusted from the open internet.
	UserIDHeader = "X-User-ID"

	// GuestIDHeader identifies an anonymous checkout session.
	GuestIDHeader = "X-Guest-ID"

	// OwnerContextKey is the context key for the resolved request owner.
	OwnerContextKey contextKey = "owner"
)

// WithOwner extracts the caller's identity headers into a domain.Owner and
// stores it in the context. It does not reject requests: handlers decide
// whether an identity is required and whether an ambiguous one is an error.
func WithOwner() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			owner := domain.Owner{
				UserID:  r.Header.Get(UserIDHeader),
				GuestID: r.Header.Get(GuestIDHeader),
			}
			if owner.UserID == "" && owner.GuestID == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx := context.WithValue(r.Context(), OwnerContextKey, owner)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetOwner retrieves the request owner from the context. The zero Owner
// means the request carried no identity.
func GetOwner(ctx context.Context) domain.Owner {
	if owner, ok := ctx.Value(OwnerContextKey).(domain.Owner); ok {
		return owner
	}
	return domain.Owner{}
}

// RequireOwner rejects requests that carry no identity, or both identities,
// before they reach the handler.
func RequireOwner() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			owner := GetOwner(r.Context())
			if err := owner.Validate(); err != nil {
				respondWithError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
