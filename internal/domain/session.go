package domain

import (
	"context"
	"time"

	"github.com/arverne/softsell/internal/repository"
)

// Session lifetime policy.
const (
	// SessionTTL is how long a session lives from issue or refresh.
	SessionTTL = 7 * 24 * time.Hour

	// SessionRefreshWindow is the remaining-lifetime threshold below which a
	// resolved session gets its expiry extended.
	SessionRefreshWindow = 24 * time.Hour
)

// Session-related domain errors.
var (
	ErrSessionNotFound = &Error{Code: ENOTFOUND, Message: "Session not found"}
	ErrSessionExpired  = &Error{Code: EUNAUTHORIZED, Message: "Session has expired"}
)

// SessionService resolves and maintains checkout sessions.
type SessionService interface {
	// Resolve looks up the session for token, discarding expired ones and
	// extending expiry when less than SessionRefreshWindow remains.
	Resolve(ctx context.Context, token string) (*repository.Session, error)

	// ResolveUser returns the user's most recent live session, applying the
	// same sliding refresh as Resolve, and issues a fresh one when the user
	// has none.
	ResolveUser(ctx context.Context, userID string) (*repository.Session, error)

	// EnsureAnonymous returns the session for token, creating an anonymous
	// one when none exists. The upsert is idempotent per token: concurrent
	// calls with the same token converge on one session row.
	EnsureAnonymous(ctx context.Context, token string) (*repository.Session, error)

	// Issue creates a fresh session for an authenticated user and returns
	// it with a newly generated token.
	Issue(ctx context.Context, userID string) (*repository.Session, error)
}
