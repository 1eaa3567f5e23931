package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/arverne/softsell/internal/domain"
	"github.com/arverne/softsell/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// GenerateSessionToken generates a cryptographically secure session token.
// Uses 32 bytes of random data encoded as a base64 URL-safe string.
func GenerateSessionToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// SessionResolver implements domain.SessionService over the session table.
type SessionResolver struct {
	store  Store
	logger *slog.Logger

	// now is swapped out in tests to pin the clock.
	now func() time.Time
}

func NewSessionResolver(store Store, logger *slog.Logger) *SessionResolver {
	return &SessionResolver{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

var _ domain.SessionService = (*SessionResolver)(nil)

// Resolve looks up a session by token. Expired sessions are discarded and
// reported as expired; sessions inside the refresh window get their expiry
// pushed out a full lifetime.
func (s *SessionResolver) Resolve(ctx context.Context, token string) (*repository.Session, error) {
	const op = "session.resolve"

	if token == "" {
		return nil, domain.ErrSessionNotFound
	}

	sess, err := s.store.GetSession(ctx, token)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load session")
	}

	now := s.now()
	if !sess.ExpiresAt.Time.After(now) {
		if err := s.store.DeleteSession(ctx, token); err != nil {
			s.logger.Warn("failed to delete expired session", "error", err)
		}
		return nil, domain.ErrSessionExpired
	}

	if sess.ExpiresAt.Time.Sub(now) < domain.SessionRefreshWindow {
		extended, err := s.store.ExtendSession(ctx, repository.ExtendSessionParams{
			Token:     token,
			ExpiresAt: pgtype.Timestamptz{Time: now.Add(domain.SessionTTL), Valid: true},
		})
		if err != nil {
			return nil, domain.Internal(err, op, "failed to refresh session")
		}
		s.logger.Debug("session refreshed", "expires_at", extended.ExpiresAt.Time)
		return &extended, nil
	}

	return &sess, nil
}

// ResolveUser finds the user's most recent non-expired session, issuing a
// fresh one when none exists. A session close to expiry gets the same
// sliding refresh as Resolve.
func (s *SessionResolver) ResolveUser(ctx context.Context, userID string) (*repository.Session, error) {
	const op = "session.resolve_user"

	uid, err := parseUUID(userID)
	if err != nil {
		return nil, domain.Invalid(op, "invalid user id")
	}

	sess, err := s.store.GetLatestUserSession(ctx, uid)
	if errors.Is(err, pgx.ErrNoRows) {
		return s.Issue(ctx, userID)
	}
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load user session")
	}

	now := s.now()
	if sess.ExpiresAt.Time.Sub(now) < domain.SessionRefreshWindow {
		extended, err := s.store.ExtendSession(ctx, repository.ExtendSessionParams{
			Token:     sess.Token,
			ExpiresAt: pgtype.Timestamptz{Time: now.Add(domain.SessionTTL), Valid: true},
		})
		if err != nil {
			return nil, domain.Internal(err, op, "failed to refresh session")
		}
		return &extended, nil
	}

	return &sess, nil
}

// EnsureAnonymous returns the session for token, creating an anonymous one
// when none exists. The upsert converges concurrent first requests from the
// same client on a single row; an existing session keeps its expiry and
// owner, so an authenticated session is never downgraded.
func (s *SessionResolver) EnsureAnonymous(ctx context.Context, token string) (*repository.Session, error) {
	const op = "session.ensure_anonymous"

	if token == "" {
		var err error
		if token, err = GenerateSessionToken(); err != nil {
			return nil, domain.Internal(err, op, "failed to generate session token")
		}
	}

	sess, err := s.store.UpsertSession(ctx, repository.UpsertSessionParams{
		Token:     token,
		UserID:    pgtype.UUID{}, // anonymous
		ExpiresAt: pgtype.Timestamptz{Time: s.now().Add(domain.SessionTTL), Valid: true},
	})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to upsert session")
	}
	return &sess, nil
}

// Issue creates a fresh session bound to a user.
func (s *SessionResolver) Issue(ctx context.Context, userID string) (*repository.Session, error) {
	const op = "session.issue"

	uid, err := parseUUID(userID)
	if err != nil {
		return nil, domain.Invalid(op, "invalid user id")
	}

	token, err := GenerateSessionToken()
	if err != nil {
		return nil, domain.Internal(err, op, "failed to generate session token")
	}

	sess, err := s.store.UpsertSession(ctx, repository.UpsertSessionParams{
		Token:     token,
		UserID:    uid,
		ExpiresAt: pgtype.Timestamptz{Time: s.now().Add(domain.SessionTTL), Valid: true},
	})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to create session")
	}
	return &sess, nil
}
