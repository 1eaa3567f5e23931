package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const getSession = `
SELECT token, user_id, created_at, expires_at
FROM sessions
WHERE token = $1
`

func (q *Queries) GetSession(ctx context.Context, token string) (Session, error) {
	row := q.db.QueryRow(ctx, getSession, token)
	var s Session
	err := row.Scan(&s.Token, &s.UserID, &s.CreatedAt, &s.ExpiresAt)
	return s, err
}

const getLatestUserSession = `
SELECT token, user_id, created_at, expires_at
FROM sessions
WHERE user_id = $1 AND expires_at > now()
ORDER BY expires_at DESC
LIMIT 1
`

// GetLatestUserSession returns the user's freshest non-expired session.
func (q *Queries) GetLatestUserSession(ctx context.Context, userID pgtype.UUID) (Session, error) {
	row := q.db.QueryRow(ctx, getLatestUserSession, userID)
	var s Session
	err := row.Scan(&s.Token, &s.UserID, &s.CreatedAt, &s.ExpiresAt)
	return s, err
}

const upsertSession = `
INSERT INTO sessions (token, user_id, expires_at)
VALUES ($1, $2, $3)
ON CONFLICT (token) DO UPDATE SET token = EXCLUDED.token
RETURNING token, user_id, created_at, expires_at
`

type UpsertSessionParams struct {
	Token     string
	UserID    pgtype.UUID
	ExpiresAt pgtype.Timestamptz
}

// UpsertSession inserts a session or, when the token already exists, returns
// the existing row untouched. The no-op DO UPDATE keeps RETURNING populated
// on conflict without changing the stored expiry or owner.
func (q *Queries) UpsertSession(ctx context.Context, arg UpsertSessionParams) (Session, error) {
	row := q.db.QueryRow(ctx, upsertSession, arg.Token, arg.UserID, arg.ExpiresAt)
	var s Session
	err := row.Scan(&s.Token, &s.UserID, &s.CreatedAt, &s.ExpiresAt)
	return s, err
}

const extendSession = `
UPDATE sessions
SET expires_at = $2
WHERE token = $1
RETURNING token, user_id, created_at, expires_at
`

type ExtendSessionParams struct {
	Token     string
	ExpiresAt pgtype.Timestamptz
}

func (q *Queries) ExtendSession(ctx context.Context, arg ExtendSessionParams) (Session, error) {
	row := q.db.QueryRow(ctx, extendSession, arg.Token, arg.ExpiresAt)
	var s Session
	err := row.Scan(&s.Token, &s.UserID, &s.CreatedAt, &s.ExpiresAt)
	return s, err
}

const deleteSession = `
DELETE FROM sessions
WHERE token = $1
`

func (q *Queries) DeleteSession(ctx context.Context, token string) error {
	_, err := q.db.Exec(ctx, deleteSession, token)
	return err
}

const deleteExpiredSessions = `
DELETE FROM sessions
WHERE expires_at < now()
`

func (q *Queries) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteExpiredSessions)
	return tag.RowsAffected(), err
}
