// Package jobs holds periodic maintenance tasks that run alongside the
// HTTP server.
package jobs

import (
	"context"
	"log/slog"
	"time"
)

// DefaultSweepInterval is how often expired sessions are purged.
const DefaultSweepInterval = time.Hour

// SessionPurger is the slice of the repository the sweeper needs.
type SessionPurger interface {
	DeleteExpiredSessions(ctx context.Context) (int64, error)
}

// SessionSweeper deletes expired checkout sessions on an interval. Expired
// rows are already invisible to the resolver; the sweeper just keeps the
// table from growing without bound.
type SessionSweeper struct {
	queries  SessionPurger
	interval time.Duration
	logger   *slog.Logger
}

// NewSessionSweeper creates a sweeper. A zero interval uses the default.
func NewSessionSweeper(queries SessionPurger, interval time.Duration, logger *slog.Logger) *SessionSweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionSweeper{
		queries:  queries,
		interval: interval,
		logger:   logger,
	}
}

// Run sweeps once immediately, then on every tick until the context is
// cancelled.
func (s *SessionSweeper) Run(ctx context.Context) {
	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("session sweeper stopping")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *SessionSweeper) sweep(ctx context.Context) {
	deleted, err := s.queries.DeleteExpiredSessions(ctx)
	if err != nil {
		s.logger.Error("session sweep failed", "error", err)
		return
	}
	if deleted > 0 {
		s.logger.Info("expired sessions deleted", "count", deleted)
	}
}
