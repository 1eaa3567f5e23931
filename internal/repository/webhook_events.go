package repository

import (
	"context"
)

const insertWebhookEvent = `
INSERT INTO webhook_events (event_id, event_type)
VALUES ($1, $2)
ON CONFLICT (event_id) DO NOTHING
`

type InsertWebhookEventParams struct {
	EventID   string
	EventType string
}

// InsertWebhookEvent records a processed provider event. Returns 0 rows
// affected when the event was already recorded, which is how replayed
// deliveries are detected.
func (q *Queries) InsertWebhookEvent(ctx context.Context, arg InsertWebhookEventParams) (int64, error) {
	tag, err := q.db.Exec(ctx, insertWebhookEvent, arg.EventID, arg.EventType)
	return tag.RowsAffected(), err
}
