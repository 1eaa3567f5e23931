// Package service implements the checkout pipeline's business logic:
// session resolution, order assembly, payment coordination, fulfillment and
// invoice rendering. Services hold their dependencies explicitly; nothing
// reaches for globals.
package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/arverne/softsell/internal/postgres"
	"github.com/arverne/softsell/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// Store is the persistence surface the services depend on: the full query
// set plus the transactional composites. *postgres.Store satisfies it; tests
// substitute in-memory fakes.
type Store interface {
	repository.Querier

	CreateOrderWithItems(ctx context.Context, arg postgres.CreateOrderTxParams) (repository.Order, []repository.OrderItem, error)
	FulfillOrder(ctx context.Context, eventID, eventType string, orderID pgtype.UUID) (postgres.FulfillOrderTxResult, error)
}

var _ Store = (*postgres.Store)(nil)

const invoiceNumberAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// generateInvoiceNumber builds an invoice number like INV-20260828-K7QX:
// date for humans, random suffix for uniqueness. The unique index on
// invoice_number catches the rare collision; callers retry.
func generateInvoiceNumber(now time.Time) (string, error) {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	for i := range b {
		b[i] = invoiceNumberAlphabet[int(b[i])%len(invoiceNumberAlphabet)]
	}
	return fmt.Sprintf("INV-%s-%s", now.Format("20060102"), string(b)), nil
}

// parseUUID converts a string ID into pgtype.UUID.
func parseUUID(s string) (pgtype.UUID, error) {
	var u pgtype.UUID
	if err := u.Scan(s); err != nil {
		return pgtype.UUID{}, fmt.Errorf("invalid id %q: %w", s, err)
	}
	return u, nil
}

// uuidString renders a pgtype.UUID for clients and logs.
func uuidString(u pgtype.UUID) string {
	if !u.Valid {
		return ""
	}
	return uuid.UUID(u.Bytes).String()
}

// textOrNull maps an optional string to a nullable text column.
func textOrNull(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}
