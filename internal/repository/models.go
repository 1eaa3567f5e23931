package repository

import (
	"github.com/jackc/pgx/v5/pgtype"
)

// Session is a checkout session row. UserID is null for anonymous sessions.
type Session struct {
	Token     string
	UserID    pgtype.UUID
	CreatedAt pgtype.Timestamptz
	ExpiresAt pgtype.Timestamptz
}

// Order is an order header. Monetary columns are integer cents; the three
// totals are written together at creation and never recomputed.
type Order struct {
	ID               pgtype.UUID
	InvoiceNumber    string
	OrderDate        pgtype.Timestamptz
	Status           string
	SubtotalCents    int64
	TaxCents         int64
	TotalCents       int64
	Currency         string
	UserID           pgtype.UUID
	GuestID          pgtype.Text
	BillingAddressID pgtype.UUID
	PaymentIntentID  pgtype.Text
	PaymentBrand     pgtype.Text
	PaymentLast4     pgtype.Text
	FailureReason    pgtype.Text
	CreatedAt        pgtype.Timestamptz
	UpdatedAt        pgtype.Timestamptz
}

// OrderItem is one purchased line. UnitPriceCents is the effective unit
// price at purchase time and is immutable thereafter.
type OrderItem struct {
	ID                 pgtype.UUID
	OrderID            pgtype.UUID
	ProductID          string
	ProductName        string
	Quantity           int32
	BillingInterval    string
	SubscriptionStatus string
	UnitPriceCents     int64
	DurationMonths     int32
	RenewalDate        pgtype.Timestamptz
	CreatedAt          pgtype.Timestamptz
}

// Address holds encrypted billing address fields. Every PII column stores an
// iv:authTag:ciphertext blob, never plaintext.
type Address struct {
	ID         pgtype.UUID
	Name       string
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string
	Email      string
	CreatedAt  pgtype.Timestamptz
}

// PaymentMethod is a stored payment method owned by a registered user.
type PaymentMethod struct {
	ID          pgtype.UUID
	UserID      pgtype.UUID
	ProviderRef string
	Brand       string
	Last4       string
	CreatedAt   pgtype.Timestamptz
}

// WebhookEvent is the processed-event ledger row backing webhook idempotency.
type WebhookEvent struct {
	EventID     string
	EventType   string
	ProcessedAt pgtype.Timestamptz
}
