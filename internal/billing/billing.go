package billing

import (
	"context"
	"time"
)

// Provider defines the interface for payment processing.
// Implementations can use Stripe, PayPal, Square, etc.
type Provider interface {
	// CreatePaymentIntent creates a payment intent for a priced order.
	// Returns the intent with client_secret for frontend confirmation.
	CreatePaymentIntent(ctx context.Context, params CreatePaymentIntentParams) (*PaymentIntent, error)

	// GetPaymentIntent retrieves an existing payment intent,
	// used to verify payment state before fulfilling an order.
	GetPaymentIntent(ctx context.Context, paymentIntentID string) (*PaymentIntent, error)

	// UpdatePaymentIntent updates an unconfirmed payment intent,
	// used to attach order correlation metadata once the order exists.
	UpdatePaymentIntent(ctx context.Context, params UpdatePaymentIntentParams) (*PaymentIntent, error)

	// CancelPaymentIntent cancels a payment intent that hasn't been confirmed,
	// cleaning up abandoned checkouts.
	CancelPaymentIntent(ctx context.Context, paymentIntentID string) error

	// VerifyWebhookSignature verifies that a webhook request is authentic.
	// Must be called on the raw body before any parsing.
	VerifyWebhookSignature(payload []byte, signature string) error

	// RefundPayment refunds a completed payment.
	RefundPayment(ctx context.Context, params RefundParams) (*Refund, error)
}

// CreatePaymentIntentParams contains parameters for creating a payment intent.
type CreatePaymentIntentParams struct {
	// AmountCents is the amount in smallest currency unit (cents for USD).
	// Always passed through as-is; never re-derived from a decimal.
	AmountCents int64

	// Currency code (ISO 4217) - e.g., "usd", "eur"
	Currency string

	// CustomerID is optional - if provided, links payment to existing customer
	CustomerID string

	// PaymentMethodID attaches a stored payment method (pm_...).
	// Empty for guest checkout; the card is collected client-side.
	PaymentMethodID string

	// ReceiptEmail is where the processor sends its receipt
	ReceiptEmail string

	// Description appears on customer's statement and in the dashboard
	Description string

	// Metadata for correlation (always includes order_id)
	Metadata map[string]string

	// IdempotencyKey prevents duplicate payment intents.
	// Typically the order id or a unique checkout identifier.
	IdempotencyKey string
}

// PaymentIntent represents a payment intent.
type PaymentIntent struct {
	// ID is the provider payment intent ID (pi_...)
	ID string

	// ClientSecret is used by Stripe.js on the frontend to confirm payment
	ClientSecret string

	// AmountCents is the amount in smallest currency unit (cents)
	AmountCents int64

	// Currency code
	Currency string

	// Status: requires_payment_method, requires_confirmation, succeeded, etc.
	Status string

	// Metadata passed during creation
	Metadata map[string]string

	// CreatedAt is when the payment intent was created
	CreatedAt time.Time

	// LastPaymentError contains details if payment failed
	LastPaymentError *PaymentError
}

// Succeeded reports whether the intent reached its success state.
func (pi *PaymentIntent) Succeeded() bool {
	return pi.Status == "succeeded"
}

// UpdatePaymentIntentParams contains parameters for updating a payment
// intent before confirmation.
type UpdatePaymentIntentParams struct {
	// PaymentIntentID is the provider payment intent ID
	PaymentIntentID string

	// AmountCents updates the amount when non-zero (must be before confirmation)
	AmountCents int64

	// Metadata updates or adds metadata fields
	Metadata map[string]string

	// Description updates the description
	Description string
}

// PaymentError contains details about a failed payment attempt.
type PaymentError struct {
	Code        string // Provider error code
	Message     string // Human-readable message
	DeclineCode string // Reason card was declined (if applicable)
}

// RefundParams contains parameters for creating a refund.
type RefundParams struct {
	PaymentIntentID string
	AmountCents     int64  // If 0, refunds full amount
	Reason          string // "duplicate", "fraudulent", "requested_by_customer"
	Metadata        map[string]string
}

// Refund represents a payment refund.
type Refund struct {
	ID              string
	PaymentIntentID string
	AmountCents     int64
	Status          string // succeeded, pending, failed
	CreatedAt       time.Time
}
