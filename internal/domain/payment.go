package domain

import (
	"context"

	"github.com/arverne/softsell/internal/billing"
)

// Payment-related domain errors.
var (
	ErrPaymentMethodNotFound = &Error{Code: ENOTFOUND, Message: "Payment method not found"}
	ErrPaymentMethodOwner    = &Error{Code: EFORBIDDEN, Message: "Payment method belongs to another account"}
)

// PaymentService coordinates payment intents with the billing provider.
type PaymentService interface {
	// CreateIntent creates a payment intent for an assembled order. Account
	// owners must reference a stored payment method they own; guests get a
	// bare intent and supply card details client-side.
	CreateIntent(ctx context.Context, cmd CreateIntentCommand) (*billing.PaymentIntent, error)
}

// CreateIntentCommand carries a validated payment-intent request.
type CreateIntentCommand struct {
	Owner           Owner
	OrderID         string
	AmountCents     int64
	Currency        string
	PaymentMethodID string
	IdempotencyKey  string
}
