package domain

import "context"

// InvoiceService renders invoice documents for orders.
type InvoiceService interface {
	// GenerateInvoice renders the invoice document for an order. Rendering
	// is deterministic for a given order and has no side effects.
	GenerateInvoice(ctx context.Context, detail *OrderDetail) ([]byte, error)
}

// FulfillmentService applies verified payment outcomes to orders.
type FulfillmentService interface {
	// FulfillOrder completes the order for a succeeded payment intent:
	// order goes COMPLETED, subscriptions activate, an invoice is generated
	// and emailed. Re-delivery of the same event is a no-op returning
	// ErrPaymentAlreadyProcessed.
	FulfillOrder(ctx context.Context, eventID, orderID, paymentIntentID string) error

	// RecordPaymentFailure notes a failed or cancelled payment attempt
	// against the order without changing fulfillment state.
	RecordPaymentFailure(ctx context.Context, orderID, reason string) error
}
