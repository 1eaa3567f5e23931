package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

// Querier is the full query surface. Services accept this interface so tests
// can substitute in-memory fakes.
type Querier interface {
	// Sessions
	GetSession(ctx context.Context, token string) (Session, error)
	GetLatestUserSession(ctx context.Context, userID pgtype.UUID) (Session, error)
	UpsertSession(ctx context.Context, arg UpsertSessionParams) (Session, error)
	ExtendSession(ctx context.Context, arg ExtendSessionParams) (Session, error)
	DeleteSession(ctx context.Context, token string) error
	DeleteExpiredSessions(ctx context.Context) (int64, error)

	// Orders
	CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error)
	GetOrder(ctx context.Context, id pgtype.UUID) (Order, error)
	GetOrderByInvoiceNumber(ctx context.Context, invoiceNumber string) (Order, error)
	GetOrderByPaymentIntentID(ctx context.Context, paymentIntentID pgtype.Text) (Order, error)
	ListOrdersForUser(ctx context.Context, userID pgtype.UUID) ([]Order, error)
	ListOrdersForGuest(ctx context.Context, guestID pgtype.Text) ([]Order, error)
	TransitionOrderStatus(ctx context.Context, arg TransitionOrderStatusParams) (Order, error)
	CompleteOrder(ctx context.Context, id pgtype.UUID) (Order, error)
	SetOrderFailureReason(ctx context.Context, arg SetOrderFailureReasonParams) error
	SetOrderPaymentCard(ctx context.Context, arg SetOrderPaymentCardParams) error

	// Order items
	CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error)
	ListOrderItems(ctx context.Context, orderID pgtype.UUID) ([]OrderItem, error)
	ActivateOrderItems(ctx context.Context, orderID pgtype.UUID) (int64, error)

	// Addresses
	CreateAddress(ctx context.Context, arg CreateAddressParams) (Address, error)
	GetAddress(ctx context.Context, id pgtype.UUID) (Address, error)

	// Payment methods
	CreatePaymentMethod(ctx context.Context, arg CreatePaymentMethodParams) (PaymentMethod, error)
	GetPaymentMethod(ctx context.Context, id pgtype.UUID) (PaymentMethod, error)

	// Webhook events
	InsertWebhookEvent(ctx context.Context, arg InsertWebhookEventParams) (int64, error)
}

var _ Querier = (*Queries)(nil)
