package domain

import (
	"context"

	"github.com/arverne/softsell/internal/repository"
)

// Order lifecycle statuses.
const (
	OrderStatusPending    = "PENDING"
	OrderStatusProcessing = "PROCESSING"
	OrderStatusActive     = "ACTIVE"
	OrderStatusCompleted  = "COMPLETED"
	OrderStatusCancelled  = "CANCELLED"
	OrderStatusRefunded   = "REFUNDED"
)

// Subscription statuses carried on order line items.
const (
	SubscriptionStatusPending   = "PENDING"
	SubscriptionStatusActive    = "ACTIVE"
	SubscriptionStatusSuspended = "SUSPENDED"
	SubscriptionStatusCancelled = "CANCELLED"
	SubscriptionStatusExpired   = "EXPIRED"
	SubscriptionStatusRenewing  = "RENEWING"
)

// Order-related domain errors.
var (
	ErrOrderNotFound           = &Error{Code: ENOTFOUND, Message: "Order not found"}
	ErrEmptyCart               = &Error{Code: EINVALID, Message: "Cart is empty"}
	ErrPaymentNotSucceeded     = &Error{Code: EPAYMENT, Message: "Payment has not succeeded"}
	ErrPaymentAlreadyProcessed = &Error{Code: ECONFLICT, Message: "Payment event already processed"}
	ErrOwnerRequired           = &Error{Code: EUNAUTHORIZED, Message: "Order requires a user or guest identity"}
	ErrAmbiguousOwner          = &Error{Code: EINVALID, Message: "Order cannot belong to both a user and a guest"}
	ErrPaymentMethodRequired   = &Error{Code: EINVALID, Message: "A stored payment method is required for account checkout"}
	ErrTerminalOrderState      = &Error{Code: ECONFLICT, Message: "Order is in a terminal state"}
)

// orderTransitions is the allowed order status graph. CANCELLED and REFUNDED
// are reachable from every non-terminal state; terminal states have no exits.
var orderTransitions = map[string][]string{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusActive, OrderStatusCompleted, OrderStatusCancelled, OrderStatusRefunded},
	OrderStatusProcessing: {OrderStatusCompleted, OrderStatusCancelled, OrderStatusRefunded},
	OrderStatusActive:     {OrderStatusCompleted, OrderStatusCancelled, OrderStatusRefunded},
	OrderStatusCompleted:  nil,
	OrderStatusCancelled:  nil,
	OrderStatusRefunded:   nil,
}

// CanTransitionOrder reports whether an order may move from one status to another.
func CanTransitionOrder(from, to string) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminalOrderStatus reports whether a status has no outgoing transitions.
func IsTerminalOrderStatus(status string) bool {
	next, known := orderTransitions[status]
	return known && len(next) == 0
}

// OrderService provides business logic for order assembly and retrieval.
type OrderService interface {
	// CreateOrder prices the submitted cart, assigns an invoice number and
	// persists the order with its items atomically. Idempotent per payment
	// intent: re-submitting the same intent returns the existing order.
	CreateOrder(ctx context.Context, cmd CreateOrderCommand) (*OrderDetail, error)

	// GetOrder retrieves a single order with items, scoped to its owner.
	GetOrder(ctx context.Context, orderID string, owner Owner) (*OrderDetail, error)

	// GetOrderByInvoiceNumber retrieves a single order by invoice number,
	// scoped to its owner.
	GetOrderByInvoiceNumber(ctx context.Context, invoiceNumber string, owner Owner) (*OrderDetail, error)

	// ListOrders returns the owner's orders, newest first, without items.
	ListOrders(ctx context.Context, owner Owner) ([]repository.Order, error)

	// TransitionOrder moves an order along the status graph. The update is
	// conditional on the current status so concurrent writers cannot revive
	// a terminal order.
	TransitionOrder(ctx context.Context, orderID, from, to string) error
}

// Owner identifies who an order belongs to: exactly one of UserID or GuestID.
type Owner struct {
	UserID  string
	GuestID string
}

// Validate enforces the exactly-one-of invariant.
func (o Owner) Validate() error {
	if o.UserID == "" && o.GuestID == "" {
		return ErrOwnerRequired
	}
	if o.UserID != "" && o.GuestID != "" {
		return ErrAmbiguousOwner
	}
	return nil
}

// IsGuest reports whether the owner is an anonymous guest.
func (o Owner) IsGuest() bool {
	return o.GuestID != ""
}

// CreateOrderCommand carries a validated checkout submission.
type CreateOrderCommand struct {
	Owner            Owner
	Items            []CartItem
	BillingAddressID string
	PaymentIntentID  string

	// PaymentMethodID is the stored payment method reference. Required for
	// account owners, absent for guests.
	PaymentMethodID string
}

// OrderDetail aggregates order information with items and the billing address.
type OrderDetail struct {
	Order          repository.Order
	Items          []repository.OrderItem
	BillingAddress repository.Address
}
