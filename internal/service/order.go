package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/arverne/softsell/internal/billing"
	"github.com/arverne/softsell/internal/domain"
	"github.com/arverne/softsell/internal/postgres"
	"github.com/arverne/softsell/internal/pricing"
	"github.com/arverne/softsell/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// invoiceNumberAttempts bounds retries on invoice-number collisions.
const invoiceNumberAttempts = 3

// uniqueViolation is the Postgres error code for a unique index conflict.
const uniqueViolation = "23505"

type orderService struct {
	store           Store
	billingProvider billing.Provider
	logger          *slog.Logger
	now             func() time.Time
}

// NewOrderService assembles orders from validated checkout submissions.
func NewOrderService(store Store, billingProvider billing.Provider, logger *slog.Logger) domain.OrderService {
	return &orderService{
		store:           store,
		billingProvider: billingProvider,
		logger:          logger,
		now:             time.Now,
	}
}

// CreateOrder validates the submission, prices the cart and persists the
// order with its items in one transaction. The order starts PENDING; only
// the fulfillment processor moves it forward.
func (s *orderService) CreateOrder(ctx context.Context, cmd domain.CreateOrderCommand) (*domain.OrderDetail, error) {
	const op = "order.create"

	if err := cmd.Owner.Validate(); err != nil {
		return nil, err
	}
	if len(cmd.Items) == 0 {
		return nil, domain.ErrEmptyCart
	}
	if cmd.PaymentIntentID == "" {
		return nil, domain.Invalid(op, "payment intent id is required")
	}
	if cmd.BillingAddressID == "" {
		return nil, domain.Invalid(op, "billing address id is required")
	}
	if cmd.Owner.IsGuest() {
		if cmd.PaymentMethodID != "" {
			return nil, domain.Invalid(op, "guests cannot use stored payment methods")
		}
	} else if cmd.PaymentMethodID == "" {
		return nil, domain.ErrPaymentMethodRequired
	}

	addressID, err := parseUUID(cmd.BillingAddressID)
	if err != nil {
		return nil, domain.Invalid(op, "invalid billing address id")
	}
	if _, err := s.store.GetAddress(ctx, addressID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAddressNotFound
		}
		return nil, domain.Internal(err, op, "failed to load billing address")
	}

	// Same intent, same order: a double-submitted checkout returns the
	// order that already exists instead of charging twice. The replay must
	// come from the owner; anyone else holding the intent id is probing.
	if existing, err := s.store.GetOrderByPaymentIntentID(ctx, textOrNull(cmd.PaymentIntentID)); err == nil {
		if !ownerMatches(existing, cmd.Owner) {
			s.logger.Warn("payment intent reuse across owners rejected",
				"order_id", uuidString(existing.ID),
				"payment_intent_id", cmd.PaymentIntentID)
			return nil, domain.Forbidden(op, "payment intent belongs to another order")
		}
		s.logger.Info("order already exists for payment intent",
			"order_id", uuidString(existing.ID),
			"payment_intent_id", cmd.PaymentIntentID)
		return s.assembleDetail(ctx, existing)
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.Internal(err, op, "failed to check for existing order")
	}

	totals, err := pricing.Calculate(cmd.Items)
	if err != nil {
		return nil, err
	}

	var ownerUUID pgtype.UUID
	if !cmd.Owner.IsGuest() {
		if ownerUUID, err = parseUUID(cmd.Owner.UserID); err != nil {
			return nil, domain.Invalid(op, "invalid user id")
		}
	}

	order, items, err := s.persistOrder(ctx, totals, ownerUUID, cmd, addressID)
	if err != nil {
		return nil, err
	}

	if !cmd.Owner.IsGuest() {
		s.recordPaymentCard(ctx, order, cmd.PaymentMethodID)
	}

	// Stamp the order id onto the intent so the webhook can correlate the
	// success event. Failure here is survivable: fulfillment falls back to
	// looking the order up by payment intent id.
	if _, err := s.billingProvider.UpdatePaymentIntent(ctx, billing.UpdatePaymentIntentParams{
		PaymentIntentID: cmd.PaymentIntentID,
		Metadata: map[string]string{
			"order_id":       uuidString(order.ID),
			"invoice_number": order.InvoiceNumber,
		},
	}); err != nil {
		s.logger.Warn("failed to attach order metadata to payment intent",
			"order_id", uuidString(order.ID),
			"payment_intent_id", cmd.PaymentIntentID,
			"error", err)
	}

	s.logger.Info("order created",
		"order_id", uuidString(order.ID),
		"invoice_number", order.InvoiceNumber,
		"total_cents", order.TotalCents,
		"guest", cmd.Owner.IsGuest())

	addr, err := s.store.GetAddress(ctx, order.BillingAddressID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load billing address")
	}
	return &domain.OrderDetail{Order: order, Items: items, BillingAddress: addr}, nil
}

// persistOrder writes order+items atomically, retrying the rare invoice
// number collision with a fresh suffix.
func (s *orderService) persistOrder(ctx context.Context, totals *domain.CartTotals, ownerUUID pgtype.UUID, cmd domain.CreateOrderCommand, addressID pgtype.UUID) (repository.Order, []repository.OrderItem, error) {
	const op = "order.create"

	itemParams := make([]repository.CreateOrderItemParams, 0, len(totals.Items))
	for _, item := range totals.Items {
		itemParams = append(itemParams, repository.CreateOrderItemParams{
			ProductID:          item.ProductID,
			ProductName:        item.ProductName,
			Quantity:           item.Quantity,
			BillingInterval:    item.Interval,
			SubscriptionStatus: domain.SubscriptionStatusPending,
			UnitPriceCents:     item.UnitPriceCents,
			DurationMonths:     durationMonths(item.CartItem),
		})
	}

	var lastErr error
	for attempt := 0; attempt < invoiceNumberAttempts; attempt++ {
		invoiceNumber, err := generateInvoiceNumber(s.now())
		if err != nil {
			return repository.Order{}, nil, domain.Internal(err, op, "failed to generate invoice number")
		}

		order, items, err := s.store.CreateOrderWithItems(ctx, postgres.CreateOrderTxParams{
			Order: repository.CreateOrderParams{
				InvoiceNumber:    invoiceNumber,
				Status:           domain.OrderStatusPending,
				SubtotalCents:    totals.SubtotalCents,
				TaxCents:         totals.TaxCents,
				TotalCents:       totals.TotalCents,
				Currency:         "usd",
				UserID:           ownerUUID,
				GuestID:          textOrNull(cmd.Owner.GuestID),
				BillingAddressID: addressID,
				PaymentIntentID:  textOrNull(cmd.PaymentIntentID),
			},
			Items: itemParams,
		})
		if err == nil {
			return order, items, nil
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			lastErr = err
			continue
		}
		return repository.Order{}, nil, domain.Internal(err, op, "failed to save order")
	}
	return repository.Order{}, nil, domain.Internal(lastErr, op, "failed to allocate invoice number")
}

// recordPaymentCard copies the stored method's card summary onto the order
// for display on invoices. Cosmetic; failures are logged and swallowed.
func (s *orderService) recordPaymentCard(ctx context.Context, order repository.Order, paymentMethodID string) {
	methodID, err := parseUUID(paymentMethodID)
	if err != nil {
		return
	}
	method, err := s.store.GetPaymentMethod(ctx, methodID)
	if err != nil {
		s.logger.Warn("failed to load payment method for card summary",
			"order_id", uuidString(order.ID), "error", err)
		return
	}
	if err := s.store.SetOrderPaymentCard(ctx, repository.SetOrderPaymentCardParams{
		ID:           order.ID,
		PaymentBrand: textOrNull(method.Brand),
		PaymentLast4: textOrNull(method.Last4),
	}); err != nil {
		s.logger.Warn("failed to record card summary",
			"order_id", uuidString(order.ID), "error", err)
	}
}

func (s *orderService) GetOrder(ctx context.Context, orderID string, owner domain.Owner) (*domain.OrderDetail, error) {
	const op = "order.get"

	if err := owner.Validate(); err != nil {
		return nil, err
	}
	id, err := parseUUID(orderID)
	if err != nil {
		return nil, domain.Invalid(op, "invalid order id")
	}

	order, err := s.store.GetOrder(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load order")
	}

	if !ownerMatches(order, owner) {
		return nil, domain.Forbidden(op, "order belongs to another account")
	}
	return s.assembleDetail(ctx, order)
}

func (s *orderService) GetOrderByInvoiceNumber(ctx context.Context, invoiceNumber string, owner domain.Owner) (*domain.OrderDetail, error) {
	const op = "order.get_by_invoice_number"

	order, err := s.store.GetOrderByInvoiceNumber(ctx, invoiceNumber)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load order")
	}

	if !ownerMatches(order, owner) {
		return nil, domain.Forbidden(op, "order belongs to another account")
	}
	return s.assembleDetail(ctx, order)
}

// ListOrders returns the caller's orders, newest first, without items.
func (s *orderService) ListOrders(ctx context.Context, owner domain.Owner) ([]repository.Order, error) {
	const op = "order.list"

	if err := owner.Validate(); err != nil {
		return nil, err
	}

	if owner.IsGuest() {
		orders, err := s.store.ListOrdersForGuest(ctx, textOrNull(owner.GuestID))
		if err != nil {
			return nil, domain.Internal(err, op, "failed to list orders")
		}
		return orders, nil
	}

	userID, err := parseUUID(owner.UserID)
	if err != nil {
		return nil, domain.Invalid(op, "invalid user id")
	}
	orders, err := s.store.ListOrdersForUser(ctx, userID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list orders")
	}
	return orders, nil
}

// TransitionOrder enforces the status graph, then applies the move with a
// compare-and-set so a concurrent transition loses cleanly.
func (s *orderService) TransitionOrder(ctx context.Context, orderID, from, to string) error {
	const op = "order.transition"

	if !domain.CanTransitionOrder(from, to) {
		if domain.IsTerminalOrderStatus(from) {
			return domain.ErrTerminalOrderState
		}
		return domain.Errorf(domain.EINVALID, op, "cannot transition order from %s to %s", from, to)
	}

	id, err := parseUUID(orderID)
	if err != nil {
		return domain.Invalid(op, "invalid order id")
	}

	_, err = s.store.TransitionOrderStatus(ctx, repository.TransitionOrderStatusParams{
		ID:         id,
		FromStatus: from,
		ToStatus:   to,
	})
	if errors.Is(err, pgx.ErrNoRows) {
		// Either the order doesn't exist or someone else moved it first.
		if _, getErr := s.store.GetOrder(ctx, id); errors.Is(getErr, pgx.ErrNoRows) {
			return domain.ErrOrderNotFound
		}
		return domain.Conflict(op, "order status changed concurrently")
	}
	if err != nil {
		return domain.Internal(err, op, "failed to transition order")
	}
	return nil
}

func (s *orderService) assembleDetail(ctx context.Context, order repository.Order) (*domain.OrderDetail, error) {
	const op = "order.detail"

	items, err := s.store.ListOrderItems(ctx, order.ID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load order items")
	}
	addr, err := s.store.GetAddress(ctx, order.BillingAddressID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.Internal(err, op, "failed to load billing address")
	}
	return &domain.OrderDetail{Order: order, Items: items, BillingAddress: addr}, nil
}

func ownerMatches(order repository.Order, owner domain.Owner) bool {
	if owner.IsGuest() {
		return order.GuestID.Valid && order.GuestID.String == owner.GuestID
	}
	return order.UserID.Valid && uuidString(order.UserID) == owner.UserID
}

// durationMonths is how many months one unit of the item pays for.
func durationMonths(item domain.CartItem) int32 {
	if item.DurationMonths > 0 {
		return item.DurationMonths
	}
	if item.Interval == domain.IntervalYearly {
		return 12
	}
	return 1
}
