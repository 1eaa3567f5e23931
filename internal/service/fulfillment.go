package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/arverne/softsell/internal/billing"
	"github.com/arverne/softsell/internal/domain"
	"github.com/arverne/softsell/internal/repository"
	"github.com/arverne/softsell/internal/telemetry"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// Mailer dispatches order confirmations. The email package implements it;
// tests swap in a recorder.
type Mailer interface {
	SendOrderConfirmation(ctx context.Context, params OrderConfirmationParams) error
}

// OrderConfirmationParams is everything the confirmation email needs.
type OrderConfirmationParams struct {
	To            string
	Name          string
	InvoiceNumber string
	TotalCents    int64
	Invoice       []byte // rendered invoice document, attached
}

type fulfillmentService struct {
	store           Store
	billingProvider billing.Provider
	invoices        domain.InvoiceService
	addresses       domain.AddressService
	mailer          Mailer
	metrics         *telemetry.BusinessMetrics
	logger          *slog.Logger
}

// NewFulfillmentService applies verified payment outcomes to orders.
func NewFulfillmentService(
	store Store,
	billingProvider billing.Provider,
	invoices domain.InvoiceService,
	addresses domain.AddressService,
	mailer Mailer,
	metrics *telemetry.BusinessMetrics,
	logger *slog.Logger,
) domain.FulfillmentService {
	return &fulfillmentService{
		store:           store,
		billingProvider: billingProvider,
		invoices:        invoices,
		addresses:       addresses,
		mailer:          mailer,
		metrics:         metrics,
		logger:          logger,
	}
}

// FulfillOrder completes an order for a verified payment-success event.
// The status flip, subscription activation and event ledger write commit
// together; invoice rendering and email happen after the commit and can
// only degrade, never roll fulfillment back.
func (s *fulfillmentService) FulfillOrder(ctx context.Context, eventID, orderID, paymentIntentID string) error {
	const op = "fulfillment.fulfill"

	order, err := s.resolveOrder(ctx, orderID, paymentIntentID)
	if err != nil {
		return err
	}

	// The event claims success; confirm against the processor before
	// trusting it with a state transition.
	if paymentIntentID != "" {
		intent, err := s.billingProvider.GetPaymentIntent(ctx, paymentIntentID)
		if err != nil {
			return domain.Internal(err, op, "failed to verify payment intent")
		}
		if !intent.Succeeded() {
			s.logger.Warn("success event for non-succeeded intent",
				"order_id", uuidString(order.ID),
				"payment_intent_id", paymentIntentID,
				"intent_status", intent.Status)
			return domain.ErrPaymentNotSucceeded
		}
	}

	result, err := s.store.FulfillOrder(ctx, eventID, "payment_intent.succeeded", order.ID)
	if err != nil {
		return domain.Internal(err, op, "failed to fulfill order")
	}
	if result.AlreadyProcessed {
		// The webhook handler counts the duplicate; here it is just a no-op.
		s.logger.Info("duplicate fulfillment event ignored",
			"event_id", eventID,
			"order_id", uuidString(order.ID))
		return domain.ErrPaymentAlreadyProcessed
	}

	s.logger.Info("order fulfilled",
		"event_id", eventID,
		"order_id", uuidString(result.Order.ID),
		"invoice_number", result.Order.InvoiceNumber,
		"items_activated", result.ItemsActivated)
	s.metrics.OrdersFulfilled.Inc()
	s.metrics.RevenueCollected.Add(float64(result.Order.TotalCents))

	s.notify(ctx, result.Order)
	return nil
}

// resolveOrder finds the order the event refers to, preferring the metadata
// order id and falling back to the payment intent id.
func (s *fulfillmentService) resolveOrder(ctx context.Context, orderID, paymentIntentID string) (repository.Order, error) {
	const op = "fulfillment.resolve_order"

	if orderID != "" {
		if id, err := parseUUID(orderID); err == nil {
			order, err := s.store.GetOrder(ctx, id)
			if err == nil {
				return order, nil
			}
			if !errors.Is(err, pgx.ErrNoRows) {
				return repository.Order{}, domain.Internal(err, op, "failed to load order")
			}
		}
	}

	if paymentIntentID != "" {
		order, err := s.store.GetOrderByPaymentIntentID(ctx, pgtype.Text{String: paymentIntentID, Valid: true})
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return repository.Order{}, domain.Internal(err, op, "failed to load order by payment intent")
		}
	}

	// A paid event with no order means something upstream lost a write.
	// Reply not-found so the processor stops retrying, and make noise.
	s.logger.Error("no order for paid webhook event",
		"order_id", orderID,
		"payment_intent_id", paymentIntentID)
	return repository.Order{}, domain.ErrOrderNotFound
}

// notify renders the invoice and emails it. Failures here are logged and
// counted but the order stays fulfilled.
func (s *fulfillmentService) notify(ctx context.Context, order repository.Order) {
	items, err := s.store.ListOrderItems(ctx, order.ID)
	if err != nil {
		s.logger.Error("failed to load items for confirmation", "order_id", uuidString(order.ID), "error", err)
		return
	}
	addrRow, err := s.store.GetAddress(ctx, order.BillingAddressID)
	if err != nil {
		s.logger.Error("failed to load address for confirmation", "order_id", uuidString(order.ID), "error", err)
		return
	}
	detail := &domain.OrderDetail{Order: order, Items: items, BillingAddress: addrRow}

	doc, err := s.invoices.GenerateInvoice(ctx, detail)
	if err != nil {
		s.logger.Error("failed to render invoice", "order_id", uuidString(order.ID), "error", err)
		return
	}
	s.metrics.InvoicesGenerated.Inc()

	addr, err := s.addresses.GetAddress(ctx, uuidString(order.BillingAddressID))
	if err != nil || addr.Email == "" {
		s.logger.Warn("no recipient email for order confirmation", "order_id", uuidString(order.ID))
		return
	}

	err = s.mailer.SendOrderConfirmation(ctx, OrderConfirmationParams{
		To:            addr.Email,
		Name:          addr.Name,
		InvoiceNumber: order.InvoiceNumber,
		TotalCents:    order.TotalCents,
		Invoice:       doc,
	})
	if err != nil {
		s.logger.Error("failed to send order confirmation", "order_id", uuidString(order.ID), "error", err)
		s.metrics.EmailFailed.Inc()
		return
	}
	s.metrics.EmailSent.Inc()
}

// RecordPaymentFailure annotates the order with the processor's failure
// reason. Fulfillment state is untouched; the customer can retry payment.
func (s *fulfillmentService) RecordPaymentFailure(ctx context.Context, orderID, reason string) error {
	const op = "fulfillment.record_failure"

	id, err := parseUUID(orderID)
	if err != nil {
		return domain.Invalid(op, "invalid order id")
	}

	if err := s.store.SetOrderFailureReason(ctx, repository.SetOrderFailureReasonParams{
		ID:            id,
		FailureReason: textOrNull(reason),
	}); err != nil {
		return domain.Internal(err, op, "failed to record payment failure")
	}

	s.logger.Warn("payment failed", "order_id", orderID, "reason", reason)
	s.metrics.PaymentFailed.WithLabelValues("processor_declined").Inc()
	return nil
}
