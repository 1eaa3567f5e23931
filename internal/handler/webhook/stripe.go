// Package webhook receives payment provider callbacks and drives order
// fulfillment from them.
package webhook

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/stripe/stripe-go/v82"

	"github.com/arverne/softsell/internal/billing"
	"github.com/arverne/softsell/internal/domain"
	"github.com/arverne/softsell/internal/handler"
	"github.com/arverne/softsell/internal/telemetry"
)

// StripeHandler processes Stripe webhook events. Signature verification
// happens before the payload is parsed; an unverified request never touches
// an order.
type StripeHandler struct {
	provider    billing.Provider
	fulfillment domain.FulfillmentService
	metrics     *telemetry.BusinessMetrics
	logger      *slog.Logger
}

// NewStripeHandler creates a new Stripe webhook handler.
func NewStripeHandler(
	provider billing.Provider,
	fulfillment domain.FulfillmentService,
	metrics *telemetry.BusinessMetrics,
	logger *slog.Logger,
) *StripeHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StripeHandler{
		provider:    provider,
		fulfillment: fulfillment,
		metrics:     metrics,
		logger:      logger,
	}
}

// HandleWebhook handles POST /webhooks/stripe.
//
// Stripe retries on any non-2xx. Duplicates and unknown event types are
// acknowledged with a 200; an event that names no known order gets a 404,
// and a processing failure gets a 500 so the event is re-delivered.
func (h *StripeHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		handler.ErrorResponse(w, r, domain.Errorf(domain.EINVALID, "webhook.stripe", "Error reading request body"))
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		h.logger.Warn("webhook rejected: missing signature")
		handler.ErrorResponse(w, r, domain.Errorf(domain.EUNAUTHORIZED, "webhook.stripe", "Missing signature"))
		return
	}

	if err := h.provider.VerifyWebhookSignature(payload, signature); err != nil {
		h.logger.Warn("webhook rejected: signature verification failed", "error", err)
		handler.ErrorResponse(w, r, domain.Errorf(domain.EUNAUTHORIZED, "webhook.stripe", "Invalid signature"))
		return
	}

	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		handler.ErrorResponse(w, r, domain.Errorf(domain.EINVALID, "webhook.stripe", "Invalid JSON"))
		return
	}

	h.metrics.WebhookReceived.WithLabelValues(string(event.Type)).Inc()
	h.logger.Info("webhook received", "event_id", event.ID, "event_type", event.Type)

	var handleErr error
	switch event.Type {
	case "payment_intent.succeeded":
		handleErr = h.handlePaymentSucceeded(r, event)

	case "payment_intent.payment_failed":
		handleErr = h.handlePaymentFailed(r, event, "payment_failed")

	case "payment_intent.canceled":
		handleErr = h.handlePaymentFailed(r, event, "canceled")

	case "payment_intent.created":
		// Monitoring only.
		h.logger.Debug("payment intent created", "event_id", event.ID)

	default:
		h.logger.Debug("unhandled webhook event type", "event_type", event.Type)
	}

	if handleErr != nil {
		handler.ErrorResponse(w, r, handleErr)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"received": true}`))
}

// handlePaymentSucceeded completes the order behind a succeeded payment
// intent. Re-deliveries of the same event are deduplicated downstream.
func (h *StripeHandler) handlePaymentSucceeded(r *http.Request, event stripe.Event) error {
	intent, err := h.parseIntent(event)
	if err != nil {
		h.metrics.WebhookFailed.WithLabelValues(string(event.Type)).Inc()
		return err
	}

	orderID := intent.Metadata["order_id"]

	err = h.fulfillment.FulfillOrder(r.Context(), event.ID, orderID, intent.ID)
	switch {
	case err == nil:
		h.metrics.WebhookProcessed.WithLabelValues(string(event.Type)).Inc()
		h.logger.Info("order fulfilled",
			"event_id", event.ID,
			"payment_intent_id", intent.ID,
			"order_id", orderID,
		)
		return nil

	case errors.Is(err, domain.ErrPaymentAlreadyProcessed):
		h.metrics.WebhookDuplicates.Inc()
		h.logger.Info("duplicate webhook event ignored", "event_id", event.ID)
		return nil

	default:
		h.metrics.WebhookFailed.WithLabelValues(string(event.Type)).Inc()
		h.logger.Error("order fulfillment failed",
			"event_id", event.ID,
			"payment_intent_id", intent.ID,
			"order_id", orderID,
			"error", err,
		)
		return err
	}
}

// handlePaymentFailed records a failed or cancelled payment attempt against
// the order without touching fulfillment state.
func (h *StripeHandler) handlePaymentFailed(r *http.Request, event stripe.Event, reason string) error {
	intent, err := h.parseIntent(event)
	if err != nil {
		h.metrics.WebhookFailed.WithLabelValues(string(event.Type)).Inc()
		return err
	}

	label := reason
	if msg := failureMessage(intent); msg != "" {
		reason = reason + ": " + msg
	}

	orderID := intent.Metadata["order_id"]
	if orderID == "" {
		h.logger.Warn("payment failure event without order metadata",
			"event_id", event.ID,
			"payment_intent_id", intent.ID,
		)
		return nil
	}

	h.metrics.PaymentFailed.WithLabelValues(label).Inc()

	if err := h.fulfillment.RecordPaymentFailure(r.Context(), orderID, reason); err != nil {
		h.metrics.WebhookFailed.WithLabelValues(string(event.Type)).Inc()
		h.logger.Error("recording payment failure failed",
			"event_id", event.ID,
			"order_id", orderID,
			"error", err,
		)
		return err
	}

	h.metrics.WebhookProcessed.WithLabelValues(string(event.Type)).Inc()
	h.logger.Info("payment failure recorded",
		"event_id", event.ID,
		"order_id", orderID,
		"reason", reason,
	)
	return nil
}

func (h *StripeHandler) parseIntent(event stripe.Event) (*stripe.PaymentIntent, error) {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		h.logger.Error("parsing payment intent from webhook failed",
			"event_id", event.ID,
			"error", err,
		)
		return nil, domain.Errorf(domain.EINVALID, "webhook.stripe", "Malformed event payload")
	}
	return &intent, nil
}

func failureMessage(intent *stripe.PaymentIntent) string {
	if intent.LastPaymentError == nil {
		return ""
	}
	if intent.LastPaymentError.DeclineCode != "" {
		return string(intent.LastPaymentError.DeclineCode)
	}
	return string(intent.LastPaymentError.Code)
}
