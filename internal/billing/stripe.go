package billing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"
)

// stripeMinimumCents is Stripe's minimum charge for USD.
const stripeMinimumCents = 50

// StripeProvider implements Provider using the Stripe Go SDK.
type StripeProvider struct {
	client *client.API
	config StripeConfig
}

// NewStripeProvider creates a Stripe billing provider with a bounded HTTP
// timeout and retry budget so a slow provider cannot hang checkout.
func NewStripeProvider(cfg StripeConfig) (*StripeProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.TimeoutSeconds == 0 {
		cfg.TimeoutSeconds = 30
	}

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		MaxNetworkRetries: stripe.Int64(int64(cfg.MaxRetries)),
	})

	api := &client.API{}
	api.Init(cfg.APIKey, &stripe.Backends{
		API:     backend,
		Connect: backend,
		Uploads: backend,
	})

	return &StripeProvider{client: api, config: cfg}, nil
}

// CreatePaymentIntent creates a Stripe PaymentIntent. The amount is already
// in cents and passes through untouched.
func (s *StripeProvider) CreatePaymentIntent(ctx context.Context, params CreatePaymentIntentParams) (*PaymentIntent, error) {
	if params.AmountCents < stripeMinimumCents {
		return nil, ErrAmountTooSmall
	}

	piParams := &stripe.PaymentIntentParams{
		Params:   stripe.Params{Context: ctx},
		Amount:   stripe.Int64(params.AmountCents),
		Currency: stripe.String(params.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if params.CustomerID != "" {
		piParams.Customer = stripe.String(params.CustomerID)
	}
	if params.PaymentMethodID != "" {
		piParams.PaymentMethod = stripe.String(params.PaymentMethodID)
	}
	if params.ReceiptEmail != "" {
		piParams.ReceiptEmail = stripe.String(params.ReceiptEmail)
	}
	if params.Description != "" {
		piParams.Description = stripe.String(params.Description)
	}
	for k, v := range params.Metadata {
		piParams.AddMetadata(k, v)
	}
	if params.IdempotencyKey != "" {
		piParams.IdempotencyKey = stripe.String(params.IdempotencyKey)
	}

	pi, err := s.client.PaymentIntents.New(piParams)
	if err != nil {
		return nil, wrapStripeErr(err)
	}
	return mapPaymentIntent(pi), nil
}

// GetPaymentIntent retrieves a payment intent by ID.
func (s *StripeProvider) GetPaymentIntent(ctx context.Context, paymentIntentID string) (*PaymentIntent, error) {
	pi, err := s.client.PaymentIntents.Get(paymentIntentID, &stripe.PaymentIntentParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		return nil, wrapStripeErr(err)
	}
	return mapPaymentIntent(pi), nil
}

// UpdatePaymentIntent updates an unconfirmed payment intent.
func (s *StripeProvider) UpdatePaymentIntent(ctx context.Context, params UpdatePaymentIntentParams) (*PaymentIntent, error) {
	piParams := &stripe.PaymentIntentParams{
		Params: stripe.Params{Context: ctx},
	}
	if params.AmountCents > 0 {
		piParams.Amount = stripe.Int64(params.AmountCents)
	}
	if params.Description != "" {
		piParams.Description = stripe.String(params.Description)
	}
	for k, v := range params.Metadata {
		piParams.AddMetadata(k, v)
	}

	pi, err := s.client.PaymentIntents.Update(params.PaymentIntentID, piParams)
	if err != nil {
		return nil, wrapStripeErr(err)
	}
	return mapPaymentIntent(pi), nil
}

// CancelPaymentIntent cancels an unconfirmed payment intent.
func (s *StripeProvider) CancelPaymentIntent(ctx context.Context, paymentIntentID string) error {
	_, err := s.client.PaymentIntents.Cancel(paymentIntentID, &stripe.PaymentIntentCancelParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		return wrapStripeErr(err)
	}
	return nil
}

// VerifyWebhookSignature checks the Stripe-Signature header against the raw
// payload. Nothing downstream may parse the body unless this passes.
func (s *StripeProvider) VerifyWebhookSignature(payload []byte, signature string) error {
	if err := webhook.ValidatePayload(payload, signature, s.config.WebhookSecret); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidWebhookSignature, err)
	}
	return nil
}

// RefundPayment refunds a completed payment, fully when AmountCents is 0.
func (s *StripeProvider) RefundPayment(ctx context.Context, params RefundParams) (*Refund, error) {
	refundParams := &stripe.RefundParams{
		Params:        stripe.Params{Context: ctx},
		PaymentIntent: stripe.String(params.PaymentIntentID),
	}
	if params.AmountCents > 0 {
		refundParams.Amount = stripe.Int64(params.AmountCents)
	}
	if params.Reason != "" {
		refundParams.Reason = stripe.String(params.Reason)
	}
	for k, v := range params.Metadata {
		refundParams.AddMetadata(k, v)
	}

	r, err := s.client.Refunds.New(refundParams)
	if err != nil {
		return nil, wrapStripeErr(err)
	}
	return &Refund{
		ID:              r.ID,
		PaymentIntentID: params.PaymentIntentID,
		AmountCents:     r.Amount,
		Status:          string(r.Status),
		CreatedAt:       time.Unix(r.Created, 0),
	}, nil
}

func mapPaymentIntent(pi *stripe.PaymentIntent) *PaymentIntent {
	out := &PaymentIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		AmountCents:  pi.Amount,
		Currency:     string(pi.Currency),
		Status:       string(pi.Status),
		Metadata:     pi.Metadata,
		CreatedAt:    time.Unix(pi.Created, 0),
	}
	if pi.LastPaymentError != nil {
		out.LastPaymentError = &PaymentError{
			Code:        string(pi.LastPaymentError.Code),
			Message:     pi.LastPaymentError.Msg,
			DeclineCode: string(pi.LastPaymentError.DeclineCode),
		}
	}
	return out
}

// wrapStripeErr converts SDK errors into *StripeError so callers can sort
// caller faults from provider faults without importing the SDK.
func wrapStripeErr(err error) error {
	var sErr *stripe.Error
	if !errors.As(err, &sErr) {
		return &StripeError{Message: err.Error(), OriginalError: err}
	}

	wrapped := &StripeError{
		Message:       sErr.Msg,
		Code:          string(sErr.Code),
		DeclineCode:   string(sErr.DeclineCode),
		Type:          string(sErr.Type),
		RequestID:     sErr.RequestID,
		OriginalError: err,
	}
	if sErr.Code == stripe.ErrorCodeResourceMissing {
		wrapped.OriginalError = fmt.Errorf("%w: %v", ErrPaymentIntentNotFound, err)
	}
	return wrapped
}
