package billing

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockProvider is an in-memory Provider for tests. Function fields override
// individual behaviors; unset fields fall back to a working default.
type MockProvider struct {
	mu      sync.Mutex
	intents map[string]*PaymentIntent
	nextID  int

	CreatePaymentIntentFn    func(ctx context.Context, params CreatePaymentIntentParams) (*PaymentIntent, error)
	GetPaymentIntentFn       func(ctx context.Context, paymentIntentID string) (*PaymentIntent, error)
	UpdatePaymentIntentFn    func(ctx context.Context, params UpdatePaymentIntentParams) (*PaymentIntent, error)
	CancelPaymentIntentFn    func(ctx context.Context, paymentIntentID string) error
	VerifyWebhookSignatureFn func(payload []byte, signature string) error
	RefundPaymentFn          func(ctx context.Context, params RefundParams) (*Refund, error)
}

var _ Provider = (*MockProvider)(nil)

func NewMockProvider() *MockProvider {
	return &MockProvider{intents: make(map[string]*PaymentIntent)}
}

func (m *MockProvider) CreatePaymentIntent(ctx context.Context, params CreatePaymentIntentParams) (*PaymentIntent, error) {
	if m.CreatePaymentIntentFn != nil {
		return m.CreatePaymentIntentFn(ctx, params)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	pi := &PaymentIntent{
		ID:           fmt.Sprintf("pi_mock_%d", m.nextID),
		ClientSecret: fmt.Sprintf("pi_mock_%d_secret", m.nextID),
		AmountCents:  params.AmountCents,
		Currency:     params.Currency,
		Status:       "requires_payment_method",
		Metadata:     params.Metadata,
		CreatedAt:    time.Now(),
	}
	m.intents[pi.ID] = pi
	return pi, nil
}

func (m *MockProvider) GetPaymentIntent(ctx context.Context, paymentIntentID string) (*PaymentIntent, error) {
	if m.GetPaymentIntentFn != nil {
		return m.GetPaymentIntentFn(ctx, paymentIntentID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	pi, ok := m.intents[paymentIntentID]
	if !ok {
		return nil, ErrPaymentIntentNotFound
	}
	return pi, nil
}

func (m *MockProvider) UpdatePaymentIntent(ctx context.Context, params UpdatePaymentIntentParams) (*PaymentIntent, error) {
	if m.UpdatePaymentIntentFn != nil {
		return m.UpdatePaymentIntentFn(ctx, params)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	pi, ok := m.intents[params.PaymentIntentID]
	if !ok {
		return nil, ErrPaymentIntentNotFound
	}
	if params.AmountCents > 0 {
		pi.AmountCents = params.AmountCents
	}
	if len(params.Metadata) > 0 {
		if pi.Metadata == nil {
			pi.Metadata = make(map[string]string)
		}
		for k, v := range params.Metadata {
			pi.Metadata[k] = v
		}
	}
	return pi, nil
}

func (m *MockProvider) CancelPaymentIntent(ctx context.Context, paymentIntentID string) error {
	if m.CancelPaymentIntentFn != nil {
		return m.CancelPaymentIntentFn(ctx, paymentIntentID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	pi, ok := m.intents[paymentIntentID]
	if !ok {
		return ErrPaymentIntentNotFound
	}
	pi.Status = "canceled"
	return nil
}

func (m *MockProvider) VerifyWebhookSignature(payload []byte, signature string) error {
	if m.VerifyWebhookSignatureFn != nil {
		return m.VerifyWebhookSignatureFn(payload, signature)
	}
	if signature == "" {
		return ErrInvalidWebhookSignature
	}
	return nil
}

func (m *MockProvider) RefundPayment(ctx context.Context, params RefundParams) (*Refund, error) {
	if m.RefundPaymentFn != nil {
		return m.RefundPaymentFn(ctx, params)
	}
	return &Refund{
		ID:              "re_mock_1",
		PaymentIntentID: params.PaymentIntentID,
		AmountCents:     params.AmountCents,
		Status:          "succeeded",
		CreatedAt:       time.Now(),
	}, nil
}

// MarkSucceeded flips a stored intent to succeeded, simulating the customer
// completing payment client-side.
func (m *MockProvider) MarkSucceeded(paymentIntentID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if pi, ok := m.intents[paymentIntentID]; ok {
		pi.Status = "succeeded"
	}
}
