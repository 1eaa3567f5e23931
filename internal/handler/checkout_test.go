package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arverne/softsell/internal/billing"
	"github.com/arverne/softsell/internal/cookie"
	"github.com/arverne/softsell/internal/domain"
	"github.com/arverne/softsell/internal/middleware"
	"github.com/arverne/softsell/internal/repository"
	"github.com/arverne/softsell/internal/telemetry"
)

var testMetrics = telemetry.NewBusinessMetrics("softsell_handler_test")

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeSessionService struct {
	session *repository.Session
	err     error

	// freshSession is returned by EnsureAnonymous when set, so tests can
	// tell a resolved session apart from a newly minted one.
	freshSession *repository.Session
	resolveErr   error

	resolvedTokens []string
	resolvedUsers  []string
	ensuredTokens  []string
}

func (f *fakeSessionService) Resolve(ctx context.Context, token string) (*repository.Session, error) {
	f.resolvedTokens = append(f.resolvedTokens, token)
	if f.resolveErr != nil {
		return nil, f.resolveErr
	}
	return f.session, f.err
}

func (f *fakeSessionService) ResolveUser(ctx context.Context, userID string) (*repository.Session, error) {
	f.resolvedUsers = append(f.resolvedUsers, userID)
	return f.session, f.err
}

func (f *fakeSessionService) EnsureAnonymous(ctx context.Context, token string) (*repository.Session, error) {
	f.ensuredTokens = append(f.ensuredTokens, token)
	if f.freshSession != nil {
		return f.freshSession, f.err
	}
	return f.session, f.err
}

func (f *fakeSessionService) Issue(ctx context.Context, userID string) (*repository.Session, error) {
	return f.session, f.err
}

type fakeAddressService struct {
	created domain.AddressInput
	address *domain.Address
	err     error
}

func (f *fakeAddressService) CreateAddress(ctx context.Context, input domain.AddressInput) (*domain.Address, error) {
	f.created = input
	return f.address, f.err
}

func (f *fakeAddressService) GetAddress(ctx context.Context, addressID string) (*domain.Address, error) {
	return f.address, f.err
}

type fakeOrderService struct {
	createCmd  domain.CreateOrderCommand
	gotID      string
	gotInvoice string
	gotOwner   domain.Owner
	detail     *domain.OrderDetail
	orders     []repository.Order
	err        error
}

func (f *fakeOrderService) CreateOrder(ctx context.Context, cmd domain.CreateOrderCommand) (*domain.OrderDetail, error) {
	f.createCmd = cmd
	return f.detail, f.err
}

func (f *fakeOrderService) GetOrder(ctx context.Context, orderID string, owner domain.Owner) (*domain.OrderDetail, error) {
	f.gotID = orderID
	f.gotOwner = owner
	return f.detail, f.err
}

func (f *fakeOrderService) GetOrderByInvoiceNumber(ctx context.Context, invoiceNumber string, owner domain.Owner) (*domain.OrderDetail, error) {
	f.gotInvoice = invoiceNumber
	f.gotOwner = owner
	return f.detail, f.err
}

func (f *fakeOrderService) ListOrders(ctx context.Context, owner domain.Owner) ([]repository.Order, error) {
	f.gotOwner = owner
	return f.orders, f.err
}

func (f *fakeOrderService) TransitionOrder(ctx context.Context, orderID, from, to string) error {
	return f.err
}

type fakePaymentService struct {
	cmd    domain.CreateIntentCommand
	intent *billing.PaymentIntent
	err    error
}

func (f *fakePaymentService) CreateIntent(ctx context.Context, cmd domain.CreateIntentCommand) (*billing.PaymentIntent, error) {
	f.cmd = cmd
	return f.intent, f.err
}

func newCheckoutHandler(
	sessions *fakeSessionService,
	addresses *fakeAddressService,
	orders *fakeOrderService,
	payments *fakePaymentService,
) *CheckoutHandler {
	if sessions == nil {
		sessions = &fakeSessionService{}
	}
	if addresses == nil {
		addresses = &fakeAddressService{}
	}
	if orders == nil {
		orders = &fakeOrderService{}
	}
	if payments == nil {
		payments = &fakePaymentService{}
	}
	return NewCheckoutHandler(sessions, addresses, orders, payments, testMetrics, testLogger())
}

func jsonRequest(method, target string, body interface{}, owner domain.Owner) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if owner.UserID != "" || owner.GuestID != "" {
		req = req.WithContext(context.WithValue(req.Context(), middleware.OwnerContextKey, owner))
	}
	return req
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rr.Body).Decode(dst))
}

func errorFields(t *testing.T, rr *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code    string            `json:"code"`
			Message string            `json:"message"`
			Fields  map[string]string `json:"fields"`
		} `json:"error"`
	}
	decodeBody(t, rr, &envelope)
	return envelope.Error.Fields
}

func pgUUID(t *testing.T, s string) pgtype.UUID {
	t.Helper()
	var u pgtype.UUID
	require.NoError(t, u.Scan(s))
	return u
}

func sampleDetail(t *testing.T) *domain.OrderDetail {
	t.Helper()
	id := pgUUID(t, "31b1c5fe-0847-4f34-9d12-6a7b8c9d0e1f")
	return &domain.OrderDetail{
		Order: repository.Order{
			ID:            id,
			InvoiceNumber: "INV-20260815-K7QX",
			Status:        domain.OrderStatusPending,
			SubtotalCents: 10000,
			TaxCents:      2000,
			TotalCents:    12000,
			Currency:      "usd",
		},
		Items: []repository.OrderItem{{
			OrderID:            id,
			ProductID:          "prod_editor",
			ProductName:        "Editor Pro",
			Quantity:           2,
			BillingInterval:    domain.IntervalMonthly,
			SubscriptionStatus: domain.SubscriptionStatusPending,
			UnitPriceCents:     5000,
			DurationMonths:     1,
		}},
	}
}

func TestStartSession(t *testing.T) {
	sessions := &fakeSessionService{session: &repository.Session{
		Token:     "tok_abc",
		ExpiresAt: pgtype.Timestamptz{Time: time.Date(2026, 8, 22, 0, 0, 0, 0, time.UTC), Valid: true},
	}}
	h := newCheckoutHandler(sessions, nil, nil, nil)

	req := jsonRequest(http.MethodPost, "/api/checkout/session", map[string]string{"token": "tok_abc"}, domain.Owner{})
	rr := httptest.NewRecorder()
	h.StartSession(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp sessionResponse
	decodeBody(t, rr, &resp)
	assert.Equal(t, "tok_abc", resp.Token)
	assert.Equal(t, "2026-08-22T00:00:00Z", resp.ExpiresAt)
	assert.Empty(t, resp.UserID)

	assert.Equal(t, []string{"tok_abc"}, sessions.resolvedTokens)
	assert.Empty(t, sessions.ensuredTokens, "a live token must not mint a new session")

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, cookie.SessionCookieName, cookies[0].Name)
	assert.Equal(t, "tok_abc", cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
}

func TestStartSession_TokenFromCookie(t *testing.T) {
	sessions := &fakeSessionService{session: &repository.Session{
		Token:     "tok_cookie",
		ExpiresAt: pgtype.Timestamptz{Time: time.Date(2026, 8, 22, 0, 0, 0, 0, time.UTC), Valid: true},
	}}
	h := newCheckoutHandler(sessions, nil, nil, nil)

	req := jsonRequest(http.MethodPost, "/api/checkout/session", nil, domain.Owner{})
	req.AddCookie(&http.Cookie{Name: cookie.SessionCookieName, Value: "tok_cookie"})
	rr := httptest.NewRecorder()
	h.StartSession(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp sessionResponse
	decodeBody(t, rr, &resp)
	assert.Equal(t, "tok_cookie", resp.Token)
	assert.Equal(t, []string{"tok_cookie"}, sessions.resolvedTokens)
}

func TestStartSession_ExpiredTokenMintsNewSession(t *testing.T) {
	expiry := pgtype.Timestamptz{Time: time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC), Valid: true}
	for _, resolveErr := range []error{domain.ErrSessionExpired, domain.ErrSessionNotFound} {
		sessions := &fakeSessionService{
			resolveErr:   resolveErr,
			freshSession: &repository.Session{Token: "tok_new", ExpiresAt: expiry},
		}
		h := newCheckoutHandler(sessions, nil, nil, nil)

		req := jsonRequest(http.MethodPost, "/api/checkout/session", map[string]string{"token": "tok_stale"}, domain.Owner{})
		rr := httptest.NewRecorder()
		h.StartSession(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var resp sessionResponse
		decodeBody(t, rr, &resp)
		assert.Equal(t, "tok_new", resp.Token, "stale token must be replaced, not revived")

		assert.Equal(t, []string{"tok_stale"}, sessions.resolvedTokens)
		assert.Equal(t, []string{""}, sessions.ensuredTokens, "replacement session gets a fresh token")

		cookies := rr.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, "tok_new", cookies[0].Value)
	}
}

func TestStartSession_NoTokenMintsNewSession(t *testing.T) {
	sessions := &fakeSessionService{session: &repository.Session{
		Token:     "tok_new",
		ExpiresAt: pgtype.Timestamptz{Time: time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC), Valid: true},
	}}
	h := newCheckoutHandler(sessions, nil, nil, nil)

	req := jsonRequest(http.MethodPost, "/api/checkout/session", nil, domain.Owner{})
	rr := httptest.NewRecorder()
	h.StartSession(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, sessions.resolvedTokens)
	assert.Equal(t, []string{""}, sessions.ensuredTokens)
}

func TestStartSession_AuthenticatedUser(t *testing.T) {
	userID := "4b1c2a9e-1f7d-4f3b-9c8a-2d6e5f4a3b2c"
	sessions := &fakeSessionService{session: &repository.Session{
		Token:     "tok_user",
		UserID:    pgUUID(t, userID),
		ExpiresAt: pgtype.Timestamptz{Time: time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC), Valid: true},
	}}
	h := newCheckoutHandler(sessions, nil, nil, nil)

	req := jsonRequest(http.MethodPost, "/api/checkout/session", nil, domain.Owner{UserID: userID})
	rr := httptest.NewRecorder()
	h.StartSession(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp sessionResponse
	decodeBody(t, rr, &resp)
	assert.Equal(t, "tok_user", resp.Token)
	assert.Equal(t, userID, resp.UserID)

	assert.Equal(t, []string{userID}, sessions.resolvedUsers)
	assert.Empty(t, sessions.resolvedTokens)
	assert.Empty(t, sessions.ensuredTokens)
}

func TestCreateAddress(t *testing.T) {
	addresses := &fakeAddressService{address: &domain.Address{
		ID:      "9d8c7b6a-5e4f-4d3c-8b2a-1f0e9d8c7b6a",
		Name:    "Ada Lovelace",
		Line1:   "12 Analytical Way",
		City:    "London",
		Country: "GB",
	}}
	h := newCheckoutHandler(nil, addresses, nil, nil)

	req := jsonRequest(http.MethodPost, "/api/checkout/addresses", map[string]string{
		"name":    "Ada Lovelace",
		"line1":   "12 Analytical Way",
		"city":    "London",
		"country": "GB",
	}, domain.Owner{GuestID: "guest-1"})
	rr := httptest.NewRecorder()
	h.CreateAddress(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)

	var resp addressResponse
	decodeBody(t, rr, &resp)
	assert.Equal(t, "9d8c7b6a-5e4f-4d3c-8b2a-1f0e9d8c7b6a", resp.ID)
	assert.Equal(t, "Ada Lovelace", resp.Name)
	assert.Equal(t, "Ada Lovelace", addresses.created.Name)
	assert.Equal(t, "GB", addresses.created.Country)
}

func TestCreateAddress_Validation(t *testing.T) {
	h := newCheckoutHandler(nil, nil, nil, nil)

	req := jsonRequest(http.MethodPost, "/api/checkout/addresses", map[string]string{
		"line1": "12 Analytical Way",
		"email": "not-an-email",
	}, domain.Owner{GuestID: "guest-1"})
	rr := httptest.NewRecorder()
	h.CreateAddress(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)

	fields := errorFields(t, rr)
	assert.Contains(t, fields, "name")
	assert.Contains(t, fields, "city")
	assert.Contains(t, fields, "country")
	assert.Contains(t, fields, "email")
	assert.NotContains(t, fields, "line1")
}

func TestCreateOrder(t *testing.T) {
	orders := &fakeOrderService{detail: sampleDetail(t)}
	h := newCheckoutHandler(nil, nil, orders, nil)

	req := jsonRequest(http.MethodPost, "/api/checkout/orders", map[string]interface{}{
		"items": []map[string]interface{}{{
			"productId":      "prod_editor",
			"productName":    "Editor Pro",
			"quantity":       2,
			"interval":       "monthly",
			"basePriceCents": 5000,
		}},
		"billingAddressId": "9d8c7b6a-5e4f-4d3c-8b2a-1f0e9d8c7b6a",
		"paymentIntentId":  "pi_123",
	}, domain.Owner{GuestID: "guest-1"})
	rr := httptest.NewRecorder()
	h.CreateOrder(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var resp orderResponse
	decodeBody(t, rr, &resp)
	assert.Equal(t, "INV-20260815-K7QX", resp.InvoiceNumber)
	assert.Equal(t, int64(12000), resp.TotalCents)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, int64(5000), resp.Items[0].UnitPriceCents)

	cmd := orders.createCmd
	assert.Equal(t, "guest-1", cmd.Owner.GuestID)
	assert.Equal(t, "pi_123", cmd.PaymentIntentID)
	require.Len(t, cmd.Items, 1)
	assert.Equal(t, int32(2), cmd.Items[0].Quantity)
	assert.Equal(t, domain.IntervalMonthly, cmd.Items[0].Interval)
}

func TestCreateOrder_Validation(t *testing.T) {
	tests := []struct {
		name   string
		body   map[string]interface{}
		fields []string
	}{
		{
			name:   "missing everything",
			body:   map[string]interface{}{},
			fields: []string{"items", "billingAddressId", "paymentIntentId"},
		},
		{
			name: "bad interval and quantity",
			body: map[string]interface{}{
				"items": []map[string]interface{}{{
					"productId":      "prod_editor",
					"productName":    "Editor Pro",
					"quantity":       0,
					"interval":       "weekly",
					"basePriceCents": 5000,
				}},
				"billingAddressId": "9d8c7b6a-5e4f-4d3c-8b2a-1f0e9d8c7b6a",
				"paymentIntentId":  "pi_123",
			},
			fields: []string{"items[0].quantity", "items[0].interval"},
		},
		{
			name: "malformed address id",
			body: map[string]interface{}{
				"items": []map[string]interface{}{{
					"productId":      "prod_editor",
					"productName":    "Editor Pro",
					"quantity":       1,
					"interval":       "monthly",
					"basePriceCents": 5000,
				}},
				"billingAddressId": "not-a-uuid",
				"paymentIntentId":  "pi_123",
			},
			fields: []string{"billingAddressId"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orders := &fakeOrderService{}
			h := newCheckoutHandler(nil, nil, orders, nil)

			req := jsonRequest(http.MethodPost, "/api/checkout/orders", tt.body, domain.Owner{GuestID: "guest-1"})
			rr := httptest.NewRecorder()
			h.CreateOrder(rr, req)

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Empty(t, orders.createCmd.PaymentIntentID, "service must not be reached")

			fields := errorFields(t, rr)
			for _, f := range tt.fields {
				assert.Contains(t, fields, f)
			}
		})
	}
}

func TestCreateOrder_InvalidJSON(t *testing.T) {
	h := newCheckoutHandler(nil, nil, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/checkout/orders", bytes.NewReader([]byte("{broken")))
	req.Header.Set("Accept", "application/json")
	rr := httptest.NewRecorder()
	h.CreateOrder(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCreateOrder_ServiceError(t *testing.T) {
	orders := &fakeOrderService{err: domain.ErrAddressNotFound}
	h := newCheckoutHandler(nil, nil, orders, nil)

	req := jsonRequest(http.MethodPost, "/api/checkout/orders", map[string]interface{}{
		"items": []map[string]interface{}{{
			"productId":      "prod_editor",
			"productName":    "Editor Pro",
			"quantity":       1,
			"interval":       "monthly",
			"basePriceCents": 5000,
		}},
		"billingAddressId": "9d8c7b6a-5e4f-4d3c-8b2a-1f0e9d8c7b6a",
		"paymentIntentId":  "pi_123",
	}, domain.Owner{GuestID: "guest-1"})
	rr := httptest.NewRecorder()
	h.CreateOrder(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCreatePaymentIntent(t *testing.T) {
	payments := &fakePaymentService{intent: &billing.PaymentIntent{
		ID:           "pi_123",
		ClientSecret: "pi_123_secret_xyz",
		AmountCents:  12000,
		Currency:     "usd",
		Status:       "requires_payment_method",
	}}
	h := newCheckoutHandler(nil, nil, nil, payments)

	req := jsonRequest(http.MethodPost, "/api/checkout/payment-intent", map[string]interface{}{
		"amountCents": 12000,
	}, domain.Owner{GuestID: "guest-1"})
	rr := httptest.NewRecorder()
	h.CreatePaymentIntent(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)

	var resp intentResponse
	decodeBody(t, rr, &resp)
	assert.Equal(t, "pi_123", resp.ID)
	assert.Equal(t, "pi_123_secret_xyz", resp.ClientSecret)
	assert.Equal(t, int64(12000), payments.cmd.AmountCents)
	assert.Equal(t, "guest-1", payments.cmd.Owner.GuestID)
}

func TestCreatePaymentIntent_Validation(t *testing.T) {
	h := newCheckoutHandler(nil, nil, nil, nil)

	req := jsonRequest(http.MethodPost, "/api/checkout/payment-intent", map[string]interface{}{
		"amountCents": 0,
		"currency":    "dollars",
	}, domain.Owner{GuestID: "guest-1"})
	rr := httptest.NewRecorder()
	h.CreatePaymentIntent(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)

	fields := errorFields(t, rr)
	assert.Contains(t, fields, "amountCents")
	assert.Contains(t, fields, "currency")
}
