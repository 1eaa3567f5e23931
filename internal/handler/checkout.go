package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/arverne/softsell/internal/cookie"
	"github.com/arverne/softsell/internal/domain"
	"github.com/arverne/softsell/internal/middleware"
	"github.com/arverne/softsell/internal/repository"
	"github.com/arverne/softsell/internal/telemetry"
)

// CheckoutHandler serves the checkout API: sessions, billing addresses,
// order assembly and payment intents.
type CheckoutHandler struct {
	sessions  domain.SessionService
	addresses domain.AddressService
	orders    domain.OrderService
	payments  domain.PaymentService
	metrics   *telemetry.BusinessMetrics
	validate  *validator.Validate
	logger    *slog.Logger
}

// NewCheckoutHandler creates a new checkout handler.
func NewCheckoutHandler(
	sessions domain.SessionService,
	addresses domain.AddressService,
	orders domain.OrderService,
	payments domain.PaymentService,
	metrics *telemetry.BusinessMetrics,
	logger *slog.Logger,
) *CheckoutHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CheckoutHandler{
		sessions:  sessions,
		addresses: addresses,
		orders:    orders,
		payments:  payments,
		metrics:   metrics,
		validate:  NewValidator(),
		logger:    logger,
	}
}

type startSessionRequest struct {
	Token string `json:"token"`
}

type sessionResponse struct {
	Token     string `json:"token"`
	UserID    string `json:"userId,omitempty"`
	ExpiresAt string `json:"expiresAt"`
}

// StartSession handles POST /api/checkout/session. An authenticated caller
// gets their most recent live session back, or a freshly issued one. An
// anonymous caller's token, from the body or the session cookie, is resolved
// first; a missing, unknown or expired token mints a new anonymous session
// under a new token. Resolution applies the sliding expiry refresh.
func (h *CheckoutHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	const op = "checkout.session"

	var session *repository.Session
	var err error

	if owner := middleware.GetOwner(r.Context()); owner.UserID != "" {
		session, err = h.sessions.ResolveUser(r.Context(), owner.UserID)
	} else {
		var req startSessionRequest
		if r.ContentLength != 0 {
			if err := decodeJSON(r, op, &req); err != nil {
				ErrorResponse(w, r, err)
				return
			}
		}
		if req.Token == "" {
			req.Token = cookie.Get(r, cookie.SessionCookieName)
		}
		session, err = h.resolveAnonymous(r.Context(), req.Token)
	}
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	if session.ExpiresAt.Valid {
		cookie.SetSession(w, r, session.Token, session.ExpiresAt.Time)
	}

	respondJSON(w, http.StatusOK, sessionResponse{
		Token:     session.Token,
		UserID:    uuidString(session.UserID),
		ExpiresAt: timeString(session.ExpiresAt),
	})
}

// resolveAnonymous turns a client-supplied token into a live session. An
// unknown or expired token is not an error at this endpoint; the caller
// simply gets a new session and must persist the new token.
func (h *CheckoutHandler) resolveAnonymous(ctx context.Context, token string) (*repository.Session, error) {
	if token != "" {
		session, err := h.sessions.Resolve(ctx, token)
		if err == nil {
			return session, nil
		}
		if !errors.Is(err, domain.ErrSessionNotFound) && !errors.Is(err, domain.ErrSessionExpired) {
			return nil, err
		}
	}
	return h.sessions.EnsureAnonymous(ctx, "")
}

type createAddressRequest struct {
	Name       string `json:"name" validate:"required"`
	Line1      string `json:"line1" validate:"required"`
	Line2      string `json:"line2"`
	City       string `json:"city" validate:"required"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country" validate:"required"`
	Email      string `json:"email" validate:"omitempty,email"`
}

type addressResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
	Country    string `json:"country"`
	Email      string `json:"email,omitempty"`
}

// CreateAddress handles POST /api/checkout/addresses. The address is
// encrypted field-by-field before it is stored; the response echoes the
// submitted values together with the new id.
func (h *CheckoutHandler) CreateAddress(w http.ResponseWriter, r *http.Request) {
	const op = "checkout.address.create"

	var req createAddressRequest
	if err := decodeJSON(r, op, &req); err != nil {
		ErrorResponse(w, r, err)
		return
	}
	if err := validateRequest(h.validate, op, &req); err != nil {
		ValidationErrorResponse(w, r, err)
		return
	}

	address, err := h.addresses.CreateAddress(r.Context(), domain.AddressInput{
		Name:       req.Name,
		Line1:      req.Line1,
		Line2:      req.Line2,
		City:       req.City,
		State:      req.State,
		PostalCode: req.PostalCode,
		Country:    req.Country,
		Email:      req.Email,
	})
	if err != nil {
		if domain.IsValidationError(err) {
			ValidationErrorResponse(w, r, err)
			return
		}
		ErrorResponse(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, addressResponse{
		ID:         address.ID,
		Name:       address.Name,
		Line1:      address.Line1,
		Line2:      address.Line2,
		City:       address.City,
		State:      address.State,
		PostalCode: address.PostalCode,
		Country:    address.Country,
		Email:      address.Email,
	})
}

type createOrderItemRequest struct {
	ProductID      string `json:"productId" validate:"required"`
	ProductName    string `json:"productName" validate:"required"`
	Quantity       int32  `json:"quantity" validate:"required,gt=0"`
	Interval       string `json:"interval" validate:"required,oneof=monthly yearly per-user per-machine"`
	BasePriceCents int64  `json:"basePriceCents" validate:"required,gt=0"`
	DurationMonths int32  `json:"durationMonths" validate:"omitempty,gte=0"`
}

type createOrderRequest struct {
	Items            []createOrderItemRequest `json:"items" validate:"required,min=1,dive"`
	BillingAddressID string                   `json:"billingAddressId" validate:"required,uuid"`
	PaymentIntentID  string                   `json:"paymentIntentId" validate:"required"`
	PaymentMethodID  string                   `json:"paymentMethodId"`
}

// CreateOrder handles POST /api/checkout/orders. Prices the submitted cart,
// assigns an invoice number and persists the order atomically. Re-submitting
// the same payment intent returns the existing order.
func (h *CheckoutHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	const op = "checkout.order.create"

	owner := middleware.GetOwner(r.Context())

	var req createOrderRequest
	if err := decodeJSON(r, op, &req); err != nil {
		ErrorResponse(w, r, err)
		return
	}
	if err := validateRequest(h.validate, op, &req); err != nil {
		ValidationErrorResponse(w, r, err)
		return
	}

	items := make([]domain.CartItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = domain.CartItem{
			ProductID:      it.ProductID,
			ProductName:    it.ProductName,
			Quantity:       it.Quantity,
			Interval:       it.Interval,
			BasePriceCents: it.BasePriceCents,
			DurationMonths: it.DurationMonths,
		}
	}

	detail, err := h.orders.CreateOrder(r.Context(), domain.CreateOrderCommand{
		Owner:            owner,
		Items:            items,
		BillingAddressID: req.BillingAddressID,
		PaymentIntentID:  req.PaymentIntentID,
		PaymentMethodID:  req.PaymentMethodID,
	})
	if err != nil {
		if domain.IsValidationError(err) {
			ValidationErrorResponse(w, r, err)
			return
		}
		ErrorResponse(w, r, err)
		return
	}

	h.metrics.OrdersCreated.WithLabelValues(ownerType(owner)).Inc()
	h.metrics.OrderValue.Observe(float64(detail.Order.TotalCents))

	h.logger.Info("order created",
		"order_id", uuidString(detail.Order.ID),
		"invoice_number", detail.Order.InvoiceNumber,
		"total_cents", detail.Order.TotalCents,
		"request_id", middleware.GetRequestID(r.Context()),
	)

	respondJSON(w, http.StatusCreated, newOrderResponse(detail))
}

type createIntentRequest struct {
	AmountCents     int64  `json:"amountCents" validate:"required,gt=0"`
	Currency        string `json:"currency" validate:"omitempty,len=3"`
	OrderID         string `json:"orderId" validate:"omitempty,uuid"`
	PaymentMethodID string `json:"paymentMethodId"`
	IdempotencyKey  string `json:"idempotencyKey"`
}

type intentResponse struct {
	ID           string `json:"id"`
	ClientSecret string `json:"clientSecret"`
	AmountCents  int64  `json:"amountCents"`
	Currency     string `json:"currency"`
	Status       string `json:"status"`
}

// CreatePaymentIntent handles POST /api/checkout/payment-intent. Account
// owners must reference a stored payment method they own; guests get a bare
// intent and confirm card details client-side with the returned secret.
func (h *CheckoutHandler) CreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	const op = "checkout.intent.create"

	owner := middleware.GetOwner(r.Context())

	var req createIntentRequest
	if err := decodeJSON(r, op, &req); err != nil {
		ErrorResponse(w, r, err)
		return
	}
	if err := validateRequest(h.validate, op, &req); err != nil {
		ValidationErrorResponse(w, r, err)
		return
	}

	intent, err := h.payments.CreateIntent(r.Context(), domain.CreateIntentCommand{
		Owner:           owner,
		OrderID:         req.OrderID,
		AmountCents:     req.AmountCents,
		Currency:        req.Currency,
		PaymentMethodID: req.PaymentMethodID,
		IdempotencyKey:  req.IdempotencyKey,
	})
	if err != nil {
		if domain.IsValidationError(err) {
			ValidationErrorResponse(w, r, err)
			return
		}
		ErrorResponse(w, r, err)
		return
	}

	h.metrics.PaymentIntentsCreated.WithLabelValues(ownerType(owner)).Inc()

	respondJSON(w, http.StatusCreated, intentResponse{
		ID:           intent.ID,
		ClientSecret: intent.ClientSecret,
		AmountCents:  intent.AmountCents,
		Currency:     intent.Currency,
		Status:       intent.Status,
	})
}

func ownerType(owner domain.Owner) string {
	if owner.IsGuest() {
		return "guest"
	}
	return "user"
}
