package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/arverne/softsell/internal/billing"
	"github.com/arverne/softsell/internal/domain"
	"github.com/arverne/softsell/internal/repository"
	"github.com/jackc/pgx/v5"
)

type paymentService struct {
	store           Store
	billingProvider billing.Provider
	logger          *slog.Logger
}

// NewPaymentService coordinates payment intents with the billing provider.
func NewPaymentService(store Store, billingProvider billing.Provider, logger *slog.Logger) domain.PaymentService {
	return &paymentService{
		store:           store,
		billingProvider: billingProvider,
		logger:          logger,
	}
}

// CreateIntent creates a payment intent for the given amount. The amount is
// the already-rounded integer total in cents; it is never re-derived here.
func (s *paymentService) CreateIntent(ctx context.Context, cmd domain.CreateIntentCommand) (*billing.PaymentIntent, error) {
	const op = "payment.create_intent"

	if err := cmd.Owner.Validate(); err != nil {
		return nil, err
	}
	if cmd.AmountCents <= 0 {
		return nil, domain.Invalid(op, "amount must be greater than 0")
	}
	currency := cmd.Currency
	if currency == "" {
		currency = "usd"
	}

	params := billing.CreatePaymentIntentParams{
		AmountCents:    cmd.AmountCents,
		Currency:       currency,
		IdempotencyKey: cmd.IdempotencyKey,
		Metadata:       map[string]string{},
	}
	if cmd.OrderID != "" {
		params.Metadata["order_id"] = cmd.OrderID
	}

	if cmd.Owner.IsGuest() {
		if cmd.PaymentMethodID != "" {
			return nil, domain.Invalid(op, "guests cannot use stored payment methods")
		}
		params.Metadata["guest_id"] = cmd.Owner.GuestID
	} else {
		if cmd.PaymentMethodID == "" {
			return nil, domain.ErrPaymentMethodRequired
		}
		method, err := s.resolveOwnedMethod(ctx, cmd.PaymentMethodID, cmd.Owner.UserID)
		if err != nil {
			return nil, err
		}
		params.PaymentMethodID = method.ProviderRef
		params.Metadata["user_id"] = cmd.Owner.UserID
	}

	intent, err := s.billingProvider.CreatePaymentIntent(ctx, params)
	if err != nil {
		return nil, mapBillingError(err, op)
	}

	s.logger.Info("payment intent created",
		"payment_intent_id", intent.ID,
		"amount_cents", intent.AmountCents,
		"guest", cmd.Owner.IsGuest())
	return intent, nil
}

// resolveOwnedMethod loads a stored payment method and proves the caller
// owns it. A method belonging to someone else is a hard 403, not a retry.
func (s *paymentService) resolveOwnedMethod(ctx context.Context, paymentMethodID, userID string) (*repository.PaymentMethod, error) {
	const op = "payment.resolve_method"

	methodID, err := parseUUID(paymentMethodID)
	if err != nil {
		return nil, domain.Invalid(op, "invalid payment method id")
	}

	method, err := s.store.GetPaymentMethod(ctx, methodID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrPaymentMethodNotFound
	}
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load payment method")
	}

	if !method.UserID.Valid || uuidString(method.UserID) != userID {
		s.logger.Warn("payment method ownership mismatch",
			"payment_method_id", paymentMethodID,
			"caller_user_id", userID)
		return nil, domain.ErrPaymentMethodOwner
	}
	return &method, nil
}

// mapBillingError translates provider failures into the domain taxonomy:
// caller faults (declines, bad parameters) keep the processor's message and
// surface as 4xx; everything else is masked behind a 5xx.
func mapBillingError(err error, op string) error {
	if errors.Is(err, billing.ErrAmountTooSmall) {
		return domain.Invalid(op, "amount is below the processor minimum")
	}

	var sErr *billing.StripeError
	if errors.As(err, &sErr) && sErr.IsCallerFault() {
		if sErr.IsDeclined() {
			return domain.Errorf(domain.EPAYMENT, op, "payment declined: %s", sErr.Message)
		}
		return domain.Errorf(domain.EINVALID, op, "payment request rejected: %s", sErr.Message)
	}
	return domain.Internal(err, op, "payment provider error")
}
