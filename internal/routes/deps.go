// Package routes mounts the HTTP surface: checkout API, webhooks and
// system endpoints.
package routes

import (
	"github.com/arverne/softsell/internal/handler"
	"github.com/arverne/softsell/internal/handler/webhook"
)

// APIDeps contains handlers for the checkout API routes.
type APIDeps struct {
	Checkout *handler.CheckoutHandler
	Orders   *handler.OrderHandler
}

// WebhookDeps contains handlers for payment provider callbacks.
type WebhookDeps struct {
	Stripe *webhook.StripeHandler
}

// SystemDeps contains handlers for operational endpoints.
type SystemDeps struct {
	Health *handler.HealthHandler
}
