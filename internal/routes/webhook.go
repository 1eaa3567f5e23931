package routes

import (
	"github.com/arverne/softsell/internal/router"
)

// RegisterWebhookRoutes registers payment provider callback routes.
//
// Webhook routes carry no identity middleware; each handler authenticates
// the request by verifying the provider's signature over the raw body.
func RegisterWebhookRoutes(r *router.Router, deps WebhookDeps) {
	r.Post("/webhooks/stripe", deps.Stripe.HandleWebhook)
}
