package routes

import (
	"github.com/arverne/softsell/internal/middleware"
	"github.com/arverne/softsell/internal/router"
)

// RegisterAPIRoutes registers the checkout API. Session bootstrap is open;
// everything that reads or writes an order requires a user or guest
// identity.
func RegisterAPIRoutes(r *router.Router, deps APIDeps) {
	r.Post("/api/checkout/session", deps.Checkout.StartSession)

	owned := r.Group(middleware.RequireOwner())
	owned.Post("/api/checkout/addresses", deps.Checkout.CreateAddress)
	owned.Post("/api/checkout/orders", deps.Checkout.CreateOrder)
	owned.Post("/api/checkout/payment-intent", deps.Checkout.CreatePaymentIntent)
	owned.Get("/api/orders", deps.Orders.List)
	owned.Get("/api/orders/{id}", deps.Orders.Get)
	owned.Get("/api/orders/{id}/invoice", deps.Orders.Invoice)
	owned.Get("/api/invoices/{invoiceNumber}", deps.Orders.InvoiceByNumber)
}
