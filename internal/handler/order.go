package handler

import (
	"log/slog"
	"net/http"

	"github.com/arverne/softsell/internal/domain"
	"github.com/arverne/softsell/internal/middleware"
)

// OrderHandler serves order retrieval and invoice documents.
type OrderHandler struct {
	orders   domain.OrderService
	invoices domain.InvoiceService
	logger   *slog.Logger
}

// NewOrderHandler creates a new order handler.
func NewOrderHandler(orders domain.OrderService, invoices domain.InvoiceService, logger *slog.Logger) *OrderHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OrderHandler{
		orders:   orders,
		invoices: invoices,
		logger:   logger,
	}
}

type orderItemResponse struct {
	ID                 string `json:"id"`
	ProductID          string `json:"productId"`
	ProductName        string `json:"productName"`
	Quantity           int32  `json:"quantity"`
	BillingInterval    string `json:"billingInterval"`
	SubscriptionStatus string `json:"subscriptionStatus"`
	UnitPriceCents     int64  `json:"unitPriceCents"`
	DurationMonths     int32  `json:"durationMonths"`
	RenewalDate        string `json:"renewalDate,omitempty"`
}

type orderResponse struct {
	ID               string              `json:"id"`
	InvoiceNumber    string              `json:"invoiceNumber"`
	OrderDate        string              `json:"orderDate"`
	Status           string              `json:"status"`
	SubtotalCents    int64               `json:"subtotalCents"`
	TaxCents         int64               `json:"taxCents"`
	TotalCents       int64               `json:"totalCents"`
	Currency         string              `json:"currency"`
	BillingAddressID string              `json:"billingAddressId,omitempty"`
	PaymentIntentID  string              `json:"paymentIntentId,omitempty"`
	PaymentBrand     string              `json:"paymentBrand,omitempty"`
	PaymentLast4     string              `json:"paymentLast4,omitempty"`
	FailureReason    string              `json:"failureReason,omitempty"`
	Items            []orderItemResponse `json:"items"`
}

func newOrderResponse(detail *domain.OrderDetail) orderResponse {
	items := make([]orderItemResponse, len(detail.Items))
	for i, it := range detail.Items {
		items[i] = orderItemResponse{
			ID:                 uuidString(it.ID),
			ProductID:          it.ProductID,
			ProductName:        it.ProductName,
			Quantity:           it.Quantity,
			BillingInterval:    it.BillingInterval,
			SubscriptionStatus: it.SubscriptionStatus,
			UnitPriceCents:     it.UnitPriceCents,
			DurationMonths:     it.DurationMonths,
			RenewalDate:        timeString(it.RenewalDate),
		}
	}
	return orderResponse{
		ID:               uuidString(detail.Order.ID),
		InvoiceNumber:    detail.Order.InvoiceNumber,
		OrderDate:        timeString(detail.Order.OrderDate),
		Status:           detail.Order.Status,
		SubtotalCents:    detail.Order.SubtotalCents,
		TaxCents:         detail.Order.TaxCents,
		TotalCents:       detail.Order.TotalCents,
		Currency:         detail.Order.Currency,
		BillingAddressID: uuidString(detail.Order.BillingAddressID),
		PaymentIntentID:  detail.Order.PaymentIntentID.String,
		PaymentBrand:     detail.Order.PaymentBrand.String,
		PaymentLast4:     detail.Order.PaymentLast4.String,
		FailureReason:    detail.Order.FailureReason.String,
		Items:            items,
	}
}

type orderSummaryResponse struct {
	ID            string `json:"id"`
	InvoiceNumber string `json:"invoiceNumber"`
	OrderDate     string `json:"orderDate"`
	Status        string `json:"status"`
	TotalCents    int64  `json:"totalCents"`
	Currency      string `json:"currency"`
}

// List handles GET /api/orders. Returns the caller's order history, newest
// first, as summaries; items come with the single-order endpoint.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	owner := middleware.GetOwner(r.Context())

	orders, err := h.orders.ListOrders(r.Context(), owner)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	summaries := make([]orderSummaryResponse, len(orders))
	for i, o := range orders {
		summaries[i] = orderSummaryResponse{
			ID:            uuidString(o.ID),
			InvoiceNumber: o.InvoiceNumber,
			OrderDate:     timeString(o.OrderDate),
			Status:        o.Status,
			TotalCents:    o.TotalCents,
			Currency:      o.Currency,
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"orders": summaries})
}

// Get handles GET /api/orders/{id}. The order is scoped to the caller's
// identity; someone else's order id reads as forbidden, not as absent.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	const op = "order.get"

	orderID := r.PathValue("id")
	if orderID == "" {
		ErrorResponse(w, r, domain.Errorf(domain.EINVALID, op, "Order ID required"))
		return
	}

	owner := middleware.GetOwner(r.Context())

	detail, err := h.orders.GetOrder(r.Context(), orderID, owner)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, newOrderResponse(detail))
}

// Invoice handles GET /api/orders/{id}/invoice. Renders the invoice
// document for the order and serves it as HTML.
func (h *OrderHandler) Invoice(w http.ResponseWriter, r *http.Request) {
	const op = "order.invoice"

	orderID := r.PathValue("id")
	if orderID == "" {
		ErrorResponse(w, r, domain.Errorf(domain.EINVALID, op, "Order ID required"))
		return
	}

	owner := middleware.GetOwner(r.Context())

	detail, err := h.orders.GetOrder(r.Context(), orderID, owner)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	h.serveInvoice(w, r, detail)
}

// InvoiceByNumber handles GET /api/invoices/{invoiceNumber}. Same document
// as the per-order route, looked up by the number printed on it.
func (h *OrderHandler) InvoiceByNumber(w http.ResponseWriter, r *http.Request) {
	const op = "order.invoice_by_number"

	invoiceNumber := r.PathValue("invoiceNumber")
	if invoiceNumber == "" {
		ErrorResponse(w, r, domain.Errorf(domain.EINVALID, op, "Invoice number required"))
		return
	}

	owner := middleware.GetOwner(r.Context())

	detail, err := h.orders.GetOrderByInvoiceNumber(r.Context(), invoiceNumber, owner)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	h.serveInvoice(w, r, detail)
}

func (h *OrderHandler) serveInvoice(w http.ResponseWriter, r *http.Request, detail *domain.OrderDetail) {
	doc, err := h.invoices.GenerateInvoice(r.Context(), detail)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="invoice-`+detail.Order.InvoiceNumber+`.html"`)
	w.WriteHeader(http.StatusOK)
	w.Write(doc)
}
