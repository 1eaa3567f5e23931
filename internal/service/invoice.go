package service

import (
	"bytes"
	"context"
	"embed"
	"html/template"
	"log/slog"

	"github.com/arverne/softsell/internal/domain"
	"github.com/arverne/softsell/internal/pricing"
)

//go:embed templates/invoice.html
var invoiceTemplates embed.FS

type invoiceService struct {
	addresses domain.AddressService
	logger    *slog.Logger
	tmpl      *template.Template
}

// NewInvoiceService renders invoice documents. Rendering is deterministic
// for a given order: the same order produces the same bytes.
func NewInvoiceService(addresses domain.AddressService, logger *slog.Logger) (domain.InvoiceService, error) {
	tmpl, err := template.ParseFS(invoiceTemplates, "templates/invoice.html")
	if err != nil {
		return nil, err
	}
	return &invoiceService{addresses: addresses, logger: logger, tmpl: tmpl}, nil
}

type invoiceLine struct {
	ProductName string
	Quantity    int32
	Interval    string
	UnitPrice   string
	LineTotal   string
}

type invoiceData struct {
	InvoiceNumber string
	OrderDate     string
	Status        string
	BillTo        domain.Address
	Lines         []invoiceLine
	Subtotal      string
	Tax           string
	Total         string
}

// GenerateInvoice renders the invoice document for an order. The displayed
// tax is total minus subtotal, which by construction is what was actually
// charged; a stored tax figure that disagrees is logged, not rendered.
func (s *invoiceService) GenerateInvoice(ctx context.Context, detail *domain.OrderDetail) ([]byte, error) {
	const op = "invoice.generate"

	if detail == nil {
		return nil, domain.Invalid(op, "order detail is required")
	}
	order := detail.Order

	displayedTax := order.TotalCents - order.SubtotalCents
	if displayedTax != order.TaxCents {
		s.logger.Error("stored tax disagrees with charged tax",
			"invoice_number", order.InvoiceNumber,
			"stored_tax_cents", order.TaxCents,
			"charged_tax_cents", displayedTax)
	}

	billTo := domain.Address{}
	if addr, err := s.addresses.GetAddress(ctx, uuidString(order.BillingAddressID)); err == nil {
		billTo = *addr
	} else {
		s.logger.Warn("invoice rendered without billing identity",
			"invoice_number", order.InvoiceNumber, "error", err)
	}

	data := invoiceData{
		InvoiceNumber: order.InvoiceNumber,
		OrderDate:     order.OrderDate.Time.UTC().Format("January 2, 2006"),
		Status:        order.Status,
		BillTo:        billTo,
		Subtotal:      pricing.FormatCents(order.SubtotalCents),
		Tax:           pricing.FormatCents(displayedTax),
		Total:         pricing.FormatCents(order.TotalCents),
	}
	for _, item := range detail.Items {
		data.Lines = append(data.Lines, invoiceLine{
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			Interval:    item.BillingInterval,
			UnitPrice:   pricing.FormatCents(item.UnitPriceCents),
			LineTotal:   pricing.FormatCents(lineTotal(item.UnitPriceCents, item.Quantity, item.BillingInterval)),
		})
	}

	var buf bytes.Buffer
	if err := s.tmpl.Execute(&buf, data); err != nil {
		return nil, domain.Internal(err, op, "failed to render invoice")
	}
	return buf.Bytes(), nil
}

// lineTotal reconstructs a line's charge from its immutable unit price.
// Seat-style intervals already folded quantity into the unit price.
func lineTotal(unitPriceCents int64, quantity int32, interval string) int64 {
	switch interval {
	case domain.IntervalPerUser, domain.IntervalPerMachine:
		return unitPriceCents
	default:
		return unitPriceCents * int64(quantity)
	}
}
