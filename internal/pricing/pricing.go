// Package pricing computes cart totals. All arithmetic is integer minor
// units (cents); decimal strings exist only at the rendering edge.
package pricing

import (
	"fmt"

	"github.com/arverne/softsell/internal/domain"
)

// TaxRatePercent is the flat tax rate applied to every order subtotal.
const TaxRatePercent = 20

// Calculate prices a submitted cart: per-line effective unit prices, the
// subtotal, tax and grand total. The three totals are computed together and
// are what gets frozen onto the order row.
func Calculate(items []domain.CartItem) (*domain.CartTotals, error) {
	const op = "pricing.calculate"

	if len(items) == 0 {
		return nil, domain.ErrEmptyCart
	}

	totals := &domain.CartTotals{
		Items: make([]domain.PricedItem, 0, len(items)),
	}

	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, domain.ErrInvalidQuantity
		}
		if item.BasePriceCents <= 0 {
			return nil, domain.Errorf(domain.EINVALID, op, "non-positive price for product %s", item.ProductID)
		}

		unit, line, err := priceLine(item)
		if err != nil {
			return nil, err
		}

		totals.Items = append(totals.Items, domain.PricedItem{
			CartItem:       item,
			UnitPriceCents: unit,
			LineTotalCents: line,
		})
		totals.SubtotalCents += line
	}

	totals.TaxCents = Tax(totals.SubtotalCents)
	totals.TotalCents = totals.SubtotalCents + totals.TaxCents

	if totals.TotalCents <= 0 {
		return nil, domain.ErrInvalidTotal
	}
	return totals, nil
}

// priceLine derives the effective unit price and line total for one item.
//
// Seat-style intervals (per-user, per-machine) fold the quantity into the
// unit price: the unit price IS the seat count times the base rate, and the
// line total equals it. Multiplying by quantity again would double-charge.
func priceLine(item domain.CartItem) (unit, line int64, err error) {
	qty := int64(item.Quantity)

	switch item.Interval {
	case domain.IntervalMonthly:
		unit = item.BasePriceCents
		line = unit * qty
	case domain.IntervalYearly:
		unit = item.BasePriceCents * 12
		line = unit * qty
	case domain.IntervalPerUser, domain.IntervalPerMachine:
		unit = item.BasePriceCents * qty
		line = unit
	default:
		return 0, 0, domain.Errorf(domain.EINVALID, "pricing.calculate", "unknown billing interval: %s", item.Interval)
	}
	return unit, line, nil
}

// Tax returns the tax owed on a subtotal, rounded half-up to the cent.
func Tax(subtotalCents int64) int64 {
	return (subtotalCents*TaxRatePercent + 50) / 100
}

// FormatCents renders minor units as a two-decimal string, e.g. 71986 -> "719.86".
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
