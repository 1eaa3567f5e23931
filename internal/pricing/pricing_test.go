package pricing

import (
	"testing"

	"github.com/arverne/softsell/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func item(interval string, qty int32, baseCents int64) domain.CartItem {
	return domain.CartItem{
		ProductID:      "prod_1",
		ProductName:    "Endpoint Shield",
		Quantity:       qty,
		Interval:       interval,
		BasePriceCents: baseCents,
	}
}

func TestCalculate_MonthlyTwoSeats(t *testing.T) {
	// Two monthly licenses at $50.00: subtotal 100.00, tax 20.00, total 120.00.
	totals, err := Calculate([]domain.CartItem{item(domain.IntervalMonthly, 2, 5000)})
	require.NoError(t, err)

	assert.Equal(t, int64(10000), totals.SubtotalCents)
	assert.Equal(t, int64(2000), totals.TaxCents)
	assert.Equal(t, int64(12000), totals.TotalCents)
	assert.Equal(t, int64(5000), totals.Items[0].UnitPriceCents)
	assert.Equal(t, int64(10000), totals.Items[0].LineTotalCents)
}

func TestCalculate_YearlyPrepaysTwelveMonths(t *testing.T) {
	// Yearly at $49.99/mo: unit 599.88, tax 119.98, total 719.86.
	totals, err := Calculate([]domain.CartItem{item(domain.IntervalYearly, 1, 4999)})
	require.NoError(t, err)

	assert.Equal(t, int64(59988), totals.Items[0].UnitPriceCents)
	assert.Equal(t, int64(59988), totals.SubtotalCents)
	assert.Equal(t, int64(11998), totals.TaxCents)
	assert.Equal(t, int64(71986), totals.TotalCents)
	assert.Equal(t, "719.86", FormatCents(totals.TotalCents))
}

func TestCalculate_SeatIntervalsFoldQuantityIntoUnit(t *testing.T) {
	for _, interval := range []string{domain.IntervalPerUser, domain.IntervalPerMachine} {
		t.Run(interval, func(t *testing.T) {
			totals, err := Calculate([]domain.CartItem{item(interval, 5, 1200)})
			require.NoError(t, err)

			// Unit price carries the seat count; line total must not
			// multiply by quantity a second time.
			assert.Equal(t, int64(6000), totals.Items[0].UnitPriceCents)
			assert.Equal(t, int64(6000), totals.Items[0].LineTotalCents)
			assert.Equal(t, int64(6000), totals.SubtotalCents)
		})
	}
}

func TestCalculate_MixedCart(t *testing.T) {
	totals, err := Calculate([]domain.CartItem{
		item(domain.IntervalMonthly, 2, 5000),  // 10000
		item(domain.IntervalYearly, 1, 4999),   // 59988
		item(domain.IntervalPerUser, 3, 1000),  // 3000
	})
	require.NoError(t, err)

	assert.Equal(t, int64(72988), totals.SubtotalCents)
	assert.Equal(t, int64(14598), totals.TaxCents) // round(14597.6)
	assert.Equal(t, totals.SubtotalCents+totals.TaxCents, totals.TotalCents)
}

func TestCalculate_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		items    []domain.CartItem
		wantCode string
	}{
		{"empty cart", nil, domain.EINVALID},
		{"zero quantity", []domain.CartItem{item(domain.IntervalMonthly, 0, 5000)}, domain.EINVALID},
		{"negative quantity", []domain.CartItem{item(domain.IntervalMonthly, -1, 5000)}, domain.EINVALID},
		{"zero price", []domain.CartItem{item(domain.IntervalMonthly, 1, 0)}, domain.EINVALID},
		{"unknown interval", []domain.CartItem{item("weekly", 1, 5000)}, domain.EINVALID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Calculate(tt.items)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, domain.ErrorCode(err))
		})
	}
}

func TestTax_RoundsHalfUp(t *testing.T) {
	tests := []struct {
		subtotal int64
		want     int64
	}{
		{10000, 2000},  // exact
		{59988, 11998}, // 11997.6 rounds up
		{1, 0},         // 0.2 rounds down
		{3, 1},         // 0.6 rounds up
		{13, 3},        // 2.6 rounds up
		{12, 2},        // 2.4 rounds down
	}
	for _, tt := range tests {
		assert.Equalf(t, tt.want, Tax(tt.subtotal), "Tax(%d)", tt.subtotal)
	}
}

func TestFormatCents(t *testing.T) {
	assert.Equal(t, "120.00", FormatCents(12000))
	assert.Equal(t, "0.05", FormatCents(5))
	assert.Equal(t, "719.86", FormatCents(71986))
	assert.Equal(t, "-3.21", FormatCents(-321))
}
