package domain

// Billing intervals a product can be sold on.
const (
	IntervalMonthly    = "monthly"
	IntervalYearly     = "yearly"
	IntervalPerUser    = "per-user"
	IntervalPerMachine = "per-machine"
)

// Cart-related domain errors.
var (
	ErrInvalidQuantity = &Error{Code: EINVALID, Message: "Quantity must be greater than 0"}
	ErrInvalidInterval = &Error{Code: EINVALID, Message: "Unknown billing interval"}
	ErrInvalidTotal    = &Error{Code: EINVALID, Message: "Order total must be greater than 0"}
)

// ValidInterval reports whether interval is one of the supported billing intervals.
func ValidInterval(interval string) bool {
	switch interval {
	case IntervalMonthly, IntervalYearly, IntervalPerUser, IntervalPerMachine:
		return true
	}
	return false
}

// CartItem is one line of a submitted cart. Prices are integer minor units
// (cents); formatting to decimal strings happens only at the edges.
type CartItem struct {
	ProductID      string
	ProductName    string
	Quantity       int32
	Interval       string
	BasePriceCents int64
	DurationMonths int32
}

// PricedItem is a cart line after pricing: the effective unit price reflects
// the billing interval and the line total is what the customer owes for it.
type PricedItem struct {
	CartItem
	UnitPriceCents int64
	LineTotalCents int64
}

// CartTotals is the priced breakdown of a cart. Total is always
// Subtotal + Tax; the three are frozen together when an order is created.
type CartTotals struct {
	Items         []PricedItem
	SubtotalCents int64
	TaxCents      int64
	TotalCents    int64
}
