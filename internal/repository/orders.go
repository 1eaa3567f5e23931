package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, invoice_number, order_date, status, subtotal_cents, tax_cents, total_cents, currency,
	user_id, guest_id, billing_address_id, payment_intent_id, payment_brand, payment_last4, failure_reason,
	created_at, updated_at`

func scanOrder(row interface{ Scan(dest ...any) error }) (Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.InvoiceNumber, &o.OrderDate, &o.Status,
		&o.SubtotalCents, &o.TaxCents, &o.TotalCents, &o.Currency,
		&o.UserID, &o.GuestID, &o.BillingAddressID, &o.PaymentIntentID,
		&o.PaymentBrand, &o.PaymentLast4, &o.FailureReason,
		&o.CreatedAt, &o.UpdatedAt,
	)
	return o, err
}

const createOrder = `
INSERT INTO orders (
	invoice_number, status, subtotal_cents, tax_cents, total_cents, currency,
	user_id, guest_id, billing_address_id, payment_intent_id
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING ` + orderColumns

type CreateOrderParams struct {
	InvoiceNumber    string
	Status           string
	SubtotalCents    int64
	TaxCents         int64
	TotalCents       int64
	Currency         string
	UserID           pgtype.UUID
	GuestID          pgtype.Text
	BillingAddressID pgtype.UUID
	PaymentIntentID  pgtype.Text
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, createOrder,
		arg.InvoiceNumber, arg.Status, arg.SubtotalCents, arg.TaxCents, arg.TotalCents, arg.Currency,
		arg.UserID, arg.GuestID, arg.BillingAddressID, arg.PaymentIntentID,
	)
	return scanOrder(row)
}

const getOrder = `
SELECT ` + orderColumns + `
FROM orders
WHERE id = $1
`

func (q *Queries) GetOrder(ctx context.Context, id pgtype.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder, id))
}

const getOrderByInvoiceNumber = `
SELECT ` + orderColumns + `
FROM orders
WHERE invoice_number = $1
`

func (q *Queries) GetOrderByInvoiceNumber(ctx context.Context, invoiceNumber string) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderByInvoiceNumber, invoiceNumber))
}

const getOrderByPaymentIntentID = `
SELECT ` + orderColumns + `
FROM orders
WHERE payment_intent_id = $1
`

func (q *Queries) GetOrderByPaymentIntentID(ctx context.Context, paymentIntentID pgtype.Text) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderByPaymentIntentID, paymentIntentID))
}

const listOrdersForUser = `
SELECT ` + orderColumns + `
FROM orders
WHERE user_id = $1
ORDER BY order_date DESC
`

func (q *Queries) ListOrdersForUser(ctx context.Context, userID pgtype.UUID) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrdersForUser, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

const listOrdersForGuest = `
SELECT ` + orderColumns + `
FROM orders
WHERE guest_id = $1
ORDER BY order_date DESC
`

func (q *Queries) ListOrdersForGuest(ctx context.Context, guestID pgtype.Text) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrdersForGuest, guestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

const transitionOrderStatus = `
UPDATE orders
SET status = $3, updated_at = now()
WHERE id = $1 AND status = $2
RETURNING ` + orderColumns

type TransitionOrderStatusParams struct {
	ID         pgtype.UUID
	FromStatus string
	ToStatus   string
}

// TransitionOrderStatus updates status only when the row is still in the
// expected state. A pgx.ErrNoRows result means the precondition failed, not
// that the order is missing; callers disambiguate with a follow-up read.
func (q *Queries) TransitionOrderStatus(ctx context.Context, arg TransitionOrderStatusParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, transitionOrderStatus, arg.ID, arg.FromStatus, arg.ToStatus))
}

const completeOrder = `
UPDATE orders
SET status = 'COMPLETED', updated_at = now()
WHERE id = $1 AND status NOT IN ('COMPLETED', 'CANCELLED', 'REFUNDED')
RETURNING ` + orderColumns

// CompleteOrder moves an order to COMPLETED unless it already reached a
// terminal state. Replayed webhooks hit the status guard and get no row.
func (q *Queries) CompleteOrder(ctx context.Context, id pgtype.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, completeOrder, id))
}

const setOrderFailureReason = `
UPDATE orders
SET failure_reason = $2, updated_at = now()
WHERE id = $1
`

type SetOrderFailureReasonParams struct {
	ID            pgtype.UUID
	FailureReason pgtype.Text
}

func (q *Queries) SetOrderFailureReason(ctx context.Context, arg SetOrderFailureReasonParams) error {
	_, err := q.db.Exec(ctx, setOrderFailureReason, arg.ID, arg.FailureReason)
	return err
}

const setOrderPaymentCard = `
UPDATE orders
SET payment_brand = $2, payment_last4 = $3, updated_at = now()
WHERE id = $1
`

type SetOrderPaymentCardParams struct {
	ID           pgtype.UUID
	PaymentBrand pgtype.Text
	PaymentLast4 pgtype.Text
}

func (q *Queries) SetOrderPaymentCard(ctx context.Context, arg SetOrderPaymentCardParams) error {
	_, err := q.db.Exec(ctx, setOrderPaymentCard, arg.ID, arg.PaymentBrand, arg.PaymentLast4)
	return err
}

const createOrderItem = `
INSERT INTO order_items (
	order_id, product_id, product_name, quantity, billing_interval,
	subscription_status, unit_price_cents, duration_months
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id, order_id, product_id, product_name, quantity, billing_interval,
	subscription_status, unit_price_cents, duration_months, renewal_date, created_at
`

type CreateOrderItemParams struct {
	OrderID            pgtype.UUID
	ProductID          string
	ProductName        string
	Quantity           int32
	BillingInterval    string
	SubscriptionStatus string
	UnitPriceCents     int64
	DurationMonths     int32
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, createOrderItem,
		arg.OrderID, arg.ProductID, arg.ProductName, arg.Quantity, arg.BillingInterval,
		arg.SubscriptionStatus, arg.UnitPriceCents, arg.DurationMonths,
	)
	var i OrderItem
	err := row.Scan(
		&i.ID, &i.OrderID, &i.ProductID, &i.ProductName, &i.Quantity, &i.BillingInterval,
		&i.SubscriptionStatus, &i.UnitPriceCents, &i.DurationMonths, &i.RenewalDate, &i.CreatedAt,
	)
	return i, err
}

const listOrderItems = `
SELECT id, order_id, product_id, product_name, quantity, billing_interval,
	subscription_status, unit_price_cents, duration_months, renewal_date, created_at
FROM order_items
WHERE order_id = $1
ORDER BY created_at, id
`

func (q *Queries) ListOrderItems(ctx context.Context, orderID pgtype.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, listOrderItems, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []OrderItem
	for rows.Next() {
		var i OrderItem
		if err := rows.Scan(
			&i.ID, &i.OrderID, &i.ProductID, &i.ProductName, &i.Quantity, &i.BillingInterval,
			&i.SubscriptionStatus, &i.UnitPriceCents, &i.DurationMonths, &i.RenewalDate, &i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const activateOrderItems = `
UPDATE order_items
SET subscription_status = 'ACTIVE',
	renewal_date = now() + make_interval(months => duration_months)
WHERE order_id = $1 AND subscription_status = 'PENDING'
`

// ActivateOrderItems flips every pending subscription on the order to ACTIVE
// and stamps the renewal date from each item's paid duration.
func (q *Queries) ActivateOrderItems(ctx context.Context, orderID pgtype.UUID) (int64, error) {
	tag, err := q.db.Exec(ctx, activateOrderItems, orderID)
	return tag.RowsAffected(), err
}
