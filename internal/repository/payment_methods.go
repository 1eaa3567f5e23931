package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const createPaymentMethod = `
INSERT INTO payment_methods (user_id, provider_ref, brand, last4)
VALUES ($1, $2, $3, $4)
RETURNING id, user_id, provider_ref, brand, last4, created_at
`

type CreatePaymentMethodParams struct {
	UserID      pgtype.UUID
	ProviderRef string
	Brand       string
	Last4       string
}

func (q *Queries) CreatePaymentMethod(ctx context.Context, arg CreatePaymentMethodParams) (PaymentMethod, error) {
	row := q.db.QueryRow(ctx, createPaymentMethod, arg.UserID, arg.ProviderRef, arg.Brand, arg.Last4)
	var m PaymentMethod
	err := row.Scan(&m.ID, &m.UserID, &m.ProviderRef, &m.Brand, &m.Last4, &m.CreatedAt)
	return m, err
}

const getPaymentMethod = `
SELECT id, user_id, provider_ref, brand, last4, created_at
FROM payment_methods
WHERE id = $1
`

func (q *Queries) GetPaymentMethod(ctx context.Context, id pgtype.UUID) (PaymentMethod, error) {
	row := q.db.QueryRow(ctx, getPaymentMethod, id)
	var m PaymentMethod
	err := row.Scan(&m.ID, &m.UserID, &m.ProviderRef, &m.Brand, &m.Last4, &m.CreatedAt)
	return m, err
}
