package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const createAddress = `
INSERT INTO addresses (name, line1, line2, city, state, postal_code, country, email)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id, name, line1, line2, city, state, postal_code, country, email, created_at
`

type CreateAddressParams struct {
	Name       string
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string
	Email      string
}

func (q *Queries) CreateAddress(ctx context.Context, arg CreateAddressParams) (Address, error) {
	row := q.db.QueryRow(ctx, createAddress,
		arg.Name, arg.Line1, arg.Line2, arg.City, arg.State, arg.PostalCode, arg.Country, arg.Email,
	)
	var a Address
	err := row.Scan(&a.ID, &a.Name, &a.Line1, &a.Line2, &a.City, &a.State, &a.PostalCode, &a.Country, &a.Email, &a.CreatedAt)
	return a, err
}

const getAddress = `
SELECT id, name, line1, line2, city, state, postal_code, country, email, created_at
FROM addresses
WHERE id = $1
`

func (q *Queries) GetAddress(ctx context.Context, id pgtype.UUID) (Address, error) {
	row := q.db.QueryRow(ctx, getAddress, id)
	var a Address
	err := row.Scan(&a.ID, &a.Name, &a.Line1, &a.Line2, &a.City, &a.State, &a.PostalCode, &a.Country, &a.Email, &a.CreatedAt)
	return a, err
}
