// Package postgres implements the transactional storage composites the
// services build on. Single-row access goes through repository.Queries;
// multi-row writes that must commit together live here.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/arverne/softsell/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store wraps a connection pool with query helpers and transaction scopes.
type Store struct {
	pool *pgxpool.Pool
	*repository.Queries
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		pool:    pool,
		Queries: repository.New(pool),
	}
}

// execTx runs fn inside a transaction, rolling back on error.
func (s *Store) execTx(ctx context.Context, fn func(*repository.Queries) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(s.Queries.WithTx(tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// CreateOrderTxParams is everything needed to persist an order atomically:
// the order header and every line item land in one transaction or not at all.
type CreateOrderTxParams struct {
	Order repository.CreateOrderParams
	Items []repository.CreateOrderItemParams
}

// CreateOrderWithItems writes the order and its items in a single
// transaction. Items' OrderID is filled from the created order.
func (s *Store) CreateOrderWithItems(ctx context.Context, arg CreateOrderTxParams) (repository.Order, []repository.OrderItem, error) {
	var (
		order repository.Order
		items []repository.OrderItem
	)

	err := s.execTx(ctx, func(q *repository.Queries) error {
		var err error
		order, err = q.CreateOrder(ctx, arg.Order)
		if err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		items = make([]repository.OrderItem, 0, len(arg.Items))
		for _, itemParams := range arg.Items {
			itemParams.OrderID = order.ID
			item, err := q.CreateOrderItem(ctx, itemParams)
			if err != nil {
				return fmt.Errorf("create order item: %w", err)
			}
			items = append(items, item)
		}
		return nil
	})
	if err != nil {
		return repository.Order{}, nil, err
	}
	return order, items, nil
}

// FulfillOrderTxResult reports what a fulfillment transaction did.
type FulfillOrderTxResult struct {
	Order repository.Order

	// AlreadyProcessed is true when the event was seen before or the order
	// had already reached a terminal state. Nothing was changed.
	AlreadyProcessed bool

	// ItemsActivated is how many pending subscriptions went ACTIVE.
	ItemsActivated int64
}

// FulfillOrder applies a verified payment success in one transaction: the
// event lands in the processed ledger, the order goes COMPLETED and its
// pending subscriptions activate. Either guard failing (duplicate event,
// terminal order) rolls the whole thing back and reports AlreadyProcessed.
func (s *Store) FulfillOrder(ctx context.Context, eventID, eventType string, orderID pgtype.UUID) (FulfillOrderTxResult, error) {
	var res FulfillOrderTxResult

	err := s.execTx(ctx, func(q *repository.Queries) error {
		inserted, err := q.InsertWebhookEvent(ctx, repository.InsertWebhookEventParams{
			EventID:   eventID,
			EventType: eventType,
		})
		if err != nil {
			return fmt.Errorf("record webhook event: %w", err)
		}
		if inserted == 0 {
			res.AlreadyProcessed = true
			return nil
		}

		order, err := q.CompleteOrder(ctx, orderID)
		if errors.Is(err, pgx.ErrNoRows) {
			// Order exists but is already terminal; a different event id
			// reached a fulfilled order. Keep the ledger row, change nothing.
			res.AlreadyProcessed = true
			res.Order, err = q.GetOrder(ctx, orderID)
			return err
		}
		if err != nil {
			return fmt.Errorf("complete order: %w", err)
		}
		res.Order = order

		res.ItemsActivated, err = q.ActivateOrderItems(ctx, orderID)
		if err != nil {
			return fmt.Errorf("activate order items: %w", err)
		}
		return nil
	})
	return res, err
}
