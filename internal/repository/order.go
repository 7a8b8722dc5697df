package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ferrogrim/stockpile/internal/domain/order"
)

const (
	createOrderSQL = `INSERT INTO orders (id, purchaser_id, status, created_at)
		VALUES ($1, $2, $3, $4)`

	updateOrderStatusSQL = `UPDATE orders SET status = $2 WHERE id = $1`

	getOrderByIDSQL = `SELECT id, purchaser_id, status, created_at
		FROM orders WHERE id = $1`

	deleteOrderSQL = `DELETE FROM orders WHERE id = $1`

	listOrdersSQL = `SELECT id, purchaser_id, status, created_at
		FROM orders ORDER BY created_at DESC`

	listOrdersByPurchaserSQL = `SELECT id, purchaser_id, status, created_at
		FROM orders WHERE purchaser_id = $1 ORDER BY created_at DESC`

	listOrdersByDateRangeSQL = `SELECT id, purchaser_id, status, created_at
		FROM orders WHERE created_at BETWEEN $1 AND $2 ORDER BY created_at`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. It only
// handles headers; lines live in LineRepository.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order header.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	_, err := conn(ctx, r.pool).Exec(ctx, createOrderSQL,
		o.ID, o.PurchaserID, string(o.Status), o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

// UpdateStatus sets the lifecycle status of an existing order.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status order.Status) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, updateOrderStatusSQL, id, string(status))
	if err != nil {
		return fmt.Errorf("updating status of order %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// GetByID returns the order header without its lines.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, getOrderByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	return &o, nil
}

// Delete removes the order header.
func (r *OrderRepository) Delete(ctx context.Context, id string) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, deleteOrderSQL, id)
	if err != nil {
		return fmt.Errorf("deleting order %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// List returns all order headers, newest first.
func (r *OrderRepository) List(ctx context.Context) ([]order.Order, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, listOrdersSQL)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// ListByPurchaser returns the purchaser's order headers, newest first.
func (r *OrderRepository) ListByPurchaser(ctx context.Context, purchaserID string) ([]order.Order, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, listOrdersByPurchaserSQL, purchaserID)
	if err != nil {
		return nil, fmt.Errorf("listing orders for purchaser %q: %w", purchaserID, err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// ListByDateRange returns order headers created within [from, to].
func (r *OrderRepository) ListByDateRange(ctx context.Context, from, to time.Time) ([]order.Order, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, listOrdersByDateRangeSQL, from, to)
	if err != nil {
		return nil, fmt.Errorf("listing orders by date range: %w", err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o      order.Order
		status string
	)
	err := row.Scan(&o.ID, &o.PurchaserID, &status, &o.CreatedAt)
	o.Status = order.Status(status)
	return o, err
}
