package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ferrogrim/stockpile/internal/domain/order"
)

const (
	insertLineSQL = `INSERT INTO order_lines (order_id, product_id, quantity, price_at_order, position)
		VALUES ($1, $2, $3, $4, $5)`

	getLinesByOrderSQL = `SELECT order_id, product_id, quantity, price_at_order
		FROM order_lines WHERE order_id = $1 ORDER BY position`

	deleteLinesByOrderSQL = `DELETE FROM order_lines WHERE order_id = $1`
)

var _ order.LineRepository = (*LineRepository)(nil)

// LineRepository implements order.LineRepository backed by PostgreSQL. The
// position column preserves insertion order for receipts.
type LineRepository struct {
	pool *pgxpool.Pool
}

// NewLineRepository returns a LineRepository that uses the given pool.
func NewLineRepository(pool *pgxpool.Pool) *LineRepository {
	return &LineRepository{pool: pool}
}

// SaveBatch persists all lines in a single batch round-trip.
func (r *LineRepository) SaveBatch(ctx context.Context, lines []order.Line) error {
	if len(lines) == 0 {
		return nil
	}

	b := &pgx.Batch{}
	for i, l := range lines {
		b.Queue(insertLineSQL, l.OrderID, l.ProductID, l.Quantity, l.PriceAtOrder, i)
	}

	res := conn(ctx, r.pool).SendBatch(ctx, b)
	defer res.Close()

	for range lines {
		if _, err := res.Exec(); err != nil {
			return fmt.Errorf("saving order lines: %w", err)
		}
	}
	return nil
}

// GetByOrder returns the order's lines in insertion order.
func (r *LineRepository) GetByOrder(ctx context.Context, orderID string) ([]order.Line, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, getLinesByOrderSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("getting lines for order %q: %w", orderID, err)
	}
	return pgx.CollectRows(rows, scanLine)
}

// DeleteByOrder removes every line belonging to the order.
func (r *LineRepository) DeleteByOrder(ctx context.Context, orderID string) error {
	_, err := conn(ctx, r.pool).Exec(ctx, deleteLinesByOrderSQL, orderID)
	if err != nil {
		return fmt.Errorf("deleting lines for order %q: %w", orderID, err)
	}
	return nil
}

func scanLine(row pgx.CollectableRow) (order.Line, error) {
	var l order.Line
	err := row.Scan(&l.OrderID, &l.ProductID, &l.Quantity, &l.PriceAtOrder)
	return l, err
}
