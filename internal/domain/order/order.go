package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned by repositories when an order does not exist.
var ErrNotFound = errors.New("order not found")

// Status is the lifecycle state of an order.
type Status string

const (
	// StatusPending marks an order whose header exists but whose stock has
	// not been committed yet.
	StatusPending Status = "PENDING"
	// StatusProcessing marks an order whose lines and stock decrements are
	// durably recorded.
	StatusProcessing Status = "PROCESSING"
)

// Order is the order header plus its lines.
type Order struct {
	ID          string
	PurchaserID string
	Status      Status
	CreatedAt   time.Time
	Lines       []Line
}

// Total returns the sum of quantity times price-at-order over all lines.
func (o *Order) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range o.Lines {
		total = total.Add(l.PriceAtOrder.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return total
}

// Line is a single product entry of an order. PriceAtOrder is the unit price
// captured when the order was placed; it never changes afterwards, regardless
// of later catalog price updates.
type Line struct {
	OrderID      string
	ProductID    string
	Quantity     int
	PriceAtOrder decimal.Decimal
}

// Repository defines persistence operations for order headers.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	UpdateStatus(ctx context.Context, id string, status Status) error
	GetByID(ctx context.Context, id string) (*Order, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]Order, error)
	ListByPurchaser(ctx context.Context, purchaserID string) ([]Order, error)
	ListByDateRange(ctx context.Context, from, to time.Time) ([]Order, error)
}

// LineRepository defines persistence operations for order lines.
type LineRepository interface {
	SaveBatch(ctx context.Context, lines []Line) error
	GetByOrder(ctx context.Context, orderID string) ([]Line, error)
	DeleteByOrder(ctx context.Context, orderID string) error
}

// TxRunner executes fn within a single storage transaction. Every repository
// call made through the ctx passed to fn joins that transaction; if fn
// returns an error the transaction is rolled back and nothing is written.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
