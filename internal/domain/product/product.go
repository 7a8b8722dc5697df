package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// ErrAlreadyExists is returned by Create when another product already uses
// the same id or name.
var ErrAlreadyExists = errors.New("product already exists")

// ErrInUse is returned by Delete when existing order lines still reference
// the product.
var ErrInUse = errors.New("product referenced by existing orders")

// ErrInsufficientStock is returned by AdjustStock when a negative delta
// would drive the available quantity below zero.
var ErrInsufficientStock = errors.New("insufficient stock")

// Product represents a catalog item available for purchase.
type Product struct {
	ID       string
	Name     string
	Category string
	Price    decimal.Decimal
	Quantity int
}

// Repository defines catalog operations.
//
// AdjustStock applies a signed quantity delta as a single conditional update
// evaluated atomically by the store. Implementations must reject a delta that
// would drive the quantity negative with ErrInsufficientStock; callers never
// read-check-then-write the quantity themselves.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	ListLowStock(ctx context.Context, threshold int) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error
	Delete(ctx context.Context, id string) error
	AdjustStock(ctx context.Context, id string, delta int) error
}
