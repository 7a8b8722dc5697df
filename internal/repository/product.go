package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ferrogrim/stockpile/internal/domain/product"
)

const (
	listProductsSQL = `SELECT id, name, category, price, quantity
		FROM products ORDER BY id`

	listLowStockSQL = `SELECT id, name, category, price, quantity
		FROM products WHERE quantity < $1 ORDER BY quantity, id`

	getProductByIDSQL = `SELECT id, name, category, price, quantity
		FROM products WHERE id = $1`

	getProductsByIDsSQL = `SELECT id, name, category, price, quantity
		FROM products WHERE id = ANY($1)`

	insertProductSQL = `INSERT INTO products (id, name, category, price, quantity)
		VALUES ($1, $2, $3, $4, $5)`

	updateProductSQL = `UPDATE products SET name = $2, category = $3, price = $4, quantity = $5
		WHERE id = $1`

	deleteProductSQL = `DELETE FROM products WHERE id = $1`

	// Conditional decrement: the WHERE clause makes the store itself refuse a
	// delta that would drive the quantity negative, so concurrent checkouts
	// cannot oversell regardless of what the caller observed earlier.
	adjustStockSQL = `UPDATE products SET quantity = quantity + $2
		WHERE id = $1 AND quantity + $2 >= 0`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns all products from the catalog ordered by ID.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, listProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// ListLowStock returns products whose available quantity is below threshold,
// scarcest first.
func (r *ProductRepository) ListLowStock(ctx context.Context, threshold int) ([]product.Product, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, listLowStockSQL, threshold)
	if err != nil {
		return nil, fmt.Errorf("listing low stock products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	return &p, nil
}

// GetByIDs returns products matching any of the given IDs.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// Create inserts a new catalog product. A duplicate id or name maps to
// product.ErrAlreadyExists.
func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	_, err := conn(ctx, r.pool).Exec(ctx, insertProductSQL,
		p.ID, p.Name, p.Category, p.Price, p.Quantity,
	)
	if err != nil {
		if isPgError(err, pgUniqueViolation) {
			return product.ErrAlreadyExists
		}
		return fmt.Errorf("creating product %q: %w", p.ID, err)
	}
	return nil
}

// Update overwrites a product's name, category, price, and quantity.
func (r *ProductRepository) Update(ctx context.Context, p *product.Product) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, updateProductSQL,
		p.ID, p.Name, p.Category, p.Price, p.Quantity,
	)
	if err != nil {
		return fmt.Errorf("updating product %q: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

// Delete removes a product from the catalog. Order lines keep a foreign key
// on products, so deleting an ordered product maps to product.ErrInUse.
func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, deleteProductSQL, id)
	if err != nil {
		if isPgError(err, pgForeignKeyViolation) {
			return product.ErrInUse
		}
		return fmt.Errorf("deleting product %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

// AdjustStock applies a signed quantity delta as one atomic conditional
// update. A zero-row update means either the product is missing or the delta
// would drive the quantity negative; the follow-up read disambiguates.
func (r *ProductRepository) AdjustStock(ctx context.Context, id string, delta int) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, adjustStockSQL, id, delta)
	if err != nil {
		return fmt.Errorf("adjusting stock for product %q: %w", id, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return product.ErrInsufficientStock
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(&p.ID, &p.Name, &p.Category, &p.Price, &p.Quantity)
	return p, err
}

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

func isPgError(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
