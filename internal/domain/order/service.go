package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/ferrogrim/stockpile/internal/domain/product"
	"github.com/ferrogrim/stockpile/internal/domain/user"
)

// LineRequest is one (product, quantity) entry of a purchase request.
type LineRequest struct {
	ProductID string
	Quantity  int
}

// Service realizes order placement and cancellation. It is the sole writer of
// order and line state and the sole orchestrator of stock decrements.
type Service struct {
	users    user.Lookup
	products product.Repository
	orders   Repository
	lines    LineRepository
	tx       TxRunner

	mergeDuplicates bool
	now             func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithMergeDuplicates controls how duplicate product ids within one request
// are handled. When true, duplicates are merged into a single line whose
// quantity is the total demand; when false (the default) each entry becomes
// its own line, though validation always checks total demand per product.
func WithMergeDuplicates(merge bool) Option {
	return func(s *Service) { s.mergeDuplicates = merge }
}

// WithClock overrides the time source, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a fulfillment Service with the required collaborators.
func NewService(
	users user.Lookup,
	products product.Repository,
	orders Repository,
	lines LineRepository,
	tx TxRunner,
	opts ...Option,
) *Service {
	s := &Service{
		users:    users,
		products: products,
		orders:   orders,
		lines:    lines,
		tx:       tx,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PlaceOrder validates the purchaser and every requested line, snapshots
// current prices, and commits the order header, its lines, and the stock
// decrements as one transaction. It returns the new order id.
//
// Validation happens entirely before the first write: any NotFoundError,
// ValidationError, or InsufficientStockError from this phase leaves no state
// behind. The write phase either commits completely or rolls back.
func (s *Service) PlaceOrder(ctx context.Context, purchaserID string, requested []LineRequest) (string, error) {
	if purchaserID == "" {
		return "", &ValidationError{Reason: "purchaser id required"}
	}
	if len(requested) == 0 {
		return "", &ValidationError{Reason: "at least one line required"}
	}
	for _, r := range requested {
		if r.ProductID == "" {
			return "", &ValidationError{Reason: "product id required"}
		}
		if r.Quantity <= 0 {
			return "", &ValidationError{Reason: "quantity must be greater than 0 for product " + r.ProductID}
		}
	}

	if s.mergeDuplicates {
		requested = mergeLines(requested)
	}

	ok, err := s.users.Exists(ctx, purchaserID)
	if err != nil {
		return "", errors.Wrap(err, "lookup purchaser")
	}
	if !ok {
		return "", &NotFoundError{Kind: KindPurchaser, ID: purchaserID}
	}

	// Resolve all referenced products in one batch read, snapshot current
	// prices, and check that the cumulative demand per product fits the
	// available quantity. Duplicate entries count against the same
	// availability even when kept as independent lines.
	ids := make([]string, 0, len(requested))
	byID := make(map[string]*product.Product, len(requested))
	for _, r := range requested {
		if _, ok := byID[r.ProductID]; !ok {
			byID[r.ProductID] = nil
			ids = append(ids, r.ProductID)
		}
	}
	found, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return "", errors.Wrap(err, "resolve products")
	}
	for i := range found {
		byID[found[i].ID] = &found[i]
	}

	demand := make(map[string]int, len(requested))
	lines := make([]Line, 0, len(requested))
	for _, r := range requested {
		p := byID[r.ProductID]
		if p == nil {
			return "", &NotFoundError{Kind: KindProduct, ID: r.ProductID}
		}

		demand[r.ProductID] += r.Quantity
		if p.Quantity < demand[r.ProductID] {
			return "", &InsufficientStockError{
				ProductID: r.ProductID,
				Available: p.Quantity,
				Requested: demand[r.ProductID],
			}
		}

		lines = append(lines, Line{
			ProductID:    r.ProductID,
			Quantity:     r.Quantity,
			PriceAtOrder: p.Price,
		})
	}

	o := &Order{
		ID:          uuid.New().String(),
		PurchaserID: purchaserID,
		Status:      StatusPending,
		CreatedAt:   s.now(),
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.orders.Create(ctx, o); err != nil {
			return errors.Wrap(err, "create order")
		}

		for i := range lines {
			lines[i].OrderID = o.ID
		}
		if err := s.lines.SaveBatch(ctx, lines); err != nil {
			return errors.Wrap(err, "save order lines")
		}

		// The decrement is pushed down to the store as a conditional update,
		// so concurrent placements against the same product can never drive
		// the quantity negative. Losing that race here aborts the whole
		// transaction.
		for _, l := range lines {
			if err := s.products.AdjustStock(ctx, l.ProductID, -l.Quantity); err != nil {
				if errors.Is(err, product.ErrInsufficientStock) {
					return s.stockConflict(ctx, l)
				}
				return errors.Wrapf(err, "adjust stock for product %s", l.ProductID)
			}
		}

		if err := s.orders.UpdateStatus(ctx, o.ID, StatusProcessing); err != nil {
			return errors.Wrap(err, "update order status")
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	return o.ID, nil
}

// stockConflict builds the typed error for a decrement that lost the race
// against a concurrent placement, re-reading the fresh availability for the
// error message. A failed re-read leaves Available negative (unknown) rather
// than claiming the product is sold out.
func (s *Service) stockConflict(ctx context.Context, l Line) error {
	available := -1
	if p, err := s.products.GetByID(ctx, l.ProductID); err == nil {
		available = p.Quantity
	}
	return &InsufficientStockError{
		ProductID: l.ProductID,
		Available: available,
		Requested: l.Quantity,
	}
}

// CancelOrder deletes the order's lines and then its header. Decremented
// stock is not restored; cancellation only removes the records.
func (s *Service) CancelOrder(ctx context.Context, orderID string) error {
	if orderID == "" {
		return &ValidationError{Reason: "order id required"}
	}

	if _, err := s.orders.GetByID(ctx, orderID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return &NotFoundError{Kind: KindOrder, ID: orderID}
		}
		return errors.Wrap(err, "get order")
	}

	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.lines.DeleteByOrder(ctx, orderID); err != nil {
			return errors.Wrap(err, "delete order lines")
		}
		if err := s.orders.Delete(ctx, orderID); err != nil {
			return errors.Wrap(err, "delete order")
		}
		return nil
	})
}

// FindOrder returns the order with its lines attached.
func (s *Service) FindOrder(ctx context.Context, orderID string) (*Order, error) {
	if orderID == "" {
		return nil, &ValidationError{Reason: "order id required"}
	}

	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &NotFoundError{Kind: KindOrder, ID: orderID}
		}
		return nil, errors.Wrap(err, "get order")
	}

	if err := s.attachLines(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// ListOrders returns all orders with lines attached, newest first.
func (s *Service) ListOrders(ctx context.Context) ([]Order, error) {
	orders, err := s.orders.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return s.attachAll(ctx, orders)
}

// ListOrdersByPurchaser returns the purchaser's orders with lines attached.
func (s *Service) ListOrdersByPurchaser(ctx context.Context, purchaserID string) ([]Order, error) {
	if purchaserID == "" {
		return nil, &ValidationError{Reason: "purchaser id required"}
	}
	orders, err := s.orders.ListByPurchaser(ctx, purchaserID)
	if err != nil {
		return nil, errors.Wrap(err, "list orders by purchaser")
	}
	return s.attachAll(ctx, orders)
}

// ListOrdersByDateRange returns orders created within [from, to], with lines
// attached.
func (s *Service) ListOrdersByDateRange(ctx context.Context, from, to time.Time) ([]Order, error) {
	if to.Before(from) {
		return nil, &ValidationError{Reason: "date range end before start"}
	}
	orders, err := s.orders.ListByDateRange(ctx, from, to)
	if err != nil {
		return nil, errors.Wrap(err, "list orders by date range")
	}
	return s.attachAll(ctx, orders)
}

func (s *Service) attachLines(ctx context.Context, o *Order) error {
	lines, err := s.lines.GetByOrder(ctx, o.ID)
	if err != nil {
		return errors.Wrapf(err, "get lines for order %s", o.ID)
	}
	o.Lines = lines
	return nil
}

func (s *Service) attachAll(ctx context.Context, orders []Order) ([]Order, error) {
	for i := range orders {
		if err := s.attachLines(ctx, &orders[i]); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

// mergeLines collapses duplicate product ids into single entries, preserving
// first-seen order.
func mergeLines(requested []LineRequest) []LineRequest {
	index := make(map[string]int, len(requested))
	merged := make([]LineRequest, 0, len(requested))
	for _, r := range requested {
		if i, ok := index[r.ProductID]; ok {
			merged[i].Quantity += r.Quantity
			continue
		}
		index[r.ProductID] = len(merged)
		merged = append(merged, r)
	}
	return merged
}
