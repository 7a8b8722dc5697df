package order

import "fmt"

// NotFoundKind tags which referenced entity was missing.
type NotFoundKind string

const (
	KindPurchaser NotFoundKind = "purchaser"
	KindProduct   NotFoundKind = "product"
	KindOrder     NotFoundKind = "order"
)

// ValidationError indicates malformed input. It is the caller's fault and
// never leaves partial state behind.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// NotFoundError indicates a referenced purchaser, product, or order does not
// exist.
type NotFoundError struct {
	Kind NotFoundKind
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// InsufficientStockError indicates a product cannot cover the requested
// quantity. Available and Requested are carried for display; Available is
// negative when the fresh quantity could not be determined.
type InsufficientStockError struct {
	ProductID string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	if e.Available < 0 {
		return fmt.Sprintf("insufficient stock for product %s: requested %d",
			e.ProductID, e.Requested)
	}
	return fmt.Sprintf("insufficient stock for product %s: available %d, requested %d",
		e.ProductID, e.Available, e.Requested)
}
