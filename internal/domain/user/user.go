package user

import "context"

// User is the minimal purchaser record the fulfillment flow needs. Account
// management and authentication live outside this service.
type User struct {
	ID       string
	Username string
	Role     string
}

// Lookup resolves purchaser identifiers. Order placement only ever needs
// existence, never any other attribute.
type Lookup interface {
	Exists(ctx context.Context, id string) (bool, error)
}
