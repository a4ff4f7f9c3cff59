package repositories

import "context"

// Store groups the repositories and provides the transaction boundary used
// by order formation and status changes.
type Store interface {
	Products() ProductRepository
	Inventory() InventoryLedger
	Carts() CartRepository
	Coupons() CouponRepository
	Orders() OrderRepository
	Users() UserRepository

	// WithinTransaction runs fn against a transactional view of the store.
	// Everything fn did is undone when it returns an error.
	WithinTransaction(ctx context.Context, fn func(tx Store) error) error
}
