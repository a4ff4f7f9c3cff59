package repositories

import (
	"context"

	"gorm.io/gorm"
)

// GORMStore is the Store backed by a SQL database.
type GORMStore struct {
	db   *gorm.DB
	inTx bool
}

// NewGORMStore creates a Store over db.
func NewGORMStore(db *gorm.DB) *GORMStore {
	return &GORMStore{db: db}
}

func (s *GORMStore) Products() ProductRepository { return NewGORMProductRepository(s.db) }
func (s *GORMStore) Inventory() InventoryLedger  { return NewGORMInventoryLedger(s.db) }
func (s *GORMStore) Carts() CartRepository       { return NewGORMCartRepository(s.db) }
func (s *GORMStore) Coupons() CouponRepository   { return NewGORMCouponRepository(s.db) }
func (s *GORMStore) Orders() OrderRepository     { return NewGORMOrderRepository(s.db) }
func (s *GORMStore) Users() UserRepository       { return NewGORMUserRepository(s.db) }

// WithinTransaction runs fn inside a database transaction. Nested calls join
// the outer transaction.
func (s *GORMStore) WithinTransaction(ctx context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GORMStore{db: tx, inTx: true})
	})
}
