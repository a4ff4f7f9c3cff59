package repositories

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"storefront/internal/apperrors"
	"storefront/internal/models"

	"github.com/google/uuid"
)

type usageKey struct {
	couponID string
	userID   string
}

// MemoryStore keeps everything in process memory. Writes are serialized by
// txMu; a transaction holds it for its whole duration and undoes its writes
// in reverse order when it fails.
type MemoryStore struct {
	txMu sync.Mutex
	mu   sync.RWMutex

	products map[string]models.Product
	carts    map[string]models.Cart // by user ID
	coupons  map[string]models.Coupon
	usages   map[usageKey]int
	orders   map[string]models.Order
	users    map[string]models.User
}

// NewMemoryStore returns an empty in-memory Store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products: make(map[string]models.Product),
		carts:    make(map[string]models.Cart),
		coupons:  make(map[string]models.Coupon),
		usages:   make(map[usageKey]int),
		orders:   make(map[string]models.Order),
		users:    make(map[string]models.User),
	}
}

func (s *MemoryStore) view() *memoryView { return &memoryView{store: s} }

func (s *MemoryStore) Products() ProductRepository { return s.view().Products() }
func (s *MemoryStore) Inventory() InventoryLedger  { return s.view().Inventory() }
func (s *MemoryStore) Carts() CartRepository       { return s.view().Carts() }
func (s *MemoryStore) Coupons() CouponRepository   { return s.view().Coupons() }
func (s *MemoryStore) Orders() OrderRepository     { return s.view().Orders() }
func (s *MemoryStore) Users() UserRepository       { return s.view().Users() }

// WithinTransaction runs fn with exclusive write access to the store.
func (s *MemoryStore) WithinTransaction(ctx context.Context, fn func(tx Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	tx := &memoryView{store: s, inTx: true}
	committed := false
	defer func() {
		if !committed {
			tx.rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	committed = true
	return nil
}

// memoryView is a Store over MemoryStore. Inside a transaction it records an
// undo step for every write.
type memoryView struct {
	store *MemoryStore
	inTx  bool
	undo  []func()
}

func (v *memoryView) Products() ProductRepository { return &memoryProducts{v} }
func (v *memoryView) Inventory() InventoryLedger  { return &memoryInventory{v} }
func (v *memoryView) Carts() CartRepository       { return &memoryCarts{v} }
func (v *memoryView) Coupons() CouponRepository   { return &memoryCoupons{v} }
func (v *memoryView) Orders() OrderRepository     { return &memoryOrders{v} }
func (v *memoryView) Users() UserRepository       { return &memoryUsers{v} }

func (v *memoryView) WithinTransaction(ctx context.Context, fn func(tx Store) error) error {
	if v.inTx {
		return fn(v)
	}
	return v.store.WithinTransaction(ctx, fn)
}

// write applies op under the data lock. op returns the step that reverts it.
func (v *memoryView) write(op func() (func(), error)) error {
	if !v.inTx {
		v.store.txMu.Lock()
		defer v.store.txMu.Unlock()
	}
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	undo, err := op()
	if err != nil {
		return err
	}
	if v.inTx && undo != nil {
		v.undo = append(v.undo, undo)
	}
	return nil
}

func (v *memoryView) read(fn func()) {
	v.store.mu.RLock()
	defer v.store.mu.RUnlock()
	fn()
}

func (v *memoryView) rollback() {
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	for i := len(v.undo) - 1; i >= 0; i-- {
		v.undo[i]()
	}
	v.undo = nil
}

type memoryProducts struct{ v *memoryView }

func (r *memoryProducts) GetAll(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	r.v.read(func() {
		products = make([]models.Product, 0, len(r.v.store.products))
		for _, p := range r.v.store.products {
			products = append(products, p)
		}
	})
	sort.Slice(products, func(i, j int) bool {
		if !products[i].CreatedAt.Equal(products[j].CreatedAt) {
			return products[i].CreatedAt.Before(products[j].CreatedAt)
		}
		return products[i].ID < products[j].ID
	})
	return products, nil
}

func (r *memoryProducts) GetByID(ctx context.Context, id string) (*models.Product, error) {
	var (
		p  models.Product
		ok bool
	)
	r.v.read(func() { p, ok = r.v.store.products[id] })
	if !ok {
		return nil, apperrors.NotFound("product", id)
	}
	return &p, nil
}

func (r *memoryProducts) Create(ctx context.Context, product *models.Product) error {
	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	now := time.Now()
	product.CreatedAt = now
	product.UpdatedAt = now
	return r.v.write(func() (func(), error) {
		products := r.v.store.products
		if _, exists := products[product.ID]; exists {
			return nil, apperrors.Conflict("product %s already exists", product.ID)
		}
		products[product.ID] = *product
		id := product.ID
		return func() { delete(products, id) }, nil
	})
}

func (r *memoryProducts) Update(ctx context.Context, product *models.Product) error {
	return r.v.write(func() (func(), error) {
		products := r.v.store.products
		prev, ok := products[product.ID]
		if !ok {
			return nil, apperrors.NotFound("product", product.ID)
		}
		next := prev
		next.Name = product.Name
		next.Description = product.Description
		next.Image = product.Image
		next.Price = product.Price
		next.DiscountPercentage = product.DiscountPercentage
		next.SellerID = product.SellerID
		next.UpdatedAt = time.Now()
		products[product.ID] = next
		return func() { products[prev.ID] = prev }, nil
	})
}

func (r *memoryProducts) Delete(ctx context.Context, id string) error {
	return r.v.write(func() (func(), error) {
		products := r.v.store.products
		prev, ok := products[id]
		if !ok {
			return nil, apperrors.NotFound("product", id)
		}
		delete(products, id)
		return func() { products[id] = prev }, nil
	})
}

type memoryInventory struct{ v *memoryView }

func (l *memoryInventory) Reserve(ctx context.Context, productID string, qty int) error {
	if qty < 1 {
		return apperrors.Validation("reserve quantity must be positive, got %d", qty)
	}
	return l.v.write(func() (func(), error) {
		return l.adjust(productID, -qty)
	})
}

func (l *memoryInventory) Release(ctx context.Context, productID string, qty int) error {
	if qty < 1 {
		return apperrors.Validation("release quantity must be positive, got %d", qty)
	}
	return l.v.write(func() (func(), error) {
		return l.adjust(productID, qty)
	})
}

func (l *memoryInventory) adjust(productID string, delta int) (func(), error) {
	products := l.v.store.products
	p, ok := products[productID]
	if !ok {
		return nil, apperrors.NotFound("product", productID)
	}
	if p.StockCount+delta < 0 {
		return nil, apperrors.InsufficientStock(productID, p.Name, -delta, p.StockCount)
	}
	p.StockCount += delta
	products[productID] = p
	return func() {
		p := products[productID]
		p.StockCount -= delta
		products[productID] = p
	}, nil
}

type memoryCarts struct{ v *memoryView }

func (r *memoryCarts) GetByUserID(ctx context.Context, userID string) (*models.Cart, error) {
	var (
		cart models.Cart
		ok   bool
	)
	r.v.read(func() {
		cart, ok = r.v.store.carts[userID]
		if ok {
			cart = cart.Clone()
		}
	})
	if !ok {
		return nil, apperrors.NotFound("cart for user", userID)
	}
	return &cart, nil
}

// GetByUserIDForUpdate needs no row lock: writers already hold the transaction mutex.
func (r *memoryCarts) GetByUserIDForUpdate(ctx context.Context, userID string) (*models.Cart, error) {
	return r.GetByUserID(ctx, userID)
}

func (r *memoryCarts) Save(ctx context.Context, cart *models.Cart) error {
	now := time.Now()
	if cart.ID == "" {
		cart.ID = uuid.New().String()
		cart.CreatedAt = now
	}
	cart.UpdatedAt = now
	for i := range cart.Items {
		if cart.Items[i].ID == "" {
			cart.Items[i].ID = uuid.New().String()
		}
		cart.Items[i].CartID = cart.ID
		cart.Items[i].Position = i
	}
	return r.v.write(func() (func(), error) {
		carts := r.v.store.carts
		prev, existed := carts[cart.UserID]
		carts[cart.UserID] = cart.Clone()
		userID := cart.UserID
		return func() {
			if existed {
				carts[userID] = prev
			} else {
				delete(carts, userID)
			}
		}, nil
	})
}

type memoryCoupons struct{ v *memoryView }

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (r *memoryCoupons) GetAll(ctx context.Context) ([]models.Coupon, error) {
	var coupons []models.Coupon
	r.v.read(func() {
		coupons = make([]models.Coupon, 0, len(r.v.store.coupons))
		for _, c := range r.v.store.coupons {
			coupons = append(coupons, c)
		}
	})
	sort.Slice(coupons, func(i, j int) bool { return coupons[i].CreatedAt.After(coupons[j].CreatedAt) })
	return coupons, nil
}

func (r *memoryCoupons) GetByCode(ctx context.Context, code string) (*models.Coupon, error) {
	code = normalizeCode(code)
	var found *models.Coupon
	r.v.read(func() {
		for _, c := range r.v.store.coupons {
			if c.Code == code {
				c := c
				found = &c
				return
			}
		}
	})
	if found == nil {
		return nil, apperrors.NotFound("coupon", code)
	}
	return found, nil
}

func (r *memoryCoupons) Create(ctx context.Context, coupon *models.Coupon) error {
	if coupon.ID == "" {
		coupon.ID = uuid.New().String()
	}
	coupon.Code = normalizeCode(coupon.Code)
	now := time.Now()
	coupon.CreatedAt = now
	coupon.UpdatedAt = now
	return r.v.write(func() (func(), error) {
		coupons := r.v.store.coupons
		for _, c := range coupons {
			if c.Code == coupon.Code {
				return nil, apperrors.Conflict("coupon code %s already exists", coupon.Code)
			}
		}
		coupons[coupon.ID] = *coupon
		id := coupon.ID
		return func() { delete(coupons, id) }, nil
	})
}

func (r *memoryCoupons) UsageFor(ctx context.Context, couponID, userID string) (int, error) {
	var n int
	r.v.read(func() { n = r.v.store.usages[usageKey{couponID, userID}] })
	return n, nil
}

func (r *memoryCoupons) Redeem(ctx context.Context, couponID, userID string) error {
	return r.v.write(func() (func(), error) {
		coupons, usages := r.v.store.coupons, r.v.store.usages
		c, ok := coupons[couponID]
		if !ok {
			return nil, apperrors.NotFound("coupon", couponID)
		}
		if c.UsageLimit > 0 && c.UsedCount >= c.UsageLimit {
			return nil, apperrors.CouponInvalid("coupon usage limit reached")
		}
		key := usageKey{couponID, userID}
		if c.PerUserLimit > 0 && usages[key] >= c.PerUserLimit {
			return nil, apperrors.CouponInvalid("coupon already used the maximum number of times by this user")
		}
		c.UsedCount++
		coupons[couponID] = c
		usages[key]++
		return func() {
			c := coupons[couponID]
			c.UsedCount--
			coupons[couponID] = c
			usages[key]--
			if usages[key] == 0 {
				delete(usages, key)
			}
		}, nil
	})
}

type memoryOrders struct{ v *memoryView }

func (r *memoryOrders) list(keep func(*models.Order) bool) []models.Order {
	var orders []models.Order
	r.v.read(func() {
		for _, o := range r.v.store.orders {
			if keep(&o) {
				orders = append(orders, o.Clone())
			}
		}
	})
	sort.Slice(orders, func(i, j int) bool { return orders[i].CreatedAt.After(orders[j].CreatedAt) })
	return orders
}

func (r *memoryOrders) GetAll(ctx context.Context) ([]models.Order, error) {
	return r.list(func(*models.Order) bool { return true }), nil
}

func (r *memoryOrders) GetByID(ctx context.Context, id string) (*models.Order, error) {
	var (
		order models.Order
		ok    bool
	)
	r.v.read(func() {
		order, ok = r.v.store.orders[id]
		if ok {
			order = order.Clone()
		}
	})
	if !ok {
		return nil, apperrors.NotFound("order", id)
	}
	return &order, nil
}

// GetByIDForUpdate needs no row lock: writers already hold the transaction mutex.
func (r *memoryOrders) GetByIDForUpdate(ctx context.Context, id string) (*models.Order, error) {
	return r.GetByID(ctx, id)
}

func (r *memoryOrders) GetByTrackingNumber(ctx context.Context, trackingNumber string) (*models.Order, error) {
	orders := r.list(func(o *models.Order) bool { return o.TrackingNumber == trackingNumber })
	if len(orders) == 0 {
		return nil, apperrors.NotFound("order", trackingNumber)
	}
	return &orders[0], nil
}

func (r *memoryOrders) GetByGatewayPaymentID(ctx context.Context, paymentID string) (*models.Order, error) {
	orders := r.list(func(o *models.Order) bool {
		return o.GatewayPaymentID != nil && *o.GatewayPaymentID == paymentID
	})
	if len(orders) == 0 {
		return nil, apperrors.NotFound("order", paymentID)
	}
	return &orders[0], nil
}

func (r *memoryOrders) ListByUser(ctx context.Context, userID string) ([]models.Order, error) {
	return r.list(func(o *models.Order) bool { return o.UserID == userID }), nil
}

func (r *memoryOrders) ListBySeller(ctx context.Context, sellerID string) ([]models.Order, error) {
	return r.list(func(o *models.Order) bool { return o.HasSeller(sellerID) }), nil
}

func (r *memoryOrders) Create(ctx context.Context, order *models.Order) error {
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	now := time.Now()
	order.CreatedAt = now
	order.UpdatedAt = now
	for i := range order.Items {
		if order.Items[i].ID == "" {
			order.Items[i].ID = uuid.New().String()
		}
		order.Items[i].OrderID = order.ID
		order.Items[i].Position = i
	}
	assignEventIDs(order)

	return r.v.write(func() (func(), error) {
		orders := r.v.store.orders
		if _, exists := orders[order.ID]; exists {
			return nil, apperrors.Conflict("order %s already exists", order.ID)
		}
		for _, o := range orders {
			if o.TrackingNumber == order.TrackingNumber {
				return nil, apperrors.Conflict("tracking number %s already in use", order.TrackingNumber)
			}
		}
		orders[order.ID] = order.Clone()
		id := order.ID
		return func() { delete(orders, id) }, nil
	})
}

func (r *memoryOrders) Update(ctx context.Context, order *models.Order) error {
	order.UpdatedAt = time.Now()
	assignEventIDs(order)
	return r.v.write(func() (func(), error) {
		orders := r.v.store.orders
		prev, ok := orders[order.ID]
		if !ok {
			return nil, apperrors.NotFound("order", order.ID)
		}
		if order.GatewayPaymentID != nil {
			for id, o := range orders {
				if id != order.ID && o.GatewayPaymentID != nil && *o.GatewayPaymentID == *order.GatewayPaymentID {
					return nil, apperrors.Conflict("gateway payment already settled another order")
				}
			}
		}
		orders[order.ID] = order.Clone()
		return func() { orders[prev.ID] = prev }, nil
	})
}

type memoryUsers struct{ v *memoryView }

func (r *memoryUsers) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	return r.v.write(func() (func(), error) {
		users := r.v.store.users
		for _, u := range users {
			if u.Username == user.Username || u.Email == user.Email {
				return nil, apperrors.Conflict("user %s already exists", user.Username)
			}
		}
		users[user.ID] = *user
		id := user.ID
		return func() { delete(users, id) }, nil
	})
}

func (r *memoryUsers) find(column, value string, match func(models.User) bool) (*models.User, error) {
	var found *models.User
	r.v.read(func() {
		for _, u := range r.v.store.users {
			if match(u) {
				u := u
				found = &u
				return
			}
		}
	})
	if found == nil {
		return nil, apperrors.NotFound("user with "+column, value)
	}
	return found, nil
}

func (r *memoryUsers) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.find("username", username, func(u models.User) bool { return u.Username == username })
}

func (r *memoryUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.find("email", email, func(u models.User) bool { return u.Email == email })
}

func (r *memoryUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.find("id", id, func(u models.User) bool { return u.ID == id })
}
