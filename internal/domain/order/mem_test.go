package order

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/mercadito/shop-api/internal/domain/coupon"
	"github.com/mercadito/shop-api/internal/domain/product"
	"github.com/mercadito/shop-api/internal/domain/user"
)

type memOrders struct {
	mu        sync.Mutex
	orders    map[string]*Order
	createErr error
}

func newMemOrders() *memOrders {
	return &memOrders{orders: make(map[string]*Order)}
}

func (m *memOrders) Create(_ context.Context, o *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	cp := *o
	m.orders[o.ID] = &cp
	return nil
}

func (m *memOrders) GetByID(_ context.Context, id string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memOrders) ListByUser(_ context.Context, userID string) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Order
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *memOrders) ListAll(_ context.Context) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Order, 0, len(m.orders))
	for _, o := range m.orders {
		out = append(out, *o)
	}
	return out, nil
}

func (m *memOrders) MarkPaid(_ context.Context, id string, paidAt time.Time, p PaymentResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return ErrNotFound
	}
	o.IsPaid = true
	o.PaidAt = &paidAt
	o.Payment = &p
	o.Status = StatusProcessing
	return nil
}

type memProducts struct {
	mu       sync.Mutex
	products map[string]*product.Product
}

func newMemProducts(ps ...product.Product) *memProducts {
	m := &memProducts{products: make(map[string]*product.Product)}
	for i := range ps {
		cp := ps[i]
		m.products[cp.ID] = &cp
	}
	return m
}

func (m *memProducts) List(_ context.Context) ([]product.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]product.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, *p)
	}
	return out, nil
}

func (m *memProducts) GetByID(_ context.Context, id string) (*product.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memProducts) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []product.Product
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memProducts) DecrementStock(_ context.Context, id string, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return product.ErrNotFound
	}
	if p.Stock < qty {
		return &product.InsufficientStockError{ProductID: p.ID, Name: p.Name}
	}
	p.Stock -= qty
	return nil
}

type memUsers struct {
	users map[string]*user.User
}

func newMemUsers(us ...user.User) *memUsers {
	m := &memUsers{users: make(map[string]*user.User)}
	for i := range us {
		cp := us[i]
		m.users[cp.ID] = &cp
	}
	return m
}

func (m *memUsers) GetByID(_ context.Context, id string) (*user.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// memCoupons implements coupon.Repository with the store-level guarantees the
// production implementation provides: unique codes, the once-per-order
// issuance flag, and compare-and-set redemption. When linked to a memOrders
// it also mirrors the flag onto the triggering order, as the transactional
// insert does.
type memCoupons struct {
	mu        sync.Mutex
	coupons   map[string]*coupon.Coupon
	issued    map[string]bool // by triggering order id
	orders    *memOrders
	insertErr error
}

func newMemCoupons(orders *memOrders) *memCoupons {
	return &memCoupons{
		coupons: make(map[string]*coupon.Coupon),
		issued:  make(map[string]bool),
		orders:  orders,
	}
}

func (m *memCoupons) add(c coupon.Coupon) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.coupons[c.ID] = &c
}

func (m *memCoupons) Insert(_ context.Context, c *coupon.Coupon) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	if m.issued[c.OrderTrigger] {
		return coupon.ErrAlreadyIssued
	}
	for _, got := range m.coupons {
		if strings.EqualFold(got.Code, c.Code) {
			return coupon.ErrCodeTaken
		}
	}
	cp := *c
	m.coupons[c.ID] = &cp
	m.issued[c.OrderTrigger] = true
	if m.orders != nil {
		m.orders.mu.Lock()
		if o, ok := m.orders.orders[c.OrderTrigger]; ok {
			o.CouponGenerated = true
			o.GeneratedCouponID = c.ID
		}
		m.orders.mu.Unlock()
	}
	return nil
}

func (m *memCoupons) FindByID(_ context.Context, id string) (*coupon.Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.coupons[id]
	if !ok {
		return nil, coupon.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memCoupons) FindByCode(_ context.Context, code string) (*coupon.Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.coupons {
		if strings.EqualFold(c.Code, code) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, coupon.ErrNotFound
}

func (m *memCoupons) ListByUser(_ context.Context, userID string) ([]coupon.Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []coupon.Coupon
	for _, c := range m.coupons {
		if c.CreatedFor == userID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *memCoupons) CodeExists(_ context.Context, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.coupons {
		if strings.EqualFold(c.Code, code) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memCoupons) MarkUsed(_ context.Context, id, userID string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.coupons[id]
	if !ok {
		return coupon.ErrNotFound
	}
	if err := c.InvalidityAt(now); err != nil {
		return err
	}
	c.IsUsed = true
	c.UsedAt = &now
	c.UsedBy = userID
	return nil
}

func (m *memCoupons) Release(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.coupons[id]
	if !ok {
		return nil
	}
	c.IsUsed = false
	c.UsedAt = nil
	c.UsedBy = ""
	return nil
}

func (m *memCoupons) List(_ context.Context, _ coupon.ListFilter) ([]coupon.Coupon, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]coupon.Coupon, 0, len(m.coupons))
	for _, c := range m.coupons {
		out = append(out, *c)
	}
	return out, len(out), nil
}

func (m *memCoupons) Stats(_ context.Context, _ time.Time) (*coupon.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &coupon.Stats{Total: len(m.coupons)}, nil
}

type recordNotifier struct {
	mu     sync.Mutex
	events []RewardIssued
	err    error
}

func (n *recordNotifier) RewardIssued(_ context.Context, ev RewardIssued) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.events = append(n.events, ev)
	return nil
}
