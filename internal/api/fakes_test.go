package api

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/mercadito/shop-api/internal/domain/coupon"
	"github.com/mercadito/shop-api/internal/domain/order"
	"github.com/mercadito/shop-api/internal/domain/product"
	"github.com/mercadito/shop-api/internal/domain/user"
)

// In-memory repositories mirroring the store-level guarantees of the
// postgres implementations: unique codes, once-per-order issuance,
// compare-and-set redemption and stock decrement.

type fakeStore struct {
	mu       sync.Mutex
	coupons  map[string]*coupon.Coupon
	issued   map[string]bool
	orders   map[string]*order.Order
	products map[string]*product.Product
	users    map[string]*user.User
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		coupons:  make(map[string]*coupon.Coupon),
		issued:   make(map[string]bool),
		orders:   make(map[string]*order.Order),
		products: make(map[string]*product.Product),
		users:    make(map[string]*user.User),
	}
}

type fakeCoupons struct{ s *fakeStore }

func (f *fakeCoupons) Insert(_ context.Context, c *coupon.Coupon) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.issued[c.OrderTrigger] {
		return coupon.ErrAlreadyIssued
	}
	for _, got := range f.s.coupons {
		if strings.EqualFold(got.Code, c.Code) {
			return coupon.ErrCodeTaken
		}
	}
	cp := *c
	f.s.coupons[c.ID] = &cp
	f.s.issued[c.OrderTrigger] = true
	if o, ok := f.s.orders[c.OrderTrigger]; ok {
		o.CouponGenerated = true
		o.GeneratedCouponID = c.ID
	}
	return nil
}

func (f *fakeCoupons) FindByID(_ context.Context, id string) (*coupon.Coupon, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	c, ok := f.s.coupons[id]
	if !ok {
		return nil, coupon.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCoupons) FindByCode(_ context.Context, code string) (*coupon.Coupon, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, c := range f.s.coupons {
		if strings.EqualFold(c.Code, code) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, coupon.ErrNotFound
}

func (f *fakeCoupons) ListByUser(_ context.Context, userID string) ([]coupon.Coupon, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []coupon.Coupon
	for _, c := range f.s.coupons {
		if c.CreatedFor == userID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeCoupons) CodeExists(_ context.Context, code string) (bool, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, c := range f.s.coupons {
		if strings.EqualFold(c.Code, code) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeCoupons) MarkUsed(_ context.Context, id, userID string, now time.Time) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	c, ok := f.s.coupons[id]
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

func (f *fakeCoupons) Release(_ context.Context, id string) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	c, ok := f.s.coupons[id]
	if !ok {
		return nil
	}
	c.IsUsed = false
	c.UsedAt = nil
	c.UsedBy = ""
	return nil
}

func (f *fakeCoupons) List(_ context.Context, flt coupon.ListFilter) ([]coupon.Coupon, int, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []coupon.Coupon
	for _, c := range f.s.coupons {
		if flt.IsUsed != nil && c.IsUsed != *flt.IsUsed {
			continue
		}
		if flt.IsActive != nil && c.IsActive != *flt.IsActive {
			continue
		}
		if flt.Tier != "" && c.TriggerTier != flt.Tier {
			continue
		}
		out = append(out, *c)
	}
	return out, len(out), nil
}

func (f *fakeCoupons) Stats(_ context.Context, now time.Time) (*coupon.Stats, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	s := &coupon.Stats{}
	for _, c := range f.s.coupons {
		s.Total++
		switch {
		case c.IsUsed:
			s.Used++
		case !now.Before(c.ExpiresAt):
			s.Expired++
		case c.IsActive:
			s.Active++
		}
	}
	return s, nil
}

type fakeOrders struct{ s *fakeStore }

func (f *fakeOrders) Create(_ context.Context, o *order.Order) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	cp := *o
	f.s.orders[o.ID] = &cp
	return nil
}

func (f *fakeOrders) GetByID(_ context.Context, id string) (*order.Order, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	o, ok := f.s.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeOrders) ListByUser(_ context.Context, userID string) ([]order.Order, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []order.Order
	for _, o := range f.s.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeOrders) ListAll(_ context.Context) ([]order.Order, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	out := make([]order.Order, 0, len(f.s.orders))
	for _, o := range f.s.orders {
		out = append(out, *o)
	}
	return out, nil
}

func (f *fakeOrders) MarkPaid(_ context.Context, id string, paidAt time.Time, p order.PaymentResult) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	o, ok := f.s.orders[id]
	if !ok {
		return order.ErrNotFound
	}
	o.IsPaid = true
	o.PaidAt = &paidAt
	o.Payment = &p
	o.Status = order.StatusProcessing
	return nil
}

type fakeProducts struct{ s *fakeStore }

func (f *fakeProducts) List(_ context.Context) ([]product.Product, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	out := make([]product.Product, 0, len(f.s.products))
	for _, p := range f.s.products {
		out = append(out, *p)
	}
	return out, nil
}

func (f *fakeProducts) GetByID(_ context.Context, id string) (*product.Product, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	p, ok := f.s.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProducts) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []product.Product
	for _, id := range ids {
		if p, ok := f.s.products[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeProducts) DecrementStock(_ context.Context, id string, qty int) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	p, ok := f.s.products[id]
	if !ok {
		return product.ErrNotFound
	}
	if p.Stock < qty {
		return &product.InsufficientStockError{ProductID: p.ID, Name: p.Name}
	}
	p.Stock -= qty
	return nil
}

type fakeUsers struct{ s *fakeStore }

func (f *fakeUsers) GetByID(_ context.Context, id string) (*user.User, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	u, ok := f.s.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

type nopNotifier struct{}

func (nopNotifier) RewardIssued(context.Context, order.RewardIssued) error { return nil }
