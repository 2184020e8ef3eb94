package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mercadito/shop-api/internal/domain/coupon"
	"github.com/mercadito/shop-api/internal/domain/product"
	"github.com/mercadito/shop-api/internal/domain/user"
)

// RewardIssued is published after a paid order mints a coupon.
type RewardIssued struct {
	UserID        string          `json:"user_id"`
	Email         string          `json:"email,omitempty"`
	OrderID       string          `json:"order_id"`
	Code          string          `json:"code"`
	DiscountValue decimal.Decimal `json:"discount_value"`
	Tier          string          `json:"tier"`
	TriggerAmount decimal.Decimal `json:"trigger_amount"`
	ExpiresAt     time.Time       `json:"expires_at"`
}

// Notifier delivers reward notifications. Delivery is best effort and must
// never affect the payment flow.
type Notifier interface {
	RewardIssued(ctx context.Context, ev RewardIssued) error
}

// ItemRequest is a requested line item; prices are resolved server side.
type ItemRequest struct {
	ProductID string
	Qty       int
}

// PlaceRequest carries everything needed to place an order.
type PlaceRequest struct {
	UserID        string
	Items         []ItemRequest
	Shipping      ShippingAddress
	PaymentMethod string
	ShippingPrice decimal.Decimal
	CouponCode    string
}

// Service implements order placement, payment and reward issuance.
type Service struct {
	orders   Repository
	products product.Repository
	users    user.Repository
	coupons  *coupon.Service
	issuer   *coupon.Issuer
	notifier Notifier
	lg       *zap.Logger
	now      func() time.Time
}

func NewService(orders Repository, products product.Repository, users user.Repository,
	coupons *coupon.Service, issuer *coupon.Issuer, notifier Notifier, lg *zap.Logger,
) *Service {
	return &Service{
		orders:   orders,
		products: products,
		users:    users,
		coupons:  coupons,
		issuer:   issuer,
		notifier: notifier,
		lg:       lg,
		now:      time.Now,
	}
}

// Place creates an order. Prices come from the product catalog, never from
// the client. A coupon, if given, is validated against the subtotal and
// redeemed before the order is persisted, so a coupon can back at most one
// order even under concurrent placement.
func (s *Service) Place(ctx context.Context, req PlaceRequest) (*Order, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	ids := make([]string, 0, len(req.Items))
	for _, it := range req.Items {
		if it.Qty <= 0 {
			return nil, &InvalidQuantityError{ProductID: it.ProductID}
		}
		ids = append(ids, it.ProductID)
	}

	catalog, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "load products")
	}
	byID := make(map[string]product.Product, len(catalog))
	for _, p := range catalog {
		byID[p.ID] = p
	}

	o := &Order{
		ID:            uuid.New().String(),
		UserID:        req.UserID,
		Shipping:      req.Shipping,
		PaymentMethod: req.PaymentMethod,
		ShippingPrice: req.ShippingPrice.Round(2),
		Status:        StatusPending,
		CreatedAt:     s.now(),
	}

	itemsPrice := decimal.Zero
	for _, it := range req.Items {
		p, ok := byID[it.ProductID]
		if !ok {
			return nil, &ProductNotFoundError{ProductID: it.ProductID}
		}
		if p.Stock < it.Qty {
			return nil, &product.InsufficientStockError{ProductID: p.ID, Name: p.Name}
		}
		o.Items = append(o.Items, OrderItem{
			ProductID: p.ID,
			Name:      p.Name,
			Qty:       it.Qty,
			Price:     p.Price,
			Image:     p.Image,
		})
		itemsPrice = itemsPrice.Add(p.Price.Mul(decimal.NewFromInt(int64(it.Qty))))
	}
	o.ItemsPrice = itemsPrice.Round(2)

	if req.CouponCode != "" {
		if err := s.redeemCoupon(ctx, o, req.CouponCode); err != nil {
			return nil, err
		}
	} else {
		o.CalculateTotals(decimal.Zero)
	}

	if err := s.orders.Create(ctx, o); err != nil {
		// A redeemed coupon with no order behind it would be burned for
		// nothing; hand it back.
		if o.AppliedCoupon != nil {
			if rerr := s.coupons.Release(ctx, o.AppliedCoupon.CouponID); rerr != nil {
				s.lg.Error("release coupon after failed create",
					zap.String("coupon_id", o.AppliedCoupon.CouponID),
					zap.Error(rerr),
				)
			}
		}
		return nil, errors.Wrap(err, "create order")
	}
	for _, it := range o.Items {
		if err := s.products.DecrementStock(ctx, it.ProductID, it.Qty); err != nil {
			s.lg.Warn("decrement stock",
				zap.String("order_id", o.ID),
				zap.String("product_id", it.ProductID),
				zap.Error(err),
			)
		}
	}
	return o, nil
}

// redeemCoupon quotes the coupon against the order subtotal and, if the
// quote holds, marks it used. The mark is a compare-and-swap at the store,
// so a concurrent double spend loses here with ErrAlreadyUsed.
func (s *Service) redeemCoupon(ctx context.Context, o *Order, code string) error {
	c, v, err := s.coupons.Quote(ctx, code, o.UserID, false, o.CouponBaseAmount())
	if err != nil {
		return err
	}
	if !v.Valid {
		return &CouponRejectedError{Reason: v.Reason}
	}
	if err := s.coupons.MarkUsed(ctx, c.ID, o.UserID); err != nil {
		return err
	}
	o.ApplyCoupon(c, v.Discount)
	return nil
}

// Get returns an order, enforcing ownership unless the caller is an admin.
func (s *Service) Get(ctx context.Context, orderID, userID string, isAdmin bool) (*Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && o.UserID != userID {
		return nil, ErrNotOwner
	}
	return o, nil
}

// ListMine returns the caller's orders.
func (s *Service) ListMine(ctx context.Context, userID string) ([]Order, error) {
	return s.orders.ListByUser(ctx, userID)
}

// ListAll returns every order. Admin only, enforced by the caller.
func (s *Service) ListAll(ctx context.Context) ([]Order, error) {
	return s.orders.ListAll(ctx)
}

// MarkPaid records a successful payment and, as a side effect, issues a
// reward coupon when the order qualifies. Issuance failures are logged and
// swallowed: payment must succeed regardless.
func (s *Service) MarkPaid(ctx context.Context, orderID, userID string, isAdmin bool, p PaymentResult) (*Order, error) {
	o, err := s.Get(ctx, orderID, userID, isAdmin)
	if err != nil {
		return nil, err
	}
	if o.IsPaid {
		return o, nil
	}

	paidAt := s.now()
	if err := s.orders.MarkPaid(ctx, o.ID, paidAt, p); err != nil {
		return nil, errors.Wrap(err, "mark paid")
	}
	o.IsPaid = true
	o.PaidAt = &paidAt
	o.Payment = &p
	o.Status = StatusProcessing

	if c := s.issueReward(ctx, o); c != nil {
		o.CouponGenerated = true
		o.GeneratedCouponID = c.ID
	}
	return o, nil
}

// issueReward mints the automatic reward for a freshly paid order. It never
// returns an error: a lost reward is an operational problem, not a payment
// failure.
func (s *Service) issueReward(ctx context.Context, o *Order) *coupon.Coupon {
	if !o.QualifiesForCoupon() {
		return nil
	}
	c, err := s.issuer.IssueAutomatic(ctx, o.UserID, o.ID, o.CouponBaseAmount())
	if err != nil {
		s.lg.Error("issue reward coupon",
			zap.String("order_id", o.ID),
			zap.String("user_id", o.UserID),
			zap.Error(err),
		)
		return nil
	}
	if c == nil {
		return nil
	}
	s.notifyReward(ctx, o, c)
	return c
}

func (s *Service) notifyReward(ctx context.Context, o *Order, c *coupon.Coupon) {
	if s.notifier == nil {
		return
	}
	ev := RewardIssued{
		UserID:        o.UserID,
		OrderID:       o.ID,
		Code:          c.Code,
		DiscountValue: c.DiscountValue,
		Tier:          c.TriggerTier,
		TriggerAmount: c.TriggerAmount,
		ExpiresAt:     c.ExpiresAt,
	}
	if u, err := s.users.GetByID(ctx, o.UserID); err == nil {
		ev.Email = u.Email
	}
	if err := s.notifier.RewardIssued(ctx, ev); err != nil {
		s.lg.Warn("reward notification",
			zap.String("order_id", o.ID),
			zap.String("code", c.Code),
			zap.Error(err),
		)
	}
}

// Reissue mints a reward for a paid order on demand. Unlike the automatic
// path it reports failures, but the once-per-order guard still holds: an
// order that already produced a coupon gets coupon.ErrAlreadyIssued.
func (s *Service) Reissue(ctx context.Context, orderID string) (*coupon.Coupon, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !o.IsPaid {
		return nil, ErrNotPaid
	}
	c, err := s.issuer.IssueManual(ctx, o.UserID, o.ID, o.CouponBaseAmount())
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrAmountTooLow
	}
	s.notifyReward(ctx, o, c)
	return c, nil
}
