package coupon

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Service exposes the coupon engine's read and transition operations.
// Pricing stays pure (Quote on the entity); Service adds ownership checks
// and the one-time consumption transition on top of the repository.
type Service struct {
	coupons Repository
	now     func() time.Time
}

// NewService creates a coupon Service backed by the given repository.
func NewService(coupons Repository) *Service {
	return &Service{coupons: coupons, now: time.Now}
}

// NormalizeCode canonicalizes user-supplied coupon codes: trimmed, uppercase.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Lookup fetches a coupon by code and enforces ownership: only the user the
// coupon was created for (or an admin) may see it.
func (s *Service) Lookup(ctx context.Context, code, userID string, isAdmin bool) (*Coupon, error) {
	c, err := s.coupons.FindByCode(ctx, NormalizeCode(code))
	if err != nil {
		return nil, err
	}
	if c.CreatedFor != userID && !isAdmin {
		return nil, ErrNotOwner
	}
	return c, nil
}

// Quote looks up a coupon by code, enforces ownership, and prices it against
// the given order total. Admins may quote any user's coupon. The verdict
// carries invalid outcomes; only missing coupons and ownership violations
// surface as errors.
func (s *Service) Quote(ctx context.Context, code, userID string, isAdmin bool, orderTotal decimal.Decimal) (*Coupon, Verdict, error) {
	c, err := s.Lookup(ctx, code, userID, isAdmin)
	if err != nil {
		return nil, Verdict{}, err
	}
	return c, c.Quote(orderTotal, s.now()), nil
}

// MarkUsed performs the one-time consumption transition for the given user.
// The repository's conditional update guarantees at-most-once semantics
// under concurrent redemption; a second call reports ErrAlreadyUsed and
// leaves usedAt/usedBy untouched.
func (s *Service) MarkUsed(ctx context.Context, couponID, userID string) error {
	c, err := s.coupons.FindByID(ctx, couponID)
	if err != nil {
		return err
	}
	if c.CreatedFor != userID {
		return ErrNotOwner
	}
	if err := s.coupons.MarkUsed(ctx, couponID, userID, s.now()); err != nil {
		return errors.Wrap(err, "mark used")
	}
	return nil
}

// Release reverts a redemption whose surrounding work failed, making the
// coupon spendable again. Compensation only: on every successful path
// redemption stays terminal.
func (s *Service) Release(ctx context.Context, couponID string) error {
	if err := s.coupons.Release(ctx, couponID); err != nil {
		return errors.Wrap(err, "release")
	}
	return nil
}

// List returns coupons matching the administrative filter plus the total
// match count.
func (s *Service) List(ctx context.Context, f ListFilter) ([]Coupon, int, error) {
	return s.coupons.List(ctx, f)
}

// UsageStats aggregates issuance and redemption numbers, with expiry
// evaluated at the current instant.
func (s *Service) UsageStats(ctx context.Context) (*Stats, error) {
	return s.coupons.Stats(ctx, s.now())
}

// Wallet is a user's coupons split by current validity.
type Wallet struct {
	Valid   []Coupon
	Expired []Coupon
}

// Mine lists the user's coupons, split into still-redeemable and
// used/expired/deactivated. Validity is derived at read time.
func (s *Service) Mine(ctx context.Context, userID string) (*Wallet, error) {
	all, err := s.coupons.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	w := &Wallet{}
	for _, c := range all {
		if c.IsValidAt(now) {
			w.Valid = append(w.Valid, c)
		} else {
			w.Expired = append(w.Expired, c)
		}
	}
	return w, nil
}
