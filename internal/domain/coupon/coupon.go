package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountPercentage applies a percentage-based discount to the order total.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed applies a fixed monetary discount capped at the order total.
	DiscountFixed DiscountType = "fixed"
)

// GenerationType records how a coupon came to exist.
type GenerationType string

const (
	// GenerationAutomatic marks coupons issued by the reward engine on a
	// qualifying paid order.
	GenerationAutomatic GenerationType = "automatic"
	// GenerationManual marks coupons issued through the administrative path.
	GenerationManual GenerationType = "manual"
)

var (
	// ErrNotFound is returned when a coupon code or id does not exist.
	ErrNotFound = errors.New("coupon not found")
	// ErrNotOwner is returned when a user acts on a coupon issued to someone else.
	ErrNotOwner = errors.New("coupon does not belong to this user")
	// ErrAlreadyUsed is returned when a coupon has already been redeemed.
	// Used is a terminal state.
	ErrAlreadyUsed = errors.New("coupon already used")
	// ErrExpired is returned when a coupon is at or past its expiry instant.
	ErrExpired = errors.New("coupon expired")
	// ErrDeactivated is returned when a coupon was switched off administratively.
	ErrDeactivated = errors.New("coupon deactivated")
	// ErrCodeExhausted is returned when the generator cannot find a unique
	// code within its retry budget.
	ErrCodeExhausted = errors.New("could not generate a unique code after several attempts")
	// ErrCodeTaken is returned by the repository when an insert loses the
	// uniqueness race on the code column.
	ErrCodeTaken = errors.New("coupon code already taken")
	// ErrAlreadyIssued is returned when the triggering order has already
	// generated a reward coupon.
	ErrAlreadyIssued = errors.New("order already generated a coupon")
)

// Coupon is a single-use reward issued to one user.
//
// The used-triple (IsUsed, UsedAt, UsedBy) is set together by the one-time
// redemption transition and never unset. Expiry is derived on read; no field
// flips when a coupon passes ExpiresAt.
type Coupon struct {
	ID            string
	Code          string
	DiscountType  DiscountType
	DiscountValue decimal.Decimal
	MinPurchase   decimal.Decimal
	// MaxDiscount caps the absolute discount amount. Nil means uncapped.
	MaxDiscount *decimal.Decimal
	ExpiresAt   time.Time
	IsActive    bool
	IsUsed      bool
	UsedAt      *time.Time
	UsedBy      string
	// CreatedFor is the owning user; only they may redeem.
	CreatedFor string
	// OrderTrigger is the order whose payment caused issuance. Provenance
	// only; not the order the coupon is later spent on.
	OrderTrigger   string
	GenerationType GenerationType
	Description    string
	// TriggerAmount and TriggerTier snapshot the qualifying amount and tier
	// for analytics.
	TriggerAmount decimal.Decimal
	TriggerTier   string
	CreatedAt     time.Time
}

// IsValidAt reports whether the coupon is redeemable at the given instant:
// active, unused, and strictly before expiry.
func (c *Coupon) IsValidAt(now time.Time) bool {
	return c.IsActive && !c.IsUsed && now.Before(c.ExpiresAt)
}

// InvalidityAt classifies why the coupon is not redeemable at the given
// instant. It returns nil for a valid coupon. Used wins over expired so a
// redeemed coupon keeps reporting the terminal state.
func (c *Coupon) InvalidityAt(now time.Time) error {
	switch {
	case c.IsUsed:
		return ErrAlreadyUsed
	case !now.Before(c.ExpiresAt):
		return ErrExpired
	case !c.IsActive:
		return ErrDeactivated
	default:
		return nil
	}
}

// Validate checks the structural invariants a coupon must satisfy regardless
// of storage technology: code shape, percentage bounds, non-negative amounts.
func (c *Coupon) Validate() error {
	if len(c.Code) < 6 || len(c.Code) > 20 {
		return errors.Errorf("code %q must be 6-20 characters", c.Code)
	}
	for i := range len(c.Code) {
		b := c.Code[i]
		if (b < 'A' || b > 'Z') && (b < '0' || b > '9') {
			return errors.Errorf("code %q must be uppercase alphanumeric", c.Code)
		}
	}
	switch c.DiscountType {
	case DiscountPercentage:
		if c.DiscountValue.LessThan(decimal.Zero) || c.DiscountValue.GreaterThan(hundred) {
			return errors.Errorf("percentage discount %s out of range [0,100]", c.DiscountValue)
		}
	case DiscountFixed:
		if c.DiscountValue.LessThan(decimal.Zero) {
			return errors.Errorf("fixed discount %s must not be negative", c.DiscountValue)
		}
	default:
		return errors.Errorf("unsupported discount type: %q", c.DiscountType)
	}
	if c.MinPurchase.LessThan(decimal.Zero) {
		return errors.New("minimum purchase must not be negative")
	}
	if c.MaxDiscount != nil && c.MaxDiscount.LessThan(decimal.Zero) {
		return errors.New("maximum discount must not be negative")
	}
	if c.ExpiresAt.IsZero() {
		return errors.New("expiry is required")
	}
	if c.CreatedFor == "" {
		return errors.New("coupon must be assigned to a user")
	}
	return nil
}

// ListFilter narrows the administrative coupon listing.
type ListFilter struct {
	IsUsed   *bool
	IsActive *bool
	Tier     string
	Page     int
	PerPage  int
}

// Stats aggregates coupon usage for the administrative overview.
type Stats struct {
	Total   int
	Used    int
	Active  int
	Expired int
	ByTier  []TierStats
}

// TierStats aggregates issuance and usage per reward tier.
type TierStats struct {
	Tier             string
	Count            int
	Used             int
	AvgTriggerAmount decimal.Decimal
}

// Repository defines persistence for coupons. Implementations must back
// Insert with a unique index on the code column and MarkUsed with an atomic
// conditional update; see the method contracts.
type Repository interface {
	// Insert persists a new coupon. For automatically generated coupons it
	// must, in the same transaction, flip the triggering order's
	// coupon_generated flag from false to true; when the flag is already set
	// it returns ErrAlreadyIssued without inserting. A code uniqueness
	// violation is reported as ErrCodeTaken.
	Insert(ctx context.Context, c *Coupon) error
	FindByID(ctx context.Context, id string) (*Coupon, error)
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	ListByUser(ctx context.Context, userID string) ([]Coupon, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	// MarkUsed performs the one-time consumption transition: an atomic
	// compare-and-set flipping is_used false→true that also records usedAt
	// and usedBy. When the guard fails it returns the classified cause
	// (ErrAlreadyUsed, ErrExpired, ErrDeactivated, or ErrNotFound).
	MarkUsed(ctx context.Context, id, userID string, now time.Time) error
	// Release reverts a consumption whose surrounding work never happened
	// (the order behind it failed to persist): flips is_used true→false and
	// clears usedAt/usedBy. Releasing an unused coupon is a no-op.
	Release(ctx context.Context, id string) error
	List(ctx context.Context, f ListFilter) ([]Coupon, int, error)
	Stats(ctx context.Context, now time.Time) (*Stats, error)
}
