package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// rewardValidity is how long an issued reward coupon stays redeemable.
const rewardValidity = 10 // days

// Issuer creates reward coupons for qualifying paid orders.
type Issuer struct {
	coupons Repository
	gen     *Generator
	now     func() time.Time
}

// NewIssuer creates an Issuer persisting through the given repository.
func NewIssuer(coupons Repository) *Issuer {
	return &Issuer{
		coupons: coupons,
		gen:     NewGenerator(coupons),
		now:     time.Now,
	}
}

// IssueAutomatic issues the reward earned by a paid order with the given
// base amount. It returns (nil, nil) when the amount earns no tier.
//
// The issued coupon deliberately carries MinPurchase=0 (the threshold that
// earns a reward is not the threshold required to spend it) and expires ten
// days after issuance. Idempotency rides on the triggering order's
// coupon_generated flag, which Insert flips atomically with the coupon row;
// a second issuance attempt for the same order returns ErrAlreadyIssued.
func (i *Issuer) IssueAutomatic(ctx context.Context, userID, orderID string, baseAmount decimal.Decimal) (*Coupon, error) {
	return i.issue(ctx, userID, orderID, baseAmount, GenerationAutomatic)
}

// IssueManual is the administrative issuance path. Same tier rules, flagged
// as manual for analytics.
func (i *Issuer) IssueManual(ctx context.Context, userID, orderID string, baseAmount decimal.Decimal) (*Coupon, error) {
	return i.issue(ctx, userID, orderID, baseAmount, GenerationManual)
}

func (i *Issuer) issue(ctx context.Context, userID, orderID string, baseAmount decimal.Decimal, gtype GenerationType) (*Coupon, error) {
	tier, ok := TierFor(baseAmount)
	if !ok {
		return nil, nil
	}

	now := i.now()
	prefix := DefaultPrefix + tier.DiscountValue.String()

	// The generator verifies candidates against the persisted set, but only
	// the unique index decides under concurrency: retry the whole
	// generate+insert loop when the insert loses the race.
	for attempt := 0; attempt < maxAttempts; attempt++ {
		code, err := i.gen.Generate(ctx, prefix)
		if err != nil {
			return nil, err
		}

		maxDiscount := tier.MaxDiscount
		c := &Coupon{
			ID:             uuid.New().String(),
			Code:           code,
			DiscountType:   DiscountPercentage,
			DiscountValue:  tier.DiscountValue,
			MinPurchase:    decimal.Zero,
			MaxDiscount:    &maxDiscount,
			ExpiresAt:      now.AddDate(0, 0, rewardValidity),
			IsActive:       true,
			CreatedFor:     userID,
			OrderTrigger:   orderID,
			GenerationType: gtype,
			Description:    tier.Description,
			TriggerAmount:  baseAmount,
			TriggerTier:    tier.Label,
			CreatedAt:      now,
		}
		if err := c.Validate(); err != nil {
			return nil, errors.Wrap(err, "validate issued coupon")
		}

		err = i.coupons.Insert(ctx, c)
		if errors.Is(err, ErrCodeTaken) {
			continue
		}
		if err != nil {
			return nil, errors.Wrap(err, "insert coupon")
		}
		return c, nil
	}

	return nil, ErrCodeExhausted
}
