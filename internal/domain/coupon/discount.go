package coupon

import (
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Verdict is the outcome of pricing a coupon against an order total.
// Invalid outcomes are expected business results, not errors.
type Verdict struct {
	Valid         bool
	Reason        string
	Discount      decimal.Decimal
	DiscountType  DiscountType
	DiscountValue decimal.Decimal
	FinalTotal    decimal.Decimal
}

// Quote computes the discount this coupon grants on the given order total at
// the given instant. It is pure: all state changes happen elsewhere.
//
// The checks run in a fixed order: the coupon's own validity, then the
// minimum-purchase floor, then the raw amount is capped by MaxDiscount and
// clamped to the order total. Discount and final total are rounded to cents.
func (c *Coupon) Quote(orderTotal decimal.Decimal, now time.Time) Verdict {
	if cause := c.InvalidityAt(now); cause != nil {
		return Verdict{Reason: invalidityReason(cause)}
	}

	if orderTotal.LessThan(c.MinPurchase) {
		return Verdict{Reason: fmt.Sprintf("minimum purchase required: $%s", c.MinPurchase)}
	}

	var discount decimal.Decimal
	if c.DiscountType == DiscountPercentage {
		discount = orderTotal.Mul(c.DiscountValue).Div(hundred)
	} else {
		discount = c.DiscountValue
	}

	if c.MaxDiscount != nil && discount.GreaterThan(*c.MaxDiscount) {
		discount = *c.MaxDiscount
	}
	if discount.GreaterThan(orderTotal) {
		discount = orderTotal
	}

	discount = discount.Round(2)

	return Verdict{
		Valid:         true,
		Discount:      discount,
		DiscountType:  c.DiscountType,
		DiscountValue: c.DiscountValue,
		FinalTotal:    orderTotal.Sub(discount).Round(2),
	}
}

// invalidityReason renders a lifecycle cause as the rejection the caller
// should see. A redeemed coupon stays "used" even once it also expires.
func invalidityReason(cause error) string {
	switch {
	case errors.Is(cause, ErrAlreadyUsed):
		return "coupon already used"
	case errors.Is(cause, ErrExpired):
		return "coupon expired"
	case errors.Is(cause, ErrDeactivated):
		return "coupon deactivated"
	default:
		return "invalid coupon"
	}
}
