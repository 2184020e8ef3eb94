package order

import (
	"github.com/shopspring/decimal"

	"github.com/mercadito/shop-api/internal/domain/coupon"
)

// taxRate is applied to the discounted subtotal.
var taxRate = decimal.NewFromFloat(0.15)

// CalculateTotals fills the pricing breakdown from the item and shipping
// prices already set on the order. The discount is subtracted before tax,
// and no component may go negative. All amounts round to cents.
func (o *Order) CalculateTotals(discount decimal.Decimal) {
	subtotal := o.ItemsPrice.Add(o.ShippingPrice)
	taxable := subtotal.Sub(discount)
	if taxable.IsNegative() {
		taxable = decimal.Zero
	}
	tax := taxable.Mul(taxRate).Round(2)
	total := subtotal.Sub(discount).Add(tax)
	if total.IsNegative() {
		total = decimal.Zero
	}

	o.Subtotal = subtotal.Round(2)
	o.DiscountAmount = discount.Round(2)
	o.TaxPrice = tax
	o.TotalPrice = total.Round(2)
}

// ApplyCoupon snapshots the coupon onto the order and recalculates totals
// with the given discount amount.
func (o *Order) ApplyCoupon(c *coupon.Coupon, discount decimal.Decimal) {
	o.AppliedCoupon = &AppliedCoupon{
		CouponID:       c.ID,
		Code:           c.Code,
		DiscountType:   string(c.DiscountType),
		DiscountValue:  c.DiscountValue,
		DiscountAmount: discount.Round(2),
	}
	o.CalculateTotals(discount)
}

// CouponBaseAmount is the amount reward tiers are resolved against:
// items plus shipping, before discount and tax.
func (o *Order) CouponBaseAmount() decimal.Decimal {
	return o.ItemsPrice.Add(o.ShippingPrice)
}

// QualifiesForCoupon reports whether paying this order should mint a reward:
// the order is paid, has not produced a coupon before, and its base amount
// reaches a reward tier.
func (o *Order) QualifiesForCoupon() bool {
	if !o.IsPaid || o.CouponGenerated {
		return false
	}
	_, ok := coupon.TierFor(o.CouponBaseAmount())
	return ok
}
