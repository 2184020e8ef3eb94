package coupon

import "github.com/shopspring/decimal"

// Tier defines one step of the fixed three-tier reward scheme.
type Tier struct {
	// DiscountValue is the percentage awarded by this tier.
	DiscountValue decimal.Decimal
	// Label identifies the tier in analytics ("5%", "10%", "15%").
	Label string
	// MinPurchase is the qualifying threshold that earns this tier. Note
	// that issued coupons deliberately carry MinPurchase=0 instead; earning
	// a reward and spending it have different thresholds.
	MinPurchase decimal.Decimal
	// MaxDiscount caps the absolute discount a coupon of this tier can grant.
	MaxDiscount decimal.Decimal
	Description string
}

// tiers is ordered by descending threshold; the first match wins.
var tiers = []Tier{
	{
		DiscountValue: decimal.NewFromInt(15),
		Label:         "15%",
		MinPurchase:   decimal.NewFromInt(1000),
		MaxDiscount:   decimal.NewFromInt(150),
		Description:   "Congratulations! You earned a 15% discount for your big purchase",
	},
	{
		DiscountValue: decimal.NewFromInt(10),
		Label:         "10%",
		MinPurchase:   decimal.NewFromInt(500),
		MaxDiscount:   decimal.NewFromInt(50),
		Description:   "Excellent! You earned a 10% discount",
	},
	{
		DiscountValue: decimal.NewFromInt(5),
		Label:         "5%",
		MinPurchase:   decimal.NewFromInt(200),
		MaxDiscount:   decimal.NewFromInt(25),
		Description:   "Thanks for your purchase! You earned a 5% discount",
	},
}

// TierFor resolves the reward tier earned by the given base amount (items
// plus shipping, pre-tax, pre-discount). It reports false for amounts below
// the lowest threshold; no coupon is issued in that case.
func TierFor(baseAmount decimal.Decimal) (Tier, bool) {
	for _, t := range tiers {
		if baseAmount.GreaterThanOrEqual(t.MinPurchase) {
			return t, true
		}
	}
	return Tier{}, false
}
