package order

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mercadito/shop-api/internal/domain/coupon"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestCalculateTotals(t *testing.T) {
	tests := []struct {
		name     string
		items    string
		shipping string
		discount string
		subtotal string
		tax      string
		total    string
	}{
		{
			name:  "no discount",
			items: "100", shipping: "10", discount: "0",
			subtotal: "110", tax: "16.5", total: "126.5",
		},
		{
			name:  "discount before tax",
			items: "100", shipping: "10", discount: "20",
			subtotal: "110", tax: "13.5", total: "103.5",
		},
		{
			name:  "discount exceeding subtotal clamps to zero",
			items: "10", shipping: "0", discount: "50",
			subtotal: "10", tax: "0", total: "0",
		},
		{
			name:  "cent rounding",
			items: "99.99", shipping: "5.01", discount: "10.5",
			subtotal: "105", tax: "14.18", total: "108.68",
		},
		{
			name:  "free order",
			items: "0", shipping: "0", discount: "0",
			subtotal: "0", tax: "0", total: "0",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := &Order{ItemsPrice: dec(tt.items), ShippingPrice: dec(tt.shipping)}
			o.CalculateTotals(dec(tt.discount))

			assert.True(t, o.Subtotal.Equal(dec(tt.subtotal)), "subtotal: got %s", o.Subtotal)
			assert.True(t, o.TaxPrice.Equal(dec(tt.tax)), "tax: got %s", o.TaxPrice)
			assert.True(t, o.TotalPrice.Equal(dec(tt.total)), "total: got %s", o.TotalPrice)
			assert.True(t, o.DiscountAmount.Equal(dec(tt.discount).Round(2)))
		})
	}
}

func TestApplyCouponSnapshot(t *testing.T) {
	o := &Order{ItemsPrice: dec("100"), ShippingPrice: dec("0")}
	c := &coupon.Coupon{
		ID:            "c1",
		Code:          "SAVE10ABC",
		DiscountType:  coupon.DiscountPercentage,
		DiscountValue: dec("10"),
	}
	o.ApplyCoupon(c, dec("10"))

	require.NotNil(t, o.AppliedCoupon)
	assert.Equal(t, "c1", o.AppliedCoupon.CouponID)
	assert.Equal(t, "SAVE10ABC", o.AppliedCoupon.Code)
	assert.Equal(t, "percentage", o.AppliedCoupon.DiscountType)
	assert.True(t, o.AppliedCoupon.DiscountAmount.Equal(dec("10")))
	assert.True(t, o.TotalPrice.Equal(dec("103.5")))

	// Later edits to the coupon must not leak into the snapshot.
	c.DiscountValue = dec("50")
	assert.True(t, o.AppliedCoupon.DiscountValue.Equal(dec("10")))
}

func TestQualifiesForCoupon(t *testing.T) {
	paidAt := time.Now()
	tests := []struct {
		name  string
		order Order
		want  bool
	}{
		{
			name:  "paid above threshold",
			order: Order{ItemsPrice: dec("190"), ShippingPrice: dec("10"), IsPaid: true, PaidAt: &paidAt},
			want:  true,
		},
		{
			name:  "unpaid",
			order: Order{ItemsPrice: dec("500"), IsPaid: false},
			want:  false,
		},
		{
			name:  "already generated",
			order: Order{ItemsPrice: dec("500"), IsPaid: true, CouponGenerated: true},
			want:  false,
		},
		{
			name:  "below threshold",
			order: Order{ItemsPrice: dec("199.99"), IsPaid: true},
			want:  false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.order.QualifiesForCoupon())
		})
	}
}

func TestCouponBaseAmountIgnoresDiscountAndTax(t *testing.T) {
	o := &Order{
		ItemsPrice:     dec("550"),
		ShippingPrice:  dec("50"),
		DiscountAmount: dec("60"),
		TaxPrice:       dec("81"),
	}
	assert.True(t, o.CouponBaseAmount().Equal(dec("600")))
}
