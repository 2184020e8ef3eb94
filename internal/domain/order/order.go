package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Status tracks fulfilment progress. It is independent of payment state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

var (
	// ErrNotFound is returned when an order id does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrNotOwner is returned when a user acts on someone else's order.
	ErrNotOwner = errors.New("not authorized for this order")
	// ErrEmptyItems is returned when an order is placed without items.
	ErrEmptyItems = errors.New("items required")
	// ErrNotPaid is returned when an operation requires a paid order.
	ErrNotPaid = errors.New("order must be paid")
	// ErrAmountTooLow is returned by manual issuance when the order's base
	// amount earns no reward tier.
	ErrAmountTooLow = errors.New("order amount too low for coupon generation")
)

// ProductNotFoundError indicates a requested product does not exist.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// InvalidQuantityError indicates a line item has a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// CouponRejectedError carries the calculator's reason for refusing a coupon
// at order placement.
type CouponRejectedError struct {
	Reason string
}

func (e *CouponRejectedError) Error() string { return e.Reason }

// OrderItem is a priced line item, snapshot at placement time.
type OrderItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Qty       int             `json:"qty"`
	Price     decimal.Decimal `json:"price"`
	Image     string          `json:"image,omitempty"`
}

// ShippingAddress is the delivery destination.
type ShippingAddress struct {
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// PaymentResult is the gateway's confirmation payload, stored verbatim.
type PaymentResult struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Email  string `json:"email,omitempty"`
}

// AppliedCoupon is the snapshot captured when a coupon is applied to an
// order. It stays frozen even if the coupon record changes later.
type AppliedCoupon struct {
	CouponID       string          `json:"coupon_id"`
	Code           string          `json:"code"`
	DiscountType   string          `json:"discount_type"`
	DiscountValue  decimal.Decimal `json:"discount_value"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
}

// Order is a customer order with its pricing breakdown and reward tracking.
type Order struct {
	ID             string
	UserID         string
	Items          []OrderItem
	Shipping       ShippingAddress
	PaymentMethod  string
	Payment        *PaymentResult
	ItemsPrice     decimal.Decimal
	ShippingPrice  decimal.Decimal
	Subtotal       decimal.Decimal
	DiscountAmount decimal.Decimal
	TaxPrice       decimal.Decimal
	TotalPrice     decimal.Decimal
	AppliedCoupon  *AppliedCoupon
	Status         Status
	IsPaid         bool
	PaidAt         *time.Time
	// CouponGenerated flips to true at most once, when this order's payment
	// triggers a reward. It gates re-issuance.
	CouponGenerated   bool
	GeneratedCouponID string
	CreatedAt         time.Time
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	ListAll(ctx context.Context) ([]Order, error)
	MarkPaid(ctx context.Context, id string, paidAt time.Time, p PaymentResult) error
}
