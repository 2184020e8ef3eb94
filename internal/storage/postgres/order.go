package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mercadito/shop-api/internal/domain/order"
)

const orderColumns = `id, user_id, items, shipping, payment, items_price, shipping_price,
	subtotal, discount_amount, tax_price, total_price, applied_coupon, status,
	is_paid, paid_at, coupon_generated, generated_coupon_id, created_at`

const (
	createOrderSQL = `INSERT INTO orders (id, user_id, items, shipping, payment,
		items_price, shipping_price, subtotal, discount_amount, tax_price, total_price,
		applied_coupon, status, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	getOrderByIDSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	listOrdersByUserSQL = `SELECT ` + orderColumns + ` FROM orders
	WHERE user_id = $1 ORDER BY created_at DESC`

	listAllOrdersSQL = `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC`

	markOrderPaidSQL = `UPDATE orders
	SET is_paid = TRUE, paid_at = $2, payment = $3, status = $4
	WHERE id = $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order. Items, shipping address and the coupon
// snapshot are serialized to JSON for storage in JSONB columns.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshaling order items: %w", err)
	}
	shipping, err := json.Marshal(o.Shipping)
	if err != nil {
		return fmt.Errorf("marshaling shipping address: %w", err)
	}
	var payment, applied []byte
	if o.Payment != nil {
		if payment, err = json.Marshal(o.Payment); err != nil {
			return fmt.Errorf("marshaling payment: %w", err)
		}
	}
	if o.AppliedCoupon != nil {
		if applied, err = json.Marshal(o.AppliedCoupon); err != nil {
			return fmt.Errorf("marshaling applied coupon: %w", err)
		}
	}

	_, err = r.pool.Exec(ctx, createOrderSQL,
		o.ID, o.UserID, items, shipping, payment,
		o.ItemsPrice, o.ShippingPrice, o.Subtotal, o.DiscountAmount,
		o.TaxPrice, o.TotalPrice, applied, string(o.Status), o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

// GetByID looks up an order by id. Returns order.ErrNotFound when absent.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("finding order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("finding order %q: %w", id, err)
	}
	return &o, nil
}

// ListByUser returns the user's orders, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	return r.list(ctx, listOrdersByUserSQL, userID)
}

// ListAll returns every order, newest first.
func (r *OrderRepository) ListAll(ctx context.Context) ([]order.Order, error) {
	return r.list(ctx, listAllOrdersSQL)
}

func (r *OrderRepository) list(ctx context.Context, sql string, args ...any) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	out, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return out, nil
}

// MarkPaid records a successful payment on the order.
func (r *OrderRepository) MarkPaid(ctx context.Context, id string, paidAt time.Time, p order.PaymentResult) error {
	payment, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshaling payment: %w", err)
	}

	tag, err := r.pool.Exec(ctx, markOrderPaidSQL, id, paidAt, payment, string(order.StatusProcessing))
	if err != nil {
		return fmt.Errorf("marking order %q paid: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o                 order.Order
		items             []byte
		shipping          []byte
		payment           []byte
		applied           []byte
		status            string
		generatedCouponID *string
	)
	err := row.Scan(
		&o.ID, &o.UserID, &items, &shipping, &payment,
		&o.ItemsPrice, &o.ShippingPrice, &o.Subtotal, &o.DiscountAmount,
		&o.TaxPrice, &o.TotalPrice, &applied, &status,
		&o.IsPaid, &o.PaidAt, &o.CouponGenerated, &generatedCouponID, &o.CreatedAt,
	)
	if err != nil {
		return order.Order{}, err
	}

	if err := json.Unmarshal(items, &o.Items); err != nil {
		return order.Order{}, fmt.Errorf("unmarshaling order items: %w", err)
	}
	if len(shipping) > 0 {
		if err := json.Unmarshal(shipping, &o.Shipping); err != nil {
			return order.Order{}, fmt.Errorf("unmarshaling shipping address: %w", err)
		}
	}
	if len(payment) > 0 {
		if err := json.Unmarshal(payment, &o.Payment); err != nil {
			return order.Order{}, fmt.Errorf("unmarshaling payment: %w", err)
		}
	}
	if len(applied) > 0 {
		if err := json.Unmarshal(applied, &o.AppliedCoupon); err != nil {
			return order.Order{}, fmt.Errorf("unmarshaling applied coupon: %w", err)
		}
	}
	o.Status = order.Status(status)
	if generatedCouponID != nil {
		o.GeneratedCouponID = *generatedCouponID
	}
	return o, nil
}
