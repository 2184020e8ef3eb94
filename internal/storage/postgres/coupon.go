package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/mercadito/shop-api/internal/domain/coupon"
)

const couponColumns = `id, code, discount_type, discount_value, min_purchase, max_discount,
	expires_at, is_active, is_used, used_at, used_by, created_for, order_trigger,
	generation_type, description, trigger_amount, trigger_tier, created_at`

const (
	claimOrderRewardSQL = `UPDATE orders
	SET coupon_generated = TRUE, generated_coupon_id = $2
	WHERE id = $1 AND coupon_generated = FALSE`

	insertCouponSQL = `INSERT INTO coupons (id, code, discount_type, discount_value,
		min_purchase, max_discount, expires_at, is_active, created_for, order_trigger,
		generation_type, description, trigger_amount, trigger_tier, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	getCouponByIDSQL = `SELECT ` + couponColumns + ` FROM coupons WHERE id = $1`

	getCouponByCodeSQL = `SELECT ` + couponColumns + ` FROM coupons
	WHERE UPPER(code) = UPPER($1)`

	listCouponsByUserSQL = `SELECT ` + couponColumns + ` FROM coupons
	WHERE created_for = $1 ORDER BY created_at DESC`

	couponCodeExistsSQL = `SELECT EXISTS (
	SELECT 1 FROM coupons WHERE UPPER(code) = UPPER($1))`

	markCouponUsedSQL = `UPDATE coupons
	SET is_used = TRUE, used_at = $2, used_by = $3
	WHERE id = $1 AND is_active = TRUE AND is_used = FALSE AND expires_at > $2`

	releaseCouponSQL = `UPDATE coupons
	SET is_used = FALSE, used_at = NULL, used_by = NULL
	WHERE id = $1 AND is_used = TRUE`

	couponStatsSQL = `SELECT COUNT(*),
	COUNT(*) FILTER (WHERE is_used),
	COUNT(*) FILTER (WHERE NOT is_used AND is_active AND expires_at > $1),
	COUNT(*) FILTER (WHERE NOT is_used AND expires_at <= $1)
	FROM coupons`

	couponTierStatsSQL = `SELECT trigger_tier, COUNT(*),
	COUNT(*) FILTER (WHERE is_used),
	COALESCE(AVG(trigger_amount), 0)
	FROM coupons WHERE trigger_tier IS NOT NULL
	GROUP BY trigger_tier ORDER BY trigger_tier DESC`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// Insert persists a new coupon. The triggering order's coupon_generated flag
// flips in the same transaction, guarded by a conditional update, so each
// order can mint at most one coupon even under concurrent payment
// confirmation. A losing insert on the code's unique index surfaces as
// coupon.ErrCodeTaken so the issuer can regenerate and retry.
func (r *CouponRepository) Insert(ctx context.Context, c *coupon.Coupon) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning insert transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, claimOrderRewardSQL, c.OrderTrigger, c.ID)
	if err != nil {
		return fmt.Errorf("claiming reward for order %q: %w", c.OrderTrigger, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrAlreadyIssued
	}

	_, err = tx.Exec(ctx, insertCouponSQL,
		c.ID, c.Code, string(c.DiscountType), c.DiscountValue,
		c.MinPurchase, c.MaxDiscount, c.ExpiresAt, c.IsActive,
		c.CreatedFor, c.OrderTrigger, string(c.GenerationType),
		c.Description, c.TriggerAmount, nullIfEmpty(c.TriggerTier), c.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "idx_coupons_code") {
			return coupon.ErrCodeTaken
		}
		return fmt.Errorf("inserting coupon %q: %w", c.Code, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing coupon %q: %w", c.Code, err)
	}
	return nil
}

// FindByID looks up a coupon by id. Returns coupon.ErrNotFound when absent.
func (r *CouponRepository) FindByID(ctx context.Context, id string) (*coupon.Coupon, error) {
	return r.findOne(ctx, getCouponByIDSQL, id)
}

// FindByCode looks up a coupon by its code, case-insensitively.
// Returns coupon.ErrNotFound when absent.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	return r.findOne(ctx, getCouponByCodeSQL, code)
}

func (r *CouponRepository) findOne(ctx context.Context, sql, arg string) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("finding coupon: %w", err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("finding coupon: %w", err)
	}
	return &c, nil
}

// ListByUser returns all coupons issued to the user, newest first.
func (r *CouponRepository) ListByUser(ctx context.Context, userID string) ([]coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, listCouponsByUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing coupons for user %q: %w", userID, err)
	}

	out, err := pgx.CollectRows(rows, scanCoupon)
	if err != nil {
		return nil, fmt.Errorf("listing coupons for user %q: %w", userID, err)
	}
	return out, nil
}

// CodeExists reports whether any coupon already carries the code,
// case-insensitively. It is advisory; the unique index has the final word.
func (r *CouponRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, couponCodeExistsSQL, code).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking code %q: %w", code, err)
	}
	return exists, nil
}

// MarkUsed flips the coupon to used with a conditional update. The guard in
// the WHERE clause makes the transition atomic: of any number of concurrent
// redeemers exactly one update succeeds. A failed guard is classified by
// re-reading the row.
func (r *CouponRepository) MarkUsed(ctx context.Context, id, userID string, now time.Time) error {
	tag, err := r.pool.Exec(ctx, markCouponUsedSQL, id, now, userID)
	if err != nil {
		return fmt.Errorf("marking coupon %q used: %w", id, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	c, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if cause := c.InvalidityAt(now); cause != nil {
		return cause
	}
	// The row turned valid between the update and the re-read. Report the
	// conservative cause; the caller may retry.
	return coupon.ErrAlreadyUsed
}

// Release reverts a redemption whose order never persisted. Zero affected
// rows means the coupon was not used; that is fine.
func (r *CouponRepository) Release(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx, releaseCouponSQL, id); err != nil {
		return fmt.Errorf("releasing coupon %q: %w", id, err)
	}
	return nil
}

// List returns coupons matching the filter plus the total match count.
func (r *CouponRepository) List(ctx context.Context, f coupon.ListFilter) ([]coupon.Coupon, int, error) {
	where := ""
	args := []any{}
	and := func(cond string, arg any) {
		args = append(args, arg)
		if where == "" {
			where = " WHERE "
		} else {
			where += " AND "
		}
		where += fmt.Sprintf(cond, len(args))
	}
	if f.IsUsed != nil {
		and("is_used = $%d", *f.IsUsed)
	}
	if f.IsActive != nil {
		and("is_active = $%d", *f.IsActive)
	}
	if f.Tier != "" {
		and("trigger_tier = $%d", f.Tier)
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM coupons"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting coupons: %w", err)
	}

	perPage := f.PerPage
	if perPage <= 0 {
		perPage = 20
	}
	page := f.Page
	if page <= 0 {
		page = 1
	}
	sql := "SELECT " + couponColumns + " FROM coupons" + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, perPage, (page-1)*perPage)

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing coupons: %w", err)
	}
	out, err := pgx.CollectRows(rows, scanCoupon)
	if err != nil {
		return nil, 0, fmt.Errorf("listing coupons: %w", err)
	}
	return out, total, nil
}

// Stats aggregates coupon counts overall and per reward tier. Expiry is
// evaluated against the given instant, consistent with read-time validity.
func (r *CouponRepository) Stats(ctx context.Context, now time.Time) (*coupon.Stats, error) {
	var s coupon.Stats
	err := r.pool.QueryRow(ctx, couponStatsSQL, now).Scan(&s.Total, &s.Used, &s.Active, &s.Expired)
	if err != nil {
		return nil, fmt.Errorf("aggregating coupon stats: %w", err)
	}

	rows, err := r.pool.Query(ctx, couponTierStatsSQL)
	if err != nil {
		return nil, fmt.Errorf("aggregating tier stats: %w", err)
	}
	s.ByTier, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (coupon.TierStats, error) {
		var ts coupon.TierStats
		err := row.Scan(&ts.Tier, &ts.Count, &ts.Used, &ts.AvgTriggerAmount)
		return ts, err
	})
	if err != nil {
		return nil, fmt.Errorf("aggregating tier stats: %w", err)
	}
	return &s, nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c             coupon.Coupon
		discountType  string
		gtype         string
		usedBy        *string
		triggerAmount *decimal.Decimal
		triggerTier   *string
	)
	err := row.Scan(
		&c.ID, &c.Code, &discountType, &c.DiscountValue, &c.MinPurchase, &c.MaxDiscount,
		&c.ExpiresAt, &c.IsActive, &c.IsUsed, &c.UsedAt, &usedBy, &c.CreatedFor,
		&c.OrderTrigger, &gtype, &c.Description, &triggerAmount, &triggerTier, &c.CreatedAt,
	)
	if err != nil {
		return coupon.Coupon{}, err
	}

	c.DiscountType = coupon.DiscountType(discountType)
	c.GenerationType = coupon.GenerationType(gtype)
	if usedBy != nil {
		c.UsedBy = *usedBy
	}
	if triggerAmount != nil {
		c.TriggerAmount = *triggerAmount
	}
	if triggerTier != nil {
		c.TriggerTier = *triggerTier
	}
	return c, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
