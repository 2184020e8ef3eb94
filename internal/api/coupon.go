package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/mercadito/shop-api/internal/domain/coupon"
)

type couponDTO struct {
	ID            string           `json:"id"`
	Code          string           `json:"code"`
	DiscountType  string           `json:"discount_type"`
	DiscountValue decimal.Decimal  `json:"discount_value"`
	MinPurchase   decimal.Decimal  `json:"min_purchase"`
	MaxDiscount   *decimal.Decimal `json:"max_discount,omitempty"`
	ExpiresAt     time.Time        `json:"expires_at"`
	IsActive      bool             `json:"is_active"`
	IsUsed        bool             `json:"is_used"`
	UsedAt        *time.Time       `json:"used_at,omitempty"`
	Description   string           `json:"description,omitempty"`
	Tier          string           `json:"tier,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
}

func toCouponDTO(c coupon.Coupon) couponDTO {
	return couponDTO{
		ID:            c.ID,
		Code:          c.Code,
		DiscountType:  string(c.DiscountType),
		DiscountValue: c.DiscountValue,
		MinPurchase:   c.MinPurchase,
		MaxDiscount:   c.MaxDiscount,
		ExpiresAt:     c.ExpiresAt,
		IsActive:      c.IsActive,
		IsUsed:        c.IsUsed,
		UsedAt:        c.UsedAt,
		Description:   c.Description,
		Tier:          c.TriggerTier,
		CreatedAt:     c.CreatedAt,
	}
}

func toCouponDTOs(cs []coupon.Coupon) []couponDTO {
	out := make([]couponDTO, len(cs))
	for i, c := range cs {
		out[i] = toCouponDTO(c)
	}
	return out
}

type walletResponse struct {
	Valid        []couponDTO `json:"valid"`
	Expired      []couponDTO `json:"expired"`
	ValidCount   int         `json:"valid_count"`
	ExpiredCount int         `json:"expired_count"`
}

// MyCoupons returns the caller's coupons split by current validity.
func (h *Handler) MyCoupons(w http.ResponseWriter, r *http.Request) {
	wallet, err := h.coupons.Mine(r.Context(), identity(r).UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, walletResponse{
		Valid:        toCouponDTOs(wallet.Valid),
		Expired:      toCouponDTOs(wallet.Expired),
		ValidCount:   len(wallet.Valid),
		ExpiredCount: len(wallet.Expired),
	})
}

type verdictResponse struct {
	Valid         bool            `json:"valid"`
	Reason        string          `json:"reason,omitempty"`
	Discount      decimal.Decimal `json:"discount"`
	FinalTotal    decimal.Decimal `json:"final_total"`
	DiscountType  string          `json:"discount_type,omitempty"`
	DiscountValue decimal.Decimal `json:"discount_value"`
	Coupon        *couponDTO      `json:"coupon,omitempty"`
}

func toVerdictResponse(c *coupon.Coupon, v coupon.Verdict) verdictResponse {
	resp := verdictResponse{
		Valid:         v.Valid,
		Reason:        v.Reason,
		Discount:      v.Discount,
		FinalTotal:    v.FinalTotal,
		DiscountType:  string(v.DiscountType),
		DiscountValue: v.DiscountValue,
	}
	if c != nil {
		dto := toCouponDTO(*c)
		resp.Coupon = &dto
	}
	return resp
}

// ValidateCoupon prices the coupon against the orderTotal query parameter
// and returns a cause-specific verdict (used, expired, deactivated). Invalid
// coupons are a 200 with valid=false; only missing codes and ownership
// violations are errors. Admins may validate any user's coupon.
func (h *Handler) ValidateCoupon(w http.ResponseWriter, r *http.Request) {
	total, err := decimalQuery(r, "orderTotal")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid orderTotal"})
		return
	}

	id := identity(r)
	c, v, err := h.coupons.Quote(r.Context(), chi.URLParam(r, "code"), id.UserID, id.IsAdmin, total)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toVerdictResponse(c, v))
}

type applyRequest struct {
	Code       string          `json:"code"`
	OrderTotal decimal.Decimal `json:"orderTotal"`
}

// ApplyCoupon quotes a coupon for a prospective order total. It does not
// consume the coupon; consumption happens at order placement.
func (h *Handler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	var req applyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	// Apply is the prelude to redemption, so ownership is strict even for
	// admins; cross-user inspection goes through validate.
	c, v, err := h.coupons.Quote(r.Context(), req.Code, identity(r).UserID, false, req.OrderTotal)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toVerdictResponse(c, v))
}

// UseCoupon performs the one-time consumption transition. Exactly one of
// any number of concurrent calls succeeds; the rest get 409.
func (h *Handler) UseCoupon(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.coupons.MarkUsed(r.Context(), id, identity(r).UserID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "used", "id": id})
}

type listCouponsResponse struct {
	Coupons []couponDTO `json:"coupons"`
	Total   int         `json:"total"`
	Page    int         `json:"page"`
	PerPage int         `json:"per_page"`
}

// ListCoupons is the paginated administrative listing.
func (h *Handler) ListCoupons(w http.ResponseWriter, r *http.Request) {
	f := coupon.ListFilter{Tier: r.URL.Query().Get("tier")}
	if v := r.URL.Query().Get("used"); v != "" {
		used := v == "true"
		f.IsUsed = &used
	}
	if v := r.URL.Query().Get("active"); v != "" {
		active := v == "true"
		f.IsActive = &active
	}
	f.Page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	f.PerPage, _ = strconv.Atoi(r.URL.Query().Get("per_page"))
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.PerPage <= 0 {
		f.PerPage = 20
	}

	coupons, total, err := h.coupons.List(r.Context(), f)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listCouponsResponse{
		Coupons: toCouponDTOs(coupons),
		Total:   total,
		Page:    f.Page,
		PerPage: f.PerPage,
	})
}

type tierStatsDTO struct {
	Tier             string          `json:"tier"`
	Count            int             `json:"count"`
	Used             int             `json:"used"`
	AvgTriggerAmount decimal.Decimal `json:"avg_trigger_amount"`
}

type statsResponse struct {
	Total   int            `json:"total"`
	Used    int            `json:"used"`
	Active  int            `json:"active"`
	Expired int            `json:"expired"`
	ByTier  []tierStatsDTO `json:"by_tier"`
}

// CouponStats returns the administrative usage overview.
func (h *Handler) CouponStats(w http.ResponseWriter, r *http.Request) {
	s, err := h.coupons.UsageStats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	resp := statsResponse{
		Total:   s.Total,
		Used:    s.Used,
		Active:  s.Active,
		Expired: s.Expired,
		ByTier:  make([]tierStatsDTO, len(s.ByTier)),
	}
	for i, ts := range s.ByTier {
		resp.ByTier[i] = tierStatsDTO{
			Tier:             ts.Tier,
			Count:            ts.Count,
			Used:             ts.Used,
			AvgTriggerAmount: ts.AvgTriggerAmount,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
