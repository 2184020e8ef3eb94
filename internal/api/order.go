package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/mercadito/shop-api/internal/domain/order"
)

type orderItemDTO struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Qty       int             `json:"qty"`
	Price     decimal.Decimal `json:"price"`
	Image     string          `json:"image,omitempty"`
}

type appliedCouponDTO struct {
	CouponID       string          `json:"coupon_id"`
	Code           string          `json:"code"`
	DiscountType   string          `json:"discount_type"`
	DiscountValue  decimal.Decimal `json:"discount_value"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
}

type orderDTO struct {
	ID                string                `json:"id"`
	UserID            string                `json:"user_id"`
	Items             []orderItemDTO        `json:"items"`
	Shipping          order.ShippingAddress `json:"shipping"`
	PaymentMethod     string                `json:"payment_method,omitempty"`
	ItemsPrice        decimal.Decimal       `json:"items_price"`
	ShippingPrice     decimal.Decimal       `json:"shipping_price"`
	Subtotal          decimal.Decimal       `json:"subtotal"`
	DiscountAmount    decimal.Decimal       `json:"discount_amount"`
	TaxPrice          decimal.Decimal       `json:"tax_price"`
	TotalPrice        decimal.Decimal       `json:"total_price"`
	AppliedCoupon     *appliedCouponDTO     `json:"applied_coupon,omitempty"`
	Status            string                `json:"status"`
	IsPaid            bool                  `json:"is_paid"`
	PaidAt            *time.Time            `json:"paid_at,omitempty"`
	CouponGenerated   bool                  `json:"coupon_generated"`
	GeneratedCouponID string                `json:"generated_coupon_id,omitempty"`
	CreatedAt         time.Time             `json:"created_at"`
}

func toOrderDTO(o *order.Order) orderDTO {
	dto := orderDTO{
		ID:                o.ID,
		UserID:            o.UserID,
		Items:             make([]orderItemDTO, len(o.Items)),
		Shipping:          o.Shipping,
		PaymentMethod:     o.PaymentMethod,
		ItemsPrice:        o.ItemsPrice,
		ShippingPrice:     o.ShippingPrice,
		Subtotal:          o.Subtotal,
		DiscountAmount:    o.DiscountAmount,
		TaxPrice:          o.TaxPrice,
		TotalPrice:        o.TotalPrice,
		Status:            string(o.Status),
		IsPaid:            o.IsPaid,
		PaidAt:            o.PaidAt,
		CouponGenerated:   o.CouponGenerated,
		GeneratedCouponID: o.GeneratedCouponID,
		CreatedAt:         o.CreatedAt,
	}
	for i, it := range o.Items {
		dto.Items[i] = orderItemDTO{
			ProductID: it.ProductID,
			Name:      it.Name,
			Qty:       it.Qty,
			Price:     it.Price,
			Image:     it.Image,
		}
	}
	if o.AppliedCoupon != nil {
		dto.AppliedCoupon = &appliedCouponDTO{
			CouponID:       o.AppliedCoupon.CouponID,
			Code:           o.AppliedCoupon.Code,
			DiscountType:   o.AppliedCoupon.DiscountType,
			DiscountValue:  o.AppliedCoupon.DiscountValue,
			DiscountAmount: o.AppliedCoupon.DiscountAmount,
		}
	}
	return dto
}

func toOrderDTOs(os []order.Order) []orderDTO {
	out := make([]orderDTO, len(os))
	for i := range os {
		out[i] = toOrderDTO(&os[i])
	}
	return out
}

type placeOrderRequest struct {
	Items []struct {
		ProductID string `json:"product_id"`
		Qty       int    `json:"qty"`
	} `json:"items"`
	Shipping      order.ShippingAddress `json:"shipping"`
	PaymentMethod string                `json:"payment_method"`
	ShippingPrice decimal.Decimal       `json:"shipping_price"`
	CouponCode    string                `json:"coupon_code,omitempty"`
}

// PlaceOrder creates an order for the caller. An optional coupon code is
// validated and consumed as part of placement.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	domainReq := order.PlaceRequest{
		UserID:        identity(r).UserID,
		Shipping:      req.Shipping,
		PaymentMethod: req.PaymentMethod,
		ShippingPrice: req.ShippingPrice,
		CouponCode:    req.CouponCode,
	}
	for _, it := range req.Items {
		domainReq.Items = append(domainReq.Items, order.ItemRequest{ProductID: it.ProductID, Qty: it.Qty})
	}

	o, err := h.orders.Place(r.Context(), domainReq)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderDTO(o))
}

// MyOrders lists the caller's orders.
func (h *Handler) MyOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListMine(r.Context(), identity(r).UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDTOs(orders))
}

// ListOrders lists every order. Admin only.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListAll(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDTOs(orders))
}

// GetOrder returns a single order, owner or admin only.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	o, err := h.orders.Get(r.Context(), chi.URLParam(r, "id"), id.UserID, id.IsAdmin)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDTO(o))
}

type payOrderRequest struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Email  string `json:"email,omitempty"`
}

// PayOrder records a payment confirmation. A qualifying order mints a
// reward coupon as a side effect; the response carries the updated flags.
func (h *Handler) PayOrder(w http.ResponseWriter, r *http.Request) {
	var req payOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	id := identity(r)
	o, err := h.orders.MarkPaid(r.Context(), chi.URLParam(r, "id"), id.UserID, id.IsAdmin,
		order.PaymentResult{ID: req.ID, Status: req.Status, Email: req.Email})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDTO(o))
}

// GenerateCoupon is the administrative re-issuance path for a paid order.
// The once-per-order guard still applies: 409 when the order already
// produced a coupon.
func (h *Handler) GenerateCoupon(w http.ResponseWriter, r *http.Request) {
	c, err := h.orders.Reissue(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCouponDTO(*c))
}
