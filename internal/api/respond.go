package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/mercadito/shop-api/internal/domain/coupon"
	"github.com/mercadito/shop-api/internal/domain/order"
	"github.com/mercadito/shop-api/internal/domain/product"
)

type errorResponse struct {
	Error string `json:"error"`
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// decimalQuery parses an optional decimal query parameter; absent means zero.
func decimalQuery(r *http.Request, name string) (decimal.Decimal, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(raw)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorResponse{Error: messageFor(err)})
}

// statusFor maps domain errors to HTTP status codes. Unknown errors are
// internal.
func statusFor(err error) int {
	var (
		notFoundProduct *order.ProductNotFoundError
		badQty          *order.InvalidQuantityError
		rejected        *order.CouponRejectedError
		noStock         *product.InsufficientStockError
	)
	switch {
	case errors.Is(err, coupon.ErrNotFound),
		errors.Is(err, order.ErrNotFound),
		errors.Is(err, product.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, coupon.ErrNotOwner),
		errors.Is(err, order.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, coupon.ErrAlreadyUsed),
		errors.Is(err, coupon.ErrExpired),
		errors.Is(err, coupon.ErrDeactivated),
		errors.Is(err, coupon.ErrAlreadyIssued),
		errors.Is(err, order.ErrNotPaid),
		errors.As(err, &noStock):
		return http.StatusConflict
	case errors.Is(err, order.ErrEmptyItems),
		errors.Is(err, order.ErrAmountTooLow),
		errors.As(err, &notFoundProduct),
		errors.As(err, &badQty),
		errors.As(err, &rejected):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func messageFor(err error) string {
	if statusFor(err) == http.StatusInternalServerError {
		return "internal server error"
	}
	return err.Error()
}
