// Package api exposes the HTTP surface: a thin chi router delegating to the
// domain services.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mercadito/shop-api/internal/auth"
	"github.com/mercadito/shop-api/internal/domain/coupon"
	"github.com/mercadito/shop-api/internal/domain/order"
	"github.com/mercadito/shop-api/internal/domain/product"
)

// Handler wires the domain services to HTTP routes.
type Handler struct {
	coupons  *coupon.Service
	orders   *order.Service
	products product.Repository
	verifier *auth.Verifier
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(coupons *coupon.Service, orders *order.Service, products product.Repository, verifier *auth.Verifier) *Handler {
	return &Handler{
		coupons:  coupons,
		orders:   orders,
		products: products,
		verifier: verifier,
	}
}

// Routes mounts all API routes under /api. Everything except the product
// catalog requires a bearer token; administrative routes additionally
// require the admin claim.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/products", h.ListProducts)
		r.Get("/products/{id}", h.GetProduct)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(h.verifier))

			r.Route("/coupons", func(r chi.Router) {
				r.Get("/mine", h.MyCoupons)
				r.Get("/validate/{code}", h.ValidateCoupon)
				r.Post("/apply", h.ApplyCoupon)
				r.Put("/{id}/use", h.UseCoupon)

				r.Group(func(r chi.Router) {
					r.Use(auth.RequireAdmin)
					r.Get("/", h.ListCoupons)
					r.Get("/stats", h.CouponStats)
				})
			})

			r.Route("/orders", func(r chi.Router) {
				r.Post("/", h.PlaceOrder)
				r.Get("/mine", h.MyOrders)
				r.Get("/{id}", h.GetOrder)
				r.Put("/{id}/pay", h.PayOrder)

				r.Group(func(r chi.Router) {
					r.Use(auth.RequireAdmin)
					r.Get("/", h.ListOrders)
					r.Post("/{id}/generate-coupon", h.GenerateCoupon)
				})
			})
		})
	})
}

func identity(r *http.Request) auth.Identity {
	id, _ := auth.FromContext(r.Context())
	return id
}
