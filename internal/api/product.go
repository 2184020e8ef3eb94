package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/mercadito/shop-api/internal/domain/product"
)

type productDTO struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Image string          `json:"image,omitempty"`
	Price decimal.Decimal `json:"price"`
	Stock int             `json:"stock"`
}

func toProductDTO(p product.Product) productDTO {
	return productDTO{ID: p.ID, Name: p.Name, Image: p.Image, Price: p.Price, Stock: p.Stock}
}

// ListProducts returns the catalog.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]productDTO, len(products))
	for i, p := range products {
		out[i] = toProductDTO(p)
	}
	writeJSON(w, http.StatusOK, out)
}

// GetProduct returns a single product.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductDTO(*p))
}
