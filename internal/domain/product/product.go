package product

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// InsufficientStockError indicates a requested quantity exceeds the
// available stock.
type InsufficientStockError struct {
	ProductID string
	Name      string
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("not enough stock for %s", e.Name)
}

// Product is the catalog slice order placement needs: identity, price, stock.
type Product struct {
	ID    string
	Name  string
	Image string
	Price decimal.Decimal
	Stock int
}

// Repository defines catalog operations used by order placement.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
	// DecrementStock atomically reduces stock by qty, failing with
	// InsufficientStockError when fewer than qty units remain.
	DecrementStock(ctx context.Context, id string, qty int) error
}
