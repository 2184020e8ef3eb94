package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mercadito/shop-api/internal/domain/product"
)

const (
	listProductsSQL = `SELECT id, name, image, price, stock
	FROM products ORDER BY name`

	getProductByIDSQL = `SELECT id, name, image, price, stock
	FROM products WHERE id = $1`

	getProductsByIDsSQL = `SELECT id, name, image, price, stock
	FROM products WHERE id = ANY($1)`

	decrementStockSQL = `UPDATE products SET stock = stock - $2
	WHERE id = $1 AND stock >= $2`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns the full product catalog.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	out, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return out, nil
}

// GetByID looks up a product. Returns product.ErrNotFound when absent.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("finding product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("finding product %q: %w", id, err)
	}
	return &p, nil
}

// GetByIDs returns the products matching the given ids. Missing ids are
// simply absent from the result; the caller decides whether that is an error.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("finding products: %w", err)
	}
	out, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, fmt.Errorf("finding products: %w", err)
	}
	return out, nil
}

// DecrementStock atomically reduces stock, refusing to go negative. The
// conditional update is the concurrency guard; a failed guard is reported
// as product.InsufficientStockError.
func (r *ProductRepository) DecrementStock(ctx context.Context, id string, qty int) error {
	tag, err := r.pool.Exec(ctx, decrementStockSQL, id, qty)
	if err != nil {
		return fmt.Errorf("decrementing stock for product %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		p, err := r.GetByID(ctx, id)
		if err != nil {
			return err
		}
		return &product.InsufficientStockError{ProductID: p.ID, Name: p.Name}
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(&p.ID, &p.Name, &p.Image, &p.Price, &p.Stock)
	return p, err
}
