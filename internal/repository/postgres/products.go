package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/vaidashi/storefront-api/internal/models"
	"github.com/vaidashi/storefront-api/pkg/logger"
)

type productRepository struct {
	db     *sqlx.DB
	logger logger.Logger
}

func (r *productRepository) Create(ctx context.Context, product *models.Product) error {
	query := `
		INSERT INTO products (` + productColumns + `)
		VALUES (
			:id, :name, :description, :price, :discount_price, :category, :brand, :sku,
			:images, :stock, :is_active, :created_at, :updated_at
		)`

	if _, err := r.db.NamedExecContext(ctx, query, product); err != nil {
		r.logger.Error("Failed to create product", "error", err, "productID", product.ID)
		return mapError(err)
	}
	return nil
}

func (r *productRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	if err := r.db.GetContext(ctx, &product, `SELECT `+productColumns+` FROM products WHERE id = $1`, id); err != nil {
		return nil, mapError(err)
	}
	return &product, nil
}

func (r *productRepository) GetBySKU(ctx context.Context, sku string) (*models.Product, error) {
	var product models.Product
	if err := r.db.GetContext(ctx, &product, `SELECT `+productColumns+` FROM products WHERE sku = $1`, sku); err != nil {
		return nil, mapError(err)
	}
	return &product, nil
}

func (r *productRepository) List(ctx context.Context, filter models.ProductFilter, limit, offset int) ([]*models.Product, error) {
	w := productWhere(filter)
	query := `SELECT ` + productColumns + ` FROM products` + w.String() +
		productOrderBy(filter.Sort) + w.page(limit, offset)

	products := []*models.Product{}
	if err := r.db.SelectContext(ctx, &products, query, w.args...); err != nil {
		r.logger.Error("Failed to list products", "error", err)
		return nil, mapError(err)
	}
	return products, nil
}

func (r *productRepository) Count(ctx context.Context, filter models.ProductFilter) (int, error) {
	w := productWhere(filter)

	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM products`+w.String(), w.args...); err != nil {
		r.logger.Error("Failed to count products", "error", err)
		return 0, mapError(err)
	}
	return count, nil
}

func (r *productRepository) Update(ctx context.Context, product *models.Product) error {
	product.UpdatedAt = models.GetCurrentTime()

	query := `
		UPDATE products SET
			name = :name,
			description = :description,
			price = :price,
			discount_price = :discount_price,
			category = :category,
			brand = :brand,
			sku = :sku,
			images = :images,
			is_active = :is_active,
			updated_at = :updated_at
		WHERE id = :id`

	res, err := r.db.NamedExecContext(ctx, query, product)
	if err != nil {
		r.logger.Error("Failed to update product", "error", err, "productID", product.ID)
		return mapError(err)
	}
	return expectOneRow(res)
}

func (r *productRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("Failed to delete product", "error", err, "productID", id)
		return mapError(err)
	}
	return expectOneRow(res)
}
