// Package seed loads the sample catalogue used for local development and demos.
package seed

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/vaidashi/storefront-api/internal/models"
	"github.com/vaidashi/storefront-api/internal/service"
	apperrors "github.com/vaidashi/storefront-api/pkg/errors"
	"github.com/vaidashi/storefront-api/pkg/logger"
)

// Catalog is the part of the product service the seeder needs
type Catalog interface {
	GetProductBySKU(ctx context.Context, sku string) (*models.Product, error)
	CreateProduct(ctx context.Context, in service.ProductInput) (*models.Product, error)
}

// Result counts what a run did
type Result struct {
	Created int
	Skipped int
}

func product(sku, name, description string, price, discount int64, category, brand string, stock int, images ...string) service.ProductInput {
	return service.ProductInput{
		Name:          name,
		Description:   description,
		Price:         decimal.NewFromInt(price),
		DiscountPrice: decimal.NewFromInt(discount),
		Category:      category,
		Brand:         brand,
		SKU:           sku,
		Images:        images,
		Stock:         stock,
	}
}

// Products returns the sample catalogue
func Products() []service.ProductInput {
	return []service.ProductInput{
		product("SKU-APL-IP15PM", "iPhone 15 Pro Max",
			"The most advanced iPhone yet with A17 Pro chip, titanium design, and professional camera system. Features a 6.7-inch Super Retina XDR display with ProMotion technology.",
			1199, 1099, "Electronics", "Apple", 50,
			"https://images.unsplash.com/photo-1592750475338-74b7b21085ab?w=800&h=800&fit=crop",
			"https://images.unsplash.com/photo-1565849904461-04a58ad377e0?w=800&h=800&fit=crop"),
		product("SKU-APL-MBP14", "MacBook Pro 14-inch",
			"Supercharged by M3 chip, featuring incredible performance and all-day battery life. Perfect for professionals and creatives.",
			1999, 1799, "Electronics", "Apple", 25,
			"https://images.unsplash.com/photo-1496181133206-80ce9b88a853?w=800&h=800&fit=crop"),
		product("SKU-NKE-AJ1", "Nike Air Jordan 1 Retro High",
			"Classic basketball shoe that started it all. Premium leather construction with iconic colorway and superior comfort.",
			170, 149, "Fashion", "Nike", 100,
			"https://images.unsplash.com/photo-1556906781-9a412961c28c?w=800&h=800&fit=crop"),
		product("SKU-SNY-WH1000XM5", "Sony WH-1000XM5 Headphones",
			"Industry-leading noise canceling with dual noise sensor technology. Premium sound quality with 30-hour battery life.",
			399, 329, "Electronics", "Sony", 75,
			"https://images.unsplash.com/photo-1546435770-a3e426bf472b?w=800&h=800&fit=crop"),
		product("SKU-SMS-QLED65", `Samsung 65" QLED 4K Smart TV`,
			"Quantum Dot technology delivers vibrant colors and stunning clarity. Smart TV features with built-in streaming apps.",
			1299, 1099, "Electronics", "Samsung", 20,
			"https://images.unsplash.com/photo-1593359677879-a4bb92f829d1?w=800&h=800&fit=crop"),
		product("SKU-ADS-UB22", "Adidas Ultraboost 22 Running Shoes",
			"Maximum energy return with responsive Boost midsole. Primeknit upper adapts to your foot for ultimate comfort.",
			190, 159, "Fashion", "Adidas", 80,
			"https://images.unsplash.com/photo-1542291026-7eec264c27ff?w=800&h=800&fit=crop"),
		product("SKU-IPT-DUO7", "Instant Pot Duo 7-in-1 Electric Pressure Cooker",
			"7 appliances in 1: pressure cooker, slow cooker, rice cooker, steamer, sauté pan, yogurt maker, and warmer.",
			99, 79, "Home & Garden", "Instant Pot", 150,
			"https://images.unsplash.com/photo-1556909114-f6e7ad7d3136?w=800&h=800&fit=crop"),
		product("SKU-DYS-V15", "Dyson V15 Detect Cordless Vacuum",
			"Powerful cordless vacuum with laser dust detection and intelligent suction adjustment.",
			749, 649, "Home & Garden", "Dyson", 35,
			"https://images.unsplash.com/photo-1558618666-fcd25c85cd64?w=800&h=800&fit=crop"),
	}
}

// Run inserts every sample product whose SKU is not in the catalogue yet
func Run(ctx context.Context, catalog Catalog, log logger.Logger) (Result, error) {
	var result Result

	for _, in := range Products() {
		existing, err := catalog.GetProductBySKU(ctx, in.SKU)
		switch {
		case err == nil:
			log.Debug("Product already seeded", "sku", in.SKU, "productID", existing.ID)
			result.Skipped++
			continue
		case !errors.Is(err, apperrors.ErrNotFound):
			return result, fmt.Errorf("failed to look up %s: %w", in.SKU, err)
		}

		created, err := catalog.CreateProduct(ctx, in)
		if err != nil {
			return result, fmt.Errorf("failed to seed %s: %w", in.SKU, err)
		}
		log.Info("Seeded product", "sku", created.SKU, "productID", created.ID, "name", created.Name)
		result.Created++
	}

	return result, nil
}
