package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Product is a sellable catalogue entry. Stock is the inventory ledger
// quantity and never goes below zero.
type Product struct {
	ID            string          `db:"id" bson:"_id" json:"id"`
	Name          string          `db:"name" bson:"name" json:"name"`
	Description   string          `db:"description" bson:"description" json:"description"`
	Price         decimal.Decimal `db:"price" bson:"price" json:"price"`
	DiscountPrice decimal.Decimal `db:"discount_price" bson:"discountPrice" json:"discountPrice"`
	Category      string          `db:"category" bson:"category" json:"category"`
	Brand         string          `db:"brand" bson:"brand" json:"brand"`
	SKU           string          `db:"sku" bson:"sku" json:"sku"`
	Images        StringList      `db:"images" bson:"images" json:"images"`
	Stock         int             `db:"stock" bson:"stock" json:"stock"`
	IsActive      bool            `db:"is_active" bson:"isActive" json:"isActive"`
	CreatedAt     time.Time       `db:"created_at" bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time       `db:"updated_at" bson:"updatedAt" json:"updatedAt"`
}

// NewProduct creates an active product with generated ID and SKU
func NewProduct(name string, price decimal.Decimal, stock int) *Product {
	now := GetCurrentTime()

	return &Product{
		ID:        GenerateID("prd"),
		Name:      name,
		Price:     price,
		SKU:       GenerateReference("SKU", now),
		Stock:     stock,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// EffectivePrice is the unit price captured into orders
func (p *Product) EffectivePrice() decimal.Decimal {
	if p.DiscountPrice.IsPositive() && p.DiscountPrice.LessThan(p.Price) {
		return p.DiscountPrice
	}
	return p.Price
}

// PrimaryImage returns the first image or an empty string
func (p *Product) PrimaryImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// Clone returns a deep copy
func (p *Product) Clone() *Product {
	c := *p
	if p.Images != nil {
		c.Images = append(StringList(nil), p.Images...)
	}
	return &c
}

// ProductSort orders catalogue listings
type ProductSort string

const (
	SortNewest    ProductSort = "newest"
	SortPriceLow  ProductSort = "price_low"
	SortPriceHigh ProductSort = "price_high"
)

// ParseProductSort accepts the listing sort keys; empty means newest first
func ParseProductSort(s string) (ProductSort, error) {
	switch ProductSort(strings.ToLower(strings.TrimSpace(s))) {
	case "", SortNewest:
		return SortNewest, nil
	case SortPriceLow:
		return SortPriceLow, nil
	case SortPriceHigh:
		return SortPriceHigh, nil
	}
	return "", fmt.Errorf("unknown sort %q", s)
}

// ProductFilter narrows catalogue listings
type ProductFilter struct {
	Category   string
	Brand      string
	Keyword    string
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
	ActiveOnly bool
	Sort       ProductSort
}

// Less orders a before b for the filter's sort. Price sorts use the effective
// price and fall back to newest first.
func (f ProductFilter) Less(a, b *Product) bool {
	switch f.Sort {
	case SortPriceLow, SortPriceHigh:
		pa, pb := a.EffectivePrice(), b.EffectivePrice()
		if !pa.Equal(pb) {
			return (f.Sort == SortPriceLow) == pa.LessThan(pb)
		}
	}
	return a.CreatedAt.After(b.CreatedAt)
}

// Matches reports whether p satisfies the filter. Category, brand and keyword
// comparisons are case-insensitive; the keyword searches name and description.
func (f ProductFilter) Matches(p *Product) bool {
	if f.ActiveOnly && !p.IsActive {
		return false
	}
	if f.Category != "" && !strings.EqualFold(p.Category, f.Category) {
		return false
	}
	if f.Brand != "" && !strings.EqualFold(p.Brand, f.Brand) {
		return false
	}
	if f.Keyword != "" {
		kw := strings.ToLower(f.Keyword)
		if !strings.Contains(strings.ToLower(p.Name), kw) && !strings.Contains(strings.ToLower(p.Description), kw) {
			return false
		}
	}
	price := p.EffectivePrice()
	if f.MinPrice != nil && price.LessThan(*f.MinPrice) {
		return false
	}
	if f.MaxPrice != nil && price.GreaterThan(*f.MaxPrice) {
		return false
	}
	return true
}
