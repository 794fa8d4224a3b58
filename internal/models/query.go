package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderFilter narrows order queries. Zero values mean "no constraint".
type OrderFilter struct {
	UserID          string
	Status          OrderStatus
	ExcludeStatuses []OrderStatus
	From            *time.Time
	To              *time.Time
}

// Matches reports whether o satisfies the filter
func (f OrderFilter) Matches(o *Order) bool {
	if f.UserID != "" && o.UserID != f.UserID {
		return false
	}
	if f.Status != "" && o.Status != f.Status {
		return false
	}
	for _, s := range f.ExcludeStatuses {
		if o.Status == s {
			return false
		}
	}
	if f.From != nil && o.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && o.CreatedAt.After(*f.To) {
		return false
	}
	return true
}

// Pagination is a normalised page request
type Pagination struct {
	Page     int
	PageSize int
}

// MaxPageSize caps every listing
const MaxPageSize = 100

// NewPagination clamps page and size, falling back to defaultSize
func NewPagination(page, pageSize, defaultSize int) Pagination {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return Pagination{Page: page, PageSize: pageSize}
}

func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PageSize
}

func (p Pagination) TotalPages(total int) int {
	if total == 0 {
		return 0
	}
	return (total + p.PageSize - 1) / p.PageSize
}

// OrderPage is one page of an order listing
type OrderPage struct {
	Orders      []*Order         `json:"orders"`
	Count       int              `json:"count"`
	TotalOrders int              `json:"totalOrders"`
	CurrentPage int              `json:"currentPage"`
	TotalPages  int              `json:"totalPages"`
	PageSize    int              `json:"pageSize"`
	TotalAmount *decimal.Decimal `json:"totalAmount,omitempty"`
}

// ProductPage is one page of a catalogue listing
type ProductPage struct {
	Products      []*Product `json:"products"`
	Count         int        `json:"count"`
	TotalProducts int        `json:"totalProducts"`
	CurrentPage   int        `json:"currentPage"`
	TotalPages    int        `json:"totalPages"`
	PageSize      int        `json:"pageSize"`
}

// MonthlyRevenue aggregates non-cancelled orders for one calendar month
type MonthlyRevenue struct {
	Month   int             `db:"month" bson:"_id" json:"month"`
	Revenue decimal.Decimal `db:"revenue" bson:"revenue" json:"revenue"`
	Orders  int             `db:"orders" bson:"orders" json:"orders"`
}

// OrderStats is the admin dashboard summary
type OrderStats struct {
	TotalOrders    int                 `json:"totalOrders"`
	CountsByStatus map[OrderStatus]int `json:"countsByStatus"`
	TotalRevenue   decimal.Decimal     `json:"totalRevenue"`
	Year           int                 `json:"year"`
	Monthly        []MonthlyRevenue    `json:"monthlyRevenue"`
}
