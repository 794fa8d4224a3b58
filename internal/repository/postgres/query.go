package postgres

import (
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/vaidashi/storefront-api/internal/models"
)

const productColumns = `id, name, description, price, discount_price, category, brand, sku,
	images, stock, is_active, created_at, updated_at`

const orderColumns = `id, user_id, items, shipping_info, payment_info, items_price, tax_price,
	shipping_price, discount, total_price, status, status_history, notes, tracking_number,
	shipping_carrier, estimated_delivery, shipped_at, delivered_at, invoice_number,
	coupon_code, refund_amount, refund_reason, created_at, updated_at`

const outboxColumns = `id, aggregate_type, aggregate_id, event_type, payload, created_at,
	next_attempt_at, processed_at, processing_attempts, last_error, status`

const effectivePriceExpr = `CASE WHEN discount_price > 0 AND discount_price < price THEN discount_price ELSE price END`

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// where accumulates AND-ed predicates with positional placeholders
type where struct {
	clauses []string
	args    []interface{}
}

// add appends a predicate; every %[1]s in format becomes the next placeholder
func (w *where) add(format string, arg interface{}) {
	w.args = append(w.args, arg)
	w.clauses = append(w.clauses, fmt.Sprintf(format, fmt.Sprintf("$%d", len(w.args))))
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// page appends LIMIT and OFFSET placeholders and returns the suffix
func (w *where) page(limit, offset int) string {
	w.args = append(w.args, limit, offset)
	n := len(w.args)
	return fmt.Sprintf(" LIMIT $%d OFFSET $%d", n-1, n)
}

func orderWhere(f models.OrderFilter) *where {
	w := &where{}
	if f.UserID != "" {
		w.add("user_id = %[1]s", f.UserID)
	}
	if f.Status != "" {
		w.add("status = %[1]s", string(f.Status))
	}
	if len(f.ExcludeStatuses) > 0 {
		excluded := make([]string, 0, len(f.ExcludeStatuses))
		for _, s := range f.ExcludeStatuses {
			excluded = append(excluded, string(s))
		}
		w.add("status <> ALL(%[1]s)", pq.Array(excluded))
	}
	if f.From != nil {
		w.add("created_at >= %[1]s", *f.From)
	}
	if f.To != nil {
		w.add("created_at <= %[1]s", *f.To)
	}
	return w
}

func productOrderBy(s models.ProductSort) string {
	switch s {
	case models.SortPriceLow:
		return ` ORDER BY ` + effectivePriceExpr + ` ASC, created_at DESC, id DESC`
	case models.SortPriceHigh:
		return ` ORDER BY ` + effectivePriceExpr + ` DESC, created_at DESC, id DESC`
	}
	return ` ORDER BY created_at DESC, id DESC`
}

func productWhere(f models.ProductFilter) *where {
	w := &where{}
	if f.ActiveOnly {
		w.add("is_active = %[1]s", true)
	}
	if f.Category != "" {
		w.add("LOWER(category) = LOWER(%[1]s)", f.Category)
	}
	if f.Brand != "" {
		w.add("LOWER(brand) = LOWER(%[1]s)", f.Brand)
	}
	if f.Keyword != "" {
		w.add("(name ILIKE %[1]s OR description ILIKE %[1]s)", "%"+likeEscaper.Replace(f.Keyword)+"%")
	}
	if f.MinPrice != nil {
		w.add(effectivePriceExpr+" >= %[1]s", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		w.add(effectivePriceExpr+" <= %[1]s", *f.MaxPrice)
	}
	return w
}
