package models

import (
	"database/sql/driver"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Payment types accepted at checkout
const (
	PaymentTypeCard           = "card"
	PaymentTypePaypal         = "paypal"
	PaymentTypeStripe         = "stripe"
	PaymentTypeCashOnDelivery = "cash_on_delivery"
)

// Order represents an order in the system
type Order struct {
	ID                string          `db:"id" bson:"_id" json:"id"`
	UserID            string          `db:"user_id" bson:"userId" json:"user"`
	Items             OrderItems      `db:"items" bson:"items" json:"orderItems"`
	ShippingInfo      ShippingInfo    `db:"shipping_info" bson:"shippingInfo" json:"shippingInfo"`
	PaymentInfo       PaymentInfo     `db:"payment_info" bson:"paymentInfo" json:"paymentInfo"`
	ItemsPrice        decimal.Decimal `db:"items_price" bson:"itemsPrice" json:"itemsPrice"`
	TaxPrice          decimal.Decimal `db:"tax_price" bson:"taxPrice" json:"taxPrice"`
	ShippingPrice     decimal.Decimal `db:"shipping_price" bson:"shippingPrice" json:"shippingPrice"`
	Discount          decimal.Decimal `db:"discount" bson:"discount" json:"discount"`
	TotalPrice        decimal.Decimal `db:"total_price" bson:"totalPrice" json:"totalPrice"`
	Status            OrderStatus     `db:"status" bson:"status" json:"orderStatus"`
	StatusHistory     StatusHistory   `db:"status_history" bson:"statusHistory" json:"statusHistory"`
	Notes             string          `db:"notes" bson:"notes" json:"orderNotes,omitempty"`
	TrackingNumber    string          `db:"tracking_number" bson:"trackingNumber" json:"trackingNumber,omitempty"`
	ShippingCarrier   string          `db:"shipping_carrier" bson:"shippingCarrier" json:"shippingCarrier,omitempty"`
	EstimatedDelivery *time.Time      `db:"estimated_delivery" bson:"estimatedDelivery,omitempty" json:"estimatedDelivery,omitempty"`
	ShippedAt         *time.Time      `db:"shipped_at" bson:"shippedAt,omitempty" json:"shippedAt,omitempty"`
	DeliveredAt       *time.Time      `db:"delivered_at" bson:"deliveredAt,omitempty" json:"deliveredAt,omitempty"`
	InvoiceNumber     string          `db:"invoice_number" bson:"invoiceNumber" json:"invoiceNumber,omitempty"`
	CouponCode        string          `db:"coupon_code" bson:"couponCode" json:"couponCode,omitempty"`
	RefundAmount      decimal.Decimal `db:"refund_amount" bson:"refundAmount" json:"refundAmount"`
	RefundReason      string          `db:"refund_reason" bson:"refundReason" json:"refundReason,omitempty"`
	CreatedAt         time.Time       `db:"created_at" bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time       `db:"updated_at" bson:"updatedAt" json:"updatedAt"`
}

// OrderItem is a snapshot of a product at purchase time
type OrderItem struct {
	ProductID string          `bson:"productId" json:"product"`
	Name      string          `bson:"name" json:"name"`
	Price     decimal.Decimal `bson:"price" json:"price"`
	Quantity  int             `bson:"quantity" json:"quantity"`
	Image     string          `bson:"image" json:"image"`
	Variant   *Variant        `bson:"variant,omitempty" json:"variant,omitempty"`
}

// Variant identifies a product option such as a size
type Variant struct {
	Name  string `bson:"name" json:"name"`
	Value string `bson:"value" json:"value"`
}

// Subtotal is price times quantity
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// ShippingInfo is the delivery address of an order
type ShippingInfo struct {
	Name       string `bson:"name" json:"name"`
	Phone      string `bson:"phone" json:"phone"`
	Address    string `bson:"address" json:"address"`
	City       string `bson:"city" json:"city"`
	State      string `bson:"state" json:"state"`
	Country    string `bson:"country" json:"country"`
	PostalCode string `bson:"postalCode" json:"postalCode"`
}

// PaymentInfo references the payment made for an order
type PaymentInfo struct {
	ID     string `bson:"id" json:"id,omitempty"`
	Status string `bson:"status" json:"status,omitempty"`
	Type   string `bson:"type" json:"type"`
}

// StatusChange is one entry of the append-only status history
type StatusChange struct {
	Status    OrderStatus `bson:"status" json:"status"`
	Timestamp time.Time   `bson:"timestamp" json:"timestamp"`
	Note      string      `bson:"note,omitempty" json:"note,omitempty"`
	UpdatedBy string      `bson:"updatedBy,omitempty" json:"updatedBy,omitempty"`
}

// StatusUpdate carries the data recorded alongside a status change
type StatusUpdate struct {
	TrackingNumber    string
	ShippingCarrier   string
	EstimatedDelivery *time.Time
	RefundAmount      decimal.Decimal
	RefundReason      string
	Note              string
	UpdatedBy         string
}

// StockDelta is a signed quantity applied to a product's stock
type StockDelta struct {
	ProductID string
	Delta     int
}

type OrderItems []OrderItem
type StatusHistory []StatusChange

func (i OrderItems) Value() (driver.Value, error) { return jsonValue([]OrderItem(i)) }
func (i *OrderItems) Scan(src interface{}) error { return jsonScan(src, (*[]OrderItem)(i)) }
func (h StatusHistory) Value() (driver.Value, error) { return jsonValue([]StatusChange(h)) }
func (h *StatusHistory) Scan(src interface{}) error { return jsonScan(src, (*[]StatusChange)(h)) }
func (s ShippingInfo) Value() (driver.Value, error) { return jsonValue(s) }
func (s *ShippingInfo) Scan(src interface{}) error { return jsonScan(src, s) }
func (p PaymentInfo) Value() (driver.Value, error) { return jsonValue(p) }
func (p *PaymentInfo) Scan(src interface{}) error { return jsonScan(src, p) }

// NewOrder creates an order in the Processing state with its first history entry
func NewOrder(userID string, items []OrderItem, shipping ShippingInfo, payment PaymentInfo, at time.Time) *Order {
	if payment.Type == "" {
		payment.Type = PaymentTypeStripe
	}

	return &Order{
		ID:           GenerateID("ord"),
		UserID:       userID,
		Items:        items,
		ShippingInfo: shipping,
		PaymentInfo:  payment,
		Status:       OrderStatusProcessing,
		StatusHistory: StatusHistory{{
			Status:    OrderStatusProcessing,
			Timestamp: at,
			Note:      "Order placed",
			UpdatedBy: userID,
		}},
		CreatedAt: at,
		UpdatedAt: at,
	}
}

// RecalculateTotals derives ItemsPrice and TotalPrice from the item snapshot
func (o *Order) RecalculateTotals() {
	items := decimal.Zero
	for _, item := range o.Items {
		items = items.Add(item.Subtotal())
	}

	o.ItemsPrice = items
	o.TotalPrice = items.Add(o.TaxPrice).Add(o.ShippingPrice).Sub(o.Discount)
}

// ApplyStatus moves the order to next and records the change. Callers are
// expected to have checked the transition with CanTransitionTo.
func (o *Order) ApplyStatus(next OrderStatus, update StatusUpdate, at time.Time) {
	switch next {
	case OrderStatusConfirmed:
		if o.InvoiceNumber == "" {
			o.InvoiceNumber = GenerateReference("INV", at)
		}
	case OrderStatusShipped:
		shippedAt := at
		o.ShippedAt = &shippedAt
		if update.TrackingNumber != "" {
			o.TrackingNumber = update.TrackingNumber
		}
		if update.ShippingCarrier != "" {
			o.ShippingCarrier = update.ShippingCarrier
		}
		if update.EstimatedDelivery != nil {
			eta := *update.EstimatedDelivery
			o.EstimatedDelivery = &eta
		}
	case OrderStatusDelivered:
		deliveredAt := at
		o.DeliveredAt = &deliveredAt
	case OrderStatusRefunded:
		o.RefundAmount = update.RefundAmount
		if o.RefundAmount.IsZero() {
			o.RefundAmount = o.TotalPrice
		}
		o.RefundReason = update.RefundReason
	}

	o.Status = next
	o.StatusHistory = append(o.StatusHistory, StatusChange{
		Status:    next,
		Timestamp: at,
		Note:      update.Note,
		UpdatedBy: update.UpdatedBy,
	})
	o.UpdatedAt = at
}

// IsOwnedBy reports whether userID placed the order
func (o *Order) IsOwnedBy(userID string) bool {
	return userID != "" && o.UserID == userID
}

// RestockDeltas returns the stock increments that undo this order's decrements
func (o *Order) RestockDeltas() []StockDelta {
	deltas := make([]StockDelta, 0, len(o.Items))
	for _, item := range o.Items {
		deltas = append(deltas, StockDelta{ProductID: item.ProductID, Delta: item.Quantity})
	}
	return MergeStockDeltas(deltas)
}

// MergeStockDeltas sums deltas per product and orders them by product ID so
// concurrent multi-item operations lock rows in the same order. Sums saturate
// at the int bounds instead of wrapping.
func MergeStockDeltas(deltas []StockDelta) []StockDelta {
	sums := make(map[string]int, len(deltas))
	for _, d := range deltas {
		sums[d.ProductID] = addSaturating(sums[d.ProductID], d.Delta)
	}

	merged := make([]StockDelta, 0, len(sums))
	for id, delta := range sums {
		if delta != 0 {
			merged = append(merged, StockDelta{ProductID: id, Delta: delta})
		}
	}

	sort.Slice(merged, func(i, j int) bool { return merged[i].ProductID < merged[j].ProductID })
	return merged
}

func addSaturating(a, b int) int {
	switch {
	case b > 0 && a > math.MaxInt-b:
		return math.MaxInt
	case b < 0 && a < math.MinInt-b:
		return math.MinInt
	}
	return a + b
}

// Clone returns a deep copy
func (o *Order) Clone() *Order {
	c := *o
	c.Items = append(OrderItems(nil), o.Items...)
	for i, item := range c.Items {
		if item.Variant != nil {
			v := *item.Variant
			c.Items[i].Variant = &v
		}
	}
	c.StatusHistory = append(StatusHistory(nil), o.StatusHistory...)
	c.EstimatedDelivery = cloneTime(o.EstimatedDelivery)
	c.ShippedAt = cloneTime(o.ShippedAt)
	c.DeliveredAt = cloneTime(o.DeliveredAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
