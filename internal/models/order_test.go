package models

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to OrderStatus
		allowed  bool
	}{
		{OrderStatusProcessing, OrderStatusConfirmed, true},
		{OrderStatusProcessing, OrderStatusShipped, true},
		{OrderStatusProcessing, OrderStatusCancelled, true},
		{OrderStatusConfirmed, OrderStatusShipped, true},
		{OrderStatusConfirmed, OrderStatusCancelled, true},
		{OrderStatusShipped, OrderStatusDelivered, true},
		{OrderStatusShipped, OrderStatusReturned, true},
		{OrderStatusCancelled, OrderStatusRefunded, true},
		{OrderStatusReturned, OrderStatusRefunded, true},
		{OrderStatusShipped, OrderStatusProcessing, false},
		{OrderStatusShipped, OrderStatusCancelled, false},
		{OrderStatusConfirmed, OrderStatusProcessing, false},
		{OrderStatusDelivered, OrderStatusReturned, false},
		{OrderStatusCancelled, OrderStatusProcessing, false},
		{OrderStatusRefunded, OrderStatusProcessing, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestTerminalStatuses(t *testing.T) {
	for _, s := range AllOrderStatuses() {
		want := s == OrderStatusDelivered || s == OrderStatusRefunded
		assert.Equal(t, want, s.IsTerminal(), s)
	}
	assert.False(t, OrderStatus("Lost").IsTerminal())
}

func TestParseOrderStatus(t *testing.T) {
	s, err := ParseOrderStatus("Shipped")
	require.NoError(t, err)
	assert.Equal(t, OrderStatusShipped, s)

	_, err = ParseOrderStatus("shipped")
	assert.Error(t, err)
}

func TestRecalculateTotals(t *testing.T) {
	o := &Order{
		Items: OrderItems{
			{ProductID: "p1", Price: decimal.RequireFromString("19.99"), Quantity: 3},
			{ProductID: "p2", Price: decimal.RequireFromString("5.00"), Quantity: 1},
		},
		TaxPrice:      decimal.RequireFromString("6.50"),
		ShippingPrice: decimal.RequireFromString("4.00"),
		Discount:      decimal.RequireFromString("10.00"),
	}

	o.RecalculateTotals()

	assert.True(t, decimal.RequireFromString("64.97").Equal(o.ItemsPrice), o.ItemsPrice.String())
	assert.True(t, decimal.RequireFromString("65.47").Equal(o.TotalPrice), o.TotalPrice.String())
}

func TestNewOrderStartsProcessingWithHistory(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	o := NewOrder("u1", nil, ShippingInfo{}, PaymentInfo{}, at)

	assert.Equal(t, OrderStatusProcessing, o.Status)
	require.Len(t, o.StatusHistory, 1)
	assert.Equal(t, OrderStatusProcessing, o.StatusHistory[0].Status)
	assert.Equal(t, PaymentTypeStripe, o.PaymentInfo.Type)
	assert.True(t, o.IsOwnedBy("u1"))
	assert.False(t, o.IsOwnedBy(""))
}

func TestApplyStatusSideEffects(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	eta := at.Add(72 * time.Hour)
	o := NewOrder("u1", nil, ShippingInfo{}, PaymentInfo{}, at)

	o.ApplyStatus(OrderStatusConfirmed, StatusUpdate{UpdatedBy: "admin"}, at.Add(time.Hour))
	require.NotEmpty(t, o.InvoiceNumber)
	invoice := o.InvoiceNumber
	assert.Regexp(t, `^INV-\d+-[A-Z0-9]{5}$`, invoice)

	o.ApplyStatus(OrderStatusShipped, StatusUpdate{
		TrackingNumber:    "1Z999",
		ShippingCarrier:   "UPS",
		EstimatedDelivery: &eta,
		UpdatedBy:         "admin",
	}, at.Add(2*time.Hour))
	require.NotNil(t, o.ShippedAt)
	assert.Equal(t, "1Z999", o.TrackingNumber)
	assert.Equal(t, "UPS", o.ShippingCarrier)
	assert.Equal(t, eta, *o.EstimatedDelivery)

	o.ApplyStatus(OrderStatusDelivered, StatusUpdate{Note: "left at door"}, at.Add(3*time.Hour))
	require.NotNil(t, o.DeliveredAt)
	assert.Equal(t, invoice, o.InvoiceNumber)

	statuses := make([]OrderStatus, 0, len(o.StatusHistory))
	for _, h := range o.StatusHistory {
		statuses = append(statuses, h.Status)
	}
	assert.Equal(t, []OrderStatus{OrderStatusProcessing, OrderStatusConfirmed, OrderStatusShipped, OrderStatusDelivered}, statuses)
	assert.Equal(t, "left at door", o.StatusHistory[3].Note)
}

func TestApplyStatusRefunded(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	o := NewOrder("u1", nil, ShippingInfo{}, PaymentInfo{}, at)
	o.TotalPrice = decimal.RequireFromString("40.00")
	o.ApplyStatus(OrderStatusCancelled, StatusUpdate{}, at)

	full := o.Clone()
	full.ApplyStatus(OrderStatusRefunded, StatusUpdate{RefundReason: "duplicate"}, at.Add(time.Hour))
	assert.True(t, decimal.RequireFromString("40.00").Equal(full.RefundAmount))
	assert.Equal(t, "duplicate", full.RefundReason)
	assert.Equal(t, OrderStatusRefunded, full.Status)

	o.ApplyStatus(OrderStatusRefunded, StatusUpdate{RefundAmount: decimal.RequireFromString("15.50")}, at.Add(time.Hour))
	assert.True(t, decimal.RequireFromString("15.50").Equal(o.RefundAmount))
}

func TestMergeStockDeltas(t *testing.T) {
	merged := MergeStockDeltas([]StockDelta{
		{ProductID: "p2", Delta: -1},
		{ProductID: "p1", Delta: -2},
		{ProductID: "p2", Delta: -3},
		{ProductID: "p3", Delta: 2},
		{ProductID: "p3", Delta: -2},
	})

	assert.Equal(t, []StockDelta{{ProductID: "p1", Delta: -2}, {ProductID: "p2", Delta: -4}}, merged)
}

func TestMergeStockDeltasSaturates(t *testing.T) {
	merged := MergeStockDeltas([]StockDelta{
		{ProductID: "p1", Delta: -3},
		{ProductID: "p1", Delta: -math.MaxInt},
		{ProductID: "p1", Delta: -(math.MaxInt - 11)},
		{ProductID: "p2", Delta: math.MaxInt},
		{ProductID: "p2", Delta: 1},
	})

	assert.Equal(t, []StockDelta{{ProductID: "p1", Delta: math.MinInt}, {ProductID: "p2", Delta: math.MaxInt}}, merged)
}

func TestOrderCloneIsDeep(t *testing.T) {
	o := NewOrder("u1", OrderItems{{ProductID: "p1", Quantity: 1, Variant: &Variant{Name: "Size", Value: "9"}}}, ShippingInfo{}, PaymentInfo{}, GetCurrentTime())
	c := o.Clone()

	c.Items[0].Quantity = 5
	c.Items[0].Variant.Value = "10"
	c.StatusHistory = append(c.StatusHistory, StatusChange{Status: OrderStatusConfirmed})

	assert.Equal(t, 1, o.Items[0].Quantity)
	assert.Equal(t, "9", o.Items[0].Variant.Value)
	assert.Len(t, o.StatusHistory, 1)
}

func TestJSONColumnsScan(t *testing.T) {
	var items OrderItems
	require.NoError(t, items.Scan([]byte(`[{"product":"p1","name":"Mug","price":"4.50","quantity":2,"image":""}]`)))
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].Quantity)
	assert.True(t, decimal.RequireFromString("4.5").Equal(items[0].Price))

	var images StringList
	require.NoError(t, images.Scan(nil))
	assert.Nil(t, images)

	assert.Error(t, images.Scan(42))
}
