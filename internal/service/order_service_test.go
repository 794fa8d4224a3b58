package service

import (
	"context"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vaidashi/storefront-api/internal/models"
	"github.com/vaidashi/storefront-api/internal/repository/memory"
	apperrors "github.com/vaidashi/storefront-api/pkg/errors"
	"github.com/vaidashi/storefront-api/pkg/logger"
)

type fixture struct {
	store    *memory.Store
	orders   *OrderService
	products *ProductService
	queries  *QueryService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	log := logger.NewNop()
	store := memory.NewStore(log)

	return &fixture{
		store:    store,
		orders:   NewOrderService(store, nil, log),
		products: NewProductService(store, nil, log),
		queries:  NewQueryService(store.Orders(), log),
	}
}

func (f *fixture) product(t *testing.T, name string, price string, stock int) *models.Product {
	t.Helper()

	p, err := f.products.CreateProduct(context.Background(), ProductInput{
		Name:  name,
		Price: decimal.RequireFromString(price),
		Stock: stock,
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) stock(t *testing.T, id string) int {
	t.Helper()

	p, err := f.products.GetProduct(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func (f *fixture) order(t *testing.T, owner string, items ...OrderItemInput) *models.Order {
	t.Helper()

	o, err := f.orders.CreateOrder(context.Background(), owner, checkout(items...))
	require.NoError(t, err)
	return o
}

func checkout(items ...OrderItemInput) CreateOrderInput {
	return CreateOrderInput{
		Items: items,
		ShippingInfo: models.ShippingInfo{
			Name:       "Ada Lovelace",
			Phone:      "555-0100",
			Address:    "12 Analytical Row",
			City:       "London",
			State:      "LDN",
			Country:    "UK",
			PostalCode: "N1 9GU",
		},
		TaxPrice:      decimal.RequireFromString("1.50"),
		ShippingPrice: decimal.RequireFromString("5.00"),
	}
}

func item(productID string, qty int) OrderItemInput {
	return OrderItemInput{ProductID: productID, Quantity: qty}
}

func TestCreateOrderDecrementsStock(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Headphones", "20.00", 5)

	order := f.order(t, "user-1", item(p.ID, 3))

	assert.Equal(t, 2, f.stock(t, p.ID))
	assert.Equal(t, models.OrderStatusProcessing, order.Status)
	assert.Equal(t, "user-1", order.UserID)
	require.Len(t, order.StatusHistory, 1)
	assert.True(t, decimal.RequireFromString("60").Equal(order.ItemsPrice))
	assert.True(t, decimal.RequireFromString("66.50").Equal(order.TotalPrice))
	assert.Equal(t, "Headphones", order.Items[0].Name)
}

func TestCreateOrderUsesDiscountPriceSnapshot(t *testing.T) {
	f := newFixture(t)
	p, err := f.products.CreateProduct(context.Background(), ProductInput{
		Name:          "Keyboard",
		Price:         decimal.RequireFromString("100"),
		DiscountPrice: decimal.RequireFromString("80"),
		Images:        []string{"kb.png", "kb-2.png"},
		Stock:         3,
	})
	require.NoError(t, err)

	order := f.order(t, "user-1", item(p.ID, 2))

	_, err = f.products.UpdateProduct(context.Background(), p.ID, ProductInput{Name: "Renamed", Price: decimal.RequireFromString("10")})
	require.NoError(t, err)

	stored, err := f.queries.GetOrder(context.Background(), order.ID, models.Identity{UserID: "user-1"})
	require.NoError(t, err)
	assert.Equal(t, "Keyboard", stored.Items[0].Name)
	assert.True(t, decimal.RequireFromString("80").Equal(stored.Items[0].Price))
	assert.Equal(t, "kb.png", stored.Items[0].Image)
	assert.Equal(t, 1, f.stock(t, p.ID))
}

func TestCreateOrderInsufficientStockLeavesStockUnchanged(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Headphones", "20.00", 5)

	_, err := f.orders.CreateOrder(context.Background(), "user-1", checkout(item(p.ID, 10)))

	assert.ErrorIs(t, err, apperrors.ErrInsufficientStock)
	assert.Equal(t, apperrors.KindInsufficientStock, apperrors.Kind(err))
	assert.Equal(t, 5, f.stock(t, p.ID))
}

func TestCreateOrderRollsBackEarlierItems(t *testing.T) {
	f := newFixture(t)
	p1 := f.product(t, "Mouse", "10", 4)
	p2 := f.product(t, "Monitor", "200", 1)

	_, err := f.orders.CreateOrder(context.Background(), "user-1", checkout(item(p1.ID, 2), item(p2.ID, 2)))
	assert.ErrorIs(t, err, apperrors.ErrInsufficientStock)

	_, err = f.orders.CreateOrder(context.Background(), "user-1", checkout(item(p1.ID, 2), item("prd-missing", 1)))
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	assert.Equal(t, 4, f.stock(t, p1.ID))
	assert.Equal(t, 1, f.stock(t, p2.ID))

	page, err := f.queries.ListOwnOrders(context.Background(), "user-1", 1, 10)
	require.NoError(t, err)
	assert.Zero(t, page.TotalOrders)
}

func TestCreateOrderCountsRepeatedProductOnce(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Cable", "3", 4)

	_, err := f.orders.CreateOrder(context.Background(), "user-1", checkout(item(p.ID, 3), item(p.ID, 2)))
	assert.ErrorIs(t, err, apperrors.ErrInsufficientStock)
	assert.Equal(t, 4, f.stock(t, p.ID))

	f.order(t, "user-1", item(p.ID, 2), item(p.ID, 2))
	assert.Equal(t, 0, f.stock(t, p.ID))
}

func TestCreateOrderRejectsOversizedQuantities(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Freebie", "0", 5)

	_, err := f.orders.CreateOrder(context.Background(), "user-1",
		checkout(item(p.ID, 3), item(p.ID, math.MaxInt), item(p.ID, math.MaxInt-11)))

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Equal(t, apperrors.KindValidation, apperrors.Kind(err))
	assert.Equal(t, 5, f.stock(t, p.ID))

	_, err = f.orders.CreateOrder(context.Background(), "user-1", checkout(item(p.ID, maxItemQuantity+1)))
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Equal(t, 5, f.stock(t, p.ID))
}

func TestCreateOrderValidation(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Cable", "3", 4)

	cases := []struct {
		name  string
		input func() CreateOrderInput
	}{
		{"no items", func() CreateOrderInput { return checkout() }},
		{"zero quantity", func() CreateOrderInput { return checkout(item(p.ID, 0)) }},
		{"missing city", func() CreateOrderInput {
			in := checkout(item(p.ID, 1))
			in.ShippingInfo.City = ""
			return in
		}},
		{"unknown payment type", func() CreateOrderInput {
			in := checkout(item(p.ID, 1))
			in.PaymentInfo.Type = "barter"
			return in
		}},
		{"negative tax", func() CreateOrderInput {
			in := checkout(item(p.ID, 1))
			in.TaxPrice = decimal.NewFromInt(-1)
			return in
		}},
		{"discount above total", func() CreateOrderInput {
			in := checkout(item(p.ID, 1))
			in.Discount = decimal.NewFromInt(100)
			return in
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.orders.CreateOrder(context.Background(), "user-1", tc.input())
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		})
	}

	assert.Equal(t, 4, f.stock(t, p.ID))
}

func TestConcurrentOrdersDoNotOversell(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Last One", "99", 1)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		failures  []error
	)

	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.orders.CreateOrder(context.Background(), "user-1", checkout(item(p.ID, 1)))

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
				return
			}
			failures = append(failures, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	require.Len(t, failures, 1)
	kind := apperrors.Kind(failures[0])
	assert.Contains(t, []string{apperrors.KindInsufficientStock, apperrors.KindStockConflict}, kind)
	assert.Equal(t, 0, f.stock(t, p.ID))
}

func TestCancelOrderRestoresStock(t *testing.T) {
	f := newFixture(t)
	p1 := f.product(t, "Mouse", "10", 6)
	p2 := f.product(t, "Pad", "5", 3)
	order := f.order(t, "user-1", item(p1.ID, 2), item(p2.ID, 3))

	cancelled, err := f.orders.CancelOrder(context.Background(), order.ID, "user-1", "changed my mind")
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusCancelled, cancelled.Status)
	assert.Equal(t, 6, f.stock(t, p1.ID))
	assert.Equal(t, 3, f.stock(t, p2.ID))
	require.Len(t, cancelled.StatusHistory, 2)
	assert.Equal(t, "changed my mind", cancelled.StatusHistory[1].Note)
}

func TestCancelOrderGuards(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Mouse", "10", 6)

	t.Run("other user is forbidden", func(t *testing.T) {
		order := f.order(t, "user-1", item(p.ID, 1))
		_, err := f.orders.CancelOrder(context.Background(), order.ID, "user-2", "")
		assert.ErrorIs(t, err, apperrors.ErrForbidden)
	})

	t.Run("missing order", func(t *testing.T) {
		_, err := f.orders.CancelOrder(context.Background(), "ord-missing", "user-1", "")
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("shipped order", func(t *testing.T) {
		order := f.order(t, "user-1", item(p.ID, 1))
		_, err := f.orders.UpdateOrderStatus(context.Background(), order.ID, UpdateStatusInput{Status: "Shipped"}, "admin-1")
		require.NoError(t, err)
		before := f.stock(t, p.ID)

		_, err = f.orders.CancelOrder(context.Background(), order.ID, "user-1", "")
		assert.ErrorIs(t, err, apperrors.ErrInvalidState)
		assert.Equal(t, before, f.stock(t, p.ID))
	})

	t.Run("second cancel does not restock twice", func(t *testing.T) {
		order := f.order(t, "user-1", item(p.ID, 2))
		_, err := f.orders.CancelOrder(context.Background(), order.ID, "user-1", "")
		require.NoError(t, err)
		before := f.stock(t, p.ID)

		_, err = f.orders.CancelOrder(context.Background(), order.ID, "user-1", "")
		assert.ErrorIs(t, err, apperrors.ErrInvalidState)
		assert.Equal(t, before, f.stock(t, p.ID))
	})
}

func TestCreateThenCancelConservesStock(t *testing.T) {
	f := newFixture(t)
	products := []*models.Product{
		f.product(t, "A", "1", 10),
		f.product(t, "B", "2", 7),
		f.product(t, "C", "3", 3),
	}

	order := f.order(t, "user-1", item(products[0].ID, 4), item(products[1].ID, 7), item(products[2].ID, 1), item(products[0].ID, 1))
	_, err := f.orders.CancelOrder(context.Background(), order.ID, "user-1", "")
	require.NoError(t, err)

	assert.Equal(t, 10, f.stock(t, products[0].ID))
	assert.Equal(t, 7, f.stock(t, products[1].ID))
	assert.Equal(t, 3, f.stock(t, products[2].ID))
}

func TestUpdateOrderStatusLifecycle(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Mouse", "10", 6)
	order := f.order(t, "user-1", item(p.ID, 1))
	ctx := context.Background()
	eta := time.Date(2030, 1, 2, 0, 0, 0, 0, time.UTC)

	confirmed, err := f.orders.UpdateOrderStatus(ctx, order.ID, UpdateStatusInput{Status: "Confirmed"}, "admin-1")
	require.NoError(t, err)
	assert.NotEmpty(t, confirmed.InvoiceNumber)

	shipped, err := f.orders.UpdateOrderStatus(ctx, order.ID, UpdateStatusInput{
		Status:            "Shipped",
		TrackingNumber:    "1Z999",
		ShippingCarrier:   "UPS",
		EstimatedDelivery: &eta,
	}, "admin-1")
	require.NoError(t, err)
	assert.NotNil(t, shipped.ShippedAt)
	assert.Equal(t, "1Z999", shipped.TrackingNumber)
	assert.Equal(t, "UPS", shipped.ShippingCarrier)
	assert.Equal(t, eta, *shipped.EstimatedDelivery)
	assert.Equal(t, confirmed.InvoiceNumber, shipped.InvoiceNumber)

	delivered, err := f.orders.UpdateOrderStatus(ctx, order.ID, UpdateStatusInput{Status: "Delivered"}, "admin-1")
	require.NoError(t, err)
	assert.NotNil(t, delivered.DeliveredAt)
	require.Len(t, delivered.StatusHistory, 4)

	var statuses []models.OrderStatus
	for _, h := range delivered.StatusHistory {
		statuses = append(statuses, h.Status)
	}
	assert.Equal(t, []models.OrderStatus{"Processing", "Confirmed", "Shipped", "Delivered"}, statuses)
	assert.Equal(t, "admin-1", delivered.StatusHistory[3].UpdatedBy)

	for _, next := range []string{"Returned", "Processing", "Delivered"} {
		_, err = f.orders.UpdateOrderStatus(ctx, order.ID, UpdateStatusInput{Status: next}, "admin-1")
		assert.ErrorIs(t, err, apperrors.ErrAlreadyTerminal, next)
	}

	stored, err := f.queries.GetOrder(ctx, order.ID, models.Identity{UserID: "admin-1", Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.Len(t, stored.StatusHistory, 4)
}

func TestUpdateOrderStatusRejectsIllegalEdges(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Mouse", "10", 6)
	order := f.order(t, "user-1", item(p.ID, 1))
	ctx := context.Background()

	_, err := f.orders.UpdateOrderStatus(ctx, order.ID, UpdateStatusInput{Status: "Delivered"}, "admin-1")
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)

	_, err = f.orders.UpdateOrderStatus(ctx, order.ID, UpdateStatusInput{Status: "Lost"}, "admin-1")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = f.orders.UpdateOrderStatus(ctx, "ord-missing", UpdateStatusInput{Status: "Confirmed"}, "admin-1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = f.orders.UpdateOrderStatus(ctx, order.ID, UpdateStatusInput{Status: "Shipped"}, "admin-1")
	require.NoError(t, err)
	_, err = f.orders.UpdateOrderStatus(ctx, order.ID, UpdateStatusInput{Status: "Processing"}, "admin-1")
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)
}

func TestUpdateOrderStatusSameStatusIsNoop(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Mouse", "10", 6)
	order := f.order(t, "user-1", item(p.ID, 1))

	same, err := f.orders.UpdateOrderStatus(context.Background(), order.ID, UpdateStatusInput{Status: "Processing"}, "admin-1")
	require.NoError(t, err)
	assert.Len(t, same.StatusHistory, 1)

	pending, err := f.store.Outbox().GetPendingMessages(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestAdminCancelRestoresStock(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Mouse", "10", 6)
	order := f.order(t, "user-1", item(p.ID, 4))
	ctx := context.Background()

	_, err := f.orders.UpdateOrderStatus(ctx, order.ID, UpdateStatusInput{Status: "Confirmed"}, "admin-1")
	require.NoError(t, err)
	_, err = f.orders.UpdateOrderStatus(ctx, order.ID, UpdateStatusInput{Status: "Cancelled"}, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, 6, f.stock(t, p.ID))

	refunded, err := f.orders.UpdateOrderStatus(ctx, order.ID, UpdateStatusInput{Status: "Refunded"}, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusRefunded, refunded.Status)
	assert.Equal(t, 6, f.stock(t, p.ID))
}

func TestRefundRecordsAmountAndReason(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Mouse", "10", 6)
	ctx := context.Background()

	refundTo := func(t *testing.T, order *models.Order, in UpdateStatusInput) (*models.Order, error) {
		t.Helper()
		_, err := f.orders.UpdateOrderStatus(ctx, order.ID, UpdateStatusInput{Status: "Cancelled"}, "admin-1")
		require.NoError(t, err)
		in.Status = "Refunded"
		return f.orders.UpdateOrderStatus(ctx, order.ID, in, "admin-1")
	}

	t.Run("partial refund", func(t *testing.T) {
		order := f.order(t, "user-1", item(p.ID, 2))
		refunded, err := refundTo(t, order, UpdateStatusInput{
			RefundAmount: decimal.RequireFromString("12.25"),
			RefundReason: "damaged box",
		})
		require.NoError(t, err)
		assert.True(t, decimal.RequireFromString("12.25").Equal(refunded.RefundAmount))
		assert.Equal(t, "damaged box", refunded.RefundReason)

		stored, err := f.queries.GetOrder(ctx, order.ID, models.Identity{UserID: "user-1"})
		require.NoError(t, err)
		assert.True(t, decimal.RequireFromString("12.25").Equal(stored.RefundAmount))
	})

	t.Run("defaults to the order total", func(t *testing.T) {
		order := f.order(t, "user-1", item(p.ID, 1))
		refunded, err := refundTo(t, order, UpdateStatusInput{})
		require.NoError(t, err)
		assert.True(t, order.TotalPrice.Equal(refunded.RefundAmount))
	})

	t.Run("above the order total", func(t *testing.T) {
		order := f.order(t, "user-1", item(p.ID, 1))
		_, err := refundTo(t, order, UpdateStatusInput{RefundAmount: decimal.NewFromInt(1000)})
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

		stored, err := f.queries.GetOrder(ctx, order.ID, models.Identity{UserID: "user-1"})
		require.NoError(t, err)
		assert.Equal(t, models.OrderStatusCancelled, stored.Status)
	})

	t.Run("negative amount", func(t *testing.T) {
		order := f.order(t, "user-1", item(p.ID, 1))
		_, err := refundTo(t, order, UpdateStatusInput{RefundAmount: decimal.NewFromInt(-1)})
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})

	t.Run("refund details on another status", func(t *testing.T) {
		order := f.order(t, "user-1", item(p.ID, 1))
		_, err := f.orders.UpdateOrderStatus(ctx, order.ID, UpdateStatusInput{
			Status:       "Confirmed",
			RefundAmount: decimal.NewFromInt(1),
		}, "admin-1")
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})
}

func TestCreateOrderKeepsCouponCode(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Mouse", "10", 6)

	in := checkout(item(p.ID, 1))
	in.CouponCode = " spring10 "
	in.Discount = decimal.NewFromInt(1)
	order, err := f.orders.CreateOrder(context.Background(), "user-1", in)
	require.NoError(t, err)
	assert.Equal(t, "SPRING10", order.CouponCode)

	in.CouponCode = strings.Repeat("X", maxCouponCodeLength+1)
	_, err = f.orders.CreateOrder(context.Background(), "user-1", in)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestDeleteOrder(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Mouse", "10", 6)
	ctx := context.Background()

	t.Run("processing order is restocked", func(t *testing.T) {
		order := f.order(t, "user-1", item(p.ID, 2))
		require.NoError(t, f.orders.DeleteOrder(ctx, order.ID, "admin-1"))

		assert.Equal(t, 6, f.stock(t, p.ID))
		_, err := f.queries.GetOrder(ctx, order.ID, models.Identity{UserID: "user-1"})
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("shipped order is not restocked", func(t *testing.T) {
		order := f.order(t, "user-1", item(p.ID, 2))
		_, err := f.orders.UpdateOrderStatus(ctx, order.ID, UpdateStatusInput{Status: "Shipped"}, "admin-1")
		require.NoError(t, err)

		require.NoError(t, f.orders.DeleteOrder(ctx, order.ID, "admin-1"))
		assert.Equal(t, 4, f.stock(t, p.ID))
	})

	t.Run("deleted product is skipped", func(t *testing.T) {
		gone := f.product(t, "Discontinued", "1", 2)
		order := f.order(t, "user-1", item(p.ID, 1), item(gone.ID, 1))
		require.NoError(t, f.products.DeleteProduct(ctx, gone.ID))

		require.NoError(t, f.orders.DeleteOrder(ctx, order.ID, "admin-1"))
		assert.Equal(t, 4, f.stock(t, p.ID))
	})

	t.Run("missing order", func(t *testing.T) {
		assert.ErrorIs(t, f.orders.DeleteOrder(ctx, "ord-missing", "admin-1"), apperrors.ErrNotFound)
	})
}

func TestLifecycleWritesOutboxEvents(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Mouse", "10", 6)
	ctx := context.Background()

	order := f.order(t, "user-1", item(p.ID, 1))
	_, err := f.orders.UpdateOrderStatus(ctx, order.ID, UpdateStatusInput{Status: "Confirmed"}, "admin-1")
	require.NoError(t, err)
	_, err = f.orders.CancelOrder(ctx, order.ID, "user-1", "")
	require.NoError(t, err)
	require.NoError(t, f.orders.DeleteOrder(ctx, order.ID, "admin-1"))

	pending, err := f.store.Outbox().GetPendingMessages(ctx, 10)
	require.NoError(t, err)

	var types []string
	for _, m := range pending {
		types = append(types, m.EventType)
		assert.Equal(t, order.ID, m.AggregateID)
	}
	assert.Equal(t, []string{
		models.EventOrderCreated,
		models.EventOrderStatusChanged,
		models.EventOrderCancelled,
		models.EventOrderDeleted,
	}, types)
}
