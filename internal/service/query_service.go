package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/vaidashi/storefront-api/internal/models"
	"github.com/vaidashi/storefront-api/internal/repository"
	apperrors "github.com/vaidashi/storefront-api/pkg/errors"
	"github.com/vaidashi/storefront-api/pkg/logger"
)

// Default page sizes of the order listings
const (
	DefaultOwnOrdersPageSize = 10
	DefaultAllOrdersPageSize = 20
)

// AdminOrderFilter is the admin listing filter. Status "all" or empty means
// any status; the date range applies only when both ends are set.
type AdminOrderFilter struct {
	Status string
	From   *time.Time
	To     *time.Time
}

// QueryService serves read-only order views
type QueryService struct {
	orders repository.OrderRepository
	logger logger.Logger
	now    func() time.Time
}

// NewQueryService creates a new QueryService
func NewQueryService(orders repository.OrderRepository, logger logger.Logger) *QueryService {
	return &QueryService{
		orders: orders,
		logger: logger,
		now:    models.GetCurrentTime,
	}
}

// GetOrder returns an order to its owner or to an admin
func (s *QueryService) GetOrder(ctx context.Context, orderID string, who models.Identity) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, storeError(err, "order")
	}

	if !order.IsOwnedBy(who.UserID) && !who.IsAdmin() {
		s.logger.Warn("Order access denied", "orderID", orderID, "userID", who.UserID)
		return nil, apperrors.NewForbiddenError("not authorized to view this order")
	}

	return order, nil
}

// ListOwnOrders pages through the caller's orders, newest first
func (s *QueryService) ListOwnOrders(ctx context.Context, userID string, page, pageSize int) (*models.OrderPage, error) {
	if userID == "" {
		return nil, apperrors.NewUnauthorizedError("missing caller identity")
	}

	p := models.NewPagination(page, pageSize, DefaultOwnOrdersPageSize)
	return s.list(ctx, models.OrderFilter{UserID: userID}, p, false)
}

// ListAllOrders pages through every order matching filter and reports the
// total amount of the whole filtered set
func (s *QueryService) ListAllOrders(ctx context.Context, filter AdminOrderFilter, page, pageSize int) (*models.OrderPage, error) {
	var f models.OrderFilter

	if status := strings.TrimSpace(filter.Status); status != "" && !strings.EqualFold(status, "all") {
		parsed, err := models.ParseOrderStatus(status)
		if err != nil {
			return nil, apperrors.NewValidationError(err.Error())
		}
		f.Status = parsed
	}

	if filter.From != nil && filter.To != nil {
		if filter.To.Before(*filter.From) {
			return nil, apperrors.NewValidationError("endDate must not be before startDate")
		}
		f.From, f.To = filter.From, filter.To
	}

	p := models.NewPagination(page, pageSize, DefaultAllOrdersPageSize)
	return s.list(ctx, f, p, true)
}

func (s *QueryService) list(ctx context.Context, f models.OrderFilter, p models.Pagination, withTotal bool) (*models.OrderPage, error) {
	orders, err := s.orders.List(ctx, f, p.PageSize, p.Offset())
	if err != nil {
		return nil, storeError(err, "order")
	}

	total, err := s.orders.Count(ctx, f)
	if err != nil {
		return nil, storeError(err, "order")
	}

	result := &models.OrderPage{
		Orders:      orders,
		Count:       len(orders),
		TotalOrders: total,
		CurrentPage: p.Page,
		TotalPages:  p.TotalPages(total),
		PageSize:    p.PageSize,
	}

	if withTotal {
		amount, err := s.orders.SumTotal(ctx, f)
		if err != nil {
			return nil, storeError(err, "order")
		}
		result.TotalAmount = &amount
	}

	return result, nil
}

// GetOrderStats summarises orders for the admin dashboard. Revenue figures
// exclude cancelled orders; the monthly breakdown covers the current year.
func (s *QueryService) GetOrderStats(ctx context.Context) (*models.OrderStats, error) {
	counts, err := s.orders.CountByStatus(ctx)
	if err != nil {
		return nil, storeError(err, "order")
	}

	stats := &models.OrderStats{
		CountsByStatus: make(map[models.OrderStatus]int, len(models.AllOrderStatuses())),
	}
	for _, status := range models.AllOrderStatuses() {
		stats.CountsByStatus[status] = counts[status]
		stats.TotalOrders += counts[status]
	}

	paid := models.OrderFilter{ExcludeStatuses: []models.OrderStatus{models.OrderStatusCancelled}}
	if stats.TotalRevenue, err = s.orders.SumTotal(ctx, paid); err != nil {
		return nil, storeError(err, "order")
	}

	now := s.now().UTC()
	start := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(1, 0, 0).Add(-time.Nanosecond)
	paid.From, paid.To = &start, &end

	if stats.Monthly, err = s.orders.MonthlyRevenue(ctx, paid); err != nil {
		return nil, storeError(err, "order")
	}
	if stats.Monthly == nil {
		stats.Monthly = []models.MonthlyRevenue{}
	}
	stats.Year = now.Year()

	s.logger.Debug("Computed order stats", "totalOrders", stats.TotalOrders, "year", stats.Year)
	return stats, nil
}

// parseDate accepts RFC 3339 timestamps or plain YYYY-MM-DD dates
func parseDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return &t, nil
		}
	}
	return nil, apperrors.NewValidationError(fmt.Sprintf("invalid date %q", value))
}

// NewAdminOrderFilter builds a filter from raw query values
func NewAdminOrderFilter(status, startDate, endDate string) (AdminOrderFilter, error) {
	from, err := parseDate(startDate)
	if err != nil {
		return AdminOrderFilter{}, err
	}
	to, err := parseDate(endDate)
	if err != nil {
		return AdminOrderFilter{}, err
	}
	// a bare end date covers that whole day
	if to != nil && len(endDate) == len("2006-01-02") {
		endOfDay := to.AddDate(0, 0, 1).Add(-time.Nanosecond)
		to = &endOfDay
	}
	return AdminOrderFilter{Status: status, From: from, To: to}, nil
}
