package service

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/vaidashi/storefront-api/internal/models"
	apperrors "github.com/vaidashi/storefront-api/pkg/errors"
)

const (
	maxNotesLength       = 500
	maxNameLength        = 100
	maxDescriptionLength = 2000
	maxItemsPerOrder     = 100
	maxItemQuantity      = 10000
	maxCouponCodeLength  = 50
)

// OrderItemInput is one requested line of a new order
type OrderItemInput struct {
	ProductID string          `json:"product"`
	Quantity  int             `json:"quantity"`
	Variant   *models.Variant `json:"variant,omitempty"`
}

// CreateOrderInput is the checkout request
type CreateOrderInput struct {
	Items         []OrderItemInput    `json:"orderItems"`
	ShippingInfo  models.ShippingInfo `json:"shippingInfo"`
	PaymentInfo   models.PaymentInfo  `json:"paymentInfo"`
	TaxPrice      decimal.Decimal     `json:"taxPrice"`
	ShippingPrice decimal.Decimal     `json:"shippingPrice"`
	Discount      decimal.Decimal     `json:"discount"`
	CouponCode    string              `json:"couponCode"`
	Notes         string              `json:"orderNotes"`
}

// Validate checks the request before any stock is touched
func (in CreateOrderInput) Validate() error {
	var problems validationErrors

	if len(in.Items) == 0 {
		problems.add("order must contain at least one item")
	}
	if len(in.Items) > maxItemsPerOrder {
		problems.add("order cannot contain more than %d items", maxItemsPerOrder)
	}
	for i, item := range in.Items {
		if strings.TrimSpace(item.ProductID) == "" {
			problems.add("item %d: product is required", i+1)
		}
		if item.Quantity < 1 {
			problems.add("item %d: quantity must be at least 1", i+1)
		}
		if item.Quantity > maxItemQuantity {
			problems.add("item %d: quantity cannot exceed %d", i+1, maxItemQuantity)
		}
	}

	s := in.ShippingInfo
	for _, field := range []struct{ name, value string }{
		{"name", s.Name},
		{"phone", s.Phone},
		{"address", s.Address},
		{"city", s.City},
		{"state", s.State},
		{"country", s.Country},
		{"postalCode", s.PostalCode},
	} {
		if strings.TrimSpace(field.value) == "" {
			problems.add("shippingInfo.%s is required", field.name)
		}
	}

	switch in.PaymentInfo.Type {
	case "", models.PaymentTypeCard, models.PaymentTypePaypal, models.PaymentTypeStripe, models.PaymentTypeCashOnDelivery:
	default:
		problems.add("unsupported payment type %q", in.PaymentInfo.Type)
	}

	if in.TaxPrice.IsNegative() {
		problems.add("taxPrice cannot be negative")
	}
	if in.ShippingPrice.IsNegative() {
		problems.add("shippingPrice cannot be negative")
	}
	if in.Discount.IsNegative() {
		problems.add("discount cannot be negative")
	}
	if utf8.RuneCountInString(in.Notes) > maxNotesLength {
		problems.add("orderNotes cannot exceed %d characters", maxNotesLength)
	}
	if utf8.RuneCountInString(strings.TrimSpace(in.CouponCode)) > maxCouponCodeLength {
		problems.add("couponCode cannot exceed %d characters", maxCouponCodeLength)
	}

	return problems.err()
}

// UpdateStatusInput is an admin status change
type UpdateStatusInput struct {
	Status            string          `json:"status"`
	TrackingNumber    string          `json:"trackingNumber"`
	ShippingCarrier   string          `json:"shippingCarrier"`
	EstimatedDelivery *time.Time      `json:"estimatedDelivery"`
	RefundAmount      decimal.Decimal `json:"refundAmount"`
	RefundReason      string          `json:"refundReason"`
	Note              string          `json:"note"`
}

// Validate parses the target status
func (in UpdateStatusInput) Validate() (models.OrderStatus, error) {
	if in.Status == "" {
		return "", apperrors.NewValidationError("status is required")
	}
	status, err := models.ParseOrderStatus(in.Status)
	if err != nil {
		return "", apperrors.NewValidationError(err.Error())
	}
	if utf8.RuneCountInString(in.Note) > maxNotesLength {
		return "", apperrors.NewValidationError(fmt.Sprintf("note cannot exceed %d characters", maxNotesLength))
	}
	if in.RefundAmount.IsNegative() {
		return "", apperrors.NewValidationError("refundAmount cannot be negative")
	}
	if utf8.RuneCountInString(in.RefundReason) > maxNotesLength {
		return "", apperrors.NewValidationError(fmt.Sprintf("refundReason cannot exceed %d characters", maxNotesLength))
	}
	if status != models.OrderStatusRefunded && (!in.RefundAmount.IsZero() || in.RefundReason != "") {
		return "", apperrors.NewValidationError("refund details are only accepted with status Refunded")
	}
	return status, nil
}

// ProductInput carries the editable catalogue fields. Stock is only read on
// creation; later changes go through AdjustStock.
type ProductInput struct {
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price"`
	DiscountPrice decimal.Decimal `json:"discountPrice"`
	Category      string          `json:"category"`
	Brand         string          `json:"brand"`
	SKU           string          `json:"sku"`
	Images        []string        `json:"images"`
	Stock         int             `json:"stock"`
	IsActive      *bool           `json:"isActive"`
}

// Validate checks catalogue constraints
func (in ProductInput) Validate() error {
	var problems validationErrors

	name := strings.TrimSpace(in.Name)
	if name == "" {
		problems.add("name is required")
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		problems.add("name cannot exceed %d characters", maxNameLength)
	}
	if utf8.RuneCountInString(in.Description) > maxDescriptionLength {
		problems.add("description cannot exceed %d characters", maxDescriptionLength)
	}
	if in.Price.IsNegative() {
		problems.add("price cannot be negative")
	}
	if in.DiscountPrice.IsNegative() {
		problems.add("discountPrice cannot be negative")
	}
	if in.DiscountPrice.IsPositive() && !in.DiscountPrice.LessThan(in.Price) {
		problems.add("discountPrice must be lower than price")
	}
	if in.Stock < 0 {
		problems.add("stock cannot be negative")
	}

	return problems.err()
}

type validationErrors []string

func (v *validationErrors) add(format string, args ...interface{}) {
	*v = append(*v, fmt.Sprintf(format, args...))
}

func (v validationErrors) err() error {
	if len(v) == 0 {
		return nil
	}
	return apperrors.NewValidationError(strings.Join(v, "; ")).WithContext("fields", []string(v))
}
