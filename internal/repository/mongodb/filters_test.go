package mongodb

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vaidashi/storefront-api/internal/models"
	"github.com/vaidashi/storefront-api/internal/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestOrderFilter(t *testing.T) {
	assert.Empty(t, orderFilter(models.OrderFilter{}))

	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f := orderFilter(models.OrderFilter{
		UserID:          "u1",
		Status:          models.OrderStatusShipped,
		ExcludeStatuses: []models.OrderStatus{models.OrderStatusCancelled},
		From:            &from,
	})

	assert.Equal(t, "u1", f["userId"])
	assert.Equal(t, bson.M{
		"$eq":  models.OrderStatusShipped,
		"$nin": []models.OrderStatus{models.OrderStatusCancelled},
	}, f["status"])
	assert.Equal(t, bson.M{"$gte": from}, f["createdAt"])
}

func TestProductFilter(t *testing.T) {
	maxPrice := decimal.NewFromInt(500)
	f := productFilter(models.ProductFilter{
		ActiveOnly: true,
		Category:   "Electronics",
		Keyword:    "pro (max)",
		MaxPrice:   &maxPrice,
	})

	assert.Equal(t, true, f["isActive"])
	assert.Equal(t, primitive.Regex{Pattern: "^Electronics$", Options: "i"}, f["category"])

	or, ok := f["$or"].(bson.A)
	require.True(t, ok)
	assert.Equal(t, bson.M{"name": primitive.Regex{Pattern: `pro \(max\)`, Options: "i"}}, or[0])

	expr, ok := f["$expr"].(bson.M)
	require.True(t, ok)
	assert.Len(t, expr["$and"], 1)
}

func TestProductPricePipeline(t *testing.T) {
	pipeline := productPricePipeline(models.ProductFilter{ActiveOnly: true, Sort: models.SortPriceHigh}, 10, 20)
	require.Len(t, pipeline, 6)

	assert.Equal(t, "$match", pipeline[0][0].Key)
	assert.Equal(t, bson.M{"isActive": true}, pipeline[0][0].Value)
	assert.Equal(t, bson.D{
		{Key: "effectivePrice", Value: -1},
		{Key: "createdAt", Value: -1},
		{Key: "_id", Value: -1},
	}, pipeline[2][0].Value)
	assert.Equal(t, int64(20), pipeline[3][0].Value)
	assert.Equal(t, int64(10), pipeline[4][0].Value)

	low := productPricePipeline(models.ProductFilter{Sort: models.SortPriceLow}, 10, 0)
	assert.Equal(t, 1, low[2][0].Value.(bson.D)[0].Value)
}

func TestMapError(t *testing.T) {
	assert.Nil(t, mapError(nil))
	assert.ErrorIs(t, mapError(mongo.ErrNoDocuments), repository.ErrNotFound)

	dup := mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000, Message: "E11000 duplicate key"}}}
	assert.ErrorIs(t, mapError(dup), repository.ErrDuplicate)

	conflict := mongo.CommandError{Code: 112, Name: "WriteConflict", Labels: []string{transientTransactionLabel}}
	mapped := mapError(conflict)
	assert.ErrorIs(t, mapped, repository.ErrConflict)

	var labeled mongo.LabeledError
	require.True(t, errors.As(mapped, &labeled), "driver label must survive wrapping")
	assert.True(t, labeled.HasErrorLabel(transientTransactionLabel))

	assert.ErrorIs(t, mapError(errors.New("socket closed")), repository.ErrDatabase)
}
