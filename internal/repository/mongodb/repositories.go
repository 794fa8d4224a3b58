package mongodb

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vaidashi/storefront-api/internal/models"
	"github.com/vaidashi/storefront-api/internal/repository"
	"github.com/vaidashi/storefront-api/pkg/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var newestFirst = bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}

func pageOptions(limit, offset int) *options.FindOptions {
	return options.Find().
		SetSort(newestFirst).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))
}

type productRepository struct {
	coll   *mongo.Collection
	logger logger.Logger
}

func (r *productRepository) Create(ctx context.Context, product *models.Product) error {
	if _, err := r.coll.InsertOne(ctx, product); err != nil {
		r.logger.Error("Failed to create product", "error", err, "productID", product.ID)
		return mapError(err)
	}
	return nil
}

func (r *productRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&product); err != nil {
		return nil, mapError(err)
	}
	return &product, nil
}

func (r *productRepository) GetBySKU(ctx context.Context, sku string) (*models.Product, error) {
	var product models.Product
	if err := r.coll.FindOne(ctx, bson.M{"sku": sku}).Decode(&product); err != nil {
		return nil, mapError(err)
	}
	return &product, nil
}

func (r *productRepository) List(ctx context.Context, filter models.ProductFilter, limit, offset int) ([]*models.Product, error) {
	var (
		cursor *mongo.Cursor
		err    error
	)
	if filter.Sort == models.SortPriceLow || filter.Sort == models.SortPriceHigh {
		cursor, err = r.coll.Aggregate(ctx, productPricePipeline(filter, limit, offset))
	} else {
		cursor, err = r.coll.Find(ctx, productFilter(filter), pageOptions(limit, offset))
	}
	if err != nil {
		r.logger.Error("Failed to list products", "error", err)
		return nil, mapError(err)
	}

	products := []*models.Product{}
	if err := cursor.All(ctx, &products); err != nil {
		return nil, mapError(err)
	}
	return products, nil
}

func (r *productRepository) Count(ctx context.Context, filter models.ProductFilter) (int, error) {
	n, err := r.coll.CountDocuments(ctx, productFilter(filter))
	if err != nil {
		r.logger.Error("Failed to count products", "error", err)
		return 0, mapError(err)
	}
	return int(n), nil
}

func (r *productRepository) Update(ctx context.Context, product *models.Product) error {
	product.UpdatedAt = models.GetCurrentTime()

	update := bson.M{"$set": bson.M{
		"name":          product.Name,
		"description":   product.Description,
		"price":         product.Price,
		"discountPrice": product.DiscountPrice,
		"category":      product.Category,
		"brand":         product.Brand,
		"sku":           product.SKU,
		"images":        product.Images,
		"isActive":      product.IsActive,
		"updatedAt":     product.UpdatedAt,
	}}

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": product.ID}, update)
	if err != nil {
		r.logger.Error("Failed to update product", "error", err, "productID", product.ID)
		return mapError(err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *productRepository) Delete(ctx context.Context, id string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		r.logger.Error("Failed to delete product", "error", err, "productID", id)
		return mapError(err)
	}
	if res.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

type orderRepository struct {
	coll   *mongo.Collection
	logger logger.Logger
}

func (r *orderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&order); err != nil {
		return nil, mapError(err)
	}
	return &order, nil
}

func (r *orderRepository) List(ctx context.Context, filter models.OrderFilter, limit, offset int) ([]*models.Order, error) {
	cursor, err := r.coll.Find(ctx, orderFilter(filter), pageOptions(limit, offset))
	if err != nil {
		r.logger.Error("Failed to list orders", "error", err)
		return nil, mapError(err)
	}

	orders := []*models.Order{}
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, mapError(err)
	}
	return orders, nil
}

func (r *orderRepository) Count(ctx context.Context, filter models.OrderFilter) (int, error) {
	n, err := r.coll.CountDocuments(ctx, orderFilter(filter))
	if err != nil {
		r.logger.Error("Failed to count orders", "error", err)
		return 0, mapError(err)
	}
	return int(n), nil
}

func (r *orderRepository) SumTotal(ctx context.Context, filter models.OrderFilter) (decimal.Decimal, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: orderFilter(filter)}},
		{{Key: "$group", Value: bson.M{"_id": nil, "total": bson.M{"$sum": "$totalPrice"}}}},
	}

	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		r.logger.Error("Failed to sum order totals", "error", err)
		return decimal.Zero, mapError(err)
	}

	var rows []struct {
		Total decimal.Decimal `bson:"total"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return decimal.Zero, mapError(err)
	}
	if len(rows) == 0 {
		return decimal.Zero, nil
	}
	return rows[0].Total, nil
}

func (r *orderRepository) CountByStatus(ctx context.Context) (map[models.OrderStatus]int, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": "$status", "count": bson.M{"$sum": 1}}}},
	}

	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		r.logger.Error("Failed to count orders by status", "error", err)
		return nil, mapError(err)
	}

	var rows []struct {
		Status models.OrderStatus `bson:"_id"`
		Count  int                `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, mapError(err)
	}

	counts := make(map[models.OrderStatus]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

func (r *orderRepository) MonthlyRevenue(ctx context.Context, filter models.OrderFilter) ([]models.MonthlyRevenue, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: orderFilter(filter)}},
		{{Key: "$group", Value: bson.M{
			"_id":     bson.M{"$month": "$createdAt"},
			"revenue": bson.M{"$sum": "$totalPrice"},
			"orders":  bson.M{"$sum": 1},
		}}},
		{{Key: "$sort", Value: bson.M{"_id": 1}}},
	}

	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		r.logger.Error("Failed to aggregate monthly revenue", "error", err)
		return nil, mapError(err)
	}

	months := []models.MonthlyRevenue{}
	if err := cursor.All(ctx, &months); err != nil {
		return nil, mapError(err)
	}
	return months, nil
}

type outboxRepository struct {
	coll   *mongo.Collection
	logger logger.Logger
}

var oldestFirst = bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}

func (r *outboxRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*models.OutboxMessage, error) {
	cursor, err := r.coll.Find(ctx, filter, opts.SetSort(oldestFirst))
	if err != nil {
		r.logger.Error("Failed to query outbox messages", "error", err)
		return nil, mapError(err)
	}

	messages := []*models.OutboxMessage{}
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, mapError(err)
	}
	return messages, nil
}

func (r *outboxRepository) GetPendingMessages(ctx context.Context, limit int) ([]*models.OutboxMessage, error) {
	filter := bson.M{
		"status":        models.OutboxStatusPending,
		"nextAttemptAt": bson.M{"$lte": models.GetCurrentTime()},
	}
	return r.find(ctx, filter, options.Find().SetLimit(int64(limit)))
}

func (r *outboxRepository) ListByStatus(ctx context.Context, status models.OutboxStatus, limit, offset int) ([]*models.OutboxMessage, error) {
	opts := options.Find().SetSkip(int64(offset)).SetLimit(int64(limit))
	return r.find(ctx, bson.M{"status": status}, opts)
}

func (r *outboxRepository) GetMessage(ctx context.Context, id string) (*models.OutboxMessage, error) {
	var message models.OutboxMessage
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&message); err != nil {
		return nil, mapError(err)
	}
	return &message, nil
}

func (r *outboxRepository) update(ctx context.Context, filter, update bson.M) error {
	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		r.logger.Error("Failed to update outbox message", "error", err, "messageID", filter["_id"])
		return mapError(err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *outboxRepository) MarkAsProcessing(ctx context.Context, id string) error {
	return r.update(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"status": models.OutboxStatusProcessing, "nextAttemptAt": models.GetCurrentTime()},
		"$inc": bson.M{"processingAttempts": 1},
	})
}

func (r *outboxRepository) ReclaimStale(ctx context.Context, olderThan time.Time) (int, error) {
	res, err := r.coll.UpdateMany(ctx,
		bson.M{"status": models.OutboxStatusProcessing, "nextAttemptAt": bson.M{"$lte": olderThan}},
		bson.M{"$set": bson.M{"status": models.OutboxStatusPending, "lastError": models.StaleProcessingError}})
	if err != nil {
		r.logger.Error("Failed to reclaim stale outbox messages", "error", err)
		return 0, mapError(err)
	}
	return int(res.ModifiedCount), nil
}

func (r *outboxRepository) MarkAsCompleted(ctx context.Context, id string) error {
	return r.update(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"status": models.OutboxStatusCompleted, "processedAt": models.GetCurrentTime()},
	})
}

func (r *outboxRepository) MarkAsFailed(ctx context.Context, id string, errorMessage string) error {
	return r.update(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"status": models.OutboxStatusFailed, "lastError": errorMessage},
	})
}

func (r *outboxRepository) Reschedule(ctx context.Context, id string, errorMessage string, nextAttempt time.Time) error {
	return r.update(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{
			"status":        models.OutboxStatusPending,
			"lastError":     errorMessage,
			"nextAttemptAt": nextAttempt,
		},
	})
}

func (r *outboxRepository) Requeue(ctx context.Context, id string) error {
	return r.update(ctx, bson.M{"_id": id, "status": models.OutboxStatusFailed}, bson.M{
		"$set": bson.M{
			"status":             models.OutboxStatusPending,
			"processingAttempts": 0,
			"nextAttemptAt":      models.GetCurrentTime(),
		},
	})
}
