package mongodb

import (
	"context"
	"errors"

	"github.com/vaidashi/storefront-api/internal/database"
	"github.com/vaidashi/storefront-api/internal/models"
	"github.com/vaidashi/storefront-api/internal/repository"
	"github.com/vaidashi/storefront-api/pkg/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongoTx issues every operation with the session context it is handed, so
// reads see the transaction snapshot and writes commit together.
type mongoTx struct {
	db     *mongo.Database
	logger logger.Logger
}

func (t *mongoTx) products() *mongo.Collection { return t.db.Collection(database.ProductsCollection) }
func (t *mongoTx) orders() *mongo.Collection { return t.db.Collection(database.OrdersCollection) }

func (t *mongoTx) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	if err := t.products().FindOne(ctx, bson.M{"_id": id}).Decode(&product); err != nil {
		return nil, mapError(err)
	}
	return &product, nil
}

// AdjustStock guards the decrement in the filter, so the update only
// matches while enough stock remains.
func (t *mongoTx) AdjustStock(ctx context.Context, productID string, delta int) (*models.Product, error) {
	filter := bson.M{"_id": productID}
	if delta < 0 {
		filter["stock"] = bson.M{"$gte": -delta}
	}
	update := bson.M{
		"$inc": bson.M{"stock": delta},
		"$set": bson.M{"updatedAt": models.GetCurrentTime()},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var product models.Product
	err := t.products().FindOneAndUpdate(ctx, filter, update, opts).Decode(&product)
	if err == nil {
		return &product, nil
	}

	err = mapError(err)
	if !errors.Is(err, repository.ErrNotFound) {
		t.logger.Error("Failed to adjust stock", "error", err, "productID", productID, "delta", delta)
		return nil, err
	}

	n, err := t.products().CountDocuments(ctx, bson.M{"_id": productID})
	if err != nil {
		return nil, mapError(err)
	}
	if n > 0 {
		return nil, repository.ErrInsufficientStock
	}
	return nil, repository.ErrNotFound
}

// GetOrder reads within the snapshot. A concurrent writer to the same order
// makes the later commit fail with a write conflict, which restarts the unit
// of work against fresh data.
func (t *mongoTx) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	if err := t.orders().FindOne(ctx, bson.M{"_id": id}).Decode(&order); err != nil {
		return nil, mapError(err)
	}
	return &order, nil
}

func (t *mongoTx) CreateOrder(ctx context.Context, order *models.Order) error {
	if _, err := t.orders().InsertOne(ctx, order); err != nil {
		t.logger.Error("Failed to create order", "error", err, "orderID", order.ID)
		return mapError(err)
	}
	return nil
}

func (t *mongoTx) UpdateOrder(ctx context.Context, order *models.Order) error {
	res, err := t.orders().ReplaceOne(ctx, bson.M{"_id": order.ID}, order)
	if err != nil {
		t.logger.Error("Failed to update order", "error", err, "orderID", order.ID)
		return mapError(err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (t *mongoTx) DeleteOrder(ctx context.Context, id string) error {
	res, err := t.orders().DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		t.logger.Error("Failed to delete order", "error", err, "orderID", id)
		return mapError(err)
	}
	if res.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (t *mongoTx) CreateOutboxMessage(ctx context.Context, message *models.OutboxMessage) error {
	if _, err := t.db.Collection(database.OutboxCollection).InsertOne(ctx, message); err != nil {
		t.logger.Error("Failed to create outbox message", "error", err, "eventType", message.EventType)
		return mapError(err)
	}
	return nil
}
