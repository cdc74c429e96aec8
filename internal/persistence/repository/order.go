package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tabsync/tabsync/internal/domain"
	"github.com/tabsync/tabsync/internal/persistence/db"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var terminalStatuses = []string{
	string(domain.OrderServed),
	string(domain.OrderCancelled),
}

type MongoOrderRepository struct {
	collection *mongo.Collection
}

func NewMongoOrderRepository(database *mongo.Database) *MongoOrderRepository {
	return &MongoOrderRepository{
		collection: database.Collection(db.OrdersCollection),
	}
}

func (r *MongoOrderRepository) FindActiveByTenant(ctx context.Context, tenantID string) ([]domain.Order, error) {
	filter := bson.M{
		"tenantId": tenantID,
		"status":   bson.M{"$nin": terminalStatuses},
	}

	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.M{"createdAt": -1}))
	if err != nil {
		return nil, fmt.Errorf("failed to query active orders: %w", err)
	}
	defer cursor.Close(ctx)

	var orders []domain.Order
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, fmt.Errorf("failed to decode orders: %w", err)
	}

	return orders, nil
}

func (r *MongoOrderRepository) FindRecentByTable(ctx context.Context, tableID string, since time.Time) ([]domain.Order, error) {
	filter := bson.M{
		"tableId":   tableID,
		"createdAt": bson.M{"$gte": since},
	}

	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.M{"createdAt": -1}))
	if err != nil {
		return nil, fmt.Errorf("failed to query table orders: %w", err)
	}
	defer cursor.Close(ctx)

	var orders []domain.Order
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, fmt.Errorf("failed to decode orders: %w", err)
	}

	return orders, nil
}

func (r *MongoOrderRepository) GetByID(ctx context.Context, tenantID, orderID string) (domain.Order, error) {
	filter := bson.M{"_id": orderID, "tenantId": tenantID}

	var order domain.Order
	err := r.collection.FindOne(ctx, filter).Decode(&order)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("failed to fetch order: %w", err)
	}

	return order, nil
}

func (r *MongoOrderRepository) UpdateStatus(ctx context.Context, tenantID, orderID string, status domain.OrderStatus) (domain.Order, error) {
	filter := bson.M{"_id": orderID, "tenantId": tenantID}
	update := bson.M{"$set": bson.M{
		"status":    string(status),
		"updatedAt": time.Now(),
	}}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var order domain.Order
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&order)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("failed to update order status: %w", err)
	}

	return order, nil
}

func (r *MongoOrderRepository) UpdateItemStatus(ctx context.Context, tenantID, orderID, itemID, status string) (domain.Order, error) {
	filter := bson.M{"_id": orderID, "tenantId": tenantID, "items.id": itemID}
	update := bson.M{"$set": bson.M{
		"items.$.status": status,
		"updatedAt":      time.Now(),
	}}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var order domain.Order
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&order)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("failed to update item status: %w", err)
	}

	return order, nil
}
