package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/tabsync/tabsync/internal/domain"
	"github.com/tabsync/tabsync/internal/persistence/db"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type MongoTableRepository struct {
	collection *mongo.Collection
}

func NewMongoTableRepository(database *mongo.Database) *MongoTableRepository {
	return &MongoTableRepository{
		collection: database.Collection(db.TablesCollection),
	}
}

func (r *MongoTableRepository) FindByCode(ctx context.Context, code string) (domain.Table, error) {
	var table domain.Table
	err := r.collection.FindOne(ctx, bson.M{"code": code}).Decode(&table)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Table{}, domain.ErrTableNotFound
	}
	if err != nil {
		return domain.Table{}, fmt.Errorf("failed to fetch table: %w", err)
	}

	return table, nil
}

func (r *MongoTableRepository) FindByTenant(ctx context.Context, tenantID string) ([]domain.Table, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"tenantId": tenantID})
	if err != nil {
		return nil, fmt.Errorf("failed to query tables: %w", err)
	}
	defer cursor.Close(ctx)

	var tables []domain.Table
	if err := cursor.All(ctx, &tables); err != nil {
		return nil, fmt.Errorf("failed to decode tables: %w", err)
	}

	return tables, nil
}
