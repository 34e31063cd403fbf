package repositories

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/models"
)

// MongoOrderRepo persists orders in a mongo collection.
type MongoOrderRepo struct {
	col *mongo.Collection
}

func NewOrderRepo(col *mongo.Collection) *MongoOrderRepo {
	return &MongoOrderRepo{col: col}
}

func (r *MongoOrderRepo) Insert(ctx context.Context, order *models.Order) error {
	_, err := r.col.InsertOne(ctx, order)
	return err
}

func (r *MongoOrderRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error) {
	var order models.Order
	err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&order)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *MongoOrderRepo) FindByOwner(ctx context.Context, owner primitive.ObjectID) ([]models.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.col.Find(ctx, bson.M{"user": owner}, opts)
	if err != nil {
		return nil, err
	}

	var orders []models.Order
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// UpdateStatus filters on the previously read status so a concurrent
// transition cannot be overwritten; it returns (nil, nil) when no order
// matches both id and status.
func (r *MongoOrderRepo) UpdateStatus(ctx context.Context, id primitive.ObjectID, from, to models.OrderStatus) (*models.Order, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	update := bson.M{"$set": bson.M{"status": to}}

	var updated models.Order
	err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": id, "status": from}, update, opts).Decode(&updated)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &updated, nil
}
