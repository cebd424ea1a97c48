package events

import (
	"context"
	"fmt"

	"marketplace-core/internal/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const historyCollection = "order_events"

// MongoRecorder stores every event as one document and serves the history
// of an order from it.
type MongoRecorder struct {
	col *mongo.Collection
}

func NewMongoRecorder(db *mongo.Database) *MongoRecorder {
	return &MongoRecorder{col: db.Collection(historyCollection)}
}

// EnsureIndexes creates the lookup index on order_id and timestamp.
func (r *MongoRecorder) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "order_id", Value: 1}, {Key: "timestamp", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("create history index: %w", err)
	}
	return nil
}

func (r *MongoRecorder) Publish(ctx context.Context, ev domain.LifecycleEvent) error {
	if _, err := r.col.InsertOne(ctx, ev); err != nil {
		return fmt.Errorf("record event order=%s: %w", ev.OrderID, err)
	}
	return nil
}

func (r *MongoRecorder) History(ctx context.Context, orderID string) ([]domain.LifecycleEvent, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})
	cur, err := r.col.Find(ctx, bson.M{"order_id": orderID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find history order=%s: %w", orderID, err)
	}
	defer cur.Close(ctx)

	var out []domain.LifecycleEvent
	for cur.Next(ctx) {
		var ev domain.LifecycleEvent
		if err := cur.Decode(&ev); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, cur.Err()
}
