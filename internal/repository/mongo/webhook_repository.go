package mongo

import (
	"context"
	"fmt"
	"time"

	"garageBooking/domain"
	"garageBooking/pkg/tracing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel/attribute"
)

// WebhookRepository is the audit log of payment provider deliveries.
type WebhookRepository struct {
	Collection *mongo.Collection
}

func NewWebhookRepository(client *mongo.Client, database, collection string) *WebhookRepository {
	return &WebhookRepository{
		Collection: client.Database(database).Collection(collection),
	}
}

// EnsureIndexes creates the indexes the follow-up queries rely on.
func (r *WebhookRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.Collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "resolved", Value: 1}, {Key: "received_at", Value: -1}}},
		{Keys: bson.D{{Key: "tx_ref", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create webhook indexes: %w", err)
	}
	return nil
}

func (r *WebhookRepository) Record(ctx context.Context, event domain.WebhookEvent) (err error) {
	ctx, span := tracing.Start(ctx, "MongoRecordWebhook",
		attribute.String("outcome", string(event.Outcome)),
		attribute.String("tx_ref", event.TxRef),
	)
	defer func() { tracing.End(span, err) }()

	_, err = r.Collection.InsertOne(ctx, event)
	return err
}

// ListUnresolved returns deliveries still waiting for an operator, newest first.
func (r *WebhookRepository) ListUnresolved(ctx context.Context, limit int64) ([]domain.WebhookEvent, error) {
	opts := options.Find().SetSort(bson.D{{Key: "received_at", Value: -1}}).SetLimit(limit)

	cursor, err := r.Collection.Find(ctx, bson.M{"resolved": false}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	events := []domain.WebhookEvent{}
	if err := cursor.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}

func (r *WebhookRepository) Resolve(ctx context.Context, id string) error {
	result, err := r.Collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"resolved": true, "resolved_at": time.Now().UTC()}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: webhook event %s", domain.ErrNotFound, id)
	}
	return nil
}
