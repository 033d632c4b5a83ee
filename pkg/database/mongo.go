package database

import (
	"context"
	"fmt"
	"time"

	"garageBooking/pkg/config"
	"garageBooking/pkg/logger"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ConnectMongo connects and pings, retrying a few times while the server starts.
func ConnectMongo(cfg config.MongoConfig, retries int, delay time.Duration) (*mongo.Client, error) {
	var client *mongo.Client
	var err error

	for i := range retries {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		client, err = mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
		if err == nil {
			err = client.Ping(ctx, nil)
			if err == nil {
				cancel()
				return client, nil
			}
			_ = client.Disconnect(context.Background())
		}
		cancel()

		logger.Warn("mongo not ready, retrying", "attempt", i+1, "error", err)
		time.Sleep(delay)
	}

	return nil, fmt.Errorf("failed to connect to mongo after %d attempts: %w", retries, err)
}
