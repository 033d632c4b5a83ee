package redis

import (
	"context"
	"fmt"
	"time"

	"garageBooking/pkg/config"
	"garageBooking/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient pings until the server answers or retries run out.
func NewRedisClient(cfg config.RedisConfig, retries int, delay time.Duration) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	var err error
	for i := range max(retries, 1) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = client.Ping(ctx).Err()
		cancel()
		if err == nil {
			return client, nil
		}

		logger.Warn("redis not ready, retrying", "attempt", i+1, "addr", client.Options().Addr, "error", err)
		time.Sleep(delay)
	}

	_ = client.Close()
	return nil, fmt.Errorf("failed to connect to redis at %s: %w", client.Options().Addr, err)
}

func CloseRedisClient(client *redis.Client) error {
	if client == nil {
		return nil
	}
	return client.Close()
}
