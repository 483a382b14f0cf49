// Package redis holds the stream, claim-lock, and client plumbing shared by
// the ingest and dispatcher binaries.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/cassiomorais/payment-events/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
)

// NewClient connects to Redis and verifies the connection before returning.
// Startup retries cover the common case of the container coming up before
// Redis does.
func NewClient(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
		MaxRetries:   3,
	})

	retries := cfg.ConnectRetries
	if retries <= 0 {
		retries = 5
	}
	delay := cfg.ConnectRetryDelay
	if delay <= 0 {
		delay = time.Second
	}

	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		if lastErr = client.Ping(ctx).Err(); lastErr == nil {
			return client, nil
		}
		select {
		case <-ctx.Done():
			client.Close()
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * delay):
		}
	}

	client.Close()
	return nil, fmt.Errorf("connect to redis after %d attempts: %w", retries, lastErr)
}
