package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Keys shared by the task queue.
const (
	TaskQueueKey      = "jobs:queue"
	DeadLetterKey     = "jobs:dead"
	DeadLetterMaxSize = 1000
)

const connectTimeout = 5 * time.Second

// Client wraps go-redis so callers can reach the raw client for queues,
// pub/sub and rate-limit scripts.
type Client struct {
	*redis.Client
}

func NewClient(redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Client{client}, nil
}

// EventChannel is the pub/sub channel carrying live events for one user.
func EventChannel(userID int64) string {
	return fmt.Sprintf("events:user:%d", userID)
}
