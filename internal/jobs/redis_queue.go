package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	redisclient "github.com/aithera/therapy-server-go/internal/redis"
)

// RedisQueue stores tasks in a Redis list: producers LPUSH, workers BRPOP.
type RedisQueue struct {
	client *redis.Client
	key    string
	dead   string
}

func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{
		client: client,
		key:    redisclient.TaskQueueKey,
		dead:   redisclient.DeadLetterKey,
	}
}

func (q *RedisQueue) Push(ctx context.Context, task *Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}
	return q.client.LPush(ctx, q.key, data).Err()
}

func (q *RedisQueue) Pop(ctx context.Context, timeout time.Duration) (*Task, error) {
	result, err := q.client.BRPop(ctx, timeout, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected BRPOP reply of length %d", len(result))
	}

	var task Task
	if err := json.Unmarshal([]byte(result[1]), &task); err != nil {
		return nil, fmt.Errorf("decode task: %w", err)
	}
	return &task, nil
}

func (q *RedisQueue) DeadLetter(ctx context.Context, task *Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}

	pipe := q.client.TxPipeline()
	pipe.LPush(ctx, q.dead, data)
	pipe.LTrim(ctx, q.dead, 0, redisclient.DeadLetterMaxSize-1)
	_, err = pipe.Exec(ctx)
	return err
}
