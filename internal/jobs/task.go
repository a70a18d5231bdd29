package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindMaterializePlan  Kind = "plan.materialize"
	KindSummarizeSession Kind = "session.summarize"
)

type Task struct {
	ID         string          `json:"id"`
	Kind       Kind            `json:"kind"`
	Payload    json.RawMessage `json:"payload"`
	Attempt    int             `json:"attempt"`
	EnqueuedAt time.Time       `json:"enqueuedAt"`
	LastError  string          `json:"lastError,omitempty"`
}

type MaterializePlanPayload struct {
	GAD7ResultID int64 `json:"gad7ResultId"`
}

type SummarizeSessionPayload struct {
	SessionID int64 `json:"sessionId"`
}

func NewTask(kind Kind, payload any) (*Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", kind, err)
	}
	return &Task{
		ID:         uuid.NewString(),
		Kind:       kind,
		Payload:    data,
		EnqueuedAt: time.Now(),
	}, nil
}

// Decode unmarshals the task payload into T.
func Decode[T any](task *Task) (T, error) {
	var out T
	if err := json.Unmarshal(task.Payload, &out); err != nil {
		return out, fmt.Errorf("decode %s payload: %w", task.Kind, err)
	}
	return out, nil
}

// Queue is a durable FIFO of tasks.
type Queue interface {
	Push(ctx context.Context, task *Task) error
	// Pop blocks up to timeout and returns nil, nil when nothing arrived.
	Pop(ctx context.Context, timeout time.Duration) (*Task, error)
	DeadLetter(ctx context.Context, task *Task) error
}

// Enqueuer is the producer side handed to services.
type Enqueuer struct {
	queue Queue
}

func NewEnqueuer(queue Queue) *Enqueuer {
	return &Enqueuer{queue: queue}
}

func (e *Enqueuer) Enqueue(ctx context.Context, kind Kind, payload any) error {
	task, err := NewTask(kind, payload)
	if err != nil {
		return err
	}
	return e.queue.Push(ctx, task)
}
