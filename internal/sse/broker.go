package sse

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/aithera/therapy-server-go/internal/metrics"
	redisclient "github.com/aithera/therapy-server-go/internal/redis"
)

const (
	HeartbeatInterval = 30 * time.Second
	clientBufferSize  = 16
)

const (
	EventConnected        = "connected"
	EventPlanReady        = "plan_ready"
	EventSessionCompleted = "session_completed"
	EventSummaryReady     = "summary_ready"
)

type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func NewEvent(eventType string, data any) (Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: eventType, Data: raw}, nil
}

// Publisher is the side of the broker that services depend on.
type Publisher interface {
	Publish(ctx context.Context, userID int64, event Event) error
}

type Client struct {
	UserID int64
	Events chan Event
	Done   chan struct{}
}

// Broker fans Redis pub/sub events out to the SSE clients of this instance.
// One Redis subscription is held per user with at least one open stream.
type Broker struct {
	redis   *redisclient.Client
	clients map[int64]map[*Client]bool
	subs    map[int64]context.CancelFunc
	mu      sync.RWMutex
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewBroker(redisClient *redisclient.Client) *Broker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Broker{
		redis:   redisClient,
		clients: make(map[int64]map[*Client]bool),
		subs:    make(map[int64]context.CancelFunc),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (b *Broker) Subscribe(userID int64) *Client {
	client := &Client{
		UserID: userID,
		Events: make(chan Event, clientBufferSize),
		Done:   make(chan struct{}),
	}

	b.mu.Lock()
	if b.clients[userID] == nil {
		b.clients[userID] = make(map[*Client]bool)
		if b.redis != nil {
			subCtx, cancel := context.WithCancel(b.ctx)
			b.subs[userID] = cancel
			go b.subscribeToRedis(subCtx, userID)
		}
	}
	b.clients[userID][client] = true
	clientCount := len(b.clients[userID])
	b.mu.Unlock()

	metrics.SSEConnections.Inc()

	log.Debug().
		Int64("userId", userID).
		Int("clientCount", clientCount).
		Msg("sse client subscribed")

	return client
}

func (b *Broker) Unsubscribe(client *Client) {
	b.mu.Lock()
	defer b.mu.Unlock()

	clients, ok := b.clients[client.UserID]
	if !ok || !clients[client] {
		return
	}
	delete(clients, client)
	close(client.Done)
	metrics.SSEConnections.Dec()

	if len(clients) == 0 {
		delete(b.clients, client.UserID)
		if cancel, ok := b.subs[client.UserID]; ok {
			cancel()
			delete(b.subs, client.UserID)
		}
	}

	log.Debug().
		Int64("userId", client.UserID).
		Int("clientCount", len(clients)).
		Msg("sse client unsubscribed")
}

func (b *Broker) Publish(ctx context.Context, userID int64, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return b.redis.Publish(ctx, redisclient.EventChannel(userID), data).Err()
}

func (b *Broker) subscribeToRedis(ctx context.Context, userID int64) {
	channel := redisclient.EventChannel(userID)
	pubsub := b.redis.Subscribe(ctx, channel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}

			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Error().Err(err).Msg("failed to unmarshal event")
				continue
			}

			b.broadcast(userID, event)
		}
	}
}

func (b *Broker) broadcast(userID int64, event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for client := range b.clients[userID] {
		select {
		case client.Events <- event:
		default:
			log.Warn().
				Int64("userId", userID).
				Str("eventType", event.Type).
				Msg("client event buffer full, dropping event")
		}
	}
}

func (b *Broker) Close() {
	b.cancel()

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, clients := range b.clients {
		for client := range clients {
			close(client.Done)
			metrics.SSEConnections.Dec()
		}
	}
	b.clients = make(map[int64]map[*Client]bool)
	b.subs = make(map[int64]context.CancelFunc)
}

func (b *Broker) ClientCount(userID int64) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients[userID])
}

func (b *Broker) TotalClients() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	total := 0
	for _, clients := range b.clients {
		total += len(clients)
	}
	return total
}
