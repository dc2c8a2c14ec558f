// Package notify publishes domain events (jobs generated, started,
// completed, assigned) to Redis for downstream consumers: mobile push,
// client portal, reporting. Delivery is best-effort; callers must never let
// a notification failure break the operation that triggered it.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/clearcrew/fieldops/internal/logger"
	"github.com/clearcrew/fieldops/internal/serialization"
)

// eventListCap bounds the retained event backlog
const eventListCap = 10000

// Envelope wraps a published event
type Envelope struct {
	ID        string                 `json:"id"`
	Event     string                 `json:"event"`
	Timestamp string                 `json:"timestamp"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
}

// RedisNotifier publishes events to a Redis list and a per-event pub/sub
// channel
type RedisNotifier struct {
	client     *redis.Client
	serializer *serialization.Serializer
	keyPrefix  string
	eventsKey  string
	log        logger.Logger
}

// NewRedisNotifier connects to Redis and verifies the connection
func NewRedisNotifier(redisURL string, log logger.Logger) (*RedisNotifier, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisNotifierWithClient(client, log), nil
}

// NewRedisNotifierWithClient wraps an existing Redis client
func NewRedisNotifierWithClient(client *redis.Client, log logger.Logger) *RedisNotifier {
	if log == nil {
		log = &logger.NoOpLogger{}
	}
	prefix := "fieldops:"
	return &RedisNotifier{
		client:     client,
		serializer: serialization.NewProtobufSerializer(),
		keyPrefix:  prefix,
		eventsKey:  prefix + "events",
		log:        log.WithComponent(logger.ComponentNotify),
	}
}

// channelKey returns the pub/sub channel for an event type
func (n *RedisNotifier) channelKey(event string) string {
	return n.keyPrefix + "events:" + event
}

// Publish serializes the event envelope and pushes it to the event list and
// the event's pub/sub channel in one pipeline
func (n *RedisNotifier) Publish(ctx context.Context, event string, payload map[string]interface{}) error {
	envelope := map[string]interface{}{
		"id":        uuid.New().String(),
		"event":     event,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"payload":   payload,
	}

	s, err := serialization.MapToStruct(envelope)
	if err != nil {
		return fmt.Errorf("failed to build event envelope: %w", err)
	}
	data, err := n.serializer.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to serialize event: %w", err)
	}

	pipe := n.client.Pipeline()
	pipe.LPush(ctx, n.eventsKey, data)
	pipe.LTrim(ctx, n.eventsKey, 0, eventListCap-1)
	pipe.Publish(ctx, n.channelKey(event), data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	n.log.Debug("Published event", "event", event)
	return nil
}

// DecodeEnvelope decodes a raw event entry back into an Envelope
func DecodeEnvelope(data []byte) (*Envelope, error) {
	s := &structpb.Struct{}
	serializer := serialization.NewProtobufSerializer()
	if err := serializer.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to decode event: %w", err)
	}

	m := serialization.StructToMap(s)
	e := &Envelope{}
	if v, ok := m["id"].(string); ok {
		e.ID = v
	}
	if v, ok := m["event"].(string); ok {
		e.Event = v
	}
	if v, ok := m["timestamp"].(string); ok {
		e.Timestamp = v
	}
	if v, ok := m["payload"].(map[string]interface{}); ok {
		e.Payload = v
	}
	return e, nil
}

// Close closes the Redis connection
func (n *RedisNotifier) Close() error {
	if err := n.client.Close(); err != nil {
		return fmt.Errorf("failed to close Redis connection: %w", err)
	}
	return nil
}

// Noop is a Notifier that discards every event, for deployments without
// Redis and for tests
type Noop struct{}

// Publish discards the event
func (Noop) Publish(ctx context.Context, event string, payload map[string]interface{}) error {
	return nil
}
