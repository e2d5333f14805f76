package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"qms/ticket-queue/internal/models"
	"qms/ticket-queue/internal/telemetry"

	"github.com/cenkalti/backoff/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/atomic"
)

// Broadcaster delivers an encoded event to this instance's connections.
type Broadcaster interface {
	Broadcast(payload []byte, categoryID int64)
}

const (
	retryInitial = 500 * time.Millisecond
	retryMax     = 15 * time.Second
)

type redisPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisBus fans live events out to every instance through a Redis channel.
// Each instance, including the sender, rebroadcasts what it receives. While
// this instance is not subscribed, Publish delivers to local connections
// itself.
type RedisBus struct {
	client     *redis.Client
	publisher  redisPublisher
	channel    string
	local      Broadcaster
	subscribed *atomic.Bool
	retryMin   time.Duration
}

func NewRedisBus(client *redis.Client, channel string, local Broadcaster) *RedisBus {
	return &RedisBus{
		client:     client,
		publisher:  client,
		channel:    channel,
		local:      local,
		subscribed: atomic.NewBool(false),
		retryMin:   retryInitial,
	}
}

// Publish sends event to the channel. When Redis is unreachable or the
// subscription is down the event is still delivered to local connections.
func (b *RedisBus) Publish(ctx context.Context, event models.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if !b.subscribed.Load() {
		b.local.Broadcast(payload, categoryOf(event))
		if err := b.publisher.Publish(ctx, b.channel, payload).Err(); err != nil {
			telemetry.PublishFailures.WithLabelValues("redis").Inc()
			return fmt.Errorf("redis publish: %w", err)
		}
		return nil
	}
	if err := b.publisher.Publish(ctx, b.channel, payload).Err(); err != nil {
		telemetry.PublishFailures.WithLabelValues("redis").Inc()
		b.local.Broadcast(payload, categoryOf(event))
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Subscribed reports whether channel messages currently reach the local hub.
func (b *RedisBus) Subscribed() bool {
	return b.subscribed.Load()
}

// Run relays channel messages into the local hub until ctx is done. A lost
// or failed subscription is retried with exponential backoff.
func (b *RedisBus) Run(ctx context.Context) error {
	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = b.retryMin
	retry.MaxInterval = retryMax
	for {
		err := b.listen(ctx, retry.Reset)
		if ctx.Err() != nil {
			return nil
		}
		wait := retry.NextBackOff()
		log.Printf("redis bus subscription down channel=%s retry_in=%s: %v", b.channel, wait, err)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

func (b *RedisBus) listen(ctx context.Context, onSubscribed func()) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe: %w", err)
	}
	b.subscribed.Store(true)
	defer b.subscribed.Store(false)
	onSubscribed()
	log.Printf("redis bus subscribed channel=%s", b.channel)

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return errors.New("redis channel closed")
			}
			payload := []byte(msg.Payload)
			categoryID, err := decodeCategory(payload)
			if err != nil {
				log.Printf("redis bus decode error: %v", err)
				continue
			}
			b.local.Broadcast(payload, categoryID)
		}
	}
}

func categoryOf(event models.Event) int64 {
	if event.CategoryID == nil {
		return 0
	}
	return *event.CategoryID
}

func decodeCategory(payload []byte) (int64, error) {
	var envelope struct {
		CategoryID *int64 `json:"category_id"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return 0, err
	}
	if envelope.CategoryID == nil {
		return 0, nil
	}
	return *envelope.CategoryID, nil
}
