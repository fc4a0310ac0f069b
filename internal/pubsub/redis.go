package pubsub

import (
	"context"
	"sync"
	"time"

	"kairos/fitness-server/internal/config"

	"github.com/go-redis/redis/v8"
)

// RedisBroker implements Broker on top of Redis pub/sub. Each Subscribe
// call opens its own Redis subscription, so every delivery connection gets
// an independent stream and per-connection ordering follows Redis's
// per-channel publish order.
type RedisBroker struct {
	client *redis.Client
	buffer int
}

// NewRedisBroker connects a Redis client for pub/sub and verifies the
// connection with a ping. eventBuffer sizes each subscription's event
// channel.
func NewRedisBroker(cfg config.RedisConfig, eventBuffer int) (*RedisBroker, error) {
	if eventBuffer <= 0 {
		eventBuffer = 16
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, err
	}

	return &RedisBroker{client: client, buffer: eventBuffer}, nil
}

// Publish sends the payload on the named channel.
func (b *RedisBroker) Publish(ctx context.Context, channel string, payload []byte) error {
	return b.client.Publish(ctx, channel, payload).Err()
}

// Subscribe opens a dedicated Redis subscription for the channel.
func (b *RedisBroker) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	ps := b.client.Subscribe(ctx, channel)
	// Wait for the subscription to be confirmed so no message published
	// after Subscribe returns can be missed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	sub := &redisSubscription{
		ps:     ps,
		events: make(chan []byte, b.buffer),
	}
	go sub.pump(ps.Channel())
	return sub, nil
}

// Close releases the underlying Redis client.
func (b *RedisBroker) Close() error {
	return b.client.Close()
}

type redisSubscription struct {
	ps     *redis.PubSub
	events chan []byte
	once   sync.Once
}

// pump forwards broker messages into the subscription's buffer. The send
// never blocks: a subscriber that stops draining has messages dropped, the
// same best-effort contract the in-memory broker follows, and the pump can
// always reach the channel-closed check when Close tears the PubSub down.
func (s *redisSubscription) pump(ch <-chan *redis.Message) {
	defer close(s.events)
	for msg := range ch {
		select {
		case s.events <- []byte(msg.Payload):
		default:
			// Slow consumer; drop rather than block.
		}
	}
}

func (s *redisSubscription) Events() <-chan []byte {
	return s.events
}

// Close tears down the Redis subscription. Safe to call from both the
// transport cancellation hook and an error path.
func (s *redisSubscription) Close() error {
	var err error
	s.once.Do(func() {
		// Closing the PubSub closes the message channel, which ends pump
		// and closes events.
		err = s.ps.Close()
	})
	return err
}
