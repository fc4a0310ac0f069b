package pubsub

import (
	"context"
	"sync"
)

// MemoryBroker is an in-process Broker used in tests and single-process
// deployments. Subscribers get buffered channels; a subscriber that falls
// behind its buffer has messages dropped rather than blocking the
// publisher, matching the best-effort contract of the live channel.
type MemoryBroker struct {
	mu       sync.RWMutex
	channels map[string]map[*memorySubscription]struct{}
}

// NewMemoryBroker creates an empty in-process broker.
func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{
		channels: make(map[string]map[*memorySubscription]struct{}),
	}
}

// Publish delivers the payload to every current subscriber of the channel.
func (b *MemoryBroker) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.channels[channel] {
		select {
		case sub.events <- payload:
		default:
			// Slow consumer; drop rather than block.
		}
	}
	return nil
}

// Subscribe registers a new subscriber on the channel.
func (b *MemoryBroker) Subscribe(_ context.Context, channel string) (Subscription, error) {
	sub := &memorySubscription{
		broker:  b,
		channel: channel,
		events:  make(chan []byte, 64),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	subs, ok := b.channels[channel]
	if !ok {
		subs = make(map[*memorySubscription]struct{})
		b.channels[channel] = subs
	}
	subs[sub] = struct{}{}
	return sub, nil
}

func (b *MemoryBroker) remove(sub *memorySubscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs, ok := b.channels[sub.channel]
	if !ok {
		return
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(b.channels, sub.channel)
	}
}

type memorySubscription struct {
	broker  *MemoryBroker
	channel string
	events  chan []byte
	once    sync.Once
}

func (s *memorySubscription) Events() <-chan []byte {
	return s.events
}

// Close unregisters the subscriber and closes its event channel exactly
// once, no matter how many paths call it.
func (s *memorySubscription) Close() error {
	s.once.Do(func() {
		s.broker.remove(s)
		close(s.events)
	})
	return nil
}
