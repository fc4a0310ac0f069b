package pubsub

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func recvOne(t *testing.T, sub Subscription) []byte {
	t.Helper()
	select {
	case msg, ok := <-sub.Events():
		require.True(t, ok, "subscription channel closed unexpectedly")
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func TestPublishPreservesOrderPerSubscriber(t *testing.T) {
	broker := NewMemoryBroker()
	ctx := context.Background()

	sub, err := broker.Subscribe(ctx, UserChannel("u1"))
	require.NoError(t, err)
	defer sub.Close()

	for i := 0; i < 5; i++ {
		require.NoError(t, broker.Publish(ctx, UserChannel("u1"), []byte(fmt.Sprintf("msg-%d", i))))
	}

	for i := 0; i < 5; i++ {
		require.Equal(t, fmt.Sprintf("msg-%d", i), string(recvOne(t, sub)))
	}
}

func TestPublishFansOutToAllSubscribers(t *testing.T) {
	broker := NewMemoryBroker()
	ctx := context.Background()

	// Same user, two devices.
	first, err := broker.Subscribe(ctx, UserChannel("u1"))
	require.NoError(t, err)
	defer first.Close()
	second, err := broker.Subscribe(ctx, UserChannel("u1"))
	require.NoError(t, err)
	defer second.Close()

	require.NoError(t, broker.Publish(ctx, UserChannel("u1"), []byte("hello")))

	require.Equal(t, "hello", string(recvOne(t, first)))
	require.Equal(t, "hello", string(recvOne(t, second)))
}

func TestPublishIsScopedToChannel(t *testing.T) {
	broker := NewMemoryBroker()
	ctx := context.Background()

	other, err := broker.Subscribe(ctx, UserChannel("u2"))
	require.NoError(t, err)
	defer other.Close()

	require.NoError(t, broker.Publish(ctx, UserChannel("u1"), []byte("not for u2")))

	select {
	case msg := <-other.Events():
		t.Fatalf("unexpected message on another user's channel: %q", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishWithoutSubscribersIsNotAnError(t *testing.T) {
	broker := NewMemoryBroker()
	require.NoError(t, broker.Publish(context.Background(), UserChannel("nobody"), []byte("void")))
}

func TestCloseIsIdempotent(t *testing.T) {
	broker := NewMemoryBroker()
	sub, err := broker.Subscribe(context.Background(), UserChannel("u1"))
	require.NoError(t, err)

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())

	// A closed subscription no longer receives.
	require.NoError(t, broker.Publish(context.Background(), UserChannel("u1"), []byte("late")))
	_, ok := <-sub.Events()
	require.False(t, ok)
}

func TestSlowConsumerDoesNotBlockPublisher(t *testing.T) {
	broker := NewMemoryBroker()
	ctx := context.Background()

	sub, err := broker.Subscribe(ctx, UserChannel("u1"))
	require.NoError(t, err)
	defer sub.Close()

	// Overflow the subscriber buffer without draining it; Publish must
	// keep returning promptly.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			_ = broker.Publish(ctx, UserChannel("u1"), []byte("burst"))
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publisher blocked on a slow consumer")
	}
}

func TestUserChannel(t *testing.T) {
	require.Equal(t, "notifications:abc123", UserChannel("abc123"))
}
