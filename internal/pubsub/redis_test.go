package pubsub

import (
	"fmt"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
)

func TestPumpExitsWithFullBufferWhenSourceCloses(t *testing.T) {
	sub := &redisSubscription{events: make(chan []byte, 1)}
	src := make(chan *redis.Message)

	done := make(chan struct{})
	go func() {
		sub.pump(src)
		close(done)
	}()

	// Nothing drains events, so only the first message fits. The rest must
	// be dropped; a pump parked on a blocked send would never see the source
	// channel close and would leak on every disconnect-under-backlog.
	for i := 0; i < 10; i++ {
		src <- &redis.Message{Payload: fmt.Sprintf("msg-%d", i)}
	}
	close(src)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pump did not exit after the source channel closed")
	}

	require.Equal(t, "msg-0", string(<-sub.events))
	_, open := <-sub.events
	require.False(t, open, "events channel should be closed after pump exits")
}
