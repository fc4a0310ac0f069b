package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"kairos/fitness-server/internal/domain"
	"kairos/fitness-server/internal/pubsub"
	"kairos/fitness-server/internal/stream"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// streamRecorder is a concurrency-safe http.ResponseWriter for a handler
// that keeps writing for the lifetime of the request.
type streamRecorder struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	header http.Header
	status int
}

func newStreamRecorder() *streamRecorder {
	return &streamRecorder{header: make(http.Header)}
}

func (r *streamRecorder) Header() http.Header { return r.header }

func (r *streamRecorder) WriteHeader(code int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status == 0 {
		r.status = code
	}
}

func (r *streamRecorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.Write(p)
}

func (r *streamRecorder) Flush() {}

func (r *streamRecorder) body() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.String()
}

func waitForBody(t *testing.T, rec *streamRecorder, substr string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(rec.body(), substr) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %q in stream body:\n%s", substr, rec.body())
}

func newStreamRouter(h *StreamHandler, userID primitive.ObjectID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(ContextUserIDKey, userID.Hex())
		c.Set(ContextUserRoleKey, domain.RoleClient)
		c.Next()
	})
	router.GET("/notifications/stream", h.Stream)
	return router
}

// --- Broker stub with a subscription the test can close ---

type stubStreamSubscription struct {
	events chan []byte
	once   sync.Once
}

func (s *stubStreamSubscription) Events() <-chan []byte { return s.events }

func (s *stubStreamSubscription) Close() error {
	s.once.Do(func() { close(s.events) })
	return nil
}

type stubStreamBroker struct {
	sub *stubStreamSubscription
}

func (b *stubStreamBroker) Publish(context.Context, string, []byte) error { return nil }

func (b *stubStreamBroker) Subscribe(context.Context, string) (pubsub.Subscription, error) {
	return b.sub, nil
}

// --- Tests ---

func TestStreamForwardsEventsInPublishOrder(t *testing.T) {
	broker := pubsub.NewMemoryBroker()
	registry := stream.NewRegistry()
	userID := primitive.NewObjectID()
	h := NewStreamHandler(registry, broker, time.Minute, zap.NewNop())
	router := newStreamRouter(h, userID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/notifications/stream", nil).WithContext(ctx)
	rec := newStreamRecorder()

	done := make(chan struct{})
	go func() {
		router.ServeHTTP(rec, req)
		close(done)
	}()

	// The connected control event is written after the broker subscription
	// is in place, so publishing from here on cannot race the subscribe.
	waitForBody(t, rec, "event:connected")

	channel := pubsub.UserChannel(userID.Hex())
	require.NoError(t, broker.Publish(context.Background(), channel, []byte(`{"id":"first"}`)))
	waitForBody(t, rec, "first")
	require.NoError(t, broker.Publish(context.Background(), channel, []byte(`{"id":"second"}`)))
	waitForBody(t, rec, "second")

	// Client disconnect ends the handler and drains the registry.
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not return after client disconnect")
	}

	body := rec.body()
	require.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	require.Less(t, strings.Index(body, "first"), strings.Index(body, "second"))
	require.Zero(t, registry.Total())
}

func TestStreamKeepAliveAndBrokerCloseTeardown(t *testing.T) {
	sub := &stubStreamSubscription{events: make(chan []byte, 1)}
	registry := stream.NewRegistry()
	userID := primitive.NewObjectID()
	h := NewStreamHandler(registry, &stubStreamBroker{sub: sub}, 20*time.Millisecond, zap.NewNop())
	router := newStreamRouter(h, userID)

	req := httptest.NewRequest(http.MethodGet, "/notifications/stream", nil)
	rec := newStreamRecorder()

	done := make(chan struct{})
	go func() {
		router.ServeHTTP(rec, req)
		close(done)
	}()

	waitForBody(t, rec, "event:connected")
	require.Equal(t, 1, registry.Count(userID.Hex()))

	// Keep-alive frames flow while the stream is idle.
	waitForBody(t, rec, "keep-alive")

	// Broker-side close ends the stream; the handler's own deferred Close
	// then overlaps with it harmlessly.
	require.NoError(t, sub.Close())
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not return after the subscription closed")
	}
	require.Zero(t, registry.Total())
}
