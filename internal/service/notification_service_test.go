package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"kairos/fitness-server/internal/domain"
	"kairos/fitness-server/internal/pubsub"
	"kairos/fitness-server/internal/repository"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// --- In-memory fake for the notification repository ---

type fakeNotificationRepo struct {
	mu            sync.Mutex
	notifications map[primitive.ObjectID]*domain.Notification
	failCreate    bool
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{notifications: make(map[primitive.ObjectID]*domain.Notification)}
}

func (r *fakeNotificationRepo) Create(_ context.Context, n *domain.Notification) (primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failCreate {
		return primitive.NilObjectID, errors.New("datastore unavailable")
	}
	n.ID = primitive.NewObjectID()
	n.Read = false
	n.CreatedAt = time.Now().UTC()
	cp := *n
	r.notifications[n.ID] = &cp
	return n.ID, nil
}

func (r *fakeNotificationRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notifications[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *n
	return &cp, nil
}

func (r *fakeNotificationRepo) GetByUser(_ context.Context, userID primitive.ObjectID, unreadOnly bool) ([]domain.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Notification
	for _, n := range r.notifications {
		if n.UserID != userID {
			continue
		}
		if unreadOnly && n.Read {
			continue
		}
		out = append(out, *n)
	}
	return out, nil
}

func (r *fakeNotificationRepo) MarkRead(_ context.Context, id, userID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notifications[id]
	if !ok || n.UserID != userID {
		return repository.ErrNotFound
	}
	n.Read = true
	return nil
}

func (r *fakeNotificationRepo) MarkAllRead(_ context.Context, userID primitive.ObjectID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var updated int64
	for _, n := range r.notifications {
		if n.UserID == userID && !n.Read {
			n.Read = true
			updated++
		}
	}
	return updated, nil
}

func (r *fakeNotificationRepo) CountUnread(_ context.Context, userID primitive.ObjectID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, n := range r.notifications {
		if n.UserID == userID && !n.Read {
			count++
		}
	}
	return count, nil
}

// failingBroker always fails Publish; used to prove dispatch swallows
// broker outages after the row is durable.
type failingBroker struct{}

func (failingBroker) Publish(context.Context, string, []byte) error {
	return errors.New("broker unavailable")
}

func (failingBroker) Subscribe(context.Context, string) (pubsub.Subscription, error) {
	return nil, errors.New("broker unavailable")
}

// --- Tests ---

func TestNotifyPersistsAndPublishes(t *testing.T) {
	repo := newFakeNotificationRepo()
	broker := pubsub.NewMemoryBroker()
	svc := NewNotificationService(repo, broker, zap.NewNop())
	userID := primitive.NewObjectID()

	sub, err := broker.Subscribe(context.Background(), pubsub.UserChannel(userID.Hex()))
	require.NoError(t, err)
	defer sub.Close()

	id, err := svc.NotifyAchievement(context.Background(), userID, "PR!", "New squat PR",
		domain.AchievementPayload{Metric: "squat_1rm", Value: "140kg"})
	require.NoError(t, err)
	require.NotEqual(t, primitive.NilObjectID, id)

	// Durable record exists.
	stored, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.False(t, stored.Read)

	// Live event arrived with the persisted identity.
	select {
	case msg := <-sub.Events():
		var ev struct {
			ID    string                  `json:"id"`
			Type  domain.NotificationType `json:"type"`
			Title string                  `json:"title"`
		}
		require.NoError(t, json.Unmarshal(msg, &ev))
		require.Equal(t, id.Hex(), ev.ID)
		require.Equal(t, domain.NotificationAchievement, ev.Type)
		require.Equal(t, "PR!", ev.Title)
	case <-time.After(time.Second):
		t.Fatal("expected a published event")
	}
}

func TestNotifyPublishFailureIsSwallowed(t *testing.T) {
	repo := newFakeNotificationRepo()
	svc := NewNotificationService(repo, failingBroker{}, zap.NewNop())
	userID := primitive.NewObjectID()

	id, err := svc.Notify(context.Background(), userID, domain.NotificationSystem,
		"Maintenance", "Scheduled downtime tonight", domain.SystemPayload{})
	require.NoError(t, err)

	// The record is durable despite the failed publish; the pull API is the
	// fallback delivery path.
	notifications, err := svc.GetNotifications(context.Background(), userID, true)
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	require.Equal(t, id, notifications[0].ID)
	require.False(t, notifications[0].Read)
}

func TestNotifyPersistenceFailurePropagates(t *testing.T) {
	repo := newFakeNotificationRepo()
	repo.failCreate = true
	svc := NewNotificationService(repo, pubsub.NewMemoryBroker(), zap.NewNop())

	_, err := svc.Notify(context.Background(), primitive.NewObjectID(), domain.NotificationSystem,
		"t", "m", domain.SystemPayload{})
	require.Error(t, err)
}

func TestNotifyRejectsMismatchedPayload(t *testing.T) {
	repo := newFakeNotificationRepo()
	svc := NewNotificationService(repo, pubsub.NewMemoryBroker(), zap.NewNop())

	_, err := svc.Notify(context.Background(), primitive.NewObjectID(), domain.NotificationReminder,
		"t", "m", domain.AchievementPayload{Metric: "x", Value: "y"})
	require.ErrorIs(t, err, domain.ErrInvalidPayload)
}

func TestMarkReadIsMonotonicAndIdempotent(t *testing.T) {
	repo := newFakeNotificationRepo()
	svc := NewNotificationService(repo, pubsub.NewMemoryBroker(), zap.NewNop())
	userID := primitive.NewObjectID()

	id, err := svc.Notify(context.Background(), userID, domain.NotificationSystem,
		"t", "m", domain.SystemPayload{})
	require.NoError(t, err)

	require.NoError(t, svc.MarkRead(context.Background(), userID, id))
	count, err := svc.CountUnread(context.Background(), userID)
	require.NoError(t, err)
	require.Zero(t, count)

	// Marking again is a no-op success.
	require.NoError(t, svc.MarkRead(context.Background(), userID, id))

	// Another user cannot mark someone else's notification.
	err = svc.MarkRead(context.Background(), primitive.NewObjectID(), id)
	require.ErrorIs(t, err, ErrNotificationNotFound)
}

func TestMarkAllRead(t *testing.T) {
	repo := newFakeNotificationRepo()
	svc := NewNotificationService(repo, pubsub.NewMemoryBroker(), zap.NewNop())
	userID := primitive.NewObjectID()

	for i := 0; i < 3; i++ {
		_, err := svc.Notify(context.Background(), userID, domain.NotificationSystem,
			"t", "m", domain.SystemPayload{})
		require.NoError(t, err)
	}

	updated, err := svc.MarkAllRead(context.Background(), userID)
	require.NoError(t, err)
	require.EqualValues(t, 3, updated)

	// Second sweep finds nothing to flip.
	updated, err = svc.MarkAllRead(context.Background(), userID)
	require.NoError(t, err)
	require.Zero(t, updated)
}

func TestOfflineRecipientSeesNotificationViaPull(t *testing.T) {
	repo := newFakeNotificationRepo()
	broker := pubsub.NewMemoryBroker()
	svc := NewNotificationService(repo, broker, zap.NewNop())
	userID := primitive.NewObjectID()

	// No open delivery connections: publish goes nowhere.
	_, err := svc.Notify(context.Background(), userID, domain.NotificationAchievement,
		"PR!", "New squat PR", domain.AchievementPayload{Metric: "squat_1rm", Value: "140kg"})
	require.NoError(t, err)

	// The recipient connects later and pulls.
	notifications, err := svc.GetNotifications(context.Background(), userID, true)
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	require.False(t, notifications[0].Read)
}
