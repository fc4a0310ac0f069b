package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestNewNotificationValidatesPayloadShape(t *testing.T) {
	userID := primitive.NewObjectID()

	n, err := NewNotification(userID, NotificationAchievement, "PR!", "New squat PR",
		AchievementPayload{Metric: "squat_1rm", Value: "140kg"})
	require.NoError(t, err)
	require.Equal(t, NotificationAchievement, n.Type)
	require.False(t, n.Read)

	// Payload shape must match the declared type.
	_, err = NewNotification(userID, NotificationAchievement, "PR!", "New squat PR",
		WorkoutAssignmentPayload{WorkoutID: "w1", WorkoutName: "Day 1"})
	require.ErrorIs(t, err, ErrInvalidPayload)
}

func TestNewNotificationRejectsUnknownType(t *testing.T) {
	_, err := NewNotification(primitive.NewObjectID(), NotificationType("carrier_pigeon"), "t", "m", nil)
	require.Error(t, err)
}

func TestNewNotificationRequiresRecipientAndContent(t *testing.T) {
	_, err := NewNotification(primitive.NilObjectID, NotificationSystem, "t", "m", nil)
	require.Error(t, err)

	_, err = NewNotification(primitive.NewObjectID(), NotificationSystem, "", "m", nil)
	require.Error(t, err)

	_, err = NewNotification(primitive.NewObjectID(), NotificationSystem, "t", "", nil)
	require.Error(t, err)
}

func TestEventFromNotification(t *testing.T) {
	userID := primitive.NewObjectID()
	n, err := NewNotification(userID, NotificationWorkoutAssignment, "New workout", "Leg day",
		WorkoutAssignmentPayload{WorkoutID: "w1", WorkoutName: "Leg day"})
	require.NoError(t, err)
	n.ID = primitive.NewObjectID()

	ev := EventFromNotification(n)
	require.Equal(t, n.ID.Hex(), ev.ID)
	require.Equal(t, n.Type, ev.Type)
	require.Equal(t, n.Title, ev.Title)
	require.Equal(t, n.Payload, ev.Payload)
}
