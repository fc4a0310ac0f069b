package domain

import (
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NotificationType enumerates the closed set of notification kinds.
type NotificationType string

const (
	NotificationWorkoutAssignment   NotificationType = "workout_assignment"
	NotificationNutritionAssignment NotificationType = "nutrition_assignment"
	NotificationAchievement         NotificationType = "achievement"
	NotificationReminder            NotificationType = "reminder"
	NotificationSystem              NotificationType = "system"
)

var ErrInvalidPayload = errors.New("notification payload does not match notification type")

// Payload is the structured data attached to a notification. Each
// notification type has exactly one payload shape; free-form maps are not
// accepted so consumers never have to guess field presence.
type Payload interface {
	NotificationType() NotificationType
}

// WorkoutAssignmentPayload accompanies a workout_assignment notification.
type WorkoutAssignmentPayload struct {
	WorkoutID   string `bson:"workoutId" json:"workoutId"`
	WorkoutName string `bson:"workoutName" json:"workoutName"`
	TrainerName string `bson:"trainerName,omitempty" json:"trainerName,omitempty"`
}

func (WorkoutAssignmentPayload) NotificationType() NotificationType {
	return NotificationWorkoutAssignment
}

// NutritionAssignmentPayload accompanies a nutrition_assignment notification.
type NutritionAssignmentPayload struct {
	PlanID      string `bson:"planId" json:"planId"`
	PlanName    string `bson:"planName" json:"planName"`
	TrainerName string `bson:"trainerName,omitempty" json:"trainerName,omitempty"`
}

func (NutritionAssignmentPayload) NotificationType() NotificationType {
	return NotificationNutritionAssignment
}

// AchievementPayload accompanies an achievement notification.
type AchievementPayload struct {
	Metric string `bson:"metric" json:"metric"` // e.g. "squat_1rm"
	Value  string `bson:"value" json:"value"`
}

func (AchievementPayload) NotificationType() NotificationType {
	return NotificationAchievement
}

// ReminderPayload accompanies a reminder notification.
type ReminderPayload struct {
	DueAt time.Time `bson:"dueAt" json:"dueAt"`
}

func (ReminderPayload) NotificationType() NotificationType {
	return NotificationReminder
}

// SystemPayload accompanies a system notification. It carries no fields;
// the title and message are the whole content.
type SystemPayload struct{}

func (SystemPayload) NotificationType() NotificationType {
	return NotificationSystem
}

// Notification is a persisted, recipient-addressed record of a domain
// event. Immutable after creation except for the read flag, which
// transitions false to true exactly once.
type Notification struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID `bson:"userId" json:"userId"`
	Type      NotificationType   `bson:"type" json:"type"`
	Title     string             `bson:"title" json:"title"`
	Message   string             `bson:"message" json:"message"`
	Payload   Payload            `bson:"payload,omitempty" json:"payload,omitempty"`
	Read      bool               `bson:"read" json:"read"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

// NewNotification builds an unread notification, rejecting payloads whose
// concrete type does not match the declared notification type.
func NewNotification(userID primitive.ObjectID, nType NotificationType, title, message string, payload Payload) (*Notification, error) {
	if userID == primitive.NilObjectID {
		return nil, errors.New("notification requires a recipient")
	}
	if title == "" || message == "" {
		return nil, errors.New("notification requires a title and a message")
	}
	switch nType {
	case NotificationWorkoutAssignment, NotificationNutritionAssignment,
		NotificationAchievement, NotificationReminder, NotificationSystem:
	default:
		return nil, fmt.Errorf("unknown notification type %q", nType)
	}
	if payload != nil && payload.NotificationType() != nType {
		return nil, ErrInvalidPayload
	}
	return &Notification{
		UserID:  userID,
		Type:    nType,
		Title:   title,
		Message: message,
		Payload: payload,
	}, nil
}

// notificationDoc mirrors Notification with the payload kept raw so the
// concrete shape can be picked after the type field is known.
type notificationDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	UserID    primitive.ObjectID `bson:"userId"`
	Type      NotificationType   `bson:"type"`
	Title     string             `bson:"title"`
	Message   string             `bson:"message"`
	Payload   bson.Raw           `bson:"payload,omitempty"`
	Read      bool               `bson:"read"`
	CreatedAt time.Time          `bson:"createdAt"`
}

// UnmarshalBSON decodes the payload sub-document into the concrete shape
// dictated by the notification type. Marshalling needs no counterpart: the
// default encoder serialises the concrete value behind the interface.
func (n *Notification) UnmarshalBSON(data []byte) error {
	var doc notificationDoc
	if err := bson.Unmarshal(data, &doc); err != nil {
		return err
	}
	payload, err := decodePayload(doc.Type, doc.Payload)
	if err != nil {
		return err
	}
	*n = Notification{
		ID:        doc.ID,
		UserID:    doc.UserID,
		Type:      doc.Type,
		Title:     doc.Title,
		Message:   doc.Message,
		Payload:   payload,
		Read:      doc.Read,
		CreatedAt: doc.CreatedAt,
	}
	return nil
}

func decodePayload(nType NotificationType, raw bson.Raw) (Payload, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	switch nType {
	case NotificationWorkoutAssignment:
		var p WorkoutAssignmentPayload
		if err := bson.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case NotificationNutritionAssignment:
		var p NutritionAssignmentPayload
		if err := bson.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case NotificationAchievement:
		var p AchievementPayload
		if err := bson.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case NotificationReminder:
		var p ReminderPayload
		if err := bson.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case NotificationSystem:
		return SystemPayload{}, nil
	default:
		return nil, fmt.Errorf("unknown notification type %q", nType)
	}
}

// Event is the wire envelope published on a recipient's channel and
// forwarded verbatim to every open delivery connection.
type Event struct {
	ID        string           `json:"id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Payload   Payload          `json:"payload,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
}

// EventFromNotification projects a persisted notification onto the wire
// envelope.
func EventFromNotification(n *Notification) Event {
	return Event{
		ID:        n.ID.Hex(),
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		Payload:   n.Payload,
		CreatedAt: n.CreatedAt,
	}
}
