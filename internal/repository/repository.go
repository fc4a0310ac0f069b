package repository

import (
	"context"

	"kairos/fitness-server/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Error constants for repository layer
var (
	ErrNotFound = RepositoryError("not found")
	// ErrConflict is returned when a write collides with the partial unique
	// index guaranteeing one active assignment per client.
	ErrConflict = RepositoryError("conflicting active assignment")
	// ErrCapacity is returned when the conditional roster write matches no
	// trainer document, i.e. the trainer is full or not accepting clients.
	ErrCapacity = RepositoryError("trainer roster full")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// UserRepository defines the interface for interacting with user data.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error)
	GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]domain.User, error)
	UpdateTrainerSettings(ctx context.Context, trainerID primitive.ObjectID, capacity int, accepting bool) error
}

// AssignmentRepository defines the interface for the durable client-trainer
// relationship. Activate and Close are the only mutation paths; both keep
// the trainer's active-client counter in step with the assignment rows
// inside a single transaction.
type AssignmentRepository interface {
	// Activate creates an active assignment for the client, incrementing the
	// trainer's roster counter only while it is below capacity. Returns
	// ErrCapacity when the trainer is full or not accepting, ErrConflict when
	// the client already holds an active assignment.
	Activate(ctx context.Context, clientID, trainerID primitive.ObjectID, notes string) (*domain.Assignment, error)
	// Close soft-closes the client's active assignment and releases the
	// trainer's roster slot. Returns (nil, nil) when there is nothing to
	// close; removal is idempotent by design.
	Close(ctx context.Context, clientID primitive.ObjectID) (*domain.Assignment, error)
	GetActiveByClient(ctx context.Context, clientID primitive.ObjectID) (*domain.Assignment, error)
	GetActiveByTrainer(ctx context.Context, trainerID primitive.ObjectID) ([]domain.Assignment, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Assignment, error)
}

// NotificationRepository defines the interface for persisted notifications.
type NotificationRepository interface {
	Create(ctx context.Context, notification *domain.Notification) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Notification, error)
	GetByUser(ctx context.Context, userID primitive.ObjectID, unreadOnly bool) ([]domain.Notification, error)
	// MarkRead flips the read flag for the recipient's notification. The flip
	// is monotonic; marking an already-read notification is a no-op success.
	MarkRead(ctx context.Context, id, userID primitive.ObjectID) error
	MarkAllRead(ctx context.Context, userID primitive.ObjectID) (int64, error)
	CountUnread(ctx context.Context, userID primitive.ObjectID) (int64, error)
}
