package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AssignmentStatus type for assignment lifecycle
type AssignmentStatus string

const (
	// StatusRequested exists for an explicit-acceptance policy; the current
	// flow activates client-initiated requests immediately.
	StatusRequested AssignmentStatus = "requested"
	StatusActive    AssignmentStatus = "active"
	StatusRemoved   AssignmentStatus = "removed"
)

// Assignment is the durable coaching relationship between a Client and a
// Trainer. A client holds at most one active assignment at a time; a
// trainer's number of active assignments never exceeds their capacity.
type Assignment struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ClientID  primitive.ObjectID `bson:"clientId" json:"clientId"`
	TrainerID primitive.ObjectID `bson:"trainerId" json:"trainerId"`
	Status    AssignmentStatus   `bson:"status" json:"status"`
	Notes     string             `bson:"notes,omitempty" json:"notes,omitempty"` // Free-form notes from the requesting side
	StartedAt time.Time          `bson:"startedAt" json:"startedAt"`
	EndedAt   *time.Time         `bson:"endedAt,omitempty" json:"endedAt,omitempty"` // Set when the assignment is soft-closed
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// TrainerClient pairs an active assignment with the client's profile
// snapshot for the trainer's roster view.
type TrainerClient struct {
	Assignment Assignment `json:"assignment"`
	ClientID   string     `json:"clientId"`
	ClientName string     `json:"clientName"`
	Profile    Profile    `json:"profile"`
}

// ClientTrainer pairs a client's active assignment with the trainer's
// display data.
type ClientTrainer struct {
	Assignment  Assignment `json:"assignment"`
	TrainerID   string     `json:"trainerId"`
	TrainerName string     `json:"trainerName"`
}
