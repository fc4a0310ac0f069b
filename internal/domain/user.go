package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role type to distinguish between user roles
type Role string

// Define constants for roles
const (
	RoleTrainer Role = "trainer"
	RoleClient  Role = "client"
	RoleAdmin   Role = "admin"
)

// DefaultTrainerCapacity is applied when a trainer registers without an
// explicit roster limit.
const DefaultTrainerCapacity = 20

// User represents a user in the system (Trainer, Client or Admin).
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string             `bson:"name" json:"name"`
	Email        string             `bson:"email" json:"email"`    // Should be unique
	PasswordHash string             `bson:"passwordHash" json:"-"` // Never expose this via JSON
	Role         Role               `bson:"role" json:"role"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`

	// --- Trainer-specific ---
	// Capacity is the maximum number of simultaneously active clients.
	// ActiveClients is a maintained counter; it is only ever mutated through
	// the assignment repository's conditional writes so it cannot drift past
	// Capacity under concurrent requests.
	Capacity         int  `bson:"capacity,omitempty" json:"capacity,omitempty"`
	AcceptingClients bool `bson:"acceptingClients,omitempty" json:"acceptingClients,omitempty"`
	ActiveClients    int  `bson:"activeClients,omitempty" json:"activeClients,omitempty"`

	// --- Client-specific profile snapshot ---
	Age           int      `bson:"age,omitempty" json:"age,omitempty"`
	Goals         []string `bson:"goals,omitempty" json:"goals,omitempty"`
	ActivityLevel string   `bson:"activityLevel,omitempty" json:"activityLevel,omitempty"` // e.g. "sedentary", "moderate", "active"
}

func (u *User) IsTrainer() bool {
	return u.Role == RoleTrainer
}

func (u *User) IsClient() bool {
	return u.Role == RoleClient
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Profile is the denormalized client snapshot attached to a trainer's
// roster view.
type Profile struct {
	Age           int      `json:"age,omitempty"`
	Goals         []string `json:"goals,omitempty"`
	ActivityLevel string   `json:"activityLevel,omitempty"`
}

// ProfileOf extracts the client-facing profile snapshot from a user record.
func ProfileOf(u *User) Profile {
	return Profile{
		Age:           u.Age,
		Goals:         u.Goals,
		ActivityLevel: u.ActivityLevel,
	}
}
