package service

import (
	"context"
	"errors"

	"kairos/fitness-server/internal/domain"
	"kairos/fitness-server/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Error Definitions ---
var (
	ErrUserNotFound          = errors.New("user not found")
	ErrNotATrainer           = errors.New("user found but is not a trainer")
	ErrNotAClient            = errors.New("user found but is not a client")
	ErrClientAlreadyAssigned = errors.New("client already assigned to a trainer")
	ErrTrainerAtCapacity     = errors.New("trainer at capacity")
	ErrTrainerNotAccepting   = errors.New("trainer is not accepting clients")
)

// --- Service Interface ---

// AssignmentService maintains the client-trainer relationship with
// capacity and uniqueness guarantees. It never dispatches notifications
// itself; that is the caller's decision.
type AssignmentService interface {
	// RequestAssignment creates an active assignment between the client and
	// the trainer. Client-initiated requests activate immediately.
	RequestAssignment(ctx context.Context, clientID, trainerID primitive.ObjectID, notes string) (*domain.ClientTrainer, error)
	// GetTrainerClients returns the trainer's active assignments enriched
	// with each client's profile snapshot.
	GetTrainerClients(ctx context.Context, trainerID primitive.ObjectID) ([]domain.TrainerClient, error)
	// GetClientTrainer returns the client's single active assignment with
	// the trainer's display data, or (nil, nil) when unassigned.
	GetClientTrainer(ctx context.Context, clientID primitive.ObjectID) (*domain.ClientTrainer, error)
	// RemoveAssignment soft-closes the client's active assignment, freeing
	// the trainer's roster slot. Removing when nothing is active is a no-op
	// success.
	RemoveAssignment(ctx context.Context, clientID primitive.ObjectID) error
	// UpdateTrainerSettings adjusts a trainer's capacity and accepting flag.
	UpdateTrainerSettings(ctx context.Context, trainerID primitive.ObjectID, capacity int, accepting bool) error
}

// --- Service Implementation ---

type assignmentService struct {
	userRepo       repository.UserRepository
	assignmentRepo repository.AssignmentRepository
}

// NewAssignmentService creates a new instance of assignmentService.
func NewAssignmentService(userRepo repository.UserRepository, assignmentRepo repository.AssignmentRepository) AssignmentService {
	return &assignmentService{
		userRepo:       userRepo,
		assignmentRepo: assignmentRepo,
	}
}

// RequestAssignment validates the business rules in order — existing
// assignment first, then trainer capacity — and delegates the actual write
// to the repository's transactional conditional write, which re-validates
// both rules atomically. The pre-checks exist only to return precise errors
// on the common path; the transaction is what makes the invariants hold
// under concurrency.
func (s *assignmentService) RequestAssignment(ctx context.Context, clientID, trainerID primitive.ObjectID, notes string) (*domain.ClientTrainer, error) {
	if clientID == primitive.NilObjectID || trainerID == primitive.NilObjectID {
		return nil, errors.New("client ID and trainer ID are required")
	}

	client, err := s.userRepo.GetByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if !client.IsClient() {
		return nil, ErrNotAClient
	}

	trainer, err := s.userRepo.GetByID(ctx, trainerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if !trainer.IsTrainer() {
		return nil, ErrNotATrainer
	}

	// (a) client must not already hold an active assignment to a different
	// trainer. Re-requesting the same trainer returns the existing record.
	existing, err := s.assignmentRepo.GetActiveByClient(ctx, clientID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		if existing.TrainerID == trainerID {
			return clientTrainerView(existing, trainer), nil
		}
		return nil, ErrClientAlreadyAssigned
	}

	// (b) trainer must be accepting and below capacity. The repository
	// re-validates this inside the transaction; the check here only picks
	// the more precise error message.
	if !trainer.AcceptingClients {
		return nil, ErrTrainerNotAccepting
	}
	if trainer.ActiveClients >= trainer.Capacity {
		return nil, ErrTrainerAtCapacity
	}

	assignment, err := s.assignmentRepo.Activate(ctx, clientID, trainerID, notes)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrCapacity):
			return nil, ErrTrainerAtCapacity
		case errors.Is(err, repository.ErrConflict):
			return nil, ErrClientAlreadyAssigned
		}
		return nil, err
	}

	return clientTrainerView(assignment, trainer), nil
}

// GetTrainerClients retrieves the trainer's roster with client profile
// snapshots. Pure read, no side effects.
func (s *assignmentService) GetTrainerClients(ctx context.Context, trainerID primitive.ObjectID) ([]domain.TrainerClient, error) {
	if trainerID == primitive.NilObjectID {
		return nil, errors.New("trainer ID is required")
	}

	assignments, err := s.assignmentRepo.GetActiveByTrainer(ctx, trainerID)
	if err != nil {
		return nil, err
	}
	if len(assignments) == 0 {
		return []domain.TrainerClient{}, nil
	}

	clientIDs := make([]primitive.ObjectID, 0, len(assignments))
	for _, a := range assignments {
		clientIDs = append(clientIDs, a.ClientID)
	}
	clients, err := s.userRepo.GetByIDs(ctx, clientIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[primitive.ObjectID]*domain.User, len(clients))
	for i := range clients {
		byID[clients[i].ID] = &clients[i]
	}

	roster := make([]domain.TrainerClient, 0, len(assignments))
	for _, a := range assignments {
		tc := domain.TrainerClient{
			Assignment: a,
			ClientID:   a.ClientID.Hex(),
		}
		if c, ok := byID[a.ClientID]; ok {
			tc.ClientName = c.Name
			tc.Profile = domain.ProfileOf(c)
		}
		roster = append(roster, tc)
	}
	return roster, nil
}

// GetClientTrainer retrieves the client's active assignment, or nil when
// the client is unassigned. Pure read.
func (s *assignmentService) GetClientTrainer(ctx context.Context, clientID primitive.ObjectID) (*domain.ClientTrainer, error) {
	if clientID == primitive.NilObjectID {
		return nil, errors.New("client ID is required")
	}

	assignment, err := s.assignmentRepo.GetActiveByClient(ctx, clientID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	trainer, err := s.userRepo.GetByID(ctx, assignment.TrainerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Dangling assignment; still return the relationship.
			return clientTrainerView(assignment, nil), nil
		}
		return nil, err
	}
	return clientTrainerView(assignment, trainer), nil
}

// RemoveAssignment soft-closes the client's active assignment. Idempotent:
// a second call finds nothing active and succeeds.
func (s *assignmentService) RemoveAssignment(ctx context.Context, clientID primitive.ObjectID) error {
	if clientID == primitive.NilObjectID {
		return errors.New("client ID is required")
	}
	_, err := s.assignmentRepo.Close(ctx, clientID)
	return err
}

// UpdateTrainerSettings adjusts capacity and the accepting flag.
func (s *assignmentService) UpdateTrainerSettings(ctx context.Context, trainerID primitive.ObjectID, capacity int, accepting bool) error {
	if trainerID == primitive.NilObjectID {
		return errors.New("trainer ID is required")
	}
	if capacity < 0 {
		return errors.New("capacity must not be negative")
	}
	err := s.userRepo.UpdateTrainerSettings(ctx, trainerID, capacity, accepting)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrUserNotFound
	}
	return err
}

func clientTrainerView(a *domain.Assignment, trainer *domain.User) *domain.ClientTrainer {
	view := &domain.ClientTrainer{
		Assignment: *a,
		TrainerID:  a.TrainerID.Hex(),
	}
	if trainer != nil {
		view.TrainerName = trainer.Name
	}
	return view
}
