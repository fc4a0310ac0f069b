package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kairos/fitness-server/internal/domain"
	"kairos/fitness-server/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const assignmentCollectionName = "assignments"

// mongoAssignmentRepository implements repository.AssignmentRepository
type mongoAssignmentRepository struct {
	collection *mongo.Collection
	users      *mongo.Collection
}

// NewMongoAssignmentRepository creates a new Assignment repository backed by MongoDB.
func NewMongoAssignmentRepository(db *mongo.Database) repository.AssignmentRepository {
	return &mongoAssignmentRepository{
		collection: db.Collection(assignmentCollectionName),
		users:      db.Collection(userCollectionName),
	}
}

// Activate creates an active assignment inside a transaction. The trainer's
// roster counter is bumped with a conditional write first, so two concurrent
// requests can never jointly over-fill a roster: the loser of the race
// matches no trainer document and fails with ErrCapacity. The partial unique
// index on active assignments (see EnsureAssignmentIndexes) closes the
// one-active-assignment-per-client race the same way.
func (r *mongoAssignmentRepository) Activate(ctx context.Context, clientID, trainerID primitive.ObjectID, notes string) (*domain.Assignment, error) {
	if clientID == primitive.NilObjectID || trainerID == primitive.NilObjectID {
		return nil, errors.New("assignment requires clientId and trainerId")
	}

	now := time.Now().UTC()
	assignment := &domain.Assignment{
		ID:        primitive.NewObjectID(),
		ClientID:  clientID,
		TrainerID: trainerID,
		Status:    domain.StatusActive,
		Notes:     notes,
		StartedAt: now,
		CreatedAt: now,
		UpdatedAt: now,
	}

	sess, err := r.collection.Database().Client().StartSession()
	if err != nil {
		return nil, fmt.Errorf("could not start mongo session: %w", err)
	}
	defer sess.EndSession(ctx)

	txnFn := func(sc mongo.SessionContext) error {
		trainerFilter := bson.M{
			"_id":              trainerID,
			"role":             domain.RoleTrainer,
			"acceptingClients": true,
			"$expr":            bson.M{"$lt": bson.A{"$activeClients", "$capacity"}},
		}
		trainerUpdate := bson.M{
			"$inc": bson.M{"activeClients": 1},
			"$set": bson.M{"updatedAt": now},
		}
		res, err := r.users.UpdateOne(sc, trainerFilter, trainerUpdate)
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return repository.ErrCapacity
		}

		if _, err := r.collection.InsertOne(sc, assignment); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return repository.ErrConflict
			}
			return err
		}
		return nil
	}

	err = mongo.WithSession(ctx, sess, func(sc mongo.SessionContext) error {
		if err := sc.StartTransaction(); err != nil {
			return err
		}
		if err := txnFn(sc); err != nil {
			_ = sc.AbortTransaction(sc)
			return err
		}
		return sc.CommitTransaction(sc)
	})
	if err != nil {
		return nil, err
	}

	return assignment, nil
}

// Close soft-closes the client's active assignment and releases the roster
// slot. Closing when no active assignment exists is a no-op, not an error.
func (r *mongoAssignmentRepository) Close(ctx context.Context, clientID primitive.ObjectID) (*domain.Assignment, error) {
	if clientID == primitive.NilObjectID {
		return nil, errors.New("client ID is required")
	}

	sess, err := r.collection.Database().Client().StartSession()
	if err != nil {
		return nil, fmt.Errorf("could not start mongo session: %w", err)
	}
	defer sess.EndSession(ctx)

	now := time.Now().UTC()
	var closed *domain.Assignment

	txnFn := func(sc mongo.SessionContext) error {
		filter := bson.M{"clientId": clientID, "status": domain.StatusActive}
		update := bson.M{
			"$set": bson.M{
				"status":    domain.StatusRemoved,
				"endedAt":   now,
				"updatedAt": now,
			},
		}
		opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

		var assignment domain.Assignment
		err := r.collection.FindOneAndUpdate(sc, filter, update, opts).Decode(&assignment)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				// Nothing active; leave closed nil and commit.
				return nil
			}
			return err
		}
		closed = &assignment

		// The counter never goes below zero; the guard protects against a
		// roster counter that was reset out of band.
		trainerFilter := bson.M{
			"_id":           assignment.TrainerID,
			"activeClients": bson.M{"$gt": 0},
		}
		trainerUpdate := bson.M{
			"$inc": bson.M{"activeClients": -1},
			"$set": bson.M{"updatedAt": now},
		}
		_, err = r.users.UpdateOne(sc, trainerFilter, trainerUpdate)
		return err
	}

	err = mongo.WithSession(ctx, sess, func(sc mongo.SessionContext) error {
		if err := sc.StartTransaction(); err != nil {
			return err
		}
		if err := txnFn(sc); err != nil {
			_ = sc.AbortTransaction(sc)
			return err
		}
		return sc.CommitTransaction(sc)
	})
	if err != nil {
		return nil, err
	}

	return closed, nil
}

// GetActiveByClient retrieves the client's single active assignment.
func (r *mongoAssignmentRepository) GetActiveByClient(ctx context.Context, clientID primitive.ObjectID) (*domain.Assignment, error) {
	var assignment domain.Assignment
	filter := bson.M{"clientId": clientID, "status": domain.StatusActive}

	err := r.collection.FindOne(ctx, filter).Decode(&assignment)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &assignment, nil
}

// GetActiveByTrainer retrieves all active assignments for a trainer,
// newest first.
func (r *mongoAssignmentRepository) GetActiveByTrainer(ctx context.Context, trainerID primitive.ObjectID) ([]domain.Assignment, error) {
	var assignments []domain.Assignment
	filter := bson.M{"trainerId": trainerID, "status": domain.StatusActive}
	findOptions := options.Find().SetSort(bson.D{{Key: "startedAt", Value: -1}})

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &assignments); err != nil {
		return nil, err
	}
	if err = cursor.Err(); err != nil {
		return nil, err
	}

	return assignments, nil
}

// GetByID retrieves an assignment by its ID.
func (r *mongoAssignmentRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Assignment, error) {
	var assignment domain.Assignment
	filter := bson.M{"_id": id}

	err := r.collection.FindOne(ctx, filter).Decode(&assignment)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &assignment, nil
}

// EnsureAssignmentIndexes creates necessary indexes for the assignments
// collection. The partial unique index on clientId over active documents is
// load-bearing: it is what makes the one-active-assignment-per-client
// invariant hold under concurrent writes.
func EnsureAssignmentIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "clientId", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": domain.StatusActive}),
		},
		{
			Keys:    bson.D{{Key: "trainerId", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "clientId", Value: 1}, {Key: "startedAt", Value: -1}},
			Options: options.Index(),
		},
	}

	_, _ = collection.Indexes().CreateMany(ctx, indexes)
}
