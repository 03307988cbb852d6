package mongo

import (
	"context"
	"errors"
	"time"

	"alcyxob/workout-timer/internal/domain"
	"alcyxob/workout-timer/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const workoutLogCollectionName = "workout_logs"

// mongoWorkoutLogRepository implements repository.WorkoutLogRepository
type mongoWorkoutLogRepository struct {
	collection *mongo.Collection
}

func NewMongoWorkoutLogRepository(db *mongo.Database) repository.WorkoutLogRepository {
	return &mongoWorkoutLogRepository{
		collection: db.Collection(workoutLogCollectionName),
	}
}

func (r *mongoWorkoutLogRepository) Create(ctx context.Context, log *domain.WorkoutLog) (primitive.ObjectID, error) {
	if log.UserID == primitive.NilObjectID || log.ProgramID == primitive.NilObjectID || log.Date == "" {
		return primitive.NilObjectID, errors.New("workout log requires userId, programId and date")
	}
	log.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	log.CreatedAt = now
	log.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, log)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, repository.ErrConflict
		}
		return primitive.NilObjectID, err
	}
	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted workout log ID")
	}
	return insertedID, nil
}

func (r *mongoWorkoutLogRepository) GetByID(ctx context.Context, userID, id primitive.ObjectID) (*domain.WorkoutLog, error) {
	return r.findOne(ctx, bson.M{"_id": id, "userId": userID})
}

func (r *mongoWorkoutLogRepository) FindByProgramAndDate(ctx context.Context, userID, programID primitive.ObjectID, date string) (*domain.WorkoutLog, error) {
	return r.findOne(ctx, bson.M{"userId": userID, "programId": programID, "date": date})
}

func (r *mongoWorkoutLogRepository) findOne(ctx context.Context, filter bson.M) (*domain.WorkoutLog, error) {
	var log domain.WorkoutLog
	err := r.collection.FindOne(ctx, filter).Decode(&log)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &log, nil
}

// ListByProgramAndRange relies on YYYY-MM-DD dates sorting lexically.
func (r *mongoWorkoutLogRepository) ListByProgramAndRange(ctx context.Context, userID, programID primitive.ObjectID, from, to string) ([]domain.WorkoutLog, error) {
	logs := []domain.WorkoutLog{}
	filter := bson.M{
		"userId":    userID,
		"programId": programID,
		"date":      bson.M{"$gte": from, "$lte": to},
	}
	findOptions := options.Find().SetSort(bson.D{{Key: "date", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}

func (r *mongoWorkoutLogRepository) UpdateTimerSeconds(ctx context.Context, userID, id primitive.ObjectID, seconds int64) error {
	return r.update(ctx, userID, id, bson.M{"timerSeconds": seconds})
}

func (r *mongoWorkoutLogRepository) SetArchiveKey(ctx context.Context, userID, id primitive.ObjectID, key string) error {
	return r.update(ctx, userID, id, bson.M{"archiveKey": key})
}

// MarkComplete sets the completion flag and returns the updated log.
// Completing an already completed log keeps the original completion time.
func (r *mongoWorkoutLogRepository) MarkComplete(ctx context.Context, userID, id primitive.ObjectID) (*domain.WorkoutLog, error) {
	now := time.Now().UTC()
	filter := bson.M{"_id": id, "userId": userID}
	update := bson.A{
		bson.M{"$set": bson.M{
			"completed":   true,
			"completedAt": bson.M{"$ifNull": bson.A{"$completedAt", now}},
			"updatedAt":   now,
		}},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var log domain.WorkoutLog
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&log)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &log, nil
}

func (r *mongoWorkoutLogRepository) update(ctx context.Context, userID, id primitive.ObjectID, set bson.M) error {
	set["updatedAt"] = time.Now().UTC()
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id, "userId": userID}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsureWorkoutLogIndexes creates necessary indexes. Call during startup.
func EnsureWorkoutLogIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			// one log per user, program and day
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "programId", Value: 1}, {Key: "date", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}

// EnsureIndexes creates the indexes of every collection used by the service.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	if err := EnsureProgramIndexes(ctx, db.Collection(programCollectionName)); err != nil {
		return err
	}
	return EnsureWorkoutLogIndexes(ctx, db.Collection(workoutLogCollectionName))
}
