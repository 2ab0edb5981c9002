package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	meetingserrors "minidoodle/internal/meetings/errors"
	"minidoodle/pkg/config"
	"minidoodle/pkg/db"
	mongotx "minidoodle/pkg/db/mongo"
	"minidoodle/pkg/model"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Meetings"
)

type mongoMeetingRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  db.TransactionManager
}

func NewMongoMeetingRepository(cfg *config.Config) MeetingRepository {
	database := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoMeetingRepository{
		cfg:        cfg,
		collection: database.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

// Create relies on the unique slot_id index to reject a second meeting.
func (r *mongoMeetingRepository) Create(ctx context.Context, meeting *model.Meeting) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if meeting.ID == "" {
		meeting.ID = uuid.NewString()
	}
	if meeting.ParticipantIDs == nil {
		meeting.ParticipantIDs = []string{}
	}
	meeting.CreatedAt = now()
	meeting.UpdatedAt = meeting.CreatedAt

	if _, err := r.collection.InsertOne(ctx, meeting); err != nil {
		if mongotx.IsDuplicateKey(err) {
			return meetingserrors.ErrSlotAlreadyBooked
		}
		return fmt.Errorf("failed to create meeting: %w", err)
	}
	return nil
}

func (r *mongoMeetingRepository) FindByID(ctx context.Context, id string) (*model.Meeting, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *mongoMeetingRepository) FindBySlotID(ctx context.Context, slotID string) (*model.Meeting, error) {
	return r.findOne(ctx, bson.M{"slot_id": slotID})
}

func (r *mongoMeetingRepository) ListByParticipant(ctx context.Context, userID string, from, to time.Time) ([]*model.Meeting, error) {
	return r.list(ctx, bson.M{"participant_ids": userID}, from, to)
}

func (r *mongoMeetingRepository) ListByOwner(ctx context.Context, ownerID string, from, to time.Time) ([]*model.Meeting, error) {
	return r.list(ctx, bson.M{"owner_id": ownerID}, from, to)
}

func (r *mongoMeetingRepository) Update(ctx context.Context, meeting *model.Meeting) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	var updated model.Meeting
	err := r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": meeting.ID},
		bson.M{"$set": bson.M{
			"title":           meeting.Title,
			"description":     meeting.Description,
			"participant_ids": meeting.ParticipantIDs,
			"updated_at":      now(),
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return meetingserrors.ErrMeetingNotFound
		}
		return fmt.Errorf("failed to update meeting: %w", err)
	}

	*meeting = updated
	return nil
}

func (r *mongoMeetingRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete meeting: %w", err)
	}
	if result.DeletedCount == 0 {
		return meetingserrors.ErrMeetingNotFound
	}
	return nil
}

func (r *mongoMeetingRepository) ExecuteTransaction(ctx context.Context, fn db.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}

func (r *mongoMeetingRepository) findOne(ctx context.Context, filter bson.M) (*model.Meeting, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var meeting model.Meeting
	if err := r.collection.FindOne(ctx, filter).Decode(&meeting); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, meetingserrors.ErrMeetingNotFound
		}
		return nil, fmt.Errorf("failed to find meeting: %w", err)
	}
	return &meeting, nil
}

func (r *mongoMeetingRepository) list(ctx context.Context, filter bson.M, from, to time.Time) ([]*model.Meeting, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter["start_time"] = bson.M{"$gte": from}
	filter["end_time"] = bson.M{"$lte": to}

	opts := options.Find().SetSort(bson.D{{Key: "start_time", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find meetings: %w", err)
	}
	defer cursor.Close(ctx)

	meetings := []*model.Meeting{}
	if err = cursor.All(ctx, &meetings); err != nil {
		return nil, fmt.Errorf("failed to decode meetings: %w", err)
	}
	return meetings, nil
}
