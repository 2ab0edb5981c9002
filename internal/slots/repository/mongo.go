package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	slotserrors "minidoodle/internal/slots/errors"
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
	CollectionName         = "Slots"
	CalendarCollectionName = "Calendars"
)

type mongoSlotRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	calendars  *mongo.Collection
	txManager  db.TransactionManager
}

func NewMongoSlotRepository(cfg *config.Config) SlotRepository {
	database := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoSlotRepository{
		cfg:        cfg,
		collection: database.Collection(CollectionName),
		calendars:  database.Collection(CalendarCollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

func (r *mongoSlotRepository) Create(ctx context.Context, slot *model.Slot) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	slot.Version = 1
	slot.CreatedAt = now()
	slot.UpdatedAt = slot.CreatedAt

	if _, err := r.collection.InsertOne(ctx, slot); err != nil {
		return fmt.Errorf("failed to create slot: %w", err)
	}
	return nil
}

func (r *mongoSlotRepository) FindByID(ctx context.Context, id string) (*model.Slot, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var slot model.Slot
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&slot)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, slotserrors.ErrSlotNotFound
		}
		return nil, fmt.Errorf("failed to find slot: %w", err)
	}
	return &slot, nil
}

// FindByIDForUpdate touches the document so that any other transaction
// writing the same slot hits a write conflict and is retried.
func (r *mongoSlotRepository) FindByIDForUpdate(ctx context.Context, id string) (*model.Slot, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	var slot model.Slot
	err := r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$currentDate": bson.M{"locked_at": true}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&slot)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, slotserrors.ErrSlotNotFound
		}
		return nil, fmt.Errorf("failed to lock slot: %w", err)
	}
	return &slot, nil
}

func (r *mongoSlotRepository) FindByCalendar(ctx context.Context, calendarID string, from, to time.Time, statuses ...model.SlotStatus) ([]*model.Slot, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"calendar_id": calendarID,
		"start_time":  bson.M{"$gte": from},
		"end_time":    bson.M{"$lte": to},
	}
	if len(statuses) > 0 {
		filter["status"] = bson.M{"$in": statuses}
	}

	opts := options.Find().SetSort(bson.D{{Key: "start_time", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find slots: %w", err)
	}
	defer cursor.Close(ctx)

	slots := []*model.Slot{}
	if err = cursor.All(ctx, &slots); err != nil {
		return nil, fmt.Errorf("failed to decode slots: %w", err)
	}
	return slots, nil
}

func (r *mongoSlotRepository) ExistsOverlapping(ctx context.Context, calendarID string, start, end time.Time, excludeID string) (bool, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"calendar_id": calendarID,
		"start_time":  bson.M{"$lt": end},
		"end_time":    bson.M{"$gt": start},
	}
	if excludeID != "" {
		filter["_id"] = bson.M{"$ne": excludeID}
	}

	count, err := r.collection.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to check overlapping slots: %w", err)
	}
	return count > 0, nil
}

func (r *mongoSlotRepository) Update(ctx context.Context, slot *model.Slot, expectedVersion int64) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	updatedAt := now()
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": slot.ID, "version": expectedVersion},
		bson.M{"$set": bson.M{
			"start_time": slot.StartTime,
			"end_time":   slot.EndTime,
			"status":     slot.Status,
			"version":    expectedVersion + 1,
			"updated_at": updatedAt,
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to update slot: %w", err)
	}
	if result.MatchedCount == 0 {
		return r.missOrStale(ctx, slot.ID)
	}

	slot.Version = expectedVersion + 1
	slot.UpdatedAt = updatedAt
	return nil
}

func (r *mongoSlotRepository) Delete(ctx context.Context, id string, expectedVersion int64) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.DeleteOne(ctx, bson.M{
		"_id":     id,
		"version": expectedVersion,
		"status":  bson.M{"$ne": model.SlotBooked},
	})
	if err != nil {
		return fmt.Errorf("failed to delete slot: %w", err)
	}
	if result.DeletedCount == 0 {
		return r.deleteMiss(ctx, id)
	}
	return nil
}

// LockCalendar bumps a counter on the calendar document. Two transactions
// doing so for the same calendar conflict and one of them is retried.
func (r *mongoSlotRepository) LockCalendar(ctx context.Context, calendarID string) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.calendars.UpdateOne(ctx,
		bson.M{"_id": calendarID},
		bson.M{"$inc": bson.M{"slot_writes": 1}},
	)
	if err != nil {
		return fmt.Errorf("failed to lock calendar: %w", err)
	}
	if result.MatchedCount == 0 {
		return slotserrors.ErrCalendarNotFound
	}
	return nil
}

func (r *mongoSlotRepository) ExecuteTransaction(ctx context.Context, fn db.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}

func (r *mongoSlotRepository) missOrStale(ctx context.Context, id string) error {
	count, err := r.collection.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to check slot existence: %w", err)
	}
	if count == 0 {
		return slotserrors.ErrSlotNotFound
	}
	return slotserrors.ErrStaleVersion
}

// deleteMiss explains a DeleteOne that matched no document.
func (r *mongoSlotRepository) deleteMiss(ctx context.Context, id string) error {
	var slot model.Slot
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&slot)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return slotserrors.ErrSlotNotFound
		}
		return fmt.Errorf("failed to check slot status: %w", err)
	}
	if slot.Status == model.SlotBooked {
		return slotserrors.ErrSlotLocked
	}
	return slotserrors.ErrStaleVersion
}
