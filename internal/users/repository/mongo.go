package repository

import (
	"context"
	"errors"
	"fmt"

	userserrors "minidoodle/internal/users/errors"
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
	CollectionName         = "Users"
	CalendarCollectionName = "Calendars"
)

type mongoUserRepository struct {
	cfg       *config.Config
	users     *mongo.Collection
	calendars *mongo.Collection
	txManager db.TransactionManager
}

func NewMongoUserRepository(cfg *config.Config) UserRepository {
	database := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoUserRepository{
		cfg:       cfg,
		users:     database.Collection(CollectionName),
		calendars: database.Collection(CalendarCollectionName),
		txManager: mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

// Create relies on the unique email index; the transaction keeps a user
// from existing without its calendar.
func (r *mongoUserRepository) Create(ctx context.Context, user *model.User, calendar *model.Calendar) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if calendar.ID == "" {
		calendar.ID = uuid.NewString()
	}
	user.CreatedAt = now()
	user.UpdatedAt = user.CreatedAt
	calendar.UserID = user.ID
	calendar.CreatedAt = user.CreatedAt

	return r.txManager.ExecuteTransaction(ctx, func(ctx context.Context) error {
		wctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
		defer cancel()

		if _, err := r.users.InsertOne(wctx, user); err != nil {
			if mongotx.IsDuplicateKey(err) {
				return userserrors.ErrEmailTaken
			}
			return fmt.Errorf("failed to create user: %w", err)
		}
		if _, err := r.calendars.InsertOne(wctx, calendar); err != nil {
			return fmt.Errorf("failed to create calendar: %w", err)
		}
		return nil
	})
}

func (r *mongoUserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	return r.findUser(ctx, bson.M{"_id": id})
}

func (r *mongoUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findUser(ctx, bson.M{"email": email})
}

func (r *mongoUserRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.User, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.users.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find users: %w", err)
	}
	defer cursor.Close(ctx)

	users := []*model.User{}
	if err = cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}
	return users, nil
}

func (r *mongoUserRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.users.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

func (r *mongoUserRepository) Update(ctx context.Context, user *model.User) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	user.UpdatedAt = now()
	result, err := r.users.UpdateOne(ctx,
		bson.M{"_id": user.ID},
		bson.M{"$set": bson.M{
			"email":      user.Email,
			"name":       user.Name,
			"updated_at": user.UpdatedAt,
		}},
	)
	if err != nil {
		if mongotx.IsDuplicateKey(err) {
			return userserrors.ErrEmailTaken
		}
		return fmt.Errorf("failed to update user: %w", err)
	}
	if result.MatchedCount == 0 {
		return userserrors.ErrUserNotFound
	}
	return nil
}

func (r *mongoUserRepository) FindCalendarByID(ctx context.Context, id string) (*model.Calendar, error) {
	return r.findCalendar(ctx, bson.M{"_id": id})
}

func (r *mongoUserRepository) FindCalendarByUserID(ctx context.Context, userID string) (*model.Calendar, error) {
	return r.findCalendar(ctx, bson.M{"user_id": userID})
}

func (r *mongoUserRepository) FindMissing(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return []string{}, nil
	}

	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	cursor, err := r.users.Find(ctx,
		bson.M{"_id": bson.M{"$in": ids}},
		options.Find().SetProjection(bson.M{"_id": 1}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to look up users: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		ID string `bson:"_id"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode user ids: %w", err)
	}

	found := make(map[string]bool, len(rows))
	for _, row := range rows {
		found[row.ID] = true
	}
	return missing(ids, found), nil
}

func (r *mongoUserRepository) ExecuteTransaction(ctx context.Context, fn db.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}

func (r *mongoUserRepository) findUser(ctx context.Context, filter bson.M) (*model.User, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var user model.User
	if err := r.users.FindOne(ctx, filter).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, userserrors.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &user, nil
}

func (r *mongoUserRepository) findCalendar(ctx context.Context, filter bson.M) (*model.Calendar, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var calendar model.Calendar
	if err := r.calendars.FindOne(ctx, filter).Decode(&calendar); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, userserrors.ErrCalendarNotFound
		}
		return nil, fmt.Errorf("failed to find calendar: %w", err)
	}
	return &calendar, nil
}
