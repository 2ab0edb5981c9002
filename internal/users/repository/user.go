package repository

import (
	"context"
	"time"

	"minidoodle/pkg/db"
	"minidoodle/pkg/model"
)

// UserRepository stores users and their calendars. Every user has exactly
// one calendar, created together with the user.
type UserRepository interface {
	// Create inserts user and calendar atomically. A reused email yields
	// ErrEmailTaken.
	Create(ctx context.Context, user *model.User, calendar *model.Calendar) error
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindAll(ctx context.Context, limit int, offset int64) ([]*model.User, error)
	Count(ctx context.Context) (int64, error)
	Update(ctx context.Context, user *model.User) error
	FindCalendarByID(ctx context.Context, id string) (*model.Calendar, error)
	FindCalendarByUserID(ctx context.Context, userID string) (*model.Calendar, error)
	// FindMissing returns the ids, in input order, that match no user.
	FindMissing(ctx context.Context, ids []string) ([]string, error)
	ExecuteTransaction(ctx context.Context, fn db.TransactionFunc) error
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func missing(ids []string, found map[string]bool) []string {
	out := []string{}
	for _, id := range ids {
		if !found[id] {
			out = append(out, id)
		}
	}
	return out
}
