package repository

import (
	"context"

	userserrors "minidoodle/internal/users/errors"
	"minidoodle/pkg/db"
	"minidoodle/pkg/db/memory"
	"minidoodle/pkg/model"

	"github.com/google/uuid"
)

type memoryUserRepository struct {
	store     *memory.DB
	users     *memory.Table[model.User]
	calendars *memory.Table[model.Calendar]
}

func NewMemoryUserRepository(store *memory.DB) UserRepository {
	return &memoryUserRepository{
		store:     store,
		users:     memory.NewTable[model.User](store, nil),
		calendars: memory.NewTable[model.Calendar](store, nil),
	}
}

func (r *memoryUserRepository) Create(ctx context.Context, user *model.User, calendar *model.Calendar) error {
	return r.store.ExecuteTransaction(ctx, func(ctx context.Context) error {
		taken, err := r.users.Any(ctx, func(u model.User) bool { return u.Email == user.Email })
		if err != nil {
			return err
		}
		if taken {
			return userserrors.ErrEmailTaken
		}

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

		if err := r.users.Insert(ctx, user.ID, *user); err != nil {
			return err
		}
		return r.calendars.Insert(ctx, calendar.ID, *calendar)
	})
}

func (r *memoryUserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	user, found, err := r.users.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, userserrors.ErrUserNotFound
	}
	return &user, nil
}

func (r *memoryUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	rows, err := r.users.Select(ctx, func(u model.User) bool { return u.Email == email }, nil)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, userserrors.ErrUserNotFound
	}
	return &rows[0], nil
}

func (r *memoryUserRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.User, error) {
	rows, err := r.users.Select(ctx, nil, func(a, b model.User) bool {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return a.ID < b.ID
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	if err != nil {
		return nil, err
	}

	out := []*model.User{}
	for i := int(offset); i < len(rows) && len(out) < limit; i++ {
		out = append(out, &rows[i])
	}
	return out, nil
}

func (r *memoryUserRepository) Count(ctx context.Context) (int64, error) {
	rows, err := r.users.Select(ctx, nil, nil)
	if err != nil {
		return 0, err
	}
	return int64(len(rows)), nil
}

func (r *memoryUserRepository) Update(ctx context.Context, user *model.User) error {
	return r.store.ExecuteTransaction(ctx, func(ctx context.Context) error {
		taken, err := r.users.Any(ctx, func(u model.User) bool { return u.Email == user.Email && u.ID != user.ID })
		if err != nil {
			return err
		}
		if taken {
			return userserrors.ErrEmailTaken
		}

		user.UpdatedAt = now()
		found, err := r.users.Replace(ctx, user.ID, *user)
		if err != nil {
			return err
		}
		if !found {
			return userserrors.ErrUserNotFound
		}
		return nil
	})
}

func (r *memoryUserRepository) FindCalendarByID(ctx context.Context, id string) (*model.Calendar, error) {
	calendar, found, err := r.calendars.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, userserrors.ErrCalendarNotFound
	}
	return &calendar, nil
}

func (r *memoryUserRepository) FindCalendarByUserID(ctx context.Context, userID string) (*model.Calendar, error) {
	rows, err := r.calendars.Select(ctx, func(c model.Calendar) bool { return c.UserID == userID }, nil)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, userserrors.ErrCalendarNotFound
	}
	return &rows[0], nil
}

func (r *memoryUserRepository) FindMissing(ctx context.Context, ids []string) ([]string, error) {
	found := make(map[string]bool, len(ids))
	for _, id := range ids {
		_, ok, err := r.users.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		found[id] = ok
	}
	return missing(ids, found), nil
}

func (r *memoryUserRepository) ExecuteTransaction(ctx context.Context, fn db.TransactionFunc) error {
	return r.store.ExecuteTransaction(ctx, fn)
}
