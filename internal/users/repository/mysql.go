package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	userserrors "minidoodle/internal/users/errors"
	"minidoodle/pkg/db"
	mysqldb "minidoodle/pkg/db/mysql"
	"minidoodle/pkg/model"

	"github.com/google/uuid"
)

const (
	userColumns     = "id, email, name, created_at, updated_at"
	calendarColumns = "id, user_id, timezone, created_at"
)

type mysqlUserRepository struct {
	db *mysqldb.DB
}

func NewMySQLUserRepository(store *mysqldb.DB) UserRepository {
	return &mysqlUserRepository{db: store}
}

func (r *mysqlUserRepository) Create(ctx context.Context, user *model.User, calendar *model.Calendar) error {
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

	return r.db.ExecuteTransaction(ctx, func(ctx context.Context) error {
		_, err := r.db.Conn(ctx).ExecContext(ctx,
			"INSERT INTO users ("+userColumns+") VALUES (?, ?, ?, ?, ?)",
			user.ID, user.Email, user.Name, user.CreatedAt, user.UpdatedAt,
		)
		if err != nil {
			if mysqldb.IsDuplicateKey(err) {
				return userserrors.ErrEmailTaken
			}
			return fmt.Errorf("failed to create user: %w", err)
		}

		_, err = r.db.Conn(ctx).ExecContext(ctx,
			"INSERT INTO calendars ("+calendarColumns+") VALUES (?, ?, ?, ?)",
			calendar.ID, calendar.UserID, calendar.Timezone, calendar.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create calendar: %w", err)
		}
		return nil
	})
}

func (r *mysqlUserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	return r.findUser(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
}

func (r *mysqlUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findUser(ctx, "SELECT "+userColumns+" FROM users WHERE email = ?", email)
}

func (r *mysqlUserRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.User, error) {
	rows, err := r.db.Conn(ctx).QueryContext(ctx,
		"SELECT "+userColumns+" FROM users ORDER BY created_at, id LIMIT ? OFFSET ?", limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to find users: %w", err)
	}
	defer rows.Close()

	users := []*model.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to decode users: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, nil
}

func (r *mysqlUserRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.Conn(ctx).QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

func (r *mysqlUserRepository) Update(ctx context.Context, user *model.User) error {
	user.UpdatedAt = now()
	result, err := r.db.Conn(ctx).ExecContext(ctx,
		"UPDATE users SET email = ?, name = ?, updated_at = ? WHERE id = ?",
		user.Email, user.Name, user.UpdatedAt, user.ID,
	)
	if err != nil {
		if mysqldb.IsDuplicateKey(err) {
			return userserrors.ErrEmailTaken
		}
		return fmt.Errorf("failed to update user: %w", err)
	}

	// RowsAffected is 0 for an unchanged row, so existence is checked apart.
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		if _, err := r.FindByID(ctx, user.ID); err != nil {
			return err
		}
	}
	return nil
}

func (r *mysqlUserRepository) FindCalendarByID(ctx context.Context, id string) (*model.Calendar, error) {
	return r.findCalendar(ctx, "SELECT "+calendarColumns+" FROM calendars WHERE id = ?", id)
}

func (r *mysqlUserRepository) FindCalendarByUserID(ctx context.Context, userID string) (*model.Calendar, error) {
	return r.findCalendar(ctx, "SELECT "+calendarColumns+" FROM calendars WHERE user_id = ?", userID)
}

func (r *mysqlUserRepository) FindMissing(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return []string{}, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := r.db.Conn(ctx).QueryContext(ctx,
		"SELECT id FROM users WHERE id IN (?"+strings.Repeat(", ?", len(ids)-1)+")", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to look up users: %w", err)
	}
	defer rows.Close()

	found := make(map[string]bool, len(ids))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to decode user ids: %w", err)
		}
		found[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate user ids: %w", err)
	}
	return missing(ids, found), nil
}

func (r *mysqlUserRepository) ExecuteTransaction(ctx context.Context, fn db.TransactionFunc) error {
	return r.db.ExecuteTransaction(ctx, fn)
}

func (r *mysqlUserRepository) findUser(ctx context.Context, query string, arg string) (*model.User, error) {
	user, err := scanUser(r.db.Conn(ctx).QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, userserrors.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

func (r *mysqlUserRepository) findCalendar(ctx context.Context, query string, arg string) (*model.Calendar, error) {
	var calendar model.Calendar
	err := r.db.Conn(ctx).QueryRowContext(ctx, query, arg).
		Scan(&calendar.ID, &calendar.UserID, &calendar.Timezone, &calendar.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, userserrors.ErrCalendarNotFound
		}
		return nil, fmt.Errorf("failed to find calendar: %w", err)
	}
	calendar.CreatedAt = calendar.CreatedAt.UTC()
	return &calendar, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var user model.User
	if err := row.Scan(&user.ID, &user.Email, &user.Name, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return nil, err
	}
	user.CreatedAt = user.CreatedAt.UTC()
	user.UpdatedAt = user.UpdatedAt.UTC()
	return &user, nil
}
