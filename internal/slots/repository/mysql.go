package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	slotserrors "minidoodle/internal/slots/errors"
	"minidoodle/pkg/db"
	mysqldb "minidoodle/pkg/db/mysql"
	"minidoodle/pkg/locking"
	"minidoodle/pkg/model"

	"github.com/google/uuid"
)

const slotColumns = "id, calendar_id, start_time, end_time, status, version, created_at, updated_at"

type mysqlSlotRepository struct {
	db *mysqldb.DB
}

func NewMySQLSlotRepository(store *mysqldb.DB) SlotRepository {
	return &mysqlSlotRepository{db: store}
}

func (r *mysqlSlotRepository) Create(ctx context.Context, slot *model.Slot) error {
	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	slot.Version = 1
	slot.CreatedAt = now()
	slot.UpdatedAt = slot.CreatedAt

	_, err := r.db.Conn(ctx).ExecContext(ctx,
		"INSERT INTO time_slots ("+slotColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		slot.ID, slot.CalendarID, slot.StartTime, slot.EndTime, slot.Status, slot.Version, slot.CreatedAt, slot.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create slot: %w", err)
	}
	return nil
}

func (r *mysqlSlotRepository) FindByID(ctx context.Context, id string) (*model.Slot, error) {
	return r.findOne(ctx, "SELECT "+slotColumns+" FROM time_slots WHERE id = ?", id)
}

// FindByIDForUpdate takes an InnoDB row lock held until the transaction ends.
func (r *mysqlSlotRepository) FindByIDForUpdate(ctx context.Context, id string) (*model.Slot, error) {
	return r.findOne(ctx, "SELECT "+slotColumns+" FROM time_slots WHERE id = ? FOR UPDATE", id)
}

func (r *mysqlSlotRepository) FindByCalendar(ctx context.Context, calendarID string, from, to time.Time, statuses ...model.SlotStatus) ([]*model.Slot, error) {
	query := "SELECT " + slotColumns + " FROM time_slots WHERE calendar_id = ? AND start_time >= ? AND end_time <= ?"
	args := []any{calendarID, from, to}
	if len(statuses) > 0 {
		query += " AND status IN (?" + strings.Repeat(", ?", len(statuses)-1) + ")"
		for _, s := range statuses {
			args = append(args, s)
		}
	}
	query += " ORDER BY start_time, id"

	rows, err := r.db.Conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find slots: %w", err)
	}
	defer rows.Close()

	slots := []*model.Slot{}
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to decode slots: %w", err)
		}
		slots = append(slots, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate slots: %w", err)
	}
	return slots, nil
}

func (r *mysqlSlotRepository) ExistsOverlapping(ctx context.Context, calendarID string, start, end time.Time, excludeID string) (bool, error) {
	var exists bool
	err := r.db.Conn(ctx).QueryRowContext(ctx,
		`SELECT EXISTS(
			SELECT 1 FROM time_slots
			WHERE calendar_id = ? AND start_time < ? AND end_time > ? AND id <> ?
		)`,
		calendarID, end, start, excludeID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check overlapping slots: %w", err)
	}
	return exists, nil
}

func (r *mysqlSlotRepository) Update(ctx context.Context, slot *model.Slot, expectedVersion int64) error {
	updatedAt := now()
	result, err := r.db.Conn(ctx).ExecContext(ctx,
		`UPDATE time_slots
		SET start_time = ?, end_time = ?, status = ?, version = ?, updated_at = ?
		WHERE id = ? AND version = ?`,
		slot.StartTime, slot.EndTime, slot.Status, expectedVersion+1, updatedAt, slot.ID, expectedVersion,
	)
	if err != nil {
		return classify("failed to update slot", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("failed to update slot: %w", err)
	} else if n == 0 {
		return r.missOrStale(ctx, slot.ID)
	}

	slot.Version = expectedVersion + 1
	slot.UpdatedAt = updatedAt
	return nil
}

func (r *mysqlSlotRepository) Delete(ctx context.Context, id string, expectedVersion int64) error {
	result, err := r.db.Conn(ctx).ExecContext(ctx,
		"DELETE FROM time_slots WHERE id = ? AND version = ? AND status <> ?", id, expectedVersion, model.SlotBooked)
	if err != nil {
		return classify("failed to delete slot", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("failed to delete slot: %w", err)
	} else if n == 0 {
		return r.deleteMiss(ctx, id)
	}
	return nil
}

// LockCalendar takes the calendar row lock. Without a transaction it only
// checks that the calendar exists.
func (r *mysqlSlotRepository) LockCalendar(ctx context.Context, calendarID string) error {
	var id string
	err := r.db.Conn(ctx).QueryRowContext(ctx,
		"SELECT id FROM calendars WHERE id = ? FOR UPDATE", calendarID).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return slotserrors.ErrCalendarNotFound
		}
		return classify("failed to lock calendar", err)
	}
	return nil
}

func (r *mysqlSlotRepository) ExecuteTransaction(ctx context.Context, fn db.TransactionFunc) error {
	return r.db.ExecuteTransaction(ctx, fn)
}

func (r *mysqlSlotRepository) findOne(ctx context.Context, query, id string) (*model.Slot, error) {
	slot, err := scanSlot(r.db.Conn(ctx).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, slotserrors.ErrSlotNotFound
		}
		return nil, classify("failed to find slot", err)
	}
	return slot, nil
}

func (r *mysqlSlotRepository) missOrStale(ctx context.Context, id string) error {
	var exists bool
	err := r.db.Conn(ctx).QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM time_slots WHERE id = ?)", id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check slot existence: %w", err)
	}
	if !exists {
		return slotserrors.ErrSlotNotFound
	}
	return slotserrors.ErrStaleVersion
}

// deleteMiss explains a DELETE that matched no row.
func (r *mysqlSlotRepository) deleteMiss(ctx context.Context, id string) error {
	var status model.SlotStatus
	err := r.db.Conn(ctx).QueryRowContext(ctx,
		"SELECT status FROM time_slots WHERE id = ?", id).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return slotserrors.ErrSlotNotFound
		}
		return classify("failed to check slot status", err)
	}
	if status == model.SlotBooked {
		return slotserrors.ErrSlotLocked
	}
	return slotserrors.ErrStaleVersion
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSlot(row rowScanner) (*model.Slot, error) {
	var slot model.Slot
	err := row.Scan(&slot.ID, &slot.CalendarID, &slot.StartTime, &slot.EndTime,
		&slot.Status, &slot.Version, &slot.CreatedAt, &slot.UpdatedAt)
	if err != nil {
		return nil, err
	}
	slot.StartTime = slot.StartTime.UTC()
	slot.EndTime = slot.EndTime.UTC()
	slot.CreatedAt = slot.CreatedAt.UTC()
	slot.UpdatedAt = slot.UpdatedAt.UTC()
	return &slot, nil
}

// classify surfaces InnoDB lock waits and deadlock rollbacks as
// locking.ErrLockTimeout, which callers report as retryable.
func classify(msg string, err error) error {
	if mysqldb.IsLockWaitTimeout(err) || mysqldb.IsDeadlock(err) {
		return fmt.Errorf("%s: %w: %v", msg, locking.ErrLockTimeout, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
