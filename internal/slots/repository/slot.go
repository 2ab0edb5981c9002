package repository

import (
	"context"
	"time"

	"minidoodle/pkg/db"
	"minidoodle/pkg/model"
)

// SlotRepository persists slots. Update and Delete are compare-and-swap on
// the slot version: a mismatch yields ErrStaleVersion, a missing row
// ErrSlotNotFound. Delete never removes a BOOKED slot (ErrSlotLocked).
type SlotRepository interface {
	Create(ctx context.Context, slot *model.Slot) error
	FindByID(ctx context.Context, id string) (*model.Slot, error)
	// FindByIDForUpdate reads the slot and, inside a transaction, holds a
	// write lock on it until commit where the backend supports one.
	FindByIDForUpdate(ctx context.Context, id string) (*model.Slot, error)
	// FindByCalendar returns slots fully contained in [from, to], ordered by
	// start time. No statuses means all of them.
	FindByCalendar(ctx context.Context, calendarID string, from, to time.Time, statuses ...model.SlotStatus) ([]*model.Slot, error)
	ExistsOverlapping(ctx context.Context, calendarID string, start, end time.Time, excludeID string) (bool, error)
	// Update writes interval and status, bumps the version and refreshes
	// slot in place.
	Update(ctx context.Context, slot *model.Slot, expectedVersion int64) error
	Delete(ctx context.Context, id string, expectedVersion int64) error
	// LockCalendar serializes slot writers of one calendar for the rest of
	// the enclosing transaction.
	LockCalendar(ctx context.Context, calendarID string) error
	ExecuteTransaction(ctx context.Context, fn db.TransactionFunc) error
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func statusSet(statuses []model.SlotStatus) map[model.SlotStatus]bool {
	if len(statuses) == 0 {
		return nil
	}
	set := make(map[model.SlotStatus]bool, len(statuses))
	for _, s := range statuses {
		set[s] = true
	}
	return set
}
