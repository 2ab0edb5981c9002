package repository

import (
	"context"
	"time"

	"minidoodle/internal/slots/conflict"
	slotserrors "minidoodle/internal/slots/errors"
	"minidoodle/pkg/db"
	"minidoodle/pkg/db/memory"
	"minidoodle/pkg/interval"
	"minidoodle/pkg/model"

	"github.com/google/uuid"
)

type memorySlotRepository struct {
	store *memory.DB
	slots *memory.Table[model.Slot]
}

func NewMemorySlotRepository(store *memory.DB) SlotRepository {
	return &memorySlotRepository{
		store: store,
		slots: memory.NewTable[model.Slot](store, nil),
	}
}

func (r *memorySlotRepository) Create(ctx context.Context, slot *model.Slot) error {
	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	slot.Version = 1
	slot.CreatedAt = now()
	slot.UpdatedAt = slot.CreatedAt
	return r.slots.Insert(ctx, slot.ID, *slot)
}

func (r *memorySlotRepository) FindByID(ctx context.Context, id string) (*model.Slot, error) {
	slot, found, err := r.slots.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, slotserrors.ErrSlotNotFound
	}
	return &slot, nil
}

// FindByIDForUpdate relies on the store latch, which a transaction holds
// until it finishes.
func (r *memorySlotRepository) FindByIDForUpdate(ctx context.Context, id string) (*model.Slot, error) {
	return r.FindByID(ctx, id)
}

func (r *memorySlotRepository) FindByCalendar(ctx context.Context, calendarID string, from, to time.Time, statuses ...model.SlotStatus) ([]*model.Slot, error) {
	wanted := statusSet(statuses)
	rows, err := r.slots.Select(ctx,
		func(s model.Slot) bool {
			if s.CalendarID != calendarID || !interval.Within(s.StartTime, s.EndTime, from, to) {
				return false
			}
			return wanted == nil || wanted[s.Status]
		},
		func(a, b model.Slot) bool {
			if a.StartTime.Equal(b.StartTime) {
				return a.ID < b.ID
			}
			return a.StartTime.Before(b.StartTime)
		},
	)
	if err != nil {
		return nil, err
	}

	out := make([]*model.Slot, len(rows))
	for i := range rows {
		out[i] = &rows[i]
	}
	return out, nil
}

func (r *memorySlotRepository) ExistsOverlapping(ctx context.Context, calendarID string, start, end time.Time, excludeID string) (bool, error) {
	return r.slots.Any(ctx, func(s model.Slot) bool {
		return conflict.Overlapping(&s, calendarID, start, end, excludeID)
	})
}

func (r *memorySlotRepository) Update(ctx context.Context, slot *model.Slot, expectedVersion int64) error {
	return r.store.ExecuteTransaction(ctx, func(ctx context.Context) error {
		current, err := r.FindByID(ctx, slot.ID)
		if err != nil {
			return err
		}
		if current.Version != expectedVersion {
			return slotserrors.ErrStaleVersion
		}

		next := *current
		next.StartTime = slot.StartTime
		next.EndTime = slot.EndTime
		next.Status = slot.Status
		next.Version = expectedVersion + 1
		next.UpdatedAt = now()
		if _, err := r.slots.Replace(ctx, next.ID, next); err != nil {
			return err
		}
		*slot = next
		return nil
	})
}

func (r *memorySlotRepository) Delete(ctx context.Context, id string, expectedVersion int64) error {
	return r.store.ExecuteTransaction(ctx, func(ctx context.Context) error {
		current, err := r.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if current.Status == model.SlotBooked {
			return slotserrors.ErrSlotLocked
		}
		if current.Version != expectedVersion {
			return slotserrors.ErrStaleVersion
		}
		_, err = r.slots.Delete(ctx, id)
		return err
	})
}

// LockCalendar is a no-op: the store latch already serializes transactions.
func (r *memorySlotRepository) LockCalendar(context.Context, string) error {
	return nil
}

func (r *memorySlotRepository) ExecuteTransaction(ctx context.Context, fn db.TransactionFunc) error {
	return r.store.ExecuteTransaction(ctx, fn)
}
