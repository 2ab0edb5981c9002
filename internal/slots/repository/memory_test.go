package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	slotserrors "minidoodle/internal/slots/errors"
	"minidoodle/pkg/db/memory"
	"minidoodle/pkg/model"
)

var base = time.Date(2030, 3, 4, 9, 0, 0, 0, time.UTC)

func mins(n int) time.Time {
	return base.Add(time.Duration(n) * time.Minute)
}

func seed(t *testing.T, repo SlotRepository, calendarID string, start, end int, status model.SlotStatus) *model.Slot {
	t.Helper()
	slot := &model.Slot{CalendarID: calendarID, StartTime: mins(start), EndTime: mins(end), Status: status}
	if err := repo.Create(context.Background(), slot); err != nil {
		t.Fatalf("failed to seed slot: %v", err)
	}
	return slot
}

func TestMemory_CreateAssignsIdentity(t *testing.T) {
	repo := NewMemorySlotRepository(memory.New())
	slot := seed(t, repo, "cal", 0, 60, model.SlotFree)

	if slot.ID == "" || slot.Version != 1 || slot.CreatedAt.IsZero() {
		t.Fatalf("expected id, version 1 and timestamps, got %+v", slot)
	}
	got, err := repo.FindByID(context.Background(), slot.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.StartTime.Equal(slot.StartTime) {
		t.Errorf("expected stored start %s, got %s", slot.StartTime, got.StartTime)
	}
}

func TestMemory_UpdateCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	repo := NewMemorySlotRepository(memory.New())
	slot := seed(t, repo, "cal", 0, 60, model.SlotFree)

	slot.Status = model.SlotBusy
	if err := repo.Update(ctx, slot, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if slot.Version != 2 {
		t.Errorf("expected version refreshed to 2, got %d", slot.Version)
	}

	stale := *slot
	stale.Status = model.SlotFree
	if err := repo.Update(ctx, &stale, 1); !errors.Is(err, slotserrors.ErrStaleVersion) {
		t.Errorf("expected ErrStaleVersion, got %v", err)
	}

	missing := &model.Slot{ID: "nope"}
	if err := repo.Update(ctx, missing, 1); !errors.Is(err, slotserrors.ErrSlotNotFound) {
		t.Errorf("expected ErrSlotNotFound, got %v", err)
	}
}

func TestMemory_DeleteCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	repo := NewMemorySlotRepository(memory.New())
	slot := seed(t, repo, "cal", 0, 60, model.SlotFree)

	if err := repo.Delete(ctx, slot.ID, 2); !errors.Is(err, slotserrors.ErrStaleVersion) {
		t.Fatalf("expected ErrStaleVersion, got %v", err)
	}
	if err := repo.Delete(ctx, slot.ID, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := repo.Delete(ctx, slot.ID, 1); !errors.Is(err, slotserrors.ErrSlotNotFound) {
		t.Errorf("expected ErrSlotNotFound, got %v", err)
	}
}

func TestMemory_DeleteRefusesBooked(t *testing.T) {
	ctx := context.Background()
	repo := NewMemorySlotRepository(memory.New())
	slot := seed(t, repo, "cal", 0, 60, model.SlotBooked)

	if err := repo.Delete(ctx, slot.ID, slot.Version); !errors.Is(err, slotserrors.ErrSlotLocked) {
		t.Fatalf("expected ErrSlotLocked, got %v", err)
	}
	if _, err := repo.FindByID(ctx, slot.ID); err != nil {
		t.Errorf("expected booked slot to survive, got %v", err)
	}
}

func TestMemory_FindByCalendar(t *testing.T) {
	ctx := context.Background()
	repo := NewMemorySlotRepository(memory.New())
	second := seed(t, repo, "cal", 120, 180, model.SlotBusy)
	first := seed(t, repo, "cal", 0, 60, model.SlotFree)
	seed(t, repo, "cal", 170, 250, model.SlotFree)
	seed(t, repo, "other", 0, 60, model.SlotFree)

	all, err := repo.FindByCalendar(ctx, "cal", mins(0), mins(180))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 2 || all[0].ID != first.ID || all[1].ID != second.ID {
		t.Fatalf("expected [first, second] fully inside the window, got %d slots", len(all))
	}

	busy, err := repo.FindByCalendar(ctx, "cal", mins(0), mins(180), model.SlotBusy)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(busy) != 1 || busy[0].ID != second.ID {
		t.Errorf("expected only the busy slot, got %d", len(busy))
	}
}

func TestMemory_ExistsOverlapping(t *testing.T) {
	ctx := context.Background()
	repo := NewMemorySlotRepository(memory.New())
	slot := seed(t, repo, "cal", 60, 120, model.SlotFree)

	tests := []struct {
		name       string
		calendarID string
		start, end int
		excludeID  string
		want       bool
	}{
		{"overlapping", "cal", 90, 150, "", true},
		{"touching end", "cal", 120, 180, "", false},
		{"touching start", "cal", 0, 60, "", false},
		{"other calendar", "other", 60, 120, "", false},
		{"excluding itself", "cal", 60, 90, slot.ID, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.ExistsOverlapping(ctx, tt.calendarID, mins(tt.start), mins(tt.end), tt.excludeID)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestMemory_TransactionRollsBackCreate(t *testing.T) {
	ctx := context.Background()
	repo := NewMemorySlotRepository(memory.New())
	boom := errors.New("boom")

	var id string
	err := repo.ExecuteTransaction(ctx, func(ctx context.Context) error {
		slot := &model.Slot{CalendarID: "cal", StartTime: mins(0), EndTime: mins(60), Status: model.SlotFree}
		if err := repo.Create(ctx, slot); err != nil {
			return err
		}
		id = slot.ID
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, err := repo.FindByID(ctx, id); !errors.Is(err, slotserrors.ErrSlotNotFound) {
		t.Errorf("expected rolled back slot to be gone, got %v", err)
	}
}
