package conflict

import (
	"context"
	"errors"
	"testing"
	"time"

	slotserrors "minidoodle/internal/slots/errors"
	"minidoodle/pkg/model"
)

type mockFinder struct {
	existsOverlappingFunc func(ctx context.Context, calendarID string, start, end time.Time, excludeID string) (bool, error)
}

func (m *mockFinder) ExistsOverlapping(ctx context.Context, calendarID string, start, end time.Time, excludeID string) (bool, error) {
	return m.existsOverlappingFunc(ctx, calendarID, start, end, excludeID)
}

func TestDetector_Check(t *testing.T) {
	start := time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	t.Run("no overlap", func(t *testing.T) {
		d := NewDetector(&mockFinder{existsOverlappingFunc: func(context.Context, string, time.Time, time.Time, string) (bool, error) {
			return false, nil
		}})
		if err := d.Check(context.Background(), "cal", start, end, ""); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("overlap", func(t *testing.T) {
		d := NewDetector(&mockFinder{existsOverlappingFunc: func(context.Context, string, time.Time, time.Time, string) (bool, error) {
			return true, nil
		}})
		if err := d.Check(context.Background(), "cal", start, end, ""); !errors.Is(err, slotserrors.ErrSlotConflict) {
			t.Fatalf("expected ErrSlotConflict, got %v", err)
		}
	})

	t.Run("exclude id is forwarded", func(t *testing.T) {
		var gotExclude string
		d := NewDetector(&mockFinder{existsOverlappingFunc: func(_ context.Context, _ string, _, _ time.Time, excludeID string) (bool, error) {
			gotExclude = excludeID
			return false, nil
		}})
		_ = d.Check(context.Background(), "cal", start, end, "slot-1")
		if gotExclude != "slot-1" {
			t.Fatalf("expected exclude id to be forwarded, got %q", gotExclude)
		}
	})

	t.Run("store failure", func(t *testing.T) {
		storeErr := errors.New("boom")
		d := NewDetector(&mockFinder{existsOverlappingFunc: func(context.Context, string, time.Time, time.Time, string) (bool, error) {
			return false, storeErr
		}})
		err := d.Check(context.Background(), "cal", start, end, "")
		if !errors.Is(err, storeErr) || errors.Is(err, slotserrors.ErrSlotConflict) {
			t.Fatalf("expected wrapped store error, got %v", err)
		}
	})
}

func TestOverlapping(t *testing.T) {
	at := func(h, m int) time.Time { return time.Date(2030, 1, 1, h, m, 0, 0, time.UTC) }
	existing := &model.Slot{ID: "s1", CalendarID: "cal", StartTime: at(10, 0), EndTime: at(11, 0), Status: model.SlotBusy}

	tests := []struct {
		name      string
		calendar  string
		start     time.Time
		end       time.Time
		excludeID string
		want      bool
	}{
		{"inside", "cal", at(10, 15), at(10, 45), "", true},
		{"straddles start", "cal", at(9, 30), at(10, 30), "", true},
		{"covers", "cal", at(9, 0), at(12, 0), "", true},
		{"adjacent before", "cal", at(9, 0), at(10, 0), "", false},
		{"adjacent after", "cal", at(11, 0), at(12, 0), "", false},
		{"other calendar", "other", at(10, 0), at(11, 0), "", false},
		{"excluded self", "cal", at(10, 0), at(11, 0), "s1", false},
		{"exclude other id", "cal", at(10, 0), at(11, 0), "s2", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Overlapping(existing, tt.calendar, tt.start, tt.end, tt.excludeID); got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}
