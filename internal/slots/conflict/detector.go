// Package conflict decides whether a proposed interval collides with slots
// already on a calendar. Every status counts, so a calendar never holds two
// overlapping slots of any kind.
package conflict

import (
	"context"
	"fmt"
	"time"

	slotserrors "minidoodle/internal/slots/errors"
	"minidoodle/pkg/interval"
	"minidoodle/pkg/model"
)

type OverlapFinder interface {
	ExistsOverlapping(ctx context.Context, calendarID string, start, end time.Time, excludeID string) (bool, error)
}

type Detector struct {
	finder OverlapFinder
}

func NewDetector(finder OverlapFinder) *Detector {
	return &Detector{finder: finder}
}

// Check returns ErrSlotConflict when [start, end) overlaps any slot on the
// calendar other than excludeID. Pass "" to exclude nothing.
func (d *Detector) Check(ctx context.Context, calendarID string, start, end time.Time, excludeID string) error {
	found, err := d.finder.ExistsOverlapping(ctx, calendarID, start, end, excludeID)
	if err != nil {
		return fmt.Errorf("failed to check overlapping slots: %w", err)
	}
	if found {
		return slotserrors.ErrSlotConflict
	}
	return nil
}

// Overlapping reports whether slot collides with [start, end), skipping excludeID.
func Overlapping(slot *model.Slot, calendarID string, start, end time.Time, excludeID string) bool {
	if slot.CalendarID != calendarID {
		return false
	}
	if excludeID != "" && slot.ID == excludeID {
		return false
	}
	return interval.Overlaps(slot.StartTime, slot.EndTime, start, end)
}
