package errors

import (
	userserrors "minidoodle/internal/users/errors"
	apperrors "minidoodle/pkg/errors"
)

var (
	ErrInvalidInterval = apperrors.Reason("InvalidInterval", "start time must be before end time")

	ErrPastStartTime = apperrors.Reason("PastStartTime", "slot cannot start in the past")

	ErrTooShort = apperrors.Reason("TooShort", "slot duration is below the minimum")

	ErrTooLong = apperrors.Reason("TooLong", "slot duration exceeds the maximum")

	ErrSlotConflict = apperrors.Reason("SlotConflict", "slot overlaps an existing slot on this calendar")

	ErrCalendarNotFound = userserrors.ErrCalendarNotFound

	ErrSlotNotFound = apperrors.Reason("SlotNotFound", "slot not found")

	// ErrSlotLocked is returned for any structural edit or owner status change
	// of a BOOKED slot. The meeting has to be cancelled first.
	ErrSlotLocked = apperrors.Reason("SlotLockedError", "slot is booked; cancel the meeting first")

	ErrStaleVersion = apperrors.Reason("StaleVersion", "slot was modified concurrently")

	ErrInvalidStateTransition = apperrors.Reason("InvalidStateTransition", "slot status transition is not allowed")
)
