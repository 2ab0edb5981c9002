package errors

import (
	"fmt"
	"strings"

	apperrors "minidoodle/pkg/errors"
)

var (
	ErrMeetingNotFound = apperrors.Reason("MeetingNotFound", "meeting not found")

	// ErrSlotNotAvailable is a slot that is not FREE and carries no meeting.
	ErrSlotNotAvailable = apperrors.Reason("SlotNotAvailable", "slot is not available for booking")

	ErrSlotAlreadyBooked = apperrors.Reason("SlotAlreadyBooked", "a meeting already exists for this slot")

	ErrParticipantNotFound = apperrors.Reason("ParticipantNotFound", "participant not found")

	ErrBookingTimeout = apperrors.Reason("BookingTimeout", "timed out waiting for the slot lock")
)

// MissingParticipantsError lists the participant ids that match no user.
type MissingParticipantsError struct {
	IDs []string
}

func (e *MissingParticipantsError) Error() string {
	return fmt.Sprintf("%s: %s", ErrParticipantNotFound, strings.Join(e.IDs, ", "))
}

func (e *MissingParticipantsError) Unwrap() error {
	return ErrParticipantNotFound
}
