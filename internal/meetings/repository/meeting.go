package repository

import (
	"context"
	"slices"
	"time"

	"minidoodle/pkg/db"
	"minidoodle/pkg/model"
)

// MeetingRepository stores meetings and their participant sets. SlotID is
// unique: a second meeting for the same slot yields ErrSlotAlreadyBooked.
type MeetingRepository interface {
	Create(ctx context.Context, meeting *model.Meeting) error
	FindByID(ctx context.Context, id string) (*model.Meeting, error)
	FindBySlotID(ctx context.Context, slotID string) (*model.Meeting, error)
	// ListByParticipant and ListByOwner return meetings lying fully inside
	// [from, to], ordered by start time.
	ListByParticipant(ctx context.Context, userID string, from, to time.Time) ([]*model.Meeting, error)
	ListByOwner(ctx context.Context, ownerID string, from, to time.Time) ([]*model.Meeting, error)
	// Update replaces title, description and participants.
	Update(ctx context.Context, meeting *model.Meeting) error
	Delete(ctx context.Context, id string) error
	ExecuteTransaction(ctx context.Context, fn db.TransactionFunc) error
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func cloneMeeting(m model.Meeting) model.Meeting {
	m.ParticipantIDs = slices.Clone(m.ParticipantIDs)
	return m
}
