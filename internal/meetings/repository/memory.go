package repository

import (
	"context"
	"slices"
	"time"

	meetingserrors "minidoodle/internal/meetings/errors"
	"minidoodle/pkg/db"
	"minidoodle/pkg/db/memory"
	"minidoodle/pkg/interval"
	"minidoodle/pkg/model"

	"github.com/google/uuid"
)

type memoryMeetingRepository struct {
	store    *memory.DB
	meetings *memory.Table[model.Meeting]
}

func NewMemoryMeetingRepository(store *memory.DB) MeetingRepository {
	return &memoryMeetingRepository{
		store:    store,
		meetings: memory.NewTable[model.Meeting](store, cloneMeeting),
	}
}

func (r *memoryMeetingRepository) Create(ctx context.Context, meeting *model.Meeting) error {
	return r.store.ExecuteTransaction(ctx, func(ctx context.Context) error {
		booked, err := r.meetings.Any(ctx, func(m model.Meeting) bool { return m.SlotID == meeting.SlotID })
		if err != nil {
			return err
		}
		if booked {
			return meetingserrors.ErrSlotAlreadyBooked
		}

		if meeting.ID == "" {
			meeting.ID = uuid.NewString()
		}
		if meeting.ParticipantIDs == nil {
			meeting.ParticipantIDs = []string{}
		}
		meeting.CreatedAt = now()
		meeting.UpdatedAt = meeting.CreatedAt
		return r.meetings.Insert(ctx, meeting.ID, *meeting)
	})
}

func (r *memoryMeetingRepository) FindByID(ctx context.Context, id string) (*model.Meeting, error) {
	meeting, found, err := r.meetings.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, meetingserrors.ErrMeetingNotFound
	}
	return &meeting, nil
}

func (r *memoryMeetingRepository) FindBySlotID(ctx context.Context, slotID string) (*model.Meeting, error) {
	rows, err := r.meetings.Select(ctx, func(m model.Meeting) bool { return m.SlotID == slotID }, nil)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, meetingserrors.ErrMeetingNotFound
	}
	return &rows[0], nil
}

func (r *memoryMeetingRepository) ListByParticipant(ctx context.Context, userID string, from, to time.Time) ([]*model.Meeting, error) {
	return r.list(ctx, from, to, func(m model.Meeting) bool {
		return slices.Contains(m.ParticipantIDs, userID)
	})
}

func (r *memoryMeetingRepository) ListByOwner(ctx context.Context, ownerID string, from, to time.Time) ([]*model.Meeting, error) {
	return r.list(ctx, from, to, func(m model.Meeting) bool {
		return m.OwnerID == ownerID
	})
}

func (r *memoryMeetingRepository) Update(ctx context.Context, meeting *model.Meeting) error {
	return r.store.ExecuteTransaction(ctx, func(ctx context.Context) error {
		current, err := r.FindByID(ctx, meeting.ID)
		if err != nil {
			return err
		}

		current.Title = meeting.Title
		current.Description = meeting.Description
		current.ParticipantIDs = meeting.ParticipantIDs
		current.UpdatedAt = now()
		if _, err := r.meetings.Replace(ctx, current.ID, *current); err != nil {
			return err
		}
		*meeting = cloneMeeting(*current)
		return nil
	})
}

func (r *memoryMeetingRepository) Delete(ctx context.Context, id string) error {
	found, err := r.meetings.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return meetingserrors.ErrMeetingNotFound
	}
	return nil
}

func (r *memoryMeetingRepository) ExecuteTransaction(ctx context.Context, fn db.TransactionFunc) error {
	return r.store.ExecuteTransaction(ctx, fn)
}

func (r *memoryMeetingRepository) list(ctx context.Context, from, to time.Time, match func(model.Meeting) bool) ([]*model.Meeting, error) {
	rows, err := r.meetings.Select(ctx,
		func(m model.Meeting) bool {
			return match(m) && interval.Within(m.StartTime, m.EndTime, from, to)
		},
		func(a, b model.Meeting) bool {
			if a.StartTime.Equal(b.StartTime) {
				return a.ID < b.ID
			}
			return a.StartTime.Before(b.StartTime)
		},
	)
	if err != nil {
		return nil, err
	}

	out := make([]*model.Meeting, len(rows))
	for i := range rows {
		out[i] = &rows[i]
	}
	return out, nil
}
