package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"minidoodle/internal/events"
	meetingserrors "minidoodle/internal/meetings/errors"
	"minidoodle/internal/meetings/repository"
	"minidoodle/internal/meetings/validator"
	slotserrors "minidoodle/internal/slots/errors"
	slotsrepo "minidoodle/internal/slots/repository"
	"minidoodle/internal/slots/state"
	userserrors "minidoodle/internal/users/errors"
	"minidoodle/pkg/config"
	apperrors "minidoodle/pkg/errors"
	"minidoodle/pkg/locking"
	"minidoodle/pkg/model"
	"minidoodle/pkg/sanitizer"
	"minidoodle/pkg/validation"
)

type MeetingService interface {
	// Book turns a FREE slot into a BOOKED one backed by a new meeting.
	Book(ctx context.Context, in *model.MeetingInput) (*model.Meeting, error)
	// Cancel deletes the meeting and frees its slot in one unit.
	Cancel(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*model.Meeting, error)
	GetBySlotID(ctx context.Context, slotID string) (*model.Meeting, error)
	Update(ctx context.Context, id string, updates *model.MeetingUpdate) (*model.Meeting, error)
	AddParticipant(ctx context.Context, id, userID string) (*model.Meeting, error)
	RemoveParticipant(ctx context.Context, id, userID string) (*model.Meeting, error)
	ListByParticipant(ctx context.Context, userID string, from, to time.Time) ([]*model.Meeting, error)
	ListByOwner(ctx context.Context, userID string, from, to time.Time) ([]*model.Meeting, error)
}

// UserLookup is the part of the user store meetings depend on.
type UserLookup interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindMissing(ctx context.Context, ids []string) ([]string, error)
	FindCalendarByID(ctx context.Context, id string) (*model.Calendar, error)
}

type meetingService struct {
	repo      repository.MeetingRepository
	slots     slotsrepo.SlotRepository
	users     UserLookup
	validator *validator.MeetingValidator
	locker    locking.Locker
	publisher events.Publisher
	cfg       *config.Config
}

// NewMeetingService expects repo and slots to share one store so that a
// transaction opened by either covers writes made through both.
func NewMeetingService(
	repo repository.MeetingRepository,
	slots slotsrepo.SlotRepository,
	users UserLookup,
	validator *validator.MeetingValidator,
	locker locking.Locker,
	publisher events.Publisher,
	cfg *config.Config,
) MeetingService {
	return &meetingService{
		repo:      repo,
		slots:     slots,
		users:     users,
		validator: validator,
		locker:    locker,
		publisher: publisher,
		cfg:       cfg,
	}
}

func (s *meetingService) Book(ctx context.Context, in *model.MeetingInput) (*model.Meeting, error) {
	if in == nil {
		return nil, apperrors.InvalidInput("Meeting input cannot be empty")
	}
	in.SlotID = sanitizer.TrimAndNormalize(in.SlotID)
	in.Title = sanitizer.SanitizeTitle(in.Title)
	in.Description = sanitizer.SanitizeDescription(in.Description)
	in.ParticipantIDs = sanitizer.SanitizeIDs(in.ParticipantIDs)
	if err := s.validate(s.validator.Validate(in)); err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, locking.SlotKey(in.SlotID))
	if err != nil {
		s.cfg.Log.Warn("Failed to acquire slot lock", "slot_id", in.SlotID, "error", err)
		return nil, s.mapError(err, in.SlotID, "Failed to acquire slot lock")
	}
	defer unlock()

	var meeting *model.Meeting
	err = s.repo.ExecuteTransaction(ctx, func(ctx context.Context) error {
		slot, err := s.slots.FindByIDForUpdate(ctx, in.SlotID)
		if err != nil {
			return err
		}
		switch slot.Status {
		case model.SlotFree:
		case model.SlotBooked:
			return meetingserrors.ErrSlotAlreadyBooked
		default:
			return meetingserrors.ErrSlotNotAvailable
		}

		if _, err := s.repo.FindBySlotID(ctx, slot.ID); err == nil {
			return meetingserrors.ErrSlotAlreadyBooked
		} else if !errors.Is(err, meetingserrors.ErrMeetingNotFound) {
			return err
		}

		if err := s.checkParticipants(ctx, in.ParticipantIDs); err != nil {
			return err
		}

		calendar, err := s.users.FindCalendarByID(ctx, slot.CalendarID)
		if err != nil {
			return err
		}

		if err := state.Transition(slot.Status, model.SlotBooked, state.ActorBooking); err != nil {
			return err
		}
		version := slot.Version
		slot.Status = model.SlotBooked
		if err := s.slots.Update(ctx, slot, version); err != nil {
			return err
		}

		meeting = &model.Meeting{
			SlotID:         slot.ID,
			CalendarID:     slot.CalendarID,
			OwnerID:        calendar.UserID,
			Title:          in.Title,
			Description:    in.Description,
			ParticipantIDs: in.ParticipantIDs,
			StartTime:      slot.StartTime,
			EndTime:        slot.EndTime,
		}
		return s.repo.Create(ctx, meeting)
	})
	if err != nil {
		s.cfg.Log.Warn("Failed to book slot", "slot_id", in.SlotID, "error", err)
		return nil, s.mapError(err, in.SlotID, "Failed to book slot")
	}

	s.cfg.Log.Info("Meeting booked successfully",
		"id", meeting.ID,
		"slot_id", meeting.SlotID,
		"owner_id", meeting.OwnerID,
		"participants", len(meeting.ParticipantIDs),
	)
	events.Emit(ctx, s.publisher, s.cfg.Log, events.MeetingBooked, meeting.CalendarID, meeting)
	return meeting, nil
}

func (s *meetingService) Cancel(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.InvalidInput("Meeting ID cannot be empty")
	}

	var meeting *model.Meeting
	err := s.repo.ExecuteTransaction(ctx, func(ctx context.Context) error {
		var err error
		meeting, err = s.repo.FindByID(ctx, id)
		if err != nil {
			return err
		}

		slot, err := s.slots.FindByIDForUpdate(ctx, meeting.SlotID)
		if err != nil {
			return err
		}
		if err := state.Transition(slot.Status, model.SlotFree, state.ActorCancellation); err != nil {
			return err
		}
		version := slot.Version
		slot.Status = model.SlotFree
		if err := s.slots.Update(ctx, slot, version); err != nil {
			return err
		}

		return s.repo.Delete(ctx, id)
	})
	if err != nil {
		s.cfg.Log.Warn("Failed to cancel meeting", "id", id, "error", err)
		return s.mapError(err, id, "Failed to cancel meeting")
	}

	s.cfg.Log.Info("Meeting cancelled successfully", "id", id, "slot_id", meeting.SlotID)
	events.Emit(ctx, s.publisher, s.cfg.Log, events.MeetingCancelled, meeting.CalendarID, meeting)
	return nil
}

func (s *meetingService) GetByID(ctx context.Context, id string) (*model.Meeting, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Meeting ID cannot be empty")
	}

	meeting, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapError(err, id, "Failed to retrieve meeting")
	}
	return meeting, nil
}

func (s *meetingService) GetBySlotID(ctx context.Context, slotID string) (*model.Meeting, error) {
	if slotID == "" {
		return nil, apperrors.InvalidInput("Slot ID cannot be empty")
	}

	meeting, err := s.repo.FindBySlotID(ctx, slotID)
	if err != nil {
		return nil, s.mapError(err, slotID, "Failed to retrieve meeting")
	}
	return meeting, nil
}

func (s *meetingService) Update(ctx context.Context, id string, updates *model.MeetingUpdate) (*model.Meeting, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Meeting ID cannot be empty")
	}
	if updates == nil {
		return nil, apperrors.InvalidInput("Meeting update cannot be empty")
	}
	updates.Title = sanitizer.SanitizeTitle(updates.Title)
	updates.Description = sanitizer.SanitizeDescription(updates.Description)
	if updates.ParticipantIDs != nil {
		ids := sanitizer.SanitizeIDs(*updates.ParticipantIDs)
		updates.ParticipantIDs = &ids
	}
	if err := s.validate(s.validator.ValidateUpdate(updates)); err != nil {
		return nil, err
	}

	var meeting *model.Meeting
	err := s.repo.ExecuteTransaction(ctx, func(ctx context.Context) error {
		var err error
		meeting, err = s.repo.FindByID(ctx, id)
		if err != nil {
			return err
		}

		meeting.Title = updates.Title
		meeting.Description = updates.Description
		if updates.ParticipantIDs != nil {
			if err := s.checkParticipants(ctx, *updates.ParticipantIDs); err != nil {
				return err
			}
			meeting.ParticipantIDs = *updates.ParticipantIDs
		}
		return s.repo.Update(ctx, meeting)
	})
	if err != nil {
		s.cfg.Log.Warn("Failed to update meeting", "id", id, "error", err)
		return nil, s.mapError(err, id, "Failed to update meeting")
	}

	s.cfg.Log.Info("Meeting updated successfully", "id", id, "participants", len(meeting.ParticipantIDs))
	events.Emit(ctx, s.publisher, s.cfg.Log, events.MeetingUpdated, meeting.CalendarID, meeting)
	return meeting, nil
}

func (s *meetingService) AddParticipant(ctx context.Context, id, userID string) (*model.Meeting, error) {
	return s.changeParticipants(ctx, id, userID, func(ids []string) []string {
		if slices.Contains(ids, userID) {
			return nil
		}
		return sanitizer.SanitizeIDs(append(slices.Clone(ids), userID))
	})
}

func (s *meetingService) RemoveParticipant(ctx context.Context, id, userID string) (*model.Meeting, error) {
	return s.changeParticipants(ctx, id, userID, func(ids []string) []string {
		if !slices.Contains(ids, userID) {
			return nil
		}
		return slices.DeleteFunc(slices.Clone(ids), func(p string) bool { return p == userID })
	})
}

func (s *meetingService) ListByParticipant(ctx context.Context, userID string, from, to time.Time) ([]*model.Meeting, error) {
	if err := s.checkListArgs(ctx, userID, from, to); err != nil {
		return nil, err
	}

	meetings, err := s.repo.ListByParticipant(ctx, userID, from.UTC(), to.UTC())
	if err != nil {
		s.cfg.Log.Error("Failed to list meetings by participant", "user_id", userID, "error", err)
		return nil, apperrors.Internal("Failed to list meetings", err)
	}
	return meetings, nil
}

func (s *meetingService) ListByOwner(ctx context.Context, userID string, from, to time.Time) ([]*model.Meeting, error) {
	if err := s.checkListArgs(ctx, userID, from, to); err != nil {
		return nil, err
	}

	meetings, err := s.repo.ListByOwner(ctx, userID, from.UTC(), to.UTC())
	if err != nil {
		s.cfg.Log.Error("Failed to list meetings by owner", "user_id", userID, "error", err)
		return nil, apperrors.Internal("Failed to list meetings", err)
	}
	return meetings, nil
}

// --- Helpers ---

// changeParticipants applies change to the participant set. A nil result
// means the set already has the wanted shape and nothing is written.
func (s *meetingService) changeParticipants(ctx context.Context, id, userID string, change func([]string) []string) (*model.Meeting, error) {
	userID = sanitizer.TrimAndNormalize(userID)
	if id == "" || userID == "" {
		return nil, apperrors.InvalidInput("Meeting ID and user ID cannot be empty")
	}

	var (
		meeting *model.Meeting
		changed bool
	)
	err := s.repo.ExecuteTransaction(ctx, func(ctx context.Context) error {
		var err error
		meeting, err = s.repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := s.checkParticipants(ctx, []string{userID}); err != nil {
			return err
		}

		next := change(meeting.ParticipantIDs)
		if next == nil {
			return nil
		}
		changed = true
		meeting.ParticipantIDs = next
		return s.repo.Update(ctx, meeting)
	})
	if err != nil {
		s.cfg.Log.Warn("Failed to change meeting participants", "id", id, "user_id", userID, "error", err)
		return nil, s.mapError(err, id, "Failed to change meeting participants")
	}

	if changed {
		s.cfg.Log.Info("Meeting participants changed", "id", id, "user_id", userID, "participants", len(meeting.ParticipantIDs))
		events.Emit(ctx, s.publisher, s.cfg.Log, events.MeetingUpdated, meeting.CalendarID, meeting)
	}
	return meeting, nil
}

func (s *meetingService) checkParticipants(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	missing, err := s.users.FindMissing(ctx, ids)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return &meetingserrors.MissingParticipantsError{IDs: missing}
	}
	return nil
}

func (s *meetingService) checkListArgs(ctx context.Context, userID string, from, to time.Time) error {
	if userID == "" {
		return apperrors.InvalidInput("User ID cannot be empty")
	}
	if !from.Before(to) {
		return apperrors.InvalidInput("'from' must be before 'to'")
	}
	if _, err := s.users.FindByID(ctx, userID); err != nil {
		return s.mapError(err, userID, "Failed to retrieve user")
	}
	return nil
}

func (s *meetingService) validate(err error) error {
	if err == nil {
		return nil
	}
	s.cfg.Log.Warn("Meeting validation failed", "error", err)

	var verrs validation.ValidationErrors
	if errors.As(err, &verrs) {
		return apperrors.Validation("Meeting validation failed", verrs.Details())
	}
	return apperrors.Validation("Meeting validation failed", map[string]any{"error": err.Error()})
}

func (s *meetingService) mapError(err error, id, msg string) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var missing *meetingserrors.MissingParticipantsError
	switch {
	case errors.As(err, &missing):
		return apperrors.Validation("One or more participants do not exist", map[string]any{
			"missing_ids": missing.IDs,
		}).WithCause(err)
	case errors.Is(err, meetingserrors.ErrMeetingNotFound):
		return apperrors.NotFoundWithID("Meeting", id).WithCause(err)
	case errors.Is(err, meetingserrors.ErrSlotAlreadyBooked):
		return apperrors.Conflict("A meeting already exists for this slot").WithCause(err)
	case errors.Is(err, meetingserrors.ErrSlotNotAvailable):
		return apperrors.Conflict("Slot is not available for booking").WithCause(err)
	case errors.Is(err, slotserrors.ErrSlotNotFound):
		return apperrors.NotFoundWithID("Slot", id).WithCause(err)
	case errors.Is(err, userserrors.ErrUserNotFound):
		return apperrors.NotFoundWithID("User", id).WithCause(err)
	case errors.Is(err, slotserrors.ErrStaleVersion):
		return apperrors.Stale("Slot was modified concurrently. Re-read and retry.").WithCause(err)
	case errors.Is(err, slotserrors.ErrInvalidStateTransition):
		return apperrors.Conflict(err.Error()).WithCause(err)
	case errors.Is(err, locking.ErrLockTimeout),
		errors.Is(err, meetingserrors.ErrBookingTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return apperrors.Timeout("Timed out waiting for the slot. Retry shortly.").
			WithCause(fmt.Errorf("%w: %v", meetingserrors.ErrBookingTimeout, err))
	}

	s.cfg.Log.Error(msg, "id", id, "error", err)
	return apperrors.Internal(msg, err)
}
