package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"minidoodle/internal/events"
	"minidoodle/internal/slots/conflict"
	slotserrors "minidoodle/internal/slots/errors"
	"minidoodle/internal/slots/repository"
	"minidoodle/internal/slots/state"
	"minidoodle/internal/slots/validator"
	"minidoodle/pkg/config"
	apperrors "minidoodle/pkg/errors"
	"minidoodle/pkg/locking"
	"minidoodle/pkg/model"
	"minidoodle/pkg/validation"
)

type SlotService interface {
	// CreateFromRequest creates on CalendarID when set, else on UserID's calendar.
	CreateFromRequest(ctx context.Context, req *model.SlotCreateRequest) (*model.Slot, error)
	Create(ctx context.Context, calendarID string, in *model.SlotInput) (*model.Slot, error)
	CreateForUser(ctx context.Context, userID string, in *model.SlotInput) (*model.Slot, error)
	GetByID(ctx context.Context, id string) (*model.Slot, error)
	// Update and Delete compare against expectedVersion when it is set and
	// against the version read at the start of the call otherwise.
	Update(ctx context.Context, id string, in *model.SlotInput, expectedVersion *int64) (*model.Slot, error)
	Delete(ctx context.Context, id string, expectedVersion *int64) error
	SetStatus(ctx context.Context, id string, status model.SlotStatus, expectedVersion *int64) (*model.Slot, error)
	MarkBusy(ctx context.Context, id string) (*model.Slot, error)
	MarkFree(ctx context.Context, id string) (*model.Slot, error)
	ListByCalendar(ctx context.Context, calendarID string, from, to time.Time) ([]*model.Slot, error)
	ListByUser(ctx context.Context, userID string, from, to time.Time) ([]*model.Slot, error)
	Availability(ctx context.Context, userID string, from, to time.Time) (*model.Availability, error)
}

// CalendarLookup resolves calendars owned by the user store.
type CalendarLookup interface {
	FindCalendarByID(ctx context.Context, id string) (*model.Calendar, error)
	FindCalendarByUserID(ctx context.Context, userID string) (*model.Calendar, error)
}

type slotService struct {
	repo      repository.SlotRepository
	calendars CalendarLookup
	validator *validator.SlotValidator
	detector  *conflict.Detector
	locker    locking.Locker
	publisher events.Publisher
	cfg       *config.Config
	now       func() time.Time
}

func NewSlotService(
	repo repository.SlotRepository,
	calendars CalendarLookup,
	validator *validator.SlotValidator,
	locker locking.Locker,
	publisher events.Publisher,
	cfg *config.Config,
) SlotService {
	return &slotService{
		repo:      repo,
		calendars: calendars,
		validator: validator,
		detector:  conflict.NewDetector(repo),
		locker:    locker,
		publisher: publisher,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (s *slotService) CreateFromRequest(ctx context.Context, req *model.SlotCreateRequest) (*model.Slot, error) {
	if req == nil {
		return nil, apperrors.InvalidInput("Slot input cannot be empty")
	}
	if err := s.validate(s.validator.ValidateCreate(req)); err != nil {
		return nil, err
	}
	if req.CalendarID != "" {
		return s.Create(ctx, req.CalendarID, &req.SlotInput)
	}
	return s.CreateForUser(ctx, req.UserID, &req.SlotInput)
}

func (s *slotService) Create(ctx context.Context, calendarID string, in *model.SlotInput) (*model.Slot, error) {
	if calendarID == "" {
		return nil, apperrors.InvalidInput("Calendar ID cannot be empty")
	}

	start, end, err := s.resolveInterval(in)
	if err != nil {
		return nil, err
	}

	calendar, err := s.calendars.FindCalendarByID(ctx, calendarID)
	if err != nil {
		return nil, s.mapError(err, calendarID, "Failed to retrieve calendar")
	}
	return s.create(ctx, calendar, start, end)
}

func (s *slotService) CreateForUser(ctx context.Context, userID string, in *model.SlotInput) (*model.Slot, error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("User ID cannot be empty")
	}

	start, end, err := s.resolveInterval(in)
	if err != nil {
		return nil, err
	}

	calendar, err := s.calendars.FindCalendarByUserID(ctx, userID)
	if err != nil {
		return nil, s.mapError(err, userID, "Failed to retrieve calendar")
	}
	return s.create(ctx, calendar, start, end)
}

func (s *slotService) create(ctx context.Context, calendar *model.Calendar, start, end time.Time) (*model.Slot, error) {
	slot := &model.Slot{
		CalendarID: calendar.ID,
		StartTime:  start,
		EndTime:    end,
		Status:     model.SlotFree,
	}

	err := s.withCalendarLock(ctx, calendar.ID, func(ctx context.Context) error {
		if err := s.repo.LockCalendar(ctx, calendar.ID); err != nil {
			return err
		}
		if err := s.detector.Check(ctx, calendar.ID, start, end, ""); err != nil {
			return err
		}
		return s.repo.Create(ctx, slot)
	})
	if err != nil {
		s.cfg.Log.Warn("Failed to create slot",
			"calendar_id", calendar.ID,
			"start_time", start,
			"end_time", end,
			"error", err,
		)
		return nil, s.mapError(err, calendar.ID, "Failed to create slot")
	}

	s.cfg.Log.Info("Slot created successfully",
		"id", slot.ID,
		"calendar_id", slot.CalendarID,
		"start_time", slot.StartTime,
		"end_time", slot.EndTime,
	)
	events.Emit(ctx, s.publisher, s.cfg.Log, events.SlotCreated, slot.CalendarID, slot)
	return slot, nil
}

func (s *slotService) GetByID(ctx context.Context, id string) (*model.Slot, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Slot ID cannot be empty")
	}

	slot, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapError(err, id, "Failed to retrieve slot")
	}
	return slot, nil
}

func (s *slotService) Update(ctx context.Context, id string, in *model.SlotInput, expectedVersion *int64) (*model.Slot, error) {
	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := state.CanEdit(existing.Status); err != nil {
		return nil, s.mapError(err, id, "")
	}

	start, end, err := s.resolveInterval(in)
	if err != nil {
		return nil, err
	}

	version := versionOr(expectedVersion, existing.Version)
	var updated *model.Slot
	err = s.withCalendarLock(ctx, existing.CalendarID, func(ctx context.Context) error {
		if err := s.repo.LockCalendar(ctx, existing.CalendarID); err != nil {
			return err
		}

		current, err := s.repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := state.CanEdit(current.Status); err != nil {
			return err
		}
		if current.Version != version {
			return slotserrors.ErrStaleVersion
		}
		if err := s.detector.Check(ctx, current.CalendarID, start, end, current.ID); err != nil {
			return err
		}

		current.StartTime = start
		current.EndTime = end
		if err := s.repo.Update(ctx, current, version); err != nil {
			return err
		}
		updated = current
		return nil
	})
	if err != nil {
		s.cfg.Log.Warn("Failed to update slot", "id", id, "error", err)
		return nil, s.mapError(err, id, "Failed to update slot")
	}

	s.cfg.Log.Info("Slot updated successfully",
		"id", id,
		"version", updated.Version,
		"start_time", updated.StartTime,
		"end_time", updated.EndTime,
	)
	events.Emit(ctx, s.publisher, s.cfg.Log, events.SlotUpdated, updated.CalendarID, updated)
	return updated, nil
}

func (s *slotService) Delete(ctx context.Context, id string, expectedVersion *int64) error {
	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := state.CanDelete(existing.Status); err != nil {
		return s.mapError(err, id, "")
	}

	var deleted *model.Slot
	err = s.withCalendarLock(ctx, existing.CalendarID, func(ctx context.Context) error {
		current, err := s.repo.FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := state.CanDelete(current.Status); err != nil {
			return err
		}
		version := versionOr(expectedVersion, existing.Version)
		if current.Version != version {
			return slotserrors.ErrStaleVersion
		}
		if err := s.repo.Delete(ctx, id, version); err != nil {
			return err
		}
		deleted = current
		return nil
	})
	if err != nil {
		s.cfg.Log.Warn("Failed to delete slot", "id", id, "error", err)
		return s.mapError(err, id, "Failed to delete slot")
	}

	s.cfg.Log.Info("Slot deleted successfully", "id", id, "calendar_id", deleted.CalendarID)
	events.Emit(ctx, s.publisher, s.cfg.Log, events.SlotDeleted, deleted.CalendarID, deleted)
	return nil
}

func (s *slotService) SetStatus(ctx context.Context, id string, status model.SlotStatus, expectedVersion *int64) (*model.Slot, error) {
	if err := s.validate(s.validator.ValidateStatusChange(&model.SlotStatusChange{Status: status})); err != nil {
		return nil, err
	}

	slot, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := state.Transition(slot.Status, status, state.ActorOwner); err != nil {
		return nil, s.mapError(err, id, "")
	}
	if expectedVersion != nil && *expectedVersion != slot.Version {
		return nil, s.mapError(slotserrors.ErrStaleVersion, id, "")
	}
	if slot.Status == status {
		return slot, nil
	}

	previous := slot.Status
	version := slot.Version
	slot.Status = status
	if err := s.repo.Update(ctx, slot, version); err != nil {
		s.cfg.Log.Warn("Failed to change slot status", "id", id, "status", status, "error", err)
		return nil, s.mapError(err, id, "Failed to change slot status")
	}

	s.cfg.Log.Info("Slot status changed successfully",
		"id", id,
		"from", previous,
		"to", status,
		"version", slot.Version,
	)
	events.Emit(ctx, s.publisher, s.cfg.Log, events.SlotStatusChanged, slot.CalendarID, map[string]any{
		"slot":            slot,
		"previous_status": previous,
	})
	return slot, nil
}

func (s *slotService) MarkBusy(ctx context.Context, id string) (*model.Slot, error) {
	return s.SetStatus(ctx, id, model.SlotBusy, nil)
}

func (s *slotService) MarkFree(ctx context.Context, id string) (*model.Slot, error) {
	return s.SetStatus(ctx, id, model.SlotFree, nil)
}

func (s *slotService) ListByCalendar(ctx context.Context, calendarID string, from, to time.Time) ([]*model.Slot, error) {
	if calendarID == "" {
		return nil, apperrors.InvalidInput("Calendar ID cannot be empty")
	}
	if _, err := s.calendars.FindCalendarByID(ctx, calendarID); err != nil {
		return nil, s.mapError(err, calendarID, "Failed to retrieve calendar")
	}
	return s.list(ctx, calendarID, from, to)
}

func (s *slotService) ListByUser(ctx context.Context, userID string, from, to time.Time) ([]*model.Slot, error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("User ID cannot be empty")
	}
	calendar, err := s.calendars.FindCalendarByUserID(ctx, userID)
	if err != nil {
		return nil, s.mapError(err, userID, "Failed to retrieve calendar")
	}
	return s.list(ctx, calendar.ID, from, to)
}

// Availability partitions the window in one read: FREE slots on one side,
// BUSY and BOOKED on the other.
func (s *slotService) Availability(ctx context.Context, userID string, from, to time.Time) (*model.Availability, error) {
	slots, err := s.ListByUser(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}

	availability := &model.Availability{
		FreeSlots:  []*model.Slot{},
		BusySlots:  []*model.Slot{},
		RangeStart: from,
		RangeEnd:   to,
	}
	for _, slot := range slots {
		if slot.Status == model.SlotFree {
			availability.FreeSlots = append(availability.FreeSlots, slot)
		} else {
			availability.BusySlots = append(availability.BusySlots, slot)
		}
	}
	availability.TotalFree = len(availability.FreeSlots)
	availability.TotalBusy = len(availability.BusySlots)

	s.cfg.Log.Debug("Availability computed",
		"user_id", userID,
		"from", from,
		"to", to,
		"free", availability.TotalFree,
		"busy", availability.TotalBusy,
	)
	return availability, nil
}

// --- Helpers ---

func (s *slotService) list(ctx context.Context, calendarID string, from, to time.Time) ([]*model.Slot, error) {
	if !from.Before(to) {
		return nil, apperrors.InvalidInput("'from' must be before 'to'")
	}

	slots, err := s.repo.FindByCalendar(ctx, calendarID, from.UTC(), to.UTC())
	if err != nil {
		s.cfg.Log.Error("Failed to list slots", "calendar_id", calendarID, "error", err)
		return nil, apperrors.Internal("Failed to list slots", err)
	}
	return slots, nil
}

// resolveInterval validates the request shape and then the interval rules.
// No lock is held here.
func (s *slotService) resolveInterval(in *model.SlotInput) (time.Time, time.Time, error) {
	if in == nil {
		return time.Time{}, time.Time{}, apperrors.InvalidInput("Slot input cannot be empty")
	}
	if err := s.validate(s.validator.ValidateInput(in)); err != nil {
		return time.Time{}, time.Time{}, err
	}

	start, end := validator.Resolve(in)
	if err := s.validator.ValidateInterval(start, end, s.now()); err != nil {
		s.cfg.Log.Warn("Slot interval rejected", "start_time", start, "end_time", end, "error", err)
		return time.Time{}, time.Time{}, s.mapError(err, "", "")
	}
	return start, end, nil
}

// withCalendarLock runs fn in a transaction while holding the calendar's
// writer lock, so the overlap check and the write it guards are atomic.
func (s *slotService) withCalendarLock(ctx context.Context, calendarID string, fn func(ctx context.Context) error) error {
	unlock, err := s.locker.Lock(ctx, locking.CalendarKey(calendarID))
	if err != nil {
		return err
	}
	defer unlock()

	return s.repo.ExecuteTransaction(ctx, fn)
}

func (s *slotService) validate(err error) error {
	if err == nil {
		return nil
	}
	s.cfg.Log.Warn("Slot validation failed", "error", err)

	var verrs validation.ValidationErrors
	if errors.As(err, &verrs) {
		return apperrors.Validation("Slot validation failed", verrs.Details())
	}
	return apperrors.Validation("Slot validation failed", map[string]any{"error": err.Error()})
}

func (s *slotService) mapError(err error, id, msg string) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	switch {
	case errors.Is(err, slotserrors.ErrInvalidInterval),
		errors.Is(err, slotserrors.ErrPastStartTime),
		errors.Is(err, slotserrors.ErrTooShort),
		errors.Is(err, slotserrors.ErrTooLong):
		return apperrors.Validation(err.Error(), nil).WithCause(err)
	case errors.Is(err, slotserrors.ErrSlotConflict):
		return apperrors.Conflict("Slot overlaps an existing slot on this calendar").WithCause(err)
	case errors.Is(err, slotserrors.ErrSlotNotFound):
		return apperrors.NotFoundWithID("Slot", id).WithCause(err)
	case errors.Is(err, slotserrors.ErrCalendarNotFound):
		return apperrors.NotFoundWithID("Calendar", id).WithCause(err)
	case errors.Is(err, slotserrors.ErrSlotLocked):
		return apperrors.Conflict("Slot is booked. Cancel the meeting first.").WithCause(err)
	case errors.Is(err, slotserrors.ErrInvalidStateTransition):
		return apperrors.Conflict(err.Error()).WithCause(err)
	case errors.Is(err, slotserrors.ErrStaleVersion):
		return apperrors.Stale("Slot was modified concurrently. Re-read and retry.").WithCause(err)
	case errors.Is(err, locking.ErrLockTimeout), errors.Is(err, context.DeadlineExceeded):
		return apperrors.Timeout("Timed out waiting for the calendar lock").WithCause(err)
	}

	if msg == "" {
		msg = fmt.Sprintf("Slot operation failed for %s", id)
	}
	return apperrors.Internal(msg, err)
}

func versionOr(expected *int64, fallback int64) int64 {
	if expected != nil {
		return *expected
	}
	return fallback
}
