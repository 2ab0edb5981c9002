package validator

import (
	"fmt"
	"time"

	slotserrors "minidoodle/internal/slots/errors"
	"minidoodle/pkg/interval"
	"minidoodle/pkg/logger"
	"minidoodle/pkg/model"
	"minidoodle/pkg/validation"

	"github.com/go-playground/validator/v10"
)

type SlotValidator struct {
	validate    *validator.Validate
	logger      *logger.Logger
	minDuration int64
	maxDuration int64
}

// NewSlotValidator bounds slot length to [minMinutes, maxMinutes].
func NewSlotValidator(log *logger.Logger, minMinutes, maxMinutes int) *SlotValidator {
	log.Info("Slot validator initialized successfully",
		"min_duration_minutes", minMinutes,
		"max_duration_minutes", maxMinutes,
	)

	return &SlotValidator{
		validate:    validation.New(),
		logger:      log,
		minDuration: int64(minMinutes),
		maxDuration: int64(maxMinutes),
	}
}

func (v *SlotValidator) ValidateInput(in *model.SlotInput) error {
	return validation.Struct(v.validate, in)
}

func (v *SlotValidator) ValidateCreate(req *model.SlotCreateRequest) error {
	return validation.Struct(v.validate, req)
}

func (v *SlotValidator) ValidateStatusChange(change *model.SlotStatusChange) error {
	return validation.Struct(v.validate, change)
}

// ValidateInterval applies the checks in a fixed order so a request that
// breaks several rules always reports the same one.
func (v *SlotValidator) ValidateInterval(start, end, now time.Time) error {
	if !start.Before(end) {
		return fmt.Errorf("%w: start %s, end %s", slotserrors.ErrInvalidInterval,
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	if start.Before(now) {
		return slotserrors.ErrPastStartTime
	}

	minutes := interval.DurationMinutes(start, end)
	if minutes < v.minDuration {
		return fmt.Errorf("%w: %d minutes, minimum is %d", slotserrors.ErrTooShort, minutes, v.minDuration)
	}
	if minutes > v.maxDuration {
		return fmt.Errorf("%w: %d minutes, maximum is %d", slotserrors.ErrTooLong, minutes, v.maxDuration)
	}
	return nil
}

// Resolve returns the interval described by in. DurationMinutes wins over
// EndTime when both are present.
func Resolve(in *model.SlotInput) (time.Time, time.Time) {
	start := in.StartTime.UTC().Truncate(time.Millisecond)
	if in.DurationMinutes != nil {
		return start, interval.EndFromDuration(start, *in.DurationMinutes)
	}
	return start, in.EndTime.UTC().Truncate(time.Millisecond)
}
