package validator

import (
	"errors"
	"testing"
	"time"

	slotserrors "minidoodle/internal/slots/errors"
	"minidoodle/pkg/logger"
	"minidoodle/pkg/model"
	"minidoodle/pkg/validation"
)

func newTestValidator() *SlotValidator {
	return NewSlotValidator(logger.Discard(), 15, 480)
}

func TestValidateInterval(t *testing.T) {
	v := newTestValidator()
	now := time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC)
	start := now.Add(time.Hour)

	tests := []struct {
		name    string
		start   time.Time
		end     time.Time
		wantErr error
	}{
		{"minimum duration", start, start.Add(15 * time.Minute), nil},
		{"maximum duration", start, start.Add(480 * time.Minute), nil},
		{"starting exactly now", now, now.Add(time.Hour), nil},
		{"fourteen minutes", start, start.Add(14 * time.Minute), slotserrors.ErrTooShort},
		{"just under fifteen minutes", start, start.Add(15*time.Minute - time.Second), slotserrors.ErrTooShort},
		{"481 minutes", start, start.Add(481 * time.Minute), slotserrors.ErrTooLong},
		{"end before start", start, start.Add(-time.Hour), slotserrors.ErrInvalidInterval},
		{"zero length", start, start, slotserrors.ErrInvalidInterval},
		{"in the past", now.Add(-time.Hour), now, slotserrors.ErrPastStartTime},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateInterval(tt.start, tt.end, now)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidateInterval_Ordering(t *testing.T) {
	v := newTestValidator()
	now := time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC)

	// inverted and in the past
	err := v.ValidateInterval(now.Add(-time.Hour), now.Add(-2*time.Hour), now)
	if !errors.Is(err, slotserrors.ErrInvalidInterval) {
		t.Errorf("expected InvalidInterval first, got %v", err)
	}

	// too short and in the past
	err = v.ValidateInterval(now.Add(-time.Hour), now.Add(-time.Hour+5*time.Minute), now)
	if !errors.Is(err, slotserrors.ErrPastStartTime) {
		t.Errorf("expected PastStartTime before TooShort, got %v", err)
	}
}

func TestResolve_DurationWins(t *testing.T) {
	start := time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)
	minutes := 30

	gotStart, gotEnd := Resolve(&model.SlotInput{StartTime: &start, EndTime: &end, DurationMinutes: &minutes})
	if !gotStart.Equal(start) {
		t.Errorf("unexpected start %v", gotStart)
	}
	if !gotEnd.Equal(start.Add(30 * time.Minute)) {
		t.Errorf("expected duration to win, got end %v", gotEnd)
	}

	_, gotEnd = Resolve(&model.SlotInput{StartTime: &start, EndTime: &end})
	if !gotEnd.Equal(end) {
		t.Errorf("expected end time to be used, got %v", gotEnd)
	}
}

func TestValidateInput(t *testing.T) {
	v := newTestValidator()
	start := time.Now().Add(time.Hour)

	var verrs validation.ValidationErrors
	if err := v.ValidateInput(&model.SlotInput{StartTime: &start}); !errors.As(err, &verrs) {
		t.Fatalf("expected missing end to fail, got %v", err)
	}

	zero := 0
	if err := v.ValidateInput(&model.SlotInput{StartTime: &start, DurationMinutes: &zero}); err == nil {
		t.Fatal("expected zero duration to fail")
	}

	minutes := 30
	if err := v.ValidateInput(&model.SlotInput{StartTime: &start, DurationMinutes: &minutes}); err != nil {
		t.Fatalf("expected duration-only input to pass, got %v", err)
	}
}

func TestValidateStatusChange(t *testing.T) {
	v := newTestValidator()
	if err := v.ValidateStatusChange(&model.SlotStatusChange{Status: "TENTATIVE"}); err == nil {
		t.Fatal("expected unknown status to fail")
	}
	if err := v.ValidateStatusChange(&model.SlotStatusChange{Status: model.SlotBusy}); err != nil {
		t.Fatalf("expected BUSY to pass, got %v", err)
	}
}
