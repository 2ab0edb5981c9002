package service

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"minidoodle/internal/events"
	"minidoodle/internal/slots/repository"
	"minidoodle/internal/slots/validator"
	usersrepo "minidoodle/internal/users/repository"
	"minidoodle/pkg/config"
	"minidoodle/pkg/db/memory"
	apperrors "minidoodle/pkg/errors"
	"minidoodle/pkg/locking"
	"minidoodle/pkg/logger"
	"minidoodle/pkg/model"
)

var testNow = time.Date(2030, 1, 7, 8, 0, 0, 0, time.UTC)

type fixture struct {
	svc      *slotService
	repo     repository.SlotRepository
	recorder *events.Recorder
	user     *model.User
	calendar *model.Calendar
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	log := logger.Discard()
	cfg := &config.Config{
		Log:                log,
		MinSlotDurationMin: 15,
		MaxSlotDurationMin: 480,
	}

	store := memory.New()
	users := usersrepo.NewMemoryUserRepository(store)
	slots := repository.NewMemorySlotRepository(store)

	user := &model.User{Email: "owner@example.com", Name: "Owner"}
	calendar := &model.Calendar{Timezone: "UTC"}
	if err := users.Create(ctx, user, calendar); err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}

	recorder := &events.Recorder{}
	svc := NewSlotService(
		slots,
		users,
		validator.NewSlotValidator(log, cfg.MinSlotDurationMin, cfg.MaxSlotDurationMin),
		locking.NewKeyedMutex(0),
		recorder,
		cfg,
	).(*slotService)
	svc.now = func() time.Time { return testNow }

	return &fixture{svc: svc, repo: slots, recorder: recorder, user: user, calendar: calendar}
}

// at returns testNow shifted by the given number of minutes.
func at(minutes int) time.Time {
	return testNow.Add(time.Duration(minutes) * time.Minute)
}

func input(startMin, endMin int) *model.SlotInput {
	start, end := at(startMin), at(endMin)
	return &model.SlotInput{StartTime: &start, EndTime: &end}
}

func (f *fixture) mustCreate(t *testing.T, startMin, endMin int) *model.Slot {
	t.Helper()
	slot, err := f.svc.Create(context.Background(), f.calendar.ID, input(startMin, endMin))
	if err != nil {
		t.Fatalf("failed to create slot [%d, %d): %v", startMin, endMin, err)
	}
	return slot
}

func (f *fixture) forceStatus(t *testing.T, slot *model.Slot, status model.SlotStatus) {
	t.Helper()
	slot.Status = status
	if err := f.repo.Update(context.Background(), slot, slot.Version); err != nil {
		t.Fatalf("failed to force status: %v", err)
	}
}

func expectAppError(t *testing.T, err error, status int, reason string) *apperrors.AppError {
	t.Helper()
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %T: %v", err, err)
	}
	if appErr.StatusCode() != status {
		t.Fatalf("expected status %d, got %d (%v)", status, appErr.StatusCode(), err)
	}
	if reason != "" && appErr.Details[apperrors.DetailReason] != reason {
		t.Fatalf("expected reason %s, got %v", reason, appErr.Details[apperrors.DetailReason])
	}
	return appErr
}

func ptr[T any](v T) *T {
	return &v
}

func TestCreate_Success(t *testing.T) {
	f := newFixture(t)

	slot := f.mustCreate(t, 120, 180)

	if slot.ID == "" {
		t.Error("expected generated id")
	}
	if slot.Status != model.SlotFree {
		t.Errorf("expected FREE, got %s", slot.Status)
	}
	if slot.Version != 1 {
		t.Errorf("expected version 1, got %d", slot.Version)
	}
	if !slot.StartTime.Equal(at(120)) || !slot.EndTime.Equal(at(180)) {
		t.Errorf("unexpected interval %s - %s", slot.StartTime, slot.EndTime)
	}

	evts := f.recorder.Events()
	if len(evts) != 1 || evts[0].Type != events.SlotCreated {
		t.Fatalf("expected one slot.created event, got %v", f.recorder.Types())
	}
	if evts[0].Key != f.calendar.ID {
		t.Errorf("expected event key %s, got %s", f.calendar.ID, evts[0].Key)
	}
}

func TestCreate_DurationWinsOverEndTime(t *testing.T) {
	f := newFixture(t)
	start, end := at(60), at(600)

	slot, err := f.svc.Create(context.Background(), f.calendar.ID, &model.SlotInput{
		StartTime:       &start,
		EndTime:         &end,
		DurationMinutes: ptr(30),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !slot.EndTime.Equal(at(90)) {
		t.Errorf("expected end at start+30m, got %s", slot.EndTime)
	}
}

func TestCreate_ForUser(t *testing.T) {
	f := newFixture(t)

	slot, err := f.svc.CreateForUser(context.Background(), f.user.ID, input(60, 120))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if slot.CalendarID != f.calendar.ID {
		t.Errorf("expected calendar %s, got %s", f.calendar.ID, slot.CalendarID)
	}

	_, err = f.svc.CreateForUser(context.Background(), "missing-user", input(60, 120))
	expectAppError(t, err, http.StatusNotFound, "CalendarNotFound")
}

func TestCreate_IntervalRules(t *testing.T) {
	tests := []struct {
		name   string
		start  int
		end    int
		reason string
	}{
		{"end before start", 120, 60, "InvalidInterval"},
		{"zero length", 120, 120, "InvalidInterval"},
		{"starts in the past", -30, 30, "PastStartTime"},
		{"past and inverted reports inverted", -30, -60, "InvalidInterval"},
		{"fourteen minutes", 60, 74, "TooShort"},
		{"longer than eight hours", 60, 60 + 481, "TooLong"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.Create(context.Background(), f.calendar.ID, input(tt.start, tt.end))
			expectAppError(t, err, http.StatusUnprocessableEntity, tt.reason)
			if len(f.recorder.Events()) != 0 {
				t.Error("rejected create must not emit events")
			}
		})
	}
}

func TestCreate_BoundaryDurationsAccepted(t *testing.T) {
	f := newFixture(t)
	f.mustCreate(t, 60, 75)
	f.mustCreate(t, 100, 100+480)
}

func TestCreate_MissingStartIsValidationError(t *testing.T) {
	f := newFixture(t)
	end := at(60)

	_, err := f.svc.Create(context.Background(), f.calendar.ID, &model.SlotInput{EndTime: &end})
	appErr := expectAppError(t, err, http.StatusUnprocessableEntity, "")
	if appErr.Code != apperrors.CodeValidation {
		t.Errorf("expected validation code, got %s", appErr.Code)
	}
}

func TestCreate_UnknownCalendar(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), "nope", input(60, 120))
	expectAppError(t, err, http.StatusNotFound, "CalendarNotFound")
}

func TestCreate_OverlapRejectedAdjacentAllowed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mustCreate(t, 60, 120)

	_, err := f.svc.Create(ctx, f.calendar.ID, input(90, 150))
	expectAppError(t, err, http.StatusConflict, "SlotConflict")

	_, err = f.svc.Create(ctx, f.calendar.ID, input(30, 75))
	expectAppError(t, err, http.StatusConflict, "SlotConflict")

	f.mustCreate(t, 120, 180)
	f.mustCreate(t, 30, 60)
}

func TestCreate_OverlapIgnoresStatus(t *testing.T) {
	f := newFixture(t)
	slot := f.mustCreate(t, 60, 120)
	f.forceStatus(t, slot, model.SlotBusy)

	_, err := f.svc.Create(context.Background(), f.calendar.ID, input(60, 120))
	expectAppError(t, err, http.StatusConflict, "SlotConflict")
}

func TestCreate_ConcurrentOverlappingOnlyOneWins(t *testing.T) {
	f := newFixture(t)
	const workers = 16

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(offset int) {
			defer wg.Done()
			_, err := f.svc.Create(context.Background(), f.calendar.ID, input(60+offset, 120+offset))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case apperrors.AsAppError(err).StatusCode() == http.StatusConflict:
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i % 4)
	}
	wg.Wait()

	if successes != 1 {
		t.Fatalf("expected exactly one success, got %d", successes)
	}
	if conflicts != workers-1 {
		t.Errorf("expected %d conflicts, got %d", workers-1, conflicts)
	}
}

func TestCreate_PublishFailureDoesNotFail(t *testing.T) {
	f := newFixture(t)
	f.recorder.Err = errors.New("broker down")

	if _, err := f.svc.Create(context.Background(), f.calendar.ID, input(60, 120)); err != nil {
		t.Fatalf("expected success despite publish failure, got %v", err)
	}
}

func TestGetByID(t *testing.T) {
	f := newFixture(t)
	created := f.mustCreate(t, 60, 120)

	got, err := f.svc.GetByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != created.ID {
		t.Errorf("expected %s, got %s", created.ID, got.ID)
	}

	_, err = f.svc.GetByID(context.Background(), "missing")
	expectAppError(t, err, http.StatusNotFound, "SlotNotFound")

	_, err = f.svc.GetByID(context.Background(), "")
	expectAppError(t, err, http.StatusBadRequest, "")
}

func TestUpdate_MovesSlotAndBumpsVersion(t *testing.T) {
	f := newFixture(t)
	slot := f.mustCreate(t, 60, 120)

	updated, err := f.svc.Update(context.Background(), slot.ID, input(90, 150), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Version != 2 {
		t.Errorf("expected version 2, got %d", updated.Version)
	}
	if !updated.StartTime.Equal(at(90)) || !updated.EndTime.Equal(at(150)) {
		t.Errorf("unexpected interval %s - %s", updated.StartTime, updated.EndTime)
	}

	types := f.recorder.Types()
	if len(types) != 2 || types[1] != events.SlotUpdated {
		t.Errorf("expected slot.updated after slot.created, got %v", types)
	}
}

func TestUpdate_OverlapWithOtherSlot(t *testing.T) {
	f := newFixture(t)
	f.mustCreate(t, 60, 120)
	second := f.mustCreate(t, 120, 180)

	_, err := f.svc.Update(context.Background(), second.ID, input(100, 160), nil)
	expectAppError(t, err, http.StatusConflict, "SlotConflict")

	got, _ := f.svc.GetByID(context.Background(), second.ID)
	if got.Version != 1 || !got.StartTime.Equal(at(120)) {
		t.Errorf("rejected update must leave the slot unchanged, got %+v", got)
	}
}

func TestUpdate_StaleVersion(t *testing.T) {
	f := newFixture(t)
	slot := f.mustCreate(t, 60, 120)

	if _, err := f.svc.Update(context.Background(), slot.ID, input(60, 90), ptr(int64(1))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := f.svc.Update(context.Background(), slot.ID, input(60, 100), ptr(int64(1)))
	appErr := expectAppError(t, err, http.StatusConflict, "StaleVersion")
	if !appErr.Retryable {
		t.Error("stale version must be retryable")
	}
}

func TestUpdate_BookedIsLocked(t *testing.T) {
	f := newFixture(t)
	slot := f.mustCreate(t, 60, 120)
	f.forceStatus(t, slot, model.SlotBooked)

	_, err := f.svc.Update(context.Background(), slot.ID, input(60, 90), nil)
	expectAppError(t, err, http.StatusConflict, "SlotLockedError")
}

func TestUpdate_ValidatesInterval(t *testing.T) {
	f := newFixture(t)
	slot := f.mustCreate(t, 60, 120)

	_, err := f.svc.Update(context.Background(), slot.ID, input(60, 65), nil)
	expectAppError(t, err, http.StatusUnprocessableEntity, "TooShort")

	_, err = f.svc.Update(context.Background(), "missing", input(60, 120), nil)
	expectAppError(t, err, http.StatusNotFound, "SlotNotFound")
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	slot := f.mustCreate(t, 60, 120)

	if err := f.svc.Delete(ctx, slot.ID, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := f.svc.GetByID(ctx, slot.ID)
	expectAppError(t, err, http.StatusNotFound, "SlotNotFound")

	err = f.svc.Delete(ctx, slot.ID, nil)
	expectAppError(t, err, http.StatusNotFound, "SlotNotFound")

	types := f.recorder.Types()
	if types[len(types)-1] != events.SlotDeleted {
		t.Errorf("expected slot.deleted last, got %v", types)
	}

	// freed interval can be reused
	f.mustCreate(t, 60, 120)
}

func TestDelete_BookedAndStale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	booked := f.mustCreate(t, 60, 120)
	f.forceStatus(t, booked, model.SlotBooked)
	err := f.svc.Delete(ctx, booked.ID, nil)
	expectAppError(t, err, http.StatusConflict, "SlotLockedError")

	free := f.mustCreate(t, 200, 260)
	err = f.svc.Delete(ctx, free.ID, ptr(int64(7)))
	expectAppError(t, err, http.StatusConflict, "StaleVersion")
}

// racingSlotRepository lets a test run a concurrent write at a chosen point
// of an in-flight operation.
type racingSlotRepository struct {
	repository.SlotRepository
	beforeLockedRead func(ctx context.Context, id string)
	beforeDelete     func(ctx context.Context, id string)
}

func (r *racingSlotRepository) FindByIDForUpdate(ctx context.Context, id string) (*model.Slot, error) {
	if r.beforeLockedRead != nil {
		r.beforeLockedRead(ctx, id)
	}
	return r.SlotRepository.FindByIDForUpdate(ctx, id)
}

func (r *racingSlotRepository) Delete(ctx context.Context, id string, expectedVersion int64) error {
	if r.beforeDelete != nil {
		r.beforeDelete(ctx, id)
	}
	return r.SlotRepository.Delete(ctx, id, expectedVersion)
}

func TestDelete_BookingCommittedMidway(t *testing.T) {
	tests := []struct {
		name    string
		atRead  bool
		version *int64
		reason  string
	}{
		{name: "booked before locked read, caller sends new version", atRead: true, version: ptr(int64(2)), reason: "SlotLockedError"},
		{name: "booked before delete, no version", atRead: false, version: nil, reason: "SlotLockedError"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			slot := f.mustCreate(t, 60, 120)

			book := func(ctx context.Context, id string) {
				current, err := f.repo.FindByID(ctx, id)
				if err != nil {
					t.Fatalf("failed to read slot: %v", err)
				}
				if current.Status == model.SlotBooked {
					return
				}
				current.Status = model.SlotBooked
				if err := f.repo.Update(ctx, current, current.Version); err != nil {
					t.Fatalf("failed to book slot: %v", err)
				}
			}
			racing := &racingSlotRepository{SlotRepository: f.repo}
			if tt.atRead {
				racing.beforeLockedRead = book
			} else {
				racing.beforeDelete = book
			}
			f.svc.repo = racing

			err := f.svc.Delete(ctx, slot.ID, tt.version)
			expectAppError(t, err, http.StatusConflict, tt.reason)

			got, err := f.repo.FindByID(ctx, slot.ID)
			if err != nil {
				t.Fatalf("expected booked slot to survive, got %v", err)
			}
			if got.Status != model.SlotBooked {
				t.Errorf("expected BOOKED, got %s", got.Status)
			}
			for _, typ := range f.recorder.Types() {
				if typ == events.SlotDeleted {
					t.Errorf("unexpected slot.deleted event")
				}
			}
		})
	}
}

func TestSetStatus_OwnerTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	slot := f.mustCreate(t, 60, 120)

	busy, err := f.svc.MarkBusy(ctx, slot.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if busy.Status != model.SlotBusy || busy.Version != 2 {
		t.Errorf("expected BUSY v2, got %s v%d", busy.Status, busy.Version)
	}

	same, err := f.svc.MarkBusy(ctx, slot.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if same.Version != 2 {
		t.Errorf("repeated status must not bump version, got %d", same.Version)
	}

	free, err := f.svc.MarkFree(ctx, slot.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if free.Status != model.SlotFree || free.Version != 3 {
		t.Errorf("expected FREE v3, got %s v%d", free.Status, free.Version)
	}

	last := f.recorder.Events()[len(f.recorder.Events())-1]
	if last.Type != events.SlotStatusChanged {
		t.Errorf("expected slot.status_changed, got %s", last.Type)
	}
}

func TestSetStatus_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	slot := f.mustCreate(t, 60, 120)

	_, err := f.svc.SetStatus(ctx, slot.ID, model.SlotBooked, nil)
	expectAppError(t, err, http.StatusConflict, "InvalidStateTransition")

	_, err = f.svc.SetStatus(ctx, slot.ID, model.SlotStatus("TENTATIVE"), nil)
	expectAppError(t, err, http.StatusUnprocessableEntity, "")

	_, err = f.svc.SetStatus(ctx, slot.ID, model.SlotBusy, ptr(int64(9)))
	expectAppError(t, err, http.StatusConflict, "StaleVersion")

	f.forceStatus(t, slot, model.SlotBooked)
	_, err = f.svc.MarkFree(ctx, slot.ID)
	expectAppError(t, err, http.StatusConflict, "SlotLockedError")
}

func TestListByCalendar_ContainmentAndOrder(t *testing.T) {
	f := newFixture(t)
	late := f.mustCreate(t, 300, 360)
	early := f.mustCreate(t, 60, 120)
	f.mustCreate(t, 590, 650)

	slots, err := f.svc.ListByCalendar(context.Background(), f.calendar.ID, at(60), at(600))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots fully inside the window, got %d", len(slots))
	}
	if slots[0].ID != early.ID || slots[1].ID != late.ID {
		t.Error("expected slots ordered by start time")
	}

	_, err = f.svc.ListByCalendar(context.Background(), f.calendar.ID, at(600), at(60))
	expectAppError(t, err, http.StatusBadRequest, "")

	_, err = f.svc.ListByCalendar(context.Background(), "missing", at(0), at(60))
	expectAppError(t, err, http.StatusNotFound, "CalendarNotFound")
}

func TestAvailability_PartitionsByStatus(t *testing.T) {
	f := newFixture(t)
	free := f.mustCreate(t, 60, 120)
	busy := f.mustCreate(t, 120, 180)
	booked := f.mustCreate(t, 180, 240)
	f.forceStatus(t, busy, model.SlotBusy)
	f.forceStatus(t, booked, model.SlotBooked)

	availability, err := f.svc.Availability(context.Background(), f.user.ID, at(0), at(600))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if availability.TotalFree != 1 || availability.FreeSlots[0].ID != free.ID {
		t.Errorf("expected only the free slot, got %+v", availability.FreeSlots)
	}
	if availability.TotalBusy != 2 {
		t.Fatalf("expected busy and booked slots, got %d", availability.TotalBusy)
	}
	if availability.BusySlots[0].ID != busy.ID || availability.BusySlots[1].ID != booked.ID {
		t.Error("expected busy slots ordered by start time")
	}
	if !availability.RangeStart.Equal(at(0)) || !availability.RangeEnd.Equal(at(600)) {
		t.Error("expected requested range echoed back")
	}
}

func TestAvailability_EmptyWindow(t *testing.T) {
	f := newFixture(t)

	availability, err := f.svc.Availability(context.Background(), f.user.ID, at(0), at(60))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if availability.FreeSlots == nil || availability.BusySlots == nil {
		t.Error("expected empty, non-nil slices")
	}
	if availability.TotalFree != 0 || availability.TotalBusy != 0 {
		t.Error("expected zero totals")
	}
}

func TestCreateFromRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	byCalendar, err := f.svc.CreateFromRequest(ctx, &model.SlotCreateRequest{
		CalendarID: f.calendar.ID,
		SlotInput:  *input(60, 120),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	byUser, err := f.svc.CreateFromRequest(ctx, &model.SlotCreateRequest{
		UserID:    f.user.ID,
		SlotInput: *input(120, 180),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if byCalendar.CalendarID != byUser.CalendarID {
		t.Error("expected both slots on the same calendar")
	}

	_, err = f.svc.CreateFromRequest(ctx, &model.SlotCreateRequest{SlotInput: *input(200, 260)})
	expectAppError(t, err, http.StatusUnprocessableEntity, "")
}
