package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	meetingserrors "minidoodle/internal/meetings/errors"
	apperrors "minidoodle/pkg/errors"
	"minidoodle/pkg/logger"
	"minidoodle/pkg/model"

	"github.com/julienschmidt/httprouter"
)

// Mock service for testing
type mockMeetingService struct {
	bookFunc           func(ctx context.Context, in *model.MeetingInput) (*model.Meeting, error)
	cancelFunc         func(ctx context.Context, id string) error
	addParticipantFunc func(ctx context.Context, id, userID string) (*model.Meeting, error)
	listByOwnerFunc    func(ctx context.Context, userID string, from, to time.Time) ([]*model.Meeting, error)
}

func (m *mockMeetingService) Book(ctx context.Context, in *model.MeetingInput) (*model.Meeting, error) {
	if m.bookFunc != nil {
		return m.bookFunc(ctx, in)
	}
	return &model.Meeting{}, nil
}

func (m *mockMeetingService) Cancel(ctx context.Context, id string) error {
	if m.cancelFunc != nil {
		return m.cancelFunc(ctx, id)
	}
	return nil
}

func (m *mockMeetingService) GetByID(ctx context.Context, id string) (*model.Meeting, error) {
	return &model.Meeting{ID: id}, nil
}

func (m *mockMeetingService) GetBySlotID(ctx context.Context, slotID string) (*model.Meeting, error) {
	return &model.Meeting{SlotID: slotID}, nil
}

func (m *mockMeetingService) Update(ctx context.Context, id string, updates *model.MeetingUpdate) (*model.Meeting, error) {
	return &model.Meeting{ID: id, Title: updates.Title}, nil
}

func (m *mockMeetingService) AddParticipant(ctx context.Context, id, userID string) (*model.Meeting, error) {
	if m.addParticipantFunc != nil {
		return m.addParticipantFunc(ctx, id, userID)
	}
	return &model.Meeting{ID: id}, nil
}

func (m *mockMeetingService) RemoveParticipant(ctx context.Context, id, userID string) (*model.Meeting, error) {
	return &model.Meeting{ID: id}, nil
}

func (m *mockMeetingService) ListByParticipant(ctx context.Context, userID string, from, to time.Time) ([]*model.Meeting, error) {
	return []*model.Meeting{}, nil
}

func (m *mockMeetingService) ListByOwner(ctx context.Context, userID string, from, to time.Time) ([]*model.Meeting, error) {
	if m.listByOwnerFunc != nil {
		return m.listByOwnerFunc(ctx, userID, from, to)
	}
	return []*model.Meeting{}, nil
}

func newTestRouter(svc *mockMeetingService) *httprouter.Router {
	router := httprouter.New()
	NewMeetingHandler(svc, logger.Discard()).RegisterRoutes(router)
	return router
}

func TestBook_Created(t *testing.T) {
	var received *model.MeetingInput
	svc := &mockMeetingService{
		bookFunc: func(ctx context.Context, in *model.MeetingInput) (*model.Meeting, error) {
			received = in
			return &model.Meeting{ID: "m1", SlotID: in.SlotID, Title: in.Title, ParticipantIDs: in.ParticipantIDs}, nil
		},
	}

	body := `{"slot_id":"s1","title":"Kickoff","participant_ids":["u1","u2"]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/meetings", strings.NewReader(body))
	w := httptest.NewRecorder()
	newTestRouter(svc).ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if received == nil || received.SlotID != "s1" || len(received.ParticipantIDs) != 2 {
		t.Errorf("unexpected input passed to service: %+v", received)
	}
}

func TestBook_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   int
		wantReason string
		retryAfter bool
	}{
		{
			name:       "already booked",
			err:        apperrors.Conflict("booked").WithCause(meetingserrors.ErrSlotAlreadyBooked),
			wantCode:   http.StatusConflict,
			wantReason: "SlotAlreadyBooked",
		},
		{
			name:       "not available",
			err:        apperrors.Conflict("busy").WithCause(meetingserrors.ErrSlotNotAvailable),
			wantCode:   http.StatusConflict,
			wantReason: "SlotNotAvailable",
		},
		{
			name:       "missing participant",
			err:        apperrors.Validation("missing", nil).WithCause(&meetingserrors.MissingParticipantsError{IDs: []string{"x"}}),
			wantCode:   http.StatusUnprocessableEntity,
			wantReason: "ParticipantNotFound",
		},
		{
			name:       "booking timeout",
			err:        apperrors.Timeout("slow").WithCause(meetingserrors.ErrBookingTimeout),
			wantCode:   http.StatusServiceUnavailable,
			wantReason: "BookingTimeout",
			retryAfter: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockMeetingService{
				bookFunc: func(ctx context.Context, in *model.MeetingInput) (*model.Meeting, error) {
					return nil, tt.err
				},
			}

			req := httptest.NewRequest(http.MethodPost, "/api/v1/meetings", strings.NewReader(`{"slot_id":"s1","title":"t"}`))
			w := httptest.NewRecorder()
			newTestRouter(svc).ServeHTTP(w, req)

			if w.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d", tt.wantCode, w.Code)
			}
			var resp apperrors.ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to decode body: %v", err)
			}
			if resp.Details[apperrors.DetailReason] != tt.wantReason {
				t.Errorf("expected reason %s, got %v", tt.wantReason, resp.Details)
			}
			if got := w.Header().Get("Retry-After") != ""; got != tt.retryAfter {
				t.Errorf("expected Retry-After present=%v", tt.retryAfter)
			}
		})
	}
}

func TestCancel_NoContent(t *testing.T) {
	var cancelled string
	svc := &mockMeetingService{
		cancelFunc: func(ctx context.Context, id string) error {
			cancelled = id
			return nil
		},
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/meetings/id/m7", nil)
	w := httptest.NewRecorder()
	newTestRouter(svc).ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", w.Code)
	}
	if cancelled != "m7" {
		t.Errorf("expected m7 cancelled, got %q", cancelled)
	}
}

func TestAddParticipant_PathParams(t *testing.T) {
	var gotMeeting, gotUser string
	svc := &mockMeetingService{
		addParticipantFunc: func(ctx context.Context, id, userID string) (*model.Meeting, error) {
			gotMeeting, gotUser = id, userID
			return &model.Meeting{ID: id, ParticipantIDs: []string{userID}}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPut, "/api/v1/meetings/id/m1/participants/u9", nil)
	w := httptest.NewRecorder()
	newTestRouter(svc).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if gotMeeting != "m1" || gotUser != "u9" {
		t.Errorf("expected m1/u9, got %s/%s", gotMeeting, gotUser)
	}
}

func TestListByOwner_ParsesRange(t *testing.T) {
	var gotFrom, gotTo time.Time
	svc := &mockMeetingService{
		listByOwnerFunc: func(ctx context.Context, userID string, from, to time.Time) ([]*model.Meeting, error) {
			gotFrom, gotTo = from, to
			return []*model.Meeting{{ID: "m1"}}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/users/id/u1/meetings/owned?from=2030-01-01T00:00:00Z&to=2030-01-02T00:00:00%2B02:00", nil)
	w := httptest.NewRecorder()
	newTestRouter(svc).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !gotFrom.Equal(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected from %s", gotFrom)
	}
	if !gotTo.Equal(time.Date(2030, 1, 1, 22, 0, 0, 0, time.UTC)) {
		t.Errorf("expected offset converted to UTC, got %s", gotTo)
	}
	if !strings.Contains(w.Body.String(), `"total_count":1`) {
		t.Errorf("expected list envelope, got %s", w.Body.String())
	}
}
