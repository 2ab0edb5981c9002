package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	slotserrors "minidoodle/internal/slots/errors"
	apperrors "minidoodle/pkg/errors"
	"minidoodle/pkg/logger"
	"minidoodle/pkg/model"

	"github.com/julienschmidt/httprouter"
)

// Mock service for testing
type mockSlotService struct {
	createFromRequestFunc func(ctx context.Context, req *model.SlotCreateRequest) (*model.Slot, error)
	updateFunc            func(ctx context.Context, id string, in *model.SlotInput, expectedVersion *int64) (*model.Slot, error)
	deleteFunc            func(ctx context.Context, id string, expectedVersion *int64) error
	setStatusFunc         func(ctx context.Context, id string, status model.SlotStatus, expectedVersion *int64) (*model.Slot, error)
	availabilityFunc      func(ctx context.Context, userID string, from, to time.Time) (*model.Availability, error)
}

func (m *mockSlotService) CreateFromRequest(ctx context.Context, req *model.SlotCreateRequest) (*model.Slot, error) {
	if m.createFromRequestFunc != nil {
		return m.createFromRequestFunc(ctx, req)
	}
	return &model.Slot{}, nil
}

func (m *mockSlotService) Create(ctx context.Context, calendarID string, in *model.SlotInput) (*model.Slot, error) {
	return nil, nil
}

func (m *mockSlotService) CreateForUser(ctx context.Context, userID string, in *model.SlotInput) (*model.Slot, error) {
	return nil, nil
}

func (m *mockSlotService) GetByID(ctx context.Context, id string) (*model.Slot, error) {
	return nil, nil
}

func (m *mockSlotService) Update(ctx context.Context, id string, in *model.SlotInput, expectedVersion *int64) (*model.Slot, error) {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, id, in, expectedVersion)
	}
	return &model.Slot{}, nil
}

func (m *mockSlotService) Delete(ctx context.Context, id string, expectedVersion *int64) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id, expectedVersion)
	}
	return nil
}

func (m *mockSlotService) SetStatus(ctx context.Context, id string, status model.SlotStatus, expectedVersion *int64) (*model.Slot, error) {
	if m.setStatusFunc != nil {
		return m.setStatusFunc(ctx, id, status, expectedVersion)
	}
	return &model.Slot{}, nil
}

func (m *mockSlotService) MarkBusy(ctx context.Context, id string) (*model.Slot, error) {
	return nil, nil
}

func (m *mockSlotService) MarkFree(ctx context.Context, id string) (*model.Slot, error) {
	return nil, nil
}

func (m *mockSlotService) ListByCalendar(ctx context.Context, calendarID string, from, to time.Time) ([]*model.Slot, error) {
	return []*model.Slot{}, nil
}

func (m *mockSlotService) ListByUser(ctx context.Context, userID string, from, to time.Time) ([]*model.Slot, error) {
	return []*model.Slot{}, nil
}

func (m *mockSlotService) Availability(ctx context.Context, userID string, from, to time.Time) (*model.Availability, error) {
	if m.availabilityFunc != nil {
		return m.availabilityFunc(ctx, userID, from, to)
	}
	return &model.Availability{}, nil
}

func newTestRouter(svc *mockSlotService) *httprouter.Router {
	router := httprouter.New()
	NewSlotHandler(svc, logger.Discard()).RegisterRoutes(router)
	return router
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) apperrors.ErrorResponse {
	t.Helper()
	var resp apperrors.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode error body %q: %v", w.Body.String(), err)
	}
	return resp
}

func TestCreate_Created(t *testing.T) {
	var received *model.SlotCreateRequest
	svc := &mockSlotService{
		createFromRequestFunc: func(ctx context.Context, req *model.SlotCreateRequest) (*model.Slot, error) {
			received = req
			return &model.Slot{ID: "slot-1", CalendarID: req.CalendarID, Status: model.SlotFree, Version: 1}, nil
		},
	}

	body := `{"calendar_id":"cal-1","start_time":"2030-01-07T10:00:00Z","duration_minutes":30}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/slots", strings.NewReader(body))
	w := httptest.NewRecorder()
	newTestRouter(svc).ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if received == nil || received.CalendarID != "cal-1" || received.DurationMinutes == nil || *received.DurationMinutes != 30 {
		t.Errorf("unexpected request passed to service: %+v", received)
	}
	if !strings.Contains(w.Body.String(), `"id":"slot-1"`) {
		t.Errorf("expected slot in body, got %s", w.Body.String())
	}
}

func TestCreate_RejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/slots", strings.NewReader(`{"calendar_id":"c","colour":"red"}`))
	w := httptest.NewRecorder()
	newTestRouter(&mockSlotService{}).ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestCreate_ConflictCarriesReason(t *testing.T) {
	svc := &mockSlotService{
		createFromRequestFunc: func(ctx context.Context, req *model.SlotCreateRequest) (*model.Slot, error) {
			return nil, apperrors.Conflict("overlap").WithCause(slotserrors.ErrSlotConflict)
		},
	}

	body := `{"calendar_id":"cal-1","start_time":"2030-01-07T10:00:00Z","end_time":"2030-01-07T11:00:00Z"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/slots", strings.NewReader(body))
	w := httptest.NewRecorder()
	newTestRouter(svc).ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
	if resp := decodeError(t, w); resp.Details[apperrors.DetailReason] != "SlotConflict" {
		t.Errorf("expected SlotConflict reason, got %v", resp.Details)
	}
}

func TestUpdate_PassesIfMatchVersion(t *testing.T) {
	tests := []struct {
		name        string
		header      string
		query       string
		wantVersion *int64
		wantCode    int
	}{
		{name: "no version", wantCode: http.StatusOK},
		{name: "quoted if-match", header: `"3"`, wantVersion: ptr(int64(3)), wantCode: http.StatusOK},
		{name: "query parameter", query: "?version=5", wantVersion: ptr(int64(5)), wantCode: http.StatusOK},
		{name: "garbage version", header: "abc", wantCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got *int64
			called := false
			svc := &mockSlotService{
				updateFunc: func(ctx context.Context, id string, in *model.SlotInput, expectedVersion *int64) (*model.Slot, error) {
					called = true
					got = expectedVersion
					return &model.Slot{ID: id}, nil
				},
			}

			body := `{"start_time":"2030-01-07T10:00:00Z","end_time":"2030-01-07T11:00:00Z"}`
			req := httptest.NewRequest(http.MethodPut, "/api/v1/slots/id/slot-1"+tt.query, strings.NewReader(body))
			if tt.header != "" {
				req.Header.Set("If-Match", tt.header)
			}
			w := httptest.NewRecorder()
			newTestRouter(svc).ServeHTTP(w, req)

			if w.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d: %s", tt.wantCode, w.Code, w.Body.String())
			}
			if tt.wantCode != http.StatusOK {
				if called {
					t.Error("service must not be called on a bad version")
				}
				return
			}
			switch {
			case tt.wantVersion == nil && got != nil:
				t.Errorf("expected no version, got %d", *got)
			case tt.wantVersion != nil && (got == nil || *got != *tt.wantVersion):
				t.Errorf("expected version %d, got %v", *tt.wantVersion, got)
			}
		})
	}
}

func TestUpdate_StaleSetsRetryAfter(t *testing.T) {
	svc := &mockSlotService{
		updateFunc: func(ctx context.Context, id string, in *model.SlotInput, expectedVersion *int64) (*model.Slot, error) {
			return nil, apperrors.Stale("stale").WithCause(slotserrors.ErrStaleVersion)
		},
	}

	body := `{"start_time":"2030-01-07T10:00:00Z","end_time":"2030-01-07T11:00:00Z"}`
	req := httptest.NewRequest(http.MethodPut, "/api/v1/slots/id/slot-1", strings.NewReader(body))
	w := httptest.NewRecorder()
	newTestRouter(svc).ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
	if resp := decodeError(t, w); resp.Code != apperrors.CodeStaleVersion {
		t.Errorf("expected %s, got %s", apperrors.CodeStaleVersion, resp.Code)
	}
}

func TestDelete_NoContent(t *testing.T) {
	var deleted string
	svc := &mockSlotService{
		deleteFunc: func(ctx context.Context, id string, expectedVersion *int64) error {
			deleted = id
			return nil
		},
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/slots/id/slot-9", nil)
	w := httptest.NewRecorder()
	newTestRouter(svc).ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", w.Code)
	}
	if deleted != "slot-9" {
		t.Errorf("expected slot-9 deleted, got %q", deleted)
	}
}

func TestSetStatus_DecodesStatus(t *testing.T) {
	var got model.SlotStatus
	svc := &mockSlotService{
		setStatusFunc: func(ctx context.Context, id string, status model.SlotStatus, expectedVersion *int64) (*model.Slot, error) {
			got = status
			return &model.Slot{ID: id, Status: status}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPut, "/api/v1/slots/id/slot-1/status", strings.NewReader(`{"status":"BUSY"}`))
	w := httptest.NewRecorder()
	newTestRouter(svc).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got != model.SlotBusy {
		t.Errorf("expected BUSY, got %s", got)
	}
}

func TestAvailability_RequiresRange(t *testing.T) {
	called := false
	svc := &mockSlotService{
		availabilityFunc: func(ctx context.Context, userID string, from, to time.Time) (*model.Availability, error) {
			called = true
			return &model.Availability{RangeStart: from, RangeEnd: to}, nil
		},
	}
	router := newTestRouter(svc)

	tests := []struct {
		name     string
		query    string
		wantCode int
	}{
		{"missing both", "", http.StatusBadRequest},
		{"missing to", "?from=2030-01-07T00:00:00Z", http.StatusBadRequest},
		{"not rfc3339", "?from=yesterday&to=2030-01-07T00:00:00Z", http.StatusBadRequest},
		{"inverted", "?from=2030-01-08T00:00:00Z&to=2030-01-07T00:00:00Z", http.StatusBadRequest},
		{"valid", "?from=2030-01-07T00:00:00Z&to=2030-01-08T00:00:00Z", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called = false
			req := httptest.NewRequest(http.MethodGet, "/api/v1/users/id/u1/availability"+tt.query, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.wantCode {
				t.Errorf("expected %d, got %d: %s", tt.wantCode, w.Code, w.Body.String())
			}
			if called != (tt.wantCode == http.StatusOK) {
				t.Errorf("unexpected service call state: %v", called)
			}
		})
	}
}

func ptr[T any](v T) *T {
	return &v
}
