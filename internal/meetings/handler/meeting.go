package handler

import (
	"net/http"

	"minidoodle/internal/meetings/service"
	httputil "minidoodle/pkg/http"
	"minidoodle/pkg/logger"
	"minidoodle/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type MeetingHandler struct {
	service service.MeetingService
	log     *logger.Logger
}

func NewMeetingHandler(service service.MeetingService, log *logger.Logger) *MeetingHandler {
	return &MeetingHandler{
		service: service,
		log:     log,
	}
}

func (h *MeetingHandler) Book(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var in model.MeetingInput
	if err := httputil.DecodeJSON(r, &in); err != nil {
		h.writeError(w, "Book", err)
		return
	}

	meeting, err := h.service.Book(r.Context(), &in)
	if err != nil {
		h.writeError(w, "Book", err)
		return
	}

	if err := httputil.WriteCreated(w, meeting); err != nil {
		h.log.Error("failed to write created response", "handler", "Book", "operation", "WriteCreated", "error", err)
	}
}

func (h *MeetingHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	meeting, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	h.writeSuccess(w, "GetByID", meeting)
}

func (h *MeetingHandler) GetBySlotID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	meeting, err := h.service.GetBySlotID(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetBySlotID", err)
		return
	}

	h.writeSuccess(w, "GetBySlotID", meeting)
}

func (h *MeetingHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var updates model.MeetingUpdate
	if err := httputil.DecodeJSON(r, &updates); err != nil {
		h.writeError(w, "Update", err)
		return
	}

	meeting, err := h.service.Update(r.Context(), ps.ByName("id"), &updates)
	if err != nil {
		h.writeError(w, "Update", err)
		return
	}

	h.writeSuccess(w, "Update", meeting)
}

func (h *MeetingHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.service.Cancel(r.Context(), ps.ByName("id")); err != nil {
		h.writeError(w, "Cancel", err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *MeetingHandler) AddParticipant(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	meeting, err := h.service.AddParticipant(r.Context(), ps.ByName("id"), ps.ByName("user_id"))
	if err != nil {
		h.writeError(w, "AddParticipant", err)
		return
	}

	h.writeSuccess(w, "AddParticipant", meeting)
}

func (h *MeetingHandler) RemoveParticipant(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	meeting, err := h.service.RemoveParticipant(r.Context(), ps.ByName("id"), ps.ByName("user_id"))
	if err != nil {
		h.writeError(w, "RemoveParticipant", err)
		return
	}

	h.writeSuccess(w, "RemoveParticipant", meeting)
}

func (h *MeetingHandler) ListByParticipant(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	from, to, err := httputil.ExtractTimeRange(r)
	if err != nil {
		h.writeError(w, "ListByParticipant", err)
		return
	}

	meetings, err := h.service.ListByParticipant(r.Context(), ps.ByName("id"), from, to)
	if err != nil {
		h.writeError(w, "ListByParticipant", err)
		return
	}

	if err := httputil.WriteList(w, meetings, len(meetings)); err != nil {
		h.log.Error("failed to write list response", "handler", "ListByParticipant", "operation", "WriteList", "error", err)
	}
}

func (h *MeetingHandler) ListByOwner(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	from, to, err := httputil.ExtractTimeRange(r)
	if err != nil {
		h.writeError(w, "ListByOwner", err)
		return
	}

	meetings, err := h.service.ListByOwner(r.Context(), ps.ByName("id"), from, to)
	if err != nil {
		h.writeError(w, "ListByOwner", err)
		return
	}

	if err := httputil.WriteList(w, meetings, len(meetings)); err != nil {
		h.log.Error("failed to write list response", "handler", "ListByOwner", "operation", "WriteList", "error", err)
	}
}

func (h *MeetingHandler) writeSuccess(w http.ResponseWriter, handler string, data any) {
	if err := httputil.WriteSuccess(w, data); err != nil {
		h.log.Error("failed to write success response", "handler", handler, "operation", "WriteSuccess", "error", err)
	}
}

func (h *MeetingHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *MeetingHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/meetings", h.Book)
	router.GET("/api/v1/meetings/id/:id", h.GetByID)
	router.PUT("/api/v1/meetings/id/:id", h.Update)
	router.DELETE("/api/v1/meetings/id/:id", h.Cancel)
	router.PUT("/api/v1/meetings/id/:id/participants/:user_id", h.AddParticipant)
	router.DELETE("/api/v1/meetings/id/:id/participants/:user_id", h.RemoveParticipant)
	router.GET("/api/v1/slots/id/:id/meeting", h.GetBySlotID)
	router.GET("/api/v1/users/id/:id/meetings", h.ListByParticipant)
	router.GET("/api/v1/users/id/:id/meetings/owned", h.ListByOwner)
}
