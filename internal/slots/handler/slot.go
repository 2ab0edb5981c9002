package handler

import (
	"net/http"

	"minidoodle/internal/slots/service"
	httputil "minidoodle/pkg/http"
	"minidoodle/pkg/logger"
	"minidoodle/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type SlotHandler struct {
	service service.SlotService
	log     *logger.Logger
}

func NewSlotHandler(service service.SlotService, log *logger.Logger) *SlotHandler {
	return &SlotHandler{
		service: service,
		log:     log,
	}
}

func (h *SlotHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.SlotCreateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Create", err)
		return
	}

	slot, err := h.service.CreateFromRequest(r.Context(), &req)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, slot); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *SlotHandler) CreateForUser(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var in model.SlotInput
	if err := httputil.DecodeJSON(r, &in); err != nil {
		h.writeError(w, "CreateForUser", err)
		return
	}

	slot, err := h.service.CreateForUser(r.Context(), ps.ByName("id"), &in)
	if err != nil {
		h.writeError(w, "CreateForUser", err)
		return
	}

	if err := httputil.WriteCreated(w, slot); err != nil {
		h.log.Error("failed to write created response", "handler", "CreateForUser", "operation", "WriteCreated", "error", err)
	}
}

func (h *SlotHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	slot, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, slot); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *SlotHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	version, err := httputil.ExtractVersion(r)
	if err != nil {
		h.writeError(w, "Update", err)
		return
	}

	var in model.SlotInput
	if err := httputil.DecodeJSON(r, &in); err != nil {
		h.writeError(w, "Update", err)
		return
	}

	slot, err := h.service.Update(r.Context(), ps.ByName("id"), &in, version)
	if err != nil {
		h.writeError(w, "Update", err)
		return
	}

	if err := httputil.WriteSuccess(w, slot); err != nil {
		h.log.Error("failed to write success response", "handler", "Update", "operation", "WriteSuccess", "error", err)
	}
}

func (h *SlotHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	version, err := httputil.ExtractVersion(r)
	if err != nil {
		h.writeError(w, "Delete", err)
		return
	}

	if err := h.service.Delete(r.Context(), ps.ByName("id"), version); err != nil {
		h.writeError(w, "Delete", err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *SlotHandler) SetStatus(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	version, err := httputil.ExtractVersion(r)
	if err != nil {
		h.writeError(w, "SetStatus", err)
		return
	}

	var change model.SlotStatusChange
	if err := httputil.DecodeJSON(r, &change); err != nil {
		h.writeError(w, "SetStatus", err)
		return
	}

	slot, err := h.service.SetStatus(r.Context(), ps.ByName("id"), change.Status, version)
	if err != nil {
		h.writeError(w, "SetStatus", err)
		return
	}

	if err := httputil.WriteSuccess(w, slot); err != nil {
		h.log.Error("failed to write success response", "handler", "SetStatus", "operation", "WriteSuccess", "error", err)
	}
}

func (h *SlotHandler) MarkBusy(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	slot, err := h.service.MarkBusy(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "MarkBusy", err)
		return
	}

	if err := httputil.WriteSuccess(w, slot); err != nil {
		h.log.Error("failed to write success response", "handler", "MarkBusy", "operation", "WriteSuccess", "error", err)
	}
}

func (h *SlotHandler) MarkFree(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	slot, err := h.service.MarkFree(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "MarkFree", err)
		return
	}

	if err := httputil.WriteSuccess(w, slot); err != nil {
		h.log.Error("failed to write success response", "handler", "MarkFree", "operation", "WriteSuccess", "error", err)
	}
}

func (h *SlotHandler) ListByCalendar(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	from, to, err := httputil.ExtractTimeRange(r)
	if err != nil {
		h.writeError(w, "ListByCalendar", err)
		return
	}

	slots, err := h.service.ListByCalendar(r.Context(), ps.ByName("id"), from, to)
	if err != nil {
		h.writeError(w, "ListByCalendar", err)
		return
	}

	if err := httputil.WriteList(w, slots, len(slots)); err != nil {
		h.log.Error("failed to write list response", "handler", "ListByCalendar", "operation", "WriteList", "error", err)
	}
}

func (h *SlotHandler) ListByUser(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	from, to, err := httputil.ExtractTimeRange(r)
	if err != nil {
		h.writeError(w, "ListByUser", err)
		return
	}

	slots, err := h.service.ListByUser(r.Context(), ps.ByName("id"), from, to)
	if err != nil {
		h.writeError(w, "ListByUser", err)
		return
	}

	if err := httputil.WriteList(w, slots, len(slots)); err != nil {
		h.log.Error("failed to write list response", "handler", "ListByUser", "operation", "WriteList", "error", err)
	}
}

func (h *SlotHandler) Availability(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	from, to, err := httputil.ExtractTimeRange(r)
	if err != nil {
		h.writeError(w, "Availability", err)
		return
	}

	availability, err := h.service.Availability(r.Context(), ps.ByName("id"), from, to)
	if err != nil {
		h.writeError(w, "Availability", err)
		return
	}

	if err := httputil.WriteSuccess(w, availability); err != nil {
		h.log.Error("failed to write success response", "handler", "Availability", "operation", "WriteSuccess", "error", err)
	}
}

func (h *SlotHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *SlotHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/slots", h.Create)
	router.GET("/api/v1/slots/id/:id", h.GetByID)
	router.PUT("/api/v1/slots/id/:id", h.Update)
	router.DELETE("/api/v1/slots/id/:id", h.Delete)
	router.PUT("/api/v1/slots/id/:id/status", h.SetStatus)
	router.POST("/api/v1/slots/id/:id/busy", h.MarkBusy)
	router.POST("/api/v1/slots/id/:id/free", h.MarkFree)
	router.GET("/api/v1/calendars/id/:id/slots", h.ListByCalendar)
	router.POST("/api/v1/users/id/:id/slots", h.CreateForUser)
	router.GET("/api/v1/users/id/:id/slots", h.ListByUser)
	router.GET("/api/v1/users/id/:id/availability", h.Availability)
}
