package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"guest-messaging/internal/common/errors"
	"guest-messaging/internal/storage"
)

type executeRequest struct {
	GuestID string                 `json:"guest_id"`
	HotelID string                 `json:"hotel_id,omitempty"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// ExecuteTrigger handles POST /api/triggers/{id}/execute. It runs the
// full pipeline immediately, bypassing the scheduler.
func (h *Handlers) ExecuteTrigger(w http.ResponseWriter, r *http.Request) {
	triggerID := mux.Vars(r)["id"]

	var req executeRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if req.GuestID == "" {
		h.sendJSONError(w, errors.ValidationError("guest_id is required"))
		return
	}

	result, err := h.engine.ExecuteTrigger(r.Context(), triggerID, req.GuestID, req.HotelID, req.Context)
	if err != nil {
		h.sendJSONError(w, err)
		return
	}
	h.sendJSONResponse(w, http.StatusOK, result)
}

type scheduleRequest struct {
	GuestID      string `json:"guest_id"`
	DelayMinutes int    `json:"delay_minutes"`
}

// ScheduleTrigger handles POST /api/triggers/{id}/schedule: enqueues
// one trigger for one guest after an optional delay.
func (h *Handlers) ScheduleTrigger(w http.ResponseWriter, r *http.Request) {
	triggerID := mux.Vars(r)["id"]

	var req scheduleRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if req.GuestID == "" {
		h.sendJSONError(w, errors.ValidationError("guest_id is required"))
		return
	}

	taskID, err := h.engine.ScheduleTrigger(r.Context(), triggerID, req.GuestID,
		time.Duration(req.DelayMinutes)*time.Minute)
	if err != nil {
		h.sendJSONError(w, err)
		return
	}
	h.sendJSONResponse(w, http.StatusAccepted, map[string]string{"task_id": taskID})
}

// CancelScheduled handles DELETE /api/triggers/{id}/schedule/{guestId}.
func (h *Handlers) CancelScheduled(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	cancelled := h.engine.CancelScheduled(r.Context(), vars["id"], vars["guestId"])
	h.sendJSONResponse(w, http.StatusOK, map[string]bool{"cancelled": cancelled})
}

// PreviewTrigger handles POST /api/triggers/{id}/preview: renders the
// trigger's template against a real guest without sending anything.
func (h *Handlers) PreviewTrigger(w http.ResponseWriter, r *http.Request) {
	triggerID := mux.Vars(r)["id"]

	var req executeRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if req.GuestID == "" {
		h.sendJSONError(w, errors.ValidationError("guest_id is required"))
		return
	}

	rendered, err := h.engine.PreviewTrigger(triggerID, req.GuestID)
	if err != nil {
		h.sendJSONError(w, err)
		return
	}
	h.sendJSONResponse(w, http.StatusOK, map[string]string{"rendered": rendered})
}

type validateTemplateRequest struct {
	Template string `json:"template"`
}

type previewTemplateRequest struct {
	Template string                 `json:"template"`
	Context  map[string]interface{} `json:"context,omitempty"`
}

// RenderTemplatePreview handles POST /api/templates/preview: renders
// unsaved template text against a caller-supplied sample context.
func (h *Handlers) RenderTemplatePreview(w http.ResponseWriter, r *http.Request) {
	var req previewTemplateRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if req.Template == "" {
		h.sendJSONError(w, errors.ValidationError("template is required"))
		return
	}

	rendered, err := h.engine.RenderPreview(req.Template, req.Context)
	if err != nil {
		h.sendJSONError(w, err)
		return
	}
	h.sendJSONResponse(w, http.StatusOK, map[string]string{"rendered": rendered})
}

// ValidateTemplate handles POST /api/templates/validate
func (h *Handlers) ValidateTemplate(w http.ResponseWriter, r *http.Request) {
	var req validateTemplateRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	result := h.engine.ValidateTemplate(req.Template)
	h.sendJSONResponse(w, http.StatusOK, result)
}

// EvaluateTriggers handles POST /api/hotels/{id}/evaluate: dry-runs the
// hotel's active triggers against a caller-supplied context and returns
// the qualifying ones in priority order. An optional ?type= query
// restricts evaluation to one trigger type.
func (h *Handlers) EvaluateTriggers(w http.ResponseWriter, r *http.Request) {
	hotelID := mux.Vars(r)["id"]
	triggerType := storage.TriggerType(r.URL.Query().Get("type"))

	var evalCtx map[string]interface{}
	if !h.decodeBody(w, r, &evalCtx) {
		return
	}

	triggers, err := h.engine.EvaluateTriggers(hotelID, evalCtx, triggerType)
	if err != nil {
		h.sendJSONError(w, err)
		return
	}
	h.sendJSONResponse(w, http.StatusOK, map[string]interface{}{
		"triggers": triggers,
		"count":    len(triggers),
	})
}

type fireEventRequest struct {
	HotelID   string                 `json:"hotel_id"`
	GuestID   string                 `json:"guest_id"`
	EventType string                 `json:"event_type"`
	EventData map[string]interface{} `json:"event_data,omitempty"`
}

// FireEvent handles POST /api/events: queues a hotel event for
// asynchronous fan-out to the hotel's matching event-based triggers.
// A top-level guest_id is folded into the event data for the fan-out.
func (h *Handlers) FireEvent(w http.ResponseWriter, r *http.Request) {
	var req fireEventRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if req.HotelID == "" || req.EventType == "" {
		h.sendJSONError(w, errors.ValidationError("hotel_id and event_type are required"))
		return
	}

	eventData := req.EventData
	if req.GuestID != "" {
		if eventData == nil {
			eventData = make(map[string]interface{})
		}
		eventData["guest_id"] = req.GuestID
	}

	taskID, err := h.engine.FireEvent(r.Context(), req.HotelID, req.EventType, eventData)
	if err != nil {
		h.sendJSONError(w, err)
		return
	}
	h.sendJSONResponse(w, http.StatusAccepted, map[string]string{
		"event_type": req.EventType,
		"task_id":    taskID,
	})
}
