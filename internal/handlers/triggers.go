package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"guest-messaging/internal/common/errors"
	"guest-messaging/internal/common/logging"
	"guest-messaging/internal/storage"
)

// CreateTrigger handles POST /api/triggers
func (h *Handlers) CreateTrigger(w http.ResponseWriter, r *http.Request) {
	var trigger storage.Trigger
	if !h.decodeBody(w, r, &trigger) {
		return
	}

	if err := h.store.CreateTrigger(&trigger); err != nil {
		h.sendJSONError(w, err)
		return
	}

	h.logger.Info("Trigger created",
		logging.String("trigger_id", trigger.ID),
		logging.String("hotel_id", trigger.HotelID),
		logging.String("type", string(trigger.Type)),
	)
	h.sendJSONResponse(w, http.StatusCreated, &trigger)
}

// GetTrigger handles GET /api/triggers/{id}
func (h *Handlers) GetTrigger(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	trigger, err := h.store.GetTrigger(id)
	if err != nil {
		h.sendJSONError(w, err)
		return
	}
	h.sendJSONResponse(w, http.StatusOK, trigger)
}

// ListTriggers handles GET /api/triggers?hotel_id=...&type=...
func (h *Handlers) ListTriggers(w http.ResponseWriter, r *http.Request) {
	hotelID := r.URL.Query().Get("hotel_id")
	if hotelID == "" {
		h.sendJSONError(w, errors.ValidationError("hotel_id query parameter is required"))
		return
	}
	triggerType := storage.TriggerType(r.URL.Query().Get("type"))

	triggers, err := h.store.ListActiveTriggers(hotelID, triggerType)
	if err != nil {
		h.sendJSONError(w, err)
		return
	}
	h.sendJSONResponse(w, http.StatusOK, map[string]interface{}{
		"triggers": triggers,
		"count":    len(triggers),
	})
}

// UpdateTrigger handles PUT /api/triggers/{id}
func (h *Handlers) UpdateTrigger(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var trigger storage.Trigger
	if !h.decodeBody(w, r, &trigger) {
		return
	}
	trigger.ID = id

	if err := h.store.UpdateTrigger(&trigger); err != nil {
		h.sendJSONError(w, err)
		return
	}
	h.sendJSONResponse(w, http.StatusOK, &trigger)
}

// DeleteTrigger handles DELETE /api/triggers/{id}
func (h *Handlers) DeleteTrigger(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.store.DeleteTrigger(id); err != nil {
		h.sendJSONError(w, err)
		return
	}
	h.sendJSONResponse(w, http.StatusNoContent, nil)
}
