// Package handlers implements the admin HTTP API: trigger CRUD,
// guest and hotel registration, manual execution, template tooling
// and health.
package handlers

import (
	"encoding/json"
	"net/http"

	"guest-messaging/internal/common/errors"
	"guest-messaging/internal/common/logging"
	"guest-messaging/internal/config"
	"guest-messaging/internal/engine"
	"guest-messaging/internal/storage"
)

type Handlers struct {
	store  storage.Store
	engine *engine.Engine
	config *config.Config
	logger logging.Logger
}

func New(store storage.Store, eng *engine.Engine, cfg *config.Config) *Handlers {
	return &Handlers{
		store:  store,
		engine: eng,
		config: cfg,
		logger: logging.GetGlobalLogger(),
	}
}

func (h *Handlers) sendJSONResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// sendJSONError maps the error taxonomy to HTTP status codes and
// writes a JSON error body.
func (h *Handlers) sendJSONError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch errors.GetType(err) {
	case errors.ErrTypeValidation:
		status = http.StatusBadRequest
	case errors.ErrTypeNotFound:
		status = http.StatusNotFound
	case errors.ErrTypeRender:
		status = http.StatusUnprocessableEntity
	case errors.ErrTypeDelivery:
		status = http.StatusBadGateway
	case errors.ErrTypeConnection, errors.ErrTypeTimeout:
		status = http.StatusServiceUnavailable
	}

	if status >= 500 {
		h.logger.Error("request failed", err)
	}
	h.sendJSONResponse(w, status, map[string]string{"error": err.Error()})
}

func (h *Handlers) decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.sendJSONError(w, errors.ValidationError("invalid request body"))
		return false
	}
	return true
}
