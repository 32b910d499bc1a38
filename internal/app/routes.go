package app

import (
	"github.com/gorilla/mux"

	"guest-messaging/internal/handlers"
	"guest-messaging/internal/middleware"
)

// SetupRoutes configures all HTTP routes for the daemon.
func SetupRoutes(router *mux.Router, h *handlers.Handlers) {
	router.Use(middleware.LoggingMiddleware)

	// Health check
	router.HandleFunc("/health", h.Health).Methods("GET")

	api := router.PathPrefix("/api").Subrouter()

	// Trigger management
	api.HandleFunc("/triggers", h.CreateTrigger).Methods("POST")
	api.HandleFunc("/triggers", h.ListTriggers).Methods("GET")
	api.HandleFunc("/triggers/{id}", h.GetTrigger).Methods("GET")
	api.HandleFunc("/triggers/{id}", h.UpdateTrigger).Methods("PUT")
	api.HandleFunc("/triggers/{id}", h.DeleteTrigger).Methods("DELETE")

	// Manual execution, scheduling and preview
	api.HandleFunc("/triggers/{id}/execute", h.ExecuteTrigger).Methods("POST")
	api.HandleFunc("/triggers/{id}/schedule", h.ScheduleTrigger).Methods("POST")
	api.HandleFunc("/triggers/{id}/schedule/{guestId}", h.CancelScheduled).Methods("DELETE")
	api.HandleFunc("/triggers/{id}/preview", h.PreviewTrigger).Methods("POST")

	// Hotels and guests
	api.HandleFunc("/hotels", h.CreateHotel).Methods("POST")
	api.HandleFunc("/hotels/{id}", h.GetHotel).Methods("GET")
	api.HandleFunc("/hotels/{id}/evaluate", h.EvaluateTriggers).Methods("POST")
	api.HandleFunc("/hotels/{id}/guests", h.CreateGuest).Methods("POST")
	api.HandleFunc("/hotels/{id}/guests/{guestId}/schedule", h.ScheduleGuest).Methods("POST")

	// Guest events
	api.HandleFunc("/events", h.FireEvent).Methods("POST")

	// Template tooling
	api.HandleFunc("/templates/validate", h.ValidateTemplate).Methods("POST")
	api.HandleFunc("/templates/preview", h.RenderTemplatePreview).Methods("POST")
}
