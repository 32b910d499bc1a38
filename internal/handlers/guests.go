package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"guest-messaging/internal/common/logging"
	"guest-messaging/internal/storage"
)

// CreateHotel handles POST /api/hotels
func (h *Handlers) CreateHotel(w http.ResponseWriter, r *http.Request) {
	var hotel storage.Hotel
	if !h.decodeBody(w, r, &hotel) {
		return
	}

	if err := h.store.CreateHotel(&hotel); err != nil {
		h.sendJSONError(w, err)
		return
	}
	h.sendJSONResponse(w, http.StatusCreated, &hotel)
}

// GetHotel handles GET /api/hotels/{id}
func (h *Handlers) GetHotel(w http.ResponseWriter, r *http.Request) {
	hotel, err := h.store.GetHotel(mux.Vars(r)["id"])
	if err != nil {
		h.sendJSONError(w, err)
		return
	}
	h.sendJSONResponse(w, http.StatusOK, hotel)
}

// CreateGuest handles POST /api/hotels/{id}/guests
func (h *Handlers) CreateGuest(w http.ResponseWriter, r *http.Request) {
	hotelID := mux.Vars(r)["id"]

	var guest storage.Guest
	if !h.decodeBody(w, r, &guest) {
		return
	}
	guest.HotelID = hotelID

	if err := h.store.CreateGuest(&guest); err != nil {
		h.sendJSONError(w, err)
		return
	}

	h.logger.Info("Guest registered",
		logging.String("guest_id", guest.ID),
		logging.String("hotel_id", guest.HotelID),
	)
	h.sendJSONResponse(w, http.StatusCreated, &guest)
}

// ScheduleGuest handles POST /api/hotels/{id}/guests/{guestId}/schedule.
// It walks the hotel's active time-based triggers and enqueues one
// execution per applicable trigger.
func (h *Handlers) ScheduleGuest(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	hotelID := vars["id"]
	guestID := vars["guestId"]

	scheduled, err := h.engine.ScheduleGuest(r.Context(), hotelID, guestID)
	if err != nil {
		h.sendJSONError(w, err)
		return
	}
	h.sendJSONResponse(w, http.StatusAccepted, map[string]interface{}{
		"guest_id":  guestID,
		"scheduled": scheduled,
	})
}
