package engine

import (
	"time"

	"guest-messaging/internal/storage"
)

// buildEvalContext assembles the flat context the condition evaluator
// reads: reference instants at the top level, guest attributes under
// "guest", and any event payload merged in.
func buildEvalContext(hotel *storage.Hotel, guest *storage.Guest, extra map[string]interface{}) map[string]interface{} {
	ctx := map[string]interface{}{
		"hotel_id": hotel.ID,
		"guest_id": guest.ID,
	}

	if guest.CheckinAt != nil {
		ctx["checkin_time"] = *guest.CheckinAt
	}
	if guest.FirstMessageAt != nil {
		ctx["first_message_time"] = *guest.FirstMessageAt
	}

	guestMap := map[string]interface{}{
		"name":  guest.Name,
		"phone": guest.Phone,
	}
	for k, v := range guest.Attributes {
		guestMap[k] = v
	}
	ctx["guest"] = guestMap

	for k, v := range extra {
		ctx[k] = v
	}
	return ctx
}

// buildRenderContext assembles the template context. Scalar
// conveniences (guest_name, hotel_phone) sit beside the full guest and
// hotel maps so templates can use either form.
func buildRenderContext(hotel *storage.Hotel, guest *storage.Guest, trigger *storage.Trigger, extra map[string]interface{}) map[string]interface{} {
	now := time.Now().In(hotelLocation(hotel))

	ctx := map[string]interface{}{
		"now":          now,
		"today":        now.Format("Monday, January 2"),
		"hotel_name":   hotel.Name,
		"hotel_phone":  hotel.Phone,
		"guest_name":   guest.Name,
		"guest_phone":  guest.Phone,
		"trigger_name": trigger.Name,
	}

	if guest.CheckinAt != nil {
		ctx["checkin_time"] = *guest.CheckinAt
	}
	if guest.FirstMessageAt != nil {
		ctx["first_message_time"] = *guest.FirstMessageAt
	}

	guestMap := map[string]interface{}{
		"name":  guest.Name,
		"phone": guest.Phone,
	}
	for k, v := range guest.Attributes {
		guestMap[k] = v
	}
	ctx["guest"] = guestMap
	ctx["hotel"] = map[string]interface{}{
		"name":     hotel.Name,
		"phone":    hotel.Phone,
		"timezone": hotel.Timezone,
	}

	for k, v := range extra {
		ctx[k] = v
	}
	return ctx
}

func hotelLocation(hotel *storage.Hotel) *time.Location {
	if hotel.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(hotel.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
