package storage

// TriggerStore provides access to persisted trigger records.
type TriggerStore interface {
	CreateTrigger(trigger *Trigger) error
	GetTrigger(id string) (*Trigger, error)

	// ListActiveTriggers returns the active triggers for a hotel,
	// optionally filtered by type (empty string means all types),
	// ordered by ascending priority with ties broken by insertion order.
	ListActiveTriggers(hotelID string, triggerType TriggerType) ([]*Trigger, error)

	UpdateTrigger(trigger *Trigger) error
	DeleteTrigger(id string) error
}

// GuestStore provides access to tenant and guest records.
type GuestStore interface {
	CreateHotel(hotel *Hotel) error
	GetHotel(hotelID string) (*Hotel, error)
	ListHotels() ([]*Hotel, error)

	CreateGuest(guest *Guest) error
	// GetGuest looks a guest up within one hotel; a guest belonging to a
	// different hotel is reported as not found.
	GetGuest(guestID, hotelID string) (*Guest, error)
	ListGuests(hotelID string) ([]*Guest, error)
}

// Store is the full persistence surface consumed by the daemon.
type Store interface {
	TriggerStore
	GuestStore

	Health() error
	Close() error
}
