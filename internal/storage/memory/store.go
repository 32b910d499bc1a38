// Package memory provides an in-memory Store implementation used by
// tests and by the daemon when no database is configured.
package memory

import (
	"sort"
	"sync"
	"time"

	"guest-messaging/internal/common/errors"
	"guest-messaging/internal/common/utils"
	"guest-messaging/internal/storage"
)

// Store is a mutex-guarded in-memory implementation of storage.Store.
type Store struct {
	mu       sync.RWMutex
	triggers map[string]*storage.Trigger
	order    []string // trigger IDs in insertion order, for stable priority ties
	hotels   map[string]*storage.Hotel
	guests   map[string]*storage.Guest
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		triggers: make(map[string]*storage.Trigger),
		hotels:   make(map[string]*storage.Hotel),
		guests:   make(map[string]*storage.Guest),
	}
}

// CreateTrigger validates and stores a trigger, assigning an ID when absent.
func (s *Store) CreateTrigger(trigger *storage.Trigger) error {
	if err := trigger.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if trigger.ID == "" {
		trigger.ID = utils.NewTaskID()
	}
	now := time.Now()
	trigger.CreatedAt = now
	trigger.UpdatedAt = now

	copied := *trigger
	s.triggers[trigger.ID] = &copied
	s.order = append(s.order, trigger.ID)
	return nil
}

// GetTrigger returns a trigger by ID.
func (s *Store) GetTrigger(id string) (*storage.Trigger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trigger, ok := s.triggers[id]
	if !ok {
		return nil, errors.NotFoundError("trigger " + id)
	}
	copied := *trigger
	return &copied, nil
}

// ListActiveTriggers returns active triggers for the hotel in ascending
// priority order, insertion order breaking ties.
func (s *Store) ListActiveTriggers(hotelID string, triggerType storage.TriggerType) ([]*storage.Trigger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*storage.Trigger
	for _, id := range s.order {
		trigger, ok := s.triggers[id]
		if !ok {
			continue
		}
		if trigger.HotelID != hotelID || !trigger.Active {
			continue
		}
		if triggerType != "" && trigger.Type != triggerType {
			continue
		}
		copied := *trigger
		result = append(result, &copied)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Priority < result[j].Priority
	})
	return result, nil
}

// UpdateTrigger validates and replaces a stored trigger.
func (s *Store) UpdateTrigger(trigger *storage.Trigger) error {
	if err := trigger.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.triggers[trigger.ID]
	if !ok {
		return errors.NotFoundError("trigger " + trigger.ID)
	}

	trigger.CreatedAt = existing.CreatedAt
	trigger.UpdatedAt = time.Now()
	copied := *trigger
	s.triggers[trigger.ID] = &copied
	return nil
}

// DeleteTrigger removes a trigger by ID.
func (s *Store) DeleteTrigger(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.triggers[id]; !ok {
		return errors.NotFoundError("trigger " + id)
	}
	delete(s.triggers, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// CreateHotel stores a hotel record.
func (s *Store) CreateHotel(hotel *storage.Hotel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if hotel.ID == "" {
		hotel.ID = utils.NewTaskID()
	}
	copied := *hotel
	s.hotels[hotel.ID] = &copied
	return nil
}

// GetHotel returns a hotel by ID.
func (s *Store) GetHotel(hotelID string) (*storage.Hotel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hotel, ok := s.hotels[hotelID]
	if !ok {
		return nil, errors.NotFoundError("hotel " + hotelID)
	}
	copied := *hotel
	return &copied, nil
}

// ListHotels returns every registered hotel.
func (s *Store) ListHotels() ([]*storage.Hotel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*storage.Hotel, 0, len(s.hotels))
	for _, hotel := range s.hotels {
		copied := *hotel
		result = append(result, &copied)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// CreateGuest stores a guest record.
func (s *Store) CreateGuest(guest *storage.Guest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if guest.ID == "" {
		guest.ID = utils.NewTaskID()
	}
	copied := *guest
	s.guests[guest.ID] = &copied
	return nil
}

// GetGuest returns a guest by ID scoped to one hotel.
func (s *Store) GetGuest(guestID, hotelID string) (*storage.Guest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	guest, ok := s.guests[guestID]
	if !ok || guest.HotelID != hotelID {
		return nil, errors.NotFoundError("guest " + guestID)
	}
	copied := *guest
	return &copied, nil
}

// ListGuests returns all guests belonging to a hotel.
func (s *Store) ListGuests(hotelID string) ([]*storage.Guest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*storage.Guest
	for _, guest := range s.guests {
		if guest.HotelID != hotelID {
			continue
		}
		copied := *guest
		result = append(result, &copied)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// Health always reports healthy for the in-memory store.
func (s *Store) Health() error { return nil }

// Close is a no-op for the in-memory store.
func (s *Store) Close() error { return nil }
