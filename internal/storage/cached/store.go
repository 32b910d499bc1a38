// Package cached decorates a storage.Store with a read-through cache
// for the records the evaluation hot path reads on every execution:
// hotels, guests and active trigger lists. Writes invalidate the
// affected entries so admin changes take effect within one read.
package cached

import (
	"time"

	"guest-messaging/internal/common/cache"
	"guest-messaging/internal/storage"
)

const cleanupInterval = 10 * time.Minute

// Store wraps another store with TTL caching.
type Store struct {
	inner storage.Store
	cache *cache.LocalCache
	ttl   time.Duration
}

// NewStore wraps the inner store. A zero TTL defaults to one minute.
func NewStore(inner storage.Store, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Store{
		inner: inner,
		cache: cache.NewLocalCache(ttl, cleanupInterval),
		ttl:   ttl,
	}
}

func hotelKey(hotelID string) string          { return "hotel:" + hotelID }
func guestKey(guestID, hotelID string) string { return "guest:" + hotelID + ":" + guestID }

func triggersKey(hotelID string, t storage.TriggerType) string {
	return "triggers:" + hotelID + ":" + string(t)
}

func (s *Store) invalidateTriggers(hotelID string) {
	for _, t := range []storage.TriggerType{
		"", storage.TimeBased, storage.ConditionBased, storage.EventBased,
	} {
		s.cache.Delete(triggersKey(hotelID, t))
	}
}

func (s *Store) CreateTrigger(trigger *storage.Trigger) error {
	if err := s.inner.CreateTrigger(trigger); err != nil {
		return err
	}
	s.invalidateTriggers(trigger.HotelID)
	return nil
}

func (s *Store) GetTrigger(id string) (*storage.Trigger, error) {
	return s.inner.GetTrigger(id)
}

func (s *Store) ListActiveTriggers(hotelID string, triggerType storage.TriggerType) ([]*storage.Trigger, error) {
	key := triggersKey(hotelID, triggerType)
	if v, ok := s.cache.Get(key); ok {
		return v.([]*storage.Trigger), nil
	}

	triggers, err := s.inner.ListActiveTriggers(hotelID, triggerType)
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, triggers, s.ttl)
	return triggers, nil
}

func (s *Store) UpdateTrigger(trigger *storage.Trigger) error {
	if err := s.inner.UpdateTrigger(trigger); err != nil {
		return err
	}
	s.invalidateTriggers(trigger.HotelID)
	return nil
}

func (s *Store) DeleteTrigger(id string) error {
	trigger, err := s.inner.GetTrigger(id)
	if err != nil {
		return err
	}
	if err := s.inner.DeleteTrigger(id); err != nil {
		return err
	}
	s.invalidateTriggers(trigger.HotelID)
	return nil
}

func (s *Store) CreateHotel(hotel *storage.Hotel) error {
	if err := s.inner.CreateHotel(hotel); err != nil {
		return err
	}
	s.cache.Delete(hotelKey(hotel.ID))
	return nil
}

func (s *Store) GetHotel(hotelID string) (*storage.Hotel, error) {
	key := hotelKey(hotelID)
	if v, ok := s.cache.Get(key); ok {
		return v.(*storage.Hotel), nil
	}

	hotel, err := s.inner.GetHotel(hotelID)
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, hotel, s.ttl)
	return hotel, nil
}

// ListHotels is an admin/sweep path, not a per-execution read; it goes
// straight through.
func (s *Store) ListHotels() ([]*storage.Hotel, error) {
	return s.inner.ListHotels()
}

func (s *Store) CreateGuest(guest *storage.Guest) error {
	if err := s.inner.CreateGuest(guest); err != nil {
		return err
	}
	s.cache.Delete(guestKey(guest.ID, guest.HotelID))
	return nil
}

func (s *Store) GetGuest(guestID, hotelID string) (*storage.Guest, error) {
	key := guestKey(guestID, hotelID)
	if v, ok := s.cache.Get(key); ok {
		return v.(*storage.Guest), nil
	}

	guest, err := s.inner.GetGuest(guestID, hotelID)
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, guest, s.ttl)
	return guest, nil
}

// ListGuests goes straight through for the same reason as ListHotels.
func (s *Store) ListGuests(hotelID string) ([]*storage.Guest, error) {
	return s.inner.ListGuests(hotelID)
}

func (s *Store) Health() error {
	return s.inner.Health()
}

func (s *Store) Close() error {
	s.cache.Flush()
	return s.inner.Close()
}
