// Package testutil provides shared mocks and builders for tests.
package testutil

import (
	"context"
	"errors"
	"sync"

	"guest-messaging/internal/delivery"
	"guest-messaging/internal/storage"
	"guest-messaging/internal/storage/memory"
)

// ErrTestFailure is a generic injected failure.
var ErrTestFailure = errors.New("test failure")

// MockStore wraps the memory store with per-method error injection.
type MockStore struct {
	*memory.Store

	// ErrorOnMethod maps a method name to the error it should return.
	ErrorOnMethod map[string]error
}

// NewMockStore creates a mock store backed by the in-memory store.
func NewMockStore() *MockStore {
	return &MockStore{
		Store:         memory.NewStore(),
		ErrorOnMethod: make(map[string]error),
	}
}

func (m *MockStore) CreateTrigger(trigger *storage.Trigger) error {
	if err := m.ErrorOnMethod["CreateTrigger"]; err != nil {
		return err
	}
	return m.Store.CreateTrigger(trigger)
}

func (m *MockStore) GetTrigger(id string) (*storage.Trigger, error) {
	if err := m.ErrorOnMethod["GetTrigger"]; err != nil {
		return nil, err
	}
	return m.Store.GetTrigger(id)
}

func (m *MockStore) ListActiveTriggers(hotelID string, triggerType storage.TriggerType) ([]*storage.Trigger, error) {
	if err := m.ErrorOnMethod["ListActiveTriggers"]; err != nil {
		return nil, err
	}
	return m.Store.ListActiveTriggers(hotelID, triggerType)
}

func (m *MockStore) UpdateTrigger(trigger *storage.Trigger) error {
	if err := m.ErrorOnMethod["UpdateTrigger"]; err != nil {
		return err
	}
	return m.Store.UpdateTrigger(trigger)
}

func (m *MockStore) DeleteTrigger(id string) error {
	if err := m.ErrorOnMethod["DeleteTrigger"]; err != nil {
		return err
	}
	return m.Store.DeleteTrigger(id)
}

func (m *MockStore) GetHotel(hotelID string) (*storage.Hotel, error) {
	if err := m.ErrorOnMethod["GetHotel"]; err != nil {
		return nil, err
	}
	return m.Store.GetHotel(hotelID)
}

func (m *MockStore) GetGuest(guestID, hotelID string) (*storage.Guest, error) {
	if err := m.ErrorOnMethod["GetGuest"]; err != nil {
		return nil, err
	}
	return m.Store.GetGuest(guestID, hotelID)
}

func (m *MockStore) ListHotels() ([]*storage.Hotel, error) {
	if err := m.ErrorOnMethod["ListHotels"]; err != nil {
		return nil, err
	}
	return m.Store.ListHotels()
}

func (m *MockStore) ListGuests(hotelID string) ([]*storage.Guest, error) {
	if err := m.ErrorOnMethod["ListGuests"]; err != nil {
		return nil, err
	}
	return m.Store.ListGuests(hotelID)
}

func (m *MockStore) Health() error {
	if err := m.ErrorOnMethod["Health"]; err != nil {
		return err
	}
	return m.Store.Health()
}

// MockDeliverer records sent messages and optionally fails.
type MockDeliverer struct {
	mu       sync.Mutex
	Sent     []*delivery.Message
	SendErr  error
	CloseErr error
}

func NewMockDeliverer() *MockDeliverer {
	return &MockDeliverer{}
}

func (m *MockDeliverer) Name() string { return "mock" }

func (m *MockDeliverer) Send(_ context.Context, msg *delivery.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendErr != nil {
		return m.SendErr
	}
	m.Sent = append(m.Sent, msg)
	return nil
}

func (m *MockDeliverer) SentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}

func (m *MockDeliverer) LastSent() *delivery.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Sent) == 0 {
		return nil
	}
	return m.Sent[len(m.Sent)-1]
}

func (m *MockDeliverer) Close() error { return m.CloseErr }
