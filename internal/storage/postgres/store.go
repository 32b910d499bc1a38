// Package postgres provides a PostgreSQL-backed Store using pgx.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"guest-messaging/internal/common/errors"
	"guest-messaging/internal/common/utils"
	"guest-messaging/internal/storage"
)

// Store implements storage.Store on top of a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to PostgreSQL, runs migrations and returns the store.
func NewStore(ctx context.Context, connString string) (*Store, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, errors.ConnectionError("failed to create PostgreSQL pool", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, errors.ConnectionError("failed to ping PostgreSQL", err)
	}

	store := &Store{pool: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, errors.InternalError("failed to migrate database", err)
	}
	return store, nil
}

func (s *Store) migrate(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS hotels (
			id VARCHAR(64) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			phone VARCHAR(64) DEFAULT '',
			timezone VARCHAR(64) DEFAULT 'UTC'
		)`,
		`CREATE TABLE IF NOT EXISTS guests (
			id VARCHAR(64) PRIMARY KEY,
			hotel_id VARCHAR(64) NOT NULL REFERENCES hotels(id),
			name VARCHAR(255) DEFAULT '',
			phone VARCHAR(64) DEFAULT '',
			checkin_at TIMESTAMPTZ,
			first_message_at TIMESTAMPTZ,
			attributes JSONB DEFAULT '{}'
		)`,
		`CREATE TABLE IF NOT EXISTS triggers (
			id VARCHAR(64) PRIMARY KEY,
			seq BIGSERIAL,
			hotel_id VARCHAR(64) NOT NULL REFERENCES hotels(id),
			name VARCHAR(255) NOT NULL,
			trigger_type VARCHAR(32) NOT NULL,
			conditions JSONB NOT NULL DEFAULT '{}',
			message_template TEXT NOT NULL DEFAULT '',
			is_active BOOLEAN NOT NULL DEFAULT true,
			priority INTEGER NOT NULL DEFAULT 5,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_triggers_hotel_active
			ON triggers(hotel_id, is_active, trigger_type)`,
	}

	for _, query := range queries {
		if _, err := s.pool.Exec(ctx, query); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// CreateTrigger validates and inserts a trigger record.
func (s *Store) CreateTrigger(trigger *storage.Trigger) error {
	if err := trigger.Validate(); err != nil {
		return err
	}
	if trigger.ID == "" {
		trigger.ID = utils.NewTaskID()
	}

	conditions, err := trigger.EncodeConditions()
	if err != nil {
		return err
	}

	now := time.Now()
	trigger.CreatedAt = now
	trigger.UpdatedAt = now

	_, err = s.pool.Exec(context.Background(),
		`INSERT INTO triggers
			(id, hotel_id, name, trigger_type, conditions, message_template, is_active, priority, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		trigger.ID, trigger.HotelID, trigger.Name, string(trigger.Type), conditions,
		trigger.MessageTemplate, trigger.Active, trigger.Priority, trigger.CreatedAt, trigger.UpdatedAt)
	if err != nil {
		return errors.InternalError("failed to insert trigger", err)
	}
	return nil
}

// GetTrigger returns a trigger by ID.
func (s *Store) GetTrigger(id string) (*storage.Trigger, error) {
	row := s.pool.QueryRow(context.Background(),
		`SELECT id, hotel_id, name, trigger_type, conditions, message_template, is_active, priority, created_at, updated_at
		 FROM triggers WHERE id = $1`, id)

	trigger, err := scanTrigger(row)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFoundError("trigger " + id)
	}
	if err != nil {
		return nil, errors.InternalError("failed to load trigger", err)
	}
	return trigger, nil
}

// ListActiveTriggers returns active triggers for a hotel ordered by
// priority, with the insert sequence breaking ties.
func (s *Store) ListActiveTriggers(hotelID string, triggerType storage.TriggerType) ([]*storage.Trigger, error) {
	query := `SELECT id, hotel_id, name, trigger_type, conditions, message_template, is_active, priority, created_at, updated_at
		FROM triggers WHERE hotel_id = $1 AND is_active = true`
	args := []interface{}{hotelID}

	if triggerType != "" {
		query += ` AND trigger_type = $2`
		args = append(args, string(triggerType))
	}
	query += ` ORDER BY priority ASC, seq ASC`

	rows, err := s.pool.Query(context.Background(), query, args...)
	if err != nil {
		return nil, errors.InternalError("failed to list triggers", err)
	}
	defer rows.Close()

	var triggers []*storage.Trigger
	for rows.Next() {
		trigger, err := scanTrigger(rows)
		if err != nil {
			return nil, errors.InternalError("failed to scan trigger", err)
		}
		triggers = append(triggers, trigger)
	}
	return triggers, rows.Err()
}

// UpdateTrigger validates and replaces a trigger record.
func (s *Store) UpdateTrigger(trigger *storage.Trigger) error {
	if err := trigger.Validate(); err != nil {
		return err
	}

	conditions, err := trigger.EncodeConditions()
	if err != nil {
		return err
	}
	trigger.UpdatedAt = time.Now()

	tag, err := s.pool.Exec(context.Background(),
		`UPDATE triggers SET name = $2, trigger_type = $3, conditions = $4,
			message_template = $5, is_active = $6, priority = $7, updated_at = $8
		 WHERE id = $1`,
		trigger.ID, trigger.Name, string(trigger.Type), conditions,
		trigger.MessageTemplate, trigger.Active, trigger.Priority, trigger.UpdatedAt)
	if err != nil {
		return errors.InternalError("failed to update trigger", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFoundError("trigger " + trigger.ID)
	}
	return nil
}

// DeleteTrigger removes a trigger record.
func (s *Store) DeleteTrigger(id string) error {
	tag, err := s.pool.Exec(context.Background(), `DELETE FROM triggers WHERE id = $1`, id)
	if err != nil {
		return errors.InternalError("failed to delete trigger", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFoundError("trigger " + id)
	}
	return nil
}

// CreateHotel inserts a hotel record.
func (s *Store) CreateHotel(hotel *storage.Hotel) error {
	if hotel.ID == "" {
		hotel.ID = utils.NewTaskID()
	}
	_, err := s.pool.Exec(context.Background(),
		`INSERT INTO hotels (id, name, phone, timezone) VALUES ($1, $2, $3, $4)`,
		hotel.ID, hotel.Name, hotel.Phone, hotel.Timezone)
	if err != nil {
		return errors.InternalError("failed to insert hotel", err)
	}
	return nil
}

// GetHotel returns a hotel by ID.
func (s *Store) GetHotel(hotelID string) (*storage.Hotel, error) {
	hotel := &storage.Hotel{}
	err := s.pool.QueryRow(context.Background(),
		`SELECT id, name, phone, timezone FROM hotels WHERE id = $1`, hotelID).
		Scan(&hotel.ID, &hotel.Name, &hotel.Phone, &hotel.Timezone)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFoundError("hotel " + hotelID)
	}
	if err != nil {
		return nil, errors.InternalError("failed to load hotel", err)
	}
	return hotel, nil
}

// ListHotels returns every registered hotel.
func (s *Store) ListHotels() ([]*storage.Hotel, error) {
	rows, err := s.pool.Query(context.Background(),
		`SELECT id, name, phone, timezone FROM hotels ORDER BY id`)
	if err != nil {
		return nil, errors.InternalError("failed to list hotels", err)
	}
	defer rows.Close()

	var hotels []*storage.Hotel
	for rows.Next() {
		hotel := &storage.Hotel{}
		if err := rows.Scan(&hotel.ID, &hotel.Name, &hotel.Phone, &hotel.Timezone); err != nil {
			return nil, errors.InternalError("failed to scan hotel", err)
		}
		hotels = append(hotels, hotel)
	}
	return hotels, rows.Err()
}

// CreateGuest inserts a guest record.
func (s *Store) CreateGuest(guest *storage.Guest) error {
	if guest.ID == "" {
		guest.ID = utils.NewTaskID()
	}
	attributes, err := json.Marshal(guest.Attributes)
	if err != nil {
		return errors.ValidationError(fmt.Sprintf("unencodable guest attributes: %v", err))
	}

	_, err = s.pool.Exec(context.Background(),
		`INSERT INTO guests (id, hotel_id, name, phone, checkin_at, first_message_at, attributes)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		guest.ID, guest.HotelID, guest.Name, guest.Phone, guest.CheckinAt, guest.FirstMessageAt, attributes)
	if err != nil {
		return errors.InternalError("failed to insert guest", err)
	}
	return nil
}

// GetGuest returns a guest by ID within one hotel.
func (s *Store) GetGuest(guestID, hotelID string) (*storage.Guest, error) {
	guest := &storage.Guest{}
	var attributes []byte

	err := s.pool.QueryRow(context.Background(),
		`SELECT id, hotel_id, name, phone, checkin_at, first_message_at, attributes
		 FROM guests WHERE id = $1 AND hotel_id = $2`, guestID, hotelID).
		Scan(&guest.ID, &guest.HotelID, &guest.Name, &guest.Phone,
			&guest.CheckinAt, &guest.FirstMessageAt, &attributes)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFoundError("guest " + guestID)
	}
	if err != nil {
		return nil, errors.InternalError("failed to load guest", err)
	}

	if len(attributes) > 0 {
		if err := json.Unmarshal(attributes, &guest.Attributes); err != nil {
			return nil, errors.InternalError("malformed guest attributes", err)
		}
	}
	return guest, nil
}

// ListGuests returns all guests belonging to a hotel.
func (s *Store) ListGuests(hotelID string) ([]*storage.Guest, error) {
	rows, err := s.pool.Query(context.Background(),
		`SELECT id, hotel_id, name, phone, checkin_at, first_message_at, attributes
		 FROM guests WHERE hotel_id = $1 ORDER BY id`, hotelID)
	if err != nil {
		return nil, errors.InternalError("failed to list guests", err)
	}
	defer rows.Close()

	var guests []*storage.Guest
	for rows.Next() {
		guest := &storage.Guest{}
		var attributes []byte
		if err := rows.Scan(&guest.ID, &guest.HotelID, &guest.Name, &guest.Phone,
			&guest.CheckinAt, &guest.FirstMessageAt, &attributes); err != nil {
			return nil, errors.InternalError("failed to scan guest", err)
		}
		if len(attributes) > 0 {
			if err := json.Unmarshal(attributes, &guest.Attributes); err != nil {
				return nil, errors.InternalError("malformed guest attributes", err)
			}
		}
		guests = append(guests, guest)
	}
	return guests, rows.Err()
}

// Health pings the database.
func (s *Store) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTrigger(row rowScanner) (*storage.Trigger, error) {
	trigger := &storage.Trigger{}
	var triggerType string
	var conditions []byte

	err := row.Scan(&trigger.ID, &trigger.HotelID, &trigger.Name, &triggerType, &conditions,
		&trigger.MessageTemplate, &trigger.Active, &trigger.Priority, &trigger.CreatedAt, &trigger.UpdatedAt)
	if err != nil {
		return nil, err
	}

	trigger.Type = storage.TriggerType(triggerType)
	spec, err := storage.DecodeConditions(trigger.Type, conditions)
	if err != nil {
		return nil, err
	}
	trigger.Conditions = spec
	return trigger, nil
}
