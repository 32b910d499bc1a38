package testutil

import (
	"time"

	"guest-messaging/internal/storage"
)

// TriggerBuilder builds test triggers with sensible defaults.
type TriggerBuilder struct {
	trigger *storage.Trigger
}

// NewTriggerBuilder starts from an active time-based trigger that
// fires two hours after check-in.
func NewTriggerBuilder() *TriggerBuilder {
	return &TriggerBuilder{
		trigger: &storage.Trigger{
			ID:      "test-trigger-id",
			HotelID: "test-hotel-id",
			Name:    "test-trigger",
			Type:    storage.TimeBased,
			Conditions: storage.ConditionSpec{
				Time: &storage.TimeSpec{
					ScheduleType: storage.ScheduleHoursAfterCheckin,
					HoursAfter:   2,
				},
			},
			MessageTemplate: "Hello {{guest_name}}!",
			Active:          true,
			Priority:        5,
			CreatedAt:       time.Now(),
			UpdatedAt:       time.Now(),
		},
	}
}

func (b *TriggerBuilder) WithID(id string) *TriggerBuilder {
	b.trigger.ID = id
	return b
}

func (b *TriggerBuilder) WithHotelID(hotelID string) *TriggerBuilder {
	b.trigger.HotelID = hotelID
	return b
}

func (b *TriggerBuilder) WithName(name string) *TriggerBuilder {
	b.trigger.Name = name
	return b
}

func (b *TriggerBuilder) WithTemplate(template string) *TriggerBuilder {
	b.trigger.MessageTemplate = template
	return b
}

func (b *TriggerBuilder) WithActive(active bool) *TriggerBuilder {
	b.trigger.Active = active
	return b
}

func (b *TriggerBuilder) WithPriority(priority int) *TriggerBuilder {
	b.trigger.Priority = priority
	return b
}

func (b *TriggerBuilder) WithTimeSpec(spec *storage.TimeSpec) *TriggerBuilder {
	b.trigger.Type = storage.TimeBased
	b.trigger.Conditions = storage.ConditionSpec{Time: spec}
	return b
}

func (b *TriggerBuilder) WithConditions(logic storage.Logic, conds ...storage.FieldCondition) *TriggerBuilder {
	b.trigger.Type = storage.ConditionBased
	b.trigger.Conditions = storage.ConditionSpec{
		Cond: &storage.ConditionSet{Logic: logic, Conditions: conds},
	}
	return b
}

func (b *TriggerBuilder) WithEvent(spec *storage.EventSpec) *TriggerBuilder {
	b.trigger.Type = storage.EventBased
	b.trigger.Conditions = storage.ConditionSpec{Event: spec}
	return b
}

func (b *TriggerBuilder) Build() *storage.Trigger {
	copied := *b.trigger
	return &copied
}

// GuestBuilder builds test guests.
type GuestBuilder struct {
	guest *storage.Guest
}

func NewGuestBuilder() *GuestBuilder {
	return &GuestBuilder{
		guest: &storage.Guest{
			ID:      "test-guest-id",
			HotelID: "test-hotel-id",
			Name:    "Test Guest",
			Phone:   "+15551234567",
		},
	}
}

func (b *GuestBuilder) WithID(id string) *GuestBuilder {
	b.guest.ID = id
	return b
}

func (b *GuestBuilder) WithHotelID(hotelID string) *GuestBuilder {
	b.guest.HotelID = hotelID
	return b
}

func (b *GuestBuilder) WithName(name string) *GuestBuilder {
	b.guest.Name = name
	return b
}

func (b *GuestBuilder) WithPhone(phone string) *GuestBuilder {
	b.guest.Phone = phone
	return b
}

func (b *GuestBuilder) WithCheckin(t time.Time) *GuestBuilder {
	b.guest.CheckinAt = &t
	return b
}

func (b *GuestBuilder) WithFirstMessage(t time.Time) *GuestBuilder {
	b.guest.FirstMessageAt = &t
	return b
}

func (b *GuestBuilder) WithAttribute(key string, value interface{}) *GuestBuilder {
	if b.guest.Attributes == nil {
		b.guest.Attributes = make(map[string]interface{})
	}
	b.guest.Attributes[key] = value
	return b
}

func (b *GuestBuilder) Build() *storage.Guest {
	copied := *b.guest
	return &copied
}

// TestHotel returns a hotel record for tests.
func TestHotel() *storage.Hotel {
	return &storage.Hotel{
		ID:       "test-hotel-id",
		Name:     "Grand Plaza",
		Phone:    "+15550001111",
		Timezone: "UTC",
	}
}
