package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"guest-messaging/internal/common/errors"
	"guest-messaging/internal/cron"
)

// TriggerType identifies how a trigger's conditions are evaluated.
type TriggerType string

const (
	// TimeBased triggers fire relative to a reference instant or a cron schedule
	TimeBased TriggerType = "TIME_BASED"
	// ConditionBased triggers fire when field conditions hold against the runtime context
	ConditionBased TriggerType = "CONDITION_BASED"
	// EventBased triggers fire in response to a named event
	EventBased TriggerType = "EVENT_BASED"
)

// ScheduleType identifies how a time-based trigger's execution instant is derived.
type ScheduleType string

const (
	ScheduleHoursAfterCheckin      ScheduleType = "hours_after_checkin"
	ScheduleDaysAfterCheckin       ScheduleType = "days_after_checkin"
	ScheduleHoursAfterFirstMessage ScheduleType = "hours_after_first_message"
	ScheduleSpecificTime           ScheduleType = "specific_time"
	ScheduleCronExpression         ScheduleType = "cron_expression"
	ScheduleImmediate              ScheduleType = "immediate"
)

// Operator names a comparison applied by condition-based triggers.
type Operator string

const (
	OpEquals       Operator = "equals"
	OpNotEquals    Operator = "not_equals"
	OpGreaterThan  Operator = "greater_than"
	OpLessThan     Operator = "less_than"
	OpGreaterEqual Operator = "greater_equal"
	OpLessEqual    Operator = "less_equal"
	OpContains     Operator = "contains"
	OpNotContains  Operator = "not_contains"
	OpIn           Operator = "in"
	OpNotIn        Operator = "not_in"
	OpRegex        Operator = "regex"
)

// Logic combines the results of a condition list.
type Logic string

const (
	LogicAnd Logic = "AND"
	LogicOr  Logic = "OR"
)

// TimeSpec is the conditions payload of a TIME_BASED trigger.
type TimeSpec struct {
	ScheduleType   ScheduleType `json:"schedule_type"`
	HoursAfter     float64      `json:"hours_after,omitempty"`
	DaysAfter      int          `json:"days_after,omitempty"`
	SpecificTime   string       `json:"specific_time,omitempty"` // "15:04"
	CronExpression string       `json:"cron_expression,omitempty"`
	Timezone       string       `json:"timezone,omitempty"`
}

// Location resolves the configured timezone, defaulting to UTC when unset
// or unknown.
func (s *TimeSpec) Location() *time.Location {
	if s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// FieldCondition is a single comparison against a dot-path in the runtime context.
type FieldCondition struct {
	Field    string      `json:"field"`
	Operator Operator    `json:"operator"`
	Value    interface{} `json:"value"`
}

// ConditionSet is the conditions payload of a CONDITION_BASED trigger.
type ConditionSet struct {
	Conditions []FieldCondition `json:"conditions"`
	Logic      Logic            `json:"logic"`
}

// EventSpec is the conditions payload of an EVENT_BASED trigger.
type EventSpec struct {
	EventType    string                 `json:"event_type"`
	DelayMinutes int                    `json:"delay_minutes,omitempty"`
	Filters      map[string]interface{} `json:"event_filters,omitempty"`
}

// ConditionSpec is a closed tagged union over the three condition payload
// shapes. Exactly one branch is set, matching the trigger's type; the
// match is enforced at create/update time so evaluation can assume a
// well-formed record.
type ConditionSpec struct {
	Time  *TimeSpec     `json:"time,omitempty"`
	Cond  *ConditionSet `json:"condition,omitempty"`
	Event *EventSpec    `json:"event,omitempty"`
}

// Trigger is a persisted rule associating a condition specification with
// a message template and priority, owned by one hotel.
type Trigger struct {
	ID              string        `json:"id"`
	HotelID         string        `json:"hotel_id"`
	Name            string        `json:"name"`
	Type            TriggerType   `json:"trigger_type"`
	Conditions      ConditionSpec `json:"conditions"`
	MessageTemplate string        `json:"message_template"`
	Active          bool          `json:"is_active"`
	Priority        int           `json:"priority"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// Hotel is the tenant owning triggers and guests.
type Hotel struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Timezone string `json:"timezone"`
}

// Guest is a messaging recipient belonging to one hotel.
type Guest struct {
	ID             string                 `json:"id"`
	HotelID        string                 `json:"hotel_id"`
	Name           string                 `json:"name"`
	Phone          string                 `json:"phone"`
	CheckinAt      *time.Time             `json:"checkin_at,omitempty"`
	FirstMessageAt *time.Time             `json:"first_message_at,omitempty"`
	Attributes     map[string]interface{} `json:"attributes,omitempty"`
}

// Address returns the deliverable destination for the guest, empty when
// the guest cannot be messaged.
func (g *Guest) Address() string {
	if g == nil {
		return ""
	}
	return g.Phone
}

const maxTemplateLength = 10000

// Validate enforces the structural invariants on a trigger record. It is
// called at the persistence boundary; evaluation assumes records passed it.
func (t *Trigger) Validate() error {
	if t.HotelID == "" {
		return errors.ValidationError("trigger hotel_id is required")
	}
	if t.Name == "" {
		return errors.ValidationError("trigger name is required")
	}
	if t.Priority < 1 || t.Priority > 10 {
		return errors.ValidationError(fmt.Sprintf("trigger priority %d out of range 1-10", t.Priority))
	}
	if len(t.MessageTemplate) > maxTemplateLength {
		return errors.ValidationError(fmt.Sprintf("message template exceeds %d characters", maxTemplateLength))
	}

	switch t.Type {
	case TimeBased:
		return t.Conditions.validateTime()
	case ConditionBased:
		return t.Conditions.validateCond()
	case EventBased:
		return t.Conditions.validateEvent()
	default:
		return errors.ValidationError(fmt.Sprintf("unknown trigger type %q", t.Type))
	}
}

func (c *ConditionSpec) validateTime() error {
	if c.Time == nil || c.Cond != nil || c.Event != nil {
		return errors.ValidationError("TIME_BASED trigger requires a time conditions payload")
	}
	spec := c.Time

	switch spec.ScheduleType {
	case ScheduleHoursAfterCheckin, ScheduleHoursAfterFirstMessage:
		if spec.HoursAfter <= 0 {
			return errors.ValidationError("hours_after must be positive")
		}
	case ScheduleDaysAfterCheckin:
		if spec.DaysAfter <= 0 {
			return errors.ValidationError("days_after must be positive")
		}
	case ScheduleSpecificTime:
		if _, err := time.Parse("15:04", spec.SpecificTime); err != nil {
			return errors.ValidationError(fmt.Sprintf("invalid specific_time %q, expected HH:MM", spec.SpecificTime))
		}
	case ScheduleCronExpression:
		if err := cron.Validate(spec.CronExpression); err != nil {
			return errors.ValidationError(fmt.Sprintf("invalid cron expression: %v", err))
		}
	case ScheduleImmediate:
		// no payload
	default:
		return errors.ValidationError(fmt.Sprintf("unknown schedule type %q", spec.ScheduleType))
	}

	if spec.Timezone != "" {
		if _, err := time.LoadLocation(spec.Timezone); err != nil {
			return errors.ValidationError(fmt.Sprintf("invalid timezone %q", spec.Timezone))
		}
	}
	return nil
}

func (c *ConditionSpec) validateCond() error {
	if c.Cond == nil || c.Time != nil || c.Event != nil {
		return errors.ValidationError("CONDITION_BASED trigger requires a condition list payload")
	}
	set := c.Cond

	if set.Logic != LogicAnd && set.Logic != LogicOr {
		return errors.ValidationError(fmt.Sprintf("unknown logic %q, expected AND or OR", set.Logic))
	}

	valid := map[Operator]bool{
		OpEquals: true, OpNotEquals: true,
		OpGreaterThan: true, OpLessThan: true,
		OpGreaterEqual: true, OpLessEqual: true,
		OpContains: true, OpNotContains: true,
		OpIn: true, OpNotIn: true,
		OpRegex: true,
	}
	for i, cond := range set.Conditions {
		if cond.Field == "" {
			return errors.ValidationError(fmt.Sprintf("condition %d: field is required", i))
		}
		if !valid[cond.Operator] {
			return errors.ValidationError(fmt.Sprintf("condition %d: unknown operator %q", i, cond.Operator))
		}
	}
	return nil
}

func (c *ConditionSpec) validateEvent() error {
	if c.Event == nil || c.Time != nil || c.Cond != nil {
		return errors.ValidationError("EVENT_BASED trigger requires an event conditions payload")
	}
	if c.Event.EventType == "" {
		return errors.ValidationError("event_type is required")
	}
	if c.Event.DelayMinutes < 0 {
		return errors.ValidationError("delay_minutes cannot be negative")
	}
	return nil
}

// EncodeConditions serializes the active union branch as a flat JSON
// payload for the conditions column.
func (t *Trigger) EncodeConditions() ([]byte, error) {
	switch t.Type {
	case TimeBased:
		return json.Marshal(t.Conditions.Time)
	case ConditionBased:
		return json.Marshal(t.Conditions.Cond)
	case EventBased:
		return json.Marshal(t.Conditions.Event)
	default:
		return nil, errors.ValidationError(fmt.Sprintf("unknown trigger type %q", t.Type))
	}
}

// DecodeConditions parses a stored conditions payload into the union
// branch matching the trigger type.
func DecodeConditions(triggerType TriggerType, raw []byte) (ConditionSpec, error) {
	var spec ConditionSpec
	switch triggerType {
	case TimeBased:
		spec.Time = &TimeSpec{}
		if err := json.Unmarshal(raw, spec.Time); err != nil {
			return ConditionSpec{}, errors.ValidationError(fmt.Sprintf("malformed time conditions: %v", err))
		}
	case ConditionBased:
		spec.Cond = &ConditionSet{}
		if err := json.Unmarshal(raw, spec.Cond); err != nil {
			return ConditionSpec{}, errors.ValidationError(fmt.Sprintf("malformed condition list: %v", err))
		}
	case EventBased:
		spec.Event = &EventSpec{}
		if err := json.Unmarshal(raw, spec.Event); err != nil {
			return ConditionSpec{}, errors.ValidationError(fmt.Sprintf("malformed event conditions: %v", err))
		}
	default:
		return ConditionSpec{}, errors.ValidationError(fmt.Sprintf("unknown trigger type %q", triggerType))
	}
	return spec, nil
}
