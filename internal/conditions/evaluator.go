// Package conditions implements trigger qualification: a pure mapping
// from (trigger type, stored conditions, runtime context) to a boolean.
// Evaluation never fails outward; malformed data logs a warning and
// evaluates to false.
package conditions

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"guest-messaging/internal/common/logging"
	"guest-messaging/internal/common/utils"
	"guest-messaging/internal/cron"
	"guest-messaging/internal/storage"
)

// Evaluator decides whether a trigger qualifies for a runtime context.
type Evaluator struct {
	logger  logging.Logger
	nowFunc func() time.Time

	regexMu    sync.RWMutex
	regexCache map[string]*regexp.Regexp
}

// NewEvaluator creates an evaluator logging through the given logger.
func NewEvaluator(logger logging.Logger) *Evaluator {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Evaluator{
		logger:     logger,
		nowFunc:    time.Now,
		regexCache: make(map[string]*regexp.Regexp),
	}
}

// Evaluate reports whether the trigger's conditions hold for the context.
// It never panics; malformed condition payloads evaluate to false.
func (e *Evaluator) Evaluate(trigger *storage.Trigger, ctx map[string]interface{}) (result bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("condition evaluation panicked, treating as non-qualifying",
				logging.String("trigger_id", trigger.ID),
				logging.Any("panic", r),
			)
			result = false
		}
	}()

	if ctx == nil {
		ctx = map[string]interface{}{}
	}

	switch trigger.Type {
	case storage.TimeBased:
		return e.evaluateTime(trigger, ctx)
	case storage.ConditionBased:
		return e.evaluateConditions(trigger, ctx)
	case storage.EventBased:
		return e.evaluateEvent(trigger, ctx)
	default:
		e.logger.Warn("unknown trigger type",
			logging.String("trigger_id", trigger.ID),
			logging.String("trigger_type", string(trigger.Type)),
		)
		return false
	}
}

func (e *Evaluator) evaluateTime(trigger *storage.Trigger, ctx map[string]interface{}) bool {
	spec := trigger.Conditions.Time
	if spec == nil {
		e.logger.Warn("time-based trigger without time conditions",
			logging.String("trigger_id", trigger.ID))
		return false
	}

	now := e.nowFunc()

	switch spec.ScheduleType {
	case storage.ScheduleImmediate:
		return true

	case storage.ScheduleHoursAfterCheckin:
		ref, ok := e.referenceTime(ctx, "checkin_time")
		if !ok {
			e.logger.Warn("no reference time for hours_after_checkin trigger",
				logging.String("trigger_id", trigger.ID))
			return false
		}
		return !now.Before(ref.Add(time.Duration(spec.HoursAfter * float64(time.Hour))))

	case storage.ScheduleDaysAfterCheckin:
		ref, ok := e.referenceTime(ctx, "checkin_time")
		if !ok {
			e.logger.Warn("no reference time for days_after_checkin trigger",
				logging.String("trigger_id", trigger.ID))
			return false
		}
		return !now.Before(ref.AddDate(0, 0, spec.DaysAfter))

	case storage.ScheduleHoursAfterFirstMessage:
		ref, ok := e.referenceTime(ctx, "first_message_time")
		if !ok {
			e.logger.Warn("no reference time for hours_after_first_message trigger",
				logging.String("trigger_id", trigger.ID))
			return false
		}
		return !now.Before(ref.Add(time.Duration(spec.HoursAfter * float64(time.Hour))))

	case storage.ScheduleSpecificTime:
		target, err := time.Parse("15:04", spec.SpecificTime)
		if err != nil {
			e.logger.Warn("malformed specific_time in trigger conditions",
				logging.String("trigger_id", trigger.ID),
				logging.String("specific_time", spec.SpecificTime),
			)
			return false
		}
		local := now.In(spec.Location())
		// Naive same-day comparison: true once the wall clock passes the
		// target. Callers re-arm daily.
		nowMinutes := local.Hour()*60 + local.Minute()
		targetMinutes := target.Hour()*60 + target.Minute()
		return nowMinutes >= targetMinutes

	case storage.ScheduleCronExpression:
		schedule, err := cron.Parse(spec.CronExpression)
		if err != nil {
			e.logger.Warn("malformed cron expression in trigger conditions",
				logging.String("trigger_id", trigger.ID),
				logging.String("cron", spec.CronExpression),
				logging.Err(err),
			)
			return false
		}
		// Minute-granularity membership. Prefer the scheduler's
		// next-execution path; this branch suits per-minute sweeps.
		return schedule.Matches(now.In(spec.Location()))

	default:
		e.logger.Warn("unknown schedule type",
			logging.String("trigger_id", trigger.ID),
			logging.String("schedule_type", string(spec.ScheduleType)),
		)
		return false
	}
}

// referenceTime resolves the instant a relative schedule is measured
// from: the named context key first, then the generic reference_time.
func (e *Evaluator) referenceTime(ctx map[string]interface{}, key string) (time.Time, bool) {
	if v, ok := ctx[key]; ok {
		if t, ok := toTime(v); ok {
			return t, true
		}
	}
	if v, ok := ctx["reference_time"]; ok {
		if t, ok := toTime(v); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

func (e *Evaluator) evaluateConditions(trigger *storage.Trigger, ctx map[string]interface{}) bool {
	set := trigger.Conditions.Cond
	if set == nil {
		e.logger.Warn("condition-based trigger without condition list",
			logging.String("trigger_id", trigger.ID))
		return false
	}

	// Empty condition list passes vacuously.
	if len(set.Conditions) == 0 {
		return true
	}

	for _, cond := range set.Conditions {
		matched := e.evaluateCondition(trigger.ID, cond, ctx)
		if set.Logic == storage.LogicOr && matched {
			return true
		}
		if set.Logic != storage.LogicOr && !matched {
			return false
		}
	}
	return set.Logic != storage.LogicOr
}

func (e *Evaluator) evaluateCondition(triggerID string, cond storage.FieldCondition, ctx map[string]interface{}) bool {
	value, found := utils.LookupPath(ctx, cond.Field)

	switch cond.Operator {
	case storage.OpEquals:
		return found && stringify(value) == stringify(cond.Value)

	case storage.OpNotEquals:
		// A missing field is not equal to anything.
		return !found || stringify(value) != stringify(cond.Value)

	case storage.OpContains:
		return found && strings.Contains(stringify(value), stringify(cond.Value))

	case storage.OpNotContains:
		return !found || !strings.Contains(stringify(value), stringify(cond.Value))

	case storage.OpGreaterThan, storage.OpLessThan, storage.OpGreaterEqual, storage.OpLessEqual:
		if !found {
			return false
		}
		left, okL := toFloat(value)
		right, okR := toFloat(cond.Value)
		if !okL || !okR {
			// Numeric comparison against non-numeric data fails closed.
			e.logger.Warn("non-numeric operands for numeric comparison",
				logging.String("trigger_id", triggerID),
				logging.String("field", cond.Field),
			)
			return false
		}
		switch cond.Operator {
		case storage.OpGreaterThan:
			return left > right
		case storage.OpLessThan:
			return left < right
		case storage.OpGreaterEqual:
			return left >= right
		default:
			return left <= right
		}

	case storage.OpIn:
		return found && inList(value, cond.Value)

	case storage.OpNotIn:
		return !found || !inList(value, cond.Value)

	case storage.OpRegex:
		if !found {
			return false
		}
		pattern, ok := cond.Value.(string)
		if !ok {
			e.logger.Warn("regex operator requires a string pattern",
				logging.String("trigger_id", triggerID),
				logging.String("field", cond.Field),
			)
			return false
		}
		re, err := e.compileRegex(pattern)
		if err != nil {
			e.logger.Warn("invalid regex pattern in trigger conditions",
				logging.String("trigger_id", triggerID),
				logging.String("pattern", pattern),
				logging.Err(err),
			)
			return false
		}
		return re.MatchString(stringify(value))

	default:
		e.logger.Warn("unknown condition operator",
			logging.String("trigger_id", triggerID),
			logging.String("operator", string(cond.Operator)),
		)
		return false
	}
}

func (e *Evaluator) evaluateEvent(trigger *storage.Trigger, ctx map[string]interface{}) bool {
	spec := trigger.Conditions.Event
	if spec == nil {
		e.logger.Warn("event-based trigger without event conditions",
			logging.String("trigger_id", trigger.ID))
		return false
	}

	eventType, _ := ctx["event_type"].(string)
	if eventType != spec.EventType {
		return false
	}

	if spec.DelayMinutes > 0 {
		eventTime, ok := toTime(ctx["event_time"])
		if !ok {
			e.logger.Warn("delayed event trigger without event_time in context",
				logging.String("trigger_id", trigger.ID))
			return false
		}
		if e.nowFunc().Before(eventTime.Add(time.Duration(spec.DelayMinutes) * time.Minute)) {
			return false
		}
	}

	for key, want := range spec.Filters {
		got, found := utils.LookupPath(ctx, key)
		if !found || stringify(got) != stringify(want) {
			return false
		}
	}
	return true
}

func (e *Evaluator) compileRegex(pattern string) (*regexp.Regexp, error) {
	e.regexMu.RLock()
	re, ok := e.regexCache[pattern]
	e.regexMu.RUnlock()
	if ok {
		return re, nil
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}

	e.regexMu.Lock()
	e.regexCache[pattern] = re
	e.regexMu.Unlock()
	return re, nil
}

// toTime coerces context values into instants. Accepted forms: time.Time,
// *time.Time and RFC3339 strings.
func toTime(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, true
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	default:
		return time.Time{}, false
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return parsed, err == nil
	default:
		return 0, false
	}
}

func inList(value, list interface{}) bool {
	needle := stringify(value)

	switch items := list.(type) {
	case []interface{}:
		for _, item := range items {
			if stringify(item) == needle {
				return true
			}
		}
	case []string:
		for _, item := range items {
			if item == needle {
				return true
			}
		}
	case string:
		for _, item := range strings.Split(items, ",") {
			if strings.TrimSpace(item) == needle {
				return true
			}
		}
	}
	return false
}

func stringify(v interface{}) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}
