package conditions

import (
	"fmt"
	"time"

	"guest-messaging/internal/common/errors"
	"guest-messaging/internal/cron"
	"guest-messaging/internal/storage"
)

// NextExecutionTime computes the absolute dispatch instant for a
// time-based schedule measured from the reference instant. This is the
// same arithmetic the evaluator applies as a boolean check; the
// scheduler uses it to plan an exact dispatch instead of polling.
func NextExecutionTime(spec *storage.TimeSpec, reference time.Time) (time.Time, error) {
	if spec == nil {
		return time.Time{}, errors.ValidationError("nil time spec")
	}

	switch spec.ScheduleType {
	case storage.ScheduleImmediate:
		return reference, nil

	case storage.ScheduleHoursAfterCheckin, storage.ScheduleHoursAfterFirstMessage:
		return reference.Add(time.Duration(spec.HoursAfter * float64(time.Hour))), nil

	case storage.ScheduleDaysAfterCheckin:
		return reference.AddDate(0, 0, spec.DaysAfter), nil

	case storage.ScheduleSpecificTime:
		target, err := time.Parse("15:04", spec.SpecificTime)
		if err != nil {
			return time.Time{}, errors.ValidationError(fmt.Sprintf("invalid specific_time %q", spec.SpecificTime))
		}
		local := reference.In(spec.Location())
		at := time.Date(local.Year(), local.Month(), local.Day(),
			target.Hour(), target.Minute(), 0, 0, spec.Location())
		// Already past today's slot: plan for tomorrow.
		if at.Before(local) {
			at = at.AddDate(0, 0, 1)
		}
		return at, nil

	case storage.ScheduleCronExpression:
		schedule, err := cron.Parse(spec.CronExpression)
		if err != nil {
			return time.Time{}, errors.ValidationError(fmt.Sprintf("invalid cron expression: %v", err))
		}
		next, err := schedule.Next(reference.In(spec.Location()))
		if err != nil {
			return time.Time{}, errors.ValidationError(err.Error())
		}
		return next, nil

	default:
		return time.Time{}, errors.ValidationError(fmt.Sprintf("unknown schedule type %q", spec.ScheduleType))
	}
}
