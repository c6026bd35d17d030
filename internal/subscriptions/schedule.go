package subscriptions

import (
	"fmt"
	"time"

	"github.com/kiranahq/kirana-backend/pkg/enums"
	pkgerrors "github.com/kiranahq/kirana-backend/pkg/errors"
)

// maxScheduleIterations bounds the day-by-day search so a malformed custom
// day mask surfaces as an error instead of spinning forever.
const maxScheduleIterations = 366

// ParseDeliveryTime validates an HH:MM wall-clock time and returns its parts.
func ParseDeliveryTime(value string) (hour, minute int, err error) {
	parsed, parseErr := time.Parse("15:04", value)
	if parseErr != nil {
		return 0, 0, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("delivery time %q must be HH:MM between 00:00 and 23:59", value))
	}
	return parsed.Hour(), parsed.Minute(), nil
}

// ComputeNextDelivery derives the next delivery instant for a subscription.
// The search starts at max(reference, now) with timeOfDay applied to that
// calendar date, then advances by the frequency's step until the candidate is
// strictly after now (and, for custom frequency, lands on an allowed weekday).
func ComputeNextDelivery(
	frequency enums.SubscriptionFrequency,
	timeOfDay string,
	customDays []string,
	reference time.Time,
	now time.Time,
) (time.Time, error) {
	hour, minute, err := ParseDeliveryTime(timeOfDay)
	if err != nil {
		return time.Time{}, err
	}

	var allowed map[time.Weekday]bool
	switch frequency {
	case enums.SubscriptionFrequencyDaily, enums.SubscriptionFrequencyWeekly:
	case enums.SubscriptionFrequencyCustom:
		allowed, err = enums.ParseWeekdaySet(customDays)
		if err != nil {
			return time.Time{}, pkgerrors.Wrap(pkgerrors.CodeSchedule, err, "custom frequency requires a valid day set")
		}
	default:
		return time.Time{}, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("invalid subscription frequency %q", frequency))
	}

	start := reference
	if now.After(start) {
		start = now
	}

	candidate := time.Date(start.Year(), start.Month(), start.Day(), hour, minute, 0, 0, start.Location())

	for i := 0; i < maxScheduleIterations; i++ {
		if candidate.After(now) {
			if frequency != enums.SubscriptionFrequencyCustom || allowed[candidate.Weekday()] {
				return candidate, nil
			}
		}
		switch frequency {
		case enums.SubscriptionFrequencyWeekly:
			candidate = candidate.AddDate(0, 0, 7)
		default:
			candidate = candidate.AddDate(0, 0, 1)
		}
	}

	return time.Time{}, pkgerrors.New(pkgerrors.CodeSchedule,
		fmt.Sprintf("no delivery slot found within %d days", maxScheduleIterations))
}
