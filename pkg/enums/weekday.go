package enums

import (
	"fmt"
	"strings"
	"time"
)

// Weekday is the lowercase weekday name used in custom delivery day masks.
type Weekday string

const (
	WeekdayMonday    Weekday = "monday"
	WeekdayTuesday   Weekday = "tuesday"
	WeekdayWednesday Weekday = "wednesday"
	WeekdayThursday  Weekday = "thursday"
	WeekdayFriday    Weekday = "friday"
	WeekdaySaturday  Weekday = "saturday"
	WeekdaySunday    Weekday = "sunday"
)

var weekdayByName = map[Weekday]time.Weekday{
	WeekdayMonday:    time.Monday,
	WeekdayTuesday:   time.Tuesday,
	WeekdayWednesday: time.Wednesday,
	WeekdayThursday:  time.Thursday,
	WeekdayFriday:    time.Friday,
	WeekdaySaturday:  time.Saturday,
	WeekdaySunday:    time.Sunday,
}

// String implements fmt.Stringer.
func (w Weekday) String() string {
	return string(w)
}

// IsValid reports whether the value is known.
func (w Weekday) IsValid() bool {
	_, ok := weekdayByName[w]
	return ok
}

// Time returns the time.Weekday equivalent.
func (w Weekday) Time() time.Weekday {
	return weekdayByName[w]
}

// ParseWeekday converts raw input into a Weekday.
func ParseWeekday(value string) (Weekday, error) {
	normalized := Weekday(strings.ToLower(strings.TrimSpace(value)))
	if normalized.IsValid() {
		return normalized, nil
	}
	return "", fmt.Errorf("invalid weekday %q", value)
}

// ParseWeekdaySet converts a list of raw weekday names into a set keyed by
// time.Weekday. Unknown names fail the whole set.
func ParseWeekdaySet(values []string) (map[time.Weekday]bool, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("weekday set is empty")
	}
	set := make(map[time.Weekday]bool, len(values))
	for _, value := range values {
		day, err := ParseWeekday(value)
		if err != nil {
			return nil, err
		}
		set[day.Time()] = true
	}
	return set, nil
}
