// Package dates parses the user-facing date and weekday arguments shared
// by every day-scoped command.
package dates

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidDate marks input that matches none of the accepted forms,
// as opposed to a valid date with no readings.
var ErrInvalidDate = errors.New("invalid date")

// Layouts without a year default to now's year.
var yearlessLayouts = []string{"Jan 2", "January 2", "01/02", "1/2"}

// Parse resolves a date argument in now's location. Accepted forms,
// case-insensitively: "today", "yesterday", ISO YYYY-MM-DD, "Jan 2",
// "January 2", and "MM/DD".
func Parse(arg string, now time.Time) (time.Time, error) {
	trimmed := strings.TrimSpace(arg)

	switch strings.ToLower(trimmed) {
	case "today":
		return midnight(now), nil
	case "yesterday":
		return midnight(now.AddDate(0, 0, -1)), nil
	}

	if t, err := time.ParseInLocation("2006-01-02", trimmed, now.Location()); err == nil {
		return t, nil
	}

	for _, layout := range yearlessLayouts {
		if t, err := time.ParseInLocation(layout, titleMonth(trimmed), now.Location()); err == nil {
			return time.Date(now.Year(), t.Month(), t.Day(), 0, 0, 0, 0, now.Location()), nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, arg)
}

// ParseWeekday accepts a full weekday name or its 3-letter abbreviation,
// case-insensitively.
func ParseWeekday(name string) (time.Weekday, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		full := strings.ToLower(wd.String())
		if n == full || n == full[:3] {
			return wd, nil
		}
	}
	return 0, fmt.Errorf("unrecognized weekday %q", name)
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// titleMonth normalizes "jan 15" or "JANUARY 15" so the month token
// matches Go's reference layouts.
func titleMonth(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return s
	}
	first := fields[0]
	if len(first) > 1 {
		fields[0] = strings.ToUpper(first[:1]) + strings.ToLower(first[1:])
	} else {
		fields[0] = strings.ToUpper(first)
	}
	return strings.Join(fields, " ")
}
