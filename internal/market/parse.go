package market

import (
	"fmt"
	"strings"
	"time"

	"stock-trading-sim-go/internal/apperr"
)

// DateLayout is the format of holiday and daily stat dates.
const DateLayout = "2006-01-02"

// ParseClock parses "HH:MM" into minutes after midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, apperr.Invalid("time must be in HH:MM format, got %q", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// FormatClock renders minutes after midnight as "HH:MM".
func FormatClock(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday,
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
}

// ParseWeekday accepts a weekday name or any prefix of at least three
// letters, case-insensitively ("Mon", "monday", "TUES").
func ParseWeekday(s string) (time.Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if len(name) >= 3 {
		if day, ok := weekdays[name[:3]]; ok && strings.HasPrefix(strings.ToLower(day.String()), name) {
			return day, nil
		}
	}
	return 0, apperr.Invalid("unknown day of week %q", s)
}

// ParseDate parses "YYYY-MM-DD" as a calendar date.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, apperr.Invalid("date must be in YYYY-MM-DD format, got %q", s)
	}
	return d, nil
}
