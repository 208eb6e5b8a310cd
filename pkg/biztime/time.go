// Package biztime converts stored UTC timestamps into the display timezone.
// Storage and queries stay in UTC; only rendering uses the display zone.
package biztime

import (
	"fmt"
	"sync"
	"time"
	_ "time/tzdata"
)

const (
	DefaultTimezone = "Asia/Kolkata"
	// DateTimeLayout is the layout used in reports and pages.
	DateTimeLayout = "2006-01-02 15:04:05"
)

var (
	location *time.Location
	mu       sync.RWMutex
)

// Init sets the display timezone. An empty tz selects DefaultTimezone.
func Init(tz string) error {
	if tz == "" {
		tz = DefaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return fmt.Errorf("failed to load timezone %q: %w", tz, err)
	}

	mu.Lock()
	location = loc
	mu.Unlock()
	return nil
}

// Location returns the display timezone, initializing the default on first use.
func Location() *time.Location {
	mu.RLock()
	loc := location
	mu.RUnlock()
	if loc != nil {
		return loc
	}

	if err := Init(""); err != nil {
		panic(fmt.Sprintf("biztime: failed to auto-initialize default timezone: %v", err))
	}
	return Location()
}

func NowUTC() time.Time {
	return time.Now().UTC()
}

// ToDisplay maps a stored UTC instant into the display timezone.
func ToDisplay(t time.Time) time.Time {
	return t.In(Location())
}

// Format renders t in the display timezone using DateTimeLayout.
func Format(t time.Time) string {
	return ToDisplay(t).Format(DateTimeLayout)
}

// FormatOr renders t or returns fallback when t is nil or zero.
func FormatOr(t *time.Time, fallback string) string {
	if t == nil || t.IsZero() {
		return fallback
	}
	return Format(*t)
}

// DayRangeUTC parses a YYYY-MM-DD date and returns [start of that day, start of the next) in UTC.
func DayRangeUTC(date string) (time.Time, time.Time, error) {
	d, err := time.ParseInLocation("2006-01-02", date, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return d, d.AddDate(0, 0, 1), nil
}
