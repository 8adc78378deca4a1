package model

import (
	"fmt"
	"time"
)

// DayTime is a wall-clock time of day (HH:MM), used for expected arrival
// schedules and the daily summary trigger.
type DayTime struct {
	Hour   int
	Minute int
}

// ParseDayTime parses "HH:MM" in 24h form.
func ParseDayTime(s string) (DayTime, error) {
	var dt DayTime
	if _, err := fmt.Sscanf(s, "%d:%d", &dt.Hour, &dt.Minute); err != nil {
		return DayTime{}, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	if dt.Hour < 0 || dt.Hour > 23 || dt.Minute < 0 || dt.Minute > 59 {
		return DayTime{}, fmt.Errorf("invalid time of day %q", s)
	}
	return dt, nil
}

func (dt DayTime) String() string {
	return fmt.Sprintf("%02d:%02d", dt.Hour, dt.Minute)
}

// At anchors the wall-clock time on the date of ref, in ref's location.
func (dt DayTime) At(ref time.Time) time.Time {
	return time.Date(ref.Year(), ref.Month(), ref.Day(), dt.Hour, dt.Minute, 0, 0, ref.Location())
}

// Next returns the first instant after ref at which the wall-clock time
// occurs.
func (dt DayTime) Next(ref time.Time) time.Time {
	next := dt.At(ref)
	if !next.After(ref) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
