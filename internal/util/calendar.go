package util

import (
	"time"
)

// IsBusinessDay reports whether t falls on Monday through Friday. Exchange
// holidays are not modelled.
func IsBusinessDay(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	default:
		return true
	}
}

// BusinessDays returns every business day in [start, end] at midnight UTC.
func BusinessDays(start, end time.Time) []time.Time {
	day := TruncateDay(start)
	last := TruncateDay(end)

	var days []time.Time
	for !day.After(last) {
		if IsBusinessDay(day) {
			days = append(days, day)
		}
		day = day.AddDate(0, 0, 1)
	}
	return days
}

// TruncateDay returns midnight UTC of t's calendar date.
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
