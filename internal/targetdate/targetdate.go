// Package targetdate computes the report date a warehouse expects on a given
// day.
package targetdate

import (
	"time"

	"courier/internal/warehouse"
)

// StampLayout is the date layout embedded in report filenames.
const StampLayout = "20060102"

// Offset returns the day offset the rule applies on weekday. Friday uses the
// Friday override; every other day uses the regular offset.
func Offset(rule warehouse.Rule, weekday time.Weekday) int {
	if weekday == time.Friday {
		return rule.FridayOffset
	}
	return rule.DaysOffset
}

// Resolve returns today's calendar date shifted by the rule's offset, at
// midnight in today's location. Offsets are not clamped.
func Resolve(rule warehouse.Rule, today time.Time) time.Time {
	day := Day(today)
	return day.AddDate(0, 0, Offset(rule, day.Weekday()))
}

// Day truncates t to midnight in its own location.
func Day(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

// Stamp formats date as YYYYMMDD.
func Stamp(date time.Time) string {
	return date.Format(StampLayout)
}

// IsWeekend reports whether t falls on Saturday or Sunday.
func IsWeekend(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return true
	default:
		return false
	}
}
