// Package schedule turns a contract's stored service schedule into something
// the rest of the system can act on: a canonical set of weekdays plus a daily
// time window, concrete service dates for a range, and a timezone-aware check
// of whether an instant falls inside the allowed window.
package schedule

import (
	"fmt"
	"strings"
	"time"
)

// Weekday is a canonical lowercase weekday name
type Weekday string

const (
	Monday    Weekday = "monday"
	Tuesday   Weekday = "tuesday"
	Wednesday Weekday = "wednesday"
	Thursday  Weekday = "thursday"
	Friday    Weekday = "friday"
	Saturday  Weekday = "saturday"
	Sunday    Weekday = "sunday"
)

// WeekOrder is the canonical Monday-first display ordering
var WeekOrder = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// weekOrderIndex maps each weekday to its position in WeekOrder
var weekOrderIndex = func() map[Weekday]int {
	m := make(map[Weekday]int, len(WeekOrder))
	for i, d := range WeekOrder {
		m[d] = i
	}
	return m
}()

// weekdayAliases accepts full names and common 3-4 letter abbreviations
var weekdayAliases = map[string]Weekday{
	"monday": Monday, "mon": Monday,
	"tuesday": Tuesday, "tue": Tuesday, "tues": Tuesday,
	"wednesday": Wednesday, "wed": Wednesday,
	"thursday": Thursday, "thu": Thursday, "thur": Thursday, "thurs": Thursday,
	"friday": Friday, "fri": Friday,
	"saturday": Saturday, "sat": Saturday,
	"sunday": Sunday, "sun": Sunday,
}

// WeekdayFromInt maps an integer day to a weekday.
// Both 0 and 7 map to Sunday; 1=Monday through 6=Saturday.
func WeekdayFromInt(n int) (Weekday, bool) {
	switch n {
	case 0, 7:
		return Sunday, true
	case 1:
		return Monday, true
	case 2:
		return Tuesday, true
	case 3:
		return Wednesday, true
	case 4:
		return Thursday, true
	case 5:
		return Friday, true
	case 6:
		return Saturday, true
	}
	return "", false
}

// ParseWeekdayName parses a weekday name or abbreviation, case-insensitively
func ParseWeekdayName(s string) (Weekday, bool) {
	d, ok := weekdayAliases[strings.ToLower(strings.TrimSpace(s))]
	return d, ok
}

// WeekdayOf returns the canonical weekday for a time value
func WeekdayOf(t time.Time) Weekday {
	switch t.Weekday() {
	case time.Monday:
		return Monday
	case time.Tuesday:
		return Tuesday
	case time.Wednesday:
		return Wednesday
	case time.Thursday:
		return Thursday
	case time.Friday:
		return Friday
	case time.Saturday:
		return Saturday
	default:
		return Sunday
	}
}

// sortCanonical returns the days of a set in Monday-first order
func sortCanonical(set map[Weekday]bool) []Weekday {
	out := make([]Weekday, 0, len(set))
	for _, d := range WeekOrder {
		if set[d] {
			out = append(out, d)
		}
	}
	return out
}

// NormalizeClock normalizes a clock string to zero-padded 24-hour HH:MM.
// Accepts 1-2 digit hours ("9:00" -> "09:00"). Returns false for anything
// outside 00:00-23:59 or not matching the H:MM shape.
func NormalizeClock(s string) (string, bool) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return "", false
	}
	hourStr, minStr := parts[0], parts[1]
	if len(hourStr) < 1 || len(hourStr) > 2 || len(minStr) != 2 {
		return "", false
	}
	hour, ok := parseDigits(hourStr)
	if !ok {
		return "", false
	}
	min, ok := parseDigits(minStr)
	if !ok {
		return "", false
	}
	if hour < 0 || hour > 23 || min < 0 || min > 59 {
		return "", false
	}
	return fmt.Sprintf("%02d:%02d", hour, min), true
}

// ClockToMinutes converts an HH:MM string to minutes since midnight
func ClockToMinutes(s string) (int, bool) {
	normalized, ok := NormalizeClock(s)
	if !ok {
		return 0, false
	}
	hour, _ := parseDigits(normalized[:2])
	min, _ := parseDigits(normalized[3:])
	return hour*60 + min, true
}

// parseDigits parses a short all-digit string without the leniency of
// strconv.Atoi (no signs, no whitespace)
func parseDigits(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}
