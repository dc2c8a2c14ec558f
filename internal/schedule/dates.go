package schedule

import (
	"fmt"
	"strings"
	"time"
)

// DateOnly truncates a time to its UTC calendar date at midnight.
// Scheduled dates are keyed this way throughout the system; the date, not
// the instant, is the unit of job deduplication.
func DateOnly(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate parses an ISO YYYY-MM-DD calendar date into a UTC midnight value
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t.UTC(), nil
}

// FormatDate renders a time as its ISO calendar date
func FormatDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// ServiceDates expands [dateFrom, dateTo] into the ordered, deduplicated list
// of ISO calendar dates a contract should be serviced on.
//
// With an explicit schedule the range is filtered to the schedule's weekdays
// and then thinned per frequency (biweekly keeps even week offsets from
// dateFrom, monthly keeps the first match per month, quarterly the first per
// quarter). Without one, legacy frequency-only stepping walks the range with
// a fixed increment.
func ServiceDates(ns *NormalizedSchedule, frequency string, dateFrom, dateTo time.Time) []string {
	from := DateOnly(dateFrom)
	to := DateOnly(dateTo)
	if to.Before(from) {
		return nil
	}
	if ns != nil {
		return explicitScheduleDates(ns, frequency, from, to)
	}
	return legacyFrequencyDates(frequency, from, to)
}

// legacyFrequencyDates emits the current date then steps by a
// frequency-specific increment until the cursor passes dateTo
func legacyFrequencyDates(frequency string, from, to time.Time) []string {
	var dates []string
	cursor := from
	for !cursor.After(to) {
		dates = append(dates, FormatDate(cursor))
		cursor = stepByFrequency(cursor, frequency)
	}
	return dates
}

// stepByFrequency advances the cursor by the legacy per-frequency increment.
// Unknown frequencies step weekly.
func stepByFrequency(cursor time.Time, frequency string) time.Time {
	switch strings.ToLower(strings.TrimSpace(frequency)) {
	case "daily", "7x_week":
		return cursor.AddDate(0, 0, 1)
	case "2x_week":
		return cursor.AddDate(0, 0, 3)
	case "3x_week":
		return cursor.AddDate(0, 0, 2)
	case "biweekly", "bi_weekly":
		return cursor.AddDate(0, 0, 14)
	case "monthly":
		return cursor.AddDate(0, 1, 0)
	case "quarterly":
		return cursor.AddDate(0, 3, 0)
	default: // weekly, 1x_week and anything unrecognized
		return cursor.AddDate(0, 0, 7)
	}
}

// explicitScheduleDates enumerates every day in range, keeps the schedule's
// weekdays, and applies period thinning for the sparser frequencies
func explicitScheduleDates(ns *NormalizedSchedule, frequency string, from, to time.Time) []string {
	freq := strings.ToLower(strings.TrimSpace(frequency))
	seenMonths := make(map[string]bool)
	seenQuarters := make(map[string]bool)

	var dates []string
	for cursor := from; !cursor.After(to); cursor = cursor.AddDate(0, 0, 1) {
		if !ns.HasDay(WeekdayOf(cursor)) {
			continue
		}
		switch freq {
		case "biweekly", "bi_weekly":
			// Whole-week offset from dateFrom; weeks 0, 2, 4... are serviced
			dayOffset := int(cursor.Sub(from).Hours()) / 24
			if (dayOffset/7)%2 != 0 {
				continue
			}
		case "monthly":
			month := cursor.Format("2006-01")
			if seenMonths[month] {
				continue
			}
			seenMonths[month] = true
		case "quarterly":
			quarter := fmt.Sprintf("%d-Q%d", cursor.Year(), (int(cursor.Month())-1)/3+1)
			if seenQuarters[quarter] {
				continue
			}
			seenQuarters[quarter] = true
		}
		dates = append(dates, FormatDate(cursor))
	}
	return dates
}
