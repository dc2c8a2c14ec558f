package schedule

import (
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// NormalizedSchedule is the canonical form of a contract's service schedule:
// a non-empty set of allowed weekdays plus a daily time window. Both window
// bounds are always present (defaulted to the full day when unset).
type NormalizedSchedule struct {
	Days        []Weekday `json:"days"`
	WindowStart string    `json:"window_start"`
	WindowEnd   string    `json:"window_end"`

	// Labeling metadata for downstream consumers
	WindowAnchor   string `json:"window_anchor"`
	TimezoneSource string `json:"timezone_source"`
}

// HasDay reports whether the schedule allows the given weekday
func (ns *NormalizedSchedule) HasDay(day Weekday) bool {
	for _, d := range ns.Days {
		if d == day {
			return true
		}
	}
	return false
}

// DayNames returns the allowed days as plain strings, in canonical order
func (ns *NormalizedSchedule) DayNames() []string {
	names := make([]string, len(ns.Days))
	for i, d := range ns.Days {
		names[i] = string(d)
	}
	return names
}

// dayListKeys are the raw-schedule fields that may carry a day list,
// tried in priority order
var dayListKeys = []string{"days", "daysOfWeek"}

// windowBoundKeys are the raw-schedule field pairs that may carry the service
// window, tried in priority order. Each extractor is probed independently per
// bound so a valid start can pair with a later candidate's end.
var windowBoundKeys = []struct {
	start string
	end   string
}{
	{"allowedWindowStart", "allowedWindowEnd"},
	{"windowStart", "windowEnd"},
	{"startTime", "endTime"},
}

// legacyWindowPattern matches the combined "H:MM-H:MM" window string kept in
// older contract records under the "time" field
var legacyWindowPattern = regexp.MustCompile(`^\s*(\d{1,2}:\d{2})\s*-\s*(\d{1,2}:\d{2})\s*$`)

// Normalize converts a raw stored schedule payload plus the contract's
// service frequency into a NormalizedSchedule. The raw payload is untrusted
// and loosely shaped; unparseable day entries and invalid window candidates
// are dropped silently. Returns nil when no enforceable schedule can be
// derived, which callers must treat as "unscheduled", not as an error.
func Normalize(raw []byte, frequency string) *NormalizedSchedule {
	frequency = strings.TrimSpace(frequency)
	if len(raw) == 0 && frequency == "" {
		return nil
	}

	days := extractDays(raw)
	if len(days) == 0 && frequency != "" {
		days = defaultDaysForFrequency(frequency)
	}
	if len(days) == 0 {
		return nil
	}

	start, startOK := extractBound(raw, true)
	end, endOK := extractBound(raw, false)
	if !startOK || !endOK {
		legacyStart, legacyEnd, legacyOK := extractLegacyWindow(raw)
		if legacyOK {
			if !startOK {
				start, startOK = legacyStart, true
			}
			if !endOK {
				end, endOK = legacyEnd, true
			}
		}
	}
	if !startOK {
		start = "00:00"
	}
	if !endOK {
		end = "23:59"
	}

	return &NormalizedSchedule{
		Days:           days,
		WindowStart:    start,
		WindowEnd:      end,
		WindowAnchor:   "start_day",
		TimezoneSource: "facility",
	}
}

// extractDays pulls a weekday set out of the raw schedule payload.
// Entries may be integers (0-7), numeric strings, names, or abbreviations.
func extractDays(raw []byte) []Weekday {
	if len(raw) == 0 {
		return nil
	}
	for _, key := range dayListKeys {
		list := gjson.GetBytes(raw, key)
		if !list.IsArray() {
			continue
		}
		set := make(map[Weekday]bool)
		for _, entry := range list.Array() {
			if d, ok := parseDayEntry(entry); ok {
				set[d] = true
			}
		}
		if len(set) > 0 {
			return sortCanonical(set)
		}
	}
	return nil
}

// parseDayEntry parses a single raw day entry from a schedule day list
func parseDayEntry(entry gjson.Result) (Weekday, bool) {
	switch entry.Type {
	case gjson.Number:
		n := entry.Int()
		if float64(n) != entry.Num {
			return "", false
		}
		return WeekdayFromInt(int(n))
	case gjson.String:
		s := strings.TrimSpace(entry.String())
		if n, ok := parseDigits(s); ok {
			return WeekdayFromInt(n)
		}
		return ParseWeekdayName(s)
	default:
		return "", false
	}
}

// defaultDaysForFrequency maps a service frequency to its default day set,
// used when the stored schedule does not carry explicit days
func defaultDaysForFrequency(frequency string) []Weekday {
	switch strings.ToLower(frequency) {
	case "1x_week", "weekly", "biweekly", "monthly", "quarterly":
		return []Weekday{Monday}
	case "2x_week":
		return []Weekday{Monday, Thursday}
	case "3x_week":
		return []Weekday{Monday, Wednesday, Friday}
	case "4x_week":
		return []Weekday{Monday, Tuesday, Thursday, Friday}
	case "7x_week":
		return append([]Weekday(nil), WeekOrder...)
	default:
		// daily, 5x_week and anything unrecognized service the business week
		return []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday}
	}
}

// extractBound resolves one window bound through the candidate field chain.
// Invalid candidates are discarded and the chain continues.
func extractBound(raw []byte, start bool) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	for _, pair := range windowBoundKeys {
		key := pair.end
		if start {
			key = pair.start
		}
		v := gjson.GetBytes(raw, key)
		if v.Type != gjson.String {
			continue
		}
		if normalized, ok := NormalizeClock(v.String()); ok {
			return normalized, true
		}
	}
	return "", false
}

// extractLegacyWindow parses the combined "time" field ("9:00-17:00")
func extractLegacyWindow(raw []byte) (start, end string, ok bool) {
	if len(raw) == 0 {
		return "", "", false
	}
	v := gjson.GetBytes(raw, "time")
	if v.Type != gjson.String {
		return "", "", false
	}
	m := legacyWindowPattern.FindStringSubmatch(v.String())
	if m == nil {
		return "", "", false
	}
	start, startOK := NormalizeClock(m[1])
	end, endOK := NormalizeClock(m[2])
	if !startOK || !endOK {
		return "", "", false
	}
	return start, end, true
}
