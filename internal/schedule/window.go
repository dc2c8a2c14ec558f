package schedule

import (
	"fmt"
	"time"
)

// Reasons reported by ValidateServiceWindow when a check fails
const (
	ReasonOutsideWindow = "Outside allowed service window"
	ReasonOutsideDay    = "Outside allowed service day"
	ReasonInvalidTimes  = "Invalid schedule time configuration"
)

// WindowCheck is the result of validating an instant against a service window
type WindowCheck struct {
	Allowed      bool    `json:"allowed"`
	Timezone     string  `json:"timezone"`
	LocalTime    string  `json:"local_time"`
	LocalDate    string  `json:"local_date"`
	CurrentDay   Weekday `json:"current_day"`
	EffectiveDay Weekday `json:"effective_day"`
	// The window that was enforced, echoed for client messaging
	WindowStart string   `json:"window_start"`
	WindowEnd   string   `json:"window_end"`
	AllowedDays []string `json:"allowed_days"`
	Reason      string   `json:"reason,omitempty"`
}

// ValidateServiceWindow decides whether the instant now falls inside the
// schedule's allowed service window, evaluated in the facility's timezone.
//
// A window whose start is later than its end wraps past midnight (overnight).
// Instants on the early side of an overnight window are attributed to the
// previous calendar day: a Saturday 02:00 clock-in against a 22:00-06:00
// window belongs to the Friday-night shift, so Friday is the effective day
// checked against the schedule's day set.
func ValidateServiceWindow(ns *NormalizedSchedule, timezone string, now time.Time) (WindowCheck, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return WindowCheck{}, fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}

	local := now.In(loc)
	check := WindowCheck{
		Timezone:     timezone,
		LocalTime:    local.Format("15:04"),
		LocalDate:    local.Format("2006-01-02"),
		CurrentDay:   WeekdayOf(local),
		EffectiveDay: WeekdayOf(local),
		WindowStart:  ns.WindowStart,
		WindowEnd:    ns.WindowEnd,
		AllowedDays:  ns.DayNames(),
	}

	startMin, startOK := ClockToMinutes(ns.WindowStart)
	endMin, endOK := ClockToMinutes(ns.WindowEnd)
	if !startOK || !endOK {
		check.Reason = ReasonInvalidTimes
		return check, nil
	}

	localMin, _ := ClockToMinutes(check.LocalTime)

	overnight := startMin > endMin
	var timeAllowed bool
	if overnight {
		timeAllowed = localMin >= startMin || localMin <= endMin
		if localMin <= endMin {
			// Early side of an overnight window: the shift started yesterday
			check.EffectiveDay = WeekdayOf(local.AddDate(0, 0, -1))
		}
	} else {
		timeAllowed = localMin >= startMin && localMin <= endMin
	}

	dayAllowed := ns.HasDay(check.EffectiveDay)

	check.Allowed = timeAllowed && dayAllowed
	if !timeAllowed {
		check.Reason = ReasonOutsideWindow
	} else if !dayAllowed {
		check.Reason = ReasonOutsideDay
	}
	return check, nil
}
