// Package schedule holds the time-of-day and weekday calculus shared by the
// reminder command and the sweeps. Everything runs in one operational zone.
package schedule

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"time"
	_ "time/tzdata"
)

// Zone is the operational timezone for day boundaries and time-of-day matching.
const Zone = "Europe/Moscow"

// ClockLayout is the "HH:mm" layout stored on reminders.
const ClockLayout = "15:04"

var location = mustLoad(Zone)

var (
	// AllDays lists weekday tags in time.Weekday order.
	AllDays = []string{"sun", "mon", "tue", "wed", "thu", "fri", "sat"}
	// BusinessDays is the default day set when none is given.
	BusinessDays = []string{"mon", "tue", "wed", "thu", "fri"}
)

var clockRe = regexp.MustCompile(`^\d{2}:\d{2}$`)

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(fmt.Sprintf("loading %s: %v", name, err))
	}
	return loc
}

// Location returns the operational timezone.
func Location() *time.Location {
	return location
}

// ParseClock validates an "HH:mm" string and returns its hour and minute.
func ParseClock(s string) (hour, minute int, err error) {
	if !clockRe.MatchString(s) {
		return 0, 0, fmt.Errorf("invalid time %q: want HH:mm", s)
	}
	hour, _ = strconv.Atoi(s[:2])
	minute, _ = strconv.Atoi(s[3:])
	if hour > 23 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid time %q: out of range", s)
	}
	return hour, minute, nil
}

// OnGrid reports whether the minute part of an "HH:mm" string is a multiple of five.
func OnGrid(clock string) bool {
	_, minute, err := ParseClock(clock)
	return err == nil && minute%5 == 0
}

// DayTag returns the three-letter weekday tag of t in the operational zone.
func DayTag(t time.Time) string {
	return AllDays[t.In(location).Weekday()]
}

// Clock returns the operational "HH:mm" of t.
func Clock(t time.Time) string {
	return t.In(location).Format(ClockLayout)
}

// DayBounds returns the operational-day window [start, end) containing t.
func DayBounds(t time.Time) (start, end time.Time) {
	local := t.In(location)
	start = time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, location)
	return start, start.Add(24 * time.Hour)
}

// ValidDays reports whether every tag is a known weekday tag.
func ValidDays(days []string) bool {
	for _, d := range days {
		if !slices.Contains(AllDays, d) {
			return false
		}
	}
	return true
}

// IsBusinessSubset reports whether days is empty or only holds business days.
func IsBusinessSubset(days []string) bool {
	for _, d := range days {
		if !slices.Contains(BusinessDays, d) {
			return false
		}
	}
	return true
}

// ActiveOn reports whether a reminder with the given day set fires on t's weekday.
// An empty set means business days.
func ActiveOn(days []string, t time.Time) bool {
	if len(days) == 0 {
		days = BusinessDays
	}
	return slices.Contains(days, DayTag(t))
}

// DefaultDays picks the day set for a reminder created without one: today
// when the target time has not passed yet, otherwise the next business day.
func DefaultDays(now time.Time, clock string) []string {
	if Clock(now) <= clock {
		return []string{DayTag(now)}
	}
	today := DayTag(now)
	next := 0
	if i := slices.Index(BusinessDays, today); i >= 0 {
		next = (i + 1) % len(BusinessDays)
	}
	return []string{BusinessDays[next]}
}

// NextRun returns the next instant at which a reminder set for clock on the
// given days should fire. The comparison against now is inclusive: a clock
// equal to the current minute fires today.
//
// On a Friday past the target time, a business-only day set jumps straight
// to Monday.
func NextRun(now time.Time, clock string, days []string) (time.Time, error) {
	hour, minute, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	if !ValidDays(days) {
		return time.Time{}, fmt.Errorf("invalid days %v", days)
	}

	local := now.In(location)
	currentMinutes := local.Hour()*60 + local.Minute()
	targetMinutes := hour*60 + minute
	at := func(offset int) time.Time {
		return time.Date(local.Year(), local.Month(), local.Day()+offset, hour, minute, 0, 0, location)
	}

	if local.Weekday() == time.Friday && currentMinutes > targetMinutes && IsBusinessSubset(days) {
		return at(3), nil
	}

	active := days
	if len(active) == 0 {
		active = BusinessDays
	}

	today := int(local.Weekday())
	if slices.Contains(active, AllDays[today]) && currentMinutes <= targetMinutes {
		return at(0), nil
	}
	for offset := 1; offset <= 7; offset++ {
		if slices.Contains(active, AllDays[(today+offset)%7]) {
			return at(offset), nil
		}
	}
	// unreachable: active is non-empty and only holds valid tags
	return time.Time{}, fmt.Errorf("no matching day in %v", active)
}
