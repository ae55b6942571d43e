// Package tz converts UTC instants into the local time shown on the clock face.  Zones are described
// by a pair of daylight/standard rules instead of tzdata, which the device does not have.
package tz

import (
	"fmt"
	"time"
)

// Last, used as a Rule's Week, selects the last occurrence of the weekday in the month.
const Last = 0

// Rule describes when a time offset starts being in effect each year, e.g. "second Sunday of March
// at 02:00 local time".
type Rule struct {
	Abbrev  string       `toml:"abbrev"`
	Week    int          `toml:"week"`    // 1-4, or Last.
	Weekday time.Weekday `toml:"weekday"` // time.Sunday is 0.
	Month   time.Month   `toml:"month"`
	Hour    int          `toml:"hour"`   // Local hour of the change.
	Offset  int          `toml:"offset"` // Minutes east of UTC.
}

func (r Rule) String() string {
	return fmt.Sprintf("%s (UTC%+03d:%02d)", r.Abbrev, r.Offset/60, abs(r.Offset%60))
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// Zone is a daylight saving rule and a standard time rule.  A zone without daylight saving time
// uses the same rule for both.
type Zone struct {
	DST Rule `toml:"dst"`
	STD Rule `toml:"std"`
}

// LocalTime is a broken-down local time, as displayed.
type LocalTime struct {
	Hour       int // 0-23
	Hour12     int // 1-12
	Minute     int
	Second     int
	DayOfWeek  int // 1-7, 1 is Sunday.
	DayOfMonth int
	Month      int
	Year       int
	PM         bool
	Zone       string
}

// transition returns the UTC instant that r takes effect in year, given the offset in effect
// just before the change.
func (r Rule) transition(year int, previousOffset int) time.Time {
	month, week := r.Month, r.Week
	if week == Last {
		// Find the first occurrence in the following month, then step back a week.
		month++
		if month > time.December {
			month = time.January
			year++
		}
		week = 1
	}
	first := time.Date(year, month, 1, r.Hour, 0, 0, 0, time.UTC)
	days := (int(r.Weekday) - int(first.Weekday()) + 7) % 7
	local := first.AddDate(0, 0, days+7*(week-1))
	if r.Week == Last {
		local = local.AddDate(0, 0, -7)
	}
	return local.Add(-time.Duration(previousOffset) * time.Minute)
}

// hasDST reports whether the zone ever changes offset.
func (z Zone) hasDST() bool {
	return z.DST.Offset != z.STD.Offset || z.DST.Abbrev != z.STD.Abbrev
}

// RuleAt returns the rule in effect at the UTC instant t.
func (z Zone) RuleAt(t time.Time) Rule {
	if !z.hasDST() {
		return z.STD
	}
	t = t.UTC()
	year := t.Year()
	dstStart := z.DST.transition(year, z.STD.Offset)
	stdStart := z.STD.transition(year, z.DST.Offset)
	if dstStart.Before(stdStart) {
		// Northern hemisphere: DST in the middle of the year.
		if !t.Before(dstStart) && t.Before(stdStart) {
			return z.DST
		}
		return z.STD
	}
	// Southern hemisphere: standard time in the middle of the year.
	if !t.Before(stdStart) && t.Before(dstStart) {
		return z.STD
	}
	return z.DST
}

// ToLocal converts the instant to local time, returning the rule that was used.
func (z Zone) ToLocal(t time.Time) (LocalTime, Rule) {
	rule := z.RuleAt(t)
	local := t.UTC().Add(time.Duration(rule.Offset) * time.Minute)
	h := local.Hour()
	h12 := h % 12
	if h12 == 0 {
		h12 = 12
	}
	return LocalTime{
		Hour:       h,
		Hour12:     h12,
		Minute:     local.Minute(),
		Second:     local.Second(),
		DayOfWeek:  int(local.Weekday()) + 1,
		DayOfMonth: local.Day(),
		Month:      int(local.Month()),
		Year:       local.Year(),
		PM:         h >= 12,
		Zone:       rule.Abbrev,
	}, rule
}
