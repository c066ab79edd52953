package core

import (
	"fmt"
	"time"
)

// Period is a calendar month in a given location. Membership is decided on
// local wall-clock dates, never on UTC.
type Period struct {
	Year     int
	Month    time.Month
	Location *time.Location
}

// PeriodOf returns the period containing now, in now's location.
func PeriodOf(now time.Time) Period {
	return Period{Year: now.Year(), Month: now.Month(), Location: now.Location()}
}

func (p Period) location() *time.Location {
	if p.Location == nil {
		return time.Local
	}
	return p.Location
}

// Start returns the first instant of the period.
func (p Period) Start() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, p.location())
}

// DaysInMonth returns the number of calendar days in the period.
func (p Period) DaysInMonth() int {
	// Day 0 of the next month normalises to the last day of this one.
	return time.Date(p.Year, p.Month+1, 0, 0, 0, 0, 0, p.location()).Day()
}

// Contains reports whether date falls in p. See IsInPeriod.
func (p Period) Contains(date time.Time) bool {
	return IsInPeriod(date, p)
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// IsInPeriod reports whether date falls in p's calendar month and year,
// evaluated in p's location.
func IsInPeriod(date time.Time, p Period) bool {
	local := date.In(p.location())
	return local.Year() == p.Year && local.Month() == p.Month
}

// IsToday reports whether date falls on now's calendar day, evaluated in
// now's location.
func IsToday(date, now time.Time) bool {
	y1, m1, d1 := date.In(now.Location()).Date()
	y2, m2, d2 := now.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// DaysInMonth returns the number of days in now's month.
func DaysInMonth(now time.Time) int {
	return PeriodOf(now).DaysInMonth()
}
