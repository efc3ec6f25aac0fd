/*
Package calendar converts absence date ranges into working-day counts.

PURPOSE:
  The duration fields stored on an absence record are derived, not
  authoritative: the calendar walks the inclusive date range, skips
  weekends and company holidays, and returns a decimal day count. The
  absence service re-invokes it on every create and date edit so the
  denormalized fields never drift from the range.

KEY CONCEPTS:
  - Calculator:      weekend + holiday aware working-day counting
  - HolidayCalendar: pluggable holiday lookup (store-backed in prod,
                     in-memory for tests)
  - Decimal counts:  shopspring/decimal, so half-day absences keep
                     exact arithmetic when policies introduce them

USAGE:
  calc := calendar.NewCalculator(holidays)
  days := calc.WorkingDaysBetween(start, end)   // decimal.Decimal
  raw  := calendar.RawDaysBetween(start, end)   // calendar days, int

SEE ALSO:
  - absence/service.go: invokes the calculator on create and date edit
*/
package calendar

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// HOLIDAY CALENDAR
// =============================================================================

// Holiday is a non-working company day.
type Holiday struct {
	ID        string
	Date      time.Time
	Label     string
	Recurring bool // same month/day every year
}

// HolidayCalendar answers holiday lookups for the calculator.
type HolidayCalendar interface {
	// IsHoliday reports whether the date is a company holiday.
	IsHoliday(date time.Time) bool
}

// NoHolidays is the calendar used when no holiday source is configured.
type NoHolidays struct{}

func (NoHolidays) IsHoliday(time.Time) bool { return false }

// MemoryHolidayCalendar holds holidays in memory. Used by tests and as
// the cache the store-backed calendar loads into.
type MemoryHolidayCalendar struct {
	fixed     map[string]bool // "2006-01-02"
	recurring map[string]bool // "01-02"
}

func NewMemoryHolidayCalendar(holidays ...Holiday) *MemoryHolidayCalendar {
	c := &MemoryHolidayCalendar{
		fixed:     make(map[string]bool),
		recurring: make(map[string]bool),
	}
	for _, h := range holidays {
		c.Add(h)
	}
	return c
}

func (c *MemoryHolidayCalendar) Add(h Holiday) {
	if h.Recurring {
		c.recurring[h.Date.Format("01-02")] = true
		return
	}
	c.fixed[h.Date.Format("2006-01-02")] = true
}

func (c *MemoryHolidayCalendar) IsHoliday(date time.Time) bool {
	return c.fixed[date.Format("2006-01-02")] || c.recurring[date.Format("01-02")]
}

// =============================================================================
// CALCULATOR
// =============================================================================

type Calculator struct {
	Holidays HolidayCalendar
}

func NewCalculator(holidays HolidayCalendar) *Calculator {
	if holidays == nil {
		holidays = NoHolidays{}
	}
	return &Calculator{Holidays: holidays}
}

// midnight truncates to the calendar day, pinned to UTC so counting
// never straddles a DST boundary.
func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// IsWeekend reports whether the date falls on Saturday or Sunday.
func IsWeekend(date time.Time) bool {
	wd := date.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// IsWorkingDay reports whether the date counts against an absence.
func (c *Calculator) IsWorkingDay(date time.Time) bool {
	return !IsWeekend(date) && !c.Holidays.IsHoliday(date)
}

// RawDaysBetween returns the inclusive calendar-day span.
// Returns 0 when end precedes start; callers validate the range first.
func RawDaysBetween(start, end time.Time) int {
	s, e := midnight(start), midnight(end)
	if e.Before(s) {
		return 0
	}
	return int(e.Sub(s).Hours()/24) + 1
}

// WorkingDaysBetween counts working days in the inclusive range.
func (c *Calculator) WorkingDaysBetween(start, end time.Time) decimal.Decimal {
	s, e := midnight(start), midnight(end)
	count := 0
	for d := s; !d.After(e); d = d.AddDate(0, 0, 1) {
		if c.IsWorkingDay(d) {
			count++
		}
	}
	return decimal.NewFromInt(int64(count))
}
