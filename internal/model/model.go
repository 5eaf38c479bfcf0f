package model

import (
	"fmt"
	"time"
)

// Event is a single scheduled row for one owner. Start and End are naive wall
// clock values: they are never converted between zones, and every derived
// value (date, hour) is read straight off the parsed wall clock.
type Event struct {
	Owner   string
	Subject string

	Start time.Time
	End   time.Time
}

// Date returns the calendar date of Start.
func (e Event) Date() Date { return DateOf(e.Start) }

// StartHour is the hour-of-day of Start. Minutes are discarded.
func (e Event) StartHour() int { return e.Start.Hour() }

// EndHour is the hour-of-day of End. Minutes are discarded.
func (e Event) EndHour() int { return e.End.Hour() }

func (e Event) StartClock() string { return e.Start.Format("15:04") }

func (e Event) EndClock() string { return e.End.Format("15:04") }

// Date is a civil calendar date with no time or zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// NewDate builds a Date; out-of-range days are normalized like time.Date.
func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// ParseDate parses "2006-01-02".
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// Time returns midnight UTC of d.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) IsZero() bool { return d == Date{} }

func (d Date) Before(o Date) bool { return d.Time().Before(o.Time()) }

func (d Date) After(o Date) bool { return d.Time().After(o.Time()) }

// DaysUntil returns the whole days from d to o (negative when o is earlier).
func (d Date) DaysUntil(o Date) int {
	return int(o.Time().Sub(d.Time()).Hours() / 24)
}

func (d Date) AddDays(n int) Date { return DateOf(d.Time().AddDate(0, 0, n)) }

// FirstOfMonth returns the first day of d's month.
func (d Date) FirstOfMonth() Date { return Date{Year: d.Year, Month: d.Month, Day: 1} }

func (d Date) Weekday() time.Weekday { return d.Time().Weekday() }

func (d Date) String() string { return d.Time().Format(time.DateOnly) }

func (d Date) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Mark is the availability glyph for one half-day.
type Mark int

const (
	Available Mark = iota
	Partial
	Unavailable
	NotApplicable
)

func (m Mark) String() string {
	switch m {
	case Available:
		return "○"
	case Partial:
		return "△"
	case Unavailable:
		return "×"
	default:
		return "-"
	}
}

func (m Mark) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// LeaveAssessment is the leave outcome of one owner's day.
type LeaveAssessment struct {
	AMLeave bool   `json:"am_leave"`
	PMLeave bool   `json:"pm_leave"`
	Label   string `json:"label,omitempty"`
}

// DayContext is everything the day-level rules need for one (date, owner).
type DayContext struct {
	Events      []Event
	IsHoliday   bool
	HolidayName string
}

// Kind tags an event subject by the first rule it matches.
type Kind int

const (
	Other Kind = iota
	FullHoliday
	SubstituteHoliday
	CompLeave
	PaidLeave
	Site
)

func (k Kind) String() string {
	switch k {
	case FullHoliday:
		return "full_holiday"
	case SubstituteHoliday:
		return "substitute_holiday"
	case CompLeave:
		return "comp_leave"
	case PaidLeave:
		return "paid_leave"
	case Site:
		return "site"
	default:
		return "other"
	}
}

// IsLeave reports whether k is one of the day-off kinds.
func (k Kind) IsLeave() bool {
	switch k {
	case FullHoliday, SubstituteHoliday, CompLeave, PaidLeave:
		return true
	}
	return false
}
