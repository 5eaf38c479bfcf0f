// Package calendar assembles per-day availability cells and month grids for
// one owner.
package calendar

import (
	"time"

	"schedview/internal/availability"
	"schedview/internal/holiday"
	"schedview/internal/leave"
	"schedview/internal/model"
)

// Day is the evaluated state of one (date, owner).
type Day struct {
	Date        model.Date            `json:"date"`
	Owner       string                `json:"owner"`
	IsHoliday   bool                  `json:"is_holiday"`
	HolidayName string                `json:"holiday_name,omitempty"`
	Leave       model.LeaveAssessment `json:"leave"`
	AM          model.Mark            `json:"am"`
	PM          model.Mark            `json:"pm"`
}

// Caption is the text shown next to the day number. The holiday name never
// replaces the leave label; both are shown when present.
func (d Day) Caption() string {
	switch {
	case d.Leave.Label != "" && d.HolidayName != "":
		return d.Leave.Label + ", " + d.HolidayName
	case d.Leave.Label != "":
		return d.Leave.Label
	default:
		return d.HolidayName
	}
}

// Assembler evaluates days and months against a holiday oracle.
type Assembler struct {
	Oracle    holiday.Oracle
	WeekStart time.Weekday
}

func NewAssembler(oracle holiday.Oracle, weekStart time.Weekday) *Assembler {
	if oracle == nil {
		oracle = holiday.NewChain(nil)
	}
	return &Assembler{Oracle: oracle, WeekStart: weekStart}
}

// Day evaluates one owner's date.
func (a *Assembler) Day(ds *model.Dataset, owner string, date, today model.Date) Day {
	holidays := a.Oracle.HolidaysFor(date.Year, date.Month)
	return evaluate(ds, owner, date, today, holidays)
}

func evaluate(ds *model.Dataset, owner string, date, today model.Date, holidays map[int]string) Day {
	name, isHoliday := holidays[date.Day]
	dc := model.DayContext{
		Events:      ds.EventsFor(owner, date),
		IsHoliday:   isHoliday,
		HolidayName: name,
	}

	la := leave.Classify(dc.Events)
	sites := SiteEvents(dc.Events)

	return Day{
		Date:        date,
		Owner:       owner,
		IsHoliday:   dc.IsHoliday,
		HolidayName: dc.HolidayName,
		Leave:       la,
		AM:          availability.Mark(sites, availability.AM, la.AMLeave || dc.IsHoliday, date, today),
		PM:          availability.Mark(sites, availability.PM, la.PMLeave || dc.IsHoliday, date, today),
	}
}

// SiteEvents keeps the events whose subject classifies as site work.
func SiteEvents(events []model.Event) []model.Event {
	var out []model.Event
	for _, ev := range events {
		if leave.KindOf(ev.Subject) == model.Site {
			out = append(out, ev)
		}
	}
	return out
}

// Detail lists the owner's events on date for the detail panel.
func (a *Assembler) Detail(ds *model.Dataset, owner string, date model.Date) []model.Event {
	return ds.EventsFor(owner, date)
}
