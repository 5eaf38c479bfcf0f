package calendar

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schedview/internal/holiday"
	"schedview/internal/model"
)

var today = model.NewDate(2026, 10, 19)

type fakeOracle map[model.Date]string

func (f fakeOracle) HolidaysFor(year int, month time.Month) map[int]string {
	out := make(map[int]string)
	for d, name := range f {
		if d.Year == year && d.Month == month {
			out[d.Day] = name
		}
	}
	return out
}

func event(owner, subject string, d model.Date, startHour, endHour int) model.Event {
	return model.Event{
		Owner:   owner,
		Subject: subject,
		Start:   time.Date(d.Year, d.Month, d.Day, startHour, 0, 0, 0, time.UTC),
		End:     time.Date(d.Year, d.Month, d.Day, endHour, 0, 0, 0, time.UTC),
	}
}

func TestDay_Orchestration(t *testing.T) {
	t.Parallel()

	wed := model.NewDate(2026, 10, 21)
	thu := model.NewDate(2026, 10, 22)
	fri := model.NewDate(2026, 10, 23)
	holidayMon := model.NewDate(2026, 10, 26)
	sat := model.NewDate(2026, 10, 24)

	ds := model.NewDataset([]model.Event{
		event("田中", "現場\u3000A邸", wed, 9, 11),
		event("田中", "現場 B邸", wed, 14, 17),
		event("田中", "AM振休", thu, 8, 11),
		event("田中", "現場 C邸", thu, 13, 15),
		event("田中", "休日", fri, 0, 0),
		event("田中", "有休", holidayMon, 13, 17),
		event("田中", "打合せ", sat, 9, 17),
		event("佐藤", "現場", wed, 9, 17),
	})
	a := NewAssembler(fakeOracle{holidayMon: "創立記念日"}, time.Monday)

	tests := []struct {
		name    string
		date    model.Date
		am, pm  model.Mark
		caption string
	}{
		{name: "site work both halves", date: wed, am: model.Unavailable, pm: model.Unavailable},
		{name: "am leave, pm partial", date: thu, am: model.Unavailable, pm: model.Partial, caption: "AM振休"},
		{name: "full holiday keyword", date: fri, am: model.Unavailable, pm: model.Unavailable, caption: "休日"},
		{name: "public holiday keeps leave label", date: holidayMon, am: model.Unavailable, pm: model.Unavailable, caption: "PM有休, 創立記念日"},
		{name: "non-site events do not count", date: sat, am: model.Available, pm: model.Available},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			d := a.Day(ds, "田中", tc.date, today)
			assert.Equal(t, tc.am, d.AM, "am")
			assert.Equal(t, tc.pm, d.PM, "pm")
			assert.Equal(t, tc.caption, d.Caption())
		})
	}
}

func TestDay_PublicHolidayDoesNotSetLeaveFlags(t *testing.T) {
	t.Parallel()

	mon := model.NewDate(2026, 11, 23)
	a := NewAssembler(holiday.NewChain(nil), time.Monday)
	d := a.Day(model.NewDataset(nil), "田中", mon, today)

	assert.True(t, d.IsHoliday)
	assert.Equal(t, "勤労感謝の日", d.HolidayName)
	assert.False(t, d.Leave.AMLeave)
	assert.False(t, d.Leave.PMLeave)
	assert.Equal(t, model.Unavailable, d.AM)
	assert.Equal(t, model.Unavailable, d.PM)
}

func TestDay_HorizonAndPast(t *testing.T) {
	t.Parallel()

	a := NewAssembler(fakeOracle{}, time.Monday)
	ds := model.NewDataset(nil)

	assert.Equal(t, model.Available, a.Day(ds, "x", today, today).AM)
	assert.Equal(t, model.NotApplicable, a.Day(ds, "x", today.AddDays(61), today).PM)
	assert.Equal(t, model.NotApplicable, a.Day(ds, "x", today.AddDays(-1), today).AM)
}

func TestMonth_Grid(t *testing.T) {
	t.Parallel()

	a := NewAssembler(fakeOracle{}, time.Monday)
	m := a.Month(model.NewDataset(nil), "x", model.NewDate(2026, 11, 15), today)

	assert.Equal(t, "2026年11月", m.Title)
	assert.Equal(t, []string{"月", "火", "水", "木", "金", "土", "日"}, m.Weekdays)
	require.Len(t, m.Weeks, 6)
	// 2026-11-01 is a Sunday.
	for i := 0; i < 6; i++ {
		assert.True(t, m.Weeks[0][i].Blank)
	}
	first := m.Weeks[0][6]
	assert.False(t, first.Blank)
	assert.Equal(t, 1, first.Day.Date.Day)
	assert.True(t, first.Sunday)
	assert.True(t, m.Weeks[1][5].Saturday)

	last := m.Weeks[5][0]
	assert.Equal(t, 30, last.Day.Date.Day)
	assert.True(t, m.Weeks[5][1].Blank)

	sundayFirst := NewAssembler(fakeOracle{}, time.Sunday).Month(model.NewDataset(nil), "x", model.NewDate(2026, 11, 1), today)
	assert.Equal(t, "日", sundayFirst.Weekdays[0])
	assert.False(t, sundayFirst.Weeks[0][0].Blank)
	require.Len(t, sundayFirst.Weeks, 5)
}

func TestCalendar_AllMonthsInOrder(t *testing.T) {
	t.Parallel()

	ds := model.NewDataset([]model.Event{
		event("田中", "現場", model.NewDate(2027, 1, 10), 9, 10),
		event("田中", "現場", model.NewDate(2026, 10, 30), 9, 10),
	})
	a := NewAssembler(fakeOracle{}, time.Monday)

	months, err := a.Calendar(context.Background(), ds, "田中", today)
	require.NoError(t, err)
	require.Len(t, months, 4)
	assert.Equal(t, "2026年10月", months[0].Title)
	assert.Equal(t, "2026年11月", months[1].Title)
	assert.Equal(t, "2026年12月", months[2].Title)
	assert.Equal(t, "2027年01月", months[3].Title)
}

func TestCalendar_Cancelled(t *testing.T) {
	t.Parallel()

	ds := model.NewDataset([]model.Event{event("田中", "現場", model.NewDate(2026, 10, 30), 9, 10)})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewAssembler(fakeOracle{}, time.Monday).Calendar(ctx, ds, "田中", today)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSiteEvents(t *testing.T) {
	t.Parallel()

	d := model.NewDate(2026, 10, 21)
	got := SiteEvents([]model.Event{
		event("o", "現場", d, 9, 10),
		event("o", "会議", d, 9, 10),
		event("o", "現場 代休", d, 9, 10),
	})
	require.Len(t, got, 1)
	assert.Equal(t, "現場", got[0].Subject)
}
