package availability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"schedview/internal/model"
)

var today = model.NewDate(2026, 10, 19)

func site(startHour, startMin, endHour, endMin int) model.Event {
	return model.Event{
		Owner:   "tanaka",
		Subject: "現場",
		Start:   time.Date(2026, 10, 19, startHour, startMin, 0, 0, time.UTC),
		End:     time.Date(2026, 10, 19, endHour, endMin, 0, 0, time.UTC),
	}
}

func TestMark_Precedence(t *testing.T) {
	t.Parallel()

	busy := []model.Event{site(9, 0, 17, 0)}
	tests := []struct {
		name   string
		events []model.Event
		forced bool
		date   model.Date
		want   model.Mark
	}{
		{name: "forced beats horizon", forced: true, date: today.AddDays(90), want: model.Unavailable},
		{name: "forced beats past", forced: true, date: today.AddDays(-3), want: model.Unavailable},
		{name: "beyond horizon", events: busy, date: today.AddDays(61), want: model.NotApplicable},
		{name: "horizon edge", date: today.AddDays(60), want: model.Available},
		{name: "past", date: today.AddDays(-1), want: model.NotApplicable},
		{name: "today empty", date: today, want: model.Available},
		{name: "busy", events: busy, date: today, want: model.Unavailable},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, Mark(tc.events, AM, tc.forced, tc.date, today))
			assert.Equal(t, tc.want, Mark(tc.events, PM, tc.forced, tc.date, today))
		})
	}
}

func TestMark_FreeGaps(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		events []model.Event
		w      Window
		want   model.Mark
	}{
		{
			name:   "morning then afternoon site work",
			events: []model.Event{site(9, 0, 11, 0), site(14, 0, 17, 0)},
			w:      AM,
			want:   model.Unavailable,
		},
		{
			name:   "pm window sees one free hour",
			events: []model.Event{site(9, 0, 11, 0), site(14, 0, 17, 0)},
			w:      PM,
			want:   model.Unavailable,
		},
		{
			name:   "two free hours after",
			events: []model.Event{site(13, 0, 15, 0)},
			w:      PM,
			want:   model.Partial,
		},
		{
			name:   "three free hours before",
			events: []model.Event{site(16, 0, 18, 0)},
			w:      PM,
			want:   model.Available,
		},
		{
			name:   "event outside window",
			events: []model.Event{site(7, 0, 8, 0)},
			w:      AM,
			want:   model.Available,
		},
		{
			name:   "minutes are discarded",
			events: []model.Event{site(9, 50, 10, 10)},
			w:      AM,
			want:   model.Partial,
		},
		{
			name:   "overlapping spans do not rewind the cursor",
			events: []model.Event{site(13, 0, 16, 0), site(14, 0, 15, 0)},
			w:      PM,
			want:   model.Unavailable,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, Mark(tc.events, tc.w, false, today, today))
		})
	}
}

func TestLongestFree(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1, LongestFree([]model.Event{site(9, 0, 11, 0), site(14, 0, 17, 0)}, AM))
	assert.Equal(t, 3, LongestFree(nil, AM))
	assert.Equal(t, 4, LongestFree(nil, PM))
	assert.Equal(t, 2, LongestFree([]model.Event{site(10, 0, 11, 0), site(15, 0, 17, 0)}, PM))
}
