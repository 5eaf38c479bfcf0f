package leave

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"schedview/internal/model"
)

func ev(subject string, startHour, endHour int) model.Event {
	return model.Event{
		Owner:   "tanaka",
		Subject: subject,
		Start:   time.Date(2026, 11, 4, startHour, 0, 0, 0, time.UTC),
		End:     time.Date(2026, 11, 4, endHour, 0, 0, 0, time.UTC),
	}
}

func TestKindOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		subject string
		want    model.Kind
	}{
		{subject: "休日", want: model.FullHoliday},
		{subject: "振休（午前）", want: model.SubstituteHoliday},
		{subject: "代休", want: model.CompLeave},
		{subject: "有休", want: model.PaidLeave},
		{subject: "現場\u3000立会い", want: model.Site},
		{subject: "現場 有休", want: model.PaidLeave},
		{subject: "打合せ", want: model.Other},
		{subject: "\u3000", want: model.Other},
	}
	for _, tc := range tests {
		t.Run(tc.subject, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, KindOf(tc.subject))
		})
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "現場 A", Normalize("\u3000現場\u3000A "))
}

func TestClassify_FullHolidayWins(t *testing.T) {
	t.Parallel()

	orders := [][]model.Event{
		{ev("有休", 8, 11), ev("休日", 0, 0), ev("PM代休", 13, 17)},
		{ev("休日", 0, 0), ev("有休", 8, 11)},
		{ev("振休", 13, 17), ev("全社休日", 9, 10)},
	}
	for _, events := range orders {
		got := Classify(events)
		assert.Equal(t, model.LeaveAssessment{AMLeave: true, PMLeave: true, Label: "休日"}, got)
	}
}

func TestClassify_HalfDays(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		event model.Event
		want  model.LeaveAssessment
	}{
		{name: "am only", event: ev("有休", 8, 11), want: model.LeaveAssessment{AMLeave: true, Label: "AM有休"}},
		{name: "am until noon", event: ev("振休", 9, 12), want: model.LeaveAssessment{AMLeave: true, Label: "AM振休"}},
		{name: "pm only", event: ev("有休", 13, 16), want: model.LeaveAssessment{PMLeave: true, Label: "PM有休"}},
		{name: "pm from noon", event: ev("代休", 12, 17), want: model.LeaveAssessment{PMLeave: true, Label: "PM代休"}},
		{name: "spans noon", event: ev("代休", 9, 18), want: model.LeaveAssessment{AMLeave: true, PMLeave: true, Label: "代休"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, Classify([]model.Event{tc.event}))
		})
	}
}

func TestClassify_LastLabelWins(t *testing.T) {
	t.Parallel()

	got := Classify([]model.Event{ev("振休", 9, 12), ev("有休", 13, 17)})
	assert.True(t, got.AMLeave)
	assert.True(t, got.PMLeave)
	assert.Equal(t, "PM有休", got.Label)

	got = Classify([]model.Event{ev("有休", 13, 17), ev("振休", 9, 12)})
	assert.Equal(t, "AM振休", got.Label)
}

func TestClassify_NoLeave(t *testing.T) {
	t.Parallel()

	assert.Equal(t, model.LeaveAssessment{}, Classify(nil))
	assert.Equal(t, model.LeaveAssessment{}, Classify([]model.Event{ev("現場 調査", 9, 12)}))
}

func TestClassify_KeywordPrecedenceInOneSubject(t *testing.T) {
	t.Parallel()

	got := Classify([]model.Event{ev("有休→振休に変更", 13, 17)})
	assert.Equal(t, "PM振休", got.Label)
}
