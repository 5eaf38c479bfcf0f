// Package availability turns a half-day's site events into an availability
// mark.
package availability

import (
	"sort"

	"schedview/internal/model"
)

// Window is a half-day span [Start, End) on integer hours.
type Window struct {
	Start int
	End   int
}

var (
	AM = Window{Start: 9, End: 12}
	PM = Window{Start: 13, End: 17}
)

// Horizon is how many days past today still get a mark.
const Horizon = 60

const (
	availableHours = 3
	partialHours   = 2
)

// Mark computes the mark for one half-day. forced covers leave and public
// holidays. events must already be limited to site events.
//
// Hours are compared on the hour only; 09:50-10:10 occupies [9, 10).
func Mark(events []model.Event, w Window, forced bool, date, today model.Date) model.Mark {
	if forced {
		return model.Unavailable
	}
	if today.DaysUntil(date) > Horizon {
		return model.NotApplicable
	}
	if date.Before(today) {
		return model.NotApplicable
	}
	if len(events) == 0 {
		return model.Available
	}

	free := LongestFree(events, w)
	switch {
	case free >= availableHours:
		return model.Available
	case free >= partialHours:
		return model.Partial
	default:
		return model.Unavailable
	}
}

type span struct{ start, end int }

// LongestFree returns the longest run of free hours inside w.
func LongestFree(events []model.Event, w Window) int {
	spans := make([]span, 0, len(events))
	for _, ev := range events {
		s := max(ev.StartHour(), w.Start)
		e := min(ev.EndHour(), w.End)
		if s >= w.End || e <= w.Start {
			continue
		}
		spans = append(spans, span{start: s, end: e})
	}
	sort.Slice(spans, func(i, j int) bool {
		if spans[i].start != spans[j].start {
			return spans[i].start < spans[j].start
		}
		return spans[i].end < spans[j].end
	})

	longest := 0
	cursor := w.Start
	for _, sp := range spans {
		longest = max(longest, sp.start-cursor)
		cursor = max(cursor, sp.end)
	}
	return max(longest, w.End-cursor)
}
