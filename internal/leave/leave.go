// Package leave detects days off from event subjects.
package leave

import (
	"strings"

	"schedview/internal/model"
)

// Rule maps a subject keyword onto a Kind.
type Rule struct {
	Keyword string
	Kind    model.Kind
}

// Rules is evaluated top to bottom; the first keyword contained in the
// normalized subject decides the kind.
var Rules = []Rule{
	{Keyword: "休日", Kind: model.FullHoliday},
	{Keyword: "振休", Kind: model.SubstituteHoliday},
	{Keyword: "代休", Kind: model.CompLeave},
	{Keyword: "有休", Kind: model.PaidLeave},
	{Keyword: "現場", Kind: model.Site},
}

// Normalize replaces full-width spaces with ASCII spaces and trims.
func Normalize(subject string) string {
	return strings.TrimSpace(strings.ReplaceAll(subject, "\u3000", " "))
}

// KindOf classifies a single subject.
func KindOf(subject string) model.Kind {
	s := Normalize(subject)
	for _, r := range Rules {
		if strings.Contains(s, r.Keyword) {
			return r.Kind
		}
	}
	return model.Other
}

// KeywordOf returns the keyword that produces k, or "".
func KeywordOf(k model.Kind) string {
	for _, r := range Rules {
		if r.Kind == k {
			return r.Keyword
		}
	}
	return ""
}

// Classify derives the AM/PM leave flags and label for one owner's day.
//
// A 休日 event anywhere in the day wins outright. Otherwise each leave event
// sets its half-days from its hour span, and the label of the last leave event
// processed is the one kept.
func Classify(events []model.Event) model.LeaveAssessment {
	var out model.LeaveAssessment

	leaves := make([]model.Event, 0, len(events))
	kinds := make([]model.Kind, 0, len(events))
	for _, ev := range events {
		k := KindOf(ev.Subject)
		if !k.IsLeave() {
			continue
		}
		if k == model.FullHoliday {
			return model.LeaveAssessment{AMLeave: true, PMLeave: true, Label: KeywordOf(model.FullHoliday)}
		}
		leaves = append(leaves, ev)
		kinds = append(kinds, k)
	}

	for i, ev := range leaves {
		am, pm := scope(ev.StartHour(), ev.EndHour())
		out.AMLeave = out.AMLeave || am
		out.PMLeave = out.PMLeave || pm
		out.Label = prefix(ev.StartHour(), ev.EndHour()) + KeywordOf(kinds[i])
	}
	return out
}

func scope(startHour, endHour int) (am, pm bool) {
	switch {
	case startHour < 12 && endHour <= 12:
		return true, false
	case startHour >= 12:
		return false, true
	default:
		return true, true
	}
}

func prefix(startHour, endHour int) string {
	switch {
	case startHour >= 12:
		return "PM"
	case endHour <= 12:
		return "AM"
	default:
		return ""
	}
}
