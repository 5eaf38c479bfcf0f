package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	appLog "schedview/internal/log"
	"schedview/internal/model"
)

const defaultMaxOccurrences = 5000

// ICSOptions controls ICS ingestion.
type ICSOptions struct {
	// Owner is used when a VEVENT has no ORGANIZER CN.
	Owner string
	// Location is the zone whose wall clock becomes the naive event time.
	// nil means time.Local.
	Location *time.Location
	// RangeStart / RangeEnd bound recurrence expansion.
	RangeStart time.Time
	RangeEnd   time.Time
	// MaxOccurrences caps the instances of one recurring event.
	MaxOccurrences int
}

// vevent is the subset of a VEVENT needed to build events.
type vevent struct {
	uid     string
	owner   string
	summary string
	start   time.Time
	end     time.Time
	allDay  bool
	rrule   string
	exdates []time.Time
}

// ParseICS reads a calendar and flattens it into a Dataset. VEVENTs that
// cannot be read are logged and skipped; a calendar that cannot be parsed at
// all is an ingestion error.
func ParseICS(r io.Reader, opts ICSOptions) (*model.Dataset, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, &Error{Err: err}
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, &Error{Err: errors.New("empty ICS body")}
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.MaxOccurrences <= 0 {
		opts.MaxOccurrences = defaultMaxOccurrences
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Err: fmt.Errorf("parse ICS: %w", err)}
	}

	var events []model.Event
	for _, comp := range cal.Events() {
		ve, err := readVEvent(comp, opts.Owner)
		if err != nil {
			appLog.Error("ics vevent skipped", err)
			continue
		}
		events = append(events, expand(ve, opts)...)
	}
	appLog.Info("ics parse completed", "event_count", len(events))
	return model.NewDataset(events), nil
}

func readVEvent(ve *ical.VEvent, fallbackOwner string) (vevent, error) {
	var out vevent

	uid := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uid == nil || uid.Value == "" {
		return out, errors.New("missing UID")
	}
	out.uid = uid.Value

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.summary = p.Value
	}

	out.owner = fallbackOwner
	if p := ve.GetProperty(ical.ComponentPropertyOrganizer); p != nil {
		if cn, ok := p.ICalParameters["CN"]; ok && len(cn) > 0 && cn[0] != "" {
			out.owner = cn[0]
		} else if v := strings.TrimPrefix(strings.ToLower(p.Value), "mailto:"); v != "" && fallbackOwner == "" {
			out.owner = v
		}
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return out, fmt.Errorf("uid %s: DTSTART: %w", out.uid, err)
	}
	end, err := ve.GetEndAt()
	if err != nil {
		end = start
	}
	out.start, out.end = start, end

	if p := ve.GetProperty(ical.ComponentPropertyDtStart); p != nil {
		if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
			out.allDay = true
		}
		if !strings.Contains(p.Value, "T") {
			out.allDay = true
		}
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.rrule = p.Value
	}
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		loc := start.Location()
		if tz, ok := p.ICalParameters["TZID"]; ok && len(tz) > 0 && tz[0] != "" {
			l, err := time.LoadLocation(tz[0])
			if err != nil {
				appLog.Error("ics exdate zone unknown, using DTSTART zone", err, "uid", out.uid, "tzid", tz[0])
			} else {
				loc = l
			}
		}
		for _, part := range strings.Split(p.Value, ",") {
			if t, err := parseICSTime(part, loc); err == nil {
				out.exdates = append(out.exdates, t)
			}
		}
	}
	return out, nil
}

// expand returns the instances of ve inside the range. Non-recurring events
// are returned as-is, even outside the range.
func expand(ve vevent, opts ICSOptions) []model.Event {
	if ve.rrule == "" {
		return []model.Event{toEvent(ve, ve.start, ve.end, opts.Location)}
	}

	r, err := rrule.StrToRRule(ve.rrule)
	if err != nil {
		appLog.Error("ics rrule skipped", err, "uid", ve.uid, "rrule", ve.rrule)
		return []model.Event{toEvent(ve, ve.start, ve.end, opts.Location)}
	}
	r.DTStart(ve.start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ve.exdates {
		set.ExDate(ex.In(ve.start.Location()))
	}

	rangeStart, rangeEnd := opts.RangeStart, opts.RangeEnd
	if rangeStart.IsZero() {
		rangeStart = ve.start
	}
	if rangeEnd.IsZero() {
		rangeEnd = rangeStart.AddDate(1, 0, 0)
	}
	starts := set.Between(rangeStart.In(ve.start.Location()), rangeEnd.In(ve.start.Location()), true)
	if len(starts) > opts.MaxOccurrences {
		appLog.Error("ics occurrences truncated", errors.New("max occurrences reached"),
			"uid", ve.uid, "cap", opts.MaxOccurrences)
		starts = starts[:opts.MaxOccurrences]
	}

	dur := ve.end.Sub(ve.start)
	out := make([]model.Event, 0, len(starts))
	for _, s := range starts {
		out = append(out, toEvent(ve, s, s.Add(dur), opts.Location))
	}
	return out
}

// toEvent drops the zone after converting into loc, leaving the naive wall
// clock that the rest of the system works with.
func toEvent(ve vevent, start, end time.Time, loc *time.Location) model.Event {
	if !ve.allDay {
		start = start.In(loc)
		end = end.In(loc)
	}
	return model.Event{
		Owner:   ve.owner,
		Subject: ve.summary,
		Start:   naive(start),
		End:     naive(end),
	}
}

func naive(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}

// parseICSTime handles the DATE, DATE-TIME and UTC forms of EXDATE. Floating
// values are read in loc.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	switch {
	case v == "":
		return time.Time{}, errors.New("empty time value")
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, loc)
	default:
		return time.ParseInLocation("20060102", v, loc)
	}
}
