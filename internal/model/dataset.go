package model

import (
	"sort"
)

// Dataset is an immutable, sorted set of events with an (owner, date) index.
// It is built once per ingestion and shared read-only afterwards.
type Dataset struct {
	events []Event
	index  map[string]map[Date][]Event
	owners []string
	first  Date
	last   Date
}

// NewDataset sorts events by (date, start time) and indexes them. The sort is
// stable so rows with equal keys keep their input order.
func NewDataset(events []Event) *Dataset {
	sorted := make([]Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		di, dj := sorted[i].Date(), sorted[j].Date()
		if di != dj {
			return di.Before(dj)
		}
		return clockOf(sorted[i]) < clockOf(sorted[j])
	})

	ds := &Dataset{
		events: sorted,
		index:  make(map[string]map[Date][]Event),
	}
	for i, ev := range sorted {
		byDate, ok := ds.index[ev.Owner]
		if !ok {
			byDate = make(map[Date][]Event)
			ds.index[ev.Owner] = byDate
			ds.owners = append(ds.owners, ev.Owner)
		}
		d := ev.Date()
		byDate[d] = append(byDate[d], ev)
		if i == 0 || d.Before(ds.first) {
			ds.first = d
		}
		if i == 0 || d.After(ds.last) {
			ds.last = d
		}
	}
	sort.Strings(ds.owners)
	return ds
}

func clockOf(e Event) int {
	return e.Start.Hour()*3600 + e.Start.Minute()*60 + e.Start.Second()
}

func (ds *Dataset) Len() int {
	if ds == nil {
		return 0
	}
	return len(ds.events)
}

// Events returns the sorted events. Callers must not modify the slice.
func (ds *Dataset) Events() []Event {
	if ds == nil {
		return nil
	}
	return ds.events
}

// Owners returns the distinct owners, sorted.
func (ds *Dataset) Owners() []string {
	if ds == nil {
		return nil
	}
	out := make([]string, len(ds.owners))
	copy(out, ds.owners)
	return out
}

func (ds *Dataset) HasOwner(owner string) bool {
	if ds == nil {
		return false
	}
	_, ok := ds.index[owner]
	return ok
}

// EventsFor returns the owner's events on date in dataset order.
func (ds *Dataset) EventsFor(owner string, date Date) []Event {
	if ds == nil {
		return nil
	}
	return ds.index[owner][date]
}

// Range returns the first and last event dates. ok is false when empty.
func (ds *Dataset) Range() (first, last Date, ok bool) {
	if ds.Len() == 0 {
		return Date{}, Date{}, false
	}
	return ds.first, ds.last, true
}

// Months returns the first day of every month from the first event's month
// through the last event's month.
func (ds *Dataset) Months() []Date {
	first, last, ok := ds.Range()
	if !ok {
		return nil
	}
	var out []Date
	for m := first.FirstOfMonth(); !m.After(last); m = DateOf(m.Time().AddDate(0, 1, 0)) {
		out = append(out, m)
	}
	return out
}
