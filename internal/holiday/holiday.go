// Package holiday answers which days of a month are Japanese public holidays.
package holiday

import (
	"errors"
	"sync"
	"time"

	appLog "schedview/internal/log"
	"schedview/internal/model"
)

// ErrInvalidDate is returned for day numbers that do not exist in the month
// (e.g. February 30).
var ErrInvalidDate = errors.New("holiday: invalid date")

// Oracle returns the holidays of one month keyed by day of month.
type Oracle interface {
	HolidaysFor(year int, month time.Month) map[int]string
}

// lookupFunc reports the holiday name of a valid date.
type lookupFunc func(d model.Date) (string, bool)

// monthOf walks day numbers 1-31 uniformly and skips the ones the month does
// not have.
func monthOf(year int, month time.Month, lookup lookupFunc) map[int]string {
	out := make(map[int]string)
	for day := 1; day <= 31; day++ {
		d, err := dateOf(year, month, day)
		if err != nil {
			continue
		}
		if name, ok := lookup(d); ok {
			out[day] = name
		}
	}
	return out
}

func dateOf(year int, month time.Month, day int) (model.Date, error) {
	d := model.NewDate(year, month, day)
	if d.Year != year || d.Month != month || d.Day != day {
		return model.Date{}, ErrInvalidDate
	}
	return d, nil
}

// Chain prefers a loaded Table for the years it covers and asks the fallback
// otherwise. The table can be swapped while readers are active.
type Chain struct {
	fallback Oracle

	mu    sync.RWMutex
	table *Table
}

// NewChain uses a Bundled oracle when fallback is nil.
func NewChain(fallback Oracle) *Chain {
	if fallback == nil {
		fallback = NewBundled()
	}
	return &Chain{fallback: fallback}
}

// SetTable installs t; nil removes the table.
func (c *Chain) SetTable(t *Table) {
	c.mu.Lock()
	c.table = t
	c.mu.Unlock()
	if t != nil {
		first, last := t.Years()
		appLog.Info("holiday table installed", "entries", t.Len(), "first_year", first, "last_year", last)
	}
}

func (c *Chain) HasTable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.table != nil
}

func (c *Chain) HolidaysFor(year int, month time.Month) map[int]string {
	c.mu.RLock()
	t := c.table
	c.mu.RUnlock()

	if t != nil && t.Covers(year) {
		return t.HolidaysFor(year, month)
	}
	return c.fallback.HolidaysFor(year, month)
}
