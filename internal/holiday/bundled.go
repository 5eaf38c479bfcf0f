package holiday

import (
	"maps"
	"sync"
	"time"

	holidayjp "github.com/holiday-jp/holiday_jp-go"

	"schedview/internal/model"
)

type monthKey struct {
	year  int
	month time.Month
}

// Bundled answers from the holiday_jp dataset compiled into the binary. It
// needs no network or files and is the fallback when no Cabinet Office table
// covers a year.
type Bundled struct {
	mu     sync.Mutex
	months map[monthKey]map[int]string
}

func NewBundled() *Bundled {
	return &Bundled{months: make(map[monthKey]map[int]string)}
}

func (b *Bundled) HolidaysFor(year int, month time.Month) map[int]string {
	key := monthKey{year, month}

	b.mu.Lock()
	defer b.mu.Unlock()
	if days, ok := b.months[key]; ok {
		return maps.Clone(days)
	}
	days := monthOf(year, month, lookupBundled)
	b.months[key] = days
	return maps.Clone(days)
}

func lookupBundled(d model.Date) (string, bool) {
	t := d.Time()
	hs := holidayjp.Between(t, t)
	if len(hs) == 0 {
		return "", false
	}
	return hs[0].Name, true
}
