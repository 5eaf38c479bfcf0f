package holiday

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"

	"schedview/internal/model"
)

var tableDateLayouts = []string{"2006/1/2", "2006/01/02", "2006-01-02", "2006/1/2 0:00:00"}

// Table is a holiday list loaded from a "date,name" CSV.
type Table struct {
	days  map[model.Date]string
	first int
	last  int
}

// ParseTable reads the Cabinet Office CSV. Shift_JIS input is detected by
// invalid UTF-8 and decoded; a UTF-8 BOM is stripped. Rows whose first column
// is not a date (the header) are skipped.
func ParseTable(r io.Reader) (*Table, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read holiday csv: %w", err)
	}
	raw = bytes.TrimPrefix(raw, []byte("\uFEFF"))

	var src io.Reader = bytes.NewReader(raw)
	if !utf8.Valid(raw) {
		src = transform.NewReader(src, japanese.ShiftJIS.NewDecoder())
	}

	cr := csv.NewReader(src)
	cr.FieldsPerRecord = -1

	t := &Table{days: make(map[model.Date]string)}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse holiday csv: %w", err)
		}
		if len(rec) == 0 {
			continue
		}
		d, ok := parseTableDate(strings.TrimSpace(rec[0]))
		if !ok {
			continue
		}
		name := "祝日"
		if len(rec) >= 2 && strings.TrimSpace(rec[1]) != "" {
			name = strings.TrimSpace(rec[1])
		}
		t.days[d] = name
		if t.first == 0 || d.Year < t.first {
			t.first = d.Year
		}
		if d.Year > t.last {
			t.last = d.Year
		}
	}
	if len(t.days) == 0 {
		return nil, errors.New("parse holiday csv: no holiday rows")
	}
	return t, nil
}

func parseTableDate(s string) (model.Date, bool) {
	for _, layout := range tableDateLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return model.DateOf(ts), true
		}
	}
	return model.Date{}, false
}

func (t *Table) Len() int { return len(t.days) }

// Years returns the first and last year present in the table.
func (t *Table) Years() (first, last int) { return t.first, t.last }

// Covers reports whether year lies within the table's span.
func (t *Table) Covers(year int) bool {
	return t != nil && year >= t.first && year <= t.last
}

func (t *Table) HolidaysFor(year int, month time.Month) map[int]string {
	return monthOf(year, month, func(d model.Date) (string, bool) {
		name, ok := t.days[d]
		return name, ok
	})
}
