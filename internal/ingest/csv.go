// Package ingest turns uploaded schedule exports into a model.Dataset.
package ingest

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

// Required CSV columns. Order in the file does not matter.
const (
	ColOwner   = "Owner"
	ColSubject = "Subject"
	ColStart   = "Start"
	ColEnd     = "End"
)

const (
	EncodingAuto     = "auto"
	EncodingUTF8     = "utf-8"
	EncodingShiftJIS = "shift_jis"
)

// timestampLayouts are tried in order. Numeric month/day/hour fields accept
// one or two digits.
var timestampLayouts = []string{
	"2006-1-2 15:04:05",
	"2006-1-2 15:04",
	"2006-1-2T15:04:05",
	"2006-1-2T15:04",
	"2006/1/2 15:04:05",
	"2006/1/2 15:04",
	time.RFC3339,
	"2006-1-2",
	"2006/1/2",
}

// ErrorPrefix starts every ingestion error message.
const ErrorPrefix = "CSVファイルの処理中にエラーが発生しました: "

// Error is an ingestion failure. The whole file is rejected.
type Error struct {
	Row    int // 1-based data row, 0 when not row specific
	Column string
	Err    error
}

func (e *Error) Error() string {
	var where string
	switch {
	case e.Row > 0 && e.Column != "":
		where = fmt.Sprintf("row %d, column %s: ", e.Row, e.Column)
	case e.Row > 0:
		where = fmt.Sprintf("row %d: ", e.Row)
	case e.Column != "":
		where = fmt.Sprintf("column %s: ", e.Column)
	}
	return ErrorPrefix + where + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

var (
	ErrMissingColumn  = errors.New("missing required column")
	ErrEndBeforeStart = errors.New("End is before Start")
)

// Options tune parsing.
type Options struct {
	// Encoding is "auto" (default), "utf-8" or "shift_jis". Auto treats input
	// that is not valid UTF-8 as Shift_JIS.
	Encoding string
}

// ParseCSV reads Owner/Subject/Start/End rows. A UTF-8 BOM is stripped and
// extra columns are ignored. Any bad row rejects the whole file.
func ParseCSV(r io.Reader, opts Options) (*model.Dataset, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, &Error{Err: err}
	}
	src, err := decode(raw, opts.Encoding)
	if err != nil {
		return nil, &Error{Err: err}
	}

	cr := csv.NewReader(src)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &Error{Err: errors.New("file is empty")}
		}
		return nil, &Error{Err: err}
	}
	cols, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	var events []model.Event
	for row := 1; ; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &Error{Row: row, Err: err}
		}
		if blank(rec) {
			continue
		}
		ev, err := parseRow(rec, cols, row)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return model.NewDataset(events), nil
}

func decode(raw []byte, encoding string) (io.Reader, error) {
	raw = bytes.TrimPrefix(raw, []byte("\uFEFF"))
	switch strings.ToLower(encoding) {
	case "", EncodingAuto:
		if utf8.Valid(raw) {
			return bytes.NewReader(raw), nil
		}
		return transform.NewReader(bytes.NewReader(raw), japanese.ShiftJIS.NewDecoder()), nil
	case EncodingUTF8, "utf8":
		return bytes.NewReader(raw), nil
	case EncodingShiftJIS, "sjis", "cp932":
		return transform.NewReader(bytes.NewReader(raw), japanese.ShiftJIS.NewDecoder()), nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", encoding)
	}
}

type columns struct {
	owner, subject, start, end int
}

func columnIndex(header []string) (columns, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if _, dup := idx[name]; !dup {
			idx[name] = i
		}
	}
	find := func(name string) (int, error) {
		i, ok := idx[name]
		if !ok {
			return 0, &Error{Column: name, Err: ErrMissingColumn}
		}
		return i, nil
	}

	var c columns
	var err error
	if c.owner, err = find(ColOwner); err != nil {
		return c, err
	}
	if c.subject, err = find(ColSubject); err != nil {
		return c, err
	}
	if c.start, err = find(ColStart); err != nil {
		return c, err
	}
	if c.end, err = find(ColEnd); err != nil {
		return c, err
	}
	return c, nil
}

func parseRow(rec []string, c columns, row int) (model.Event, error) {
	field := func(i int) string {
		if i < len(rec) {
			return rec[i]
		}
		return ""
	}

	start, err := ParseTimestamp(field(c.start))
	if err != nil {
		return model.Event{}, &Error{Row: row, Column: ColStart, Err: err}
	}
	end, err := ParseTimestamp(field(c.end))
	if err != nil {
		return model.Event{}, &Error{Row: row, Column: ColEnd, Err: err}
	}
	if end.Before(start) {
		return model.Event{}, &Error{Row: row, Err: ErrEndBeforeStart}
	}

	return model.Event{
		Owner:   strings.TrimSpace(field(c.owner)),
		Subject: field(c.subject),
		Start:   start,
		End:     end,
	}, nil
}

// ParseTimestamp parses a naive local date-time. The wall clock is kept as
// written; an explicit offset is kept but never converted.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}

func blank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
