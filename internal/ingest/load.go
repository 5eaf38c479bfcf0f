package ingest

import (
	"bytes"
	"path/filepath"
	"strings"

	"schedview/internal/model"
)

// Source bundles the options for both accepted formats.
type Source struct {
	CSV Options
	ICS ICSOptions
}

// IsICS reports whether name or body looks like an iCalendar file.
func IsICS(name string, body []byte) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".ics", ".ical", ".ifb":
		return true
	case ".csv":
		return false
	}
	head := bytes.TrimSpace(bytes.TrimPrefix(body, []byte("\uFEFF")))
	return bytes.HasPrefix(head, []byte("BEGIN:VCALENDAR"))
}

// Parse picks the parser from name/body and returns the dataset.
func Parse(name string, body []byte, src Source) (*model.Dataset, error) {
	if IsICS(name, body) {
		return ParseICS(bytes.NewReader(body), src.ICS)
	}
	return ParseCSV(bytes.NewReader(body), src.CSV)
}
