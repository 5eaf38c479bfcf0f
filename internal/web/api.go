package web

import (
	"net/http"

	"schedview/internal/calendar"
	appLog "schedview/internal/log"
	"schedview/internal/model"
)

type ownersResponse struct {
	Owners   []string `json:"owners"`
	Source   string   `json:"source,omitempty"`
	LoadedAt string   `json:"loaded_at,omitempty"`
}

type calendarResponse struct {
	Owner  string           `json:"owner"`
	Today  model.Date       `json:"today"`
	Months []calendar.Month `json:"months"`
}

type eventDTO struct {
	Subject string `json:"subject"`
	Start   string `json:"start"`
	End     string `json:"end"`
}

type dayResponse struct {
	Day     calendar.Day `json:"day"`
	Caption string       `json:"caption,omitempty"`
	Events  []eventDTO   `json:"events"`
}

// handleOwners lists the owners of the active dataset.
func (s *Server) handleOwners(w http.ResponseWriter, r *http.Request) {
	ds, source, loadedAt := s.activeDataset(s.session(w, r))
	owners := ds.Owners()
	if owners == nil {
		owners = []string{}
	}
	writeJSON(w, http.StatusOK, ownersResponse{
		Owners:   owners,
		Source:   source,
		LoadedAt: formatLoaded(loadedAt, s.loc),
	})
}

// handleCalendar returns every month grid for one owner.
//
// GET /api/calendar?owner=NAME
//   - owner: defaults to the first owner in sort order
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	ds, _, _ := s.activeDataset(s.session(w, r))
	if ds.Len() == 0 {
		writeError(w, http.StatusNotFound, "no dataset loaded")
		return
	}

	owner := pickOwner(ds, r.URL.Query().Get("owner"))
	today := s.today()
	months, err := s.asm.Calendar(r.Context(), ds, owner, today)
	if err != nil {
		appLog.Error("api calendar failed", err, "owner", owner)
		writeError(w, http.StatusInternalServerError, "failed to build calendar")
		return
	}
	writeJSON(w, http.StatusOK, calendarResponse{Owner: owner, Today: today, Months: months})
}

// handleDay returns one evaluated day plus its event list.
//
// GET /api/day?owner=NAME&date=YYYY-MM-DD
func (s *Server) handleDay(w http.ResponseWriter, r *http.Request) {
	store := s.session(w, r)
	ds, _, _ := s.activeDataset(store)
	if ds.Len() == 0 {
		writeError(w, http.StatusNotFound, "no dataset loaded")
		return
	}

	q := r.URL.Query()
	date, err := model.ParseDate(q.Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	store.Select(date)

	owner := pickOwner(ds, q.Get("owner"))
	day := s.asm.Day(ds, owner, date, s.today())
	events := s.asm.Detail(ds, owner, date)

	resp := dayResponse{Day: day, Caption: day.Caption(), Events: make([]eventDTO, 0, len(events))}
	for _, ev := range events {
		resp.Events = append(resp.Events, eventDTO{
			Subject: ev.Subject,
			Start:   ev.StartClock(),
			End:     ev.EndClock(),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
