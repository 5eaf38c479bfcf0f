package web

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"html/template"
	"io"
	"net/http"
	"time"

	"schedview/internal/calendar"
	"schedview/internal/ingest"
	appLog "schedview/internal/log"
	"schedview/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTmpl = template.Must(template.ParseFS(templateFS, "templates/*.html"))

const (
	msgLoaded      = "ファイルを読み込みました"
	msgErrorPrefix = "エラー: "
	msgBadDate     = "日付は YYYY-MM-DD 形式で指定してください"
)

// page is the data handed to index.html.
type page struct {
	// Static drops the upload form and sidebar for file renders.
	Static bool

	Message string
	IsError bool

	Source   string
	LoadedAt string

	Owners []string
	Owner  string
	Months []calendar.Month
	Detail *detail
}

type detail struct {
	Title  string
	Events []model.Event
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	store := s.session(w, r)
	ds, source, loadedAt := s.activeDataset(store)

	status := http.StatusOK
	var msg string
	var selected *model.Date
	if raw := r.URL.Query().Get("date"); raw != "" {
		d, err := model.ParseDate(raw)
		if err != nil {
			status = http.StatusBadRequest
			msg = msgErrorPrefix + msgBadDate
		} else {
			store.Select(d)
			selected = &d
		}
	}
	if selected == nil && status == http.StatusOK {
		if d, ok := store.Selected(); ok {
			selected = &d
		}
	}

	p, err := s.buildPage(r.Context(), ds, r.URL.Query().Get("owner"), selected)
	if err != nil {
		appLog.Error("render calendar failed", err)
		writeError(w, http.StatusInternalServerError, "failed to render calendar")
		return
	}
	p.Message, p.IsError = msg, msg != ""
	p.Source, p.LoadedAt = source, formatLoaded(loadedAt, s.loc)
	s.render(w, status, p)
}

// handleUpload replaces the session dataset. A file that fails to parse
// leaves the previous dataset active and shows the error.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	store := s.session(w, r)
	r.Body = http.MaxBytesReader(w, r.Body, s.uploadMax)

	status := http.StatusOK
	var msg string
	body, name, err := readUpload(r)
	if err == nil {
		var ds *model.Dataset
		ds, err = ingest.Parse(name, body, s.ingestSource())
		if err == nil {
			store.Replace(ds, name, s.now())
			msg = msgLoaded
			appLog.Info("dataset uploaded", "file", name, "events", ds.Len(), "owners", len(ds.Owners()))
		}
	}
	if err != nil {
		appLog.Error("upload rejected", err, "file", name)
		status = http.StatusBadRequest
		msg = msgErrorPrefix + err.Error()
	}

	ds, source, loadedAt := s.activeDataset(store)
	p, perr := s.buildPage(r.Context(), ds, r.FormValue("owner"), nil)
	if perr != nil {
		appLog.Error("render calendar failed", perr)
		writeError(w, http.StatusInternalServerError, "failed to render calendar")
		return
	}
	p.Message, p.IsError = msg, err != nil
	p.Source, p.LoadedAt = source, formatLoaded(loadedAt, s.loc)
	s.render(w, status, p)
}

func readUpload(r *http.Request) ([]byte, string, error) {
	f, hdr, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, "", errors.New("ファイルが選択されていません")
		}
		return nil, "", err
	}
	defer f.Close()
	body, err := io.ReadAll(f)
	if err != nil {
		return nil, hdr.Filename, err
	}
	return body, hdr.Filename, nil
}

func (s *Server) ingestSource() ingest.Source {
	now := s.now().In(s.loc)
	return ingest.Source{
		CSV: ingest.Options{Encoding: s.cfg.Source.Encoding},
		ICS: ingest.ICSOptions{
			Owner:      s.cfg.Source.Owner,
			Location:   s.loc,
			RangeStart: now.AddDate(0, -1, 0),
			RangeEnd:   now.AddDate(0, 3, 0),
		},
	}
}

func (s *Server) buildPage(ctx context.Context, ds *model.Dataset, requested string, selected *model.Date) (page, error) {
	p := page{Owners: ds.Owners()}
	if ds == nil || ds.Len() == 0 {
		return p, nil
	}

	p.Owner = pickOwner(ds, requested)
	months, err := s.asm.Calendar(ctx, ds, p.Owner, s.today())
	if err != nil {
		return p, err
	}
	p.Months = months

	if selected != nil {
		p.Detail = &detail{
			Title:  selected.Time().Format("2006年01月02日") + "のスケジュール",
			Events: s.asm.Detail(ds, p.Owner, *selected),
		}
	}
	return p, nil
}

func (s *Server) render(w http.ResponseWriter, status int, p page) {
	var buf bytes.Buffer
	if err := pageTmpl.ExecuteTemplate(&buf, "index.html", p); err != nil {
		appLog.Error("template execution failed", err)
		writeError(w, http.StatusInternalServerError, "failed to render page")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// Render writes a standalone page of the default dataset for owner, without
// the upload form. It is used for file output and PNG capture.
func (s *Server) Render(ctx context.Context, w io.Writer, owner string) error {
	ds, source, loadedAt := s.defaultDataset()
	p, err := s.buildPage(ctx, ds, owner, nil)
	if err != nil {
		return err
	}
	p.Static = true
	p.Source, p.LoadedAt = source, formatLoaded(loadedAt, s.loc)
	return pageTmpl.ExecuteTemplate(w, "index.html", p)
}

func formatLoaded(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	return t.In(loc).Format("2006-01-02 15:04")
}
