package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"schedview/internal/calendar"
	"schedview/internal/config"
	appLog "schedview/internal/log"
	"schedview/internal/model"
	"schedview/internal/session"
)

// SessionCookie names the cookie carrying the session id.
const SessionCookie = "schedview_session"

// Options wires a Server.
type Options struct {
	Config    *config.Config
	Assembler *calendar.Assembler
	Sessions  *session.Manager

	// PreviewPath is served at /preview.png.
	PreviewPath string

	// Now defaults to time.Now; tests pin it.
	Now func() time.Time
}

// Server provides the HTML UI and JSON API over the active dataset.
type Server struct {
	cfg       *config.Config
	asm       *calendar.Assembler
	sessions  *session.Manager
	preview   string
	now       func() time.Time
	loc       *time.Location
	mux       *http.ServeMux
	uploadMax int64

	// The default dataset is shown to sessions that have not uploaded
	// anything. It is replaced by the refresher.
	defaultMu     sync.RWMutex
	defaultDS     *model.Dataset
	defaultSource string
	defaultAt     time.Time
}

// NewServer constructs a new Server.
func NewServer(opts Options) *Server {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	asm := opts.Assembler
	if asm == nil {
		asm = calendar.NewAssembler(nil, cfg.FirstWeekday())
	}
	sessions := opts.Sessions
	if sessions == nil {
		sessions = session.NewManager(cfg.SessionTTL())
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	s := &Server{
		cfg:       cfg,
		asm:       asm,
		sessions:  sessions,
		preview:   opts.PreviewPath,
		now:       now,
		loc:       cfg.Location(),
		mux:       http.NewServeMux(),
		uploadMax: cfg.UploadMaxBytes(),
	}
	s.registerRoutes()
	return s
}

// SetDefault replaces the dataset shown to sessions without an upload.
func (s *Server) SetDefault(ds *model.Dataset, source string) {
	s.defaultMu.Lock()
	s.defaultDS = ds
	s.defaultSource = source
	s.defaultAt = s.now()
	s.defaultMu.Unlock()
}

func (s *Server) defaultDataset() (*model.Dataset, string, time.Time) {
	s.defaultMu.RLock()
	defer s.defaultMu.RUnlock()
	return s.defaultDS, s.defaultSource, s.defaultAt
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="schedview", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	appLog.Info("HTTP server stopped")
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("POST /upload", s.handleUpload)
	s.mux.HandleFunc("GET /api/owners", s.handleOwners)
	s.mux.HandleFunc("GET /api/calendar", s.handleCalendar)
	s.mux.HandleFunc("GET /api/day", s.handleDay)
	s.mux.HandleFunc("GET /preview.png", s.handlePreview)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handlePreview serves the last captured PNG from disk.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	if s.preview == "" {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, s.preview)
}

// session resolves the caller's store. The cookie is reissued on every
// request so its MaxAge slides with the server-side idle timeout.
func (s *Server) session(w http.ResponseWriter, r *http.Request) *session.Store {
	var id string
	if c, err := r.Cookie(SessionCookie); err == nil {
		id = c.Value
	}
	id, store := s.sessions.Get(id)
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.cfg.SessionTTL().Seconds()),
	})
	return store
}

// activeDataset prefers the session upload over the default dataset.
func (s *Server) activeDataset(store *session.Store) (*model.Dataset, string, time.Time) {
	if ds := store.Dataset(); ds != nil {
		name, at := store.Source()
		return ds, name, at
	}
	return s.defaultDataset()
}

func (s *Server) today() model.Date {
	return model.DateOf(s.now().In(s.loc))
}

// pickOwner returns requested when the dataset has it, else the first owner.
func pickOwner(ds *model.Dataset, requested string) string {
	if ds.HasOwner(requested) {
		return requested
	}
	if owners := ds.Owners(); len(owners) > 0 {
		return owners[0]
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
