// Package refresh runs the background reloads of the default dataset and the
// holiday table on cron schedules.
package refresh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"schedview/internal/config"
	"schedview/internal/fetch"
	"schedview/internal/holiday"
	"schedview/internal/ingest"
	appLog "schedview/internal/log"
	"schedview/internal/model"
)

// Job is one named reload.
type Job struct {
	Name string
	// Spec is a standard 5-field cron expression. Empty means the job only
	// runs once at Start.
	Spec string
	Run  func(ctx context.Context) error
}

// Scheduler wraps a cron.Cron whose jobs share one context.
type Scheduler struct {
	cron *cron.Cron
	jobs []Job

	mu      sync.Mutex
	running map[string]bool
}

func New(loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(loc)),
		running: make(map[string]bool),
	}
}

// Add validates the cron spec and queues the job.
func (s *Scheduler) Add(j Job) error {
	if j.Run == nil {
		return fmt.Errorf("refresh: job %q has no run func", j.Name)
	}
	if j.Spec != "" {
		if _, err := cron.ParseStandard(j.Spec); err != nil {
			return fmt.Errorf("refresh: job %q: %w", j.Name, err)
		}
	}
	s.jobs = append(s.jobs, j)
	return nil
}

// Start runs every job once synchronously, then schedules them. The scheduler
// stops when ctx is done; Start returns once the initial runs are finished.
func (s *Scheduler) Start(ctx context.Context) error {
	for _, j := range s.jobs {
		s.run(ctx, j)
		if j.Spec == "" {
			continue
		}
		if _, err := s.cron.AddFunc(j.Spec, func() { s.run(ctx, j) }); err != nil {
			return fmt.Errorf("refresh: schedule %q: %w", j.Name, err)
		}
		appLog.Info("refresh job scheduled", "job", j.Name, "spec", j.Spec)
	}

	s.cron.Start()
	go func() {
		<-ctx.Done()
		stopped := s.cron.Stop()
		<-stopped.Done()
		appLog.Info("refresh scheduler stopped")
	}()
	return nil
}

var errBusy = errors.New("refresh: job already running")

// run skips a tick when the previous run of the same job is still going.
func (s *Scheduler) run(ctx context.Context, j Job) error {
	s.mu.Lock()
	if s.running[j.Name] {
		s.mu.Unlock()
		appLog.Info("refresh job still running, tick skipped", "job", j.Name)
		return errBusy
	}
	s.running[j.Name] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.running, j.Name)
		s.mu.Unlock()
	}()

	started := time.Now()
	if err := j.Run(ctx); err != nil {
		appLog.Error("refresh job failed", err, "job", j.Name)
		return err
	}
	appLog.Info("refresh job completed", "job", j.Name, "elapsed", time.Since(started).String())
	return nil
}

// DatasetFunc receives a freshly loaded default dataset.
type DatasetFunc func(ds *model.Dataset, source string)

// DatasetJob reloads the configured source. A remote body that did not change
// since the last fetch is not re-parsed. Parse failures leave the previous
// dataset in place.
func DatasetJob(src config.SourceConfig, f *fetch.Fetcher, loc *time.Location, set DatasetFunc) Job {
	var loadedOnce bool
	return Job{
		Name: "dataset",
		Spec: src.RefreshCron,
		Run: func(ctx context.Context) error {
			name, body, changed, err := read(ctx, f, src.URL, src.Path)
			if err != nil {
				return err
			}
			if !changed && loadedOnce {
				appLog.Debug("dataset source unchanged", "source", name)
				return nil
			}

			now := time.Now().In(loc)
			ds, err := ingest.Parse(name, body, ingest.Source{
				CSV: ingest.Options{Encoding: src.Encoding},
				ICS: ingest.ICSOptions{
					Owner:      src.Owner,
					Location:   loc,
					RangeStart: now.AddDate(0, -1, 0),
					RangeEnd:   now.AddDate(0, 3, 0),
				},
			})
			if err != nil {
				return err
			}
			loadedOnce = true
			set(ds, name)
			appLog.Info("default dataset loaded", "source", name, "events", ds.Len(), "owners", len(ds.Owners()))
			return nil
		},
	}
}

// HolidayJob reloads the Cabinet Office table into chain.
func HolidayJob(cfg config.HolidaysConfig, f *fetch.Fetcher, chain *holiday.Chain) Job {
	return Job{
		Name: "holidays",
		Spec: cfg.RefreshCron,
		Run: func(ctx context.Context) error {
			name, body, changed, err := read(ctx, f, cfg.CSVURL, cfg.CSVPath)
			if err != nil {
				return err
			}
			if !changed && chain.HasTable() {
				return nil
			}
			t, err := holiday.ParseTable(bytes.NewReader(body))
			if err != nil {
				return fmt.Errorf("holiday table %s: %w", name, err)
			}
			chain.SetTable(t)
			return nil
		},
	}
}

// read returns the body from rawURL (through the fetch cache) or file. changed
// is always true for local files.
func read(ctx context.Context, f *fetch.Fetcher, rawURL, file string) (name string, body []byte, changed bool, err error) {
	switch {
	case rawURL != "":
		res, err := f.Get(ctx, rawURL)
		if err != nil {
			return "", nil, false, err
		}
		return remoteName(rawURL), res.Body, res.Changed, nil
	case file != "":
		body, err := os.ReadFile(file)
		if err != nil {
			return "", nil, false, fmt.Errorf("read %s: %w", file, err)
		}
		return filepath.Base(file), body, true, nil
	default:
		return "", nil, false, errors.New("refresh: neither url nor path configured")
	}
}

// remoteName is the last path segment of raw, used for format dispatch.
func remoteName(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	base := path.Base(u.Path)
	if base == "." || base == "/" {
		return u.Host
	}
	return base
}
