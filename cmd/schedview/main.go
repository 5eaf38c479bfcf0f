package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"schedview/internal/calendar"
	"schedview/internal/capture"
	"schedview/internal/config"
	"schedview/internal/fetch"
	"schedview/internal/holiday"
	appLog "schedview/internal/log"
	"schedview/internal/refresh"
	"schedview/internal/session"
	"schedview/internal/web"
)

type flagConfig struct {
	configPath string
	listen     string
	csvPath    string
	once       bool
	out        string
	png        string
	owner      string
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI flags override both the file and the environment.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.csvPath != "" {
		conf.Source.Path = flags.csvPath
		conf.Source.URL = ""
	}

	if err := appLog.Init(conf.Env); err != nil {
		fmt.Fprintln(os.Stderr, "log init:", err)
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))
	defer appLog.Sync()

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"week_start", conf.WeekStart,
		"source_path", conf.Source.Path,
		"source_url", fetch.RedactURL(conf.Source.URL),
		"holidays_csv", conf.Holidays.CSVPath != "" || conf.Holidays.CSVURL != "",
		"once", flags.once,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, conf, flags); err != nil {
		appLog.Error("schedview failed", err)
		appLog.Sync()
		os.Exit(1)
	}
	appLog.Info("schedview exiting")
}

func run(ctx context.Context, conf *config.Config, flags flagConfig) error {
	loc := conf.Location()
	fetcher := fetch.New(conf.CacheDir, nil)
	chain := holiday.NewChain(nil)
	sessions := session.NewManager(conf.SessionTTL())

	srv := web.NewServer(web.Options{
		Config:      conf,
		Assembler:   calendar.NewAssembler(chain, conf.FirstWeekday()),
		Sessions:    sessions,
		PreviewPath: filepath.Join(conf.CacheDir, "preview.png"),
	})

	hasSource := conf.Source.Path != "" || conf.Source.URL != ""
	hasHolidays := conf.Holidays.CSVPath != "" || conf.Holidays.CSVURL != ""

	if flags.once {
		if !hasSource {
			return errors.New("-once needs a source: set -csv or source.path/source.url")
		}
		if hasHolidays {
			if err := refresh.HolidayJob(conf.Holidays, fetcher, chain).Run(ctx); err != nil {
				appLog.Error("holiday table unavailable, using bundled holidays", err)
			}
		}
		if err := refresh.DatasetJob(conf.Source, fetcher, loc, srv.SetDefault).Run(ctx); err != nil {
			return err
		}
		return renderOnce(ctx, srv, conf, flags)
	}

	sched := refresh.New(loc)
	if hasHolidays {
		if err := sched.Add(refresh.HolidayJob(conf.Holidays, fetcher, chain)); err != nil {
			return err
		}
	}
	if hasSource {
		if err := sched.Add(refresh.DatasetJob(conf.Source, fetcher, loc, srv.SetDefault)); err != nil {
			return err
		}
		if err := sched.Add(previewJob(srv, conf, flags.owner)); err != nil {
			return err
		}
	}
	if err := sched.Add(refresh.Job{
		Name: "sessions",
		Spec: "@every 10m",
		Run: func(context.Context) error {
			sessions.Sweep()
			return nil
		},
	}); err != nil {
		return err
	}
	if err := sched.Start(ctx); err != nil {
		return err
	}

	return srv.ListenAndServe(ctx)
}

// renderOnce writes the calendar of the default dataset to flags.out and,
// when asked, screenshots it to flags.png.
func renderOnce(ctx context.Context, srv *web.Server, conf *config.Config, flags flagConfig) error {
	if err := writePage(ctx, srv, flags.out, flags.owner); err != nil {
		return err
	}
	appLog.Info("calendar written", "path", flags.out)

	if flags.png == "" {
		return nil
	}
	return captureFile(ctx, conf, flags.out, flags.png)
}

// previewJob keeps /preview.png in step with the default dataset.
func previewJob(srv *web.Server, conf *config.Config, owner string) refresh.Job {
	page := filepath.Join(conf.CacheDir, "calendar.html")
	png := filepath.Join(conf.CacheDir, "preview.png")
	return refresh.Job{
		Name: "preview",
		Spec: conf.Source.RefreshCron,
		Run: func(ctx context.Context) error {
			if err := writePage(ctx, srv, page, owner); err != nil {
				return err
			}
			return captureFile(ctx, conf, page, png)
		},
	}
}

func writePage(ctx context.Context, srv *web.Server, path, owner string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := srv.Render(ctx, f, owner); err != nil {
		f.Close()
		return fmt.Errorf("render %s: %w", path, err)
	}
	return f.Close()
}

func captureFile(ctx context.Context, conf *config.Config, page, png string) error {
	u, err := capture.FileURL(page)
	if err != nil {
		return err
	}
	return capture.CalendarPNG(ctx, capture.Options{
		URL:        u,
		OutputPath: png,
		Width:      conf.Capture.Width,
		Height:     conf.Capture.Height,
		Timeout:    conf.CaptureTimeout(),
	})
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.StringVar(&cfg.csvPath, "csv", "", "Schedule CSV/ICS file (overrides source in config)")
	flag.BoolVar(&cfg.once, "once", false, "Render the calendar once and exit")
	flag.StringVar(&cfg.out, "out", "calendar.html", "HTML output path for -once")
	flag.StringVar(&cfg.png, "png", "", "Also capture a PNG screenshot to this path (-once)")
	flag.StringVar(&cfg.owner, "owner", "", "Owner to render (default: first owner)")

	flag.Parse()

	return cfg
}
