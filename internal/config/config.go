package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	appLog "schedview/internal/log"
)

// EnvPrefix prefixes every environment override (SCHEDVIEW_LISTEN, ...).
const EnvPrefix = "SCHEDVIEW_"

// SourceConfig describes where the default dataset comes from. Either Path or
// URL may be set; URL wins when both are.
type SourceConfig struct {
	Path string `yaml:"path" json:"path"`
	URL  string `yaml:"url" json:"url"`

	// Encoding is "auto", "utf-8" or "shift_jis".
	Encoding string `yaml:"encoding" json:"encoding"`

	// Owner names events from ICS sources that carry no ORGANIZER.
	Owner string `yaml:"owner" json:"owner"`

	// RefreshCron reloads the source on this schedule. Empty disables reloads
	// after the initial load.
	RefreshCron string `yaml:"refresh" json:"refresh"`
}

// HolidaysConfig points at an optional Cabinet Office holiday table. Without
// one, the bundled holiday_jp dataset is used.
type HolidaysConfig struct {
	CSVPath string `yaml:"csv_path" json:"csv_path"`
	// CSVURL is usually the Cabinet Office list,
	// https://www8.cao.go.jp/chosei/shukujitsu/syukujitsu.csv (Shift_JIS).
	CSVURL      string `yaml:"csv_url" json:"csv_url"`
	RefreshCron string `yaml:"refresh" json:"refresh"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the Web UI/API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// CaptureConfig sizes the headless browser used for PNG previews.
type CaptureConfig struct {
	Width          int `yaml:"width" json:"width"`
	Height         int `yaml:"height" json:"height"`
	TimeoutSeconds int `yaml:"timeout_seconds" json:"timeout_seconds"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the Web UI and API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone decides what "today" is. Event timestamps are never converted.
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStart is "monday" (default) or "sunday".
	WeekStart string `yaml:"week_start" json:"week_start"`

	// Env is "production" or "development"; it selects the log encoder.
	Env      string `yaml:"env" json:"env"`
	LogLevel string `yaml:"log_level" json:"log_level"`

	Source   SourceConfig   `yaml:"source" json:"source"`
	Holidays HolidaysConfig `yaml:"holidays" json:"holidays"`

	SessionTTLMinutes int `yaml:"session_ttl_minutes" json:"session_ttl_minutes"`
	UploadMaxMB       int `yaml:"upload_max_mb" json:"upload_max_mb"`

	// CacheDir holds conditional-request caches for remote sources.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	Capture CaptureConfig `yaml:"capture" json:"capture"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:    "127.0.0.1:8080",
		Timezone:  "Asia/Tokyo",
		WeekStart: "monday",
		Env:       "development",
		LogLevel:  "info",
		Source: SourceConfig{
			Encoding:    "auto",
			RefreshCron: "*/15 * * * *",
		},
		Holidays: HolidaysConfig{
			RefreshCron: "0 3 * * *",
		},
		SessionTTLMinutes: 720,
		UploadMaxMB:       10,
		CacheDir:          "cache",
		Capture: CaptureConfig{
			Width:          1200,
			Height:         1600,
			TimeoutSeconds: 30,
		},
	}
}

// Normalize fills in missing/zero values with defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	d := DefaultConfig()

	if c.Listen == "" {
		c.Listen = d.Listen
	}
	if c.Timezone == "" {
		c.Timezone = d.Timezone
	}
	c.WeekStart = strings.ToLower(strings.TrimSpace(c.WeekStart))
	switch c.WeekStart {
	case "monday", "sunday":
	default:
		c.WeekStart = d.WeekStart
	}
	if c.Env != "production" {
		c.Env = d.Env
	}
	c.LogLevel = strings.ToLower(string(appLog.ParseLevel(strings.ToLower(c.LogLevel))))

	c.Source.Encoding = strings.ToLower(strings.TrimSpace(c.Source.Encoding))
	switch c.Source.Encoding {
	case "auto", "utf-8", "shift_jis":
	case "utf8":
		c.Source.Encoding = "utf-8"
	case "sjis", "shift-jis", "cp932":
		c.Source.Encoding = "shift_jis"
	default:
		c.Source.Encoding = d.Source.Encoding
	}

	if c.SessionTTLMinutes <= 0 {
		c.SessionTTLMinutes = d.SessionTTLMinutes
	}
	if c.UploadMaxMB <= 0 {
		c.UploadMaxMB = d.UploadMaxMB
	}
	if c.CacheDir == "" {
		c.CacheDir = d.CacheDir
	}
	if c.Capture.Width <= 0 {
		c.Capture.Width = d.Capture.Width
	}
	if c.Capture.Height <= 0 {
		c.Capture.Height = d.Capture.Height
	}
	if c.Capture.TimeoutSeconds <= 0 {
		c.Capture.TimeoutSeconds = d.Capture.TimeoutSeconds
	}
	if c.BasicAuth != nil && c.BasicAuth.Username == "" && c.BasicAuth.Password == "" {
		c.BasicAuth = nil
	}
}

// Location resolves Timezone, falling back to UTC for unknown names.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		appLog.Error("unknown timezone, using UTC", err, "timezone", c.Timezone)
		return time.UTC
	}
	return loc
}

// FirstWeekday maps WeekStart to a time.Weekday.
func (c *Config) FirstWeekday() time.Weekday {
	if c.WeekStart == "sunday" {
		return time.Sunday
	}
	return time.Monday
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

func (c *Config) UploadMaxBytes() int64 {
	return int64(c.UploadMaxMB) << 20
}

func (c *Config) CaptureTimeout() time.Duration {
	return time.Duration(c.Capture.TimeoutSeconds) * time.Second
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - a ".env" file next to the working directory is loaded into the process
//     environment when present
//   - if the YAML file does not exist, a default config is written with 0600
//     perms
//   - SCHEDVIEW_* environment variables override file values
//   - defaults are normalized last
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	if err := godotenv.Load(".env"); err == nil {
		appLog.Info("loaded environment from .env")
	}

	cfg, err := readFile(path)
	if err != nil {
		return cfg, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.Normalize()
	return cfg, nil
}

func readFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			appLog.Info("wrote default config", "path", path)
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}

// ApplyEnv overrides fields from SCHEDVIEW_* variables read through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(EnvPrefix + key)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*dst = n
		return nil
	}

	str("LISTEN", &c.Listen)
	str("TIMEZONE", &c.Timezone)
	str("WEEK_START", &c.WeekStart)
	str("ENV", &c.Env)
	str("LOG_LEVEL", &c.LogLevel)
	str("SOURCE_PATH", &c.Source.Path)
	str("SOURCE_URL", &c.Source.URL)
	str("SOURCE_ENCODING", &c.Source.Encoding)
	str("SOURCE_OWNER", &c.Source.Owner)
	str("SOURCE_REFRESH", &c.Source.RefreshCron)
	str("HOLIDAYS_CSV_PATH", &c.Holidays.CSVPath)
	str("HOLIDAYS_CSV_URL", &c.Holidays.CSVURL)
	str("CACHE_DIR", &c.CacheDir)

	if err := num("SESSION_TTL_MINUTES", &c.SessionTTLMinutes); err != nil {
		return err
	}
	if err := num("UPLOAD_MAX_MB", &c.UploadMaxMB); err != nil {
		return err
	}

	user, hasUser := lookup(EnvPrefix + "BASIC_AUTH_USERNAME")
	pass, hasPass := lookup(EnvPrefix + "BASIC_AUTH_PASSWORD")
	if hasUser || hasPass {
		if c.BasicAuth == nil {
			c.BasicAuth = &BasicAuthConfig{}
		}
		if hasUser {
			c.BasicAuth.Username = user
		}
		if hasPass {
			c.BasicAuth.Password = pass
		}
	}
	return nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".schedview-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
