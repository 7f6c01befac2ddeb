// Package config provides application configuration loaded from config files
// and environment variables via Viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values. The URLs point at the production campus
// site; everything else mirrors the behavior of the hosted scraper.
const (
	DefaultBaseURL     = "https://www.bubt.edu.bd"
	DefaultCalendarURL = "https://www.bubt.edu.bd/Home/page_details/Academic_Calender"
	DefaultNoticeURL   = "https://www.bubt.edu.bd/Home/all_notice"
	DefaultRoutineURL  = "https://www.bubt.edu.bd/home/routines"

	defaultDataDir        = "data"
	defaultDBFile         = "data.db"
	defaultRequestTimeout = 180 * time.Second
	defaultMaxRetries     = 3
	defaultBackoffInitial = 300 * time.Millisecond
	defaultUserAgent      = "campuscnr/1.0"

	defaultCalendarDelay   = 700 * time.Millisecond
	defaultNoticeDelay     = 600 * time.Millisecond
	defaultNoticeFileDelay = 300 * time.Millisecond
	defaultExamDelay       = 800 * time.Millisecond
	defaultCooldown        = 2 * time.Second

	defaultSchedule = "@every 6h"
)

// Directory names under the data dir, one per pipeline.
const (
	CalendarDirName = "calendars"
	NoticeDirName   = "notices"
	ExamDirName     = "exam"
	SuppExamDirName = "supp_exam"
)

// URLs holds the scrape target endpoints.
type URLs struct {
	// Base is the origin used to absolutize scheme-relative links.
	Base string `mapstructure:"base"`
	// Calendar is the academic calendar page.
	Calendar string `mapstructure:"calendar"`
	// Notice is the all-notices listing page.
	Notice string `mapstructure:"notice"`
	// Routine is the exam routines page.
	Routine string `mapstructure:"routine"`
	// NoticeAPI is an optional structured notice feed endpoint.
	// When empty, only the HTML listing is consulted.
	NoticeAPI string `mapstructure:"notice_api"`
}

// Storage holds filesystem and ledger settings.
type Storage struct {
	// DataDir is the root directory for downloaded artifacts.
	DataDir string `mapstructure:"data_dir"`
	// DBFile is the SQLite ledger file name, relative to DataDir.
	DBFile string `mapstructure:"db_file"`
}

// HTTP holds fetch client settings.
type HTTP struct {
	// Timeout is the overall per-request timeout.
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxRetries is the retry budget for transient failures.
	MaxRetries int `mapstructure:"max_retries"`
	// BackoffInitial is the initial retry backoff delay.
	BackoffInitial time.Duration `mapstructure:"backoff_initial"`
	// UserAgent is sent on every request.
	UserAgent string `mapstructure:"user_agent"`
}

// Delays holds the fixed inter-request courtesy delays. Fetching is
// strictly sequential; these throttle successive items, they are not
// concurrency controls.
type Delays struct {
	Calendar   time.Duration `mapstructure:"calendar"`
	Notice     time.Duration `mapstructure:"notice"`
	NoticeFile time.Duration `mapstructure:"notice_file"`
	Exam       time.Duration `mapstructure:"exam"`
	// Cooldown separates successive pipelines in one invocation.
	Cooldown time.Duration `mapstructure:"cooldown"`
}

// Logging holds logger settings.
type Logging struct {
	Level       string `mapstructure:"level"`
	Encoding    string `mapstructure:"encoding"`
	Development bool   `mapstructure:"development"`
}

// Config is the root application configuration.
type Config struct {
	URLs     URLs    `mapstructure:"urls"`
	Storage  Storage `mapstructure:"storage"`
	HTTP     HTTP    `mapstructure:"http"`
	Delays   Delays  `mapstructure:"delays"`
	Logging  Logging `mapstructure:"logging"`
	Schedule string  `mapstructure:"schedule"`
}

// SetDefaults registers all default values on the given Viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("urls.base", DefaultBaseURL)
	v.SetDefault("urls.calendar", DefaultCalendarURL)
	v.SetDefault("urls.notice", DefaultNoticeURL)
	v.SetDefault("urls.routine", DefaultRoutineURL)
	v.SetDefault("urls.notice_api", "")

	v.SetDefault("storage.data_dir", defaultDataDir)
	v.SetDefault("storage.db_file", defaultDBFile)

	v.SetDefault("http.timeout", defaultRequestTimeout)
	v.SetDefault("http.max_retries", defaultMaxRetries)
	v.SetDefault("http.backoff_initial", defaultBackoffInitial)
	v.SetDefault("http.user_agent", defaultUserAgent)

	v.SetDefault("delays.calendar", defaultCalendarDelay)
	v.SetDefault("delays.notice", defaultNoticeDelay)
	v.SetDefault("delays.notice_file", defaultNoticeFileDelay)
	v.SetDefault("delays.exam", defaultExamDelay)
	v.SetDefault("delays.cooldown", defaultCooldown)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.encoding", "console")
	v.SetDefault("logging.development", false)

	v.SetDefault("schedule", defaultSchedule)
}

// Load unmarshals the configuration from the given Viper instance and
// validates it.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.URLs.Base == "" {
		return errors.New("base URL must be specified")
	}
	if c.URLs.Calendar == "" {
		return errors.New("calendar URL must be specified")
	}
	if c.URLs.Notice == "" {
		return errors.New("notice URL must be specified")
	}
	if c.URLs.Routine == "" {
		return errors.New("routine URL must be specified")
	}
	if c.Storage.DataDir == "" {
		return errors.New("data dir must be specified")
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("max retries must not be negative: %d", c.HTTP.MaxRetries)
	}
	return nil
}

// DBPath returns the full path of the SQLite ledger file.
func (c *Config) DBPath() string {
	return filepath.Join(c.Storage.DataDir, c.Storage.DBFile)
}

// CalendarDir returns the calendar download directory.
func (c *Config) CalendarDir() string {
	return filepath.Join(c.Storage.DataDir, CalendarDirName)
}

// NoticeDir returns the notice attachment download directory.
func (c *Config) NoticeDir() string {
	return filepath.Join(c.Storage.DataDir, NoticeDirName)
}

// ExamDir returns the term exam routine download directory.
func (c *Config) ExamDir() string {
	return filepath.Join(c.Storage.DataDir, ExamDirName)
}

// SuppExamDir returns the supplementary exam routine download directory.
func (c *Config) SuppExamDir() string {
	return filepath.Join(c.Storage.DataDir, SuppExamDirName)
}

// EnsureDirs creates all download directories. Safe to call on every start.
func (c *Config) EnsureDirs() error {
	dirs := []string{
		c.Storage.DataDir,
		c.CalendarDir(),
		c.NoticeDir(),
		filepath.Join(c.ExamDir(), "day"),
		filepath.Join(c.ExamDir(), "evn"),
		filepath.Join(c.SuppExamDir(), "day"),
		filepath.Join(c.SuppExamDir(), "evn"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
