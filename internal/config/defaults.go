package config

import (
	"fmt"
	"strings"
	"time"

	"eduadmin/internal/schedule"
)

const (
	DefaultLessons    = 15
	DefaultRule       = "上6天休1天"
	DefaultOpsAddr    = "127.0.0.1:6061"
	DefaultBackupDir  = "./data/backups"
	DefaultBackupKeep = 14
)

// Default returns the configuration used when no config file exists.
func Default() *Config {
	cfg := &Config{
		Logging: LoggingConfig{Level: "info", Console: true},
		Storage: StorageConfig{Driver: "file", Path: "./data/eduadmin.json"},
	}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills omitted values in place.
func (c *Config) ApplyDefaults() {
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = "info"
	}
	if strings.TrimSpace(c.Storage.Driver) == "" {
		c.Storage.Driver = "file"
	}
	if c.Calendar.DefaultLessons <= 0 {
		c.Calendar.DefaultLessons = DefaultLessons
	}
	if strings.TrimSpace(c.Calendar.DefaultRule) == "" {
		c.Calendar.DefaultRule = DefaultRule
	}
	if strings.TrimSpace(c.Jobs.Digest.Schedule) == "" {
		c.Jobs.Digest.Schedule = "0 7 * * *"
	}
	if strings.TrimSpace(c.Jobs.Backup.Schedule) == "" {
		c.Jobs.Backup.Schedule = "@daily"
	}
	if strings.TrimSpace(c.Jobs.Backup.Dir) == "" {
		c.Jobs.Backup.Dir = DefaultBackupDir
	}
	if c.Jobs.Backup.Keep <= 0 {
		c.Jobs.Backup.Keep = DefaultBackupKeep
	}
	if strings.TrimSpace(c.Ops.Addr) == "" {
		c.Ops.Addr = DefaultOpsAddr
	}
}

// Validate rejects values that would fail later at runtime. It is also the
// hot-reload validator: a reload that fails here is never published.
func (c *Config) Validate() error {
	if c.Logging.BufferSize < 0 {
		return fmt.Errorf("logging.buffer_size must be >= 0")
	}
	switch strings.ToLower(strings.TrimSpace(c.Storage.Driver)) {
	case "", "file", "memory", "mem":
	case "sqlite", "sqlite3":
		if strings.TrimSpace(c.Storage.Path) == "" {
			return fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
	default:
		return fmt.Errorf("unknown storage.driver: %s", c.Storage.Driver)
	}
	if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
		return err
	}

	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Calendar.DefaultLessons < 0 || c.Calendar.DefaultLessons > schedule.MaxLessons {
		return fmt.Errorf("calendar.default_lessons must be between 1 and %d", schedule.MaxLessons)
	}
	if r := strings.TrimSpace(c.Calendar.DefaultRule); r != "" {
		if _, err := schedule.ParseRule(r); err != nil {
			return fmt.Errorf("calendar.default_rule: %w", err)
		}
	}

	if tz := strings.TrimSpace(c.Jobs.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("jobs.timezone: invalid %q: %w", tz, err)
		}
	}
	if _, err := ParseDurationField("jobs.timeout", c.Jobs.Timeout); err != nil {
		return err
	}
	if c.Jobs.Backup.Keep < 0 {
		return fmt.Errorf("jobs.backup.keep must be >= 0")
	}

	if _, err := ParseDurationField("ops.read_timeout", c.Ops.ReadTimeout); err != nil {
		return err
	}
	if _, err := ParseDurationField("ops.idle_timeout", c.Ops.IdleTimeout); err != nil {
		return err
	}
	if c.Ops.RatePerSec < 0 {
		return fmt.Errorf("ops.rate_per_sec must be >= 0")
	}
	return nil
}

// Location is the zone used to decide the current calendar date.
func (c *Config) Location() (*time.Location, error) {
	tz := strings.TrimSpace(c.Calendar.Timezone)
	if tz == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("calendar.timezone: invalid %q: %w", tz, err)
	}
	return loc, nil
}
