package config

// Config is the on-disk configuration (JSON or YAML).
//
// Every section is optional; Default() fills what is omitted.
type Config struct {
	Logging  LoggingConfig  `json:"logging"`
	Storage  StorageConfig  `json:"storage"`
	Calendar CalendarConfig `json:"calendar"`
	Jobs     JobsConfig     `json:"jobs"`
	Ops      OpsConfig      `json:"ops"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
	// BufferSize is how many recent entries "serve" keeps for /debug/logs.
	BufferSize int `json:"buffer_size,omitempty"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig selects the document store.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./data/eduadmin.db", "busy_timeout": "2s" }
type StorageConfig struct {
	Driver      string `json:"driver"` // file (default), sqlite, memory
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// CalendarConfig holds course defaults.
type CalendarConfig struct {
	// Timezone decides what "today" is. Empty means the local zone.
	Timezone string `json:"timezone,omitempty"`
	// DefaultLessons is used when a course is created without a lesson count.
	DefaultLessons int `json:"default_lessons,omitempty"`
	// DefaultRule is the work/rest rule of new winter/summer courses.
	DefaultRule string `json:"default_rule,omitempty"`
}

// JobsConfig controls the periodic jobs run by "serve".
//
// Schedules accept cron expressions ("0 7 * * *", "@daily"), Go durations
// ("6h") or HH:MM intervals, optionally prefixed with "cron:" or "every:".
type JobsConfig struct {
	Enabled  bool   `json:"enabled"`
	Timezone string `json:"timezone,omitempty"`
	// Timeout bounds a single run (Go duration string). "0s" disables it.
	Timeout string       `json:"timeout,omitempty"`
	Digest  DigestConfig `json:"digest"`
	Backup  BackupConfig `json:"backup"`
}

type DigestConfig struct {
	Schedule string `json:"schedule,omitempty"`
}

type BackupConfig struct {
	Schedule string `json:"schedule,omitempty"`
	Dir      string `json:"dir,omitempty"`
	Keep     int    `json:"keep,omitempty"`
}

// OpsConfig controls the operational HTTP endpoint (health, metrics, pprof).
//
// Security note:
//   - Prefer binding to localhost (e.g. "127.0.0.1:6061").
//   - If you bind to a non-loopback address, set a token or explicitly allow_insecure.
type OpsConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"`  // default: "127.0.0.1:6061"
	Token         string `json:"token,omitempty"` // optional bearer token (do not log)
	AllowInsecure bool   `json:"allow_insecure,omitempty"`
	Pprof         bool   `json:"pprof,omitempty"`
	RatePerSec    int    `json:"rate_per_sec,omitempty"` // request cap; 0 disables

	ReadTimeout string `json:"read_timeout,omitempty"`
	IdleTimeout string `json:"idle_timeout,omitempty"`
}
