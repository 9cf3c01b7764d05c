package store

import (
	"errors"
	"time"
)

var ErrClosed = errors.New("store closed")

// DefaultPath is used by the file driver when no path is configured.
const DefaultPath = "./data/eduadmin.json"

// Config configures storage.
//
// Driver values:
//   - "file": JSON snapshot + jsonl audit (default)
//   - "sqlite": SQLite database file
//   - "memory": nothing survives the process
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// AuditEntry records an operator action.
// Keep it compact and schema-stable.
type AuditEntry struct {
	At     time.Time `json:"at"`
	Action string    `json:"action"`
	Target string    `json:"target,omitempty"`
	OK     bool      `json:"ok"`
	Error  string    `json:"error,omitempty"`
	TookMS int64     `json:"took_ms"`
}
