package store

import (
	"context"
	"errors"
	"strings"

	"eduadmin/internal/model"
	logx "eduadmin/pkg/logx"
)

// Store is the persistence API used by the registry.
type Store interface {
	// Load returns the saved document, or ok=false when nothing was saved yet.
	Load(ctx context.Context) (data *model.Data, ok bool, err error)
	Save(ctx context.Context, data *model.Data) error
	AppendAudit(ctx context.Context, e AuditEntry) error
	Close() error
}

// AuditReader is implemented by stores that can list recorded audit entries.
type AuditReader interface {
	// RecentAudit returns up to limit entries, newest first.
	RecentAudit(ctx context.Context, limit int) ([]AuditEntry, error)
}

// Open initializes the configured store.
// An empty driver selects the file driver.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "", "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	case "memory", "mem":
		return NewMemory(), nil
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
