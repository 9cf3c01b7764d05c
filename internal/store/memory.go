package store

import (
	"context"
	"sync"

	"eduadmin/internal/model"
)

// Memory keeps the document and audit entries in process.
type Memory struct {
	mu     sync.Mutex
	data   *model.Data
	audit  []AuditEntry
	closed bool

	// FailSave, when set, is returned by Save. Tests use it to simulate a
	// failing backend.
	FailSave error
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Load(ctx context.Context) (*model.Data, bool, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, false, ErrClosed
	}
	if m.data == nil {
		return nil, false, nil
	}
	return m.data.Clone(), true, nil
}

func (m *Memory) Save(ctx context.Context, data *model.Data) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if m.FailSave != nil {
		return m.FailSave
	}
	m.data = data.Clone()
	return nil
}

func (m *Memory) AppendAudit(ctx context.Context, e AuditEntry) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.audit = append(m.audit, e)
	return nil
}

func (m *Memory) RecentAudit(ctx context.Context, limit int) ([]AuditEntry, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	return newestFirst(m.audit, limit), nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
