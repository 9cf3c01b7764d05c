package logx

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultBufferSize is the ring capacity used when Config.BufferSize is 0.
const DefaultBufferSize = 500

// Entry is one captured log line.
type Entry struct {
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"`
	Message string         `json:"message"`
	Comp    string         `json:"comp,omitempty"`
	Caller  string         `json:"caller,omitempty"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// Query filters Recent. Zero values match everything.
type Query struct {
	MinLevel string // lowest level to include (debug, info, warn, error)
	Comp     string
	Contains string // case-insensitive match on the message
	Limit    int
}

// Buffer keeps the newest log entries in memory. It is an io.Writer for
// zerolog JSON lines.
type Buffer struct {
	mu      sync.RWMutex
	entries []Entry
	head    int
	count   int
}

func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultBufferSize
	}
	return &Buffer{entries: make([]Entry, capacity)}
}

func (b *Buffer) Cap() int { return len(b.entries) }

// Write parses one JSON line. Lines that do not decode are kept as the raw
// message so nothing is silently lost.
func (b *Buffer) Write(p []byte) (int, error) {
	var m map[string]any
	e := Entry{}
	if err := json.Unmarshal(p, &m); err != nil {
		e.Time = time.Now()
		e.Level = zerolog.NoLevel.String()
		e.Message = strings.TrimSpace(string(p))
	} else {
		e = entryFrom(m)
	}

	b.mu.Lock()
	b.entries[b.head] = e
	b.head = (b.head + 1) % len(b.entries)
	if b.count < len(b.entries) {
		b.count++
	}
	b.mu.Unlock()
	return len(p), nil
}

func entryFrom(m map[string]any) Entry {
	take := func(k string) string {
		v, _ := m[k].(string)
		delete(m, k)
		return v
	}
	e := Entry{
		Level:   take(zerolog.LevelFieldName),
		Message: take(zerolog.MessageFieldName),
		Comp:    take("comp"),
		Caller:  take(zerolog.CallerFieldName),
	}
	if ts := take(zerolog.TimestampFieldName); ts != "" {
		e.Time = parseTime(ts)
	}
	if len(m) > 0 {
		e.Fields = m
	}
	return e
}

// parseTime accepts the layout zerolog is configured with and the common
// RFC 3339 forms written by loggers that were set up elsewhere.
func parseTime(ts string) time.Time {
	for _, layout := range []string{consoleTimeFormat, zerolog.TimeFieldFormat, time.RFC3339Nano, time.RFC3339} {
		if layout == "" {
			continue
		}
		if t, err := time.Parse(layout, ts); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Recent returns matching entries, newest first.
func (b *Buffer) Recent(q Query) []Entry {
	floor := zerolog.TraceLevel
	if strings.TrimSpace(q.MinLevel) != "" {
		floor = parseLevel(q.MinLevel, zerolog.TraceLevel)
	}
	needle := strings.ToLower(strings.TrimSpace(q.Contains))

	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []Entry
	for i := 0; i < b.count; i++ {
		idx := (b.head - 1 - i + len(b.entries)) % len(b.entries)
		e := b.entries[idx]
		if lvl, err := zerolog.ParseLevel(e.Level); err == nil && lvl != zerolog.NoLevel && lvl < floor {
			continue
		}
		if q.Comp != "" && e.Comp != q.Comp {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(e.Message), needle) {
			continue
		}
		out = append(out, e)
		if q.Limit > 0 && len(out) >= q.Limit {
			break
		}
	}
	return out
}
