// Package audit implements the Audit Log: an append-only event stream
// with a bounded in-memory ring buffer and a date-partitioned JSONL file
// sink, plus query and stats helpers.
package audit

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Pit-CL/mcp-multilang-sandbox/internal/langtype"
)

// Severity is the inferred or explicit level of an audit event.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarn     Severity = "WARN"
	SeverityError    Severity = "ERROR"
	SeverityCritical Severity = "CRITICAL"
)

// EventType names a specific occurrence in the system.
type EventType string

const (
	EventExecuteStart      EventType = "EXECUTE_START"
	EventExecuteEnd        EventType = "EXECUTE_END"
	EventExecuteBlocked    EventType = "EXECUTE_BLOCKED"
	EventInstallStart      EventType = "INSTALL_START"
	EventInstallEnd        EventType = "INSTALL_END"
	EventInstallBlocked    EventType = "INSTALL_BLOCKED"
	EventSecurityViolation EventType = "SECURITY_VIOLATION"
	EventSessionCreated    EventType = "SESSION_CREATED"
	EventSessionExpired    EventType = "SESSION_EXPIRED"
	EventSessionDestroyed  EventType = "SESSION_DESTROYED"
	EventContainerEvicted  EventType = "CONTAINER_EVICTED"
)

// Event is an immutable audit record.
type Event struct {
	Timestamp   time.Time         `json:"timestamp"`
	ID          string            `json:"id"`
	Type        EventType         `json:"type"`
	Severity    Severity          `json:"severity"`
	Language    langtype.Language `json:"language,omitempty"`
	SessionID   string            `json:"sessionId,omitempty"`
	ContainerID string            `json:"containerId,omitempty"`
	Details     map[string]any    `json:"details,omitempty"`
	DurationMs  *float64          `json:"durationMs,omitempty"`
	Success     bool              `json:"success"`
	Error       string            `json:"error,omitempty"`
}

// defaultSeverity infers severity from event type when the caller
// doesn't override it.
func defaultSeverity(t EventType) Severity {
	switch t {
	case EventSecurityViolation:
		return SeverityCritical
	case EventExecuteBlocked, EventInstallBlocked:
		return SeverityWarn
	case EventExecuteEnd, EventInstallEnd:
		return SeverityInfo
	default:
		return SeverityInfo
	}
}

// Filter narrows a query over the ring buffer.
type Filter struct {
	Type     EventType
	Severity Severity
	Language langtype.Language
}

func (f Filter) matches(e Event) bool {
	if f.Type != "" && e.Type != f.Type {
		return false
	}
	if f.Severity != "" && e.Severity != f.Severity {
		return false
	}
	if f.Language != "" && e.Language != f.Language {
		return false
	}
	return true
}

// Stats summarizes the ring buffer's contents.
type Stats struct {
	CountByType     map[EventType]int
	CountBySeverity map[Severity]int
	Violations      int
	BlockedExecs    int
	AvgExecuteMs    float64
	RateLastHour    int
}

// Log owns the bounded ring buffer and the date-partitioned JSONL sink.
type Log struct {
	mu       sync.Mutex
	ring     []Event
	cap      int
	head     int
	size     int
	dir      string
	fileMu   sync.Mutex
	curDate  string
	curFile  io.WriteCloser
}

// Option configures a Log at construction time.
type Option func(*Log)

// WithCapacity overrides the default ring buffer size of 1,000.
func WithCapacity(n int) Option {
	return func(l *Log) { l.cap = n }
}

// WithFileDir sets the directory audit log files are partitioned into
// by date. If unset, file persistence is disabled.
func WithFileDir(dir string) Option {
	return func(l *Log) { l.dir = dir }
}

// New builds a Log.
func New(opts ...Option) *Log {
	l := &Log{cap: 1000}
	for _, opt := range opts {
		opt(l)
	}
	l.ring = make([]Event, l.cap)
	return l
}

// Record appends an event with a generated id and timestamp, inferring
// severity when unset, to the ring buffer and the file sink.
func (l *Log) Record(e Event) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if e.Severity == "" {
		e.Severity = defaultSeverity(e.Type)
	}

	l.mu.Lock()
	l.ring[l.head] = e
	l.head = (l.head + 1) % l.cap
	if l.size < l.cap {
		l.size++
	}
	l.mu.Unlock()

	if l.dir != "" {
		if err := l.appendToFile(e); err != nil {
			fmt.Fprintf(os.Stderr, "audit: write file sink: %v\n", err)
		}
	}
}

// Recent returns up to n most recent events matching filter, newest
// first.
func (l *Log) Recent(n int, filter Filter) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Event, 0, n)
	for i := 0; i < l.size && len(out) < n; i++ {
		idx := (l.head - 1 - i + l.cap) % l.cap
		e := l.ring[idx]
		if filter.matches(e) {
			out = append(out, e)
		}
	}
	return out
}

// SecurityEvents returns the most recent n security-relevant events
// (violations and blocked execute/install attempts).
func (l *Log) SecurityEvents(n int) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Event, 0, n)
	for i := 0; i < l.size && len(out) < n; i++ {
		idx := (l.head - 1 - i + l.cap) % l.cap
		e := l.ring[idx]
		if isSecurityRelevant(e.Type) {
			out = append(out, e)
		}
	}
	return out
}

func isSecurityRelevant(t EventType) bool {
	switch t {
	case EventSecurityViolation, EventExecuteBlocked, EventInstallBlocked:
		return true
	default:
		return false
	}
}

// ComputeStats scans the current ring buffer contents.
func (l *Log) ComputeStats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	stats := Stats{
		CountByType:     map[EventType]int{},
		CountBySeverity: map[Severity]int{},
	}

	var totalExecuteMs float64
	var executeCount int
	now := time.Now()

	for i := 0; i < l.size; i++ {
		idx := (l.head - 1 - i + l.cap) % l.cap
		e := l.ring[idx]

		stats.CountByType[e.Type]++
		stats.CountBySeverity[e.Severity]++

		if e.Type == EventSecurityViolation {
			stats.Violations++
		}
		if e.Type == EventExecuteBlocked || e.Type == EventInstallBlocked {
			stats.BlockedExecs++
		}
		if e.Type == EventExecuteEnd && e.DurationMs != nil {
			totalExecuteMs += *e.DurationMs
			executeCount++
		}
		if now.Sub(e.Timestamp) <= time.Hour {
			stats.RateLastHour++
		}
	}

	if executeCount > 0 {
		stats.AvgExecuteMs = totalExecuteMs / float64(executeCount)
	}
	return stats
}

func (l *Log) appendToFile(e Event) error {
	l.fileMu.Lock()
	defer l.fileMu.Unlock()

	date := e.Timestamp.Format("2006-01-02")
	if date != l.curDate {
		if l.curFile != nil {
			l.curFile.Close()
		}
		if err := os.MkdirAll(l.dir, 0755); err != nil {
			return fmt.Errorf("create audit log dir: %w", err)
		}
		path := filepath.Join(l.dir, fmt.Sprintf("audit-%s.jsonl", date))
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("open audit log file: %w", err)
		}
		l.curFile = f
		l.curDate = date
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	data = append(data, '\n')
	_, err = l.curFile.Write(data)
	return err
}

// Close closes the current file sink, if any.
func (l *Log) Close() error {
	l.fileMu.Lock()
	defer l.fileMu.Unlock()
	if l.curFile != nil {
		return l.curFile.Close()
	}
	return nil
}
