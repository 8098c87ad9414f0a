package translator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MaxLogEntries bounds the event log
const MaxLogEntries = 20

type LogLevel string

const (
	LogInfo  LogLevel = "INFO"
	LogWarn  LogLevel = "WARN"
	LogError LogLevel = "ERROR"
)

// LogEntry is a user-facing diagnostic event
type LogEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Level     LogLevel  `json:"level"`
	Message   string    `json:"message"`
	Detail    string    `json:"detail,omitempty"`
	Remedy    string    `json:"remedy,omitempty"`
}

// NewLogEntry stamps an entry with a fresh id
func NewLogEntry(at time.Time, level LogLevel, message, detail, remedy string) LogEntry {
	return LogEntry{
		ID:        uuid.NewString(),
		Timestamp: at,
		Level:     level,
		Message:   message,
		Detail:    detail,
		Remedy:    remedy,
	}
}

// LogSink keeps the newest MaxLogEntries entries, newest first
type LogSink interface {
	Append(ctx context.Context, entry LogEntry) error
	Entries(ctx context.Context) ([]LogEntry, error)
	Clear(ctx context.Context) error
}

type MemoryLogSink struct {
	mu      sync.Mutex
	entries []LogEntry
}

func NewMemoryLogSink() *MemoryLogSink {
	return &MemoryLogSink{}
}

func (s *MemoryLogSink) Append(_ context.Context, entry LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append([]LogEntry{entry}, s.entries...)
	if len(s.entries) > MaxLogEntries {
		s.entries = s.entries[:MaxLogEntries]
	}
	return nil
}

func (s *MemoryLogSink) Entries(_ context.Context) ([]LogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]LogEntry(nil), s.entries...), nil
}

func (s *MemoryLogSink) Clear(_ context.Context) error {
	s.mu.Lock()
	s.entries = nil
	s.mu.Unlock()
	return nil
}
