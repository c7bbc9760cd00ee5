// Package audit writes a structured trail of capture-pipeline decisions:
// what was captured, what was discarded, what got confirmed and persisted.
// Credential values never appear in the trail, only origins, usernames
// being optional per deployment policy.
package audit

import (
	"io"
	"log/slog"
	"os"
	"sync"
	"time"
)

// EventType represents the type of audit event
type EventType string

const (
	EventAttemptCaptured  EventType = "attempt_captured"
	EventAttemptDiscarded EventType = "attempt_discarded"
	EventAttemptExpired   EventType = "attempt_expired"
	EventLoginConfirmed   EventType = "login_confirmed"
	EventRecordUpserted   EventType = "record_upserted"
	EventPersistFailed    EventType = "persist_failed"
	EventNotifyDropped    EventType = "notify_dropped"
	EventCacheRehydrated  EventType = "cache_rehydrated"
)

// Event is one audit record.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	Origin    string    `json:"origin,omitempty"`
	Username  string    `json:"username,omitempty"`
	Trigger   string    `json:"trigger,omitempty"`
	Count     int       `json:"count,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Config holds audit trail configuration
type Config struct {
	// Enabled enables/disables the audit trail
	Enabled bool `yaml:"enabled"`

	// Output specifies where to write: "stdout", "stderr", or a file path
	Output string `yaml:"output"`

	// Format specifies the format: "json" or "text"
	Format string `yaml:"format"`

	// IncludeUsernames includes captured usernames in the trail
	IncludeUsernames bool `yaml:"include_usernames"`
}

// DefaultConfig returns the default audit configuration
func DefaultConfig() *Config {
	return &Config{
		Enabled:          true,
		Output:           "stdout",
		Format:           "json",
		IncludeUsernames: false,
	}
}

// Recorder receives audit events. Satisfied by Logger and NopRecorder.
type Recorder interface {
	Record(event Event)
}

// Logger is the slog-backed Recorder.
type Logger struct {
	mu     sync.RWMutex
	config *Config
	logger *slog.Logger
	output io.Writer
}

// NewLogger creates an audit logger for the given configuration.
func NewLogger(cfg *Config) (*Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	l := &Logger{config: cfg}
	if err := l.setupOutput(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Logger) setupOutput() error {
	var output io.Writer

	switch l.config.Output {
	case "stdout":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	default:
		f, err := os.OpenFile(l.config.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		output = f
	}

	l.output = output

	var handler slog.Handler
	if l.config.Format == "text" {
		handler = slog.NewTextHandler(output, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		handler = slog.NewJSONHandler(output, &slog.HandlerOptions{Level: slog.LevelInfo})
	}

	l.logger = slog.New(handler)
	return nil
}

// Record writes one audit event.
func (l *Logger) Record(event Event) {
	l.mu.RLock()
	config := l.config
	logger := l.logger
	l.mu.RUnlock()

	if !config.Enabled || logger == nil {
		return
	}

	if !config.IncludeUsernames {
		event.Username = ""
	}

	attrs := []any{slog.String("type", string(event.Type))}
	if event.Origin != "" {
		attrs = append(attrs, slog.String("origin", event.Origin))
	}
	if event.Username != "" {
		attrs = append(attrs, slog.String("username", event.Username))
	}
	if event.Trigger != "" {
		attrs = append(attrs, slog.String("trigger", event.Trigger))
	}
	if event.Count > 0 {
		attrs = append(attrs, slog.Int("count", event.Count))
	}
	if event.Error != "" {
		attrs = append(attrs, slog.String("error", event.Error))
	}

	logger.Info("audit", attrs...)
}

// Close closes the logger's output when it owns a file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if closer, ok := l.output.(io.Closer); ok {
		if l.output != os.Stdout && l.output != os.Stderr {
			return closer.Close()
		}
	}
	return nil
}

// NopRecorder discards all events.
type NopRecorder struct{}

// NewNopRecorder creates a no-op recorder.
func NewNopRecorder() *NopRecorder {
	return &NopRecorder{}
}

// Record does nothing
func (NopRecorder) Record(_ Event) {}
