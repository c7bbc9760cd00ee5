package audit

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newFileLogger(t *testing.T, cfg *Config) (*Logger, string) {
	t.Helper()
	logFile := filepath.Join(t.TempDir(), "audit.log")
	cfg.Output = logFile

	logger, err := NewLogger(cfg)
	if err != nil {
		t.Fatalf("NewLogger() error: %v", err)
	}
	t.Cleanup(func() { logger.Close() })
	return logger, logFile
}

func TestLogger_Record(t *testing.T) {
	logger, logFile := newFileLogger(t, &Config{
		Enabled:          true,
		Format:           "json",
		IncludeUsernames: true,
	})

	logger.Record(Event{
		Type:     EventLoginConfirmed,
		Origin:   "https://ex.com",
		Username: "bob",
		Trigger:  "navigation",
	})

	content, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	for _, want := range []string{"login_confirmed", "https://ex.com", "bob", "navigation"} {
		if !strings.Contains(string(content), want) {
			t.Errorf("trail missing %q: %s", want, content)
		}
	}
}

func TestLogger_UsernamesRedactedByDefault(t *testing.T) {
	logger, logFile := newFileLogger(t, &Config{
		Enabled: true,
		Format:  "json",
	})

	logger.Record(Event{
		Type:     EventRecordUpserted,
		Origin:   "https://ex.com",
		Username: "bob",
		Count:    3,
	})

	content, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if strings.Contains(string(content), "bob") {
		t.Error("username written despite include_usernames=false")
	}
	if !strings.Contains(string(content), "record_upserted") {
		t.Error("event type missing from trail")
	}
}

func TestLogger_Disabled(t *testing.T) {
	logger, logFile := newFileLogger(t, &Config{
		Enabled: false,
		Format:  "json",
	})

	logger.Record(Event{Type: EventAttemptCaptured, Origin: "https://ex.com"})

	content, _ := os.ReadFile(logFile)
	if len(content) != 0 {
		t.Errorf("disabled trail wrote %q", content)
	}
}

func TestLogger_TextFormat(t *testing.T) {
	logger, logFile := newFileLogger(t, &Config{
		Enabled: true,
		Format:  "text",
	})

	logger.Record(Event{Type: EventAttemptExpired, Origin: "https://ex.com"})

	content, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if !strings.Contains(string(content), "attempt_expired") {
		t.Errorf("text trail missing event type: %s", content)
	}
}
