package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name: "JSON format to stdout",
			config: Config{
				Level:  "info",
				Format: "json",
				Output: "stdout",
			},
			wantErr: false,
		},
		{
			name: "Console format to stderr",
			config: Config{
				Level:  "debug",
				Format: "console",
				Output: "stderr",
			},
			wantErr: false,
		},
		{
			name: "Invalid log level defaults to info",
			config: Config{
				Level:  "invalid",
				Format: "json",
				Output: "stdout",
			},
			wantErr: false,
		},
		{
			name: "Unwritable file path",
			config: Config{
				Level:  "info",
				Format: "json",
				Output: "/nonexistent-dir/streams.log",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewLogger() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && logger == nil {
				t.Error("Expected non-nil logger")
			}
		})
	}
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to decode log line %q: %v", buf.String(), err)
	}
	return entry
}

func TestWriterLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, "warn")

	logger.Info("dropped")
	if buf.Len() != 0 {
		t.Errorf("Expected info to be filtered at warn level, got %q", buf.String())
	}

	logger.Warn("kept")
	entry := decodeLine(t, &buf)
	if entry["message"] != "kept" || entry["level"] != "warn" {
		t.Errorf("Unexpected entry: %v", entry)
	}
}

func TestLoggerWithFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, "debug")

	logger.
		WithSessionID("sess-1").
		WithTranscodeID("tc-2").
		WithClientID("client-3").
		WithComponent("registry").
		WithField("offset", 12).
		Info("streaming started")

	entry := decodeLine(t, &buf)
	for key, want := range map[string]interface{}{
		"session_id":   "sess-1",
		"transcode_id": "tc-2",
		"client_id":    "client-3",
		"component":    "registry",
		"offset":       float64(12),
	} {
		if entry[key] != want {
			t.Errorf("%s = %v, want %v", key, entry[key], want)
		}
	}
}

func TestLogSessionEvent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, "info")

	logger.LogSessionEvent("sess-9", "purged", map[string]interface{}{"idle_seconds": 600})

	entry := decodeLine(t, &buf)
	if entry["session_id"] != "sess-9" || entry["event"] != "purged" {
		t.Errorf("Unexpected entry: %v", entry)
	}
	if entry["idle_seconds"] != float64(600) {
		t.Errorf("Expected detail field, got %v", entry)
	}
}

func TestLogNegotiation(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, "info")

	logger.LogNegotiation("media-1", "generic", "video", "", errors.New("unsupported format"))

	entry := decodeLine(t, &buf)
	if entry["level"] != "warn" {
		t.Errorf("Expected failed negotiation to log at warn, got %v", entry["level"])
	}
	if entry["error"] != "unsupported format" {
		t.Errorf("Expected error field, got %v", entry)
	}
}

func TestLogTranscodeEvent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, "info")

	logger.LogTranscodeEvent("client-1", "tc-1", "started", nil)

	entry := decodeLine(t, &buf)
	if entry["level"] != "info" || entry["transcode_id"] != "tc-1" {
		t.Errorf("Unexpected entry: %v", entry)
	}
}

func TestNopLogger(t *testing.T) {
	logger := NewNopLogger()
	logger.WithSessionID("x").Info("discarded")
	logger.LogHTTPRequest("GET", "/api/v1/sessions", "10.0.0.1", 200, 5*time.Millisecond)
	logger.LogStorageOperation("stat", "media", "movie.mp4", 1024, time.Millisecond, nil)
	logger.LogDatabaseOperation("INSERT", time.Millisecond, nil)
	// Should not panic
}

func TestNewDefaultLogger(t *testing.T) {
	logger, err := NewDefaultLogger()
	if err != nil {
		t.Errorf("NewDefaultLogger() error = %v", err)
	}
	if logger == nil {
		t.Error("Expected non-nil logger from NewDefaultLogger")
	}
}

func TestNewConsoleLogger(t *testing.T) {
	logger, err := NewConsoleLogger()
	if err != nil {
		t.Errorf("NewConsoleLogger() error = %v", err)
	}
	if logger == nil {
		t.Error("Expected non-nil logger from NewConsoleLogger")
	}
}

func BenchmarkLogWithFields(b *testing.B) {
	logger := NewWriterLogger(&bytes.Buffer{}, "info")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.WithFields(map[string]interface{}{
			"key1": "value1",
			"key2": 123,
		}).Info("benchmark message")
	}
}
