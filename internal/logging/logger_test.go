package logging

import (
	"bytes"
	"errors"
	"strings"
	"syscall"
	"testing"
	"time"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name   string
		config *Config
		want   string
	}{
		{
			name:   "default config",
			config: nil,
			want:   "text",
		},
		{
			name: "json format",
			config: &Config{
				Level:  LevelInfo,
				Format: "json",
				Output: &bytes.Buffer{},
			},
			want: "json",
		},
		{
			name: "text format",
			config: &Config{
				Level:  LevelDebug,
				Format: "text",
				Output: &bytes.Buffer{},
			},
			want: "text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := NewLogger(tt.config)
			if logger == nil {
				t.Error("NewLogger() returned nil")
			}
		})
	}
}

func TestLoggerWithContext(t *testing.T) {
	var buf bytes.Buffer
	config := &Config{
		Level:   LevelDebug,
		Format:  "text",
		Output:  &buf,
		Sync:    true,
		NoColor: true,
	}

	logger := NewLogger(config)

	// Test queue context
	queueLogger := logger.WithQueue(42)
	queueLogger.Info("test message")

	output := buf.String()
	if !strings.Contains(output, "queue=42") {
		t.Errorf("Expected queue=42 in output, got: %s", output)
	}

	// Scopes stack
	buf.Reset()
	queueLogger.WithRequest(7, "PREAD").Info("request message")

	output = buf.String()
	if !strings.Contains(output, "queue=42") {
		t.Errorf("Expected queue=42 in request logger output, got: %s", output)
	}
	if !strings.Contains(output, "tag=7") {
		t.Errorf("Expected tag=7 in output, got: %s", output)
	}
}

func TestLoggerWithRequest(t *testing.T) {
	var buf bytes.Buffer
	config := &Config{
		Level:   LevelDebug,
		Format:  "text",
		Output:  &buf,
		Sync:    true,
		NoColor: true,
	}

	logger := NewLogger(config)
	requestLogger := logger.WithRequest(123, "PREAD")
	requestLogger.Debug("processing request")

	output := buf.String()
	if !strings.Contains(output, "tag=123") {
		t.Errorf("Expected tag=123 in output, got: %s", output)
	}
	if !strings.Contains(output, "op=PREAD") {
		t.Errorf("Expected op=PREAD in output, got: %s", output)
	}
}

func TestLoggerWithError(t *testing.T) {
	var buf bytes.Buffer
	config := &Config{
		Level:   LevelDebug,
		Format:  "text",
		Output:  &buf,
		Sync:    true,
		NoColor: true,
	}

	logger := NewLogger(config)
	testErr := errors.New("test error")
	errorLogger := logger.WithError(testErr)
	errorLogger.Error("operation failed")

	output := buf.String()
	if !strings.Contains(output, "test error") {
		t.Errorf("Expected 'test error' in output, got: %s", output)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{
		Level:   LevelWarn,
		Format:  "json",
		Output:  &buf,
		Sync:    true,
		NoColor: true,
	})

	if logger.Enabled(LevelDebug) {
		t.Error("debug should be disabled at warn level")
	}
	if !logger.Enabled(LevelError) {
		t.Error("error should be enabled at warn level")
	}

	logger.Info("dropped")
	if buf.Len() != 0 {
		t.Errorf("Expected no output below warn level, got: %s", buf.String())
	}

	logger.Warn("kept", "fd", 3)
	output := buf.String()
	if !strings.Contains(output, `"message":"kept"`) {
		t.Errorf("Expected JSON message, got: %s", output)
	}
	if !strings.Contains(output, `"fd":3`) {
		t.Errorf("Expected fd field, got: %s", output)
	}
}

func TestIOLogging(t *testing.T) {
	var buf bytes.Buffer
	config := &Config{
		Level:   LevelDebug,
		Format:  "text",
		Output:  &buf,
		Sync:    true,
		NoColor: true,
	}

	logger := NewLogger(config).WithRequest(3, "PREAD")

	logger.IOComplete(4096, 512, 512, 150*time.Microsecond)
	output := buf.String()
	if !strings.Contains(output, "read completed") {
		t.Errorf("Expected completion message, got: %s", output)
	}
	for _, want := range []string{"op=PREAD", "offset=4096", "length=512", "result=512", "latency_us=150"} {
		if !strings.Contains(output, want) {
			t.Errorf("Expected %s, got: %s", want, output)
		}
	}

	buf.Reset()
	logger.IOError(4096, 512, syscall.EIO)
	output = buf.String()
	if !strings.Contains(output, "read failed") {
		t.Errorf("Expected failure message, got: %s", output)
	}
	if !strings.Contains(output, syscall.EIO.Error()) {
		t.Errorf("Expected errno text, got: %s", output)
	}
}

func TestIOLoggingFilteredAboveDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelInfo, Format: "json", Output: &buf, Sync: true})

	logger.IOComplete(0, 4096, 4096, time.Millisecond)
	logger.IOError(0, 4096, syscall.EIO)
	if buf.Len() != 0 {
		t.Errorf("Expected no I/O output at info level, got: %s", buf.String())
	}
}

func TestDefaultLogger(t *testing.T) {
	var buf bytes.Buffer
	custom := NewLogger(&Config{
		Level:   LevelDebug,
		Format:  "text",
		Output:  &buf,
		Sync:    true,
		NoColor: true,
	})

	SetDefault(custom)
	defer SetDefault(nil)

	if Default() != custom {
		t.Fatal("Default() did not return the logger passed to SetDefault")
	}
	Default().Debug("debug message", "key", "value", "dangling")
	output := buf.String()
	if !strings.Contains(output, "debug message") {
		t.Errorf("Expected debug message, got: %s", output)
	}
	if !strings.Contains(output, "key=value") {
		t.Errorf("Expected key=value, got: %s", output)
	}
	if strings.Contains(output, "dangling") {
		t.Errorf("Expected trailing key to be dropped, got: %s", output)
	}

	SetDefault(nil)
	if Default() == nil || Default() == custom {
		t.Error("SetDefault(nil) should restore a fresh default logger")
	}
}

func TestQueuedWriter(t *testing.T) {
	var buf bytes.Buffer
	qw := newQueuedWriter(&buf, 4)

	line := []byte("line one\n")
	n, err := qw.Write(line)
	if err != nil || n != len(line) {
		t.Fatalf("Write() = %d, %v", n, err)
	}
	line[0] = 'X'

	if err := qw.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}
	if buf.String() != "line one\n" {
		t.Errorf("Expected the line as written before reuse, got: %q", buf.String())
	}
	if _, err := qw.Write([]byte("late")); err == nil {
		t.Error("Expected write after Close to fail")
	}
}
