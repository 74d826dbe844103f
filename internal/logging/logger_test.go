package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name   string
		config *Config
	}{
		{name: "default config", config: nil},
		{
			name: "json format",
			config: &Config{Level: LevelInfo, Format: "json", Output: &bytes.Buffer{}},
		},
		{
			name: "text format",
			config: &Config{Level: LevelDebug, Format: "text", Output: &bytes.Buffer{}},
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

func TestLoggerWithLine(t *testing.T) {
	var buf bytes.Buffer
	config := &Config{Level: LevelDebug, Format: "text", Output: &buf, Sync: true}

	logger := NewLogger(config)

	lineLogger := logger.WithLine(3)
	lineLogger.Info("line opened")

	output := buf.String()
	if !strings.Contains(output, "line=3") {
		t.Errorf("expected line=3 in output, got: %s", output)
	}

	buf.Reset()
	requestLogger := lineLogger.WithRequest(7, "READ")
	requestLogger.Debug("draining queue")

	output = buf.String()
	if !strings.Contains(output, "line=3") {
		t.Errorf("expected line=3 in request logger output, got: %s", output)
	}
	if !strings.Contains(output, "tag=7") || !strings.Contains(output, "op=READ") {
		t.Errorf("expected tag=7 op=READ in output, got: %s", output)
	}
}

func TestLoggerWithError(t *testing.T) {
	var buf bytes.Buffer
	config := &Config{Level: LevelDebug, Format: "text", Output: &buf, Sync: true}

	logger := NewLogger(config)
	testErr := errors.New("test error")
	errorLogger := logger.WithError(testErr)
	errorLogger.Error("operation failed")

	output := buf.String()
	if !strings.Contains(output, "test error") {
		t.Errorf("expected 'test error' in output, got: %s", output)
	}
}

func TestLoggerJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	config := &Config{Level: LevelDebug, Format: "json", Output: &buf, Sync: true}

	logger := NewLogger(config).WithLine(1)
	logger.Info("hello")

	output := buf.String()
	if !strings.Contains(output, `"line":1`) {
		t.Errorf("expected line field in JSON output, got: %s", output)
	}
	if !strings.Contains(output, `"msg":"hello"`) {
		t.Errorf("expected msg field in JSON output, got: %s", output)
	}
}

func TestGlobalLoggerFunctions(t *testing.T) {
	var buf bytes.Buffer
	config := &Config{Level: LevelDebug, Format: "text", Output: &buf, Sync: true}

	SetDefault(NewLogger(config))

	Debug("debug message", "key", "value")
	output := buf.String()
	if !strings.Contains(output, "debug message") {
		t.Errorf("expected debug message, got: %s", output)
	}
	if !strings.Contains(output, "key=value") {
		t.Errorf("expected key=value, got: %s", output)
	}

	buf.Reset()
	Info("info message")
	if !strings.Contains(buf.String(), "info message") {
		t.Errorf("expected info message, got: %s", buf.String())
	}

	buf.Reset()
	Warn("warning message")
	if !strings.Contains(buf.String(), "warning message") {
		t.Errorf("expected warning message, got: %s", buf.String())
	}

	buf.Reset()
	Error("error message")
	if !strings.Contains(buf.String(), "error message") {
		t.Errorf("expected error message, got: %s", buf.String())
	}
}
