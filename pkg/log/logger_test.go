// Structured logging tests
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func newBufferLogger(prefix string) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := New(prefix)
	logger.SetWriter(&buf)
	logger.SetLevel(DEBUG)
	logger.SetColorize(false)
	return logger, &buf
}

func TestLoggerBasic(t *testing.T) {
	logger, buf := newBufferLogger("scan")

	logger.Info("step %d of %d", 3, 6)

	output := buf.String()
	if !strings.Contains(output, "[INFO ]") {
		t.Errorf("expected INFO level, got: %s", output)
	}
	if !strings.Contains(output, "scan:") {
		t.Errorf("expected prefix 'scan:', got: %s", output)
	}
	if !strings.Contains(output, "step 3 of 6") {
		t.Errorf("expected formatted message, got: %s", output)
	}
}

func TestLoggerLevels(t *testing.T) {
	logger, buf := newBufferLogger("test")
	logger.SetLevel(WARN)

	logger.Debug("debug message")
	logger.Info("info message")
	if buf.Len() != 0 {
		t.Errorf("expected DEBUG and INFO to be filtered, got: %s", buf.String())
	}

	logger.Warn("warn message")
	if !strings.Contains(buf.String(), "warn message") {
		t.Errorf("expected WARN to pass, got: %s", buf.String())
	}

	buf.Reset()
	logger.Error("error message")
	if !strings.Contains(buf.String(), "error message") {
		t.Errorf("expected ERROR to pass, got: %s", buf.String())
	}
}

func TestLoggerJSONWithFields(t *testing.T) {
	logger, buf := newBufferLogger("controller")
	logger.SetFormat(FormatJSON)

	logger.WithFields(Fields{"step": 4, "channel": "attenuator"}).
		WithField("status", "reached 7").
		Info("auxiliary action")

	var entry JSONLogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON: %v, output: %s", err, buf.String())
	}
	if entry.Level != "INFO" || entry.Logger != "controller" {
		t.Errorf("unexpected entry header: %+v", entry)
	}
	if entry.Fields["channel"] != "attenuator" || entry.Fields["status"] != "reached 7" {
		t.Errorf("unexpected fields: %v", entry.Fields)
	}
	// JSON numbers decode as float64
	if entry.Fields["step"] != float64(4) {
		t.Errorf("expected step=4, got %v", entry.Fields["step"])
	}
}

func TestLoggerTextFieldsSorted(t *testing.T) {
	logger, buf := newBufferLogger("test")

	logger.WithFields(Fields{"b": 2, "a": 1}).Warn("fields")

	if !strings.Contains(buf.String(), "{a=1, b=2}") {
		t.Errorf("expected sorted fields, got: %s", buf.String())
	}
}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }

func TestLoggerWithError(t *testing.T) {
	logger, buf := newBufferLogger("test")
	logger.SetFormat(FormatJSON)

	logger.WithError(&testError{"readback never settled"}).Error("wait failed")

	var entry JSONLogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON: %v", err)
	}
	if entry.Fields["error"] != "readback never settled" {
		t.Errorf("expected error field, got: %v", entry.Fields)
	}
}

func TestLoggerWithPrefixSharesOutput(t *testing.T) {
	parent, buf := newBufferLogger("imprint")

	child := parent.WithPrefix("walker")
	child.Info("child message")
	parent.Info("parent message")

	output := buf.String()
	if !strings.Contains(output, "walker: child message") {
		t.Errorf("expected child prefix, got: %s", output)
	}
	if !strings.Contains(output, "imprint: parent message") {
		t.Errorf("expected parent prefix, got: %s", output)
	}
}

func TestLoggerCaller(t *testing.T) {
	logger, buf := newBufferLogger("test")
	logger.SetCaller(true)

	logger.Info("caller test")

	if !strings.Contains(buf.String(), "logger_test.go:") {
		t.Errorf("expected caller info 'logger_test.go:', got: %s", buf.String())
	}
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	logger.Error("dropped")
	logger.WithField("k", "v").Error("dropped too")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected LogLevel
	}{
		{"debug", DEBUG},
		{"INFO", INFO},
		{"warning", WARN},
		{"Error", ERROR},
		{"bogus", INFO},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.expected {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

func TestParseFormat(t *testing.T) {
	if ParseFormat("JSON") != FormatJSON {
		t.Error("expected JSON format")
	}
	if ParseFormat("text") != FormatText || ParseFormat("") != FormatText {
		t.Error("expected text format")
	}
}

func TestConfigureFromEnv(t *testing.T) {
	t.Setenv("IMPRINT_LOG_LEVEL", "error")
	t.Setenv("IMPRINT_LOG_FORMAT", "json")
	t.Setenv("NO_COLOR", "1")

	logger, buf := newBufferLogger("env")
	logger.SetColorize(true)
	ConfigureFromEnv(logger)

	if logger.GetLevel() != ERROR {
		t.Errorf("expected ERROR level, got %v", logger.GetLevel())
	}
	logger.Error("json please")
	if !strings.HasPrefix(buf.String(), "{") {
		t.Errorf("expected JSON output, got: %s", buf.String())
	}
}
