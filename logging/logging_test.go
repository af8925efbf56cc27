package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestShouldLog(t *testing.T) {
	tests := []struct {
		level Level
		min   Level
		want  bool
	}{
		{LevelError, LevelError, true},
		{LevelWarn, LevelError, false},
		{LevelError, LevelDebug, true},
		{LevelDebug, LevelInfo, false},
		{LevelInfo, LevelInfo, true},
	}
	for _, tt := range tests {
		if got := ShouldLog(tt.level, tt.min); got != tt.want {
			t.Errorf("ShouldLog(%s, %s) = %v, want %v", tt.level, tt.min, got, tt.want)
		}
	}
}

func TestValidLevelAndFormat(t *testing.T) {
	for _, l := range []Level{LevelError, LevelWarn, LevelInfo, LevelDebug} {
		if !ValidLevel(l) {
			t.Errorf("ValidLevel(%s) = false", l)
		}
	}
	if ValidLevel("verbose") {
		t.Error("unknown level accepted")
	}

	if !ValidFormat(FormatJSON) || !ValidFormat(FormatText) {
		t.Error("known formats rejected")
	}
	if ValidFormat("xml") {
		t.Error("unknown format accepted")
	}
}

func TestConsoleLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewConsoleLogger(&buf, FormatJSON, LevelInfo)

	logger.Error("something failed", &Entry{
		Error: &ErrorDetails{
			Classification: "STANDARD_ERROR",
			Severity:       "low",
			Code:           -32603,
			Message:        "Internal error",
		},
	})

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if entry["level"] != "error" {
		t.Errorf("level = %v", entry["level"])
	}
	if entry["message"] != "something failed" {
		t.Errorf("message = %v", entry["message"])
	}
	errObj, _ := entry["error"].(map[string]any)
	if errObj == nil || errObj["code"] != float64(-32603) {
		t.Errorf("error = %v", entry["error"])
	}
}

func TestConsoleLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	logger := NewConsoleLogger(&buf, FormatText, LevelInfo)

	logger.Warn("rate limited", &Entry{
		Error:   &ErrorDetails{Classification: "RATE_LIMIT_ERROR", Severity: "medium", Code: -32002},
		Context: &RequestDetails{Method: "tools/call"},
	})

	out := buf.String()
	for _, want := range []string{"[warn]", "rate limited", "classification=RATE_LIMIT_ERROR", "method=tools/call"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %s", want, out)
		}
	}
}

func TestConsoleLogger_MinimumLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewConsoleLogger(&buf, FormatText, LevelWarn)

	logger.Info("too quiet", nil)
	if buf.Len() != 0 {
		t.Errorf("info entry should be suppressed at warn minimum: %s", buf.String())
	}

	logger.Error("loud", nil)
	if buf.Len() == 0 {
		t.Error("error entry should pass the warn minimum")
	}
}

func TestConsoleLogger_InvalidConfigFallsBack(t *testing.T) {
	var buf bytes.Buffer
	logger := NewConsoleLogger(&buf, "xml", "verbose")

	logger.Info("hello", nil)
	if !strings.Contains(buf.String(), "[info] hello") {
		t.Errorf("expected text fallback output, got %s", buf.String())
	}
}

func TestNopLogger(t *testing.T) {
	// Must be safe with nil entries at every level.
	var l NopLogger
	l.Log(LevelError, "x", nil)
	l.Error("x", nil)
	l.Warn("x", nil)
	l.Info("x", nil)
	l.Debug("x", nil)
}
