// Package logging defines the structured log entry shape and the Logger
// interface consumed by the request-processing core, plus console and
// silent sink implementations.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Level is a log severity level.
type Level string

const (
	LevelError Level = "error"
	LevelWarn  Level = "warn"
	LevelInfo  Level = "info"
	LevelDebug Level = "debug"
)

// ValidLevel reports whether l is a recognized level.
func ValidLevel(l Level) bool {
	switch l {
	case LevelError, LevelWarn, LevelInfo, LevelDebug:
		return true
	}
	return false
}

// levelRank orders levels from most to least severe.
func levelRank(l Level) int {
	switch l {
	case LevelError:
		return 0
	case LevelWarn:
		return 1
	case LevelInfo:
		return 2
	default:
		return 3
	}
}

// ShouldLog reports whether a message at level passes the minimum level.
func ShouldLog(level, min Level) bool {
	return levelRank(level) <= levelRank(min)
}

// Format selects the output encoding of a sink.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// ValidFormat reports whether f is a recognized format.
func ValidFormat(f Format) bool {
	return f == FormatJSON || f == FormatText
}

// ErrorDetails describes a classified error inside a log entry.
type ErrorDetails struct {
	Classification  string `json:"classification"`
	Severity        string `json:"severity"`
	Type            string `json:"type"`
	Code            int    `json:"code"`
	Message         string `json:"message"`
	OriginalMessage string `json:"originalMessage,omitempty"`
	Data            any    `json:"data,omitempty"`
}

// RequestDetails carries per-request context inside a log entry.
type RequestDetails struct {
	RequestID       string    `json:"requestId,omitempty"`
	Method          string    `json:"method,omitempty"`
	Transport       string    `json:"transport,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
	MiddlewareIndex *int      `json:"middlewareIndex,omitempty"`
	ExecutionID     string    `json:"executionId,omitempty"`
	Peer            string    `json:"peer,omitempty"`
}

// Metadata carries entry provenance: which component emitted it and in
// which environment.
type Metadata struct {
	Source        string         `json:"source"`
	Version       string         `json:"version"`
	Environment   string         `json:"environment"`
	CorrelationID string         `json:"correlationId,omitempty"`
	TraceID       string         `json:"traceId,omitempty"`
	SpanID        string         `json:"spanId,omitempty"`
	Fields        map[string]any `json:"fields,omitempty"`
}

// Entry is one structured log record.
type Entry struct {
	Timestamp time.Time       `json:"timestamp"`
	Level     Level           `json:"level"`
	Message   string          `json:"message"`
	Error     *ErrorDetails   `json:"error,omitempty"`
	Context   *RequestDetails `json:"context,omitempty"`
	Metadata  *Metadata       `json:"metadata,omitempty"`
	Stack     string          `json:"stack,omitempty"`
}

// Logger is the sink interface the core logs through.
type Logger interface {
	Log(level Level, msg string, entry *Entry)
	Error(msg string, entry *Entry)
	Warn(msg string, entry *Entry)
	Info(msg string, entry *Entry)
	Debug(msg string, entry *Entry)
}

// ConsoleLogger writes entries to a writer in JSON or text format.
type ConsoleLogger struct {
	mu     sync.Mutex
	w      io.Writer
	format Format
	min    Level
}

// NewConsoleLogger creates a logger writing to w. Unrecognized formats fall
// back to text; unrecognized minimum levels fall back to info.
func NewConsoleLogger(w io.Writer, format Format, min Level) *ConsoleLogger {
	if !ValidFormat(format) {
		format = FormatText
	}
	if !ValidLevel(min) {
		min = LevelInfo
	}
	return &ConsoleLogger{w: w, format: format, min: min}
}

// NewStderrLogger creates a text logger on stderr at info level.
func NewStderrLogger() *ConsoleLogger {
	return NewConsoleLogger(os.Stderr, FormatText, LevelInfo)
}

// Log writes one entry if it passes the minimum level.
func (l *ConsoleLogger) Log(level Level, msg string, entry *Entry) {
	if !ShouldLog(level, l.min) {
		return
	}
	if entry == nil {
		entry = &Entry{}
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	entry.Level = level
	entry.Message = msg

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.format == FormatJSON {
		data, err := json.Marshal(entry)
		if err != nil {
			fmt.Fprintf(l.w, "%s [%s] %s (unencodable entry: %v)\n",
				entry.Timestamp.Format(time.RFC3339), level, msg, err)
			return
		}
		fmt.Fprintf(l.w, "%s\n", data)
		return
	}

	fmt.Fprintf(l.w, "%s [%s] %s", entry.Timestamp.Format(time.RFC3339), level, msg)
	if entry.Error != nil {
		fmt.Fprintf(l.w, " classification=%s severity=%s code=%d",
			entry.Error.Classification, entry.Error.Severity, entry.Error.Code)
	}
	if entry.Context != nil && entry.Context.Method != "" {
		fmt.Fprintf(l.w, " method=%s", entry.Context.Method)
	}
	fmt.Fprintln(l.w)
}

func (l *ConsoleLogger) Error(msg string, entry *Entry) { l.Log(LevelError, msg, entry) }
func (l *ConsoleLogger) Warn(msg string, entry *Entry)  { l.Log(LevelWarn, msg, entry) }
func (l *ConsoleLogger) Info(msg string, entry *Entry)  { l.Log(LevelInfo, msg, entry) }
func (l *ConsoleLogger) Debug(msg string, entry *Entry) { l.Log(LevelDebug, msg, entry) }

// NopLogger discards all entries.
type NopLogger struct{}

func (NopLogger) Log(level Level, msg string, entry *Entry) {}
func (NopLogger) Error(msg string, entry *Entry)            {}
func (NopLogger) Warn(msg string, entry *Entry)             {}
func (NopLogger) Info(msg string, entry *Entry)             {}
func (NopLogger) Debug(msg string, entry *Entry)            {}
