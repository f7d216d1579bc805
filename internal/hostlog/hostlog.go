// Package hostlog is a best-effort append-only jsonl diagnostic logger,
// disabled by default. A write failure never propagates — this is a
// side channel for debugging the host itself, not part of its control
// surface.
package hostlog

import (
	"encoding/json"
	"os"
	"sync"
	"time"
)

// Logger appends one JSON object per line to a file.
type Logger struct {
	enabled bool
	mu      sync.Mutex
	file    *os.File
}

// New opens path for appending if enabled is true. A failure to open
// silently disables the logger rather than failing startup.
func New(enabled bool, path string) *Logger {
	if !enabled || path == "" {
		return &Logger{}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return &Logger{}
	}
	return &Logger{enabled: true, file: f}
}

// Close releases the underlying file, if any.
func (l *Logger) Close() {
	if l.file != nil {
		l.file.Close() //nolint:errcheck
	}
}

// Event is one logged line's shape.
type Event struct {
	Time      string `json:"time"`
	Component string `json:"component"`
	Message   string `json:"message,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
}

// Log appends one event. Errors are swallowed.
func (l *Logger) Log(component, message, sessionID string) {
	if !l.enabled {
		return
	}
	line, err := json.Marshal(Event{
		Time:      time.Now().UTC().Format(time.RFC3339Nano),
		Component: component,
		Message:   message,
		SessionID: sessionID,
	})
	if err != nil {
		return
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.file.Write(line)
}
