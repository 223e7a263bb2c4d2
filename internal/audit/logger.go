// Package audit appends security-relevant decisions to a human-readable log.
// Recording never fails back into the caller's control flow; write errors are
// reported on the diagnostic channel and otherwise swallowed.
//
// Redaction is the caller's job: details are written verbatim.
package audit

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Event types emitted by the gate.
const (
	EventCommandBlocked        = "command_blocked"
	EventCommandDenied         = "command_denied"
	EventCommandAllowed        = "command_allowed"
	EventCommandRemembered     = "command_remembered"
	EventCommandRejected       = "command_rejected"
	EventFileAccessDenied      = "file_access_denied"
	EventInputValidationFailed = "input_validation_failed"
	EventRateLimitExceeded     = "rate_limit_exceeded"
	EventPlanRecorded          = "plan_recorded"
	EventExecutionFailed       = "execution_failed"
	EventModeChanged           = "mode_changed"
)

const timestampLayout = "2006-01-02 15:04:05,000"

// Logger writes one line per event to an append-only file.
type Logger struct {
	mu   sync.Mutex
	f    *os.File
	diag *slog.Logger
	now  func() time.Time
}

// NewLogger opens (creating if needed) <configDir>/logs/security.log.
func NewLogger(configDir string, diag *slog.Logger) (*Logger, error) {
	logDir := filepath.Join(configDir, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(logDir, "security.log"),
		os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open security log: %w", err)
	}
	return &Logger{f: f, diag: diag, now: time.Now}, nil
}

// Record appends one event. It never returns an error: a gate decision must
// not fail because its audit write did.
func (l *Logger) Record(eventType string, details map[string]any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	line := fmt.Sprintf("%s - INFO - Security Event: %s - %s\n",
		l.now().Format(timestampLayout), eventType, renderDetails(details))
	if _, err := l.f.WriteString(line); err != nil && l.diag != nil {
		l.diag.Warn("audit write failed", "event_type", eventType, "error", err)
	}
}

func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.f.Close()
}

// renderDetails renders the detail mapping with sorted keys so identical
// events produce identical lines.
func renderDetails(details map[string]any) string {
	if len(details) == 0 {
		return "{}"
	}
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s=%v", k, details[k])
	}
	sb.WriteByte('}')
	return sb.String()
}
