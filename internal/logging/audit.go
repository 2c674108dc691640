package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// =============================================================================
// AUDIT EVENT TYPES
// =============================================================================

// AuditEventType names one pipeline event in the audit trail.
type AuditEventType string

const (
	// Stage 1
	AuditAnalyzeStart    AuditEventType = "analyze_start"
	AuditAnalyzeComplete AuditEventType = "analyze_complete"
	AuditAnalyzeError    AuditEventType = "analyze_error"

	// Stage 2
	AuditRenderStart    AuditEventType = "render_start"
	AuditRenderComplete AuditEventType = "render_complete"
	AuditRenderError    AuditEventType = "render_error"

	// History
	AuditHistoryLoad    AuditEventType = "history_load"
	AuditHistoryInsert  AuditEventType = "history_insert"
	AuditHistoryRemove  AuditEventType = "history_remove"
	AuditHistoryRestore AuditEventType = "history_restore"

	// Re-entry rejected while a stage was in flight
	AuditBusyReject AuditEventType = "busy_reject"
)

// AuditEvent is one JSON line in <logs>/<date>_audit.log.
type AuditEvent struct {
	Timestamp  int64                  `json:"ts"` // Unix milliseconds
	EventType  AuditEventType         `json:"event"`
	RecordID   string                 `json:"record,omitempty"`
	Success    bool                   `json:"success"`
	DurationMs int64                  `json:"dur_ms,omitempty"`
	Kind       string                 `json:"kind,omitempty"` // error kind when Success is false
	Error      string                 `json:"error,omitempty"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
}

// =============================================================================
// AUDIT LOGGER
// =============================================================================

var (
	auditFile *os.File
	auditMu   sync.Mutex
)

// openAuditLocked opens today's audit file. Caller holds auditMu.
func openAuditLocked() error {
	if auditFile != nil {
		return nil
	}
	configMu.RLock()
	dir := logsDir
	configMu.RUnlock()
	if dir == "" {
		return fmt.Errorf("logging not initialized")
	}

	date := time.Now().Format("2006-01-02")
	file, err := os.OpenFile(filepath.Join(dir, date+"_audit.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	auditFile = file
	return nil
}

// CloseAudit closes the audit log file.
func CloseAudit() {
	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile != nil {
		auditFile.Close()
		auditFile = nil
	}
}

// Audit writes one event. It is a no-op unless debug mode is on.
func Audit(event AuditEvent) {
	if !IsDebugMode() {
		return
	}
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	auditMu.Lock()
	defer auditMu.Unlock()
	if err := openAuditLocked(); err != nil {
		return
	}
	auditFile.Write(append(data, '\n'))
}

// =============================================================================
// CONVENIENCE METHODS FOR COMMON EVENTS
// =============================================================================

// AuditStage records the outcome of a generation stage. kind is empty on
// success.
func AuditStage(stage string, elapsed time.Duration, kind string, err error) {
	event := AuditEvent{
		DurationMs: elapsed.Milliseconds(),
		Success:    err == nil,
		Kind:       kind,
	}
	switch {
	case stage == "analyze" && err == nil:
		event.EventType = AuditAnalyzeComplete
	case stage == "analyze":
		event.EventType = AuditAnalyzeError
	case err == nil:
		event.EventType = AuditRenderComplete
	default:
		event.EventType = AuditRenderError
	}
	if err != nil {
		event.Error = err.Error()
	}
	Audit(event)
}

// AuditHistory records a change to the persisted list.
func AuditHistory(op AuditEventType, recordID string, size int, err error) {
	event := AuditEvent{
		EventType: op,
		RecordID:  recordID,
		Success:   err == nil,
		Fields:    map[string]interface{}{"size": size},
	}
	if err != nil {
		event.Error = err.Error()
	}
	Audit(event)
}
