// Package audit provides security audit logging for SIEM consumption.
// It logs security-relevant events in structured JSON format for easy parsing
// and integration with security information and event management systems.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-ask/pkg/logging"
	sqlutil "github.com/ekaya-inc/ekaya-ask/pkg/sql"
)

// SecurityEventType categorizes security-relevant events for filtering and alerting.
type SecurityEventType string

const (
	// EventSQLInjectionAttempt is logged when libinjection flags a literal in generated SQL.
	EventSQLInjectionAttempt SecurityEventType = "sql_injection_attempt"
	// EventRejectedStatement is logged when generated SQL is not a single read-only SELECT.
	EventRejectedStatement SecurityEventType = "rejected_statement"
)

// SecurityEvent represents an auditable security event with all relevant context
// for SIEM ingestion and analysis.
type SecurityEvent struct {
	Timestamp  time.Time         `json:"timestamp"`
	EventType  SecurityEventType `json:"event_type"`
	SessionKey string            `json:"session_key,omitempty"`
	Details    RejectionDetails  `json:"details"`
	Severity   string            `json:"severity"` // warning, critical
}

// RejectionDetails describes generated SQL that was refused.
type RejectionDetails struct {
	Question string `json:"question"`
	SQL      string `json:"sql"`
	Reason   string `json:"reason"`
	Detail   string `json:"detail,omitempty"` // libinjection fingerprint or offending keyword
}

// SecurityAuditor logs security events for SIEM consumption.
type SecurityAuditor struct {
	logger *zap.Logger
}

// NewSecurityAuditor creates a new security auditor with a dedicated logger namespace.
func NewSecurityAuditor(logger *zap.Logger) *SecurityAuditor {
	return &SecurityAuditor{logger: logger.Named("security_audit")}
}

// LogRejectedSQL records generated SQL that failed read-only validation.
// Literals flagged by libinjection are logged at ERROR with "critical"
// severity, every other refusal at WARN.
func (a *SecurityAuditor) LogRejectedSQL(ctx context.Context, sessionKey, question string, verr *sqlutil.ValidationError) {
	event := SecurityEvent{
		Timestamp:  time.Now().UTC(),
		EventType:  EventRejectedStatement,
		SessionKey: sessionKey,
		Details: RejectionDetails{
			Question: logging.TruncateString(question, 500),
			SQL:      logging.SanitizeQuery(verr.SQL),
			Reason:   verr.Reason.Error(),
			Detail:   verr.Detail,
		},
		Severity: "warning",
	}
	level := zap.WarnLevel
	if errors.Is(verr, sqlutil.ErrInjectionPattern) {
		event.EventType = EventSQLInjectionAttempt
		event.Severity = "critical"
		level = zap.ErrorLevel
	}

	// Marshaling known types cannot fail
	eventJSON, _ := json.Marshal(event)

	if ce := a.logger.Check(level, "Generated SQL rejected"); ce != nil {
		ce.Write(
			zap.String("event_json", string(eventJSON)),
			zap.String("event_type", string(event.EventType)),
			zap.String("session_key", sessionKey),
			zap.String("reason", event.Details.Reason),
			zap.String("detail", verr.Detail),
			zap.String("severity", event.Severity),
		)
	}
}
