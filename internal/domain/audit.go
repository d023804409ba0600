package domain

import "time"

// AuditAction enumerates the mutating actions recorded in the audit trail.
type AuditAction string

const (
	AuditActionCreate    AuditAction = "CREATE"
	AuditActionAssign    AuditAction = "ASSIGN"
	AuditActionStatus    AuditAction = "STATUS"
	AuditActionComment   AuditAction = "COMMENT"
	AuditActionAttach    AuditAction = "ATTACH"
	AuditActionSLAWarn   AuditAction = "SLA_WARN"
	AuditActionSLABreach AuditAction = "SLA_BREACH"
)

// AuditLog is one immutable record per mutating action on a ticket. It is
// the single source of truth for what happened; activity messages and
// notifications are derived from it, never the other way around.
//
// ActorID is nil for system-originated actions such as the SLA sweep. Meta
// is an action-specific key/value payload stored as JSON.
type AuditLog struct {
	ID        int64
	TicketID  int64
	ActorID   *int64
	ActorName string
	Action    AuditAction
	Meta      map[string]any
	CreatedAt time.Time
}

// ActivityEvent is the coarser-grained, human-readable feed entry derived
// from an AuditLog record, used for cross-ticket views.
type ActivityEvent struct {
	ID        int64
	ActorID   *int64
	Model     string
	ObjectID  int64
	Action    AuditAction
	Message   string
	CreatedAt time.Time
}
