package events

import (
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketAssigned      EventType = "ticket_assigned"
	EventTicketCommented     EventType = "ticket_commented"
	EventTicketAttached      EventType = "ticket_attached"
	EventSLAWarning          EventType = "sla_warning"
	EventSLABreach           EventType = "sla_breach"
)

// Event represents a domain event emitted by the engines after their
// transaction committed. ActorID is nil for system-originated events.
type Event struct {
	ID         string
	Type       EventType
	TicketID   int64
	TicketCode string
	ActorID    *int64
	Timestamp  time.Time
	Payload    interface{}
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Title          string
	Status         domain.TicketStatus
	RequesterEmail string
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus      domain.TicketStatus
	NewStatus      domain.TicketStatus
	Comment        string
	RequesterEmail string
	AssigneeEmail  string
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	AssigneeID     int64
	AssigneeName   string
	AssigneeEmail  string
	RequesterEmail string
	Reason         string
}

// TicketCommentedPayload payload.
type TicketCommentedPayload struct {
	CommentID      int64
	AuthorName     string
	Body           string
	IsInternal     bool
	RequesterEmail string
}

// TicketAttachedPayload payload.
type TicketAttachedPayload struct {
	AttachmentID int64
	FileName     string
}

// SLAEventPayload payload for warnings and breaches.
type SLAEventPayload struct {
	Title           string
	DueAt           time.Time
	RecipientEmails []string
}
