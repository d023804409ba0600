package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
)

// AuditService owns the append-only audit trail. Every mutating engine
// records through it; it appends the AuditLog row and synchronously derives
// the human-readable activity-feed entry in the same transaction. Consumers
// render the derived message, never the raw meta.
type AuditService struct {
	audit    repository.AuditLogRepository
	activity repository.ActivityEventRepository
}

// NewAuditService constructs the service.
func NewAuditService(audit repository.AuditLogRepository, activity repository.ActivityEventRepository) *AuditService {
	return &AuditService{audit: audit, activity: activity}
}

// Record appends one immutable audit entry plus its derived activity event.
func (s *AuditService) Record(ctx context.Context, entry *domain.AuditLog) error {
	if err := s.audit.Create(ctx, entry); err != nil {
		return err
	}
	return s.deriveActivity(ctx, entry)
}

// RecordOnce appends the entry unless one of the same (ticket, action) kind
// already exists. Used by the SLA evaluator so each ticket receives at most
// one SLA_WARN and one SLA_BREACH over its lifetime, even under concurrent
// sweeps. Returns false when the entry was already present.
func (s *AuditService) RecordOnce(ctx context.Context, entry *domain.AuditLog) (bool, error) {
	created, err := s.audit.CreateOnce(ctx, entry)
	if err != nil || !created {
		return created, err
	}
	return true, s.deriveActivity(ctx, entry)
}

// HasAction reports whether the ticket already carries an entry of the kind.
func (s *AuditService) HasAction(ctx context.Context, ticketID int64, action domain.AuditAction) (bool, error) {
	return s.audit.HasAction(ctx, ticketID, action)
}

// ListByTicket returns the ticket's audit feed, newest first.
func (s *AuditService) ListByTicket(ctx context.Context, ticketID int64, limit, offset int) ([]domain.AuditLog, error) {
	return s.audit.ListByTicket(ctx, ticketID, limit, offset)
}

func (s *AuditService) deriveActivity(ctx context.Context, entry *domain.AuditLog) error {
	event := &domain.ActivityEvent{
		ActorID:  entry.ActorID,
		Model:    "ticket",
		ObjectID: entry.TicketID,
		Action:   entry.Action,
		Message:  RenderActivityMessage(entry),
	}
	return s.activity.Create(ctx, event)
}

var defaultActivityMessages = map[domain.AuditAction]string{
	domain.AuditActionCreate:    "Ticket created.",
	domain.AuditActionAssign:    "Ticket assignment.",
	domain.AuditActionStatus:    "Ticket status changed.",
	domain.AuditActionComment:   "Comment on ticket.",
	domain.AuditActionAttach:    "Attachment added to ticket.",
	domain.AuditActionSLAWarn:   "SLA warning.",
	domain.AuditActionSLABreach: "SLA breached.",
}

// RenderActivityMessage derives the activity-feed message for an audit entry.
// The derivation is pure: identical entries always yield identical messages.
func RenderActivityMessage(entry *domain.AuditLog) string {
	meta := entry.Meta
	if meta == nil {
		meta = map[string]any{}
	}

	switch entry.Action {
	case domain.AuditActionComment:
		author := entry.ActorName
		if author == "" {
			author = "user"
		}
		scope := "public"
		if metaBool(meta, "internal") {
			scope = "internal"
		}
		preview := strings.TrimSpace(metaString(meta, "body_preview"))
		var msg string
		if preview != "" {
			msg = fmt.Sprintf("%s commented (%s): %s", author, scope, preview)
		} else {
			msg = fmt.Sprintf("%s added a %s comment.", author, scope)
		}
		if metaBool(meta, "with_attachment") {
			filename := metaString(meta, "filename")
			if filename == "" {
				filename = "a file"
			}
			msg += fmt.Sprintf(" Attached %s.", filename)
		}
		return msg

	case domain.AuditActionAssign:
		fromName := metaString(meta, "from_username")
		if fromName == "" {
			fromName = "Unassigned"
		}
		toName := metaString(meta, "to_username")
		if toName == "" {
			toName = "Unassigned"
		}
		var msg string
		if _, hasFrom := metaInt(meta, "from"); hasFrom && fromName != toName {
			msg = fmt.Sprintf("Reassigned from %s to %s.", fromName, toName)
		} else {
			msg = fmt.Sprintf("Assigned to %s.", toName)
		}
		if reason := strings.TrimSpace(metaString(meta, "reason")); reason != "" {
			msg += fmt.Sprintf(" Reason: %s.", reason)
		}
		if metaBool(meta, "title_changed") {
			titleFrom := strings.TrimSpace(metaString(meta, "title_from"))
			titleTo := strings.TrimSpace(metaString(meta, "title_to"))
			if titleFrom != "" || titleTo != "" {
				msg += fmt.Sprintf(" Title: '%s' -> '%s'.", orDash(titleFrom), orDash(titleTo))
			}
		}
		return msg

	case domain.AuditActionStatus:
		fromLabel := metaString(meta, "from_label")
		if fromLabel == "" {
			fromLabel = domain.TicketStatus(metaString(meta, "from")).Label()
		}
		toLabel := metaString(meta, "to_label")
		if toLabel == "" {
			toLabel = domain.TicketStatus(metaString(meta, "to")).Label()
		}
		msg := fmt.Sprintf("Status: %s -> %s.", orDash(fromLabel), orDash(toLabel))
		if metaBool(meta, "with_comment") {
			preview := strings.TrimSpace(metaString(meta, "body_preview"))
			if preview != "" {
				scope := "public"
				if metaBool(meta, "internal") {
					scope = "internal"
				}
				msg += fmt.Sprintf(" Comment (%s): %s.", scope, preview)
			}
		}
		return msg

	case domain.AuditActionAttach:
		if filename := metaString(meta, "filename"); filename != "" {
			if idx := strings.LastIndex(filename, "/"); idx >= 0 {
				filename = filename[idx+1:]
			}
			return fmt.Sprintf("Attachment added: %s.", filename)
		}
		return defaultActivityMessages[domain.AuditActionAttach]

	case domain.AuditActionSLAWarn:
		if remaining, ok := metaInt(meta, "remaining_h"); ok {
			return fmt.Sprintf("SLA warning: %dh remaining.", remaining)
		}
		return defaultActivityMessages[domain.AuditActionSLAWarn]

	case domain.AuditActionSLABreach:
		if overdue, ok := metaInt(meta, "overdue_h"); ok {
			return fmt.Sprintf("SLA breached: %dh overdue.", overdue)
		}
		return defaultActivityMessages[domain.AuditActionSLABreach]
	}

	return defaultActivityMessages[entry.Action]
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func metaString(meta map[string]any, key string) string {
	if v, ok := meta[key].(string); ok {
		return v
	}
	return ""
}

func metaBool(meta map[string]any, key string) bool {
	v, ok := meta[key].(bool)
	return ok && v
}

// metaInt tolerates the numeric widenings a JSON round trip introduces.
func metaInt(meta map[string]any, key string) (int64, bool) {
	switch v := meta[key].(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		return int64(v), true
	case *int64:
		if v != nil {
			return *v, true
		}
	}
	return 0, false
}
