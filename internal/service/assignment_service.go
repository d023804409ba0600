package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/pkg/util"
)

// AssignmentService routes tickets to technicians, both manually and through
// the rule-driven auto-assign engine.
type AssignmentService struct {
	tickets       repository.TicketRepository
	assignments   repository.AssignmentRepository
	rules         repository.AutoAssignRuleRepository
	users         repository.UserRepository
	notifications repository.NotificationRepository
	audit         *AuditService
	tx            repository.TxManager
	dispatcher    events.Dispatcher
	logger        *zap.Logger
	now           func() time.Time
}

// AssignmentDependencies bundles collaborators for the assignment service.
type AssignmentDependencies struct {
	TicketRepo       repository.TicketRepository
	AssignmentRepo   repository.AssignmentRepository
	RuleRepo         repository.AutoAssignRuleRepository
	UserRepo         repository.UserRepository
	NotificationRepo repository.NotificationRepository
	Audit            *AuditService
	Tx               repository.TxManager
	Dispatcher       events.Dispatcher
	Logger           *zap.Logger
	Now              func() time.Time
}

// AssignInput describes a manual assignment request.
type AssignInput struct {
	ToUserID int64
	Reason   string
	NewTitle string
}

// NewAssignmentService constructs the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	svc := &AssignmentService{
		tickets:       deps.TicketRepo,
		assignments:   deps.AssignmentRepo,
		rules:         deps.RuleRepo,
		users:         deps.UserRepo,
		notifications: deps.NotificationRepo,
		audit:         deps.Audit,
		tx:            deps.Tx,
		dispatcher:    deps.Dispatcher,
		logger:        deps.Logger,
		now:           deps.Now,
	}
	if svc.logger == nil {
		svc.logger = zap.NewNop()
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc
}

// Assign routes the ticket to a technician on behalf of the actor.
// Administrators may assign to any active technician; technicians may only
// claim the ticket for themselves. An optional title rename rides along and
// is permitted under the same conditions.
func (s *AssignmentService) Assign(ctx context.Context, actor *domain.User, ticketID int64, input AssignInput) (*domain.Ticket, error) {
	if actor == nil {
		return nil, util.NewForbidden("not allowed to assign tickets")
	}
	selfClaim := actor.IsTech() && input.ToUserID == actor.ID
	if !actor.IsAdmin() && !selfClaim {
		return nil, util.NewForbidden("not allowed to assign tickets")
	}

	var (
		ticket *domain.Ticket
		event  events.Event
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		target, err := s.users.GetByID(ctx, input.ToUserID)
		if err != nil {
			if util.ToDomainError(err).Code == util.CodeNotFound {
				return util.NewInvalidTarget("target user does not exist", nil)
			}
			return err
		}
		if !target.IsActive {
			return util.NewInvalidTarget("target user is inactive", nil)
		}
		if actor.IsAdmin() && !target.IsTech() {
			return util.NewInvalidTarget("target user is not a technician", nil)
		}

		t, err := s.tickets.GetByIDForUpdate(ctx, ticketID)
		if err != nil {
			return err
		}

		titleChanged := false
		titleFrom := t.Title
		canRename := actor.IsAdmin() || (actor.IsTech() && target.ID == actor.ID)
		newTitle := strings.TrimSpace(input.NewTitle)
		if canRename && newTitle != "" && newTitle != t.Title {
			t.Title = newTitle
			titleChanged = true
		}

		prevID := t.AssigneeID
		var prevName string
		if prevID != nil {
			prev, err := s.users.GetByID(ctx, *prevID)
			if err != nil {
				return err
			}
			prevName = prev.Username
		}

		t.AssigneeID = &target.ID
		if err := s.tickets.Update(ctx, t); err != nil {
			return err
		}

		reason := strings.TrimSpace(input.Reason)
		if err := s.assignments.Create(ctx, &domain.Assignment{
			TicketID:   t.ID,
			FromUserID: prevID,
			ToUserID:   target.ID,
			Reason:     reason,
		}); err != nil {
			return err
		}

		meta := map[string]any{
			"to":            target.ID,
			"to_username":   target.Username,
			"reason":        reason,
			"title_changed": titleChanged,
		}
		if prevID != nil {
			meta["from"] = *prevID
			meta["from_username"] = prevName
		}
		if titleChanged {
			meta["title_from"] = titleFrom
			meta["title_to"] = t.Title
		}
		if err := s.audit.Record(ctx, &domain.AuditLog{
			TicketID:  t.ID,
			ActorID:   &actor.ID,
			ActorName: actor.Username,
			Action:    domain.AuditActionAssign,
			Meta:      meta,
		}); err != nil {
			return err
		}

		requester, err := s.users.GetByID(ctx, t.RequesterID)
		if err != nil {
			return err
		}
		if err := s.notifyAssignment(ctx, t, actor, requester, target); err != nil {
			return err
		}

		payload := events.TicketAssignedPayload{
			AssigneeID:     target.ID,
			AssigneeName:   target.Username,
			AssigneeEmail:  target.Email,
			RequesterEmail: requester.Email,
			Reason:         reason,
		}
		event = events.Event{
			Type:       events.EventTicketAssigned,
			TicketID:   t.ID,
			TicketCode: t.Code,
			ActorID:    &actor.ID,
			Payload:    payload,
		}
		ticket = t
		return nil
	})
	if err != nil {
		return nil, util.MapError(err)
	}

	s.publishEvent(ctx, event)
	return ticket, nil
}

// ApplyAutoAssign consults the routing rules and assigns the ticket to the
// matched technician. It is a silent no-op when no rule matches or when the
// ticket already sits with that technician, so callers may invoke it
// unconditionally after creation. Returns whether an assignment was made.
// The actor may be nil for system-originated runs.
func (s *AssignmentService) ApplyAutoAssign(ctx context.Context, actor *domain.User, ticketID int64) (bool, error) {
	var (
		applied bool
		event   events.Event
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		t, err := s.tickets.GetByIDForUpdate(ctx, ticketID)
		if err != nil {
			return err
		}
		rule, err := s.rules.FindMatch(ctx, t.CategoryID, t.AreaID)
		if err != nil {
			return err
		}
		if rule == nil {
			return nil
		}
		if t.AssigneeID != nil && *t.AssigneeID == rule.TechID {
			return nil
		}

		tech, err := s.users.GetByID(ctx, rule.TechID)
		if err != nil {
			return err
		}

		prevID := t.AssigneeID
		var prevName string
		if prevID != nil {
			prev, err := s.users.GetByID(ctx, *prevID)
			if err != nil {
				return err
			}
			prevName = prev.Username
		}

		t.AssigneeID = &tech.ID
		if err := s.tickets.Update(ctx, t); err != nil {
			return err
		}
		if err := s.assignments.Create(ctx, &domain.Assignment{
			TicketID:   t.ID,
			FromUserID: prevID,
			ToUserID:   tech.ID,
			Reason:     domain.AutoAssignReason,
		}); err != nil {
			return err
		}

		meta := map[string]any{
			"to":            tech.ID,
			"to_username":   tech.Username,
			"reason":        domain.AutoAssignReason,
			"title_changed": false,
		}
		if prevID != nil {
			meta["from"] = *prevID
			meta["from_username"] = prevName
		}
		entry := &domain.AuditLog{
			TicketID: t.ID,
			Action:   domain.AuditActionAssign,
			Meta:     meta,
		}
		if actor != nil {
			entry.ActorID = &actor.ID
			entry.ActorName = actor.Username
		}
		if err := s.audit.Record(ctx, entry); err != nil {
			return err
		}

		requester, err := s.users.GetByID(ctx, t.RequesterID)
		if err != nil {
			return err
		}
		if err := s.notifyAssignment(ctx, t, actor, requester, tech); err != nil {
			return err
		}

		payload := events.TicketAssignedPayload{
			AssigneeID:     tech.ID,
			AssigneeName:   tech.Username,
			AssigneeEmail:  tech.Email,
			RequesterEmail: requester.Email,
			Reason:         domain.AutoAssignReason,
		}
		event = events.Event{
			Type:       events.EventTicketAssigned,
			TicketID:   t.ID,
			TicketCode: t.Code,
			Payload:    payload,
		}
		if actor != nil {
			event.ActorID = &actor.ID
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, util.MapError(err)
	}

	if applied {
		s.publishEvent(ctx, event)
	}
	return applied, nil
}

// ListByTicket returns the ticket's assignment history, newest first.
func (s *AssignmentService) ListByTicket(ctx context.Context, ticketID int64) ([]domain.Assignment, error) {
	return s.assignments.ListByTicket(ctx, ticketID)
}

func (s *AssignmentService) notifyAssignment(ctx context.Context, t *domain.Ticket, actor, requester, assignee *domain.User) error {
	url := ticketURL(t.ID)
	var rows []domain.Notification
	seen := map[int64]bool{}
	if actor != nil {
		seen[actor.ID] = true
	}
	if !seen[assignee.ID] {
		seen[assignee.ID] = true
		rows = append(rows, domain.Notification{
			UserID:  assignee.ID,
			Message: "Ticket " + t.Code + " has been assigned to you.",
			URL:     url,
		})
	}
	if !seen[requester.ID] {
		rows = append(rows, domain.Notification{
			UserID:  requester.ID,
			Message: "Ticket " + t.Code + " was assigned to " + assignee.Username + ".",
			URL:     url,
		})
	}
	return s.notifications.CreateBatch(ctx, rows)
}

func (s *AssignmentService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}
