package service

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/pkg/util"
)

// TicketService coordinates ticket intake, comments, attachments and the
// visibility-scoped read paths.
type TicketService struct {
	tickets       repository.TicketRepository
	comments      repository.CommentRepository
	attachments   repository.AttachmentRepository
	catalog       repository.CatalogRepository
	users         repository.UserRepository
	notifications repository.NotificationRepository
	activity      repository.ActivityEventRepository
	audit         *AuditService
	autoAssign    *AssignmentService
	tx            repository.TxManager
	dispatcher    events.Dispatcher
	logger        *zap.Logger
	now           func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo       repository.TicketRepository
	CommentRepo      repository.CommentRepository
	AttachmentRepo   repository.AttachmentRepository
	CatalogRepo      repository.CatalogRepository
	UserRepo         repository.UserRepository
	NotificationRepo repository.NotificationRepository
	ActivityRepo     repository.ActivityEventRepository
	Audit            *AuditService
	AutoAssign       *AssignmentService
	Tx               repository.TxManager
	Dispatcher       events.Dispatcher
	Logger           *zap.Logger
	Now              func() time.Time
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title       string
	Description string
	Kind        domain.TicketKind
	CategoryID  int64
	PriorityID  int64
	AreaID      *int64
}

// TicketListInput describes listing filters; visibility scoping is applied
// on top of it per the caller's role.
type TicketListInput struct {
	Statuses   []domain.TicketStatus
	CategoryID *int64
	PriorityID *int64
	AreaID     *int64
	AssigneeID *int64
	Search     *string
	Limit      int
	Offset     int
}

// AttachmentInput defines attachment metadata recorded against a ticket.
type AttachmentInput struct {
	StorageKey  string
	FileName    string
	ContentType string
	SizeBytes   int64
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	svc := &TicketService{
		tickets:       deps.TicketRepo,
		comments:      deps.CommentRepo,
		attachments:   deps.AttachmentRepo,
		catalog:       deps.CatalogRepo,
		users:         deps.UserRepo,
		notifications: deps.NotificationRepo,
		activity:      deps.ActivityRepo,
		audit:         deps.Audit,
		autoAssign:    deps.AutoAssign,
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

// CreateTicket opens a ticket for the actor. The row is first written with a
// placeholder code, then updated with the id-derived display code inside the
// same transaction so no two tickets ever share a code. Auto-assignment is
// attempted afterwards; its failure never fails the creation.
func (s *TicketService) CreateTicket(ctx context.Context, actor *domain.User, input TicketCreateInput) (*domain.Ticket, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, util.NewValidationError("title is required", nil)
	}

	kind := input.Kind
	if kind == "" {
		kind = domain.TicketKindRequest
	}
	if kind != domain.TicketKindIncident && kind != domain.TicketKindRequest {
		return nil, util.NewValidationError("unknown ticket kind", map[string]any{"kind": string(kind)})
	}

	category, err := s.catalog.GetCategory(ctx, input.CategoryID)
	if err != nil {
		return nil, util.MapError(err)
	}
	if !category.IsActive {
		return nil, util.NewValidationError("category inactive", nil)
	}
	priority, err := s.catalog.GetPriority(ctx, input.PriorityID)
	if err != nil {
		return nil, util.MapError(err)
	}
	var area *domain.Area
	if input.AreaID != nil {
		area, err = s.catalog.GetArea(ctx, *input.AreaID)
		if err != nil {
			return nil, util.MapError(err)
		}
	}

	var (
		ticket *domain.Ticket
		event  events.Event
	)
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		t := &domain.Ticket{
			Code:        placeholderCode(),
			Title:       title,
			Description: strings.TrimSpace(input.Description),
			Kind:        kind,
			CategoryID:  category.ID,
			PriorityID:  priority.ID,
			RequesterID: actor.ID,
			Status:      domain.TicketStatusOpen,
			SLAHours:    priority.SLAHours,
		}
		if area != nil {
			t.AreaID = &area.ID
		}
		if err := s.tickets.Create(ctx, t); err != nil {
			return err
		}

		code := fmt.Sprintf("TCK-%06d", t.ID)
		if err := s.tickets.SetCode(ctx, t.ID, code); err != nil {
			return err
		}
		t.Code = code

		if err := s.audit.Record(ctx, &domain.AuditLog{
			TicketID:  t.ID,
			ActorID:   &actor.ID,
			ActorName: actor.Username,
			Action:    domain.AuditActionCreate,
			Meta: map[string]any{
				"category": category.Name,
				"priority": priority.Name,
			},
		}); err != nil {
			return err
		}

		if err := s.notifications.CreateBatch(ctx, []domain.Notification{{
			UserID:  actor.ID,
			Message: "Ticket " + code + " created.",
			URL:     ticketURL(t.ID),
		}}); err != nil {
			return err
		}

		event = events.Event{
			Type:       events.EventTicketCreated,
			TicketID:   t.ID,
			TicketCode: t.Code,
			ActorID:    &actor.ID,
			Payload: events.TicketCreatedPayload{
				Title:          t.Title,
				Status:         t.Status,
				RequesterEmail: actor.Email,
			},
		}
		ticket = t
		return nil
	})
	if err != nil {
		return nil, util.MapError(err)
	}

	s.publishEvent(ctx, event)

	if s.autoAssign != nil {
		if _, err := s.autoAssign.ApplyAutoAssign(ctx, actor, ticket.ID); err != nil {
			s.logger.Error("auto-assign failed after creation",
				zap.Int64("ticket_id", ticket.ID),
				zap.Error(err))
		} else if fresh, err := s.tickets.GetByID(ctx, ticket.ID); err == nil {
			ticket = fresh
		}
	}
	return ticket, nil
}

// GetTicket fetches one ticket, enforcing the actor's visibility.
func (s *TicketService) GetTicket(ctx context.Context, actor *domain.User, ticketID int64) (*domain.Ticket, error) {
	t, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, util.MapError(err)
	}
	if !canView(actor, t) {
		return nil, util.NewNotFound("ticket", nil)
	}
	return t, nil
}

// ListTickets returns tickets scoped to the actor: administrators see all,
// technicians only their assigned tickets, requesters only their own.
func (s *TicketService) ListTickets(ctx context.Context, actor *domain.User, input TicketListInput) ([]domain.Ticket, error) {
	filter := repository.TicketFilter{
		Statuses:   input.Statuses,
		CategoryID: input.CategoryID,
		PriorityID: input.PriorityID,
		AreaID:     input.AreaID,
		SearchTerm: input.Search,
		Limit:      input.Limit,
		Offset:     input.Offset,
	}
	switch {
	case actor.IsAdmin():
		filter.AssigneeID = input.AssigneeID
	case actor.IsTech():
		filter.AssigneeID = &actor.ID
	default:
		filter.RequesterID = &actor.ID
	}
	tickets, err := s.tickets.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, util.MapError(err)
	}
	return tickets, nil
}

// AddComment appends a comment to the ticket. Requesters can only write
// public comments; an internal flag from them is silently dropped.
func (s *TicketService) AddComment(ctx context.Context, actor *domain.User, ticketID int64, body string, internal bool) (*domain.Comment, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, util.NewValidationError("comment body is required", nil)
	}

	var (
		comment *domain.Comment
		event   events.Event
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		t, err := s.tickets.GetByID(ctx, ticketID)
		if err != nil {
			return err
		}
		if !canView(actor, t) {
			return util.NewNotFound("ticket", nil)
		}

		isInternal := internal && (actor.IsAdmin() || actor.IsTech())
		comment = &domain.Comment{
			TicketID:   t.ID,
			AuthorID:   actor.ID,
			Body:       body,
			IsInternal: isInternal,
		}
		if err := s.comments.Create(ctx, comment); err != nil {
			return err
		}

		if err := s.audit.Record(ctx, &domain.AuditLog{
			TicketID:  t.ID,
			ActorID:   &actor.ID,
			ActorName: actor.Username,
			Action:    domain.AuditActionComment,
			Meta: map[string]any{
				"internal":        isInternal,
				"comment_id":      comment.ID,
				"with_attachment": false,
				"body_preview":    truncateRunes(body, 120),
			},
		}); err != nil {
			return err
		}

		requester, err := s.users.GetByID(ctx, t.RequesterID)
		if err != nil {
			return err
		}
		if !isInternal && requester.ID != actor.ID {
			if err := s.notifications.CreateBatch(ctx, []domain.Notification{{
				UserID:  requester.ID,
				Message: "New comment on ticket " + t.Code + ".",
				URL:     ticketURL(t.ID),
			}}); err != nil {
				return err
			}
		}

		event = events.Event{
			Type:       events.EventTicketCommented,
			TicketID:   t.ID,
			TicketCode: t.Code,
			ActorID:    &actor.ID,
			Payload: events.TicketCommentedPayload{
				CommentID:      comment.ID,
				AuthorName:     actor.Username,
				Body:           body,
				IsInternal:     isInternal,
				RequesterEmail: requester.Email,
			},
		}
		return nil
	})
	if err != nil {
		return nil, util.MapError(err)
	}

	s.publishEvent(ctx, event)
	return comment, nil
}

// ListComments returns the ticket's comments in chronological order.
// Internal notes are hidden from requesters.
func (s *TicketService) ListComments(ctx context.Context, actor *domain.User, ticketID int64) ([]domain.Comment, error) {
	t, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, util.MapError(err)
	}
	if !canView(actor, t) {
		return nil, util.NewNotFound("ticket", nil)
	}
	includeInternal := actor.IsAdmin() || actor.IsTech()
	comments, err := s.comments.ListByTicket(ctx, ticketID, includeInternal)
	if err != nil {
		return nil, util.MapError(err)
	}
	return comments, nil
}

// AddAttachment records attachment metadata against the ticket.
func (s *TicketService) AddAttachment(ctx context.Context, actor *domain.User, ticketID int64, input AttachmentInput) (*domain.Attachment, error) {
	if strings.TrimSpace(input.FileName) == "" || strings.TrimSpace(input.StorageKey) == "" {
		return nil, util.NewValidationError("file name and storage key are required", nil)
	}

	var (
		attachment *domain.Attachment
		event      events.Event
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		t, err := s.tickets.GetByID(ctx, ticketID)
		if err != nil {
			return err
		}
		if !canAttach(actor, t) {
			return util.NewNotFound("ticket", nil)
		}

		attachment = &domain.Attachment{
			TicketID:    t.ID,
			UploaderID:  actor.ID,
			StorageKey:  input.StorageKey,
			FileName:    input.FileName,
			ContentType: input.ContentType,
			SizeBytes:   input.SizeBytes,
		}
		if err := s.attachments.Create(ctx, attachment); err != nil {
			return err
		}

		if err := s.audit.Record(ctx, &domain.AuditLog{
			TicketID:  t.ID,
			ActorID:   &actor.ID,
			ActorName: actor.Username,
			Action:    domain.AuditActionAttach,
			Meta: map[string]any{
				"filename":     input.FileName,
				"size":         input.SizeBytes,
				"content_type": input.ContentType,
			},
		}); err != nil {
			return err
		}

		event = events.Event{
			Type:       events.EventTicketAttached,
			TicketID:   t.ID,
			TicketCode: t.Code,
			ActorID:    &actor.ID,
			Payload: events.TicketAttachedPayload{
				AttachmentID: attachment.ID,
				FileName:     input.FileName,
			},
		}
		return nil
	})
	if err != nil {
		return nil, util.MapError(err)
	}

	s.publishEvent(ctx, event)
	return attachment, nil
}

// ListAttachments returns the ticket's attachments, newest first.
func (s *TicketService) ListAttachments(ctx context.Context, actor *domain.User, ticketID int64) ([]domain.Attachment, error) {
	t, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, util.MapError(err)
	}
	if !canView(actor, t) {
		return nil, util.NewNotFound("ticket", nil)
	}
	attachments, err := s.attachments.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, util.MapError(err)
	}
	return attachments, nil
}

// GetAuditTrail returns the ticket's audit feed, newest first.
func (s *TicketService) GetAuditTrail(ctx context.Context, actor *domain.User, ticketID int64, limit, offset int) ([]domain.AuditLog, error) {
	t, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, util.MapError(err)
	}
	if !canView(actor, t) {
		return nil, util.NewNotFound("ticket", nil)
	}
	entries, err := s.audit.ListByTicket(ctx, ticketID, limit, offset)
	if err != nil {
		return nil, util.MapError(err)
	}
	return entries, nil
}

// ListActivity returns the global activity feed. Staff only.
func (s *TicketService) ListActivity(ctx context.Context, actor *domain.User, limit, offset int) ([]domain.ActivityEvent, error) {
	if !actor.IsAdmin() && !actor.IsTech() {
		return nil, util.NewForbidden("not allowed to read the activity feed")
	}
	entries, err := s.activity.ListRecent(ctx, limit, offset)
	if err != nil {
		return nil, util.MapError(err)
	}
	return entries, nil
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
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

// canView reports whether the actor may read the ticket: administrators all,
// technicians their assigned tickets, requesters their own.
func canView(actor *domain.User, t *domain.Ticket) bool {
	if actor == nil {
		return false
	}
	if actor.IsAdmin() {
		return true
	}
	if actor.IsTech() {
		return t.AssigneeID != nil && *t.AssigneeID == actor.ID
	}
	return actor.Owns(t)
}

// canAttach additionally lets technicians add files to still-unassigned
// tickets they are triaging.
func canAttach(actor *domain.User, t *domain.Ticket) bool {
	if actor != nil && actor.IsTech() && t.AssigneeID == nil {
		return true
	}
	return canView(actor, t)
}

// placeholderCode fills the unique code column until the id-derived display
// code is written in the same transaction.
func placeholderCode() string {
	raw := uuid.New()
	return "_TMP-" + hex.EncodeToString(raw[:])
}
