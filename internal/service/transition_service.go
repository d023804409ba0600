package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/pkg/util"
)

// allowedTransitions is the full lifecycle graph. Any pair absent from the
// map is rejected; CLOSED has no outgoing edges.
var allowedTransitions = map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketStatusOpen:       {domain.TicketStatusInProgress},
	domain.TicketStatusInProgress: {domain.TicketStatusResolved, domain.TicketStatusOpen},
	domain.TicketStatusResolved:   {domain.TicketStatusClosed, domain.TicketStatusInProgress},
	domain.TicketStatusClosed:     {},
}

func transitionAllowed(from, to domain.TicketStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionService moves tickets through the lifecycle. Each transition is
// a single transaction covering the status write, the optional comment, the
// audit entry and the notification intents.
type TransitionService struct {
	tickets       repository.TicketRepository
	comments      repository.CommentRepository
	users         repository.UserRepository
	notifications repository.NotificationRepository
	audit         *AuditService
	tx            repository.TxManager
	dispatcher    events.Dispatcher
	logger        *zap.Logger
	now           func() time.Time
}

// TransitionDependencies bundles collaborators for the transition service.
type TransitionDependencies struct {
	TicketRepo       repository.TicketRepository
	CommentRepo      repository.CommentRepository
	UserRepo         repository.UserRepository
	NotificationRepo repository.NotificationRepository
	Audit            *AuditService
	Tx               repository.TxManager
	Dispatcher       events.Dispatcher
	Logger           *zap.Logger
	Now              func() time.Time
}

// TransitionInput describes a requested status change.
type TransitionInput struct {
	NextStatus domain.TicketStatus
	Comment    string
	Internal   bool
}

// NewTransitionService constructs the service.
func NewTransitionService(deps TransitionDependencies) *TransitionService {
	svc := &TransitionService{
		tickets:       deps.TicketRepo,
		comments:      deps.CommentRepo,
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

// Transition applies a status change on behalf of the actor. On success the
// returned ticket reflects the new status and any milestone timestamps.
func (s *TransitionService) Transition(ctx context.Context, actor *domain.User, ticketID int64, input TransitionInput) (*domain.Ticket, error) {
	if !input.NextStatus.IsValid() {
		return nil, util.NewInvalidTarget("unknown target status", map[string]any{"status": string(input.NextStatus)})
	}

	var (
		ticket *domain.Ticket
		event  events.Event
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		t, err := s.tickets.GetByIDForUpdate(ctx, ticketID)
		if err != nil {
			return err
		}
		if !canOperate(actor, t) {
			return util.NewForbidden("not allowed to change this ticket")
		}

		from := t.Status
		next := input.NextStatus
		if !transitionAllowed(from, next) {
			return util.NewIllegalTransition(string(from), string(next))
		}

		now := s.now()
		t.Status = next
		if next == domain.TicketStatusResolved && t.ResolvedAt == nil {
			t.ResolvedAt = &now
		}
		if next == domain.TicketStatusClosed && t.ClosedAt == nil {
			t.ClosedAt = &now
		}
		if err := s.tickets.Update(ctx, t); err != nil {
			return err
		}

		body := strings.TrimSpace(input.Comment)
		internal := input.Internal && (actor.IsAdmin() || actor.IsTech())
		var comment *domain.Comment
		if body != "" {
			comment = &domain.Comment{
				TicketID:   t.ID,
				AuthorID:   actor.ID,
				Body:       body,
				IsInternal: internal,
			}
			if err := s.comments.Create(ctx, comment); err != nil {
				return err
			}
		}

		meta := map[string]any{
			"from":         string(from),
			"from_label":   from.Label(),
			"to":           string(next),
			"to_label":     next.Label(),
			"with_comment": comment != nil,
			"internal":     internal,
		}
		if comment != nil {
			meta["comment_id"] = comment.ID
			meta["body_preview"] = truncateRunes(body, 120)
		}
		if err := s.audit.Record(ctx, &domain.AuditLog{
			TicketID:  t.ID,
			ActorID:   &actor.ID,
			ActorName: actor.Username,
			Action:    domain.AuditActionStatus,
			Meta:      meta,
		}); err != nil {
			return err
		}

		requester, assignee, err := s.loadParties(ctx, t)
		if err != nil {
			return err
		}
		if err := s.notifyParties(ctx, t, actor, requester, assignee, next); err != nil {
			return err
		}

		payload := events.TicketStatusChangedPayload{
			OldStatus: from,
			NewStatus: next,
			Comment:   body,
		}
		if requester != nil {
			payload.RequesterEmail = requester.Email
		}
		if assignee != nil {
			payload.AssigneeEmail = assignee.Email
		}
		event = events.Event{
			Type:       events.EventTicketStatusChanged,
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

func (s *TransitionService) loadParties(ctx context.Context, t *domain.Ticket) (requester, assignee *domain.User, err error) {
	requester, err = s.users.GetByID(ctx, t.RequesterID)
	if err != nil {
		return nil, nil, err
	}
	if t.AssigneeID != nil {
		assignee, err = s.users.GetByID(ctx, *t.AssigneeID)
		if err != nil {
			return nil, nil, err
		}
	}
	return requester, assignee, nil
}

func (s *TransitionService) notifyParties(ctx context.Context, t *domain.Ticket, actor, requester, assignee *domain.User, next domain.TicketStatus) error {
	message := "Ticket " + t.Code + " is now " + next.Label() + "."
	url := ticketURL(t.ID)

	var rows []domain.Notification
	seen := map[int64]bool{actor.ID: true}
	for _, u := range []*domain.User{requester, assignee} {
		if u == nil || seen[u.ID] {
			continue
		}
		seen[u.ID] = true
		rows = append(rows, domain.Notification{UserID: u.ID, Message: message, URL: url})
	}
	return s.notifications.CreateBatch(ctx, rows)
}

func (s *TransitionService) publishEvent(ctx context.Context, event events.Event) {
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

// canOperate reports whether the actor may mutate the ticket's workflow:
// administrators always, technicians only while assigned to it.
func canOperate(actor *domain.User, t *domain.Ticket) bool {
	if actor == nil {
		return false
	}
	if actor.IsAdmin() {
		return true
	}
	return actor.IsTech() && t.AssigneeID != nil && *t.AssigneeID == actor.ID
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

func ticketURL(id int64) string {
	return "/tickets/" + strconv.FormatInt(id, 10)
}
