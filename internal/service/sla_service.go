package service

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/pkg/util"
)

// DefaultWarnRatio is the fraction of the SLA window after which a warning
// is raised when the caller supplies no ratio of its own.
const DefaultWarnRatio = 0.8

// SLAService sweeps tickets against their SLA windows. Each sweep emits at
// most one warning and one breach per ticket over its whole lifetime; the
// audit trail is the source of truth for what was already emitted.
type SLAService struct {
	tickets       repository.TicketRepository
	users         repository.UserRepository
	notifications repository.NotificationRepository
	audit         *AuditService
	tx            repository.TxManager
	dispatcher    events.Dispatcher
	logger        *zap.Logger
	now           func() time.Time
}

// SLADependencies bundles collaborators for the SLA service.
type SLADependencies struct {
	TicketRepo       repository.TicketRepository
	UserRepo         repository.UserRepository
	NotificationRepo repository.NotificationRepository
	Audit            *AuditService
	Tx               repository.TxManager
	Dispatcher       events.Dispatcher
	Logger           *zap.Logger
	Now              func() time.Time
}

// SLAResult counts the emissions of one sweep.
type SLAResult struct {
	Warnings int `json:"warnings"`
	Breaches int `json:"breaches"`
}

// NewSLAService constructs the service.
func NewSLAService(deps SLADependencies) *SLAService {
	svc := &SLAService{
		tickets:       deps.TicketRepo,
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

// RunCheck evaluates every open-like ticket plus resolved tickets that have
// not been checked for late resolution. With dryRun set it only counts what
// would be emitted, writing nothing. A failure on one ticket is logged and
// the sweep moves on; the returned counts cover the tickets that succeeded.
func (s *SLAService) RunCheck(ctx context.Context, warnRatio float64, dryRun bool) (SLAResult, error) {
	if warnRatio <= 0 || warnRatio >= 1 {
		warnRatio = DefaultWarnRatio
	}
	var result SLAResult

	candidates, err := s.tickets.ListSLACandidates(ctx)
	if err != nil {
		return result, util.MapError(err)
	}

	now := s.now()
	for i := range candidates {
		t := &candidates[i]
		emitted, err := s.evaluateTicket(ctx, t, now, warnRatio, dryRun)
		if err != nil {
			s.logger.Error("sla evaluation failed",
				zap.Int64("ticket_id", t.ID),
				zap.String("ticket_code", t.Code),
				zap.Error(err))
			continue
		}
		switch emitted {
		case domain.AuditActionSLAWarn:
			result.Warnings++
		case domain.AuditActionSLABreach:
			result.Breaches++
		}
	}
	return result, nil
}

// evaluateTicket returns which emission, if any, the ticket produced.
func (s *SLAService) evaluateTicket(ctx context.Context, t *domain.Ticket, now time.Time, warnRatio float64, dryRun bool) (domain.AuditAction, error) {
	slaHours := float64(t.SLAHoursValue())
	dueAt := t.DueAt()

	// Resolved tickets only ever earn a late-resolution breach.
	if t.ResolvedAt != nil {
		if !t.ResolvedAt.After(dueAt) {
			return "", nil
		}
		overdue := int(math.Floor(t.ResolvedAt.Sub(dueAt).Hours()))
		meta := map[string]any{
			"due_at":      dueAt.UTC().Format(time.RFC3339),
			"resolved_at": t.ResolvedAt.UTC().Format(time.RFC3339),
			"overdue_h":   overdue,
		}
		return s.emit(ctx, t, domain.AuditActionSLABreach, meta, dryRun)
	}

	elapsed := t.ElapsedHours(now)
	if elapsed >= slaHours {
		overdue := int(math.Floor(elapsed - slaHours))
		meta := map[string]any{
			"due_at":    dueAt.UTC().Format(time.RFC3339),
			"overdue_h": overdue,
		}
		return s.emit(ctx, t, domain.AuditActionSLABreach, meta, dryRun)
	}
	if elapsed >= warnRatio*slaHours {
		remaining := int(math.Ceil(slaHours - elapsed))
		meta := map[string]any{
			"due_at":      dueAt.UTC().Format(time.RFC3339),
			"remaining_h": remaining,
		}
		return s.emit(ctx, t, domain.AuditActionSLAWarn, meta, dryRun)
	}
	return "", nil
}

func (s *SLAService) emit(ctx context.Context, t *domain.Ticket, action domain.AuditAction, meta map[string]any, dryRun bool) (domain.AuditAction, error) {
	if dryRun {
		exists, err := s.audit.HasAction(ctx, t.ID, action)
		if err != nil {
			return "", err
		}
		if exists {
			return "", nil
		}
		return action, nil
	}

	var (
		created bool
		event   events.Event
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		created, err = s.audit.RecordOnce(ctx, &domain.AuditLog{
			TicketID: t.ID,
			Action:   action,
			Meta:     meta,
		})
		if err != nil || !created {
			return err
		}

		recipients, emails, err := s.recipients(ctx, t, action)
		if err != nil {
			return err
		}
		message := "SLA warning for ticket " + t.Code + "."
		eventType := events.EventSLAWarning
		if action == domain.AuditActionSLABreach {
			message = "SLA breached for ticket " + t.Code + "."
			eventType = events.EventSLABreach
		}
		rows := make([]domain.Notification, 0, len(recipients))
		for _, userID := range recipients {
			rows = append(rows, domain.Notification{
				UserID:  userID,
				Message: message,
				URL:     ticketURL(t.ID),
			})
		}
		if err := s.notifications.CreateBatch(ctx, rows); err != nil {
			return err
		}

		event = events.Event{
			Type:       eventType,
			TicketID:   t.ID,
			TicketCode: t.Code,
			Payload: events.SLAEventPayload{
				Title:           t.Title,
				DueAt:           t.DueAt(),
				RecipientEmails: emails,
			},
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if !created {
		return "", nil
	}

	s.publishEvent(ctx, event)
	return action, nil
}

// recipients collects the staff audience plus the assignee; breaches add the
// requester. Duplicates are folded.
func (s *SLAService) recipients(ctx context.Context, t *domain.Ticket, action domain.AuditAction) ([]int64, []string, error) {
	staff, err := s.users.ListActiveByRoles(ctx, domain.RoleTechnician, domain.RoleAdministrator)
	if err != nil {
		return nil, nil, err
	}

	seen := map[int64]bool{}
	var ids []int64
	var emails []string
	add := func(u *domain.User) {
		if u == nil || seen[u.ID] {
			return
		}
		seen[u.ID] = true
		ids = append(ids, u.ID)
		if u.Email != "" {
			emails = append(emails, u.Email)
		}
	}

	for i := range staff {
		add(&staff[i])
	}
	if t.AssigneeID != nil && !seen[*t.AssigneeID] {
		assignee, err := s.users.GetByID(ctx, *t.AssigneeID)
		if err != nil {
			return nil, nil, err
		}
		add(assignee)
	}
	if action == domain.AuditActionSLABreach {
		requester, err := s.users.GetByID(ctx, t.RequesterID)
		if err != nil {
			return nil, nil, err
		}
		add(requester)
	}
	return ids, emails, nil
}

func (s *SLAService) publishEvent(ctx context.Context, event events.Event) {
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
