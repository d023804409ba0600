package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/pkg/util"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func ptrInt64(v int64) *int64 { return &v }

func adminUser() *domain.User {
	return &domain.User{ID: 1, Username: "ana", Email: "ana@example.com", Role: domain.RoleAdministrator, IsActive: true}
}

func techUser() *domain.User {
	return &domain.User{ID: 2, Username: "tomas", Email: "tomas@example.com", Role: domain.RoleTechnician, IsActive: true}
}

func requesterUser() *domain.User {
	return &domain.User{ID: 3, Username: "rosa", Email: "rosa@example.com", Role: domain.RoleRequester, IsActive: true}
}

func baseTicket(status domain.TicketStatus) *domain.Ticket {
	return &domain.Ticket{
		ID:          10,
		Code:        "TCK-000010",
		Title:       "Printer offline",
		Status:      status,
		CategoryID:  1,
		PriorityID:  1,
		RequesterID: 3,
		SLAHours:    24,
		CreatedAt:   testNow.Add(-2 * time.Hour),
		UpdatedAt:   testNow.Add(-1 * time.Hour),
	}
}

type transitionFixture struct {
	svc           *TransitionService
	tickets       *mockTicketRepository
	comments      *mockCommentRepository
	users         *mockUserRepository
	notifications *mockNotificationRepository
	audits        *mockAuditLogRepository
	dispatcher    *capturingDispatcher
	auditEntries  []*domain.AuditLog
	savedTickets  []*domain.Ticket
	savedComments []*domain.Comment
	batches       [][]domain.Notification
}

func newTransitionFixture(t *testing.T, ticket *domain.Ticket) *transitionFixture {
	t.Helper()
	f := &transitionFixture{
		tickets:       &mockTicketRepository{},
		comments:      &mockCommentRepository{},
		users:         &mockUserRepository{},
		notifications: &mockNotificationRepository{},
		audits:        &mockAuditLogRepository{},
		dispatcher:    &capturingDispatcher{},
	}
	f.tickets.GetByIDForUpdateFunc = func(ctx context.Context, id int64) (*domain.Ticket, error) {
		copied := *ticket
		return &copied, nil
	}
	f.tickets.UpdateFunc = func(ctx context.Context, t *domain.Ticket) error {
		f.savedTickets = append(f.savedTickets, t)
		return nil
	}
	f.comments.CreateFunc = func(ctx context.Context, c *domain.Comment) error {
		c.ID = int64(len(f.savedComments) + 100)
		f.savedComments = append(f.savedComments, c)
		return nil
	}
	f.users.GetByIDFunc = func(ctx context.Context, id int64) (*domain.User, error) {
		switch id {
		case 1:
			return adminUser(), nil
		case 2:
			return techUser(), nil
		case 3:
			return requesterUser(), nil
		}
		return nil, util.NewNotFound("user", nil)
	}
	f.notifications.CreateBatchFunc = func(ctx context.Context, rows []domain.Notification) error {
		f.batches = append(f.batches, rows)
		return nil
	}
	f.audits.CreateFunc = func(ctx context.Context, entry *domain.AuditLog) error {
		f.auditEntries = append(f.auditEntries, entry)
		return nil
	}

	f.svc = NewTransitionService(TransitionDependencies{
		TicketRepo:       f.tickets,
		CommentRepo:      f.comments,
		UserRepo:         f.users,
		NotificationRepo: f.notifications,
		Audit:            NewAuditService(f.audits, &mockActivityRepository{}),
		Tx:               &mockTxManager{},
		Dispatcher:       f.dispatcher,
		Now:              func() time.Time { return testNow },
	})
	return f
}

func TestTransitionLifecycleGraph(t *testing.T) {
	statuses := []domain.TicketStatus{
		domain.TicketStatusOpen,
		domain.TicketStatusInProgress,
		domain.TicketStatusResolved,
		domain.TicketStatusClosed,
	}
	allowed := map[domain.TicketStatus]map[domain.TicketStatus]bool{
		domain.TicketStatusOpen:       {domain.TicketStatusInProgress: true},
		domain.TicketStatusInProgress: {domain.TicketStatusResolved: true, domain.TicketStatusOpen: true},
		domain.TicketStatusResolved:   {domain.TicketStatusClosed: true, domain.TicketStatusInProgress: true},
		domain.TicketStatusClosed:     {},
	}

	for _, from := range statuses {
		for _, to := range statuses {
			f := newTransitionFixture(t, baseTicket(from))
			result, err := f.svc.Transition(context.Background(), adminUser(), 10, TransitionInput{NextStatus: to})

			if allowed[from][to] {
				require.NoError(t, err, "%s -> %s should be allowed", from, to)
				assert.Equal(t, to, result.Status)
				continue
			}
			require.Error(t, err, "%s -> %s should be rejected", from, to)
			var domainErr *util.DomainError
			require.ErrorAs(t, err, &domainErr)
			assert.Equal(t, util.CodeIllegalTransition, domainErr.Code)
			assert.Empty(t, f.savedTickets)
		}
	}
}

func TestTransitionRejectsUnknownTarget(t *testing.T) {
	f := newTransitionFixture(t, baseTicket(domain.TicketStatusOpen))
	_, err := f.svc.Transition(context.Background(), adminUser(), 10, TransitionInput{NextStatus: "ARCHIVED"})
	var domainErr *util.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, util.CodeInvalidTarget, domainErr.Code)
}

func TestTransitionAuthorization(t *testing.T) {
	assignedTech := baseTicket(domain.TicketStatusOpen)
	assignedTech.AssigneeID = ptrInt64(2)

	cases := []struct {
		name    string
		actor   *domain.User
		ticket  *domain.Ticket
		wantErr bool
	}{
		{"admin always", adminUser(), baseTicket(domain.TicketStatusOpen), false},
		{"assigned tech", techUser(), assignedTech, false},
		{"unassigned tech", techUser(), baseTicket(domain.TicketStatusOpen), true},
		{"requester", requesterUser(), assignedTech, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newTransitionFixture(t, tc.ticket)
			_, err := f.svc.Transition(context.Background(), tc.actor, 10, TransitionInput{NextStatus: domain.TicketStatusInProgress})
			if tc.wantErr {
				var domainErr *util.DomainError
				require.ErrorAs(t, err, &domainErr)
				assert.Equal(t, util.CodeForbidden, domainErr.Code)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestTransitionStampsMilestonesOnce(t *testing.T) {
	ticket := baseTicket(domain.TicketStatusInProgress)
	f := newTransitionFixture(t, ticket)

	result, err := f.svc.Transition(context.Background(), adminUser(), 10, TransitionInput{NextStatus: domain.TicketStatusResolved})
	require.NoError(t, err)
	require.NotNil(t, result.ResolvedAt)
	assert.Equal(t, testNow, *result.ResolvedAt)

	// Re-open and resolve again: the first resolution timestamp survives.
	earlier := testNow.Add(-24 * time.Hour)
	reopened := baseTicket(domain.TicketStatusInProgress)
	reopened.ResolvedAt = &earlier
	f2 := newTransitionFixture(t, reopened)

	result2, err := f2.svc.Transition(context.Background(), adminUser(), 10, TransitionInput{NextStatus: domain.TicketStatusResolved})
	require.NoError(t, err)
	require.NotNil(t, result2.ResolvedAt)
	assert.Equal(t, earlier, *result2.ResolvedAt)
}

func TestTransitionRecordsAuditAndComment(t *testing.T) {
	ticket := baseTicket(domain.TicketStatusOpen)
	f := newTransitionFixture(t, ticket)

	_, err := f.svc.Transition(context.Background(), adminUser(), 10, TransitionInput{
		NextStatus: domain.TicketStatusInProgress,
		Comment:    "taking a look",
		Internal:   true,
	})
	require.NoError(t, err)

	require.Len(t, f.savedComments, 1)
	assert.True(t, f.savedComments[0].IsInternal)

	require.Len(t, f.auditEntries, 1)
	entry := f.auditEntries[0]
	assert.Equal(t, domain.AuditActionStatus, entry.Action)
	assert.Equal(t, "OPEN", entry.Meta["from"])
	assert.Equal(t, "Open", entry.Meta["from_label"])
	assert.Equal(t, "IN_PROGRESS", entry.Meta["to"])
	assert.Equal(t, "In Progress", entry.Meta["to_label"])
	assert.Equal(t, true, entry.Meta["with_comment"])
	assert.Equal(t, true, entry.Meta["internal"])
	assert.Equal(t, "taking a look", entry.Meta["body_preview"])

	require.Len(t, f.dispatcher.published, 1)
	assert.Equal(t, events.EventTicketStatusChanged, f.dispatcher.published[0].Type)
}

func TestTransitionNotifiesRequesterAndAssignee(t *testing.T) {
	ticket := baseTicket(domain.TicketStatusOpen)
	ticket.AssigneeID = ptrInt64(2)
	f := newTransitionFixture(t, ticket)

	_, err := f.svc.Transition(context.Background(), adminUser(), 10, TransitionInput{NextStatus: domain.TicketStatusInProgress})
	require.NoError(t, err)

	require.Len(t, f.batches, 1)
	recipients := map[int64]bool{}
	for _, row := range f.batches[0] {
		recipients[row.UserID] = true
	}
	assert.True(t, recipients[3], "requester notified")
	assert.True(t, recipients[2], "assignee notified")
	assert.False(t, recipients[1], "actor not self-notified")
}
