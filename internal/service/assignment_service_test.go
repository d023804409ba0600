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

type assignmentFixture struct {
	svc          *AssignmentService
	tickets      *mockTicketRepository
	assignments  *mockAssignmentRepository
	rules        *mockRuleRepository
	users        *mockUserRepository
	dispatcher   *capturingDispatcher
	auditEntries []*domain.AuditLog
	created      []*domain.Assignment
	savedTickets []*domain.Ticket
	batches      [][]domain.Notification
	usersByID    map[int64]*domain.User
}

func newAssignmentFixture(t *testing.T, ticket *domain.Ticket) *assignmentFixture {
	t.Helper()
	audits := &mockAuditLogRepository{}
	f := &assignmentFixture{
		tickets:     &mockTicketRepository{},
		assignments: &mockAssignmentRepository{},
		rules:       &mockRuleRepository{},
		users:       &mockUserRepository{},
		dispatcher:  &capturingDispatcher{},
		usersByID: map[int64]*domain.User{
			1: adminUser(),
			2: techUser(),
			3: requesterUser(),
			4: {ID: 4, Username: "teo", Email: "teo@example.com", Role: domain.RoleTechnician, IsActive: true},
		},
	}
	f.tickets.GetByIDForUpdateFunc = func(ctx context.Context, id int64) (*domain.Ticket, error) {
		copied := *ticket
		return &copied, nil
	}
	f.tickets.UpdateFunc = func(ctx context.Context, t *domain.Ticket) error {
		f.savedTickets = append(f.savedTickets, t)
		return nil
	}
	f.assignments.CreateFunc = func(ctx context.Context, a *domain.Assignment) error {
		f.created = append(f.created, a)
		return nil
	}
	f.users.GetByIDFunc = func(ctx context.Context, id int64) (*domain.User, error) {
		if u, ok := f.usersByID[id]; ok {
			return u, nil
		}
		return nil, util.NewNotFound("user", nil)
	}
	audits.CreateFunc = func(ctx context.Context, entry *domain.AuditLog) error {
		f.auditEntries = append(f.auditEntries, entry)
		return nil
	}
	notifications := &mockNotificationRepository{
		CreateBatchFunc: func(ctx context.Context, rows []domain.Notification) error {
			f.batches = append(f.batches, rows)
			return nil
		},
	}

	f.svc = NewAssignmentService(AssignmentDependencies{
		TicketRepo:       f.tickets,
		AssignmentRepo:   f.assignments,
		RuleRepo:         f.rules,
		UserRepo:         f.users,
		NotificationRepo: notifications,
		Audit:            NewAuditService(audits, &mockActivityRepository{}),
		Tx:               &mockTxManager{},
		Dispatcher:       f.dispatcher,
		Now:              func() time.Time { return testNow },
	})
	return f
}

func TestAssignAdminToTechnician(t *testing.T) {
	f := newAssignmentFixture(t, baseTicket(domain.TicketStatusOpen))

	ticket, err := f.svc.Assign(context.Background(), adminUser(), 10, AssignInput{ToUserID: 2, Reason: "queue balance"})
	require.NoError(t, err)
	require.NotNil(t, ticket.AssigneeID)
	assert.Equal(t, int64(2), *ticket.AssigneeID)

	require.Len(t, f.created, 1)
	assert.Nil(t, f.created[0].FromUserID)
	assert.Equal(t, int64(2), f.created[0].ToUserID)
	assert.Equal(t, "queue balance", f.created[0].Reason)

	require.Len(t, f.auditEntries, 1)
	entry := f.auditEntries[0]
	assert.Equal(t, domain.AuditActionAssign, entry.Action)
	assert.Equal(t, int64(2), entry.Meta["to"])
	assert.Equal(t, "tomas", entry.Meta["to_username"])
	assert.Equal(t, false, entry.Meta["title_changed"])
	_, hasFrom := entry.Meta["from"]
	assert.False(t, hasFrom)

	require.Len(t, f.dispatcher.published, 1)
	assert.Equal(t, events.EventTicketAssigned, f.dispatcher.published[0].Type)
}

func TestAssignReassignRecordsPreviousAssignee(t *testing.T) {
	ticket := baseTicket(domain.TicketStatusInProgress)
	ticket.AssigneeID = ptrInt64(2)
	f := newAssignmentFixture(t, ticket)

	_, err := f.svc.Assign(context.Background(), adminUser(), 10, AssignInput{ToUserID: 4, Reason: "handover"})
	require.NoError(t, err)

	require.Len(t, f.created, 1)
	require.NotNil(t, f.created[0].FromUserID)
	assert.Equal(t, int64(2), *f.created[0].FromUserID)

	entry := f.auditEntries[0]
	assert.Equal(t, int64(2), entry.Meta["from"])
	assert.Equal(t, "tomas", entry.Meta["from_username"])
	assert.Equal(t, int64(4), entry.Meta["to"])
}

func TestAssignTitleRename(t *testing.T) {
	f := newAssignmentFixture(t, baseTicket(domain.TicketStatusOpen))

	ticket, err := f.svc.Assign(context.Background(), adminUser(), 10, AssignInput{ToUserID: 2, NewTitle: "Printer offline in room 4"})
	require.NoError(t, err)
	assert.Equal(t, "Printer offline in room 4", ticket.Title)

	entry := f.auditEntries[0]
	assert.Equal(t, true, entry.Meta["title_changed"])
	assert.Equal(t, "Printer offline", entry.Meta["title_from"])
	assert.Equal(t, "Printer offline in room 4", entry.Meta["title_to"])
}

func TestAssignCapabilityRules(t *testing.T) {
	cases := []struct {
		name     string
		actor    *domain.User
		toUserID int64
		wantCode string
	}{
		{"tech self claim", techUser(), 2, ""},
		{"tech to other tech", techUser(), 4, util.CodeForbidden},
		{"requester", requesterUser(), 2, util.CodeForbidden},
		{"nil actor", nil, 2, util.CodeForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newAssignmentFixture(t, baseTicket(domain.TicketStatusOpen))
			_, err := f.svc.Assign(context.Background(), tc.actor, 10, AssignInput{ToUserID: tc.toUserID})
			if tc.wantCode == "" {
				require.NoError(t, err)
				return
			}
			var domainErr *util.DomainError
			require.ErrorAs(t, err, &domainErr)
			assert.Equal(t, tc.wantCode, domainErr.Code)
			assert.Empty(t, f.created)
		})
	}
}

func TestAssignRejectsBadTargets(t *testing.T) {
	inactive := &domain.User{ID: 5, Username: "ines", Role: domain.RoleTechnician, IsActive: false}

	cases := []struct {
		name     string
		toUserID int64
		setup    func(f *assignmentFixture)
	}{
		{"missing user", 99, nil},
		{"inactive technician", 5, func(f *assignmentFixture) { f.usersByID[5] = inactive }},
		{"requester role target", 3, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newAssignmentFixture(t, baseTicket(domain.TicketStatusOpen))
			if tc.setup != nil {
				tc.setup(f)
			}
			_, err := f.svc.Assign(context.Background(), adminUser(), 10, AssignInput{ToUserID: tc.toUserID})
			var domainErr *util.DomainError
			require.ErrorAs(t, err, &domainErr)
			assert.Equal(t, util.CodeInvalidTarget, domainErr.Code)
			assert.Empty(t, f.savedTickets)
		})
	}
}

func TestApplyAutoAssignNoRuleIsNoop(t *testing.T) {
	f := newAssignmentFixture(t, baseTicket(domain.TicketStatusOpen))

	applied, err := f.svc.ApplyAutoAssign(context.Background(), nil, 10)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Empty(t, f.created)
	assert.Empty(t, f.dispatcher.published)
}

func TestApplyAutoAssignAlreadyWithRuleTech(t *testing.T) {
	ticket := baseTicket(domain.TicketStatusOpen)
	ticket.AssigneeID = ptrInt64(2)
	f := newAssignmentFixture(t, ticket)
	f.rules.FindMatchFunc = func(ctx context.Context, categoryID int64, areaID *int64) (*domain.AutoAssignRule, error) {
		return &domain.AutoAssignRule{ID: 7, CategoryID: &categoryID, TechID: 2}, nil
	}

	applied, err := f.svc.ApplyAutoAssign(context.Background(), nil, 10)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Empty(t, f.created)
}

func TestApplyAutoAssignRoutesToRuleTech(t *testing.T) {
	f := newAssignmentFixture(t, baseTicket(domain.TicketStatusOpen))
	f.rules.FindMatchFunc = func(ctx context.Context, categoryID int64, areaID *int64) (*domain.AutoAssignRule, error) {
		return &domain.AutoAssignRule{ID: 7, CategoryID: &categoryID, TechID: 4}, nil
	}

	applied, err := f.svc.ApplyAutoAssign(context.Background(), nil, 10)
	require.NoError(t, err)
	assert.True(t, applied)

	require.Len(t, f.created, 1)
	assert.Equal(t, domain.AutoAssignReason, f.created[0].Reason)
	assert.Nil(t, f.created[0].FromUserID)

	require.Len(t, f.auditEntries, 1)
	assert.Nil(t, f.auditEntries[0].ActorID)
	assert.Equal(t, domain.AutoAssignReason, f.auditEntries[0].Meta["reason"])

	require.Len(t, f.dispatcher.published, 1)
	payload, ok := f.dispatcher.published[0].Payload.(events.TicketAssignedPayload)
	require.True(t, ok)
	assert.Equal(t, int64(4), payload.AssigneeID)
	assert.Equal(t, domain.AutoAssignReason, payload.Reason)
}

func TestApplyAutoAssignNotifiesAssigneeAndRequester(t *testing.T) {
	f := newAssignmentFixture(t, baseTicket(domain.TicketStatusOpen))
	f.rules.FindMatchFunc = func(ctx context.Context, categoryID int64, areaID *int64) (*domain.AutoAssignRule, error) {
		return &domain.AutoAssignRule{ID: 7, CategoryID: &categoryID, TechID: 4}, nil
	}

	_, err := f.svc.ApplyAutoAssign(context.Background(), nil, 10)
	require.NoError(t, err)

	require.Len(t, f.batches, 1)
	require.Len(t, f.batches[0], 2)
	assert.Equal(t, int64(4), f.batches[0][0].UserID)
	assert.Equal(t, "Ticket TCK-000010 has been assigned to you.", f.batches[0][0].Message)
	assert.Equal(t, int64(3), f.batches[0][1].UserID)
	assert.Equal(t, "Ticket TCK-000010 was assigned to teo.", f.batches[0][1].Message)
}
