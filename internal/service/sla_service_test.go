package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
)

type slaFixture struct {
	svc         *SLAService
	tickets     *mockTicketRepository
	audits      *mockAuditLogRepository
	dispatcher  *capturingDispatcher
	onceEntries []*domain.AuditLog
	batches     [][]domain.Notification
}

func newSLAFixture(t *testing.T, candidates []domain.Ticket) *slaFixture {
	t.Helper()
	f := &slaFixture{
		tickets:    &mockTicketRepository{},
		audits:     &mockAuditLogRepository{},
		dispatcher: &capturingDispatcher{},
	}
	f.tickets.ListSLACandidatesFunc = func(ctx context.Context) ([]domain.Ticket, error) {
		return candidates, nil
	}
	f.audits.CreateOnceFunc = func(ctx context.Context, entry *domain.AuditLog) (bool, error) {
		f.onceEntries = append(f.onceEntries, entry)
		return true, nil
	}
	users := &mockUserRepository{
		ListActiveByRolesFunc: func(ctx context.Context, roles ...domain.Role) ([]domain.User, error) {
			return []domain.User{*adminUser(), *techUser()}, nil
		},
		GetByIDFunc: func(ctx context.Context, id int64) (*domain.User, error) {
			if id == 3 {
				return requesterUser(), nil
			}
			return techUser(), nil
		},
	}
	notifications := &mockNotificationRepository{
		CreateBatchFunc: func(ctx context.Context, rows []domain.Notification) error {
			f.batches = append(f.batches, rows)
			return nil
		},
	}

	f.svc = NewSLAService(SLADependencies{
		TicketRepo:       f.tickets,
		UserRepo:         users,
		NotificationRepo: notifications,
		Audit:            NewAuditService(f.audits, &mockActivityRepository{}),
		Tx:               &mockTxManager{},
		Dispatcher:       f.dispatcher,
		Now:              func() time.Time { return testNow },
	})
	return f
}

func slaTicket(ageHours float64, slaHours int) domain.Ticket {
	created := testNow.Add(-time.Duration(ageHours * float64(time.Hour)))
	return domain.Ticket{
		ID:          20,
		Code:        "TCK-000020",
		Title:       "VPN flaky",
		Status:      domain.TicketStatusOpen,
		RequesterID: 3,
		SLAHours:    slaHours,
		CreatedAt:   created,
	}
}

func TestRunCheckWarnsInsideWarnWindow(t *testing.T) {
	// 20 of 24 hours elapsed, past the 0.8 threshold but not breached.
	f := newSLAFixture(t, []domain.Ticket{slaTicket(20, 24)})

	result, err := f.svc.RunCheck(context.Background(), DefaultWarnRatio, false)
	require.NoError(t, err)
	assert.Equal(t, SLAResult{Warnings: 1, Breaches: 0}, result)

	require.Len(t, f.onceEntries, 1)
	entry := f.onceEntries[0]
	assert.Equal(t, domain.AuditActionSLAWarn, entry.Action)
	assert.Equal(t, 4, entry.Meta["remaining_h"])
	assert.Nil(t, entry.ActorID)

	require.Len(t, f.dispatcher.published, 1)
	assert.Equal(t, events.EventSLAWarning, f.dispatcher.published[0].Type)
}

func TestRunCheckBreachPastDue(t *testing.T) {
	f := newSLAFixture(t, []domain.Ticket{slaTicket(30, 24)})

	result, err := f.svc.RunCheck(context.Background(), DefaultWarnRatio, false)
	require.NoError(t, err)
	assert.Equal(t, SLAResult{Warnings: 0, Breaches: 1}, result)

	entry := f.onceEntries[0]
	assert.Equal(t, domain.AuditActionSLABreach, entry.Action)
	assert.Equal(t, 6, entry.Meta["overdue_h"])
	assert.Equal(t, events.EventSLABreach, f.dispatcher.published[0].Type)
}

func TestRunCheckQuietBeforeWarnWindow(t *testing.T) {
	f := newSLAFixture(t, []domain.Ticket{slaTicket(10, 24)})

	result, err := f.svc.RunCheck(context.Background(), DefaultWarnRatio, false)
	require.NoError(t, err)
	assert.Equal(t, SLAResult{}, result)
	assert.Empty(t, f.onceEntries)
	assert.Empty(t, f.dispatcher.published)
}

func TestRunCheckLateResolutionBreach(t *testing.T) {
	ticket := slaTicket(40, 24)
	ticket.Status = domain.TicketStatusResolved
	resolvedAt := ticket.CreatedAt.Add(30 * time.Hour)
	ticket.ResolvedAt = &resolvedAt
	f := newSLAFixture(t, []domain.Ticket{ticket})

	result, err := f.svc.RunCheck(context.Background(), DefaultWarnRatio, false)
	require.NoError(t, err)
	assert.Equal(t, SLAResult{Breaches: 1}, result)

	entry := f.onceEntries[0]
	assert.Equal(t, domain.AuditActionSLABreach, entry.Action)
	assert.Equal(t, 6, entry.Meta["overdue_h"])
	assert.Contains(t, entry.Meta, "resolved_at")
}

func TestRunCheckResolvedOnTimeIsQuiet(t *testing.T) {
	ticket := slaTicket(40, 24)
	ticket.Status = domain.TicketStatusResolved
	resolvedAt := ticket.CreatedAt.Add(20 * time.Hour)
	ticket.ResolvedAt = &resolvedAt
	f := newSLAFixture(t, []domain.Ticket{ticket})

	result, err := f.svc.RunCheck(context.Background(), DefaultWarnRatio, false)
	require.NoError(t, err)
	assert.Equal(t, SLAResult{}, result)
	assert.Empty(t, f.onceEntries)
}

func TestRunCheckIdempotentAcrossSweeps(t *testing.T) {
	f := newSLAFixture(t, []domain.Ticket{slaTicket(30, 24)})
	f.audits.CreateOnceFunc = func(ctx context.Context, entry *domain.AuditLog) (bool, error) {
		return false, nil
	}

	result, err := f.svc.RunCheck(context.Background(), DefaultWarnRatio, false)
	require.NoError(t, err)
	assert.Equal(t, SLAResult{}, result)
	assert.Empty(t, f.batches)
	assert.Empty(t, f.dispatcher.published)
}

func TestRunCheckDryRunCountsWithoutWriting(t *testing.T) {
	f := newSLAFixture(t, []domain.Ticket{slaTicket(30, 24), slaTicket(20, 24)})

	result, err := f.svc.RunCheck(context.Background(), DefaultWarnRatio, true)
	require.NoError(t, err)
	assert.Equal(t, SLAResult{Warnings: 1, Breaches: 1}, result)
	assert.Empty(t, f.onceEntries)
	assert.Empty(t, f.batches)
	assert.Empty(t, f.dispatcher.published)
}

func TestRunCheckDryRunSkipsAlreadyEmitted(t *testing.T) {
	f := newSLAFixture(t, []domain.Ticket{slaTicket(30, 24)})
	f.audits.HasActionFunc = func(ctx context.Context, ticketID int64, action domain.AuditAction) (bool, error) {
		return true, nil
	}

	result, err := f.svc.RunCheck(context.Background(), DefaultWarnRatio, true)
	require.NoError(t, err)
	assert.Equal(t, SLAResult{}, result)
}

func TestRunCheckContinuesPastFailingTicket(t *testing.T) {
	bad := slaTicket(30, 24)
	bad.ID = 21
	good := slaTicket(30, 24)
	f := newSLAFixture(t, []domain.Ticket{bad, good})
	f.audits.CreateOnceFunc = func(ctx context.Context, entry *domain.AuditLog) (bool, error) {
		if entry.TicketID == 21 {
			return false, errors.New("write failed")
		}
		f.onceEntries = append(f.onceEntries, entry)
		return true, nil
	}

	result, err := f.svc.RunCheck(context.Background(), DefaultWarnRatio, false)
	require.NoError(t, err)
	assert.Equal(t, SLAResult{Breaches: 1}, result)
	require.Len(t, f.onceEntries, 1)
	assert.Equal(t, int64(20), f.onceEntries[0].TicketID)
}

func TestRunCheckBreachRecipientsIncludeRequester(t *testing.T) {
	f := newSLAFixture(t, []domain.Ticket{slaTicket(30, 24)})

	_, err := f.svc.RunCheck(context.Background(), DefaultWarnRatio, false)
	require.NoError(t, err)

	require.Len(t, f.batches, 1)
	ids := map[int64]bool{}
	for _, row := range f.batches[0] {
		ids[row.UserID] = true
	}
	assert.True(t, ids[1])
	assert.True(t, ids[2])
	assert.True(t, ids[3], "breach adds the requester")
}

func TestRunCheckInvalidRatioFallsBack(t *testing.T) {
	// With ratio forced to the 0.8 default, 20/24 elapsed still warns.
	f := newSLAFixture(t, []domain.Ticket{slaTicket(20, 24)})

	result, err := f.svc.RunCheck(context.Background(), 1.5, false)
	require.NoError(t, err)
	assert.Equal(t, SLAResult{Warnings: 1}, result)
}
