package service

import (
	"context"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/repository"
)

type mockTxManager struct {
	WithinTxFunc func(ctx context.Context, fn func(ctx context.Context) error) error
}

func (m *mockTxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.WithinTxFunc != nil {
		return m.WithinTxFunc(ctx, fn)
	}
	return fn(ctx)
}

type mockTicketRepository struct {
	CreateFunc            func(ctx context.Context, ticket *domain.Ticket) error
	SetCodeFunc           func(ctx context.Context, id int64, code string) error
	UpdateFunc            func(ctx context.Context, ticket *domain.Ticket) error
	GetByIDFunc           func(ctx context.Context, id int64) (*domain.Ticket, error)
	GetByIDForUpdateFunc  func(ctx context.Context, id int64) (*domain.Ticket, error)
	GetByCodeFunc         func(ctx context.Context, code string) (*domain.Ticket, error)
	ListWithFilterFunc    func(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error)
	ListSLACandidatesFunc func(ctx context.Context) ([]domain.Ticket, error)
}

func (m *mockTicketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, ticket)
	}
	return nil
}

func (m *mockTicketRepository) SetCode(ctx context.Context, id int64, code string) error {
	if m.SetCodeFunc != nil {
		return m.SetCodeFunc(ctx, id, code)
	}
	return nil
}

func (m *mockTicketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, ticket)
	}
	return nil
}

func (m *mockTicketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockTicketRepository) GetByIDForUpdate(ctx context.Context, id int64) (*domain.Ticket, error) {
	if m.GetByIDForUpdateFunc != nil {
		return m.GetByIDForUpdateFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockTicketRepository) GetByCode(ctx context.Context, code string) (*domain.Ticket, error) {
	if m.GetByCodeFunc != nil {
		return m.GetByCodeFunc(ctx, code)
	}
	return nil, nil
}

func (m *mockTicketRepository) ListWithFilter(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	if m.ListWithFilterFunc != nil {
		return m.ListWithFilterFunc(ctx, filter)
	}
	return nil, nil
}

func (m *mockTicketRepository) ListSLACandidates(ctx context.Context) ([]domain.Ticket, error) {
	if m.ListSLACandidatesFunc != nil {
		return m.ListSLACandidatesFunc(ctx)
	}
	return nil, nil
}

type mockCommentRepository struct {
	CreateFunc       func(ctx context.Context, comment *domain.Comment) error
	ListByTicketFunc func(ctx context.Context, ticketID int64, includeInternal bool) ([]domain.Comment, error)
}

func (m *mockCommentRepository) Create(ctx context.Context, comment *domain.Comment) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, comment)
	}
	return nil
}

func (m *mockCommentRepository) ListByTicket(ctx context.Context, ticketID int64, includeInternal bool) ([]domain.Comment, error) {
	if m.ListByTicketFunc != nil {
		return m.ListByTicketFunc(ctx, ticketID, includeInternal)
	}
	return nil, nil
}

type mockAttachmentRepository struct {
	CreateFunc       func(ctx context.Context, attachment *domain.Attachment) error
	ListByTicketFunc func(ctx context.Context, ticketID int64) ([]domain.Attachment, error)
}

func (m *mockAttachmentRepository) Create(ctx context.Context, attachment *domain.Attachment) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, attachment)
	}
	return nil
}

func (m *mockAttachmentRepository) ListByTicket(ctx context.Context, ticketID int64) ([]domain.Attachment, error) {
	if m.ListByTicketFunc != nil {
		return m.ListByTicketFunc(ctx, ticketID)
	}
	return nil, nil
}

type mockAssignmentRepository struct {
	CreateFunc       func(ctx context.Context, assignment *domain.Assignment) error
	ListByTicketFunc func(ctx context.Context, ticketID int64) ([]domain.Assignment, error)
}

func (m *mockAssignmentRepository) Create(ctx context.Context, assignment *domain.Assignment) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, assignment)
	}
	return nil
}

func (m *mockAssignmentRepository) ListByTicket(ctx context.Context, ticketID int64) ([]domain.Assignment, error) {
	if m.ListByTicketFunc != nil {
		return m.ListByTicketFunc(ctx, ticketID)
	}
	return nil, nil
}

type mockRuleRepository struct {
	CreateFunc     func(ctx context.Context, rule *domain.AutoAssignRule) error
	FindMatchFunc  func(ctx context.Context, categoryID int64, areaID *int64) (*domain.AutoAssignRule, error)
	ListActiveFunc func(ctx context.Context) ([]domain.AutoAssignRule, error)
}

func (m *mockRuleRepository) Create(ctx context.Context, rule *domain.AutoAssignRule) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, rule)
	}
	return nil
}

func (m *mockRuleRepository) FindMatch(ctx context.Context, categoryID int64, areaID *int64) (*domain.AutoAssignRule, error) {
	if m.FindMatchFunc != nil {
		return m.FindMatchFunc(ctx, categoryID, areaID)
	}
	return nil, nil
}

func (m *mockRuleRepository) ListActive(ctx context.Context) ([]domain.AutoAssignRule, error) {
	if m.ListActiveFunc != nil {
		return m.ListActiveFunc(ctx)
	}
	return nil, nil
}

type mockAuditLogRepository struct {
	CreateFunc       func(ctx context.Context, entry *domain.AuditLog) error
	CreateOnceFunc   func(ctx context.Context, entry *domain.AuditLog) (bool, error)
	HasActionFunc    func(ctx context.Context, ticketID int64, action domain.AuditAction) (bool, error)
	ListByTicketFunc func(ctx context.Context, ticketID int64, limit, offset int) ([]domain.AuditLog, error)
}

func (m *mockAuditLogRepository) Create(ctx context.Context, entry *domain.AuditLog) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, entry)
	}
	return nil
}

func (m *mockAuditLogRepository) CreateOnce(ctx context.Context, entry *domain.AuditLog) (bool, error) {
	if m.CreateOnceFunc != nil {
		return m.CreateOnceFunc(ctx, entry)
	}
	return true, nil
}

func (m *mockAuditLogRepository) HasAction(ctx context.Context, ticketID int64, action domain.AuditAction) (bool, error) {
	if m.HasActionFunc != nil {
		return m.HasActionFunc(ctx, ticketID, action)
	}
	return false, nil
}

func (m *mockAuditLogRepository) ListByTicket(ctx context.Context, ticketID int64, limit, offset int) ([]domain.AuditLog, error) {
	if m.ListByTicketFunc != nil {
		return m.ListByTicketFunc(ctx, ticketID, limit, offset)
	}
	return nil, nil
}

type mockActivityRepository struct {
	CreateFunc     func(ctx context.Context, event *domain.ActivityEvent) error
	ListRecentFunc func(ctx context.Context, limit, offset int) ([]domain.ActivityEvent, error)
}

func (m *mockActivityRepository) Create(ctx context.Context, event *domain.ActivityEvent) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, event)
	}
	return nil
}

func (m *mockActivityRepository) ListRecent(ctx context.Context, limit, offset int) ([]domain.ActivityEvent, error) {
	if m.ListRecentFunc != nil {
		return m.ListRecentFunc(ctx, limit, offset)
	}
	return nil, nil
}

type mockNotificationRepository struct {
	CreateFunc      func(ctx context.Context, notification *domain.Notification) error
	CreateBatchFunc func(ctx context.Context, notifications []domain.Notification) error
	ListByUserFunc  func(ctx context.Context, userID int64, unreadOnly bool, limit, offset int) ([]domain.Notification, error)
	MarkReadFunc    func(ctx context.Context, id, userID int64) error
}

func (m *mockNotificationRepository) Create(ctx context.Context, notification *domain.Notification) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, notification)
	}
	return nil
}

func (m *mockNotificationRepository) CreateBatch(ctx context.Context, notifications []domain.Notification) error {
	if m.CreateBatchFunc != nil {
		return m.CreateBatchFunc(ctx, notifications)
	}
	return nil
}

func (m *mockNotificationRepository) ListByUser(ctx context.Context, userID int64, unreadOnly bool, limit, offset int) ([]domain.Notification, error) {
	if m.ListByUserFunc != nil {
		return m.ListByUserFunc(ctx, userID, unreadOnly, limit, offset)
	}
	return nil, nil
}

func (m *mockNotificationRepository) MarkRead(ctx context.Context, id, userID int64) error {
	if m.MarkReadFunc != nil {
		return m.MarkReadFunc(ctx, id, userID)
	}
	return nil
}

type mockUserRepository struct {
	CreateFunc            func(ctx context.Context, user *domain.User) error
	GetByIDFunc           func(ctx context.Context, id int64) (*domain.User, error)
	GetByUsernameFunc     func(ctx context.Context, username string) (*domain.User, error)
	ListActiveByRolesFunc func(ctx context.Context, roles ...domain.Role) ([]domain.User, error)
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	return nil
}

func (m *mockUserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	if m.GetByUsernameFunc != nil {
		return m.GetByUsernameFunc(ctx, username)
	}
	return nil, nil
}

func (m *mockUserRepository) ListActiveByRoles(ctx context.Context, roles ...domain.Role) ([]domain.User, error) {
	if m.ListActiveByRolesFunc != nil {
		return m.ListActiveByRolesFunc(ctx, roles...)
	}
	return nil, nil
}

type mockCatalogRepository struct {
	GetCategoryFunc func(ctx context.Context, id int64) (*domain.Category, error)
	GetPriorityFunc func(ctx context.Context, id int64) (*domain.Priority, error)
	GetAreaFunc     func(ctx context.Context, id int64) (*domain.Area, error)
}

func (m *mockCatalogRepository) GetCategory(ctx context.Context, id int64) (*domain.Category, error) {
	if m.GetCategoryFunc != nil {
		return m.GetCategoryFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockCatalogRepository) GetPriority(ctx context.Context, id int64) (*domain.Priority, error) {
	if m.GetPriorityFunc != nil {
		return m.GetPriorityFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockCatalogRepository) GetArea(ctx context.Context, id int64) (*domain.Area, error) {
	if m.GetAreaFunc != nil {
		return m.GetAreaFunc(ctx, id)
	}
	return nil, nil
}

// capturingDispatcher records published events for assertions.
type capturingDispatcher struct {
	published []events.Event
}

func (d *capturingDispatcher) Publish(ctx context.Context, event events.Event) error {
	d.published = append(d.published, event)
	return nil
}

func (d *capturingDispatcher) Subscribe(eventType events.EventType, handler events.EventHandler) {}
