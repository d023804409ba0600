package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/service"
	"github.com/spec-kit/helpdesk/pkg/util"
)

// TicketsHandler manages ticket endpoints.
type TicketsHandler struct {
	tickets     *service.TicketService
	transitions *service.TransitionService
	assignments *service.AssignmentService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(tickets *service.TicketService, transitions *service.TransitionService, assignments *service.AssignmentService) *TicketsHandler {
	return &TicketsHandler{tickets: tickets, transitions: transitions, assignments: assignments}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return util.NewUnauthorized("authentication required")
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Title) == "" || req.CategoryID == 0 || req.PriorityID == 0 {
		return util.NewValidationError("title, category_id, priority_id required", nil)
	}

	ticket, err := h.tickets.CreateTicket(c.UserContext(), actor, service.TicketCreateInput{
		Title:       req.Title,
		Description: req.Description,
		Kind:        req.Kind,
		CategoryID:  req.CategoryID,
		PriorityID:  req.PriorityID,
		AreaID:      req.AreaID,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketDetail(ticket)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return util.NewUnauthorized("authentication required")
	}
	input := parseTicketListQuery(c)
	tickets, err := h.tickets.ListTickets(c.UserContext(), actor, input)
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketSummary(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return util.NewUnauthorized("authentication required")
	}
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	ticket, err := h.tickets.GetTicket(c.UserContext(), actor, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(ticket)})
}

// Transition POST /tickets/:id/transition.
func (h *TicketsHandler) Transition(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return util.NewUnauthorized("authentication required")
	}
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	var req dto.TransitionRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}

	ticket, err := h.transitions.Transition(c.UserContext(), actor, id, service.TransitionInput{
		NextStatus: req.Status,
		Comment:    req.Comment,
		Internal:   req.Internal,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(ticket)})
}

// Assign POST /tickets/:id/assign.
func (h *TicketsHandler) Assign(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return util.NewUnauthorized("authentication required")
	}
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	var req dto.AssignRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	if req.ToUserID == 0 {
		return util.NewValidationError("to_user_id required", nil)
	}

	ticket, err := h.assignments.Assign(c.UserContext(), actor, id, service.AssignInput{
		ToUserID: req.ToUserID,
		Reason:   req.Reason,
		NewTitle: req.NewTitle,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(ticket)})
}

// AutoAssign POST /tickets/:id/auto-assign.
func (h *TicketsHandler) AutoAssign(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return util.NewUnauthorized("authentication required")
	}
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	applied, err := h.assignments.ApplyAutoAssign(c.UserContext(), actor, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"applied": applied}})
}

// AddComment POST /tickets/:id/comments.
func (h *TicketsHandler) AddComment(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return util.NewUnauthorized("authentication required")
	}
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	var req dto.CreateCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}

	comment, err := h.tickets.AddComment(c.UserContext(), actor, id, req.Body, req.Internal)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": commentResponse(comment)})
}

// ListComments GET /tickets/:id/comments.
func (h *TicketsHandler) ListComments(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return util.NewUnauthorized("authentication required")
	}
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	comments, err := h.tickets.ListComments(c.UserContext(), actor, id)
	if err != nil {
		return err
	}
	items := make([]dto.CommentResponse, 0, len(comments))
	for i := range comments {
		items = append(items, commentResponse(&comments[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// AddAttachment POST /tickets/:id/attachments.
func (h *TicketsHandler) AddAttachment(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return util.NewUnauthorized("authentication required")
	}
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	var req dto.CreateAttachmentRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}

	attachment, err := h.tickets.AddAttachment(c.UserContext(), actor, id, service.AttachmentInput{
		StorageKey:  req.StorageKey,
		FileName:    req.FileName,
		ContentType: req.ContentType,
		SizeBytes:   req.SizeBytes,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": attachmentResponse(attachment)})
}

// ListAttachments GET /tickets/:id/attachments.
func (h *TicketsHandler) ListAttachments(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return util.NewUnauthorized("authentication required")
	}
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	attachments, err := h.tickets.ListAttachments(c.UserContext(), actor, id)
	if err != nil {
		return err
	}
	items := make([]dto.AttachmentResponse, 0, len(attachments))
	for i := range attachments {
		items = append(items, attachmentResponse(&attachments[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// ListAssignments GET /tickets/:id/assignments.
func (h *TicketsHandler) ListAssignments(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return util.NewUnauthorized("authentication required")
	}
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	if _, err := h.tickets.GetTicket(c.UserContext(), actor, id); err != nil {
		return err
	}
	records, err := h.assignments.ListByTicket(c.UserContext(), id)
	if err != nil {
		return err
	}
	items := make([]dto.AssignmentResponse, 0, len(records))
	for i := range records {
		items = append(items, dto.AssignmentResponse{
			ID:         records[i].ID,
			FromUserID: records[i].FromUserID,
			ToUserID:   records[i].ToUserID,
			Reason:     records[i].Reason,
			CreatedAt:  records[i].CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetAuditTrail GET /tickets/:id/audit.
func (h *TicketsHandler) GetAuditTrail(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return util.NewUnauthorized("authentication required")
	}
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	limit, offset := parsePagination(c)
	entries, err := h.tickets.GetAuditTrail(c.UserContext(), actor, id, limit, offset)
	if err != nil {
		return err
	}
	items := make([]dto.AuditEntryResponse, 0, len(entries))
	for i := range entries {
		items = append(items, dto.AuditEntryResponse{
			ID:        entries[i].ID,
			ActorID:   entries[i].ActorID,
			ActorName: entries[i].ActorName,
			Action:    string(entries[i].Action),
			Meta:      entries[i].Meta,
			CreatedAt: entries[i].CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

// ListActivity GET /activity.
func (h *TicketsHandler) ListActivity(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return util.NewUnauthorized("authentication required")
	}
	limit, offset := parsePagination(c)
	entries, err := h.tickets.ListActivity(c.UserContext(), actor, limit, offset)
	if err != nil {
		return err
	}
	items := make([]dto.ActivityEntryResponse, 0, len(entries))
	for i := range entries {
		items = append(items, dto.ActivityEntryResponse{
			ID:        entries[i].ID,
			ActorID:   entries[i].ActorID,
			Model:     entries[i].Model,
			ObjectID:  entries[i].ObjectID,
			Action:    string(entries[i].Action),
			Message:   entries[i].Message,
			CreatedAt: entries[i].CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

func ticketID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, util.NewValidationError("invalid ticket id", nil)
	}
	return id, nil
}

func parsePagination(c *fiber.Ctx) (limit, offset int) {
	limit = c.QueryInt("limit", 50)
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset = c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func parseTicketListQuery(c *fiber.Ctx) service.TicketListInput {
	input := service.TicketListInput{}
	input.Limit, input.Offset = parsePagination(c)

	if raw := c.Query("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			status := domain.TicketStatus(strings.ToUpper(strings.TrimSpace(part)))
			if status.IsValid() {
				input.Statuses = append(input.Statuses, status)
			}
		}
	}
	if v := c.QueryInt("category_id", 0); v > 0 {
		id := int64(v)
		input.CategoryID = &id
	}
	if v := c.QueryInt("priority_id", 0); v > 0 {
		id := int64(v)
		input.PriorityID = &id
	}
	if v := c.QueryInt("area_id", 0); v > 0 {
		id := int64(v)
		input.AreaID = &id
	}
	if v := c.QueryInt("assignee_id", 0); v > 0 {
		id := int64(v)
		input.AssigneeID = &id
	}
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		input.Search = &q
	}
	return input
}

func ticketSummary(t *domain.Ticket) dto.TicketSummary {
	return dto.TicketSummary{
		ID:         t.ID,
		Code:       t.Code,
		Title:      t.Title,
		Kind:       t.Kind,
		Status:     t.Status,
		CategoryID: t.CategoryID,
		PriorityID: t.PriorityID,
		AreaID:     t.AreaID,
		AssigneeID: t.AssigneeID,
		SLAHours:   t.SLAHoursValue(),
		DueAt:      t.DueAt(),
		CreatedAt:  t.CreatedAt,
		UpdatedAt:  t.UpdatedAt,
	}
}

func ticketDetail(t *domain.Ticket) dto.TicketDetailResponse {
	return dto.TicketDetailResponse{
		TicketSummary: ticketSummary(t),
		Description:   t.Description,
		RequesterID:   t.RequesterID,
		ResolvedAt:    t.ResolvedAt,
		ClosedAt:      t.ClosedAt,
	}
}

func commentResponse(comment *domain.Comment) dto.CommentResponse {
	return dto.CommentResponse{
		ID:         comment.ID,
		AuthorID:   comment.AuthorID,
		AuthorName: comment.AuthorName,
		Body:       comment.Body,
		IsInternal: comment.IsInternal,
		CreatedAt:  comment.CreatedAt,
	}
}

func attachmentResponse(attachment *domain.Attachment) dto.AttachmentResponse {
	return dto.AttachmentResponse{
		ID:          attachment.ID,
		FileName:    attachment.FileName,
		ContentType: attachment.ContentType,
		SizeBytes:   attachment.SizeBytes,
		StorageKey:  attachment.StorageKey,
		CreatedAt:   attachment.CreatedAt,
	}
}
