package dto

import (
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Kind        domain.TicketKind `json:"kind"`
	CategoryID  int64             `json:"category_id"`
	PriorityID  int64             `json:"priority_id"`
	AreaID      *int64            `json:"area_id"`
}

// TransitionRequest payload for status changes.
type TransitionRequest struct {
	Status   domain.TicketStatus `json:"status"`
	Comment  string              `json:"comment"`
	Internal bool                `json:"internal"`
}

// AssignRequest payload.
type AssignRequest struct {
	ToUserID int64  `json:"to_user_id"`
	Reason   string `json:"reason"`
	NewTitle string `json:"new_title"`
}

// CreateCommentRequest payload.
type CreateCommentRequest struct {
	Body     string `json:"body"`
	Internal bool   `json:"internal"`
}

// CreateAttachmentRequest payload. The file itself lives in object storage;
// only its metadata is recorded here.
type CreateAttachmentRequest struct {
	StorageKey  string `json:"storage_key"`
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
}

// TicketSummary response.
type TicketSummary struct {
	ID         int64               `json:"id"`
	Code       string              `json:"code"`
	Title      string              `json:"title"`
	Kind       domain.TicketKind   `json:"kind"`
	Status     domain.TicketStatus `json:"status"`
	CategoryID int64               `json:"category_id"`
	PriorityID int64               `json:"priority_id"`
	AreaID     *int64              `json:"area_id"`
	AssigneeID *int64              `json:"assignee_id"`
	SLAHours   int                 `json:"sla_hours"`
	DueAt      time.Time           `json:"due_at"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	TicketSummary
	Description string     `json:"description"`
	RequesterID int64      `json:"requester_id"`
	ResolvedAt  *time.Time `json:"resolved_at"`
	ClosedAt    *time.Time `json:"closed_at"`
}

// CommentResponse represents one thread entry.
type CommentResponse struct {
	ID         int64     `json:"id"`
	AuthorID   int64     `json:"author_id"`
	AuthorName string    `json:"author_name"`
	Body       string    `json:"body"`
	IsInternal bool      `json:"is_internal"`
	CreatedAt  time.Time `json:"created_at"`
}

// AttachmentResponse represents stored file metadata.
type AttachmentResponse struct {
	ID          int64     `json:"id"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	StorageKey  string    `json:"storage_key"`
	CreatedAt   time.Time `json:"created_at"`
}

// AssignmentResponse represents one routing record.
type AssignmentResponse struct {
	ID         int64     `json:"id"`
	FromUserID *int64    `json:"from_user_id"`
	ToUserID   int64     `json:"to_user_id"`
	Reason     string    `json:"reason"`
	CreatedAt  time.Time `json:"created_at"`
}

// AuditEntryResponse represents one audit trail entry.
type AuditEntryResponse struct {
	ID        int64          `json:"id"`
	ActorID   *int64         `json:"actor_id"`
	ActorName string         `json:"actor_name"`
	Action    string         `json:"action"`
	Meta      map[string]any `json:"meta"`
	CreatedAt time.Time      `json:"created_at"`
}

// ActivityEntryResponse represents one global feed entry.
type ActivityEntryResponse struct {
	ID        int64     `json:"id"`
	ActorID   *int64    `json:"actor_id"`
	Model     string    `json:"model"`
	ObjectID  int64     `json:"object_id"`
	Action    string    `json:"action"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
