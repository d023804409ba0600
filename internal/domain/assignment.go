package domain

import "time"

// AutoAssignReason marks assignments produced by rule matching.
const AutoAssignReason = "auto-assign"

// Assignment is one append-only assignment history record. FromUserID is the
// previous assignee; nil means the ticket was previously unassigned.
type Assignment struct {
	ID         int64
	TicketID   int64
	FromUserID *int64
	ToUserID   int64
	Reason     string
	CreatedAt  time.Time
}
