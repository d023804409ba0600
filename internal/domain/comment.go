package domain

import "time"

// Comment is an immutable note on a ticket. Internal comments are hidden
// from the requester.
type Comment struct {
	ID         int64
	TicketID   int64
	AuthorID   int64
	AuthorName string
	Body       string
	IsInternal bool
	CreatedAt  time.Time
}
