package domain

import "time"

// Attachment stores metadata for a file attached to a ticket. Immutable.
type Attachment struct {
	ID          int64
	TicketID    int64
	UploaderID  int64
	StorageKey  string
	FileName    string
	ContentType string
	SizeBytes   int64
	CreatedAt   time.Time
}
