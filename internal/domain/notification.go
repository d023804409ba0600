package domain

import "time"

// Notification is a best-effort in-app message for a user. Losing one never
// loses the underlying AuditLog fact.
type Notification struct {
	ID        int64
	UserID    int64
	Message   string
	URL       string
	IsRead    bool
	CreatedAt time.Time
}
