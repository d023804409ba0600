package domain

import "time"

// AutoAssignRule maps an optional (category, area) pair to a technician.
// The pair is unique among rules; IsActive soft-disables a rule without
// deleting it.
type AutoAssignRule struct {
	ID         int64
	CategoryID *int64
	AreaID     *int64
	TechID     int64
	IsActive   bool
	CreatedAt  time.Time
}
