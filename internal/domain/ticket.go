package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "OPEN"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusResolved   TicketStatus = "RESOLVED"
	TicketStatusClosed     TicketStatus = "CLOSED"
)

// statusLabels maps statuses to the labels used in activity messages.
var statusLabels = map[TicketStatus]string{
	TicketStatusOpen:       "Open",
	TicketStatusInProgress: "In Progress",
	TicketStatusResolved:   "Resolved",
	TicketStatusClosed:     "Closed",
}

// IsValid reports whether the status is a recognized lifecycle state.
func (s TicketStatus) IsValid() bool {
	_, ok := statusLabels[s]
	return ok
}

// Label returns the human-readable label for the status.
func (s TicketStatus) Label() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return string(s)
}

// TicketKind classifies the functional nature of a ticket.
type TicketKind string

const (
	TicketKindIncident TicketKind = "INCIDENT"
	TicketKindRequest  TicketKind = "REQUEST"
)

// DefaultSLAHours applies when a priority carries no SLA duration.
const DefaultSLAHours = 72

// Ticket is the aggregate for support requests.
//
// SLAHours is denormalized from the ticket's priority on load so SLA
// derivations never need a second query. ResolvedAt and ClosedAt record the
// first time each milestone was reached and are never cleared by a re-open.
type Ticket struct {
	ID          int64
	Code        string
	Title       string
	Description string
	Kind        TicketKind
	CategoryID  int64
	PriorityID  int64
	AreaID      *int64
	RequesterID int64
	AssigneeID  *int64
	Status      TicketStatus
	SLAHours    int
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ResolvedAt  *time.Time
	ClosedAt    *time.Time
}

// SLAHoursValue returns the SLA duration in hours, falling back to the
// default when the priority carried none.
func (t *Ticket) SLAHoursValue() int {
	if t.SLAHours <= 0 {
		return DefaultSLAHours
	}
	return t.SLAHours
}

// DueAt is the moment the SLA expires.
func (t *Ticket) DueAt() time.Time {
	return t.CreatedAt.Add(time.Duration(t.SLAHoursValue()) * time.Hour)
}

// RemainingHours is the time left before the SLA expires, negative once past due.
func (t *Ticket) RemainingHours(now time.Time) float64 {
	return t.DueAt().Sub(now).Hours()
}

// ElapsedHours is the time since the ticket was created.
func (t *Ticket) ElapsedHours(now time.Time) float64 {
	return now.Sub(t.CreatedAt).Hours()
}

// IsOpenLike reports whether the ticket still counts against its SLA.
func (t *Ticket) IsOpenLike() bool {
	return t.Status == TicketStatusOpen || t.Status == TicketStatusInProgress
}

// IsOverdue reports whether the SLA expired while the ticket is still open.
func (t *Ticket) IsOverdue(now time.Time) bool {
	return t.IsOpenLike() && t.RemainingHours(now) < 0
}

// IsWarning reports whether the ticket is inside the final 20% of its SLA window.
func (t *Ticket) IsWarning(now time.Time) bool {
	remaining := t.RemainingHours(now)
	return t.IsOpenLike() && remaining >= 0 && remaining <= 0.2*float64(t.SLAHoursValue())
}
