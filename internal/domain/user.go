package domain

import "time"

// Role classifies what a user may do with tickets.
type Role string

const (
	RoleAdministrator Role = "ADMINISTRATOR"
	RoleTechnician    Role = "TECHNICIAN"
	RoleRequester     Role = "REQUESTER"
)

// User is the caller identity consumed by the engines.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	Role         Role
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsAdmin reports whether the user holds the administrator role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdministrator
}

// IsTech reports whether the user holds the technician role.
func (u *User) IsTech() bool {
	return u != nil && u.Role == RoleTechnician
}

// Owns reports whether the user is the ticket's requester.
func (u *User) Owns(t *Ticket) bool {
	return u != nil && t != nil && u.ID == t.RequesterID
}
