package domain

// Category groups tickets by subject matter.
type Category struct {
	ID          int64
	Name        string
	Description string
	IsActive    bool
}

// Priority carries the SLA duration granted to tickets created with it.
type Priority struct {
	ID       int64
	Name     string
	SLAHours int
}

// Area is an optional organizational location for a ticket.
type Area struct {
	ID   int64
	Name string
}
