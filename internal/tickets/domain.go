// Package tickets implements the internal support ticket tracker.
package tickets

import "time"

// Status is the lifecycle state of a ticket.
type Status string

// Ticket states. A closed ticket can be reopened back to in_progress.
const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusClosed     Status = "closed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusClosed:
		return true
	}
	return false
}

// Label returns the status as shown in listings.
func (s Status) Label() string {
	switch s {
	case StatusOpen:
		return "Open"
	case StatusInProgress:
		return "In progress"
	case StatusClosed:
		return "Closed"
	}
	return string(s)
}

// Ticket is a support request raised by an administrator.
type Ticket struct {
	ID           int64
	Code         string
	Title        string
	Description  string
	Status       Status
	ReporterID   int64
	ReporterName string
	AssigneeID   *int64
	AssigneeName string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Comment is a follow-up note on a ticket.
type Comment struct {
	ID         int64
	TicketID   int64
	AuthorID   int64
	AuthorName string
	Body       string
	CreatedAt  time.Time
}

// Filters narrows the ticket listing. Zero values mean "no filter".
type Filters struct {
	Status   Status
	Page     int
	PageSize int
}
