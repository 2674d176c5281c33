package domain

import "time"

// Issue represents a GitLab issue with the fields the housekeeping
// rules operate on. This is a domain model (part of business logic);
// wire formats live in the api packages.
type Issue struct {
	IID          int
	ProjectID    string
	Title        string
	Labels       []string
	Assignee     *User
	DueDate      *time.Time
	State        string // StateOpened or StateClosed
	Confidential bool
	Locked       bool
	ClosedBy     *User
	CreatedAt    time.Time
	UpdatedAt    time.Time
	WebURL       string
}

// Issue states as reported by the tracker.
const (
	StateOpened = "opened"
	StateClosed = "closed"
)

// IsClosed returns true if the issue is in the closed state.
func (i *Issue) IsClosed() bool {
	return i.State == StateClosed
}

// HasLabel returns true if the issue carries the given label.
func (i *Issue) HasLabel(name string) bool {
	for _, l := range i.Labels {
		if l == name {
			return true
		}
	}
	return false
}

// PastDue returns true if the issue has a due date that lies at least
// a full day before now. Due dates are date-only values, so an issue
// due "today" is not past due yet.
func (i *Issue) PastDue(now time.Time) bool {
	if i.DueDate == nil {
		return false
	}
	return now.Sub(*i.DueDate) >= 24*time.Hour
}
