package api

import (
	"context"
	"time"

	"github.com/vilaca/taskomat/internal/domain"
)

// IssueFilter narrows ListIssues. Zero values mean "no constraint".
type IssueFilter struct {
	State         string    // domain.StateOpened, domain.StateClosed or "all"
	Labels        []string  // issues must carry all of these
	UpdatedBefore time.Time // only issues last updated before this instant
}

// ReadClient defines the read side of the tracker.
// Follows Interface Segregation Principle - small, focused interface.
type ReadClient interface {
	// ListIssues returns the issues matching the filter.
	ListIssues(ctx context.Context, filter IssueFilter) ([]domain.Issue, error)

	// GetIssue returns a single issue by its project-scoped iid.
	GetIssue(ctx context.Context, iid int) (domain.Issue, error)

	// ListNotes returns an issue's notes in chronological order.
	ListNotes(ctx context.Context, iid int) ([]domain.Note, error)
}

// WriteClient defines the mutations the reconciler may issue. Every
// call is a minimal delta; the engine never issues blind absolute
// writes, which keeps retries safe.
type WriteClient interface {
	SetLabels(ctx context.Context, iid int, add, remove []string) error
	SetAssignee(ctx context.Context, iid int, userID int) error
	SetConfidential(ctx context.Context, iid int, confidential bool) error
	SetLocked(ctx context.Context, iid int, locked bool) error
	SetState(ctx context.Context, iid int, state string) error

	CreateIssue(ctx context.Context, issue NewIssue) (domain.Issue, error)
	CreateNote(ctx context.Context, iid int, body string) (domain.Note, error)
	UpdateNote(ctx context.Context, iid, noteID int, body string) error
	DeleteNote(ctx context.Context, iid, noteID int) error
}

// Client is the full tracker surface consumed by the services.
type Client interface {
	ReadClient
	WriteClient
}

// NewIssue holds the fields for issue creation.
type NewIssue struct {
	Title       string
	Description string
	Labels      []string
	AssigneeIDs []int
	DueDate     *time.Time
}

// ClientConfig holds common configuration for tracker clients.
type ClientConfig struct {
	BaseURL string
	Token   string
	Project string
}
