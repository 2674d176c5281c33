package api

import (
	"context"
	"time"

	"github.com/vilaca/taskomat/internal/domain"
)

const (
	// DefaultRetryAttempts bounds how often a transient failure is
	// retried before it is given up on.
	DefaultRetryAttempts = 3
	// DefaultRetryBackoff is the initial delay between attempts; it
	// doubles after every failure.
	DefaultRetryBackoff = 500 * time.Millisecond
)

// RetryingClient wraps a Client with bounded retries and backoff for
// transient failures. Follows Decorator pattern to add retry behaviour
// without modifying the underlying client. Permanent failures are
// returned immediately; the reconciler turns them into skipped issues.
type RetryingClient struct {
	client   Client
	attempts int
	backoff  time.Duration
}

// NewRetryingClient creates a new retrying client wrapper. attempts
// and backoff fall back to the defaults when zero.
func NewRetryingClient(client Client, attempts int, backoff time.Duration) *RetryingClient {
	if attempts <= 0 {
		attempts = DefaultRetryAttempts
	}
	if backoff <= 0 {
		backoff = DefaultRetryBackoff
	}
	return &RetryingClient{client: client, attempts: attempts, backoff: backoff}
}

// do runs fn up to the configured number of attempts, sleeping between
// transient failures. The context cancels the wait.
func (c *RetryingClient) do(ctx context.Context, fn func() error) error {
	var err error
	delay := c.backoff

	for attempt := 0; attempt < c.attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(delay):
				delay *= 2
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err = fn()
		if err == nil || IsPermanent(err) {
			return err
		}
	}

	return err
}

func (c *RetryingClient) ListIssues(ctx context.Context, filter IssueFilter) ([]domain.Issue, error) {
	var issues []domain.Issue
	err := c.do(ctx, func() error {
		var callErr error
		issues, callErr = c.client.ListIssues(ctx, filter)
		return callErr
	})
	return issues, err
}

func (c *RetryingClient) GetIssue(ctx context.Context, iid int) (domain.Issue, error) {
	var issue domain.Issue
	err := c.do(ctx, func() error {
		var callErr error
		issue, callErr = c.client.GetIssue(ctx, iid)
		return callErr
	})
	return issue, err
}

func (c *RetryingClient) ListNotes(ctx context.Context, iid int) ([]domain.Note, error) {
	var notes []domain.Note
	err := c.do(ctx, func() error {
		var callErr error
		notes, callErr = c.client.ListNotes(ctx, iid)
		return callErr
	})
	return notes, err
}

func (c *RetryingClient) SetLabels(ctx context.Context, iid int, add, remove []string) error {
	return c.do(ctx, func() error { return c.client.SetLabels(ctx, iid, add, remove) })
}

func (c *RetryingClient) SetAssignee(ctx context.Context, iid int, userID int) error {
	return c.do(ctx, func() error { return c.client.SetAssignee(ctx, iid, userID) })
}

func (c *RetryingClient) SetConfidential(ctx context.Context, iid int, confidential bool) error {
	return c.do(ctx, func() error { return c.client.SetConfidential(ctx, iid, confidential) })
}

func (c *RetryingClient) SetLocked(ctx context.Context, iid int, locked bool) error {
	return c.do(ctx, func() error { return c.client.SetLocked(ctx, iid, locked) })
}

func (c *RetryingClient) SetState(ctx context.Context, iid int, state string) error {
	return c.do(ctx, func() error { return c.client.SetState(ctx, iid, state) })
}

func (c *RetryingClient) CreateIssue(ctx context.Context, issue NewIssue) (domain.Issue, error) {
	var created domain.Issue
	err := c.do(ctx, func() error {
		var callErr error
		created, callErr = c.client.CreateIssue(ctx, issue)
		return callErr
	})
	return created, err
}

func (c *RetryingClient) CreateNote(ctx context.Context, iid int, body string) (domain.Note, error) {
	var note domain.Note
	err := c.do(ctx, func() error {
		var callErr error
		note, callErr = c.client.CreateNote(ctx, iid, body)
		return callErr
	})
	return note, err
}

func (c *RetryingClient) UpdateNote(ctx context.Context, iid, noteID int, body string) error {
	return c.do(ctx, func() error { return c.client.UpdateNote(ctx, iid, noteID, body) })
}

func (c *RetryingClient) DeleteNote(ctx context.Context, iid, noteID int) error {
	return c.do(ctx, func() error { return c.client.DeleteNote(ctx, iid, noteID) })
}
