package gitlab

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/vilaca/taskomat/internal/api"
	"github.com/vilaca/taskomat/internal/domain"
)

// pageSize is the tracker's maximum page size; listing endpoints loop
// until a short page signals the end.
const pageSize = 100

const dueDateFormat = "2006-01-02"

// Client implements api.Client for GitLab's REST v4 API.
// Follows Single Responsibility Principle - only handles GitLab API
// communication; rule logic lives in the engine package.
type Client struct {
	baseURL    string
	token      string
	project    string // URL-escaped project path or numeric ID
	httpClient HTTPClient
}

// HTTPClient interface for HTTP operations (allows mocking in tests).
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// NewClient creates a new GitLab client.
// Uses dependency injection for HTTPClient (IoC).
func NewClient(config api.ClientConfig, httpClient HTTPClient) *Client {
	return &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		token:      config.Token,
		project:    url.PathEscape(config.Project),
		httpClient: httpClient,
	}
}

// ListIssues retrieves all issues matching the filter, following the
// pagination loop until a short page.
func (c *Client) ListIssues(ctx context.Context, filter api.IssueFilter) ([]domain.Issue, error) {
	params := url.Values{}
	if filter.State != "" {
		params.Set("state", filter.State)
	}
	if len(filter.Labels) > 0 {
		params.Set("labels", strings.Join(filter.Labels, ","))
	}
	if !filter.UpdatedBefore.IsZero() {
		params.Set("updated_before", filter.UpdatedBefore.UTC().Format(time.RFC3339))
	}

	var issues []domain.Issue
	for page := 1; ; page++ {
		params.Set("per_page", strconv.Itoa(pageSize))
		params.Set("page", strconv.Itoa(page))

		var glIssues []gitlabIssue
		if err := c.doRequest(ctx, http.MethodGet, c.issuesPath(), params, &glIssues); err != nil {
			return nil, fmt.Errorf("failed to list issues: %w", err)
		}

		for _, gli := range glIssues {
			issues = append(issues, convertIssue(gli))
		}
		if len(glIssues) < pageSize {
			break
		}
	}

	return issues, nil
}

// GetIssue retrieves a single issue by its project-scoped iid.
func (c *Client) GetIssue(ctx context.Context, iid int) (domain.Issue, error) {
	var glIssue gitlabIssue
	if err := c.doRequest(ctx, http.MethodGet, c.issuePath(iid), nil, &glIssue); err != nil {
		return domain.Issue{}, fmt.Errorf("failed to get issue %d: %w", iid, err)
	}
	return convertIssue(glIssue), nil
}

// ListNotes retrieves all notes of an issue in chronological order.
func (c *Client) ListNotes(ctx context.Context, iid int) ([]domain.Note, error) {
	params := url.Values{}
	params.Set("sort", "asc")
	params.Set("order_by", "created_at")

	var notes []domain.Note
	for page := 1; ; page++ {
		params.Set("per_page", strconv.Itoa(pageSize))
		params.Set("page", strconv.Itoa(page))

		var glNotes []gitlabNote
		if err := c.doRequest(ctx, http.MethodGet, c.issuePath(iid)+"/notes", params, &glNotes); err != nil {
			return nil, fmt.Errorf("failed to list notes for issue %d: %w", iid, err)
		}

		for _, gln := range glNotes {
			notes = append(notes, convertNote(gln))
		}
		if len(glNotes) < pageSize {
			break
		}
	}

	// The engine depends on chronological order; don't rely on the
	// server honoring the sort parameter.
	sort.SliceStable(notes, func(i, j int) bool {
		if notes[i].CreatedAt.Equal(notes[j].CreatedAt) {
			return notes[i].ID < notes[j].ID
		}
		return notes[i].CreatedAt.Before(notes[j].CreatedAt)
	})

	return notes, nil
}

// SetLabels adds and removes labels as a single delta update.
func (c *Client) SetLabels(ctx context.Context, iid int, add, remove []string) error {
	params := url.Values{}
	if len(add) > 0 {
		params.Set("add_labels", strings.Join(add, ","))
	}
	if len(remove) > 0 {
		params.Set("remove_labels", strings.Join(remove, ","))
	}
	if len(params) == 0 {
		return nil
	}
	return c.updateIssue(ctx, iid, params)
}

// SetAssignee assigns the issue to a single user.
func (c *Client) SetAssignee(ctx context.Context, iid int, userID int) error {
	params := url.Values{}
	params.Set("assignee_ids", strconv.Itoa(userID))
	return c.updateIssue(ctx, iid, params)
}

// SetConfidential toggles the confidential flag.
func (c *Client) SetConfidential(ctx context.Context, iid int, confidential bool) error {
	params := url.Values{}
	params.Set("confidential", strconv.FormatBool(confidential))
	return c.updateIssue(ctx, iid, params)
}

// SetLocked toggles the discussion lock.
func (c *Client) SetLocked(ctx context.Context, iid int, locked bool) error {
	params := url.Values{}
	params.Set("discussion_locked", strconv.FormatBool(locked))
	return c.updateIssue(ctx, iid, params)
}

// SetState transitions the issue between opened and closed.
func (c *Client) SetState(ctx context.Context, iid int, state string) error {
	event := "reopen"
	if state == domain.StateClosed {
		event = "close"
	}
	params := url.Values{}
	params.Set("state_event", event)
	return c.updateIssue(ctx, iid, params)
}

// CreateIssue posts a new issue.
func (c *Client) CreateIssue(ctx context.Context, issue api.NewIssue) (domain.Issue, error) {
	params := url.Values{}
	params.Set("title", issue.Title)
	params.Set("description", issue.Description)
	if len(issue.Labels) > 0 {
		params.Set("labels", strings.Join(issue.Labels, ","))
	}
	for _, id := range issue.AssigneeIDs {
		params.Add("assignee_ids[]", strconv.Itoa(id))
	}
	if issue.DueDate != nil {
		params.Set("due_date", issue.DueDate.Format(dueDateFormat))
	}

	var glIssue gitlabIssue
	if err := c.doRequest(ctx, http.MethodPost, c.issuesPath(), params, &glIssue); err != nil {
		return domain.Issue{}, fmt.Errorf("failed to create issue: %w", err)
	}
	return convertIssue(glIssue), nil
}

// CreateNote posts a new note on an issue.
func (c *Client) CreateNote(ctx context.Context, iid int, body string) (domain.Note, error) {
	params := url.Values{}
	params.Set("body", body)

	var glNote gitlabNote
	if err := c.doRequest(ctx, http.MethodPost, c.issuePath(iid)+"/notes", params, &glNote); err != nil {
		return domain.Note{}, fmt.Errorf("failed to create note on issue %d: %w", iid, err)
	}
	return convertNote(glNote), nil
}

// UpdateNote replaces the body of an existing note.
func (c *Client) UpdateNote(ctx context.Context, iid, noteID int, body string) error {
	params := url.Values{}
	params.Set("body", body)
	if err := c.doRequest(ctx, http.MethodPut, c.notePath(iid, noteID), params, nil); err != nil {
		return fmt.Errorf("failed to update note %d on issue %d: %w", noteID, iid, err)
	}
	return nil
}

// DeleteNote removes an existing note.
func (c *Client) DeleteNote(ctx context.Context, iid, noteID int) error {
	if err := c.doRequest(ctx, http.MethodDelete, c.notePath(iid, noteID), nil, nil); err != nil {
		return fmt.Errorf("failed to delete note %d on issue %d: %w", noteID, iid, err)
	}
	return nil
}

func (c *Client) updateIssue(ctx context.Context, iid int, params url.Values) error {
	if err := c.doRequest(ctx, http.MethodPut, c.issuePath(iid), params, nil); err != nil {
		return fmt.Errorf("failed to update issue %d: %w", iid, err)
	}
	return nil
}

func (c *Client) issuesPath() string {
	return fmt.Sprintf("%s/api/v4/projects/%s/issues", c.baseURL, c.project)
}

func (c *Client) issuePath(iid int) string {
	return fmt.Sprintf("%s/%d", c.issuesPath(), iid)
}

func (c *Client) notePath(iid, noteID int) string {
	return fmt.Sprintf("%s/notes/%d", c.issuePath(iid), noteID)
}

// doRequest performs an HTTP request against the GitLab API. Query
// parameters carry the payload for write calls as well; the v4 API
// accepts them for PUT and POST. Non-2xx responses are returned as
// *api.StatusError so callers can classify transient failures.
func (c *Client) doRequest(ctx context.Context, method, rawURL string, params url.Values, result interface{}) error {
	if len(params) > 0 {
		rawURL = rawURL + "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("PRIVATE-TOKEN", c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &api.StatusError{Status: resp.StatusCode, URL: rawURL, Body: string(body)}
	}

	if result == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// convertIssue converts a GitLab issue to the domain model.
func convertIssue(gli gitlabIssue) domain.Issue {
	issue := domain.Issue{
		IID:          gli.IID,
		ProjectID:    strconv.Itoa(gli.ProjectID),
		Title:        gli.Title,
		Labels:       gli.Labels,
		State:        gli.State,
		Confidential: gli.Confidential,
		Locked:       gli.DiscussionLocked,
		CreatedAt:    gli.CreatedAt,
		UpdatedAt:    gli.UpdatedAt,
		WebURL:       gli.WebURL,
	}

	if len(gli.Assignees) > 0 {
		issue.Assignee = convertUser(gli.Assignees[0])
	}
	if gli.ClosedBy != nil {
		issue.ClosedBy = convertUser(*gli.ClosedBy)
	}
	if gli.DueDate != "" {
		if due, err := time.ParseInLocation(dueDateFormat, gli.DueDate, time.UTC); err == nil {
			issue.DueDate = &due
		}
	}

	return issue
}

// convertNote converts a GitLab note to the domain model.
func convertNote(gln gitlabNote) domain.Note {
	return domain.Note{
		ID:        gln.ID,
		Author:    *convertUser(gln.Author),
		Body:      gln.Body,
		System:    gln.System,
		CreatedAt: gln.CreatedAt,
		UpdatedAt: gln.UpdatedAt,
	}
}

func convertUser(glu gitlabUser) *domain.User {
	return &domain.User{ID: glu.ID, Username: glu.Username, Name: glu.Name}
}

// GitLab API response types
type gitlabUser struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

type gitlabIssue struct {
	IID              int          `json:"iid"`
	ProjectID        int          `json:"project_id"`
	Title            string       `json:"title"`
	Labels           []string     `json:"labels"`
	Assignees        []gitlabUser `json:"assignees"`
	DueDate          string       `json:"due_date"`
	State            string       `json:"state"`
	Confidential     bool         `json:"confidential"`
	DiscussionLocked bool         `json:"discussion_locked"`
	ClosedBy         *gitlabUser  `json:"closed_by"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
	WebURL           string       `json:"web_url"`
}

type gitlabNote struct {
	ID        int        `json:"id"`
	Body      string     `json:"body"`
	System    bool       `json:"system"`
	Author    gitlabUser `json:"author"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}
