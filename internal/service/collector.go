package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vilaca/taskomat/internal/api"
	"github.com/vilaca/taskomat/internal/domain"
)

// Task is one collection item: a recurring chore that should always
// have exactly one open issue. Loaded from a YAML file in the
// collection directory; the file name (without extension) is the key.
type Task struct {
	Key         string   `yaml:"-"`
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Labels      []string `yaml:"labels"`
	Assignees   []int    `yaml:"assignees"`
	Due         int      `yaml:"due"` // days until due, 0 means no due date
}

type taskFile struct {
	Taskomat *Task `yaml:"taskomat"`
}

// issueConfig is the engine-owned YAML block embedded in a note on
// every managed issue. It links the issue back to its collection key
// and tracks the ping bookkeeping.
type issueConfig struct {
	Key        string `yaml:"key"`
	BotCounter int    `yaml:"botcounter"`
	PingNote   int    `yaml:"ping_note,omitempty"`
}

// configNoteRegex matches the embedded config block inside a note
// body.
var configNoteRegex = regexp.MustCompile("(?ms)^```yml[\t ]*\r?$\n^# TaskOMat config[\t ]*\r?$\n(.*?)^```[\t ]*\r?$")

var errTasksFailed = errors.New("one or more tasks failed")

// Collector keeps the collection directory and the tracker in sync:
// every task has exactly one open issue, and already-open issues get a
// reminder ping instead of a duplicate.
type Collector struct {
	client   api.Client
	botLabel string
	logger   Logger
}

// NewCollector creates a new collector.
func NewCollector(client api.Client, botLabel string, logger Logger) *Collector {
	return &Collector{client: client, botLabel: botLabel, logger: logger}
}

// LoadCollection parses all YAML task files in a directory. Files
// without a taskomat block are skipped with a warning from the caller;
// unparsable files fail the load.
func LoadCollection(dir string) ([]Task, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read collection directory: %w", err)
	}

	var tasks []Task
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || (!strings.HasSuffix(name, ".yml") && !strings.HasSuffix(name, ".yaml")) {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to read task file %s: %w", name, err)
		}

		var file taskFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse task file %s: %w", name, err)
		}
		if file.Taskomat == nil {
			continue
		}

		task := *file.Taskomat
		task.Key = strings.TrimSuffix(strings.TrimSuffix(name, ".yaml"), ".yml")
		tasks = append(tasks, task)
	}

	return tasks, nil
}

// managedIssue pairs an open issue with its embedded config.
type managedIssue struct {
	issue        domain.Issue
	config       issueConfig
	configNoteID int
}

// Sync ensures every task has one open issue. Existing issues get a
// ping mention and a bumped botcounter; missing ones are created with
// the bot label and a fresh config note. A failing task is logged and
// does not stop the others.
func (c *Collector) Sync(ctx context.Context, tasks []Task, now time.Time) error {
	managed, err := c.loadManagedIssues(ctx)
	if err != nil {
		return err
	}

	failed := 0
	for _, task := range tasks {
		var taskErr error
		if m, ok := managed[task.Key]; ok {
			taskErr = c.ping(ctx, m)
		} else {
			taskErr = c.create(ctx, task, now)
		}
		if taskErr != nil {
			failed++
			c.logger.Printf("[Collector] task %q failed: %v", task.Key, taskErr)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", errTasksFailed, failed, len(tasks))
	}
	return nil
}

// loadManagedIssues finds all open bot-labelled issues that carry an
// embedded config note, indexed by task key.
func (c *Collector) loadManagedIssues(ctx context.Context) (map[string]managedIssue, error) {
	issues, err := c.client.ListIssues(ctx, api.IssueFilter{
		State:  domain.StateOpened,
		Labels: []string{c.botLabel},
	})
	if err != nil {
		return nil, err
	}

	managed := make(map[string]managedIssue)
	for _, issue := range issues {
		notes, err := c.client.ListNotes(ctx, issue.IID)
		if err != nil {
			return nil, err
		}

		cfg, noteID, found := findIssueConfig(notes)
		if !found {
			c.logger.Printf("[Collector] issue #%d carries the bot label but no config note; ignoring", issue.IID)
			continue
		}
		managed[cfg.Key] = managedIssue{issue: issue, config: cfg, configNoteID: noteID}
	}

	return managed, nil
}

// findIssueConfig scans the notes newest-first and returns the first
// parsable embedded config.
func findIssueConfig(notes []domain.Note) (issueConfig, int, bool) {
	for i := len(notes) - 1; i >= 0; i-- {
		match := configNoteRegex.FindStringSubmatch(notes[i].Body)
		if match == nil {
			continue
		}

		var cfg issueConfig
		if err := yaml.Unmarshal([]byte(match[1]), &cfg); err != nil || cfg.Key == "" {
			continue
		}
		return cfg, notes[i].ID, true
	}
	return issueConfig{}, 0, false
}

// ping reminds the assignees of an already-open issue: the previous
// ping note is superseded, not stacked.
func (c *Collector) ping(ctx context.Context, m managedIssue) error {
	if m.config.PingNote != 0 {
		if err := c.client.DeleteNote(ctx, m.issue.IID, m.config.PingNote); err != nil && !api.IsPermanent(err) {
			return err
		}
	}

	mention := "Ping...? :sleeping:"
	if m.issue.Assignee != nil {
		mention = "@" + m.issue.Assignee.Username + " " + mention
	}
	note, err := c.client.CreateNote(ctx, m.issue.IID, mention)
	if err != nil {
		return err
	}

	m.config.BotCounter++
	m.config.PingNote = note.ID
	return c.client.UpdateNote(ctx, m.issue.IID, m.configNoteID, configNoteBody(m.config))
}

// create opens a fresh issue for a task and attaches the config note.
func (c *Collector) create(ctx context.Context, task Task, now time.Time) error {
	labels := task.Labels
	hasBotLabel := false
	for _, l := range labels {
		if l == c.botLabel {
			hasBotLabel = true
			break
		}
	}
	if !hasBotLabel {
		labels = append(labels, c.botLabel)
	}

	newIssue := api.NewIssue{
		Title:       task.Title,
		Description: task.Description,
		Labels:      labels,
		AssigneeIDs: task.Assignees,
	}
	if task.Due > 0 {
		due := now.AddDate(0, 0, task.Due)
		newIssue.DueDate = &due
	}

	issue, err := c.client.CreateIssue(ctx, newIssue)
	if err != nil {
		return err
	}

	cfg := issueConfig{Key: task.Key, BotCounter: 1}
	if _, err := c.client.CreateNote(ctx, issue.IID, configNoteBody(cfg)); err != nil {
		return err
	}

	c.logger.Printf("[Collector] created issue #%d for task %q (%s)", issue.IID, task.Key, issue.WebURL)
	return nil
}

// configNoteBody renders the embedded config block.
func configNoteBody(cfg issueConfig) string {
	encoded, _ := yaml.Marshal(cfg)
	return ":tea: The following config is required for TaskOMat to work properly:\n\n" +
		"```yml\n# TaskOMat config\n" + string(encoded) + "```\n"
}
