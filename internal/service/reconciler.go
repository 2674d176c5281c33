package service

import (
	"context"
	"sync"
	"time"

	"github.com/vilaca/taskomat/internal/api"
	"github.com/vilaca/taskomat/internal/domain"
	"github.com/vilaca/taskomat/internal/engine"
)

// Reconciler drives the rule pipeline over a work-set of issues and
// applies the resulting minimal mutation batches through the tracker
// client. Issues are independent of each other, so they are processed
// by a bounded worker pool; each issue's own pipeline stays sequential.
type Reconciler struct {
	client  api.Client
	workers int
	logger  Logger
}

// NewReconciler creates a new reconciler. workers below 1 falls back
// to sequential processing.
func NewReconciler(client api.Client, workers int, logger Logger) *Reconciler {
	if workers < 1 {
		workers = 1
	}
	return &Reconciler{client: client, workers: workers, logger: logger}
}

// WorkSet returns all issues whose last update is older than the
// cutoff. Freshly touched issues are left alone so the engine never
// races a human mid-edit.
func (r *Reconciler) WorkSet(ctx context.Context, cutoff time.Time) ([]domain.Issue, error) {
	return r.client.ListIssues(ctx, api.IssueFilter{
		State:         "all",
		UpdatedBefore: cutoff,
	})
}

// Run processes the work-set and returns the run report. A failing
// issue is recorded and skipped; it never aborts the batch for the
// others.
func (r *Reconciler) Run(ctx context.Context, rules *engine.Context, issues []domain.Issue) *Report {
	start := time.Now()
	report := &Report{StartedAt: rules.Now}

	jobs := make(chan domain.Issue)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for issue := range jobs {
				mutations, err := r.reconcileIssue(ctx, rules, issue)

				mu.Lock()
				report.Processed++
				if err != nil {
					report.Skipped = append(report.Skipped, SkippedIssue{IID: issue.IID, Reason: err.Error()})
				} else if mutations > 0 {
					report.Changed++
					report.Mutations += mutations
				}
				mu.Unlock()
			}
		}()
	}

	for _, issue := range issues {
		jobs <- issue
	}
	close(jobs)
	wg.Wait()

	report.Duration = time.Since(start).Round(time.Millisecond).String()
	return report
}

// ReconcileOne fetches and processes a single issue, the webhook
// entry point.
func (r *Reconciler) ReconcileOne(ctx context.Context, rules *engine.Context, iid int) error {
	issue, err := r.client.GetIssue(ctx, iid)
	if err != nil {
		return err
	}
	_, err = r.reconcileIssue(ctx, rules, issue)
	return err
}

// reconcileIssue runs one full reconciliation pass: build the
// snapshot, evaluate the pipeline, apply the diff. Returns the number
// of mutation calls issued.
func (r *Reconciler) reconcileIssue(ctx context.Context, rules *engine.Context, issue domain.Issue) (int, error) {
	notes, err := r.client.ListNotes(ctx, issue.IID)
	if err != nil {
		r.logger.Printf("[Reconciler] issue #%d: failed to load notes: %v", issue.IID, err)
		return 0, err
	}

	changes := engine.Reconcile(&issue, notes, rules)
	if changes.Empty() {
		return 0, nil
	}

	mutations, err := r.applyChanges(ctx, issue.IID, changes)
	if err != nil {
		r.logger.Printf("[Reconciler] issue #%d: failed after %d mutations: %v", issue.IID, mutations, err)
		return mutations, err
	}

	r.logger.Printf("[Reconciler] issue #%d: applied %d mutations (%s)", issue.IID, mutations, issue.WebURL)
	return mutations, nil
}

// applyChanges issues the minimal set of mutation calls for one change
// set. Every call is itself idempotent, so a failure partway through
// is safe: the next run recomputes the remaining delta.
func (r *Reconciler) applyChanges(ctx context.Context, iid int, changes engine.ChangeSet) (int, error) {
	mutations := 0
	step := func(err error) error {
		if err != nil {
			return err
		}
		mutations++
		return nil
	}

	if !changes.Labels.Empty() {
		if err := step(r.client.SetLabels(ctx, iid, changes.Labels.Add, changes.Labels.Remove)); err != nil {
			return mutations, err
		}
	}
	if changes.Assignee != nil {
		if err := step(r.client.SetAssignee(ctx, iid, changes.Assignee.ID)); err != nil {
			return mutations, err
		}
	}
	if changes.Confidential != nil {
		if err := step(r.client.SetConfidential(ctx, iid, *changes.Confidential)); err != nil {
			return mutations, err
		}
	}
	if changes.State != nil {
		if err := step(r.client.SetState(ctx, iid, *changes.State)); err != nil {
			return mutations, err
		}
	}
	if changes.Locked != nil {
		if err := step(r.client.SetLocked(ctx, iid, *changes.Locked)); err != nil {
			return mutations, err
		}
	}
	for _, noteID := range changes.DeleteNotes {
		if err := step(r.client.DeleteNote(ctx, iid, noteID)); err != nil {
			return mutations, err
		}
	}
	for noteID, body := range changes.UpdateNotes {
		if err := step(r.client.UpdateNote(ctx, iid, noteID, body)); err != nil {
			return mutations, err
		}
	}
	for _, body := range changes.CreateNotes {
		if _, err := r.client.CreateNote(ctx, iid, body); err != nil {
			return mutations, err
		}
		mutations++
	}

	return mutations, nil
}
