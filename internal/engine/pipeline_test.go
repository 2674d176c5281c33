package engine

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/vilaca/taskomat/internal/domain"
)

// TestReconcile_ComposesAllStages tests one pass through the full
// pipeline: group resolution, category derivation, lifecycle rules and
// the counter engine all contribute to a single normalized change set.
func TestReconcile_ComposesAllStages(t *testing.T) {
	// Arrange
	ctx := lifecycleContext()
	ctx.Groups = []domain.GroupSpec{workflowGroup()}
	ctx.Categories = []domain.CategorySpec{{
		Category: "area::infra",
		Children: []string{"terraform"},
	}}

	dev := domain.User{ID: 7, Username: "dev"}
	issue := &domain.Issue{
		IID:      1,
		State:    domain.StateOpened,
		Labels:   []string{"workflow::todo", "workflow::doing", "terraform", "Counter", "Public"},
		Assignee: &dev,
	}
	notes := []domain.Note{
		{ID: 1, Body: "!count 5", CreatedAt: time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC)},
	}

	// Act
	cs := Reconcile(issue, notes, ctx)

	// Assert
	wantLabels := LabelDiff{
		Add:    []string{"area::infra"},
		Remove: []string{"workflow::todo"},
	}
	if !cmp.Equal(wantLabels, cs.Labels) {
		t.Errorf("unexpected label diff: %s", cmp.Diff(wantLabels, cs.Labels))
	}
	if len(cs.CreateNotes) != 1 {
		t.Errorf("expected one counter summary note, got %d", len(cs.CreateNotes))
	}
	if cs.State != nil || cs.Confidential != nil || cs.Locked != nil || cs.Assignee != nil {
		t.Errorf("unexpected lifecycle mutations: %+v", cs)
	}
}

// TestReconcile_Deterministic tests that identical snapshots always
// produce identical change sets.
func TestReconcile_Deterministic(t *testing.T) {
	ctx := lifecycleContext()
	ctx.Groups = []domain.GroupSpec{workflowGroup()}

	issue := func() *domain.Issue {
		return &domain.Issue{
			State:  domain.StateOpened,
			Labels: []string{"workflow::done", "workflow::todo", "Obsolete"},
		}
	}

	first := Reconcile(issue(), nil, ctx)
	second := Reconcile(issue(), nil, ctx)

	if !cmp.Equal(first, second) {
		t.Errorf("pipeline not deterministic: %s", cmp.Diff(first, second))
	}
}
