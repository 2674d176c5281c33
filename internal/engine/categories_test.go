package engine

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/vilaca/taskomat/internal/domain"
)

// TestResolveCategory tests the derivation invariant: category label
// present iff at least one child label is present, for all relevant
// combinations including closed issues.
func TestResolveCategory(t *testing.T) {
	spec := domain.CategorySpec{
		Category: "area::infra",
		Children: []string{"terraform", "ansible"},
	}

	tests := []struct {
		name   string
		state  string
		labels []string
		want   LabelDiff
	}{
		{"child present, category absent", domain.StateOpened, []string{"terraform"}, LabelDiff{Add: []string{"area::infra"}}},
		{"child present, category present", domain.StateOpened, []string{"ansible", "area::infra"}, LabelDiff{}},
		{"no child, category present", domain.StateOpened, []string{"bug", "area::infra"}, LabelDiff{Remove: []string{"area::infra"}}},
		{"no child, category absent", domain.StateOpened, []string{"bug"}, LabelDiff{}},
		{"empty label set", domain.StateOpened, nil, LabelDiff{}},
		{"closed issue still derived", domain.StateClosed, []string{"terraform"}, LabelDiff{Add: []string{"area::infra"}}},
		{"closed issue still cleaned", domain.StateClosed, []string{"area::infra"}, LabelDiff{Remove: []string{"area::infra"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issue := &domain.Issue{State: tt.state, Labels: tt.labels}

			diff := ResolveCategory(issue, spec)

			if !cmp.Equal(tt.want, diff) {
				t.Errorf("unexpected diff: %s", cmp.Diff(tt.want, diff))
			}
		})
	}
}

// TestResolveCategory_SkipClosed tests the opt-out parity toggle with
// the group resolver's IncludeClosed.
func TestResolveCategory_SkipClosed(t *testing.T) {
	spec := domain.CategorySpec{
		Category:   "area::infra",
		Children:   []string{"terraform"},
		SkipClosed: true,
	}
	issue := &domain.Issue{State: domain.StateClosed, Labels: []string{"terraform"}}

	diff := ResolveCategory(issue, spec)

	if !diff.Empty() {
		t.Errorf("expected closed issue to be skipped, got %+v", diff)
	}
}
