package engine

import "github.com/vilaca/taskomat/internal/domain"

// Reconcile runs the full rule pipeline against one issue snapshot in
// the fixed order: label groups, label categories, lifecycle rules,
// counter engine. Group and category specs operate on disjoint label
// sets (validated at startup), so their relative order within each
// stage does not matter.
//
// Notes must be in chronological order; the counter engine and the
// due-date rule both read them as an append-only stream.
func Reconcile(issue *domain.Issue, notes []domain.Note, ctx *Context) ChangeSet {
	var cs ChangeSet

	for _, group := range ctx.Groups {
		cs.Labels.merge(ResolveGroup(issue, group))
	}
	for _, category := range ctx.Categories {
		cs.Labels.merge(ResolveCategory(issue, category))
	}

	cs.merge(Lifecycle(issue, notes, ctx))
	cs.merge(Counter(issue, notes, ctx))

	cs.normalize()
	return cs
}
