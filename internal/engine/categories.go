package engine

import "github.com/vilaca/taskomat/internal/domain"

// ResolveCategory maintains a derived label that mirrors the presence
// of any of the spec's child labels: the category label is present on
// the issue iff at least one child is. Unlike label groups the rule
// applies to closed issues as well, unless the spec opts out via
// SkipClosed.
func ResolveCategory(issue *domain.Issue, spec domain.CategorySpec) LabelDiff {
	var diff LabelDiff

	if issue.IsClosed() && spec.SkipClosed {
		return diff
	}

	childPresent := false
	for _, child := range spec.Children {
		if issue.HasLabel(child) {
			childPresent = true
			break
		}
	}

	hasCategory := issue.HasLabel(spec.Category)

	switch {
	case childPresent && !hasCategory:
		diff.add(spec.Category)
	case !childPresent && hasCategory:
		diff.remove(spec.Category)
	}

	return diff
}
