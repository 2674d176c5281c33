package engine

import "github.com/vilaca/taskomat/internal/domain"

// ResolveGroup enforces scoped-label exclusivity for one group spec.
// At most one member of the group survives on the issue: when several
// are present, the highest-rank member (last in the configured
// sequence) wins. When none are present and the group declares a
// default, the default is added. Closed issues are frozen unless the
// spec opts in via IncludeClosed.
//
// The result is deterministic and idempotent: resolving an already
// resolved issue yields an empty diff.
func ResolveGroup(issue *domain.Issue, spec domain.GroupSpec) LabelDiff {
	var diff LabelDiff

	if issue.IsClosed() && !spec.IncludeClosed {
		return diff
	}

	// Collect the group members present on the issue. Rank lookups go
	// through spec.Rank so a label accidentally listed twice in the
	// configuration keeps its first occurrence's rank instead of
	// crashing or flapping.
	type member struct {
		label string
		rank  int
	}
	var present []member
	for _, label := range issue.Labels {
		if rank := spec.Rank(label); rank >= 0 {
			present = append(present, member{label: label, rank: rank})
		}
	}

	if len(present) == 0 {
		if spec.Default != "" {
			diff.add(spec.Default)
		}
		return diff
	}

	if len(present) == 1 {
		return diff
	}

	// More than one member: the highest rank wins, everything else is
	// scheduled for removal.
	winner := present[0]
	for _, m := range present[1:] {
		if m.rank > winner.rank {
			winner = m
		}
	}
	for _, m := range present {
		if m.label != winner.label {
			diff.remove(m.label)
		}
	}

	return diff
}
