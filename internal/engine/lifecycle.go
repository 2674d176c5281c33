package engine

import (
	"strings"

	"github.com/vilaca/taskomat/internal/domain"
)

// PastDueMarker prefixes every past-due mention note the engine
// creates, so later runs can find (and supersede or remove) their own
// notes without touching anyone else's.
const PastDueMarker = "`housekeep:pastdueinfo`"

// Lifecycle applies the ordered housekeeping rules to one issue and
// returns the resulting change set. The rules never write anything
// themselves; they record the minimal diff against the snapshot.
//
// Order matters: obsolete auto-close can transition the issue to
// closed within this pass, so the closed-issue cleanup predicate is
// re-evaluated after it. Two evaluations reach a fixed point because
// no other rule toggles the state.
func Lifecycle(issue *domain.Issue, notes []domain.Note, ctx *Context) ChangeSet {
	var cs ChangeSet

	// Working copy tracks the state the issue will have after the
	// pending mutations are applied, so later rules see the effects of
	// earlier ones without double-recording anything.
	work := *issue

	applyAssignment(&work, &cs, ctx)
	applyConfidentiality(issue, &work, &cs, ctx)
	applyDueMention(issue, &work, notes, &cs, ctx)
	applyClosedCleanup(issue, &work, &cs, ctx)
	applyObsoleteClose(issue, &work, &cs, ctx)

	if cs.State != nil {
		// The issue was closed in this pass; re-check cleanup.
		applyClosedCleanup(issue, &work, &cs, ctx)
	}

	return cs
}

// applyAssignment assigns the configured fallback identity to open
// unassigned issues. A nil fallback disables the rule.
func applyAssignment(work *domain.Issue, cs *ChangeSet, ctx *Context) {
	if ctx.FallbackAssignee == nil {
		return
	}
	if work.State != domain.StateOpened || work.Assignee != nil {
		return
	}

	cs.Assignee = ctx.FallbackAssignee
	work.Assignee = ctx.FallbackAssignee
}

// applyConfidentiality mirrors the confidential flag from the absence
// of the Public label.
func applyConfidentiality(issue, work *domain.Issue, cs *ChangeSet, ctx *Context) {
	if !ctx.EnableConfidential {
		return
	}

	want := !issue.HasLabel(ctx.PublicLabel)
	if work.Confidential == want {
		return
	}

	cs.Confidential = &want
	work.Confidential = want
}

// applyDueMention keeps exactly one past-due mention note on open
// issues whose due date has passed, and removes stale mention notes
// once the condition no longer holds. Duplicates left behind by an
// interrupted run are cleaned up: the first mention survives, the rest
// are scheduled for deletion.
func applyDueMention(issue, work *domain.Issue, notes []domain.Note, cs *ChangeSet, ctx *Context) {
	if !ctx.EnableDueNotify {
		return
	}

	var existing []int
	for _, n := range notes {
		if strings.HasPrefix(n.Body, PastDueMarker) {
			existing = append(existing, n.ID)
		}
	}

	shouldMention := work.State == domain.StateOpened && work.PastDue(ctx.Now)

	if !shouldMention {
		cs.DeleteNotes = append(cs.DeleteNotes, existing...)
		return
	}

	if len(existing) > 0 {
		cs.DeleteNotes = append(cs.DeleteNotes, existing[1:]...)
		return
	}

	// The mention pings the person assigned on the snapshot, not a
	// fallback the assignment rule set moments ago in this pass.
	mention := "the assignee"
	if issue.Assignee != nil {
		mention = "@" + issue.Assignee.Username
	}
	cs.CreateNotes = append(cs.CreateNotes,
		PastDueMarker+" :alarm_clock: "+mention+" The issue is past due. :cold_sweat:")
}

// applyClosedCleanup strips work-tracking labels from closed issues,
// assigns the closer when nobody is assigned and locks the discussion
// when the lock-closed policy is enabled. Safe to evaluate twice in
// one pass; the working copy prevents duplicate records.
func applyClosedCleanup(issue, work *domain.Issue, cs *ChangeSet, ctx *Context) {
	if work.State != domain.StateClosed {
		return
	}

	for _, label := range []string{ctx.WIPLabel, ctx.OnHoldLabel} {
		if label != "" && issue.HasLabel(label) {
			cs.Labels.remove(label)
		}
	}

	if work.Assignee == nil {
		closer := issue.ClosedBy
		if closer == nil {
			// The engine itself closed the issue in this pass.
			closer = &ctx.Bot
		}
		cs.Assignee = closer
		work.Assignee = closer
	}

	if ctx.EnableLockClosed && !work.Locked {
		locked := true
		cs.Locked = &locked
		work.Locked = locked
	}
}

// applyObsoleteClose closes open issues that carry the obsolete label.
func applyObsoleteClose(issue, work *domain.Issue, cs *ChangeSet, ctx *Context) {
	if !ctx.EnableObsoleteClose {
		return
	}
	if work.State != domain.StateOpened || !issue.HasLabel(ctx.ObsoleteLabel) {
		return
	}

	closed := domain.StateClosed
	cs.State = &closed
	work.State = closed
}
