package engine

import (
	"sort"

	"github.com/vilaca/taskomat/internal/domain"
)

// LabelDiff is the minimal label mutation computed by a resolver:
// labels to add and labels to remove. Both behave as sets.
type LabelDiff struct {
	Add    []string
	Remove []string
}

// Empty returns true if the diff contains no changes.
func (d LabelDiff) Empty() bool {
	return len(d.Add) == 0 && len(d.Remove) == 0
}

func (d *LabelDiff) add(label string) {
	for _, l := range d.Add {
		if l == label {
			return
		}
	}
	d.Add = append(d.Add, label)
}

func (d *LabelDiff) remove(label string) {
	for _, l := range d.Remove {
		if l == label {
			return
		}
	}
	d.Remove = append(d.Remove, label)
}

// merge folds another diff into this one, keeping set semantics.
func (d *LabelDiff) merge(other LabelDiff) {
	for _, l := range other.Add {
		d.add(l)
	}
	for _, l := range other.Remove {
		d.remove(l)
	}
}

// ChangeSet is the union of all mutations the rule pipeline wants to
// apply to one issue. Nil pointer fields mean "leave unchanged"; the
// driver only issues calls for fields that are set, which keeps every
// reconciliation pass idempotent.
type ChangeSet struct {
	Labels       LabelDiff
	Assignee     *domain.User
	Confidential *bool
	Locked       *bool
	State        *string

	CreateNotes []string
	UpdateNotes map[int]string
	DeleteNotes []int
}

// Empty returns true if the change set would cause no tracker writes.
func (c *ChangeSet) Empty() bool {
	return c.Labels.Empty() &&
		c.Assignee == nil &&
		c.Confidential == nil &&
		c.Locked == nil &&
		c.State == nil &&
		len(c.CreateNotes) == 0 &&
		len(c.UpdateNotes) == 0 &&
		len(c.DeleteNotes) == 0
}

// merge folds another change set into this one. Pointer fields from
// the other set win; only one rule writes each field per pass, so this
// never discards a change.
func (c *ChangeSet) merge(other ChangeSet) {
	c.Labels.merge(other.Labels)
	if other.Assignee != nil {
		c.Assignee = other.Assignee
	}
	if other.Confidential != nil {
		c.Confidential = other.Confidential
	}
	if other.Locked != nil {
		c.Locked = other.Locked
	}
	if other.State != nil {
		c.State = other.State
	}
	c.CreateNotes = append(c.CreateNotes, other.CreateNotes...)
	for id, body := range other.UpdateNotes {
		c.updateNote(id, body)
	}
	c.DeleteNotes = append(c.DeleteNotes, other.DeleteNotes...)
}

func (c *ChangeSet) updateNote(id int, body string) {
	if c.UpdateNotes == nil {
		c.UpdateNotes = make(map[int]string)
	}
	c.UpdateNotes[id] = body
}

// normalize sorts the slice-valued fields so that identical inputs
// always produce identical change sets, independent of rule order.
func (c *ChangeSet) normalize() {
	sort.Strings(c.Labels.Add)
	sort.Strings(c.Labels.Remove)
	sort.Ints(c.DeleteNotes)
}
