package engine

import (
	"time"

	"github.com/vilaca/taskomat/internal/domain"
)

// Context is the read-only configuration bundle passed to every rule.
// It is constructed once per run and never mutated afterwards, so the
// rule pipeline can share it across issues without locking.
type Context struct {
	Now time.Time

	// Bot is the identity the engine acts as. It is used as the
	// closer-of-record when the engine itself closes an issue.
	Bot domain.User

	// FallbackAssignee is assigned to open unassigned issues. A nil
	// value disables the assignment rule.
	FallbackAssignee *domain.User

	Groups     []domain.GroupSpec
	Categories []domain.CategorySpec

	// Well-known label names the lifecycle rules key on.
	PublicLabel   string
	ObsoleteLabel string
	WIPLabel      string
	OnHoldLabel   string
	CounterLabel  string

	// Feature toggles.
	EnableConfidential  bool
	EnableLockClosed    bool
	EnableObsoleteClose bool
	EnableDueNotify     bool
	EnableCounters      bool
}
