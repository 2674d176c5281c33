package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/tailscale/hujson"

	"github.com/vilaca/taskomat/internal/domain"
	"github.com/vilaca/taskomat/internal/engine"
)

// Rules is the declared rule set: label groups, label categories,
// well-known label names and feature toggles. It is loaded once at
// startup from a JSONC file (comments and trailing commas allowed) and
// is immutable afterwards.
type Rules struct {
	// Bot is the account the housekeeping runs as. It doubles as the
	// fallback assignee for open unassigned issues; a zero ID disables
	// the assignment rule.
	BotID       int    `json:"bot_id"`
	BotUsername string `json:"bot_username"`

	Groups     []domain.GroupSpec    `json:"groups"`
	Categories []domain.CategorySpec `json:"categories"`

	PublicLabel   string `json:"public_label"`
	ObsoleteLabel string `json:"obsolete_label"`
	WIPLabel      string `json:"wip_label"`
	OnHoldLabel   string `json:"on_hold_label"`
	CounterLabel  string `json:"counter_label"`
	BotLabel      string `json:"bot_label"` // marks issues managed by the collection batch

	EnableConfidential  bool `json:"enable_confidential"`
	EnableLockClosed    bool `json:"enable_lock_closed"`
	EnableObsoleteClose bool `json:"enable_obsolete_close"`
	EnableDueNotify     bool `json:"enable_due_notify"`
	EnableCounters      bool `json:"enable_counters"`

	// CutoffMinutes is the staleness window: the batch run only picks
	// up issues whose last update is at least this old, so it never
	// races a human mid-edit.
	CutoffMinutes int `json:"cutoff_minutes"`

	Workers       int    `json:"workers"`
	RetryAttempts int    `json:"retry_attempts"`
	WebhookSecret string `json:"webhook_secret"`
}

// Validation errors. Overlapping specs are fatal because two resolvers
// fighting over the same label would never reach a fixed point.
var (
	ErrOverlappingSpecs = errors.New("label specs overlap")
	ErrInvalidSpec      = errors.New("invalid label spec")
	errRulesFileRead    = errors.New("cannot read rules file")
	errRulesFileParse   = errors.New("cannot parse rules file")
)

// DefaultRules returns the rule set used when no rules file is given:
// original behaviour with all lifecycle rules enabled and no groups or
// categories configured.
func DefaultRules() Rules {
	return Rules{
		PublicLabel:         "Public",
		ObsoleteLabel:       "Obsolete",
		WIPLabel:            "Work in Progress",
		OnHoldLabel:         "On Hold",
		CounterLabel:        "Counter",
		BotLabel:            "TaskOMat",
		EnableConfidential:  true,
		EnableLockClosed:    true,
		EnableObsoleteClose: true,
		EnableDueNotify:     true,
		EnableCounters:      true,
		CutoffMinutes:       15,
		Workers:             4,
		RetryAttempts:       3,
	}
}

// LoadRules reads and validates a JSONC rules file. The returned
// warnings are non-fatal configuration smells (duplicate group
// members); the caller should log them.
func LoadRules(path string) (Rules, []string, error) {
	rules := DefaultRules()

	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, nil, fmt.Errorf("%w: %s", errRulesFileRead, path)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Rules{}, nil, fmt.Errorf("%w %s: %v", errRulesFileParse, path, err)
	}
	if err := json.Unmarshal(standardized, &rules); err != nil {
		return Rules{}, nil, fmt.Errorf("%w %s: %v", errRulesFileParse, path, err)
	}

	warnings, err := rules.Validate()
	if err != nil {
		return Rules{}, warnings, err
	}

	return rules, warnings, nil
}

// Validate checks the declared specs once at startup. Duplicate
// members inside one group only warn (the first occurrence's rank is
// authoritative); members shared across specs are fatal.
func (r *Rules) Validate() ([]string, error) {
	var warnings []string

	// owner tracks which spec claims each label it mutates.
	owner := make(map[string]string)
	claim := func(label, by string) error {
		if prev, taken := owner[label]; taken {
			return fmt.Errorf("%w: label %q claimed by both %s and %s", ErrOverlappingSpecs, label, prev, by)
		}
		owner[label] = by
		return nil
	}

	for _, group := range r.Groups {
		name := group.Name
		if name == "" {
			name = fmt.Sprintf("group %v", group.Labels)
		}
		if len(group.Labels) == 0 {
			return warnings, fmt.Errorf("%w: group %q has no members", ErrInvalidSpec, name)
		}

		seen := make(map[string]bool)
		for _, label := range group.Labels {
			if seen[label] {
				warnings = append(warnings,
					fmt.Sprintf("group %q lists label %q more than once; first rank wins", name, label))
				continue
			}
			seen[label] = true
			if err := claim(label, fmt.Sprintf("group %q", name)); err != nil {
				return warnings, err
			}
		}

		if group.Default != "" && !seen[group.Default] {
			return warnings, fmt.Errorf("%w: group %q default %q is not a member", ErrInvalidSpec, name, group.Default)
		}
	}

	for _, category := range r.Categories {
		if category.Category == "" {
			return warnings, fmt.Errorf("%w: category with children %v has no label", ErrInvalidSpec, category.Children)
		}
		if len(category.Children) == 0 {
			return warnings, fmt.Errorf("%w: category %q has no children", ErrInvalidSpec, category.Category)
		}
		// Only the category label itself is mutated by the resolver;
		// children are merely observed and may belong to groups.
		if err := claim(category.Category, fmt.Sprintf("category %q", category.Category)); err != nil {
			return warnings, err
		}
	}

	return warnings, nil
}

// EngineContext builds the per-run rule context from the validated
// rules. Now is taken as a parameter so runs are reproducible in
// tests.
func (r *Rules) EngineContext(now time.Time) engine.Context {
	ctx := engine.Context{
		Now:                 now,
		Bot:                 domain.User{ID: r.BotID, Username: r.BotUsername},
		Groups:              r.Groups,
		Categories:          r.Categories,
		PublicLabel:         r.PublicLabel,
		ObsoleteLabel:       r.ObsoleteLabel,
		WIPLabel:            r.WIPLabel,
		OnHoldLabel:         r.OnHoldLabel,
		CounterLabel:        r.CounterLabel,
		EnableConfidential:  r.EnableConfidential,
		EnableLockClosed:    r.EnableLockClosed,
		EnableObsoleteClose: r.EnableObsoleteClose,
		EnableDueNotify:     r.EnableDueNotify,
		EnableCounters:      r.EnableCounters,
	}
	if r.BotID != 0 {
		ctx.FallbackAssignee = &domain.User{ID: r.BotID, Username: r.BotUsername}
	}
	return ctx
}

// Cutoff returns the staleness cutoff instant for a run starting now.
func (r *Rules) Cutoff(now time.Time) time.Time {
	return now.Add(-time.Duration(r.CutoffMinutes) * time.Minute)
}
