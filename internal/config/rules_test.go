package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vilaca/taskomat/internal/domain"
)

func writeRules(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.jsonc")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// TestLoadRules_JSONC tests that comments and trailing commas are
// accepted and that absent fields keep their defaults.
func TestLoadRules_JSONC(t *testing.T) {
	// Arrange
	path := writeRules(t, `{
		// the housekeeping account
		"bot_id": 42,
		"bot_username": "taskomat",
		"groups": [
			{"name": "workflow", "labels": ["workflow::todo", "workflow::doing"], "default": "workflow::todo"},
		],
		"categories": [
			{"category": "area::infra", "children": ["terraform"]},
		],
		"cutoff_minutes": 30,
	}`)

	// Act
	rules, warnings, err := LoadRules(path)

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("expected no warnings, got %v", warnings)
	}
	if rules.BotID != 42 || rules.BotUsername != "taskomat" {
		t.Errorf("unexpected bot identity: %d %q", rules.BotID, rules.BotUsername)
	}
	if len(rules.Groups) != 1 || rules.Groups[0].Default != "workflow::todo" {
		t.Errorf("unexpected groups: %+v", rules.Groups)
	}
	if rules.CutoffMinutes != 30 {
		t.Errorf("expected cutoff override, got %d", rules.CutoffMinutes)
	}
	// Untouched fields keep their defaults.
	if rules.PublicLabel != "Public" || rules.Workers != 4 {
		t.Errorf("expected defaults to survive, got %+v", rules)
	}
}

// TestLoadRules_MissingFile tests the read failure path.
func TestLoadRules_MissingFile(t *testing.T) {
	_, _, err := LoadRules(filepath.Join(t.TempDir(), "nope.jsonc"))

	if !errors.Is(err, errRulesFileRead) {
		t.Fatalf("expected read error, got %v", err)
	}
}

// TestLoadRules_BadSyntax tests the parse failure path.
func TestLoadRules_BadSyntax(t *testing.T) {
	path := writeRules(t, "{not valid")

	_, _, err := LoadRules(path)

	if !errors.Is(err, errRulesFileParse) {
		t.Fatalf("expected parse error, got %v", err)
	}
}

// TestValidate_OverlapIsFatal tests that two specs claiming the same
// label never pass validation.
func TestValidate_OverlapIsFatal(t *testing.T) {
	tests := []struct {
		name  string
		rules Rules
	}{
		{
			"label in two groups",
			Rules{Groups: []domain.GroupSpec{
				{Name: "a", Labels: []string{"x", "y"}},
				{Name: "b", Labels: []string{"y", "z"}},
			}},
		},
		{
			"category label inside a group",
			Rules{
				Groups:     []domain.GroupSpec{{Name: "a", Labels: []string{"x"}}},
				Categories: []domain.CategorySpec{{Category: "x", Children: []string{"c"}}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.rules.Validate()

			if !errors.Is(err, ErrOverlappingSpecs) {
				t.Fatalf("expected overlap error, got %v", err)
			}
		})
	}
}

// TestValidate_CategoryChildrenMayOverlapGroups tests the deliberate
// asymmetry: children are only observed, so they may be group members.
func TestValidate_CategoryChildrenMayOverlapGroups(t *testing.T) {
	rules := Rules{
		Groups:     []domain.GroupSpec{{Name: "a", Labels: []string{"x"}}},
		Categories: []domain.CategorySpec{{Category: "cat", Children: []string{"x"}}},
	}

	_, err := rules.Validate()

	if err != nil {
		t.Fatalf("expected valid rules, got %v", err)
	}
}

// TestValidate_DuplicateMemberWarns tests that an in-group duplicate is
// a warning, not an error.
func TestValidate_DuplicateMemberWarns(t *testing.T) {
	rules := Rules{Groups: []domain.GroupSpec{
		{Name: "a", Labels: []string{"x", "y", "x"}},
	}}

	warnings, err := rules.Validate()

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "first rank wins") {
		t.Errorf("expected duplicate warning, got %v", warnings)
	}
}

// TestValidate_InvalidSpecs tests the fatal structural checks.
func TestValidate_InvalidSpecs(t *testing.T) {
	tests := []struct {
		name  string
		rules Rules
	}{
		{"empty group", Rules{Groups: []domain.GroupSpec{{Name: "a"}}}},
		{"default not a member", Rules{Groups: []domain.GroupSpec{{Name: "a", Labels: []string{"x"}, Default: "y"}}}},
		{"category without label", Rules{Categories: []domain.CategorySpec{{Children: []string{"c"}}}}},
		{"category without children", Rules{Categories: []domain.CategorySpec{{Category: "cat"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.rules.Validate()

			if !errors.Is(err, ErrInvalidSpec) {
				t.Fatalf("expected invalid-spec error, got %v", err)
			}
		})
	}
}

// TestEngineContext tests the translation into the per-run rule
// context, in particular the assignment toggle.
func TestEngineContext(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	rules := DefaultRules()
	ctx := rules.EngineContext(now)
	if ctx.FallbackAssignee != nil {
		t.Errorf("expected assignment disabled without bot id, got %+v", ctx.FallbackAssignee)
	}

	rules.BotID = 42
	rules.BotUsername = "taskomat"
	ctx = rules.EngineContext(now)
	if ctx.FallbackAssignee == nil || ctx.FallbackAssignee.ID != 42 {
		t.Errorf("expected fallback assignee, got %+v", ctx.FallbackAssignee)
	}
	if ctx.Bot.Username != "taskomat" || !ctx.Now.Equal(now) {
		t.Errorf("unexpected context: %+v", ctx)
	}
}

// TestCutoff tests the staleness window arithmetic.
func TestCutoff(t *testing.T) {
	rules := DefaultRules()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	got := rules.Cutoff(now)

	want := now.Add(-15 * time.Minute)
	if !got.Equal(want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}
