package stage

import (
	"reflect"
	"testing"
)

func TestDefaultRegistryTiers(t *testing.T) {
	reg := DefaultRegistry()
	tiers := reg.Tiers()

	if len(tiers) != 4 {
		t.Fatalf("expected 4 tiers, got %d", len(tiers))
	}

	sizes := []int{1, 2, 3, 1}
	for i, tier := range tiers {
		if len(tier) != sizes[i] {
			t.Errorf("tier %d has %d stages, want %d", i, len(tier), sizes[i])
		}
	}

	if tiers[0][0].Name != Understander {
		t.Errorf("tier 0 = %q, want understander", tiers[0][0].Name)
	}
	if tiers[3][0].Name != Consensus {
		t.Errorf("tier 3 = %q, want consensus", tiers[3][0].Name)
	}
}

func TestDefaultRegistryBackends(t *testing.T) {
	reg := DefaultRegistry()

	understander, _ := reg.Get(Understander)
	if understander.Backend != BackendClaude || understander.Model != "sonnet" {
		t.Errorf("understander = %s:%s, want claude:sonnet", understander.Backend, understander.Model)
	}

	for _, name := range []string{Bold, Paranoia, Critique, ProposalReducer, CodeReducer, Consensus} {
		s, ok := reg.Get(name)
		if !ok {
			t.Fatalf("stage %q missing", name)
		}
		if s.Backend != BackendClaude || s.Model != "opus" {
			t.Errorf("%s = %s:%s, want claude:opus", name, s.Backend, s.Model)
		}
	}
}

func TestDefaultRegistryToolsAndPermissions(t *testing.T) {
	reg := DefaultRegistry()

	bold, _ := reg.Get(Bold)
	if bold.PermissionMode != "plan" {
		t.Errorf("bold permission mode = %q, want plan", bold.PermissionMode)
	}
	wantBold := []string{"Read", "Grep", "Glob", "WebSearch", "WebFetch"}
	if !reflect.DeepEqual(bold.Tools, wantBold) {
		t.Errorf("bold tools = %v", bold.Tools)
	}

	critique, _ := reg.Get(Critique)
	wantCritique := []string{"Read", "Grep", "Glob", "Bash"}
	if !reflect.DeepEqual(critique.Tools, wantCritique) {
		t.Errorf("critique tools = %v", critique.Tools)
	}

	paranoia, _ := reg.Get(Paranoia)
	if paranoia.PermissionMode != "" {
		t.Errorf("paranoia permission mode = %q, want empty", paranoia.PermissionMode)
	}
}

func TestDebateStagesOrder(t *testing.T) {
	reg := DefaultRegistry()

	want := []string{Bold, Paranoia, Critique, ProposalReducer, CodeReducer}
	if got := reg.DebateStages(); !reflect.DeepEqual(got, want) {
		t.Errorf("DebateStages = %v, want %v", got, want)
	}
}

func TestValidateRejectsSameTierDependency(t *testing.T) {
	_, err := NewRegistry([]Stage{
		{Name: "a", Tier: 0},
		{Name: "b", Tier: 1, DependsOn: []string{"c"}},
		{Name: "c", Tier: 1},
	})
	if err == nil {
		t.Error("expected error for same-tier dependency")
	}
}

func TestValidateRejectsForwardDependency(t *testing.T) {
	_, err := NewRegistry([]Stage{
		{Name: "a", Tier: 0, DependsOn: []string{"b"}},
		{Name: "b", Tier: 1},
	})
	if err == nil {
		t.Error("expected error for forward dependency")
	}
}

func TestValidateRejectsUnknownDependency(t *testing.T) {
	_, err := NewRegistry([]Stage{
		{Name: "a", Tier: 0},
		{Name: "b", Tier: 1, DependsOn: []string{"ghost"}},
	})
	if err == nil {
		t.Error("expected error for unknown dependency")
	}
}

func TestNewRegistryRejectsDuplicates(t *testing.T) {
	_, err := NewRegistry([]Stage{
		{Name: "a", Tier: 0},
		{Name: "a", Tier: 1},
	})
	if err == nil {
		t.Error("expected error for duplicate stage")
	}
}

func TestWithOverrides(t *testing.T) {
	reg := DefaultRegistry()

	overridden, err := reg.WithOverrides(map[string]Override{
		Understander: {Backend: BackendCodex, Model: "o3"},
		Bold:         {Model: "sonnet"},
	})
	if err != nil {
		t.Fatalf("WithOverrides: %v", err)
	}

	u, _ := overridden.Get(Understander)
	if u.Backend != BackendCodex || u.Model != "o3" {
		t.Errorf("understander = %s:%s, want codex:o3", u.Backend, u.Model)
	}

	b, _ := overridden.Get(Bold)
	if b.Backend != BackendClaude || b.Model != "sonnet" {
		t.Errorf("bold = %s:%s, want claude:sonnet", b.Backend, b.Model)
	}
	if b.PermissionMode != "plan" {
		t.Error("override must not clear permission mode")
	}

	// Original registry is untouched.
	orig, _ := reg.Get(Understander)
	if orig.Backend != BackendClaude {
		t.Error("WithOverrides mutated the source registry")
	}
}

func TestWithOverridesUnknownStage(t *testing.T) {
	reg := DefaultRegistry()
	if _, err := reg.WithOverrides(map[string]Override{"ghost": {Model: "opus"}}); err == nil {
		t.Error("expected error for unknown stage override")
	}
}
