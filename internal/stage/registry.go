// Package stage defines the static registry of pipeline stages: their tier
// membership, declared dependencies, and executor configuration.
//
// The debate pipeline is a fixed, compile-time-enumerable set of stages
// grouped into sequential tiers. Stages within one tier have no dependencies
// on each other and may run concurrently; every declared dependency lives in
// a strictly earlier tier, which is what makes intra-tier parallelism safe.
package stage

import (
	"fmt"
	"sort"
	"time"
)

// Stage names. The set is closed: the registry enumerates every stage the
// pipeline can run.
const (
	Understander    = "understander"
	Bold            = "bold"
	Paranoia        = "paranoia"
	Critique        = "critique"
	ProposalReducer = "proposal-reducer"
	CodeReducer     = "code-reducer"
	Consensus       = "consensus"
)

// Backend identifiers for stage executors.
const (
	BackendClaude = "claude"
	BackendCodex  = "codex"
)

// Stage describes one named unit of work. Immutable once registered.
type Stage struct {
	// Name uniquely identifies the stage and keys its artifacts.
	Name string
	// Tier is the stage's execution tier; tiers run strictly in order.
	Tier int
	// DependsOn lists upstream stages whose text output this stage's input
	// document embeds, in the order their sections appear.
	DependsOn []string
	// Backend selects the executor backend (claude, codex).
	Backend string
	// Model is the backend model identifier.
	Model string
	// Tools is the tool allowlist granted to the stage's executor.
	Tools []string
	// PermissionMode is an optional interactive-permission mode hint.
	PermissionMode string
	// Timeout overrides the configured per-stage timeout when non-zero.
	Timeout time.Duration
}

// Override replaces a stage's default backend and model. Empty fields keep
// the registry defaults.
type Override struct {
	Backend string
	Model   string
}

// Registry is the ordered table of pipeline stages.
type Registry struct {
	stages []Stage
	byName map[string]Stage
}

// DefaultRegistry returns the 7-stage debate pipeline:
//
//	tier 0: understander
//	tier 1: bold, paranoia
//	tier 2: critique, proposal-reducer, code-reducer
//	tier 3: consensus
func DefaultRegistry() *Registry {
	readOnly := []string{"Read", "Grep", "Glob"}

	reg, err := NewRegistry([]Stage{
		{
			Name:    Understander,
			Tier:    0,
			Backend: BackendClaude,
			Model:   "sonnet",
			Tools:   readOnly,
		},
		{
			Name:           Bold,
			Tier:           1,
			DependsOn:      []string{Understander},
			Backend:        BackendClaude,
			Model:          "opus",
			Tools:          []string{"Read", "Grep", "Glob", "WebSearch", "WebFetch"},
			PermissionMode: "plan",
		},
		{
			Name:      Paranoia,
			Tier:      1,
			DependsOn: []string{Understander},
			Backend:   BackendClaude,
			Model:     "opus",
			Tools:     readOnly,
		},
		{
			Name:      Critique,
			Tier:      2,
			DependsOn: []string{Bold, Paranoia},
			Backend:   BackendClaude,
			Model:     "opus",
			Tools:     []string{"Read", "Grep", "Glob", "Bash"},
		},
		{
			Name:      ProposalReducer,
			Tier:      2,
			DependsOn: []string{Bold, Paranoia},
			Backend:   BackendClaude,
			Model:     "opus",
			Tools:     readOnly,
		},
		{
			Name:      CodeReducer,
			Tier:      2,
			DependsOn: []string{Bold, Paranoia},
			Backend:   BackendClaude,
			Model:     "opus",
			Tools:     readOnly,
		},
		{
			Name:      Consensus,
			Tier:      3,
			DependsOn: []string{Bold, Paranoia, Critique, ProposalReducer, CodeReducer},
			Backend:   BackendClaude,
			Model:     "opus",
			Tools:     readOnly,
		},
	})
	if err != nil {
		// The default table is static; a failure here is a programming error.
		panic(err)
	}
	return reg
}

// NewRegistry builds a Registry from the given stages and validates it.
func NewRegistry(stages []Stage) (*Registry, error) {
	reg := &Registry{
		stages: stages,
		byName: make(map[string]Stage, len(stages)),
	}
	for _, s := range stages {
		if _, ok := reg.byName[s.Name]; ok {
			return nil, fmt.Errorf("duplicate stage %q", s.Name)
		}
		reg.byName[s.Name] = s
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return reg, nil
}

// Get returns the stage with the given name.
func (r *Registry) Get(name string) (Stage, bool) {
	s, ok := r.byName[name]
	return s, ok
}

// Stages returns all stages in registration order.
func (r *Registry) Stages() []Stage {
	out := make([]Stage, len(r.stages))
	copy(out, r.stages)
	return out
}

// Names returns all stage names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.stages))
	for i, s := range r.stages {
		names[i] = s.Name
	}
	return names
}

// Tiers returns the stages grouped by tier in ascending tier order.
// Within a tier, stages keep their registration order.
func (r *Registry) Tiers() [][]Stage {
	byTier := make(map[int][]Stage)
	var indices []int
	for _, s := range r.stages {
		if _, ok := byTier[s.Tier]; !ok {
			indices = append(indices, s.Tier)
		}
		byTier[s.Tier] = append(byTier[s.Tier], s)
	}
	sort.Ints(indices)

	tiers := make([][]Stage, 0, len(indices))
	for _, tier := range indices {
		tiers = append(tiers, byTier[tier])
	}
	return tiers
}

// DebateStages returns the names of the stages whose outputs form the
// combined debate report, in fixed report section order. This order is a
// property of the registry, not of stage completion order.
func (r *Registry) DebateStages() []string {
	var names []string
	for _, s := range r.stages {
		if s.Name == Understander || s.Name == Consensus {
			continue
		}
		names = append(names, s.Name)
	}
	return names
}

// Validate enforces the tier invariant: every declared dependency must exist
// and belong to a strictly earlier tier. Same-tier or forward dependencies
// would break the intra-tier parallelism guarantee.
func (r *Registry) Validate() error {
	for _, s := range r.stages {
		for _, dep := range s.DependsOn {
			upstream, ok := r.byName[dep]
			if !ok {
				return fmt.Errorf("stage %q depends on unknown stage %q", s.Name, dep)
			}
			if upstream.Tier >= s.Tier {
				return fmt.Errorf("stage %q (tier %d) depends on %q (tier %d): dependencies must be in earlier tiers",
					s.Name, s.Tier, dep, upstream.Tier)
			}
		}
	}
	return nil
}

// WithOverrides returns a new Registry with per-stage backend/model overrides
// applied. Unknown stage names are rejected; empty override fields keep the
// registry defaults.
func (r *Registry) WithOverrides(overrides map[string]Override) (*Registry, error) {
	for name := range overrides {
		if _, ok := r.byName[name]; !ok {
			return nil, fmt.Errorf("override for unknown stage %q", name)
		}
	}

	stages := make([]Stage, len(r.stages))
	copy(stages, r.stages)
	for i, s := range stages {
		o, ok := overrides[s.Name]
		if !ok {
			continue
		}
		if o.Backend != "" {
			stages[i].Backend = o.Backend
		}
		if o.Model != "" {
			stages[i].Model = o.Model
		}
	}
	return NewRegistry(stages)
}
