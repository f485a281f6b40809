package pipeline

import (
	"time"

	"github.com/Iron-Ham/megaplan/internal/artifact"
	"github.com/Iron-Ham/megaplan/internal/errors"
	"github.com/Iron-Ham/megaplan/internal/executor"
	"github.com/Iron-Ham/megaplan/internal/logging"
	"github.com/Iron-Ham/megaplan/internal/stage"
)

// Options holds the dependencies and knobs for an Orchestrator.
type Options struct {
	Registry *stage.Registry
	Store    *artifact.Store
	Runner   executor.Runner
	Logger   *logging.Logger

	// MaxParallel bounds concurrent stage executions within a tier;
	// 0 means one worker per stage in the tier.
	MaxParallel int
	// Resume serves stages with existing non-empty outputs from the store
	// instead of re-executing them.
	Resume bool
	// SkipConsensus stops the run after the debate tiers.
	SkipConsensus bool
	// DefaultTimeout bounds stage executions that carry no per-stage
	// timeout; 0 means unbounded.
	DefaultTimeout time.Duration

	// PreviousPlanPath, when set and present, folds the prior plan into the
	// debate report for refinement runs.
	PreviousPlanPath string
	// HistoryPath, when set and present, folds the selection history into
	// the debate report.
	HistoryPath string

	now func() time.Time
}

// Orchestrator runs debate pipelines against an artifact store.
type Orchestrator struct {
	reg    *stage.Registry
	store  *artifact.Store
	runner executor.Runner
	logger *logging.Logger
	opts   Options
}

// New creates an Orchestrator. Registry, Store, and Runner are required.
func New(opts Options) (*Orchestrator, error) {
	if opts.Registry == nil {
		return nil, errors.NewValidationError("registry is required").WithField("registry")
	}
	if opts.Store == nil {
		return nil, errors.NewValidationError("artifact store is required").WithField("store")
	}
	if opts.Runner == nil {
		return nil, errors.NewValidationError("executor runner is required").WithField("runner")
	}
	if opts.Logger == nil {
		opts.Logger = logging.NopLogger()
	}
	if opts.now == nil {
		opts.now = time.Now
	}
	return &Orchestrator{
		reg:    opts.Registry,
		store:  opts.Store,
		runner: opts.Runner,
		logger: opts.Logger,
		opts:   opts,
	}, nil
}

// StageResult records one stage's completion within a run. Never mutated
// after creation.
type StageResult struct {
	// Stage is the stage name.
	Stage string
	// InputPath is the rendered input artifact ("" when served from cache).
	InputPath string
	// OutputPath is the produced output artifact.
	OutputPath string
	// Cached marks a result reused from a pre-existing artifact rather than
	// freshly executed.
	Cached bool

	store *artifact.Store
}

// Text returns the output artifact's full content. It fails if the artifact
// is absent.
func (r *StageResult) Text() (string, error) {
	return r.store.Read(r.OutputPath)
}

// Result is the outcome of one pipeline run. On failure it still carries the
// partial stage results collected before the abort.
type Result struct {
	// Stages maps stage name to its result.
	Stages map[string]*StageResult
	// DebatePath is the combined debate report artifact ("" until the
	// consensus phase runs).
	DebatePath string
	// PlanPath is the terminal plan artifact ("" when consensus was
	// skipped or never reached).
	PlanPath string
}
