package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Iron-Ham/megaplan/internal/errors"
	"github.com/Iron-Ham/megaplan/internal/executor"
	"github.com/Iron-Ham/megaplan/internal/prompt"
	"github.com/Iron-Ham/megaplan/internal/stage"
)

// Run executes the full pipeline for a run prefix and task description.
// The returned Result is non-nil even on failure, carrying the partial
// stage results collected before the abort.
func (o *Orchestrator) Run(ctx context.Context, prefix, task string) (*Result, error) {
	result := &Result{Stages: make(map[string]*StageResult)}

	for _, tier := range o.reg.Tiers() {
		debate := tierWithoutConsensus(tier)
		if len(debate) == 0 {
			continue
		}
		if err := o.runTier(ctx, prefix, task, debate, result.Stages); err != nil {
			return result, fmt.Errorf("%w: %w", errors.ErrRunAborted, err)
		}
	}

	if o.opts.SkipConsensus {
		o.logger.Info("consensus skipped", "prefix", prefix)
		return result, nil
	}

	if err := o.runConsensus(ctx, prefix, task, result); err != nil {
		return result, fmt.Errorf("%w: %w", errors.ErrRunAborted, err)
	}
	return result, nil
}

// tierWithoutConsensus filters the consensus stage out of a tier; it is
// driven separately because its input is the aggregated debate report.
func tierWithoutConsensus(tier []stage.Stage) []stage.Stage {
	var out []stage.Stage
	for _, s := range tier {
		if s.Name != stage.Consensus {
			out = append(out, s)
		}
	}
	return out
}

// runTier dispatches one tier's stages concurrently and blocks until all
// complete. The first failure cancels the tier's context and is returned.
// Inputs are rendered before anything is dispatched: dependency outputs all
// come from earlier tiers, so the results map is only written by the tier's
// own goroutines while they run.
func (o *Orchestrator) runTier(ctx context.Context, prefix, task string, stages []stage.Stage, results map[string]*StageResult) error {
	pending := make([]executor.Request, 0, len(stages))
	for _, s := range stages {
		outputPath := o.store.OutputPath(prefix, s.Name)

		if o.shouldSkip(outputPath) {
			o.logger.Info("stage cached, skipping", "stage", s.Name, "tier", s.Tier)
			results[s.Name] = &StageResult{
				Stage:      s.Name,
				OutputPath: outputPath,
				Cached:     true,
				store:      o.store,
			}
			continue
		}

		inputPath := o.store.InputPath(prefix, s.Name)
		if err := o.renderInput(s, task, inputPath, results); err != nil {
			return errors.NewStageError("failed to render input", err).
				WithStage(s.Name).WithTier(s.Tier)
		}

		pending = append(pending, executor.Request{
			Stage:          s.Name,
			Backend:        s.Backend,
			Model:          s.Model,
			InputPath:      inputPath,
			OutputPath:     outputPath,
			Tools:          s.Tools,
			PermissionMode: s.PermissionMode,
			Timeout:        o.stageTimeout(s),
		})
	}

	if len(pending) == 0 {
		return nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.tierLimit(len(pending)))

	for _, req := range pending {
		req := req
		s, _ := o.reg.Get(req.Stage)
		o.logger.Info("running stage",
			"stage", s.Name, "tier", s.Tier, "backend", s.Backend, "model", s.Model)

		g.Go(func() error {
			if err := o.runner.Run(gctx, req); err != nil {
				o.logger.Error("stage failed", "stage", s.Name, "tier", s.Tier, "error", err)
				return errors.NewStageError("executor failed", err).
					WithStage(s.Name).WithTier(s.Tier)
			}

			mu.Lock()
			results[s.Name] = &StageResult{
				Stage:      s.Name,
				InputPath:  req.InputPath,
				OutputPath: req.OutputPath,
				store:      o.store,
			}
			mu.Unlock()

			o.logger.Info("stage complete", "stage", s.Name, "tier", s.Tier)
			return nil
		})
	}

	return g.Wait()
}

// renderInput writes a stage's input document, embedding the outputs of its
// declared dependencies in registry order.
func (o *Orchestrator) renderInput(s stage.Stage, task, inputPath string, results map[string]*StageResult) error {
	deps := make([]prompt.Dependency, 0, len(s.DependsOn))
	for _, name := range s.DependsOn {
		res, ok := results[name]
		if !ok {
			return fmt.Errorf("%w: dependency %q has no result", errors.ErrUnknownStage, name)
		}
		text, err := res.Text()
		if err != nil {
			return err
		}
		deps = append(deps, prompt.Dependency{Stage: name, Output: text})
	}

	doc, err := prompt.RenderStage(s.Name, task, deps)
	if err != nil {
		return err
	}
	return o.store.Write(inputPath, doc)
}

// shouldSkip reports whether a stage can be served from cache: resume mode
// is on and the output artifact exists with non-zero size.
func (o *Orchestrator) shouldSkip(outputPath string) bool {
	return o.opts.Resume && o.store.Exists(outputPath) && o.store.Size(outputPath) > 0
}

// tierLimit sizes the tier's worker pool.
func (o *Orchestrator) tierLimit(tierSize int) int {
	if o.opts.MaxParallel > 0 && o.opts.MaxParallel < tierSize {
		return o.opts.MaxParallel
	}
	return tierSize
}

// stageTimeout resolves the effective timeout for a stage.
func (o *Orchestrator) stageTimeout(s stage.Stage) time.Duration {
	if s.Timeout > 0 {
		return s.Timeout
	}
	return o.opts.DefaultTimeout
}
