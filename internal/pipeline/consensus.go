package pipeline

import (
	"context"
	"fmt"

	"github.com/Iron-Ham/megaplan/internal/errors"
	"github.com/Iron-Ham/megaplan/internal/executor"
	"github.com/Iron-Ham/megaplan/internal/plan"
	"github.com/Iron-Ham/megaplan/internal/prompt"
	"github.com/Iron-Ham/megaplan/internal/stage"
)

// Finalize runs only the aggregation and consensus step against the five
// pre-existing debate outputs for the prefix. It fails fast with a
// StructuralError naming every missing stage output, before any executor
// call.
func (o *Orchestrator) Finalize(ctx context.Context, prefix, task string) (*Result, error) {
	result := &Result{Stages: make(map[string]*StageResult)}

	var missing []string
	for _, name := range o.reg.DebateStages() {
		outputPath := o.store.OutputPath(prefix, name)
		if !o.store.Exists(outputPath) {
			missing = append(missing, name)
			continue
		}
		result.Stages[name] = &StageResult{
			Stage:      name,
			OutputPath: outputPath,
			Cached:     true,
			store:      o.store,
		}
	}
	if len(missing) > 0 {
		return result, errors.NewStructuralError("finalize requires existing debate outputs", missing)
	}

	if err := o.runConsensus(ctx, prefix, task, result); err != nil {
		return result, fmt.Errorf("%w: %w", errors.ErrRunAborted, err)
	}
	return result, nil
}

// runConsensus aggregates the debate outputs into the combined report,
// writes the debate artifact, and executes the consensus stage over it.
func (o *Orchestrator) runConsensus(ctx context.Context, prefix, task string, result *Result) error {
	consensus, ok := o.reg.Get(stage.Consensus)
	if !ok {
		return fmt.Errorf("%w: %s", errors.ErrUnknownStage, stage.Consensus)
	}

	featureName := plan.FeatureName(task, 80)

	sections := make([]Section, 0, len(o.reg.DebateStages()))
	for _, name := range o.reg.DebateStages() {
		res, ok := result.Stages[name]
		if !ok {
			return fmt.Errorf("%w: no result for debate stage %q", errors.ErrUnknownStage, name)
		}
		text, err := res.Text()
		if err != nil {
			return err
		}
		sections = append(sections, Section{Stage: name, Text: text})
	}

	report := BuildReport(featureName, sections, o.previousPlan(), o.history(), o.opts.now())

	debatePath := o.store.DebatePath(prefix)
	if err := o.store.Write(debatePath, report); err != nil {
		return err
	}
	result.DebatePath = debatePath

	outputPath := o.store.OutputPath(prefix, consensus.Name)
	if o.shouldSkip(outputPath) {
		o.logger.Info("consensus cached, skipping", "prefix", prefix)
		result.Stages[consensus.Name] = &StageResult{
			Stage:      consensus.Name,
			OutputPath: outputPath,
			Cached:     true,
			store:      o.store,
		}
		result.PlanPath = outputPath
		return nil
	}

	doc, err := prompt.RenderConsensus(featureName, task, report)
	if err != nil {
		return err
	}
	inputPath := o.store.InputPath(prefix, consensus.Name)
	if err := o.store.Write(inputPath, doc); err != nil {
		return err
	}

	o.logger.Info("running consensus", "backend", consensus.Backend, "model", consensus.Model)

	req := executor.Request{
		Stage:          consensus.Name,
		Backend:        consensus.Backend,
		Model:          consensus.Model,
		InputPath:      inputPath,
		OutputPath:     outputPath,
		Tools:          consensus.Tools,
		PermissionMode: consensus.PermissionMode,
		Timeout:        o.stageTimeout(consensus),
	}
	if err := o.runner.Run(ctx, req); err != nil {
		return errors.NewStageError("executor failed", err).
			WithStage(consensus.Name).WithTier(consensus.Tier)
	}

	result.Stages[consensus.Name] = &StageResult{
		Stage:      consensus.Name,
		InputPath:  inputPath,
		OutputPath: outputPath,
		store:      o.store,
	}
	result.PlanPath = outputPath
	return nil
}

// previousPlan loads the prior plan being refined, or "".
func (o *Orchestrator) previousPlan() string {
	if o.opts.PreviousPlanPath == "" || !o.store.Exists(o.opts.PreviousPlanPath) {
		return ""
	}
	text, err := o.store.Read(o.opts.PreviousPlanPath)
	if err != nil {
		o.logger.Warn("failed to read previous plan", "path", o.opts.PreviousPlanPath, "error", err)
		return ""
	}
	return text
}

// history loads the selection history log, or "".
func (o *Orchestrator) history() string {
	if o.opts.HistoryPath == "" || !o.store.Exists(o.opts.HistoryPath) {
		return ""
	}
	text, err := o.store.Read(o.opts.HistoryPath)
	if err != nil {
		o.logger.Warn("failed to read history log", "path", o.opts.HistoryPath, "error", err)
		return ""
	}
	return text
}
