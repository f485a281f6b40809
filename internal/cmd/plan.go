package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/megaplan/internal/artifact"
	"github.com/Iron-Ham/megaplan/internal/config"
	"github.com/Iron-Ham/megaplan/internal/errors"
	"github.com/Iron-Ham/megaplan/internal/executor"
	"github.com/Iron-Ham/megaplan/internal/history"
	"github.com/Iron-Ham/megaplan/internal/issue"
	"github.com/Iron-Ham/megaplan/internal/logging"
	"github.com/Iron-Ham/megaplan/internal/pipeline"
	"github.com/Iron-Ham/megaplan/internal/plan"
	"github.com/Iron-Ham/megaplan/internal/runlock"
	"github.com/Iron-Ham/megaplan/internal/stage"
	"github.com/Iron-Ham/megaplan/internal/util"
)

var planCmd = &cobra.Command{
	Use:   "plan [words...]",
	Short: "Run the debate pipeline over a feature description",
	Long: `Run the 7-stage debate pipeline. The positional words form the feature
description in the default mode, selection decisions in resolve mode, or a
refinement focus in refine mode.

Modes:
  default          plan from the feature description; optionally file a
                   placeholder issue so artifacts are keyed by issue number
  --from-issue N   plan from an existing issue's body
  --refine-issue N refine the plan stored in an issue, re-running the debate
  --resolve N      re-run only the consensus stage over existing debate
                   outputs, applying the selections to the stored plan`,
	RunE: runPlan,
}

var (
	planPrefix        string
	planFromIssue     int
	planRefineIssue   int
	planResolve       int
	planSkipConsensus bool
	planVerbose       bool
)

func init() {
	rootCmd.AddCommand(planCmd)

	planCmd.Flags().String("output-dir", ".tmp", "artifact output directory")
	planCmd.Flags().Bool("resume", false, "reuse existing non-empty stage outputs")
	planCmd.Flags().Bool("issue-mode", true, "publish the plan to a GitHub issue")
	planCmd.Flags().StringVar(&planPrefix, "prefix", "", "artifact prefix (default: issue number or timestamp)")
	planCmd.Flags().IntVar(&planFromIssue, "from-issue", 0, "plan from existing issue number")
	planCmd.Flags().IntVar(&planRefineIssue, "refine-issue", 0, "refine the plan in an existing issue")
	planCmd.Flags().IntVarP(&planResolve, "resolve", "r", 0, "resolve disagreements in an issue's plan")
	planCmd.Flags().BoolVar(&planSkipConsensus, "skip-consensus", false, "stop after the debate stages")
	planCmd.Flags().BoolVarP(&planVerbose, "verbose", "v", false, "debug logging")

	_ = viper.BindPFlag("pipeline.output_dir", planCmd.Flags().Lookup("output-dir"))
	_ = viper.BindPFlag("pipeline.resume", planCmd.Flags().Lookup("resume"))
	_ = viper.BindPFlag("issue.enabled", planCmd.Flags().Lookup("issue-mode"))
}

// planRun carries one invocation's resolved mode, inputs, and issue binding.
// A pending history entry is recorded only once the run lock is held.
type planRun struct {
	prefix      string
	task        string
	finalize    bool
	issueNumber int
	issueURL    string
	prevPlan    string
	historyPath string

	historyKind    string
	historyContent string
}

// recordHistory appends the run's pending history entry, if any. Called
// after the run lock is acquired so the append-only log is never written
// concurrently by two runs sharing a prefix.
func (run *planRun) recordHistory(store *artifact.Store) error {
	if run.historyKind == "" {
		return nil
	}
	return history.NewLog(store, run.prefix).Append(run.historyKind, run.historyContent)
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.NopLogger()
	if cfg.Logging.Enabled {
		level := cfg.Logging.Level
		if planVerbose {
			level = "debug"
		}
		logger, err = logging.NewLogger(cfg.Pipeline.OutputDir, level)
		if err != nil {
			return err
		}
		defer logger.Close()
	}

	store := artifact.NewStore(cfg.Pipeline.OutputDir, cfg.Pipeline.OutputSuffix)
	client := issue.NewGHClient(logger)
	positional := strings.Join(args, " ")

	run, err := resolveMode(cmd.Context(), cfg, store, client, positional, logger)
	if err != nil {
		return err
	}

	lock, err := runlock.Acquire(store.LockPath(run.prefix), logger)
	if err != nil {
		return err
	}
	defer lock.Release()

	if err := run.recordHistory(store); err != nil {
		return err
	}

	fmt.Fprintln(os.Stderr, "Starting mega-planner 7-stage debate pipeline...")
	fmt.Fprintf(os.Stderr, "Feature: %s\n", plan.FeatureName(run.task, 80))
	if planVerbose {
		fmt.Fprintf(os.Stderr, "Artifacts prefix: %s\n", run.prefix)
	}

	result, err := executePipeline(cmd.Context(), cfg, store, run, logger)
	if err != nil {
		return err
	}

	if result.PlanPath != "" {
		if err := publishPlan(cmd.Context(), cfg, client, run, result.PlanPath, logger); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "See the full plan locally at: %s\n", result.PlanPath)
		fmt.Println(result.PlanPath)
	}

	fmt.Fprintln(os.Stderr, "Pipeline complete!")
	return nil
}

// resolveMode determines the run prefix, task text, and issue binding for
// the invocation. Resolve mode fails fast when the debate outputs it needs
// are absent, before anything durable is touched; resolve and refine runs
// stage a pending history row that runPlan records once the lock is held.
func resolveMode(ctx context.Context, cfg *config.Config, store *artifact.Store, client issue.Client, positional string, logger *logging.Logger) (*planRun, error) {
	switch {
	case planResolve > 0:
		run := &planRun{
			prefix:      fmt.Sprintf("issue-%d", planResolve),
			finalize:    true,
			issueNumber: planResolve,
		}
		run.prevPlan = store.OutputPath(run.prefix, stage.Consensus)
		run.historyPath = store.HistoryPath(run.prefix)

		var missing []string
		for _, name := range stage.DefaultRegistry().DebateStages() {
			if !store.Exists(store.OutputPath(run.prefix, name)) {
				missing = append(missing, name)
			}
		}
		if len(missing) > 0 {
			return nil, errors.NewStructuralError("resolve requires existing debate outputs", missing)
		}

		run.historyKind = history.KindResolve
		run.historyContent = positional

		body, err := client.Body(ctx, planResolve)
		if err != nil {
			return nil, err
		}
		run.task = plan.StripFooter(body)
		if url, err := client.URL(ctx, planResolve); err == nil {
			run.issueURL = url
		}
		return run, nil

	case planRefineIssue > 0:
		run := &planRun{
			prefix:      fmt.Sprintf("issue-%d", planRefineIssue),
			issueNumber: planRefineIssue,
		}
		if url, err := client.URL(ctx, planRefineIssue); err == nil {
			run.issueURL = url
		}

		body, err := client.Body(ctx, planRefineIssue)
		if err != nil {
			return nil, err
		}
		body = plan.StripFooter(body)
		if !plan.LooksLikePlan(body) {
			fmt.Fprintf(os.Stderr,
				"Warning: Issue #%d does not look like a plan (missing Implementation/Consensus Plan headers)\n",
				planRefineIssue)
		}
		run.task = body
		if positional != "" {
			run.task = fmt.Sprintf("%s\n\nRefinement focus:\n%s", body, positional)
		}

		run.historyPath = store.HistoryPath(run.prefix)
		summary := positional
		if summary == "" {
			summary = "general refinement"
		}
		run.historyKind = history.KindRefine
		run.historyContent = util.TruncateString(summary, 80)
		return run, nil

	case planFromIssue > 0:
		run := &planRun{
			prefix:      fmt.Sprintf("issue-%d", planFromIssue),
			issueNumber: planFromIssue,
		}
		if url, err := client.URL(ctx, planFromIssue); err == nil {
			run.issueURL = url
		}
		body, err := client.Body(ctx, planFromIssue)
		if err != nil {
			return nil, err
		}
		run.task = body
		return run, nil

	default:
		if positional == "" {
			return nil, fmt.Errorf("feature description required (pass as positional argument)")
		}
		run := &planRun{task: positional}
		run.prefix = planPrefix
		if run.prefix == "" {
			run.prefix = time.Now().Format("20060102-150405")
		}

		if cfg.Issue.Enabled {
			title := fmt.Sprintf("%s placeholder: %s", cfg.Issue.TitlePrefix, plan.FeatureName(positional, 50))
			number, url, err := client.Create(ctx, title, positional)
			if err != nil {
				logger.Warn("issue creation failed, falling back to timestamp artifacts", "error", err)
				fmt.Fprintln(os.Stderr, "Warning: Issue creation failed, falling back to timestamp artifacts")
				return run, nil
			}
			run.issueNumber = number
			run.issueURL = url
			run.prefix = fmt.Sprintf("issue-%d", number)
			fmt.Fprintf(os.Stderr, "Created placeholder issue #%d\n", number)
		}
		return run, nil
	}
}

// executePipeline builds the orchestrator for the run and executes either
// the full pipeline or the finalize-only path.
func executePipeline(ctx context.Context, cfg *config.Config, store *artifact.Store, run *planRun, logger *logging.Logger) (*pipeline.Result, error) {
	overrides := make(map[string]stage.Override, len(cfg.Executor.Overrides))
	for name, o := range cfg.Executor.Overrides {
		overrides[name] = stage.Override{Backend: o.Backend, Model: o.Model}
	}
	registry, err := stage.DefaultRegistry().WithOverrides(overrides)
	if err != nil {
		return nil, err
	}

	runner, err := executor.NewCommandRunner(cfg.Executor, logger)
	if err != nil {
		return nil, err
	}

	orch, err := pipeline.New(pipeline.Options{
		Registry:         registry,
		Store:            store,
		Runner:           runner,
		Logger:           logger.WithRun(run.prefix),
		MaxParallel:      cfg.Pipeline.MaxParallel,
		Resume:           cfg.Pipeline.Resume,
		SkipConsensus:    planSkipConsensus,
		DefaultTimeout:   cfg.Executor.Timeout(),
		PreviousPlanPath: run.prevPlan,
		HistoryPath:      run.historyPath,
	})
	if err != nil {
		return nil, err
	}

	if run.finalize {
		return orch.Finalize(ctx, run.prefix, run.task)
	}
	return orch.Run(ctx, run.prefix, run.task)
}

// publishPlan stamps the provenance footer and, in issue mode, pushes the
// plan into the bound issue.
func publishPlan(ctx context.Context, cfg *config.Config, client issue.Client, run *planRun, planPath string, logger *logging.Logger) error {
	if err := plan.AppendFooter(planPath, plan.ResolveCommitHash(), logger); err != nil {
		return err
	}

	if !cfg.Issue.Enabled || run.issueNumber == 0 {
		return nil
	}

	fmt.Fprintf(os.Stderr, "Publishing plan to issue #%d...\n", run.issueNumber)
	title := plan.ExtractTitle(planPath)
	if title == "" {
		title = plan.FeatureName(run.task, 50)
	}
	title = plan.ApplyIssueTag(title, run.issueNumber)

	if err := client.Edit(ctx, run.issueNumber, fmt.Sprintf("%s %s", cfg.Issue.TitlePrefix, title), planPath); err != nil {
		return err
	}
	if err := client.AddLabels(ctx, run.issueNumber, cfg.Issue.Labels); err != nil {
		return err
	}
	if run.issueURL != "" {
		fmt.Fprintf(os.Stderr, "See the full plan at: %s\n", run.issueURL)
	}
	return nil
}
