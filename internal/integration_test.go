// Package internal contains integration tests that verify the pipeline
// packages work together correctly: a full debate run, a resume over its
// artifacts, and a finalize-only pass folding in history and the prior plan.
package internal

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Iron-Ham/megaplan/internal/artifact"
	"github.com/Iron-Ham/megaplan/internal/executor"
	"github.com/Iron-Ham/megaplan/internal/history"
	"github.com/Iron-Ham/megaplan/internal/pipeline"
	"github.com/Iron-Ham/megaplan/internal/plan"
	"github.com/Iron-Ham/megaplan/internal/stage"
)

// TestPlanRefineResolveCycle walks the full lifecycle one prefix goes
// through: an initial debate run, a resume that re-executes nothing, and a
// resolve pass that re-runs only consensus with the history folded in.
func TestPlanRefineResolveCycle(t *testing.T) {
	store := artifact.NewStore(t.TempDir(), "")
	stub := &executor.StubRunner{
		PerStage: map[string]string{
			stage.Consensus: "# Implementation Plan: Search\n\nInitial plan body\n",
		},
	}
	newOrch := func(opts pipeline.Options) *pipeline.Orchestrator {
		opts.Registry = stage.DefaultRegistry()
		opts.Store = store
		opts.Runner = stub
		o, err := pipeline.New(opts)
		if err != nil {
			t.Fatalf("pipeline.New: %v", err)
		}
		return o
	}
	ctx := context.Background()
	const prefix = "issue-42"

	// Initial run: all seven stages execute, the plan gets its footer.
	result, err := newOrch(pipeline.Options{}).Run(ctx, prefix, "Add full-text search")
	if err != nil {
		t.Fatalf("initial run: %v", err)
	}
	if stub.Calls() != 7 {
		t.Fatalf("initial run calls = %d, want 7", stub.Calls())
	}
	if err := plan.AppendFooter(result.PlanPath, plan.ResolveCommitHash(), nil); err != nil {
		t.Fatal(err)
	}
	if got := plan.ExtractTitle(result.PlanPath); got != "Search" {
		t.Errorf("plan title = %q, want Search", got)
	}

	// Resume: everything is served from cache.
	resumed, err := newOrch(pipeline.Options{Resume: true}).Run(ctx, prefix, "Add full-text search")
	if err != nil {
		t.Fatalf("resumed run: %v", err)
	}
	if stub.Calls() != 7 {
		t.Errorf("resume re-executed stages: calls = %d, want 7", stub.Calls())
	}
	for name, res := range resumed.Stages {
		if !res.Cached {
			t.Errorf("stage %s not served from cache on resume", name)
		}
	}

	// Resolve: record the selection, then finalize over the existing outputs.
	log := history.NewLog(store, prefix)
	if err := log.Append(history.KindResolve, "choose the inverted index"); err != nil {
		t.Fatal(err)
	}
	stub.PerStage[stage.Consensus] = "# Implementation Plan: Search\n\nResolved plan body\n"

	finalized, err := newOrch(pipeline.Options{
		PreviousPlanPath: store.OutputPath(prefix, stage.Consensus),
		HistoryPath:      store.HistoryPath(prefix),
	}).Finalize(ctx, prefix, "Add full-text search")
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if stub.Calls() != 8 {
		t.Errorf("finalize calls = %d, want 8 (consensus only)", stub.Calls())
	}

	report, err := store.Read(finalized.DebatePath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(report, "Previous Consensus Plan") {
		t.Error("debate report missing previous plan section")
	}
	if !strings.Contains(report, "choose the inverted index") {
		t.Error("debate report missing history row")
	}

	// The resolved plan overwrites the terminal artifact; re-stamping keeps
	// exactly one footer.
	if err := plan.AppendFooter(finalized.PlanPath, "abc123", nil); err != nil {
		t.Fatal(err)
	}
	if err := plan.AppendFooter(finalized.PlanPath, "abc123", nil); err != nil {
		t.Fatal(err)
	}
	text, _ := store.Read(finalized.PlanPath)
	if got := strings.Count(text, "Plan based on commit"); got != 1 {
		t.Errorf("footer lines = %d, want 1:\n%s", got, text)
	}
	if !strings.Contains(text, "Resolved plan body") {
		t.Error("terminal artifact not overwritten by resolve pass")
	}
}

// TestStageFailurePreservesPartials verifies the abort path across package
// boundaries: a failing tier-2 stage leaves tier-0/1 artifacts usable for a
// later resume.
func TestStageFailurePreservesPartials(t *testing.T) {
	store := artifact.NewStore(t.TempDir(), "")
	stub := &executor.StubRunner{
		Fail: map[string]error{stage.ProposalReducer: context.DeadlineExceeded},
	}
	o, err := pipeline.New(pipeline.Options{
		Registry:       stage.DefaultRegistry(),
		Store:          store,
		Runner:         stub,
		DefaultTimeout: time.Minute,
	})
	if err != nil {
		t.Fatal(err)
	}

	result, err := o.Run(context.Background(), "run1", "task")
	if err == nil {
		t.Fatal("expected run failure")
	}

	for _, name := range []string{stage.Understander, stage.Bold, stage.Paranoia} {
		res, ok := result.Stages[name]
		if !ok {
			t.Fatalf("partial results missing %s", name)
		}
		if text, err := res.Text(); err != nil || text == "" {
			t.Errorf("stage %s artifact unreadable after abort (err=%v)", name, err)
		}
	}
	if _, ok := result.Stages[stage.Consensus]; ok {
		t.Error("consensus must not complete after a debate failure")
	}
}
