// Package pipeline drives the multi-stage debate run: tier-ordered
// scheduling with bounded intra-tier parallelism, file-backed memoization,
// deterministic aggregation of the debate report, and the finalize-only
// path that re-runs consensus over existing stage outputs.
//
// # Scheduling
//
// [Orchestrator.Run] walks the [stage.Registry] tier by tier. Stages within
// one tier execute concurrently through the configured [executor.Runner];
// a tier must complete in full before the next one starts. The first stage
// failure aborts the run, returning the partial results collected so far.
//
// # Memoization
//
// In resume mode a stage whose output artifact already exists and is
// non-empty is not re-executed; its result is served from the artifact
// store. Zero-byte artifacts are never treated as cached.
//
// # Aggregation and consensus
//
// After the debate tiers, the orchestrator combines the five debate outputs
// into a single report in fixed registry order, optionally folding in a
// previous plan and the run's selection history, then feeds the report to
// the consensus stage. [Orchestrator.Finalize] skips the debate tiers
// entirely and runs only this aggregation step against pre-existing
// outputs, failing fast when any are missing.
package pipeline
