package pipeline

import (
	"fmt"
	"strings"
	"time"
)

// partTitles maps debate stage names to their report section titles.
var partTitles = map[string]string{
	"bold":             "Bold Proposer",
	"paranoia":         "Paranoia Proposer",
	"critique":         "Critique",
	"proposal-reducer": "Proposal Reducer",
	"code-reducer":     "Code Reducer",
}

// Section is one debate stage's contribution to the combined report.
type Section struct {
	Stage string
	Text  string
}

// BuildReport combines the debate stage outputs into the single report fed
// to the consensus stage. Section order follows the order of sections, which
// the orchestrator derives from the registry, so the report is identical
// regardless of stage completion order. A previous plan and the selection
// history are appended as extra parts when non-empty.
func BuildReport(featureName string, sections []Section, prevPlan, history string, now time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Multi-Agent Debate Report (Mega-Planner): %s\n\n", featureName)
	fmt.Fprintf(&b, "**Generated**: %s\n\n", now.Format("2006-01-02 15:04"))
	b.WriteString("This document combines five perspectives from the mega-planner dual-proposer debate system:\n")
	b.WriteString("1. **Bold Proposer**: Innovative, SOTA-driven approach\n")
	b.WriteString("2. **Paranoia Proposer**: Destructive refactoring approach\n")
	b.WriteString("3. **Critique**: Feasibility analysis of both proposals\n")
	b.WriteString("4. **Proposal Reducer**: Simplification of both proposals\n")
	b.WriteString("5. **Code Reducer**: Code footprint analysis\n\n")
	b.WriteString("---\n")

	for i, s := range sections {
		fmt.Fprintf(&b, "\n## Part %d: %s\n\n%s\n\n---\n", i+1, partTitle(s.Stage), s.Text)
	}

	part := len(sections)
	if prevPlan != "" {
		part++
		fmt.Fprintf(&b, "\n## Part %d: Previous Consensus Plan\n\n", part)
		b.WriteString("The following is the previous consensus plan being refined:\n\n")
		fmt.Fprintf(&b, "%s\n\n---\n", prevPlan)
	}
	if history != "" {
		part++
		fmt.Fprintf(&b, "\n## Part %d: Selection & Refine History\n\n", part)
		b.WriteString("**IMPORTANT**: The last row of the table below contains the current task requirement.\n")
		b.WriteString("Apply the current task to the previous consensus plan to generate the updated plan.\n\n")
		fmt.Fprintf(&b, "%s\n\n---\n", history)
	}

	return b.String()
}

func partTitle(stageName string) string {
	if title, ok := partTitles[stageName]; ok {
		return title
	}
	return stageName
}
