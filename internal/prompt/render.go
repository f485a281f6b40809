// Package prompt renders the input documents for pipeline stages.
//
// Agent prompt templates are embedded in the binary. Rendering is a pure
// function of the stage, the task description, and the outputs of the
// stage's declared dependencies; the scheduler writes the rendered text to
// the artifact store before invoking the executor, so no stage ever renders
// against a path that does not yet exist.
package prompt

import (
	"embed"
	"fmt"
	"regexp"
	"strings"

	"github.com/Iron-Ham/megaplan/internal/stage"
)

//go:embed prompts/*.md
var promptFS embed.FS

var frontmatterRe = regexp.MustCompile(`(?s)^---\s*\n.*?\n---\s*\n`)

// agentPromptFiles maps stage names to their embedded prompt templates.
var agentPromptFiles = map[string]string{
	stage.Understander:    "understander.md",
	stage.Bold:            "bold-proposer.md",
	stage.Paranoia:        "paranoia-proposer.md",
	stage.Critique:        "proposal-critique.md",
	stage.ProposalReducer: "proposal-reducer.md",
	stage.CodeReducer:     "code-reducer.md",
}

const synthesizeFile = "synthesize.md"

// Dependency pairs a dependency stage name with its output text.
type Dependency struct {
	Stage  string
	Output string
}

// stripFrontmatter removes a leading YAML frontmatter block from markdown.
func stripFrontmatter(content string) string {
	return frontmatterRe.ReplaceAllString(content, "")
}

// agentPrompt loads and cleans the embedded prompt for a stage.
func agentPrompt(name string) (string, error) {
	file, ok := agentPromptFiles[name]
	if !ok {
		return "", fmt.Errorf("no agent prompt for stage %q", name)
	}
	raw, err := promptFS.ReadFile("prompts/" + file)
	if err != nil {
		return "", fmt.Errorf("failed to read agent prompt %s: %w", file, err)
	}
	return stripFrontmatter(string(raw)), nil
}

// sectionLabel returns the heading under which a dependency's output is
// embedded in a downstream stage's input document.
func sectionLabel(dep string) string {
	switch dep {
	case stage.Understander:
		return "Previous Stage Output"
	case stage.Bold:
		return "Bold Proposal"
	case stage.Paranoia:
		return "Paranoia Proposal"
	default:
		return dep + " output"
	}
}

// RenderStage produces the input document for a debate-tier stage: the agent
// prompt, the feature request, then one delimited section per dependency in
// declaration order.
func RenderStage(name, task string, deps []Dependency) (string, error) {
	base, err := agentPrompt(name)
	if err != nil {
		return "", err
	}

	parts := []string{base}
	parts = append(parts, "\n---\n")
	parts = append(parts, "# Feature Request\n")
	parts = append(parts, task)

	for _, dep := range deps {
		parts = append(parts, "\n---\n")
		parts = append(parts, fmt.Sprintf("# %s\n", sectionLabel(dep.Stage)))
		parts = append(parts, dep.Output)
	}

	return strings.Join(parts, "\n"), nil
}

// RenderConsensus fills the synthesize template with the feature name,
// description, and combined debate report.
func RenderConsensus(featureName, featureDesc, report string) (string, error) {
	raw, err := promptFS.ReadFile("prompts/" + synthesizeFile)
	if err != nil {
		return "", fmt.Errorf("failed to read synthesize prompt: %w", err)
	}
	template := stripFrontmatter(string(raw))

	rendered := strings.ReplaceAll(template, "{{FEATURE_NAME}}", featureName)
	rendered = strings.ReplaceAll(rendered, "{{FEATURE_DESCRIPTION}}", featureDesc)
	rendered = strings.ReplaceAll(rendered, "{{COMBINED_REPORT}}", report)
	return rendered, nil
}
