// Package plan post-processes the terminal plan artifact: it stamps the
// provenance footer, extracts and tags the plan title, and derives a short
// feature name from the task description.
package plan

import (
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"

	"github.com/Iron-Ham/megaplan/internal/logging"
	"github.com/Iron-Ham/megaplan/internal/util"
)

const (
	footerPrefix = "Plan based on commit "

	// UnknownCommit is the sentinel used when the commit hash cannot be
	// resolved. The footer is stamped either way.
	UnknownCommit = "unknown"
)

var (
	footerRe    = regexp.MustCompile(`^Plan based on commit (?:[0-9a-f]+|unknown)$`)
	titleRe     = regexp.MustCompile(`^#\s*(Implementation|Consensus) Plan:\s*(.+)$`)
	titleHintRe = regexp.MustCompile(`(?i)(Implementation Plan:|Consensus Plan:)`)
	hexRe       = regexp.MustCompile(`^[0-9a-f]+$`)
)

// ResolveCommitHash returns the current HEAD commit hash, or UnknownCommit
// when the hash cannot be resolved (not a repository, git missing, or
// unexpected output). It never returns an error.
func ResolveCommitHash() string {
	out, err := exec.Command("git", "rev-parse", "HEAD").Output()
	if err != nil {
		return UnknownCommit
	}
	hash := strings.ToLower(strings.TrimSpace(string(out)))
	if !hexRe.MatchString(hash) {
		return UnknownCommit
	}
	return hash
}

// Footer returns the provenance footer line for a commit hash, without a
// trailing newline.
func Footer(hash string) string {
	if hash == "" {
		hash = UnknownCommit
	}
	return footerPrefix + hash
}

// AppendFooter stamps the provenance footer onto the artifact at path. The
// append is idempotent: if the trailing non-blank line already equals the
// footer, the file is left untouched. A missing artifact is logged and
// skipped rather than treated as an error.
func AppendFooter(path, hash string, logger *logging.Logger) error {
	if logger == nil {
		logger = logging.NopLogger()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn("plan artifact missing, skipping provenance footer", "path", path)
			return nil
		}
		return fmt.Errorf("failed to read plan artifact: %w", err)
	}

	footer := Footer(hash)
	text := string(data)
	if lastLine(text) == footer {
		return nil
	}

	var b strings.Builder
	b.WriteString(text)
	if text != "" && !strings.HasSuffix(text, "\n") {
		b.WriteString("\n")
	}
	b.WriteString(footer)
	b.WriteString("\n")

	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("failed to stamp provenance footer: %w", err)
	}
	logger.Debug("stamped provenance footer", "path", path, "commit", hash)
	return nil
}

// StripFooter removes a trailing provenance footer from text, along with any
// blank lines above it. Text without a footer is returned unchanged. Whether
// the result ends in a newline matches the input.
func StripFooter(text string) string {
	if text == "" {
		return text
	}
	trailingNewline := strings.HasSuffix(text, "\n")

	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) == 0 {
		return ""
	}
	if !footerRe.MatchString(strings.TrimSpace(lines[len(lines)-1])) {
		return text
	}
	lines = lines[:len(lines)-1]

	out := strings.Join(lines, "\n")
	if trailingNewline && out != "" {
		out += "\n"
	}
	return out
}

// lastLine returns the trailing non-blank line of text, or "".
func lastLine(text string) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) != "" {
			return lines[i]
		}
	}
	return ""
}

// ExtractTitle scans the artifact at path for the first plan heading, either
// "# Implementation Plan: <title>" or the legacy "# Consensus Plan: <title>",
// and returns the trimmed title. A missing file or absent heading yields "";
// ExtractTitle never returns an error.
func ExtractTitle(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(string(data), "\n") {
		if m := titleRe.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			return strings.TrimSpace(m[2])
		}
	}
	return ""
}

// ApplyIssueTag prepends "[#<number>]" to a plan title. The prepend is
// idempotent; an empty title yields the bare tag.
func ApplyIssueTag(title string, number int) string {
	tag := fmt.Sprintf("[#%d]", number)
	if title == "" {
		return tag
	}
	if strings.HasPrefix(title, tag) {
		return title
	}
	return tag + " " + title
}

// LooksLikePlan reports whether text carries a plan heading anywhere, in
// either the current or legacy form. Used to warn when refining an issue
// whose body is not a plan.
func LooksLikePlan(text string) bool {
	return titleHintRe.MatchString(text)
}

// FeatureName derives a short display name from a task description: the
// first non-empty line, truncated to maxLen runes. A non-positive maxLen
// uses the default of 80.
func FeatureName(desc string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = 80
	}
	return util.TruncateString(util.FirstLine(desc), maxLen)
}
