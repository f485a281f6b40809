// Package issue wraps the gh CLI for the issue-backed planning modes: the
// plan lives in a GitHub issue body, and runs keyed by `issue-<n>` prefixes
// read and update it.
package issue

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/Iron-Ham/megaplan/internal/logging"
)

// issueURLRe captures the issue number from a created issue's URL.
var issueURLRe = regexp.MustCompile(`/issues/(\d+)\s*$`)

// Client is the issue tracker surface the CLI layer consumes.
type Client interface {
	// Create opens a new issue and returns its number and URL.
	Create(ctx context.Context, title, body string) (int, string, error)
	// Body returns the issue's current body text.
	Body(ctx context.Context, number int) (string, error)
	// URL returns the issue's web URL.
	URL(ctx context.Context, number int) (string, error)
	// Edit replaces the issue's title and body (body read from a file).
	Edit(ctx context.Context, number int, title, bodyFile string) error
	// AddLabels attaches labels to the issue.
	AddLabels(ctx context.Context, number int, labels []string) error
}

// runFunc executes an external command and returns its stdout.
type runFunc func(ctx context.Context, name string, args ...string) (string, error)

// GHClient implements Client by shelling out to the gh CLI.
type GHClient struct {
	logger *logging.Logger
	run    runFunc
}

// NewGHClient creates a gh-backed issue client.
func NewGHClient(logger *logging.Logger) *GHClient {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &GHClient{logger: logger, run: runCommand}
}

func runCommand(ctx context.Context, name string, args ...string) (string, error) {
	var stderr strings.Builder
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return "", fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, msg)
		}
		return "", fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return string(out), nil
}

// Create implements Client. The issue number is parsed from the URL gh
// prints; a URL that does not end in an issue number is an error.
func (c *GHClient) Create(ctx context.Context, title, body string) (int, string, error) {
	out, err := c.run(ctx, "gh", "issue", "create", "--title", title, "--body", body)
	if err != nil {
		return 0, "", fmt.Errorf("failed to create issue: %w", err)
	}

	url := strings.TrimSpace(out)
	m := issueURLRe.FindStringSubmatch(out)
	if m == nil {
		return 0, url, fmt.Errorf("could not parse issue number from URL %q", url)
	}
	number, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, url, fmt.Errorf("could not parse issue number from URL %q", url)
	}

	c.logger.Info("created issue", "number", number, "url", url)
	return number, url, nil
}

// Body implements Client.
func (c *GHClient) Body(ctx context.Context, number int) (string, error) {
	out, err := c.run(ctx, "gh", "issue", "view", strconv.Itoa(number), "--json", "body", "--jq", ".body")
	if err != nil {
		return "", fmt.Errorf("failed to read issue #%d body: %w", number, err)
	}
	return out, nil
}

// URL implements Client.
func (c *GHClient) URL(ctx context.Context, number int) (string, error) {
	out, err := c.run(ctx, "gh", "issue", "view", strconv.Itoa(number), "--json", "url", "--jq", ".url")
	if err != nil {
		return "", fmt.Errorf("failed to resolve issue #%d URL: %w", number, err)
	}
	return strings.TrimSpace(out), nil
}

// Edit implements Client.
func (c *GHClient) Edit(ctx context.Context, number int, title, bodyFile string) error {
	args := []string{"issue", "edit", strconv.Itoa(number), "--body-file", bodyFile}
	if title != "" {
		args = append(args, "--title", title)
	}
	if _, err := c.run(ctx, "gh", args...); err != nil {
		return fmt.Errorf("failed to edit issue #%d: %w", number, err)
	}
	c.logger.Info("updated issue with plan", "number", number)
	return nil
}

// AddLabels implements Client.
func (c *GHClient) AddLabels(ctx context.Context, number int, labels []string) error {
	if len(labels) == 0 {
		return nil
	}
	args := []string{"issue", "edit", strconv.Itoa(number), "--add-label", strings.Join(labels, ",")}
	if _, err := c.run(ctx, "gh", args...); err != nil {
		return fmt.Errorf("failed to label issue #%d: %w", number, err)
	}
	return nil
}
