// Package executor defines the contract with the external AI executor and
// the backend-specific command construction for launching it.
//
// The orchestrator treats the executor as an opaque long-running subprocess:
// it receives a rendered input artifact, must write its full textual result
// to the output artifact, and reports success or failure through its exit
// status. A reported success with a missing or empty output artifact is
// converted to a failure here, so the scheduler never caches a torn write.
package executor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/gobwas/glob"

	"github.com/Iron-Ham/megaplan/internal/config"
	"github.com/Iron-Ham/megaplan/internal/errors"
	"github.com/Iron-Ham/megaplan/internal/logging"
	"github.com/Iron-Ham/megaplan/internal/stage"
)

// Request describes one stage execution.
type Request struct {
	Stage          string
	Backend        string
	Model          string
	InputPath      string
	OutputPath     string
	Tools          []string
	PermissionMode string
	// Timeout bounds the execution; 0 means no timeout.
	Timeout time.Duration
}

// Runner executes stage requests.
type Runner interface {
	Run(ctx context.Context, req Request) error
}

// CommandRunner shells out to the backend CLI. The prompt is fed on stdin
// and stdout is captured to the output artifact.
type CommandRunner struct {
	claudeCommand string
	codexCommand  string
	permitted     []glob.Glob
	logger        *logging.Logger
}

// NewCommandRunner builds a CommandRunner from executor configuration.
// The permitted-tool patterns are compiled once; an invalid pattern is a
// configuration error.
func NewCommandRunner(cfg config.ExecutorConfig, logger *logging.Logger) (*CommandRunner, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}

	patterns := make([]glob.Glob, 0, len(cfg.PermittedTools))
	for _, p := range cfg.PermittedTools {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid permitted tool pattern %q: %w", p, err)
		}
		patterns = append(patterns, g)
	}

	claudeCmd := cfg.ClaudeCommand
	if claudeCmd == "" {
		claudeCmd = "claude"
	}
	codexCmd := cfg.CodexCommand
	if codexCmd == "" {
		codexCmd = "codex"
	}

	return &CommandRunner{
		claudeCommand: claudeCmd,
		codexCommand:  codexCmd,
		permitted:     patterns,
		logger:        logger,
	}, nil
}

// ValidateTools checks a stage's tool allowlist against the permitted
// patterns. An empty pattern set permits nothing.
func (r *CommandRunner) ValidateTools(tools []string) error {
	for _, tool := range tools {
		allowed := false
		for _, g := range r.permitted {
			if g.Match(tool) {
				allowed = true
				break
			}
		}
		if !allowed {
			return errors.NewValidationError(
				fmt.Sprintf("tool %q not covered by executor.permitted_tools", tool)).
				WithField("tools")
		}
	}
	return nil
}

// Run executes the request and verifies the output artifact.
func (r *CommandRunner) Run(ctx context.Context, req Request) error {
	if err := r.ValidateTools(req.Tools); err != nil {
		return err
	}

	command, args, err := r.buildCommand(req)
	if err != nil {
		return err
	}

	prompt, err := os.ReadFile(req.InputPath)
	if err != nil {
		return fmt.Errorf("failed to read input artifact: %w", err)
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if req.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	out, err := os.OpenFile(req.OutputPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open output artifact: %w", err)
	}
	defer out.Close()

	r.logger.Debug("launching executor",
		"stage", req.Stage, "backend", req.Backend, "model", req.Model, "command", command)

	var stderr strings.Builder
	cmd := exec.CommandContext(runCtx, command, args...)
	cmd.Stdin = strings.NewReader(string(prompt))
	cmd.Stdout = out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return errors.NewTimeoutError(fmt.Sprintf("stage %s execution", req.Stage), req.Timeout).
				WithCause(err)
		}
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return fmt.Errorf("%w: %v: %s", errors.ErrStageFailed, err, msg)
		}
		return fmt.Errorf("%w: %v", errors.ErrStageFailed, err)
	}

	return VerifyOutput(req.OutputPath)
}

// buildCommand constructs the backend argv for the request.
func (r *CommandRunner) buildCommand(req Request) (string, []string, error) {
	switch strings.ToLower(req.Backend) {
	case stage.BackendClaude, "":
		args := []string{"--print"}
		if req.Model != "" {
			args = append(args, "--model", req.Model)
		}
		if len(req.Tools) > 0 {
			args = append(args, "--allowedTools", strings.Join(req.Tools, ","))
		}
		if req.PermissionMode != "" {
			args = append(args, "--permission-mode", req.PermissionMode)
		}
		return r.claudeCommand, args, nil

	case stage.BackendCodex:
		args := []string{"exec", "--full-auto"}
		if req.Model != "" {
			args = append(args, "--model", req.Model)
		}
		return r.codexCommand, args, nil

	default:
		return "", nil, errors.NewValidationError(
			fmt.Sprintf("unknown executor backend %q", req.Backend)).WithField("backend")
	}
}

// VerifyOutput confirms a reported success left a non-empty output artifact.
func VerifyOutput(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %s", errors.ErrEmptyArtifact, path)
	}
	if info.Size() == 0 {
		return fmt.Errorf("%w: %s", errors.ErrEmptyArtifact, path)
	}
	return nil
}
