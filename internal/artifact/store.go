// Package artifact maps run-scoped artifact names to files on disk and
// provides the read/write primitives the pipeline uses for memoization.
//
// Every artifact of one logical run shares the run prefix:
//
//	{prefix}-{stage}-input.md    rendered stage input
//	{prefix}-{stage}{suffix}     stage output (suffix defaults to "-output.md")
//	{prefix}-debate.md           combined debate report
//	{prefix}-history.md          selection/refine history table
//
// The naming scheme guarantees disjoint write sets for concurrently executing
// stages, which is why the pipeline needs no file-level locking within a run.
package artifact

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultOutputSuffix is the stage output filename suffix used when none is
// configured.
const DefaultOutputSuffix = "-output.md"

// Store resolves artifact names beneath a single output directory.
type Store struct {
	dir    string
	suffix string
}

// NewStore creates a Store rooted at dir. An empty suffix selects
// DefaultOutputSuffix.
func NewStore(dir, suffix string) *Store {
	if suffix == "" {
		suffix = DefaultOutputSuffix
	}
	return &Store{dir: dir, suffix: suffix}
}

// Dir returns the store's output directory.
func (s *Store) Dir() string { return s.dir }

// Suffix returns the configured stage output suffix.
func (s *Store) Suffix() string { return s.suffix }

// InputPath returns the rendered input artifact path for a stage.
func (s *Store) InputPath(prefix, stage string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s-%s-input.md", prefix, stage))
}

// OutputPath returns the output artifact path for a stage.
func (s *Store) OutputPath(prefix, stage string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s-%s%s", prefix, stage, s.suffix))
}

// DebatePath returns the combined debate report path for a run.
func (s *Store) DebatePath(prefix string) string {
	return filepath.Join(s.dir, prefix+"-debate.md")
}

// HistoryPath returns the selection/refine history log path for a run.
func (s *Store) HistoryPath(prefix string) string {
	return filepath.Join(s.dir, prefix+"-history.md")
}

// LockPath returns the advisory run lock path for a prefix.
func (s *Store) LockPath(prefix string) string {
	return filepath.Join(s.dir, prefix+".lock")
}

// Exists reports whether the artifact at path exists.
func (s *Store) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Size returns the artifact's size in bytes, or 0 if it does not exist.
func (s *Store) Size(path string) int64 {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return 0
	}
	return info.Size()
}

// Read returns the artifact's full text content.
func (s *Store) Read(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read artifact: %w", err)
	}
	return string(data), nil
}

// Write stores text at path, creating the output directory on demand.
func (s *Store) Write(path, text string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create artifact directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	return nil
}

// Append appends text to the artifact at path, creating it if absent.
func (s *Store) Append(path, text string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create artifact directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open artifact: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(text); err != nil {
		return fmt.Errorf("failed to append artifact: %w", err)
	}
	return nil
}
