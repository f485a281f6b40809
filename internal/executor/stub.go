package executor

import (
	"context"
	"os"
	"sync"
)

// StubRunner is a Runner for tests. It records every request it receives and
// writes a canned output per stage (or Output when no per-stage text is set).
// Fail lists stages whose execution should report failure; FailErr overrides
// the error returned for them. StubRunner is safe for concurrent use.
type StubRunner struct {
	Output   string
	PerStage map[string]string
	Fail     map[string]error

	mu       sync.Mutex
	requests []Request
}

// Run implements Runner.
func (s *StubRunner) Run(_ context.Context, req Request) error {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	if err, ok := s.Fail[req.Stage]; ok {
		return err
	}

	text := s.Output
	if perStage, ok := s.PerStage[req.Stage]; ok {
		text = perStage
	}
	if text == "" {
		text = req.Stage + " output\n"
	}
	if err := os.WriteFile(req.OutputPath, []byte(text), 0644); err != nil {
		return err
	}
	return VerifyOutput(req.OutputPath)
}

// Requests returns a copy of the recorded requests.
func (s *StubRunner) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// Calls returns how many times Run was invoked.
func (s *StubRunner) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}
