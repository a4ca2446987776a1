package llm

import (
	"context"
	"errors"
	"sync"
)

// MockCompleter is a scriptable Completer for development and tests.
// Queued results are returned in order; once exhausted it echoes a fixed
// reply.
type MockCompleter struct {
	mu      sync.Mutex
	results []mockResult
	prompts []string
}

type mockResult struct {
	text string
	err  error
}

// ErrMockUnavailable is a canned completion failure
var ErrMockUnavailable = errors.New("mock completion unavailable")

// DefaultMockReply is returned when no result is queued
const DefaultMockReply = "Thanks for reaching out! How can I help?"

// Ensure MockCompleter implements Completer.
var _ Completer = (*MockCompleter)(nil)

// NewMockCompleter creates an empty mock
func NewMockCompleter() *MockCompleter {
	return &MockCompleter{}
}

// Reply queues a successful completion
func (m *MockCompleter) Reply(text string) *MockCompleter {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, mockResult{text: text})
	return m
}

// Fail queues a failed completion
func (m *MockCompleter) Fail(err error) *MockCompleter {
	if err == nil {
		err = ErrMockUnavailable
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, mockResult{err: err})
	return m
}

// Prompts returns every prompt received so far
func (m *MockCompleter) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// Calls returns the number of Complete calls
func (m *MockCompleter) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

// Complete implements Completer
func (m *MockCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, prompt)

	if len(m.results) == 0 {
		return DefaultMockReply, nil
	}
	r := m.results[0]
	m.results = m.results[1:]
	return r.text, r.err
}
