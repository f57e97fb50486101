// Package llmtest provides a scriptable llm.Generator for tests.
package llmtest

import (
	"context"
	"sync"

	"github.com/raphaelgruber/taxonomist/internal/llm"
)

// MockGenerator is a mock implementation of llm.Generator.
// GenerateFunc decides each response; without it every call returns Response.
type MockGenerator struct {
	GenerateFunc func(ctx context.Context, prompt string, opts llm.CallOptions) (string, error)
	Response     string

	mu       sync.Mutex
	calls    int
	prompts  []string
	lastOpts llm.CallOptions
}

var _ llm.Generator = (*MockGenerator)(nil)

func (m *MockGenerator) Generate(ctx context.Context, prompt string, opts llm.CallOptions) (string, error) {
	m.mu.Lock()
	m.calls++
	m.prompts = append(m.prompts, prompt)
	m.lastOpts = opts
	m.mu.Unlock()

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, prompt, opts)
	}
	return m.Response, nil
}

// CallCount returns the number of Generate calls so far.
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Prompts returns a copy of every prompt received, in call order.
func (m *MockGenerator) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// LastOptions returns the options of the most recent call.
func (m *MockGenerator) LastOptions() llm.CallOptions {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastOpts
}
