package ai

import (
	"context"
	"sync"
)

// MockGenerator returns a fixed response. It backs the "mock" provider used
// for local development and tests.
type MockGenerator struct {
	Response string
	Err      error
	Calls    int

	mu sync.Mutex
}

// Generate returns the configured response or error.
func (m *MockGenerator) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls++
	if err := ctx.Err(); err != nil {
		return "", &TransportError{Provider: "mock", Err: err}
	}
	if m.Err != nil {
		return "", m.Err
	}
	return m.Response, nil
}
