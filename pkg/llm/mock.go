package llm

import (
	"context"
	"sync"
)

// MockGateway is a configurable Gateway for tests. CompleteFunc controls the
// response; every call is recorded.
type MockGateway struct {
	CompleteFunc func(ctx context.Context, prompt string, params Params) (string, error)

	mu    sync.Mutex
	calls []MockCall
}

// MockCall is one recorded Complete call.
type MockCall struct {
	Prompt string
	Params Params
}

// NewMockGateway returns a mock that answers every prompt with response.
func NewMockGateway(response string) *MockGateway {
	return &MockGateway{
		CompleteFunc: func(context.Context, string, Params) (string, error) {
			return response, nil
		},
	}
}

// Complete implements Gateway.
func (m *MockGateway) Complete(ctx context.Context, prompt string, params Params) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, MockCall{Prompt: prompt, Params: params})
	m.mu.Unlock()

	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, prompt, params)
	}
	return "", nil
}

// Calls returns a copy of the recorded calls.
func (m *MockGateway) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockCall(nil), m.calls...)
}

// CallCount returns the number of calls, optionally filtered by operation.
func (m *MockGateway) CallCount(operation string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if operation == "" {
		return len(m.calls)
	}
	n := 0
	for _, c := range m.calls {
		if c.Params.Operation == operation {
			n++
		}
	}
	return n
}

var (
	_ Gateway = (*MockGateway)(nil)
	_ Gateway = (*OpenAIGateway)(nil)
	_ Gateway = (*AnthropicGateway)(nil)
	_ Gateway = (*ResilientGateway)(nil)
)
