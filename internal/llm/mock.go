package llm

import (
	"context"
	"sync"
)

// MockGateway is a scriptable Gateway for tests and offline runs. Responses
// are returned in order; GenerateFunc, when set, takes precedence.
type MockGateway struct {
	mu           sync.Mutex
	GenerateFunc func(ctx context.Context, req Request) (string, error)
	Responses    []string
	Err          error
	Connected    bool
	Calls        []Request
	model        string
}

// NewMockGateway creates a mock that reports a healthy connection.
func NewMockGateway(responses ...string) *MockGateway {
	return &MockGateway{Responses: responses, Connected: true, model: ProviderMock.DefaultModel()}
}

func (m *MockGateway) Provider() Provider { return ProviderMock }
func (m *MockGateway) Model() string      { return m.model }

// Generate records the request and returns the next scripted response.
func (m *MockGateway) Generate(ctx context.Context, req Request) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	m.mu.Lock()
	m.Calls = append(m.Calls, req)
	fn := m.GenerateFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Responses) == 0 {
		return "", nil
	}
	resp := m.Responses[0]
	m.Responses = m.Responses[1:]
	return resp, nil
}

// TestConnection reports the Connected field.
func (m *MockGateway) TestConnection(ctx context.Context) bool {
	return m.Connected
}

// CallCount returns the number of Generate calls so far.
func (m *MockGateway) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// LastRequest returns the most recent request.
func (m *MockGateway) LastRequest() Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Calls) == 0 {
		return Request{}
	}
	return m.Calls[len(m.Calls)-1]
}
