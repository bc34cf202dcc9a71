package trends

import (
	"context"
	"sync"
)

// Mock is a scripted provider for tests and offline runs.
type Mock struct {
	mu      sync.Mutex
	Digest  Digest
	Err     error
	Queries []string
}

// NewMock returns a mock with a small canned digest.
func NewMock() *Mock {
	return &Mock{Digest: Digest{
		Web: []Result{
			{Title: "JoSAA 2025 counselling schedule announced", URL: "https://josaa.nic.in", Snippet: "Round one seat allocation dates.", Domain: "josaa.nic.in", Rank: 1},
		},
		Related: []string{"jee advanced 2025 cutoff", "nirf ranking 2025 engineering"},
		News: []Result{
			{Title: "NIRF 2025 rankings released", Source: "Education Desk", Date: "2 days ago", Snippet: "IITs continue to lead.", Rank: 1},
		},
	}}
}

func (m *Mock) Name() string { return string(ProviderMock) }

// Context implements Provider.
func (m *Mock) Context(_ context.Context, query string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Queries = append(m.Queries, query)
	if m.Err != nil {
		return "", m.Err
	}
	d := m.Digest
	d.Query = query
	return d.Text(), nil
}

// Calls returns how many lookups were made.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Queries)
}
