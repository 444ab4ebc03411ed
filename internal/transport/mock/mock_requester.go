package mock

import (
	"context"
	"sync"

	"github.com/yourorg/klarna-connector/internal/transport"
)

// Call records one invocation of Do.
type Call struct {
	CredentialName string
	Request        transport.Request
}

// MockRequester is a scripted transport.Requester for tests.
type MockRequester struct {
	// DoFunc handles each call. When nil, Do answers "{}".
	DoFunc func(ctx context.Context, credentialName string, req transport.Request) ([]byte, error)

	mu    sync.Mutex
	calls []Call
}

// NewMockRequester creates a requester that answers every call with "{}".
func NewMockRequester() *MockRequester {
	return &MockRequester{}
}

// Do records the call and delegates to DoFunc.
func (m *MockRequester) Do(ctx context.Context, credentialName string, req transport.Request) ([]byte, error) {
	m.mu.Lock()
	m.calls = append(m.calls, Call{CredentialName: credentialName, Request: req})
	m.mu.Unlock()

	if m.DoFunc != nil {
		return m.DoFunc(ctx, credentialName, req)
	}
	return []byte("{}"), nil
}

// Calls returns a copy of the recorded calls.
func (m *MockRequester) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}
