package llm

import (
	"context"
	"sync"
)

// MockClient implements Reasoner for testing purposes.
// It returns a configured reply (or a per-call function result), can simulate
// errors, and tracks calls for verification.
type MockClient struct {
	mu sync.Mutex

	reply     string
	replyFunc func(p Prompt) (string, error)
	err       error
	available bool

	Calls []Prompt
}

// NewMockClient creates a new MockClient with default settings.
// By default, it is available and returns an empty reply.
func NewMockClient() *MockClient {
	return &MockClient{
		available: true,
		Calls:     make([]Prompt, 0),
	}
}

// WithReply configures the text returned by Complete.
func (m *MockClient) WithReply(reply string) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reply = reply
	return m
}

// WithReplyFunc configures a function computing each reply. It takes precedence
// over WithReply.
func (m *MockClient) WithReplyFunc(fn func(p Prompt) (string, error)) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replyFunc = fn
	return m
}

// WithError configures the error returned by Complete.
func (m *MockClient) WithError(err error) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithAvailable configures whether Available() returns true or false.
func (m *MockClient) WithAvailable(available bool) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.available = available
	return m
}

// Name implements Reasoner.
func (m *MockClient) Name() string {
	return "mock"
}

// Complete implements Reasoner.
func (m *MockClient) Complete(ctx context.Context, p Prompt) (string, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, p)
	fn, reply, err := m.replyFunc, m.reply, m.err
	m.mu.Unlock()

	if err != nil {
		return "", err
	}
	if fn != nil {
		return fn(p)
	}
	return reply, nil
}

// Available implements Reasoner.
func (m *MockClient) Available() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.available
}

// CallCount returns the number of times Complete was called.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
