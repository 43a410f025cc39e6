package graph

import (
	"context"
	"sync"
	"time"

	"github.com/caseflow/caseflow/internal/types"
)

// MockCall represents a recorded query execution on the mock client.
type MockCall struct {
	Method    string
	Cypher    string
	Params    map[string]any
	Timestamp time.Time
}

// mockStep is one scripted response: either a result or an error.
type mockStep struct {
	result Result
	err    error
}

// MockClient is an in-memory implementation of Client for testing.
// Query responses are scripted as a FIFO queue of results and errors;
// every execution is recorded for verification. Sessions and transactions
// honor the same single-owner and terminal-state contracts as the real
// client, and the live session gauge lets tests assert pool discipline.
type MockClient struct {
	mu sync.Mutex

	connected bool
	steps     []mockStep
	calls     []MockCall

	sessionErr error
	beginErr   error
	commitErr  error

	commits   int
	rollbacks int

	liveSessions    int
	maxLiveSessions int
}

// NewMockClient creates a new mock client for testing.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// Connect marks the mock as connected.
func (m *MockClient) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = true
	return nil
}

// Close marks the mock as disconnected.
func (m *MockClient) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	return nil
}

// Health reports healthy while connected.
func (m *MockClient) Health(ctx context.Context) types.HealthStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return types.Unhealthy("not connected")
	}
	return types.Healthy("mock graph client")
}

// Session hands out a mock session, or the configured checkout error.
func (m *MockClient) Session(ctx context.Context, mode AccessMode) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return nil, types.NewError(types.GRAPH_CONNECTION_CLOSED, "not connected")
	}
	if m.sessionErr != nil {
		return nil, m.sessionErr
	}

	m.liveSessions++
	if m.liveSessions > m.maxLiveSessions {
		m.maxLiveSessions = m.liveSessions
	}

	return &mockSession{client: m, mode: mode}, nil
}

// EnqueueResult scripts a successful response for the next execution.
func (m *MockClient) EnqueueResult(result Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, mockStep{result: result})
}

// EnqueueError scripts a failure for the next execution.
func (m *MockClient) EnqueueError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, mockStep{err: err})
}

// SetSessionError configures Session() to fail.
func (m *MockClient) SetSessionError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessionErr = err
}

// SetBeginError configures BeginTx() to fail.
func (m *MockClient) SetBeginError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.beginErr = err
}

// SetCommitError configures Commit() to fail.
func (m *MockClient) SetCommitError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commitErr = err
}

// Calls returns a copy of all recorded executions.
func (m *MockClient) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]MockCall, len(m.calls))
	copy(calls, m.calls)
	return calls
}

// Commits returns how many transactions committed.
func (m *MockClient) Commits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.commits
}

// Rollbacks returns how many transactions rolled back.
func (m *MockClient) Rollbacks() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rollbacks
}

// LiveSessions returns the number of currently checked-out sessions.
func (m *MockClient) LiveSessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.liveSessions
}

// MaxLiveSessions returns the high-water mark of concurrent sessions.
func (m *MockClient) MaxLiveSessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxLiveSessions
}

// run pops the next scripted step and records the call.
func (m *MockClient) run(method, cypher string, params map[string]any) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, MockCall{
		Method:    method,
		Cypher:    cypher,
		Params:    params,
		Timestamp: time.Now(),
	})

	if len(m.steps) == 0 {
		return Result{Records: []map[string]any{}, Columns: []string{}}, nil
	}

	step := m.steps[0]
	m.steps = m.steps[1:]
	return step.result, step.err
}

// mockSession implements Session over the client's scripted steps.
type mockSession struct {
	client *MockClient
	mode   AccessMode

	mu     sync.Mutex
	closed bool
}

func (s *mockSession) Run(ctx context.Context, cypher string, params map[string]any) (Result, error) {
	return s.client.run("Session.Run", cypher, params)
}

func (s *mockSession) BeginTx(ctx context.Context) (Tx, error) {
	s.client.mu.Lock()
	beginErr := s.client.beginErr
	s.client.mu.Unlock()
	if beginErr != nil {
		return nil, beginErr
	}
	return &mockTx{client: s.client}, nil
}

func (s *mockSession) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.client.mu.Lock()
	s.client.liveSessions--
	s.client.mu.Unlock()
	return nil
}

// mockTx implements Tx over the client's scripted steps.
type mockTx struct {
	client *MockClient

	mu       sync.Mutex
	terminal bool
}

func (t *mockTx) Run(ctx context.Context, cypher string, params map[string]any) (Result, error) {
	t.mu.Lock()
	terminal := t.terminal
	t.mu.Unlock()
	if terminal {
		return Result{}, types.NewError(types.TX_FAILED, "transaction already terminated")
	}
	return t.client.run("Tx.Run", cypher, params)
}

func (t *mockTx) Commit(ctx context.Context) error {
	t.mu.Lock()
	if t.terminal {
		t.mu.Unlock()
		return types.NewError(types.TX_FAILED, "transaction already terminated")
	}
	t.terminal = true
	t.mu.Unlock()

	t.client.mu.Lock()
	defer t.client.mu.Unlock()
	if t.client.commitErr != nil {
		return t.client.commitErr
	}
	t.client.commits++
	return nil
}

func (t *mockTx) Rollback(ctx context.Context) error {
	t.mu.Lock()
	if t.terminal {
		t.mu.Unlock()
		return nil
	}
	t.terminal = true
	t.mu.Unlock()

	t.client.mu.Lock()
	defer t.client.mu.Unlock()
	t.client.rollbacks++
	return nil
}
