package command

import (
	"context"
	"strings"
	"sync"
)

// Call records one invocation seen by MockExecutor.
type Call struct {
	Dir   string
	Name  string
	Args  []string
	Input []byte
}

// Line renders the call as a command line.
func (c Call) Line() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// MockExecutor is a mock implementation of Executor for testing
type MockExecutor struct {
	MockOutput []byte
	MockError  error

	// OnRun, when set, replaces MockOutput and MockError. Tests use it to
	// create the files a real command would leave behind.
	OnRun func(call Call) ([]byte, error)

	mu    sync.Mutex
	calls []Call
}

func (m *MockExecutor) Run(ctx context.Context, dir string, name string, args ...string) ([]byte, error) {
	return m.RunInput(ctx, dir, nil, name, args...)
}

func (m *MockExecutor) RunInput(ctx context.Context, dir string, input []byte, name string, args ...string) ([]byte, error) {
	call := Call{Dir: dir, Name: name, Args: args, Input: input}

	m.mu.Lock()
	m.calls = append(m.calls, call)
	m.mu.Unlock()

	if m.OnRun != nil {
		return m.OnRun(call)
	}
	return m.MockOutput, m.MockError
}

// Calls returns the invocations seen so far.
func (m *MockExecutor) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}
