package shock

import (
	"context"
	"sync"
)

// MockSink records commands for tests. If Err is set, Send returns it,
// simulating a failing device API.
type MockSink struct {
	mu       sync.Mutex
	commands []Command

	Err error
}

// NewMockSink creates an empty mock sink.
func NewMockSink() *MockSink {
	return &MockSink{}
}

// Send records the command.
func (m *MockSink) Send(_ context.Context, cmd Command) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.commands = append(m.commands, cmd)
	return nil
}

// Commands returns a copy of everything sent so far.
func (m *MockSink) Commands() []Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Command, len(m.commands))
	copy(out, m.commands)
	return out
}

// Reset clears the recorded commands.
func (m *MockSink) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands = nil
}
