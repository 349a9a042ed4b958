package messaging

import (
	"context"
	"sync"
)

// MockMessageSender records every message it is asked to send
type MockMessageSender struct {
	mu       sync.Mutex
	messages []*MatchMessage
	err      error
	closed   bool
}

// NewMockMessageSender creates a new MockMessageSender
func NewMockMessageSender() *MockMessageSender {
	return &MockMessageSender{}
}

// FailWith makes subsequent sends return err
func (m *MockMessageSender) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SendMatchMessage records msg, or returns the configured error. Like the
// real senders it refuses a cancelled context.
func (m *MockMessageSender) SendMatchMessage(ctx context.Context, msg *MatchMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.messages = append(m.messages, msg)
	return nil
}

// Messages returns a copy of the recorded messages
func (m *MockMessageSender) Messages() []*MatchMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*MatchMessage, len(m.messages))
	copy(out, m.messages)
	return out
}

// Reset drops the recorded messages
func (m *MockMessageSender) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = nil
}

// Close marks the sender closed
func (m *MockMessageSender) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called
func (m *MockMessageSender) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

var _ MessageSender = (*MockMessageSender)(nil)
