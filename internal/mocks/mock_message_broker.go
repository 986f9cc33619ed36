package mocks

import (
	"context"
	"errors"
	"sync"

	"github.com/RezaEskandarii/postfire/internal/message_broaker"
)

// MockMessageBroker records every published message.
type MockMessageBroker struct {
	mu          sync.Mutex
	PublishFunc func(ctx context.Context, routingKey string, message []byte) error
	Published   map[string][][]byte
}

func (m *MockMessageBroker) Publish(ctx context.Context, routingKey string, message []byte) error {
	if m.PublishFunc != nil {
		if err := m.PublishFunc(ctx, routingKey, message); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Published == nil {
		m.Published = make(map[string][][]byte)
	}
	m.Published[routingKey] = append(m.Published[routingKey], message)
	return nil
}

// Count returns how many messages were published with routingKey.
func (m *MockMessageBroker) Count(routingKey string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Published[routingKey])
}

// Consume replays every published message to handle, then returns.
func (m *MockMessageBroker) Consume(ctx context.Context, _ string, handle message_broaker.Handler) error {
	m.mu.Lock()
	var bodies [][]byte
	for _, msgs := range m.Published {
		bodies = append(bodies, msgs...)
	}
	m.mu.Unlock()

	for _, body := range bodies {
		if err := handle(ctx, body); err != nil && !errors.Is(err, message_broaker.ErrDiscard) {
			return err
		}
	}
	return nil
}

func (m *MockMessageBroker) Close() error { return nil }
