package message_broaker

import (
	"context"
	"errors"
)

// ErrDiscard, returned by a Handler, drops a message that can never be processed instead of
// redelivering it.
var ErrDiscard = errors.New("discard message")

// Handler processes one delivered message body.
type Handler func(ctx context.Context, body []byte) error

type MessageBroker interface {
	// Publish sends message with the given routing key to the configured exchange.
	Publish(ctx context.Context, routingKey string, message []byte) error
	// Consume feeds messages from queue to handle until ctx is done or the delivery stream ends.
	// A message is acknowledged only once handle returns nil.
	Consume(ctx context.Context, queue string, handle Handler) error
	Close() error
}
