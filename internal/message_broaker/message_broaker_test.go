package message_broaker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RezaEskandarii/postfire/types"
)

// mockBroker records published messages.
type mockBroker struct {
	publishErr error
	closeErr   error
	consumeErr error
	verdicts   []error
	keys       []string
	messages   [][]byte
}

func (m *mockBroker) Publish(_ context.Context, routingKey string, message []byte) error {
	if m.publishErr != nil {
		return m.publishErr
	}
	m.keys = append(m.keys, routingKey)
	m.messages = append(m.messages, message)
	return nil
}

// Consume hands every recorded message to handle and keeps the verdicts, then ends with
// consumeErr, as a broker does once its context is cancelled.
func (m *mockBroker) Consume(ctx context.Context, _ string, handle Handler) error {
	for _, msg := range m.messages {
		m.verdicts = append(m.verdicts, handle(ctx, msg))
	}
	return m.consumeErr
}

func (m *mockBroker) Close() error { return m.closeErr }

func TestMessageBrokerInterface(t *testing.T) {
	var _ MessageBroker = (*mockBroker)(nil)
	var _ MessageBroker = (*RabbitMQ)(nil)
}

func TestEventPublisher_PublishPostEvent(t *testing.T) {
	broker := &mockBroker{}
	pub := NewEventPublisher(broker, zerolog.Nop())

	err := pub.PublishPostEvent(context.Background(), PostEvent{
		Type:            "post.published",
		ScheduledPostID: "sp-1",
		UserID:          "user-1",
		Status:          "published",
		Results:         []types.PublishResult{{Platform: types.PlatformTwitter, Success: true}},
	})
	require.NoError(t, err)
	require.Len(t, broker.keys, 1)
	assert.Equal(t, "post.published", broker.keys[0])

	var got PostEvent
	require.NoError(t, json.Unmarshal(broker.messages[0], &got))
	assert.Equal(t, "sp-1", got.ScheduledPostID)
	assert.False(t, got.OccurredAt.IsZero())
	require.Len(t, got.Results, 1)
}

func TestEventPublisher_PublishError(t *testing.T) {
	pub := NewEventPublisher(&mockBroker{publishErr: assert.AnError}, zerolog.Nop())

	err := pub.PublishPostEvent(context.Background(), PostEvent{Type: "post.failed"})
	assert.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "post.failed")
}

type ackRecorder struct {
	acked    []uint64
	nacked   []uint64
	requeued []bool
	rejected []uint64
}

func (a *ackRecorder) Ack(tag uint64, _ bool) error {
	a.acked = append(a.acked, tag)
	return nil
}

func (a *ackRecorder) Nack(tag uint64, _ bool, requeue bool) error {
	a.nacked = append(a.nacked, tag)
	a.requeued = append(a.requeued, requeue)
	return nil
}

func (a *ackRecorder) Reject(tag uint64, _ bool) error {
	a.rejected = append(a.rejected, tag)
	return nil
}

func TestSettle(t *testing.T) {
	acks := &ackRecorder{}
	delivery := func(tag uint64, redelivered bool) amqp.Delivery {
		return amqp.Delivery{Acknowledger: acks, DeliveryTag: tag, Redelivered: redelivered, Body: []byte("m")}
	}

	ok := func(context.Context, []byte) error { return nil }
	broken := func(context.Context, []byte) error { return errors.New("sink down") }
	poison := func(context.Context, []byte) error { return ErrDiscard }

	require.NoError(t, settle(context.Background(), delivery(1, false), ok))
	require.NoError(t, settle(context.Background(), delivery(2, false), broken))
	require.NoError(t, settle(context.Background(), delivery(3, true), broken))
	require.NoError(t, settle(context.Background(), delivery(4, false), poison))

	assert.Equal(t, []uint64{1}, acks.acked)
	assert.Equal(t, []uint64{2, 3}, acks.nacked)
	assert.Equal(t, []bool{true, false}, acks.requeued, "a redelivered failure is not requeued again")
	assert.Equal(t, []uint64{4}, acks.rejected)
}

func TestConsumePostEvents(t *testing.T) {
	broker := &mockBroker{consumeErr: context.Canceled}
	pub := NewEventPublisher(broker, zerolog.Nop())
	require.NoError(t, pub.PublishPostEvent(context.Background(), PostEvent{Type: "post.published", ScheduledPostID: "sp-1"}))
	require.NoError(t, broker.Publish(context.Background(), "post.failed", []byte("not json")))
	require.NoError(t, pub.PublishPostEvent(context.Background(), PostEvent{Type: "post.failed", ScheduledPostID: "sp-2"}))

	var got []string
	err := ConsumePostEvents(context.Background(), broker, "", zerolog.Nop(), func(_ context.Context, e PostEvent) error {
		got = append(got, e.ScheduledPostID)
		if e.ScheduledPostID == "sp-2" {
			return errors.New("printer jammed")
		}
		return nil
	})
	require.NoError(t, err, "cancellation ends consumption cleanly")
	assert.Equal(t, []string{"sp-1", "sp-2"}, got)

	require.Len(t, broker.verdicts, 3)
	assert.NoError(t, broker.verdicts[0])
	assert.ErrorIs(t, broker.verdicts[1], ErrDiscard)
	assert.ErrorContains(t, broker.verdicts[2], "printer jammed")
}

func TestConsumePostEvents_BrokerError(t *testing.T) {
	broker := &mockBroker{consumeErr: errors.New("channel closed")}

	err := ConsumePostEvents(context.Background(), broker, "events", zerolog.Nop(), func(context.Context, PostEvent) error { return nil })
	assert.ErrorContains(t, err, "channel closed")
	assert.ErrorContains(t, err, "events")
}
