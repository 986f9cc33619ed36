package message_broaker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/RezaEskandarii/postfire/types"
)

// PostEvent announces a lifecycle change of a scheduled post to downstream consumers.
type PostEvent struct {
	Type            string                `json:"type"`
	ScheduledPostID string                `json:"scheduledPostId"`
	UserID          string                `json:"userId"`
	PostID          string                `json:"postId"`
	Status          string                `json:"status"`
	RetryCount      int                   `json:"retryCount"`
	NextAttemptAt   *time.Time            `json:"nextAttemptAt,omitempty"`
	Results         []types.PublishResult `json:"results"`
	OccurredAt      time.Time             `json:"occurredAt"`
}

// EventPublisher serialises post events onto a MessageBroker using the event type as routing key.
type EventPublisher struct {
	broker MessageBroker
	log    zerolog.Logger
}

func NewEventPublisher(broker MessageBroker, log zerolog.Logger) *EventPublisher {
	return &EventPublisher{broker: broker, log: log.With().Str("component", "events").Logger()}
}

func (p *EventPublisher) PublishPostEvent(ctx context.Context, event PostEvent) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", event.Type, err)
	}
	if err := p.broker.Publish(ctx, event.Type, body); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event.Type, err)
	}
	p.log.Debug().Str("event", event.Type).Str("scheduled_post_id", event.ScheduledPostID).Msg("event published")
	return nil
}

// ConsumePostEvents hands every post event on queue to fn until ctx is cancelled. An event is
// acknowledged once fn returns nil; malformed messages are logged and dropped.
func ConsumePostEvents(ctx context.Context, broker MessageBroker, queue string, log zerolog.Logger, fn func(context.Context, PostEvent) error) error {
	err := broker.Consume(ctx, queue, func(ctx context.Context, body []byte) error {
		var event PostEvent
		if err := json.Unmarshal(body, &event); err != nil {
			log.Warn().Err(err).Msg("dropping malformed post event")
			return fmt.Errorf("%w: %v", ErrDiscard, err)
		}
		if err := fn(ctx, event); err != nil {
			log.Warn().Err(err).Str("event", event.Type).Str("scheduled_post_id", event.ScheduledPostID).Msg("post event not handled")
			return err
		}
		return nil
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to consume %s: %w", queue, err)
	}
	return nil
}
