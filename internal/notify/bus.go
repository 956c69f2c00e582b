package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

// Topic is the watermill topic carrying viewing events.
const Topic = "viewings"

const bufferSize = 64

// Bus is an in-process event bus backed by a watermill go channel.
// Events published with no subscriber are dropped. Publish returns once
// every subscriber has taken the event, so a single publisher's events
// arrive in order.
type Bus struct {
	pubSub *gochannel.GoChannel
}

// NewBus creates an event bus.
func NewBus() *Bus {
	logger := watermill.NewStdLogger(false, false)
	return &Bus{
		pubSub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer:            bufferSize,
			BlockPublishUntilSubscriberAck: true,
		}, logger),
	}
}

// Publish stamps e with an ID and time when missing and publishes it.
func (b *Bus) Publish(e Event) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}

	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}

	msg := message.NewMessage(e.ID, payload)
	msg.Metadata.Set("type", string(e.Type))
	if err := b.pubSub.Publish(Topic, msg); err != nil {
		return fmt.Errorf("publishing %s: %w", e.Type, err)
	}
	return nil
}

// Subscribe returns decoded events until ctx is cancelled or the bus is
// closed. Messages are acked once decoded; undecodable ones are skipped.
func (b *Bus) Subscribe(ctx context.Context) (<-chan Event, error) {
	messages, err := b.pubSub.Subscribe(ctx, Topic)
	if err != nil {
		return nil, fmt.Errorf("subscribing to %s: %w", Topic, err)
	}

	out := make(chan Event, bufferSize)
	go func() {
		defer close(out)
		for msg := range messages {
			var e Event
			err := json.Unmarshal(msg.Payload, &e)
			msg.Ack()
			if err != nil {
				continue
			}
			select {
			case out <- e:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// Close shuts the bus down, closing all subscriptions.
func (b *Bus) Close() error {
	return b.pubSub.Close()
}
