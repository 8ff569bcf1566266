package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub"

	"github.com/harborstay/api/internal/services"
)

// PubSubTransactionPublisher publishes transaction events to a Pub/Sub topic.
type PubSubTransactionPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

var _ services.TransactionEventPublisher = (*PubSubTransactionPublisher)(nil)

// NewPubSubTransactionPublisher constructs a Pub/Sub backed event publisher.
func NewPubSubTransactionPublisher(topic *pubsub.Topic) (*PubSubTransactionPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub transaction publisher: topic is required")
	}
	return &PubSubTransactionPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishTransactionEvent enqueues the event on the configured topic and waits
// for the server acknowledgement.
func (p *PubSubTransactionPublisher) PublishTransactionEvent(ctx context.Context, event services.TransactionEvent) error {
	if p == nil || p.topic == nil {
		return errors.New("pubsub transaction publisher: not initialised")
	}

	data, err := p.marshal(event)
	if err != nil {
		return fmt.Errorf("marshal transaction event: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "type", event.Type)
	setAttr(attrs, "transactionId", event.TransactionID)
	setAttr(attrs, "listingId", event.ListingID)
	setAttr(attrs, "providerId", event.ProviderID)

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish transaction event: %w", err)
	}
	return nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
