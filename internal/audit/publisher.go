package audit

import (
	"encoding/json"
	"strconv"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// Publish sends an attempt event.
type Publish func(event *AttemptEvent) error

// NewPublishFunc creates a Publish bound to TopicAttempted on publisher.
func NewPublishFunc(publisher message.Publisher) Publish {
	return func(event *AttemptEvent) error {
		payload, err := json.Marshal(event)
		if err != nil {
			return err
		}

		msg := message.NewMessage(watermill.NewUUID(), payload)
		msg.Metadata.Set("outcome", string(event.Outcome))
		msg.Metadata.Set("provider", strconv.Itoa(event.ProviderIndex))

		return publisher.Publish(TopicAttempted, msg)
	}
}

// Discard is a Publish that drops every event.
func Discard(*AttemptEvent) error {
	return nil
}

// Publisher owns the underlying message publisher's lifecycle.
type Publisher struct {
	publisher message.Publisher
}

// NewPublisher wraps publisher.
func NewPublisher(publisher message.Publisher) *Publisher {
	return &Publisher{publisher: publisher}
}

// Publish returns the typed publish function for this publisher.
func (p *Publisher) Publish() Publish {
	return NewPublishFunc(p.publisher)
}

// Shutdown closes the underlying publisher.
func (p *Publisher) Shutdown() error {
	return p.publisher.Close()
}
