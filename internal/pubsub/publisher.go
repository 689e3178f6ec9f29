package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
)

// EventType names a billing lifecycle transition.
type EventType string

const (
	EventSubscriptionStarted  EventType = "subscription.started"
	EventPlanChanged          EventType = "subscription.plan_changed"
	EventSubscriptionCanceled EventType = "subscription.canceled"
	EventSubscriptionResumed  EventType = "subscription.resumed"
	EventPaymentMethodAdded   EventType = "payment_method.added"
	EventPaymentMethodRemoved EventType = "payment_method.removed"
)

// BillingEvent is the payload published after a billing mutation has been
// confirmed by the system of record.
type BillingEvent struct {
	Type     EventType `json:"type"`
	PlanID   string    `json:"plan_id,omitempty"`
	MethodID string    `json:"payment_method_id,omitempty"`
	At       time.Time `json:"at"`
}

// Publisher defines an interface for publishing billing events.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) (string, error)
}

// PubSubPublisher is an implementation of Publisher using Google Pub/Sub.
type PubSubPublisher struct {
	client *pubsub.Client
}

// NewPublisher creates a new PubSubPublisher for the given GCP project.
func NewPublisher(ctx context.Context, projectID string) (*PubSubPublisher, error) {
	if projectID == "" {
		return nil, fmt.Errorf("GCP project ID is required for Pub/Sub")
	}
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Pub/Sub client: %w", err)
	}
	return &PubSubPublisher{client: client}, nil
}

// Publish sends the payload to the given Pub/Sub topic and returns the message ID.
func (p *PubSubPublisher) Publish(ctx context.Context, topic string, payload []byte) (string, error) {
	t := p.client.Topic(topic)
	result := t.Publish(ctx, &pubsub.Message{Data: payload})
	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to publish message to topic %s: %w", topic, err)
	}
	return id, nil
}

// PublishEvent marshals a BillingEvent and publishes it.
func PublishEvent(ctx context.Context, p Publisher, topic string, ev BillingEvent) (string, error) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return "", fmt.Errorf("marshal billing event: %w", err)
	}
	return p.Publish(ctx, topic, payload)
}
