package pubsub

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	ps "cloud.google.com/go/pubsub"
)

func TestNewPublisherInvalidProject(t *testing.T) {
	if _, err := NewPublisher(context.Background(), ""); err == nil {
		t.Fatal("expected error when project ID is empty")
	}
}

type capturePublisher struct {
	topic   string
	payload []byte
}

func (c *capturePublisher) Publish(_ context.Context, topic string, payload []byte) (string, error) {
	c.topic = topic
	c.payload = payload
	return "msg-1", nil
}

func TestPublishEventStampsTimestamp(t *testing.T) {
	cap := &capturePublisher{}
	id, err := PublishEvent(context.Background(), cap, "billing-events", BillingEvent{
		Type:   EventPlanChanged,
		PlanID: "pro",
	})
	if err != nil {
		t.Fatalf("PublishEvent returned error: %v", err)
	}
	if id != "msg-1" {
		t.Fatalf("expected message ID msg-1, got %q", id)
	}
	if cap.topic != "billing-events" {
		t.Fatalf("expected topic billing-events, got %q", cap.topic)
	}

	var ev BillingEvent
	if err := json.Unmarshal(cap.payload, &ev); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	if ev.Type != EventPlanChanged || ev.PlanID != "pro" {
		t.Fatalf("unexpected event payload: %+v", ev)
	}
	if ev.At.IsZero() {
		t.Fatal("expected At to be stamped")
	}
}

func TestPublishWithEmulator(t *testing.T) {
	emulator := os.Getenv("PUBSUB_EMULATOR_HOST")
	if emulator == "" {
		t.Skip("PUBSUB_EMULATOR_HOST is not set, skip emulator integration test")
	}

	ctx := context.Background()
	pub, err := NewPublisher(ctx, "test-project")
	if err != nil {
		t.Fatalf("failed to create PubSubPublisher: %v", err)
	}

	topicName := "test-topic"
	topic, err := pub.client.CreateTopic(ctx, topicName)
	if err != nil {
		t.Fatalf("failed to create topic: %v", err)
	}
	subName := "test-sub"
	sub, err := pub.client.CreateSubscription(ctx, subName, ps.SubscriptionConfig{Topic: topic})
	if err != nil {
		t.Fatalf("failed to create subscription: %v", err)
	}

	msgID, err := PublishEvent(ctx, pub, topicName, BillingEvent{Type: EventSubscriptionStarted, PlanID: "pro"})
	if err != nil {
		t.Fatalf("PublishEvent returned error: %v", err)
	}
	if msgID == "" {
		t.Fatal("expected non-empty message ID")
	}

	recvCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	c := make(chan []byte, 1)
	go func() {
		_ = sub.Receive(recvCtx, func(_ context.Context, m *ps.Message) {
			m.Ack()
			c <- m.Data
			cancel()
		})
	}()

	select {
	case data := <-c:
		var ev BillingEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			t.Fatalf("received message is not a billing event: %v", err)
		}
		if ev.Type != EventSubscriptionStarted {
			t.Fatalf("unexpected event type %q", ev.Type)
		}
	case <-recvCtx.Done():
		t.Fatal("timed out waiting for message")
	}
}
