package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/alfredjeanlab/podium/internal/model"
)

func TestNoopPublisher_Publish(t *testing.T) {
	pub := &NoopPublisher{}
	err := pub.Publish(context.Background(), TopicContractCreated, ContractCreated{})
	if err != nil {
		t.Fatalf("NoopPublisher.Publish returned unexpected error: %v", err)
	}
	if err := pub.Close(); err != nil {
		t.Fatalf("NoopPublisher.Close returned unexpected error: %v", err)
	}
}

func TestPublishers_ImplementPublisher(t *testing.T) {
	var _ Publisher = (*NoopPublisher)(nil)
	var _ Publisher = (*NATSPublisher)(nil)
	var _ Notifier = (*PublishNotifier)(nil)
}

func TestNATSPublisher_Publish(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	nc, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("connecting subscriber: %v", err)
	}
	defer nc.Close()

	ch := make(chan *nats.Msg, 1)
	sub, err := nc.ChanSubscribe(TopicContractSigned, ch)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer sub.Unsubscribe() //nolint:errcheck
	nc.Flush()

	event := ContractSigned{ContractID: "ct-1", SignerType: model.RoleSpeaker, Status: model.StatusPartiallySigned}
	if err := pub.Publish(context.Background(), TopicContractSigned, event); err != nil {
		t.Fatalf("Publish error: %v", err)
	}
	pub.conn.Flush()

	select {
	case msg := <-ch:
		var got ContractSigned
		if err := json.Unmarshal(msg.Data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got.ContractID != "ct-1" || got.SignerType != model.RoleSpeaker || got.Status != model.StatusPartiallySigned {
			t.Errorf("unexpected event %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published message")
	}
}

func TestNATSPublisher_Close(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}

	if err := pub.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	// Publishing after close should fail.
	err = pub.Publish(context.Background(), TopicContractCreated, ContractCreated{})
	if err == nil {
		t.Error("expected error publishing after close")
	}
}

func TestNotifier_PublishesSummary(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	sub, err := NewNATSSubscriber(url)
	if err != nil {
		t.Fatalf("creating subscriber: %v", err)
	}
	defer sub.Close()

	ch, cancel, err := sub.Subscribe(TopicContractFullyExecuted)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer cancel()

	executed := time.Date(2026, time.March, 3, 12, 0, 0, 0, time.UTC)
	eventDate := time.Date(2026, time.April, 10, 0, 0, 0, 0, time.UTC)
	c := &model.Contract{
		ID: "ct-1", Number: "CN-202603-AAAAAA", Title: "Keynote",
		ClientName: "Ada", ClientCompany: "Engines", SpeakerName: "Grace",
		EventTitle: "Summit", EventDate: &eventDate, EventLocation: "Boston",
		TotalAmount: 12500, Currency: "USD", ExecutionAt: &executed,
	}
	if err := NewNotifier(pub).NotifyContractFullyExecuted(context.Background(), c); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	pub.conn.Flush()

	select {
	case msg := <-ch:
		if msg.Topic != TopicContractFullyExecuted {
			t.Errorf("topic = %q", msg.Topic)
		}
		var got CompletionSummary
		if err := json.Unmarshal(msg.Data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got.ContractNumber != c.Number || got.TotalAmount != "$12,500.00" || got.EventDate != "Friday, April 10, 2026" {
			t.Errorf("unexpected summary %+v", got)
		}
		if got.ExecutedAt == nil || !got.ExecutedAt.Equal(executed) {
			t.Errorf("executed_at = %v", got.ExecutedAt)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for completion summary")
	}
}

func TestSummarize_NoEventDate(t *testing.T) {
	s := Summarize(&model.Contract{ID: "ct-2", TotalAmount: 10, Currency: "EUR"})
	if s.EventDate != "" || s.TotalAmount != "€10.00" {
		t.Errorf("unexpected summary %+v", s)
	}
}
