package events

import "context"

var _ Publisher = (*NoopPublisher)(nil)

// NoopPublisher discards every event. The workflow service uses it when
// PODIUM_NATS_URL is unset; persisted audit events are still written.
type NoopPublisher struct{}

func (*NoopPublisher) Publish(context.Context, string, any) error { return nil }

func (*NoopPublisher) Close() error { return nil }
