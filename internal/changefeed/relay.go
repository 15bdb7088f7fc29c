package changefeed

import (
	"context"
	"encoding/json"
	"fmt"
)

// Transport is the broker connection the relay publishes to and consumes from.
// *rabbitmq.Client satisfies it.
type Transport interface {
	Publish(ctx context.Context, body []byte) error
	Consume(handler func(body []byte) error) error
}

// Relay publishes events to a shared broker and feeds every event received
// from it, including this instance's own, into a local Broker. Writers publish
// only through the relay so each change reaches local subscribers once.
type Relay struct {
	transport Transport
	local     Publisher
}

// NewRelay wires transport to the local publisher.
func NewRelay(transport Transport, local Publisher) *Relay {
	return &Relay{transport: transport, local: local}
}

// Publish encodes event and sends it to the shared broker.
func (r *Relay) Publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode change event: %w", err)
	}
	return r.transport.Publish(ctx, body)
}

// Start begins forwarding broker deliveries to the local publisher.
func (r *Relay) Start() error {
	return r.transport.Consume(r.deliver)
}

func (r *Relay) deliver(body []byte) error {
	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("failed to decode change event: %w", err)
	}
	return r.local.Publish(context.Background(), event)
}
