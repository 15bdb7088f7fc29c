// Package changefeed delivers "something changed" notifications for the
// product table, decoupled from the listing query.
package changefeed

import (
	"context"
	"time"
)

// Op names the kind of change carried by an Event.
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
	// OpResync is emitted by the scheduler, not by a write.
	OpResync Op = "resync"
)

// Event describes one change. Subscribers of the product store ignore the
// payload and re-fetch; it is kept for consumers that want to patch incrementally.
type Event struct {
	Table string    `json:"table"`
	Op    Op        `json:"op"`
	ID    string    `json:"id,omitempty"`
	At    time.Time `json:"at"`
}

// Publisher emits change events.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Subscriber registers handlers for change events.
type Subscriber interface {
	Subscribe(handler func(Event)) *Subscription
}
