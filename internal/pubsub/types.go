package pubsub

import "cloud.google.com/go/pubsub"

type client struct {
	client   *pubsub.Client
	teardown func()
}

// EventType represents the type of event/message sent via pubsub.
type EventType string

const (
	EventFinesCreated EventType = "fines-created"
	EventNotifyFines  EventType = "notify-fines"
)

// FinesCreatedEvent is the payload published after a sync run that created
// fines. Consumers re-read the ledger, the payload carries ids only.
type FinesCreatedEvent struct {
	FineIDs      []string `msgpack:"fineIDs"`
	CreatedTotal int      `msgpack:"createdTotal"`
	Skipped      int      `msgpack:"skipped"`
	DryRun       bool     `msgpack:"dryRun"`
}
