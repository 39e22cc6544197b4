// Package gateway defines the contract the messaging core consumes from the
// remote messaging backend: two query procedures, a handful of mutations, and
// a push-based change feed. The transport behind it is deliberately opaque.
package gateway

import (
	"context"

	"brokerdesk/internal/domain/entity"
)

// ThreadSummary is one row of the batched thread-list query. PeerPresence is
// populated for direct threads only.
type ThreadSummary struct {
	Thread       entity.Thread
	PeerPresence *entity.Presence
}

type Gateway interface {
	// GetUserThreads returns every thread the user participates in, with
	// last-message preview and the viewer's unread count filled in.
	GetUserThreads(ctx context.Context, userID string) ([]ThreadSummary, error)

	// GetThreadMessages returns a page of history ordered oldest-first by
	// (createdAt, id).
	GetThreadMessages(ctx context.Context, threadID, userID string, limit, offset int) ([]entity.Message, error)

	// SendMessage persists a message and returns it with the server-assigned
	// id and timestamps.
	SendMessage(ctx context.Context, threadID, senderID, body string, attachments []entity.Attachment) (*entity.Message, error)

	CreateThread(ctx context.Context, participantIDs []string, isGroup bool, title, createdBy string) (*entity.Thread, error)

	// UpsertPresence is fire-and-forget; failures are advisory.
	UpsertPresence(ctx context.Context, userID string, status entity.PresenceStatus, typingInThreadID string) error

	// MarkRead is best-effort; failures are advisory.
	MarkRead(ctx context.Context, threadID, userID string, messageIDs []string) error

	// Subscribe opens the push feed. Events are deltas only: no ordering or
	// at-least-once guarantee beyond eventual delivery while connected.
	Subscribe(ctx context.Context) (Subscription, error)
}

// Subscription is a cancellable handle on the push feed. The events channel
// is closed when the feed drops; Err reports the cause, nil after Close.
type Subscription interface {
	Events() <-chan Event
	Err() error
	Close() error
}

// Event is the closed union of feed payloads, so bridge dispatch is
// exhaustive rather than keyed on loose table names.
type Event interface {
	isEvent()
}

type MessageInserted struct {
	Message entity.Message
}

type PresenceChanged struct {
	Presence entity.Presence
}

func (MessageInserted) isEvent() {}
func (PresenceChanged) isEvent() {}
