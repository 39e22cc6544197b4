package repository

import (
	"context"
	"sync"
	"time"

	"cloud.google.com/go/firestore"

	"brokerdesk/internal/domain/entity"
	"brokerdesk/internal/domain/gateway"
	"brokerdesk/pkg/logger"
)

// Subscribe opens two snapshot listeners, one on the messages collection
// group and one on the presence collection, and translates their changes
// into the event union. The message listener is anchored at the subscribe
// time so history is never replayed; the presence listener's initial
// snapshot is delivered as-is, since stale records are discarded downstream.
func (g *firestoreGateway) Subscribe(ctx context.Context) (gateway.Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)

	sub := &firestoreSubscription{
		events: make(chan gateway.Event, 64),
		cancel: cancel,
	}

	messages := g.client.CollectionGroup("messages").
		Where("createdAt", ">", time.Now()).
		OrderBy("createdAt", firestore.Asc).
		Snapshots(ctx)
	presence := g.client.Collection("presence").Snapshots(ctx)

	sub.wg.Add(2)
	go sub.pump(ctx, messages, func(doc *firestore.DocumentSnapshot) (gateway.Event, bool) {
		var msg entity.Message
		if err := doc.DataTo(&msg); err != nil {
			logger.Warn("firestore: skipping malformed message event %s: %v", doc.Ref.ID, err)
			return nil, false
		}
		return gateway.MessageInserted{Message: msg}, true
	})
	go sub.pump(ctx, presence, func(doc *firestore.DocumentSnapshot) (gateway.Event, bool) {
		var p entity.Presence
		if err := doc.DataTo(&p); err != nil {
			logger.Warn("firestore: skipping malformed presence event %s: %v", doc.Ref.ID, err)
			return nil, false
		}
		return gateway.PresenceChanged{Presence: p}, true
	})

	go func() {
		sub.wg.Wait()
		close(sub.events)
	}()
	return sub, nil
}

type firestoreSubscription struct {
	events chan gateway.Event
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	err    error
	closed bool
}

func (s *firestoreSubscription) Events() <-chan gateway.Event { return s.events }

func (s *firestoreSubscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	return s.err
}

func (s *firestoreSubscription) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
	return nil
}

// fail records the first listener error and tears the whole feed down; the
// bridge resubscribes and resyncs.
func (s *firestoreSubscription) fail(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
	s.cancel()
}

func (s *firestoreSubscription) pump(
	ctx context.Context,
	iter *firestore.QuerySnapshotIterator,
	translate func(doc *firestore.DocumentSnapshot) (gateway.Event, bool),
) {
	defer s.wg.Done()
	defer iter.Stop()

	for {
		snap, err := iter.Next()
		if err != nil {
			if ctx.Err() == nil {
				s.fail(err)
			}
			return
		}
		for _, change := range snap.Changes {
			if change.Kind == firestore.DocumentRemoved {
				continue
			}
			ev, ok := translate(change.Doc)
			if !ok {
				continue
			}
			select {
			case s.events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}
}
