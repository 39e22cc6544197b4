package messaging

import (
	"context"
	"sync"
	"time"

	"brokerdesk/internal/domain/entity"
	"brokerdesk/internal/domain/gateway"
	"brokerdesk/pkg/logger"
)

type BridgeState int

const (
	BridgeDisconnected BridgeState = iota
	BridgeConnecting
	BridgeSubscribed
)

func (s BridgeState) String() string {
	switch s {
	case BridgeConnecting:
		return "connecting"
	case BridgeSubscribed:
		return "subscribed"
	default:
		return "disconnected"
	}
}

// Bridge owns the push-feed subscription. The feed carries deltas only and
// offers no gap-filling, so every entry into the subscribed state triggers a
// full thread-list resync before events are applied; after an unexpected
// drop it reconnects and resyncs again rather than assuming nothing was
// missed.
type Bridge struct {
	gw           gateway.Gateway
	onSubscribed func(ctx context.Context)
	onMessage    func(msg entity.Message)
	onPresence   func(p entity.Presence)
	retryDelay   time.Duration

	mu    sync.Mutex
	state BridgeState

	cancel context.CancelFunc
	done   chan struct{}
}

func NewBridge(
	gw gateway.Gateway,
	onSubscribed func(ctx context.Context),
	onMessage func(msg entity.Message),
	onPresence func(p entity.Presence),
) *Bridge {
	return &Bridge{
		gw:           gw,
		onSubscribed: onSubscribed,
		onMessage:    onMessage,
		onPresence:   onPresence,
		retryDelay:   time.Second,
		state:        BridgeDisconnected,
		done:         make(chan struct{}),
	}
}

// Start runs the subscribe/dispatch loop until Close or ctx cancellation.
func (b *Bridge) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	b.mu.Lock()
	b.cancel = cancel
	b.mu.Unlock()

	go b.run(ctx)
}

func (b *Bridge) run(ctx context.Context) {
	defer close(b.done)
	defer b.setState(BridgeDisconnected)

	for {
		if ctx.Err() != nil {
			return
		}
		b.setState(BridgeConnecting)

		sub, err := b.gw.Subscribe(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("bridge: subscribe failed, retrying in %s: %v", b.retryDelay, err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(b.retryDelay):
			}
			continue
		}

		// Force the subscription shut on cancellation so the range below
		// cannot outlive the bridge.
		subCtx, subCancel := context.WithCancel(ctx)
		go func() {
			<-subCtx.Done()
			sub.Close()
		}()

		b.setState(BridgeSubscribed)
		b.onSubscribed(ctx)

		for ev := range sub.Events() {
			switch ev := ev.(type) {
			case gateway.MessageInserted:
				b.onMessage(ev.Message)
			case gateway.PresenceChanged:
				b.onPresence(ev.Presence)
			}
		}

		subCancel()
		if ctx.Err() != nil {
			return
		}
		if err := sub.Err(); err != nil {
			logger.Warn("bridge: feed dropped: %v", err)
		}
		b.setState(BridgeDisconnected)
	}
}

// State returns the current connection state.
func (b *Bridge) State() BridgeState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Bridge) setState(s BridgeState) {
	b.mu.Lock()
	b.state = s
	b.mu.Unlock()
}

// Close tears the subscription down and waits for the loop to exit, so no
// callback can mutate coordinator state afterwards.
func (b *Bridge) Close() {
	b.mu.Lock()
	cancel := b.cancel
	b.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-b.done
}
