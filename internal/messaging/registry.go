package messaging

import (
	"context"
	"sync"
	"time"

	"brokerdesk/internal/domain/gateway"
)

// Registry hands out one Coordinator per authenticated user, constructing
// and starting it lazily on first use and closing every instance on server
// shutdown. Coordinators are isolated: each owns its own stores, bridge
// subscription and typing timers. Their lifetime is the registry's, not any
// single request's.
type Registry struct {
	gw            gateway.Gateway
	typingWindow  time.Duration
	backfillLimit int
	notify        func(userID string, n Notification)

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	coordinators map[string]*Coordinator
	closed       bool
}

func NewRegistry(gw gateway.Gateway, typingWindow time.Duration, backfillLimit int, notify func(userID string, n Notification)) *Registry {
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		gw:            gw,
		typingWindow:  typingWindow,
		backfillLimit: backfillLimit,
		notify:        notify,
		ctx:           ctx,
		cancel:        cancel,
		coordinators:  make(map[string]*Coordinator),
	}
}

// Get returns the user's coordinator, creating and starting it if needed.
func (r *Registry) Get(userID string) *Coordinator {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.coordinators[userID]; ok {
		return c
	}

	cfg := Config{
		Viewer:        userID,
		Gateway:       r.gw,
		TypingWindow:  r.typingWindow,
		BackfillLimit: r.backfillLimit,
	}
	if r.notify != nil {
		notify := r.notify
		cfg.Notify = func(n Notification) {
			notify(userID, n)
		}
	}

	c := NewCoordinator(cfg)
	if !r.closed {
		c.Start(r.ctx)
		r.coordinators[userID] = c
	}
	return c
}

// Close tears down every coordinator.
func (r *Registry) Close() {
	r.mu.Lock()
	coordinators := r.coordinators
	r.coordinators = make(map[string]*Coordinator)
	r.closed = true
	r.mu.Unlock()

	r.cancel()
	for _, c := range coordinators {
		c.Close()
	}
}
