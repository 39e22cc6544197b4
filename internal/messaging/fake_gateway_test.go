package messaging

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"brokerdesk/internal/domain/entity"
	"brokerdesk/internal/domain/gateway"
)

// fakeGateway is an in-memory messaging backend shared by every coordinator
// in a test. It assigns ids and timestamps like the real store, fans change
// events out to all live subscriptions, and can sever the feed on demand to
// exercise resync behavior.
type fakeGateway struct {
	mu        sync.Mutex
	now       time.Time
	seq       int
	threads   map[string]*entity.Thread
	messages  map[string][]entity.Message
	unread    map[string]map[string]int // threadID -> userID -> count
	presences map[string]entity.Presence
	subs      []*fakeSubscription

	threadListCalls map[string]int
	markReadCalls   map[string]int
	sendErr         error
	subscribeErr    error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		now:             time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		threads:         make(map[string]*entity.Thread),
		messages:        make(map[string][]entity.Message),
		unread:          make(map[string]map[string]int),
		presences:       make(map[string]entity.Presence),
		threadListCalls: make(map[string]int),
		markReadCalls:   make(map[string]int),
	}
}

// tick advances the backend clock; callers hold g.mu.
func (g *fakeGateway) tick() time.Time {
	g.now = g.now.Add(time.Millisecond)
	return g.now
}

func (g *fakeGateway) GetUserThreads(_ context.Context, userID string) ([]gateway.ThreadSummary, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.threadListCalls[userID]++

	var out []gateway.ThreadSummary
	for _, t := range g.threads {
		if !t.HasParticipant(userID) {
			continue
		}
		thread := *t
		thread.UnreadCount = g.unread[t.ID][userID]
		s := gateway.ThreadSummary{Thread: thread}
		if !t.IsGroup {
			for _, p := range t.Participants {
				if p != userID {
					if pr, ok := g.presences[p]; ok {
						snapshot := pr
						s.PeerPresence = &snapshot
					}
				}
			}
		}
		out = append(out, s)
	}
	return out, nil
}

func (g *fakeGateway) GetThreadMessages(_ context.Context, threadID, _ string, limit, offset int) ([]entity.Message, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	all := make([]entity.Message, len(g.messages[threadID]))
	copy(all, g.messages[threadID])
	sort.Slice(all, func(i, j int) bool { return all[i].Before(&all[j]) })

	// Pages count back from the most recent message, returned oldest-first.
	end := len(all) - offset
	if end < 0 {
		end = 0
	}
	start := 0
	if limit > 0 && end-limit > 0 {
		start = end - limit
	}
	return all[start:end], nil
}

func (g *fakeGateway) SendMessage(_ context.Context, threadID, senderID, body string, attachments []entity.Attachment) (*entity.Message, error) {
	g.mu.Lock()
	if g.sendErr != nil {
		err := g.sendErr
		g.mu.Unlock()
		return nil, err
	}

	g.seq++
	msg := entity.Message{
		ID:          fmt.Sprintf("m-%03d", g.seq),
		ThreadID:    threadID,
		SenderID:    senderID,
		Content:     body,
		Attachments: attachments,
		CreatedAt:   g.tick(),
	}
	msg.UpdatedAt = msg.CreatedAt
	g.storeMessage(msg)
	g.mu.Unlock()

	g.broadcast(gateway.MessageInserted{Message: msg})
	return &msg, nil
}

// storeMessage persists a message and bumps thread metadata; g.mu held.
func (g *fakeGateway) storeMessage(msg entity.Message) {
	g.messages[msg.ThreadID] = append(g.messages[msg.ThreadID], msg)
	if t, ok := g.threads[msg.ThreadID]; ok {
		t.UpdatedAt = msg.CreatedAt
		t.LastMessagePreview = msg.Content
		counts := g.unread[msg.ThreadID]
		if counts == nil {
			counts = make(map[string]int)
			g.unread[msg.ThreadID] = counts
		}
		for _, p := range t.Participants {
			if p != msg.SenderID {
				counts[p]++
			}
		}
	}
}

func (g *fakeGateway) CreateThread(_ context.Context, participantIDs []string, isGroup bool, title, createdBy string) (*entity.Thread, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.seq++
	now := g.tick()
	t := &entity.Thread{
		ID:           fmt.Sprintf("t-%03d", g.seq),
		IsGroup:      isGroup,
		Title:        title,
		Participants: participantIDs,
		CreatedBy:    createdBy,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	g.threads[t.ID] = t
	copied := *t
	return &copied, nil
}

func (g *fakeGateway) UpsertPresence(_ context.Context, userID string, status entity.PresenceStatus, typingInThreadID string) error {
	g.mu.Lock()
	now := g.tick()
	p := entity.Presence{
		UserID:           userID,
		Status:           status,
		LastSeen:         now,
		TypingInThreadID: typingInThreadID,
		UpdatedAt:        now,
	}
	g.presences[userID] = p
	g.mu.Unlock()

	g.broadcast(gateway.PresenceChanged{Presence: p})
	return nil
}

func (g *fakeGateway) MarkRead(_ context.Context, threadID, userID string, _ []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.markReadCalls[threadID+"/"+userID]++
	if counts, ok := g.unread[threadID]; ok {
		counts[userID] = 0
	}
	return nil
}

func (g *fakeGateway) Subscribe(_ context.Context) (gateway.Subscription, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.subscribeErr != nil {
		return nil, g.subscribeErr
	}
	sub := &fakeSubscription{events: make(chan gateway.Event, 64)}
	g.subs = append(g.subs, sub)
	return sub, nil
}

func (g *fakeGateway) broadcast(ev gateway.Event) {
	g.mu.Lock()
	subs := make([]*fakeSubscription, len(g.subs))
	copy(subs, g.subs)
	g.mu.Unlock()

	for _, sub := range subs {
		sub.deliver(ev)
	}
}

// dropFeed severs every live subscription as an unexpected disconnect.
func (g *fakeGateway) dropFeed(err error) {
	g.mu.Lock()
	subs := g.subs
	g.subs = nil
	g.mu.Unlock()

	for _, sub := range subs {
		sub.fail(err)
	}
}

// injectMessage stores a message without emitting a feed event, simulating
// activity during a feed gap.
func (g *fakeGateway) injectMessage(threadID, senderID, body string) entity.Message {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.seq++
	msg := entity.Message{
		ID:        fmt.Sprintf("m-%03d", g.seq),
		ThreadID:  threadID,
		SenderID:  senderID,
		Content:   body,
		CreatedAt: g.tick(),
	}
	msg.UpdatedAt = msg.CreatedAt
	g.storeMessage(msg)
	return msg
}

func (g *fakeGateway) threadListCallsFor(userID string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.threadListCalls[userID]
}

type fakeSubscription struct {
	mu     sync.Mutex
	events chan gateway.Event
	err    error
	closed bool
}

func (s *fakeSubscription) Events() <-chan gateway.Event { return s.events }

func (s *fakeSubscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *fakeSubscription) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	return nil
}

func (s *fakeSubscription) deliver(ev gateway.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.events <- ev:
	default:
	}
}

func (s *fakeSubscription) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		s.err = err
		close(s.events)
	}
}
