package messaging

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"brokerdesk/internal/domain/entity"
	"brokerdesk/internal/domain/gateway"
	"brokerdesk/pkg/errors"
	"brokerdesk/pkg/logger"
)

const (
	defaultTypingWindow  = 3 * time.Second
	defaultBackfillLimit = 50
	previewMaxLen        = 120
)

// NotificationKind tags the state changes a Coordinator reports outward.
type NotificationKind string

const (
	NotifyMessage  NotificationKind = "message"
	NotifyThreads  NotificationKind = "threads"
	NotifyPresence NotificationKind = "presence"
	NotifyUnread   NotificationKind = "unread"
)

// Notification is pushed to the observer (the websocket hub) after a state
// change has been applied locally.
type Notification struct {
	Kind     NotificationKind `json:"kind"`
	ThreadID string           `json:"thread_id,omitempty"`
	Message  *entity.Message  `json:"message,omitempty"`
	Presence *entity.Presence `json:"presence,omitempty"`
	Unread   int              `json:"unread,omitempty"`
}

// Config assembles a Coordinator for one viewing user.
type Config struct {
	Viewer        string
	Gateway       gateway.Gateway
	TypingWindow  time.Duration        // defaults to 3s
	BackfillLimit int                  // defaults to 50
	Notify        func(n Notification) // optional observer
}

// Coordinator is the only part of the application the rest of the system
// talks to about conversations. It exclusively owns the message store, the
// thread directory and the presence tracker; one mutex serializes every
// mutation, standing in for the event loop the design assumes. Gateway calls
// run outside the lock and their results re-enter through it, so slow
// network never blocks local reads.
type Coordinator struct {
	viewer        string
	gw            gateway.Gateway
	backfillLimit int
	notify        func(n Notification)

	mu       sync.Mutex
	store    *MessageStore
	dir      *ThreadDirectory
	presence *PresenceTracker
	receipts *ReadReceiptTracker
	active   string
	closed   bool

	typing *TypingController
	bridge *Bridge
}

func NewCoordinator(cfg Config) *Coordinator {
	if cfg.TypingWindow <= 0 {
		cfg.TypingWindow = defaultTypingWindow
	}
	if cfg.BackfillLimit <= 0 {
		cfg.BackfillLimit = defaultBackfillLimit
	}

	c := &Coordinator{
		viewer:        cfg.Viewer,
		gw:            cfg.Gateway,
		backfillLimit: cfg.BackfillLimit,
		notify:        cfg.Notify,
		dir:           NewThreadDirectory(),
		presence:      NewPresenceTracker(),
		receipts:      NewReadReceiptTracker(cfg.Viewer),
	}
	c.store = NewMessageStore(c.onAppend)
	c.typing = NewTypingController(cfg.TypingWindow, c.publishTyping)
	c.bridge = NewBridge(cfg.Gateway, c.onSubscribed, c.onMessageEvent, c.onPresenceEvent)
	return c
}

// Start connects the realtime bridge. Safe to call once.
func (c *Coordinator) Start(ctx context.Context) {
	c.bridge.Start(ctx)
}

// Close releases the subscription and any pending typing timer. No
// callbacks mutate state after Close returns.
func (c *Coordinator) Close() {
	c.typing.Close()
	c.bridge.Close()
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// BridgeState exposes the feed connection state for health reporting.
func (c *Coordinator) BridgeState() BridgeState {
	return c.bridge.State()
}

// ListThreads returns the viewer's threads, most recent activity first.
func (c *Coordinator) ListThreads() []entity.Thread {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dir.List()
}

// Messages returns a copy of a thread's in-memory log.
func (c *Coordinator) Messages(threadID string) []entity.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Get(threadID)
}

// OpenThread activates a thread for the viewer: backfills its history, marks
// it read, and returns the ordered log.
func (c *Coordinator) OpenThread(ctx context.Context, threadID string) ([]entity.Message, error) {
	history, err := c.gw.GetThreadMessages(ctx, threadID, c.viewer, c.backfillLimit, 0)
	if err != nil {
		return nil, errors.Internal("Failed to load thread history", err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, errors.Internal("Coordinator is closed", nil)
	}
	c.active = threadID
	c.dir.EnsureStub(threadID)
	c.store.ReplaceHistory(threadID, history)
	log := c.store.Get(threadID)
	c.mu.Unlock()

	c.markRead(ctx, threadID)
	return log, nil
}

// MarkRead zeroes the thread's unread counter and reports the read state
// remotely on a best-effort basis.
func (c *Coordinator) MarkRead(ctx context.Context, threadID string) {
	c.markRead(ctx, threadID)
}

func (c *Coordinator) markRead(ctx context.Context, threadID string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	log := c.store.Get(threadID)
	covered := c.receipts.MarkRead(threadID, log)
	c.dir.SetUnread(threadID, 0)
	c.mu.Unlock()

	c.emit(Notification{Kind: NotifyUnread, ThreadID: threadID, Unread: 0})

	if len(covered) == 0 {
		return
	}
	go func() {
		if err := c.gw.MarkRead(context.WithoutCancel(ctx), threadID, c.viewer, covered); err != nil {
			logger.Warn("coordinator: mark-read for thread %s failed: %v", threadID, err)
		}
	}()
}

// SendMessage sends after remote confirmation only: the local log is updated
// with the server-assigned copy, never an optimistic echo, so ids can't
// diverge. An empty body with no attachments is rejected locally as a no-op.
func (c *Coordinator) SendMessage(ctx context.Context, threadID, body string, attachments []entity.Attachment) (*entity.Message, error) {
	if strings.TrimSpace(body) == "" && len(attachments) == 0 {
		return nil, nil
	}

	c.typing.Stop(threadID)

	msg, err := c.gw.SendMessage(ctx, threadID, c.viewer, body, attachments)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	inserted := false
	if !c.closed {
		inserted = c.store.Append(threadID, *msg)
	}
	c.mu.Unlock()

	if inserted {
		c.emit(Notification{Kind: NotifyMessage, ThreadID: threadID, Message: msg})
	}
	return msg, nil
}

// CreateDirectThread returns the existing two-party thread with peer if one
// is known, otherwise creates one remotely. Idempotent per participant pair.
func (c *Coordinator) CreateDirectThread(ctx context.Context, peerID string) (*entity.Thread, error) {
	if peerID == "" || peerID == c.viewer {
		return nil, errors.BadRequest("Cannot open a conversation with yourself", nil)
	}

	c.mu.Lock()
	existing, ok := c.dir.FindDirect(c.viewer, peerID)
	c.mu.Unlock()
	if ok {
		return &existing, nil
	}

	thread, err := c.gw.CreateThread(ctx, []string{c.viewer, peerID}, false, "", c.viewer)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if !c.closed {
		c.dir.Upsert(*thread)
	}
	c.mu.Unlock()

	c.emit(Notification{Kind: NotifyThreads, ThreadID: thread.ID})
	return thread, nil
}

// CreateGroupThread creates a titled thread with the viewer plus members.
func (c *Coordinator) CreateGroupThread(ctx context.Context, title string, memberIDs []string) (*entity.Thread, error) {
	if strings.TrimSpace(title) == "" {
		return nil, errors.BadRequest("Group conversations need a title", nil)
	}

	participants := []string{c.viewer}
	seen := map[string]struct{}{c.viewer: {}}
	for _, id := range memberIDs {
		if _, dup := seen[id]; dup || id == "" {
			continue
		}
		seen[id] = struct{}{}
		participants = append(participants, id)
	}
	if len(participants) < 2 {
		return nil, errors.BadRequest("Group conversations need at least one other member", nil)
	}
	sort.Strings(participants)

	thread, err := c.gw.CreateThread(ctx, participants, true, title, c.viewer)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if !c.closed {
		c.dir.Upsert(*thread)
	}
	c.mu.Unlock()

	c.emit(Notification{Kind: NotifyThreads, ThreadID: thread.ID})
	return thread, nil
}

// StartTyping publishes the local user's typing state for a thread and arms
// the debounce expiry.
func (c *Coordinator) StartTyping(threadID string) {
	c.typing.Start(threadID)
}

// StopTyping clears the local user's typing state for a thread.
func (c *Coordinator) StopTyping(threadID string) {
	c.typing.Stop(threadID)
}

// GetPresence returns the last known presence for a user.
func (c *Coordinator) GetPresence(userID string) entity.Presence {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.presence.Get(userID)
}

// GetTypingUsers returns who is currently typing in a thread.
func (c *Coordinator) GetTypingUsers(threadID string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.presence.TypingUsers(threadID)
}

// publishTyping mirrors the local typing state into the remote presence row.
// Fire-and-forget: failures are logged, never surfaced.
func (c *Coordinator) publishTyping(threadID string, typing bool) {
	target := ""
	if typing {
		target = threadID
	}
	go func() {
		if err := c.gw.UpsertPresence(context.Background(), c.viewer, entity.PresenceOnline, target); err != nil {
			logger.Warn("coordinator: presence publish failed: %v", err)
		}
	}()
}

// onAppend runs inside the store's insert path (coordinator lock held):
// bump the directory ordering and preview, and recompute unread when the
// message lands in a thread the viewer is not looking at.
func (c *Coordinator) onAppend(threadID string, msg entity.Message) {
	c.dir.Touch(threadID, msg.CreatedAt, preview(&msg))

	if msg.SenderID == c.viewer || threadID == c.active {
		return
	}
	if c.receipts.HasMarker(threadID) {
		c.dir.SetUnread(threadID, c.receipts.Unread(threadID, c.store.Get(threadID)))
	}
}

// onSubscribed runs on every entry into the subscribed state: the feed has
// no replay, so correctness depends on a full thread-list refresh here.
func (c *Coordinator) onSubscribed(ctx context.Context) {
	c.refreshThreads(ctx)
}

// onMessageEvent applies one pushed message insert. Unknown thread ids get a
// stub so the message is never dropped, and the directory is refreshed so
// previews and server-side unread counts cannot silently desynchronize.
func (c *Coordinator) onMessageEvent(msg entity.Message) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	inserted := c.store.Append(msg.ThreadID, msg)
	active := c.active
	c.mu.Unlock()

	if !inserted {
		return
	}
	c.emit(Notification{Kind: NotifyMessage, ThreadID: msg.ThreadID, Message: &msg})

	if msg.SenderID != c.viewer && msg.ThreadID == active {
		// Viewer is looking at the thread: it stays read.
		c.markRead(context.Background(), msg.ThreadID)
	}
	c.refreshThreads(context.Background())
}

// onPresenceEvent applies one pushed presence upsert; stale records are
// discarded by the tracker's logical clock.
func (c *Coordinator) onPresenceEvent(p entity.Presence) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	applied := c.presence.Upsert(p)
	c.mu.Unlock()

	if applied {
		c.emit(Notification{Kind: NotifyPresence, Presence: &p})
	}
}

// refreshThreads pulls the authoritative thread list and merges it. For
// threads the viewer has read locally the unread count is recomputed from
// the log and marker, so a stale server count can never re-raise a counter
// markRead already zeroed.
func (c *Coordinator) refreshThreads(ctx context.Context) {
	summaries, err := c.gw.GetUserThreads(ctx, c.viewer)
	if err != nil {
		logger.Warn("coordinator: thread refresh failed: %v", err)
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	for _, s := range summaries {
		c.dir.Upsert(s.Thread)
		if s.PeerPresence != nil {
			c.presence.Upsert(*s.PeerPresence)
		}
		if c.receipts.HasMarker(s.Thread.ID) {
			c.dir.SetUnread(s.Thread.ID, c.receipts.Unread(s.Thread.ID, c.store.Get(s.Thread.ID)))
		}
	}
	c.mu.Unlock()

	c.emit(Notification{Kind: NotifyThreads})
}

func (c *Coordinator) emit(n Notification) {
	if c.notify != nil {
		c.notify(n)
	}
}

func preview(m *entity.Message) string {
	text := strings.TrimSpace(m.Content)
	if text == "" && len(m.Attachments) > 0 {
		return m.Attachments[0].Name
	}
	if len(text) > previewMaxLen {
		return text[:previewMaxLen]
	}
	return text
}
