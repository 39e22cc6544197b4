package messaging

import (
	"sort"

	"brokerdesk/internal/domain/entity"
)

// PresenceTracker keeps the last known presence per user plus the derived
// per-thread typing sets. Updates are ordered per user by the updatedAt
// logical clock; anything older than the stored record is discarded, so a
// stale "started typing" can never resurrect state a newer "stopped typing"
// already cleared.
type PresenceTracker struct {
	users  map[string]entity.Presence
	typing map[string]map[string]struct{}
}

func NewPresenceTracker() *PresenceTracker {
	return &PresenceTracker{
		users:  make(map[string]entity.Presence),
		typing: make(map[string]map[string]struct{}),
	}
}

// Upsert merges one user's presence record. Returns false if the update was
// stale and discarded.
func (p *PresenceTracker) Upsert(incoming entity.Presence) bool {
	current, ok := p.users[incoming.UserID]
	if ok && incoming.UpdatedAt.Before(current.UpdatedAt) {
		return false
	}

	if incoming.Status != entity.PresenceOnline {
		// Typing requires an online, unexpired session.
		incoming.TypingInThreadID = ""
	}
	p.users[incoming.UserID] = incoming

	// A user types in at most one thread: clear everywhere, then re-add.
	p.clearTyping(incoming.UserID)
	if incoming.TypingInThreadID != "" {
		set := p.typing[incoming.TypingInThreadID]
		if set == nil {
			set = make(map[string]struct{})
			p.typing[incoming.TypingInThreadID] = set
		}
		set[incoming.UserID] = struct{}{}
	}
	return true
}

// Get returns the last known presence, or an implicit offline record.
func (p *PresenceTracker) Get(userID string) entity.Presence {
	if pr, ok := p.users[userID]; ok {
		return pr
	}
	return entity.Presence{
		UserID: userID,
		Status: entity.PresenceOffline,
	}
}

// TypingUsers returns the users currently typing in a thread, sorted.
func (p *PresenceTracker) TypingUsers(threadID string) []string {
	set := p.typing[threadID]
	out := make([]string, 0, len(set))
	for userID := range set {
		out = append(out, userID)
	}
	sort.Strings(out)
	return out
}

func (p *PresenceTracker) clearTyping(userID string) {
	for threadID, set := range p.typing {
		delete(set, userID)
		if len(set) == 0 {
			delete(p.typing, threadID)
		}
	}
}
