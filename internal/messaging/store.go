package messaging

import (
	"sort"

	"brokerdesk/internal/domain/entity"
)

// MessageStore keeps one ordered, deduplicated message log per thread.
// Messages arrive from backfill and from the push feed in any order; the log
// is always the (createdAt, id) total order and a message id is inserted at
// most once. The store is not safe for concurrent use on its own: the
// Coordinator serializes every call.
type MessageStore struct {
	logs map[string][]entity.Message
	seen map[string]map[string]struct{}

	// onAppend fires after a message is actually inserted, never for
	// duplicates. Used by the Coordinator to bump the thread directory.
	onAppend func(threadID string, msg entity.Message)
}

func NewMessageStore(onAppend func(threadID string, msg entity.Message)) *MessageStore {
	return &MessageStore{
		logs:     make(map[string][]entity.Message),
		seen:     make(map[string]map[string]struct{}),
		onAppend: onAppend,
	}
}

// Append inserts a message into its thread's log, keeping sort order.
// Returns false if the id was already present.
func (s *MessageStore) Append(threadID string, msg entity.Message) bool {
	ids := s.seen[threadID]
	if ids == nil {
		ids = make(map[string]struct{})
		s.seen[threadID] = ids
	}
	if _, dup := ids[msg.ID]; dup {
		return false
	}
	ids[msg.ID] = struct{}{}

	log := s.logs[threadID]
	i := sort.Search(len(log), func(i int) bool {
		return msg.Before(&log[i])
	})
	log = append(log, entity.Message{})
	copy(log[i+1:], log[i:])
	log[i] = msg
	s.logs[threadID] = log

	if s.onAppend != nil {
		s.onAppend(threadID, msg)
	}
	return true
}

// ReplaceHistory performs a full backfill for a thread: the incoming batch
// becomes the log, deduplicated and sorted once. Messages already present
// locally but missing from the batch are kept, so a backfill racing behind a
// pushed insert never loses the pushed copy.
func (s *MessageStore) ReplaceHistory(threadID string, messages []entity.Message) {
	existing := s.logs[threadID]

	merged := make([]entity.Message, 0, len(messages)+len(existing))
	ids := make(map[string]struct{}, len(messages)+len(existing))
	for _, m := range messages {
		if _, dup := ids[m.ID]; dup {
			continue
		}
		ids[m.ID] = struct{}{}
		merged = append(merged, m)
	}
	for _, m := range existing {
		if _, dup := ids[m.ID]; dup {
			continue
		}
		ids[m.ID] = struct{}{}
		merged = append(merged, m)
	}

	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Before(&merged[j])
	})

	s.logs[threadID] = merged
	s.seen[threadID] = ids
}

// Get returns a copy of the thread's ordered log.
func (s *MessageStore) Get(threadID string) []entity.Message {
	log := s.logs[threadID]
	out := make([]entity.Message, len(log))
	copy(out, log)
	return out
}

// Len returns the number of messages held for a thread.
func (s *MessageStore) Len(threadID string) int {
	return len(s.logs[threadID])
}
