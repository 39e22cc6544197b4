package messaging

import (
	"time"

	"brokerdesk/internal/domain/entity"
)

// readMarker is the (createdAt, id) position of the newest message the
// viewer has read in a thread.
type readMarker struct {
	at time.Time
	id string
}

func (r readMarker) covers(m *entity.Message) bool {
	if !m.CreatedAt.Equal(r.at) {
		return !m.CreatedAt.After(r.at)
	}
	return m.ID <= r.id
}

// ReadReceiptTracker computes unread counts for the viewer relative to a
// per-thread last-read marker. Counts are always recomputed from the message
// set, never decremented ad hoc, so duplicate delivery cannot cause drift.
type ReadReceiptTracker struct {
	viewer  string
	markers map[string]readMarker
}

func NewReadReceiptTracker(viewer string) *ReadReceiptTracker {
	return &ReadReceiptTracker{
		viewer:  viewer,
		markers: make(map[string]readMarker),
	}
}

// MarkRead moves the thread's marker past every message currently in the
// log and returns the ids that were newly covered, for the best-effort
// remote mark-read call.
func (r *ReadReceiptTracker) MarkRead(threadID string, log []entity.Message) []string {
	prev, had := r.markers[threadID]

	var covered []string
	for i := range log {
		m := &log[i]
		if had && prev.covers(m) {
			continue
		}
		if m.SenderID != r.viewer {
			covered = append(covered, m.ID)
		}
	}

	if len(log) > 0 {
		last := log[len(log)-1]
		r.markers[threadID] = readMarker{at: last.CreatedAt, id: last.ID}
	} else if !had {
		r.markers[threadID] = readMarker{at: time.Now()}
	}
	return covered
}

// HasMarker reports whether the viewer has ever read this thread locally.
// Until then the gateway's summary count is authoritative.
func (r *ReadReceiptTracker) HasMarker(threadID string) bool {
	_, ok := r.markers[threadID]
	return ok
}

// Unread counts the messages from other senders past the thread's marker.
func (r *ReadReceiptTracker) Unread(threadID string, log []entity.Message) int {
	marker, ok := r.markers[threadID]
	count := 0
	for i := range log {
		m := &log[i]
		if m.SenderID == r.viewer {
			continue
		}
		if ok && marker.covers(m) {
			continue
		}
		count++
	}
	return count
}
