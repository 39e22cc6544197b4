package messaging

import (
	"sort"
	"time"

	"brokerdesk/internal/domain/entity"
)

// ThreadDirectory maintains the thread list the viewer sees: summaries
// ordered by last activity, with per-thread unread counters. Like the other
// stores it relies on the Coordinator for serialization.
type ThreadDirectory struct {
	threads map[string]*entity.Thread
}

func NewThreadDirectory() *ThreadDirectory {
	return &ThreadDirectory{
		threads: make(map[string]*entity.Thread),
	}
}

// List returns threads ordered by updatedAt descending, ties broken by id.
// Ordering is computed per call since any remote message can reorder it.
func (d *ThreadDirectory) List() []entity.Thread {
	out := make([]entity.Thread, 0, len(d.threads))
	for _, t := range d.threads {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Get returns a copy of one thread.
func (d *ThreadDirectory) Get(threadID string) (entity.Thread, bool) {
	t, ok := d.threads[threadID]
	if !ok {
		return entity.Thread{}, false
	}
	return *t, true
}

// Upsert merges an incoming summary. New threads are inserted; existing ones
// are updated field-wise, never clobbering a cached preview with an empty
// one and never moving updatedAt backwards.
func (d *ThreadDirectory) Upsert(incoming entity.Thread) {
	current, ok := d.threads[incoming.ID]
	if !ok {
		t := incoming
		d.threads[incoming.ID] = &t
		return
	}

	if len(incoming.Participants) > 0 {
		current.Participants = incoming.Participants
	}
	if incoming.Title != "" {
		current.Title = incoming.Title
	}
	if incoming.CreatedBy != "" {
		current.CreatedBy = incoming.CreatedBy
	}
	if !incoming.CreatedAt.IsZero() {
		current.CreatedAt = incoming.CreatedAt
	}
	if incoming.LastMessagePreview != "" {
		current.LastMessagePreview = incoming.LastMessagePreview
	}
	if incoming.UpdatedAt.After(current.UpdatedAt) {
		current.UpdatedAt = incoming.UpdatedAt
	}
	current.IsGroup = incoming.IsGroup
	current.UnreadCount = incoming.UnreadCount
}

// Touch records message activity: bumps updatedAt and replaces the preview.
// Stale activity (older than the current updatedAt) leaves ordering alone
// but is still allowed to fill an empty preview.
func (d *ThreadDirectory) Touch(threadID string, at time.Time, preview string) {
	t, ok := d.threads[threadID]
	if !ok {
		t = d.EnsureStub(threadID)
	}
	if at.After(t.UpdatedAt) {
		t.UpdatedAt = at
		if preview != "" {
			t.LastMessagePreview = preview
		}
	} else if t.LastMessagePreview == "" && preview != "" {
		t.LastMessagePreview = preview
	}
}

// EnsureStub registers a minimal placeholder for a thread id the push feed
// referenced before the thread list caught up. The next refresh fills it in.
func (d *ThreadDirectory) EnsureStub(threadID string) *entity.Thread {
	if t, ok := d.threads[threadID]; ok {
		return t
	}
	t := &entity.Thread{ID: threadID}
	d.threads[threadID] = t
	return t
}

// SetUnread sets the viewer's unread counter; counts are never negative.
func (d *ThreadDirectory) SetUnread(threadID string, count int) {
	if count < 0 {
		count = 0
	}
	if t, ok := d.threads[threadID]; ok {
		t.UnreadCount = count
	}
}

// FindDirect returns the existing two-party thread between the viewer and
// peer, if one is known locally.
func (d *ThreadDirectory) FindDirect(viewer, peer string) (entity.Thread, bool) {
	for _, t := range d.threads {
		if t.IsDirectWith(viewer, peer) {
			return *t, true
		}
	}
	return entity.Thread{}, false
}
