package messaging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"brokerdesk/internal/domain/entity"
)

func msgAt(id, sender string, at time.Time) entity.Message {
	return entity.Message{
		ID:        id,
		ThreadID:  "t-1",
		SenderID:  sender,
		Content:   "body " + id,
		CreatedAt: at,
		UpdatedAt: at,
	}
}

func TestMessageStoreDeduplicatesByID(t *testing.T) {
	s := NewMessageStore(nil)
	base := time.Now()

	assert.True(t, s.Append("t-1", msgAt("m-1", "alice", base)))
	assert.False(t, s.Append("t-1", msgAt("m-1", "alice", base)))

	assert.Equal(t, 1, s.Len("t-1"))
}

func TestMessageStoreKeepsTotalOrder(t *testing.T) {
	s := NewMessageStore(nil)
	base := time.Now()

	// Push-delivered copies arrive out of order, then a backfill lands with
	// an overlapping batch. The final log must equal one sort of everything.
	s.Append("t-1", msgAt("m-3", "bob", base.Add(3*time.Second)))
	s.Append("t-1", msgAt("m-1", "alice", base.Add(1*time.Second)))
	s.Append("t-1", msgAt("m-5", "bob", base.Add(5*time.Second)))
	s.ReplaceHistory("t-1", []entity.Message{
		msgAt("m-2", "alice", base.Add(2*time.Second)),
		msgAt("m-4", "bob", base.Add(4*time.Second)),
		msgAt("m-1", "alice", base.Add(1*time.Second)),
	})
	s.Append("t-1", msgAt("m-6", "alice", base.Add(6*time.Second)))

	var ids []string
	for _, m := range s.Get("t-1") {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"m-1", "m-2", "m-3", "m-4", "m-5", "m-6"}, ids)
}

func TestMessageStoreOrdersTimestampTiesByID(t *testing.T) {
	s := NewMessageStore(nil)
	at := time.Now()

	s.Append("t-1", msgAt("m-b", "alice", at))
	s.Append("t-1", msgAt("m-a", "bob", at))

	log := s.Get("t-1")
	assert.Equal(t, "m-a", log[0].ID)
	assert.Equal(t, "m-b", log[1].ID)
}

func TestMessageStoreAppendFiresCallbackOnInsertOnly(t *testing.T) {
	var calls int
	s := NewMessageStore(func(threadID string, msg entity.Message) {
		calls++
		assert.Equal(t, "t-1", threadID)
	})

	m := msgAt("m-1", "alice", time.Now())
	s.Append("t-1", m)
	s.Append("t-1", m)

	assert.Equal(t, 1, calls)
}

func TestMessageStoreBackfillKeepsPushedCopies(t *testing.T) {
	s := NewMessageStore(nil)
	base := time.Now()

	// A push event raced ahead of the history fetch; the backfill page does
	// not include it yet, but it must survive the replace.
	pushed := msgAt("m-9", "bob", base.Add(9*time.Second))
	s.Append("t-1", pushed)
	s.ReplaceHistory("t-1", []entity.Message{
		msgAt("m-1", "alice", base.Add(time.Second)),
	})

	log := s.Get("t-1")
	assert.Len(t, log, 2)
	assert.Equal(t, "m-9", log[1].ID)
}

func TestMessageStoreGetReturnsCopy(t *testing.T) {
	s := NewMessageStore(nil)
	s.Append("t-1", msgAt("m-1", "alice", time.Now()))

	view := s.Get("t-1")
	view[0].Content = "mutated"

	assert.Equal(t, "body m-1", s.Get("t-1")[0].Content)
}
