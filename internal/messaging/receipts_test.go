package messaging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"brokerdesk/internal/domain/entity"
)

func TestReceiptsUnreadCountsOtherSendersOnly(t *testing.T) {
	r := NewReadReceiptTracker("alice")
	base := time.Now()

	log := []entity.Message{
		msgAt("m-1", "bob", base),
		msgAt("m-2", "alice", base.Add(time.Second)),
		msgAt("m-3", "bob", base.Add(2*time.Second)),
	}

	// No marker yet, so everything from bob counts.
	assert.Equal(t, 2, r.Unread("t-1", log))
}

func TestReceiptsMarkReadZeroesUnread(t *testing.T) {
	r := NewReadReceiptTracker("alice")
	base := time.Now()

	log := []entity.Message{
		msgAt("m-1", "bob", base),
		msgAt("m-2", "bob", base.Add(time.Second)),
	}

	covered := r.MarkRead("t-1", log)
	assert.Equal(t, []string{"m-1", "m-2"}, covered)
	assert.Equal(t, 0, r.Unread("t-1", log))
	assert.True(t, r.HasMarker("t-1"))
}

func TestReceiptsDuplicateDeliveryDoesNotRaiseCount(t *testing.T) {
	r := NewReadReceiptTracker("alice")
	base := time.Now()

	log := []entity.Message{msgAt("m-1", "bob", base)}
	r.MarkRead("t-1", log)

	// The same message arriving again (dedup upstream yields an identical
	// log) must not re-raise the count.
	assert.Equal(t, 0, r.Unread("t-1", log))

	log = append(log, msgAt("m-2", "bob", base.Add(time.Second)))
	assert.Equal(t, 1, r.Unread("t-1", log))
}

func TestReceiptsMarkReadReturnsOnlyNewlyCoveredIDs(t *testing.T) {
	r := NewReadReceiptTracker("alice")
	base := time.Now()

	log := []entity.Message{msgAt("m-1", "bob", base)}
	assert.Equal(t, []string{"m-1"}, r.MarkRead("t-1", log))

	log = append(log,
		msgAt("m-2", "alice", base.Add(time.Second)),
		msgAt("m-3", "bob", base.Add(2*time.Second)),
	)
	// m-1 already covered, m-2 is the viewer's own.
	assert.Equal(t, []string{"m-3"}, r.MarkRead("t-1", log))

	// Nothing new.
	assert.Empty(t, r.MarkRead("t-1", log))
}

func TestReceiptsMarkReadOnEmptyLog(t *testing.T) {
	r := NewReadReceiptTracker("alice")

	assert.Empty(t, r.MarkRead("t-1", nil))
	assert.True(t, r.HasMarker("t-1"))

	// Messages created before the marker stay read.
	old := []entity.Message{msgAt("m-1", "bob", time.Now().Add(-time.Hour))}
	assert.Equal(t, 0, r.Unread("t-1", old))
}

func TestReceiptsMarkersArePerThread(t *testing.T) {
	r := NewReadReceiptTracker("alice")
	base := time.Now()

	logA := []entity.Message{msgAt("m-1", "bob", base)}
	logB := []entity.Message{msgAt("m-2", "bob", base)}

	r.MarkRead("t-1", logA)
	assert.Equal(t, 0, r.Unread("t-1", logA))
	assert.Equal(t, 1, r.Unread("t-2", logB))
	assert.False(t, r.HasMarker("t-2"))
}
