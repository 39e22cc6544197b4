package entity

import "time"

type PresenceStatus string

const (
	PresenceOnline  PresenceStatus = "online"
	PresenceAway    PresenceStatus = "away"
	PresenceOffline PresenceStatus = "offline"
)

// Presence is one user's live status. TypingInThreadID is non-empty only
// while the user is online and inside an unexpired typing session; UpdatedAt
// is the logical clock used to discard stale out-of-order updates.
type Presence struct {
	UserID           string         `json:"user_id" firestore:"userId"`
	Status           PresenceStatus `json:"status" firestore:"status"`
	LastSeen         time.Time      `json:"last_seen" firestore:"lastSeen"`
	TypingInThreadID string         `json:"typing_in_thread_id,omitempty" firestore:"typingInThreadId,omitempty"`
	UpdatedAt        time.Time      `json:"updated_at" firestore:"updatedAt"`
}
