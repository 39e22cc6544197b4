package entity

import "time"

type Thread struct {
	ID                 string    `json:"id" firestore:"id"`
	IsGroup            bool      `json:"is_group" firestore:"isGroup"`
	Title              string    `json:"title,omitempty" firestore:"title,omitempty"`
	Participants       []string  `json:"participants" firestore:"participants"`
	CreatedBy          string    `json:"created_by" firestore:"createdBy"`
	CreatedAt          time.Time `json:"created_at" firestore:"createdAt"`
	UpdatedAt          time.Time `json:"updated_at" firestore:"updatedAt"`
	LastMessagePreview string    `json:"last_message_preview,omitempty" firestore:"lastMessagePreview,omitempty"`

	// UnreadCount is relative to the viewing user; it is maintained locally
	// and never written back to the store as-is.
	UnreadCount int `json:"unread_count" firestore:"-"`
}

// HasParticipant reports whether userID is a member of the thread.
func (t *Thread) HasParticipant(userID string) bool {
	for _, p := range t.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// IsDirectWith reports whether t is the two-party thread between a and b.
func (t *Thread) IsDirectWith(a, b string) bool {
	if t.IsGroup || len(t.Participants) != 2 {
		return false
	}
	return t.HasParticipant(a) && t.HasParticipant(b)
}
