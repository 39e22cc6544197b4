package entity

import "time"

type Attachment struct {
	ID          string `json:"id" firestore:"id"`
	Name        string `json:"name" firestore:"name"`
	ContentType string `json:"content_type" firestore:"contentType"`
	URL         string `json:"url" firestore:"url"`
	Size        int64  `json:"size" firestore:"size"`
}

type Message struct {
	ID          string       `json:"id" firestore:"id"`
	ThreadID    string       `json:"thread_id" firestore:"threadId"`
	SenderID    string       `json:"sender_id" firestore:"senderId"`
	Content     string       `json:"content" firestore:"content"`
	Attachments []Attachment `json:"attachments,omitempty" firestore:"attachments,omitempty"`
	CreatedAt   time.Time    `json:"created_at" firestore:"createdAt"`
	UpdatedAt   time.Time    `json:"updated_at" firestore:"updatedAt"`
}

// Before reports whether m sorts before other in the (createdAt, id)
// total order used for every in-memory message log.
func (m *Message) Before(other *Message) bool {
	if !m.CreatedAt.Equal(other.CreatedAt) {
		return m.CreatedAt.Before(other.CreatedAt)
	}
	return m.ID < other.ID
}
