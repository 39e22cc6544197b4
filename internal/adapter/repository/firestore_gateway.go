package repository

import (
	"context"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"brokerdesk/internal/domain/entity"
	"brokerdesk/internal/domain/gateway"
	"brokerdesk/pkg/errors"
	"brokerdesk/pkg/logger"
)

// threadDoc is the stored shape of a thread. Unread counters live here as a
// per-user map; entity.Thread carries only the viewer's own count.
type threadDoc struct {
	ID                 string         `firestore:"id"`
	IsGroup            bool           `firestore:"isGroup"`
	Title              string         `firestore:"title,omitempty"`
	Participants       []string       `firestore:"participants"`
	CreatedBy          string         `firestore:"createdBy"`
	CreatedAt          time.Time      `firestore:"createdAt"`
	UpdatedAt          time.Time      `firestore:"updatedAt"`
	LastMessagePreview string         `firestore:"lastMessagePreview,omitempty"`
	UnreadCounts       map[string]int `firestore:"unreadCounts"`
}

func (d *threadDoc) toEntity(viewerID string) entity.Thread {
	return entity.Thread{
		ID:                 d.ID,
		IsGroup:            d.IsGroup,
		Title:              d.Title,
		Participants:       d.Participants,
		CreatedBy:          d.CreatedBy,
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
		LastMessagePreview: d.LastMessagePreview,
		UnreadCount:        d.UnreadCounts[viewerID],
	}
}

type firestoreGateway struct {
	client *firestore.Client
}

func NewFirestoreGateway(client *firestore.Client) gateway.Gateway {
	return &firestoreGateway{
		client: client,
	}
}

func (g *firestoreGateway) GetUserThreads(ctx context.Context, userID string) ([]gateway.ThreadSummary, error) {
	query := g.client.Collection("threads").
		Where("participants", "array-contains", userID).
		OrderBy("updatedAt", firestore.Desc)

	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, errors.Internal("Failed to fetch threads", err)
	}

	var summaries []gateway.ThreadSummary
	for _, doc := range docs {
		var td threadDoc
		if err := doc.DataTo(&td); err != nil {
			logger.Warn("firestore: skipping malformed thread %s: %v", doc.Ref.ID, err)
			continue
		}
		td.ID = doc.Ref.ID

		s := gateway.ThreadSummary{Thread: td.toEntity(userID)}
		if !td.IsGroup {
			for _, p := range td.Participants {
				if p == userID {
					continue
				}
				if presence, err := g.getPresence(ctx, p); err == nil {
					s.PeerPresence = presence
				}
			}
		}
		summaries = append(summaries, s)
	}
	return summaries, nil
}

func (g *firestoreGateway) GetThreadMessages(ctx context.Context, threadID, _ string, limit, offset int) ([]entity.Message, error) {
	query := g.client.Collection("threads").Doc(threadID).Collection("messages").
		OrderBy("createdAt", firestore.Desc)
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	iter := query.Documents(ctx)
	var messages []entity.Message
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Internal("Failed to iterate messages", err)
		}

		var msg entity.Message
		if err := doc.DataTo(&msg); err != nil {
			return nil, errors.Internal("Failed to parse message data", err)
		}
		messages = append(messages, msg)
	}

	// The store pages newest-first; callers consume oldest-first.
	sort.Slice(messages, func(i, j int) bool { return messages[i].Before(&messages[j]) })
	return messages, nil
}

func (g *firestoreGateway) SendMessage(ctx context.Context, threadID, senderID, body string, attachments []entity.Attachment) (*entity.Message, error) {
	threadRef := g.client.Collection("threads").Doc(threadID)

	now := time.Now()
	msg := entity.Message{
		ID:          uuid.New().String(),
		ThreadID:    threadID,
		SenderID:    senderID,
		Content:     body,
		Attachments: attachments,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := g.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(threadRef)
		if err != nil {
			return err
		}
		var td threadDoc
		if err := doc.DataTo(&td); err != nil {
			return err
		}
		member := false
		for _, p := range td.Participants {
			if p == senderID {
				member = true
				break
			}
		}
		if !member {
			return status.Error(codes.PermissionDenied, "sender is not a participant")
		}

		preview := body
		if preview == "" && len(attachments) > 0 {
			preview = attachments[0].Name
		}
		updates := []firestore.Update{
			{Path: "updatedAt", Value: now},
			{Path: "lastMessagePreview", Value: preview},
		}
		for _, p := range td.Participants {
			if p != senderID {
				updates = append(updates, firestore.Update{
					Path:  "unreadCounts." + p,
					Value: firestore.Increment(1),
				})
			}
		}

		if err := tx.Set(threadRef.Collection("messages").Doc(msg.ID), msg); err != nil {
			return err
		}
		return tx.Update(threadRef, updates)
	})
	if err != nil {
		switch status.Code(err) {
		case codes.NotFound:
			return nil, errors.NotFound("Thread not found", err)
		case codes.PermissionDenied:
			return nil, errors.Forbidden("Not a participant of this thread", err)
		}
		return nil, errors.Internal("Failed to send message", err)
	}
	return &msg, nil
}

func (g *firestoreGateway) CreateThread(ctx context.Context, participantIDs []string, isGroup bool, title, createdBy string) (*entity.Thread, error) {
	now := time.Now()
	td := threadDoc{
		ID:           uuid.New().String(),
		IsGroup:      isGroup,
		Title:        title,
		Participants: participantIDs,
		CreatedBy:    createdBy,
		CreatedAt:    now,
		UpdatedAt:    now,
		UnreadCounts: map[string]int{},
	}

	// Direct threads are idempotent per participant pair; re-use an existing
	// one rather than fragmenting the conversation.
	if !isGroup && len(participantIDs) == 2 {
		if existing, err := g.findDirectThread(ctx, participantIDs[0], participantIDs[1]); err == nil {
			t := existing.toEntity(createdBy)
			return &t, nil
		}
	}

	if _, err := g.client.Collection("threads").Doc(td.ID).Set(ctx, td); err != nil {
		return nil, errors.Internal("Failed to create thread", err)
	}

	t := td.toEntity(createdBy)
	return &t, nil
}

func (g *firestoreGateway) findDirectThread(ctx context.Context, a, b string) (*threadDoc, error) {
	query := g.client.Collection("threads").
		Where("participants", "array-contains", a).
		Where("isGroup", "==", false)

	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, errors.Internal("Failed to query direct threads", err)
	}
	for _, doc := range docs {
		var td threadDoc
		if err := doc.DataTo(&td); err != nil {
			continue
		}
		td.ID = doc.Ref.ID
		th := td.toEntity(a)
		if th.IsDirectWith(a, b) {
			return &td, nil
		}
	}
	return nil, errors.NotFound("Direct thread not found", nil)
}

func (g *firestoreGateway) UpsertPresence(ctx context.Context, userID string, presenceStatus entity.PresenceStatus, typingInThreadID string) error {
	now := time.Now()
	p := entity.Presence{
		UserID:           userID,
		Status:           presenceStatus,
		LastSeen:         now,
		TypingInThreadID: typingInThreadID,
		UpdatedAt:        now,
	}
	if _, err := g.client.Collection("presence").Doc(userID).Set(ctx, p); err != nil {
		return errors.Internal("Failed to update presence", err)
	}
	return nil
}

func (g *firestoreGateway) getPresence(ctx context.Context, userID string) (*entity.Presence, error) {
	doc, err := g.client.Collection("presence").Doc(userID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Presence not found", nil)
		}
		return nil, errors.Internal("Failed to get presence", err)
	}
	var p entity.Presence
	if err := doc.DataTo(&p); err != nil {
		return nil, errors.Internal("Failed to parse presence data", err)
	}
	return &p, nil
}

func (g *firestoreGateway) MarkRead(ctx context.Context, threadID, userID string, messageIDs []string) error {
	_, err := g.client.Collection("threads").Doc(threadID).Update(ctx, []firestore.Update{
		{Path: "unreadCounts." + userID, Value: 0},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return errors.NotFound("Thread not found", err)
		}
		return errors.Internal("Failed to mark thread read", err)
	}

	// Reader lists on individual messages are advisory; skipping missing
	// documents keeps the call best-effort.
	for _, id := range messageIDs {
		ref := g.client.Collection("threads").Doc(threadID).Collection("messages").Doc(id)
		_, err := ref.Update(ctx, []firestore.Update{
			{Path: "readBy", Value: firestore.ArrayUnion(userID)},
		})
		if err != nil && status.Code(err) != codes.NotFound {
			logger.Warn("firestore: mark-read of message %s failed: %v", id, err)
		}
	}
	return nil
}
