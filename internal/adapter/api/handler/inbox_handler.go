package handler

import (
	"github.com/labstack/echo/v4"

	"brokerdesk/internal/domain/entity"
	"brokerdesk/internal/messaging"
	"brokerdesk/pkg/response"
	"brokerdesk/pkg/utils"
)

// InboxHandler exposes one user's messaging coordinator over HTTP. Every
// route resolves the caller's coordinator from the registry by uid.
type InboxHandler struct {
	registry *messaging.Registry
}

func NewInboxHandler(registry *messaging.Registry) *InboxHandler {
	return &InboxHandler{
		registry: registry,
	}
}

type createDirectThreadRequest struct {
	PeerID string `json:"peer_id" validate:"required"`
}

type createGroupThreadRequest struct {
	Title     string   `json:"title" validate:"required,min=1,max=120"`
	MemberIDs []string `json:"member_ids" validate:"required,min=1"`
}

type sendMessageRequest struct {
	Content     string              `json:"content"`
	Attachments []entity.Attachment `json:"attachments,omitempty"`
}

type setTypingRequest struct {
	Typing bool `json:"typing"`
}

// ListThreads returns the caller's thread list, most recent activity first.
func (h *InboxHandler) ListThreads(c echo.Context) error {
	userID := c.Get("uid").(string)
	coord := h.registry.Get(userID)

	threads := coord.ListThreads()
	return response.Success(c, map[string]interface{}{
		"threads":      threads,
		"bridge_state": coord.BridgeState().String(),
	})
}

// CreateDirectThread opens (or returns) the two-party thread with a peer.
func (h *InboxHandler) CreateDirectThread(c echo.Context) error {
	var req createDirectThreadRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(string)
	thread, err := h.registry.Get(userID).CreateDirectThread(c.Request().Context(), req.PeerID)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Created(c, thread)
}

// CreateGroupThread creates a titled thread with the caller plus members.
func (h *InboxHandler) CreateGroupThread(c echo.Context) error {
	var req createGroupThreadRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(string)
	thread, err := h.registry.Get(userID).CreateGroupThread(c.Request().Context(), req.Title, req.MemberIDs)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Created(c, thread)
}

// OpenThread backfills a thread's history, marks it read and makes it the
// caller's active thread.
func (h *InboxHandler) OpenThread(c echo.Context) error {
	userID := c.Get("uid").(string)
	threadID := c.Param("id")

	messages, err := h.registry.Get(userID).OpenThread(c.Request().Context(), threadID)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, map[string]interface{}{
		"thread_id": threadID,
		"messages":  messages,
		"unread":    0,
	})
}

// GetMessages pages over the in-memory log of one thread, oldest first.
func (h *InboxHandler) GetMessages(c echo.Context) error {
	userID := c.Get("uid").(string)
	threadID := c.Param("id")
	params := utils.GetPaginationParams(c, 50)

	log := h.registry.Get(userID).Messages(threadID)
	total := int64(len(log))

	start := params.Offset
	if start > len(log) {
		start = len(log)
	}
	end := start + params.Limit
	if end > len(log) {
		end = len(log)
	}

	return response.SuccessPaginated(c, log[start:end], total, params.Limit, params.Offset)
}

// SendMessage sends to a thread; the response carries the server-assigned
// message. An empty message is accepted and dropped.
func (h *InboxHandler) SendMessage(c echo.Context) error {
	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(string)
	threadID := c.Param("id")

	msg, err := h.registry.Get(userID).SendMessage(c.Request().Context(), threadID, req.Content, req.Attachments)
	if err != nil {
		return response.Error(c, err)
	}
	if msg == nil {
		return response.Success(c, map[string]interface{}{"dropped": true})
	}
	return response.Created(c, msg)
}

// MarkRead zeroes the caller's unread counter for a thread.
func (h *InboxHandler) MarkRead(c echo.Context) error {
	userID := c.Get("uid").(string)
	threadID := c.Param("id")

	h.registry.Get(userID).MarkRead(c.Request().Context(), threadID)
	return response.Success(c, map[string]interface{}{
		"thread_id": threadID,
		"unread":    0,
	})
}

// SetTyping starts or stops the caller's typing session in a thread.
func (h *InboxHandler) SetTyping(c echo.Context) error {
	var req setTypingRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(string)
	threadID := c.Param("id")
	coord := h.registry.Get(userID)

	if req.Typing {
		coord.StartTyping(threadID)
	} else {
		coord.StopTyping(threadID)
	}
	return response.Success(c, map[string]interface{}{
		"thread_id": threadID,
		"typing":    req.Typing,
	})
}

// GetTypingUsers returns who is currently typing in a thread.
func (h *InboxHandler) GetTypingUsers(c echo.Context) error {
	userID := c.Get("uid").(string)
	threadID := c.Param("id")

	typing := h.registry.Get(userID).GetTypingUsers(threadID)
	if typing == nil {
		typing = []string{}
	}
	return response.Success(c, map[string]interface{}{
		"thread_id": threadID,
		"typing":    typing,
	})
}

// GetPresence returns the last known presence of one user.
func (h *InboxHandler) GetPresence(c echo.Context) error {
	userID := c.Get("uid").(string)
	target := c.Param("userId")

	presence := h.registry.Get(userID).GetPresence(target)
	return response.Success(c, presence)
}
