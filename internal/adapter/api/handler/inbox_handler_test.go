package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brokerdesk/internal/adapter/api"
	"brokerdesk/internal/domain/entity"
	"brokerdesk/internal/domain/gateway"
	"brokerdesk/internal/messaging"
)

// stubGateway is the minimal backend the handler tests need: thread
// creation, message confirmation, and an idle push feed.
type stubGateway struct{}

func (stubGateway) GetUserThreads(context.Context, string) ([]gateway.ThreadSummary, error) {
	return nil, nil
}

func (stubGateway) GetThreadMessages(context.Context, string, string, int, int) ([]entity.Message, error) {
	return nil, nil
}

func (stubGateway) SendMessage(_ context.Context, threadID, senderID, body string, attachments []entity.Attachment) (*entity.Message, error) {
	now := time.Now()
	return &entity.Message{
		ID:          "m-1",
		ThreadID:    threadID,
		SenderID:    senderID,
		Content:     body,
		Attachments: attachments,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (stubGateway) CreateThread(_ context.Context, participantIDs []string, isGroup bool, title, createdBy string) (*entity.Thread, error) {
	now := time.Now()
	return &entity.Thread{
		ID:           "t-1",
		IsGroup:      isGroup,
		Title:        title,
		Participants: participantIDs,
		CreatedBy:    createdBy,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (stubGateway) UpsertPresence(context.Context, string, entity.PresenceStatus, string) error {
	return nil
}

func (stubGateway) MarkRead(context.Context, string, string, []string) error {
	return nil
}

func (stubGateway) Subscribe(context.Context) (gateway.Subscription, error) {
	return &stubSubscription{events: make(chan gateway.Event)}, nil
}

type stubSubscription struct {
	events chan gateway.Event
	closed bool
}

func (s *stubSubscription) Events() <-chan gateway.Event { return s.events }
func (s *stubSubscription) Err() error                   { return nil }
func (s *stubSubscription) Close() error {
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	return nil
}

func newTestContext(t *testing.T, method, path, body string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()

	e := echo.New()
	e.Validator = api.NewValidator()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("uid", "broker-1")
	return c, rec
}

func newTestRegistry(t *testing.T) *messaging.Registry {
	t.Helper()
	registry := messaging.NewRegistry(stubGateway{}, time.Hour, 50, nil)
	t.Cleanup(registry.Close)
	return registry
}

func TestListThreadsEmptyInbox(t *testing.T) {
	h := NewInboxHandler(newTestRegistry(t))
	c, rec := newTestContext(t, http.MethodGet, "/v1/inbox/threads", "")

	require.NoError(t, h.ListThreads(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"threads"`)
	assert.Contains(t, rec.Body.String(), `"bridge_state"`)
}

func TestCreateDirectThread(t *testing.T) {
	h := NewInboxHandler(newTestRegistry(t))
	c, rec := newTestContext(t, http.MethodPost, "/v1/inbox/threads/direct", `{"peer_id":"broker-2"}`)

	require.NoError(t, h.CreateDirectThread(c))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"t-1"`)
}

func TestCreateDirectThreadValidation(t *testing.T) {
	h := NewInboxHandler(newTestRegistry(t))
	c, rec := newTestContext(t, http.MethodPost, "/v1/inbox/threads/direct", `{}`)

	require.NoError(t, h.CreateDirectThread(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateDirectThreadWithSelf(t *testing.T) {
	h := NewInboxHandler(newTestRegistry(t))
	c, rec := newTestContext(t, http.MethodPost, "/v1/inbox/threads/direct", `{"peer_id":"broker-1"}`)

	require.NoError(t, h.CreateDirectThread(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "BAD_REQUEST")
}

func TestSendMessageReturnsConfirmedCopy(t *testing.T) {
	h := NewInboxHandler(newTestRegistry(t))
	c, rec := newTestContext(t, http.MethodPost, "/v1/inbox/threads/t-1/messages", `{"content":"showing at 3pm?"}`)
	c.SetParamNames("id")
	c.SetParamValues("t-1")

	require.NoError(t, h.SendMessage(c))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"m-1"`)
	assert.Contains(t, rec.Body.String(), "showing at 3pm?")
}

func TestSendEmptyMessageIsDropped(t *testing.T) {
	h := NewInboxHandler(newTestRegistry(t))
	c, rec := newTestContext(t, http.MethodPost, "/v1/inbox/threads/t-1/messages", `{"content":"   "}`)
	c.SetParamNames("id")
	c.SetParamValues("t-1")

	require.NoError(t, h.SendMessage(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"dropped":true`)
}

func TestSetAndReadTyping(t *testing.T) {
	registry := newTestRegistry(t)
	h := NewInboxHandler(registry)

	c, rec := newTestContext(t, http.MethodPost, "/v1/inbox/threads/t-1/typing", `{"typing":true}`)
	c.SetParamNames("id")
	c.SetParamValues("t-1")
	require.NoError(t, h.SetTyping(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	c, rec = newTestContext(t, http.MethodGet, "/v1/inbox/threads/t-1/typing", "")
	c.SetParamNames("id")
	c.SetParamValues("t-1")
	require.NoError(t, h.GetTypingUsers(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	// The local user's own typing state is remote-only; the list is empty
	// until the feed echoes it back.
	assert.Contains(t, rec.Body.String(), `"typing":[]`)
}

func TestGetPresenceDefaultsToOffline(t *testing.T) {
	h := NewInboxHandler(newTestRegistry(t))
	c, rec := newTestContext(t, http.MethodGet, "/v1/inbox/presence/broker-2", "")
	c.SetParamNames("userId")
	c.SetParamValues("broker-2")

	require.NoError(t, h.GetPresence(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"offline"`)
}
