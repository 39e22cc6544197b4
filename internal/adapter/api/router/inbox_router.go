package router

import (
	"github.com/labstack/echo/v4"

	"brokerdesk/internal/adapter/api/handler"
	"brokerdesk/internal/adapter/api/middleware"
)

// SetupInboxRouter wires the messaging surface under /v1/inbox.
func SetupInboxRouter(
	e *echo.Echo,
	inboxHandler *handler.InboxHandler,
	attachmentHandler *handler.AttachmentHandler,
	userHandler *handler.UserHandler,
	authMiddleware *middleware.AuthMiddleware,
	rateLimit *middleware.RateLimitMiddleware,
) {
	inbox := e.Group("/v1/inbox")
	inbox.Use(authMiddleware.Authenticate)

	// Thread management
	inbox.GET("/threads", inboxHandler.ListThreads)
	inbox.POST("/threads/direct", inboxHandler.CreateDirectThread, rateLimit.Limit("create_thread"))
	inbox.POST("/threads/group", inboxHandler.CreateGroupThread, rateLimit.Limit("create_thread"))
	inbox.POST("/threads/:id/open", inboxHandler.OpenThread)
	inbox.PUT("/threads/:id/read", inboxHandler.MarkRead)

	// Messages
	inbox.GET("/threads/:id/messages", inboxHandler.GetMessages)
	inbox.POST("/threads/:id/messages", inboxHandler.SendMessage, rateLimit.Limit("send_message"))

	// Typing and presence
	inbox.POST("/threads/:id/typing", inboxHandler.SetTyping, rateLimit.Limit("typing"))
	inbox.GET("/threads/:id/typing", inboxHandler.GetTypingUsers)
	inbox.GET("/presence/:userId", inboxHandler.GetPresence)

	// Attachments
	inbox.POST("/attachments", attachmentHandler.Upload, rateLimit.Limit("upload_attachment"))

	// Participant profiles
	inbox.GET("/participants/:id", userHandler.GetParticipant)
	inbox.PUT("/profile", userHandler.UpdateProfile)
}
