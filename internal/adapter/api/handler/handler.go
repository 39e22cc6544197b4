package handler

import (
	"brokerdesk/internal/adapter/api/middleware"
	"brokerdesk/internal/domain/repository"
	"brokerdesk/internal/infrastructure/firebase"
	"brokerdesk/internal/infrastructure/storage"
	ws "brokerdesk/internal/infrastructure/websocket"
	"brokerdesk/internal/messaging"
)

var (
	inboxHandler      *InboxHandler
	userHandler       *UserHandler
	attachmentHandler *AttachmentHandler
	websocketHandler  *WebSocketHandler
	healthHandler     *HealthHandler
)

func Setup(
	registry *messaging.Registry,
	hub *ws.Hub,
	userRepo repository.UserRepository,
	storageClient *storage.CloudStorageClient,
	firebaseAuth *firebase.FirebaseAuthClient,
	authMiddleware *middleware.AuthMiddleware,
) {
	inboxHandler = NewInboxHandler(registry)
	userHandler = NewUserHandler(userRepo)
	attachmentHandler = NewAttachmentHandler(storageClient)
	websocketHandler = NewWebSocketHandler(hub, registry, authMiddleware)
	healthHandler = NewHealthHandler(firebaseAuth)
}

func GetInboxHandler() *InboxHandler {
	return inboxHandler
}

func GetUserHandler() *UserHandler {
	return userHandler
}

func GetAttachmentHandler() *AttachmentHandler {
	return attachmentHandler
}

func GetWebSocketHandler() *WebSocketHandler {
	return websocketHandler
}

func GetHealthHandler() *HealthHandler {
	return healthHandler
}
