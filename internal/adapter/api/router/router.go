package router

import (
	"github.com/labstack/echo/v4"

	"brokerdesk/internal/adapter/api/handler"
	"brokerdesk/internal/adapter/api/middleware"
)

func Setup(e *echo.Echo, authMiddleware *middleware.AuthMiddleware, rateLimit *middleware.RateLimitMiddleware) {
	SetupInboxRouter(e,
		handler.GetInboxHandler(),
		handler.GetAttachmentHandler(),
		handler.GetUserHandler(),
		authMiddleware,
		rateLimit,
	)
	SetupWebSocketRouter(e, handler.GetWebSocketHandler())
	SetupHealthRouter(e)
}
