package router

import (
	"github.com/labstack/echo/v4"

	"mitcstore/internal/adapter/api/handler"
	"mitcstore/internal/adapter/api/middleware"
	"mitcstore/internal/infrastructure/ratelimit"
)

// Handlers bundles every HTTP handler the router mounts.
type Handlers struct {
	Health    *handler.HealthHandler
	Chat      *handler.ChatHandler
	AdminChat *handler.AdminChatHandler
	Order     *handler.OrderHandler
	WebSocket *handler.WebSocketHandler
}

func Setup(e *echo.Echo, h Handlers, authMiddleware *middleware.AuthMiddleware, adminMiddleware *middleware.AdminMiddleware, limiter *ratelimit.RateLimiter) {
	SetupHealthRouter(e, h.Health)
	SetupChatRouter(e, h.Chat, authMiddleware, limiter)
	SetupOrderRouter(e, h.Order, authMiddleware, limiter)
	SetupAdminRouter(e, h.AdminChat, h.Order, authMiddleware, adminMiddleware)
	SetupWebSocketRouter(e, h.WebSocket, authMiddleware)
}
