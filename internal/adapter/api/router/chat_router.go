package router

import (
	"github.com/labstack/echo/v4"

	"mitcstore/internal/adapter/api/handler"
	"mitcstore/internal/adapter/api/middleware"
	"mitcstore/internal/infrastructure/ratelimit"
)

// SetupChatRouter mounts the customer chat endpoints. Sign-in is optional;
// anonymous visitors are tracked by the guest cookie.
func SetupChatRouter(e *echo.Echo, chatHandler *handler.ChatHandler, authMiddleware *middleware.AuthMiddleware, limiter *ratelimit.RateLimiter) {
	chat := e.Group("/v1/chat")
	chat.Use(authMiddleware.OptionalAuthenticate)
	chat.Use(middleware.RateLimit(limiter, ratelimit.ActionRequest))

	chat.POST("/session", chatHandler.OpenSession, middleware.RateLimit(limiter, ratelimit.ActionOpenSession))
	chat.GET("/session/messages", chatHandler.GetMessages)
	chat.POST("/session/messages", chatHandler.SendMessage)
	chat.PUT("/session/read", chatHandler.MarkRead)
	chat.GET("/unread", chatHandler.GetUnread)
}
