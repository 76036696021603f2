package router

import (
	"github.com/labstack/echo/v4"

	"mitcstore/internal/adapter/api/handler"
	"mitcstore/internal/adapter/api/middleware"
)

// SetupWebSocketRouter sets up WebSocket routes. The token may come from the
// Authorization header or the "token" query parameter; guests connect without one.
func SetupWebSocketRouter(e *echo.Echo, wsHandler *handler.WebSocketHandler, authMiddleware *middleware.AuthMiddleware) {
	e.GET("/ws", wsHandler.HandleWebSocket, authMiddleware.OptionalAuthenticate)
}
