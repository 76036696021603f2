package router

import (
	"github.com/labstack/echo/v4"

	"mitcstore/internal/adapter/api/handler"
	"mitcstore/internal/adapter/api/middleware"
)

func SetupAdminRouter(e *echo.Echo, adminChatHandler *handler.AdminChatHandler, orderHandler *handler.OrderHandler, authMiddleware *middleware.AuthMiddleware, adminMiddleware *middleware.AdminMiddleware) {
	// Admin routes - require authentication and admin role
	admin := e.Group("/v1/admin")
	admin.Use(authMiddleware.Authenticate)
	admin.Use(adminMiddleware.AdminOnly)

	// Support inbox
	admin.GET("/chats", adminChatHandler.ListSessions)
	admin.GET("/chats/unread", adminChatHandler.GetUnread)
	admin.GET("/chats/:id/messages", adminChatHandler.GetMessages)
	admin.POST("/chats/:id/messages", adminChatHandler.SendMessage)
	admin.PUT("/chats/:id/read", adminChatHandler.MarkRead)
	admin.PUT("/chats/:id/resolve", adminChatHandler.Resolve)

	// Order pipeline
	admin.GET("/orders", orderHandler.List)
	admin.PATCH("/orders/:id/status", orderHandler.UpdateStatus)
	admin.PATCH("/orders/:id/paid", orderHandler.MarkPaid)
}
