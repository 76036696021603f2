package router

import (
	"github.com/labstack/echo/v4"

	"mitcstore/internal/adapter/api/handler"
	"mitcstore/internal/adapter/api/middleware"
	"mitcstore/internal/infrastructure/ratelimit"
)

func SetupOrderRouter(e *echo.Echo, orderHandler *handler.OrderHandler, authMiddleware *middleware.AuthMiddleware, limiter *ratelimit.RateLimiter) {
	orders := e.Group("/v1/orders")
	orders.Use(authMiddleware.Authenticate)
	orders.Use(middleware.RateLimit(limiter, ratelimit.ActionRequest))

	orders.POST("", orderHandler.Submit)
	orders.GET("", orderHandler.ListMine)
	orders.GET("/:id", orderHandler.GetMine)
}
