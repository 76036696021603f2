package handler

import (
	"github.com/labstack/echo/v4"

	"mitcstore/internal/usecase"
	"mitcstore/pkg/response"
	"mitcstore/pkg/utils"
)

type AdminChatHandler struct {
	adminChat *usecase.AdminChatUseCase
}

func NewAdminChatHandler(adminChat *usecase.AdminChatUseCase) *AdminChatHandler {
	return &AdminChatHandler{
		adminChat: adminChat,
	}
}

type adminMessageRequest struct {
	Message string `json:"message" validate:"required"`
}

// ListSessions returns every chat session, optionally filtered by ?q= on the
// customer's name or email.
func (h *AdminChatHandler) ListSessions(c echo.Context) error {
	views, err := h.adminChat.ListSessions(c.Request().Context(), c.QueryParam("q"))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, views)
}

func (h *AdminChatHandler) GetUnread(c echo.Context) error {
	count, err := h.adminChat.TotalUnread(c.Request().Context())
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, map[string]int{
		"count": count,
	})
}

func (h *AdminChatHandler) GetMessages(c echo.Context) error {
	sessionID := c.Param("id")
	page := utils.GetPaginationParams(c, usecase.DefaultHistoryLimit)

	messages, err := h.adminChat.History(c.Request().Context(), sessionID, page.PageSize, page.Offset)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]interface{}{
		"session_id": sessionID,
		"messages":   messages,
	})
}

func (h *AdminChatHandler) SendMessage(c echo.Context) error {
	var req adminMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	message, err := h.adminChat.Send(c.Request().Context(), c.Param("id"), req.Message)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Created(c, message)
}

func (h *AdminChatHandler) MarkRead(c echo.Context) error {
	if err := h.adminChat.MarkRead(c.Request().Context(), c.Param("id")); err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, map[string]string{
		"session_id": c.Param("id"),
	})
}

func (h *AdminChatHandler) Resolve(c echo.Context) error {
	if err := h.adminChat.Resolve(c.Request().Context(), c.Param("id")); err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, map[string]string{
		"session_id": c.Param("id"),
		"status":     "resolved",
	})
}
