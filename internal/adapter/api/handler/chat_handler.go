package handler

import (
	"github.com/labstack/echo/v4"

	"mitcstore/internal/adapter/api/middleware"
	"mitcstore/internal/domain/entity"
	"mitcstore/internal/usecase"
	"mitcstore/pkg/response"
	"mitcstore/pkg/utils"
)

// ChatHandler serves the storefront chat widget for guests and signed-in users.
type ChatHandler struct {
	identity  *usecase.IdentityResolver
	directory *usecase.SessionDirectory
	channel   *usecase.MessageChannel
	unread    *usecase.UnreadCounter
}

func NewChatHandler(
	identity *usecase.IdentityResolver,
	directory *usecase.SessionDirectory,
	channel *usecase.MessageChannel,
	unread *usecase.UnreadCounter,
) *ChatHandler {
	return &ChatHandler{
		identity:  identity,
		directory: directory,
		channel:   channel,
		unread:    unread,
	}
}

type openSessionRequest struct {
	Name  string `json:"name"`
	Email string `json:"email" validate:"omitempty,email"`
}

type chatMessageRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message" validate:"required"`
}

type markReadRequest struct {
	SessionID string `json:"session_id"`
}

func (h *ChatHandler) participant(c echo.Context) (entity.ParticipantID, usecase.AuthState) {
	auth := middleware.AuthStateFrom(c)
	return h.identity.Resolve(auth, newCookieTokenStore(c)), auth
}

// session returns sessionID when given, checking the caller belongs to it, or
// the caller's own session otherwise.
func (h *ChatHandler) session(c echo.Context, participant entity.ParticipantID, auth usecase.AuthState, sessionID string) (*entity.Session, error) {
	ctx := c.Request().Context()
	if sessionID != "" {
		return h.directory.GetFor(ctx, sessionID, participant)
	}
	return h.directory.GetOrCreate(ctx, participant, usecase.SessionProfile{Name: auth.Name, Email: auth.Email})
}

// OpenSession returns the caller's chat session, creating it on first contact.
func (h *ChatHandler) OpenSession(c echo.Context) error {
	var req openSessionRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	participant, auth := h.participant(c)
	profile := usecase.SessionProfile{Name: auth.Name, Email: auth.Email}
	if profile.Name == "" {
		profile.Name = req.Name
	}
	if profile.Email == "" {
		profile.Email = req.Email
	}

	session, err := h.directory.GetOrCreate(c.Request().Context(), participant, profile)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, session)
}

func (h *ChatHandler) GetMessages(c echo.Context) error {
	participant, auth := h.participant(c)

	session, err := h.session(c, participant, auth, c.QueryParam("session_id"))
	if err != nil {
		return response.Error(c, err)
	}

	page := utils.GetPaginationParams(c, usecase.DefaultHistoryLimit)

	messages, err := h.channel.History(c.Request().Context(), session.ID, page.PageSize, page.Offset)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]interface{}{
		"session_id": session.ID,
		"messages":   messages,
	})
}

func (h *ChatHandler) SendMessage(c echo.Context) error {
	var req chatMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	participant, auth := h.participant(c)
	session, err := h.session(c, participant, auth, req.SessionID)
	if err != nil {
		return response.Error(c, err)
	}

	message, err := h.channel.Send(c.Request().Context(), session.ID, participant, req.Message)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, message)
}

func (h *ChatHandler) MarkRead(c echo.Context) error {
	var req markReadRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	participant, auth := h.participant(c)
	session, err := h.session(c, participant, auth, req.SessionID)
	if err != nil {
		return response.Error(c, err)
	}

	if err := h.unread.MarkRead(c.Request().Context(), session.ID, participant); err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]string{
		"session_id": session.ID,
	})
}

// GetUnread reports the caller's unread total across their sessions.
func (h *ChatHandler) GetUnread(c echo.Context) error {
	participant, ok := h.identity.Lookup(middleware.AuthStateFrom(c), newCookieTokenStore(c))
	if !ok {
		return response.Success(c, map[string]int{
			"count": 0,
		})
	}

	count, err := h.unread.TotalUnread(c.Request().Context(), participant)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]int{
		"count": count,
	})
}
