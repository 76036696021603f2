package handler

import (
	"net/http"

	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"mitcstore/internal/adapter/api/middleware"
	"mitcstore/internal/domain/entity"
	ws "mitcstore/internal/infrastructure/websocket"
	"mitcstore/internal/usecase"
	"mitcstore/pkg/errors"
	"mitcstore/pkg/logger"
	"mitcstore/pkg/response"
)

type WebSocketHandler struct {
	wsManager       *ws.Manager
	identity        *usecase.IdentityResolver
	adminMiddleware *middleware.AdminMiddleware
}

var upgrader = gorillaws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func NewWebSocketHandler(wsManager *ws.Manager, identity *usecase.IdentityResolver, adminMiddleware *middleware.AdminMiddleware) *WebSocketHandler {
	return &WebSocketHandler{
		wsManager:       wsManager,
		identity:        identity,
		adminMiddleware: adminMiddleware,
	}
}

// HandleWebSocket upgrades the request. Admins join as the shared admin
// participant; everyone else is resolved like the REST chat endpoints.
func (h *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	auth := middleware.AuthStateFrom(c)
	tokens := newCookieTokenStore(c)

	participant := h.identity.Resolve(auth, tokens)
	if auth.Authenticated() {
		isAdmin, err := h.adminMiddleware.IsAdmin(c.Request().Context(), auth.UID)
		if err != nil {
			return response.Error(c, errors.Internal("Failed to verify admin privileges", err))
		}
		if isAdmin {
			participant = entity.AdminParticipant
		}
	}

	// Upgrade writes its own response, so carry over a freshly minted guest cookie.
	responseHeader := http.Header{}
	for _, cookie := range c.Response().Header().Values("Set-Cookie") {
		responseHeader.Add("Set-Cookie", cookie)
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), responseHeader)
	if err != nil {
		logger.Warn("WebSocket upgrade failed for %s: %v", participant, err)
		return nil
	}

	client := ws.NewClient(conn, participant, usecase.SessionProfile{Name: auth.Name, Email: auth.Email})
	if !h.wsManager.Add(client) {
		logger.Warn("WebSocket manager stopped; dropping connection for %s", participant)
		conn.Close()
		return nil
	}

	go client.ReadPump(h.wsManager)
	go client.WritePump()

	return nil
}
