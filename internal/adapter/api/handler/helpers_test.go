package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"mitcstore/internal/adapter/api"
	"mitcstore/internal/adapter/api/middleware"
	"mitcstore/internal/adapter/repository"
	"mitcstore/internal/infrastructure/ratelimit"
	"mitcstore/internal/usecase"
)

type fakeAuthClient struct {
	tokens map[string]usecase.AuthState
}

func (f *fakeAuthClient) VerifyToken(ctx context.Context, token string) (usecase.AuthState, error) {
	state, ok := f.tokens[token]
	if !ok {
		return usecase.AuthState{}, fmt.Errorf("unknown token %q", token)
	}
	return state, nil
}

type apiEnv struct {
	e     *echo.Echo
	store *repository.MemoryDocumentStore
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

const (
	userToken  = "token-user-1"
	otherToken = "token-user-2"
	adminToken = "token-admin"
)

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()

	store := repository.NewMemoryDocumentStore()
	sessions := repository.NewSessionRepository(store)
	messages := repository.NewMessageRepository(store)
	orders := repository.NewOrderRepository(store)
	users := repository.NewUserRepository(store)

	directory := usecase.NewSessionDirectory(sessions)
	channel := usecase.NewMessageChannel(directory, sessions, messages, nil)
	unread := usecase.NewUnreadCounter(sessions)
	adminChat := usecase.NewAdminChatUseCase(directory, channel, unread, users)
	pipeline := usecase.NewOrderPipeline(orders, nil, true)

	authMiddleware := middleware.NewAuthMiddleware(&fakeAuthClient{tokens: map[string]usecase.AuthState{
		userToken:  {UID: "u1", Name: "Ann Lee", Email: "ann@example.com"},
		otherToken: {UID: "u2", Name: "Bob", Email: "bob@example.com"},
		adminToken: {UID: "admin-1", Name: "Support"},
	}})
	adminMiddleware := middleware.NewAdminMiddleware(users, "admin-1")
	limiter := ratelimit.NewRateLimiter()

	chatHandler := NewChatHandler(usecase.NewIdentityResolver(), directory, channel, unread)
	adminChatHandler := NewAdminChatHandler(adminChat)
	orderHandler := NewOrderHandler(pipeline)

	e := echo.New()
	e.Validator = api.NewValidator()

	e.GET("/health", NewHealthHandler(store).CheckHealth)

	chat := e.Group("/v1/chat", authMiddleware.OptionalAuthenticate, middleware.RateLimit(limiter, ratelimit.ActionRequest))
	chat.POST("/session", chatHandler.OpenSession)
	chat.GET("/session/messages", chatHandler.GetMessages)
	chat.POST("/session/messages", chatHandler.SendMessage)
	chat.PUT("/session/read", chatHandler.MarkRead)
	chat.GET("/unread", chatHandler.GetUnread)

	orderGroup := e.Group("/v1/orders", authMiddleware.Authenticate)
	orderGroup.POST("", orderHandler.Submit)
	orderGroup.GET("", orderHandler.ListMine)
	orderGroup.GET("/:id", orderHandler.GetMine)

	admin := e.Group("/v1/admin", authMiddleware.Authenticate, adminMiddleware.AdminOnly)
	admin.GET("/chats", adminChatHandler.ListSessions)
	admin.GET("/chats/unread", adminChatHandler.GetUnread)
	admin.GET("/chats/:id/messages", adminChatHandler.GetMessages)
	admin.POST("/chats/:id/messages", adminChatHandler.SendMessage)
	admin.PUT("/chats/:id/read", adminChatHandler.MarkRead)
	admin.PUT("/chats/:id/resolve", adminChatHandler.Resolve)
	admin.GET("/orders", orderHandler.List)
	admin.PATCH("/orders/:id/status", orderHandler.UpdateStatus)
	admin.PATCH("/orders/:id/paid", orderHandler.MarkPaid)

	return &apiEnv{e: e, store: store}
}

type requestOption func(*http.Request)

func withToken(token string) requestOption {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func withCookie(cookie *http.Cookie) requestOption {
	return func(r *http.Request) { r.AddCookie(cookie) }
}

func (env *apiEnv) do(t *testing.T, method, path, body string, opts ...requestOption) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for _, opt := range opts {
		opt(req)
	}

	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, data interface{}) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	if data != nil && len(env.Data) > 0 {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

func guestCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == GuestCookieName {
			return cookie
		}
	}
	return nil
}
