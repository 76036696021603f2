package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"

	"mitcstore/internal/usecase"
	"mitcstore/pkg/errors"
	"mitcstore/pkg/response"
)

const (
	ContextKeyUID  = "uid"
	ContextKeyAuth = "auth"
)

type AuthMiddleware struct {
	authClient usecase.FirebaseAuthClient
}

func NewAuthMiddleware(authClient usecase.FirebaseAuthClient) *AuthMiddleware {
	return &AuthMiddleware{
		authClient: authClient,
	}
}

// Authenticate rejects requests without a valid Firebase ID token.
func (m *AuthMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		idToken, err := bearerToken(c)
		if err != nil {
			return response.Error(c, err)
		}
		if idToken == "" {
			return response.Error(c, errors.Unauthorized("Authorization header is required", nil))
		}

		state, err := m.authClient.VerifyToken(c.Request().Context(), idToken)
		if err != nil {
			return response.Error(c, errors.Unauthorized("Invalid or expired token", err))
		}

		setAuthState(c, state)
		return next(c)
	}
}

// OptionalAuthenticate attaches the caller when a valid token is present and
// otherwise lets the request through anonymously.
func (m *AuthMiddleware) OptionalAuthenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		idToken, err := bearerToken(c)
		if err != nil || idToken == "" {
			return next(c)
		}

		state, err := m.authClient.VerifyToken(c.Request().Context(), idToken)
		if err != nil {
			return next(c)
		}

		setAuthState(c, state)
		return next(c)
	}
}

// bearerToken reads the Authorization header, falling back to the "token"
// query parameter for WebSocket upgrades.
func bearerToken(c echo.Context) (string, error) {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		return c.QueryParam("token"), nil
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", errors.Unauthorized("Invalid authorization format", nil)
	}
	return parts[1], nil
}

func setAuthState(c echo.Context, state usecase.AuthState) {
	c.Set(ContextKeyUID, state.UID)
	c.Set(ContextKeyAuth, state)
}

// AuthStateFrom returns the caller set by the auth middleware, or the zero
// (anonymous) state.
func AuthStateFrom(c echo.Context) usecase.AuthState {
	if state, ok := c.Get(ContextKeyAuth).(usecase.AuthState); ok {
		return state
	}
	if uid, ok := c.Get(ContextKeyUID).(string); ok {
		return usecase.AuthState{UID: uid}
	}
	return usecase.AuthState{}
}
