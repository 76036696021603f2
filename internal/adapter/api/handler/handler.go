package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

const (
	GuestCookieName   = "guest_chat_id"
	guestCookieMaxAge = 365 * 24 * time.Hour
)

// cookieTokenStore keeps the guest chat token in a long-lived cookie.
type cookieTokenStore struct {
	c      echo.Context
	secure bool
	saved  string
}

func newCookieTokenStore(c echo.Context) *cookieTokenStore {
	return &cookieTokenStore{c: c, secure: c.IsTLS()}
}

func (s *cookieTokenStore) Load() (string, bool) {
	if s.saved != "" {
		return s.saved, true
	}
	cookie, err := s.c.Cookie(GuestCookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

func (s *cookieTokenStore) Save(token string) error {
	s.c.SetCookie(&http.Cookie{
		Name:     GuestCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(guestCookieMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	s.saved = token
	return nil
}
