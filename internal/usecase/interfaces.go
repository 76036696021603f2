package usecase

import (
	"context"
	"time"

	"mitcstore/internal/domain/entity"
)

// FirebaseAuthClient verifies an ID token and returns the signed-in caller.
type FirebaseAuthClient interface {
	VerifyToken(ctx context.Context, token string) (AuthState, error)
}

// AuthState is the caller's sign-in state. The zero value is an anonymous visitor.
type AuthState struct {
	UID   string
	Name  string
	Email string
}

func (a AuthState) Authenticated() bool {
	return a.UID != ""
}

// GuestTokenStore persists the anonymous visitor token, e.g. in a browser cookie.
type GuestTokenStore interface {
	Load() (string, bool)
	Save(token string) error
}

// Limiter is satisfied by ratelimit.RateLimiter.
type Limiter interface {
	Allow(key, action string) (bool, time.Duration)
}

type OrderEventType string

const (
	OrderCreated       OrderEventType = "order_created"
	OrderStatusChanged OrderEventType = "order_status_changed"
	OrderDelivered     OrderEventType = "order_delivered"
	OrderPaid          OrderEventType = "order_paid"
)

type OrderEvent struct {
	Type  OrderEventType     `json:"type"`
	Order *entity.Order      `json:"order"`
	From  entity.OrderStatus `json:"from,omitempty"`
}

// OrderNotifier receives order pipeline events. Implementations must not block.
type OrderNotifier interface {
	NotifyOrderEvent(ctx context.Context, event OrderEvent)
}
