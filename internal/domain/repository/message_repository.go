package repository

import (
	"context"

	"mitcstore/internal/domain/entity"
)

type MessageRepository interface {
	Create(ctx context.Context, message *entity.Message) error
	ListBySession(ctx context.Context, sessionID string, limit, offset int) ([]*entity.Message, error)
	WatchBySession(ctx context.Context, sessionID string, fn func([]*entity.Message, error)) (Unsubscribe, error)
}
