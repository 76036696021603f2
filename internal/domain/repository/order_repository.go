package repository

import (
	"context"

	"mitcstore/internal/domain/entity"
)

type OrderRepository interface {
	Create(ctx context.Context, order *entity.Order) error
	GetByID(ctx context.Context, id string) (*entity.Order, error)
	// AppendStatus sets the status and appends the log entry in one write.
	AppendStatus(ctx context.Context, id string, log entity.OrderLog) error
	SetPaid(ctx context.Context, id string, paid bool) error
	ListByUserID(ctx context.Context, userID string) ([]*entity.Order, error)
	List(ctx context.Context, status entity.OrderStatus, limit, offset int) ([]*entity.Order, int64, error)
}
