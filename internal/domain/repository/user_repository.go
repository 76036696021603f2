package repository

import (
	"context"

	"mitcstore/internal/domain/entity"
)

// UserRepository reads profiles maintained by the storefront's account flows.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*entity.User, error)
}
