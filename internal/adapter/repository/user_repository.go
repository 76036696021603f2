package repository

import (
	"context"

	"mitcstore/internal/domain/entity"
	"mitcstore/internal/domain/repository"
	"mitcstore/pkg/errors"
)

type userRepository struct {
	store repository.DocumentStore
}

func NewUserRepository(store repository.DocumentStore) repository.UserRepository {
	return &userRepository{
		store: store,
	}
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	rec, err := r.store.GetRecord(ctx, repository.UsersCollection, id)
	if err != nil {
		return nil, errors.Internal("Failed to get user", err)
	}
	if rec == nil {
		return nil, errors.NotFound("User", nil)
	}
	return decodeUser(*rec), nil
}
