package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"mitcstore/internal/domain/entity"
	"mitcstore/internal/domain/repository"
	"mitcstore/internal/infrastructure/metrics"
	red "mitcstore/internal/infrastructure/redis"
	"mitcstore/pkg/logger"
)

var _ repository.UserRepository = (*userRepoCacheDecorator)(nil)

// userRepoCacheDecorator keeps profiles in redis for the admin session list,
// which joins a profile per session on every refresh.
type userRepoCacheDecorator struct {
	inner repository.UserRepository
	cache red.RedisClient
	ttl   time.Duration
}

func NewUserRepoCacheDecorator(inner repository.UserRepository, cache red.RedisClient, ttl time.Duration) repository.UserRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &userRepoCacheDecorator{
		inner: inner,
		cache: cache,
		ttl:   ttl,
	}
}

func (d *userRepoCacheDecorator) GetByID(ctx context.Context, id string) (*entity.User, error) {
	key := fmt.Sprintf("profile:id:%s", id)
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		var user entity.User
		if json.Unmarshal([]byte(val), &user) == nil {
			metrics.IncCacheRequest("profile", "hit")
			return &user, nil
		}
	} else if err != red.Nil {
		logger.Warn("Profile cache read failed for %s: %v", id, err)
	}

	metrics.IncCacheRequest("profile", "miss")
	user, err := d.inner.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user != nil {
		bytes, _ := json.Marshal(user)
		if err := d.cache.Set(ctx, key, bytes, d.ttl); err != nil {
			logger.Warn("Profile cache write failed for %s: %v", id, err)
		}
	}
	return user, nil
}
