package middleware

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"

	"mitcstore/internal/domain/entity"
	"mitcstore/internal/domain/repository"
	"mitcstore/pkg/errors"
	"mitcstore/pkg/logger"
	"mitcstore/pkg/response"
)

type AdminMiddleware struct {
	userRepo  repository.UserRepository
	adminUIDs map[string]struct{}
}

// NewAdminMiddleware grants admin to users whose profile role is "admin" and
// to every uid in the comma separated adminUIDs list.
func NewAdminMiddleware(userRepo repository.UserRepository, adminUIDs string) *AdminMiddleware {
	uids := make(map[string]struct{})
	for _, uid := range strings.Split(adminUIDs, ",") {
		if uid = strings.TrimSpace(uid); uid != "" {
			uids[uid] = struct{}{}
		}
	}
	return &AdminMiddleware{
		userRepo:  userRepo,
		adminUIDs: uids,
	}
}

func (m *AdminMiddleware) AdminOnly(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		uid, ok := c.Get(ContextKeyUID).(string)
		if !ok || uid == "" {
			return response.Error(c, errors.Unauthorized("Authentication required", nil))
		}

		isAdmin, err := m.IsAdmin(c.Request().Context(), uid)
		if err != nil {
			return response.Error(c, errors.Internal("Failed to verify admin privileges", err))
		}
		if !isAdmin {
			return response.Error(c, errors.Forbidden("Admin privileges required", nil))
		}

		return next(c)
	}
}

// IsAdmin reports whether uid may act as the shared admin participant.
func (m *AdminMiddleware) IsAdmin(ctx context.Context, uid string) (bool, error) {
	if _, ok := m.adminUIDs[uid]; ok {
		return true, nil
	}
	if m.userRepo == nil {
		return false, nil
	}

	user, err := m.userRepo.GetByID(ctx, uid)
	if err != nil {
		if errors.Is(err, errors.CodeNotFound) {
			return false, nil
		}
		logger.Error("Admin check for %s failed: %v", uid, err)
		return false, err
	}
	return user != nil && user.Role == entity.RoleAdmin, nil
}
