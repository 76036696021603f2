package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"mitcstore/internal/domain/repository"
)

type HealthHandler struct {
	store repository.DocumentStore
}

func NewHealthHandler(store repository.DocumentStore) *HealthHandler {
	return &HealthHandler{
		store: store,
	}
}

func (h *HealthHandler) CheckHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// CheckStorage performs a cheap read against the document store.
func (h *HealthHandler) CheckStorage(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	if _, err := h.store.GetRecord(ctx, repository.UsersCollection, "health-check"); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "Document store unreachable",
			"error":  err.Error(),
		})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status": "Document store reachable",
	})
}
