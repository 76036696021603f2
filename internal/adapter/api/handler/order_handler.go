package handler

import (
	"github.com/labstack/echo/v4"

	"mitcstore/internal/adapter/api/middleware"
	"mitcstore/internal/usecase"
	"mitcstore/pkg/errors"
	"mitcstore/pkg/response"
	"mitcstore/pkg/utils"
)

type OrderHandler struct {
	pipeline *usecase.OrderPipeline
}

func NewOrderHandler(pipeline *usecase.OrderPipeline) *OrderHandler {
	return &OrderHandler{
		pipeline: pipeline,
	}
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
	Note   string `json:"note"`
}

// Submit files a bulk order request for the signed-in user.
func (h *OrderHandler) Submit(c echo.Context) error {
	var req usecase.SubmitOrderInput
	if err := c.Bind(&req); err != nil {
		return response.Error(c, errors.BadRequest("Invalid request body", err))
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	auth := middleware.AuthStateFrom(c)
	order, err := h.pipeline.Submit(c.Request().Context(), usecase.Requester{
		UserID: auth.UID,
		Name:   auth.Name,
		Email:  auth.Email,
	}, req)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, order)
}

func (h *OrderHandler) ListMine(c echo.Context) error {
	auth := middleware.AuthStateFrom(c)
	orders, err := h.pipeline.ListForUser(c.Request().Context(), auth.UID)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, orders)
}

func (h *OrderHandler) GetMine(c echo.Context) error {
	auth := middleware.AuthStateFrom(c)
	order, err := h.pipeline.GetFor(c.Request().Context(), c.Param("id"), auth.UID)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, order)
}

// List is the admin view: ?status= filters ("all" for none), ?page= starts at 1.
func (h *OrderHandler) List(c echo.Context) error {
	page := utils.GetPaginationParams(c, usecase.OrdersPageSize).Page

	orders, total, err := h.pipeline.List(c.Request().Context(), c.QueryParam("status"), page)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Paginated(c, orders, total, page, usecase.OrdersPageSize)
}

func (h *OrderHandler) UpdateStatus(c echo.Context) error {
	var req updateStatusRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, errors.BadRequest("Invalid request body", err))
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	order, err := h.pipeline.Transition(c.Request().Context(), c.Param("id"), req.Status, req.Note)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, order)
}

func (h *OrderHandler) MarkPaid(c echo.Context) error {
	order, err := h.pipeline.MarkPaid(c.Request().Context(), c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, order)
}
