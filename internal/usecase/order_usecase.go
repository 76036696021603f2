package usecase

import (
	"context"
	"fmt"
	"time"

	"mitcstore/internal/domain/entity"
	"mitcstore/internal/domain/repository"
	"mitcstore/internal/infrastructure/metrics"
	"mitcstore/pkg/errors"
	"mitcstore/pkg/logger"
)

const OrdersPageSize = 10

type Requester struct {
	UserID string
	Name   string
	Email  string
}

type SubmitOrderInput struct {
	ProductType    string `json:"product_type" validate:"required"`
	Quantity       int    `json:"quantity" validate:"required,min=1"`
	Budget         string `json:"budget"`
	Purpose        string `json:"purpose"`
	Specifications string `json:"specifications"`
	Deadline       string `json:"deadline"`
}

type OrderPipeline struct {
	orderRepo repository.OrderRepository
	notifier  OrderNotifier
	strict    bool
	now       func() time.Time
}

// NewOrderPipeline builds the pipeline. In strict mode transitions must move
// forward; otherwise non-forward moves are accepted and recorded as anomalies.
func NewOrderPipeline(orderRepo repository.OrderRepository, notifier OrderNotifier, strict bool) *OrderPipeline {
	return &OrderPipeline{
		orderRepo: orderRepo,
		notifier:  notifier,
		strict:    strict,
		now:       time.Now,
	}
}

func (p *OrderPipeline) Submit(ctx context.Context, requester Requester, input SubmitOrderInput) (*entity.Order, error) {
	if requester.UserID == "" {
		return nil, errors.Unauthorized("Sign in to submit an order", nil)
	}
	if input.ProductType == "" {
		return nil, errors.BadRequest("Product type is required", nil)
	}
	if input.Quantity < 1 {
		return nil, errors.BadRequest("Quantity must be at least 1", nil)
	}

	now := p.now().UTC()
	order := &entity.Order{
		UserID:         requester.UserID,
		UserName:       requester.Name,
		UserEmail:      requester.Email,
		ProductType:    input.ProductType,
		Quantity:       input.Quantity,
		Budget:         input.Budget,
		Purpose:        input.Purpose,
		Specifications: input.Specifications,
		Deadline:       input.Deadline,
		Status:         entity.OrderPending,
		Logs: []entity.OrderLog{
			{Status: entity.OrderPending, Timestamp: now, Note: entity.OrderSubmittedNote},
		},
	}

	if err := p.orderRepo.Create(ctx, order); err != nil {
		logger.Error("Submit: failed to create order for %s: %v", requester.UserID, err)
		return nil, errors.Internal("Failed to submit order", err)
	}

	metrics.IncOrderSubmitted()
	logger.Info("Order %s submitted by %s", order.ID, requester.UserID)
	p.notify(ctx, OrderEvent{Type: OrderCreated, Order: order})
	return order, nil
}

// Transition moves an order to newStatus, appending a log entry in the same write.
func (p *OrderPipeline) Transition(ctx context.Context, orderID, newStatus, note string) (*entity.Order, error) {
	status := entity.OrderStatus(newStatus)
	if !status.Valid() {
		return nil, errors.InvalidStatus(newStatus)
	}

	order, err := p.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	from := order.Status
	if !status.IsForwardOf(from) {
		if p.strict {
			return nil, errors.InvalidTransition(string(from), string(status))
		}
		logger.L().Warn().
			Str("order_id", orderID).
			Str("from", string(from)).
			Str("to", string(status)).
			Msg("Order transition does not move forward")
		metrics.IncOrderTransitionAnomaly(string(from), string(status))
	}

	if note == "" {
		note = fmt.Sprintf("Status updated to %s", status.Label())
	}
	entry := entity.OrderLog{Status: status, Timestamp: p.now().UTC(), Note: note}

	if err := p.orderRepo.AppendStatus(ctx, orderID, entry); err != nil {
		if errors.Is(err, errors.CodeNotFound) {
			return nil, errors.OrderNotFound(orderID, err)
		}
		logger.LogOrderError(orderID, "transition", err)
		return nil, errors.Internal("Failed to update order status", err)
	}

	order.Status = status
	order.Logs = append(order.Logs, entry)
	order.UpdatedAt = entry.Timestamp

	metrics.IncOrderTransition(string(status))
	eventType := OrderStatusChanged
	if status.IsTerminal() {
		eventType = OrderDelivered
	}
	p.notify(ctx, OrderEvent{Type: eventType, Order: order, From: from})
	return order, nil
}

func (p *OrderPipeline) MarkPaid(ctx context.Context, orderID string) (*entity.Order, error) {
	order, err := p.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Paid {
		return order, nil
	}

	if err := p.orderRepo.SetPaid(ctx, orderID, true); err != nil {
		if errors.Is(err, errors.CodeNotFound) {
			return nil, errors.OrderNotFound(orderID, err)
		}
		logger.LogOrderError(orderID, "mark_paid", err)
		return nil, errors.Internal("Failed to mark order as paid", err)
	}
	order.Paid = true
	order.UpdatedAt = p.now().UTC()

	p.notify(ctx, OrderEvent{Type: OrderPaid, Order: order})
	return order, nil
}

func (p *OrderPipeline) Get(ctx context.Context, orderID string) (*entity.Order, error) {
	order, err := p.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, errors.CodeNotFound) {
			return nil, errors.OrderNotFound(orderID, nil)
		}
		return nil, errors.Internal("Failed to get order", err)
	}
	return order, nil
}

// GetFor returns the order only to the user who submitted it.
func (p *OrderPipeline) GetFor(ctx context.Context, orderID, userID string) (*entity.Order, error) {
	order, err := p.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, errors.OrderNotFound(orderID, nil)
	}
	return order, nil
}

func (p *OrderPipeline) ListForUser(ctx context.Context, userID string) ([]*entity.Order, error) {
	orders, err := p.orderRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, errors.Internal("Failed to list orders", err)
	}
	return orders, nil
}

// List pages through every order, optionally filtered by status. page starts at 1.
func (p *OrderPipeline) List(ctx context.Context, status string, page int) ([]*entity.Order, int64, error) {
	filter := entity.OrderStatus(status)
	if status == "all" {
		filter = ""
	}
	if filter != "" && !filter.Valid() {
		return nil, 0, errors.InvalidStatus(status)
	}
	if page < 1 {
		page = 1
	}

	orders, total, err := p.orderRepo.List(ctx, filter, OrdersPageSize, (page-1)*OrdersPageSize)
	if err != nil {
		return nil, 0, errors.Internal("Failed to list orders", err)
	}
	return orders, total, nil
}

func (p *OrderPipeline) notify(ctx context.Context, event OrderEvent) {
	if p.notifier == nil {
		return
	}
	p.notifier.NotifyOrderEvent(ctx, event)
}
