package repository

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"mitcstore/internal/domain/entity"
	"mitcstore/internal/domain/repository"
	"mitcstore/pkg/errors"
)

type orderRepository struct {
	store repository.DocumentStore
}

func NewOrderRepository(store repository.DocumentStore) repository.OrderRepository {
	return &orderRepository{
		store: store,
	}
}

func (r *orderRepository) Create(ctx context.Context, order *entity.Order) error {
	logs := make([]interface{}, 0, len(order.Logs))
	for _, entry := range order.Logs {
		logs = append(logs, logRecord(entry))
	}

	id, err := r.store.CreateRecord(ctx, repository.OrdersCollection, map[string]interface{}{
		"userId":         order.UserID,
		"userName":       order.UserName,
		"userEmail":      order.UserEmail,
		"productType":    order.ProductType,
		"quantity":       int64(order.Quantity),
		"budget":         order.Budget,
		"purpose":        order.Purpose,
		"specifications": order.Specifications,
		"deadline":       order.Deadline,
		"status":         string(order.Status),
		"paid":           order.Paid,
		"logs":           logs,
		"createdAt":      repository.ServerTimestamp,
		"updatedAt":      repository.ServerTimestamp,
	})
	if err != nil {
		return errors.Internal("Failed to create order", err)
	}
	order.ID = id

	if rec, err := r.store.GetRecord(ctx, repository.OrdersCollection, id); err == nil && rec != nil {
		order.CreatedAt = timeField(rec.Data, "createdAt")
		order.UpdatedAt = timeField(rec.Data, "updatedAt")
	}
	return nil
}

func (r *orderRepository) GetByID(ctx context.Context, id string) (*entity.Order, error) {
	rec, err := r.store.GetRecord(ctx, repository.OrdersCollection, id)
	if err != nil {
		return nil, errors.Internal("Failed to get order", err)
	}
	if rec == nil {
		return nil, errors.NotFound("Order", nil)
	}
	return decodeOrder(*rec), nil
}

func (r *orderRepository) AppendStatus(ctx context.Context, id string, entry entity.OrderLog) error {
	return r.update(ctx, id, []repository.FieldUpdate{
		{Path: []string{"status"}, Value: string(entry.Status)},
		{Path: []string{"logs"}, Value: repository.ArrayAppend(logRecord(entry))},
		{Path: []string{"updatedAt"}, Value: repository.ServerTimestamp},
	})
}

func (r *orderRepository) SetPaid(ctx context.Context, id string, paid bool) error {
	return r.update(ctx, id, []repository.FieldUpdate{
		{Path: []string{"paid"}, Value: paid},
		{Path: []string{"updatedAt"}, Value: repository.ServerTimestamp},
	})
}

func (r *orderRepository) ListByUserID(ctx context.Context, userID string) ([]*entity.Order, error) {
	records, err := r.store.QueryRecords(ctx, repository.OrdersCollection, repository.Query{
		Filters: []repository.Filter{{Field: "userId", Op: repository.OpEqual, Value: userID}},
	})
	if err != nil {
		return nil, errors.Internal("Failed to list orders", err)
	}
	return decodeOrders(records), nil
}

// List filters by status when one is given and pages newest first. Sorting
// happens here so the status filter does not need a composite index.
func (r *orderRepository) List(ctx context.Context, status entity.OrderStatus, limit, offset int) ([]*entity.Order, int64, error) {
	var q repository.Query
	if status != "" {
		q.Filters = []repository.Filter{{Field: "status", Op: repository.OpEqual, Value: string(status)}}
	}

	records, err := r.store.QueryRecords(ctx, repository.OrdersCollection, q)
	if err != nil {
		return nil, 0, errors.Internal("Failed to list orders", err)
	}

	orders := decodeOrders(records)
	total := int64(len(orders))

	if offset >= len(orders) {
		return []*entity.Order{}, total, nil
	}
	orders = orders[offset:]
	if limit > 0 && len(orders) > limit {
		orders = orders[:limit]
	}
	return orders, total, nil
}

func (r *orderRepository) update(ctx context.Context, id string, updates []repository.FieldUpdate) error {
	if err := r.store.UpdateRecord(ctx, repository.OrdersCollection, id, updates); err != nil {
		if isRecordNotFound(err) {
			return errors.NotFound("Order", err)
		}
		return errors.Internal("Failed to update order", err)
	}
	return nil
}

// logRecord uses the caller's clock: server timestamps are not allowed inside arrays.
// logRecord tags each entry with its own id so ArrayAppend never merges two
// identical transitions into one.
func logRecord(entry entity.OrderLog) map[string]interface{} {
	return map[string]interface{}{
		"entryId":   uuid.NewString(),
		"status":    string(entry.Status),
		"timestamp": entry.Timestamp,
		"note":      entry.Note,
	}
}

func decodeOrders(records []repository.Record) []*entity.Order {
	orders := make([]*entity.Order, 0, len(records))
	for _, rec := range records {
		orders = append(orders, decodeOrder(rec))
	}
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return orders
}
