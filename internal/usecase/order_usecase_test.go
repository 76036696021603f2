package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"mitcstore/internal/adapter/repository"
	"mitcstore/internal/domain/entity"
	"mitcstore/pkg/errors"
)

func newTestPipeline(strict bool) (*OrderPipeline, *mockNotifier) {
	notifier := &mockNotifier{}
	notifier.On("NotifyOrderEvent", mock.Anything, mock.Anything).Return()
	pipeline := NewOrderPipeline(repository.NewOrderRepository(repository.NewMemoryDocumentStore()), notifier, strict)
	return pipeline, notifier
}

var testRequester = Requester{UserID: "uid-1", Name: "Budi", Email: "budi@example.com"}

func submitTestOrder(t *testing.T, p *OrderPipeline) *entity.Order {
	t.Helper()
	order, err := p.Submit(context.Background(), testRequester, SubmitOrderInput{
		ProductType: "Laptops",
		Quantity:    25,
		Budget:      "Rp 200.000.000",
		Purpose:     "Office refresh",
	})
	require.NoError(t, err)
	return order
}

func TestOrderPipeline_Submit(t *testing.T) {
	p, notifier := newTestPipeline(false)

	order := submitTestOrder(t, p)
	assert.NotEmpty(t, order.ID)
	assert.Equal(t, entity.OrderPending, order.Status)
	require.Len(t, order.Logs, 1)
	assert.Equal(t, entity.OrderSubmittedNote, order.Logs[0].Note)
	assert.False(t, order.Paid)

	notifier.AssertCalled(t, "NotifyOrderEvent", mock.Anything, mock.MatchedBy(func(e OrderEvent) bool {
		return e.Type == OrderCreated && e.Order.ID == order.ID
	}))

	stored, err := p.Get(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, "Budi", stored.UserName)
	assert.Equal(t, 25, stored.Quantity)

	_, err = p.Submit(context.Background(), Requester{}, SubmitOrderInput{ProductType: "x", Quantity: 1})
	assert.True(t, errors.Is(err, errors.CodeUnauthorized))
	_, err = p.Submit(context.Background(), testRequester, SubmitOrderInput{ProductType: "x"})
	assert.True(t, errors.Is(err, errors.CodeBadRequest))
}

func TestOrderPipeline_TransitionLogIsAppendOnly(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestPipeline(false)
	order := submitTestOrder(t, p)

	steps := []entity.OrderStatus{
		entity.OrderVerification,
		entity.OrderSupplierConfirmation,
		entity.OrderReceived,
		entity.OrderTesting,
		entity.OrderPreparing,
	}
	for _, status := range steps {
		_, err := p.Transition(ctx, order.ID, string(status), "")
		require.NoError(t, err)
	}

	stored, err := p.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Logs, len(steps)+1)
	assert.Equal(t, stored.Status, stored.LastLog().Status)
	assert.Equal(t, entity.OrderPreparing, stored.Status)
	assert.Equal(t, "Status updated to Preparing", stored.LastLog().Note)

	for i, entry := range stored.Logs[1:] {
		assert.Equal(t, steps[i], entry.Status)
	}
}

func TestOrderPipeline_TransitionErrors(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestPipeline(false)
	order := submitTestOrder(t, p)

	_, err := p.Transition(ctx, order.ID, "shipped", "")
	assert.True(t, errors.Is(err, errors.CodeInvalidStatus))

	_, err = p.Transition(ctx, "missing", string(entity.OrderVerification), "")
	assert.True(t, errors.Is(err, errors.CodeOrderNotFound))
}

func TestOrderPipeline_PermissiveAcceptsBackwardMoves(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestPipeline(false)
	order := submitTestOrder(t, p)

	_, err := p.Transition(ctx, order.ID, string(entity.OrderPacked), "skipped ahead")
	require.NoError(t, err)
	updated, err := p.Transition(ctx, order.ID, string(entity.OrderTesting), "retest")
	require.NoError(t, err)

	assert.Equal(t, entity.OrderTesting, updated.Status)
	assert.Len(t, updated.Logs, 3)
	assert.Equal(t, entity.OrderTesting, updated.LastLog().Status)
}

func TestOrderPipeline_StrictRejectsNonForwardMoves(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestPipeline(true)
	order := submitTestOrder(t, p)

	_, err := p.Transition(ctx, order.ID, string(entity.OrderTesting), "")
	require.NoError(t, err)

	_, err = p.Transition(ctx, order.ID, string(entity.OrderVerification), "")
	assert.True(t, errors.Is(err, errors.CodeInvalidTransition))

	_, err = p.Transition(ctx, order.ID, string(entity.OrderTesting), "")
	assert.True(t, errors.Is(err, errors.CodeInvalidTransition), "same-status moves are not forward")

	stored, err := p.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Logs, 2)
}

func TestOrderPipeline_DeliveredAndPaidNotify(t *testing.T) {
	ctx := context.Background()
	p, notifier := newTestPipeline(false)
	fixed := time.Date(2024, 8, 17, 9, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fixed }
	order := submitTestOrder(t, p)

	delivered, err := p.Transition(ctx, order.ID, string(entity.OrderDelivered), "Handed to customer")
	require.NoError(t, err)
	assert.Equal(t, fixed, delivered.LastLog().Timestamp)

	notifier.AssertCalled(t, "NotifyOrderEvent", mock.Anything, mock.MatchedBy(func(e OrderEvent) bool {
		return e.Type == OrderDelivered && e.From == entity.OrderPending
	}))

	paid, err := p.MarkPaid(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, paid.Paid)
	notifier.AssertCalled(t, "NotifyOrderEvent", mock.Anything, mock.MatchedBy(func(e OrderEvent) bool {
		return e.Type == OrderPaid
	}))

	_, err = p.MarkPaid(ctx, "missing")
	assert.True(t, errors.Is(err, errors.CodeOrderNotFound))
}

func TestOrderPipeline_List(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestPipeline(false)

	for i := 0; i < 12; i++ {
		submitTestOrder(t, p)
	}
	first := submitTestOrder(t, p)
	_, err := p.Transition(ctx, first.ID, string(entity.OrderVerification), "")
	require.NoError(t, err)

	orders, total, err := p.List(ctx, "", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(13), total)
	assert.Len(t, orders, OrdersPageSize)

	orders, _, err = p.List(ctx, "all", 2)
	require.NoError(t, err)
	assert.Len(t, orders, 3)

	orders, total, err = p.List(ctx, string(entity.OrderVerification), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, first.ID, orders[0].ID)

	_, _, err = p.List(ctx, "bogus", 1)
	assert.True(t, errors.Is(err, errors.CodeInvalidStatus))

	mine, err := p.ListForUser(ctx, testRequester.UserID)
	require.NoError(t, err)
	assert.Len(t, mine, 13)

	_, err = p.GetFor(ctx, first.ID, "someone-else")
	assert.True(t, errors.Is(err, errors.CodeOrderNotFound))
}

func TestOrderPipeline_RepeatedTransitionKeepsEveryLogEntry(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestPipeline(false)
	fixed := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fixed }

	order := submitTestOrder(t, p)
	for i := 0; i < 3; i++ {
		_, err := p.Transition(ctx, order.ID, string(entity.OrderTesting), "")
		require.NoError(t, err)
	}

	stored, err := p.Get(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, stored.Logs, 4)
	for _, entry := range stored.Logs[1:] {
		assert.Equal(t, entity.OrderTesting, entry.Status)
		assert.Equal(t, fixed, entry.Timestamp)
	}
}
