package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chiro/erp/internal/platform/sharedkernel"
)

func newTestOrder(t *testing.T) *Order {
	t.Helper()
	o, err := NewOrder(uuid.New(), "SO-202403-00001", uuid.New(), "eur")
	require.NoError(t, err)
	return o
}

func activeCustomer(o *Order) *KnownCustomer {
	return &KnownCustomer{TenantID: o.TenantID, CustomerID: o.CustomerID, Name: "Jane", Status: "active"}
}

func TestOrderStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to OrderStatus
		want     bool
	}{
		{OrderStatusDraft, OrderStatusPlaced, true},
		{OrderStatusDraft, OrderStatusCancelled, true},
		{OrderStatusPlaced, OrderStatusCancelled, true},
		{OrderStatusPlaced, OrderStatusDraft, false},
		{OrderStatusCancelled, OrderStatusPlaced, false},
		{OrderStatusCancelled, OrderStatusCancelled, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
	assert.False(t, OrderStatus("shipped").IsValid())
}

func TestNewOrder(t *testing.T) {
	o := newTestOrder(t)
	assert.Equal(t, "EUR", o.Currency)
	assert.Equal(t, OrderStatusDraft, o.Status)
	assert.True(t, o.Total.IsZero())
	assert.Equal(t, 1, o.Version)
	assert.Empty(t, o.GetDomainEvents())

	_, err := NewOrder(uuid.New(), "SO-1", uuid.Nil, "EUR")
	assert.ErrorIs(t, err, sharedkernel.ErrInvalidInput)
	_, err = NewOrder(uuid.New(), "SO-1", uuid.New(), "EURO")
	assert.ErrorIs(t, err, sharedkernel.ErrInvalidInput)
}

func TestOrder_AddLine(t *testing.T) {
	o := newTestOrder(t)

	line, err := o.AddLine("sku-1", 2, decimal.RequireFromString("19.99"))
	require.NoError(t, err)
	assert.Equal(t, "SKU-1", line.SKU)
	assert.Equal(t, o.ID, line.OrderID)
	assert.True(t, line.Amount.Equal(decimal.RequireFromString("39.98")))

	_, err = o.AddLine("SKU-2", 1, decimal.Zero)
	require.NoError(t, err)
	assert.True(t, o.Total.Equal(decimal.RequireFromString("39.98")))
	assert.Equal(t, int64(3), o.TotalQuantity())
	assert.Equal(t, 3, o.Version)

	_, err = o.AddLine("SKU-1", 1, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, sharedkernel.ErrAlreadyExists)
	_, err = o.AddLine("SKU-3", 0, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, sharedkernel.ErrInvalidInput)
	_, err = o.AddLine("SKU-3", 1, decimal.NewFromInt(-1))
	assert.ErrorIs(t, err, sharedkernel.ErrInvalidInput)
}

func TestOrder_Place(t *testing.T) {
	o := newTestOrder(t)
	assert.ErrorIs(t, o.Place(activeCustomer(o)), sharedkernel.ErrInvalidState, "no lines")

	_, err := o.AddLine("SKU-1", 3, decimal.RequireFromString("19.99"))
	require.NoError(t, err)

	assert.ErrorIs(t, o.Place(nil), sharedkernel.ErrInvalidState, "unknown customer")
	suspended := activeCustomer(o)
	suspended.Status = "suspended"
	assert.ErrorIs(t, o.Place(suspended), sharedkernel.ErrInvalidState)

	require.NoError(t, o.Place(activeCustomer(o)))
	assert.Equal(t, OrderStatusPlaced, o.Status)
	require.NotNil(t, o.PlacedAt)

	events := o.GetDomainEvents()
	require.Len(t, events, 1)
	placed, ok := events[0].(*OrderPlacedEvent)
	require.True(t, ok)
	assert.Equal(t, o.ID, placed.AggregateID())
	assert.True(t, placed.Total.Equal(decimal.RequireFromString("59.97")))
	require.Len(t, placed.Lines, 1)

	assert.ErrorIs(t, o.Place(activeCustomer(o)), sharedkernel.ErrInvalidState)
	_, err = o.AddLine("SKU-2", 1, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, sharedkernel.ErrInvalidState)
}

func TestOrder_Cancel(t *testing.T) {
	draft := newTestOrder(t)
	assert.ErrorIs(t, draft.Cancel("  "), sharedkernel.ErrInvalidInput)
	require.NoError(t, draft.Cancel("duplicate"))
	evt := draft.GetDomainEvents()[0].(*OrderCancelledEvent)
	assert.False(t, evt.WasPlaced)
	assert.Equal(t, "duplicate", evt.Reason)
	assert.ErrorIs(t, draft.Cancel("again"), sharedkernel.ErrInvalidState)

	placed := newTestOrder(t)
	_, err := placed.AddLine("SKU-1", 1, decimal.NewFromInt(10))
	require.NoError(t, err)
	require.NoError(t, placed.Place(activeCustomer(placed)))
	placed.ClearDomainEvents()

	require.NoError(t, placed.Cancel("customer request"))
	assert.Equal(t, OrderStatusCancelled, placed.Status)
	require.NotNil(t, placed.CancelledAt)
	evt = placed.GetDomainEvents()[0].(*OrderCancelledEvent)
	assert.True(t, evt.WasPlaced)
	assert.True(t, evt.Total.Equal(decimal.NewFromInt(10)))
}
