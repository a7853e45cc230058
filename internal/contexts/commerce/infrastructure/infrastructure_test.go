package infrastructure

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/chiro/erp/internal/contexts/commerce/application"
	"github.com/chiro/erp/internal/contexts/commerce/domain"
	"github.com/chiro/erp/internal/platform/contracts"
	"github.com/chiro/erp/internal/platform/messaging"
	"github.com/chiro/erp/internal/platform/sharedkernel"
	"github.com/chiro/erp/internal/platform/testkit"
)

type fixture struct {
	db      *gorm.DB
	codec   *messaging.EventCodec
	orders  *GormOrderRepository
	service *application.Service
	router  *messaging.Router
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testkit.NewSQLiteDB(t,
		&domain.Order{}, &domain.OrderLine{}, &domain.KnownCustomer{},
		&messaging.OutboxEntry{}, &messaging.ProcessedEvent{})
	codec := messaging.NewEventCodec(messaging.NewAvroSerde(messaging.NewLocalSchemaRegistry()), contracts.Default())
	orders := NewGormOrderRepository(db)
	service := application.NewService(orders, NewGormTransactionScope(db, messaging.NewEventOutbox(codec, MapOrderEvent)))
	router := messaging.NewRouter(nil)
	NewCustomerEventsHandler(service, codec, nil).Register(router)
	return &fixture{db: db, codec: codec, orders: orders, service: service, router: router}
}

func (f *fixture) deliver(t *testing.T, eventType, eventID string, payload any) {
	t.Helper()
	msg, err := f.codec.Encode(context.Background(), messaging.Envelope{
		EventID:   uuid.MustParse(eventID),
		EventType: eventType,
	}, payload)
	require.NoError(t, err)
	require.NoError(t, f.router.Handle(context.Background(), msg))
}

// knownCustomer registers a customer in the projection through the
// customer event consumer.
func (f *fixture) knownCustomer(t *testing.T, tenantID uuid.UUID) contracts.CustomerRegistered {
	t.Helper()
	reg := testkit.CustomerRegisteredFixture(tenantID)
	f.deliver(t, contracts.EventCustomerRegistered, reg.EventID, reg)
	return reg
}

func (f *fixture) draft(t *testing.T, tenantID, customerID uuid.UUID) *application.OrderResponse {
	t.Helper()
	order, err := f.service.CreateDraft(context.Background(), tenantID, application.CreateOrderRequest{
		CustomerID: customerID,
		Currency:   "eur",
		Lines: []application.AddLineRequest{
			{SKU: "SKU-001", Quantity: 2, UnitPrice: "19.99"},
			{SKU: "SKU-002", Quantity: 1, UnitPrice: "19.99"},
		},
	})
	require.NoError(t, err)
	return order
}

func (f *fixture) outbox(t *testing.T, eventType string) []messaging.OutboxEntry {
	t.Helper()
	var entries []messaging.OutboxEntry
	require.NoError(t, f.db.Where("event_type = ?", eventType).Find(&entries).Error)
	return entries
}

func TestService_CreateDraftAndAddLine(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tenantID := uuid.New()

	order := f.draft(t, tenantID, uuid.New())
	assert.Equal(t, "draft", order.Status)
	assert.Equal(t, "EUR", order.Currency)
	assert.Regexp(t, `^SO-\d{6}-00001$`, order.Number)
	assert.True(t, order.Total.Equal(decimal.RequireFromString("59.97")))

	second := f.draft(t, tenantID, uuid.New())
	assert.Regexp(t, `-00002$`, second.Number)
	other := f.draft(t, uuid.New(), uuid.New())
	assert.Regexp(t, `-00001$`, other.Number)

	updated, err := f.service.AddLine(ctx, tenantID, order.ID, application.AddLineRequest{SKU: "sku-003", Quantity: 4, UnitPrice: "0.50"})
	require.NoError(t, err)
	assert.True(t, updated.Total.Equal(decimal.RequireFromString("61.97")))

	got, err := f.service.Get(ctx, tenantID, order.ID)
	require.NoError(t, err)
	require.Len(t, got.Lines, 3)
	assert.Equal(t, order.Version+1, got.Version)

	_, err = f.service.AddLine(ctx, tenantID, order.ID, application.AddLineRequest{SKU: "SKU-003", Quantity: 1, UnitPrice: "1"})
	assert.ErrorIs(t, err, sharedkernel.ErrAlreadyExists)
	_, err = f.service.AddLine(ctx, tenantID, order.ID, application.AddLineRequest{SKU: "SKU-004", Quantity: 1, UnitPrice: "abc"})
	assert.ErrorIs(t, err, sharedkernel.ErrInvalidInput)

	assert.Empty(t, f.outbox(t, contracts.EventOrderPlaced), "drafts publish nothing")
}

func TestService_PlaceWritesOrderPlaced(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tenantID := uuid.New()
	reg := f.knownCustomer(t, tenantID)

	order := f.draft(t, tenantID, uuid.MustParse(reg.CustomerID))
	placed, err := f.service.Place(ctx, tenantID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "placed", placed.Status)
	require.NotNil(t, placed.PlacedAt)

	entries := f.outbox(t, contracts.EventOrderPlaced)
	require.Len(t, entries, 1)
	assert.Equal(t, contracts.TopicOrders, entries[0].Topic)
	assert.Equal(t, order.ID.String(), entries[0].PartitionKey)
	assert.Equal(t, tenantID, entries[0].TenantID)

	var evt contracts.OrderPlaced
	require.NoError(t, f.codec.Decode(ctx, entries[0].Message(), &evt))
	assert.Equal(t, order.ID.String(), evt.OrderID)
	assert.Equal(t, reg.CustomerID, evt.CustomerID)
	assert.Equal(t, "59.97", evt.Total)
	assert.Equal(t, "EUR", evt.Currency)
	require.Len(t, evt.Lines, 2)
	assert.Equal(t, "19.99", evt.Lines[0].UnitPrice)

	_, err = f.service.Place(ctx, tenantID, order.ID)
	assert.ErrorIs(t, err, sharedkernel.ErrInvalidState)
}

func TestService_PlaceRequiresKnownActiveCustomer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tenantID := uuid.New()

	unknown := f.draft(t, tenantID, uuid.New())
	_, err := f.service.Place(ctx, tenantID, unknown.ID)
	assert.ErrorIs(t, err, sharedkernel.ErrInvalidState)

	reg := f.knownCustomer(t, tenantID)
	suspended := testkit.CustomerStatusChangedFixture(reg, "suspended")
	f.deliver(t, contracts.EventCustomerStatusChanged, suspended.EventID, suspended)

	order := f.draft(t, tenantID, uuid.MustParse(reg.CustomerID))
	_, err = f.service.Place(ctx, tenantID, order.ID)
	assert.ErrorIs(t, err, sharedkernel.ErrInvalidState)

	got, err := f.service.Get(ctx, tenantID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "draft", got.Status, "failed placement is rolled back")
	assert.Empty(t, f.outbox(t, contracts.EventOrderPlaced))

	_, err = f.service.Place(ctx, uuid.New(), order.ID)
	assert.ErrorIs(t, err, sharedkernel.ErrNotFound)
}

func TestService_Cancel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tenantID := uuid.New()
	reg := f.knownCustomer(t, tenantID)
	customerID := uuid.MustParse(reg.CustomerID)

	draft := f.draft(t, tenantID, customerID)
	cancelled, err := f.service.Cancel(ctx, tenantID, draft.ID, application.CancelOrderRequest{Reason: "typo"})
	require.NoError(t, err)
	assert.Equal(t, "cancelled", cancelled.Status)
	assert.Equal(t, "typo", cancelled.CancelReason)

	order := f.draft(t, tenantID, customerID)
	_, err = f.service.Place(ctx, tenantID, order.ID)
	require.NoError(t, err)
	_, err = f.service.Cancel(ctx, tenantID, order.ID, application.CancelOrderRequest{Reason: "customer request"})
	require.NoError(t, err)

	_, err = f.service.Cancel(ctx, tenantID, order.ID, application.CancelOrderRequest{Reason: "again"})
	assert.ErrorIs(t, err, sharedkernel.ErrInvalidState)

	entries := f.outbox(t, contracts.EventOrderCancelled)
	require.Len(t, entries, 2)
	wasPlaced := map[string]bool{}
	for _, e := range entries {
		var evt contracts.OrderCancelled
		require.NoError(t, f.codec.Decode(ctx, e.Message(), &evt))
		wasPlaced[evt.OrderID] = evt.WasPlaced
	}
	assert.False(t, wasPlaced[draft.ID.String()])
	assert.True(t, wasPlaced[order.ID.String()])
}

func TestService_List(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tenantID := uuid.New()
	customerID := uuid.New()
	f.draft(t, tenantID, customerID)
	f.draft(t, tenantID, customerID)
	third := f.draft(t, tenantID, uuid.New())
	_, err := f.service.Cancel(ctx, tenantID, third.ID, application.CancelOrderRequest{Reason: "x"})
	require.NoError(t, err)

	page, err := f.service.List(ctx, tenantID, application.OrderListFilter{CustomerID: customerID.String()})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
	require.Len(t, page.Items, 2)
	assert.Len(t, page.Items[0].Lines, 2)

	page, err = f.service.List(ctx, tenantID, application.OrderListFilter{Status: "cancelled"})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, third.ID, page.Items[0].ID)
}

func TestGormOrderRepository_SaveWithLockConflict(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tenantID := uuid.New()
	order := f.draft(t, tenantID, uuid.New())

	stale, err := f.orders.FindByIDForTenant(ctx, tenantID, order.ID)
	require.NoError(t, err)
	_, err = f.service.AddLine(ctx, tenantID, order.ID, application.AddLineRequest{SKU: "NEW", Quantity: 1, UnitPrice: "1"})
	require.NoError(t, err)

	loaded := stale.Version
	require.NoError(t, stale.Cancel("stale"))
	err = f.orders.SaveWithLock(ctx, stale, loaded)
	assert.ErrorIs(t, err, sharedkernel.ErrConcurrencyConflict)
}

func TestCustomerEventsHandler_Projection(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tenantID := uuid.New()
	customers := NewGormKnownCustomerRepository(f.db)

	reg := testkit.CustomerRegisteredFixture(tenantID)
	suspended := testkit.CustomerStatusChangedFixture(reg, "suspended")

	// Status change first: the later event wins regardless of arrival order.
	f.deliver(t, contracts.EventCustomerStatusChanged, suspended.EventID, suspended)
	f.deliver(t, contracts.EventCustomerRegistered, reg.EventID, reg)

	got, err := customers.Find(ctx, tenantID, uuid.MustParse(reg.CustomerID))
	require.NoError(t, err)
	assert.Equal(t, "suspended", got.Status)
	assert.Equal(t, reg.Name, got.Name)

	reactivated := testkit.CustomerStatusChangedFixture(reg, "active")
	reactivated.OldStatus = "suspended"
	reactivated.ChangedAt = testkit.FixedTime.Add(2 * time.Hour)
	f.deliver(t, contracts.EventCustomerStatusChanged, reactivated.EventID, reactivated)
	f.deliver(t, contracts.EventCustomerStatusChanged, suspended.EventID, suspended)

	got, err = customers.Find(ctx, tenantID, uuid.MustParse(reg.CustomerID))
	require.NoError(t, err)
	assert.True(t, got.IsActive())

	var processed int64
	require.NoError(t, f.db.Model(&messaging.ProcessedEvent{}).Count(&processed).Error)
	assert.Equal(t, int64(3), processed)

	_, err = customers.Find(ctx, uuid.New(), uuid.MustParse(reg.CustomerID))
	assert.ErrorIs(t, err, sharedkernel.ErrNotFound)
}

func TestKnownCustomerRepository_KeepsCode(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	customers := NewGormKnownCustomerRepository(f.db)
	tenantID, customerID := uuid.New(), uuid.New()

	require.NoError(t, customers.Upsert(ctx, &domain.KnownCustomer{
		TenantID: tenantID, CustomerID: customerID, Code: "C-1", Name: "Jane",
		Status: "active", ChangedAt: testkit.FixedTime, UpdatedAt: testkit.FixedTime,
	}))
	require.NoError(t, customers.Upsert(ctx, &domain.KnownCustomer{
		TenantID: tenantID, CustomerID: customerID, Name: "Jane D.",
		Status: "suspended", ChangedAt: testkit.FixedTime.Add(time.Minute), UpdatedAt: testkit.FixedTime,
	}))

	got, err := customers.Find(ctx, tenantID, customerID)
	require.NoError(t, err)
	assert.Equal(t, "C-1", got.Code)
	assert.Equal(t, "Jane D.", got.Name)
	assert.Equal(t, "suspended", got.Status)
}

func TestCustomerEventsHandler_BadPayload(t *testing.T) {
	f := newFixture(t)
	reg := testkit.CustomerRegisteredFixture(uuid.New())
	reg.TenantID = "nope"
	msg, err := f.codec.Encode(context.Background(), messaging.Envelope{
		EventID:   uuid.MustParse(reg.EventID),
		EventType: contracts.EventCustomerRegistered,
	}, reg)
	require.NoError(t, err)
	assert.True(t, messaging.IsPermanent(f.router.Handle(context.Background(), msg)))
}

func TestMapOrderEvent_Unknown(t *testing.T) {
	type otherEvent struct{ sharedkernel.BaseDomainEvent }
	_, err := MapOrderEvent(&otherEvent{BaseDomainEvent: sharedkernel.NewBaseDomainEvent("Other", "X", uuid.New(), uuid.New())})
	assert.Error(t, err)
}
