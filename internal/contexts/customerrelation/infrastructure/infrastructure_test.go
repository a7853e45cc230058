package infrastructure

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/chiro/erp/internal/contexts/customerrelation/application"
	"github.com/chiro/erp/internal/contexts/customerrelation/domain"
	"github.com/chiro/erp/internal/platform/contracts"
	"github.com/chiro/erp/internal/platform/messaging"
	"github.com/chiro/erp/internal/platform/sharedkernel"
	"github.com/chiro/erp/internal/platform/testkit"
)

type fixture struct {
	db      *gorm.DB
	codec   *messaging.EventCodec
	repo    *GormCustomerRepository
	service *application.Service
	handler *OrderEventsHandler
	router  *messaging.Router
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testkit.NewSQLiteDB(t, &domain.Customer{}, &messaging.OutboxEntry{}, &messaging.ProcessedEvent{})
	codec := messaging.NewEventCodec(messaging.NewAvroSerde(messaging.NewLocalSchemaRegistry()), contracts.Default())
	repo := NewGormCustomerRepository(db)
	service := application.NewService(repo, NewGormTransactionScope(db, messaging.NewEventOutbox(codec, MapCustomerEvent)))
	handler := NewOrderEventsHandler(service, codec, nil)
	router := messaging.NewRouter(nil)
	handler.Register(router)
	return &fixture{db: db, codec: codec, repo: repo, service: service, handler: handler, router: router}
}

func (f *fixture) register(t *testing.T, tenantID uuid.UUID, code string) *application.CustomerResponse {
	t.Helper()
	email := code + "@example.com"
	c, err := f.service.Register(context.Background(), tenantID, application.CreateCustomerRequest{
		Code: code, Name: "Customer " + code, Email: &email, Segment: "wholesale",
	})
	require.NoError(t, err)
	return c
}

func (f *fixture) outbox(t *testing.T) []messaging.OutboxEntry {
	t.Helper()
	var entries []messaging.OutboxEntry
	require.NoError(t, f.db.Order("created_at ASC").Find(&entries).Error)
	return entries
}

func (f *fixture) encode(t *testing.T, eventType, eventID string, payload any) messaging.Message {
	t.Helper()
	msg, err := f.codec.Encode(context.Background(), messaging.Envelope{
		EventID:   uuid.MustParse(eventID),
		EventType: eventType,
	}, payload)
	require.NoError(t, err)
	return msg
}

func TestService_RegisterWritesOutbox(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tenantID := uuid.New()

	c := f.register(t, tenantID, "c-1")
	assert.Equal(t, "C-1", c.Code)

	_, err := f.service.Register(ctx, tenantID, application.CreateCustomerRequest{Code: "C-1", Name: "Dup"})
	assert.ErrorIs(t, err, sharedkernel.ErrAlreadyExists)

	entries := f.outbox(t)
	require.Len(t, entries, 1)
	assert.Equal(t, contracts.EventCustomerRegistered, entries[0].EventType)
	assert.Equal(t, contracts.TopicCustomers, entries[0].Topic)
	assert.Equal(t, c.ID.String(), entries[0].PartitionKey)

	var evt contracts.CustomerRegistered
	require.NoError(t, f.codec.Decode(ctx, entries[0].Message(), &evt))
	assert.Equal(t, c.ID.String(), evt.CustomerID)
	assert.Equal(t, "wholesale", evt.Segment)
	require.NotNil(t, evt.Email)
	assert.Equal(t, "c-1@example.com", *evt.Email)
}

func TestService_StatusChanges(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tenantID := uuid.New()
	c := f.register(t, tenantID, "C-2")

	suspended, err := f.service.Suspend(ctx, tenantID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "suspended", suspended.Status)
	assert.Equal(t, 2, suspended.Version)

	_, err = f.service.Suspend(ctx, tenantID, c.ID)
	assert.ErrorIs(t, err, sharedkernel.ErrInvalidState)

	_, err = f.service.Activate(ctx, tenantID, c.ID)
	require.NoError(t, err)

	entries := f.outbox(t)
	require.Len(t, entries, 3)
	var transitions []string
	for _, e := range entries {
		if e.EventType != contracts.EventCustomerStatusChanged {
			continue
		}
		var changed contracts.CustomerStatusChanged
		require.NoError(t, f.codec.Decode(ctx, e.Message(), &changed))
		transitions = append(transitions, changed.OldStatus+"->"+changed.NewStatus)
	}
	assert.ElementsMatch(t, []string{"active->suspended", "suspended->active"}, transitions)

	_, err = f.service.Suspend(ctx, uuid.New(), c.ID)
	assert.ErrorIs(t, err, sharedkernel.ErrNotFound)
}

func TestService_UpdateContactAndList(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tenantID := uuid.New()
	a := f.register(t, tenantID, "A-1")
	f.register(t, tenantID, "B-1")
	f.register(t, uuid.New(), "A-2")

	phone := "+1 555 0100"
	updated, err := f.service.UpdateContact(ctx, tenantID, a.ID, application.UpdateContactRequest{Name: "Acme Corp", Phone: &phone})
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", updated.Name)
	assert.Nil(t, updated.Email)

	page, err := f.service.List(ctx, tenantID, application.CustomerListFilter{Search: "acme"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
	assert.Equal(t, a.ID, page.Items[0].ID)

	page, err = f.service.List(ctx, tenantID, application.CustomerListFilter{Segment: "wholesale"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
	assert.Equal(t, "A-1", page.Items[0].Code)

	_, err = f.service.Suspend(ctx, tenantID, a.ID)
	require.NoError(t, err)
	page, err = f.service.List(ctx, tenantID, application.CustomerListFilter{Status: "active"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
}

func TestGormCustomerRepository_SaveWithLockConflict(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tenantID := uuid.New()
	c := f.register(t, tenantID, "L-1")

	stale, err := f.repo.FindByIDForTenant(ctx, tenantID, c.ID)
	require.NoError(t, err)

	_, err = f.service.Suspend(ctx, tenantID, c.ID)
	require.NoError(t, err)

	loaded := stale.Version
	stale.RecordOrderPlaced(decimal.NewFromInt(5))
	err = f.repo.SaveWithLock(ctx, stale, loaded)
	assert.ErrorIs(t, err, sharedkernel.ErrConcurrencyConflict)
}

func TestOrderEventsHandler(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tenantID := uuid.New()
	c := f.register(t, tenantID, "O-1")

	placed := testkit.OrderPlacedFixture(tenantID, c.ID)
	placedMsg := f.encode(t, contracts.EventOrderPlaced, placed.EventID, placed)

	require.NoError(t, f.router.Handle(ctx, placedMsg))
	require.NoError(t, f.router.Handle(ctx, placedMsg), "redelivery is acknowledged")

	got, err := f.service.Get(ctx, tenantID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.OrderCount)
	assert.True(t, got.LifetimeValue.Equal(decimal.RequireFromString("59.97")))

	draft := testkit.OrderCancelledFixture(placed)
	draft.WasPlaced = false
	require.NoError(t, f.router.Handle(ctx, f.encode(t, contracts.EventOrderCancelled, draft.EventID, draft)))

	cancelled := testkit.OrderCancelledFixture(placed)
	require.NoError(t, f.router.Handle(ctx, f.encode(t, contracts.EventOrderCancelled, cancelled.EventID, cancelled)))

	got, err = f.service.Get(ctx, tenantID, c.ID)
	require.NoError(t, err)
	assert.Zero(t, got.OrderCount)
	assert.True(t, got.LifetimeValue.IsZero())

	var processed int64
	require.NoError(t, f.db.Model(&messaging.ProcessedEvent{}).Count(&processed).Error)
	assert.Equal(t, int64(2), processed)
}

func TestOrderEventsHandler_UnknownCustomerAndBadPayloads(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	unknown := testkit.OrderPlacedFixture(uuid.New(), uuid.New())
	applied, err := f.service.ApplyOrderPlaced(ctx, application.OrderActivity{
		EventID:    uuid.MustParse(unknown.EventID),
		EventType:  contracts.EventOrderPlaced,
		TenantID:   uuid.MustParse(unknown.TenantID),
		CustomerID: uuid.MustParse(unknown.CustomerID),
		Total:      decimal.RequireFromString(unknown.Total),
	})
	require.NoError(t, err)
	assert.False(t, applied)

	bad := testkit.OrderPlacedFixture(uuid.New(), uuid.New())
	bad.CustomerID = "not-a-uuid"
	err = f.handler.HandleOrderPlaced(ctx, f.encode(t, contracts.EventOrderPlaced, bad.EventID, bad))
	assert.True(t, messaging.IsPermanent(err))

	badTotal := testkit.OrderPlacedFixture(uuid.New(), uuid.New())
	badTotal.Total = "lots"
	err = f.handler.HandleOrderPlaced(ctx, f.encode(t, contracts.EventOrderPlaced, badTotal.EventID, badTotal))
	assert.True(t, messaging.IsPermanent(err))

	garbage := messaging.Message{Value: []byte{1, 0, 0, 0, 9}, Headers: messaging.Headers{
		messaging.HeaderEventType: contracts.EventOrderPlaced,
		messaging.HeaderEventID:   uuid.NewString(),
	}}
	assert.True(t, messaging.IsPermanent(f.router.Handle(ctx, garbage)))
}

func TestMapCustomerEvent_Unknown(t *testing.T) {
	type otherEvent struct{ sharedkernel.BaseDomainEvent }
	_, err := MapCustomerEvent(&otherEvent{BaseDomainEvent: sharedkernel.NewBaseDomainEvent("Other", "X", uuid.New(), uuid.New())})
	assert.Error(t, err)
}
