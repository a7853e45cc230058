package contracts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hamba/avro/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCatalog(t *testing.T) {
	c, err := NewCatalog()
	require.NoError(t, err)

	assert.Equal(t, []string{
		EventCustomerRegistered,
		EventCustomerStatusChanged,
		EventOrderCancelled,
		EventOrderPlaced,
		EventStockLevelChanged,
	}, c.EventTypes())

	ct, err := c.Lookup(EventOrderPlaced)
	require.NoError(t, err)
	assert.Equal(t, TopicOrders, ct.Topic)
	assert.Equal(t, "chiro.erp.contracts.OrderPlaced", ct.Subject)

	_, err = c.Lookup("Nope")
	assert.ErrorIs(t, err, ErrUnknownEventType)

	assert.Equal(t, []string{EventOrderCancelled, EventOrderPlaced}, c.ForTopic(TopicOrders))
	assert.Equal(t, []string{EventCustomerRegistered, EventCustomerStatusChanged}, c.ForTopic(TopicCustomers))
}

func TestCatalog_Resolve(t *testing.T) {
	topic, subject, schema, err := Default().Resolve(EventCustomerRegistered)
	require.NoError(t, err)
	assert.Equal(t, TopicCustomers, topic)
	assert.Equal(t, "chiro.erp.contracts.CustomerRegistered", subject)
	assert.Equal(t, avro.Record, schema.Type())

	_, _, _, err = Default().Resolve("Nope")
	assert.Error(t, err)
}

func TestContracts_AvroRoundTrip(t *testing.T) {
	c := Default()
	placedAt := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	email := "ops@example.com"

	tests := []struct {
		name      string
		eventType string
		in        any
		out       any
	}{
		{
			name:      "order placed",
			eventType: EventOrderPlaced,
			in: &OrderPlaced{
				EventID: "e1", OrderID: "o1", TenantID: "t1", CustomerID: "c1",
				OrderNumber: "SO-1", Currency: "EUR", Total: "21.00",
				Lines:    []OrderLine{{SKU: "A-1", Quantity: 2, UnitPrice: "10.50"}},
				PlacedAt: placedAt,
			},
			out: &OrderPlaced{},
		},
		{
			name:      "customer registered with email",
			eventType: EventCustomerRegistered,
			in: &CustomerRegistered{
				EventID: "e2", CustomerID: "c1", TenantID: "t1", Code: "C-1", Name: "Acme",
				Email: &email, Segment: "wholesale", Status: "active", RegisteredAt: placedAt,
			},
			out: &CustomerRegistered{},
		},
		{
			name:      "customer registered without email",
			eventType: EventCustomerRegistered,
			in: &CustomerRegistered{
				EventID: "e3", CustomerID: "c2", TenantID: "t1", Code: "C-2", Name: "Beta",
				Segment: "retail", Status: "active", RegisteredAt: placedAt,
			},
			out: &CustomerRegistered{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ct, err := c.Lookup(tt.eventType)
			require.NoError(t, err)

			data, err := avro.Marshal(ct.Schema, tt.in)
			require.NoError(t, err)
			require.NoError(t, avro.Unmarshal(ct.Schema, data, tt.out))
			assert.Equal(t, tt.in, tt.out)
		})
	}
}

type fakeRegistrar struct {
	subjects []string
	failOn   string
}

func (r *fakeRegistrar) Register(_ context.Context, subject string, _ avro.Schema) (int, error) {
	if subject == r.failOn {
		return 0, errors.New("incompatible")
	}
	r.subjects = append(r.subjects, subject)
	return len(r.subjects), nil
}

func TestCatalog_Register(t *testing.T) {
	r := &fakeRegistrar{}
	require.NoError(t, Default().Register(context.Background(), r))
	assert.Len(t, r.subjects, 5)

	r = &fakeRegistrar{failOn: "chiro.erp.contracts.OrderPlaced"}
	err := Default().Register(context.Background(), r)
	require.Error(t, err)
	assert.ErrorContains(t, err, "OrderPlaced")
	assert.Len(t, r.subjects, 4)
}
