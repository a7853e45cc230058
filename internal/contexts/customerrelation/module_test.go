package customerrelation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chiro/erp/internal/contexts/customerrelation/domain"
	"github.com/chiro/erp/internal/platform/contracts"
	"github.com/chiro/erp/internal/platform/messaging"
	"github.com/chiro/erp/internal/platform/testkit"
)

func TestNewModule(t *testing.T) {
	db := testkit.NewSQLiteDB(t, &domain.Customer{}, &messaging.OutboxEntry{}, &messaging.ProcessedEvent{})
	codec := messaging.NewEventCodec(messaging.NewAvroSerde(messaging.NewLocalSchemaRegistry()), contracts.Default())

	m := NewModule(Dependencies{DB: db, Codec: codec})
	require.NotNil(t, m.Service)
	require.NotNil(t, m.Handler)

	assert.ElementsMatch(t,
		[]string{contracts.EventOrderPlaced, contracts.EventOrderCancelled},
		m.Router(nil).EventTypes())
}

func TestMigrations(t *testing.T) {
	sources := Migrations()
	require.Len(t, sources, 2)
	assert.Equal(t, messaging.Migrations().Table, sources[0].Table)
	assert.NotEqual(t, sources[0].Table, sources[1].Table)
}
