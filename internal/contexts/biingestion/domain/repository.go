package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// IngestedEventRepository is the idempotency ledger.
type IngestedEventRepository interface {
	// Record stores e and reports false when its event id was seen before.
	Record(ctx context.Context, e *IngestedEvent) (bool, error)
}

// FactRepository accumulates deltas into the daily facts.
type FactRepository interface {
	AddSales(ctx context.Context, delta DailySales) error
	AddCustomers(ctx context.Context, delta DailyCustomers) error
	// Sales returns the facts of [from, to], ordered by day and currency.
	Sales(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]DailySales, error)
	Customers(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]DailyCustomers, error)
}
