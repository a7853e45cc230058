// Package domain holds the analytical facts of bi-ingestion: daily sales
// and customer activity per tenant, folded from integration events.
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// IngestedEvent is the ledger row that makes ingestion idempotent: an
// event id is folded into the facts at most once.
type IngestedEvent struct {
	EventID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	EventType  string    `gorm:"type:varchar(100);not null"`
	Topic      string    `gorm:"type:varchar(200);not null"`
	TenantID   uuid.UUID `gorm:"type:uuid;not null"`
	OccurredAt time.Time `gorm:"not null"`
	IngestedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (IngestedEvent) TableName() string {
	return "bi_ingested_events"
}

// DailySales aggregates order activity per tenant, UTC day and currency.
// Amounts of different currencies are never mixed.
type DailySales struct {
	TenantID        uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Day             time.Time       `gorm:"type:date;primaryKey"`
	Currency        string          `gorm:"type:varchar(3);primaryKey"`
	OrdersPlaced    int64           `gorm:"not null;default:0"`
	OrdersCancelled int64           `gorm:"not null;default:0"`
	GrossAmount     decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	CancelledAmount decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	UpdatedAt       time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (DailySales) TableName() string {
	return "bi_daily_sales"
}

// NetAmount is the gross amount minus cancellations.
func (s DailySales) NetAmount() decimal.Decimal {
	return s.GrossAmount.Sub(s.CancelledAmount)
}

// DailyCustomers aggregates customer lifecycle activity per tenant and UTC
// day.
type DailyCustomers struct {
	TenantID      uuid.UUID `gorm:"type:uuid;primaryKey"`
	Day           time.Time `gorm:"type:date;primaryKey"`
	Registrations int64     `gorm:"not null;default:0"`
	Suspensions   int64     `gorm:"not null;default:0"`
	Reactivations int64     `gorm:"not null;default:0"`
	UpdatedAt     time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (DailyCustomers) TableName() string {
	return "bi_daily_customers"
}

// DayOf truncates t to the start of its UTC day.
func DayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// PlacedSales is the sales delta of one placed order.
func PlacedSales(tenantID uuid.UUID, at time.Time, currency string, total decimal.Decimal) DailySales {
	return DailySales{
		TenantID:     tenantID,
		Day:          DayOf(at),
		Currency:     currency,
		OrdersPlaced: 1,
		GrossAmount:  total,
	}
}

// CancelledSales is the sales delta of one cancelled order. Cancelled
// drafts never contributed to sales, so their delta is empty.
func CancelledSales(tenantID uuid.UUID, at time.Time, currency string, total decimal.Decimal, wasPlaced bool) (DailySales, bool) {
	if !wasPlaced {
		return DailySales{}, false
	}
	return DailySales{
		TenantID:        tenantID,
		Day:             DayOf(at),
		Currency:        currency,
		OrdersCancelled: 1,
		CancelledAmount: total,
	}, true
}

// Registration is the customer delta of a registration.
func Registration(tenantID uuid.UUID, at time.Time) DailyCustomers {
	return DailyCustomers{TenantID: tenantID, Day: DayOf(at), Registrations: 1}
}

// StatusChange is the customer delta of a status transition. Transitions
// other than suspension and reactivation yield no delta.
func StatusChange(tenantID uuid.UUID, at time.Time, oldStatus, newStatus string) (DailyCustomers, bool) {
	delta := DailyCustomers{TenantID: tenantID, Day: DayOf(at)}
	switch {
	case newStatus == "suspended" && oldStatus != "suspended":
		delta.Suspensions = 1
	case newStatus == "active" && oldStatus == "suspended":
		delta.Reactivations = 1
	default:
		return DailyCustomers{}, false
	}
	return delta, true
}
