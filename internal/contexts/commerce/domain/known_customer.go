package domain

import (
	"time"

	"github.com/google/uuid"
)

// KnownCustomer is commerce's copy of a CRM customer, kept current from
// customer events. ChangedAt is the time of the last applied event, so an
// older event never overwrites a newer one.
type KnownCustomer struct {
	TenantID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	CustomerID uuid.UUID `gorm:"type:uuid;primaryKey"`
	Code       string    `gorm:"type:varchar(50)"`
	Name       string    `gorm:"type:varchar(200);not null"`
	Status     string    `gorm:"type:varchar(20);not null"`
	ChangedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (KnownCustomer) TableName() string {
	return "known_customers"
}

// IsActive reports whether the customer may place orders.
func (c *KnownCustomer) IsActive() bool {
	return c.Status == "active"
}
