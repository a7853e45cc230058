// Package application folds integration events into the BI facts.
package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/chiro/erp/internal/contexts/biingestion/domain"
	"github.com/chiro/erp/internal/platform/sharedkernel/logger"
)

// EventMeta identifies an ingested event.
type EventMeta struct {
	EventID    uuid.UUID
	EventType  string
	Topic      string
	TenantID   uuid.UUID
	OccurredAt time.Time
}

// OrderFact is an order event reduced to what the sales facts keep.
type OrderFact struct {
	EventMeta
	Currency  string
	Total     decimal.Decimal
	WasPlaced bool
}

// CustomerFact is a customer event reduced to what the customer facts
// keep. OldStatus is empty for registrations.
type CustomerFact struct {
	EventMeta
	OldStatus string
	NewStatus string
}

// Service ingests events exactly once each.
type Service struct {
	txScope TransactionScope
	facts   domain.FactRepository
}

// NewService creates a new ingestion service. facts serves the read side.
func NewService(txScope TransactionScope, facts domain.FactRepository) *Service {
	return &Service{txScope: txScope, facts: facts}
}

// IngestOrderPlaced adds a placed order to the day's sales.
func (s *Service) IngestOrderPlaced(ctx context.Context, f OrderFact) (bool, error) {
	return s.ingest(ctx, f.EventMeta, func(facts domain.FactRepository) error {
		return facts.AddSales(ctx, domain.PlacedSales(f.TenantID, f.OccurredAt, f.Currency, f.Total))
	})
}

// IngestOrderCancelled adds a cancellation to the day's sales.
func (s *Service) IngestOrderCancelled(ctx context.Context, f OrderFact) (bool, error) {
	return s.ingest(ctx, f.EventMeta, func(facts domain.FactRepository) error {
		delta, ok := domain.CancelledSales(f.TenantID, f.OccurredAt, f.Currency, f.Total, f.WasPlaced)
		if !ok {
			return nil
		}
		return facts.AddSales(ctx, delta)
	})
}

// IngestCustomerRegistered counts a registration.
func (s *Service) IngestCustomerRegistered(ctx context.Context, f CustomerFact) (bool, error) {
	return s.ingest(ctx, f.EventMeta, func(facts domain.FactRepository) error {
		return facts.AddCustomers(ctx, domain.Registration(f.TenantID, f.OccurredAt))
	})
}

// IngestCustomerStatusChanged counts a suspension or reactivation.
func (s *Service) IngestCustomerStatusChanged(ctx context.Context, f CustomerFact) (bool, error) {
	return s.ingest(ctx, f.EventMeta, func(facts domain.FactRepository) error {
		delta, ok := domain.StatusChange(f.TenantID, f.OccurredAt, f.OldStatus, f.NewStatus)
		if !ok {
			return nil
		}
		return facts.AddCustomers(ctx, delta)
	})
}

// Sales returns the sales facts of a tenant for the days [from, to].
func (s *Service) Sales(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]domain.DailySales, error) {
	return s.facts.Sales(ctx, tenantID, domain.DayOf(from), domain.DayOf(to))
}

// Customers returns the customer facts of a tenant for the days [from, to].
func (s *Service) Customers(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]domain.DailyCustomers, error) {
	return s.facts.Customers(ctx, tenantID, domain.DayOf(from), domain.DayOf(to))
}

func (s *Service) ingest(ctx context.Context, meta EventMeta, fold func(domain.FactRepository) error) (bool, error) {
	log := logger.L(ctx).With(
		zap.String("event_id", meta.EventID.String()),
		zap.String("event_type", meta.EventType))

	isNew := false
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		isNew, err = repos.Ingested().Record(ctx, &domain.IngestedEvent{
			EventID:    meta.EventID,
			EventType:  meta.EventType,
			Topic:      meta.Topic,
			TenantID:   meta.TenantID,
			OccurredAt: meta.OccurredAt.UTC(),
			IngestedAt: time.Now().UTC(),
		})
		if err != nil || !isNew {
			return err
		}
		return fold(repos.Facts())
	})
	if err != nil {
		return false, err
	}
	if !isNew {
		log.Debug("event already ingested")
		return false, nil
	}
	log.Debug("event ingested")
	return true, nil
}
