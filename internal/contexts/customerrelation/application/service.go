// Package application implements the CRM use cases.
package application

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/chiro/erp/internal/contexts/customerrelation/domain"
	"github.com/chiro/erp/internal/platform/sharedkernel"
	"github.com/chiro/erp/internal/platform/sharedkernel/logger"
)

// Service handles customer registration, contact and status changes, and
// folds order activity into customer statistics.
type Service struct {
	customers domain.CustomerRepository
	txScope   TransactionScope
}

// NewService creates a new CRM service
func NewService(customers domain.CustomerRepository, txScope TransactionScope) *Service {
	return &Service{customers: customers, txScope: txScope}
}

// Register creates a customer and queues CustomerRegistered.
func (s *Service) Register(ctx context.Context, tenantID uuid.UUID, req CreateCustomerRequest) (*CustomerResponse, error) {
	customer, err := domain.NewCustomer(tenantID, req.Code, req.Name, req.Email, domain.Segment(req.Segment))
	if err != nil {
		return nil, err
	}

	exists, err := s.customers.ExistsByCode(ctx, tenantID, customer.Code)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, sharedkernel.NewDomainError("ALREADY_EXISTS", "Customer code "+customer.Code+" already exists")
	}

	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		if err := repos.Customers().Create(ctx, customer); err != nil {
			return err
		}
		return repos.Outbox().Append(ctx, customer.GetDomainEvents()...)
	})
	if err != nil {
		return nil, err
	}
	customer.ClearDomainEvents()

	logger.L(ctx).Info("customer registered",
		zap.String("customer_id", customer.ID.String()),
		zap.String("code", customer.Code))
	resp := ToCustomerResponse(customer)
	return &resp, nil
}

// Get returns one customer.
func (s *Service) Get(ctx context.Context, tenantID, id uuid.UUID) (*CustomerResponse, error) {
	customer, err := s.customers.FindByIDForTenant(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	resp := ToCustomerResponse(customer)
	return &resp, nil
}

// List returns a page of customers.
func (s *Service) List(ctx context.Context, tenantID uuid.UUID, filter CustomerListFilter) (sharedkernel.Page[CustomerResponse], error) {
	page := filter.Pagination.Normalize()
	rows, total, err := s.customers.FindAllForTenant(ctx, tenantID, domain.CustomerFilter{
		Search:     filter.Search,
		Segment:    domain.Segment(filter.Segment),
		Status:     domain.Status(filter.Status),
		Pagination: page,
	})
	if err != nil {
		return sharedkernel.Page[CustomerResponse]{}, err
	}
	out := make([]CustomerResponse, len(rows))
	for i := range rows {
		out[i] = ToCustomerResponse(&rows[i])
	}
	return sharedkernel.NewPage(out, total, page), nil
}

// UpdateContact replaces the customer's contact details.
func (s *Service) UpdateContact(ctx context.Context, tenantID, id uuid.UUID, req UpdateContactRequest) (*CustomerResponse, error) {
	return s.mutate(ctx, tenantID, id, func(c *domain.Customer) error {
		return c.UpdateContact(req.Name, req.Email, req.Phone)
	})
}

// Suspend blocks new orders and queues CustomerStatusChanged.
func (s *Service) Suspend(ctx context.Context, tenantID, id uuid.UUID) (*CustomerResponse, error) {
	return s.mutate(ctx, tenantID, id, (*domain.Customer).Suspend)
}

// Activate lifts a suspension and queues CustomerStatusChanged.
func (s *Service) Activate(ctx context.Context, tenantID, id uuid.UUID) (*CustomerResponse, error) {
	return s.mutate(ctx, tenantID, id, (*domain.Customer).Activate)
}

func (s *Service) mutate(ctx context.Context, tenantID, id uuid.UUID, op func(*domain.Customer) error) (*CustomerResponse, error) {
	var customer *domain.Customer
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		customer, err = repos.Customers().FindByIDForTenant(ctx, tenantID, id)
		if err != nil {
			return err
		}
		loaded := customer.Version
		if err := op(customer); err != nil {
			return err
		}
		if err := repos.Customers().SaveWithLock(ctx, customer, loaded); err != nil {
			return err
		}
		return repos.Outbox().Append(ctx, customer.GetDomainEvents()...)
	})
	if err != nil {
		return nil, err
	}
	customer.ClearDomainEvents()
	resp := ToCustomerResponse(customer)
	return &resp, nil
}

// ApplyOrderPlaced counts a placed order against its customer. It reports
// whether the customer changed: false for a redelivered event or an
// unknown customer.
func (s *Service) ApplyOrderPlaced(ctx context.Context, activity OrderActivity) (bool, error) {
	return s.applyOrderActivity(ctx, activity, (*domain.Customer).RecordOrderPlaced)
}

// ApplyOrderCancelled reverses a placed order.
func (s *Service) ApplyOrderCancelled(ctx context.Context, activity OrderActivity) (bool, error) {
	return s.applyOrderActivity(ctx, activity, (*domain.Customer).RecordOrderCancelled)
}

// applyOrderActivity records the event id and updates the customer in one
// transaction, so a redelivered event changes nothing. Events for unknown
// customers are recorded and dropped.
func (s *Service) applyOrderActivity(ctx context.Context, a OrderActivity, apply func(*domain.Customer, decimal.Decimal)) (bool, error) {
	log := logger.L(ctx).With(
		zap.String("event_id", a.EventID.String()),
		zap.String("event_type", a.EventType),
		zap.String("customer_id", a.CustomerID.String()))

	applied := false
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		isNew, err := repos.Processed().TryRecord(ctx, a.EventID, a.EventType)
		if err != nil || !isNew {
			return err
		}
		customer, err := repos.Customers().FindByIDForTenant(ctx, a.TenantID, a.CustomerID)
		if errors.Is(err, sharedkernel.ErrNotFound) {
			log.Warn("order event for unknown customer ignored")
			return nil
		}
		if err != nil {
			return err
		}
		loaded := customer.Version
		apply(customer, a.Total)
		if err := repos.Customers().SaveWithLock(ctx, customer, loaded); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if applied {
		log.Debug("order activity applied")
	}
	return applied, nil
}
