// Package application implements the order use cases of commerce.
package application

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/chiro/erp/internal/contexts/commerce/domain"
	"github.com/chiro/erp/internal/platform/sharedkernel"
	"github.com/chiro/erp/internal/platform/sharedkernel/logger"
)

// Service handles the order lifecycle and maintains the customer
// projection.
type Service struct {
	orders  domain.OrderRepository
	txScope TransactionScope
}

// NewService creates a new order service
func NewService(orders domain.OrderRepository, txScope TransactionScope) *Service {
	return &Service{orders: orders, txScope: txScope}
}

// CreateDraft opens a draft order with the given lines.
func (s *Service) CreateDraft(ctx context.Context, tenantID uuid.UUID, req CreateOrderRequest) (*OrderResponse, error) {
	var order *domain.Order
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		number, err := repos.Orders().GenerateNumber(ctx, tenantID)
		if err != nil {
			return err
		}
		order, err = domain.NewOrder(tenantID, number, req.CustomerID, req.Currency)
		if err != nil {
			return err
		}
		for _, l := range req.Lines {
			if err := addLine(order, l); err != nil {
				return err
			}
		}
		return repos.Orders().Create(ctx, order)
	})
	if err != nil {
		return nil, err
	}

	logger.L(ctx).Info("draft order created",
		zap.String("order_id", order.ID.String()),
		zap.String("order_number", order.Number))
	resp := ToOrderResponse(order)
	return &resp, nil
}

// AddLine appends a line to a draft.
func (s *Service) AddLine(ctx context.Context, tenantID, id uuid.UUID, req AddLineRequest) (*OrderResponse, error) {
	return s.mutate(ctx, tenantID, id, func(_ TransactionalRepositories, o *domain.Order) error {
		return addLine(o, req)
	})
}

// Get returns one order with its lines.
func (s *Service) Get(ctx context.Context, tenantID, id uuid.UUID) (*OrderResponse, error) {
	order, err := s.orders.FindByIDForTenant(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	resp := ToOrderResponse(order)
	return &resp, nil
}

// List returns a page of orders, newest first.
func (s *Service) List(ctx context.Context, tenantID uuid.UUID, filter OrderListFilter) (sharedkernel.Page[OrderResponse], error) {
	page := filter.Pagination.Normalize()
	f := domain.OrderFilter{Status: domain.OrderStatus(filter.Status), Pagination: page}
	if filter.CustomerID != "" {
		id, err := uuid.Parse(filter.CustomerID)
		if err != nil {
			return sharedkernel.Page[OrderResponse]{}, sharedkernel.NewDomainError("INVALID_INPUT", "Invalid customer_id")
		}
		f.CustomerID = &id
	}
	rows, total, err := s.orders.FindAllForTenant(ctx, tenantID, f)
	if err != nil {
		return sharedkernel.Page[OrderResponse]{}, err
	}
	out := make([]OrderResponse, len(rows))
	for i := range rows {
		out[i] = ToOrderResponse(&rows[i])
	}
	return sharedkernel.NewPage(out, total, page), nil
}

// Place submits a draft. The customer must be known to commerce and active.
func (s *Service) Place(ctx context.Context, tenantID, id uuid.UUID) (*OrderResponse, error) {
	resp, err := s.mutate(ctx, tenantID, id, func(repos TransactionalRepositories, o *domain.Order) error {
		customer, err := repos.Customers().Find(ctx, tenantID, o.CustomerID)
		if err != nil && !errors.Is(err, sharedkernel.ErrNotFound) {
			return err
		}
		return o.Place(customer)
	})
	if err != nil {
		return nil, err
	}
	logger.L(ctx).Info("order placed",
		zap.String("order_id", resp.ID.String()),
		zap.String("total", resp.Total.String()))
	return resp, nil
}

// Cancel cancels a draft or placed order.
func (s *Service) Cancel(ctx context.Context, tenantID, id uuid.UUID, req CancelOrderRequest) (*OrderResponse, error) {
	return s.mutate(ctx, tenantID, id, func(_ TransactionalRepositories, o *domain.Order) error {
		return o.Cancel(req.Reason)
	})
}

func (s *Service) mutate(ctx context.Context, tenantID, id uuid.UUID, op func(TransactionalRepositories, *domain.Order) error) (*OrderResponse, error) {
	var order *domain.Order
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		order, err = repos.Orders().FindByIDForTenant(ctx, tenantID, id)
		if err != nil {
			return err
		}
		loaded := order.Version
		if err := op(repos, order); err != nil {
			return err
		}
		if err := repos.Orders().SaveWithLock(ctx, order, loaded); err != nil {
			return err
		}
		return repos.Outbox().Append(ctx, order.GetDomainEvents()...)
	})
	if err != nil {
		return nil, err
	}
	order.ClearDomainEvents()
	resp := ToOrderResponse(order)
	return &resp, nil
}

// ApplyCustomerSnapshot folds a CRM customer event into the projection.
// It reports false for a redelivered event.
func (s *Service) ApplyCustomerSnapshot(ctx context.Context, snap CustomerSnapshot) (bool, error) {
	applied := false
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		isNew, err := repos.Processed().TryRecord(ctx, snap.EventID, snap.EventType)
		if err != nil || !isNew {
			return err
		}
		applied = true
		return repos.Customers().Upsert(ctx, &domain.KnownCustomer{
			TenantID:   snap.TenantID,
			CustomerID: snap.CustomerID,
			Code:       snap.Code,
			Name:       snap.Name,
			Status:     snap.Status,
			ChangedAt:  snap.ChangedAt.UTC(),
			UpdatedAt:  time.Now().UTC(),
		})
	})
	if err != nil {
		return false, err
	}
	if applied {
		logger.L(ctx).Debug("customer projection updated",
			zap.String("event_type", snap.EventType),
			zap.String("customer_id", snap.CustomerID.String()),
			zap.String("status", snap.Status))
	}
	return applied, nil
}

func addLine(o *domain.Order, req AddLineRequest) error {
	price, err := decimal.NewFromString(req.UnitPrice)
	if err != nil {
		return sharedkernel.NewDomainError("INVALID_INPUT", "Invalid unit price "+req.UnitPrice)
	}
	_, err = o.AddLine(req.SKU, req.Quantity, price)
	return err
}
