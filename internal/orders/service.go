package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tundeajayi/storefront-backend/pkg/enums"
	pkgerrors "github.com/tundeajayi/storefront-backend/pkg/errors"
	"github.com/tundeajayi/storefront-backend/pkg/logger"
	"github.com/tundeajayi/storefront-backend/pkg/pagination"
)

// Caller identifies who is asking for an order read.
type Caller struct {
	UserID     uuid.UUID
	Privileged bool
}

// Service exposes order read and administration operations. Order creation
// belongs to the reservation engine, not this service.
type Service interface {
	GetOrder(ctx context.Context, caller Caller, orderID uuid.UUID) (*OrderDTO, error)
	ListOrders(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderList, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) (*OrderDTO, error)
}

type service struct {
	repo   Repository
	logger *logger.Logger
}

// NewService constructs the orders service.
func NewService(repo Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, logger: logg}, nil
}

// GetOrder returns the order if the caller owns it or is privileged.
func (s *service) GetOrder(ctx context.Context, caller Caller, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	if !caller.Privileged && order.UserID != caller.UserID {
		// hide existence from non-owners
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return ToDTO(order), nil
}

// ListOrders returns the caller's orders, newest first.
func (s *service) ListOrders(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderList, error) {
	list, err := s.repo.ListByUser(ctx, userID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}
	return list, nil
}

// UpdateStatus applies an administrative fulfillment transition. Payment
// state stays untouched; the webhook processor owns it.
func (s *service) UpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) (*OrderDTO, error) {
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid order status %q", status))
	}
	if err := s.repo.UpdateStatus(ctx, orderID, status); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update order status")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload order")
	}
	return ToDTO(order), nil
}
