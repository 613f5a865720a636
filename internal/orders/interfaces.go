package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tundeajayi/storefront-backend/pkg/db/models"
	"github.com/tundeajayi/storefront-backend/pkg/enums"
	"github.com/tundeajayi/storefront-backend/pkg/pagination"
)

// Repository defines persistence operations for orders and their items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByPaymentReference(ctx context.Context, reference string) (*models.Order, error)
	FindByPaymentReferenceForUpdate(ctx context.Context, reference string) (*models.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderList, error)
	UpdatePaymentState(ctx context.Context, id uuid.UUID, paymentStatus enums.PaymentStatus, status enums.OrderStatus) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus) error
}
