package reservation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tundeajayi/storefront-backend/internal/locks"
	"github.com/tundeajayi/storefront-backend/internal/orders"
	"github.com/tundeajayi/storefront-backend/internal/products"
	"github.com/tundeajayi/storefront-backend/pkg/db/models"
	"github.com/tundeajayi/storefront-backend/pkg/enums"
	pkgerrors "github.com/tundeajayi/storefront-backend/pkg/errors"
	"github.com/tundeajayi/storefront-backend/pkg/logger"
	"github.com/tundeajayi/storefront-backend/pkg/metrics"
)

// ItemRequest is one requested order line.
type ItemRequest struct {
	ProductID uuid.UUID
	Quantity  int
}

// Engine runs the stock reservation protocol: serialize on per-product
// locks, validate and decrement stock inside one transaction, then hand the
// confirmation work to the task queue.
type Engine interface {
	Reserve(ctx context.Context, userID uuid.UUID, items []ItemRequest) (*orders.OrderDTO, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type lockManager interface {
	AcquireAll(ctx context.Context, resources []string) (*locks.Guard, error)
}

type confirmationEnqueuer interface {
	EnqueueOrderConfirmation(ctx context.Context, orderID uuid.UUID) error
}

type engine struct {
	tx          txRunner
	locks       lockManager
	productRepo *products.Repository
	orderRepo   orders.Repository
	enqueuer    confirmationEnqueuer
	logger      *logger.Logger
	metrics     *metrics.OrderMetrics
}

// NewEngine constructs the reservation engine.
func NewEngine(
	tx txRunner,
	lockMgr lockManager,
	productRepo *products.Repository,
	orderRepo orders.Repository,
	enqueuer confirmationEnqueuer,
	logg *logger.Logger,
	orderMetrics *metrics.OrderMetrics,
) (Engine, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if lockMgr == nil {
		return nil, fmt.Errorf("lock manager required")
	}
	if productRepo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if orderRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if enqueuer == nil {
		return nil, fmt.Errorf("confirmation enqueuer required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &engine{
		tx:          tx,
		locks:       lockMgr,
		productRepo: productRepo,
		orderRepo:   orderRepo,
		enqueuer:    enqueuer,
		logger:      logg,
		metrics:     orderMetrics,
	}, nil
}

// Reserve validates availability for every requested line and commits the
// order atomically. Either the full order with all its items and stock
// decrements commits, or nothing does.
func (e *engine) Reserve(ctx context.Context, userID uuid.UUID, items []ItemRequest) (*orders.OrderDTO, error) {
	started := time.Now()
	merged, err := mergeItems(items)
	if err != nil {
		e.metrics.IncOrderCreated("validation_failed")
		return nil, err
	}

	resources := make([]string, 0, len(merged))
	for _, item := range merged {
		resources = append(resources, "product:"+item.ProductID.String())
	}
	guard, err := e.locks.AcquireAll(ctx, resources)
	if err != nil {
		e.metrics.IncOrderCreated("contention")
		return nil, err
	}
	defer func() {
		if releaseErr := guard.Release(ctx); releaseErr != nil {
			e.logger.Error(ctx, "releasing reservation locks", releaseErr)
		}
	}()

	var created *models.Order
	err = e.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, txErr := e.reserveInTx(ctx, tx, userID, merged)
		if txErr != nil {
			return txErr
		}
		created = order
		return nil
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeInsufficientStock {
			e.metrics.IncOrderCreated("insufficient_stock")
		} else {
			e.metrics.IncOrderCreated("error")
		}
		return nil, err
	}

	e.metrics.IncOrderCreated("created")
	e.metrics.AddOrderValue(created.PaymentStatus.String(), created.Total.InexactFloat64())
	e.metrics.ObserveCreationDuration(time.Since(started))

	// the order is committed; a queue outage here must not undo it
	if err := e.enqueuer.EnqueueOrderConfirmation(ctx, created.ID); err != nil {
		e.logger.Error(e.logger.WithOrderID(ctx, created.ID.String()), "enqueue confirmation email", err)
	}

	full, err := e.orderRepo.FindByID(ctx, created.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload created order")
	}
	return orders.ToDTO(full), nil
}

func (e *engine) reserveInTx(ctx context.Context, tx *gorm.DB, userID uuid.UUID, merged []ItemRequest) (*models.Order, error) {
	productRepo := e.productRepo.WithTx(tx)
	orderRepo := e.orderRepo.WithTx(tx)

	ids := make([]uuid.UUID, 0, len(merged))
	for _, item := range merged {
		ids = append(ids, item.ProductID)
	}
	found, err := productRepo.FindActiveByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load products")
	}
	byID := make(map[uuid.UUID]*models.Product, len(found))
	for i := range found {
		byID[found[i].ID] = &found[i]
	}

	// validate every line before touching stock
	for _, item := range merged {
		product, ok := byID[item.ProductID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("product %s is not available", item.ProductID)).
				WithDetails(map[string]any{"product_id": item.ProductID})
		}
		if product.StockQuantity < item.Quantity {
			return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock,
				fmt.Sprintf("insufficient stock for %s: requested %d, available %d",
					product.Name, item.Quantity, product.StockQuantity)).
				WithDetails(map[string]any{
					"product_id": product.ID,
					"requested":  item.Quantity,
					"available":  product.StockQuantity,
					"shortfall":  item.Quantity - product.StockQuantity,
				})
		}
	}

	order := &models.Order{
		UserID:           userID,
		Status:           enums.OrderStatusPending,
		PaymentStatus:    enums.PaymentStatusPending,
		PaymentReference: orders.NewPaymentReference(),
		Total:            decimal.Zero,
	}
	total := decimal.Zero
	for _, item := range merged {
		product := byID[item.ProductID]
		line := models.OrderItem{
			ProductID: product.ID,
			Quantity:  item.Quantity,
			Price:     product.Price,
		}
		total = total.Add(line.Subtotal())
		order.Items = append(order.Items, line)
	}
	order.Total = total

	for _, item := range merged {
		if err := productRepo.DecrementStock(ctx, item.ProductID, item.Quantity); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decrement stock")
		}
	}
	if err := orderRepo.Create(ctx, order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order")
	}
	return order, nil
}

// mergeItems collapses duplicate product lines by summing their quantities
// so each order carries at most one line per product.
func mergeItems(items []ItemRequest) ([]ItemRequest, error) {
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order must contain at least one item")
	}
	index := make(map[uuid.UUID]int, len(items))
	merged := make([]ItemRequest, 0, len(items))
	for _, item := range items {
		if item.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product_id is required")
		}
		if item.Quantity < 1 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("quantity for product %s must be at least 1", item.ProductID))
		}
		if pos, ok := index[item.ProductID]; ok {
			merged[pos].Quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(merged)
		merged = append(merged, item)
	}
	return merged, nil
}
