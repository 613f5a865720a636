package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tundeajayi/storefront-backend/internal/orders"
	"github.com/tundeajayi/storefront-backend/pkg/db"
	"github.com/tundeajayi/storefront-backend/pkg/db/models"
	"github.com/tundeajayi/storefront-backend/pkg/enums"
	pkgerrors "github.com/tundeajayi/storefront-backend/pkg/errors"
	"github.com/tundeajayi/storefront-backend/pkg/logger"
	"github.com/tundeajayi/storefront-backend/pkg/metrics"
)

// PaymentEvent is one provider notification after intake validation.
type PaymentEvent struct {
	EventID   string              `json:"event_id"`
	Reference string              `json:"reference"`
	Status    enums.WebhookStatus `json:"status"`
	Amount    decimal.Decimal     `json:"amount"`
}

// Processor reconciles provider payment events with order state. Processing
// is idempotent under redelivery: the WebhookEvent uniqueness constraint and
// the order row lock are the serialization points.
type Processor interface {
	Process(ctx context.Context, event PaymentEvent) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type processor struct {
	tx        txRunner
	eventRepo *Repository
	orderRepo orders.Repository
	logger    *logger.Logger
	metrics   *metrics.OrderMetrics

	now func() time.Time
}

// NewProcessor constructs the webhook event processor.
func NewProcessor(tx txRunner, eventRepo *Repository, orderRepo orders.Repository, logg *logger.Logger, orderMetrics *metrics.OrderMetrics) (Processor, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if eventRepo == nil {
		return nil, fmt.Errorf("webhook repository required")
	}
	if orderRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &processor{
		tx:        tx,
		eventRepo: eventRepo,
		orderRepo: orderRepo,
		logger:    logg,
		metrics:   orderMetrics,
		now:       time.Now,
	}, nil
}

// Process applies the event exactly once. Duplicate deliveries return
// success with no side effects; transient store failures roll the whole
// transaction back so a retry replays the full unit.
func (p *processor) Process(ctx context.Context, event PaymentEvent) error {
	if err := validateEvent(event); err != nil {
		p.metrics.IncWebhookProcessed("invalid")
		return err
	}
	ctx = p.logger.WithField(ctx, "event_id", event.EventID)

	outcome := "processed"
	err := p.tx.WithTx(ctx, func(tx *gorm.DB) error {
		eventRepo := p.eventRepo.WithTx(tx)
		orderRepo := p.orderRepo.WithTx(tx)

		row, duplicate, err := p.claimEvent(ctx, eventRepo, event)
		if err != nil {
			return err
		}
		if duplicate {
			outcome = "duplicate"
			return nil
		}

		order, err := orderRepo.FindByPaymentReferenceForUpdate(ctx, event.Reference)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// orphan events are consumed, not retried forever
				p.logger.Warn(ctx, fmt.Sprintf("no order matches reference %s", event.Reference))
				outcome = "order_not_found"
				return eventRepo.MarkProcessed(ctx, row, p.now())
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order for webhook")
		}

		if err := p.applyTransition(ctx, orderRepo, order, event.Status); err != nil {
			return err
		}
		return eventRepo.MarkProcessed(ctx, row, p.now())
	})
	if err != nil {
		p.metrics.IncWebhookProcessed("error")
		return err
	}
	p.metrics.IncWebhookProcessed(outcome)
	return nil
}

// claimEvent finds or creates the event row. The second return is true when
// the event was already fully processed.
func (p *processor) claimEvent(ctx context.Context, eventRepo *Repository, event PaymentEvent) (*models.WebhookEvent, bool, error) {
	existing, err := eventRepo.FindByEventID(ctx, event.EventID)
	if err == nil {
		if existing.Processed {
			return existing, true, nil
		}
		// an earlier attempt recorded the event but died before finishing
		return existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load webhook event")
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode webhook payload")
	}
	row := &models.WebhookEvent{
		EventID:   event.EventID,
		EventType: enums.WebhookEventTypePayment,
		Payload:   payload,
	}
	if err := eventRepo.Create(ctx, row); err != nil {
		if db.IsUniqueViolation(err, "ux_webhook_events_event_id") {
			// a concurrent delivery won the insert race
			reloaded, loadErr := eventRepo.FindByEventID(ctx, event.EventID)
			if loadErr != nil {
				return nil, false, pkgerrors.Wrap(pkgerrors.CodeInternal, loadErr, "reload webhook event")
			}
			return reloaded, reloaded.Processed, nil
		}
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record webhook event")
	}
	return row, false, nil
}

func (p *processor) applyTransition(ctx context.Context, orderRepo orders.Repository, order *models.Order, status enums.WebhookStatus) error {
	switch status {
	case enums.WebhookStatusSuccess:
		if order.PaymentStatus == enums.PaymentStatusPaid {
			// redelivered success after confirmation is a no-op
			return nil
		}
		if err := orderRepo.UpdatePaymentState(ctx, order.ID, enums.PaymentStatusPaid, enums.OrderStatusConfirmed); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "confirm order")
		}
		p.logger.Info(p.logger.WithOrderID(ctx, order.ID.String()), "order confirmed by payment webhook")
		return nil
	case enums.WebhookStatusFailed:
		if order.PaymentStatus == enums.PaymentStatusPaid {
			// paid is sticky; a late failure event cannot regress the order
			p.logger.Warn(p.logger.WithOrderID(ctx, order.ID.String()), "ignoring failure event for paid order")
			return nil
		}
		if err := orderRepo.UpdatePaymentState(ctx, order.ID, enums.PaymentStatusFailed, enums.OrderStatusFailed); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "fail order")
		}
		p.logger.Info(p.logger.WithOrderID(ctx, order.ID.String()), "order failed by payment webhook")
		return nil
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported webhook status %q", status))
	}
}

func validateEvent(event PaymentEvent) error {
	if event.EventID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "event_id is required")
	}
	if event.Reference == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "reference is required")
	}
	if !event.Status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid webhook status %q", event.Status))
	}
	return nil
}
