package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/tundeajayi/storefront-backend/internal/orders"
	"github.com/tundeajayi/storefront-backend/pkg/db"
	"github.com/tundeajayi/storefront-backend/pkg/db/models"
	"github.com/tundeajayi/storefront-backend/pkg/enums"
	"github.com/tundeajayi/storefront-backend/pkg/logger"
)

// Mailer delivers transactional email for an order.
type Mailer interface {
	SendOrderConfirmation(ctx context.Context, order *models.Order) error
}

// EmailLogRepository persists the sent-email markers.
type EmailLogRepository struct {
	db *gorm.DB
}

// NewEmailLogRepository builds the repository.
func NewEmailLogRepository(conn *gorm.DB) *EmailLogRepository {
	return &EmailLogRepository{db: conn}
}

// Create claims the (order, email type) slot. A unique violation means a
// previous attempt already sent this email.
func (r *EmailLogRepository) Create(ctx context.Context, log *models.EmailLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

// Delete releases a claim whose send never happened.
func (r *EmailLogRepository) Delete(ctx context.Context, log *models.EmailLog) error {
	return r.db.WithContext(ctx).Delete(&models.EmailLog{}, "id = ?", log.ID).Error
}

// ConfirmationEmailHandler sends the order confirmation email exactly once
// per order.
type ConfirmationEmailHandler struct {
	orderRepo orders.Repository
	logRepo   *EmailLogRepository
	mailer    Mailer
	logger    *logger.Logger
}

// NewConfirmationEmailHandler constructs the handler.
func NewConfirmationEmailHandler(orderRepo orders.Repository, logRepo *EmailLogRepository, mailer Mailer, logg *logger.Logger) (*ConfirmationEmailHandler, error) {
	if orderRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if logRepo == nil {
		return nil, fmt.Errorf("email log repository required")
	}
	if mailer == nil {
		return nil, fmt.Errorf("mailer required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &ConfirmationEmailHandler{orderRepo: orderRepo, logRepo: logRepo, mailer: mailer, logger: logg}, nil
}

// Name implements Handler.
func (h *ConfirmationEmailHandler) Name() enums.TaskName {
	return enums.TaskSendOrderConfirmationEmail
}

// Execute claims the email slot, then sends. The unique constraint on the
// email log is what makes redelivered or replayed tasks a no-op.
func (h *ConfirmationEmailHandler) Execute(ctx context.Context, args json.RawMessage) Outcome {
	var payload ConfirmationEmailArgs
	if err := json.Unmarshal(args, &payload); err != nil {
		return Fail(fmt.Errorf("decode confirmation email args: %w", err))
	}

	order, err := h.orderRepo.FindByID(ctx, payload.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Fail(fmt.Errorf("order %s not found", payload.OrderID))
		}
		return Retry(fmt.Errorf("load order %s: %w", payload.OrderID, err))
	}

	claim := &models.EmailLog{
		OrderID:   order.ID,
		EmailType: enums.EmailTypeOrderConfirmation,
	}
	if err := h.logRepo.Create(ctx, claim); err != nil {
		if db.IsUniqueViolation(err, "ux_email_logs_order_type") {
			h.logger.Info(h.logger.WithOrderID(ctx, order.ID.String()), "confirmation email already sent")
			return Success()
		}
		return Retry(fmt.Errorf("claim email slot: %w", err))
	}

	if err := h.mailer.SendOrderConfirmation(ctx, order); err != nil {
		// release the claim so the retry can send
		if delErr := h.logRepo.Delete(ctx, claim); delErr != nil {
			h.logger.Error(ctx, "release email claim", delErr)
		}
		return Retry(fmt.Errorf("send confirmation email: %w", err))
	}
	h.logger.Info(h.logger.WithOrderID(ctx, order.ID.String()), "confirmation email sent")
	return Success()
}

// LogMailer writes the mail to the application log instead of a provider.
// Stands in until a real delivery backend is wired up.
type LogMailer struct {
	From   string
	Logger *logger.Logger
}

// SendOrderConfirmation implements Mailer.
func (m *LogMailer) SendOrderConfirmation(ctx context.Context, order *models.Order) error {
	if m.Logger == nil {
		return fmt.Errorf("log mailer has no logger")
	}
	m.Logger.Info(ctx, fmt.Sprintf("order confirmation from %s for order %s (reference %s, total %s)",
		m.From, order.ID, order.PaymentReference, order.Total))
	return nil
}
