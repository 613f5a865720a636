package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tundeajayi/storefront-backend/internal/webhooks"
	"github.com/tundeajayi/storefront-backend/pkg/enums"
	pkgerrors "github.com/tundeajayi/storefront-backend/pkg/errors"
)

// PaymentWebhookHandler runs accepted provider events through the processor
// asynchronously, so the intake endpoint never waits on locks or
// transactions.
type PaymentWebhookHandler struct {
	processor webhooks.Processor
}

// NewPaymentWebhookHandler constructs the handler.
func NewPaymentWebhookHandler(processor webhooks.Processor) (*PaymentWebhookHandler, error) {
	if processor == nil {
		return nil, fmt.Errorf("webhook processor required")
	}
	return &PaymentWebhookHandler{processor: processor}, nil
}

// Name implements Handler.
func (h *PaymentWebhookHandler) Name() enums.TaskName {
	return enums.TaskProcessPaymentWebhook
}

// Execute implements Handler. Transient processor failures are retried; the
// processor's own transaction rollback makes the whole unit safe to replay.
func (h *PaymentWebhookHandler) Execute(ctx context.Context, args json.RawMessage) Outcome {
	var event webhooks.PaymentEvent
	if err := json.Unmarshal(args, &event); err != nil {
		return Fail(fmt.Errorf("decode payment event: %w", err))
	}
	if err := h.processor.Process(ctx, event); err != nil {
		if pkgerrors.IsRetryable(err) {
			return Retry(err)
		}
		return Fail(err)
	}
	return Success()
}
