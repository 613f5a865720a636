package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tundeajayi/storefront-backend/api/responses"
	"github.com/tundeajayi/storefront-backend/api/validators"
	"github.com/tundeajayi/storefront-backend/internal/webhooks"
	"github.com/tundeajayi/storefront-backend/pkg/enums"
	pkgerrors "github.com/tundeajayi/storefront-backend/pkg/errors"
	"github.com/tundeajayi/storefront-backend/pkg/logger"
)

type paymentWebhookRequest struct {
	EventID   string          `json:"event_id"`
	Reference string          `json:"reference" validate:"required"`
	Status    string          `json:"status" validate:"required"`
	Amount    decimal.Decimal `json:"amount"`
}

type webhookEnqueuer interface {
	EnqueuePaymentWebhook(ctx context.Context, event webhooks.PaymentEvent) error
}

// PaymentWebhook accepts a provider notification and hands it to the task
// queue. The endpoint acknowledges with 202 once the event is durably
// queued; reconciliation against order state happens in the worker.
func PaymentWebhook(enqueuer webhookEnqueuer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if enqueuer == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook intake unavailable"))
			return
		}

		var req paymentWebhookRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		status, err := enums.ParseWebhookStatus(strings.ToLower(strings.TrimSpace(req.Status)))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown webhook status"))
			return
		}

		eventID := strings.TrimSpace(req.EventID)
		if eventID == "" {
			// Providers without event ids still get exactly-once handling,
			// scoped to the id we mint here.
			eventID = uuid.NewString()
		}

		event := webhooks.PaymentEvent{
			EventID:   eventID,
			Reference: strings.TrimSpace(req.Reference),
			Status:    status,
			Amount:    req.Amount,
		}

		if err := enqueuer.EnqueuePaymentWebhook(ctx, event); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "enqueue webhook event"))
			return
		}

		if logg != nil {
			logg.Info(logg.WithField(ctx, "event_id", eventID), "payment webhook accepted")
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, map[string]string{
			"status":   "accepted",
			"event_id": eventID,
		})
	}
}
