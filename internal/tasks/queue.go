package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tundeajayi/storefront-backend/internal/webhooks"
	"github.com/tundeajayi/storefront-backend/pkg/enums"
	pkgerrors "github.com/tundeajayi/storefront-backend/pkg/errors"
	"github.com/tundeajayi/storefront-backend/pkg/redis"
)

// Envelope is the unit pushed onto the shared queue. TaskID identifies one
// logical execution across retries and into the dead-letter store.
type Envelope struct {
	TaskID     uuid.UUID       `json:"task_id"`
	TaskName   enums.TaskName  `json:"task_name"`
	Args       json.RawMessage `json:"args"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// ConfirmationEmailArgs is the payload of the confirmation email task.
type ConfirmationEmailArgs struct {
	OrderID uuid.UUID `json:"order_id"`
}

// Producer pushes task envelopes onto the shared queue.
type Producer struct {
	queue    redis.Queue
	queueKey string
}

// NewProducer builds a queue producer.
func NewProducer(queue redis.Queue, queueName string) (*Producer, error) {
	if queue == nil {
		return nil, fmt.Errorf("queue required")
	}
	if queueName == "" {
		return nil, fmt.Errorf("queue name required")
	}
	return &Producer{queue: queue, queueKey: queue.QueueKey(queueName)}, nil
}

// EnqueueOrderConfirmation schedules the confirmation email for an order.
func (p *Producer) EnqueueOrderConfirmation(ctx context.Context, orderID uuid.UUID) error {
	return p.enqueue(ctx, enums.TaskSendOrderConfirmationEmail, ConfirmationEmailArgs{OrderID: orderID})
}

// EnqueuePaymentWebhook schedules asynchronous processing of an accepted
// provider event.
func (p *Producer) EnqueuePaymentWebhook(ctx context.Context, event webhooks.PaymentEvent) error {
	return p.enqueue(ctx, enums.TaskProcessPaymentWebhook, event)
}

// Resubmit pushes a previously captured payload back onto the queue under a
// fresh task identifier. Used by the dead-letter replayer.
func (p *Producer) Resubmit(ctx context.Context, name enums.TaskName, args json.RawMessage) error {
	if !name.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown task name %q", name))
	}
	return p.push(ctx, Envelope{
		TaskID:     uuid.New(),
		TaskName:   name,
		Args:       args,
		EnqueuedAt: time.Now().UTC(),
	})
}

func (p *Producer) enqueue(ctx context.Context, name enums.TaskName, args any) error {
	encoded, err := json.Marshal(args)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode task args")
	}
	return p.push(ctx, Envelope{
		TaskID:     uuid.New(),
		TaskName:   name,
		Args:       encoded,
		EnqueuedAt: time.Now().UTC(),
	})
}

func (p *Producer) push(ctx context.Context, envelope Envelope) error {
	encoded, err := json.Marshal(envelope)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode task envelope")
	}
	if err := p.queue.LPush(ctx, p.queueKey, string(encoded)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "enqueue task")
	}
	return nil
}
