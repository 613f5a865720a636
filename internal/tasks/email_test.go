package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tundeajayi/storefront-backend/internal/orders"
	"github.com/tundeajayi/storefront-backend/pkg/db/models"
	"github.com/tundeajayi/storefront-backend/pkg/enums"
	"github.com/tundeajayi/storefront-backend/pkg/logger"
)

type countingMailer struct {
	sends int
	err   error
}

func (m *countingMailer) SendOrderConfirmation(context.Context, *models.Order) error {
	if m.err != nil {
		return m.err
	}
	m.sends++
	return nil
}

func newEmailTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:email_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(&models.Product{}, &models.Order{}, &models.OrderItem{}, &models.EmailLog{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func seedEmailOrder(t *testing.T, conn *gorm.DB) *models.Order {
	t.Helper()
	order := &models.Order{
		UserID:           uuid.New(),
		Status:           enums.OrderStatusPending,
		PaymentStatus:    enums.PaymentStatusPending,
		PaymentReference: orders.NewPaymentReference(),
		Total:            decimal.NewFromFloat(10.00),
	}
	if err := conn.Create(order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return order
}

func newEmailHandler(t *testing.T, conn *gorm.DB, mailer Mailer) *ConfirmationEmailHandler {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "email-test"})
	handler, err := NewConfirmationEmailHandler(orders.NewRepository(conn), NewEmailLogRepository(conn), mailer, logg)
	if err != nil {
		t.Fatalf("construct handler: %v", err)
	}
	return handler
}

func argsFor(t *testing.T, orderID uuid.UUID) json.RawMessage {
	t.Helper()
	encoded, err := json.Marshal(ConfirmationEmailArgs{OrderID: orderID})
	if err != nil {
		t.Fatalf("encode args: %v", err)
	}
	return encoded
}

func TestConfirmationEmailSendsOnce(t *testing.T) {
	conn := newEmailTestDB(t)
	mailer := &countingMailer{}
	handler := newEmailHandler(t, conn, mailer)
	ctx := context.Background()
	order := seedEmailOrder(t, conn)

	outcome := handler.Execute(ctx, argsFor(t, order.ID))
	if outcome.Kind != OutcomeSuccess {
		t.Fatalf("expected success, got %v (%v)", outcome.Kind, outcome.Err)
	}
	if mailer.sends != 1 {
		t.Fatalf("expected 1 send, got %d", mailer.sends)
	}

	// a redelivered task hits the unique email log and is treated as done
	outcome = handler.Execute(ctx, argsFor(t, order.ID))
	if outcome.Kind != OutcomeSuccess {
		t.Fatalf("expected duplicate to be success, got %v", outcome.Kind)
	}
	if mailer.sends != 1 {
		t.Fatalf("duplicate delivery must not resend, got %d sends", mailer.sends)
	}

	var count int64
	if err := conn.Model(&models.EmailLog{}).Count(&count).Error; err != nil {
		t.Fatalf("count logs: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 email log, got %d", count)
	}
}

func TestConfirmationEmailSendFailureReleasesClaim(t *testing.T) {
	conn := newEmailTestDB(t)
	mailer := &countingMailer{err: errors.New("smtp down")}
	handler := newEmailHandler(t, conn, mailer)
	ctx := context.Background()
	order := seedEmailOrder(t, conn)

	outcome := handler.Execute(ctx, argsFor(t, order.ID))
	if outcome.Kind != OutcomeRetryable {
		t.Fatalf("expected retryable failure, got %v", outcome.Kind)
	}

	var count int64
	if err := conn.Model(&models.EmailLog{}).Count(&count).Error; err != nil {
		t.Fatalf("count logs: %v", err)
	}
	if count != 0 {
		t.Fatalf("failed send must release the claim, got %d logs", count)
	}

	// the retry succeeds once the mailer recovers
	mailer.err = nil
	outcome = handler.Execute(ctx, argsFor(t, order.ID))
	if outcome.Kind != OutcomeSuccess {
		t.Fatalf("expected retry to succeed, got %v (%v)", outcome.Kind, outcome.Err)
	}
	if mailer.sends != 1 {
		t.Fatalf("expected 1 successful send, got %d", mailer.sends)
	}
}

func TestConfirmationEmailUnknownOrderIsPermanent(t *testing.T) {
	conn := newEmailTestDB(t)
	handler := newEmailHandler(t, conn, &countingMailer{})
	ctx := context.Background()

	outcome := handler.Execute(ctx, argsFor(t, uuid.New()))
	if outcome.Kind != OutcomePermanent {
		t.Fatalf("expected permanent failure, got %v", outcome.Kind)
	}
}

func TestConfirmationEmailBadArgsIsPermanent(t *testing.T) {
	conn := newEmailTestDB(t)
	handler := newEmailHandler(t, conn, &countingMailer{})

	outcome := handler.Execute(context.Background(), json.RawMessage(`{not json`))
	if outcome.Kind != OutcomePermanent {
		t.Fatalf("expected permanent failure, got %v", outcome.Kind)
	}
}
