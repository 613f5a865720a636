package cron

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tundeajayi/storefront-backend/internal/webhooks"
	"github.com/tundeajayi/storefront-backend/pkg/db/models"
	"github.com/tundeajayi/storefront-backend/pkg/enums"
	"github.com/tundeajayi/storefront-backend/pkg/logger"
)

func TestWebhookRetentionJob(t *testing.T) {
	dsn := "file:retention_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(&models.WebhookEvent{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	now := time.Now().UTC()
	old := now.Add(-10 * 24 * time.Hour)
	ancient := now.Add(-60 * 24 * time.Hour)

	seed := func(eventID string, processed bool, processedAt, archivedAt *time.Time) {
		event := &models.WebhookEvent{
			EventID:     eventID,
			EventType:   enums.WebhookEventTypePayment,
			Payload:     []byte(`{}`),
			Processed:   processed,
			ProcessedAt: processedAt,
			ArchivedAt:  archivedAt,
		}
		if err := conn.Create(event).Error; err != nil {
			t.Fatalf("seed %s: %v", eventID, err)
		}
	}
	seed("evt-recent", true, &now, nil)
	seed("evt-old-processed", true, &old, nil)
	seed("evt-unprocessed", false, nil, nil)
	seed("evt-ancient-archived", true, &ancient, &ancient)

	job, err := NewWebhookRetentionJob(
		webhooks.NewRepository(conn),
		7*24*time.Hour,
		30*24*time.Hour,
		logger.New(logger.Options{ServiceName: "cron-test"}),
	)
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	var recent, oldProcessed, unprocessed models.WebhookEvent
	if err := conn.First(&recent, "event_id = ?", "evt-recent").Error; err != nil {
		t.Fatalf("recent event missing: %v", err)
	}
	if recent.ArchivedAt != nil {
		t.Fatalf("recent event must not be archived")
	}
	if err := conn.First(&oldProcessed, "event_id = ?", "evt-old-processed").Error; err != nil {
		t.Fatalf("old processed event missing: %v", err)
	}
	if oldProcessed.ArchivedAt == nil {
		t.Fatalf("old processed event should be archived")
	}
	if err := conn.First(&unprocessed, "event_id = ?", "evt-unprocessed").Error; err != nil {
		t.Fatalf("unprocessed event missing: %v", err)
	}
	if unprocessed.ArchivedAt != nil {
		t.Fatalf("unprocessed event must never be archived")
	}

	var count int64
	if err := conn.Model(&models.WebhookEvent{}).Where("event_id = ?", "evt-ancient-archived").Count(&count).Error; err != nil {
		t.Fatalf("count ancient: %v", err)
	}
	if count != 0 {
		t.Fatalf("ancient archived event should be deleted")
	}
}
