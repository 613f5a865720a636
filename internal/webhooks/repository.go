package webhooks

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tundeajayi/storefront-backend/pkg/db/models"
)

// Repository wraps webhook event persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// FindByEventID loads the event recorded for the external identifier.
func (r *Repository) FindByEventID(ctx context.Context, eventID string) (*models.WebhookEvent, error) {
	var event models.WebhookEvent
	if err := r.db.WithContext(ctx).First(&event, "event_id = ?", eventID).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

// Create persists a new event row. A unique violation on event_id means a
// concurrent delivery won the insert race.
func (r *Repository) Create(ctx context.Context, event *models.WebhookEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

// MarkProcessed stamps the event so redeliveries become no-ops.
func (r *Repository) MarkProcessed(ctx context.Context, event *models.WebhookEvent, at time.Time) error {
	event.Processed = true
	event.ProcessedAt = &at
	return r.db.WithContext(ctx).
		Model(&models.WebhookEvent{}).
		Where("id = ?", event.ID).
		Updates(map[string]any{
			"processed":    true,
			"processed_at": at,
		}).Error
}

// ArchiveProcessedBefore stamps processed events older than cutoff for the
// retention sweep. Returns how many rows were archived.
func (r *Repository) ArchiveProcessedBefore(ctx context.Context, cutoff, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.WebhookEvent{}).
		Where("processed = ? AND processed_at < ? AND archived_at IS NULL", true, cutoff).
		Update("archived_at", at)
	return result.RowsAffected, result.Error
}

// DeleteArchivedBefore removes archived events past their retention window.
func (r *Repository) DeleteArchivedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("archived_at IS NOT NULL AND archived_at < ?", cutoff).
		Delete(&models.WebhookEvent{})
	return result.RowsAffected, result.Error
}
