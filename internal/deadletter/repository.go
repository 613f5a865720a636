package deadletter

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tundeajayi/storefront-backend/pkg/db/models"
)

// Repository wraps failed-task persistence.
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

// Create persists a dead-letter record.
func (r *Repository) Create(ctx context.Context, task *models.FailedTask) error {
	return r.db.WithContext(ctx).Create(task).Error
}

// FindByTaskID loads the record for the originating task identifier.
func (r *Repository) FindByTaskID(ctx context.Context, taskID uuid.UUID) (*models.FailedTask, error) {
	var task models.FailedTask
	if err := r.db.WithContext(ctx).First(&task, "task_id = ?", taskID).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// ListUnretried returns every record not yet replayed, oldest first.
func (r *Repository) ListUnretried(ctx context.Context) ([]models.FailedTask, error) {
	var tasks []models.FailedTask
	if err := r.db.WithContext(ctx).
		Where("retried = ?", false).
		Order("failed_at ASC").
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// MarkRetried stamps the record after a replay. The audit row is kept.
func (r *Repository) MarkRetried(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.FailedTask{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"retried":    true,
			"retried_at": at,
		}).Error
}

// CountFailedSince counts dead-letters recorded after the cutoff.
func (r *Repository) CountFailedSince(ctx context.Context, cutoff time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.FailedTask{}).
		Where("failed_at >= ?", cutoff).
		Count(&count).Error
	return count, err
}
