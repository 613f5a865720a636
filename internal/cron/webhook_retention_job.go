package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/tundeajayi/storefront-backend/internal/webhooks"
	"github.com/tundeajayi/storefront-backend/pkg/logger"
)

// WebhookRetentionJob archives processed webhook events past the archive
// window and removes archived events past the delete window. Unprocessed
// events are never touched.
type WebhookRetentionJob struct {
	repo         *webhooks.Repository
	archiveAfter time.Duration
	deleteAfter  time.Duration
	logger       *logger.Logger

	now func() time.Time
}

// NewWebhookRetentionJob builds the job.
func NewWebhookRetentionJob(repo *webhooks.Repository, archiveAfter, deleteAfter time.Duration, logg *logger.Logger) (*WebhookRetentionJob, error) {
	if repo == nil {
		return nil, fmt.Errorf("webhook repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if archiveAfter <= 0 {
		return nil, fmt.Errorf("archive window must be positive")
	}
	if deleteAfter <= 0 {
		return nil, fmt.Errorf("delete window must be positive")
	}
	return &WebhookRetentionJob{
		repo:         repo,
		archiveAfter: archiveAfter,
		deleteAfter:  deleteAfter,
		logger:       logg,
		now:          time.Now,
	}, nil
}

// Name implements Job.
func (j *WebhookRetentionJob) Name() string { return "webhook_retention" }

// Run implements Job.
func (j *WebhookRetentionJob) Run(ctx context.Context) error {
	now := j.now().UTC()

	archived, err := j.repo.ArchiveProcessedBefore(ctx, now.Add(-j.archiveAfter), now)
	if err != nil {
		return fmt.Errorf("archive webhook events: %w", err)
	}
	deleted, err := j.repo.DeleteArchivedBefore(ctx, now.Add(-j.deleteAfter))
	if err != nil {
		return fmt.Errorf("delete webhook events: %w", err)
	}
	if archived > 0 || deleted > 0 {
		j.logger.Info(ctx, fmt.Sprintf("webhook retention: archived %d, deleted %d", archived, deleted))
	}
	return nil
}
