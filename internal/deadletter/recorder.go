package deadletter

import (
	"context"
	"fmt"

	"github.com/tundeajayi/storefront-backend/internal/tasks"
	"github.com/tundeajayi/storefront-backend/pkg/db"
	"github.com/tundeajayi/storefront-backend/pkg/db/models"
	"github.com/tundeajayi/storefront-backend/pkg/logger"
)

// Recorder captures terminally failed tasks. It is the runner's last stop
// before a task would otherwise be lost.
type Recorder struct {
	repo   *Repository
	logger *logger.Logger
}

// NewRecorder constructs the recorder.
func NewRecorder(repo *Repository, logg *logger.Logger) (*Recorder, error) {
	if repo == nil {
		return nil, fmt.Errorf("deadletter repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Recorder{repo: repo, logger: logg}, nil
}

// RecordFailure implements the runner's terminal hook. Recording the same
// task identifier twice is a no-op so a crashed worker cannot double-write.
func (r *Recorder) RecordFailure(ctx context.Context, failure tasks.Failure) error {
	row := &models.FailedTask{
		TaskName: failure.TaskName,
		TaskID:   failure.TaskID,
		Args:     failure.Args,
		Error:    failure.Err.Error(),
		Trace:    failure.Trace,
		FailedAt: failure.FailedAt,
	}
	if err := r.repo.Create(ctx, row); err != nil {
		if db.IsUniqueViolation(err, "ux_failed_tasks_task_id") {
			r.logger.Warn(r.logger.WithTaskID(ctx, failure.TaskID.String()), "dead-letter already recorded")
			return nil
		}
		return fmt.Errorf("record failed task: %w", err)
	}
	r.logger.Warn(r.logger.WithTaskID(ctx, failure.TaskID.String()),
		fmt.Sprintf("task %s dead-lettered: %v", failure.TaskName, failure.Err))
	return nil
}
