package deadletter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tundeajayi/storefront-backend/pkg/db/models"
	"github.com/tundeajayi/storefront-backend/pkg/enums"
	pkgerrors "github.com/tundeajayi/storefront-backend/pkg/errors"
	"github.com/tundeajayi/storefront-backend/pkg/logger"
)

type resubmitter interface {
	Resubmit(ctx context.Context, name enums.TaskName, args json.RawMessage) error
}

// Replayer pushes dead-lettered tasks back onto the queue. Replays keep the
// audit row and stamp it retried; the resubmitted task runs under a fresh
// task identifier so a second failure dead-letters cleanly again.
type Replayer struct {
	repo     *Repository
	producer resubmitter
	logger   *logger.Logger

	now func() time.Time
}

// NewReplayer constructs the replayer.
func NewReplayer(repo *Repository, producer resubmitter, logg *logger.Logger) (*Replayer, error) {
	if repo == nil {
		return nil, fmt.Errorf("deadletter repository required")
	}
	if producer == nil {
		return nil, fmt.Errorf("task producer required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Replayer{repo: repo, producer: producer, logger: logg, now: time.Now}, nil
}

// ReplayByTaskID resubmits one specific dead-letter by its originating task
// identifier.
func (r *Replayer) ReplayByTaskID(ctx context.Context, taskID uuid.UUID) error {
	task, err := r.repo.FindByTaskID(ctx, taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("no failed task with id %s", taskID))
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load failed task")
	}
	if task.Retried {
		return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("task %s was already replayed", taskID))
	}
	return r.replay(ctx, task)
}

// ReplayAll resubmits every un-retried dead-letter and returns how many were
// replayed.
func (r *Replayer) ReplayAll(ctx context.Context) (int, error) {
	pending, err := r.repo.ListUnretried(ctx)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list failed tasks")
	}
	replayed := 0
	for i := range pending {
		if err := r.replay(ctx, &pending[i]); err != nil {
			return replayed, err
		}
		replayed++
	}
	return replayed, nil
}

func (r *Replayer) replay(ctx context.Context, task *models.FailedTask) error {
	ctx = r.logger.WithTaskID(ctx, task.TaskID.String())
	if err := r.producer.Resubmit(ctx, task.TaskName, task.Args); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resubmit failed task")
	}
	if err := r.repo.MarkRetried(ctx, task.ID, r.now().UTC()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark task retried")
	}
	r.logger.Info(ctx, fmt.Sprintf("replayed dead-lettered task %s", task.TaskName))
	return nil
}
