package controllers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/tundeajayi/storefront-backend/api/responses"
	"github.com/tundeajayi/storefront-backend/internal/deadletter"
	"github.com/tundeajayi/storefront-backend/pkg/db/models"
	"github.com/tundeajayi/storefront-backend/pkg/enums"
	pkgerrors "github.com/tundeajayi/storefront-backend/pkg/errors"
	"github.com/tundeajayi/storefront-backend/pkg/logger"
)

type failedTaskDTO struct {
	ID        uuid.UUID       `json:"id"`
	TaskName  enums.TaskName  `json:"task_name"`
	TaskID    uuid.UUID       `json:"task_id"`
	Args      json.RawMessage `json:"args"`
	Error     string          `json:"error"`
	FailedAt  time.Time       `json:"failed_at"`
	Retried   bool            `json:"retried"`
	RetriedAt *time.Time      `json:"retried_at,omitempty"`
}

func toFailedTaskDTOs(tasks []models.FailedTask) []failedTaskDTO {
	dtos := make([]failedTaskDTO, 0, len(tasks))
	for _, task := range tasks {
		dtos = append(dtos, failedTaskDTO{
			ID:        task.ID,
			TaskName:  task.TaskName,
			TaskID:    task.TaskID,
			Args:      task.Args,
			Error:     task.Error,
			FailedAt:  task.FailedAt,
			Retried:   task.Retried,
			RetriedAt: task.RetriedAt,
		})
	}
	return dtos
}

// AdminFailedTasksList returns dead-letter records awaiting replay.
func AdminFailedTasksList(repo *deadletter.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dead-letter repository unavailable"))
			return
		}

		tasks, err := repo.ListUnretried(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list failed tasks"))
			return
		}
		responses.WriteSuccess(w, map[string]any{"failed_tasks": toFailedTaskDTOs(tasks)})
	}
}

// AdminFailedTaskReplay resubmits one dead-lettered task back onto the queue.
func AdminFailedTaskReplay(replayer *deadletter.Replayer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if replayer == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "replayer unavailable"))
			return
		}

		taskID, err := parseUUIDParam(r, "taskId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := replayer.ReplayByTaskID(r.Context(), taskID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "replayed", "task_id": taskID.String()})
	}
}

// AdminFailedTasksReplayAll resubmits every task not yet replayed.
func AdminFailedTasksReplayAll(replayer *deadletter.Replayer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if replayer == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "replayer unavailable"))
			return
		}

		count, err := replayer.ReplayAll(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "replayed", "count": count})
	}
}
