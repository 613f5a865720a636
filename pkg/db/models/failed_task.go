package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tundeajayi/storefront-backend/pkg/enums"
)

// FailedTask is the dead-letter record for a task whose retries are
// exhausted. Created only by the task runner's terminal-failure hook;
// mutated only by the replayer, which stamps Retried/RetriedAt and keeps the
// row as an audit trail.
type FailedTask struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	TaskName  enums.TaskName  `gorm:"column:task_name;not null;index"`
	TaskID    uuid.UUID       `gorm:"column:task_id;type:uuid;not null;uniqueIndex"`
	Args      json.RawMessage `gorm:"column:args;type:jsonb;not null"`
	Error     string          `gorm:"column:error;not null"`
	Trace     string          `gorm:"column:trace"`
	FailedAt  time.Time       `gorm:"column:failed_at;autoCreateTime;index"`
	Retried   bool            `gorm:"column:retried;not null;default:false;index"`
	RetriedAt *time.Time      `gorm:"column:retried_at"`
}

// BeforeCreate assigns the primary key when the caller did not.
func (f *FailedTask) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}
