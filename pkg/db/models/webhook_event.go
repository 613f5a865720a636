package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tundeajayi/storefront-backend/pkg/enums"
)

// WebhookEvent records one external provider notification. EventID is the
// deduplication key; once Processed is set the event's side effects are never
// reapplied. ArchivedAt/DeletedAt drive the retention job.
type WebhookEvent struct {
	ID          uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	EventID     string                 `gorm:"column:event_id;uniqueIndex;not null"`
	EventType   enums.WebhookEventType `gorm:"column:event_type;not null"`
	Payload     json.RawMessage        `gorm:"column:payload;type:jsonb;not null"`
	Processed   bool                   `gorm:"column:processed;not null;default:false;index"`
	ProcessedAt *time.Time             `gorm:"column:processed_at"`
	ArchivedAt  *time.Time             `gorm:"column:archived_at"`
	CreatedAt   time.Time              `gorm:"column:created_at;autoCreateTime"`
}

// BeforeCreate assigns the primary key when the caller did not.
func (w *WebhookEvent) BeforeCreate(tx *gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}
