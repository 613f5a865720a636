package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tundeajayi/storefront-backend/pkg/enums"
)

// EmailLog marks that a given email type was sent for an order. The unique
// (order_id, email_type) pair is what makes the confirmation task safe to
// retry: a violation on insert means the mail already went out.
type EmailLog struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID   uuid.UUID       `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_email_logs_order_type"`
	EmailType enums.EmailType `gorm:"column:email_type;not null;uniqueIndex:ux_email_logs_order_type"`
	SentAt    time.Time       `gorm:"column:sent_at;autoCreateTime"`
}

// BeforeCreate assigns the primary key when the caller did not.
func (e *EmailLog) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
