package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tundeajayi/storefront-backend/pkg/enums"
)

// Order is created by the reservation engine; payment and status fields are
// owned by the webhook processor afterwards. Total is derived from item
// snapshots and never hand-edited.
type Order struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	UserID           uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	Status           enums.OrderStatus   `gorm:"column:status;not null;default:'pending';index"`
	PaymentStatus    enums.PaymentStatus `gorm:"column:payment_status;not null;default:'pending';index"`
	PaymentReference string              `gorm:"column:payment_reference;uniqueIndex;not null"`
	Total            decimal.Decimal     `gorm:"column:total;type:numeric(10,2);not null"`
	Items            []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime;index:,sort:desc"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate assigns the primary key when the caller did not.
func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
