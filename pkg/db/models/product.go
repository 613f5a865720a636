package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is the authoritative catalog row. StockQuantity is mutated only
// inside a reservation transaction while the product lock is held, or by an
// administrative edit. Rows are never hard-deleted while orders reference
// them; deactivation flips IsActive.
type Product struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Name          string          `gorm:"column:name;not null"`
	Price         decimal.Decimal `gorm:"column:price;type:numeric(10,2);not null"`
	StockQuantity int             `gorm:"column:stock_quantity;not null"`
	IsActive      bool            `gorm:"column:is_active;not null;default:true"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate assigns the primary key when the caller did not.
func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
