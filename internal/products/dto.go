package products

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tundeajayi/storefront-backend/pkg/db/models"
)

// ProductDTO is the read shape exposed by catalog endpoints.
type ProductDTO struct {
	ID            uuid.UUID       `json:"id"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock_quantity"`
	IsActive      bool            `json:"is_active"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func toDTO(product *models.Product) *ProductDTO {
	if product == nil {
		return nil
	}
	return &ProductDTO{
		ID:            product.ID,
		Name:          product.Name,
		Price:         product.Price,
		StockQuantity: product.StockQuantity,
		IsActive:      product.IsActive,
		CreatedAt:     product.CreatedAt,
		UpdatedAt:     product.UpdatedAt,
	}
}

func toDTOs(found []models.Product) []ProductDTO {
	out := make([]ProductDTO, 0, len(found))
	for i := range found {
		out = append(out, *toDTO(&found[i]))
	}
	return out
}
