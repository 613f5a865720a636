package products

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tundeajayi/storefront-backend/pkg/db/models"
)

// Repository wraps catalog persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// FindByID loads a product regardless of its active flag.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindActiveByIDs loads the active products for the given identifiers.
func (r *Repository) FindActiveByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	var found []models.Product
	if err := r.db.WithContext(ctx).
		Where("id IN ? AND is_active = ?", ids, true).
		Find(&found).Error; err != nil {
		return nil, err
	}
	return found, nil
}

// ListActive returns the active catalog ordered by name.
func (r *Repository) ListActive(ctx context.Context) ([]models.Product, error) {
	var found []models.Product
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("name ASC").
		Find(&found).Error; err != nil {
		return nil, err
	}
	return found, nil
}

// Create persists a new product.
func (r *Repository) Create(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

// Save writes the full product row back.
func (r *Repository) Save(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Save(product).Error
}

// DecrementStock reduces the stock counter for one product. Callers hold the
// product lock, so the guarded expression is a consistency backstop rather
// than the serialization point.
func (r *Repository) DecrementStock(ctx context.Context, id uuid.UUID, quantity int) error {
	result := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND stock_quantity >= ?", id, quantity).
		Update("stock_quantity", gorm.Expr("stock_quantity - ?", quantity))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Deactivate flips the active flag instead of deleting the row, since orders
// keep referencing the product.
func (r *Repository) Deactivate(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		Update("is_active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
