package products

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tundeajayi/storefront-backend/pkg/config"
	"github.com/tundeajayi/storefront-backend/pkg/db/models"
	pkgerrors "github.com/tundeajayi/storefront-backend/pkg/errors"
	"github.com/tundeajayi/storefront-backend/pkg/logger"
	"github.com/tundeajayi/storefront-backend/pkg/redis"
)

const catalogCacheScope = "catalog:active"

// Service exposes catalog read and administration operations.
type Service interface {
	ListActive(ctx context.Context) ([]ProductDTO, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*ProductDTO, error)
	CreateProduct(ctx context.Context, input CreateProductInput) (*ProductDTO, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, input UpdateProductInput) (*ProductDTO, error)
	DeactivateProduct(ctx context.Context, id uuid.UUID) error
}

// CreateProductInput holds the validated payload to create a product.
type CreateProductInput struct {
	Name          string
	Price         decimal.Decimal
	StockQuantity int
	IsActive      bool
}

// UpdateProductInput holds optional mutation values for a product.
type UpdateProductInput struct {
	Name          *string
	Price         *decimal.Decimal
	StockQuantity *int
	IsActive      *bool
}

type cacheStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	CacheKey(scope string) string
}

type service struct {
	repo     *Repository
	cache    cacheStore
	cacheTTL time.Duration
	logger   *logger.Logger
}

// NewService constructs the catalog service. The cache is optional; without
// it every list goes to the database.
func NewService(repo *Repository, cache cacheStore, cfg config.CatalogConfig, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, cache: cache, cacheTTL: cfg.CacheTTL, logger: logg}, nil
}

// ListActive returns the active catalog, served from a short-lived cache
// when available. The cache is never consulted by the reservation path, so
// brief staleness here is acceptable.
func (s *service) ListActive(ctx context.Context) ([]ProductDTO, error) {
	if cached, ok := s.readCache(ctx); ok {
		return cached, nil
	}
	found, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list products")
	}
	dtos := toDTOs(found)
	s.writeCache(ctx, dtos)
	return dtos, nil
}

// GetProduct returns an active product by identifier.
func (s *service) GetProduct(ctx context.Context, id uuid.UUID) (*ProductDTO, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	if !product.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return toDTO(product), nil
}

// CreateProduct persists a new catalog entry.
func (s *service) CreateProduct(ctx context.Context, input CreateProductInput) (*ProductDTO, error) {
	if err := validateName(input.Name); err != nil {
		return nil, err
	}
	if input.Price.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
	}
	if input.StockQuantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock_quantity cannot be negative")
	}
	product := &models.Product{
		Name:          strings.TrimSpace(input.Name),
		Price:         input.Price,
		StockQuantity: input.StockQuantity,
		IsActive:      input.IsActive,
	}
	if err := s.repo.Create(ctx, product); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create product")
	}
	s.invalidateCache(ctx)
	return toDTO(product), nil
}

// UpdateProduct applies the provided fields to an existing product.
func (s *service) UpdateProduct(ctx context.Context, id uuid.UUID, input UpdateProductInput) (*ProductDTO, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	if input.Name != nil {
		if err := validateName(*input.Name); err != nil {
			return nil, err
		}
		product.Name = strings.TrimSpace(*input.Name)
	}
	if input.Price != nil {
		if input.Price.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
		}
		product.Price = *input.Price
	}
	if input.StockQuantity != nil {
		if *input.StockQuantity < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock_quantity cannot be negative")
		}
		product.StockQuantity = *input.StockQuantity
	}
	if input.IsActive != nil {
		product.IsActive = *input.IsActive
	}
	if err := s.repo.Save(ctx, product); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update product")
	}
	s.invalidateCache(ctx)
	return toDTO(product), nil
}

// DeactivateProduct soft-deletes the product by flipping its active flag.
func (s *service) DeactivateProduct(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Deactivate(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "deactivate product")
	}
	s.invalidateCache(ctx)
	return nil
}

func (s *service) readCache(ctx context.Context) ([]ProductDTO, bool) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return nil, false
	}
	raw, err := s.cache.Get(ctx, s.cache.CacheKey(catalogCacheScope))
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn(ctx, fmt.Sprintf("catalog cache read failed: %v", err))
		}
		return nil, false
	}
	var dtos []ProductDTO
	if err := json.Unmarshal([]byte(raw), &dtos); err != nil {
		s.logger.Warn(ctx, fmt.Sprintf("catalog cache decode failed: %v", err))
		return nil, false
	}
	return dtos, true
}

func (s *service) writeCache(ctx context.Context, dtos []ProductDTO) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return
	}
	encoded, err := json.Marshal(dtos)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, s.cache.CacheKey(catalogCacheScope), string(encoded), s.cacheTTL); err != nil {
		s.logger.Warn(ctx, fmt.Sprintf("catalog cache write failed: %v", err))
	}
}

func (s *service) invalidateCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, s.cache.CacheKey(catalogCacheScope)); err != nil {
		s.logger.Warn(ctx, fmt.Sprintf("catalog cache invalidation failed: %v", err))
	}
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	return nil
}
