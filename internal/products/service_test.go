package products

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tundeajayi/storefront-backend/pkg/config"
	"github.com/tundeajayi/storefront-backend/pkg/db/models"
	pkgerrors "github.com/tundeajayi/storefront-backend/pkg/errors"
	"github.com/tundeajayi/storefront-backend/pkg/logger"
	"github.com/tundeajayi/storefront-backend/pkg/redis"
)

type fakeCache struct {
	values map[string]string
	gets   int
	dels   int
}

func newFakeCache() *fakeCache {
	return &fakeCache{values: map[string]string{}}
}

func (f *fakeCache) Get(_ context.Context, key string) (string, error) {
	f.gets++
	value, ok := f.values[key]
	if !ok {
		return "", redis.Nil
	}
	return value, nil
}

func (f *fakeCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	f.values[key] = value.(string)
	return nil
}

func (f *fakeCache) Del(_ context.Context, keys ...string) error {
	f.dels++
	for _, key := range keys {
		delete(f.values, key)
	}
	return nil
}

func (f *fakeCache) CacheKey(scope string) string { return "sf:cache:" + scope }

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:products_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(&models.Product{}); err != nil {
		t.Fatalf("migrate products: %v", err)
	}
	return conn
}

func newTestService(t *testing.T, conn *gorm.DB, cache *fakeCache) Service {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "products-test"})
	svc, err := NewService(NewRepository(conn), cache, config.CatalogConfig{CacheTTL: time.Minute}, logg)
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	return svc
}

func seedProduct(t *testing.T, conn *gorm.DB, name string, stock int, active bool) *models.Product {
	t.Helper()
	product := &models.Product{
		Name:          name,
		Price:         decimal.NewFromFloat(9.99),
		StockQuantity: stock,
		IsActive:      active,
	}
	if err := conn.Create(product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product
}

func TestListActiveUsesCacheOnSecondRead(t *testing.T) {
	conn := newTestDB(t)
	cache := newFakeCache()
	svc := newTestService(t, conn, cache)
	ctx := context.Background()

	seedProduct(t, conn, "Widget", 10, true)
	seedProduct(t, conn, "Retired", 0, false)

	first, err := svc.ListActive(ctx)
	if err != nil {
		t.Fatalf("first list: %v", err)
	}
	if len(first) != 1 || first[0].Name != "Widget" {
		t.Fatalf("unexpected first listing: %+v", first)
	}

	// a direct insert is invisible until the cache expires or is invalidated
	seedProduct(t, conn, "Sneaky", 3, true)
	second, err := svc.ListActive(ctx)
	if err != nil {
		t.Fatalf("second list: %v", err)
	}
	if len(second) != 1 {
		t.Fatalf("expected cached listing of 1, got %d", len(second))
	}
}

func TestCreateProductInvalidatesCache(t *testing.T) {
	conn := newTestDB(t)
	cache := newFakeCache()
	svc := newTestService(t, conn, cache)
	ctx := context.Background()

	seedProduct(t, conn, "Widget", 10, true)
	if _, err := svc.ListActive(ctx); err != nil {
		t.Fatalf("warm cache: %v", err)
	}

	created, err := svc.CreateProduct(ctx, CreateProductInput{
		Name:          "Gadget",
		Price:         decimal.NewFromFloat(19.50),
		StockQuantity: 4,
		IsActive:      true,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == uuid.Nil {
		t.Fatalf("expected generated id")
	}
	if cache.dels == 0 {
		t.Fatalf("expected cache invalidation on create")
	}

	listed, err := svc.ListActive(ctx)
	if err != nil {
		t.Fatalf("list after create: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("expected 2 products, got %d", len(listed))
	}
}

func TestCreateProductValidation(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn, newFakeCache())
	ctx := context.Background()

	cases := []struct {
		name  string
		input CreateProductInput
	}{
		{"empty name", CreateProductInput{Name: "  ", Price: decimal.NewFromInt(1)}},
		{"negative price", CreateProductInput{Name: "Widget", Price: decimal.NewFromInt(-1)}},
		{"negative stock", CreateProductInput{Name: "Widget", Price: decimal.NewFromInt(1), StockQuantity: -2}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateProduct(ctx, tc.input)
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestGetProductHidesInactive(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn, newFakeCache())
	ctx := context.Background()

	active := seedProduct(t, conn, "Widget", 10, true)
	inactive := seedProduct(t, conn, "Retired", 0, false)

	got, err := svc.GetProduct(ctx, active.ID)
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	if got.Name != "Widget" {
		t.Fatalf("unexpected product: %+v", got)
	}

	if _, err := svc.GetProduct(ctx, inactive.ID); err == nil {
		t.Fatalf("expected not found for inactive product")
	} else if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUpdateProductAppliesPartialFields(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn, newFakeCache())
	ctx := context.Background()

	product := seedProduct(t, conn, "Widget", 10, true)
	newPrice := decimal.NewFromFloat(12.25)
	updated, err := svc.UpdateProduct(ctx, product.ID, UpdateProductInput{Price: &newPrice})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !updated.Price.Equal(newPrice) {
		t.Fatalf("price not applied: %s", updated.Price)
	}
	if updated.Name != "Widget" || updated.StockQuantity != 10 {
		t.Fatalf("untouched fields changed: %+v", updated)
	}
}

func TestDeactivateProductKeepsRow(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn, newFakeCache())
	ctx := context.Background()

	product := seedProduct(t, conn, "Widget", 10, true)
	if err := svc.DeactivateProduct(ctx, product.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	var stored models.Product
	if err := conn.First(&stored, "id = ?", product.ID).Error; err != nil {
		t.Fatalf("row should survive deactivation: %v", err)
	}
	if stored.IsActive {
		t.Fatalf("expected inactive product")
	}

	if err := svc.DeactivateProduct(ctx, uuid.New()); err == nil {
		t.Fatalf("expected not found for unknown product")
	}
}

func TestDecrementStockGuardsAgainstOverdraw(t *testing.T) {
	conn := newTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	product := seedProduct(t, conn, "Widget", 5, true)
	if err := repo.DecrementStock(ctx, product.ID, 3); err != nil {
		t.Fatalf("decrement: %v", err)
	}
	if err := repo.DecrementStock(ctx, product.ID, 3); err == nil {
		t.Fatalf("expected overdraw rejection")
	}

	var stored models.Product
	if err := conn.First(&stored, "id = ?", product.ID).Error; err != nil {
		t.Fatalf("reload product: %v", err)
	}
	if stored.StockQuantity != 2 {
		t.Fatalf("expected stock 2, got %d", stored.StockQuantity)
	}
}
