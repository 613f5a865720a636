package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tundeajayi/storefront-backend/api/middleware"
	internalorders "github.com/tundeajayi/storefront-backend/internal/orders"
	"github.com/tundeajayi/storefront-backend/internal/reservation"
	"github.com/tundeajayi/storefront-backend/pkg/enums"
	pkgerrors "github.com/tundeajayi/storefront-backend/pkg/errors"
	"github.com/tundeajayi/storefront-backend/pkg/logger"
	"github.com/tundeajayi/storefront-backend/pkg/pagination"
	"github.com/tundeajayi/storefront-backend/pkg/types"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("debug"), Output: io.Discard})
}

type stubEngine struct {
	gotUserID uuid.UUID
	gotItems  []reservation.ItemRequest
	result    *internalorders.OrderDTO
	err       error
}

func (s *stubEngine) Reserve(ctx context.Context, userID uuid.UUID, items []reservation.ItemRequest) (*internalorders.OrderDTO, error) {
	s.gotUserID = userID
	s.gotItems = items
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

type stubOrderService struct {
	order *internalorders.OrderDTO
	list  *internalorders.OrderList
	err   error
}

func (s *stubOrderService) GetOrder(ctx context.Context, caller internalorders.Caller, orderID uuid.UUID) (*internalorders.OrderDTO, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.order, nil
}

func (s *stubOrderService) ListOrders(ctx context.Context, userID uuid.UUID, params pagination.Params) (*internalorders.OrderList, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.list, nil
}

func (s *stubOrderService) UpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) (*internalorders.OrderDTO, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.order, nil
}

func TestOrdersCreate(t *testing.T) {
	logg := testLogger()
	userID := uuid.New()
	productID := uuid.New()

	t.Run("missing user", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(`{"items":[]}`))
		rec := httptest.NewRecorder()
		OrdersCreate(&stubEngine{}, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401 when user missing, got %d", rec.Code)
		}
	})

	t.Run("empty items rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(`{"items":[]}`))
		req = req.WithContext(middleware.WithUserID(context.Background(), userID))
		rec := httptest.NewRecorder()
		OrdersCreate(&stubEngine{}, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for empty items, got %d", rec.Code)
		}
	})

	t.Run("success", func(t *testing.T) {
		stub := &stubEngine{result: &internalorders.OrderDTO{
			ID:     uuid.New(),
			UserID: userID,
			Status: enums.OrderStatusPending,
			Total:  decimal.NewFromInt(30),
		}}
		body := `{"items":[{"product_id":"` + productID.String() + `","quantity":3}]}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body))
		req = req.WithContext(middleware.WithUserID(context.Background(), userID))
		rec := httptest.NewRecorder()
		OrdersCreate(stub, logg).ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if stub.gotUserID != userID {
			t.Fatalf("engine called with user %s, want %s", stub.gotUserID, userID)
		}
		if len(stub.gotItems) != 1 || stub.gotItems[0].ProductID != productID || stub.gotItems[0].Quantity != 3 {
			t.Fatalf("engine called with unexpected lines: %+v", stub.gotItems)
		}
	})

	t.Run("shortfall maps to 422", func(t *testing.T) {
		stub := &stubEngine{err: pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock for Mug")}
		body := `{"items":[{"product_id":"` + productID.String() + `","quantity":99}]}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body))
		req = req.WithContext(middleware.WithUserID(context.Background(), userID))
		rec := httptest.NewRecorder()
		OrdersCreate(stub, logg).ServeHTTP(rec, req)

		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
		var envelope types.ErrorEnvelope
		if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
			t.Fatalf("failed to decode error envelope: %v", err)
		}
		if envelope.Error.Code != string(pkgerrors.CodeInsufficientStock) {
			t.Fatalf("unexpected error code %s", envelope.Error.Code)
		}
	})

	t.Run("contention maps to 409", func(t *testing.T) {
		stub := &stubEngine{err: pkgerrors.New(pkgerrors.CodeContention, "resource busy, retry")}
		body := `{"items":[{"product_id":"` + productID.String() + `","quantity":1}]}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body))
		req = req.WithContext(middleware.WithUserID(context.Background(), userID))
		rec := httptest.NewRecorder()
		OrdersCreate(stub, logg).ServeHTTP(rec, req)

		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
	})
}

func TestOrdersDetail(t *testing.T) {
	logg := testLogger()
	userID := uuid.New()
	orderID := uuid.New()

	makeRequest := func(svc internalorders.Service, rawID string, ctx context.Context) *httptest.ResponseRecorder {
		routeCtx := chi.NewRouteContext()
		routeCtx.URLParams.Add("orderId", rawID)
		ctx = context.WithValue(ctx, chi.RouteCtxKey, routeCtx)
		req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/"+rawID, nil)
		req = req.WithContext(ctx)
		rec := httptest.NewRecorder()
		OrdersDetail(svc, logg).ServeHTTP(rec, req)
		return rec
	}

	t.Run("invalid order id", func(t *testing.T) {
		ctx := middleware.WithUserID(context.Background(), userID)
		rec := makeRequest(&stubOrderService{}, "not-a-uuid", ctx)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for invalid id, got %d", rec.Code)
		}
	})

	t.Run("foreign order hidden", func(t *testing.T) {
		svc := &stubOrderService{err: pkgerrors.New(pkgerrors.CodeNotFound, "order not found")}
		ctx := middleware.WithUserID(context.Background(), userID)
		rec := makeRequest(svc, orderID.String(), ctx)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404 for foreign order, got %d", rec.Code)
		}
	})

	t.Run("success", func(t *testing.T) {
		svc := &stubOrderService{order: &internalorders.OrderDTO{ID: orderID, UserID: userID}}
		ctx := middleware.WithUserID(context.Background(), userID)
		rec := makeRequest(svc, orderID.String(), ctx)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
	})
}

func TestAdminOrdersUpdateStatus(t *testing.T) {
	logg := testLogger()
	orderID := uuid.New()

	makeRequest := func(svc internalorders.Service, body string) *httptest.ResponseRecorder {
		routeCtx := chi.NewRouteContext()
		routeCtx.URLParams.Add("orderId", orderID.String())
		ctx := context.WithValue(context.Background(), chi.RouteCtxKey, routeCtx)
		req := httptest.NewRequest(http.MethodPatch, "/api/admin/v1/orders/"+orderID.String()+"/status", strings.NewReader(body))
		req = req.WithContext(ctx)
		rec := httptest.NewRecorder()
		AdminOrdersUpdateStatus(svc, logg).ServeHTTP(rec, req)
		return rec
	}

	t.Run("unknown status rejected by service", func(t *testing.T) {
		svc := &stubOrderService{err: pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")}
		rec := makeRequest(svc, `{"status":"teleported"}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for unknown status, got %d", rec.Code)
		}
	})

	t.Run("success", func(t *testing.T) {
		svc := &stubOrderService{order: &internalorders.OrderDTO{ID: orderID, Status: enums.OrderStatusShipped}}
		rec := makeRequest(svc, `{"status":"shipped"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
	})
}
