package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/tundeajayi/storefront-backend/api/middleware"
	"github.com/tundeajayi/storefront-backend/api/responses"
	"github.com/tundeajayi/storefront-backend/api/validators"
	internalorders "github.com/tundeajayi/storefront-backend/internal/orders"
	"github.com/tundeajayi/storefront-backend/internal/reservation"
	"github.com/tundeajayi/storefront-backend/pkg/enums"
	pkgerrors "github.com/tundeajayi/storefront-backend/pkg/errors"
	"github.com/tundeajayi/storefront-backend/pkg/logger"
	"github.com/tundeajayi/storefront-backend/pkg/pagination"
)

type orderItemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1"`
}

type createOrderRequest struct {
	Items []orderItemRequest `json:"items" validate:"required,min=1,dive"`
}

type updateOrderStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// OrdersCreate reserves stock for the caller and returns the committed
// order. Contention and shortfall map to their own error codes so clients
// can distinguish retry-later from give-up.
func OrdersCreate(engine reservation.Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if engine == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reservation engine unavailable"))
			return
		}

		userID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		var req createOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]reservation.ItemRequest, 0, len(req.Items))
		for _, item := range req.Items {
			items = append(items, reservation.ItemRequest{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
			})
		}

		order, err := engine.Reserve(r.Context(), userID, items)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

// OrdersDetail returns one order after the ownership check.
func OrdersDetail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		userID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		orderID, err := parseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		caller := internalorders.Caller{
			UserID:     userID,
			Privileged: middleware.IsAdminFromContext(r.Context()),
		}
		order, err := svc.GetOrder(r.Context(), caller, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// OrdersList pages through the caller's own orders, newest first.
func OrdersList(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		userID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cursor := strings.TrimSpace(r.URL.Query().Get("cursor"))

		list, err := svc.ListOrders(r.Context(), userID, pagination.Params{Limit: limit, Cursor: cursor})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// AdminOrdersUpdateStatus moves an order through its fulfillment lifecycle.
func AdminOrdersUpdateStatus(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		orderID, err := parseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req updateOrderStatusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.UpdateStatus(r.Context(), orderID, enums.OrderStatus(strings.ToLower(strings.TrimSpace(req.Status))))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}
