package orders

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tundeajayi/storefront-backend/pkg/db/models"
	"github.com/tundeajayi/storefront-backend/pkg/enums"
)

// OrderItemDTO is the read shape of one order line.
type OrderItemDTO struct {
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name,omitempty"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// OrderDTO is the read shape of an order with its items.
type OrderDTO struct {
	ID               uuid.UUID           `json:"id"`
	UserID           uuid.UUID           `json:"user_id"`
	Status           enums.OrderStatus   `json:"status"`
	PaymentStatus    enums.PaymentStatus `json:"payment_status"`
	PaymentReference string              `json:"payment_reference"`
	Total            decimal.Decimal     `json:"total"`
	Items            []OrderItemDTO      `json:"items"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

// OrderList wraps a page of orders plus the next page cursor.
type OrderList struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

// ToDTO maps an order row and its loaded items into the read shape.
func ToDTO(order *models.Order) *OrderDTO {
	if order == nil {
		return nil
	}
	items := make([]OrderItemDTO, 0, len(order.Items))
	for _, item := range order.Items {
		dto := OrderItemDTO{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
			Subtotal:  item.Subtotal(),
		}
		if item.Product != nil {
			dto.ProductName = item.Product.Name
		}
		items = append(items, dto)
	}
	return &OrderDTO{
		ID:               order.ID,
		UserID:           order.UserID,
		Status:           order.Status,
		PaymentStatus:    order.PaymentStatus,
		PaymentReference: order.PaymentReference,
		Total:            order.Total,
		Items:            items,
		CreatedAt:        order.CreatedAt,
		UpdatedAt:        order.UpdatedAt,
	}
}

func toDTOs(found []models.Order) []OrderDTO {
	out := make([]OrderDTO, 0, len(found))
	for i := range found {
		out = append(out, *ToDTO(&found[i]))
	}
	return out
}

// NewPaymentReference generates the idempotency correlation key sent to the
// payment provider, e.g. ORD-3F2A9C1B7D4E.
func NewPaymentReference() string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failure is unrecoverable for reference generation
		panic(err)
	}
	return "ORD-" + strings.ToUpper(hex.EncodeToString(buf))
}
