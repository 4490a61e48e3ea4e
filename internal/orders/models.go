package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description *string         `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type Order struct {
	ID            string          `json:"id"`
	CustomerID    int64           `json:"customer_id"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	Status        Status          `json:"status"`         // lihat status.go
	PaymentStatus PaymentStatus   `json:"payment_status"` // lihat status.go
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Items         []OrderItem     `json:"order_items"`
}

type OrderItem struct {
	ID              int64           `json:"id"`
	OrderID         string          `json:"order_id"`
	ProductID       string          `json:"product_id"`
	Quantity        int             `json:"quantity"`
	PriceAtPurchase decimal.Decimal `json:"price_at_purchase"` // snapshot, never recomputed
}

// LineItem is one requested (product, qty) pair of a create request.
type LineItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Subtotal is qty * price_at_purchase.
func (it OrderItem) Subtotal() decimal.Decimal {
	return it.PriceAtPurchase.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

// ItemsTotal sums the subtotals of o's items.
func (o Order) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range o.Items {
		total = total.Add(it.Subtotal())
	}
	return total
}
