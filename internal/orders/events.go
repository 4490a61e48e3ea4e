package orders

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventOrderCreated         = "OrderCreated"
	EventOrderStatusChanged   = "OrderStatusChanged"
	EventPaymentStatusChanged = "PaymentStatusChanged"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // salah satu const di atas
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`   // RFC3339
	Producer      string          `json:"producer"`      // e.g., "order-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // biasanya order_id
	Payload       json.RawMessage `json:"payload"`
}

// ---- Payload tipe per event ----

type ItemPrice struct {
	ProductID       string          `json:"product_id"`
	Qty             int             `json:"qty"`
	PriceAtPurchase decimal.Decimal `json:"price_at_purchase"`
}

type OrderCreatedPayload struct {
	OrderID    string          `json:"order_id"`
	CustomerID int64           `json:"customer_id"`
	Items      []ItemPrice     `json:"items"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

type OrderStatusChangedPayload struct {
	OrderID       string `json:"order_id"`
	From          Status `json:"from"`
	To            Status `json:"to"`
	StockRestored bool   `json:"stock_restored"`
}

type PaymentStatusChangedPayload struct {
	OrderID string        `json:"order_id"`
	From    PaymentStatus `json:"from"`
	To      PaymentStatus `json:"to"`
}

// Event is what the core hands to an EventSink; the sink wraps it in an
// Envelope on the way out.
type Event struct {
	Type    string
	OrderID string
	Payload any
}

// EventSink receives domain events after their transaction committed.
// Emit must not block on the network.
type EventSink interface {
	Emit(ctx context.Context, ev Event)
}

type NopSink struct{}

func (NopSink) Emit(context.Context, Event) {}

func createdEvent(o Order) Event {
	items := make([]ItemPrice, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, ItemPrice{ProductID: it.ProductID, Qty: it.Quantity, PriceAtPurchase: it.PriceAtPurchase})
	}
	return Event{
		Type:    EventOrderCreated,
		OrderID: o.ID,
		Payload: OrderCreatedPayload{OrderID: o.ID, CustomerID: o.CustomerID, Items: items, TotalPrice: o.TotalPrice},
	}
}
