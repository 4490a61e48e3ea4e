package orders

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/ariefcatur/go-order-core/internal/apperr"
	"github.com/ariefcatur/go-order-core/internal/inventory"
	"github.com/ariefcatur/go-order-core/internal/logging"
	"github.com/ariefcatur/go-order-core/internal/metrics"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Service is the order lifecycle manager: creation with stock reservation and
// status updates with stock release on cancel.
type Service struct {
	Store  Store
	Ledger inventory.Ledger
	Events EventSink
	Now    func() time.Time
}

func NewService(store Store, events EventSink) *Service {
	if events == nil {
		events = NopSink{}
	}
	return &Service{Store: store, Events: events, Now: func() time.Time { return time.Now().UTC() }}
}

// MaxTotalPrice is the largest total an order row can store (NUMERIC(10,2)).
var MaxTotalPrice = decimal.RequireFromString("99999999.99")

type CreateOrderInput struct {
	CustomerID int64      `json:"customer_id"`
	Items      []LineItem `json:"products"`
}

func (in CreateOrderInput) Validate() error {
	if in.CustomerID <= 0 || in.CustomerID > math.MaxInt32 {
		return apperr.Validation("customer_id must be between 1 and %d", math.MaxInt32)
	}
	if len(in.Items) == 0 {
		return apperr.Validation("at least one product is required")
	}
	for i, it := range in.Items {
		if _, err := uuid.Parse(it.ProductID); err != nil {
			return apperr.Validation("products[%d].product_id is not a valid id", i)
		}
		if it.Quantity <= 0 || it.Quantity > inventory.MaxQuantity {
			return apperr.Validation("products[%d].quantity must be between 1 and %d", i, inventory.MaxQuantity)
		}
	}
	return nil
}

func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (o Order, err error) {
	ctx, span := tracer.Start(ctx, "orders.CreateOrder")
	defer func() { EndSpan(span, err) }()
	defer func() { metrics.OrdersCreated.WithLabelValues(metrics.Result(err)).Inc() }()

	if err := in.Validate(); err != nil {
		return Order{}, err
	}

	err = s.Store.WithTx(ctx, func(tx Tx) error {
		ids := make([]string, 0, len(in.Items))
		for _, it := range in.Items {
			ids = append(ids, it.ProductID)
		}
		products, err := tx.GetProducts(ctx, ids)
		if err != nil {
			return fmt.Errorf("load products: %w", err)
		}

		// hitung total dari harga di table products, bukan dari client
		now := s.now()
		o = Order{
			ID:            uuid.NewString(),
			CustomerID:    in.CustomerID,
			Status:        StatusPending,
			PaymentStatus: PaymentUnpaid,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		lines := make([]inventory.Line, 0, len(in.Items))
		for _, it := range in.Items {
			p, ok := products[it.ProductID]
			if !ok {
				return apperr.ProductNotFound(it.ProductID)
			}
			o.Items = append(o.Items, OrderItem{
				OrderID:         o.ID,
				ProductID:       p.ID,
				Quantity:        it.Quantity,
				PriceAtPurchase: p.Price,
			})
			lines = append(lines, inventory.Line{ProductID: p.ID, Qty: it.Quantity})
		}
		o.TotalPrice = o.ItemsTotal()
		// ditolak sebelum stok disentuh
		if o.TotalPrice.GreaterThan(MaxTotalPrice) {
			return apperr.Validation("order total %s exceeds %s", o.TotalPrice.StringFixed(2), MaxTotalPrice.StringFixed(2))
		}

		if err := s.Ledger.ReserveAll(ctx, tx, lines); err != nil {
			return err
		}
		if err := tx.InsertOrder(ctx, &o); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	logging.FromContext(ctx).Info("order created",
		zap.String("order_id", o.ID),
		zap.Int64("customer_id", o.CustomerID),
		zap.String("total_price", o.TotalPrice.StringFixed(2)),
		zap.Int("items", len(o.Items)),
	)
	s.events().Emit(ctx, createdEvent(o))
	return o, nil
}

// UpdateOrderStatus moves a pending order to completed or canceled. Cancel
// returns every item's quantity to stock in the same transaction.
func (s *Service) UpdateOrderStatus(ctx context.Context, orderID string, to Status) (o Order, err error) {
	ctx, span := tracer.Start(ctx, "orders.UpdateOrderStatus", trace.WithAttributes(
		attribute.String("order.id", orderID),
		attribute.String("order.status.to", string(to)),
	))
	defer func() { EndSpan(span, err) }()
	defer func() { metrics.OrderStatusUpdates.WithLabelValues(statusLabel(to), metrics.Result(err)).Inc() }()

	if _, err := uuid.Parse(orderID); err != nil {
		return Order{}, apperr.OrderNotFound(orderID)
	}

	var from Status
	var restored bool
	err = s.Store.WithTx(ctx, func(tx Tx) error {
		cur, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if to != StatusCompleted && to != StatusCanceled {
			return apperr.Validation("status must be one of %q, %q", StatusCompleted, StatusCanceled)
		}
		if !CanTransition(cur.Status, to) {
			return apperr.IllegalTransition("cannot transition order status from %q to %q", cur.Status, to).
				WithDetails(map[string]any{"from": cur.Status, "to": to, "allowed": cur.Status.Next()})
		}

		if cur.Status == StatusPending && to == StatusCanceled {
			lines := make([]inventory.Line, 0, len(cur.Items))
			for _, it := range cur.Items {
				lines = append(lines, inventory.Line{ProductID: it.ProductID, Qty: it.Quantity})
			}
			if err := s.Ledger.ReleaseAll(ctx, tx, lines); err != nil {
				return fmt.Errorf("release stock: %w", err)
			}
			restored = true
		}

		from = cur.Status
		cur.Status = to
		cur.UpdatedAt = s.now()
		if err := tx.SaveOrderState(ctx, cur); err != nil {
			return fmt.Errorf("save order: %w", err)
		}
		o = cur
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	logging.FromContext(ctx).Info("order status updated",
		zap.String("order_id", o.ID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.Bool("stock_restored", restored),
	)
	s.events().Emit(ctx, Event{
		Type:    EventOrderStatusChanged,
		OrderID: o.ID,
		Payload: OrderStatusChangedPayload{OrderID: o.ID, From: from, To: to, StockRestored: restored},
	})
	return o, nil
}

func (s *Service) GetOrder(ctx context.Context, orderID string) (Order, error) {
	if _, err := uuid.Parse(orderID); err != nil {
		return Order{}, apperr.OrderNotFound(orderID)
	}
	return s.Store.GetOrder(ctx, orderID)
}

func (s *Service) ListOrders(ctx context.Context, f ListFilter) (Page, error) {
	if f.Page == 0 {
		f.Page = 1
	}
	if f.PageSize == 0 {
		f.PageSize = DefaultPageSize
	}
	if f.Page < 1 {
		return Page{}, apperr.Validation("page must be >= 1")
	}
	if f.PageSize < 1 || f.PageSize > MaxPageSize {
		return Page{}, apperr.Validation("page_size must be between 1 and %d", MaxPageSize)
	}
	if f.Status != "" && !f.Status.Valid() {
		return Page{}, apperr.Validation("unknown status %q", f.Status)
	}
	if f.PaymentStatus != "" && !f.PaymentStatus.Valid() {
		return Page{}, apperr.Validation("unknown payment_status %q", f.PaymentStatus)
	}

	items, total, err := s.Store.ListOrders(ctx, f)
	if err != nil {
		return Page{}, fmt.Errorf("list orders: %w", err)
	}
	if items == nil {
		items = []Order{}
	}
	pages := 0
	if total > 0 {
		pages = (total + f.PageSize - 1) / f.PageSize
	}
	return Page{Items: items, Total: total, Page: f.Page, PageSize: f.PageSize, TotalPages: pages}, nil
}

func (s *Service) GetProduct(ctx context.Context, productID string) (Product, error) {
	if _, err := uuid.Parse(productID); err != nil {
		return Product{}, apperr.ProductNotFound(productID)
	}
	return s.Store.GetProduct(ctx, productID)
}

func (s *Service) ListProducts(ctx context.Context) ([]Product, error) {
	return s.Store.ListProducts(ctx)
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now()
}

func (s *Service) events() EventSink {
	if s.Events == nil {
		return NopSink{}
	}
	return s.Events
}

func statusLabel(s Status) string {
	if s.Valid() {
		return string(s)
	}
	return "invalid"
}
