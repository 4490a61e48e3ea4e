package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ariefcatur/go-order-core/internal/apperr"
	"github.com/ariefcatur/go-order-core/internal/logging"
	"github.com/ariefcatur/go-order-core/internal/metrics"
	"github.com/ariefcatur/go-order-core/internal/orders"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("github.com/ariefcatur/go-order-core/internal/payments")

type Notification struct {
	OrderID       string               `json:"order_id"`
	PaymentStatus orders.PaymentStatus `json:"payment_status"`
}

type Result struct {
	OrderID       string               `json:"order_id"`
	PaymentStatus orders.PaymentStatus `json:"payment_status"`
	// Duplicate is true when the order already had this payment status.
	Duplicate bool `json:"duplicate"`
}

// Processor applies authenticated payment notifications to orders. It only
// ever touches payment_status.
type Processor struct {
	Auth   Authenticator
	Store  orders.Store
	Events orders.EventSink
	Now    func() time.Time
	// Source labels metrics, e.g. "http" or "kafka".
	Source string
}

func NewProcessor(auth Authenticator, store orders.Store, events orders.EventSink, source string) *Processor {
	if events == nil {
		events = orders.NopSink{}
	}
	return &Processor{Auth: auth, Store: store, Events: events, Source: source, Now: func() time.Time { return time.Now().UTC() }}
}

func (p *Processor) HandleWebhook(ctx context.Context, rawBody []byte, signature string) (res Result, err error) {
	ctx, span := tracer.Start(ctx, "payments.HandleWebhook")
	defer func() { orders.EndSpan(span, err) }()
	defer func() { metrics.PaymentWebhooks.WithLabelValues(p.Source, resultLabel(res, err)).Inc() }()

	if p.Auth == nil || !p.Auth.Verify(rawBody, signature) {
		if signature == "" {
			return Result{}, apperr.New(apperr.CodeUnauthorized, "missing %s header", SignatureHeader)
		}
		return Result{}, apperr.New(apperr.CodeUnauthorized, "invalid signature")
	}

	n, err := ParseNotification(rawBody)
	if err != nil {
		return Result{}, err
	}
	span.SetAttributes(
		attribute.String("order.id", n.OrderID),
		attribute.String("order.payment_status.to", string(n.PaymentStatus)),
	)

	var from orders.PaymentStatus
	err = p.Store.WithTx(ctx, func(tx orders.Tx) error {
		o, err := tx.LockOrder(ctx, n.OrderID)
		if err != nil {
			return err
		}
		from = o.PaymentStatus
		// retry dari sender dengan status yang sama: no-op
		if o.PaymentStatus == n.PaymentStatus {
			res = Result{OrderID: o.ID, PaymentStatus: o.PaymentStatus, Duplicate: true}
			return nil
		}
		if o.Status != orders.StatusPending {
			return apperr.IllegalTransition("cannot update payment status for order with status %q", o.Status).
				WithDetails(map[string]any{"status": o.Status, "payment_status": o.PaymentStatus})
		}
		if !orders.CanTransitionPayment(o.PaymentStatus, n.PaymentStatus) {
			return apperr.IllegalTransition("cannot change payment status from %q to %q", o.PaymentStatus, n.PaymentStatus).
				WithDetails(map[string]any{"status": o.Status, "payment_status": o.PaymentStatus})
		}

		o.PaymentStatus = n.PaymentStatus
		o.UpdatedAt = p.now()
		if err := tx.SaveOrderState(ctx, o); err != nil {
			return fmt.Errorf("save order: %w", err)
		}
		res = Result{OrderID: o.ID, PaymentStatus: o.PaymentStatus}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	log := logging.FromContext(ctx).With(
		zap.String("order_id", res.OrderID),
		zap.String("payment_status", string(res.PaymentStatus)),
		zap.String("source", p.Source),
	)
	if res.Duplicate {
		log.Info("duplicate payment notification ignored")
		return res, nil
	}
	log.Info("payment status updated", zap.String("from", string(from)))
	p.events().Emit(ctx, orders.Event{
		Type:    orders.EventPaymentStatusChanged,
		OrderID: res.OrderID,
		Payload: orders.PaymentStatusChangedPayload{OrderID: res.OrderID, From: from, To: res.PaymentStatus},
	})
	return res, nil
}

// ParseNotification decodes and validates a notification body. Only paid and
// failed may be reported.
func ParseNotification(rawBody []byte) (Notification, error) {
	var n Notification
	if err := json.Unmarshal(rawBody, &n); err != nil {
		return Notification{}, apperr.Validation("invalid JSON in request body")
	}
	id, err := uuid.Parse(n.OrderID)
	if err != nil {
		return Notification{}, apperr.Validation("invalid order_id %q", n.OrderID)
	}
	if id == uuid.Nil {
		return Notification{}, apperr.Validation("invalid order_id: cannot be nil UUID")
	}
	n.OrderID = id.String()
	if n.PaymentStatus != orders.PaymentPaid && n.PaymentStatus != orders.PaymentFailed {
		return Notification{}, apperr.Validation("invalid payment status from webhook: %q, expected %q or %q",
			n.PaymentStatus, orders.PaymentPaid, orders.PaymentFailed)
	}
	return n, nil
}

func (p *Processor) now() time.Time {
	if p.Now == nil {
		return time.Now().UTC()
	}
	return p.Now()
}

func (p *Processor) events() orders.EventSink {
	if p.Events == nil {
		return orders.NopSink{}
	}
	return p.Events
}

func resultLabel(res Result, err error) string {
	if err == nil && res.Duplicate {
		return "duplicate"
	}
	return metrics.Result(err)
}
