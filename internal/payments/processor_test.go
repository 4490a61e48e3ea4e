package payments_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/ariefcatur/go-order-core/internal/apperr"
	"github.com/ariefcatur/go-order-core/internal/memory"
	"github.com/ariefcatur/go-order-core/internal/orders"
	"github.com/ariefcatur/go-order-core/internal/payments"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "dev_webhook_secret_key"

// countingStore records whether the processor reached the store at all.
type countingStore struct {
	orders.Store
	mu    sync.Mutex
	calls int
}

func (c *countingStore) WithTx(ctx context.Context, fn func(tx orders.Tx) error) error {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.Store.WithTx(ctx, fn)
}

type fixture struct {
	ctx   context.Context
	st    *memory.Store
	cs    *countingStore
	auth  *payments.HMACAuthenticator
	proc  *payments.Processor
	svc   *orders.Service
	prod  orders.Product
	order orders.Order
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{ctx: context.Background(), st: memory.New()}
	f.cs = &countingStore{Store: f.st}
	f.auth = payments.NewHMACAuthenticator([]byte(secret))
	f.proc = payments.NewProcessor(f.auth, f.cs, nil, "test")
	f.svc = orders.NewService(f.st, nil)

	f.prod = orders.Product{ID: uuid.NewString(), Name: "P", Price: decimal.RequireFromString("10.00"), Quantity: 5}
	f.st.PutProduct(f.prod)
	o, err := f.svc.CreateOrder(f.ctx, orders.CreateOrderInput{CustomerID: 1, Items: []orders.LineItem{{ProductID: f.prod.ID, Quantity: 2}}})
	require.NoError(t, err)
	f.order = o
	return f
}

func (f *fixture) body(orderID, status string) []byte {
	return []byte(fmt.Sprintf(`{"order_id": %q, "payment_status": %q}`, orderID, status))
}

func (f *fixture) send(body []byte) (payments.Result, error) {
	return f.proc.HandleWebhook(f.ctx, body, f.auth.Sign(body))
}

func (f *fixture) current(t *testing.T) orders.Order {
	t.Helper()
	o, err := f.st.GetOrder(f.ctx, f.order.ID)
	require.NoError(t, err)
	return o
}

func TestHandleWebhookPaid(t *testing.T) {
	f := newFixture(t)

	res, err := f.send(f.body(f.order.ID, "paid"))
	require.NoError(t, err)
	assert.Equal(t, payments.Result{OrderID: f.order.ID, PaymentStatus: orders.PaymentPaid}, res)

	o := f.current(t)
	assert.Equal(t, orders.PaymentPaid, o.PaymentStatus)
	assert.Equal(t, orders.StatusPending, o.Status)
}

func TestHandleWebhookFailed(t *testing.T) {
	f := newFixture(t)

	_, err := f.send(f.body(f.order.ID, "failed"))
	require.NoError(t, err)
	assert.Equal(t, orders.PaymentFailed, f.current(t).PaymentStatus)

	p, err := f.st.GetProduct(f.ctx, f.prod.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Quantity, "payment failure must not touch stock")
}

func TestHandleWebhookIdempotentReplay(t *testing.T) {
	f := newFixture(t)
	body := f.body(f.order.ID, "paid")

	first, err := f.send(body)
	require.NoError(t, err)
	afterFirst := f.current(t)

	second, err := f.send(body)
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.PaymentStatus, second.PaymentStatus)
	assert.Equal(t, afterFirst, f.current(t))
}

func TestHandleWebhookConflictingTerminal(t *testing.T) {
	f := newFixture(t)

	_, err := f.send(f.body(f.order.ID, "paid"))
	require.NoError(t, err)

	_, err = f.send(f.body(f.order.ID, "failed"))
	assert.True(t, errors.Is(err, apperr.ErrIllegalTransition))
	assert.Equal(t, orders.PaymentPaid, f.current(t).PaymentStatus)
}

func TestHandleWebhookRejectsNonPendingOrder(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.UpdateOrderStatus(f.ctx, f.order.ID, orders.StatusCanceled)
	require.NoError(t, err)

	_, err = f.send(f.body(f.order.ID, "paid"))
	assert.True(t, errors.Is(err, apperr.ErrIllegalTransition))

	o := f.current(t)
	assert.Equal(t, orders.PaymentUnpaid, o.PaymentStatus)
	assert.Equal(t, orders.StatusCanceled, o.Status)
}

func TestHandleWebhookBadSignatureSkipsLookup(t *testing.T) {
	f := newFixture(t)
	body := f.body(f.order.ID, "paid")

	for _, sig := range []string{"", "deadbeef", payments.NewHMACAuthenticator([]byte("wrong")).Sign(body)} {
		_, err := f.proc.HandleWebhook(f.ctx, body, sig)
		assert.True(t, errors.Is(err, apperr.ErrUnauthorized), "sig %q: %v", sig, err)
	}
	assert.Zero(t, f.cs.calls)
	assert.Equal(t, orders.PaymentUnpaid, f.current(t).PaymentStatus)
}

func TestHandleWebhookValidation(t *testing.T) {
	f := newFixture(t)

	bodies := [][]byte{
		[]byte(`not json`),
		f.body(f.order.ID, "unpaid"),
		f.body(f.order.ID, "refunded"),
		f.body("not-a-uuid", "paid"),
		f.body(uuid.Nil.String(), "paid"),
		[]byte(`{"payment_status": "paid"}`),
	}
	for _, b := range bodies {
		_, err := f.send(b)
		assert.True(t, errors.Is(err, apperr.ErrValidation), "%s: %v", b, err)
	}
	assert.Zero(t, f.cs.calls)
}

func TestHandleWebhookUnknownOrder(t *testing.T) {
	f := newFixture(t)
	_, err := f.send(f.body(uuid.NewString(), "paid"))
	assert.True(t, errors.Is(err, apperr.ErrOrderNotFound))
}

func TestHandleWebhookConcurrentConflictingDeliveries(t *testing.T) {
	f := newFixture(t)
	paid := f.body(f.order.ID, "paid")
	failed := f.body(f.order.ID, "failed")

	var wg sync.WaitGroup
	results := make([]error, 20)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b := paid
			if i%2 == 1 {
				b = failed
			}
			_, results[i] = f.send(b)
		}(i)
	}
	wg.Wait()

	final := f.current(t).PaymentStatus
	require.True(t, final == orders.PaymentPaid || final == orders.PaymentFailed)
	for _, err := range results {
		if err != nil {
			assert.True(t, errors.Is(err, apperr.ErrIllegalTransition))
		}
	}
}

func TestScenarioCancelThenLatePayment(t *testing.T) {
	f := newFixture(t)

	p, _ := f.st.GetProduct(f.ctx, f.prod.ID)
	assert.Equal(t, 3, p.Quantity)
	assert.Equal(t, "20.00", f.order.TotalPrice.StringFixed(2))

	_, err := f.svc.UpdateOrderStatus(f.ctx, f.order.ID, orders.StatusCanceled)
	require.NoError(t, err)
	p, _ = f.st.GetProduct(f.ctx, f.prod.ID)
	assert.Equal(t, 5, p.Quantity)

	_, err = f.send(f.body(f.order.ID, "paid"))
	assert.True(t, errors.Is(err, apperr.ErrIllegalTransition))
	assert.Equal(t, orders.PaymentUnpaid, f.current(t).PaymentStatus)
}

func TestParseNotificationNormalisesID(t *testing.T) {
	id := uuid.New()
	n, err := payments.ParseNotification([]byte(`{"order_id":"` + id.String() + `","payment_status":"paid","extra":1}`))
	require.NoError(t, err)
	assert.Equal(t, id.String(), n.OrderID)
	assert.Equal(t, orders.PaymentPaid, n.PaymentStatus)
}
