package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ariefcatur/go-order-core/internal/apperr"
	"github.com/ariefcatur/go-order-core/internal/orders"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.PutProduct(orders.Product{ID: "p1", Name: "Widget", Price: decimal.RequireFromString("10.00"), Quantity: 5})

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx orders.Tx) error {
		ok, err := tx.DecrementIfAvailable(ctx, "p1", 4)
		require.NoError(t, err)
		require.True(t, ok)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	p, err := s.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 5, p.Quantity)
}

func TestWithTxRecoversPanic(t *testing.T) {
	s := New()
	err := s.WithTx(context.Background(), func(orders.Tx) error { panic("oops") })
	assert.Error(t, err)
}

func TestDecrementIfAvailableNeverGoesNegative(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.PutProduct(orders.Product{ID: "p1", Quantity: 2})

	err := s.WithTx(ctx, func(tx orders.Tx) error {
		ok, _ := tx.DecrementIfAvailable(ctx, "p1", 3)
		assert.False(t, ok)
		ok, _ = tx.DecrementIfAvailable(ctx, "p1", 2)
		assert.True(t, ok)
		ok, _ = tx.DecrementIfAvailable(ctx, "ghost", 1)
		assert.False(t, ok)
		return nil
	})
	require.NoError(t, err)

	p, _ := s.GetProduct(ctx, "p1")
	assert.Equal(t, 0, p.Quantity)
}

func TestListOrdersFiltersAndPages(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := time.Date(2025, 11, 26, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.WithTx(ctx, func(tx orders.Tx) error {
		for i, st := range []orders.Status{orders.StatusPending, orders.StatusCompleted, orders.StatusPending} {
			o := &orders.Order{
				ID:            string(rune('a' + i)),
				Status:        st,
				PaymentStatus: orders.PaymentUnpaid,
				CreatedAt:     base.Add(time.Duration(i) * time.Minute),
			}
			if err := tx.InsertOrder(ctx, o); err != nil {
				return err
			}
		}
		return nil
	}))

	got, total, err := s.ListOrders(ctx, orders.ListFilter{Page: 1, PageSize: 1, Status: orders.StatusPending})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, got, 1)
	assert.Equal(t, "c", got[0].ID) // newest first

	got, _, err = s.ListOrders(ctx, orders.ListFilter{Page: 5, PageSize: 10})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLockOrderUnknown(t *testing.T) {
	ctx := context.Background()
	s := New()
	err := s.WithTx(ctx, func(tx orders.Tx) error {
		_, err := tx.LockOrder(ctx, "missing")
		return err
	})
	assert.True(t, errors.Is(err, apperr.ErrOrderNotFound))
}
