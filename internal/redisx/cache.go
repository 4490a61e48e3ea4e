package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-order-core/internal/logging"
	"github.com/ariefcatur/go-order-core/internal/orders"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// OrderCache is a read-through cache for GET /orders/{id}. Redis is never the
// source of truth: every failure degrades to a miss and a nil cache is valid.
type OrderCache struct {
	R *redis.Client
}

func (c *OrderCache) Get(ctx context.Context, orderID string) (orders.Order, bool) {
	if c == nil || c.R == nil {
		return orders.Order{}, false
	}
	b, err := c.R.Get(ctx, fmt.Sprintf(KeyOrderCache, orderID)).Bytes()
	if err != nil {
		return orders.Order{}, false
	}
	var o orders.Order
	if err := json.Unmarshal(b, &o); err != nil {
		return orders.Order{}, false
	}
	return o, true
}

func (c *OrderCache) Set(ctx context.Context, o orders.Order) error {
	if c == nil || c.R == nil {
		return nil
	}
	b, err := json.Marshal(o)
	if err != nil {
		return err
	}
	return c.R.Set(ctx, fmt.Sprintf(KeyOrderCache, o.ID), b, TTLOrderCache).Err()
}

func (c *OrderCache) Invalidate(ctx context.Context, orderID string) error {
	if c == nil || c.R == nil {
		return nil
	}
	return c.R.Del(ctx, fmt.Sprintf(KeyOrderCache, orderID)).Err()
}

// Idempotency maps a client-supplied Idempotency-Key to the order it created
// and a hash of the request that created it.
type Idempotency struct {
	R *redis.Client
}

type IdemRecord struct {
	OrderID     string `json:"order_id"`
	RequestHash string `json:"request_hash"`
}

// Lookup returns the record stored for key. A Redis error is reported as a
// miss so order creation keeps working without Redis.
func (i *Idempotency) Lookup(ctx context.Context, key string) (IdemRecord, bool) {
	if i == nil || i.R == nil || key == "" {
		return IdemRecord{}, false
	}
	b, err := i.R.Get(ctx, fmt.Sprintf(KeyIdemOrderCreate, key)).Bytes()
	if err != nil {
		return IdemRecord{}, false
	}
	var rec IdemRecord
	if err := json.Unmarshal(b, &rec); err != nil || rec.OrderID == "" {
		return IdemRecord{}, false
	}
	return rec, true
}

// Remember stores key -> rec unless the key is already taken. It reports
// whether this call won.
func (i *Idempotency) Remember(ctx context.Context, key string, rec IdemRecord) (bool, error) {
	if i == nil || i.R == nil || key == "" {
		return false, nil
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return false, err
	}
	ok, err := i.R.SetNX(ctx, fmt.Sprintf(KeyIdemOrderCreate, key), b, TTLIdempotency).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	return ok, err
}

// InvalidatingSink drops the cached copy of an order before forwarding each
// of its events, so every committed change evicts the cache entry.
type InvalidatingSink struct {
	Cache *OrderCache
	Next  orders.EventSink
}

func (s InvalidatingSink) Emit(ctx context.Context, ev orders.Event) {
	if err := s.Cache.Invalidate(ctx, ev.OrderID); err != nil {
		logging.FromContext(ctx).Warn("order cache invalidate failed", zap.String("order_id", ev.OrderID), zap.Error(err))
	}
	if s.Next != nil {
		s.Next.Emit(ctx, ev)
	}
}
