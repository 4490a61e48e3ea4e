package redisx

import "time"

const (
	// Idempotency create order: idem:order:create:{Idempotency-Key} -> JSON {order_id, request_hash}
	KeyIdemOrderCreate = "idem:order:create:%s"

	// Cache order lengkap: order:{order_id} -> JSON order + items
	KeyOrderCache = "order:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLOrderCache  = 5 * time.Minute
)
