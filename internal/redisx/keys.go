package redisx

import "time"

const (
	// Idempotency for order placement: idem:order:place:{external_id} -> order_id
	KeyIdemOrderPlace = "idem:order:place:%s"

	// Cached order status: order_status:{order_id} -> {"status": "..."}
	KeyOrderStatus = "order_status:%s"

	// Cached availability responses: avail:{request_hash} -> JSON body.
	// Short TTL; results are advisory anyway (the reservation re-checks).
	KeyAvailability = "avail:%x"
)

var (
	TTLIdempotency  = 24 * time.Hour
	TTLStatusCache  = 5 * time.Minute
	TTLAvailability = 30 * time.Second
)
