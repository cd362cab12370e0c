package redisx

import "time"

const (
	// sway:idem:order:{user_id}:{idempotency_key} -> JSON of the first result
	KeyIdemOrder = "sway:idem:order:%d:%s"

	// sway:order_status:{order_id} -> {"status": "...", "updated_at": "..."}
	KeyOrderStatus = "sway:order_status:%d"

	// sway:dedup:{consumer}:{event_id}
	KeyDedup = "sway:dedup:%s:%s"

	// Hash of projector counters, see stats.Field*.
	KeyStats = "sway:stats"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
