package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers results by a caller supplied key so that a
// repeated request or redelivered event is answered from the first run.
//
// A key moves from free to claimed (pending) to completed. Claims and results
// both expire after their ttl, after which the key is free again.
type IdempotencyStore interface {
	// Claim takes key if it is free. When it is not, value holds the stored
	// result, or is empty while the first holder is still running.
	Claim(ctx context.Context, key string, ttl time.Duration) (claimed bool, value string, err error)
	Complete(ctx context.Context, key, value string, ttl time.Duration) error
	// Release frees a claimed key without storing a result
	Release(ctx context.Context, key string) error
	Close() error
}
