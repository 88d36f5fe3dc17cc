// Package reservation bounds concurrent in-flight uploads per quota subject.
//
// The quota ledger only counts settled submissions. A reservation is taken
// after the ledger check and released when processing ends, so concurrent
// uploads cannot together exceed the remaining allowance.
package reservation

import (
	"context"
	"time"
)

// Result describes the outcome of an acquire attempt.
type Result struct {
	Allowed  bool
	InFlight int
}

// Limiter counts in-flight work per key.
type Limiter interface {
	Acquire(ctx context.Context, key string, limit int, now time.Time) (Result, error)
	Release(ctx context.Context, key string) error
}
