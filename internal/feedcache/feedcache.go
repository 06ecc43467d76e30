// Package feedcache keeps last-good copies of raw upstream feeds so a
// restart or an upstream outage can fall back to the most recent payload.
package feedcache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by LoadLatest when nothing has been cached yet.
var ErrMiss = errors.New("feed cache miss")

// Cache stores timestamped raw feed payloads.
type Cache interface {
	Write(ctx context.Context, data []byte, ts time.Time) error
	LoadLatest(ctx context.Context) ([]byte, time.Time, error)
}
