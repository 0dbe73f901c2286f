package cache

import (
	"context"
	"time"

	"github.com/kirillkom/benefit-finder/internal/core/ports"
)

// Observed reports hits and misses of an underlying cache. Lookup errors
// count as misses.
type Observed struct {
	next     ports.TextCache
	onLookup func(hit bool)
}

func NewObserved(next ports.TextCache, onLookup func(hit bool)) *Observed {
	return &Observed{next: next, onLookup: onLookup}
}

func (o *Observed) Get(ctx context.Context, key string) (string, bool, error) {
	value, ok, err := o.next.Get(ctx, key)
	if o.onLookup != nil {
		o.onLookup(ok && err == nil)
	}
	return value, ok, err
}

func (o *Observed) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return o.next.Set(ctx, key, value, ttl)
}
