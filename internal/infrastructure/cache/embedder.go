package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/kirillkom/benefit-finder/internal/core/ports"
)

// Embedder caches query embeddings. Document embeddings pass through since
// every indexing run embeds fresh text.
type Embedder struct {
	next     ports.Embedder
	cache    ports.TextCache
	ttl      time.Duration
	model    string
	logger   *slog.Logger
	onLookup func(hit bool)
}

type Option func(*Embedder)

// WithLookupHook reports every cache lookup.
func WithLookupHook(fn func(hit bool)) Option {
	return func(e *Embedder) { e.onLookup = fn }
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Embedder) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func NewEmbedder(next ports.Embedder, cache ports.TextCache, model string, ttl time.Duration, opts ...Option) *Embedder {
	e := &Embedder{next: next, cache: cache, ttl: ttl, model: model, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return e.next.Embed(ctx, texts)
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	key := e.key(text)
	if raw, ok, err := e.cache.Get(ctx, key); err != nil {
		e.logger.Warn("embedding_cache_get_failed", "error", err)
	} else if ok {
		var vector []float32
		if err := json.Unmarshal([]byte(raw), &vector); err == nil && len(vector) > 0 {
			e.lookup(true)
			return vector, nil
		}
	}
	e.lookup(false)

	vector, err := e.next.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(vector); err == nil {
		if err := e.cache.Set(ctx, key, string(raw), e.ttl); err != nil {
			e.logger.Warn("embedding_cache_set_failed", "error", err)
		}
	}
	return vector, nil
}

func (e *Embedder) key(text string) string {
	sum := sha256.Sum256([]byte(e.model + "\x00" + text))
	return "embed:" + hex.EncodeToString(sum[:])
}

func (e *Embedder) lookup(hit bool) {
	if e.onLookup != nil {
		e.onLookup(hit)
	}
}
