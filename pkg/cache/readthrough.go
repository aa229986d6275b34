package cache

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type FetchFunc[T any] func(ctx context.Context) (T, error)

const defaultSetTimeout = 5 * time.Second

// Entry is the stored form of a read-through value. Generation is the data
// epoch the value was fetched in; entries from an older epoch are stale even
// before their TTL runs out.
type Entry[T any] struct {
	Generation uint64 `json:"generation"`
	Value      T      `json:"value"`
}

// addTTLJitter spreads expirations by up to ±10% of ttl.
func addTTLJitter(ttl time.Duration) time.Duration {
	spread := int64(ttl / 10)
	if spread <= 0 {
		return ttl
	}
	return ttl + time.Duration(rand.Int63n(2*spread+1)-spread)
}

func fetchAndStore[T any](
	ctx context.Context,
	c Cacher,
	key string,
	generation uint64,
	ttl time.Duration,
	logger *zap.Logger,
	fn FetchFunc[T],
) (T, error) {
	var zero T

	value, err := fn(ctx)
	if err != nil {
		logger.Error("fetch failed", zap.String("key", key), zap.Error(err))
		return zero, err
	}

	setCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultSetTimeout)
	defer cancel()

	if err := c.Set(setCtx, key, Entry[T]{Generation: generation, Value: value}, addTTLJitter(ttl)); err != nil {
		logger.Warn("failed to set cache", zap.String("key", key), zap.Error(err))
	} else {
		logger.Debug("cache populated",
			zap.String("key", key),
			zap.Uint64("generation", generation))
	}

	return value, nil
}

// FindAndCache serves key from the cache when the stored entry belongs to
// generation or a later one. Otherwise it fetches once per key and generation
// across concurrent callers and stores the result. Cache errors degrade to a
// direct fetch; fetch errors are never cached.
func FindAndCache[T any](
	ctx context.Context,
	c Cacher,
	sf *singleflight.Group,
	key string,
	generation uint64,
	ttl time.Duration,
	logger *zap.Logger,
	fn FetchFunc[T],
) (T, error) {
	var zero T
	if logger == nil {
		logger = zap.NewNop()
	}

	var cached Entry[T]
	err := c.Get(ctx, key, &cached)
	switch {
	case err == nil && cached.Generation >= generation:
		logger.Debug("cache hit", zap.String("key", key), zap.Uint64("generation", cached.Generation))
		return cached.Value, nil

	case err == nil:
		logger.Debug("cache entry from an older generation",
			zap.String("key", key),
			zap.Uint64("cached", cached.Generation),
			zap.Uint64("current", generation))

	case IsMiss(err):
		logger.Debug("cache miss", zap.String("key", key))

	default:
		logger.Warn("cache get error (treating as miss)", zap.String("key", key), zap.Error(err))
	}

	v, err, shared := sf.Do(key+"@"+strconv.FormatUint(generation, 10), func() (any, error) {
		return fetchAndStore(ctx, c, key, generation, ttl, logger, fn)
	})
	if err != nil {
		return zero, err
	}

	value, ok := v.(T)
	if !ok {
		logger.Error("singleflight type mismatch", zap.String("key", key))
		return zero, fmt.Errorf("type mismatch for key %q", key)
	}

	if shared {
		logger.Debug("singleflight shared result", zap.String("key", key))
	}

	return value, nil
}
