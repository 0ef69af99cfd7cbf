package cache

import (
	"context"
	"errors"
	"time"

	"defi_portfolio/internal/metrics"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Store is the shared cache abstraction: an in-process memory layer over an
// optional distributed layer. Caching is a performance concern only; every
// I/O error is logged and reported as a miss, never as a failure.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Remove(ctx context.Context, key string)
}

type layeredStore struct {
	memory    *gocache.Cache
	redis     *redis.Client
	sem       *semaphore.Weighted
	keyPrefix string
	logger    *zap.Logger
}

// Options configures a layered store.
type Options struct {
	DefaultExpiration time.Duration
	CleanupInterval   time.Duration
	// MaxConcurrentOps bounds in-flight distributed cache operations so a
	// slow or flaky Redis cannot exhaust the connection pool.
	MaxConcurrentOps int64
	KeyPrefix        string
}

// NewStore creates a layered cache store. The redis client may be nil, in
// which case the store runs memory-only.
func NewStore(redisClient *redis.Client, opts Options, logger *zap.Logger) Store {
	if opts.MaxConcurrentOps <= 0 {
		opts.MaxConcurrentOps = 64
	}
	if opts.DefaultExpiration <= 0 {
		opts.DefaultExpiration = 10 * time.Minute
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = 10 * time.Minute
	}
	return &layeredStore{
		memory:    gocache.New(opts.DefaultExpiration, opts.CleanupInterval),
		redis:     redisClient,
		sem:       semaphore.NewWeighted(opts.MaxConcurrentOps),
		keyPrefix: opts.KeyPrefix,
		logger:    logger.Named("CacheStore"),
	}
}

func (s *layeredStore) Get(ctx context.Context, key string) ([]byte, bool) {
	if v, found := s.memory.Get(key); found {
		if b, ok := v.([]byte); ok {
			metrics.CacheHitsTotal.WithLabelValues("memory").Inc()
			return b, true
		}
	}

	if s.redis == nil {
		metrics.CacheMissesTotal.Inc()
		return nil, false
	}

	if err := s.sem.Acquire(ctx, 1); err != nil {
		// Caller cancelled while waiting for a cache slot; a miss is the
		// correct degraded answer.
		return nil, false
	}
	defer s.sem.Release(1)

	val, err := s.redis.Get(ctx, s.keyPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			metrics.CacheErrorsTotal.Inc()
			s.logger.Warn("Distributed cache read failed, treating as miss",
				zap.String("key", key), zap.Error(err))
		} else {
			metrics.CacheMissesTotal.Inc()
		}
		return nil, false
	}

	metrics.CacheHitsTotal.WithLabelValues("distributed").Inc()
	// Backfill the memory layer with the remaining distributed TTL so the
	// layers expire together.
	if ttl, err := s.redis.TTL(ctx, s.keyPrefix+key).Result(); err == nil && ttl > 0 {
		s.memory.Set(key, val, ttl)
	}
	return val, true
}

func (s *layeredStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	s.memory.Set(key, value, ttl)

	if s.redis == nil {
		return
	}
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return
	}
	defer s.sem.Release(1)

	if err := s.redis.Set(ctx, s.keyPrefix+key, value, ttl).Err(); err != nil {
		metrics.CacheErrorsTotal.Inc()
		s.logger.Warn("Distributed cache write failed",
			zap.String("key", key), zap.Error(err))
	}
}

func (s *layeredStore) Remove(ctx context.Context, key string) {
	s.memory.Delete(key)

	if s.redis == nil {
		return
	}
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return
	}
	defer s.sem.Release(1)

	if err := s.redis.Del(ctx, s.keyPrefix+key).Err(); err != nil {
		metrics.CacheErrorsTotal.Inc()
		s.logger.Warn("Distributed cache delete failed",
			zap.String("key", key), zap.Error(err))
	}
}
