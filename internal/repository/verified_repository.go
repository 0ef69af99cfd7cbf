package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"defi_portfolio/internal/cache"
	"defi_portfolio/internal/entity"
	"defi_portfolio/internal/metrics"
	"defi_portfolio/internal/port"

	"go.uber.org/zap"
)

// VerifiedTokenRepository serves the per-network verified token dictionary
// through a layered cache with double-checked locking refresh.
type VerifiedTokenRepository interface {
	Lookup(ctx context.Context, network entity.Network) (map[string]entity.VerifiedToken, error)
	Upsert(ctx context.Context, network entity.Network, token entity.VerifiedToken) error
	Invalidate(ctx context.Context, network entity.Network)
}

type verifiedSnapshot struct {
	tokens    map[string]entity.VerifiedToken
	expiresAt time.Time
}

type verifiedTokenRepository struct {
	store   cache.Store
	backing port.RegistryStore
	ttl     time.Duration
	logger  *zap.Logger

	snapshots sync.Map // entity.Network -> *verifiedSnapshot
	locks     sync.Map // entity.Network -> *sync.Mutex
}

// NewVerifiedTokenRepository creates a verified token repository with the
// given snapshot TTL.
func NewVerifiedTokenRepository(store cache.Store, backing port.RegistryStore, ttl time.Duration, logger *zap.Logger) VerifiedTokenRepository {
	return &verifiedTokenRepository{
		store:   store,
		backing: backing,
		ttl:     ttl,
		logger:  logger.Named("VerifiedTokenRepository"),
	}
}

func verifiedCacheKey(network entity.Network) string {
	return "registry:verified:" + network.String()
}

// Lookup returns the verified token dictionary for a network, keyed by
// lowercased contract address. Warm snapshots are served without locking;
// a cold key admits exactly one loader while other callers block on the
// per-network mutex and re-read the result.
func (r *verifiedTokenRepository) Lookup(ctx context.Context, network entity.Network) (map[string]entity.VerifiedToken, error) {
	if snap := r.warm(network); snap != nil {
		return snap.tokens, nil
	}

	mu := r.lockFor(network)
	mu.Lock()
	defer mu.Unlock()

	// Double check: another caller may have finished the load while we
	// were blocked on the lock.
	if snap := r.warm(network); snap != nil {
		return snap.tokens, nil
	}

	tokens, err := r.load(ctx, network)
	if err != nil {
		return nil, err
	}
	r.snapshots.Store(network, &verifiedSnapshot{tokens: tokens, expiresAt: time.Now().Add(r.ttl)})
	return tokens, nil
}

func (r *verifiedTokenRepository) warm(network entity.Network) *verifiedSnapshot {
	v, ok := r.snapshots.Load(network)
	if !ok {
		return nil
	}
	snap := v.(*verifiedSnapshot)
	if time.Now().After(snap.expiresAt) {
		return nil
	}
	return snap
}

func (r *verifiedTokenRepository) lockFor(network entity.Network) *sync.Mutex {
	v, _ := r.locks.LoadOrStore(network, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// load walks the cold path: distributed cache, then the backing store,
// repopulating the distributed layer on the way back.
func (r *verifiedTokenRepository) load(ctx context.Context, network entity.Network) (map[string]entity.VerifiedToken, error) {
	key := verifiedCacheKey(network)
	if raw, found := r.store.Get(ctx, key); found {
		var list []entity.VerifiedToken
		if err := json.Unmarshal(raw, &list); err == nil {
			return indexVerified(list), nil
		}
		r.logger.Warn("Corrupt cached verified registry entry, reloading from store",
			zap.String("network", network.String()))
	}

	list, err := r.backing.LoadVerified(ctx, network)
	if err != nil {
		return nil, fmt.Errorf("%w: load verified registry for %s: %v", entity.ErrRegistryUnavailable, network, err)
	}
	metrics.RegistryLoadsTotal.WithLabelValues("verified").Inc()

	if raw, err := json.Marshal(list); err == nil {
		r.store.Set(ctx, key, raw, r.ttl)
	}
	return indexVerified(list), nil
}

func indexVerified(list []entity.VerifiedToken) map[string]entity.VerifiedToken {
	m := make(map[string]entity.VerifiedToken, len(list))
	for _, t := range list {
		m[entity.CanonicalAddress(t.Address)] = t
	}
	return m
}

// Upsert writes a verified record to the backing store and invalidates the
// network's cached snapshot so the next lookup observes it.
func (r *verifiedTokenRepository) Upsert(ctx context.Context, network entity.Network, token entity.VerifiedToken) error {
	token.Address = entity.CanonicalAddress(token.Address)
	if err := r.backing.WriteVerified(ctx, network, token); err != nil {
		return fmt.Errorf("write verified token %s on %s: %w", token.Address, network, err)
	}
	r.Invalidate(ctx, network)
	return nil
}

// Invalidate drops both the in-process snapshot and the distributed entry.
func (r *verifiedTokenRepository) Invalidate(ctx context.Context, network entity.Network) {
	r.snapshots.Delete(network)
	r.store.Remove(ctx, verifiedCacheKey(network))
}
