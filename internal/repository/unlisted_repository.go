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

// UnlistedTokenRepository serves the per-network unlisted token dictionary.
// Its TTL is shorter than the verified registry's because unlisted tokens
// can later be manually promoted.
type UnlistedTokenRepository interface {
	Lookup(ctx context.Context, network entity.Network) (map[string]entity.UnlistedToken, error)
	Upsert(ctx context.Context, network entity.Network, token entity.UnlistedToken) error
	Remove(ctx context.Context, network entity.Network, address string) error
	Invalidate(ctx context.Context, network entity.Network)
}

type unlistedSnapshot struct {
	tokens    map[string]entity.UnlistedToken
	expiresAt time.Time
}

type unlistedTokenRepository struct {
	store   cache.Store
	backing port.RegistryStore
	ttl     time.Duration
	logger  *zap.Logger

	snapshots sync.Map
	locks     sync.Map
}

// NewUnlistedTokenRepository creates an unlisted token repository.
func NewUnlistedTokenRepository(store cache.Store, backing port.RegistryStore, ttl time.Duration, logger *zap.Logger) UnlistedTokenRepository {
	return &unlistedTokenRepository{
		store:   store,
		backing: backing,
		ttl:     ttl,
		logger:  logger.Named("UnlistedTokenRepository"),
	}
}

func unlistedCacheKey(network entity.Network) string {
	return "registry:unlisted:" + network.String()
}

func (r *unlistedTokenRepository) Lookup(ctx context.Context, network entity.Network) (map[string]entity.UnlistedToken, error) {
	if snap := r.warm(network); snap != nil {
		return snap.tokens, nil
	}

	mu := r.lockFor(network)
	mu.Lock()
	defer mu.Unlock()

	if snap := r.warm(network); snap != nil {
		return snap.tokens, nil
	}

	tokens, err := r.load(ctx, network)
	if err != nil {
		return nil, err
	}
	r.snapshots.Store(network, &unlistedSnapshot{tokens: tokens, expiresAt: time.Now().Add(r.ttl)})
	return tokens, nil
}

func (r *unlistedTokenRepository) warm(network entity.Network) *unlistedSnapshot {
	v, ok := r.snapshots.Load(network)
	if !ok {
		return nil
	}
	snap := v.(*unlistedSnapshot)
	if time.Now().After(snap.expiresAt) {
		return nil
	}
	return snap
}

func (r *unlistedTokenRepository) lockFor(network entity.Network) *sync.Mutex {
	v, _ := r.locks.LoadOrStore(network, &sync.Mutex{})
	return v.(*sync.Mutex)
}

func (r *unlistedTokenRepository) load(ctx context.Context, network entity.Network) (map[string]entity.UnlistedToken, error) {
	key := unlistedCacheKey(network)
	if raw, found := r.store.Get(ctx, key); found {
		var list []entity.UnlistedToken
		if err := json.Unmarshal(raw, &list); err == nil {
			return indexUnlisted(list), nil
		}
		r.logger.Warn("Corrupt cached unlisted registry entry, reloading from store",
			zap.String("network", network.String()))
	}

	list, err := r.backing.LoadUnlisted(ctx, network)
	if err != nil {
		return nil, fmt.Errorf("%w: load unlisted registry for %s: %v", entity.ErrRegistryUnavailable, network, err)
	}
	metrics.RegistryLoadsTotal.WithLabelValues("unlisted").Inc()

	if raw, err := json.Marshal(list); err == nil {
		r.store.Set(ctx, key, raw, r.ttl)
	}
	return indexUnlisted(list), nil
}

func indexUnlisted(list []entity.UnlistedToken) map[string]entity.UnlistedToken {
	m := make(map[string]entity.UnlistedToken, len(list))
	for _, t := range list {
		m[entity.CanonicalAddress(t.Address)] = t
	}
	return m
}

func (r *unlistedTokenRepository) Upsert(ctx context.Context, network entity.Network, token entity.UnlistedToken) error {
	token.Address = entity.CanonicalAddress(token.Address)
	if token.CheckedAt.IsZero() {
		token.CheckedAt = time.Now().UTC()
	}
	if err := r.backing.WriteUnlisted(ctx, network, token); err != nil {
		return fmt.Errorf("write unlisted token %s on %s: %w", token.Address, network, err)
	}
	r.Invalidate(ctx, network)
	return nil
}

// Remove deletes an unlisted record, part of the explicit re-check flow.
func (r *unlistedTokenRepository) Remove(ctx context.Context, network entity.Network, address string) error {
	address = entity.CanonicalAddress(address)
	if err := r.backing.RemoveUnlisted(ctx, network, address); err != nil {
		return fmt.Errorf("remove unlisted token %s on %s: %w", address, network, err)
	}
	r.Invalidate(ctx, network)
	return nil
}

func (r *unlistedTokenRepository) Invalidate(ctx context.Context, network entity.Network) {
	r.snapshots.Delete(network)
	r.store.Remove(ctx, unlistedCacheKey(network))
}
