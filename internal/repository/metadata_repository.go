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

// TokenMetadataRepository serves the per-network token metadata dictionary.
// It carries the longest TTL of the three registries.
type TokenMetadataRepository interface {
	Lookup(ctx context.Context, network entity.Network) (map[string]entity.TokenMetadata, error)
	Invalidate(ctx context.Context, network entity.Network)
}

type metadataSnapshot struct {
	entries   map[string]entity.TokenMetadata
	expiresAt time.Time
}

type tokenMetadataRepository struct {
	store   cache.Store
	backing port.RegistryStore
	ttl     time.Duration
	logger  *zap.Logger

	snapshots sync.Map
	locks     sync.Map
}

// NewTokenMetadataRepository creates a token metadata repository. Writes
// flow through the background write queue, not this repository, so it only
// exposes Lookup and Invalidate.
func NewTokenMetadataRepository(store cache.Store, backing port.RegistryStore, ttl time.Duration, logger *zap.Logger) TokenMetadataRepository {
	return &tokenMetadataRepository{
		store:   store,
		backing: backing,
		ttl:     ttl,
		logger:  logger.Named("TokenMetadataRepository"),
	}
}

func metadataCacheKey(network entity.Network) string {
	return "registry:metadata:" + network.String()
}

func (r *tokenMetadataRepository) Lookup(ctx context.Context, network entity.Network) (map[string]entity.TokenMetadata, error) {
	if snap := r.warm(network); snap != nil {
		return snap.entries, nil
	}

	mu := r.lockFor(network)
	mu.Lock()
	defer mu.Unlock()

	if snap := r.warm(network); snap != nil {
		return snap.entries, nil
	}

	entries, err := r.load(ctx, network)
	if err != nil {
		return nil, err
	}
	r.snapshots.Store(network, &metadataSnapshot{entries: entries, expiresAt: time.Now().Add(r.ttl)})
	return entries, nil
}

func (r *tokenMetadataRepository) warm(network entity.Network) *metadataSnapshot {
	v, ok := r.snapshots.Load(network)
	if !ok {
		return nil
	}
	snap := v.(*metadataSnapshot)
	if time.Now().After(snap.expiresAt) {
		return nil
	}
	return snap
}

func (r *tokenMetadataRepository) lockFor(network entity.Network) *sync.Mutex {
	v, _ := r.locks.LoadOrStore(network, &sync.Mutex{})
	return v.(*sync.Mutex)
}

func (r *tokenMetadataRepository) load(ctx context.Context, network entity.Network) (map[string]entity.TokenMetadata, error) {
	key := metadataCacheKey(network)
	if raw, found := r.store.Get(ctx, key); found {
		var list []entity.TokenMetadata
		if err := json.Unmarshal(raw, &list); err == nil {
			return indexMetadata(list), nil
		}
		r.logger.Warn("Corrupt cached metadata registry entry, reloading from store",
			zap.String("network", network.String()))
	}

	list, err := r.backing.LoadMetadata(ctx, network)
	if err != nil {
		return nil, fmt.Errorf("%w: load metadata registry for %s: %v", entity.ErrRegistryUnavailable, network, err)
	}
	metrics.RegistryLoadsTotal.WithLabelValues("metadata").Inc()

	if raw, err := json.Marshal(list); err == nil {
		r.store.Set(ctx, key, raw, r.ttl)
	}
	return indexMetadata(list), nil
}

func indexMetadata(list []entity.TokenMetadata) map[string]entity.TokenMetadata {
	m := make(map[string]entity.TokenMetadata, len(list))
	for _, e := range list {
		m[entity.CanonicalAddress(e.Address)] = e
	}
	return m
}

func (r *tokenMetadataRepository) Invalidate(ctx context.Context, network entity.Network) {
	r.snapshots.Delete(network)
	r.store.Remove(ctx, metadataCacheKey(network))
}
