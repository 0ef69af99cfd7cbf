package queue

import (
	"context"
	"errors"
	"time"

	"defi_portfolio/internal/entity"
	"defi_portfolio/internal/port"
	"defi_portfolio/internal/repository"

	"go.uber.org/zap"
)

// Worker drains the metadata queue and persists events to the registry
// store, invalidating the affected metadata snapshot after each write.
type Worker struct {
	queue        *MetadataQueue
	store        port.RegistryStore
	metadataRepo repository.TokenMetadataRepository
	latencyWarn  time.Duration
	maxRetries   int
	logger       *zap.Logger
}

// NewWorker creates a queue worker.
func NewWorker(
	q *MetadataQueue,
	store port.RegistryStore,
	metadataRepo repository.TokenMetadataRepository,
	latencyWarn time.Duration,
	maxRetries int,
	logger *zap.Logger,
) *Worker {
	return &Worker{
		queue:        q,
		store:        store,
		metadataRepo: metadataRepo,
		latencyWarn:  latencyWarn,
		maxRetries:   maxRetries,
		logger:       logger.Named("MetadataWorker"),
	}
}

// Run processes events until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		ev, err := w.queue.Dequeue(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				w.logger.Warn("Metadata worker stopping", zap.Error(err))
			}
			return
		}
		w.process(ctx, ev)
	}
}

func (w *Worker) process(ctx context.Context, ev MetadataWriteEvent) {
	if age := time.Since(ev.CreatedAt); age > w.latencyWarn {
		// Consumer starvation signal: events are waiting too long.
		w.logger.Warn("Metadata event exceeded latency threshold at dequeue",
			zap.String("network", ev.Network.String()),
			zap.String("address", ev.Address),
			zap.Duration("age", age))
	}

	meta := entity.TokenMetadata{
		Address:   entity.CanonicalAddress(ev.Address),
		Symbol:    ev.Symbol,
		Name:      ev.Name,
		Decimals:  ev.Decimals,
		LogoURL:   ev.LogoURL,
		Source:    ev.Source,
		CreatedAt: ev.CreatedAt,
	}

	if err := w.store.WriteMetadata(ctx, ev.Network, meta); err != nil {
		if ev.Retries+1 >= w.maxRetries {
			w.logger.Error("Dropping metadata event after retries",
				zap.String("network", ev.Network.String()),
				zap.String("address", ev.Address),
				zap.Int("retries", ev.Retries),
				zap.Error(err))
			return
		}
		ev.Retries++
		w.queue.Enqueue(ev)
		return
	}

	w.metadataRepo.Invalidate(ctx, ev.Network)
}
