package queue

import (
	"context"
	"sync"
	"time"

	"defi_portfolio/internal/entity"
	"defi_portfolio/internal/metrics"

	"go.uber.org/zap"
)

// MetadataWriteEvent is one pending metadata persistence request.
type MetadataWriteEvent struct {
	Network   entity.Network
	Address   string
	Symbol    string
	Name      string
	Decimals  uint8
	LogoURL   string
	Source    string
	CreatedAt time.Time
	Retries   int
}

// MetadataQueue is a bounded multi-producer/multi-consumer queue that
// decouples metadata persistence from the read path. Enqueue never blocks
// and never fails: on saturation the oldest pending event is dropped to
// make room, trading completeness for freshness.
type MetadataQueue struct {
	ch     chan MetadataWriteEvent
	mu     sync.Mutex // serializes the evict-then-insert sequence
	logger *zap.Logger
}

// NewMetadataQueue creates a queue with the given capacity.
func NewMetadataQueue(capacity int, logger *zap.Logger) *MetadataQueue {
	if capacity <= 0 {
		capacity = 1024
	}
	return &MetadataQueue{
		ch:     make(chan MetadataWriteEvent, capacity),
		logger: logger.Named("MetadataQueue"),
	}
}

// Enqueue adds an event, evicting the oldest pending event when the queue
// is full. It never blocks the producer.
func (q *MetadataQueue) Enqueue(ev MetadataWriteEvent) {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}

	select {
	case q.ch <- ev:
		metrics.QueueDepth.Set(float64(len(q.ch)))
		return
	default:
	}

	// Saturated. Evict the head and retry once under the lock so two
	// producers cannot both evict for a single free slot.
	q.mu.Lock()
	defer q.mu.Unlock()

	select {
	case dropped := <-q.ch:
		metrics.QueueDroppedTotal.Inc()
		q.logger.Debug("Metadata queue saturated, dropped oldest event",
			zap.String("network", dropped.Network.String()),
			zap.String("address", dropped.Address))
	default:
	}

	select {
	case q.ch <- ev:
	default:
		// A consumer drained and producers refilled between the evict and
		// the insert; dropping the incoming event keeps Enqueue non-blocking.
		metrics.QueueDroppedTotal.Inc()
	}
	metrics.QueueDepth.Set(float64(len(q.ch)))
}

// Dequeue blocks until an event is available or ctx is done.
func (q *MetadataQueue) Dequeue(ctx context.Context) (MetadataWriteEvent, error) {
	select {
	case ev := <-q.ch:
		metrics.QueueDepth.Set(float64(len(q.ch)))
		return ev, nil
	case <-ctx.Done():
		return MetadataWriteEvent{}, ctx.Err()
	}
}

// Len reports the current number of pending events.
func (q *MetadataQueue) Len() int {
	return len(q.ch)
}

// Cap reports the queue capacity.
func (q *MetadataQueue) Cap() int {
	return cap(q.ch)
}
