// Package ingestion buffers inbound ticks in a bounded ring and flushes them
// to the tick store on a timer, decoupling the WebSocket read loop from
// storage latency.
package ingestion

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/tranvietlong/vnalgo-core/domain"
	"github.com/tranvietlong/vnalgo-core/ports"
	"github.com/tranvietlong/vnalgo-core/vo"
)

// DefaultBufferSize and DefaultFlushInterval match spec.md §4.10's
// recommended defaults for the tick ring buffer.
const (
	DefaultBufferSize    = 100_000
	DefaultFlushInterval = 1 * time.Second
)

// ringBuffer is a fixed-capacity FIFO that drops the oldest entry on
// overflow rather than blocking the producer — a slow flush must never
// backpressure the market data read loop.
type ringBuffer struct {
	mu       sync.Mutex
	items    []domain.Tick
	capacity int
	dropped  int64
}

func newRingBuffer(capacity int) *ringBuffer {
	return &ringBuffer{items: make([]domain.Tick, 0, capacity), capacity: capacity}
}

func (r *ringBuffer) push(t domain.Tick) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.items) >= r.capacity {
		r.items = r.items[1:]
		atomic.AddInt64(&r.dropped, 1)
	}
	r.items = append(r.items, t)
}

func (r *ringBuffer) drainAll() []domain.Tick {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.items) == 0 {
		return nil
	}
	out := r.items
	r.items = make([]domain.Tick, 0, r.capacity)
	return out
}

func (r *ringBuffer) droppedCount() int64 {
	return atomic.LoadInt64(&r.dropped)
}

// Pipeline owns the ring buffer and the two concurrent tasks that feed and
// drain it: an ingest task consuming the market data stream, and a flush
// task persisting batches on a fixed interval.
type Pipeline struct {
	marketData    ports.MarketData
	tickStore     ports.TickStore
	buffer        *ringBuffer
	flushInterval time.Duration

	totalIngested int64
	totalFlushed  int64
}

func NewPipeline(marketData ports.MarketData, tickStore ports.TickStore, bufferSize int, flushInterval time.Duration) *Pipeline {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	if flushInterval <= 0 {
		flushInterval = DefaultFlushInterval
	}
	return &Pipeline{
		marketData:    marketData,
		tickStore:     tickStore,
		buffer:        newRingBuffer(bufferSize),
		flushInterval: flushInterval,
	}
}

// Run starts the ingest and flush tasks and blocks until ctx is cancelled,
// performing one final drain-and-flush before returning so no buffered tick
// is silently lost on shutdown.
func (p *Pipeline) Run(ctx context.Context, symbols []vo.Symbol) error {
	ticks, err := p.marketData.Stream(ctx, symbols)
	if err != nil {
		return err
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return p.ingestTask(groupCtx, ticks)
	})
	group.Go(func() error {
		return p.flushTask(groupCtx)
	})

	err = group.Wait()

	// Final drain: whatever the flush task's last tick missed still gets
	// persisted before the pipeline returns.
	p.flushOnce(context.Background())

	return err
}

func (p *Pipeline) ingestTask(ctx context.Context, ticks <-chan domain.Tick) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case tick, ok := <-ticks:
			if !ok {
				return nil
			}
			p.buffer.push(tick)
			atomic.AddInt64(&p.totalIngested, 1)
		}
	}
}

func (p *Pipeline) flushTask(ctx context.Context) error {
	ticker := time.NewTicker(p.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.flushOnce(ctx)
		}
	}
}

func (p *Pipeline) flushOnce(ctx context.Context) {
	batch := p.buffer.drainAll()
	if len(batch) == 0 {
		return
	}

	if err := p.tickStore.InsertBatch(ctx, batch); err != nil {
		log.Error().Err(err).Int("batch_size", len(batch)).Msg("💾 tick batch flush failed")
		return
	}

	atomic.AddInt64(&p.totalFlushed, int64(len(batch)))
	if dropped := p.buffer.droppedCount(); dropped > 0 {
		log.Warn().Int64("dropped", dropped).Msg("📉 ring buffer has dropped ticks since start")
	}
}

func (p *Pipeline) TotalIngested() int64 { return atomic.LoadInt64(&p.totalIngested) }
func (p *Pipeline) TotalFlushed() int64  { return atomic.LoadInt64(&p.totalFlushed) }
func (p *Pipeline) DroppedCount() int64  { return p.buffer.droppedCount() }
