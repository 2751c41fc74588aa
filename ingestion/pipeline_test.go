package ingestion

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tranvietlong/vnalgo-core/domain"
	"github.com/tranvietlong/vnalgo-core/ports"
	"github.com/tranvietlong/vnalgo-core/vo"
)

type fakeMarketData struct {
	ticks chan domain.Tick
}

func (f *fakeMarketData) Stream(ctx context.Context, symbols []vo.Symbol) (<-chan domain.Tick, error) {
	return f.ticks, nil
}
func (f *fakeMarketData) Close() error { return nil }

type memTickStore struct {
	batches [][]domain.Tick
}

func (m *memTickStore) InsertBatch(ctx context.Context, ticks []domain.Tick) error {
	m.batches = append(m.batches, ticks)
	return nil
}
func (m *memTickStore) QueryVolumeSpikes(ctx context.Context, threshold decimal.Decimal) ([]vo.Symbol, error) {
	return nil, nil
}
func (m *memTickStore) OHLCV(ctx context.Context, symbol vo.Symbol, lookback int) ([]ports.Bar, error) {
	return nil, nil
}

func TestRingBuffer_DropsOldestOnOverflow(t *testing.T) {
	rb := newRingBuffer(2)
	tick := func(sym string) domain.Tick {
		tk, err := domain.NewTick(vo.Symbol(sym), vo.NewPrice(1000), 100, vo.HOSE, time.Now())
		require.NoError(t, err)
		return tk
	}

	rb.push(tick("A"))
	rb.push(tick("B"))
	rb.push(tick("C"))

	drained := rb.drainAll()
	require.Len(t, drained, 2)
	assert.Equal(t, vo.Symbol("B"), drained[0].Symbol)
	assert.Equal(t, vo.Symbol("C"), drained[1].Symbol)
	assert.Equal(t, int64(1), rb.droppedCount())
}

func TestRingBuffer_DrainAllEmptiesBuffer(t *testing.T) {
	rb := newRingBuffer(10)
	tick, err := domain.NewTick("FPT", vo.NewPrice(1000), 100, vo.HOSE, time.Now())
	require.NoError(t, err)
	rb.push(tick)

	first := rb.drainAll()
	require.Len(t, first, 1)

	second := rb.drainAll()
	assert.Nil(t, second)
}

func TestPipeline_FlushOnceMovesBufferedTicksToStore(t *testing.T) {
	store := &memTickStore{}
	md := &fakeMarketData{ticks: make(chan domain.Tick, 1)}
	p := NewPipeline(md, store, 10, time.Millisecond)

	tick, err := domain.NewTick("FPT", vo.NewPrice(1000), 100, vo.HOSE, time.Now())
	require.NoError(t, err)
	p.buffer.push(tick)

	p.flushOnce(context.Background())

	require.Len(t, store.batches, 1)
	assert.Equal(t, int64(1), p.TotalFlushed())
}

func TestPipeline_FlushOnceNoOpOnEmptyBuffer(t *testing.T) {
	store := &memTickStore{}
	md := &fakeMarketData{ticks: make(chan domain.Tick, 1)}
	p := NewPipeline(md, store, 10, time.Millisecond)

	p.flushOnce(context.Background())

	assert.Empty(t, store.batches)
	assert.Equal(t, int64(0), p.TotalFlushed())
}

func TestNewPipeline_DefaultsAppliedForZeroValues(t *testing.T) {
	p := NewPipeline(&fakeMarketData{}, &memTickStore{}, 0, 0)
	assert.Equal(t, DefaultBufferSize, p.buffer.capacity)
	assert.Equal(t, DefaultFlushInterval, p.flushInterval)
}
