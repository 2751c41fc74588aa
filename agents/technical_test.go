package agents

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

type fakeTickStore struct {
	bars map[vo.Symbol][]ports.Bar
	err  error
}

func (f *fakeTickStore) InsertBatch(ctx context.Context, ticks []domain.Tick) error { return nil }

func (f *fakeTickStore) QueryVolumeSpikes(ctx context.Context, threshold decimal.Decimal) ([]vo.Symbol, error) {
	return nil, nil
}

func (f *fakeTickStore) OHLCV(ctx context.Context, symbol vo.Symbol, lookback int) ([]ports.Bar, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.bars[symbol], nil
}

func uptrendBars(n int, start float64) []ports.Bar {
	bars := make([]ports.Bar, n)
	price := start
	for i := 0; i < n; i++ {
		price += 1.0
		bars[i] = ports.Bar{
			Close:     vo.Price{Decimal: decimal.NewFromFloat(price)},
			Timestamp: time.Now().Add(-time.Duration(n-i) * 24 * time.Hour),
		}
	}
	return bars
}

func TestComputeIndicators_StrongUptrendGoldenCrossScoresNonNegative(t *testing.T) {
	bars := uptrendBars(210, 10.0)
	score := computeIndicators(bars)

	assert.Equal(t, "golden_cross", score.TrendMA)
	assert.True(t, score.CompositeScore.GreaterThanOrEqual(decimal.Zero), "steady uptrend should not score negative")
}

func TestClampScore_BoundsToTenRange(t *testing.T) {
	assert.True(t, clampScore(decimal.NewFromInt(15)).Equal(decimal.NewFromInt(10)))
	assert.True(t, clampScore(decimal.NewFromInt(-15)).Equal(decimal.NewFromInt(-10)))
	assert.True(t, clampScore(decimal.NewFromInt(4)).Equal(decimal.NewFromInt(4)))
}

func TestRSI14_AllGainsReturnsOneHundred(t *testing.T) {
	closes := make([]decimal.Decimal, 20)
	for i := range closes {
		closes[i] = decimal.NewFromInt(int64(10 + i))
	}
	rsi := rsi14(closes)
	assert.True(t, rsi.Equal(decimal.NewFromInt(100)))
}

func TestSMA_InsufficientHistoryReturnsZero(t *testing.T) {
	closes := []decimal.Decimal{decimal.NewFromInt(1), decimal.NewFromInt(2)}
	require.True(t, sma(closes, 50).IsZero())
}

func TestTechnicalAgent_Run_SkipsSymbolOnInsufficientHistory(t *testing.T) {
	store := &fakeTickStore{bars: map[vo.Symbol][]ports.Bar{
		"FPT": uptrendBars(5, 10.0), // below the 30-bar minimum
	}}
	agent := NewTechnicalAgent(store)

	s := State{Watchlist: []vo.Symbol{"FPT"}, ScoreThreshold: decimal.NewFromInt(5)}
	update := agent.Run(context.Background(), s)

	assert.Empty(t, update.TechnicalScores)
	assert.Empty(t, update.TopCandidates)
}

func TestTechnicalAgent_Run_PopulatesTopCandidatesAboveThreshold(t *testing.T) {
	store := &fakeTickStore{bars: map[vo.Symbol][]ports.Bar{
		"FPT": uptrendBars(210, 10.0),
	}}
	agent := NewTechnicalAgent(store)

	s := State{Watchlist: []vo.Symbol{"FPT"}, ScoreThreshold: decimal.NewFromInt(1)}
	update := agent.Run(context.Background(), s)

	require.Contains(t, update.TechnicalScores, vo.Symbol("FPT"))
	assert.Contains(t, update.TopCandidates, vo.Symbol("FPT"))
}
