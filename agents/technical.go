package agents

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/tranvietlong/vnalgo-core/ports"
	"github.com/tranvietlong/vnalgo-core/vo"
)

// TechnicalAgent computes RSI-14, MACD(12/26/9), Bollinger(20,2), and
// SMA-50/SMA-200 for every watchlisted symbol and aggregates them into a
// composite score in [-10, +10]. The indicator math is adapted from the
// teacher's hand-rolled EMA/ATR trackers (feeds/indicators.go), generalized
// from a single-price streaming tracker to a batch-over-OHLCV computation.
type TechnicalAgent struct {
	tickStore ports.TickStore
}

func NewTechnicalAgent(tickStore ports.TickStore) *TechnicalAgent {
	return &TechnicalAgent{tickStore: tickStore}
}

const ohlcvLookback = 210 // enough history for SMA-200 plus warmup

func (a *TechnicalAgent) Run(ctx context.Context, s State) Update {
	scores := make(map[vo.Symbol]TechnicalScore, len(s.Watchlist))
	var top []vo.Symbol

	for _, symbol := range s.Watchlist {
		bars, err := a.tickStore.OHLCV(ctx, symbol, ohlcvLookback)
		if err != nil || len(bars) < 30 {
			log.Warn().Str("symbol", string(symbol)).Err(err).Msg("📈 insufficient OHLCV history, skipping")
			continue
		}

		score := computeIndicators(bars)
		score.Symbol = symbol
		score.LatestPrice = bars[len(bars)-1].Close
		score.Exchange = bars[len(bars)-1].Exchange
		score.AnalysisTimestamp = time.Now()
		scores[symbol] = score

		if score.CompositeScore.Abs().GreaterThanOrEqual(s.ScoreThreshold) {
			top = append(top, symbol)
		}
	}

	phase := PhaseRiskChecking
	return Update{Phase: &phase, TechnicalScores: scores, TopCandidates: top}
}

func routeAfterTechnical(hasFundamental bool) func(State) string {
	return func(s State) string {
		if len(s.TopCandidates) == 0 {
			return "finalize"
		}
		if hasFundamental {
			return "fundamental"
		}
		return "risk"
	}
}

// closesOf extracts closing prices as decimals for indicator math.
func closesOf(bars []ports.Bar) []decimal.Decimal {
	closes := make([]decimal.Decimal, len(bars))
	for i, b := range bars {
		closes[i] = b.Close.Decimal
	}
	return closes
}

// computeIndicators is a pure function over OHLCV bars, grounded on the
// teacher's EMA struct (feeds/indicators.go) generalized into a batch
// computation, and scored per spec.md §4.9's thresholds.
func computeIndicators(bars []ports.Bar) TechnicalScore {
	closes := closesOf(bars)

	rsi := rsi14(closes)
	macdLine, signalLine := macd(closes, 12, 26, 9)
	upperBB, lowerBB := bollinger(closes, 20, 2)
	sma50 := sma(closes, 50)
	sma200 := sma(closes, 200)

	last := closes[len(closes)-1]

	score := decimal.Zero
	switch {
	case rsi.LessThan(decimal.NewFromInt(30)):
		score = score.Add(decimal.NewFromFloat(3))
	case rsi.LessThan(decimal.NewFromInt(40)):
		score = score.Add(decimal.NewFromFloat(1.5))
	case rsi.GreaterThan(decimal.NewFromInt(70)):
		score = score.Sub(decimal.NewFromFloat(3))
	case rsi.GreaterThan(decimal.NewFromInt(60)):
		score = score.Sub(decimal.NewFromFloat(1.5))
	}

	macdSignal := "neutral"
	if macdLine.GreaterThan(signalLine) {
		macdSignal = "bullish"
		score = score.Add(decimal.NewFromInt(3))
	} else if macdLine.LessThan(signalLine) {
		macdSignal = "bearish"
		score = score.Sub(decimal.NewFromInt(3))
	}

	bbPosition := "within_bands"
	if !lowerBB.IsZero() && last.LessThan(lowerBB) {
		bbPosition = "below_lower"
		score = score.Add(decimal.NewFromInt(2))
	} else if !upperBB.IsZero() && last.GreaterThan(upperBB) {
		bbPosition = "above_upper"
		score = score.Sub(decimal.NewFromInt(2))
	}

	trend := "neutral"
	if !sma200.IsZero() {
		if sma50.GreaterThan(sma200) {
			trend = "golden_cross"
			score = score.Add(decimal.NewFromInt(2))
		} else if sma50.LessThan(sma200) {
			trend = "death_cross"
			score = score.Sub(decimal.NewFromInt(2))
		}
	}

	score = clampScore(score)

	action := ActionHold
	switch {
	case score.GreaterThanOrEqual(decimal.NewFromInt(5)):
		action = ActionBuy
	case score.LessThanOrEqual(decimal.NewFromInt(-5)):
		action = ActionSell
	}

	return TechnicalScore{
		RSI14:             rsi,
		MACDSignal:        macdSignal,
		BBPosition:        bbPosition,
		TrendMA:           trend,
		CompositeScore:    score,
		RecommendedAction: action,
	}
}

func clampScore(score decimal.Decimal) decimal.Decimal {
	if score.GreaterThan(decimal.NewFromInt(10)) {
		return decimal.NewFromInt(10)
	}
	if score.LessThan(decimal.NewFromInt(-10)) {
		return decimal.NewFromInt(-10)
	}
	return score
}

func sma(closes []decimal.Decimal, period int) decimal.Decimal {
	if len(closes) < period {
		return decimal.Zero
	}
	window := closes[len(closes)-period:]
	sum := decimal.Zero
	for _, c := range window {
		sum = sum.Add(c)
	}
	return sum.Div(decimal.NewFromInt(int64(period)))
}

func ema(closes []decimal.Decimal, period int) decimal.Decimal {
	if len(closes) == 0 {
		return decimal.Zero
	}
	mult := decimal.NewFromInt(2).Div(decimal.NewFromInt(int64(period + 1)))
	value := closes[0]
	for _, c := range closes[1:] {
		value = c.Sub(value).Mul(mult).Add(value)
	}
	return value
}

func rsi14(closes []decimal.Decimal) decimal.Decimal {
	const period = 14
	if len(closes) <= period {
		return decimal.NewFromInt(50)
	}

	gains, losses := decimal.Zero, decimal.Zero
	for i := len(closes) - period; i < len(closes); i++ {
		diff := closes[i].Sub(closes[i-1])
		if diff.IsPositive() {
			gains = gains.Add(diff)
		} else {
			losses = losses.Add(diff.Abs())
		}
	}

	avgGain := gains.Div(decimal.NewFromInt(period))
	avgLoss := losses.Div(decimal.NewFromInt(period))
	if avgLoss.IsZero() {
		return decimal.NewFromInt(100)
	}

	rs := avgGain.Div(avgLoss)
	hundred := decimal.NewFromInt(100)
	return hundred.Sub(hundred.Div(decimal.NewFromInt(1).Add(rs)))
}

func macd(closes []decimal.Decimal, fast, slow, signalPeriod int) (macdLine, signalLine decimal.Decimal) {
	if len(closes) < slow {
		return decimal.Zero, decimal.Zero
	}

	emaFastSeries := emaSeries(closes, fast)
	emaSlowSeries := emaSeries(closes, slow)
	macdSeries := make([]decimal.Decimal, len(closes))
	for i := range closes {
		macdSeries[i] = emaFastSeries[i].Sub(emaSlowSeries[i])
	}

	macdLine = macdSeries[len(macdSeries)-1]
	signalLine = ema(macdSeries, signalPeriod)
	return macdLine, signalLine
}

// emaSeries returns the full EMA(period) series over closes, seeded at
// closes[0] the same way ema does for its single final value.
func emaSeries(closes []decimal.Decimal, period int) []decimal.Decimal {
	if len(closes) == 0 {
		return nil
	}
	mult := decimal.NewFromInt(2).Div(decimal.NewFromInt(int64(period + 1)))
	series := make([]decimal.Decimal, len(closes))
	series[0] = closes[0]
	for i := 1; i < len(closes); i++ {
		series[i] = closes[i].Sub(series[i-1]).Mul(mult).Add(series[i-1])
	}
	return series
}

func bollinger(closes []decimal.Decimal, period int, numStdDev float64) (upper, lower decimal.Decimal) {
	if len(closes) < period {
		return decimal.Zero, decimal.Zero
	}
	window := closes[len(closes)-period:]
	mean := sma(closes, period)

	variance := decimal.Zero
	for _, c := range window {
		diff := c.Sub(mean)
		variance = variance.Add(diff.Mul(diff))
	}
	variance = variance.Div(decimal.NewFromInt(int64(period)))
	stdDev := sqrtDecimal(variance)

	band := stdDev.Mul(decimal.NewFromFloat(numStdDev))
	return mean.Add(band), mean.Sub(band)
}

// sqrtDecimal computes an approximate square root via Newton's method,
// grounded directly on the teacher's sqrt helper in feeds/indicators.go.
func sqrtDecimal(d decimal.Decimal) decimal.Decimal {
	if d.IsZero() || d.IsNegative() {
		return decimal.Zero
	}
	x := d
	two := decimal.NewFromInt(2)
	for i := 0; i < 20; i++ {
		x = x.Add(d.Div(x)).Div(two)
	}
	return x
}
