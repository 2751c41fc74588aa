package domain

import (
	"time"

	"github.com/tranvietlong/vnalgo-core/vo"
)

// Tick is an immutable market data point. Once constructed it is never
// mutated — every downstream consumer receives the same value.
type Tick struct {
	Symbol    vo.Symbol
	Price     vo.Price
	Volume    int64
	Exchange  vo.Exchange
	Timestamp time.Time
}

// NewTick constructs a Tick, rejecting structurally invalid data at the
// boundary rather than letting it propagate into the ring buffer.
func NewTick(symbol vo.Symbol, price vo.Price, volume int64, exchange vo.Exchange, ts time.Time) (Tick, error) {
	if symbol == "" {
		return Tick{}, ErrInvalidTick("empty symbol")
	}
	if !exchange.Valid() {
		return Tick{}, ErrInvalidTick("unknown exchange: " + string(exchange))
	}
	if volume < 0 {
		return Tick{}, ErrInvalidTick("negative volume")
	}
	if price.IsNegative() {
		return Tick{}, ErrInvalidTick("negative price")
	}
	return Tick{Symbol: symbol, Price: price, Volume: volume, Exchange: exchange, Timestamp: ts}, nil
}

// ErrInvalidTick is a plain string error kind; ticks that fail construction
// are dropped by the caller with a logged warning, never propagated as a
// crash (§7 "data parse failure").
type ErrInvalidTick string

func (e ErrInvalidTick) Error() string { return "invalid tick: " + string(e) }
