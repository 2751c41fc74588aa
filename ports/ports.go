// Package ports defines the capability contracts the core consumes.
// Concrete adapters (broker/ssi, storage, notify) are wired in by the
// composition root in cmd/vnalgo; nothing in the core imports an adapter
// package directly, which is how domain code stays free of import cycles
// with the I/O layer (the same role types.go played for the teacher this
// repo is grounded on).
package ports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tranvietlong/vnalgo-core/domain"
	"github.com/tranvietlong/vnalgo-core/vo"
)

// MarketData is an inbound tick stream. Implementations reconnect
// internally; callers only see a channel of ticks and a terminal error.
type MarketData interface {
	Stream(ctx context.Context, symbols []vo.Symbol) (<-chan domain.Tick, error)
	Close() error
}

// Broker is the outbound order-management surface.
type Broker interface {
	PlaceOrder(ctx context.Context, o domain.Order) (brokerOrderID string, err error)
	CancelOrder(ctx context.Context, brokerOrderID string) error
	GetOrderStatus(ctx context.Context, brokerOrderID string) (domain.OrderStatus, vo.Quantity, vo.Price, error)
	GetOpenOrders(ctx context.Context, symbol *vo.Symbol) ([]BrokerOrderSnapshot, error)
}

// BrokerOrderSnapshot is a broker-reported order state used by the
// synchronizer to reconcile against the local FSM.
type BrokerOrderSnapshot struct {
	BrokerOrderID  string
	Status         domain.OrderStatus
	FilledQuantity vo.Quantity
	AvgFillPrice   vo.Price
}

// TickStore persists ticks in batches and answers historical queries.
type TickStore interface {
	InsertBatch(ctx context.Context, ticks []domain.Tick) error
	QueryVolumeSpikes(ctx context.Context, thresholdMultiplier decimal.Decimal) ([]vo.Symbol, error)
	OHLCV(ctx context.Context, symbol vo.Symbol, lookback int) ([]Bar, error)
}

// Bar is one OHLCV candle, used by the technical agent.
type Bar struct {
	Open, High, Low, Close vo.Price
	Volume                 int64
	Timestamp              time.Time
	Exchange               vo.Exchange
}

// OrderStore persists the order lifecycle.
type OrderStore interface {
	Insert(ctx context.Context, o domain.Order) error
	Update(ctx context.Context, o domain.Order) error
	Get(ctx context.Context, orderID string) (domain.Order, bool, error)
	OpenOrders(ctx context.Context) ([]domain.Order, error)
}

// IdempotencyStore persists place_order results keyed by idempotency key.
// At-most-once broker submission under concurrent callers with the same key
// is enforced by usecase.PlaceOrder's per-key lock, not by this store.
type IdempotencyStore interface {
	Check(ctx context.Context, key string) (domain.IdempotencyRecord, bool, error)
	Record(ctx context.Context, rec domain.IdempotencyRecord) error
	PruneExpired(ctx context.Context, now time.Time) (int, error)
}

// Notifier delivers operator-facing alerts; out of core scope beyond this
// contract (spec.md §1 — telemetry/notification sinks are external).
type Notifier interface {
	NotifyOrderPlaced(o domain.Order)
	NotifyOrderRejected(o domain.Order, reason string)
	NotifyRiskEvent(summary string)
}

// AIEngine is the opaque fundamental-analysis capability; only its
// input/output contract to the fundamental agent is specified.
type AIEngine interface {
	Analyze(ctx context.Context, symbol vo.Symbol, ctxSummary string) (AnalysisResult, error)
}

// AnalysisResult is the fundamental-analysis output: a narrative plus the
// early-warning classification that feeds the risk agent's critical veto
// (spec.md §4.9 step b; RiskLevel is one of low/medium/high/critical).
type AnalysisResult struct {
	Narrative string
	RiskLevel string
	Score     decimal.Decimal
}

// Screener supplies candidate symbols to the screener agent (EPS growth,
// P/E, volume-spike based external screening service).
type Screener interface {
	Screen(ctx context.Context, minEPSGrowth, maxPERatio decimal.Decimal) ([]vo.Symbol, error)
}
