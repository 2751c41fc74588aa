package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/tranvietlong/vnalgo-core/vo"
)

// Position is a single-symbol holding. Quantity splits into what is
// immediately sellable and what is still settling (T+1, T+2).
//
// Invariant: Quantity == SellableQty + ReceivingT1 + ReceivingT2.
type Position struct {
	Symbol      vo.Symbol
	Quantity    vo.Quantity
	SellableQty vo.Quantity
	ReceivingT1 vo.Quantity
	ReceivingT2 vo.Quantity
	AvgPrice    vo.Price
	MarketPrice vo.Price
}

// MarketValue is quantity * current market price.
func (p Position) MarketValue() decimal.Decimal {
	return p.MarketPrice.Mul(p.Quantity)
}

// CashBalance separates settled cash from the broader purchasing power that
// may include margin extended by the broker.
type CashBalance struct {
	CashBal          decimal.Decimal
	PurchasingPower  decimal.Decimal
	PendingSettlement decimal.Decimal
}

// PortfolioState is always sourced from the broker — it is never locally
// recomputed from scratch, only replaced wholesale on each sync.
type PortfolioState struct {
	Positions []Position
	Cash      CashBalance
	SyncedAt  time.Time
}

// NAV is net asset value: sum of position market values plus settled cash.
func (p PortfolioState) NAV() decimal.Decimal {
	total := p.Cash.CashBal
	for _, pos := range p.Positions {
		total = total.Add(pos.MarketValue())
	}
	return total
}

// Position looks up a symbol's position, returning the zero value if absent.
func (p PortfolioState) Position(symbol vo.Symbol) (Position, bool) {
	for _, pos := range p.Positions {
		if pos.Symbol == symbol {
			return pos, true
		}
	}
	return Position{}, false
}

// SellableQty is the sellable quantity for symbol, 0 if no position exists.
func (p PortfolioState) SellableQty(symbol vo.Symbol) vo.Quantity {
	if pos, ok := p.Position(symbol); ok {
		return pos.SellableQty
	}
	return 0
}

// RiskLimit holds the operator-configured risk policy knobs.
type RiskLimit struct {
	MaxPositionPct  decimal.Decimal
	MaxDailyLoss    decimal.Decimal
	KillSwitchActive bool
	StopLossPct     decimal.Decimal
	TakeProfitPct   decimal.Decimal
}

// IdempotencyRecord is the persisted outcome of a place_order call, keyed by
// the caller-supplied idempotency key.
type IdempotencyRecord struct {
	Key       string
	Result    []byte // serialized PlaceOrderResult
	CreatedAt time.Time
	ExpiresAt time.Time
}

func (r IdempotencyRecord) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// DefaultIdempotencyTTL is the default record lifetime per spec.md §6.
const DefaultIdempotencyTTL = 24 * time.Hour
