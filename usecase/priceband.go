package usecase

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/tranvietlong/vnalgo-core/vo"
)

// PriceBand is the regulatory envelope around a reference price for one
// symbol/exchange pair, snapped to that exchange's tick grid.
type PriceBand struct {
	Symbol        vo.Symbol
	Exchange      vo.Exchange
	ReferencePrice vo.Price
	CeilingPrice  vo.Price
	FloorPrice    vo.Price
	TickSize      decimal.Decimal
}

var bandPct = map[vo.Exchange]decimal.Decimal{
	vo.HOSE:  decimal.NewFromFloat(0.07),
	vo.HNX:   decimal.NewFromFloat(0.10),
	vo.UPCOM: decimal.NewFromFloat(0.15),
}

// hoseTickSizes are (upperBoundExclusive, tickSize) pairs in ascending order.
var hoseTickSizes = []struct {
	upperBound decimal.Decimal
	tick       decimal.Decimal
}{
	{decimal.NewFromInt(10000), decimal.NewFromInt(10)},
	{decimal.NewFromInt(50000), decimal.NewFromInt(50)},
	{decimal.NewFromInt(999999999), decimal.NewFromInt(100)},
}

func tickSizeFor(exchange vo.Exchange, referencePrice decimal.Decimal) decimal.Decimal {
	if exchange != vo.HOSE {
		return decimal.NewFromInt(100)
	}
	for _, band := range hoseTickSizes {
		if referencePrice.LessThan(band.upperBound) {
			return band.tick
		}
	}
	return decimal.NewFromInt(100)
}

// snapDown rounds value down to the nearest multiple of tick (conservative
// for the buyer-facing ceiling).
func snapDown(value, tick decimal.Decimal) decimal.Decimal {
	if tick.IsZero() {
		return value
	}
	units := value.Div(tick).Truncate(0)
	return units.Mul(tick)
}

// snapUp rounds value up to the nearest multiple of tick (conservative for
// the seller-facing floor).
func snapUp(value, tick decimal.Decimal) decimal.Decimal {
	if tick.IsZero() {
		return value
	}
	div := value.Div(tick)
	units := div.Truncate(0)
	if !div.Equal(units) {
		units = units.Add(decimal.NewFromInt(1))
	}
	return units.Mul(tick)
}

// CalculatePriceBand computes the ceiling/floor/tick-size for a reference
// price on a given exchange, per spec.md §4.3.
func CalculatePriceBand(symbol vo.Symbol, exchange vo.Exchange, referencePrice vo.Price) (PriceBand, error) {
	pct, ok := bandPct[exchange]
	if !ok {
		return PriceBand{}, fmt.Errorf("usecase: unknown exchange %q", exchange)
	}

	ref := referencePrice.Decimal
	rawCeiling := ref.Mul(decimal.NewFromInt(1).Add(pct))
	rawFloor := ref.Mul(decimal.NewFromInt(1).Sub(pct))

	tick := tickSizeFor(exchange, ref)
	ceiling := snapDown(rawCeiling, tick)
	floor := snapUp(rawFloor, tick)

	return PriceBand{
		Symbol:         symbol,
		Exchange:       exchange,
		ReferencePrice: referencePrice,
		CeilingPrice:   vo.Price{Decimal: ceiling},
		FloorPrice:     vo.Price{Decimal: floor},
		TickSize:       tick,
	}, nil
}

// ValidateOrderPrice checks a proposed order price against its price band:
// ceiling breach, floor breach, then tick misalignment. It returns the first
// failure in that order, so a price that fails more than one reports only the
// first; ValidateOrder (usecase/riskcheck.go) consumes it as one of several
// risk checks.
func ValidateOrderPrice(price vo.Price, band PriceBand) (bool, string) {
	if price.Decimal.GreaterThan(band.CeilingPrice.Decimal) {
		return false, fmt.Sprintf("Price %s exceeds ceiling %s (ref: %s, band: ±%s%%)",
			price, band.CeilingPrice, band.ReferencePrice, bandPct[band.Exchange].Mul(decimal.NewFromInt(100)).String())
	}
	if price.Decimal.LessThan(band.FloorPrice.Decimal) {
		return false, fmt.Sprintf("Price %s is below floor %s (ref: %s, band: ±%s%%)",
			price, band.FloorPrice, band.ReferencePrice, bandPct[band.Exchange].Mul(decimal.NewFromInt(100)).String())
	}
	if !price.Decimal.Mod(band.TickSize).IsZero() {
		nearest := snapDown(price.Decimal, band.TickSize)
		return false, fmt.Sprintf("Price %s is tick-misaligned (tick size %s); nearest valid = %s",
			price, band.TickSize, nearest)
	}
	return true, ""
}
