// Package vo defines the branded value types shared by every entity in the
// core: symbols, lot-aligned quantities, and fixed-precision prices. None of
// them carry behavior beyond what keeps float arithmetic out of financial
// paths.
package vo

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Symbol is a stock ticker, e.g. "FPT", "HPG". Branded so a bare string
// cannot be passed where a Symbol is expected.
type Symbol string

// Exchange identifies one of the three Vietnamese equity markets.
type Exchange string

const (
	HOSE  Exchange = "HOSE"
	HNX   Exchange = "HNX"
	UPCOM Exchange = "UPCOM"
)

func (e Exchange) Valid() bool {
	switch e {
	case HOSE, HNX, UPCOM:
		return true
	default:
		return false
	}
}

// Quantity is a lot-aligned share count. HOSE/HNX lots are 100 shares.
type Quantity int64

const LotSize Quantity = 100

// IsLotAligned reports whether q is a multiple of the standard lot size.
func (q Quantity) IsLotAligned() bool {
	return q%LotSize == 0
}

// Price wraps decimal.Decimal so money never travels through the codebase as
// float64. All comparisons and arithmetic delegate to shopspring/decimal's
// exact fixed-point representation.
type Price struct {
	decimal.Decimal
}

// NewPrice builds a Price from a VND integer amount (prices are whole VND on
// these exchanges, no sub-dong fractions).
func NewPrice(vnd int64) Price {
	return Price{decimal.NewFromInt(vnd)}
}

// NewPriceFromString parses a decimal string, the canonical wire format for
// money per the broker protocol (never a float).
func NewPriceFromString(s string) (Price, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Price{}, fmt.Errorf("vo: invalid price string %q: %w", s, err)
	}
	return Price{d}, nil
}

func (p Price) Mul(q Quantity) decimal.Decimal {
	return p.Decimal.Mul(decimal.NewFromInt(int64(q)))
}

func (p Price) String() string {
	return p.Decimal.String()
}

// ZeroPrice is the additive identity, useful as an explicit "not yet known"
// sentinel distinct from a Go zero-value Price (which is also valid zero).
var ZeroPrice = NewPrice(0)
