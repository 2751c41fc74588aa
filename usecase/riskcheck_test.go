package usecase

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/tranvietlong/vnalgo-core/domain"
	"github.com/tranvietlong/vnalgo-core/vo"
)

func baseOrder(qty vo.Quantity, side domain.OrderSide, price vo.Price) domain.Order {
	return domain.Order{
		OrderID:  "o1",
		Symbol:   "FPT",
		Side:     side,
		Type:     domain.LO,
		Quantity: qty,
		Price:    price,
		Status:   domain.Created,
	}
}

func basePortfolio() domain.PortfolioState {
	return domain.PortfolioState{
		Positions: []domain.Position{
			{Symbol: "FPT", Quantity: 1000, SellableQty: 400, ReceivingT1: 300, ReceivingT2: 300, MarketPrice: vo.NewPrice(72000)},
		},
		Cash: domain.CashBalance{
			CashBal:         decimal.NewFromInt(500_000_000),
			PurchasingPower: decimal.NewFromInt(500_000_000),
		},
	}
}

func baseLimits() domain.RiskLimit {
	return domain.RiskLimit{MaxPositionPct: decimal.NewFromFloat(0.20)}
}

func TestValidateOrder_KillSwitchShortCircuits(t *testing.T) {
	limits := baseLimits()
	limits.KillSwitchActive = true

	res := ValidateOrder(baseOrder(500, domain.Buy, vo.NewPrice(72000)), basePortfolio(), limits, nil, 0)
	assert.False(t, res.Approved)
	assert.Len(t, res.Failed, 1)
	assert.Equal(t, CheckKillSwitch, res.Failed[0].Name)
}

func TestValidateOrder_LotSizeViolation(t *testing.T) {
	res := ValidateOrder(baseOrder(501, domain.Buy, vo.NewPrice(72000)), basePortfolio(), baseLimits(), nil, 0)
	assert.False(t, res.Approved)

	var names []CheckName
	for _, f := range res.Failed {
		names = append(names, f.Name)
	}
	assert.Contains(t, names, CheckLotSize)
}

func TestValidateOrder_SellableQtyViolation(t *testing.T) {
	order := baseOrder(500, domain.Sell, vo.NewPrice(72000))
	res := ValidateOrder(order, basePortfolio(), baseLimits(), nil, 0)
	assert.False(t, res.Approved)

	var names []CheckName
	for _, f := range res.Failed {
		names = append(names, f.Name)
	}
	assert.Contains(t, names, CheckSellableQty)
}

func TestValidateOrder_AllChecksCollected_NotShortCircuited(t *testing.T) {
	// Deliberately violate both LOT_SIZE and SELLABLE_QTY; both must be
	// reported, not just the first.
	order := baseOrder(501, domain.Sell, vo.NewPrice(72000))
	res := ValidateOrder(order, basePortfolio(), baseLimits(), nil, 0)
	assert.False(t, res.Approved)
	assert.GreaterOrEqual(t, len(res.Failed), 2)
}

func TestValidateOrder_Approved(t *testing.T) {
	res := ValidateOrder(baseOrder(400, domain.Sell, vo.NewPrice(72000)), basePortfolio(), baseLimits(), nil, 0)
	assert.True(t, res.Approved)
	assert.Empty(t, res.Failed)
}

func TestValidateOrder_QuantityNotMultipleOf100_AlwaysRejected(t *testing.T) {
	for _, qty := range []vo.Quantity{1, 99, 101, 250} {
		res := ValidateOrder(baseOrder(qty, domain.Buy, vo.NewPrice(72000)), basePortfolio(), baseLimits(), nil, 0)
		assert.False(t, res.Approved, "qty=%d must be rejected", qty)
	}
}
