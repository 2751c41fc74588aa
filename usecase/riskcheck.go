package usecase

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/tranvietlong/vnalgo-core/domain"
)

// CheckName identifies one entry in the risk-check catalog (§4.5).
type CheckName string

const (
	CheckKillSwitch      CheckName = "KILL_SWITCH"
	CheckPriceBand       CheckName = "PRICE_BAND"
	CheckLotSize         CheckName = "LOT_SIZE"
	CheckPositionSize    CheckName = "POSITION_SIZE"
	CheckBuyingPower     CheckName = "BUYING_POWER"
	CheckSellableQty     CheckName = "SELLABLE_QTY"
	CheckDailyLossLimit  CheckName = "DAILY_LOSS_LIMIT"
)

// CheckResult is one named check's pass/fail outcome with its message.
type CheckResult struct {
	Name    CheckName
	Passed  bool
	Message string
}

// RiskCheckResult is the aggregate outcome of ValidateOrder.
type RiskCheckResult struct {
	Approved bool
	Reason   string
	Passed   []CheckResult
	Failed   []CheckResult
}

// ValidateOrder runs the full risk-check catalog in the fixed order defined
// by spec.md §4.5. Only KILL_SWITCH short-circuits; every other check runs
// regardless of earlier failures so a rejected order can report every
// violation in one pass (§7 "user-visible behavior").
func ValidateOrder(
	order domain.Order,
	portfolio domain.PortfolioState,
	limits domain.RiskLimit,
	band *PriceBand,
	pendingSellQty int64,
) RiskCheckResult {
	if limits.KillSwitchActive {
		return RiskCheckResult{
			Approved: false,
			Reason:   "kill switch is active",
			Failed: []CheckResult{{
				Name:    CheckKillSwitch,
				Passed:  false,
				Message: "KILL_SWITCH: trading is halted by operator kill-switch",
			}},
		}
	}

	var passed, failed []CheckResult
	record := func(r CheckResult) {
		if r.Passed {
			passed = append(passed, r)
		} else {
			failed = append(failed, r)
		}
	}

	if band != nil {
		ok, msg := ValidateOrderPrice(order.Price, *band)
		record(CheckResult{Name: CheckPriceBand, Passed: ok, Message: firstNonEmpty(msg, "PRICE_BAND: within band")})
	}

	lotOK := order.Quantity%domainLotSize == 0
	lotMsg := "LOT_SIZE: quantity is a valid multiple of 100"
	if !lotOK {
		lotMsg = fmt.Sprintf("LOT_SIZE: Quantity %d is not a multiple of 100. HOSE/HNX require lot size 100.", order.Quantity)
	}
	record(CheckResult{Name: CheckLotSize, Passed: lotOK, Message: lotMsg})

	nav := portfolio.NAV()
	if nav.IsPositive() {
		orderValue := order.OrderValue().Decimal
		pct := orderValue.Div(nav)
		ok := pct.LessThanOrEqual(limits.MaxPositionPct)
		msg := "POSITION_SIZE: within max position percentage"
		if !ok {
			msg = fmt.Sprintf("POSITION_SIZE: order value %s is %s%% of NAV %s, exceeds max %s%%",
				orderValue, pct.Mul(decimal.NewFromInt(100)).StringFixed(2), nav, limits.MaxPositionPct.Mul(decimal.NewFromInt(100)).StringFixed(2))
		}
		record(CheckResult{Name: CheckPositionSize, Passed: ok, Message: msg})
	}

	if order.Side == domain.Buy {
		orderValue := order.OrderValue().Decimal
		ok := orderValue.LessThanOrEqual(portfolio.Cash.PurchasingPower)
		msg := "BUYING_POWER: sufficient purchasing power"
		if !ok {
			msg = fmt.Sprintf("BUYING_POWER: order value %s exceeds purchasing power %s", orderValue, portfolio.Cash.PurchasingPower)
		}
		record(CheckResult{Name: CheckBuyingPower, Passed: ok, Message: msg})
	}

	if order.Side == domain.Sell {
		sellable := portfolio.SellableQty(order.Symbol)
		available := int64(sellable) - pendingSellQty
		ok := int64(order.Quantity) <= available
		msg := "SELLABLE_QTY: sufficient settled shares"
		if !ok {
			msg = fmt.Sprintf("SELLABLE_QTY: requested %d exceeds sellable %d (pending sells %d)", order.Quantity, sellable, pendingSellQty)
		}
		record(CheckResult{Name: CheckSellableQty, Passed: ok, Message: msg})
	}

	// DAILY_LOSS_LIMIT is a hook: today's realized PnL tracking is owned by
	// the composition root's accounting layer, not by this pure function.
	// No check is recorded here until that input is threaded through.

	approved := len(failed) == 0
	reason := ""
	if !approved {
		reason = failed[0].Message
	}

	return RiskCheckResult{Approved: approved, Reason: reason, Passed: passed, Failed: failed}
}

const domainLotSize = 100

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
