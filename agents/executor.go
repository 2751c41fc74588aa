package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/tranvietlong/vnalgo-core/domain"
	"github.com/tranvietlong/vnalgo-core/ports"
	"github.com/tranvietlong/vnalgo-core/usecase"
	"github.com/tranvietlong/vnalgo-core/vo"
)

// pendingSellQtyThisRun is always 0: the executor submits at most one order
// per symbol per pass, so there is no prior pending sell on the same symbol
// within a single run for ValidateOrder's SELLABLE_QTY check to account for.
const pendingSellQtyThisRun = 0

// ExecutorAgent turns approved candidates into concrete LO orders: quantity
// is lot-rounded down from the risk agent's position-size percentage of NAV
// at the latest price, and idempotency keys are run_id:symbol:action, so the
// same run never double-submits a symbol/action pair, while a later run under
// a new run ID gets fresh keys and can submit that pair again.
type ExecutorAgent struct {
	broker     ports.Broker
	orderStore ports.OrderStore
	idemStore  ports.IdempotencyStore
	limits     domain.RiskLimit
}

func NewExecutorAgent(broker ports.Broker, orderStore ports.OrderStore, idemStore ports.IdempotencyStore, limits domain.RiskLimit) *ExecutorAgent {
	return &ExecutorAgent{broker: broker, orderStore: orderStore, idemStore: idemStore, limits: limits}
}

func (a *ExecutorAgent) Run(ctx context.Context, s State) Update {
	var plans []ExecutionPlan

	for _, symbol := range s.ApprovedTrades {
		assessment, ok := s.RiskAssessments[symbol]
		if !ok || !assessment.Approved {
			continue
		}
		score := s.TechnicalScores[symbol]

		qty := lotRoundedQuantity(s.CurrentNAV, assessment.PositionSizePct, assessment.LatestPrice)
		if qty <= 0 {
			log.Warn().Str("symbol", string(symbol)).Msg("📐 computed quantity rounds to zero lots, skipping")
			continue
		}

		plan := ExecutionPlan{
			Symbol:    symbol,
			Action:    score.RecommendedAction,
			Quantity:  qty,
			Price:     assessment.LatestPrice,
			OrderType: domain.LO,
		}

		if s.DryRun {
			log.Info().Str("symbol", string(symbol)).Int64("qty", int64(qty)).Msg("🧪 dry-run: skipping broker submission")
			plans = append(plans, plan)
			continue
		}

		side := domain.Buy
		if score.RecommendedAction == ActionSell {
			side = domain.Sell
		}

		band, err := priceBandFor(symbol, assessment.Exchange, assessment.LatestPrice)
		if err != nil {
			log.Warn().Str("symbol", string(symbol)).Err(err).Msg("📐 could not compute price band, rejecting candidate")
			continue
		}

		portfolio := domain.PortfolioState{
			Positions: s.CurrentPositions,
			Cash:      domain.CashBalance{PurchasingPower: s.PurchasingPower},
		}
		riskFn := func(order domain.Order) (bool, string) {
			result := usecase.ValidateOrder(order, portfolio, a.limits, &band, pendingSellQtyThisRun)
			return result.Approved, result.Reason
		}

		idemKey := fmt.Sprintf("%s:%s:%s", s.RunID, symbol, score.RecommendedAction)
		req := usecase.PlaceOrderRequest{
			IdempotencyKey: idemKey,
			Symbol:         symbol,
			Side:           side,
			Type:           domain.LO,
			Quantity:       qty,
			Price:          assessment.LatestPrice,
			CeilingPrice:   band.CeilingPrice,
			FloorPrice:     band.FloorPrice,
			DryRun:         false,
		}

		result, err := usecase.PlaceOrder(ctx, req, a.broker, a.orderStore, a.idemStore, riskFn, time.Now())
		if err != nil {
			log.Error().Str("symbol", string(symbol)).Err(err).Msg("🛑 place_order failed for executor candidate; aborting run")
			msg := fmt.Sprintf("executor: place_order for %s: %v", symbol, err)
			phase := PhaseCompleted
			return Update{Phase: &phase, ExecutionPlans: plans, ErrorMessage: &msg}
		}

		plan.Executed = result.Status == domain.Pending || result.Status == domain.Matched || result.Status == domain.PartialFill
		plan.OrderID = result.OrderID
		plan.ExecutedAt = time.Now()
		plans = append(plans, plan)
	}

	phase := PhaseCompleted
	return Update{Phase: &phase, ExecutionPlans: plans}
}

// lotRoundedQuantity computes (nav * positionPct) / price, rounded down to
// the nearest multiple of the exchange lot size.
func lotRoundedQuantity(nav, positionPct decimal.Decimal, price vo.Price) vo.Quantity {
	if nav.IsZero() || positionPct.IsZero() || price.IsZero() {
		return 0
	}
	budget := nav.Mul(positionPct)
	raw := budget.Div(price.Decimal).IntPart()
	lots := raw / int64(vo.LotSize)
	return vo.Quantity(lots * int64(vo.LotSize))
}

func routeAfterExecutor(State) string {
	return "finalize"
}
